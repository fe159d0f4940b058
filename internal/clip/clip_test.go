package clip

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func pcmOf(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestConcatPreservesOrder(t *testing.T) {
	c := Concat([][]byte{{1, 2}, {3}, nil, {4, 5}}, 16000, 1)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, c.PCM)
	require.Equal(t, 5, c.Len())
	require.False(t, c.Empty())
	require.True(t, Concat(nil, 16000, 1).Empty())
}

func TestDurationUsesDefaultsForZeroFormat(t *testing.T) {
	c := Clip{PCM: make([]byte, 32000)}
	require.Equal(t, time.Second, c.Duration())

	stereo := Clip{PCM: make([]byte, 32000), SampleRate: 8000, Channels: 2}
	require.Equal(t, time.Second, stereo.Duration())
}

func TestSaveWAVRoundTripsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	c := Clip{PCM: pcmOf(0, 1000, -1000, 32767, -32768), SampleRate: 16000, Channels: 1}
	require.NoError(t, c.SaveWAV(path))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, 16000, buf.Format.SampleRate)
	require.Equal(t, 1, buf.Format.NumChannels)
	require.Equal(t, []int{0, 1000, -1000, 32767, -32768}, buf.Data)
}

func TestWAVHasRIFFHeader(t *testing.T) {
	c := Clip{PCM: pcmOf(1, 2, 3, 4)}
	data, err := c.WAV()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 44)
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
}
