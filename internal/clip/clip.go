// Package clip holds captured PCM audio and encodes it for transcription and debug dumps.
package clip

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	bitDepth          = 16
	wavPCMFormat      = 1
)

// Clip is little-endian signed 16-bit PCM captured during one session.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Concat joins chunks in order into one clip.
func Concat(chunks [][]byte, sampleRate int, channels int) Clip {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	pcm := make([]byte, 0, total)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}
	return Clip{PCM: pcm, SampleRate: sampleRate, Channels: channels}
}

// Len returns the clip size in bytes.
func (c Clip) Len() int {
	return len(c.PCM)
}

// Empty reports whether the clip holds no audio.
func (c Clip) Empty() bool {
	return len(c.PCM) == 0
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	rate, channels := c.format()
	bytesPerSecond := rate * channels * (bitDepth / 8)
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSecond)
}

// WriteWAV encodes the clip as a PCM WAV stream into w.
func (c Clip) WriteWAV(w io.WriteSeeker) error {
	rate, channels := c.format()
	enc := wav.NewEncoder(w, rate, bitDepth, channels, wavPCMFormat)

	samples := make([]int, len(c.PCM)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(c.PCM[i*2:])))
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  rate,
		},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// WAV returns the clip encoded as an in-memory WAV file.
func (c Clip) WAV() ([]byte, error) {
	file, err := os.CreateTemp("", "elora-clip-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create wav scratch file: %w", err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}()

	if err := c.WriteWAV(file); err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind wav scratch file: %w", err)
	}
	return io.ReadAll(file)
}

// SaveWAV writes the clip to path with owner-only permissions.
func (c Clip) SaveWAV(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open wav file %q: %w", path, err)
	}
	if err := c.WriteWAV(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func (c Clip) format() (int, int) {
	rate := c.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	channels := c.Channels
	if channels <= 0 {
		channels = DefaultChannels
	}
	return rate, channels
}
