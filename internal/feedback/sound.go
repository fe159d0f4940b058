package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/config"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueSuccess
	cueTryAgain
)

const cueSampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	startCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	})
	stopCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	})
	successCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 988, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1319, duration: 110 * time.Millisecond, volume: 0.18},
	})
	tryAgainCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		{frequencyHz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	})
)

// Cues plays short audio cues for session milestones. Playback is
// asynchronous and serialized so cues never overlap or block the caller.
type Cues struct {
	cfg    config.FeedbackConfig
	logger *slog.Logger

	mu   sync.Mutex
	play func(cueKind) error
	wg   sync.WaitGroup

	lastMu    sync.Mutex
	sessionID string
	started   bool
	lastCue   cueKind
	lastHeard string
}

// NewCues returns a cue player. Custom success/try-again files take
// precedence over the synthesized tones.
func NewCues(cfg config.FeedbackConfig, logger *slog.Logger) *Cues {
	c := &Cues{cfg: cfg, logger: logger}
	c.play = c.emit
	return c
}

// Status plays the cue for s. Within one session the start cue plays once and
// a cue repeating the previous one for the same heard text is skipped, so
// periodic analysis does not sound into the open microphone.
func (c *Cues) Status(s session.Status) {
	kind := cueFor(s.Kind)
	if kind == 0 || !c.admit(s, kind) {
		return
	}
	c.playCue(kind)
}

func cueFor(kind session.StatusKind) cueKind {
	switch kind {
	case session.StatusListening:
		return cueStart
	case session.StatusSuccess:
		return cueSuccess
	case session.StatusTryAgain, session.StatusNothingHeard, session.StatusMicUnavailable:
		return cueTryAgain
	case session.StatusTimeUp, session.StatusStopped:
		return cueStop
	default:
		return 0
	}
}

func (c *Cues) admit(s session.Status, kind cueKind) bool {
	if s.SessionID == "" {
		return true
	}

	c.lastMu.Lock()
	defer c.lastMu.Unlock()
	if s.SessionID != c.sessionID {
		c.sessionID = s.SessionID
		c.started = false
		c.lastCue = 0
		c.lastHeard = ""
	}
	if kind == cueStart {
		if c.started {
			return false
		}
		c.started = true
	}
	if kind == c.lastCue && s.Heard == c.lastHeard {
		return false
	}
	c.lastCue = kind
	c.lastHeard = s.Heard
	return true
}

func (c *Cues) Heard(string)       {}
func (c *Cues) ActionEnabled(bool) {}

// Wait blocks until queued cues have played.
func (c *Cues) Wait() {
	c.wg.Wait()
}

func (c *Cues) playCue(kind cueKind) {
	if !c.cfg.SoundEnable {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.play(kind); err != nil && c.logger != nil {
			c.logger.Debug("feedback audio cue failed", "cue", int(kind), "error", err.Error())
		}
	}()
}

func (c *Cues) emit(kind cueKind) error {
	if path := c.cuePath(kind); path != "" {
		if err := playCueFile(path); err == nil {
			return nil
		}
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return playSynthCue(samples)
}

func (c *Cues) cuePath(kind cueKind) string {
	switch kind {
	case cueSuccess:
		return config.ExpandUserPath(c.cfg.SoundSuccessFile)
	case cueTryAgain:
		return config.ExpandUserPath(c.cfg.SoundTryAgainFile)
	default:
		return ""
	}
}

func playCueFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}

func playSynthCue(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("elora"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("elora feedback cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueStart:
		return startCuePCM
	case cueStop:
		return stopCuePCM
	case cueSuccess:
		return successCuePCM
	case cueTryAgain:
		return tryAgainCuePCM
	default:
		return nil
	}
}

func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gap := samplesForDuration(22 * time.Millisecond)

	var pcm []int16
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 && gap > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	// 5ms max attack/release ramp avoids clicks.
	ramp := min(n/10, cueSampleRate/200)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / cueSampleRate
		sample := math.Sin(2 * math.Pi * spec.frequencyHz * t)
		pcm[i] = int16(math.Round(sample * spec.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
