package session

import (
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/fsm"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/narration"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/transcript"
)

// Options configure one practice controller.
type Options struct {
	// TargetPhrase is the word or phrase the learner must say.
	TargetPhrase string
	// MaxDuration bounds a recording. Zero means unbounded.
	MaxDuration time.Duration
	// ContinuousAnalysis polls the batch transcriber while recording. When
	// false a single analysis runs after a manual stop.
	ContinuousAnalysis bool
	// DisableWhileNarrating gates the primary action while narration plays or
	// cools down. Recording is excluded during narration either way.
	DisableWhileNarrating bool
	// SkipPronunciationCheck accepts any long-enough transcript with score 100.
	SkipPronunciationCheck bool
	// AutoStart begins recording when the controller opens.
	AutoStart bool
	// Immediate lifts the single in-flight scoring guard.
	Immediate bool
	// OnComplete fires exactly once for the first accepted transcript.
	OnComplete func(Completion)
}

// Timing holds the tunable intervals and thresholds of a session.
type Timing struct {
	// PollInterval is the batch analysis cadence in full-scoring mode.
	PollInterval time.Duration
	// FastPollInterval is the cadence when scoring is skipped.
	FastPollInterval time.Duration
	// Cooldown blocks new recordings after narration ends.
	Cooldown time.Duration
	// AnalysisTimeout bounds each transcriber, judge, and scorer call.
	AnalysisTimeout time.Duration
	// ShortClipBytes is the buffered size under which an empty transcript defers.
	ShortClipBytes  int
	StrictMinLength int
	SkipMinLength   int
	SampleRate      int
	Channels        int
}

// DefaultTiming returns production intervals.
func DefaultTiming() Timing {
	return Timing{
		PollInterval:     2 * time.Second,
		FastPollInterval: time.Second,
		Cooldown:         2 * time.Second,
		AnalysisTimeout:  15 * time.Second,
		ShortClipBytes:   16000,
		StrictMinLength:  transcript.StrictMinLength,
		SkipMinLength:    transcript.SkipCheckMinLength,
		SampleRate:       clip.DefaultSampleRate,
		Channels:         clip.DefaultChannels,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.FastPollInterval <= 0 {
		t.FastPollInterval = d.FastPollInterval
	}
	if t.Cooldown <= 0 {
		t.Cooldown = d.Cooldown
	}
	if t.AnalysisTimeout <= 0 {
		t.AnalysisTimeout = d.AnalysisTimeout
	}
	if t.ShortClipBytes <= 0 {
		t.ShortClipBytes = d.ShortClipBytes
	}
	if t.StrictMinLength <= 0 {
		t.StrictMinLength = d.StrictMinLength
	}
	if t.SkipMinLength <= 0 {
		t.SkipMinLength = d.SkipMinLength
	}
	if t.SampleRate <= 0 {
		t.SampleRate = d.SampleRate
	}
	if t.Channels <= 0 {
		t.Channels = d.Channels
	}
	return t
}

// Deps are the external collaborators of a controller. Nil entries fall back
// to placeholders; a nil Recognizer disables the streaming producer.
type Deps struct {
	Microphone  Microphone
	Recognizer  Recognizer
	Transcriber Transcriber
	Judge       Judge
	Scorer      Scorer
	Feedback    Feedback
	Narration   *narration.Signal
	Timing      Timing
}

// Outcome classifies how a session ended.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeStopped     Outcome = "stopped"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeFailed      Outcome = "failed"
)

// Completion is delivered to OnComplete for the accepted transcript.
type Completion struct {
	SessionID  string
	Target     string
	Clip       clip.Clip
	Score      int
	Transcript string
	Source     transcript.Source
}

// Result summarizes one finished session.
type Result struct {
	SessionID     string
	Outcome       Outcome
	State         fsm.State
	Target        string
	Score         int
	Transcript    string
	Source        transcript.Source
	BytesCaptured int
	Polls         int
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time
	// Replaced marks a stopped session released by a newer Start.
	Replaced bool
}

// Snapshot is a point-in-time view of the controller for status queries.
type Snapshot struct {
	State         fsm.State
	SessionID     string
	Target        string
	Heard         string
	Status        StatusKind
	Elapsed       time.Duration
	BufferedBytes int
	Narrating     bool
	ActionEnabled bool
}
