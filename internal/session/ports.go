package session

import (
	"context"
	"errors"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/transcript"
)

var (
	// ErrMicrophoneUnavailable indicates microphone acquisition failed or was denied.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable; check the input device and permissions")
	// ErrNarrationPlaying indicates a start was rejected because narration is playing.
	ErrNarrationPlaying = errors.New("narration is playing")
	// ErrCoolingDown indicates a start was rejected during the post-narration cooldown.
	ErrCoolingDown = errors.New("waiting for narration to settle")
	// ErrNoActiveSession indicates stop was requested without a running recording.
	ErrNoActiveSession = errors.New("no active recording session")
	// ErrAlreadyStarting indicates another start is still acquiring the microphone.
	ErrAlreadyStarting = errors.New("recording is already starting")
	// ErrClosed indicates the controller was torn down.
	ErrClosed = errors.New("session controller closed")
	// ErrPipelineUnavailable indicates batch transcription is not wired.
	ErrPipelineUnavailable = errors.New("batch transcription not configured")
	// ErrScorerUnavailable indicates pronunciation scoring is not wired.
	ErrScorerUnavailable = errors.New("pronunciation scorer not configured")
)

// Recorder is one live capture handle. Chunks is closed once the recorder stops.
type Recorder interface {
	Chunks() <-chan []byte
	Stop() error
}

// Microphone acquires exclusive capture handles.
type Microphone interface {
	Acquire(ctx context.Context) (Recorder, error)
}

// RecognizerStream is one streaming recognition session fed with captured audio.
// Results carries interim and final partials and is closed when the stream ends.
type RecognizerStream interface {
	SendAudio(chunk []byte) error
	Results() <-chan transcript.Candidate
	Close() error
}

// Recognizer opens streaming recognition sessions.
type Recognizer interface {
	Listen(ctx context.Context) (RecognizerStream, error)
}

// Transcriber performs batch transcription of a buffered clip.
type Transcriber interface {
	Transcribe(ctx context.Context, c clip.Clip) (string, error)
}

// Judge decides whether a transcript is a correct rendition of the target phrase.
type Judge interface {
	IsCorrect(ctx context.Context, target string, transcript string) (bool, error)
}

// Scorer produces a detailed 0-100 pronunciation score.
type Scorer interface {
	Score(ctx context.Context, target string, transcript string, c clip.Clip) (int, error)
}

// Feedback receives user-visible updates. Implementations are called while the
// controller holds its lock and must not call back into the controller.
type Feedback interface {
	Status(Status)
	Heard(text string)
	ActionEnabled(enabled bool)
}

// StatusKind enumerates the user-visible session messages.
type StatusKind string

const (
	StatusListening      StatusKind = "listening"
	StatusChecking       StatusKind = "checking"
	StatusTryAgain       StatusKind = "try_again"
	StatusSuccess        StatusKind = "success"
	StatusPleaseWait     StatusKind = "please_wait"
	StatusNothingHeard   StatusKind = "nothing_heard"
	StatusMicUnavailable StatusKind = "mic_unavailable"
	StatusTimeUp         StatusKind = "time_up"
	StatusStopped        StatusKind = "stopped"
)

// Status is one feedback message derived from a state transition.
type Status struct {
	Kind      StatusKind
	SessionID string
	Target    string
	Heard     string
	Score     int
}

// noopFeedback preserves session flow when no feedback sink is wired.
type noopFeedback struct{}

func (noopFeedback) Status(Status)      {}
func (noopFeedback) Heard(string)       {}
func (noopFeedback) ActionEnabled(bool) {}

// PlaceholderTranscriber reports ErrPipelineUnavailable so analysis falls back
// to the streaming transcript.
type PlaceholderTranscriber struct{}

func (PlaceholderTranscriber) Transcribe(context.Context, clip.Clip) (string, error) {
	return "", ErrPipelineUnavailable
}

// PlaceholderScorer reports ErrScorerUnavailable for both judging and scoring.
type PlaceholderScorer struct{}

func (PlaceholderScorer) IsCorrect(context.Context, string, string) (bool, error) {
	return false, ErrScorerUnavailable
}

func (PlaceholderScorer) Score(context.Context, string, string, clip.Clip) (int, error) {
	return 0, ErrScorerUnavailable
}

// IsMicrophoneUnavailable reports whether err represents an acquisition failure.
func IsMicrophoneUnavailable(err error) bool {
	return errors.Is(err, ErrMicrophoneUnavailable)
}

// IsGated reports whether err is a narration/cooldown start rejection.
func IsGated(err error) bool {
	return errors.Is(err, ErrNarrationPlaying) || errors.Is(err, ErrCoolingDown)
}
