package server

import (
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/feedback"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

// Client control messages, sent as websocket text frames. Audio travels as
// binary frames of mono s16le PCM at the configured sample rate.
const (
	controlStart     = "start"
	controlStop      = "stop"
	controlNarration = "narration"
)

type controlMessage struct {
	Type    string `json:"type"`
	Phrase  string `json:"phrase,omitempty"`
	Playing bool   `json:"playing,omitempty"`
}

// Server messages beyond feedback events.
const (
	messageResult = "result"
	messageError  = "error"
)

type resultMessage struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id"`
	Outcome    session.Outcome `json:"outcome"`
	Target     string          `json:"target"`
	Score      int             `json:"score"`
	Transcript string          `json:"transcript,omitempty"`
	Source     string          `json:"source,omitempty"`
	Polls      int             `json:"polls"`
	Bytes      int             `json:"bytes_captured"`
	Error      string          `json:"error,omitempty"`
	Duration   float64         `json:"duration_seconds"`
}

func newResultMessage(res session.Result) resultMessage {
	msg := resultMessage{
		Type:       messageResult,
		SessionID:  res.SessionID,
		Outcome:    res.Outcome,
		Target:     res.Target,
		Score:      res.Score,
		Transcript: res.Transcript,
		Source:     string(res.Source),
		Polls:      res.Polls,
		Bytes:      res.BytesCaptured,
		Duration:   res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).Seconds(),
	}
	if res.Err != nil {
		msg.Error = res.Err.Error()
	}
	return msg
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// socketFeedback queues rendered events for the connection writer. It never
// blocks; events are dropped when the client cannot keep up.
type socketFeedback struct {
	out      chan<- any
	renderer feedback.Renderer
}

func (f socketFeedback) Status(s session.Status) {
	f.send(f.renderer.StatusEvent(s))
}

func (f socketFeedback) Heard(text string) {
	f.send(f.renderer.HeardEvent(text))
}

func (f socketFeedback) ActionEnabled(enabled bool) {
	f.send(f.renderer.ActionEvent(enabled))
}

func (f socketFeedback) send(ev feedback.Event) {
	select {
	case f.out <- ev:
	default:
	}
}
