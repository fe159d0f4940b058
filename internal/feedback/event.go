// Package feedback renders session status updates to the console, desktop
// notifications, audio cues, and remote clients.
package feedback

import (
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

// Event types carried on the wire.
const (
	EventStatus = "status"
	EventHeard  = "heard"
	EventAction = "action"
)

// Event is the serializable form of one feedback update.
type Event struct {
	Type      string             `json:"type"`
	Status    session.StatusKind `json:"status,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Target    string             `json:"target,omitempty"`
	Heard     string             `json:"heard,omitempty"`
	Score     int                `json:"score,omitempty"`
	Message   string             `json:"message,omitempty"`
	Enabled   *bool              `json:"enabled,omitempty"`
	Time      time.Time          `json:"time"`
}

// Renderer turns session updates into Events with localized messages.
type Renderer struct {
	messages messages
	now      func() time.Time
}

// NewRenderer resolves the message locale from $LANG.
func NewRenderer() Renderer {
	return Renderer{messages: messagesFromEnv(), now: time.Now}
}

// StatusEvent renders a status update.
func (r Renderer) StatusEvent(s session.Status) Event {
	return Event{
		Type:      EventStatus,
		Status:    s.Kind,
		SessionID: s.SessionID,
		Target:    s.Target,
		Heard:     s.Heard,
		Score:     s.Score,
		Message:   r.messages.text(s),
		Time:      r.clock(),
	}
}

// HeardEvent renders a live partial transcript.
func (r Renderer) HeardEvent(text string) Event {
	return Event{Type: EventHeard, Heard: text, Time: r.clock()}
}

// ActionEvent renders a primary-action enablement change.
func (r Renderer) ActionEvent(enabled bool) Event {
	return Event{Type: EventAction, Enabled: &enabled, Time: r.clock()}
}

func (r Renderer) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}
