package ipc

import (
	"errors"
	"fmt"
)

// Commands understood by the session owner.
const (
	CommandStatus       = "status"
	CommandStart        = "start"
	CommandStop         = "stop"
	CommandNarrationOn  = "narration_start"
	CommandNarrationOff = "narration_stop"
)

// Request is one control command sent to the practice owner.
type Request struct {
	Command string `json:"command"`
	// Phrase replaces the target phrase; only valid with CommandStart.
	Phrase string `json:"phrase,omitempty"`
}

// Validate rejects commands the owner does not serve.
func (r Request) Validate() error {
	switch r.Command {
	case CommandStatus, CommandStop, CommandNarrationOn, CommandNarrationOff:
		if r.Phrase != "" {
			return fmt.Errorf("command %q does not take a phrase", r.Command)
		}
		return nil
	case CommandStart:
		return nil
	case "":
		return errors.New("command is required")
	default:
		return fmt.Errorf("unknown command %q", r.Command)
	}
}

// Response reports the owner's state after handling a request.
type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Target    string `json:"target,omitempty"`
	Heard     string `json:"heard,omitempty"`
	Score     int    `json:"score,omitempty"`
	Elapsed   int    `json:"elapsed_seconds,omitempty"`
	Narrating bool   `json:"narrating,omitempty"`
}

func failure(format string, args ...any) Response {
	return Response{OK: false, Error: fmt.Sprintf(format, args...)}
}
