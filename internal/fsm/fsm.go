// Package fsm defines the pronunciation practice session lifecycle.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateAnalyzing State = "analyzing"
	StateSuccess   State = "success"
	StateCooldown  State = "cooldown"
)

const (
	EventStart           Event = "start"
	EventPoll            Event = "poll"
	EventReject          Event = "reject"
	EventAccept          Event = "accept"
	EventStop            Event = "stop"
	EventTimeout         Event = "timeout"
	EventNarrate         Event = "narrate"
	EventCooldownElapsed Event = "cooldown_elapsed"
	EventReset           Event = "reset"
)

// Transition returns the state reached by applying event to current.
// Invalid transitions leave the state unchanged and return an error.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventNarrate:
			return StateCooldown, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventPoll:
			return StateAnalyzing, nil
		case EventAccept:
			return StateSuccess, nil
		case EventStop, EventTimeout:
			return StateIdle, nil
		case EventNarrate:
			return StateCooldown, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAnalyzing:
		switch event {
		case EventPoll:
			return StateAnalyzing, nil
		case EventReject:
			return StateRecording, nil
		case EventAccept:
			return StateSuccess, nil
		case EventStop, EventTimeout:
			return StateIdle, nil
		case EventNarrate:
			return StateCooldown, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSuccess:
		switch event {
		case EventReset:
			return StateIdle, nil
		case EventNarrate:
			return StateCooldown, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCooldown:
		switch event {
		case EventNarrate:
			return StateCooldown, nil
		case EventCooldownElapsed:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether audio capture is running in state.
func Active(state State) bool {
	return state == StateRecording || state == StateAnalyzing
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
