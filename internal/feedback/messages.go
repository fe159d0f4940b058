package feedback

import (
	"fmt"
	"os"
	"strings"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

type locale string

const (
	localeEnglish locale = "en"
	localeSpanish locale = "es"
)

type messages struct {
	listening      string
	checking       string
	tryAgain       string // %s is the heard text
	tryAgainBlank  string
	success        string // %d is the score
	pleaseWait     string
	nothingHeard   string
	micUnavailable string
	timeUp         string
	stopped        string
}

func messagesFromEnv() messages {
	return messagesFor(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "es") {
		return localeSpanish
	}
	return localeEnglish
}

func messagesFor(tag locale) messages {
	switch tag {
	case localeSpanish:
		return messages{
			listening:      "Escuchando…",
			checking:       "Comprobando la pronunciación…",
			tryAgain:       "Escuché: %q. Inténtalo de nuevo.",
			tryAgainBlank:  "Inténtalo de nuevo.",
			success:        "¡Muy bien! Puntuación %d",
			pleaseWait:     "Espera a que termine la narración…",
			nothingHeard:   "No escuché nada. Inténtalo de nuevo.",
			micUnavailable: "Micrófono no disponible. Revisa el dispositivo de entrada y los permisos.",
			timeUp:         "Se acabó el tiempo.",
			stopped:        "Detenido.",
		}
	case localeEnglish:
		fallthrough
	default:
		return messages{
			listening:      "Listening…",
			checking:       "Checking pronunciation…",
			tryAgain:       "I heard %q. Try again.",
			tryAgainBlank:  "Try again.",
			success:        "Great job! Score %d",
			pleaseWait:     "Please wait for the narration to finish…",
			nothingHeard:   "I didn't hear anything. Try again.",
			micUnavailable: "Microphone unavailable. Check the input device and permissions.",
			timeUp:         "Time's up.",
			stopped:        "Stopped.",
		}
	}
}

// text renders the user-facing line for one status.
func (m messages) text(s session.Status) string {
	switch s.Kind {
	case session.StatusListening:
		return m.listening
	case session.StatusChecking:
		return m.checking
	case session.StatusTryAgain:
		if strings.TrimSpace(s.Heard) == "" {
			return m.tryAgainBlank
		}
		return fmt.Sprintf(m.tryAgain, s.Heard)
	case session.StatusSuccess:
		return fmt.Sprintf(m.success, s.Score)
	case session.StatusPleaseWait:
		return m.pleaseWait
	case session.StatusNothingHeard:
		return m.nothingHeard
	case session.StatusMicUnavailable:
		return m.micUnavailable
	case session.StatusTimeUp:
		return m.timeUp
	case session.StatusStopped:
		return m.stopped
	default:
		return string(s.Kind)
	}
}
