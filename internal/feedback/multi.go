package feedback

import "github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"

// Multi fans every update out to each sink in order.
type Multi []session.Feedback

func (m Multi) Status(s session.Status) {
	for _, f := range m {
		f.Status(s)
	}
}

func (m Multi) Heard(text string) {
	for _, f := range m {
		f.Heard(text)
	}
}

func (m Multi) ActionEnabled(enabled bool) {
	for _, f := range m {
		f.ActionEnabled(enabled)
	}
}
