package feedback

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

// Console writes feedback as plain lines or JSON lines.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	json     bool
	renderer Renderer
	lastSeen string
}

// NewConsole returns a console sink. format is "text" or "json".
func NewConsole(w io.Writer, format string) *Console {
	return &Console{
		w:        w,
		json:     strings.EqualFold(strings.TrimSpace(format), "json"),
		renderer: NewRenderer(),
	}
}

func (c *Console) Status(s session.Status) {
	c.write(c.renderer.StatusEvent(s))
}

// Heard prints partials only when they change.
func (c *Console) Heard(text string) {
	c.mu.Lock()
	if text == c.lastSeen {
		c.mu.Unlock()
		return
	}
	c.lastSeen = text
	c.mu.Unlock()
	c.write(c.renderer.HeardEvent(text))
}

// ActionEnabled is only surfaced in JSON mode; text users see please-wait instead.
func (c *Console) ActionEnabled(enabled bool) {
	if !c.json {
		return
	}
	c.write(c.renderer.ActionEvent(enabled))
}

func (c *Console) write(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.json {
		_ = json.NewEncoder(c.w).Encode(ev)
		return
	}

	switch ev.Type {
	case EventStatus:
		_, _ = fmt.Fprintln(c.w, ev.Message)
	case EventHeard:
		if ev.Heard == "" {
			return
		}
		_, _ = fmt.Fprintf(c.w, "  … %s\n", ev.Heard)
	}
}
