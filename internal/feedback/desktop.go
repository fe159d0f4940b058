package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

type notifyFunc func(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error)

// Desktop mirrors statuses into one replaceable freedesktop notification.
// Dispatch happens on a worker goroutine; updates are dropped when it falls behind.
type Desktop struct {
	appName  string
	logger   *slog.Logger
	renderer Renderer
	notify   notifyFunc

	queue chan string
	done  chan struct{}
	once  sync.Once

	replaceID uint32
}

// NewDesktop starts the notification worker. Call Close to stop it.
func NewDesktop(appName string, logger *slog.Logger) *Desktop {
	return newDesktop(appName, logger, desktopNotify)
}

func newDesktop(appName string, logger *slog.Logger, notify notifyFunc) *Desktop {
	if strings.TrimSpace(appName) == "" {
		appName = "elora"
	}
	d := &Desktop{
		appName:  appName,
		logger:   logger,
		renderer: NewRenderer(),
		notify:   notify,
		queue:    make(chan string, 8),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Desktop) Status(s session.Status) {
	text := d.renderer.StatusEvent(s).Message
	select {
	case d.queue <- text:
	default:
		if d.logger != nil {
			d.logger.Debug("desktop notification dropped", "status", string(s.Kind))
		}
	}
}

func (d *Desktop) Heard(string)       {}
func (d *Desktop) ActionEnabled(bool) {}

// Close drains queued notifications and stops the worker.
func (d *Desktop) Close() {
	d.once.Do(func() { close(d.queue) })
	<-d.done
}

func (d *Desktop) run() {
	defer close(d.done)
	for text := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
		id, err := d.notify(ctx, d.appName, d.replaceID, text, 4000)
		cancel()
		if err != nil {
			if d.logger != nil {
				d.logger.Debug("desktop notification failed", "error", err.Error())
			}
			continue
		}
		d.replaceID = id
	}
}

// desktopNotify sends a freedesktop notification over DBus via busctl.
// It returns the notification ID assigned by the server.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"audio-input-microphone",
		summary,
		"",
		"0", // actions
		"0", // hints
		strconv.Itoa(timeoutMS),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return 0, fmt.Errorf("desktop notify failed: %w", err)
		}
		return 0, fmt.Errorf("desktop notify failed: %w (%s)", err, trimmed)
	}
	return parseNotifyReply(string(out))
}

func parseNotifyReply(out string) (uint32, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(out))
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}
