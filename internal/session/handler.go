package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/ipc"
)

// Handle serves IPC commands against the controller.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.response(true, "")
	case ipc.CommandStart:
		if req.Phrase != "" {
			if err := c.SetTarget(req.Phrase); err != nil {
				return c.failure(err)
			}
		}
		if err := c.Start(ctx); err != nil {
			return c.failure(err)
		}
		return c.response(true, "recording")
	case ipc.CommandStop:
		if err := c.Stop(); err != nil {
			return c.failure(err)
		}
		return c.response(true, "stopping")
	case ipc.CommandNarrationOn:
		c.narration.Set(true)
		return c.response(true, "narration playing")
	case ipc.CommandNarrationOff:
		c.narration.Set(false)
		return c.response(true, "narration finished")
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (c *Controller) response(ok bool, message string) ipc.Response {
	snap := c.Snapshot()
	return ipc.Response{
		OK:        ok,
		State:     string(snap.State),
		Message:   message,
		SessionID: snap.SessionID,
		Target:    snap.Target,
		Heard:     snap.Heard,
		Elapsed:   int(snap.Elapsed / time.Second),
		Narrating: snap.Narrating,
	}
}

func (c *Controller) failure(err error) ipc.Response {
	resp := c.response(false, "")
	resp.Error = err.Error()
	return resp
}
