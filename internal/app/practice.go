package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/cli"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/config"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/ipc"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/logging"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/server"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

// commandPractice either forwards a start to a running owner or becomes the
// owner: it holds the runtime socket and runs sessions until one succeeds,
// times out, fails, or is stopped.
func (r Runner) commandPractice(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	startReq := ipc.Request{Command: ipc.CommandStart, Phrase: parsed.Phrase}
	resp, handled, err := tryForward(ctx, socketPath, startReq)
	if handled {
		return r.printForwarded(resp, err)
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, startReq)
			return r.printForwarded(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer ipc.Release(listener, socketPath)

	deps := buildDeps(ctx, cfg, logger)
	defer deps.Close()
	sink, closeFeedback := localFeedback(cfg.Feedback, r.Stdout, logger)
	defer closeFeedback()
	deps.Microphone = localMicrophone(cfg.Audio, logger)
	deps.Feedback = sink

	opts := practiceOptions(cfg.Practice, parsed)
	if cfg.Debug.EnableAudioDump {
		opts.OnComplete = func(c session.Completion) {
			dumpClip(logger, c)
		}
	}

	controller := session.NewController(logger, deps.Deps, opts)
	defer controller.Close()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	code := r.runPractice(ctx, controller, logger)

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return code
}

func (r Runner) runPractice(ctx context.Context, controller *session.Controller, logger *slog.Logger) int {
	if err := controller.Open(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	for {
		result, err := controller.Await(ctx)
		if err != nil {
			logger.Info("practice interrupted by signal")
			return 0
		}
		logSessionResult(logger, result)

		switch result.Outcome {
		case session.OutcomeSuccess:
			fmt.Fprintf(r.Stdout, "%d %s\n", result.Score, strings.TrimSpace(result.Transcript))
			return 0
		case session.OutcomeTimeout:
			return 1
		case session.OutcomeFailed:
			fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
			return 1
		case session.OutcomeStopped:
			// A start that replaces a live session reports the old one as stopped.
			if result.Replaced || controller.Snapshot().SessionID != "" {
				continue
			}
			return 0
		case session.OutcomeInterrupted:
			// Narration cut the attempt short; wait for the next start.
			continue
		}
	}
}

func (r Runner) printForwarded(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandServe hosts the websocket practice server until ctx ends.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	deps := buildDeps(ctx, cfg, logger)
	defer deps.Close()

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: listen %s: %v\n", cfg.Server.Listen, err)
		return 1
	}

	srv := server.New(server.Config{
		Options: practiceOptions(cfg.Practice, parsed),
		Deps:    deps.Deps,
		Logger:  logger,
	})
	fmt.Fprintf(r.Stdout, "listening on %s\n", ln.Addr())
	logger.Info("practice server listening", "addr", ln.Addr().String())

	if err := srv.Serve(ctx, ln); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// dumpClip saves the accepted attempt under the state dir for debugging.
func dumpClip(logger *slog.Logger, c session.Completion) {
	dir, err := logging.ClipsDir()
	if err != nil {
		logger.Warn("audio dump skipped", "error", err.Error())
		return
	}
	path := filepath.Join(dir, c.SessionID+".wav")
	if err := c.Clip.SaveWAV(path); err != nil {
		logger.Warn("audio dump failed", "path", path, "error", err.Error())
		return
	}
	logger.Debug("audio dump written", "path", path, "bytes", c.Clip.Len())
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session_id", result.SessionID,
		"outcome", result.Outcome,
		"state", result.State,
		"target", result.Target,
		"score", result.Score,
		"source", result.Source,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"bytes_captured", result.BytesCaptured,
		"polls", result.Polls,
		"transcript_length", len(result.Transcript),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
