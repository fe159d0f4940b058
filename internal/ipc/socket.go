package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning indicates another elora process owns the control socket.
var ErrAlreadyRunning = errors.New("elora practice session already running")

const (
	socketName = "elora.sock"
	// SocketEnv overrides the control socket location.
	SocketEnv = "ELORA_SOCKET"
)

// RuntimeSocketPath returns $ELORA_SOCKET, or elora.sock under $XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv(SocketEnv)); override != "" {
		return override, nil
	}
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", fmt.Errorf("XDG_RUNTIME_DIR is not set and %s is empty", SocketEnv)
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// Acquire listens on path so this process becomes the practice owner. A
// socket file left by a dead owner is removed and the listen retried, up to
// retries times; rescue runs after each removal. A live owner yields
// ErrAlreadyRunning, and a socket whose owner cannot be confirmed dead is
// never unlinked.
func Acquire(
	ctx context.Context,
	path string,
	probeTimeout time.Duration,
	retries int,
	rescue func(context.Context) error,
) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}
		if attempt >= retries+1 {
			return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, retries)
		}

		if err := removeStale(ctx, path, probeTimeout); err != nil {
			return nil, err
		}
		if rescue != nil {
			_ = rescue(ctx)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
}

// removeStale unlinks path only after a probe confirms no owner answers.
func removeStale(ctx context.Context, path string, probeTimeout time.Duration) error {
	alive, err := Probe(ctx, path, probeTimeout)
	if alive {
		return ErrAlreadyRunning
	}
	if err != nil {
		return fmt.Errorf("probe existing socket %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

// Release closes an owner listener and unlinks its socket file.
func Release(listener net.Listener, path string) {
	if listener != nil {
		_ = listener.Close()
	}
	_ = os.Remove(path)
}
