package server

import (
	"context"
	"sync"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

// streamMicrophone turns binary websocket frames into a capture device.
// Frames that arrive while no recorder is live are dropped.
type streamMicrophone struct {
	mu      sync.Mutex
	current *streamRecorder
	closed  bool
}

func (m *streamMicrophone) Acquire(context.Context) (session.Recorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, session.ErrMicrophoneUnavailable
	}
	if m.current != nil {
		_ = m.current.Stop()
	}
	m.current = &streamRecorder{chunks: make(chan []byte, 64)}
	return m.current, nil
}

// feed forwards one frame to the live recorder and reports whether it was taken.
func (m *streamMicrophone) feed(frame []byte) bool {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil {
		return false
	}
	return r.push(frame)
}

func (m *streamMicrophone) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.current != nil {
		_ = m.current.Stop()
	}
}

type streamRecorder struct {
	mu      sync.Mutex
	chunks  chan []byte
	stopped bool
}

func (r *streamRecorder) Chunks() <-chan []byte {
	return r.chunks
}

func (r *streamRecorder) push(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || len(frame) == 0 {
		return false
	}
	select {
	case r.chunks <- append([]byte(nil), frame...):
		return true
	default:
		return false
	}
}

// Stop closes Chunks. It is idempotent.
func (r *streamRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.stopped = true
		close(r.chunks)
	}
	return nil
}
