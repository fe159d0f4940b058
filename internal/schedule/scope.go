// Package schedule runs timer-driven and background tasks bound to one cancelable scope.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Scope owns every timer and goroutine started for one session.
// Cancel stops all of them; Wait blocks until they have returned.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewScope derives a scope from parent. Cancelling parent cancels the scope.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context returns the scope context, done once the scope is cancelled.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Done is closed when the scope is cancelled.
func (s *Scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Go runs fn on its own goroutine. It is a no-op after Cancel.
func (s *Scope) Go(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

// Every calls fn at a fixed interval until the scope is cancelled.
func (s *Scope) Every(interval time.Duration, fn func()) bool {
	if interval <= 0 {
		return false
	}
	return s.Go(func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	})
}

// After calls fn once after delay unless the scope is cancelled first.
func (s *Scope) After(delay time.Duration, fn func()) bool {
	return s.Go(func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if ctx.Err() == nil {
				fn()
			}
		}
	})
}

// Cancel stops every task in the scope. It does not wait and is safe to call
// repeatedly, including from inside a task.
func (s *Scope) Cancel() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until all tasks have returned. Call it only after Cancel and
// never from inside a task.
func (s *Scope) Wait() {
	s.wg.Wait()
}
