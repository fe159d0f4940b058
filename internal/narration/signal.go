// Package narration exposes the externally owned "narration is playing" flag.
package narration

import (
	"sync"
	"time"
)

// Signal is an observable boolean owned by the narration (TTS) player.
//
// Subscribers are notified synchronously from Set, in subscription order, so a
// listener observes the change before Set returns.
type Signal struct {
	mu        sync.Mutex
	playing   bool
	changedAt time.Time
	nextID    int
	listeners map[int]func(bool)
	order     []int
}

// NewSignal returns a signal in the not-playing state.
func NewSignal() *Signal {
	return &Signal{listeners: make(map[int]func(bool))}
}

// Playing reports the current narration state.
func (s *Signal) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// ChangedAt reports when the flag last flipped.
func (s *Signal) ChangedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changedAt
}

// Set updates the flag and notifies subscribers when it changed.
func (s *Signal) Set(playing bool) {
	s.mu.Lock()
	if s.playing == playing {
		s.mu.Unlock()
		return
	}
	s.playing = playing
	s.changedAt = time.Now()
	listeners := make([]func(bool), 0, len(s.order))
	for _, id := range s.order {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(playing)
	}
}

// Subscribe registers fn for future changes and returns an unsubscribe func.
func (s *Signal) Subscribe(fn func(playing bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners == nil {
		s.listeners = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, existing := range s.order {
				if existing == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
