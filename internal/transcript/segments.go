package transcript

import (
	"strings"
	"sync"
)

// Segments merges streaming interim/final partials into one running transcript.
type Segments struct {
	mu          sync.Mutex
	committed   []string
	lastInterim string
}

// Add records one streaming result and returns the running transcript.
func (s *Segments) Add(text string, final bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	text = cleanSegment(text)
	if text == "" {
		return s.textLocked()
	}
	if final {
		s.committed = appendSegment(s.committed, text)
		s.lastInterim = ""
		return s.textLocked()
	}

	if s.lastInterim != "" && !isInterimContinuation(s.lastInterim, text) {
		s.committed = appendSegment(s.committed, s.lastInterim)
	}
	s.lastInterim = text
	return s.textLocked()
}

// Text returns the committed segments plus the pending interim segment.
func (s *Segments) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textLocked()
}

// Reset drops all recorded segments.
func (s *Segments) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = nil
	s.lastInterim = ""
}

func (s *Segments) textLocked() string {
	segments := append([]string(nil), s.committed...)
	if s.lastInterim != "" {
		segments = appendSegment(segments, s.lastInterim)
	}
	return strings.Join(segments, " ")
}

// appendSegment merges continuation segments to avoid duplicate transcript growth.
func appendSegment(segments []string, text string) []string {
	text = cleanSegment(text)
	if text == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, text)
	}

	last := segments[len(segments)-1]
	switch {
	case text == last:
		return segments
	case strings.HasPrefix(text, last):
		segments[len(segments)-1] = text
		return segments
	case strings.HasPrefix(last, text):
		return segments
	default:
		return append(segments, text)
	}
}

// isInterimContinuation decides whether an interim update extends prior speech.
func isInterimContinuation(previous string, current string) bool {
	if previous == current {
		return true
	}
	if strings.HasPrefix(current, previous) || strings.HasPrefix(previous, current) {
		return true
	}

	prevWords := strings.Fields(previous)
	currWords := strings.Fields(current)
	shorter := min(len(prevWords), len(currWords))
	if shorter == 0 {
		return true
	}

	common := 0
	for i := 0; i < shorter; i++ {
		if prevWords[i] != currWords[i] {
			break
		}
		common++
	}
	return common*2 >= shorter
}

func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
