package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/fsm"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/transcript"
)

type fakeRecorder struct {
	chunks chan []byte
	stops  atomic.Int32
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{chunks: make(chan []byte, 16)}
}

func (r *fakeRecorder) Chunks() <-chan []byte { return r.chunks }

func (r *fakeRecorder) Stop() error {
	r.stops.Add(1)
	return nil
}

type fakeMic struct {
	mu        sync.Mutex
	recorders []*fakeRecorder
	err       error
	overlap   atomic.Bool
}

func (m *fakeMic) Acquire(context.Context) (Recorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, prior := range m.recorders {
		if prior.stops.Load() == 0 {
			m.overlap.Store(true)
		}
	}
	r := newFakeRecorder()
	m.recorders = append(m.recorders, r)
	return r, nil
}

func (m *fakeMic) last() *fakeRecorder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recorders) == 0 {
		return nil
	}
	return m.recorders[len(m.recorders)-1]
}

type fakeStream struct {
	results chan transcript.Candidate
	sent    atomic.Int32
	closed  atomic.Int32
}

func (s *fakeStream) SendAudio([]byte) error {
	s.sent.Add(1)
	return nil
}

func (s *fakeStream) Results() <-chan transcript.Candidate { return s.results }

func (s *fakeStream) Close() error {
	s.closed.Add(1)
	return nil
}

type fakeRecognizer struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (r *fakeRecognizer) Listen(context.Context) (RecognizerStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeStream{results: make(chan transcript.Candidate, 16)}
	r.streams = append(r.streams, s)
	return s, nil
}

func (r *fakeRecognizer) last() *fakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[len(r.streams)-1]
}

type fakeTranscriber struct {
	calls atomic.Int32
	text  string
	err   error

	// respond overrides text and err; n is the 1-based call number.
	respond  func(ctx context.Context, n int32) (string, error)
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ clip.Clip) (string, error) {
	n := f.calls.Add(1)
	if f.respond == nil {
		return f.text, f.err
	}
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.peak.Load()
		if cur <= prev || f.peak.CompareAndSwap(prev, cur) {
			break
		}
	}
	return f.respond(ctx, n)
}

type fakeJudge struct {
	calls   atomic.Int32
	release chan struct{}
	decide  func(target string, transcript string) bool
}

func (j *fakeJudge) IsCorrect(ctx context.Context, target string, transcript string) (bool, error) {
	j.calls.Add(1)
	if j.release != nil {
		select {
		case <-j.release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if j.decide == nil {
		return true, nil
	}
	return j.decide(target, transcript), nil
}

type fakeScorer struct {
	score int
	err   error
}

func (s fakeScorer) Score(context.Context, string, string, clip.Clip) (int, error) {
	return s.score, s.err
}

type recordingFeedback struct {
	mu       sync.Mutex
	statuses []Status
	heard    []string
	enabled  []bool
}

func (f *recordingFeedback) Status(st Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, st)
}

func (f *recordingFeedback) Heard(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heard = append(f.heard, text)
}

func (f *recordingFeedback) ActionEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = append(f.enabled, enabled)
}

func (f *recordingFeedback) has(kind StatusKind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range f.statuses {
		if st.Kind == kind {
			return true
		}
	}
	return false
}

func (f *recordingFeedback) lastStatus() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return Status{}
	}
	return f.statuses[len(f.statuses)-1]
}

func (f *recordingFeedback) lastEnabled() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.enabled) == 0 {
		return false, false
	}
	return f.enabled[len(f.enabled)-1], true
}

var errBoom = errors.New("boom")

func testTiming() Timing {
	return Timing{
		PollInterval:     20 * time.Millisecond,
		FastPollInterval: 10 * time.Millisecond,
		Cooldown:         40 * time.Millisecond,
		AnalysisTimeout:  time.Second,
		ShortClipBytes:   32,
	}
}

func pcm(n int) []byte {
	return make([]byte, n)
}

func awaitResult(t *testing.T, ctrl *Controller) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := ctrl.Await(ctx)
	require.NoError(t, err)
	return res
}

func awaitCompletion(t *testing.T, ch <-chan Completion) Completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback did not fire")
		return Completion{}
	}
}

func waitForState(t *testing.T, ctrl *Controller, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ctrl.State() == want
	}, 2*time.Second, 5*time.Millisecond)
}

func (f *recordingFeedback) lastStatusOf(kind StatusKind) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.statuses) - 1; i >= 0; i-- {
		if f.statuses[i].Kind == kind {
			return f.statuses[i]
		}
	}
	return Status{}
}
