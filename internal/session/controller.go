// Package session coordinates one pronunciation practice attempt: microphone
// capture, batch and streaming analysis, scoring, and narration exclusion.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/fsm"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/narration"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/schedule"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/transcript"
)

// Controller owns the practice lifecycle. All state lives behind mu; external
// calls (capture, transcription, scoring, OnComplete) never run under it.
type Controller struct {
	logger      *slog.Logger
	mic         Microphone
	recognizer  Recognizer
	transcriber Transcriber
	judge       Judge
	scorer      Scorer
	feedback    Feedback
	narration   *narration.Signal
	timing      Timing
	opts        Options

	mu            sync.Mutex
	base          context.Context
	rule          transcript.Rule
	state         fsm.State
	gen           uint64
	active        *activeSession
	starting      bool
	closed        bool
	narrating     bool
	cooldown      *schedule.Scope
	unsubscribe   func()
	actionEnabled bool
	lastStatus    StatusKind
	heard         string

	results chan Result
}

// activeSession is one recording. Callbacks carry gen and are dropped once it
// no longer matches the controller's active session.
type activeSession struct {
	id        string
	gen       uint64
	target    string
	scope     *schedule.Scope
	recorder  Recorder
	stream    RecognizerStream
	buffer    chunkBuffer
	segments  transcript.Segments
	heard     string
	startedAt time.Time

	polls          int
	analyzing      int
	submitted      int
	resolved       int
	scoring        int
	finalizing     bool
	captureStopped bool
}

// NewController wires a controller. Nil dependencies fall back to placeholders.
func NewController(logger *slog.Logger, deps Deps, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Transcriber == nil {
		deps.Transcriber = PlaceholderTranscriber{}
	}
	if deps.Judge == nil {
		deps.Judge = PlaceholderScorer{}
	}
	if deps.Scorer == nil {
		deps.Scorer = PlaceholderScorer{}
	}
	if deps.Feedback == nil {
		deps.Feedback = noopFeedback{}
	}
	if deps.Narration == nil {
		deps.Narration = narration.NewSignal()
	}
	timing := deps.Timing.withDefaults()

	return &Controller{
		logger:        logger,
		mic:           deps.Microphone,
		recognizer:    deps.Recognizer,
		transcriber:   deps.Transcriber,
		judge:         deps.Judge,
		scorer:        deps.Scorer,
		feedback:      deps.Feedback,
		narration:     deps.Narration,
		timing:        timing,
		opts:          opts,
		base:          context.Background(),
		rule:          buildRule(opts.SkipPronunciationCheck, opts.TargetPhrase, timing),
		state:         fsm.StateIdle,
		actionEnabled: true,
		results:       make(chan Result, 1),
	}
}

func buildRule(skipCheck bool, target string, timing Timing) transcript.Rule {
	return transcript.NewRule(skipCheck, target, timing.StrictMinLength, timing.SkipMinLength)
}

// Narration returns the signal the controller excludes recording against.
func (c *Controller) Narration() *narration.Signal {
	return c.narration
}

// Open binds the controller to ctx, subscribes to narration changes, and
// starts recording when AutoStart is set.
func (c *Controller) Open(ctx context.Context) error {
	unsubscribe := c.narration.Subscribe(c.onNarration)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	if ctx != nil {
		c.base = ctx
	}
	c.unsubscribe = unsubscribe
	if c.narration.Playing() && !c.narrating {
		c.narrating = true
		if c.state != fsm.StateCooldown {
			_ = c.transitionLocked(fsm.EventNarrate)
		}
	}
	c.refreshActionLocked()
	c.feedback.ActionEnabled(c.actionEnabled)
	c.mu.Unlock()

	if !c.opts.AutoStart {
		return nil
	}
	if err := c.Start(ctx); err != nil && !IsGated(err) {
		return err
	}
	return nil
}

// SetTarget replaces the target phrase for the next recording.
func (c *Controller) SetTarget(phrase string) error {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return fmt.Errorf("target phrase must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil || c.starting {
		return fmt.Errorf("cannot change target while recording")
	}
	c.opts.TargetPhrase = phrase
	c.rule = buildRule(c.opts.SkipPronunciationCheck, phrase, c.timing)
	return nil
}

// Start begins a recording. It is rejected with a please-wait status while
// narration plays or cools down. A running recording is released first.
func (c *Controller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.gateLocked(); err != nil {
		c.emitLocked(Status{Kind: StatusPleaseWait})
		c.mu.Unlock()
		return err
	}
	if c.starting {
		c.mu.Unlock()
		return ErrAlreadyStarting
	}
	if c.mic == nil {
		c.emitLocked(Status{Kind: StatusMicUnavailable})
		c.mu.Unlock()
		return fmt.Errorf("%w: no capture device wired", ErrMicrophoneUnavailable)
	}

	previous := c.active
	if previous != nil {
		c.detachLocked(fsm.EventStop)
		res := c.resultLocked(previous, OutcomeStopped, nil)
		res.Replaced = true
		c.publishLocked(res)
	}
	if c.state == fsm.StateSuccess {
		_ = c.transitionLocked(fsm.EventReset)
	}
	c.starting = true
	c.gen++
	gen := c.gen
	base := c.base
	target := c.opts.TargetPhrase
	c.mu.Unlock()

	c.teardown(previous)

	recorder, err := c.mic.Acquire(ctx)
	if err != nil {
		c.mu.Lock()
		c.starting = false
		c.emitLocked(Status{Kind: StatusMicUnavailable, Target: target})
		c.mu.Unlock()
		c.logger.Error("microphone acquisition failed", "error", err.Error())
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}

	var stream RecognizerStream
	if c.recognizer != nil {
		stream, err = c.recognizer.Listen(base)
		if err != nil {
			c.logger.Warn("streaming recognizer unavailable; continuing with batch analysis", "error", err.Error())
			stream = nil
		}
	}

	c.mu.Lock()
	c.starting = false
	var abort error
	switch {
	case c.closed:
		abort = ErrClosed
	case c.gen != gen:
		abort = ErrNarrationPlaying
	default:
		abort = c.gateLocked()
	}
	if abort == nil {
		abort = c.transitionLocked(fsm.EventStart)
	}
	if abort != nil {
		if IsGated(abort) {
			c.emitLocked(Status{Kind: StatusPleaseWait, Target: target})
		}
		c.mu.Unlock()
		c.teardown(&activeSession{recorder: recorder, stream: stream})
		return abort
	}

	s := &activeSession{
		id:        uuid.NewString(),
		gen:       gen,
		target:    target,
		scope:     schedule.NewScope(base),
		recorder:  recorder,
		stream:    stream,
		startedAt: time.Now(),
	}
	c.active = s
	c.heard = ""
	c.emitLocked(Status{Kind: StatusListening, SessionID: s.id})
	c.launchLocked(s)
	c.mu.Unlock()

	c.logger.Info("practice session started",
		"session_id", s.id,
		"target", target,
		"skip_check", c.opts.SkipPronunciationCheck,
		"continuous", c.opts.ContinuousAnalysis,
		"streaming", stream != nil,
		"max_duration_ms", c.opts.MaxDuration.Milliseconds(),
	)
	return nil
}

// Stop ends the recording on user request. Without continuous analysis the
// buffered clip is analyzed once before the session ends.
func (c *Controller) Stop() error {
	c.mu.Lock()
	s := c.active
	if s == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	if s.finalizing {
		c.mu.Unlock()
		return nil
	}

	if c.opts.ContinuousAnalysis {
		c.detachLocked(fsm.EventStop)
		c.emitLocked(Status{Kind: StatusStopped, SessionID: s.id, Heard: s.heard})
		c.publishLocked(c.resultLocked(s, OutcomeStopped, nil))
		c.mu.Unlock()
		c.teardown(s)
		c.logger.Info("practice session stopped", "session_id", s.id)
		return nil
	}

	s.finalizing = true
	s.captureStopped = true
	if c.state == fsm.StateRecording {
		_ = c.transitionLocked(fsm.EventPoll)
	}
	c.emitLocked(Status{Kind: StatusChecking, SessionID: s.id})
	c.launchAnalysisLocked(s)
	recorder := s.recorder
	c.mu.Unlock()

	if err := recorder.Stop(); err != nil {
		c.logger.Warn("stop recorder", "session_id", s.id, "error", err.Error())
	}
	return nil
}

// Close tears down any recording and timers and detaches from narration.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	s := c.active
	if s != nil {
		c.detachLocked(fsm.EventStop)
		c.publishLocked(c.resultLocked(s, OutcomeStopped, nil))
	}
	c.stopCooldownLocked()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.teardown(s)
	if s != nil {
		s.scope.Wait()
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state for status displays.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:         c.state,
		Target:        c.opts.TargetPhrase,
		Heard:         c.heard,
		Status:        c.lastStatus,
		Narrating:     c.narrating,
		ActionEnabled: c.actionEnabled,
	}
	if s := c.active; s != nil {
		snap.SessionID = s.id
		snap.Elapsed = time.Since(s.startedAt)
		snap.BufferedBytes = s.buffer.len()
	}
	return snap
}

// Await returns the next finished session result.
func (c *Controller) Await(ctx context.Context) (Result, error) {
	select {
	case res := <-c.results:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *Controller) launchLocked(s *activeSession) {
	gen := s.gen
	chunks := s.recorder.Chunks()
	s.scope.Go(func(ctx context.Context) {
		c.pumpAudio(ctx, gen, chunks)
	})
	if s.stream != nil {
		results := s.stream.Results()
		s.scope.Go(func(ctx context.Context) {
			c.consumePartials(ctx, gen, results)
		})
	}
	if c.opts.ContinuousAnalysis {
		s.scope.Every(c.pollInterval(), func() { c.poll(gen) })
	}
	if c.opts.MaxDuration > 0 {
		s.scope.After(c.opts.MaxDuration, func() { c.expire(gen) })
	}
}

func (c *Controller) pollInterval() time.Duration {
	if c.opts.SkipPronunciationCheck {
		return c.timing.FastPollInterval
	}
	return c.timing.PollInterval
}

func (c *Controller) pumpAudio(ctx context.Context, gen uint64, chunks <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			c.onChunk(gen, chunk)
		}
	}
}

func (c *Controller) onChunk(gen uint64, chunk []byte) {
	c.mu.Lock()
	s := c.sessionLocked(gen)
	if s == nil || s.finalizing || !fsm.Active(c.state) {
		c.mu.Unlock()
		return
	}
	s.buffer.append(chunk)
	stream := s.stream
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.SendAudio(chunk); err != nil {
		c.logger.Debug("streaming recognizer rejected audio", "session_id", s.id, "error", err.Error())
	}
}

func (c *Controller) consumePartials(ctx context.Context, gen uint64, results <-chan transcript.Candidate) {
	for {
		select {
		case <-ctx.Done():
			return
		case cand, ok := <-results:
			if !ok {
				return
			}
			c.onPartial(gen, cand)
		}
	}
}

// onPartial displays every streaming partial and evaluates finals.
func (c *Controller) onPartial(gen uint64, cand transcript.Candidate) {
	c.mu.Lock()
	s := c.sessionLocked(gen)
	if s == nil || !fsm.Active(c.state) {
		c.mu.Unlock()
		return
	}

	text := s.segments.Add(cand.Text, cand.Final)
	if text != "" && text != s.heard {
		s.heard = text
		c.heard = text
		c.feedback.Heard(text)
	}
	if !cand.Final {
		c.mu.Unlock()
		return
	}

	cand.Source = transcript.SourceStreaming
	cand.Text = text
	normalized, ok := c.rule.Accept(cand)
	if !ok {
		c.mu.Unlock()
		return
	}
	if !c.opts.SkipPronunciationCheck {
		if c.state == fsm.StateRecording {
			_ = c.transitionLocked(fsm.EventPoll)
		}
		c.emitLocked(Status{Kind: StatusChecking, SessionID: s.id, Heard: text})
	}
	post := c.considerLocked(s, cand, normalized)
	c.mu.Unlock()
	run(post)
}

// expire ends a recording that reached MaxDuration without success.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	s := c.sessionLocked(gen)
	if s == nil || s.finalizing {
		c.mu.Unlock()
		return
	}
	c.detachLocked(fsm.EventTimeout)
	c.emitLocked(Status{Kind: StatusTimeUp, SessionID: s.id, Heard: s.heard})
	c.publishLocked(c.resultLocked(s, OutcomeTimeout, nil))
	c.mu.Unlock()

	c.teardown(s)
	c.logger.Info("practice session timed out", "session_id", s.id, "polls", s.polls)
}

// onNarration enforces mutual exclusion between recording and narration.
// A running recording is dropped synchronously, including its buffered audio.
func (c *Controller) onNarration(playing bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.narrating = playing

	var released *activeSession
	if playing {
		c.stopCooldownLocked()
		c.gen++
		if s := c.active; s != nil {
			s.buffer.clear()
			c.detachLocked(fsm.EventNarrate)
			c.emitLocked(Status{Kind: StatusPleaseWait, SessionID: s.id})
			c.publishLocked(c.resultLocked(s, OutcomeInterrupted, nil))
			released = s
		} else if c.state != fsm.StateCooldown {
			_ = c.transitionLocked(fsm.EventNarrate)
		}
	} else {
		c.startCooldownLocked()
	}
	c.refreshActionLocked()
	c.mu.Unlock()

	c.teardown(released)
	if released != nil {
		c.logger.Info("recording interrupted by narration", "session_id", released.id)
	}
}

func (c *Controller) startCooldownLocked() {
	c.stopCooldownLocked()
	if c.state != fsm.StateCooldown {
		return
	}
	scope := schedule.NewScope(c.base)
	c.cooldown = scope
	scope.After(c.timing.Cooldown, func() { c.endCooldown(scope) })
}

func (c *Controller) stopCooldownLocked() {
	if c.cooldown == nil {
		return
	}
	c.cooldown.Cancel()
	c.cooldown = nil
}

func (c *Controller) endCooldown(scope *schedule.Scope) {
	c.mu.Lock()
	if c.cooldown != scope || c.narrating || c.closed {
		c.mu.Unlock()
		return
	}
	c.cooldown = nil
	_ = c.transitionLocked(fsm.EventCooldownElapsed)
	c.refreshActionLocked()
	c.mu.Unlock()

	scope.Cancel()
}

func (c *Controller) gateLocked() error {
	if c.narrating {
		return ErrNarrationPlaying
	}
	if c.state == fsm.StateCooldown {
		return ErrCoolingDown
	}
	return nil
}

func (c *Controller) sessionLocked(gen uint64) *activeSession {
	if c.active == nil || c.active.gen != gen {
		return nil
	}
	return c.active
}

func (c *Controller) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Debug("rejected session transition", "state", string(c.state), "event", string(event))
		return err
	}
	c.logger.Debug("session transition", "from", string(c.state), "event", string(event), "to", string(next))
	c.state = next
	return nil
}

// detachLocked applies event and retires the active session so every pending
// callback for it becomes stale.
func (c *Controller) detachLocked(event fsm.Event) {
	s := c.active
	if s == nil {
		return
	}
	_ = c.transitionLocked(event)
	c.gen++
	c.active = nil
	s.scope.Cancel()
}

// teardown releases capture and recognition resources of a detached session.
func (c *Controller) teardown(s *activeSession) {
	if s == nil {
		return
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			c.logger.Debug("close recognizer stream", "session_id", s.id, "error", err.Error())
		}
	}
	if s.recorder != nil && !s.captureStopped {
		if err := s.recorder.Stop(); err != nil {
			c.logger.Warn("stop recorder", "session_id", s.id, "error", err.Error())
		}
	}
}

func (c *Controller) emitLocked(st Status) {
	if st.Target == "" {
		st.Target = c.opts.TargetPhrase
	}
	c.lastStatus = st.Kind
	c.feedback.Status(st)
}

func (c *Controller) refreshActionLocked() {
	enabled := true
	if c.opts.DisableWhileNarrating {
		enabled = !c.narrating && c.state != fsm.StateCooldown
	}
	if enabled == c.actionEnabled {
		return
	}
	c.actionEnabled = enabled
	c.feedback.ActionEnabled(enabled)
}

func (c *Controller) resultLocked(s *activeSession, outcome Outcome, err error) Result {
	return Result{
		SessionID:     s.id,
		Outcome:       outcome,
		State:         c.state,
		Target:        s.target,
		Transcript:    s.heard,
		BytesCaptured: s.buffer.len(),
		Polls:         s.polls,
		Err:           err,
		StartedAt:     s.startedAt,
		FinishedAt:    time.Now(),
	}
}

// publishLocked keeps only the latest unread result.
func (c *Controller) publishLocked(res Result) {
	select {
	case c.results <- res:
		return
	default:
	}
	select {
	case <-c.results:
	default:
	}
	select {
	case c.results <- res:
	default:
	}
}

func run(fn func()) {
	if fn != nil {
		fn()
	}
}
