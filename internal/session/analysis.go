package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/fsm"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/transcript"
)

// verdict is the outcome of one batch analysis before scoring.
type verdict int

const (
	verdictDefer verdict = iota
	verdictNothingHeard
	verdictTooShort
	verdictAccepted
)

// decide picks the candidate for one analysis. The batch transcript wins; the
// running streaming transcript fills in when the batch one is empty. An empty
// result on a short clip defers instead of reporting silence, unless final.
func decide(batch string, streaming string, clipBytes int, shortClipBytes int, rule transcript.Rule, final bool) (transcript.Candidate, string, verdict) {
	cand := transcript.Candidate{
		Source:    transcript.SourceBatch,
		Text:      strings.TrimSpace(batch),
		Final:     true,
		Timestamp: time.Now(),
	}
	if transcript.Normalize(cand.Text) == "" {
		cand.Source = transcript.SourceStreaming
		cand.Text = strings.TrimSpace(streaming)
	}

	normalized, ok := rule.Accept(cand)
	switch {
	case ok:
		return cand, normalized, verdictAccepted
	case normalized != "":
		return cand, normalized, verdictTooShort
	case clipBytes < shortClipBytes && !final:
		return cand, "", verdictDefer
	default:
		return cand, "", verdictNothingHeard
	}
}

// maxPendingAnalyses bounds overlapping batch submissions per session.
const maxPendingAnalyses = 3

// poll runs one batch analysis tick. Submissions may overlap up to
// maxPendingAnalyses; only the newest resolved one is acted on.
func (c *Controller) poll(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sessionLocked(gen)
	if s == nil || s.finalizing || s.analyzing >= maxPendingAnalyses {
		return
	}
	switch c.state {
	case fsm.StateRecording:
		if err := c.transitionLocked(fsm.EventPoll); err != nil {
			return
		}
		c.emitLocked(Status{Kind: StatusChecking, SessionID: s.id})
	case fsm.StateAnalyzing:
		if err := c.transitionLocked(fsm.EventPoll); err != nil {
			return
		}
	default:
		return
	}
	c.launchAnalysisLocked(s)
}

func (c *Controller) launchAnalysisLocked(s *activeSession) {
	s.polls++
	s.analyzing++
	s.submitted++
	gen, seq, final := s.gen, s.submitted, s.finalizing
	snapshot := s.buffer.snapshot(c.timing.SampleRate, c.timing.Channels)
	if !s.scope.Go(func(ctx context.Context) { c.analyze(ctx, gen, seq, final, snapshot) }) {
		s.analyzing--
	}
}

func (c *Controller) analyze(ctx context.Context, gen uint64, seq int, final bool, snapshot clip.Clip) {
	batch := c.transcribe(ctx, snapshot)

	c.mu.Lock()
	s := c.sessionLocked(gen)
	if s == nil {
		c.mu.Unlock()
		return
	}
	s.analyzing--
	if seq < s.resolved {
		c.logger.Debug("dropping superseded analysis", "session_id", s.id, "seq", seq, "resolved", s.resolved)
		post := c.settleLocked(s)
		c.mu.Unlock()
		run(post)
		return
	}
	s.resolved = seq

	cand, normalized, v := decide(batch, s.heard, snapshot.Len(), c.timing.ShortClipBytes, c.rule, final)
	c.logger.Debug("analysis verdict",
		"session_id", s.id,
		"seq", seq,
		"source", string(cand.Source),
		"normalized", normalized,
		"clip_bytes", snapshot.Len(),
		"verdict", int(v),
	)

	var post func()
	switch v {
	case verdictAccepted:
		post = c.considerLocked(s, cand, normalized)
		if c.active == s {
			post = chain(post, c.settleLocked(s))
		}
	case verdictTooShort:
		c.emitLocked(Status{Kind: StatusTryAgain, SessionID: s.id, Heard: cand.Text})
		post = c.settleLocked(s)
	case verdictNothingHeard:
		c.emitLocked(Status{Kind: StatusNothingHeard, SessionID: s.id})
		post = c.settleLocked(s)
	default:
		c.emitLocked(Status{Kind: StatusListening, SessionID: s.id})
		post = c.settleLocked(s)
	}
	c.mu.Unlock()
	run(post)
}

func (c *Controller) transcribe(ctx context.Context, snapshot clip.Clip) string {
	if snapshot.Empty() {
		return ""
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timing.AnalysisTimeout)
	defer cancel()

	text, err := c.transcriber.Transcribe(callCtx, snapshot)
	if err != nil {
		if !errors.Is(err, ErrPipelineUnavailable) && ctx.Err() == nil {
			c.logger.Warn("batch transcription failed", "clip_bytes", snapshot.Len(), "error", err.Error())
		}
		return ""
	}
	return text
}

// considerLocked acts on an accepted candidate. Skip mode succeeds at once;
// otherwise the judge runs unless another scoring call is in flight.
func (c *Controller) considerLocked(s *activeSession, cand transcript.Candidate, normalized string) func() {
	if c.opts.SkipPronunciationCheck {
		return c.succeedLocked(s, cand, 100)
	}
	if s.scoring > 0 && !c.opts.Immediate {
		c.logger.Debug("scoring in flight; dropping candidate", "session_id", s.id, "source", string(cand.Source))
		return nil
	}

	s.scoring++
	gen := s.gen
	snapshot := s.buffer.snapshot(c.timing.SampleRate, c.timing.Channels)
	target := s.target
	if !s.scope.Go(func(ctx context.Context) { c.score(ctx, gen, target, cand, normalized, snapshot) }) {
		s.scoring--
	}
	return nil
}

func (c *Controller) score(ctx context.Context, gen uint64, target string, cand transcript.Candidate, normalized string, snapshot clip.Clip) {
	correct, score, err := c.evaluate(ctx, target, normalized, snapshot)

	c.mu.Lock()
	s := c.sessionLocked(gen)
	if s == nil {
		c.mu.Unlock()
		return
	}
	s.scoring--
	if err != nil {
		c.logger.Warn("pronunciation scoring failed", "session_id", s.id, "error", err.Error())
	}

	var post func()
	if correct {
		post = c.succeedLocked(s, cand, score)
	} else {
		c.emitLocked(Status{Kind: StatusTryAgain, SessionID: s.id, Heard: cand.Text})
		post = c.settleLocked(s)
	}
	c.mu.Unlock()
	run(post)
}

// evaluate asks the judge and then the scorer. Any failure counts as not yet
// correct so the session keeps listening.
func (c *Controller) evaluate(ctx context.Context, target string, normalized string, snapshot clip.Clip) (bool, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timing.AnalysisTimeout)
	defer cancel()

	correct, err := c.judge.IsCorrect(callCtx, target, normalized)
	if err != nil || !correct {
		return false, 0, err
	}
	score, err := c.scorer.Score(callCtx, target, normalized, snapshot)
	if err != nil {
		return false, 0, err
	}
	return true, min(max(score, 0), 100), nil
}

// settleLocked returns to recording once no analysis or scoring is pending.
// A finalizing session ends instead.
func (c *Controller) settleLocked(s *activeSession) func() {
	if s.analyzing > 0 || s.scoring > 0 {
		return nil
	}
	if s.finalizing {
		c.detachLocked(fsm.EventStop)
		c.publishLocked(c.resultLocked(s, OutcomeStopped, nil))
		return func() { c.teardown(s) }
	}
	if c.state == fsm.StateAnalyzing {
		_ = c.transitionLocked(fsm.EventReject)
	}
	return nil
}

// succeedLocked finishes the session for the first accepted candidate. The
// generation bump in detachLocked makes every later candidate stale.
func (c *Controller) succeedLocked(s *activeSession, cand transcript.Candidate, score int) func() {
	snapshot := s.buffer.snapshot(c.timing.SampleRate, c.timing.Channels)
	c.detachLocked(fsm.EventAccept)

	res := c.resultLocked(s, OutcomeSuccess, nil)
	res.Score = score
	res.Transcript = cand.Text
	res.Source = cand.Source
	c.heard = cand.Text
	c.emitLocked(Status{Kind: StatusSuccess, SessionID: s.id, Heard: cand.Text, Score: score})
	c.publishLocked(res)

	completion := Completion{
		SessionID:  s.id,
		Target:     s.target,
		Clip:       snapshot,
		Score:      score,
		Transcript: cand.Text,
		Source:     cand.Source,
	}
	onComplete := c.opts.OnComplete
	return func() {
		c.teardown(s)
		c.logger.Info("practice attempt accepted",
			"session_id", completion.SessionID,
			"source", string(completion.Source),
			"score", completion.Score,
			"clip_bytes", completion.Clip.Len(),
		)
		if onComplete != nil {
			onComplete(completion)
		}
	}
}

func chain(fns ...func()) func() {
	return func() {
		for _, fn := range fns {
			run(fn)
		}
	}
}
