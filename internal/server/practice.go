package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/feedback"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/narration"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

// handlePractice runs one controller per connection. The connection owns its
// own narration signal; clients report narration with control messages.
func (s *Server) handlePractice(ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := s.logger.With("remote", ws.RemoteAddr().String())
	out := make(chan any, 64)
	mic := &streamMicrophone{}

	deps := s.cfg.Deps
	deps.Microphone = mic
	deps.Feedback = socketFeedback{out: out, renderer: feedback.NewRenderer()}
	deps.Narration = narration.NewSignal()

	ctrl := session.NewController(logger, deps, s.connectionOptions(ws))
	if err := ctrl.Open(ctx); err != nil {
		logger.Error("open practice controller", "error", err.Error())
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop(ctx, ws, out)
	}()
	go func() {
		defer wg.Done()
		for {
			res, err := ctrl.Await(ctx)
			if err != nil {
				return
			}
			enqueue(ctx, out, newResultMessage(res))
		}
	}()

	logger.Info("practice client connected")
	s.readLoop(ctx, ws, ctrl, mic, out)

	mic.close()
	ctrl.Close()
	cancel()
	wg.Wait()
	logger.Info("practice client disconnected")
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, ctrl *session.Controller, mic *streamMicrophone, out chan<- any) {
	for {
		kind, payload, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("practice read ended", "error", err.Error())
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			mic.feed(payload)
		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				enqueue(ctx, out, errorMessage{Type: messageError, Message: "invalid control message"})
				continue
			}
			if err := applyControl(ctx, ctrl, msg); err != nil {
				enqueue(ctx, out, errorMessage{Type: messageError, Message: err.Error()})
			}
		}
	}
}

func applyControl(ctx context.Context, ctrl *session.Controller, msg controlMessage) error {
	switch msg.Type {
	case controlStart:
		if msg.Phrase != "" {
			if err := ctrl.SetTarget(msg.Phrase); err != nil {
				return err
			}
		}
		return ctrl.Start(ctx)
	case controlStop:
		return ctrl.Stop()
	case controlNarration:
		ctrl.Narration().Set(msg.Playing)
		return nil
	default:
		return errors.New("unknown control message type " + msg.Type)
	}
}

func (s *Server) writeLoop(ctx context.Context, ws *websocket.Conn, out <-chan any) {
	for {
		select {
		case <-ctx.Done():
			s.flush(ws, out)
			return
		case msg := <-out:
			if err := ws.WriteJSON(msg); err != nil {
				s.logger.Debug("practice write failed", "error", err.Error())
				return
			}
		}
	}
}

// flush writes whatever is already queued, best effort, before the socket closes.
func (s *Server) flush(ws *websocket.Conn, out <-chan any) {
	for {
		select {
		case msg := <-out:
			if err := ws.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// enqueue blocks for results and errors, which must not be dropped, until ctx ends.
func enqueue(ctx context.Context, out chan<- any, msg any) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}
