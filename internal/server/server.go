// Package server exposes practice sessions to remote clients over a websocket
// and offers an HTTP scoring endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/version"
)

// Config wires the practice server.
type Config struct {
	// Options is the template for every connection's controller.
	Options session.Options
	// Deps supplies transcription, recognition, and scoring. Microphone,
	// Feedback, and Narration are replaced per connection.
	Deps   session.Deps
	Logger *slog.Logger
}

// Server hosts /healthz, /api/v1/score, and the /ws/practice websocket.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger
}

// New builds the fiber app and registers routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		AppName:               "elora",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	s := &Server{app: app, cfg: cfg, logger: logger}

	app.Use(recover.New())
	app.Use(s.logRequest)

	app.Get("/healthz", s.handleHealth)
	app.Post("/api/v1/score", s.handleScore)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/practice", websocket.New(s.handlePractice))

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) logRequest(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()
	s.logger.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return err
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": version.String()})
}

type scoreRequest struct {
	Target     string `json:"target"`
	Transcript string `json:"transcript"`
}

type scoreResponse struct {
	Correct bool `json:"correct"`
	Score   int  `json:"score"`
}

// handleScore judges and scores a transcript without audio.
func (s *Server) handleScore(c *fiber.Ctx) error {
	var req scoreRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}
	req.Target = strings.TrimSpace(req.Target)
	if req.Target == "" {
		return fiber.NewError(fiber.StatusBadRequest, "target is required")
	}
	if s.cfg.Deps.Judge == nil || s.cfg.Deps.Scorer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, session.ErrScorerUnavailable.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	correct, err := s.cfg.Deps.Judge.IsCorrect(ctx, req.Target, req.Transcript)
	if err != nil {
		s.logger.Warn("score endpoint judge failed", "error", err.Error())
		return fiber.NewError(fiber.StatusBadGateway, "judge failed")
	}
	score, err := s.cfg.Deps.Scorer.Score(ctx, req.Target, req.Transcript, clip.Clip{})
	if err != nil {
		s.logger.Warn("score endpoint scorer failed", "error", err.Error())
		return fiber.NewError(fiber.StatusBadGateway, "scorer failed")
	}
	return c.JSON(scoreResponse{Correct: correct, Score: score})
}

// connectionOptions applies per-connection query overrides to the template.
func (s *Server) connectionOptions(ws *websocket.Conn) session.Options {
	opts := s.cfg.Options
	opts.OnComplete = nil
	opts.AutoStart = false
	if phrase := strings.TrimSpace(ws.Query("phrase")); phrase != "" {
		opts.TargetPhrase = phrase
	}
	if raw := ws.Query("skip_check"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			opts.SkipPronunciationCheck = v
		}
	}
	if raw := ws.Query("immediate"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			opts.Immediate = v
		}
	}
	if raw := ws.Query("max_seconds"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			opts.MaxDuration = time.Duration(v) * time.Second
		}
	}
	return opts
}
