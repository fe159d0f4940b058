// Package whisper adapts an OpenAI-compatible transcription endpoint to the
// batch transcriber used by practice sessions.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
)

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("transcription api key is not configured")

// Config controls the transcription endpoint.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Prompt   string
	Timeout  time.Duration
}

// Transcriber uploads finished clips as WAV and returns the recognized text.
type Transcriber struct {
	client  *openai.Client
	model   string
	lang    string
	prompt  string
	timeout time.Duration
}

// New builds a Transcriber. BaseURL may point at any OpenAI-compatible server.
func New(cfg Config) (*Transcriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		lang:    strings.TrimSpace(cfg.Language),
		prompt:  cfg.Prompt,
		timeout: cfg.Timeout,
	}, nil
}

// Transcribe encodes c as WAV and submits it in one request.
func (t *Transcriber) Transcribe(ctx context.Context, c clip.Clip) (string, error) {
	if c.Empty() {
		return "", nil
	}
	wav, err := c.WAV()
	if err != nil {
		return "", err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "clip.wav",
		Reader:   bytes.NewReader(wav),
		Prompt:   t.prompt,
		Language: t.lang,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe clip: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
