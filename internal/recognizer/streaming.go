// Package recognizer streams captured PCM to a Deepgram-compatible websocket
// listener and surfaces interim and final transcripts as candidates.
package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/transcript"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/version"
)

// ErrSendClosed is returned by SendAudio after the stream stopped accepting audio.
var ErrSendClosed = errors.New("recognizer audio stream is closed")

// Keyword is one boosted phrase sent with the listen request.
type Keyword struct {
	Phrase string
	Boost  float32
}

// Config controls the websocket listener.
type Config struct {
	URL            string
	Token          string
	Language       string
	SampleRate     int
	Channels       int
	InterimResults bool
	Keywords       []Keyword
	DialTimeout    time.Duration
}

// Client opens one websocket per practice session.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
}

// New returns a Client with defaults applied.
func New(cfg Config) *Client {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// Listen dials the recognizer and starts the read and write loops. The stream
// closes itself when ctx ends.
func (c *Client) Listen(ctx context.Context) (session.RecognizerStream, error) {
	wsURL, err := buildListenURL(c.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("User-Agent", version.UserAgent())
	if token := strings.TrimSpace(c.cfg.Token); token != "" {
		headers.Set("Authorization", "Token "+token)
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect recognizer websocket: %w", err)
	}

	s := &stream{
		conn:    conn,
		results: make(chan transcript.Candidate, 64),
		audio:   make(chan []byte, 32),
		done:    make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.results)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

type stream struct {
	conn *websocket.Conn

	results chan transcript.Candidate
	audio   chan []byte
	done    chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closing       atomic.Bool
	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return ErrSendClosed
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return ErrSendClosed
	}
}

func (s *stream) Results() <-chan transcript.Candidate {
	return s.results
}

// closeSend flushes queued audio and asks the server to finalize.
func (s *stream) closeSend() {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
}

// Close tears down the socket, stops sending, and waits for both loops.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		// Closing the socket first unblocks a writer stuck on a stalled peer.
		_ = s.conn.Close()
		s.closeSend()
	})
	<-s.done
	return s.waitErr()
}

func (s *stream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	if err == nil || s.closing.Load() {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return
		}
	}
	if errors.Is(err, net.ErrClosed) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			s.drain()
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("close recognizer stream: %w", err))
	}
}

// drain discards audio queued after a write failure so SendAudio never blocks.
func (s *stream) drain() {
	go func() {
		for range s.audio {
		}
	}()
}

func (s *stream) readLoop() {
	defer s.wg.Done()
	// Once the server side is gone there is nobody left to send audio to.
	defer s.closeSend()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read recognizer event: %w", err))
			return
		}

		var msg listenResponse
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		if strings.EqualFold(msg.Type, "Error") {
			text := strings.TrimSpace(msg.Message)
			if text == "" {
				text = "recognizer returned an unknown error"
			}
			s.setErr(errors.New(text))
			return
		}

		text, confidence := extractTranscript(msg)
		if text == "" {
			continue
		}
		s.emit(transcript.Candidate{
			Source:     transcript.SourceStreaming,
			Text:       text,
			Confidence: confidence,
			Final:      msg.IsFinal || msg.SpeechFinal,
			Timestamp:  time.Now(),
		})
	}
}

// finalEmitTimeout bounds how long a final result waits for a slow consumer.
const finalEmitTimeout = 250 * time.Millisecond

// emit drops interim candidates when the consumer is behind since later
// partials supersede them. Finals feed acceptance, so they wait briefly.
func (s *stream) emit(c transcript.Candidate) {
	select {
	case s.results <- c:
		return
	default:
	}
	if !c.Final {
		return
	}

	timer := time.NewTimer(finalEmitTimeout)
	defer timer.Stop()
	select {
	case s.results <- c:
	case <-timer.C:
	}
}

type alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(msg listenResponse) (string, float64) {
	if len(msg.Channel.Alternatives) > 0 {
		alt := msg.Channel.Alternatives[0]
		if text := strings.TrimSpace(alt.Transcript); text != "" {
			return text, alt.Confidence
		}
	}
	if len(msg.Results.Channels) > 0 && len(msg.Results.Channels[0].Alternatives) > 0 {
		alt := msg.Results.Channels[0].Alternatives[0]
		return strings.TrimSpace(alt.Transcript), alt.Confidence
	}
	return "", 0
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.URL)
	if base == "" {
		return "", errors.New("recognizer url is empty")
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	listenURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid recognizer url: %w", err)
	}
	if listenURL.Scheme != "ws" && listenURL.Scheme != "wss" {
		return "", fmt.Errorf("recognizer url scheme %q is not ws or wss", listenURL.Scheme)
	}

	query := listenURL.Query()
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	query.Set("channels", strconv.Itoa(cfg.Channels))
	query.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	if lang := strings.TrimSpace(cfg.Language); lang != "" {
		query.Set("language", lang)
	}
	for _, kw := range cfg.Keywords {
		phrase := strings.TrimSpace(kw.Phrase)
		if phrase == "" {
			continue
		}
		query.Add("keywords", phrase+":"+strconv.FormatFloat(float64(kw.Boost), 'g', -1, 32))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
