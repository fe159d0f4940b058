package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/scoring"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
)

type staticTranscriber struct {
	text string
}

func (s staticTranscriber) Transcribe(context.Context, clip.Clip) (string, error) {
	return s.text, nil
}

type failingScorer struct{}

func (failingScorer) IsCorrect(context.Context, string, string) (bool, error) {
	return false, errors.New("offline")
}

func (failingScorer) Score(context.Context, string, string, clip.Clip) (int, error) {
	return 0, errors.New("offline")
}

func testTiming() session.Timing {
	return session.Timing{
		PollInterval:     20 * time.Millisecond,
		FastPollInterval: 10 * time.Millisecond,
		Cooldown:         40 * time.Millisecond,
		AnalysisTimeout:  time.Second,
		ShortClipBytes:   32,
	}
}

func newTestServer(t *testing.T, heard string) (*Server, string) {
	t.Helper()

	local := scoring.Local{PassThreshold: 70}
	srv := New(Config{
		Options: session.Options{TargetPhrase: "good morning", ContinuousAnalysis: true, DisableWhileNarrating: true},
		Deps: session.Deps{
			Transcriber: staticTranscriber{text: heard},
			Judge:       local,
			Scorer:      local,
			Timing:      testTiming(),
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv, ln.Addr().String()
}

func dialPractice(t *testing.T, addr string, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/practice?"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil returns messages up to and including the first of the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) []map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var seen []map[string]any
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		seen = append(seen, msg)
		if msg["type"] == wantType {
			return seen
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := New(Config{})

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"status":"ok"`)
	require.Contains(t, string(body), "elora")
}

func TestScoreEndpoint(t *testing.T) {
	local := scoring.Local{}
	srv := New(Config{Deps: session.Deps{Judge: local, Scorer: local}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/score", strings.NewReader(`{"target":"Good morning","transcript":"good morning"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got scoreResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.True(t, got.Correct)
	require.Equal(t, 100, got.Score)
}

func TestScoreEndpointErrors(t *testing.T) {
	tests := []struct {
		name string
		deps session.Deps
		body string
		code int
	}{
		{name: "bad json", deps: session.Deps{Judge: scoring.Local{}, Scorer: scoring.Local{}}, body: `{`, code: http.StatusBadRequest},
		{name: "missing target", deps: session.Deps{Judge: scoring.Local{}, Scorer: scoring.Local{}}, body: `{"transcript":"hi"}`, code: http.StatusBadRequest},
		{name: "no scorer", body: `{"target":"hi"}`, code: http.StatusServiceUnavailable},
		{name: "scorer failure", deps: session.Deps{Judge: failingScorer{}, Scorer: failingScorer{}}, body: `{"target":"hi"}`, code: http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := New(Config{Deps: tc.deps})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/score", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := srv.App().Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.code, resp.StatusCode)
		})
	}
}

func TestPracticeRequiresUpgrade(t *testing.T) {
	srv := New(Config{})
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/ws/practice", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestPracticeSessionSucceeds(t *testing.T) {
	_, addr := newTestServer(t, "Good morning!")
	conn := dialPractice(t, addr, "")

	require.NoError(t, conn.WriteJSON(controlMessage{Type: controlStart}))
	readUntil(t, conn, "status")

	for range 4 {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 64)))
	}

	msgs := readUntil(t, conn, messageResult)
	result := msgs[len(msgs)-1]
	require.Equal(t, string(session.OutcomeSuccess), result["outcome"])
	require.Equal(t, "good morning", result["target"])
	require.EqualValues(t, 100, result["score"])

	var sawSuccess bool
	for _, m := range msgs {
		if m["type"] == "status" && m["status"] == string(session.StatusSuccess) {
			sawSuccess = true
		}
	}
	require.True(t, sawSuccess)
}

func TestPracticeStartWithPhraseAndRejection(t *testing.T) {
	_, addr := newTestServer(t, "banana")
	conn := dialPractice(t, addr, "max_seconds=1")

	require.NoError(t, conn.WriteJSON(controlMessage{Type: controlStart, Phrase: "thank you"}))
	for range 4 {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 64)))
	}

	msgs := readUntil(t, conn, "status")
	require.Equal(t, string(session.StatusListening), msgs[len(msgs)-1]["status"])

	var tryAgain bool
	for !tryAgain {
		msg := readUntil(t, conn, "status")
		tryAgain = msg[len(msg)-1]["status"] == string(session.StatusTryAgain)
	}

	require.NoError(t, conn.WriteJSON(controlMessage{Type: controlStop}))
	msgs = readUntil(t, conn, messageResult)
	result := msgs[len(msgs)-1]
	require.Equal(t, string(session.OutcomeStopped), result["outcome"])
	require.Equal(t, "thank you", result["target"])
}

func TestPracticeNarrationGatesStart(t *testing.T) {
	_, addr := newTestServer(t, "good morning")
	conn := dialPractice(t, addr, "")

	require.NoError(t, conn.WriteJSON(controlMessage{Type: controlNarration, Playing: true}))
	require.NoError(t, conn.WriteJSON(controlMessage{Type: controlStart}))

	msgs := readUntil(t, conn, messageError)
	require.Equal(t, session.ErrNarrationPlaying.Error(), msgs[len(msgs)-1]["message"])
}

func TestPracticeRejectsUnknownControl(t *testing.T) {
	_, addr := newTestServer(t, "")
	conn := dialPractice(t, addr, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nope")))
	msgs := readUntil(t, conn, messageError)
	require.Equal(t, "invalid control message", msgs[len(msgs)-1]["message"])

	require.NoError(t, conn.WriteJSON(controlMessage{Type: "dance"}))
	msgs = readUntil(t, conn, messageError)
	require.Contains(t, msgs[len(msgs)-1]["message"], "dance")
}

func TestStreamMicrophone(t *testing.T) {
	mic := &streamMicrophone{}
	require.False(t, mic.feed([]byte{1}))

	first, err := mic.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, mic.feed([]byte{1, 2}))
	require.Equal(t, []byte{1, 2}, <-first.Chunks())

	second, err := mic.Acquire(context.Background())
	require.NoError(t, err)
	_, open := <-first.Chunks()
	require.False(t, open)

	mic.close()
	_, open = <-second.Chunks()
	require.False(t, open)
	require.False(t, mic.feed([]byte{1}))

	_, err = mic.Acquire(context.Background())
	require.ErrorIs(t, err, session.ErrMicrophoneUnavailable)
}
