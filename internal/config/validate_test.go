package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "loud" }, want: "log_level"},
		{name: "negative max", mutate: func(c *Config) { c.Practice.MaxSeconds = -1 }, want: "max_seconds"},
		{name: "poll", mutate: func(c *Config) { c.Practice.PollMS = 0 }, want: "poll_ms"},
		{name: "strict below skip", mutate: func(c *Config) { c.Practice.StrictMinLength = 1 }, want: "strict_min_length"},
		{name: "sample rate", mutate: func(c *Config) { c.Audio.SampleRate = 0 }, want: "audio.sample_rate"},
		{name: "recognizer url", mutate: func(c *Config) {
			c.Recognizer.Enable = true
			c.Recognizer.URL = "https://example.test"
		}, want: "recognizer.url"},
		{name: "scoring backend", mutate: func(c *Config) { c.Scoring.Backend = "cloud" }, want: "scoring.backend"},
		{name: "grpc endpoint", mutate: func(c *Config) {
			c.Scoring.Backend = ScoringBackendGRPC
			c.Scoring.GRPCEndpoint = " "
		}, want: "grpc_endpoint"},
		{name: "threshold", mutate: func(c *Config) { c.Scoring.PassThreshold = 101 }, want: "pass_threshold"},
		{name: "format", mutate: func(c *Config) { c.Feedback.Format = "xml" }, want: "feedback.format"},
		{name: "listen", mutate: func(c *Config) { c.Server.Listen = "" }, want: "server.listen"},
		{name: "unknown vocab set", mutate: func(c *Config) { c.Vocab.GlobalSets = []string{"missing"} }, want: "unknown set"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateWarnsWhenNothingCanHear(t *testing.T) {
	cfg := Default()
	cfg.Transcription.Enable = false
	cfg.Recognizer.Enable = false

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "nothing will be heard")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)
}

func TestBuildSpeechPhrasesSortedAndHighestBoostWins(t *testing.T) {
	cfg := Default()
	cfg.Vocab.GlobalSets = []string{"core", "lesson"}
	cfg.Vocab.Sets["core"] = VocabSet{Boost: 10, Phrases: []string{"beta", "alpha"}}
	cfg.Vocab.Sets["lesson"] = VocabSet{Boost: 20, Phrases: []string{"alpha", "gamma"}}

	phrases, warnings, err := BuildSpeechPhrases(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, []SpeechPhrase{
		{Phrase: "alpha", Boost: 20},
		{Phrase: "beta", Boost: 10},
		{Phrase: "gamma", Boost: 20},
	}, phrases)
}

func TestBuildSpeechPhrasesRespectsMax(t *testing.T) {
	cfg := Default()
	cfg.Vocab.MaxPhrases = 1
	cfg.Vocab.GlobalSets = []string{"core"}
	cfg.Vocab.Sets["core"] = VocabSet{Boost: 1, Phrases: []string{"a", "b"}}

	_, _, err := BuildSpeechPhrases(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_phrases")
}
