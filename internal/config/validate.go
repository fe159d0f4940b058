package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	p := cfg.Practice
	if p.MaxSeconds < 0 {
		return nil, fmt.Errorf("practice.max_seconds must be >= 0")
	}
	if p.PollMS <= 0 || p.FastPollMS <= 0 {
		return nil, fmt.Errorf("practice.poll_ms and practice.fast_poll_ms must be > 0")
	}
	if p.CooldownMS < 0 {
		return nil, fmt.Errorf("practice.cooldown_ms must be >= 0")
	}
	if p.AnalysisTimeoutMS <= 0 {
		return nil, fmt.Errorf("practice.analysis_timeout_ms must be > 0")
	}
	if p.ShortClipBytes < 0 {
		return nil, fmt.Errorf("practice.short_clip_bytes must be >= 0")
	}
	if p.SkipMinLength < 1 {
		return nil, fmt.Errorf("practice.skip_min_length must be >= 1")
	}
	if p.StrictMinLength < p.SkipMinLength {
		return nil, fmt.Errorf("practice.strict_min_length must be >= practice.skip_min_length")
	}
	if p.Immediate && p.SkipPronunciationCheck {
		warnings = append(warnings, Warning{Message: "practice.immediate has no effect when practice.skip_pronunciation_check=true"})
	}

	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.ChunkMS <= 0 {
		return nil, fmt.Errorf("audio.chunk_ms must be > 0")
	}

	if cfg.Transcription.Enable {
		if strings.TrimSpace(cfg.Transcription.Model) == "" {
			return nil, fmt.Errorf("transcription.model must not be empty")
		}
		if strings.TrimSpace(cfg.Transcription.APIKeyEnv) == "" {
			return nil, fmt.Errorf("transcription.api_key_env must not be empty")
		}
		if cfg.Transcription.TimeoutMS <= 0 {
			return nil, fmt.Errorf("transcription.timeout_ms must be > 0")
		}
	}

	if cfg.Recognizer.Enable {
		u, err := url.Parse(strings.TrimSpace(cfg.Recognizer.URL))
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return nil, fmt.Errorf("recognizer.url must be a ws:// or wss:// URL")
		}
		if cfg.Recognizer.DialTimeoutMS <= 0 {
			return nil, fmt.Errorf("recognizer.dial_timeout_ms must be > 0")
		}
	}
	if !cfg.Transcription.Enable && !cfg.Recognizer.Enable {
		warnings = append(warnings, Warning{Message: "transcription and recognizer are both disabled; nothing will be heard"})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Scoring.Backend)) {
	case ScoringBackendLocal:
	case ScoringBackendGRPC:
		if strings.TrimSpace(cfg.Scoring.GRPCEndpoint) == "" {
			return nil, fmt.Errorf("scoring.grpc_endpoint must not be empty when scoring.backend=grpc")
		}
		if cfg.Scoring.DialTimeoutMS <= 0 {
			return nil, fmt.Errorf("scoring.dial_timeout_ms must be > 0")
		}
	default:
		return nil, fmt.Errorf("scoring.backend must be one of: local, grpc")
	}
	if cfg.Scoring.PassThreshold < 0 || cfg.Scoring.PassThreshold > 100 {
		return nil, fmt.Errorf("scoring.pass_threshold must be within 0..100")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Feedback.Format)) {
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("feedback.format must be one of: text, json")
	}
	if cfg.Feedback.Desktop && strings.TrimSpace(cfg.Feedback.DesktopAppName) == "" {
		return nil, fmt.Errorf("feedback.desktop_app_name must not be empty when feedback.desktop=true")
	}

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return nil, fmt.Errorf("server.listen must not be empty")
	}
	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

// ParseLevel maps log_level to a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic keyword boosts.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if existing, exists := selected[phrase]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
					selected[phrase] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[phrase] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}

	sort.Slice(phrases, func(i, j int) bool {
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}
