package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/audio"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/cli"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/config"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/feedback"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/recognizer"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/scoring"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/session"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/whisper"
)

// runtimeDeps bundles session collaborators plus the teardown of the ones
// holding connections or background workers.
type runtimeDeps struct {
	session.Deps
	closers []func()
}

func (d runtimeDeps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps wires analysis backends from config. A missing transcription key
// or an unreachable scoring service degrades to the remaining backends
// instead of failing the command.
func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) runtimeDeps {
	var deps runtimeDeps
	deps.Timing = timingFromConfig(cfg)

	if cfg.Transcription.Enable {
		t, err := whisper.New(whisper.Config{
			APIKey:   cfg.Transcription.APIKey(),
			BaseURL:  cfg.Transcription.BaseURL,
			Model:    cfg.Transcription.Model,
			Language: cfg.Transcription.Language,
			Timeout:  cfg.Transcription.Timeout(),
		})
		if err != nil {
			logger.Warn("batch transcription disabled", "error", err.Error(), "api_key_env", cfg.Transcription.APIKeyEnv)
		} else {
			deps.Transcriber = t
		}
	}

	if cfg.Recognizer.Enable {
		deps.Recognizer = recognizer.New(recognizerConfig(cfg, logger))
	}

	local := scoring.Local{PassThreshold: cfg.Scoring.PassThreshold}
	deps.Judge = local
	deps.Scorer = local
	if cfg.Scoring.Backend == config.ScoringBackendGRPC {
		remote, err := scoring.DialRemote(ctx, scoring.RemoteConfig{
			Endpoint:    cfg.Scoring.GRPCEndpoint,
			DialTimeout: cfg.Scoring.DialTimeout(),
		})
		if err != nil {
			logger.Warn("grpc scoring unavailable; using local similarity", "endpoint", cfg.Scoring.GRPCEndpoint, "error", err.Error())
		} else {
			deps.Judge = remote
			deps.Scorer = remote
			deps.closers = append(deps.closers, func() { _ = remote.Close() })
		}
	}

	return deps
}

func recognizerConfig(cfg config.Config, logger *slog.Logger) recognizer.Config {
	phrases, warnings, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		logger.Warn("recognizer keywords disabled", "error", err.Error())
	}
	for _, w := range warnings {
		logger.Warn("vocab warning", "message", w.Message)
	}
	keywords := make([]recognizer.Keyword, 0, len(phrases))
	for _, p := range phrases {
		keywords = append(keywords, recognizer.Keyword{Phrase: p.Phrase, Boost: p.Boost})
	}
	logger.Debug("recognizer keyword plan", "keyword_count", len(keywords))

	return recognizer.Config{
		URL:            cfg.Recognizer.URL,
		Token:          cfg.Recognizer.Token(),
		Language:       cfg.Recognizer.Language,
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       1,
		InterimResults: cfg.Recognizer.InterimResults,
		Keywords:       keywords,
		DialTimeout:    cfg.Recognizer.DialTimeout(),
	}
}

func timingFromConfig(cfg config.Config) session.Timing {
	p := cfg.Practice
	return session.Timing{
		PollInterval:     time.Duration(p.PollMS) * time.Millisecond,
		FastPollInterval: time.Duration(p.FastPollMS) * time.Millisecond,
		Cooldown:         time.Duration(p.CooldownMS) * time.Millisecond,
		AnalysisTimeout:  time.Duration(p.AnalysisTimeoutMS) * time.Millisecond,
		ShortClipBytes:   p.ShortClipBytes,
		StrictMinLength:  p.StrictMinLength,
		SkipMinLength:    p.SkipMinLength,
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         1,
	}
}

// localMicrophone captures from the configured Pulse source.
func localMicrophone(cfg config.AudioConfig, logger *slog.Logger) *audio.Microphone {
	return &audio.Microphone{
		Input:    cfg.Input,
		Fallback: cfg.Fallback,
		Format:   audio.Format{SampleRate: cfg.SampleRate, ChunkMS: cfg.ChunkMS},
		Logger:   logger,
	}
}

// localFeedback fans session updates out to stdout, cues, and notifications.
func localFeedback(cfg config.FeedbackConfig, stdout io.Writer, logger *slog.Logger) (session.Feedback, func()) {
	sinks := feedback.Multi{feedback.NewConsole(stdout, cfg.Format)}
	var closers []func()
	if cfg.SoundEnable {
		cues := feedback.NewCues(cfg, logger)
		sinks = append(sinks, cues)
		closers = append(closers, cues.Wait)
	}
	if cfg.Desktop {
		desktop := feedback.NewDesktop(cfg.DesktopAppName, logger)
		sinks = append(sinks, desktop)
		closers = append(closers, desktop.Close)
	}
	return sinks, func() {
		for _, fn := range closers {
			fn()
		}
	}
}

// practiceOptions layers CLI overrides on the configured practice defaults.
func practiceOptions(cfg config.PracticeConfig, parsed cli.Parsed) session.Options {
	opts := session.Options{
		TargetPhrase:           cfg.Phrase,
		MaxDuration:            cfg.MaxDuration(),
		ContinuousAnalysis:     cfg.ContinuousAnalysis,
		DisableWhileNarrating:  cfg.DisableWhileNarrating,
		SkipPronunciationCheck: cfg.SkipPronunciationCheck,
		AutoStart:              cfg.AutoStart,
		Immediate:              cfg.Immediate,
	}
	if parsed.Phrase != "" {
		opts.TargetPhrase = parsed.Phrase
	}
	if parsed.MaxSeconds >= 0 {
		opts.MaxDuration = time.Duration(parsed.MaxSeconds) * time.Second
	}
	if parsed.SkipCheck {
		opts.SkipPronunciationCheck = true
	}
	if parsed.Immediate {
		opts.Immediate = true
	}
	return opts
}
