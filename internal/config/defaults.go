package config

const (
	ScoringBackendLocal = "local"
	ScoringBackendGRPC  = "grpc"

	FormatText = "text"
	FormatJSON = "json"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Practice: PracticeConfig{
			ContinuousAnalysis:    true,
			DisableWhileNarrating: true,
			AutoStart:             true,
			PollMS:                2000,
			FastPollMS:            1000,
			CooldownMS:            2000,
			AnalysisTimeoutMS:     15000,
			ShortClipBytes:        16000,
			StrictMinLength:       3,
			SkipMinLength:         2,
		},
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
			ChunkMS:    100,
		},
		Transcription: TranscriptionConfig{
			Enable:    true,
			Model:     "whisper-1",
			Language:  "en",
			APIKeyEnv: "OPENAI_API_KEY",
			TimeoutMS: 15000,
		},
		Recognizer: RecognizerConfig{
			Enable:         false,
			URL:            "wss://api.deepgram.com/v1/listen",
			TokenEnv:       "ELORA_RECOGNIZER_TOKEN",
			Language:       "en-US",
			InterimResults: true,
			DialTimeoutMS:  5000,
		},
		Scoring: ScoringConfig{
			Backend:       ScoringBackendLocal,
			GRPCEndpoint:  "127.0.0.1:50061",
			PassThreshold: 70,
			DialTimeoutMS: 3000,
		},
		Feedback: FeedbackConfig{
			Format:         FormatText,
			DesktopAppName: "elora",
			SoundEnable:    true,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8787",
		},
		Vocab: VocabConfig{
			Sets:       map[string]VocabSet{},
			MaxPhrases: 256,
		},
	}
}
