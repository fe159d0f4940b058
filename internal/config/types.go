// Package config resolves, parses, validates, and defaults elora configuration.
package config

// Config is the fully materialized runtime configuration used by elora.
type Config struct {
	LogLevel      string              `yaml:"log_level"`
	Practice      PracticeConfig      `yaml:"practice"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Recognizer    RecognizerConfig    `yaml:"recognizer"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Feedback      FeedbackConfig      `yaml:"feedback"`
	Server        ServerConfig        `yaml:"server"`
	Vocab         VocabConfig         `yaml:"vocab"`
	Debug         DebugConfig         `yaml:"debug"`
}

// PracticeConfig controls session behavior and analysis thresholds.
type PracticeConfig struct {
	Phrase                 string `yaml:"phrase"`
	MaxSeconds             int    `yaml:"max_seconds"`
	ContinuousAnalysis     bool   `yaml:"continuous_analysis"`
	DisableWhileNarrating  bool   `yaml:"disable_while_narrating"`
	SkipPronunciationCheck bool   `yaml:"skip_pronunciation_check"`
	AutoStart              bool   `yaml:"auto_start"`
	Immediate              bool   `yaml:"immediate"`
	PollMS                 int    `yaml:"poll_ms"`
	FastPollMS             int    `yaml:"fast_poll_ms"`
	CooldownMS             int    `yaml:"cooldown_ms"`
	AnalysisTimeoutMS      int    `yaml:"analysis_timeout_ms"`
	ShortClipBytes         int    `yaml:"short_clip_bytes"`
	StrictMinLength        int    `yaml:"strict_min_length"`
	SkipMinLength          int    `yaml:"skip_min_length"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input      string `yaml:"input"`
	Fallback   string `yaml:"fallback"`
	SampleRate int    `yaml:"sample_rate"`
	ChunkMS    int    `yaml:"chunk_ms"`
}

// TranscriptionConfig controls the batch transcription endpoint.
type TranscriptionConfig struct {
	Enable    bool   `yaml:"enable"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Language  string `yaml:"language"`
	APIKeyEnv string `yaml:"api_key_env"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// RecognizerConfig controls the streaming recognizer websocket.
type RecognizerConfig struct {
	Enable         bool   `yaml:"enable"`
	URL            string `yaml:"url"`
	TokenEnv       string `yaml:"token_env"`
	Language       string `yaml:"language"`
	InterimResults bool   `yaml:"interim_results"`
	DialTimeoutMS  int    `yaml:"dial_timeout_ms"`
}

// ScoringConfig selects the pronunciation judge and scorer.
type ScoringConfig struct {
	Backend       string `yaml:"backend"`
	GRPCEndpoint  string `yaml:"grpc_endpoint"`
	PassThreshold int    `yaml:"pass_threshold"`
	DialTimeoutMS int    `yaml:"dial_timeout_ms"`
}

// FeedbackConfig controls console output, desktop notifications, and audio cues.
type FeedbackConfig struct {
	Format            string `yaml:"format"`
	Desktop           bool   `yaml:"desktop"`
	DesktopAppName    string `yaml:"desktop_app_name"`
	SoundEnable       bool   `yaml:"sound_enable"`
	SoundSuccessFile  string `yaml:"sound_success_file"`
	SoundTryAgainFile string `yaml:"sound_try_again_file"`
}

// ServerConfig controls the websocket practice server.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// VocabConfig controls recognizer keyword boosting.
type VocabConfig struct {
	GlobalSets []string            `yaml:"global"`
	Sets       map[string]VocabSet `yaml:"sets"`
	MaxPhrases int                 `yaml:"max_phrases"`
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Boost   float64  `yaml:"boost"`
	Phrases []string `yaml:"phrases"`
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool `yaml:"audio_dump"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is one normalized keyword sent to the streaming recognizer.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
