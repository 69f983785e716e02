package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config is the explicit configuration value passed to every component.
type Config struct {
	Dirs          DirsConfig          `mapstructure:"dirs"`
	Input         InputConfig         `mapstructure:"input"`
	Media         MediaConfig         `mapstructure:"media"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Diarization   DiarizationConfig   `mapstructure:"diarization"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Log           LogConfig           `mapstructure:"log"`
}

type DirsConfig struct {
	Audio       string `mapstructure:"audio"`
	Transcripts string `mapstructure:"transcripts"`
	Analysis    string `mapstructure:"analysis"`
}

type InputConfig struct {
	Path         string `mapstructure:"path"`
	SkipExisting bool   `mapstructure:"skip_existing"`
}

type MediaConfig struct {
	CompressAboveMB     int    `mapstructure:"compress_above_mb"`
	SplitAboveMB        int    `mapstructure:"split_above_mb"`
	SegmentSeconds      int    `mapstructure:"segment_seconds"`
	DownloadTimeoutSecs int    `mapstructure:"download_timeout_secs"`
	ExtractTimeoutSecs  int    `mapstructure:"extract_timeout_secs"`
	MinBytes            int64  `mapstructure:"min_bytes"`
	FFmpegPath          string `mapstructure:"ffmpeg_path"`
	YTDLPPath           string `mapstructure:"ytdlp_path"`
}

// CompressAbove is the byte threshold above which media is re-encoded.
func (m MediaConfig) CompressAbove() int64 { return int64(m.CompressAboveMB) * 1024 * 1024 }

// SplitAbove is the byte threshold above which compressed media is segmented.
func (m MediaConfig) SplitAbove() int64 { return int64(m.SplitAboveMB) * 1024 * 1024 }

type TranscriptionConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Tier         string `mapstructure:"tier"`
	ForceTiny    bool   `mapstructure:"force_tiny"`
	Language     string `mapstructure:"language"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
	ReclaimEvery int    `mapstructure:"reclaim_every"`
}

type DiarizationConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Token       string `mapstructure:"token"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

type AnalysisConfig struct {
	Provider           string  `mapstructure:"provider"` // openai or anthropic
	BaseURL            string  `mapstructure:"base_url"`
	APIKey             string  `mapstructure:"api_key"`
	Model              string  `mapstructure:"model"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature"`
	TimeoutSecs        int     `mapstructure:"timeout_secs"`
	MaxTranscriptChars int     `mapstructure:"max_transcript_chars"`
}

type IngestConfig struct {
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func (m MediaConfig) DownloadTimeout() time.Duration { return secs(m.DownloadTimeoutSecs) }
func (m MediaConfig) ExtractTimeout() time.Duration { return secs(m.ExtractTimeoutSecs) }
func (t TranscriptionConfig) Timeout() time.Duration { return secs(t.TimeoutSecs) }
func (d DiarizationConfig) Timeout() time.Duration { return secs(d.TimeoutSecs) }
func (a AnalysisConfig) Timeout() time.Duration { return secs(a.TimeoutSecs) }
func (i IngestConfig) Timeout() time.Duration { return secs(i.TimeoutSecs) }

// legacy environment names still honoured alongside the HOPPY_ prefix.
var envAliases = map[string][]string{
	"analysis.api_key":         {"DEEPSEEK_API_KEY"},
	"diarization.token":        {"HF_TOKEN"},
	"ingest.url":               {"HOPWHISTLE_API_URL"},
	"ingest.token":             {"HOPWHISTLE_API_TOKEN"},
	"transcription.force_tiny": {"FORCE_TINY_MODEL"},
	"log.level":                {"LOG_LEVEL"},
}

// Load reads .env (if present), an optional config.yaml, and HOPPY_*
// environment variables on top of defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HOPPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, aliases := range envAliases {
		names := append([]string{"HOPPY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dirs.audio", "audio_files")
	v.SetDefault("dirs.transcripts", "transcripts")
	v.SetDefault("dirs.analysis", "analysis_results")
	v.SetDefault("input.path", "urls.txt")
	v.SetDefault("input.skip_existing", false)
	v.SetDefault("media.compress_above_mb", 20)
	v.SetDefault("media.split_above_mb", 30)
	v.SetDefault("media.segment_seconds", 300)
	v.SetDefault("media.download_timeout_secs", 60)
	v.SetDefault("media.extract_timeout_secs", 300)
	v.SetDefault("media.min_bytes", 1000)
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ytdlp_path", "yt-dlp")
	v.SetDefault("transcription.base_url", "")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.tier", "balanced")
	v.SetDefault("transcription.force_tiny", false)
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.timeout_secs", 900)
	v.SetDefault("transcription.reclaim_every", 100)
	v.SetDefault("diarization.base_url", "")
	v.SetDefault("diarization.token", "")
	v.SetDefault("diarization.timeout_secs", 600)
	v.SetDefault("analysis.provider", "openai")
	v.SetDefault("analysis.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.model", "deepseek-chat")
	v.SetDefault("analysis.max_tokens", 1024)
	v.SetDefault("analysis.temperature", 0.1)
	v.SetDefault("analysis.timeout_secs", 90)
	v.SetDefault("analysis.max_transcript_chars", 15000)
	v.SetDefault("ingest.url", "")
	v.SetDefault("ingest.token", "")
	v.SetDefault("ingest.timeout_secs", 10)
	v.SetDefault("ledger.path", "hoppy.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate reports configuration that makes a run impossible. Only these
// problems are fatal at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Analysis.APIKey) == "" {
		return eris.New("config: analysis.api_key is required (HOPPY_ANALYSIS_API_KEY or DEEPSEEK_API_KEY)")
	}
	switch c.Analysis.Provider {
	case "openai", "anthropic":
	default:
		return eris.Errorf("config: unknown analysis.provider %q", c.Analysis.Provider)
	}
	if strings.TrimSpace(c.Transcription.BaseURL) == "" {
		return eris.New("config: transcription.base_url is required")
	}
	if c.Media.CompressAboveMB <= 0 || c.Media.SplitAboveMB < c.Media.CompressAboveMB {
		return eris.Errorf("config: thresholds must satisfy 0 < compress_above_mb (%d) <= split_above_mb (%d)",
			c.Media.CompressAboveMB, c.Media.SplitAboveMB)
	}
	if c.Media.SegmentSeconds <= 0 {
		return eris.New("config: media.segment_seconds must be positive")
	}
	return nil
}
