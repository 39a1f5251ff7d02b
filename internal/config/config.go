// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port          int           `yaml:"port"`
	DirectTimeout time.Duration `yaml:"direct_timeout"` // synchronous compare budget
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type CacheConfig struct {
	Dir string `yaml:"dir"`
}

type MediaConfig struct {
	YtDlpPath       string        `yaml:"ytdlp_path"`
	FFmpegPath      string        `yaml:"ffmpeg_path"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	SanitizeTimeout time.Duration `yaml:"sanitize_timeout"`
	MaxSizeBytes    int64         `yaml:"max_size_bytes"`
	AltEndpoints    []string      `yaml:"alt_endpoints"` // rotated across download retries
	AllowedHosts    []string      `yaml:"allowed_hosts"`
}

type AIConfig struct {
	GeminiKey          string        `yaml:"gemini_key"`
	GeminiURL          string        `yaml:"gemini_url"`
	Model              string        `yaml:"model"`
	MaxOutputTokens    int           `yaml:"max_output_tokens"`
	UploadPollInterval time.Duration `yaml:"upload_poll_interval"`
	ModelBudget        time.Duration `yaml:"model_budget"` // wraps upload+infer+parse
}

type CompareConfig struct {
	Mode            string `yaml:"mode"` // direct | delegate
	AnalyzerBaseURL string `yaml:"analyzer_base_url"`
	FABBaseURL      string `yaml:"fab_base_url"` // empty disables FAB grounding
}

type TranscribeConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Workers          int           `yaml:"workers"`
	WhisperPath      string        `yaml:"whisper_path"`
	ExtractTimeout   time.Duration `yaml:"extract_timeout"`
	TranscribeBudget time.Duration `yaml:"transcribe_budget"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	Backend string      `yaml:"backend"` // memory | redis
	Redis   RedisConfig `yaml:"redis"`
}

// VariantConfig captures the per-prompt-variant knobs the producers
// disagree on: maximum timeline length and the severity vocabulary.
type VariantConfig struct {
	TimelineMax   int      `yaml:"timeline_max"`
	Severities    []string `yaml:"severities"`
	MaxFieldChars int      `yaml:"max_field_chars"` // cap on each prompt context field
}

type PromptConfig struct {
	Primary     VariantConfig `yaml:"primary"`
	Abbreviated VariantConfig `yaml:"abbreviated"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Cache      CacheConfig      `yaml:"cache"`
	Media      MediaConfig      `yaml:"media"`
	AI         AIConfig         `yaml:"ai"`
	Compare    CompareConfig    `yaml:"compare"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Storage    StorageConfig    `yaml:"storage"`
	Prompt     PromptConfig     `yaml:"prompt"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.AI.GeminiKey == "" {
		cfg.AI.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}

	// Minimal validation
	if cfg.AI.GeminiKey == "" && !dev {
		return nil, errors.New("ai.gemini_key (or GEMINI_API_KEY) is required")
	}
	if cfg.Compare.Mode == "delegate" && cfg.Compare.AnalyzerBaseURL == "" {
		return nil, errors.New("compare.analyzer_base_url is required in delegate mode")
	}
	if cfg.Storage.Backend == "redis" && cfg.Storage.Redis.URL == "" {
		return nil, errors.New("storage.redis.url is required for the redis backend")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Server.DirectTimeout <= 0 {
		cfg.Server.DirectTimeout = 90 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "./cache"
	}
	if cfg.Media.YtDlpPath == "" {
		cfg.Media.YtDlpPath = "yt-dlp"
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = "ffmpeg"
	}
	if cfg.Media.ProbeTimeout <= 0 {
		cfg.Media.ProbeTimeout = 15 * time.Second
	}
	if cfg.Media.DownloadTimeout <= 0 {
		cfg.Media.DownloadTimeout = 60 * time.Second
	}
	if cfg.Media.SanitizeTimeout <= 0 {
		cfg.Media.SanitizeTimeout = 20 * time.Second
	}
	if cfg.Media.MaxSizeBytes <= 0 {
		cfg.Media.MaxSizeBytes = 50 << 20
	}
	if len(cfg.Media.AllowedHosts) == 0 {
		cfg.Media.AllowedHosts = []string{"tiktok.com", "douyin.com", "youtube.com", "youtu.be", "instagram.com"}
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.0-flash"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 8192
	}
	if cfg.AI.UploadPollInterval <= 0 {
		cfg.AI.UploadPollInterval = 2 * time.Second
	}
	if cfg.AI.ModelBudget <= 0 {
		cfg.AI.ModelBudget = 75 * time.Second
	}
	if cfg.Compare.Mode == "" {
		cfg.Compare.Mode = "direct"
	}
	if cfg.Transcribe.Workers <= 0 {
		cfg.Transcribe.Workers = 1
	}
	if cfg.Transcribe.WhisperPath == "" {
		cfg.Transcribe.WhisperPath = "whisper-cli"
	}
	if cfg.Transcribe.ExtractTimeout <= 0 {
		cfg.Transcribe.ExtractTimeout = 30 * time.Second
	}
	if cfg.Transcribe.TranscribeBudget <= 0 {
		cfg.Transcribe.TranscribeBudget = 120 * time.Second
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Redis.TTL <= 0 {
		cfg.Storage.Redis.TTL = 24 * time.Hour
	}
	if cfg.Prompt.Primary.TimelineMax <= 0 {
		cfg.Prompt.Primary.TimelineMax = 8
	}
	if len(cfg.Prompt.Primary.Severities) == 0 {
		cfg.Prompt.Primary.Severities = []string{"low", "medium", "high", "critical"}
	}
	if cfg.Prompt.Primary.MaxFieldChars <= 0 {
		cfg.Prompt.Primary.MaxFieldChars = 600
	}
	if cfg.Prompt.Abbreviated.TimelineMax <= 0 {
		cfg.Prompt.Abbreviated.TimelineMax = 5
	}
	if len(cfg.Prompt.Abbreviated.Severities) == 0 {
		cfg.Prompt.Abbreviated.Severities = []string{"low", "medium", "high"}
	}
	if cfg.Prompt.Abbreviated.MaxFieldChars <= 0 {
		cfg.Prompt.Abbreviated.MaxFieldChars = 200
	}
}
