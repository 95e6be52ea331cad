// Package config provides configuration management for recapd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultMaxConcurrentJobs = 4
	defaultMaxInputSizeMB    = 500
	defaultMaxUploadMB       = 100
	defaultJobHistoryDays    = 30
	defaultTempCleanupHours  = 24
	defaultChunkSeconds      = 600
	defaultCoDPasses         = 2
	defaultMaxOutputTokens   = 4096
	defaultSTTModel          = "thomasmol/whisper-diarization"
	defaultSTTTimeout        = 30 * time.Minute
	defaultLLMTimeout        = 5 * time.Minute
	defaultShutdownTimeout   = 10 * time.Second
)

// Environment aliases map the flat process-level keys recognised from the
// environment or a .env-shaped file onto the nested viper structure.
var envAliases = map[string]string{
	"LLM_PROVIDER":                 "summary.provider",
	"LLM_MODEL":                    "summary.model",
	"OPENAI_API_KEY":               "credentials.openai_api_key",
	"ANTHROPIC_API_KEY":            "credentials.anthropic_api_key",
	"REPLICATE_API_TOKEN":          "credentials.replicate_api_token",
	"SUMMARY_MAX_OUTPUT_TOKENS":    "summary.max_output_tokens",
	"SUMMARY_CHUNK_SECONDS":        "summary.chunk_seconds",
	"SUMMARY_COD_PASSES":           "summary.cod_passes",
	"SUMMARY_TEMPLATE":             "summary.template",
	"SUMMARY_AUTO_DETECT_TEMPLATE": "summary.auto_detect_template",
	"MAX_UPLOAD_MB":                "transcription.max_upload_mb",
	"MAX_CONCURRENT_JOBS":          "jobs.max_concurrent",
	"JOB_HISTORY_DAYS":             "jobs.history_days",
	"TEMP_CLEANUP_HOURS":           "storage.temp_cleanup_hours",
	"ENVIRONMENT":                  "environment",
	"LOG_LEVEL":                    "logging.level",
}

// Config holds all configuration for the application.
type Config struct {
	Environment   string              `mapstructure:"environment"` // development, production
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Summary       SummaryConfig       `mapstructure:"summary"`
	Credentials   CredentialsConfig   `mapstructure:"credentials"`
	FFmpeg        FFmpegConfig        `mapstructure:"ffmpeg"`
}

// StorageConfig holds the data tree configuration.
type StorageConfig struct {
	// BaseDir is the root of the data/{video,audio,transcript,summary,temp,jobs} tree.
	BaseDir string `mapstructure:"base_dir"`
	// MaxInputSizeMB caps video and audio inputs. Transcripts are exempt.
	MaxInputSizeMB int `mapstructure:"max_input_size_mb"`
	// MinFreeSpaceMB is the minimum free disk space required before a run starts.
	// Zero disables the preflight check.
	MinFreeSpaceMB int `mapstructure:"min_free_space_mb"`
	// TempCleanupHours is the age after which scratch files are swept.
	TempCleanupHours int `mapstructure:"temp_cleanup_hours"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// JobsConfig holds worker pool and retention configuration.
type JobsConfig struct {
	// MaxConcurrent is the worker-pool width.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// HistoryDays is the retention period for job history records.
	HistoryDays int `mapstructure:"history_days"`
	// ShutdownTimeout bounds how long Stop waits for running jobs.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AudioConfig holds audio extraction and conditioning defaults.
type AudioConfig struct {
	Format       string  `mapstructure:"format"`  // m4a, mp3, wav, flac
	Quality      string  `mapstructure:"quality"` // low, medium, high
	Normalize    bool    `mapstructure:"normalize"`
	VolumeGainDB float64 `mapstructure:"volume_gain_db"`
}

// TranscriptionConfig holds STT provider configuration.
type TranscriptionConfig struct {
	Model       string        `mapstructure:"model"`
	Language    string        `mapstructure:"language"` // BCP-47 or "auto"
	MaxUploadMB int           `mapstructure:"max_upload_mb"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SummaryConfig holds summarization defaults. Explicit workflow parameters
// take precedence over these values, which in turn override built-ins.
type SummaryConfig struct {
	Provider           string        `mapstructure:"provider"` // openai, anthropic
	Model              string        `mapstructure:"model"`
	Template           string        `mapstructure:"template"`
	AutoDetectTemplate bool          `mapstructure:"auto_detect_template"`
	MaxOutputTokens    int           `mapstructure:"max_output_tokens"`
	ChunkSeconds       int           `mapstructure:"chunk_seconds"`
	CoDPasses          int           `mapstructure:"cod_passes"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// CredentialsConfig holds resolved provider credentials. Values are never
// logged; the observability package masks them.
type CredentialsConfig struct {
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	AnthropicAPIKey   string `mapstructure:"anthropic_api_key"`
	ReplicateAPIToken string `mapstructure:"replicate_api_token"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // empty = auto-detect
	ProbePath  string `mapstructure:"probe_path"`  // empty = auto-detect
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Nested keys use the RECAPD_ prefix with underscores (RECAPD_JOBS_MAX_CONCURRENT);
// the flat process-level keys (LLM_PROVIDER, MAX_CONCURRENT_JOBS, ...) are
// recognised without a prefix.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/recapd")
		v.AddConfigPath("$HOME/.recapd")
	}

	v.SetEnvPrefix("RECAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed process-level keys.
	for env, key := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.max_input_size_mb", defaultMaxInputSizeMB)
	v.SetDefault("storage.min_free_space_mb", 0)
	v.SetDefault("storage.temp_cleanup_hours", defaultTempCleanupHours)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Jobs defaults
	v.SetDefault("jobs.max_concurrent", defaultMaxConcurrentJobs)
	v.SetDefault("jobs.history_days", defaultJobHistoryDays)
	v.SetDefault("jobs.shutdown_timeout", defaultShutdownTimeout)

	// Audio defaults
	v.SetDefault("audio.format", "m4a")
	v.SetDefault("audio.quality", "medium")
	v.SetDefault("audio.normalize", true)
	v.SetDefault("audio.volume_gain_db", 0.0)

	// Transcription defaults
	v.SetDefault("transcription.model", defaultSTTModel)
	v.SetDefault("transcription.language", "auto")
	v.SetDefault("transcription.max_upload_mb", defaultMaxUploadMB)
	v.SetDefault("transcription.timeout", defaultSTTTimeout)

	// Summary defaults
	v.SetDefault("summary.provider", "openai")
	v.SetDefault("summary.model", "gpt-4o-mini")
	v.SetDefault("summary.template", "default")
	v.SetDefault("summary.auto_detect_template", false)
	v.SetDefault("summary.max_output_tokens", defaultMaxOutputTokens)
	v.SetDefault("summary.chunk_seconds", defaultChunkSeconds)
	v.SetDefault("summary.cod_passes", defaultCoDPasses)
	v.SetDefault("summary.timeout", defaultLLMTimeout)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
}

// Valid enumerations.
var (
	validAudioFormats = map[string]bool{"m4a": true, "mp3": true, "wav": true, "flac": true}
	validQualities    = map[string]bool{"low": true, "medium": true, "high": true}
	validProviders    = map[string]bool{"openai": true, "anthropic": true}
	validLogLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats   = map[string]bool{"json": true, "text": true}
	validEnvironments = map[string]bool{"development": true, "production": true}
	validTemplates    = map[string]bool{"default": true, "sop": true, "decision": true, "brainstorm": true, "requirements": true}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("environment must be one of: development, production")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.MaxInputSizeMB < 1 {
		return fmt.Errorf("storage.max_input_size_mb must be at least 1")
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("jobs.max_concurrent must be at least 1")
	}
	if c.Jobs.HistoryDays < 0 {
		return fmt.Errorf("jobs.history_days must not be negative")
	}

	if !validAudioFormats[c.Audio.Format] {
		return fmt.Errorf("audio.format must be one of: m4a, mp3, wav, flac")
	}
	if !validQualities[c.Audio.Quality] {
		return fmt.Errorf("audio.quality must be one of: low, medium, high")
	}

	if c.Transcription.MaxUploadMB < 1 {
		return fmt.Errorf("transcription.max_upload_mb must be at least 1")
	}

	if !validProviders[c.Summary.Provider] {
		return fmt.Errorf("summary.provider must be one of: openai, anthropic")
	}
	if !validTemplates[c.Summary.Template] {
		return fmt.Errorf("summary.template must be one of: default, sop, decision, brainstorm, requirements")
	}
	if c.Summary.ChunkSeconds < 1 {
		return fmt.Errorf("summary.chunk_seconds must be at least 1")
	}
	if c.Summary.CoDPasses < 0 {
		return fmt.Errorf("summary.cod_passes must not be negative")
	}

	return nil
}

// IsProduction reports whether the process runs with production verbosity.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HistoryRetention returns the job history retention as a duration.
func (c *JobsConfig) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryDays) * 24 * time.Hour
}

// TempRetention returns the scratch-file retention as a duration.
func (c *StorageConfig) TempRetention() time.Duration {
	return time.Duration(c.TempCleanupHours) * time.Hour
}
