package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CHANNEL_DOWNLOADER_APP_LOG_LEVEL.
const EnvPrefix = "CHANNEL_DOWNLOADER"

const (
	defaultLogLevel    = "INFO"
	defaultPageSize    = 100
	defaultServiceName = "channel_downloader"
)

// Config is the YAML configuration file, with environment overrides applied.
type Config struct {
	User      User      `yaml:"user"`
	Source    Source    `yaml:"source"`
	Search    Search    `yaml:"search"`
	Storage   Storage   `yaml:"storage"`
	App       App       `yaml:"app"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type User struct {
	APIToken    string `yaml:"api_token" split_words:"true" validate:"required_without=SessionFile"`
	SessionFile string `yaml:"session_file" split_words:"true"`
}

type Source struct {
	BaseURL  string `yaml:"base_url" split_words:"true" validate:"required,url"`
	PageSize int    `yaml:"page_size" split_words:"true" validate:"gte=0,lte=1000"`
}

type Search struct {
	ChannelID int64    `yaml:"channel_id" split_words:"true" validate:"required"`
	KeyWords  []string `yaml:"key_words" split_words:"true"`
}

type Storage struct {
	SqliteFile string `yaml:"sqlite_file" split_words:"true" validate:"required"`
	VideoDir   string `yaml:"video_dir" split_words:"true" validate:"required"`
	AudioDir   string `yaml:"audio_dir" split_words:"true" validate:"required"`
}

type App struct {
	DownloadAtSameTimeSize int    `yaml:"download_at_same_time_size" split_words:"true" validate:"gt=0"`
	DownloadVideo          bool   `yaml:"download_video" split_words:"true"`
	DownloadAudio          bool   `yaml:"download_audio" split_words:"true"`
	LogFile                string `yaml:"log_file" split_words:"true"`
	LogLevel               string `yaml:"log_level" split_words:"true" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	SweepOrphans           bool   `yaml:"sweep_orphans" split_words:"true"`
	DiscordWebhookURL      string `yaml:"discord_webhook_url" split_words:"true" validate:"omitempty,url"`
}

type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name" split_words:"true"`
	MetricsAddr string `yaml:"metrics_addr" split_words:"true" validate:"omitempty,hostname_port"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. Every failure is a *media.ConfigurationError.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &media.ConfigurationError{Field: path, Reason: "cannot read configuration file", Err: err}
	}

	return Parse(data)
}

// Parse decodes a YAML document and finishes it like LoadConfig.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &media.ConfigurationError{Reason: "cannot parse configuration", Err: err}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, &media.ConfigurationError{Reason: "cannot apply environment overrides", Err: err}
	}

	cfg.applyDefaults()

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.resolveToken(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultLogLevel
	}

	if c.Source.PageSize == 0 {
		c.Source.PageSize = defaultPageSize
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
}

func validate(c *Config) error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]

		return &media.ConfigurationError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed on '%s' rule", fe.Tag()),
			Err:    err,
		}
	}

	return &media.ConfigurationError{Reason: "invalid configuration", Err: err}
}

// resolveToken reads the API token from the session file when it is not set inline.
func (c *Config) resolveToken() error {
	if c.User.APIToken != "" {
		return nil
	}

	data, err := os.ReadFile(c.User.SessionFile)
	if err != nil {
		return &media.ConfigurationError{Field: "user.session_file", Reason: "cannot read session file", Err: err}
	}

	c.User.APIToken = strings.TrimSpace(string(data))
	if c.User.APIToken == "" {
		return &media.ConfigurationError{Field: "user.session_file", Reason: "session file is empty"}
	}

	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.App.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
