package config

import "time"

// LogFormat selects the slog handler used for process logs.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// Config is the top-level j1939c configuration, corresponding to .j1939c.yml.
type Config struct {
	DataDir    string           `yaml:"data_dir" koanf:"data_dir"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Log        LogConfig        `yaml:"log" koanf:"log"`
	Navigation NavigationConfig `yaml:"navigation" koanf:"navigation"`
	Auth       AuthConfig       `yaml:"auth" koanf:"auth"`
	Import     ImportConfig     `yaml:"import" koanf:"import"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int      `yaml:"port" koanf:"port"`
	AllowAllOrigins bool     `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level      string    `yaml:"level" koanf:"level"`
	Format     LogFormat `yaml:"format" koanf:"format"`
	File       string    `yaml:"file" koanf:"file"` // rotated with lumberjack when set
	MaxSizeMB  int       `yaml:"max_size_mb" koanf:"max_size_mb"`
	MaxBackups int       `yaml:"max_backups" koanf:"max_backups"`
}

// NavigationConfig points at the menu tree served to the site.
type NavigationConfig struct {
	File        string `yaml:"file" koanf:"file"` // empty uses the embedded default tree
	DefaultLang string `yaml:"default_lang" koanf:"default_lang"`
}

// AuthConfig tunes the signup/OTP flow and session tokens.
type AuthConfig struct {
	Disabled       bool          `yaml:"disabled" koanf:"disabled"`
	OTPLength      int           `yaml:"otp_length" koanf:"otp_length"`
	OTPTTL         time.Duration `yaml:"otp_ttl" koanf:"otp_ttl"`
	OTPMaxAttempts int           `yaml:"otp_max_attempts" koanf:"otp_max_attempts"`
	TokenTTL       time.Duration `yaml:"token_ttl" koanf:"token_ttl"`
	// CodeWebhook receives verification codes as JSON. Empty logs them.
	CodeWebhook string `yaml:"code_webhook" koanf:"code_webhook"`
}

// ImportConfig selects which files `j1939c import` picks up.
type ImportConfig struct {
	Include     []string `yaml:"include" koanf:"include"`
	Exclude     []string `yaml:"exclude" koanf:"exclude"`
	Concurrency int      `yaml:"concurrency" koanf:"concurrency"`
}
