package config

import "time"

// DefaultExcludes are glob patterns skipped by the importer by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"**/*.tmp",
	"**/.*",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     LogFormatJSON,
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Navigation: NavigationConfig{
			DefaultLang: "en",
		},
		Auth: AuthConfig{
			OTPLength:      6,
			OTPTTL:         10 * time.Minute,
			OTPMaxAttempts: 5,
			TokenTTL:       30 * 24 * time.Hour,
		},
		Import: ImportConfig{
			Include:     []string{"**/*.json"},
			Exclude:     DefaultExcludes,
			Concurrency: 4,
		},
	}
}
