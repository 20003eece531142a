package cmd

import (
	"fmt"
	"io"

	"github.com/voltline/j1939-console/internal/config"
	"github.com/voltline/j1939-console/internal/db"
	"github.com/voltline/j1939-console/internal/logging"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `j1939c init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// setupLogging installs the default logger for a command. Close the result
// before exiting so rotated log files are flushed.
func setupLogging(cfg *config.Config, module string) io.Closer {
	return logging.Setup(cfg.Log, module, Version)
}

// openDatabase opens the sqlite database under the configured data dir.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DatabasePath(), err)
	}
	return database, nil
}
