package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"weave/internal/config"
	"weave/internal/logging"
	"weave/internal/storage"
)

func getRepoRoot() (string, error) {
	return os.Getwd()
}

func mustGetRepoRoot() string {
	repoRoot, err := getRepoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return repoRoot
}

func newLogger(format string) *logging.Logger {
	logFormat := logging.HumanFormat
	if format == "json" {
		logFormat = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: logFormat,
		Level:  logging.InfoLevel,
	})
}

func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// mustOpenDB opens the repo database, refusing to create one implicitly:
// an empty database means the indexer has not run yet.
func mustOpenDB(repoRoot string, logger *logging.Logger) *storage.DB {
	dbPath := filepath.Join(repoRoot, ".weave", "weave.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: no database at %s (run 'weave init' and index the repo first)\n", dbPath)
		os.Exit(1)
	}

	db, err := storage.Open(repoRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return db
}

// openOrCreateDB opens the repo database, creating it if absent
func openOrCreateDB(repoRoot string, logger *logging.Logger) (*storage.DB, error) {
	return storage.Open(repoRoot, logger)
}

func newContext() context.Context {
	return context.Background()
}
