package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/daviddao/pairsum/pkg/store"
)

const (
	defaultDir = ".pairsum"
	defaultDB  = ".pairsum/pairsum.db"
)

// app holds shared state for all CLI subcommands.
type app struct {
	store  store.StoreInterface
	stderr io.Writer
	closed bool
}

// newApp opens the database, creating the directory of the default path.
func newApp() (*app, error) {
	dbPath := envOr("PAIRSUM_DB", defaultDB)
	if dbPath == defaultDB {
		if err := os.MkdirAll(defaultDir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", defaultDir, err)
		}
	} else if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", dbPath, err)
	}
	return &app{store: s, stderr: os.Stderr}, nil
}

// Close releases the database connection. Safe to call twice.
func (a *app) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.store.Close()
}

// logger returns a text logger on stderr, at debug level when verbose.
func (a *app) logger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	w := a.stderr
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
