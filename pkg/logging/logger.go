// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for ConvoGuard components.
//
// Output is JSON via log/slog. The default destination is stderr so
// the CLI stays pipeline-friendly; services pass stdout. An optional
// log directory adds a per-service dated file alongside.
//
// This package never logs message content on its own; callers remain
// responsible for keeping PII out of log attributes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity; empty means "info".
	// Recognized: debug, info, warn, error.
	Level string

	// Service names the component in log files ("inference", "cli").
	Service string

	// LogDir, when set, adds a {service}_{date}.log JSON file in this
	// directory, created if missing.
	LogDir string

	// Writer is the primary destination. Nil means stderr.
	Writer io.Writer
}

// Logger wraps slog with file lifecycle handling.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// New builds a JSON logger from the config. The returned logger is
// safe for concurrent use; call Close when a log file is configured.
func New(cfg Config) (*Logger, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	service := cfg.Service
	if service == "" {
		service = "convoguard"
	}

	l := &Logger{}
	writers := []io.Writer{w}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create the log directory: %w", err)
		}
		name := fmt.Sprintf("%s_%s.log", service, time.Now().UTC().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open the log file: %w", err)
		}
		l.file = f
		writers = append(writers, f)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	l.slog = slog.New(handler).With("service", service)
	return l, nil
}

// SetupDefault builds a logger and installs it as the slog default,
// so package-level slog calls across the codebase share it.
func SetupDefault(cfg Config) (*Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l.slog)
	return l, nil
}

// Slog exposes the underlying slog.Logger for handler wiring.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "", "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
