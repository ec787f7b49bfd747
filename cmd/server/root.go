package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/supportbill/internal/app"
	"github.com/rpggio/supportbill/internal/config"
	"github.com/rpggio/supportbill/internal/sqlite"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "supportbill",
	Short: "Invoice line-item generation for support services",
	Long: `supportbill turns rostered support time and approved expenses into priced
invoice line items. It serves an MCP tool surface over streamable HTTP or
stdio, and offers maintenance commands for the catalogue and api keys.

Configuration is read from .env, the YAML file named by
SUPPORTBILL_CONFIG_PATH, then SUPPORTBILL_* environment variables.`,
	SilenceUsage: true,
}

// runtime is everything a command needs after startup.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sqlite.DB
	app    *app.App
	close  func()
}

// setup loads configuration, opens and migrates the database and wires
// services. Logs go to stderr when stdout carries command output or the stdio
// transport.
func setup(ctx context.Context, stdoutIsOutput bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger, closeLog := newLogger(cfg, stdoutIsOutput || cfg.Transport.Mode == "stdio")

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		closeLog()
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		closeLog()
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		closeLog()
		return nil, err
	}

	a, err := app.New(ctx, db, cfg, logger)
	if err != nil {
		db.Close()
		closeLog()
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		db:     db,
		app:    a,
		close: func() {
			_ = a.Close()
			_ = db.Close()
			closeLog()
		},
	}, nil
}

func newLogger(cfg config.Config, toStderr bool) (*slog.Logger, func()) {
	logWriter := io.Writer(os.Stdout)
	if toStderr {
		logWriter = os.Stderr
	}
	closeLog := func() {}
	if logPath := os.Getenv("SUPPORTBILL_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			logWriter = fileWriter
			closeLog = func() { _ = file.Close() }
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	return logger, closeLog
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
