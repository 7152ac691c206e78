// Package config loads the CLI environment from .env files and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds the environment driven settings of the CLI
type Env struct {
	// Mnemonic of the deploying account. Only its presence is checked.
	Mnemonic string `env:"ACURAST_MNEMONIC"`

	// IPFSURL is the IPFS HTTP API scripts are uploaded to. When empty
	// scripts are stored content-addressed under ScriptsDir.
	IPFSURL    string `env:"ACURAST_IPFS_URL"`
	IPFSAPIKey string `env:"ACURAST_IPFS_API_KEY"`

	DeployDir  string `env:"ACURAST_DEPLOY_DIR" envDefault:".acurast/deploy"`
	ScriptsDir string `env:"ACURAST_SCRIPTS_DIR" envDefault:".acurast/scripts"`

	LogLevel  string `env:"ACURAST_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ACURAST_LOG_FORMAT" envDefault:"text"`

	// SimulatorStep paces the simulated network
	SimulatorStep time.Duration `env:"ACURAST_SIMULATOR_STEP" envDefault:"250ms"`
}

// RequiredKeys are the keys a project's .env is expected to define
var RequiredKeys = []string{"ACURAST_MNEMONIC", "ACURAST_IPFS_URL", "ACURAST_IPFS_API_KEY"}

// Load reads the given .env files (default ".env") when they exist and
// parses the environment.
func Load(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Env{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env
func (e *Env) Sanitize() {
	e.IPFSURL = strings.TrimRight(strings.TrimSpace(e.IPFSURL), "/")
	e.LogLevel = strings.ToLower(strings.TrimSpace(e.LogLevel))
	if _, ok := levels[e.LogLevel]; !ok {
		e.LogLevel = "info"
	}
	e.LogFormat = strings.ToLower(strings.TrimSpace(e.LogFormat))
	if e.LogFormat != "json" {
		e.LogFormat = "text"
	}
	if e.DeployDir == "" {
		e.DeployDir = ".acurast/deploy"
	}
	if e.ScriptsDir == "" {
		e.ScriptsDir = ".acurast/scripts"
	}
	if e.SimulatorStep < 0 {
		e.SimulatorStep = 0
	}
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(name string) slog.Level {
	if level, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return level
	}
	return slog.LevelInfo
}

// InitLogger initializes the structured logger and installs it as default
func InitLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// EnsureEnvKeys appends the missing keys to the .env file at path with
// empty values, creating the file if needed. Existing lines are left
// untouched. It returns the keys that were added.
func EnsureEnvKeys(path string, keys ...string) ([]string, error) {
	values := map[string]string{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		values, err = godotenv.Unmarshal(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var added []string
	var lines strings.Builder
	if len(data) > 0 && data[len(data)-1] != '\n' {
		lines.WriteString("\n")
	}
	for _, key := range keys {
		if _, ok := values[key]; ok {
			continue
		}
		values[key] = ""
		added = append(added, key)
		lines.WriteString(key + "=\n")
	}
	if len(added) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.WriteString(lines.String()); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return added, nil
}
