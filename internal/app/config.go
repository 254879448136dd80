package app

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAddr           = "127.0.0.1:8448"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultGitBinary      = "git"
	defaultGitUserName    = "Git State API"
	defaultGitUserEmail   = "no-reply@example.com"
	defaultCommandTimeout = 2 * time.Minute
	defaultLockTimeout    = 30 * time.Second
	defaultInitialBranch  = "master"
)

// Config captures runtime options sourced from GITAPI_* environment variables.
type Config struct {
	Addr                 string
	LogLevel             string
	LogFormat            string
	Verbose              bool
	Dev                  bool
	GitBinary            string
	GitUserName          string
	GitUserEmail         string
	CommandTimeout       time.Duration
	LockDir              string
	LockTimeout          time.Duration
	CarryCheckoutChanges bool
	InitialBranch        string
}

// LoadConfig reads the environment, applies defaults, and performs validation.
func LoadConfig() (Config, error) {
	cfg := Config{
		Addr:          envOrDefault("GITAPI_ADDR", defaultAddr),
		LogLevel:      strings.ToLower(envOrDefault("GITAPI_LOG_LEVEL", defaultLogLevel)),
		LogFormat:     strings.ToLower(envOrDefault("GITAPI_LOG_FORMAT", defaultLogFormat)),
		GitBinary:     envOrDefault("GITAPI_GIT_BINARY", defaultGitBinary),
		GitUserName:   envOrDefault("GITAPI_GIT_USER_NAME", defaultGitUserName),
		GitUserEmail:  envOrDefault("GITAPI_GIT_USER_EMAIL", defaultGitUserEmail),
		LockDir:       strings.TrimSpace(os.Getenv("GITAPI_LOCK_DIR")),
		InitialBranch: envOrDefault("GITAPI_INITIAL_BRANCH", defaultInitialBranch),
	}

	var err error
	if cfg.Verbose, err = envBool("GITAPI_VERBOSE", false); err != nil {
		return Config{}, err
	}
	if cfg.Dev, err = envBool("GITAPI_DEV", false); err != nil {
		return Config{}, err
	}
	if cfg.CarryCheckoutChanges, err = envBool("GITAPI_CHECKOUT_CARRY_CHANGES", true); err != nil {
		return Config{}, err
	}
	if cfg.CommandTimeout, err = envDuration("GITAPI_COMMAND_TIMEOUT", defaultCommandTimeout); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = envDuration("GITAPI_LOCK_TIMEOUT", defaultLockTimeout); err != nil {
		return Config{}, err
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that may also have been overridden by flags.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Addr, err)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[c.LogFormat]; !ok {
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %s", c.CommandTimeout)
	}

	if c.LockTimeout < 0 {
		return fmt.Errorf("lock timeout cannot be negative, got %s", c.LockTimeout)
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
