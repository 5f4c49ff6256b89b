// Package config loads the operator-tunable knobs that sit outside the
// per-command flag surface: evidence size ceiling, process timeouts,
// retry counts, the secondary query-cache toggle, and colour output. It
// reads an optional .taskctl.toml via viper, with BurntSushi/toml as the
// underlying TOML codec.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is the fully-resolved set of operator knobs, defaults applied.
type Config struct {
	EvidenceSizeCeilingBytes int64
	GitTimeout               time.Duration
	ProcessTimeout           time.Duration
	GitReadRetryAttempts     int
	QueryCacheEnabled        bool
	Color                    bool
}

// Defaults mirrors the constants hard-coded elsewhere in the core
// (internal/contextstore.DefaultEvidenceSizeCeiling,
// internal/procexec.DefaultGitTimeout/DefaultTimeout/DefaultGitReadRetry)
// so that a repo with no .taskctl.toml behaves identically to the
// pre-config-file implementation.
func Defaults() Config {
	return Config{
		EvidenceSizeCeilingBytes: 10 * 1024 * 1024,
		GitTimeout:               30 * time.Second,
		ProcessTimeout:           120 * time.Second,
		GitReadRetryAttempts:     3,
		QueryCacheEnabled:        true,
		Color:                    true,
	}
}

// Load reads .taskctl.toml from repoRoot (or the path named by
// TASKCTL_CONFIG, if set), overlaying it on Defaults(). A missing file is
// not an error; every field simply keeps its default.
func Load(repoRoot string) (Config, error) {
	cfg := Defaults()

	path := os.Getenv("TASKCTL_CONFIG")
	if path == "" {
		path = filepath.Join(repoRoot, ".taskctl.toml")
	}

	v := viper.New()
	v.SetDefault("evidence.size_ceiling_bytes", cfg.EvidenceSizeCeilingBytes)
	v.SetDefault("process.git_timeout_seconds", int(cfg.GitTimeout.Seconds()))
	v.SetDefault("process.timeout_seconds", int(cfg.ProcessTimeout.Seconds()))
	v.SetDefault("process.git_read_retry_attempts", cfg.GitReadRetryAttempts)
	v.SetDefault("querycache.enabled", cfg.QueryCacheEnabled)
	v.SetDefault("output.color", cfg.Color)

	// The file itself is decoded through BurntSushi/toml rather than
	// viper's built-in parser, then merged into viper so defaults/env/
	// flag precedence still apply uniformly.
	var fileData map[string]any
	if _, err := toml.DecodeFile(path, &fileData); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := v.MergeConfigMap(fileData); err != nil {
		return cfg, err
	}

	cfg.EvidenceSizeCeilingBytes = v.GetInt64("evidence.size_ceiling_bytes")
	cfg.GitTimeout = time.Duration(v.GetInt("process.git_timeout_seconds")) * time.Second
	cfg.ProcessTimeout = time.Duration(v.GetInt("process.timeout_seconds")) * time.Second
	cfg.GitReadRetryAttempts = v.GetInt("process.git_read_retry_attempts")
	cfg.QueryCacheEnabled = v.GetBool("querycache.enabled")
	cfg.Color = v.GetBool("output.color")

	return cfg, nil
}
