package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoFilePresent(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults when no .taskctl.toml exists, got %+v", cfg)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	root := t.TempDir()
	toml := `
[evidence]
size_ceiling_bytes = 2048

[process]
git_timeout_seconds = 5

[output]
color = false
`
	if err := os.WriteFile(filepath.Join(root, ".taskctl.toml"), []byte(toml), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EvidenceSizeCeilingBytes != 2048 {
		t.Fatalf("expected overridden size ceiling, got %d", cfg.EvidenceSizeCeilingBytes)
	}
	if cfg.GitTimeout.Seconds() != 5 {
		t.Fatalf("expected overridden git timeout, got %s", cfg.GitTimeout)
	}
	if cfg.Color {
		t.Fatal("expected color to be overridden to false")
	}
	// Fields not present in the file keep their defaults.
	if cfg.GitReadRetryAttempts != Defaults().GitReadRetryAttempts {
		t.Fatalf("expected unset field to keep its default, got %d", cfg.GitReadRetryAttempts)
	}
}

func TestLoadHonorsConfigEnvOverride(t *testing.T) {
	root := t.TempDir()
	other := filepath.Join(root, "other.toml")
	if err := os.WriteFile(other, []byte("[process]\ntimeout_seconds = 7\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("TASKCTL_CONFIG", other)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProcessTimeout.Seconds() != 7 {
		t.Fatalf("expected TASKCTL_CONFIG override to be honored, got %s", cfg.ProcessTimeout)
	}
}
