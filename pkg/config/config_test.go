package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oraops/backup-run/pkg/flagparse"
)

func newValidRunConfig() Config {
	cfg := NewDefault()
	cfg.Runtime.Instance = "PROD1"
	cfg.Runtime.Kind = "full"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Run("Valid Defaults", func(t *testing.T) {
		cfg := NewDefault()
		if err := cfg.Validate(false); err != nil {
			t.Errorf("expected default config to pass validation, but got error: %v", err)
		}
	})

	t.Run("Valid Run Config", func(t *testing.T) {
		cfg := newValidRunConfig()
		if err := cfg.Validate(true); err != nil {
			t.Errorf("expected run config to pass validation, but got error: %v", err)
		}
	})

	t.Run("Empty Instance", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.Runtime.Instance = ""
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for empty instance name, but got nil")
		}
	})

	t.Run("Instance With Path Separator", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.Runtime.Instance = "../etc"
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for instance name with path characters, but got nil")
		}
	})

	t.Run("Instance With Space", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.Runtime.Instance = "PROD 1"
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for instance name with a space, but got nil")
		}
	})

	t.Run("Unknown Kind", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.Runtime.Kind = "weekly"
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for unknown backup kind, but got nil")
		}
	})

	t.Run("Job Not Required", func(t *testing.T) {
		cfg := NewDefault()
		cfg.Runtime.Instance = ""
		cfg.Runtime.Kind = ""
		if err := cfg.Validate(false); err != nil {
			t.Errorf("expected empty job selection to pass without requireJob, but got: %v", err)
		}
	})

	t.Run("Empty Base Directory", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.BaseDirectory = ""
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for empty baseDirectory, but got nil")
		}
	})

	t.Run("Derived Directories", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.BaseDirectory = "/srv/backup"
		if err := cfg.Validate(true); err != nil {
			t.Fatalf("Validate() unexpected error: %v", err)
		}
		if cfg.LogDirectory != filepath.Join("/srv/backup", "log") {
			t.Errorf("LogDirectory = %q, want derived /srv/backup/log", cfg.LogDirectory)
		}
		if cfg.LockDirectory != filepath.Join("/srv/backup", "lock") {
			t.Errorf("LockDirectory = %q, want derived /srv/backup/lock", cfg.LockDirectory)
		}
	})

	t.Run("Explicit Directories Survive", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.LogDirectory = "/var/log/backup-run/"
		cfg.LockDirectory = "/run/backup-run"
		if err := cfg.Validate(true); err != nil {
			t.Fatalf("Validate() unexpected error: %v", err)
		}
		if cfg.LogDirectory != "/var/log/backup-run" {
			t.Errorf("LogDirectory = %q, want cleaned explicit path", cfg.LogDirectory)
		}
		if cfg.LockDirectory != "/run/backup-run" {
			t.Errorf("LockDirectory = %q, want explicit path", cfg.LockDirectory)
		}
	})

	t.Run("Empty Home Lookup Table", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.HomeLookupTablePath = ""
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for empty homeLookupTablePath, but got nil")
		}
	})

	t.Run("Zero Channels", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.Channels = 0
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for zero channels, but got nil")
		}
	})

	t.Run("Invalid Piece Size", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.MaxPieceSize = "12X"
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for invalid maxPieceSize, but got nil")
		}
	})

	t.Run("Negative Recovery Window", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.RecoveryWindowDays = -1
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for negative recoveryWindowDays, but got nil")
		}
	})

	t.Run("Invalid Log Compression Format", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.CompressLogsFormat = "bzip2"
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for unsupported compressLogsFormat, but got nil")
		}
	})

	t.Run("Invalid Lock Scope", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.LockScope = "global"
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for unknown lockScope, but got nil")
		}
	})

	t.Run("Negative Command Timeout", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.CommandTimeoutMinutes = -5
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for negative commandTimeoutMinutes, but got nil")
		}
	})

	t.Run("Invalid Log Level", func(t *testing.T) {
		cfg := newValidRunConfig()
		cfg.LogLevel = "chatty"
		if err := cfg.Validate(true); err == nil {
			t.Error("expected error for unknown logLevel, but got nil")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("Missing File Yields Defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nonexistent.yaml")

		cfg, err := Load(path, false)
		if err != nil {
			t.Fatalf("expected no error when config file is missing, but got: %v", err)
		}
		want := NewDefault()
		if cfg.BaseDirectory != want.BaseDirectory || cfg.Channels != want.Channels {
			t.Errorf("Load() = %+v, want defaults", cfg)
		}
	})

	t.Run("Missing Explicit File Is An Error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nonexistent.yaml")

		if _, err := Load(path, true); err == nil {
			t.Error("expected error for missing explicit config file, but got nil")
		}
	})

	t.Run("File Overrides Defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ConfigFileName)
		content := `
baseDirectory: /data/ora
channels: 8
recoveryWindowDays: 30
compressLogsFormat: zstd
lockScope: instance-kind
preRunHooks:
  - /usr/local/bin/quiesce.sh
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cfg, err := Load(path, true)
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}

		if cfg.BaseDirectory != "/data/ora" {
			t.Errorf("BaseDirectory = %q, want /data/ora", cfg.BaseDirectory)
		}
		if cfg.Channels != 8 {
			t.Errorf("Channels = %d, want 8", cfg.Channels)
		}
		if cfg.RecoveryWindowDays != 30 {
			t.Errorf("RecoveryWindowDays = %d, want 30", cfg.RecoveryWindowDays)
		}
		if cfg.CompressLogsFormat != "zstd" {
			t.Errorf("CompressLogsFormat = %q, want zstd", cfg.CompressLogsFormat)
		}
		if cfg.LockScope != LockScopeInstanceKind {
			t.Errorf("LockScope = %q, want %q", cfg.LockScope, LockScopeInstanceKind)
		}
		if len(cfg.PreRunHooks) != 1 || cfg.PreRunHooks[0] != "/usr/local/bin/quiesce.sh" {
			t.Errorf("PreRunHooks = %v, want the single configured hook", cfg.PreRunHooks)
		}

		// Keys absent from the file keep their defaults.
		if cfg.MaxPieceSize != "100G" {
			t.Errorf("MaxPieceSize = %q, want default 100G", cfg.MaxPieceSize)
		}
		if cfg.HomeLookupTablePath != "/etc/oratab" {
			t.Errorf("HomeLookupTablePath = %q, want default /etc/oratab", cfg.HomeLookupTablePath)
		}
	})

	t.Run("Malformed File Is An Error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ConfigFileName)
		if err := os.WriteFile(path, []byte("channels: [not a\n"), 0o644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		if _, err := Load(path, true); err == nil {
			t.Error("expected error for malformed config file, but got nil")
		}
	})
}

func TestMergeConfigWithFlags(t *testing.T) {
	t.Run("Compress Seeds From Config Default", func(t *testing.T) {
		base := NewDefault()
		base.CompressDefault = true

		merged := MergeConfigWithFlags(flagparse.Run, base, map[string]any{})
		if !merged.Runtime.Compress {
			t.Error("expected Runtime.Compress to inherit compressDefault, but it is false")
		}
	})

	t.Run("Flags Override Base", func(t *testing.T) {
		base := NewDefault()
		base.Channels = 4

		merged := MergeConfigWithFlags(flagparse.Run, base, map[string]any{
			"instance":  "PROD1",
			"kind":      "incremental",
			"compress":  true,
			"dry-run":   true,
			"channels":  16,
			"keep-plan": true,
			"log-level": "debug",
		})

		if merged.Runtime.Instance != "PROD1" {
			t.Errorf("Runtime.Instance = %q, want PROD1", merged.Runtime.Instance)
		}
		if merged.Runtime.Kind != "incremental" {
			t.Errorf("Runtime.Kind = %q, want incremental", merged.Runtime.Kind)
		}
		if !merged.Runtime.Compress {
			t.Error("Runtime.Compress = false, want true")
		}
		if !merged.Runtime.DryRun {
			t.Error("Runtime.DryRun = false, want true")
		}
		if merged.Channels != 16 {
			t.Errorf("Channels = %d, want 16", merged.Channels)
		}
		if !merged.KeepPlanFiles {
			t.Error("KeepPlanFiles = false, want true")
		}
		if merged.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", merged.LogLevel)
		}
	})

	t.Run("Unset Flags Leave Base Alone", func(t *testing.T) {
		base := NewDefault()
		base.Channels = 4
		base.LogLevel = "warn"

		merged := MergeConfigWithFlags(flagparse.Run, base, map[string]any{"instance": "PROD1"})
		if merged.Channels != 4 {
			t.Errorf("Channels = %d, want untouched 4", merged.Channels)
		}
		if merged.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want untouched warn", merged.LogLevel)
		}
	})
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.d", ConfigFileName)

	if err := Generate(path); err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}

	// The generated file must parse back into the defaults it was built from.
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() of generated file failed: %v", err)
	}

	want := NewDefault()
	if cfg.BaseDirectory != want.BaseDirectory {
		t.Errorf("BaseDirectory = %q, want %q", cfg.BaseDirectory, want.BaseDirectory)
	}
	if cfg.Channels != want.Channels {
		t.Errorf("Channels = %d, want %d", cfg.Channels, want.Channels)
	}
	if cfg.RecoveryWindowDays != want.RecoveryWindowDays {
		t.Errorf("RecoveryWindowDays = %d, want %d", cfg.RecoveryWindowDays, want.RecoveryWindowDays)
	}
	if cfg.LockScope != want.LockScope {
		t.Errorf("LockScope = %q, want %q", cfg.LockScope, want.LockScope)
	}
	if err := cfg.Validate(false); err != nil {
		t.Errorf("generated config should validate, but got: %v", err)
	}
}
