package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/oraops/backup-run/pkg/flagparse"
	"github.com/oraops/backup-run/pkg/logrotate"
	"github.com/oraops/backup-run/pkg/planner"
	"github.com/oraops/backup-run/pkg/plog"
	"github.com/oraops/backup-run/pkg/util"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "backup-run.config.yaml"

// DefaultConfigPath is where the tool looks when -config is not given.
const DefaultConfigPath = "/etc/" + ConfigFileName

// Lock scopes. The instance scope serializes every run against the same
// instance; the instance-kind scope only serializes runs of the same kind.
const (
	LockScopeInstance     = "instance"
	LockScopeInstanceKind = "instance-kind"
)

// instanceNamePattern bounds instance names to the characters the database
// itself allows. The name feeds artifact file names and the lock file name,
// so anything else would be a path-injection hazard.
var instanceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_$#]{1,64}$`)

// RuntimeConfig carries per-invocation state that never comes from the
// file: the job selection flags.
type RuntimeConfig struct {
	Instance string
	Kind     string
	Compress bool
	DryRun   bool
}

type Config struct {
	Runtime RuntimeConfig `mapstructure:"-"` // Never read from the config file

	BaseDirectory         string   `mapstructure:"baseDirectory"`
	LogDirectory          string   `mapstructure:"logDirectory"`
	LockDirectory         string   `mapstructure:"lockDirectory"`
	Channels              int      `mapstructure:"channels"`
	MaxPieceSize          string   `mapstructure:"maxPieceSize"`
	RecoveryWindowDays    int      `mapstructure:"recoveryWindowDays"`
	CompressDefault       bool     `mapstructure:"compressDefault"`
	CompressLogsAfterDays int      `mapstructure:"compressLogsAfterDays"`
	DeleteLogsAfterDays   int      `mapstructure:"deleteLogsAfterDays"`
	CompressLogsFormat    string   `mapstructure:"compressLogsFormat"`
	HomeLookupTablePath   string   `mapstructure:"homeLookupTablePath"`
	BackupEngineBinary    string   `mapstructure:"backupEngineBinary"`
	QueryClientBinary     string   `mapstructure:"queryClientBinary"`
	LockScope             string   `mapstructure:"lockScope"`
	KeepPlanFiles         bool     `mapstructure:"keepPlanFiles"`
	CommandTimeoutMinutes int      `mapstructure:"commandTimeoutMinutes"`
	LogLevel              string   `mapstructure:"logLevel"`
	AppLogFile            string   `mapstructure:"appLogFile"`
	PreRunHooks           []string `mapstructure:"preRunHooks"`
	PostRunHooks          []string `mapstructure:"postRunHooks"`
}

// NewDefault creates and returns a Config struct with sensible default
// values. Derived paths (logDirectory, lockDirectory) stay empty here and
// are resolved against baseDirectory during Validate.
func NewDefault() Config {
	return Config{
		BaseDirectory:         "/backup",
		LogDirectory:          "", // Derived: <baseDirectory>/log
		LockDirectory:         "", // Derived: <baseDirectory>/lock
		Channels:              2,
		MaxPieceSize:          "100G",
		RecoveryWindowDays:    14,
		CompressDefault:       false,
		CompressLogsAfterDays: 7,
		DeleteLogsAfterDays:   60,
		CompressLogsFormat:    "gzip",
		HomeLookupTablePath:   "/etc/oratab",
		BackupEngineBinary:    "", // Derived: <homeDir>/bin/rman
		QueryClientBinary:     "", // Derived: <homeDir>/bin/sqlplus
		LockScope:             LockScopeInstance,
		KeepPlanFiles:         false,
		CommandTimeoutMinutes: 0, // 0 = unbounded
		LogLevel:              "info",
		AppLogFile:            "",
		PreRunHooks:           []string{},
		PostRunHooks:          []string{},
	}
}

// setDefaults feeds the NewDefault values into viper so that keys missing
// from the file resolve to the same defaults the no-file path uses.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("baseDirectory", d.BaseDirectory)
	v.SetDefault("logDirectory", d.LogDirectory)
	v.SetDefault("lockDirectory", d.LockDirectory)
	v.SetDefault("channels", d.Channels)
	v.SetDefault("maxPieceSize", d.MaxPieceSize)
	v.SetDefault("recoveryWindowDays", d.RecoveryWindowDays)
	v.SetDefault("compressDefault", d.CompressDefault)
	v.SetDefault("compressLogsAfterDays", d.CompressLogsAfterDays)
	v.SetDefault("deleteLogsAfterDays", d.DeleteLogsAfterDays)
	v.SetDefault("compressLogsFormat", d.CompressLogsFormat)
	v.SetDefault("homeLookupTablePath", d.HomeLookupTablePath)
	v.SetDefault("backupEngineBinary", d.BackupEngineBinary)
	v.SetDefault("queryClientBinary", d.QueryClientBinary)
	v.SetDefault("lockScope", d.LockScope)
	v.SetDefault("keepPlanFiles", d.KeepPlanFiles)
	v.SetDefault("commandTimeoutMinutes", d.CommandTimeoutMinutes)
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("appLogFile", d.AppLogFile)
	v.SetDefault("preRunHooks", d.PreRunHooks)
	v.SetDefault("postRunHooks", d.PostRunHooks)
}

// Load reads the configuration file at path. A missing file yields the
// defaults, unless the path was given explicitly on the command line, in
// which case a missing file is a configuration error.
func Load(path string, explicit bool) (Config, error) {
	cfg := NewDefault()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil // Config file doesn't exist, which is a normal case.
		}
		return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	plog.Info("Loading configuration", "path", path)
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for logical errors and inconsistencies.
// It canonicalizes paths and resolves the derived directories. With
// requireJob set it also checks the per-run selection (instance, kind).
func (c *Config) Validate(requireJob bool) error {
	if requireJob {
		if c.Runtime.Instance == "" {
			return fmt.Errorf("instance name cannot be empty")
		}
		if !instanceNamePattern.MatchString(c.Runtime.Instance) {
			return fmt.Errorf("instance name %q contains unsupported characters", c.Runtime.Instance)
		}
		if _, err := planner.ParseKind(c.Runtime.Kind); err != nil {
			return err
		}
	}

	if c.BaseDirectory == "" {
		return fmt.Errorf("baseDirectory cannot be empty")
	}

	var err error
	c.BaseDirectory, err = util.ExpandPath(c.BaseDirectory)
	if err != nil {
		return fmt.Errorf("could not expand baseDirectory: %w", err)
	}
	c.BaseDirectory = filepath.Clean(c.BaseDirectory)

	if c.LogDirectory == "" {
		c.LogDirectory = filepath.Join(c.BaseDirectory, "log")
	} else {
		c.LogDirectory, err = util.ExpandPath(c.LogDirectory)
		if err != nil {
			return fmt.Errorf("could not expand logDirectory: %w", err)
		}
		c.LogDirectory = filepath.Clean(c.LogDirectory)
	}

	if c.LockDirectory == "" {
		c.LockDirectory = filepath.Join(c.BaseDirectory, "lock")
	} else {
		c.LockDirectory, err = util.ExpandPath(c.LockDirectory)
		if err != nil {
			return fmt.Errorf("could not expand lockDirectory: %w", err)
		}
		c.LockDirectory = filepath.Clean(c.LockDirectory)
	}

	if c.HomeLookupTablePath == "" {
		return fmt.Errorf("homeLookupTablePath cannot be empty")
	}

	if c.Channels < 1 {
		return fmt.Errorf("channels must be at least 1")
	}
	if _, err := util.ParseSizeSpec(c.MaxPieceSize); err != nil {
		return fmt.Errorf("invalid maxPieceSize: %w", err)
	}
	if c.RecoveryWindowDays < 0 {
		return fmt.Errorf("recoveryWindowDays cannot be negative")
	}
	if c.CompressLogsAfterDays < 0 {
		return fmt.Errorf("compressLogsAfterDays cannot be negative")
	}
	if c.DeleteLogsAfterDays < 0 {
		return fmt.Errorf("deleteLogsAfterDays cannot be negative")
	}
	if _, err := logrotate.ParseFormat(c.CompressLogsFormat); err != nil {
		return err
	}

	switch c.LockScope {
	case LockScopeInstance, LockScopeInstanceKind:
	default:
		return fmt.Errorf("lockScope must be %q or %q", LockScopeInstance, LockScopeInstanceKind)
	}

	if c.CommandTimeoutMinutes < 0 {
		return fmt.Errorf("commandTimeoutMinutes cannot be negative")
	}

	if _, err := plog.LevelFromString(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// LogSummary prints a user-friendly summary of the effective configuration.
func (c *Config) LogSummary() {
	logArgs := []interface{}{
		"instance", c.Runtime.Instance,
		"kind", c.Runtime.Kind,
		"compress", c.Runtime.Compress,
		"dry_run", c.Runtime.DryRun,
		"log_level", c.LogLevel,
		"base_directory", c.BaseDirectory,
		"log_directory", c.LogDirectory,
		"lock_directory", c.LockDirectory,
		"lock_scope", c.LockScope,
		"channels", c.Channels,
		"max_piece_size", c.MaxPieceSize,
	}
	if c.RecoveryWindowDays > 0 {
		logArgs = append(logArgs, "retention", fmt.Sprintf("recovery window of %d days", c.RecoveryWindowDays))
	} else {
		logArgs = append(logArgs, "retention", "disabled")
	}
	if c.CompressLogsAfterDays > 0 || c.DeleteLogsAfterDays > 0 {
		rotateSummary := fmt.Sprintf("compress after %dd (%s), delete after %dd",
			c.CompressLogsAfterDays, c.CompressLogsFormat, c.DeleteLogsAfterDays)
		logArgs = append(logArgs, "log_lifecycle", rotateSummary)
	}
	if c.CommandTimeoutMinutes > 0 {
		logArgs = append(logArgs, "command_timeout", fmt.Sprintf("%dm", c.CommandTimeoutMinutes))
	}
	if c.BackupEngineBinary != "" {
		logArgs = append(logArgs, "backup_engine_binary", c.BackupEngineBinary)
	}
	if c.QueryClientBinary != "" {
		logArgs = append(logArgs, "query_client_binary", c.QueryClientBinary)
	}
	if len(c.PreRunHooks) > 0 {
		logArgs = append(logArgs, "pre_run_hooks", strings.Join(c.PreRunHooks, "; "))
	}
	if len(c.PostRunHooks) > 0 {
		logArgs = append(logArgs, "post_run_hooks", strings.Join(c.PostRunHooks, "; "))
	}
	plog.Info("Configuration loaded", logArgs...)
}

// MergeConfigWithFlags overlays the configuration values from flags on top of a base
// configuration. It iterates over the setFlags map, which contains only the flags
// explicitly provided by the user on the command line.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base
	merged.Runtime.Compress = base.CompressDefault

	for name, value := range setFlags {
		switch name {
		case "instance":
			merged.Runtime.Instance = value.(string)
		case "kind":
			merged.Runtime.Kind = value.(string)
		case "compress":
			merged.Runtime.Compress = value.(bool)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "channels":
			merged.Channels = value.(int)
		case "keep-plan":
			merged.KeepPlanFiles = value.(bool)
		case "log-level":
			merged.LogLevel = value.(string)
		case "config":
			// Resolved by the caller before Load; nothing to merge.
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name, "command", command)
		}
	}
	return merged
}

// configTemplate is the commented file -init-config writes. It mirrors
// NewDefault; the derived keys ship commented out.
const configTemplate = `# backup-run configuration
#
# Root of the backup piece output trees.
baseDirectory: %s

# Per-run artifact directory. Defaults to <baseDirectory>/log.
#logDirectory: ""

# Lock file directory. Defaults to <baseDirectory>/lock.
#lockDirectory: ""

# Number of parallel engine channels.
channels: %d

# Per-channel piece size cap, e.g. 512M, 100G, 1T.
maxPieceSize: %s

# Retention recovery window in days. 0 disables retention enforcement.
recoveryWindowDays: %d

# Produce compressed backupsets unless overridden per run.
compressDefault: %t

# Compress run logs older than this many days. 0 disables compression.
compressLogsAfterDays: %d

# Delete compressed run logs older than this many days. 0 disables deletion.
deleteLogsAfterDays: %d

# Codec for aged log compression: gzip or zstd.
compressLogsFormat: %s

# Instance-to-home lookup table.
homeLookupTablePath: %s

# Backup engine binary. Defaults to <home>/bin/rman of the resolved instance.
#backupEngineBinary: ""

# Query client binary. Defaults to <home>/bin/sqlplus of the resolved instance.
#queryClientBinary: ""

# Concurrency guard scope: instance (one run per instance) or
# instance-kind (one run per instance and kind).
lockScope: %s

# Keep the generated plan file after the run.
keepPlanFiles: %t

# Subprocess deadline in minutes. 0 = unbounded.
commandTimeoutMinutes: %d

# Orchestrator log level: debug, info, warn, error.
logLevel: %s

# Rotating orchestrator log file. Empty logs to the console only.
#appLogFile: ""

# Shell commands around the run.
preRunHooks: []
postRunHooks: []
`

// Generate creates or overwrites a commented default configuration file
// at path.
func Generate(path string) error {
	d := NewDefault()
	content := fmt.Sprintf(configTemplate,
		d.BaseDirectory,
		d.Channels,
		d.MaxPieceSize,
		d.RecoveryWindowDays,
		d.CompressDefault,
		d.CompressLogsAfterDays,
		d.DeleteLogsAfterDays,
		d.CompressLogsFormat,
		d.HomeLookupTablePath,
		d.LockScope,
		d.KeepPlanFiles,
		d.CommandTimeoutMinutes,
		d.LogLevel,
	)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
			return fmt.Errorf("could not create config directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", path)
	return nil
}
