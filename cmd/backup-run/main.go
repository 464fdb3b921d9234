package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oraops/backup-run/pkg/buildinfo"
	"github.com/oraops/backup-run/pkg/config"
	"github.com/oraops/backup-run/pkg/engine"
	"github.com/oraops/backup-run/pkg/exitcode"
	"github.com/oraops/backup-run/pkg/flagparse"
	"github.com/oraops/backup-run/pkg/hook"
	"github.com/oraops/backup-run/pkg/logrotate"
	"github.com/oraops/backup-run/pkg/metrics"
	"github.com/oraops/backup-run/pkg/plog"
	"github.com/oraops/backup-run/pkg/preflight"
	"github.com/oraops/backup-run/pkg/retention"
	"github.com/oraops/backup-run/pkg/rmanexec"
)

// configPathFromFlags returns the effective configuration path and whether
// the user named it explicitly. An explicit path that cannot be read is an
// error; the default path is allowed to be absent.
func configPathFromFlags(flagMap map[string]interface{}) (string, bool) {
	if p, ok := flagMap["config"].(string); ok && p != "" {
		return p, true
	}
	return config.DefaultConfigPath, false
}

// runInitConfig handles the logic for the 'init-config' command.
func runInitConfig(flagMap map[string]interface{}) error {
	path, _ := configPathFromFlags(flagMap)
	if err := config.Generate(path); err != nil {
		return err
	}
	plog.Info("Wrote default configuration", "path", path)
	return nil
}

// runBackup handles the logic for the main backup command.
func runBackup(ctx context.Context, flagMap map[string]interface{}) error {
	path, explicit := configPathFromFlags(flagMap)
	loadedConfig, err := config.Load(path, explicit)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config to get the final run config.
	runConfig := config.MergeConfigWithFlags(flagparse.Run, loadedConfig, flagMap)
	if err := runConfig.Validate(true); err != nil {
		return err
	}

	// Set the global log level based on the final configuration.
	level, err := plog.LevelFromString(runConfig.LogLevel)
	if err != nil {
		return err
	}
	plog.SetLevel(level)
	if runConfig.AppLogFile != "" {
		plog.ConfigureFile(runConfig.AppLogFile)
	}

	runConfig.LogSummary()

	sweepFormat, err := logrotate.ParseFormat(runConfig.CompressLogsFormat)
	if err != nil {
		return err
	}

	runMetrics := &metrics.RunMetrics{}
	rotator := logrotate.NewRotator(logrotate.Options{
		CompressAfterDays: runConfig.CompressLogsAfterDays,
		DeleteAfterDays:   runConfig.DeleteLogsAfterDays,
		Format:            sweepFormat,
	}, runMetrics)

	runner := engine.NewRunner(
		preflight.NewValidator(nil, nil),
		rmanexec.NewExecutor(nil),
		retention.NewEnforcer(nil),
		rotator,
		hook.NewHookExecutor(nil),
		runMetrics,
	)

	startTime := time.Now()
	err = runner.ExecuteBackup(ctx, runConfig)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}

// run encapsulates the main application logic and returns an error if
// something goes wrong, allowing the main function to handle exit codes.
func run(ctx context.Context) error {
	command, flagMap, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	switch command {
	case flagparse.None:
		// Help was requested and printed; nothing left to do.
		return nil
	case flagparse.Version:
		fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
		return nil
	case flagparse.InitConfig:
		return runInitConfig(flagMap)
	case flagparse.Run:
		plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
		return runBackup(ctx, flagMap)
	default:
		return fmt.Errorf("internal error: unknown command %d", command)
	}
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for interrupt and terminate signals in a separate goroutine.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := run(ctx)
	code := exitcode.FromError(err)
	if err != nil {
		plog.Error(buildinfo.Name+" exited with error",
			"error", err,
			"exitCode", code.Int(),
			"meaning", code.String(),
		)
	}
	plog.Sync()
	os.Exit(code.Int())
}
