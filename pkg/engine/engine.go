// Package engine runs one backup job end to end.
//
// The pipeline is fixed: resolve the instance environment, take the
// instance lock, validate liveness and role, run the pre hooks, write and
// execute the plan, classify the combined output, then enforce retention
// and sweep aged logs. Every stage failure short-circuits with a typed
// error the caller maps to an exit code, and the lock is released on every
// path once taken. The verdict on a finished engine run comes from log
// classification, not from the engine's exit code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/oraops/backup-run/pkg/classify"
	"github.com/oraops/backup-run/pkg/config"
	"github.com/oraops/backup-run/pkg/hints"
	"github.com/oraops/backup-run/pkg/hook"
	"github.com/oraops/backup-run/pkg/lockfile"
	"github.com/oraops/backup-run/pkg/logrotate"
	"github.com/oraops/backup-run/pkg/metrics"
	"github.com/oraops/backup-run/pkg/oratab"
	"github.com/oraops/backup-run/pkg/planner"
	"github.com/oraops/backup-run/pkg/plog"
	"github.com/oraops/backup-run/pkg/preflight"
	"github.com/oraops/backup-run/pkg/retention"
	"github.com/oraops/backup-run/pkg/rmanexec"
	"github.com/oraops/backup-run/pkg/util"
)

// Artifact name layouts. The timestamp names one run; the date tag names
// the day partition backup pieces land in.
const (
	timestampLayout = "20060102_150405"
	dateTagLayout   = "2006-01-02"
)

// engineArgs is the fixed invocation of the backup engine: authenticate
// through the calling environment, no recovery catalog.
var engineArgs = []string{"target", "/", "nocatalog"}

// Validator confirms the target instance is alive and primary.
type Validator interface {
	Run(ctx context.Context, p preflight.Params) error
}

// Executor runs the backup engine subprocess.
type Executor interface {
	Run(ctx context.Context, spec rmanexec.RunSpec) (rmanexec.Result, error)
}

// Retainer enforces the recovery-window policy after a clean backup.
type Retainer interface {
	Run(ctx context.Context, job retention.Job) (rmanexec.Result, []classify.Record, error)
}

// Rotator ages out historical run artifacts.
type Rotator interface {
	Sweep(ctx context.Context, dir string) error
}

// HookRunner executes the configured shell commands around the run.
type HookRunner interface {
	RunPre(ctx context.Context, p *hook.Plan) error
	RunPost(ctx context.Context, p *hook.Plan) error
}

var (
	_ Validator  = (*preflight.Validator)(nil)
	_ Executor   = (*rmanexec.Executor)(nil)
	_ Retainer   = (*retention.Enforcer)(nil)
	_ Rotator    = (*logrotate.Rotator)(nil)
	_ HookRunner = (*hook.HookExecutor)(nil)
)

// Runner drives the pipeline over injected leaf workers.
type Runner struct {
	validator Validator
	executor  Executor
	retainer  Retainer
	rotator   Rotator
	hooks     HookRunner
	metrics   metrics.Metrics

	resolveHome func(tablePath, instance string) (string, error)
	acquireLock func(ctx context.Context, dirPath, name string) (*lockfile.Lock, error)
	now         func() time.Time
	planOut     io.Writer
}

// NewRunner creates a Runner from its leaf workers. A nil metrics sink
// selects the noop implementation.
func NewRunner(validator Validator, executor Executor, retainer Retainer, rotator Rotator, hooks HookRunner, m metrics.Metrics) *Runner {
	if m == nil {
		m = &metrics.NoopMetrics{}
	}
	return &Runner{
		validator:   validator,
		executor:    executor,
		retainer:    retainer,
		rotator:     rotator,
		hooks:       hooks,
		metrics:     m,
		resolveHome: oratab.Resolve,
		acquireLock: lockfile.Acquire,
		now:         time.Now,
		planOut:     os.Stdout,
	}
}

// SetHomeResolver replaces the lookup table resolver, for testing.
func (r *Runner) SetHomeResolver(f func(tablePath, instance string) (string, error)) {
	r.resolveHome = f
}

// SetLockAcquirer replaces the lock acquisition function, for testing.
func (r *Runner) SetLockAcquirer(f func(ctx context.Context, dirPath, name string) (*lockfile.Lock, error)) {
	r.acquireLock = f
}

// SetClock replaces the time source, for testing.
func (r *Runner) SetClock(f func() time.Time) {
	r.now = f
}

// SetPlanOutput redirects where a dry run prints the plan, for testing.
func (r *Runner) SetPlanOutput(w io.Writer) {
	r.planOut = w
}

// ExecuteBackup runs one job against the effective configuration. The
// returned error is nil only when the backup log classified clean and, if
// enabled, the retention log did too.
func (r *Runner) ExecuteBackup(ctx context.Context, cfg config.Config) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	instance := cfg.Runtime.Instance
	kind, err := planner.ParseKind(cfg.Runtime.Kind)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	startedAt := r.now()
	stamp := startedAt.Format(timestampLayout)
	dateTag := startedAt.Format(dateTagLayout)

	plog.Info("Starting backup run",
		"runId", runID,
		"instance", instance,
		"kind", kind.String(),
		"compress", cfg.Runtime.Compress,
	)

	// Resolve the environment. Everything below needs the home directory,
	// and nothing destructive has happened yet if this fails.
	homeDir, err := r.resolveHome(cfg.HomeLookupTablePath, instance)
	if err != nil {
		return fmt.Errorf("could not resolve instance environment: %w", err)
	}

	engineBinary := cfg.BackupEngineBinary
	if engineBinary == "" {
		engineBinary = filepath.Join(homeDir, "bin", "rman")
	}
	queryBinary := cfg.QueryClientBinary
	if queryBinary == "" {
		queryBinary = filepath.Join(homeDir, "bin", "sqlplus")
	}
	for _, binary := range []string{engineBinary, queryBinary} {
		if _, err := os.Stat(binary); err != nil {
			return &EnvironmentError{Err: fmt.Errorf("required binary is not usable: %w", err)}
		}
	}

	job := planner.Job{
		Instance:    instance,
		Kind:        kind,
		Compress:    cfg.Runtime.Compress,
		RequestedAt: startedAt,
	}
	opts := planner.Options{
		BaseDirectory: cfg.BaseDirectory,
		Channels:      cfg.Channels,
		MaxPieceSize:  cfg.MaxPieceSize,
	}
	plan, err := planner.BuildBackupPlan(job, opts, dateTag)
	if err != nil {
		return err
	}
	script := plan.Render()

	// A dry run ends here: same plan bytes a real run would execute, no
	// lock taken, no subprocess started.
	if cfg.Runtime.DryRun {
		fmt.Fprint(r.planOut, script)
		plog.Info("Dry run complete", "runId", runID, "directives", len(plan.Directives))
		return nil
	}

	if err := preflight.CheckDirectoryWritable(cfg.LogDirectory); err != nil {
		return &EnvironmentError{Err: err}
	}
	outDir := planner.OutputDir(cfg.BaseDirectory, instance, dateTag)
	if err := os.MkdirAll(outDir, util.UserWritableDirPerms); err != nil {
		return &EnvironmentError{Err: fmt.Errorf("could not create backup output directory: %w", err)}
	}

	lockName := instance
	if cfg.LockScope == config.LockScopeInstanceKind {
		lockName = instance + "_" + kind.String()
	}
	lock, err := r.acquireLock(ctx, cfg.LockDirectory, lockName)
	if err != nil {
		return fmt.Errorf("could not take instance lock: %w", err)
	}
	defer lock.Release()

	timeout := time.Duration(cfg.CommandTimeoutMinutes) * time.Minute
	runEnv := buildRunEnv(homeDir, instance)

	if err := r.validator.Run(ctx, preflight.Params{
		Instance:    instance,
		HomeDir:     homeDir,
		QueryBinary: queryBinary,
		Env:         runEnv,
	}); err != nil {
		return err
	}

	prePlan := &hook.Plan{Enabled: true, Pre: cfg.PreRunHooks, Env: runEnv, FailFast: true}
	if err := r.hooks.RunPre(ctx, prePlan); err != nil && !hints.IsHint(err) {
		return &BackupFailedError{Err: fmt.Errorf("pre-run hook failed: %w", err)}
	}
	defer func() {
		postPlan := &hook.Plan{Enabled: true, Post: cfg.PostRunHooks, Env: runEnv, FailFast: false}
		if err := r.hooks.RunPost(ctx, postPlan); err != nil && !hints.IsHint(err) {
			if errors.Is(err, context.Canceled) {
				plog.Info("Post-run hooks skipped, run was canceled")
			} else {
				plog.Warn("Post-run hook failed", "error", err)
			}
		}
	}()

	base := fmt.Sprintf("%s_%s_%s", instance, kind, stamp)
	planPath := filepath.Join(cfg.LogDirectory, base+".rman")
	logPath := filepath.Join(cfg.LogDirectory, base+".log")
	reportPath := filepath.Join(cfg.LogDirectory, base+".err")

	if err := os.WriteFile(planPath, []byte(script), util.UserWritableFilePerms); err != nil {
		return &EnvironmentError{Err: fmt.Errorf("could not write plan file: %w", err)}
	}
	defer func() {
		// An interrupted run keeps everything it wrote, the plan included;
		// the partial state is the diagnostic.
		if cfg.KeepPlanFiles || ctx.Err() != nil {
			return
		}
		if err := os.Remove(planPath); err != nil && !os.IsNotExist(err) {
			plog.Warn("Could not remove plan file", "path", planPath, "error", err)
		}
	}()

	plog.Info("Executing backup plan",
		"runId", runID,
		"directives", len(plan.Directives),
		"plan", planPath,
		"log", logPath,
	)
	result, err := r.executor.Run(ctx, rmanexec.RunSpec{
		Binary:  engineBinary,
		Args:    engineArgs,
		Script:  script,
		Env:     runEnv,
		LogPath: logPath,
		Timeout: timeout,
	})
	if err != nil {
		return &BackupFailedError{ExitCode: result.ExitCode, Err: err}
	}
	r.metrics.AddDirectivesExecuted(int64(len(plan.Directives)))

	records, err := classify.Scan(logPath)
	if err != nil {
		if records == nil {
			return &BackupFailedError{ExitCode: result.ExitCode, Err: err}
		}
		// A short read still classified something; the partial result is
		// better evidence than aborting the bookkeeping.
		plog.Warn("Backup log classification stopped early", "error", err)
	}
	if err := classify.WriteReport(reportPath, records); err != nil {
		plog.Warn("Could not write classification report", "path", reportPath, "error", err)
	}
	r.metrics.AddBackupErrors(int64(len(records)))

	status := "success"
	var verdict error
	retentionRan := false
	var retentionResult rmanexec.Result
	var retentionRecords []classify.Record
	retentionLogPath := ""
	retentionReportPath := ""

	if len(records) > 0 {
		status = "backup failed"
		verdict = &BackupFailedError{Records: records, ExitCode: result.ExitCode}
	} else {
		if result.ExitCode != 0 {
			// Classification is the verdict; a disagreeing exit code is
			// still worth a line in the record.
			plog.Warn("Engine exited non-zero but the log classified clean", "exitCode", result.ExitCode)
		}

		retentionRan, retentionResult, retentionRecords, verdict = r.enforceRetention(ctx, cfg, instance, stamp, engineBinary, runEnv, timeout)
		if retentionRan {
			retentionBase := fmt.Sprintf("%s_retention_%s", instance, stamp)
			retentionLogPath = filepath.Join(cfg.LogDirectory, retentionBase+".log")
			retentionReportPath = filepath.Join(cfg.LogDirectory, retentionBase+".err")
		}
		if verdict != nil {
			status = "completed with cleanup warnings"
		}

		r.sweepLogs(ctx, cfg.LogDirectory)
	}

	summary := []any{
		"status", status,
		"runId", runID,
		"instance", instance,
		"kind", kind.String(),
		"backupErrors", len(records),
		"engineExit", result.ExitCode,
		"duration", r.now().Sub(startedAt).Round(time.Millisecond),
		"log", logPath,
		"report", reportPath,
	}
	if retentionRan {
		summary = append(summary,
			"retentionErrors", len(retentionRecords),
			"retentionExit", retentionResult.ExitCode,
			"retentionLog", retentionLogPath,
			"retentionReport", retentionReportPath,
		)
	}
	plog.Info("Run summary", summary...)
	r.metrics.Log()

	return verdict
}

// enforceRetention runs the recovery-window pass. It only reports whether
// it ran and how; deciding that it may run at all (clean primary
// classification) is the caller's job.
func (r *Runner) enforceRetention(ctx context.Context, cfg config.Config, instance, stamp, engineBinary string, runEnv []string, timeout time.Duration) (bool, rmanexec.Result, []classify.Record, error) {
	if cfg.RecoveryWindowDays <= 0 {
		plog.Info("Retention enforcement is disabled, skipping")
		return false, rmanexec.Result{}, nil, nil
	}

	retentionBase := fmt.Sprintf("%s_retention_%s", instance, stamp)
	result, retRecords, err := r.retainer.Run(ctx, retention.Job{
		Instance:      instance,
		RetentionDays: cfg.RecoveryWindowDays,
		Binary:        engineBinary,
		Args:          engineArgs,
		Env:           runEnv,
		LogPath:       filepath.Join(cfg.LogDirectory, retentionBase+".log"),
		ReportPath:    filepath.Join(cfg.LogDirectory, retentionBase+".err"),
		Timeout:       timeout,
	})
	r.metrics.AddRetentionErrors(int64(len(retRecords)))
	if err != nil {
		return true, result, retRecords, &RetentionFailedError{Records: retRecords, ExitCode: result.ExitCode, Err: err}
	}
	if len(retRecords) > 0 {
		return true, result, retRecords, &RetentionFailedError{Records: retRecords, ExitCode: result.ExitCode}
	}
	return true, result, nil, nil
}

// sweepLogs is best-effort housekeeping; nothing it reports changes the
// outcome of the run.
func (r *Runner) sweepLogs(ctx context.Context, logDir string) {
	err := r.rotator.Sweep(ctx, logDir)
	switch {
	case err == nil:
	case hints.IsHint(err):
		plog.Debug("Log lifecycle sweep skipped", "reason", err)
	default:
		plog.Warn("Log lifecycle sweep reported failures", "error", err)
	}
}

// buildRunEnv is the explicit process context the subprocesses run with,
// replacing the ambient shell exports the wrapper scripts relied on.
func buildRunEnv(homeDir, instance string) []string {
	env := os.Environ()
	return append(env,
		"ORACLE_HOME="+homeDir,
		"ORACLE_SID="+instance,
	)
}
