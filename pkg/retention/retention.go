// Package retention applies the recovery-window policy after a clean
// backup. It reuses the same engine executor and the same classifier as
// the backup itself, so a retention pass leaves the same kind of evidence
// behind: a combined log and a classified report.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/oraops/backup-run/pkg/classify"
	"github.com/oraops/backup-run/pkg/planner"
	"github.com/oraops/backup-run/pkg/plog"
	"github.com/oraops/backup-run/pkg/rmanexec"
)

// Executor runs an engine script. Satisfied by rmanexec.Executor.
type Executor interface {
	Run(ctx context.Context, spec rmanexec.RunSpec) (rmanexec.Result, error)
}

// Job describes one retention pass.
type Job struct {
	Instance      string
	RetentionDays int
	Binary        string
	Args          []string
	Env           []string
	LogPath       string
	ReportPath    string
	Timeout       time.Duration
}

// Enforcer executes retention plans.
type Enforcer struct {
	executor Executor
}

// NewEnforcer creates an Enforcer. A nil executor selects the real one.
func NewEnforcer(executor Executor) *Enforcer {
	if executor == nil {
		executor = rmanexec.NewExecutor(nil)
	}
	return &Enforcer{executor: executor}
}

// Run builds the retention plan, executes it, and classifies the output.
// The returned records decide whether the pass counts as failed; callers
// must not rely on the engine exit code alone.
func (e *Enforcer) Run(ctx context.Context, job Job) (rmanexec.Result, []classify.Record, error) {
	plan, err := planner.BuildRetentionPlan(job.RetentionDays)
	if err != nil {
		return rmanexec.Result{}, nil, fmt.Errorf("could not build retention plan: %w", err)
	}

	plog.Info("Enforcing retention policy",
		"instance", job.Instance,
		"recoveryWindowDays", job.RetentionDays,
	)

	result, err := e.executor.Run(ctx, rmanexec.RunSpec{
		Binary:  job.Binary,
		Args:    job.Args,
		Script:  plan.Render(),
		Env:     job.Env,
		LogPath: job.LogPath,
		Timeout: job.Timeout,
	})
	if err != nil {
		return result, nil, fmt.Errorf("retention run could not be executed: %w", err)
	}

	records, err := classify.Scan(job.LogPath)
	if err != nil {
		return result, records, fmt.Errorf("could not classify retention log: %w", err)
	}
	if err := classify.WriteReport(job.ReportPath, records); err != nil {
		return result, records, fmt.Errorf("could not write retention report: %w", err)
	}

	plog.Info("Retention pass finished",
		"instance", job.Instance,
		"exitCode", result.ExitCode,
		"errorCodes", len(records),
		"log", result.LogPath,
	)
	return result, records, nil
}
