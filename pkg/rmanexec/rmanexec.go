// Package rmanexec drives the backup engine binary.
//
// The engine is an opaque subprocess: it takes a command script on stdin
// and talks to the instance on its own. Everything it prints, on either
// stream, lands in one append-ordered log file that the classifier reads
// afterwards. Nothing in here parses engine output in flight, and a
// non-zero exit code is recorded rather than judged, because the log
// classification is the verdict that counts.
package rmanexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/oraops/backup-run/pkg/plog"
	"github.com/oraops/backup-run/pkg/util"
)

// RunSpec describes one engine invocation.
type RunSpec struct {
	Binary  string
	Args    []string
	Script  string   // command text fed on stdin
	Env     []string // full environment for the subprocess; nil inherits ours
	LogPath string   // combined stdout+stderr target
	Timeout time.Duration
}

// Result records how an invocation went. It is valid even when Run returns
// an error: a partially written log is still worth classifying.
type Result struct {
	ExitCode   int
	TimedOut   bool
	StartedAt  time.Time
	FinishedAt time.Time
	LogPath    string
}

// Duration is the wall-clock time the subprocess ran.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Executor runs engine subprocesses.
type Executor struct {
	// commandContext allows mocking os/exec for testing.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewExecutor creates an Executor. Passing nil uses the real os/exec.
func NewExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Executor {
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	return &Executor{commandContext: commandContext}
}

// Run starts the engine, feeds it the script and waits for it to finish.
// An error is returned only when the run could not happen or was cut short;
// a completed run with a non-zero exit code returns a nil error and the
// code in the Result.
func (e *Executor) Run(ctx context.Context, spec RunSpec) (Result, error) {
	if spec.Binary == "" {
		return Result{}, errors.New("no engine binary configured")
	}

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	logFile, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, util.UserWritableFilePerms)
	if err != nil {
		return Result{}, fmt.Errorf("could not create run log %s: %w", spec.LogPath, err)
	}
	defer logFile.Close()

	cmd := e.commandContext(runCtx, spec.Binary, spec.Args...)
	cmd.Stdin = strings.NewReader(spec.Script)
	// Both streams share the one file handle so their interleaving survives
	// exactly as the subprocess produced it.
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	configureCommand(cmd)

	result := Result{LogPath: spec.LogPath, StartedAt: time.Now().UTC()}
	plog.Debug("Starting engine subprocess", "binary", spec.Binary, "log", spec.LogPath)

	waitErr := cmd.Run()
	result.FinishedAt = time.Now().UTC()

	if ctxErr := runCtx.Err(); ctxErr != nil {
		// The run was cut short. The partial log stays on disk for forensics.
		result.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, fmt.Errorf("engine run terminated early: %w", ctxErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			plog.Debug("Engine subprocess finished", "exitCode", result.ExitCode, "duration", result.Duration())
			return result, nil
		}
		return result, fmt.Errorf("could not run engine %s: %w", spec.Binary, waitErr)
	}

	plog.Debug("Engine subprocess finished", "exitCode", 0, "duration", result.Duration())
	return result, nil
}
