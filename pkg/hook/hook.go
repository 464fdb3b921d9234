package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/oraops/backup-run/pkg/hints"
	"github.com/oraops/backup-run/pkg/plog"
)

var ErrNothingToExecute = hints.New("nothing to execute")
var ErrDisabled = hints.New("hook execution is disabled")

type HookExecutor struct {
	// commandContext allows mocking os/exec for testing hooks.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewHookExecutor creates a new HookExecutor. Passing nil uses the real os/exec.
func NewHookExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *HookExecutor {
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	return &HookExecutor{
		commandContext: commandContext,
	}
}

// RunPre executes the pre-run commands. With FailFast set, the first
// failing command aborts the run.
func (e *HookExecutor) RunPre(ctx context.Context, p *Plan) error {
	return e.run(ctx, "pre-run", p.Pre, p)
}

// RunPost executes the post-run commands. Callers defer this; failures
// here must not change the outcome of the run itself.
func (e *HookExecutor) RunPost(ctx context.Context, p *Plan) error {
	return e.run(ctx, "post-run", p.Post, p)
}

func (e *HookExecutor) run(ctx context.Context, phase string, commands []string, p *Plan) error {
	if !p.Enabled {
		return ErrDisabled
	}

	if len(commands) == 0 {
		return ErrNothingToExecute
	}

	plog.Info(fmt.Sprintf("Running %s hook commands", phase))

	for _, hookCommand := range commands {

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.DryRun {
			plog.Info("[DRY RUN] Executing command", "command", hookCommand)
			continue
		}
		plog.Info("Executing command", "command", hookCommand)

		cmd := e.createCommand(ctx, hookCommand)
		if len(p.Env) > 0 {
			cmd.Env = p.Env
		}

		// Pipe output to our logger for visibility
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			// Check if the context was canceled, which can cause cmd.Wait() to return an error.
			// If so, we should return the context's error to be more specific.
			if ctx.Err() == context.Canceled {
				return context.Canceled
			}
			if p.FailFast {
				return fmt.Errorf("command '%s' failed: %w", hookCommand, err)
			}
			plog.Warn("Hook command failed", "command", hookCommand, "error", err)
		}
	}
	return nil
}
