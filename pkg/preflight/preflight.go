// Package preflight provides the checks that run before a backup touches
// anything. The checks are read-only with respect to the instance: a
// process table scan and a short role query, both designed to fail closed.
// A backup of a stopped instance or of a standby is worse than no backup,
// because it looks like one.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/oraops/backup-run/pkg/plog"
	"github.com/oraops/backup-run/pkg/proc"
	"github.com/oraops/backup-run/pkg/util"
)

var (
	// ErrInstanceNotRunning means the instance has no live control process.
	ErrInstanceNotRunning = errors.New("instance is not running")
	// ErrRoleNotPrimary means the instance answered the role query with
	// anything other than the primary role.
	ErrRoleNotPrimary = errors.New("instance role is not primary")
	// ErrRoleIndeterminate means the role query failed or produced nothing
	// usable. Indeterminate blocks the run the same way a standby does.
	ErrRoleIndeterminate = errors.New("instance role could not be determined")
)

// pmonPrefix is the command name prefix of the per-instance control
// process. Its presence is the liveness signal.
const pmonPrefix = "ora_pmon_"

// primaryRole is the only role token that clears the gate. The comparison
// is exact: an unexpected casing means an unexpected server and fails closed.
const primaryRole = "PRIMARY"

// defaultQueryTimeout bounds the role query. A healthy instance answers in
// well under a second; a hung one must not stall the whole run.
const defaultQueryTimeout = 1 * time.Minute

// roleQueryScript is fed to the query client on stdin. The set commands
// strip decoration so the output is the bare role token.
const roleQueryScript = `set heading off feedback off pagesize 0 verify off echo off
select database_role from v$database;
exit;
`

// processFinder is the part of the process scanner the validator needs.
type processFinder interface {
	FindByComm(comm string) (int, error)
}

// Params carries everything one validation pass depends on.
type Params struct {
	Instance    string
	HomeDir     string
	QueryBinary string // overrides <homeDir>/bin/sqlplus
	Env         []string
	Timeout     time.Duration
}

// Validator runs the pre-run instance checks.
type Validator struct {
	finder         processFinder
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewValidator creates a Validator. Nil arguments select the real process
// scanner and the real os/exec.
func NewValidator(finder processFinder, commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Validator {
	if finder == nil {
		finder = proc.NewScanner()
	}
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	return &Validator{finder: finder, commandContext: commandContext}
}

// Run executes the checks in order: liveness first, then role. The first
// failure wins; a run blocked on liveness never issues the role query.
func (v *Validator) Run(ctx context.Context, p Params) error {
	if err := v.checkInstanceRunning(p.Instance); err != nil {
		return err
	}
	if err := v.checkRolePrimary(ctx, p); err != nil {
		return err
	}
	plog.Debug("Preflight checks passed", "instance", p.Instance)
	return nil
}

// checkInstanceRunning scans the process table for the instance's control process.
func (v *Validator) checkInstanceRunning(instance string) error {
	pid, err := v.finder.FindByComm(pmonPrefix + instance)
	if err != nil {
		if errors.Is(err, proc.ErrNoProcess) {
			return fmt.Errorf("%w: no %s%s process found", ErrInstanceNotRunning, pmonPrefix, instance)
		}
		return fmt.Errorf("could not scan for instance processes: %w", err)
	}
	plog.Debug("Instance control process found", "instance", instance, "pid", pid)
	return nil
}

// checkRolePrimary asks the instance for its role and requires the exact
// primary token back.
func (v *Validator) checkRolePrimary(ctx context.Context, p Params) error {
	binary := p.QueryBinary
	if binary == "" {
		binary = filepath.Join(p.HomeDir, "bin", "sqlplus")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := v.commandContext(queryCtx, binary, "-S", "/", "as", "sysdba")
	cmd.Stdin = strings.NewReader(roleQueryScript)
	if len(p.Env) > 0 {
		cmd.Env = p.Env
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: query client failed: %v", ErrRoleIndeterminate, err)
	}

	role, err := parseRole(string(out))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRoleIndeterminate, err)
	}
	if role != primaryRole {
		return fmt.Errorf("%w: reported role is %q", ErrRoleNotPrimary, role)
	}
	return nil
}

// parseRole extracts the role token from query output. The first non-empty
// line is the answer; error-looking lines mean there is no answer at all.
func parseRole(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ORA-") || strings.HasPrefix(line, "SP2-") {
			return "", fmt.Errorf("query client reported: %s", line)
		}
		return line, nil
	}
	return "", errors.New("role query produced no output")
}

// CheckDirectoryWritable verifies dir can hold run artifacts, creating it
// if needed. The probe file catches read-only mounts that a bare stat
// would wave through.
func CheckDirectoryWritable(dir string) error {
	if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("could not clean up probe file in %s: %w", dir, err)
	}
	return nil
}
