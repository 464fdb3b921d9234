package rmanexec_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oraops/backup-run/pkg/rmanexec"
)

// TestHelperProcess stands in for the engine binary.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 {
		os.Exit(0)
	}

	switch args[0] {
	case "echo-stdin":
		io.Copy(os.Stdout, os.Stdin)
		fmt.Fprintln(os.Stderr, "stderr-marker")
		os.Exit(0)
	case "exit-3":
		fmt.Fprintln(os.Stdout, "RMAN-03009: failure of backup command")
		os.Exit(3)
	case "print-sid":
		fmt.Fprintln(os.Stdout, "sid="+os.Getenv("ORACLE_SID"))
		os.Exit(0)
	case "hang":
		fmt.Fprintln(os.Stdout, "started")
		time.Sleep(30 * time.Second)
	}
	os.Exit(0)
}

// helperCommand reroutes engine invocations into TestHelperProcess.
func helperCommand(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, arg...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func logPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "run.log")
}

func TestRunCapturesBothStreamsInOrder(t *testing.T) {
	e := rmanexec.NewExecutor(helperCommand)
	script := "run {\n  backup database;\n}\n"

	result, err := e.Run(context.Background(), rmanexec.RunSpec{
		Binary:  "echo-stdin",
		Script:  script,
		LogPath: logPath(t),
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}

	data, err := os.ReadFile(result.LogPath)
	if err != nil {
		t.Fatalf("run log missing: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, script) {
		t.Errorf("log missing the script echoed from stdin, got:\n%s", text)
	}
	if !strings.Contains(text, "stderr-marker") {
		t.Errorf("log missing the stderr stream, got:\n%s", text)
	}
	if !result.FinishedAt.After(result.StartedAt) && !result.FinishedAt.Equal(result.StartedAt) {
		t.Error("result timestamps are not ordered")
	}
}

func TestRunRecordsNonZeroExitWithoutFailing(t *testing.T) {
	e := rmanexec.NewExecutor(helperCommand)

	result, err := e.Run(context.Background(), rmanexec.RunSpec{
		Binary:  "exit-3",
		Script:  "backup database;\n",
		LogPath: logPath(t),
	})
	if err != nil {
		t.Fatalf("a finished run with exit code 3 must not be an error, got: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}

	// The log written before the exit must survive for classification.
	data, err := os.ReadFile(result.LogPath)
	if err != nil {
		t.Fatalf("run log missing: %v", err)
	}
	if !strings.Contains(string(data), "RMAN-03009") {
		t.Errorf("log missing the engine's error line, got:\n%s", data)
	}
}

func TestRunPassesEnvironment(t *testing.T) {
	e := rmanexec.NewExecutor(helperCommand)

	result, err := e.Run(context.Background(), rmanexec.RunSpec{
		Binary:  "print-sid",
		Env:     append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "ORACLE_SID=ORCL"),
		LogPath: logPath(t),
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	data, err := os.ReadFile(result.LogPath)
	if err != nil {
		t.Fatalf("run log missing: %v", err)
	}
	if !strings.Contains(string(data), "sid=ORCL") {
		t.Errorf("subprocess did not see the provided environment, got:\n%s", data)
	}
}

func TestRunTimeoutKillsAndKeepsPartialLog(t *testing.T) {
	e := rmanexec.NewExecutor(helperCommand)

	start := time.Now()
	result, err := e.Run(context.Background(), rmanexec.RunSpec{
		Binary:  "hang",
		Script:  "backup database;\n",
		LogPath: logPath(t),
		Timeout: 150 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Run() should report a timed out run as an error")
	}
	if !result.TimedOut {
		t.Error("result should be marked as timed out")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout did not kill the subprocess promptly, took %s", elapsed)
	}

	// Output produced before the kill stays on disk for forensics.
	data, readErr := os.ReadFile(result.LogPath)
	if readErr != nil {
		t.Fatalf("partial run log missing: %v", readErr)
	}
	if !strings.Contains(string(data), "started") {
		t.Errorf("partial log missing pre-kill output, got:\n%s", data)
	}
}

func TestRunCancellation(t *testing.T) {
	e := rmanexec.NewExecutor(helperCommand)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result, err := e.Run(ctx, rmanexec.RunSpec{
		Binary:  "hang",
		Script:  "backup database;\n",
		LogPath: logPath(t),
	})
	if err == nil {
		t.Fatal("Run() should report a canceled run as an error")
	}
	if result.TimedOut {
		t.Error("cancellation is not a timeout")
	}
}

func TestRunRejectsMissingConfiguration(t *testing.T) {
	t.Run("no binary", func(t *testing.T) {
		e := rmanexec.NewExecutor(helperCommand)
		if _, err := e.Run(context.Background(), rmanexec.RunSpec{LogPath: logPath(t)}); err == nil {
			t.Fatal("Run() without a binary should fail")
		}
	})

	t.Run("unwritable log path", func(t *testing.T) {
		e := rmanexec.NewExecutor(helperCommand)
		_, err := e.Run(context.Background(), rmanexec.RunSpec{
			Binary:  "echo-stdin",
			LogPath: filepath.Join(t.TempDir(), "missing-dir", "run.log"),
		})
		if err == nil {
			t.Fatal("Run() with an unwritable log path should fail")
		}
	})

	t.Run("nonexistent real binary", func(t *testing.T) {
		e := rmanexec.NewExecutor(nil) // real os/exec
		_, err := e.Run(context.Background(), rmanexec.RunSpec{
			Binary:  filepath.Join(t.TempDir(), "no-such-engine"),
			LogPath: logPath(t),
		})
		if err == nil {
			t.Fatal("Run() with a missing binary should fail")
		}
	})
}
