// Package lockfile serializes runs against the same instance.
//
// A lock is a small file whose sole content is the owning process id. A
// second run finding the file checks whether that process is still alive:
// if it is, the lock is busy and the caller backs off immediately; if it
// is not, the file is a leftover from a crash and is taken over atomically.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oraops/backup-run/pkg/plog"
	"github.com/oraops/backup-run/pkg/proc"
	"github.com/oraops/backup-run/pkg/util"
)

// LockFileSuffix is appended to the lock name to form the file name.
const LockFileSuffix = ".lock"

// ErrLockActive is a structured error returned when a lock is already held
// by a live process.
type ErrLockActive struct {
	PID  int
	Path string
}

// Error implements the error interface for ErrLockActive.
func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("lock %s is active, held by running process %d", e.Path, e.PID)
}

// ErrLostRace is a sentinel error returned when a process attempts to take over a stale lock but another process wins.
var ErrLostRace = errors.New("lost race during stale lock takeover")

// ErrCorruptLockFile indicates that the lock file on disk is unreadable, either empty or not holding a pid.
var ErrCorruptLockFile = errors.New("lock file is corrupt or empty")

// Lock manages the state of the acquired lock file.
type Lock struct {
	path string
	pid  int
	mu   sync.Mutex
	// We keep track if we actually hold the lock to prevent double release
	held bool
}

// These are vars to allow modification during testing.
var (
	processAlive = proc.Alive
	// tempFileMaxAge guards against deleting a temp file another process is
	// writing right now during its own takeover attempt.
	tempFileMaxAge = 1 * time.Minute
)

// Acquire attempts to acquire the named lock in dirPath.
// It returns a non-nil Lock on success.
// It returns (nil, *ErrLockActive) if the lock is held by a live process.
// It returns (nil, error) for any other failure.
func Acquire(ctx context.Context, dirPath string, name string) (*Lock, error) {
	if err := os.MkdirAll(dirPath, util.UserWritableDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	absLockFilePath := filepath.Join(dirPath, name+LockFileSuffix)
	// We will attempt to acquire multiple times in case of race conditions during cleanup
	maxAttempts := 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Check context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// --- 1. Attempt Atomic Acquisition ---
		lock, err := tryAcquire(absLockFilePath)
		if err == nil {
			cleanupTempLockFiles(absLockFilePath)
			return lock, nil
		}

		// If error is NOT "file exists", it's a real filesystem error (permissions, disk full, etc)
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		// --- 2. Lock is Held, Check for Staleness ---
		ownerPID, readErr := readOwnerSafely(absLockFilePath)
		if readErr != nil {
			if errors.Is(readErr, ErrCorruptLockFile) {
				plog.Warn("Found corrupt lock file, treating as stale", "path", absLockFilePath, "error", readErr)
				// Fall through to the takeover logic below.
			} else {
				// A different read error occurred (e.g., permissions), so retry.
				time.Sleep(100 * time.Millisecond)
				continue
			}
		} else {
			if processAlive(ownerPID) {
				return nil, &ErrLockActive{PID: ownerPID, Path: absLockFilePath}
			}
			plog.Warn("Found lock from dead process, attempting takeover", "path", absLockFilePath, "pid", ownerPID)
		}

		// --- 3. Lock is Stale or Corrupt, Attempt Takeover ---
		lock, takeoverErr := attemptStaleLockTakeover(absLockFilePath)
		if takeoverErr != nil {
			if errors.Is(takeoverErr, ErrLostRace) {
				plog.Debug("Lock takeover race lost, retrying acquisition")
			} else {
				plog.Warn("Failed to attempt lock takeover, retrying", "error", takeoverErr)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		cleanupTempLockFiles(absLockFilePath)
		return lock, nil
	}

	return nil, fmt.Errorf("failed to acquire lock after %d attempts (contention)", maxAttempts)
}

// tryAcquire attempts atomic creation using O_EXCL to guarantee "I created this file first".
func tryAcquire(absLockFilePath string) (*Lock, error) {
	// O_CREATE|O_EXCL guarantees we only succeed if file doesn't exist
	f, err := os.OpenFile(absLockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pid := os.Getpid()
	l := &Lock{path: absLockFilePath, pid: pid, held: true}

	// Write the pid immediately. If this fails, we must clean up the empty
	// file we just created or it would read as corrupt to everyone else.
	if err := writeOwner(f, pid); err != nil {
		l.cleanup()
		return nil, err
	}

	return l, nil
}

// Release removes the lock file. Safe to call more than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}

	l.cleanup()
	l.held = false
}

// OwnerPID returns the pid recorded in the lock.
func (l *Lock) OwnerPID() int {
	return l.pid
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// attemptStaleLockTakeover uses an atomic rename strategy to seize a stale or
// corrupt lock. It writes our pid to a temporary file and then renames it
// over the existing lock file, guaranteeing an atomic update. The pid doubles
// as the race token: distinct contenders hold distinct pids, so reading the
// file back tells us whether our rename landed last.
func attemptStaleLockTakeover(absLockFilePath string) (*Lock, error) {
	myPID := os.Getpid()

	// This ensures that if we crash during takeover, we don't leave a 0-byte file.
	if err := updateLockFileAtomic(absLockFilePath, myPID); err != nil {
		return nil, err
	}

	// Read back immediately to verify we won the race.
	readbackPID, readbackErr := readOwnerSafely(absLockFilePath)
	if readbackErr != nil {
		return nil, fmt.Errorf("failed to read back lock file after takeover: %w", readbackErr)
	}

	if readbackPID == myPID {
		plog.Debug("Successfully took over stale lock", "path", absLockFilePath)
		return &Lock{path: absLockFilePath, pid: myPID, held: true}, nil
	}
	return nil, ErrLostRace
}

func (l *Lock) cleanup() {
	if err := os.Remove(l.path); err != nil {
		// If file is already gone, that's fine.
		if !os.IsNotExist(err) {
			plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
		}
	} else {
		plog.Debug("Lock released", "path", l.path)
	}
}

// updateLockFileAtomic writes the pid to a temporary file and then renames it
// over the target path. This ensures the file at 'path' is never empty/corrupt.
func updateLockFileAtomic(absLockFilePath string, pid int) error {
	// Create a temp file in the SAME DIRECTORY as the target.
	// This is crucial: os.Rename ensures atomicity only within the same filesystem.
	dir := filepath.Dir(absLockFilePath)

	// Pattern "<name>.lock.*.tmp" helps identify these if they get left behind (unlikely)
	tmpF, err := os.CreateTemp(dir, filepath.Base(absLockFilePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}

	// Ensure we clean up the temp file if we error out before the rename
	defer func() {
		// We only care about errors that are NOT "file not found",
		// as that error is expected on a successful rename.
		if err := os.Remove(tmpF.Name()); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove temporary lock file", "path", tmpF.Name(), "error", err)
		}
	}()

	if err := writeOwner(tmpF, pid); err != nil {
		tmpF.Close()
		return err
	}

	// Sync ensures data is flushed before the rename makes it visible.
	if err := tmpF.Sync(); err != nil {
		tmpF.Close()
		return err
	}

	// Must close the file before renaming (mandatory on Windows, good practice elsewhere)
	if err := tmpF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// This replaces the lock file with our temp file atomically.
	if err := os.Rename(tmpF.Name(), absLockFilePath); err != nil {
		return fmt.Errorf("failed to rename temp file to lock file: %w", err)
	}

	return nil
}

// cleanupTempLockFiles scans the lock directory for any leftover temporary
// files from previous crashed runs. It only deletes files older than
// tempFileMaxAge to avoid deleting temp files currently being written by a
// concurrent takeover attempt.
func cleanupTempLockFiles(absLockFilePath string) {
	dir := filepath.Dir(absLockFilePath)
	pattern := filepath.Join(dir, filepath.Base(absLockFilePath)+".*.tmp")

	matches, err := filepath.Glob(pattern)
	if err != nil {
		plog.Warn("Failed to glob for temporary lock files", "pattern", pattern, "error", err)
		return
	}

	threshold := time.Now().Add(-tempFileMaxAge)

	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			// If stat fails (e.g. file already gone), just skip it
			continue
		}

		if info.ModTime().Before(threshold) {
			plog.Debug("Removing old temporary lock file", "path", match, "age", time.Since(info.ModTime()))
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				plog.Warn("Failed to remove leftover temporary lock file", "path", match, "error", err)
			}
		}
	}
}

// writeOwner writes the pid as the file's whole content.
func writeOwner(w io.Writer, pid int) error {
	if _, err := io.WriteString(w, strconv.Itoa(pid)+"\n"); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

// readOwnerSafely attempts to read the owning pid, handling the race where
// the file exists but is currently being replaced (empty or partial).
// NOTE: Even with an atomic rename strategy for writes, filesystems can have
// transient states. This retry logic provides a robust defense against such edge cases.
func readOwnerSafely(absLockFilePath string) (int, error) {
	var lastErr error
	var lastCorruptErr error
	for attempt := 0; attempt < 3; attempt++ {
		data, err := os.ReadFile(absLockFilePath)
		if err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			continue
		}

		raw := strings.TrimSpace(string(data))
		if raw == "" {
			lastCorruptErr = fmt.Errorf("lock file is empty")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		pid, convErr := strconv.Atoi(raw)
		if convErr != nil || pid <= 0 {
			lastCorruptErr = fmt.Errorf("lock file does not hold a pid: %q", raw)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		return pid, nil
	}

	// After multiple retries, if the last error was due to an empty or corrupt
	// file, it indicates a persistent issue. We return a more specific error.
	if lastCorruptErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptLockFile, lastCorruptErr)
	}
	return 0, fmt.Errorf("failed to read valid lock content: %w", lastErr)
}
