// Package lockfile guards the state directory against concurrent TriagePipe
// instances.
//
// The journal database and its surrounding state live in a single directory;
// two processes writing there at once can corrupt the SQLite file and skew the
// in-process metrics window. The lock is a flock(2) on a well-known file, so
// the kernel releases it automatically when the process exits, cleanly or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "triagepipe.lock"

// Lock is an acquired hold on a state directory.
type Lock struct {
	file     *os.File
	path     string
	acquired bool
}

// AcquireLock takes an exclusive lock on stateDir, creating the directory if
// needed. If another process already holds the lock, the returned error is a
// *LockError describing the holder.
func AcquireLock(stateDir string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)

	slog.Debug("Lockfile.AcquireLock: acquiring state directory lock", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	// LOCK_NB: fail immediately instead of queueing behind the holder.
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()

		holder := describeExistingLock(lockPath)
		slog.Error("Lockfile.AcquireLock: state directory already locked",
			"error", err, "lock_path", lockPath, "holder", holder)

		return nil, &LockError{
			LockPath:     lockPath,
			ExistingInfo: holder,
			Cause:        err,
		}
	}

	info := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	if _, err := file.WriteString(info); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	if err := file.Sync(); err != nil {
		slog.Warn("Lockfile.AcquireLock: failed to sync lock file", "error", err, "lock_path", lockPath)
	}

	slog.Info("Lockfile.AcquireLock: state directory lock acquired", "lock_path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath, acquired: true}, nil
}

// Release drops the lock and removes the lock file. Safe to call more than
// once.
func (l *Lock) Release() error {
	if !l.acquired || l.file == nil {
		return nil
	}

	slog.Debug("Lock.Release: releasing state directory lock", "lock_path", l.path)

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Lock.Release: failed to release flock", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("Lock.Release: failed to close lock file", "error", err, "lock_path", l.path)
	}
	// Removal is best effort; the flock itself is already gone.
	if err := os.Remove(l.path); err != nil {
		slog.Warn("Lock.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}

	l.acquired = false
	l.file = nil

	slog.Info("Lock.Release: state directory lock released", "lock_path", l.path)
	return nil
}

// LockError reports a lock held by another process.
type LockError struct {
	LockPath     string
	ExistingInfo string
	Cause        error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("Another TriagePipe instance is already running against the same state directory.\n\nLock file: %s", e.LockPath)

	if e.ExistingInfo != "" {
		msg += fmt.Sprintf("\nHeld by: %s", e.ExistingInfo)
	}

	msg += "\n\nIf no other TriagePipe instance is running, the lock file may be stale and can be removed:\n" +
		fmt.Sprintf("  rm %s", e.LockPath) +
		"\n\nOnly do this when you are certain no other instance is using the directory; concurrent\n" +
		"writers can corrupt the journal database."

	return msg
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// describeExistingLock reads the lock file left by the holder and reports what
// it can: the holder's PID and whether that process is still alive.
func describeExistingLock(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unable to read lock file"
	}

	content := string(data)
	if content == "" {
		return "lock file exists but carries no process information"
	}

	if pid := parseLockPID(content); pid > 0 {
		if processAlive(pid) {
			return fmt.Sprintf("PID %d (running)", pid)
		}
		return fmt.Sprintf("PID %d (not running, stale lock)", pid)
	}

	return fmt.Sprintf("unrecognized lock contents: %s", strings.TrimSpace(content))
}

// parseLockPID pulls the PID out of a "pid=NNNN" line. Returns 0 when no PID
// can be found.
func parseLockPID(content string) int {
	const prefix = "pid="
	idx := strings.Index(content, prefix)
	if idx == -1 {
		return 0
	}
	start := idx + len(prefix)
	end := start
	for end < len(content) && content[end] >= '0' && content[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	pid, err := strconv.Atoi(content[start:end])
	if err != nil {
		return 0
	}
	return pid
}

// processAlive reports whether a process with the given PID exists, using
// signal 0 which probes without delivering anything.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
