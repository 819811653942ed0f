package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAgentRunning is returned by AcquirePidFile when another live agent
// already owns the data directory.
var ErrAgentRunning = fmt.Errorf("another agent is already running")

// PidFilePath is the lock file that marks a running agent.
func PidFilePath(dir string) string {
	return filepath.Join(dir, "courier.pid")
}

// AcquirePidFile claims the data directory for this process. A pid file left
// by a crashed agent is detected by probing the recorded pid and reclaimed.
func AcquirePidFile(dir string) error {
	path := PidFilePath(dir)

	if data, err := os.ReadFile(path); err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
		if perr == nil && pid > 0 && pid != os.Getpid() && pidAlive(pid) {
			return fmt.Errorf("%w (pid %d)", ErrAgentRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read pid file: %w", err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// ReleasePidFile removes the lock if this process still owns it.
func ReleasePidFile(dir string) error {
	path := PidFilePath(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err == nil && pid != os.Getpid() {
		// A newer agent reclaimed the directory.
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// pidAlive probes a pid with the null signal.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
