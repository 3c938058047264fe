package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Lock poll/deadline constants, matching the gateway singleton lock's
// defaults (internal/gateway/lock.go DefaultLockPollIntervalMs/TimeoutMs).
const (
	lockPollInterval = 100 * time.Millisecond
	lockDeadline     = 5 * time.Second
)

// ErrLockTimeout is returned when a profile lock could not be acquired
// within lockDeadline. A stale lock from a dead owner is not reclaimed
// automatically (spec.md §5) — callers see this error and surface it.
var ErrLockTimeout = errors.New("auth: timed out acquiring profile lock")

func lockPath(home, agentID, providerID string) string {
	return filepath.Join(home, ".slashbot", "locks", fmt.Sprintf("%s.%s.lock", agentID, providerID))
}

// WithProfileLock creates an exclusive-create lock file scoped to
// (agentID, providerID), polling every 100ms up to a 5s deadline, then
// runs fn while holding it. Callers must hold this lock around
// read-modify-write cycles such as token refresh (spec.md §4.6).
func WithProfileLock(home, agentID, providerID string, fn func() error) error {
	path := lockPath(home, agentID, providerID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	deadline := time.Now().Add(lockDeadline)
	var file *os.File
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			file = f
			break
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		time.Sleep(lockPollInterval)
	}

	defer func() {
		file.Close()
		os.Remove(path)
	}()

	fmt.Fprintf(file, "%d\n", os.Getpid())
	return fn()
}
