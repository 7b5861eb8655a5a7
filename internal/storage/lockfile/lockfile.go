// Package lockfile guards against two bot processes sharing one database.
// The lock is a plain file created with O_EXCL; its JSON payload records who
// holds it so a crash leaves enough evidence for a stale takeover.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ErrHeld is returned when another live process already holds the lock.
var ErrHeld = errors.New("lock already held")

type payload struct {
	PID  int       `json:"pid"`
	Time time.Time `json:"time"`
}

// Lock is an acquired process lock. Release removes it.
type Lock struct {
	path string
}

// Acquire claims the lock at path. An existing lock older than staleAfter is
// treated as the leftover of a crashed process and taken over; a younger one
// fails with ErrHeld.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			data, _ := json.Marshal(payload{PID: os.Getpid(), Time: time.Now()})
			if _, werr := f.Write(data); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("closing lock file: %w", cerr)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		holder, perr := readPayload(path)
		if perr != nil {
			// Unreadable or corrupt lock counts as stale.
			slog.Warn("Removing unreadable lock file", "path", path, "error", perr)
			os.Remove(path)
			continue
		}
		if time.Since(holder.Time) < staleAfter {
			return nil, fmt.Errorf("%w by pid %d since %s", ErrHeld, holder.PID,
				holder.Time.Format(time.RFC3339))
		}
		slog.Warn("Taking over stale lock", "path", path, "pid", holder.PID, "age", time.Since(holder.Time))
		os.Remove(path)
	}
	return nil, ErrHeld
}

func readPayload(path string) (payload, error) {
	var p payload
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	return p, nil
}

// Release removes the lock file. Safe to call once.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}
