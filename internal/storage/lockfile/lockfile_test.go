package lockfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	lock, err := Acquire(path, time.Hour)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var p payload
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading lock file: %v", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("lock payload is not JSON: %v", err)
	}
	if p.PID != os.Getpid() {
		t.Errorf("lock pid = %d, want %d", p.PID, os.Getpid())
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still exists after Release")
	}
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	lock, err := Acquire(path, time.Hour)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	if _, err := Acquire(path, time.Hour); !errors.Is(err, ErrHeld) {
		t.Errorf("second Acquire() error = %v, want ErrHeld", err)
	}
}

func TestAcquire_StaleTakeover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	stale, _ := json.Marshal(payload{PID: 12345, Time: time.Now().Add(-2 * time.Hour)})
	if err := os.WriteFile(path, stale, 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(path, time.Hour)
	if err != nil {
		t.Fatalf("Acquire() over stale lock error = %v", err)
	}
	defer lock.Release()

	var p payload
	data, _ := os.ReadFile(path)
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("lock payload is not JSON: %v", err)
	}
	if p.PID != os.Getpid() {
		t.Errorf("lock pid = %d after takeover, want %d", p.PID, os.Getpid())
	}
}

func TestAcquire_CorruptLockTakeover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := Acquire(path, time.Hour)
	if err != nil {
		t.Fatalf("Acquire() over corrupt lock error = %v", err)
	}
	lock.Release()
}
