// Package device provides the stable per-installation identifier that scopes
// every capture, category and product on the server.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	idFile   = "device_id"
	lockFile = "device_id.lock"
)

// LoadOrCreate returns the id stored in dir, minting and persisting a new one
// on first use. Concurrent callers across processes agree on a single id.
func LoadOrCreate(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	if _, err := lock.TryLockContext(ctx, 50*time.Millisecond); err != nil {
		return "", fmt.Errorf("lock device id: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	path := filepath.Join(dir, idFile)
	id, err := read(path)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	id = uuid.NewString()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

func read(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(raw))
	if id == "" {
		// an empty file counts as missing so the id gets minted
		return "", fmt.Errorf("empty device id file: %w", os.ErrNotExist)
	}
	return id, nil
}
