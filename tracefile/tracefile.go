// Package tracefile stores serialized cache traces on disk.
//
// Saves are atomic: data goes to a uniquely named temp file in the target
// directory, then renames over the destination. An advisory flock around both
// Save and Load keeps concurrent tools (a renderer serializing on exit, a
// warmer reading the same trace) from tearing each other's bytes.
package tracefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// lockRetryInterval is the interval between consecutive attempts to acquire
// the trace file lock.
const lockRetryInterval = 50 * time.Millisecond

// lockPath derives the sibling lock file guarding a trace path.
func lockPath(path string) string {
	return path + ".lock"
}

// acquireLock acquires an exclusive advisory lock for the trace at path,
// retrying until the context is done.
func acquireLock(ctx context.Context, path string) (*flock.Flock, error) {
	fl := flock.New(lockPath(path))

	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("tracefile: acquiring lock %s: %w", fl.Path(), err)
	}
	if !locked {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("tracefile: acquiring lock %s: %w", fl.Path(), ctx.Err())
		}
		return nil, fmt.Errorf("tracefile: acquiring lock %s: lock not acquired", fl.Path())
	}
	return fl, nil
}

// releaseLock releases the advisory lock. The lock file stays on disk;
// removing it could invalidate a lock concurrently acquired by another
// process. Errors are logged, not returned; this is best-effort cleanup.
func releaseLock(fl *flock.Flock) {
	if err := fl.Close(); err != nil {
		slogger().Debug("failed to release trace lock", "path", fl.Path(), "err", err)
	}
}

// Save writes data to path atomically under the trace lock.
func Save(ctx context.Context, path string, data []byte) error {
	// The lock file lives beside the trace, so the directory must exist
	// before the lock can be created.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("tracefile: create trace directory: %w", err)
	}

	fl, err := acquireLock(ctx, path)
	if err != nil {
		return err
	}
	defer releaseLock(fl)

	// Write-then-rename in the destination directory so the rename never
	// crosses a filesystem boundary.
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("tracefile: write temp trace: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("tracefile: install trace: %w", err)
	}

	slogger().Debug("trace saved", "path", path, "bytes", len(data))
	return nil
}

// Load reads the trace at path under the trace lock.
func Load(ctx context.Context, path string) ([]byte, error) {
	fl, err := acquireLock(ctx, path)
	if err != nil {
		return nil, err
	}
	defer releaseLock(fl)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tracefile: read trace: %w", err)
	}

	slogger().Debug("trace loaded", "path", path, "bytes", len(data))
	return data, nil
}
