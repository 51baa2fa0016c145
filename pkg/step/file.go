package step

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/philipparndt/stl2step/pkg/mesh"
)

// ErrLocked is returned when another writer holds the output lock until the
// context is done
var ErrLocked = errors.New("output file is locked by another conversion")

const lockRetryDelay = 50 * time.Millisecond

// WriteFile writes the shell to path, replacing any existing file. The data
// goes to a temporary file in the same directory first, so a failed write
// never leaves a partial file behind. Concurrent writers to the same path are
// serialized through an advisory lock file next to it. The lock file stays in
// place so every writer locks the same inode.
func WriteFile(ctx context.Context, path string, shell *mesh.Shell, opts Options) (err error) {
	if err := validate(shell); err != nil {
		return err
	}

	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		if ctx.Err() != nil {
			return errors.Wrap(ErrLocked, path)
		}
		return errors.Wrapf(err, "lock %s", lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Write(tmp, shell, opts); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temporary file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary file")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "chmod temporary file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
