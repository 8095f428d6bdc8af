package filesystem

import (
	"os"

	"github.com/conneroisu/stubforge/internal/errors"
)

// LockShared takes a shared advisory lock on f, blocking until granted.
func LockShared(f *os.File) error {
	if err := lockShared(f); err != nil {
		return errors.NewIOError(errors.ErrCodeLock, f.Name(), "cannot acquire shared lock", err)
	}
	return nil
}

// LockExclusive takes an exclusive advisory lock on f, blocking until granted.
func LockExclusive(f *os.File) error {
	if err := lockExclusive(f); err != nil {
		return errors.NewIOError(errors.ErrCodeLock, f.Name(), "cannot acquire exclusive lock", err)
	}
	return nil
}

// Unlock releases any advisory lock held on f.
func Unlock(f *os.File) error {
	if err := unlock(f); err != nil {
		return errors.NewIOError(errors.ErrCodeLock, f.Name(), "cannot release lock", err)
	}
	return nil
}

// OpenShared opens path for reading under a shared lock. The caller releases
// it with Unlock before closing.
func OpenShared(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeReadFile, path, "cannot open for reading", err)
	}
	if err := LockShared(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
