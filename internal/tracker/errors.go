package tracker

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no workout has the requested id.
var ErrNotFound = errors.New("workout not found")

// StorageCorruptError reports a persisted blob that exists but cannot be
// decoded into a workout collection.
type StorageCorruptError struct {
	Key string
	Err error
}

func (e *StorageCorruptError) Error() string {
	return fmt.Sprintf("stored workouts under %q are corrupt: %v", e.Key, e.Err)
}

func (e *StorageCorruptError) Unwrap() error { return e.Err }

// StorageWriteError reports a rejected write. The in-memory collection
// already reflects the change, so callers should warn that it may not
// survive a restart.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("persisting workouts under %q: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
