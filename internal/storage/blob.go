// Package storage holds the key/value blob stores that persist the workout
// collection.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Get when nothing is stored under the key.
var ErrKeyNotFound = errors.New("key not found")

// BlobStore persists opaque values under string keys. Implementations
// replace the whole value on Put.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// Open returns the BlobStore for driver. target is a directory for sqlite
// and a connection string for postgres and mysql; memory ignores it.
func Open(ctx context.Context, driver, target string) (BlobStore, error) {
	switch driver {
	case DriverSQLite:
		s, err := OpenSQLite(target)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if err := RunMigrations(target); err != nil {
			return nil, err
		}
		p, err := NewPostgres(ctx, target)
		if err != nil {
			return nil, err
		}
		return p, nil
	case DriverMySQL:
		m, err := NewMySQL(ctx, target)
		if err != nil {
			return nil, err
		}
		return m, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
