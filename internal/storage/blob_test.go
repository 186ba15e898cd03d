package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// exerciseBlobStore runs the contract every BlobStore must satisfy.
func exerciseBlobStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "workouts"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrKeyNotFound", err)
	}

	if err := s.Put(ctx, "workouts", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "workouts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte(`{"version":1}`)) {
		t.Errorf("Get = %q", got)
	}

	// Put replaces the whole value.
	if err := s.Put(ctx, "workouts", []byte(`[]`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _ = s.Get(ctx, "workouts")
	if string(got) != "[]" {
		t.Errorf("after overwrite Get = %q, want []", got)
	}

	// Keys are independent.
	if err := s.Put(ctx, "other", []byte("x")); err != nil {
		t.Fatalf("Put other: %v", err)
	}
	if err := s.Delete(ctx, "workouts"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "workouts"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after delete err = %v, want ErrKeyNotFound", err)
	}
	if got, err := s.Get(ctx, "other"); err != nil || string(got) != "x" {
		t.Errorf("Get(other) = %q, %v", got, err)
	}

	// Deleting twice is fine.
	if err := s.Delete(ctx, "workouts"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

// TestMemoryStore verifies the in-memory store against the BlobStore contract.
func TestMemoryStore(t *testing.T) {
	exerciseBlobStore(t, NewMemory())
}

// TestMemoryStoreCopies verifies callers cannot mutate stored bytes through
// the slices they pass in or get back.
func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := []byte("abc")
	_ = m.Put(ctx, "k", in)
	in[0] = 'z'

	out, _ := m.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value changed to %q", out)
	}
	out[0] = 'y'
	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value changed to %q", again)
	}
}

// TestSQLiteStore verifies the SQLite store against the BlobStore contract.
func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseBlobStore(t, s)
}

// TestSQLiteStoreSurvivesReopen verifies values are durable across
// process restarts.
func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Put(ctx, "workouts", []byte("persisted")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "workouts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get = %q, want persisted", got)
	}
}

// TestOpenDrivers verifies driver selection and rejection of unknown names.
func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverMemory, "")
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("Open(memory) = %T", s)
	}

	s, err = Open(ctx, DriverSQLite, t.TempDir())
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLite); !ok {
		t.Errorf("Open(sqlite) = %T", s)
	}

	if _, err := Open(ctx, "redis", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}
