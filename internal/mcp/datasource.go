package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/claude/mapty/internal/form"
	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/tracker"
)

// DataSource abstracts the workout store for MCP tools. Both LocalSource
// (in-process store) and HTTPClient (remote via REST API) satisfy this
// interface.
//
// When a write is applied but could not be saved, LogWorkout and
// UpdateWorkout return the record together with a
// *tracker.StorageWriteError, and DeleteWorkout returns the error alone.
type DataSource interface {
	ListWorkouts(ctx context.Context, kind models.Kind) ([]models.Record, error)
	GetWorkout(ctx context.Context, id string) (*models.Record, error)
	LogWorkout(ctx context.Context, req form.Request) (*models.Record, error)
	UpdateWorkout(ctx context.Context, id string, p tracker.Patch) (*models.Record, error)
	DeleteWorkout(ctx context.Context, id string) error
}

// LocalSource serves tools straight from a tracker.Store.
type LocalSource struct {
	store *tracker.Store
	now   func() time.Time
}

// Compile-time check: LocalSource satisfies DataSource.
var _ DataSource = (*LocalSource)(nil)

// NewLocalSource wraps store.
func NewLocalSource(store *tracker.Store) *LocalSource {
	return &LocalSource{store: store, now: time.Now}
}

func (l *LocalSource) ListWorkouts(_ context.Context, kind models.Kind) ([]models.Record, error) {
	var out []models.Record
	for _, w := range l.store.List() {
		if kind != "" && w.Kind != kind {
			continue
		}
		out = append(out, models.ToRecord(w))
	}
	return out, nil
}

func (l *LocalSource) GetWorkout(_ context.Context, id string) (*models.Record, error) {
	w, err := l.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	rec := models.ToRecord(w)
	return &rec, nil
}

func (l *LocalSource) LogWorkout(ctx context.Context, req form.Request) (*models.Record, error) {
	w, err := req.Build(l.now())
	if err != nil {
		return nil, err
	}
	err = l.store.Add(ctx, *w)
	if err != nil && !isWriteError(err) {
		return nil, err
	}
	rec := models.ToRecord(*w)
	return &rec, err
}

func (l *LocalSource) UpdateWorkout(ctx context.Context, id string, p tracker.Patch) (*models.Record, error) {
	w, err := l.store.Update(ctx, id, p)
	if err != nil && !isWriteError(err) {
		return nil, err
	}
	rec := models.ToRecord(w)
	return &rec, err
}

func (l *LocalSource) DeleteWorkout(ctx context.Context, id string) error {
	return l.store.Remove(ctx, id)
}

func isWriteError(err error) bool {
	var werr *tracker.StorageWriteError
	return errors.As(err, &werr)
}
