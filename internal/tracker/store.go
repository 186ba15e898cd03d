// Package tracker owns the ordered workout collection and keeps it in sync
// with a persisted blob.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/observability"
	"github.com/claude/mapty/internal/storage"
)

// DefaultKey is the storage key the collection is persisted under.
const DefaultKey = "workouts"

// Observer is notified after each change to the collection. Callbacks run
// outside the store lock, in the goroutine that made the change, and are
// delivered in the order the changes were made. Callbacks must not modify
// the store.
type Observer interface {
	WorkoutAdded(w models.Workout)
	WorkoutUpdated(w models.Workout)
	WorkoutRemoved(id string)
	WorkoutsCleared()
}

// Patch carries the editable fields of a workout. Nil fields are left
// alone; fields that do not apply to the workout's kind are ignored.
type Patch struct {
	DistanceKm     *float64 `json:"distanceKm,omitempty"`
	DurationMin    *float64 `json:"durationMin,omitempty"`
	Cadence        *float64 `json:"cadence,omitempty"`
	ElevationGainM *float64 `json:"elevationGainM,omitempty"`
}

// Store holds the in-memory collection in insertion order. Every mutation
// rewrites the whole collection to the blob store.
type Store struct {
	mu        sync.Mutex
	// notifyMu is taken before mu is released and held while observers run.
	notifyMu  sync.Mutex
	blobs     storage.BlobStore
	key       string
	log       *slog.Logger
	workouts  []models.Workout
	observers []Observer
}

// New creates a Store persisting under key. Call Initialize before use.
func New(blobs storage.BlobStore, key string, log *slog.Logger, observers ...Observer) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		blobs:     blobs,
		key:       key,
		log:       log,
		observers: observers,
	}
}

// Subscribe registers an additional observer.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Initialize loads the persisted collection and returns it for rendering.
// A missing blob yields an empty collection. A corrupt blob also yields an
// empty collection, together with a *StorageCorruptError.
func (s *Store) Initialize(ctx context.Context) ([]models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workouts = nil
	observability.SetWorkoutCount(0)

	data, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		s.log.Info("no stored workouts", "key", s.key)
		return nil, nil
	}
	if err != nil {
		s.record("initialize", err)
		return nil, fmt.Errorf("loading workouts: %w", err)
	}

	decoded, err := models.Decode(data)
	if err != nil {
		corrupt := &StorageCorruptError{Key: s.key, Err: err}
		s.log.Error("stored workouts are corrupt, starting empty", "key", s.key, "error", err)
		s.keepOriginalLocked(ctx, data, nil)
		s.record("initialize", corrupt)
		return nil, corrupt
	}
	if len(decoded.Skipped) > 0 {
		s.keepOriginalLocked(ctx, data, decoded.Skipped)
	}

	s.workouts = decoded.Workouts
	observability.SetWorkoutCount(len(s.workouts))
	s.record("initialize", nil)
	s.log.Info("workouts loaded", "key", s.key, "count", len(s.workouts), "skipped", len(decoded.Skipped))
	return s.snapshotLocked(), nil
}

// keepOriginalLocked logs any dropped legacy records and copies the raw
// blob to BackupKey before the next write replaces it.
func (s *Store) keepOriginalLocked(ctx context.Context, data []byte, skipped []models.SkippedRecord) {
	for _, sk := range skipped {
		s.log.Warn("skipping unreadable stored workout", "key", s.key, "index", sk.Index, "id", sk.ID, "error", sk.Err)
	}
	backup := BackupKey(s.key)
	if err := s.blobs.Put(ctx, backup, data); err != nil {
		s.log.Error("saving original workouts failed", "key", backup, "error", err)
		return
	}
	s.log.Warn("original workouts saved", "key", backup, "skipped", len(skipped))
}

// BackupKey is where the untouched blob is kept when stored records could
// not be loaded.
func BackupKey(key string) string {
	return key + ".corrupt"
}

// List returns the collection in display order.
func (s *Store) List() []models.Workout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of workouts held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workouts)
}

// FindByID returns the workout with id or ErrNotFound.
func (s *Store) FindByID(id string) (models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.Workout{}, notFound(id)
	}
	return s.workouts[i].Clone(), nil
}

// Add appends w and persists the collection. Ids are not checked for
// duplicates; use Merge for external data.
func (s *Store) Add(ctx context.Context, w models.Workout) error {
	if err := w.Validate(); err != nil {
		observability.RecordOperation("add", observability.ResultInvalid)
		return err
	}
	w = w.Clone()

	s.mu.Lock()
	s.workouts = append(s.workouts, w)
	err := s.persistLocked(ctx)
	s.record("add", err)

	s.log.Info("workout added", "id", w.ID, "kind", w.Kind)
	s.unlockAndNotify(func(o Observer) { o.WorkoutAdded(w.Clone()) })
	return err
}

// Update edits a workout in place. Pace, speed and description keep the
// values computed at creation.
func (s *Store) Update(ctx context.Context, id string, p Patch) (models.Workout, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.record("update", ErrNotFound)
		s.mu.Unlock()
		return models.Workout{}, notFound(id)
	}

	updated := s.workouts[i].Clone()
	if err := applyPatch(&updated, p); err != nil {
		s.record("update", err)
		s.mu.Unlock()
		return models.Workout{}, err
	}

	s.workouts[i] = updated
	err := s.persistLocked(ctx)
	s.record("update", err)

	s.log.Info("workout updated", "id", id)
	s.unlockAndNotify(func(o Observer) { o.WorkoutUpdated(updated.Clone()) })
	return updated.Clone(), err
}

func applyPatch(w *models.Workout, p Patch) error {
	if p.DistanceKm != nil {
		if err := models.RequirePositive("distance", *p.DistanceKm); err != nil {
			return err
		}
	}
	if p.DurationMin != nil {
		if err := models.RequirePositive("duration", *p.DurationMin); err != nil {
			return err
		}
	}
	if p.Cadence != nil && w.Running != nil {
		if err := models.RequirePositive("cadence", *p.Cadence); err != nil {
			return err
		}
	}
	if p.ElevationGainM != nil && w.Cycling != nil {
		if err := models.RequireFinite("elevation", *p.ElevationGainM); err != nil {
			return err
		}
	}

	if p.DistanceKm != nil {
		w.DistanceKm = *p.DistanceKm
	}
	if p.DurationMin != nil {
		w.DurationMin = *p.DurationMin
	}
	if p.Cadence != nil && w.Running != nil {
		w.Running.Cadence = *p.Cadence
	}
	if p.ElevationGainM != nil && w.Cycling != nil {
		w.Cycling.ElevationGainM = *p.ElevationGainM
	}
	return nil
}

// Remove deletes the workout with id. Unknown ids are ignored so stale
// views can retry safely.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.record("remove", nil)
		s.mu.Unlock()
		s.log.Debug("remove: workout already absent", "id", id)
		return nil
	}

	s.workouts = append(s.workouts[:i:i], s.workouts[i+1:]...)
	err := s.persistLocked(ctx)
	s.record("remove", err)

	s.log.Info("workout removed", "id", id)
	s.unlockAndNotify(func(o Observer) { o.WorkoutRemoved(id) })
	return err
}

// Clear deletes the persisted collection and empties the in-memory one.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.workouts = nil
	observability.SetWorkoutCount(0)

	var err error
	if delErr := s.blobs.Delete(ctx, s.key); delErr != nil {
		err = &StorageWriteError{Key: s.key, Err: delErr}
		s.log.Error("clearing stored workouts failed", "key", s.key, "error", delErr)
	}
	s.record("clear", err)

	s.log.Info("workouts cleared", "key", s.key)
	s.unlockAndNotify(func(o Observer) { o.WorkoutsCleared() })
	return err
}

// Focus counts a selection of the workout and returns it so the caller can
// centre the map on its coordinates.
func (s *Store) Focus(ctx context.Context, id string) (models.Workout, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.record("focus", ErrNotFound)
		s.mu.Unlock()
		return models.Workout{}, notFound(id)
	}

	s.workouts[i].Clicks++
	focused := s.workouts[i].Clone()
	err := s.persistLocked(ctx)
	s.record("focus", err)

	s.unlockAndNotify(func(o Observer) { o.WorkoutUpdated(focused.Clone()) })
	return focused, err
}

// Merge appends workouts whose ids are not yet present, in order, and
// persists once. Colliding ids, including repeats within ws, are skipped.
// It returns the number added.
func (s *Store) Merge(ctx context.Context, ws []models.Workout) (int, error) {
	for _, w := range ws {
		if err := w.Validate(); err != nil {
			observability.RecordOperation("merge", observability.ResultInvalid)
			return 0, err
		}
	}

	s.mu.Lock()
	seen := make(map[string]bool, len(s.workouts)+len(ws))
	for _, w := range s.workouts {
		seen[w.ID] = true
	}
	var added []models.Workout
	for _, w := range ws {
		if seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		added = append(added, w.Clone())
	}
	if len(added) == 0 {
		s.record("merge", nil)
		s.mu.Unlock()
		return 0, nil
	}

	s.workouts = append(s.workouts, added...)
	err := s.persistLocked(ctx)
	s.record("merge", err)

	s.log.Info("workouts merged", "received", len(ws), "added", len(added))
	s.unlockAndNotify(func(o Observer) {
		for _, w := range added {
			o.WorkoutAdded(w.Clone())
		}
	})
	return len(added), err
}

// Export returns the collection encoded in the persisted layout.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.EncodeBlob(s.workouts)
}

// unlockAndNotify releases mu and runs fn for each observer. notifyMu is
// acquired first, so a later change cannot notify ahead of this one.
func (s *Store) unlockAndNotify(fn func(Observer)) {
	observers := s.observers
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, o := range observers {
		fn(o)
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.workouts {
		if s.workouts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []models.Workout {
	out := make([]models.Workout, 0, len(s.workouts))
	for _, w := range s.workouts {
		out = append(out, w.Clone())
	}
	return out
}

// persistLocked writes the whole collection. The in-memory state is kept
// even when the write fails.
func (s *Store) persistLocked(ctx context.Context) error {
	observability.SetWorkoutCount(len(s.workouts))

	data, err := models.EncodeBlob(s.workouts)
	if err != nil {
		return &StorageWriteError{Key: s.key, Err: err}
	}
	if err := s.blobs.Put(ctx, s.key, data); err != nil {
		s.log.Error("persisting workouts failed", "key", s.key, "count", len(s.workouts), "error", err)
		return &StorageWriteError{Key: s.key, Err: err}
	}
	observability.RecordPersisted(time.Now(), len(data))
	return nil
}

func (s *Store) record(op string, err error) {
	observability.RecordOperation(op, resultLabel(err))
}

func resultLabel(err error) string {
	var verr *models.ValidationError
	switch {
	case err == nil:
		return observability.ResultOK
	case errors.Is(err, ErrNotFound):
		return observability.ResultNotFound
	case errors.As(err, &verr):
		return observability.ResultInvalid
	default:
		return observability.ResultStorageError
	}
}
