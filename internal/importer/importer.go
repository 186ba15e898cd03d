// Package importer moves workout collections between files and the store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/tracker"
)

// Stats tracks import progress.
type Stats struct {
	Received   int
	Imported   int
	Duplicated int
	Skipped    int
}

// Importer reads exported or legacy blobs and merges them into a store.
type Importer struct {
	store  *tracker.Store
	log    *slog.Logger
	dryRun bool
}

// New creates a new Importer. With dryRun set nothing is written and
// Stats reports what would have been imported.
func New(store *tracker.Store, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, log: log, dryRun: dryRun}
}

// ImportFile imports the blob at path. Files ending in .gz are
// decompressed first. FIT activity files (.fit, .fit.gz) are read with
// ImportFIT.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	if isFIT(path) {
		return imp.ImportFIT(ctx, path)
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	imp.log.Info("importing workouts", "path", path, "bytes", len(data))
	return imp.importBytes(ctx, data)
}

// Import reads a blob in either the versioned or the legacy layout from r
// and merges it into the store. Workouts whose ids already exist are
// counted as duplicates and left untouched.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}
	return imp.importBytes(ctx, data)
}

func (imp *Importer) importBytes(ctx context.Context, data []byte) (*Stats, error) {
	decoded, err := models.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding import: %w", err)
	}
	for _, sk := range decoded.Skipped {
		imp.log.Warn("skipping unreadable workout", "index", sk.Index, "id", sk.ID, "error", sk.Err)
	}
	stats, err := imp.merge(ctx, decoded.Workouts)
	if stats != nil {
		stats.Skipped = len(decoded.Skipped)
	}
	return stats, err
}

func (imp *Importer) merge(ctx context.Context, workouts []models.Workout) (*Stats, error) {
	stats := &Stats{Received: len(workouts)}
	if imp.dryRun {
		stats.Imported = countNew(imp.store.List(), workouts)
		stats.Duplicated = stats.Received - stats.Imported
		imp.log.Info("dry run", "received", stats.Received, "would_import", stats.Imported)
		return stats, nil
	}

	added, err := imp.store.Merge(ctx, workouts)
	var writeErr *tracker.StorageWriteError
	if err != nil && !errors.As(err, &writeErr) {
		return nil, fmt.Errorf("merging workouts: %w", err)
	}
	stats.Imported = added
	stats.Duplicated = stats.Received - added
	if err != nil {
		// Merged in memory but not persisted.
		return stats, err
	}

	imp.log.Info("import complete",
		"received", stats.Received,
		"imported", stats.Imported,
		"duplicated", stats.Duplicated,
	)
	return stats, nil
}

// Export writes the store's collection to w in the versioned layout.
func Export(store *tracker.Store, w io.Writer) error {
	data, err := store.Export()
	if err != nil {
		return fmt.Errorf("encoding workouts: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// ExportFile writes the collection to path, gzip-compressed when path
// ends in .gz.
func ExportFile(store *tracker.Store, path string) error {
	data, err := store.Export()
	if err != nil {
		return fmt.Errorf("encoding workouts: %w", err)
	}
	if isGzip(path) {
		if data, err = compress(data); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func countNew(existing, incoming []models.Workout) int {
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, w := range existing {
		seen[w.ID] = true
	}
	n := 0
	for _, w := range incoming {
		if seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		n++
	}
	return n
}
