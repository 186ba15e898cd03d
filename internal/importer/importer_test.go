package importer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/storage"
	"github.com/claude/mapty/internal/tracker"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

const legacyBlob = `[
  {"id":"1700000000000","date":"2023-11-14T22:13:20.000Z","coords":[39.7,-8.1],
   "distance":5.2,"duration":25,"type":"running","description":"Running on November 2",
   "clicks":3,"cadence":178,"pace":4.8076923076923075},
  {"id":"1700000100000","date":"2023-11-14T22:15:00.000Z","coords":[39.8,-8.2],
   "distance":"27","duration":95,"type":"cycling","description":"Cycling on November 2",
   "clicks":0,"elevationGain":523,"speed":17.05263157894737}
]`

func newStore(t *testing.T) *tracker.Store {
	t.Helper()
	s := tracker.New(storage.NewMemory(), "", testLog)
	if _, err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

// TestImportLegacy verifies a bare browser array is merged with its ids,
// dates and derived metrics intact.
func TestImportLegacy(t *testing.T) {
	store := newStore(t)
	stats, err := New(store, testLog, false).Import(context.Background(), strings.NewReader(legacyBlob))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Received != 2 || stats.Imported != 2 || stats.Duplicated != 0 {
		t.Errorf("stats = %+v", stats)
	}

	run, err := store.FindByID("1700000000000")
	if err != nil {
		t.Fatal(err)
	}
	if run.Kind != models.KindRunning || run.Running.Cadence != 178 || run.Clicks != 3 {
		t.Errorf("run = %+v %+v", run, run.Running)
	}
	ride, err := store.FindByID("1700000100000")
	if err != nil {
		t.Fatal(err)
	}
	if ride.DistanceKm != 27 || ride.Cycling.ElevationGainM != 523 {
		t.Errorf("ride = %+v %+v", ride, ride.Cycling)
	}
}

// TestImportLegacyCountsSkipped verifies an unreadable legacy element is
// skipped and counted while the rest of the array is merged.
func TestImportLegacyCountsSkipped(t *testing.T) {
	store := newStore(t)
	blob := `[
	  {"id":"a","date":"2023-11-14T22:13:20.000Z","coords":[39.7,-8.1],
	   "distance":"abc","duration":25,"type":"running","cadence":178},
	  {"id":"b","date":"2023-11-14T22:15:00.000Z","coords":[39.8,-8.2],
	   "distance":5,"duration":25,"type":"running","cadence":""}
	]`
	stats, err := New(store, testLog, false).Import(context.Background(), strings.NewReader(blob))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Received != 1 || stats.Imported != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if _, err := store.FindByID("b"); err != nil {
		t.Errorf("FindByID(b): %v", err)
	}
}

// TestImportTwiceCountsDuplicates verifies re-importing the same blob adds
// nothing.
func TestImportTwiceCountsDuplicates(t *testing.T) {
	store := newStore(t)
	imp := New(store, testLog, false)
	ctx := context.Background()

	if _, err := imp.Import(ctx, strings.NewReader(legacyBlob)); err != nil {
		t.Fatal(err)
	}
	stats, err := imp.Import(ctx, strings.NewReader(legacyBlob))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Imported != 0 || stats.Duplicated != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
}

// TestImportDryRun verifies nothing is written in dry-run mode.
func TestImportDryRun(t *testing.T) {
	store := newStore(t)
	stats, err := New(store, testLog, true).Import(context.Background(), strings.NewReader(legacyBlob))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Imported != 2 {
		t.Errorf("would import %d, want 2", stats.Imported)
	}
	if store.Len() != 0 {
		t.Errorf("dry run wrote %d workouts", store.Len())
	}
}

// TestImportMalformed verifies garbage input is rejected without changes.
func TestImportMalformed(t *testing.T) {
	store := newStore(t)
	if _, err := New(store, testLog, false).Import(context.Background(), strings.NewReader("hello")); err == nil {
		t.Fatal("expected error")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d", store.Len())
	}
}

// TestExportRoundTrip verifies an export can be imported into a fresh store,
// including through a gzip file.
func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	w, err := models.NewRunning(models.Coords{Lat: 1, Lng: 2}, 10, 50, 170)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Add(ctx, *w); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Export(src, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), `{"version":1`) {
		t.Errorf("export = %s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "workouts.json.gz")
	if err := ExportFile(src, path); err != nil {
		t.Fatal(err)
	}

	dst := newStore(t)
	stats, err := New(dst, testLog, false).ImportFile(ctx, path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if stats.Imported != 1 {
		t.Errorf("stats = %+v", stats)
	}
	got, err := dst.FindByID(w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Running.PaceMinPerKm != 5 {
		t.Errorf("pace = %v, want 5", got.Running.PaceMinPerKm)
	}
}
