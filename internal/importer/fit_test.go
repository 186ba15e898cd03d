package importer

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/claude/mapty/internal/models"
)

var fitStart = time.Date(2024, time.March, 6, 7, 30, 0, 0, time.UTC)

func toSemicircles(deg float64) int32 {
	return int32(deg * semicircles)
}

// activityFIT encodes a FIT file with a run, a ride and a swim.
func activityFIT(t *testing.T) []byte {
	t.Helper()
	fit := &proto.FIT{}

	fileID := mesgdef.NewFileId(nil).
		SetType(typedef.FileActivity).
		SetManufacturer(typedef.ManufacturerDevelopment).
		SetProduct(1).
		SetTimeCreated(fitStart)
	fit.Messages = append(fit.Messages, fileID.ToMesg(nil))

	run := mesgdef.NewSession(nil).
		SetTimestamp(fitStart.Add(25*time.Minute)).
		SetStartTime(fitStart).
		SetSport(typedef.SportRunning).
		SetTotalDistance(520000).
		SetTotalTimerTime(1500000).
		SetTotalElapsedTime(1560000).
		SetAvgCadence(89).
		SetStartPositionLat(toSemicircles(52.52)).
		SetStartPositionLong(toSemicircles(13.405))
	fit.Messages = append(fit.Messages, run.ToMesg(nil))

	rideStart := fitStart.Add(2 * time.Hour)
	ride := mesgdef.NewSession(nil).
		SetTimestamp(rideStart.Add(95*time.Minute)).
		SetStartTime(rideStart).
		SetSport(typedef.SportCycling).
		SetTotalDistance(2700000).
		SetTotalElapsedTime(5700000).
		SetTotalAscent(523)
	fit.Messages = append(fit.Messages, ride.ToMesg(nil))

	swim := mesgdef.NewSession(nil).
		SetTimestamp(fitStart.Add(5*time.Hour)).
		SetStartTime(fitStart.Add(4*time.Hour)).
		SetSport(typedef.SportSwimming).
		SetTotalDistance(150000).
		SetTotalTimerTime(1800000)
	fit.Messages = append(fit.Messages, swim.ToMesg(nil))

	var buf bytes.Buffer
	if err := encoder.New(&buf).Encode(fit); err != nil {
		t.Fatalf("encode FIT: %v", err)
	}
	return buf.Bytes()
}

// TestParseFIT verifies run and ride sessions become workouts and other
// sports are skipped.
func TestParseFIT(t *testing.T) {
	workouts, skipped, err := ParseFIT(activityFIT(t))
	if err != nil {
		t.Fatalf("ParseFIT: %v", err)
	}
	if len(workouts) != 2 || skipped != 1 {
		t.Fatalf("got %d workouts, %d skipped; want 2, 1", len(workouts), skipped)
	}

	run := workouts[0]
	if run.Kind != models.KindRunning {
		t.Fatalf("first kind = %q", run.Kind)
	}
	if run.DistanceKm != 5.2 || run.DurationMin != 25 {
		t.Errorf("run distance/duration = %v/%v", run.DistanceKm, run.DurationMin)
	}
	if run.Running.Cadence != 178 {
		t.Errorf("cadence = %v, want 178", run.Running.Cadence)
	}
	if math.Abs(run.Coords.Lat-52.52) > 1e-6 || math.Abs(run.Coords.Lng-13.405) > 1e-6 {
		t.Errorf("coords = %+v", run.Coords)
	}
	if !run.CreatedAt.Equal(fitStart) {
		t.Errorf("createdAt = %v", run.CreatedAt)
	}
	if run.Description != models.Describe(models.KindRunning, fitStart) {
		t.Errorf("description = %q", run.Description)
	}

	ride := workouts[1]
	if ride.Kind != models.KindCycling || ride.Cycling.ElevationGainM != 523 {
		t.Errorf("ride = %+v %+v", ride, ride.Cycling)
	}
	// No timer time: elapsed time is used.
	if ride.DurationMin != 95 {
		t.Errorf("ride duration = %v, want 95", ride.DurationMin)
	}
	if ride.Coords != (models.Coords{}) {
		t.Errorf("ride without start position has coords %+v", ride.Coords)
	}
}

// TestParseFITDeterministicIDs verifies the same file yields the same ids.
func TestParseFITDeterministicIDs(t *testing.T) {
	data := activityFIT(t)
	first, _, err := ParseFIT(data)
	if err != nil {
		t.Fatal(err)
	}
	second, _, _ := ParseFIT(data)
	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Error("ids differ between parses")
	}
	if first[0].ID == first[1].ID {
		t.Error("sessions share an id")
	}
}

// TestParseFITRejectsGarbage verifies empty and non-FIT input fails.
func TestParseFITRejectsGarbage(t *testing.T) {
	if _, _, err := ParseFIT(nil); err == nil {
		t.Error("expected error for empty data")
	}
	if _, _, err := ParseFIT([]byte("definitely not a FIT file")); err == nil {
		t.Error("expected error for garbage")
	}
}

// TestImportFITFile verifies .fit files route through the FIT reader and a
// second import only counts duplicates.
func TestImportFITFile(t *testing.T) {
	store := newStore(t)
	path := filepath.Join(t.TempDir(), "morning.fit")
	if err := os.WriteFile(path, activityFIT(t), 0o644); err != nil {
		t.Fatal(err)
	}

	imp := New(store, testLog, false)
	stats, err := imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if stats.Received != 2 || stats.Imported != 2 {
		t.Errorf("first import stats = %+v", stats)
	}

	stats, err = imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Imported != 0 || stats.Duplicated != 2 {
		t.Errorf("second import stats = %+v", stats)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d workouts, want 2", store.Len())
	}
}
