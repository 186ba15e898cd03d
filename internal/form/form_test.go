package form

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/claude/mapty/internal/models"
)

var now = time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC)

// TestParseRunning verifies a running form builds a running workout with
// pace derived from the raw fields.
func TestParseRunning(t *testing.T) {
	w, err := Parse(Input{Kind: "running", Distance: "5.2", Duration: "25", Cadence: "178", Lat: 39.7, Lng: -8.1}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Kind != models.KindRunning || w.Running == nil || w.Cycling != nil {
		t.Fatalf("workout = %+v", w)
	}
	if w.Coords != (models.Coords{Lat: 39.7, Lng: -8.1}) {
		t.Errorf("coords = %+v", w.Coords)
	}
	if math.Abs(w.Running.PaceMinPerKm-25/5.2) > 1e-9 {
		t.Errorf("pace = %v", w.Running.PaceMinPerKm)
	}
	if !w.CreatedAt.Equal(now) {
		t.Errorf("created = %v, want %v", w.CreatedAt, now)
	}
}

// TestParseCycling verifies the elevation field is used for cycling and
// the cadence field ignored.
func TestParseCycling(t *testing.T) {
	w, err := Parse(Input{Kind: "cycling", Distance: "27", Duration: "95", Cadence: "junk", Elevation: "523"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Cycling == nil || w.Cycling.ElevationGainM != 523 {
		t.Fatalf("workout = %+v", w)
	}
}

// TestParseBlankElevation verifies a blank elevation is accepted as zero.
func TestParseBlankElevation(t *testing.T) {
	w, err := Parse(Input{Kind: "cycling", Distance: "10", Duration: "30"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Cycling.ElevationGainM != 0 {
		t.Errorf("elevation = %v, want 0", w.Cycling.ElevationGainM)
	}
}

// TestParseRejects verifies blank, junk and non-positive inputs produce a
// validation error naming the field.
func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"blank distance", Input{Kind: "running", Duration: "25", Cadence: "170"}, "distance"},
		{"junk duration", Input{Kind: "running", Distance: "5", Duration: "abc", Cadence: "170"}, "duration"},
		{"blank cadence", Input{Kind: "running", Distance: "5", Duration: "25"}, "cadence"},
		{"negative distance", Input{Kind: "cycling", Distance: "-5", Duration: "25"}, "distance"},
		{"junk elevation", Input{Kind: "cycling", Distance: "5", Duration: "25", Elevation: "high"}, "elevation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in, now)
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

// TestParseUnknownKind verifies the kind selector is checked.
func TestParseUnknownKind(t *testing.T) {
	_, err := Parse(Input{Kind: "swimming", Distance: "1", Duration: "20"}, now)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

// TestNumber verifies browser-style numeric coercion.
func TestNumber(t *testing.T) {
	if got := Number(""); got != 0 {
		t.Errorf("Number(\"\") = %v", got)
	}
	if got := Number("  7.5 "); got != 7.5 {
		t.Errorf("Number(\"  7.5 \") = %v", got)
	}
	if got := Number("12km"); !math.IsNaN(got) {
		t.Errorf("Number(\"12km\") = %v, want NaN", got)
	}
}

// TestRequestBuild verifies the typed request builds each variant and
// rejects unknown kinds.
func TestRequestBuild(t *testing.T) {
	w, err := Request{Type: models.KindCycling, DistanceKm: 27, DurationMin: 95, ElevationGainM: -40}.Build(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Cycling.ElevationGainM != -40 {
		t.Errorf("elevation = %v", w.Cycling.ElevationGainM)
	}

	if _, err := (Request{Type: models.KindRunning, DistanceKm: 5, DurationMin: 25}).Build(now); err == nil {
		t.Error("expected error for missing cadence")
	}
	if _, err := (Request{Type: "hiking", DistanceKm: 5, DurationMin: 25}).Build(now); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}
