package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestNewRunningScenario verifies pace and payload for the reference run:
// 5.2 km in 25 min at cadence 178.
func TestNewRunningScenario(t *testing.T) {
	w, err := NewRunning(Coords{Lat: 39, Lng: -12}, 5.2, 25, 178)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Kind != KindRunning {
		t.Errorf("kind = %q, want running", w.Kind)
	}
	if w.Running == nil || w.Cycling != nil {
		t.Fatalf("payload = %+v / %+v, want running only", w.Running, w.Cycling)
	}
	if !almostEqual(w.Running.PaceMinPerKm, 25/5.2) {
		t.Errorf("pace = %v, want %v", w.Running.PaceMinPerKm, 25/5.2)
	}
	if math.Abs(w.Running.PaceMinPerKm-4.807692) > 1e-6 {
		t.Errorf("pace = %v, want ~4.807692", w.Running.PaceMinPerKm)
	}
	if w.Running.Cadence != 178 {
		t.Errorf("cadence = %v, want 178", w.Running.Cadence)
	}
	if w.Coords != (Coords{Lat: 39, Lng: -12}) {
		t.Errorf("coords = %+v", w.Coords)
	}
	if w.ID == "" {
		t.Error("expected generated id")
	}
}

// TestNewCyclingScenario verifies speed for the reference ride:
// 27 km in 95 min with 523 m of climbing.
func TestNewCyclingScenario(t *testing.T) {
	w, err := NewCycling(Coords{Lat: 39, Lng: -12}, 27, 95, 523)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Cycling == nil || w.Running != nil {
		t.Fatalf("payload = %+v / %+v, want cycling only", w.Running, w.Cycling)
	}
	if !almostEqual(w.Cycling.SpeedKmPerH, 27/(95.0/60)) {
		t.Errorf("speed = %v, want %v", w.Cycling.SpeedKmPerH, 27/(95.0/60))
	}
	if math.Abs(w.Cycling.SpeedKmPerH-17.0526) > 1e-4 {
		t.Errorf("speed = %v, want ~17.0526", w.Cycling.SpeedKmPerH)
	}
	if w.Cycling.ElevationGainM != 523 {
		t.Errorf("elevation = %v, want 523", w.Cycling.ElevationGainM)
	}
}

// TestDerivedMetricFormulas checks pace and speed over a grid of valid inputs.
func TestDerivedMetricFormulas(t *testing.T) {
	for _, dist := range []float64{0.1, 1, 5.2, 42.195, 180} {
		for _, dur := range []float64{0.5, 12, 25, 95, 600} {
			run, err := NewRunning(Coords{}, dist, dur, 170)
			if err != nil {
				t.Fatalf("NewRunning(%v, %v): %v", dist, dur, err)
			}
			if run.Running.PaceMinPerKm != dur/dist {
				t.Errorf("pace(%v, %v) = %v, want %v", dist, dur, run.Running.PaceMinPerKm, dur/dist)
			}

			ride, err := NewCycling(Coords{}, dist, dur, 0)
			if err != nil {
				t.Fatalf("NewCycling(%v, %v): %v", dist, dur, err)
			}
			if ride.Cycling.SpeedKmPerH != dist/(dur/60) {
				t.Errorf("speed(%v, %v) = %v, want %v", dist, dur, ride.Cycling.SpeedKmPerH, dist/(dur/60))
			}
		}
	}
}

// TestNewRunningRejectsBadInput verifies that zero, negative and non-finite
// values are rejected with a *ValidationError naming the field.
func TestNewRunningRejectsBadInput(t *testing.T) {
	cases := []struct {
		name      string
		dist, dur float64
		cadence   float64
		field     string
	}{
		{"zero distance", 0, 25, 178, "distance"},
		{"negative distance", -5, 25, 178, "distance"},
		{"NaN distance", math.NaN(), 25, 178, "distance"},
		{"infinite duration", 5, math.Inf(1), 178, "duration"},
		{"zero cadence", 5, 25, 0, "cadence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := NewRunning(Coords{}, tc.dist, tc.dur, tc.cadence)
			if w != nil {
				t.Errorf("expected no workout, got %+v", w)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

// TestNewCyclingElevation verifies that elevation gain may be zero or
// negative but must be finite.
func TestNewCyclingElevation(t *testing.T) {
	for _, elev := range []float64{0, -120, 523} {
		if _, err := NewCycling(Coords{}, 10, 30, elev); err != nil {
			t.Errorf("elevation %v: unexpected error %v", elev, err)
		}
	}

	_, err := NewCycling(Coords{}, 10, 30, math.NaN())
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "elevation" {
		t.Errorf("NaN elevation: err = %v, want elevation ValidationError", err)
	}

	_, err = NewCycling(Coords{}, 10, -1, 100)
	if !errors.As(err, &verr) || verr.Field != "duration" {
		t.Errorf("negative duration: err = %v, want duration ValidationError", err)
	}
}

// TestDescribeUsesWeekdayNumber verifies the description uses the day of the
// week, so 2 March 2024 (a Saturday) renders as "March 6".
func TestDescribeUsesWeekdayNumber(t *testing.T) {
	cases := []struct {
		kind Kind
		at   time.Time
		want string
	}{
		{KindRunning, time.Date(2024, time.March, 2, 9, 0, 0, 0, time.UTC), "Running on March 6"},
		{KindCycling, time.Date(2024, time.January, 7, 18, 30, 0, 0, time.UTC), "Cycling on January 0"},
		{KindRunning, time.Date(2025, time.December, 31, 7, 0, 0, 0, time.UTC), "Running on December 3"},
	}
	for _, tc := range cases {
		if got := Describe(tc.kind, tc.at); got != tc.want {
			t.Errorf("Describe(%s, %s) = %q, want %q", tc.kind, tc.at.Format("2006-01-02"), got, tc.want)
		}
	}
}

// TestNewRunningAtSetsDescription verifies the description is derived from
// the creation time passed in.
func TestNewRunningAtSetsDescription(t *testing.T) {
	at := time.Date(2024, time.March, 2, 9, 0, 0, 0, time.UTC)
	w, err := NewRunningAt(at, Coords{}, 5, 25, 170)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.CreatedAt.Equal(at) {
		t.Errorf("createdAt = %v, want %v", w.CreatedAt, at)
	}
	if w.Description != "Running on March 6" {
		t.Errorf("description = %q", w.Description)
	}
}

// TestUniqueIDs verifies rapid successive creation never reuses an id.
func TestUniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		w, err := NewRunning(Coords{}, 1, 5, 160)
		if err != nil {
			t.Fatal(err)
		}
		if seen[w.ID] {
			t.Fatalf("duplicate id %s after %d workouts", w.ID, i)
		}
		seen[w.ID] = true
	}
}

// TestCloneIsDeep verifies that mutating a clone's payload leaves the
// original untouched.
func TestCloneIsDeep(t *testing.T) {
	w, _ := NewRunning(Coords{}, 5, 25, 170)
	c := w.Clone()
	c.Running.Cadence = 1
	if w.Running.Cadence != 170 {
		t.Errorf("original cadence changed to %v", w.Running.Cadence)
	}
}
