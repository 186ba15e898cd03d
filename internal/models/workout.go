package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind discriminates the workout variants.
type Kind string

const (
	KindRunning Kind = "running"
	KindCycling Kind = "cycling"
)

// Valid reports whether k names a known variant.
func (k Kind) Valid() bool {
	return k == KindRunning || k == KindCycling
}

// Coords is a latitude/longitude pair.
type Coords struct {
	Lat float64
	Lng float64
}

// Workout is a single logged session. Exactly one of Running and Cycling is
// set, matching Kind.
type Workout struct {
	ID          string
	CreatedAt   time.Time
	Coords      Coords
	DistanceKm  float64
	DurationMin float64
	Kind        Kind
	Description string
	Clicks      int

	Running *RunningStats
	Cycling *CyclingStats
}

// RunningStats is the running-only payload.
type RunningStats struct {
	Cadence      float64
	PaceMinPerKm float64
}

// CyclingStats is the cycling-only payload.
type CyclingStats struct {
	ElevationGainM float64
	SpeedKmPerH    float64
}

// ValidationError reports a numeric input that is not acceptable.
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s, got %v", e.Field, e.Reason, e.Value)
}

// Clone returns a deep copy so callers cannot mutate shared payloads.
func (w Workout) Clone() Workout {
	if w.Running != nil {
		r := *w.Running
		w.Running = &r
	}
	if w.Cycling != nil {
		c := *w.Cycling
		w.Cycling = &c
	}
	return w
}

// Validate checks the invariants every stored workout must hold.
func (w Workout) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workout has no id")
	}
	if err := RequirePositive("distance", w.DistanceKm); err != nil {
		return err
	}
	if err := RequirePositive("duration", w.DurationMin); err != nil {
		return err
	}
	switch w.Kind {
	case KindRunning:
		if w.Running == nil || w.Cycling != nil {
			return fmt.Errorf("workout %s: running workout needs exactly the running payload", w.ID)
		}
	case KindCycling:
		if w.Cycling == nil || w.Running != nil {
			return fmt.Errorf("workout %s: cycling workout needs exactly the cycling payload", w.ID)
		}
	default:
		return fmt.Errorf("workout %s: unknown kind %q", w.ID, w.Kind)
	}
	return nil
}

// NewRunning builds a running workout created now.
func NewRunning(coords Coords, distanceKm, durationMin, cadence float64) (*Workout, error) {
	return NewRunningAt(time.Now(), coords, distanceKm, durationMin, cadence)
}

// NewRunningAt builds a running workout with an explicit creation time.
func NewRunningAt(at time.Time, coords Coords, distanceKm, durationMin, cadence float64) (*Workout, error) {
	if err := RequirePositive("distance", distanceKm); err != nil {
		return nil, err
	}
	if err := RequirePositive("duration", durationMin); err != nil {
		return nil, err
	}
	if err := RequirePositive("cadence", cadence); err != nil {
		return nil, err
	}

	w := newWorkout(at, KindRunning, coords, distanceKm, durationMin)
	w.Running = &RunningStats{
		Cadence:      cadence,
		PaceMinPerKm: Pace(distanceKm, durationMin),
	}
	return w, nil
}

// NewCycling builds a cycling workout created now.
func NewCycling(coords Coords, distanceKm, durationMin, elevationGainM float64) (*Workout, error) {
	return NewCyclingAt(time.Now(), coords, distanceKm, durationMin, elevationGainM)
}

// NewCyclingAt builds a cycling workout with an explicit creation time.
// Elevation gain only has to be finite; descents are allowed.
func NewCyclingAt(at time.Time, coords Coords, distanceKm, durationMin, elevationGainM float64) (*Workout, error) {
	if err := RequirePositive("distance", distanceKm); err != nil {
		return nil, err
	}
	if err := RequirePositive("duration", durationMin); err != nil {
		return nil, err
	}
	if err := RequireFinite("elevation", elevationGainM); err != nil {
		return nil, err
	}

	w := newWorkout(at, KindCycling, coords, distanceKm, durationMin)
	w.Cycling = &CyclingStats{
		ElevationGainM: elevationGainM,
		SpeedKmPerH:    Speed(distanceKm, durationMin),
	}
	return w, nil
}

func newWorkout(at time.Time, kind Kind, coords Coords, distanceKm, durationMin float64) *Workout {
	return &Workout{
		ID:          uuid.NewString(),
		CreatedAt:   at,
		Coords:      coords,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		Kind:        kind,
		Description: Describe(kind, at),
	}
}

// Pace returns minutes per kilometre.
func Pace(distanceKm, durationMin float64) float64 {
	return durationMin / distanceKm
}

// Speed returns kilometres per hour.
func Speed(distanceKm, durationMin float64) float64 {
	return distanceKm / (durationMin / 60)
}

// Describe renders "<Kind> on <Month> <N>" where N is the day of the week
// (0 = Sunday), not the day of the month.
func Describe(kind Kind, at time.Time) string {
	return fmt.Sprintf("%s on %s %d", cases.Title(language.English).String(string(kind)), at.Month(), int(at.Weekday()))
}

// RequirePositive returns a *ValidationError unless v is finite and > 0.
func RequirePositive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &ValidationError{Field: field, Value: v, Reason: "must be a positive number"}
	}
	return nil
}

// RequireFinite returns a *ValidationError unless v is finite.
func RequireFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Value: v, Reason: "must be a finite number"}
	}
	return nil
}
