// Package form turns raw workout form fields into a validated workout.
package form

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/claude/mapty/internal/models"
)

// ErrUnknownKind is returned when the type selector holds neither variant.
var ErrUnknownKind = errors.New("unknown workout kind")

// Input is the raw content of the workout form plus the map click that
// opened it. Numeric fields are kept as typed by the user.
type Input struct {
	Kind      string  `json:"type"`
	Distance  string  `json:"distance"`
	Duration  string  `json:"duration"`
	Cadence   string  `json:"cadence"`
	Elevation string  `json:"elevation"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

// Parse builds the workout described by in, created at now. Only the field
// belonging to the selected kind is read: cadence for running, elevation
// for cycling.
func Parse(in Input, now time.Time) (*models.Workout, error) {
	coords := models.Coords{Lat: in.Lat, Lng: in.Lng}
	distance := Number(in.Distance)
	duration := Number(in.Duration)

	switch models.Kind(strings.ToLower(strings.TrimSpace(in.Kind))) {
	case models.KindRunning:
		return models.NewRunningAt(now, coords, distance, duration, Number(in.Cadence))
	case models.KindCycling:
		return models.NewCyclingAt(now, coords, distance, duration, Number(in.Elevation))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, in.Kind)
	}
}

// Number converts a form value the way a browser coerces an input string:
// blank is 0 and anything that is not a decimal number is NaN.
func Number(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Request is the typed JSON form of a new workout. Only the field matching
// Type is read out of Cadence and ElevationGainM.
type Request struct {
	Type           models.Kind `json:"type"`
	Lat            float64     `json:"lat"`
	Lng            float64     `json:"lng"`
	DistanceKm     float64     `json:"distanceKm"`
	DurationMin    float64     `json:"durationMin"`
	Cadence        float64     `json:"cadence,omitempty"`
	ElevationGainM float64     `json:"elevationGainM,omitempty"`
}

// Build validates req and creates the workout at now.
func (req Request) Build(now time.Time) (*models.Workout, error) {
	coords := models.Coords{Lat: req.Lat, Lng: req.Lng}
	switch req.Type {
	case models.KindRunning:
		return models.NewRunningAt(now, coords, req.DistanceKm, req.DurationMin, req.Cadence)
	case models.KindCycling:
		return models.NewCyclingAt(now, coords, req.DistanceKm, req.DurationMin, req.ElevationGainM)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Type)
	}
}
