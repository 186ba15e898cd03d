package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is the current layout of the persisted collection.
const SchemaVersion = 1

// Blob is the versioned envelope stored under the collection key.
type Blob struct {
	Version  int      `json:"version"`
	Workouts []Record `json:"workouts"`
}

// Record is the serialised form of a Workout. It is also the JSON shape
// returned by the HTTP API and MCP tools.
type Record struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	Coordinates [2]float64 `json:"coordinates"`
	DistanceKm  float64    `json:"distanceKm"`
	DurationMin float64    `json:"durationMin"`
	Kind        Kind       `json:"kind"`
	Description string     `json:"description"`
	Clicks      int        `json:"clicks"`

	Cadence        *float64 `json:"cadence,omitempty"`
	PaceMinPerKm   *float64 `json:"paceMinPerKm,omitempty"`
	ElevationGainM *float64 `json:"elevationGainM,omitempty"`
	SpeedKmPerH    *float64 `json:"speedKmPerH,omitempty"`
}

// ToRecord flattens w into its wire form.
func ToRecord(w Workout) Record {
	r := Record{
		ID:          w.ID,
		CreatedAt:   w.CreatedAt,
		Coordinates: [2]float64{w.Coords.Lat, w.Coords.Lng},
		DistanceKm:  w.DistanceKm,
		DurationMin: w.DurationMin,
		Kind:        w.Kind,
		Description: w.Description,
		Clicks:      w.Clicks,
	}
	if w.Running != nil {
		cadence, pace := w.Running.Cadence, w.Running.PaceMinPerKm
		r.Cadence, r.PaceMinPerKm = &cadence, &pace
	}
	if w.Cycling != nil {
		elev, speed := w.Cycling.ElevationGainM, w.Cycling.SpeedKmPerH
		r.ElevationGainM, r.SpeedKmPerH = &elev, &speed
	}
	return r
}

// ToRecords flattens a collection, preserving order.
func ToRecords(ws []Workout) []Record {
	out := make([]Record, 0, len(ws))
	for _, w := range ws {
		out = append(out, ToRecord(w))
	}
	return out
}

// Workout rebuilds the tagged union, rejecting records that break the
// collection invariants.
func (r Record) Workout() (Workout, error) {
	if r.ID == "" {
		return Workout{}, fmt.Errorf("record has no id")
	}
	if !r.Kind.Valid() {
		return Workout{}, fmt.Errorf("record %s: unknown kind %q", r.ID, r.Kind)
	}
	if err := RequirePositive("distance", r.DistanceKm); err != nil {
		return Workout{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	if err := RequirePositive("duration", r.DurationMin); err != nil {
		return Workout{}, fmt.Errorf("record %s: %w", r.ID, err)
	}

	w := Workout{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		Coords:      Coords{Lat: r.Coordinates[0], Lng: r.Coordinates[1]},
		DistanceKm:  r.DistanceKm,
		DurationMin: r.DurationMin,
		Kind:        r.Kind,
		Description: r.Description,
		Clicks:      r.Clicks,
	}

	switch r.Kind {
	case KindRunning:
		if r.Cadence == nil {
			return Workout{}, fmt.Errorf("record %s: running workout without cadence", r.ID)
		}
		pace := Pace(r.DistanceKm, r.DurationMin)
		if r.PaceMinPerKm != nil {
			pace = *r.PaceMinPerKm
		}
		w.Running = &RunningStats{Cadence: *r.Cadence, PaceMinPerKm: pace}
	case KindCycling:
		if r.ElevationGainM == nil {
			return Workout{}, fmt.Errorf("record %s: cycling workout without elevation gain", r.ID)
		}
		speed := Speed(r.DistanceKm, r.DurationMin)
		if r.SpeedKmPerH != nil {
			speed = *r.SpeedKmPerH
		}
		w.Cycling = &CyclingStats{ElevationGainM: *r.ElevationGainM, SpeedKmPerH: speed}
	}
	return w, nil
}

// EncodeBlob serialises the whole collection in the versioned layout.
func EncodeBlob(ws []Workout) ([]byte, error) {
	data, err := json.Marshal(Blob{Version: SchemaVersion, Workouts: ToRecords(ws)})
	if err != nil {
		return nil, fmt.Errorf("encoding workouts: %w", err)
	}
	return data, nil
}

// DecodeBlob parses a persisted collection. It accepts the versioned
// envelope and the bare array written by the browser version of the app.
// Legacy elements that cannot be restored are dropped; use Decode to learn
// which.
func DecodeBlob(data []byte) ([]Workout, error) {
	d, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return d.Workouts, nil
}

// SkippedRecord is a legacy element that could not be restored.
type SkippedRecord struct {
	Index int
	ID    string
	Err   error
}

// Decoded is the result of Decode.
type Decoded struct {
	Workouts []Workout
	Skipped  []SkippedRecord
	Legacy   bool
}

// Decode parses a persisted collection like DecodeBlob and also reports the
// legacy elements it dropped. A versioned blob is all or nothing.
func Decode(data []byte) (Decoded, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Decoded{}, nil
	}

	switch trimmed[0] {
	case '{':
		var blob Blob
		if err := json.Unmarshal(trimmed, &blob); err != nil {
			return Decoded{}, fmt.Errorf("parsing workouts: %w", err)
		}
		if blob.Version < 1 || blob.Version > SchemaVersion {
			return Decoded{}, fmt.Errorf("unsupported schema version %d", blob.Version)
		}
		out := make([]Workout, 0, len(blob.Workouts))
		for _, r := range blob.Workouts {
			w, err := r.Workout()
			if err != nil {
				return Decoded{}, err
			}
			out = append(out, w)
		}
		return Decoded{Workouts: out}, nil
	case '[':
		return decodeLegacy(trimmed)
	default:
		return Decoded{}, fmt.Errorf("parsing workouts: unexpected leading byte %q", trimmed[0])
	}
}

// decodeLegacy restores each element of the browser layout on its own, so
// one hand-edited record does not cost the rest of the history.
func decodeLegacy(data []byte) (Decoded, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return Decoded{}, fmt.Errorf("parsing legacy workouts: %w", err)
	}

	d := Decoded{Workouts: make([]Workout, 0, len(elems)), Legacy: true}
	for i, raw := range elems {
		var l LegacyRecord
		if err := json.Unmarshal(raw, &l); err != nil {
			var id struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(raw, &id)
			d.Skipped = append(d.Skipped, SkippedRecord{Index: i, ID: id.ID, Err: err})
			continue
		}
		w, err := l.Record().Workout()
		if err != nil {
			d.Skipped = append(d.Skipped, SkippedRecord{Index: i, ID: l.ID, Err: err})
			continue
		}
		d.Workouts = append(d.Workouts, w)
	}
	return d, nil
}

// LegacyRecord is one element of the unversioned browser layout.
type LegacyRecord struct {
	ID            string      `json:"id"`
	Date          time.Time   `json:"date"`
	Coords        [2]float64  `json:"coords"`
	Distance      LooseFloat  `json:"distance"`
	Duration      LooseFloat  `json:"duration"`
	Type          Kind        `json:"type"`
	Description   string      `json:"description"`
	Clicks        int         `json:"clicks"`
	Cadence       *LooseFloat `json:"cadence"`
	Pace          *LooseFloat `json:"pace"`
	ElevationGain *LooseFloat `json:"elevationGain"`
	Speed         *LooseFloat `json:"speed"`
}

// Record converts to the current layout. The description is collapsed to
// single spaces since the browser version padded it with newlines.
func (l LegacyRecord) Record() Record {
	return Record{
		ID:             l.ID,
		CreatedAt:      l.Date,
		Coordinates:    l.Coords,
		DistanceKm:     float64(l.Distance),
		DurationMin:    float64(l.Duration),
		Kind:           l.Type,
		Description:    strings.Join(strings.Fields(l.Description), " "),
		Clicks:         l.Clicks,
		Cadence:        l.Cadence.ptr(),
		PaceMinPerKm:   l.Pace.ptr(),
		ElevationGainM: l.ElevationGain.ptr(),
		SpeedKmPerH:    l.Speed.ptr(),
	}
}

// LooseFloat decodes from a JSON number or a numeric string. Edited
// workouts in the browser layout stored cadence and elevation as strings,
// and a cleared input field as "", which decodes to zero.
type LooseFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *LooseFloat) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		*f = LooseFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = LooseFloat(v)
	return nil
}

func (f *LooseFloat) ptr() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}
