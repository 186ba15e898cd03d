package importer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/claude/mapty/internal/models"
)

// FIT invalid markers for the base types read below.
const (
	invalidUint8  = 0xFF
	invalidUint16 = 0xFFFF
	invalidUint32 = 0xFFFFFFFF
	invalidSint32 = 0x7FFFFFFF

	semicircles = 11930464.7111 // 2^31 / 180
)

// fitNamespace seeds the deterministic ids of workouts read from FIT
// files, so importing the same file twice yields duplicates.
var fitNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mapty:fit"))

func isFIT(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".fit") || strings.HasSuffix(p, ".fit.gz")
}

// ImportFIT reads the sessions of a FIT activity file and merges the
// running and cycling ones into the store.
func (imp *Importer) ImportFIT(ctx context.Context, path string) (*Stats, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	workouts, skipped, err := ParseFIT(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	imp.log.Info("importing FIT sessions", "path", path, "workouts", len(workouts), "skipped", skipped)
	return imp.merge(ctx, workouts)
}

// ParseFIT converts every running and cycling session in data into a
// workout. Sessions of other sports, or lacking distance, duration or
// running cadence, are counted in skipped.
func ParseFIT(data []byte) (workouts []models.Workout, skipped int, err error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("empty FIT data")
	}

	dec := decoder.New(bytes.NewReader(data))
	for dec.Next() {
		fit, err := dec.Decode()
		if err != nil {
			return nil, 0, fmt.Errorf("decoding FIT file: %w", err)
		}
		var created time.Time
		for i := range fit.Messages {
			msg := &fit.Messages[i]
			switch msg.Num {
			case typedef.MesgNumFileId:
				if fileID := mesgdef.NewFileId(msg); !fileID.TimeCreated.IsZero() {
					created = fileID.TimeCreated.UTC()
				}
			case typedef.MesgNumSession:
				w, ok := sessionWorkout(mesgdef.NewSession(msg), created, len(workouts)+skipped)
				if !ok {
					skipped++
					continue
				}
				workouts = append(workouts, w)
			}
		}
	}
	if len(workouts)+skipped == 0 {
		return nil, 0, fmt.Errorf("no sessions found in FIT file")
	}
	return workouts, skipped, nil
}

func sessionWorkout(s *mesgdef.Session, created time.Time, index int) (models.Workout, bool) {
	if s.TotalDistance == invalidUint32 || s.TotalDistance == 0 {
		return models.Workout{}, false
	}
	distanceKm := float64(s.TotalDistance) / 100 / 1000

	durationMs := s.TotalTimerTime
	if durationMs == invalidUint32 || durationMs == 0 {
		durationMs = s.TotalElapsedTime
	}
	if durationMs == invalidUint32 || durationMs == 0 {
		return models.Workout{}, false
	}
	durationMin := float64(durationMs) / 1000 / 60

	start := s.StartTime.UTC()
	if s.StartTime.IsZero() {
		start = created
	}

	var coords models.Coords
	if s.StartPositionLat != invalidSint32 && s.StartPositionLong != invalidSint32 {
		coords = models.Coords{
			Lat: float64(s.StartPositionLat) / semicircles,
			Lng: float64(s.StartPositionLong) / semicircles,
		}
	}

	var (
		w   *models.Workout
		err error
	)
	switch s.Sport {
	case typedef.SportRunning:
		if s.AvgCadence == invalidUint8 {
			return models.Workout{}, false
		}
		// FIT records running cadence per leg.
		w, err = models.NewRunningAt(start, coords, distanceKm, durationMin, float64(s.AvgCadence)*2)
	case typedef.SportCycling:
		var ascent float64
		if s.TotalAscent != invalidUint16 {
			ascent = float64(s.TotalAscent)
		}
		w, err = models.NewCyclingAt(start, coords, distanceKm, durationMin, ascent)
	default:
		return models.Workout{}, false
	}
	if err != nil {
		return models.Workout{}, false
	}

	key := fmt.Sprintf("%s/%d/%d", start.Format(time.RFC3339), index, s.TotalDistance)
	w.ID = uuid.NewSHA1(fitNamespace, []byte(key)).String()
	return *w, true
}
