package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/claude/mapty/internal/models"
)

// Report formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

var csvHeader = []string{
	"id", "created_at", "type", "description", "lat", "lng",
	"distance_km", "duration_min", "cadence_spm", "pace_min_per_km",
	"elevation_gain_m", "speed_km_per_h", "clicks",
}

// Report writes ws in format, oldest first.
func Report(w io.Writer, format string, ws []models.Workout) error {
	switch strings.ToLower(format) {
	case FormatCSV:
		return writeCSV(w, ws)
	case FormatPDF:
		return writePDF(w, ws)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeCSV(w io.Writer, ws []models.Workout) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, wk := range ws {
		row := []string{
			wk.ID, wk.CreatedAt.UTC().Format(time.RFC3339), string(wk.Kind), wk.Description,
			raw(wk.Coords.Lat), raw(wk.Coords.Lng),
			raw(wk.DistanceKm), raw(wk.DurationMin),
			"", "", "", "",
			fmt.Sprint(wk.Clicks),
		}
		if wk.Running != nil {
			row[8], row[9] = raw(wk.Running.Cadence), fmt.Sprintf("%.2f", wk.Running.PaceMinPerKm)
		}
		if wk.Cycling != nil {
			row[10], row[11] = raw(wk.Cycling.ElevationGainM), fmt.Sprintf("%.2f", wk.Cycling.SpeedKmPerH)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writePDF renders a one-line-per-workout report. The core PDF fonts have
// no emoji, so the detail line uses text units only.
func writePDF(w io.Writer, ws []models.Workout) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Mapty workouts", false)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Mapty workouts")
	pdf.Ln(12)

	var totalKm, totalMin float64
	pdf.SetFont("Arial", "", 10)
	for _, wk := range ws {
		totalKm += wk.DistanceKm
		totalMin += wk.DurationMin

		pdf.SetFont("Arial", "B", 10)
		pdf.MultiCell(0, 6, wk.Description, "0", "L", false)
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, plainDetails(wk), "0", "L", false)
		pdf.Ln(2)
	}
	if len(ws) == 0 {
		pdf.MultiCell(0, 6, "No workouts yet.", "0", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("%d workouts, %s km, %s min", len(ws), raw(totalKm), raw(totalMin)), "0", "L", false)

	return pdf.Output(w)
}

func plainDetails(w models.Workout) string {
	parts := []string{
		raw(w.DistanceKm) + " km",
		raw(w.DurationMin) + " min",
	}
	switch {
	case w.Running != nil:
		parts = append(parts,
			fmt.Sprintf("%.1f min/km", w.Running.PaceMinPerKm),
			raw(w.Running.Cadence)+" spm",
		)
	case w.Cycling != nil:
		parts = append(parts,
			fmt.Sprintf("%.1f km/h", w.Cycling.SpeedKmPerH),
			raw(w.Cycling.ElevationGainM)+" m climbed",
		)
	}
	return strings.Join(parts, ", ")
}
