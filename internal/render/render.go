// Package render formats workouts for the list view and map markers.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/claude/mapty/internal/models"
)

const (
	iconRunning   = "🏃‍♂️"
	iconCycling   = "🚴‍♀️"
	iconDuration  = "⏱"
	iconRate      = "⚡️"
	iconCadence   = "🦶🏼"
	iconElevation = "⛰"
)

// Icon returns the emoji for a workout kind.
func Icon(k models.Kind) string {
	if k == models.KindRunning {
		return iconRunning
	}
	return iconCycling
}

// Marker returns the popup text for a workout's map marker.
func Marker(w models.Workout) string {
	return Icon(w.Kind) + " " + w.Description
}

// Entry renders the list entry for w: a title line followed by the
// detail line. Pace and speed are shown to one decimal; raw fields as
// entered.
func Entry(w models.Workout) string {
	p := message.NewPrinter(language.English)

	details := []string{
		Icon(w.Kind) + " " + raw(w.DistanceKm) + " km",
		iconDuration + " " + raw(w.DurationMin) + " min",
	}
	switch {
	case w.Running != nil:
		details = append(details,
			iconRate+" "+p.Sprintf("%.1f", w.Running.PaceMinPerKm)+" min/km",
			iconCadence+" "+raw(w.Running.Cadence)+" spm",
		)
	case w.Cycling != nil:
		details = append(details,
			iconRate+" "+p.Sprintf("%.1f", w.Cycling.SpeedKmPerH)+" km/h",
			iconElevation+" "+raw(w.Cycling.ElevationGainM)+" m",
		)
	}
	return w.Description + "\n  " + strings.Join(details, "  ")
}

func raw(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// List writes the workout list to an io.Writer and keeps it current as a
// tracker observer.
type List struct {
	mu sync.Mutex
	w  io.Writer
}

// NewList creates a List writing to w.
func NewList(w io.Writer) *List {
	return &List{w: w}
}

// Render writes every workout, newest first, the way the sidebar shows
// them.
func (l *List) Render(ws []models.Workout) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(ws) == 0 {
		fmt.Fprintln(l.w, "no workouts yet")
		return
	}
	for i := len(ws) - 1; i >= 0; i-- {
		fmt.Fprintf(l.w, "[%s] %s\n", ws[i].ID, Entry(ws[i]))
	}
}

func (l *List) WorkoutAdded(w models.Workout) {
	l.printf("+ [%s] %s\n", w.ID, Entry(w))
}

func (l *List) WorkoutUpdated(w models.Workout) {
	l.printf("~ [%s] %s\n", w.ID, Entry(w))
}

func (l *List) WorkoutRemoved(id string) {
	l.printf("- [%s]\n", id)
}

func (l *List) WorkoutsCleared() {
	l.printf("cleared\n")
}

func (l *List) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}
