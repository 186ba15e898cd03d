package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/claude/mapty/internal/models"
)

var at = time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC)

func run(t *testing.T) models.Workout {
	t.Helper()
	w, err := models.NewRunningAt(at, models.Coords{Lat: 39, Lng: -12}, 5.2, 25, 178)
	if err != nil {
		t.Fatal(err)
	}
	return *w
}

func ride(t *testing.T) models.Workout {
	t.Helper()
	w, err := models.NewCyclingAt(at, models.Coords{Lat: 39, Lng: -12}, 27, 95, 523)
	if err != nil {
		t.Fatal(err)
	}
	return *w
}

// TestMarker verifies the popup text is the icon followed by the description.
func TestMarker(t *testing.T) {
	if got, want := Marker(run(t)), "🏃‍♂️ Running on March 6"; got != want {
		t.Errorf("Marker = %q, want %q", got, want)
	}
	if got, want := Marker(ride(t)), "🚴‍♀️ Cycling on March 6"; got != want {
		t.Errorf("Marker = %q, want %q", got, want)
	}
}

// TestEntryRunning verifies the running entry shows pace to one decimal and
// cadence in spm.
func TestEntryRunning(t *testing.T) {
	want := "Running on March 6\n  🏃‍♂️ 5.2 km  ⏱ 25 min  ⚡️ 4.8 min/km  🦶🏼 178 spm"
	if got := Entry(run(t)); got != want {
		t.Errorf("Entry =\n%q\nwant\n%q", got, want)
	}
}

// TestEntryCycling verifies the cycling entry shows speed to one decimal and
// elevation in metres.
func TestEntryCycling(t *testing.T) {
	want := "Cycling on March 6\n  🚴‍♀️ 27 km  ⏱ 95 min  ⚡️ 17.1 km/h  ⛰ 523 m"
	if got := Entry(ride(t)); got != want {
		t.Errorf("Entry =\n%q\nwant\n%q", got, want)
	}
}

// TestListRenderNewestFirst verifies the list is written in reverse
// insertion order.
func TestListRenderNewestFirst(t *testing.T) {
	var buf bytes.Buffer
	r, c := run(t), ride(t)
	NewList(&buf).Render([]models.Workout{r, c})

	out := buf.String()
	if strings.Index(out, c.ID) > strings.Index(out, r.ID) {
		t.Errorf("cycling entry should come first:\n%s", out)
	}
}

// TestListRenderEmpty verifies the empty placeholder.
func TestListRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewList(&buf).Render(nil)
	if got := buf.String(); got != "no workouts yet\n" {
		t.Errorf("got %q", got)
	}
}

// TestListObserver verifies each callback writes one marked line group.
func TestListObserver(t *testing.T) {
	var buf bytes.Buffer
	l := NewList(&buf)
	w := run(t)

	l.WorkoutAdded(w)
	l.WorkoutUpdated(w)
	l.WorkoutRemoved(w.ID)
	l.WorkoutsCleared()

	out := buf.String()
	for _, prefix := range []string{"+ [" + w.ID + "]", "~ [" + w.ID + "]", "- [" + w.ID + "]", "cleared"} {
		if !strings.Contains(out, prefix) {
			t.Errorf("output missing %q:\n%s", prefix, out)
		}
	}
}
