package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/mapty/internal/form"
	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/render"
	"github.com/claude/mapty/internal/tracker"
)

// focusResponse tells the client where to centre the map.
type focusResponse struct {
	Workout models.Record `json:"workout"`
	Coords  [2]float64    `json:"coords"`
	Zoom    int           `json:"zoom"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "workouts": s.store.Len()})
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	kind := models.Kind(r.URL.Query().Get("type"))
	if kind != "" && !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be running or cycling"})
		return
	}

	workouts := s.store.List()
	records := make([]models.Record, 0, len(workouts))
	for _, wo := range workouts {
		if kind != "" && wo.Kind != kind {
			continue
		}
		records = append(records, models.ToRecord(wo))
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	wo, err := s.store.FindByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ToRecord(wo))
}

// handleReport renders the collection as a CSV or PDF download.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = render.FormatCSV
	}
	var contentType string
	switch format {
	case render.FormatCSV:
		contentType = "text/csv"
	case render.FormatPDF:
		contentType = "application/pdf"
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be csv or pdf"})
		return
	}

	var buf bytes.Buffer
	if err := render.Report(&buf, format, s.store.List()); err != nil {
		s.writeError(w, fmt.Errorf("rendering report: %w", err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mapty-workouts.%s"`, format))
	w.Write(buf.Bytes())
}

// handleCreateWorkout accepts either a JSON body or an HTML form post with
// the raw field values.
func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	wo, err := s.decodeCreate(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	err = s.store.Add(r.Context(), *wo)
	if err != nil && !isWriteError(err) {
		s.writeError(w, err)
		return
	}
	warnIfUnsaved(w, err)
	writeJSON(w, http.StatusCreated, models.ToRecord(*wo))
}

func (s *Server) decodeCreate(r *http.Request) (*models.Workout, error) {
	now := time.Now()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, badRequest{fmt.Errorf("invalid form: %w", err)}
		}
		lat, err := formCoord(r.PostForm, "lat")
		if err != nil {
			return nil, err
		}
		lng, err := formCoord(r.PostForm, "lng")
		if err != nil {
			return nil, err
		}
		return form.Parse(form.Input{
			Kind:      r.PostForm.Get("type"),
			Distance:  r.PostForm.Get("distance"),
			Duration:  r.PostForm.Get("duration"),
			Cadence:   r.PostForm.Get("cadence"),
			Elevation: r.PostForm.Get("elevation"),
			Lat:       lat,
			Lng:       lng,
		}, now)
	}

	var req form.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, badRequest{fmt.Errorf("invalid JSON: %w", err)}
	}
	return req.Build(now)
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	var patch tracker.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	wo, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil && !isWriteError(err) {
		s.writeError(w, err)
		return
	}
	warnIfUnsaved(w, err)
	writeJSON(w, http.StatusOK, models.ToRecord(wo))
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	err := s.store.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !isWriteError(err) {
		s.writeError(w, err)
		return
	}
	warnIfUnsaved(w, err)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearWorkouts(w http.ResponseWriter, r *http.Request) {
	err := s.store.Clear(r.Context())
	if err != nil && !isWriteError(err) {
		s.writeError(w, err)
		return
	}
	warnIfUnsaved(w, err)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFocusWorkout(w http.ResponseWriter, r *http.Request) {
	wo, err := s.store.Focus(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !isWriteError(err) {
		s.writeError(w, err)
		return
	}
	warnIfUnsaved(w, err)
	writeJSON(w, http.StatusOK, focusResponse{
		Workout: models.ToRecord(wo),
		Coords:  [2]float64{wo.Coords.Lat, wo.Coords.Lng},
		Zoom:    s.zoom,
	})
}

// formCoord reads an optional coordinate field. Missing means zero.
func formCoord(v url.Values, key string) (float64, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, badRequest{fmt.Errorf("invalid %s %q", key, raw)}
	}
	return f, nil
}

// badRequest marks decode failures.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// writeError maps store errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *models.ValidationError
		bad  badRequest
	)
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &verr), errors.As(err, &bad), errors.Is(err, form.ErrUnknownKind):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func isWriteError(err error) bool {
	var werr *tracker.StorageWriteError
	return errors.As(err, &werr)
}

// warnIfUnsaved flags a change that was applied but not persisted.
func warnIfUnsaved(w http.ResponseWriter, err error) {
	if err != nil {
		w.Header().Set("Warning", "199 mapty "+strconv.Quote(err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
