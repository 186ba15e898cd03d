package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/mapty/internal/form"
	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/tracker"
)

// timeRange parses optional start/end bounds. Empty values leave that side
// open.
func timeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List logged workouts in the order they were added, with distance, duration, pace or speed, and cadence or elevation gain."),
	mcp.WithString("type", mcp.Description("Only return this kind of workout."), mcp.Enum("running", "cycling")),
	mcp.WithString("start", mcp.Description("Only workouts created at or after this time (ISO 8601 or YYYY-MM-DD).")),
	mcp.WithString("end", mcp.Description("Only workouts created before this time (ISO 8601 or YYYY-MM-DD).")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get a single workout by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
)

var toolLogWorkout = mcp.NewTool("log_workout",
	mcp.WithDescription("Log a new running or cycling workout at a map location. Running needs cadence; cycling takes elevation gain."),
	mcp.WithString("type", mcp.Required(), mcp.Description("Workout kind"), mcp.Enum("running", "cycling")),
	mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude of the workout")),
	mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude of the workout")),
	mcp.WithNumber("distance_km", mcp.Required(), mcp.Description("Distance in kilometres, greater than zero")),
	mcp.WithNumber("duration_min", mcp.Required(), mcp.Description("Duration in minutes, greater than zero")),
	mcp.WithNumber("cadence", mcp.Description("Steps per minute, running only")),
	mcp.WithNumber("elevation_gain_m", mcp.Description("Elevation gain in metres, cycling only")),
)

var toolUpdateWorkout = mcp.NewTool("update_workout",
	mcp.WithDescription("Edit the raw fields of a workout. Pace, speed and description keep their original values. Fields that do not apply to the workout's kind are ignored."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
	mcp.WithNumber("distance_km", mcp.Description("New distance in kilometres")),
	mcp.WithNumber("duration_min", mcp.Description("New duration in minutes")),
	mcp.WithNumber("cadence", mcp.Description("New cadence, running only")),
	mcp.WithNumber("elevation_gain_m", mcp.Description("New elevation gain, cycling only")),
)

var toolDeleteWorkout = mcp.NewTool("delete_workout",
	mcp.WithDescription("Delete a workout by id. Deleting an id that does not exist succeeds."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := models.Kind(req.GetString("type", ""))
	if kind != "" && !kind.Valid() {
		return mcp.NewToolResultError("type must be running or cycling"), nil
	}

	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	records, err := h.ds.ListWorkouts(ctx, kind)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	filtered := make([]models.Record, 0, len(records))
	for _, r := range records {
		if inRange(r.CreatedAt, start, end) {
			filtered = append(filtered, r)
		}
	}

	result, err := mcp.NewToolResultJSON(filtered)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	rec, err := h.ds.GetWorkout(ctx, id)
	if err != nil {
		return h.toolError("get_workout", err), nil
	}
	return jsonResult(rec), nil
}

func (h *handlers) logWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type parameter is required"), nil
	}
	distance, err := req.RequireFloat("distance_km")
	if err != nil {
		return mcp.NewToolResultError("distance_km parameter is required"), nil
	}
	duration, err := req.RequireFloat("duration_min")
	if err != nil {
		return mcp.NewToolResultError("duration_min parameter is required"), nil
	}

	rec, err := h.ds.LogWorkout(ctx, form.Request{
		Type:           models.Kind(kind),
		Lat:            req.GetFloat("lat", 0),
		Lng:            req.GetFloat("lng", 0),
		DistanceKm:     distance,
		DurationMin:    duration,
		Cadence:        req.GetFloat("cadence", 0),
		ElevationGainM: req.GetFloat("elevation_gain_m", 0),
	})
	if err != nil && !isWriteError(err) {
		return h.toolError("log_workout", err), nil
	}
	return withUnsavedWarning(jsonResult(rec), err), nil
}

func (h *handlers) updateWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	args := req.GetArguments()
	patch := tracker.Patch{
		DistanceKm:     optionalFloat(args, "distance_km"),
		DurationMin:    optionalFloat(args, "duration_min"),
		Cadence:        optionalFloat(args, "cadence"),
		ElevationGainM: optionalFloat(args, "elevation_gain_m"),
	}

	rec, err := h.ds.UpdateWorkout(ctx, id, patch)
	if err != nil && !isWriteError(err) {
		return h.toolError("update_workout", err), nil
	}
	return withUnsavedWarning(jsonResult(rec), err), nil
}

func (h *handlers) deleteWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	err = h.ds.DeleteWorkout(ctx, id)
	if err != nil && !isWriteError(err) {
		return h.toolError("delete_workout", err), nil
	}
	return withUnsavedWarning(mcp.NewToolResultText("deleted "+id), err), nil
}

// withUnsavedWarning appends a text warning when the change was applied
// but could not be saved. The result itself is still a success.
func withUnsavedWarning(res *mcp.CallToolResult, err error) *mcp.CallToolResult {
	if err == nil || res.IsError {
		return res
	}
	res.Content = append(res.Content, mcp.NewTextContent("warning: change applied but not saved: "+err.Error()))
	return res
}

// toolError turns caller mistakes into readable results and logs anything
// else.
func (h *handlers) toolError(tool string, err error) *mcp.CallToolResult {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		return mcp.NewToolResultError("workout not found")
	case errors.As(err, &verr), errors.Is(err, form.ErrUnknownKind):
		return mcp.NewToolResultError("invalid workout: " + err.Error())
	default:
		h.log.Error("mcp "+tool, "error", err)
		return mcp.NewToolResultError("request failed: " + err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}

func optionalFloat(args map[string]any, key string) *float64 {
	v, ok := args[key].(float64)
	if !ok {
		return nil
	}
	return &v
}
