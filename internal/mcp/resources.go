package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/mapty/internal/models"
)

// kindSummary totals the workouts of one kind.
type kindSummary struct {
	Count          int     `json:"count"`
	DistanceKm     float64 `json:"distance_km"`
	DurationMin    float64 `json:"duration_min"`
	LongestKm      float64 `json:"longest_km"`
	MostRecentDesc string  `json:"most_recent,omitempty"`
}

func summarize(records []models.Record) map[models.Kind]*kindSummary {
	out := map[models.Kind]*kindSummary{
		models.KindRunning: {},
		models.KindCycling: {},
	}
	for _, r := range records {
		s, ok := out[r.Kind]
		if !ok {
			continue
		}
		s.Count++
		s.DistanceKm += r.DistanceKm
		s.DurationMin += r.DurationMin
		if r.DistanceKm > s.LongestKm {
			s.LongestKm = r.DistanceKm
		}
		s.MostRecentDesc = r.Description
	}
	return out
}

func (h *handlers) workouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	records, err := h.ds.ListWorkouts(ctx, "")
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.Record{}
	}
	return jsonContents(req.Params.URI, records)
}

func (h *handlers) summary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	records, err := h.ds.ListWorkouts(ctx, "")
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, summarize(records))
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
