package trainingdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/research"
	"github.com/mohammad-safakhou/insight/internal/tools"
)

// Tool names exposed to the model.
const (
	ToolSearchRecent        = "search_recent_trainings"
	ToolSearchByDateRange   = "search_by_date_range"
	ToolTrainingStats       = "get_training_stats"
	ToolSearchByDistance    = "search_by_distance_range"
	ToolSearchByHeartRate   = "search_by_heart_rate"
	ToolExerciseTypeSummary = "get_exercise_type_summary"
)

const dateRangeLimit = 100

// Registry builds the tool registry for training-data research. The default
// tool is a recent-window search with fixed parameters, so any unusable
// selection still yields a meaningful result set.
func Registry(store *Store, cfg config.ToolsConfig) *tools.Registry {
	reg := tools.NewRegistry(cfg.DefaultTool, map[string]any{
		"days":  cfg.DefaultDays,
		"limit": cfg.DefaultLimit,
	})

	reg.Register(tools.Spec{
		Name:        ToolSearchRecent,
		Description: "trainings from the last N days (params: days, exercise_type, limit)",
		Normalize: func(p tools.Params) (map[string]any, bool) {
			out := map[string]any{
				"days":  p.IntOr("days", cfg.DefaultDays),
				"limit": p.IntOr("limit", cfg.DefaultLimit),
			}
			if et, ok := p.String("exercise_type"); ok {
				out["exercise_type"] = et
			}
			return out, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			records, err := store.SearchRecent(ctx, params["days"].(int), optString(params, "exercise_type"), params["limit"].(int))
			if err != nil {
				return research.Response{}, err
			}
			return research.Response{Items: itemsFromRecords(records)}, nil
		},
	})

	reg.Register(tools.Spec{
		Name:        ToolSearchByDateRange,
		Description: "trainings between two dates (params: start_date, end_date as YYYY-MM-DD, exercise_type, limit)",
		Normalize: func(p tools.Params) (map[string]any, bool) {
			start, ok1 := p.String("start_date")
			end, ok2 := p.String("end_date")
			if !ok1 || !ok2 || !tools.ValidDate(start) || !tools.ValidDate(end) {
				return nil, false
			}
			out := map[string]any{
				"start_date": start,
				"end_date":   end,
				"limit":      p.IntOr("limit", dateRangeLimit),
			}
			if et, ok := p.String("exercise_type"); ok {
				out["exercise_type"] = et
			}
			return out, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			records, err := store.SearchByDateRange(ctx, params["start_date"].(string), params["end_date"].(string), optString(params, "exercise_type"), params["limit"].(int))
			if err != nil {
				return research.Response{}, err
			}
			return research.Response{Items: itemsFromRecords(records)}, nil
		},
	})

	reg.Register(tools.Spec{
		Name:        ToolTrainingStats,
		Description: "aggregate statistics, optionally bounded (params: start_date, end_date as YYYY-MM-DD, exercise_type)",
		Normalize: func(p tools.Params) (map[string]any, bool) {
			out := map[string]any{}
			// The window is optional; a bound that fails validation is
			// dropped rather than failing the whole call.
			if start, ok := p.String("start_date"); ok && tools.ValidDate(start) {
				out["start_date"] = start
			}
			if end, ok := p.String("end_date"); ok && tools.ValidDate(end) {
				out["end_date"] = end
			}
			if et, ok := p.String("exercise_type"); ok {
				out["exercise_type"] = et
			}
			return out, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			var start, end *string
			if s, ok := params["start_date"].(string); ok {
				start = &s
			}
			if e, ok := params["end_date"].(string); ok {
				end = &e
			}
			stats, err := store.Stats(ctx, start, end, optString(params, "exercise_type"))
			if err != nil {
				return research.Response{}, err
			}
			return research.Response{Stats: stats, Items: []research.SearchItem{statsItem(stats)}}, nil
		},
	})

	reg.Register(tools.Spec{
		Name:        ToolSearchByDistance,
		Description: "trainings within a distance band in meters (params: min_distance required, max_distance, exercise_type, limit)",
		Normalize: func(p tools.Params) (map[string]any, bool) {
			min, ok := p.Float("min_distance")
			if !ok {
				return nil, false
			}
			out := map[string]any{
				"min_distance": min,
				"limit":        p.IntOr("limit", cfg.DefaultLimit),
			}
			if max, ok := p.Float("max_distance"); ok {
				if max < min {
					return nil, false
				}
				out["max_distance"] = max
			}
			if et, ok := p.String("exercise_type"); ok {
				out["exercise_type"] = et
			}
			return out, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			var max *float64
			if m, ok := params["max_distance"].(float64); ok {
				max = &m
			}
			records, err := store.SearchByDistance(ctx, params["min_distance"].(float64), max, optString(params, "exercise_type"), params["limit"].(int))
			if err != nil {
				return research.Response{}, err
			}
			return research.Response{Items: itemsFromRecords(records)}, nil
		},
	})

	reg.Register(tools.Spec{
		Name:        ToolSearchByHeartRate,
		Description: "trainings within an average heart rate band (params: min_heart_rate required, max_heart_rate, exercise_type, limit)",
		Normalize: func(p tools.Params) (map[string]any, bool) {
			min, ok := p.Float("min_heart_rate")
			if !ok || min <= 0 {
				return nil, false
			}
			out := map[string]any{
				"min_heart_rate": min,
				"limit":          p.IntOr("limit", cfg.DefaultLimit),
			}
			if max, ok := p.Float("max_heart_rate"); ok {
				if max < min {
					return nil, false
				}
				out["max_heart_rate"] = max
			}
			if et, ok := p.String("exercise_type"); ok {
				out["exercise_type"] = et
			}
			return out, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			var max *float64
			if m, ok := params["max_heart_rate"].(float64); ok {
				max = &m
			}
			records, err := store.SearchByHeartRate(ctx, params["min_heart_rate"].(float64), max, optString(params, "exercise_type"), params["limit"].(int))
			if err != nil {
				return research.Response{}, err
			}
			return research.Response{Items: itemsFromRecords(records)}, nil
		},
	})

	reg.Register(tools.Spec{
		Name:        ToolExerciseTypeSummary,
		Description: "per-exercise-type totals, optionally bounded (params: start_date, end_date as YYYY-MM-DD)",
		Normalize: func(p tools.Params) (map[string]any, bool) {
			out := map[string]any{}
			if start, ok := p.String("start_date"); ok && tools.ValidDate(start) {
				out["start_date"] = start
			}
			if end, ok := p.String("end_date"); ok && tools.ValidDate(end) {
				out["end_date"] = end
			}
			return out, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			var start, end *string
			if s, ok := params["start_date"].(string); ok {
				start = &s
			}
			if e, ok := params["end_date"].(string); ok {
				end = &e
			}
			summaries, err := store.ExerciseTypeSummary(ctx, start, end)
			if err != nil {
				return research.Response{}, err
			}
			items := make([]research.SearchItem, 0, len(summaries))
			for _, ts := range summaries {
				items = append(items, summaryItem(ts))
			}
			return research.Response{Items: items}, nil
		},
	})

	return reg
}

func optString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func itemsFromRecords(records []Record) []research.SearchItem {
	items := make([]research.SearchItem, 0, len(records))
	for _, r := range records {
		items = append(items, itemFromRecord(r))
	}
	return items
}

// itemFromRecord renders one row as a search item the summarization prompts
// can consume verbatim.
func itemFromRecord(r Record) research.SearchItem {
	start := r.StartTime.UTC()
	var b strings.Builder
	fmt.Fprintf(&b, "Duration: %s.", (time.Duration(r.DurationSeconds) * time.Second).String())
	if r.DistanceMeters > 0 {
		fmt.Fprintf(&b, " Distance: %.1f km.", r.DistanceMeters/1000)
	}
	if r.Calories > 0 {
		fmt.Fprintf(&b, " Calories: %.0f.", r.Calories)
	}
	if r.AvgHeartRate > 0 {
		fmt.Fprintf(&b, " Avg HR: %.0f bpm (max %.0f).", r.AvgHeartRate, r.MaxHeartRate)
	}
	return research.SearchItem{
		Title:       fmt.Sprintf("%s on %s", r.ExerciseType, start.Format("2006-01-02 15:04")),
		Body:        b.String(),
		PublishedAt: &start,
		SourceLabel: "training_db",
		Tags:        []string{r.ExerciseType},
	}
}

func statsItem(stats map[string]any) research.SearchItem {
	body := fmt.Sprintf("Sessions: %v. Total duration: %vs. Total distance: %vm. Total calories: %v. Avg HR: %v bpm.",
		stats["sessions"], stats["total_duration_seconds"], stats["total_distance_meters"], stats["total_calories"], stats["avg_heart_rate"])
	title := "Training statistics"
	if s, ok := stats["start"]; ok {
		title = fmt.Sprintf("Training statistics from %v", s)
	}
	if e, ok := stats["end"]; ok {
		title = fmt.Sprintf("%s to %v", title, e)
	}
	return research.SearchItem{Title: title, Body: body, SourceLabel: "training_db"}
}

func summaryItem(ts TypeSummary) research.SearchItem {
	return research.SearchItem{
		Title: fmt.Sprintf("%s: %d sessions", ts.ExerciseType, ts.Sessions),
		Body: fmt.Sprintf("Total duration: %s. Total distance: %.1f km. Total calories: %.0f. Avg HR: %.0f bpm. Active %s to %s.",
			(time.Duration(ts.TotalDuration) * time.Second).String(), ts.TotalDistance/1000, ts.TotalCalories, ts.AvgHeartRate, ts.FirstSession, ts.LatestSession),
		SourceLabel: "training_db",
		Tags:        []string{ts.ExerciseType},
	}
}
