package trainingdata

import (
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/tools"
)

func testToolsConfig() config.ToolsConfig {
	return config.ToolsConfig{
		DefaultTool:  ToolSearchRecent,
		DefaultDays:  30,
		DefaultLimit: 50,
	}
}

func TestNormalizeSearchRecentDefaults(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())
	spec, ok := reg.Lookup(ToolSearchRecent)
	if !ok {
		t.Fatalf("tool not registered")
	}
	params, ok := spec.Normalize(tools.Params{})
	if !ok {
		t.Fatalf("recent search should accept empty params")
	}
	if params["days"] != 30 || params["limit"] != 50 {
		t.Fatalf("defaults not applied: %v", params)
	}
	params, ok = spec.Normalize(tools.Params{"days": float64(7), "limit": float64(10)})
	if !ok || params["days"] != 7 || params["limit"] != 10 {
		t.Fatalf("explicit params not honored: %v", params)
	}
}

func TestNormalizeDateRange(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())
	spec, _ := reg.Lookup(ToolSearchByDateRange)

	cases := []struct {
		name string
		in   tools.Params
		ok   bool
	}{
		{"both bounds", tools.Params{"start_date": "2024-01-01", "end_date": "2024-02-01"}, true},
		{"start only", tools.Params{"start_date": "2024-01-01"}, false},
		{"end only", tools.Params{"end_date": "2024-02-01"}, false},
		{"bad format", tools.Params{"start_date": "Jan 1", "end_date": "2024-02-01"}, false},
		{"not a calendar day", tools.Params{"start_date": "2024-04-31", "end_date": "2024-05-01"}, false},
		{"no params", tools.Params{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, ok := spec.Normalize(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && params["limit"] != dateRangeLimit {
				t.Fatalf("default limit = %v, want %d", params["limit"], dateRangeLimit)
			}
		})
	}
}

func TestNormalizeStatsDropsInvalidBounds(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())
	spec, _ := reg.Lookup(ToolTrainingStats)

	params, ok := spec.Normalize(tools.Params{"start_date": "not-a-date", "end_date": "2024-02-01"})
	if !ok {
		t.Fatalf("stats should never reject params")
	}
	if _, present := params["start_date"]; present {
		t.Fatalf("invalid start bound kept: %v", params)
	}
	if params["end_date"] != "2024-02-01" {
		t.Fatalf("valid end bound dropped: %v", params)
	}
}

func TestNormalizeDistanceRange(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())
	spec, _ := reg.Lookup(ToolSearchByDistance)

	if _, ok := spec.Normalize(tools.Params{}); ok {
		t.Fatalf("missing min_distance accepted")
	}
	if _, ok := spec.Normalize(tools.Params{"min_distance": float64(5000), "max_distance": float64(1000)}); ok {
		t.Fatalf("inverted band accepted")
	}
	params, ok := spec.Normalize(tools.Params{"min_distance": float64(5000)})
	if !ok || params["min_distance"] != float64(5000) {
		t.Fatalf("one-sided band rejected: %v", params)
	}
	if _, present := params["max_distance"]; present {
		t.Fatalf("absent max materialized: %v", params)
	}
}

func TestNormalizeHeartRateRequiresFloor(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())
	spec, _ := reg.Lookup(ToolSearchByHeartRate)

	if _, ok := spec.Normalize(tools.Params{}); ok {
		t.Fatalf("missing floor accepted")
	}
	if _, ok := spec.Normalize(tools.Params{"min_heart_rate": float64(-10)}); ok {
		t.Fatalf("negative floor accepted")
	}
	params, ok := spec.Normalize(tools.Params{"min_heart_rate": float64(150)})
	if !ok || params["min_heart_rate"] != float64(150) || params["limit"] != 50 {
		t.Fatalf("valid floor rejected: %v", params)
	}
}

func TestNormalizeExerciseTypeIsOptional(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())

	spec, _ := reg.Lookup(ToolSearchRecent)
	params, ok := spec.Normalize(tools.Params{"exercise_type": "running"})
	if !ok || params["exercise_type"] != "running" {
		t.Fatalf("exercise type not carried: %v", params)
	}
	// a non-string exercise_type is dropped, not rejected
	params, ok = spec.Normalize(tools.Params{"exercise_type": float64(3)})
	if !ok {
		t.Fatalf("invalid optional filter should not reject the call")
	}
	if _, present := params["exercise_type"]; present {
		t.Fatalf("invalid exercise type kept: %v", params)
	}
}

func TestNormalizeHeartRateRejectsInvertedBand(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())
	spec, _ := reg.Lookup(ToolSearchByHeartRate)

	if _, ok := spec.Normalize(tools.Params{"min_heart_rate": float64(160), "max_heart_rate": float64(120)}); ok {
		t.Fatalf("inverted band accepted")
	}
	params, ok := spec.Normalize(tools.Params{"min_heart_rate": float64(120), "max_heart_rate": float64(160)})
	if !ok || params["max_heart_rate"] != float64(160) {
		t.Fatalf("valid band rejected: %v", params)
	}
}

func TestNormalizeTypeSummaryDropsInvalidBounds(t *testing.T) {
	reg := Registry(NewStore(nil), testToolsConfig())
	spec, _ := reg.Lookup(ToolExerciseTypeSummary)

	params, ok := spec.Normalize(tools.Params{"start_date": "whenever", "end_date": "2024-06-01"})
	if !ok {
		t.Fatalf("summary should never reject params")
	}
	if _, present := params["start_date"]; present {
		t.Fatalf("invalid start bound kept: %v", params)
	}
	if params["end_date"] != "2024-06-01" {
		t.Fatalf("valid end bound dropped: %v", params)
	}
}

func TestItemFromRecord(t *testing.T) {
	start := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	item := itemFromRecord(Record{
		ExerciseType:    "running",
		StartTime:       start,
		DurationSeconds: 1800,
		Calories:        320,
		DistanceMeters:  5200,
		AvgHeartRate:    152,
		MaxHeartRate:    171,
	})
	if item.Title != "running on 2024-06-01 07:30" {
		t.Fatalf("title = %q", item.Title)
	}
	for _, want := range []string{"30m0s", "5.2 km", "320", "152 bpm", "171"} {
		if !strings.Contains(item.Body, want) {
			t.Fatalf("body %q missing %q", item.Body, want)
		}
	}
	if item.PublishedAt == nil || !item.PublishedAt.Equal(start) {
		t.Fatalf("published_at not carried over")
	}
	if item.SourceLabel != "training_db" || len(item.Tags) != 1 {
		t.Fatalf("item metadata: %+v", item)
	}
}

func TestItemFromRecordSkipsZeroFields(t *testing.T) {
	item := itemFromRecord(Record{
		ExerciseType:    "strength_training",
		StartTime:       time.Date(2024, 6, 2, 18, 0, 0, 0, time.UTC),
		DurationSeconds: 2700,
	})
	for _, absent := range []string{"km", "Calories", "bpm"} {
		if strings.Contains(item.Body, absent) {
			t.Fatalf("body %q should not mention %q", item.Body, absent)
		}
	}
}
