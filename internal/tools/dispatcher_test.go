package tools

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mohammad-safakhou/insight/internal/research"
	"github.com/mohammad-safakhou/insight/internal/retry"
)

func testRegistry(t *testing.T, calls *int) *Registry {
	t.Helper()
	reg := NewRegistry("recent", map[string]any{"days": 30, "limit": 50})
	reg.Register(Spec{
		Name:        "recent",
		Description: "recent records",
		Normalize: func(p Params) (map[string]any, bool) {
			return map[string]any{"days": p.IntOr("days", 30), "limit": p.IntOr("limit", 50)}, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			if calls != nil {
				*calls++
			}
			return research.Response{Items: []research.SearchItem{{Title: "recent"}}}, nil
		},
	})
	reg.Register(Spec{
		Name:        "by_date",
		Description: "records in a date range",
		Normalize: func(p Params) (map[string]any, bool) {
			start, ok1 := p.String("start")
			end, ok2 := p.String("end")
			if !ok1 || !ok2 || !ValidDate(start) || !ValidDate(end) {
				return nil, false
			}
			return map[string]any{"start": start, "end": end}, true
		},
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			return research.Response{Items: []research.SearchItem{{Title: "ranged"}}}, nil
		},
	})
	return reg
}

func quietDispatcher(reg *Registry, metrics Metrics) *Dispatcher {
	policy := retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	return NewDispatcher(reg, policy, metrics, log.New(io.Discard, "", 0))
}

func TestDispatchValidSelection(t *testing.T) {
	d := quietDispatcher(testRegistry(t, nil), nil)
	res := d.Dispatch(context.Background(), research.Selection{
		Tool:   "by_date",
		Params: map[string]any{"start": "2024-01-01", "end": "2024-02-01"},
	})
	if res.Fallback {
		t.Fatalf("valid selection should not fall back")
	}
	if res.ToolName != "by_date" || len(res.Items) != 1 || res.Items[0].Title != "ranged" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestDispatchFallsBackToDefault(t *testing.T) {
	cases := []struct {
		name string
		sel  research.Selection
	}{
		{"unknown tool", research.Selection{Tool: "no_such_tool"}},
		{"missing end date", research.Selection{Tool: "by_date", Params: map[string]any{"start": "2024-01-01"}}},
		{"garbage date", research.Selection{Tool: "by_date", Params: map[string]any{"start": "yesterday", "end": "2024-02-01"}}},
		{"impossible date", research.Selection{Tool: "by_date", Params: map[string]any{"start": "2024-02-30", "end": "2024-03-01"}}},
		{"empty selection", research.Selection{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := quietDispatcher(testRegistry(t, nil), nil)
			res := d.Dispatch(context.Background(), tc.sel)
			if !res.Fallback {
				t.Fatalf("expected fallback")
			}
			if res.ToolName != "recent" {
				t.Fatalf("fallback tool = %q, want recent", res.ToolName)
			}
			if res.Params["days"] != 30 || res.Params["limit"] != 50 {
				t.Fatalf("fallback params = %v", res.Params)
			}
			if res.Err != "" {
				t.Fatalf("fallback should still succeed, got error %q", res.Err)
			}
		})
	}
}

func TestDispatchResolutionIsDeterministic(t *testing.T) {
	d := quietDispatcher(testRegistry(t, nil), nil)
	sel := research.Selection{Tool: "bogus", Params: map[string]any{"days": "many"}}
	first := d.Dispatch(context.Background(), sel)
	second := d.Dispatch(context.Background(), sel)
	if first.ToolName != second.ToolName || first.Fallback != second.Fallback {
		t.Fatalf("same selection resolved differently: %+v vs %+v", first, second)
	}
}

func TestDispatchRetriesTransientErrors(t *testing.T) {
	reg := NewRegistry("flaky", nil)
	calls := 0
	reg.Register(Spec{
		Name:      "flaky",
		Normalize: func(p Params) (map[string]any, bool) { return map[string]any{}, true },
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			calls++
			if calls < 3 {
				return research.Response{}, &TransientError{Err: errors.New("connection reset")}
			}
			return research.Response{Items: []research.SearchItem{{Title: "ok"}}}, nil
		},
	})
	d := quietDispatcher(reg, nil)
	res := d.Dispatch(context.Background(), research.Selection{Tool: "flaky"})
	if res.Err != "" || len(res.Items) != 1 {
		t.Fatalf("expected success after retries, got %+v", res)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDispatchPermanentErrorNotRetried(t *testing.T) {
	reg := NewRegistry("broken", nil)
	calls := 0
	reg.Register(Spec{
		Name:      "broken",
		Normalize: func(p Params) (map[string]any, bool) { return map[string]any{}, true },
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			calls++
			return research.Response{}, errors.New("bad query")
		},
	})
	d := quietDispatcher(reg, nil)
	res := d.Dispatch(context.Background(), research.Selection{Tool: "broken"})
	if res.Err == "" {
		t.Fatalf("expected error in envelope")
	}
	if calls != 1 {
		t.Fatalf("permanent error retried: calls = %d", calls)
	}
}

func TestDispatchExhaustionReportsInEnvelope(t *testing.T) {
	reg := NewRegistry("down", nil)
	reg.Register(Spec{
		Name:      "down",
		Normalize: func(p Params) (map[string]any, bool) { return map[string]any{}, true },
		Execute: func(ctx context.Context, _ string, params map[string]any) (research.Response, error) {
			return research.Response{}, &TransientError{Err: errors.New("timeout")}
		},
	})
	d := quietDispatcher(reg, nil)
	res := d.Dispatch(context.Background(), research.Selection{Tool: "down"})
	if res.Err == "" {
		t.Fatalf("expected error after exhausted retries")
	}
	if res.ToolName != "down" {
		t.Fatalf("envelope should still name the tool, got %q", res.ToolName)
	}
}

func TestValidDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-31", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-13-01", false},
		{"2024-1-01", false},
		{"01-01-2024", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidDate(tc.in); got != tc.ok {
			t.Fatalf("ValidDate(%q) = %v, want %v", tc.in, got, tc.ok)
		}
	}
}
