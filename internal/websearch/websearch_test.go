package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/tools"
)

func TestBraveSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "marathon training" {
			t.Errorf("query = %q", got)
		}
		if r.Header.Get("X-Subscription-Token") != "key-1" {
			t.Errorf("missing subscription token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":"Plan A","url":"https://a.example","description":"16 week plan","page_age":"2024-05-01T00:00:00Z"},
			{"title":"Plan B","url":"https://b.example","description":"12 week plan"},
			{"title":"Plan C","url":"https://c.example","description":"extra"}
		]}}`))
	}))
	defer srv.Close()

	b := NewBrave(config.WebSearchConfig{BraveAPIKey: "key-1", Endpoint: srv.URL})
	items, err := b.Search(context.Background(), "marathon training", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("limit not applied: %d items", len(items))
	}
	if items[0].Title != "Plan A" || items[0].URL != "https://a.example" || items[0].SourceLabel != "web" {
		t.Fatalf("first item: %+v", items[0])
	}
	if items[0].PublishedAt == nil {
		t.Fatalf("page_age not parsed")
	}
	if items[1].PublishedAt != nil {
		t.Fatalf("missing page_age should leave PublishedAt nil")
	}
}

func TestBraveSearchStatusMapping(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusForbidden, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		b := NewBrave(config.WebSearchConfig{Endpoint: srv.URL})
		_, err := b.Search(context.Background(), "q", 5)
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if tools.Transient(err) != tc.transient {
			t.Fatalf("status %d: transient = %v, want %v", tc.status, tools.Transient(err), tc.transient)
		}
	}
}

func TestRegistryCapsLimit(t *testing.T) {
	reg := Registry(nil, 10)
	spec, ok := reg.Lookup(ToolWebSearch)
	if !ok {
		t.Fatalf("web_search not registered")
	}
	params, ok := spec.Normalize(tools.Params{"limit": float64(500)})
	if !ok || params["limit"] != 10 {
		t.Fatalf("limit not capped: %v", params)
	}
	params, _ = spec.Normalize(tools.Params{})
	if params["limit"] != 10 {
		t.Fatalf("default limit: %v", params)
	}
}
