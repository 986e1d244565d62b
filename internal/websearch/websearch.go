package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/research"
	"github.com/mohammad-safakhou/insight/internal/tools"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

// ToolWebSearch is the single tool exposed by the web research engine.
const ToolWebSearch = "web_search"

// Searcher runs one web query and returns ranked results.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]research.SearchItem, error)
}

// Brave queries the Brave Search API.
// https://api.search.brave.com/app/documentation/web-search
type Brave struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

func NewBrave(cfg config.WebSearchConfig) *Brave {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Brave{
		APIKey:   cfg.BraveAPIKey,
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (b *Brave) Search(ctx context.Context, query string, limit int) ([]research.SearchItem, error) {
	u := fmt.Sprintf("%s?q=%s&count=%d", b.Endpoint, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, &tools.TransientError{Err: fmt.Errorf("web search: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &tools.TransientError{Err: fmt.Errorf("web search rate limited")}
	case resp.StatusCode >= 500:
		return nil, &tools.TransientError{Err: fmt.Errorf("web search upstream status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("web search status %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
				Age     string `json:"page_age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("web search decode: %w", err)
	}

	items := make([]research.SearchItem, 0, len(raw.Web.Results))
	for i, r := range raw.Web.Results {
		if i >= limit {
			break
		}
		item := research.SearchItem{
			Title:       r.Title,
			URL:         r.URL,
			Body:        r.Snippet,
			SourceLabel: "web",
		}
		if ts, err := time.Parse(time.RFC3339, r.Age); err == nil {
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	return items, nil
}

// Registry builds the single-tool registry for web research. Every
// selection, valid or not, resolves to a web search, so the fallback path
// only normalizes the result limit.
func Registry(searcher Searcher, maxResults int) *tools.Registry {
	if maxResults <= 0 {
		maxResults = 10
	}
	reg := tools.NewRegistry(ToolWebSearch, map[string]any{"limit": maxResults})
	reg.Register(tools.Spec{
		Name:        ToolWebSearch,
		Description: "search the public web (params: limit)",
		Normalize: func(p tools.Params) (map[string]any, bool) {
			limit := p.IntOr("limit", maxResults)
			if limit > maxResults {
				limit = maxResults
			}
			return map[string]any{"limit": limit}, true
		},
		Execute: func(ctx context.Context, query string, params map[string]any) (research.Response, error) {
			items, err := searcher.Search(ctx, query, params["limit"].(int))
			if err != nil {
				return research.Response{}, err
			}
			return research.Response{Items: items}, nil
		},
	})
	return reg
}
