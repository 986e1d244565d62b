package reportindex

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/insight/internal/research"
)

// Doc is one indexed report.
type Doc struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit is one full-text match across stored reports.
type Hit struct {
	SessionID string  `json:"session_id"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	Fragment  string  `json:"fragment,omitempty"`
}

// Index is an in-memory full-text index over completed reports, so past
// research stays searchable from the API without touching Postgres.
type Index struct {
	idx  bleve.Index
	meta map[string]Doc
	mu   sync.RWMutex
}

func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create report index: %w", err)
	}
	return &Index{idx: idx, meta: make(map[string]Doc)}, nil
}

// Add indexes a completed session's final report. Incomplete sessions are
// skipped silently so callers can feed every snapshot through.
func (x *Index) Add(sess *research.Session) error {
	if sess.Status != research.StatusCompleted || sess.FinalReport == "" {
		return nil
	}
	doc := Doc{
		SessionID: sess.ID,
		Query:     sess.Query,
		Title:     sess.ReportTitle,
		Body:      sess.FinalReport,
		CreatedAt: sess.CreatedAt,
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.idx.Index(sess.ID, doc); err != nil {
		return fmt.Errorf("index report %s: %w", sess.ID, err)
	}
	x.meta[sess.ID] = doc
	return nil
}

// Search runs a query-string search and returns up to k hits.
func (x *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("body")

	x.mu.RLock()
	defer x.mu.RUnlock()
	res, err := x.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search reports: %w", err)
	}
	out := make([]Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, ok := x.meta[hit.ID]
		if !ok {
			continue
		}
		h := Hit{SessionID: doc.SessionID, Title: doc.Title, Score: hit.Score}
		if frags, ok := hit.Fragments["body"]; ok && len(frags) > 0 {
			h.Fragment = frags[0]
		}
		out = append(out, h)
	}
	return out, nil
}

// Len reports how many documents are indexed.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.meta)
}
