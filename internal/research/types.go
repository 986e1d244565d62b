package research

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a research session.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// SearchItem is a normalized evidence unit returned by any data source.
// Fields absent in a given source stay at their zero value; nothing in the
// pipeline assumes a field is present.
type SearchItem struct {
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Body        string     `json:"body,omitempty"`
	Score       float64    `json:"score,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	SourceLabel string     `json:"source_label,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// SearchEvent is one executed search with its results. Events are append-only
// and kept forever for audit and debugging.
type SearchEvent struct {
	Query     string       `json:"query"`
	Results   []SearchItem `json:"results"`
	Timestamp time.Time    `json:"timestamp"`
}

// ResearchRecord accumulates evidence and narrative for one section.
type ResearchRecord struct {
	SearchHistory       []SearchEvent `json:"search_history"`
	LatestSummary       string        `json:"latest_summary"`
	ReflectionIteration int           `json:"reflection_iteration"`
}

// AddSearchResults appends one search event to the record's history.
func (r *ResearchRecord) AddSearchResults(query string, results []SearchItem) {
	r.SearchHistory = append(r.SearchHistory, SearchEvent{
		Query:     query,
		Results:   results,
		Timestamp: time.Now().UTC(),
	})
}

// UpdateSummary replaces the current narrative. The empty string is ignored
// so a failed summarization can never regress the record to nothing.
func (r *ResearchRecord) UpdateSummary(summary string) {
	if summary == "" {
		return
	}
	r.LatestSummary = summary
}

// Section is one outline unit. Title and Content are fixed at structure
// generation time and never mutated afterward.
type Section struct {
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Research  ResearchRecord `json:"research"`
	Completed bool           `json:"completed"`
}

// Session is the root aggregate for one research request.
type Session struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	ReportTitle string    `json:"report_title,omitempty"`
	Sections    []Section `json:"sections"`
	FinalReport string    `json:"final_report,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewSession creates an empty session for a query.
func NewSession(id, query string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Query:     query,
		Status:    StatusPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetOutline populates the sections exactly once, in outline order.
func (s *Session) SetOutline(title string, sections []Section) error {
	if len(s.Sections) > 0 {
		return fmt.Errorf("outline already generated for session %s", s.ID)
	}
	if len(sections) == 0 {
		return fmt.Errorf("outline is empty")
	}
	s.ReportTitle = title
	s.Sections = sections
	s.touch()
	return nil
}

// MarkInProgress transitions the session when the first section starts.
func (s *Session) MarkInProgress() {
	if s.Status == StatusPlanned {
		s.Status = StatusInProgress
		s.touch()
	}
}

// MarkCompleted records the final report and moves to the terminal state.
func (s *Session) MarkCompleted(finalReport string) {
	s.FinalReport = finalReport
	s.Status = StatusCompleted
	s.touch()
}

// CompletedSections counts sections whose reflection loop has finished.
func (s *Session) CompletedSections() int {
	n := 0
	for i := range s.Sections {
		if s.Sections[i].Completed {
			n++
		}
	}
	return n
}

func (s *Session) touch() { s.UpdatedAt = time.Now().UTC() }

// Marshal serializes the session to its persisted JSON form.
func (s *Session) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSession reconstructs a session from its persisted JSON form.
func UnmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
