package research

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/llm"
	"github.com/mohammad-safakhou/insight/internal/retry"
)

// StructureGenerationError means the report outline could not be produced.
// Without an outline there is nothing to research, so it ends the session.
type StructureGenerationError struct {
	Err error
}

func (e *StructureGenerationError) Error() string {
	return "report structure generation failed: " + e.Err.Error()
}
func (e *StructureGenerationError) Unwrap() error { return e.Err }

// Saver persists session snapshots at pipeline boundaries.
type Saver interface {
	SaveSession(ctx context.Context, s *Session) error
}

// Metrics receives pipeline progress counters. A nil Metrics disables
// reporting. Outcome is "ok", "retry_exhausted" or "fatal".
type Metrics interface {
	CompletionCall(stage, outcome string)
	Reflection()
}

// Pipeline drives one research session sequentially: outline, then a
// search-and-reflect loop per section, then final assembly. Everything after
// a successful outline degrades instead of failing: search errors leave the
// history entry empty, summary errors keep the previous draft, and a failed
// final formatting falls back to deterministic assembly.
type Pipeline struct {
	llm        llm.Client
	report     llm.Client
	dispatcher Dispatcher
	prompts    PromptSet
	cfg        config.ResearchConfig
	policy     retry.Policy
	saver      Saver
	metrics    Metrics
	logger     *log.Logger
}

// PipelineOptions wires a pipeline. Client and Dispatcher are required;
// ReportClient defaults to Client, Saver and Metrics may be nil.
type PipelineOptions struct {
	Client       llm.Client
	ReportClient llm.Client
	Dispatcher   Dispatcher
	Prompts      PromptSet
	Research     config.ResearchConfig
	Retry        config.RetryConfig
	Saver        Saver
	Metrics      Metrics
	Logger       *log.Logger
}

func NewPipeline(o PipelineOptions) *Pipeline {
	if o.Client == nil {
		panic("research: pipeline needs a completion client")
	}
	if o.Dispatcher == nil {
		panic("research: pipeline needs a tool dispatcher")
	}
	report := o.ReportClient
	if report == nil {
		report = o.Client
	}
	logger := o.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		llm:        o.Client,
		report:     report,
		dispatcher: o.Dispatcher,
		prompts:    o.Prompts,
		cfg:        o.Research,
		policy:     retry.FromConfig(o.Retry, llm.Retryable),
		saver:      o.Saver,
		metrics:    o.Metrics,
		logger:     logger,
	}
}

// Run executes a full research session for query. The returned error is
// non-nil only for outline failure or context cancellation; every other
// failure degrades and still yields a completed session with a report.
func (p *Pipeline) Run(ctx context.Context, id, query string) (*Session, error) {
	sess := NewSession(id, query)
	p.logger.Printf("[RESEARCH] session %s: %q (model %s)", id, query, p.llm.ModelInfo())

	if err := p.generateOutline(ctx, sess); err != nil {
		return nil, &StructureGenerationError{Err: err}
	}
	p.logger.Printf("[RESEARCH] outline ready: %d sections", len(sess.Sections))
	if err := p.Resume(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Resume continues a session from its persisted state: sections already
// completed are skipped, the rest are researched, then the final report is
// assembled. Completed sessions return immediately.
func (p *Pipeline) Resume(ctx context.Context, sess *Session) error {
	if sess.Status == StatusCompleted {
		return nil
	}
	if len(sess.Sections) == 0 {
		return &StructureGenerationError{Err: errors.New("session has no outline")}
	}
	sess.MarkInProgress()
	p.persist(ctx, sess)

	for i := range sess.Sections {
		if sess.Sections[i].Completed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.processSection(ctx, sess, i)
		p.persist(ctx, sess)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	p.finalize(ctx, sess)
	p.persist(ctx, sess)
	return nil
}

type outlineEntry struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (p *Pipeline) generateOutline(ctx context.Context, sess *Session) error {
	raw, err := p.complete(ctx, "structure", p.prompts.ReportStructure, sess.Query)
	if err != nil {
		return err
	}
	var entries []outlineEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return &llm.MalformedResponseError{Raw: string(raw), Err: err}
	}
	sections := make([]Section, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		sections = append(sections, Section{Title: e.Title, Content: e.Content})
	}
	return sess.SetOutline(sess.Query, sections)
}

type sectionPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type summaryPayload struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	SearchQuery   string   `json:"search_query"`
	SearchResults []string `json:"search_results"`
	LatestState   string   `json:"paragraph_latest_state,omitempty"`
}

type reflectionPayload struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	LatestState string `json:"paragraph_latest_state"`
}

// processSection runs the initial search plus the fixed reflection loop.
// The loop always runs the configured number of iterations; an empty search
// or a failed summarization does not cut it short.
func (p *Pipeline) processSection(ctx context.Context, sess *Session, i int) {
	sec := &sess.Sections[i]
	p.logger.Printf("[RESEARCH] section %d/%d: %s", i+1, len(sess.Sections), sec.Title)

	var sel Selection
	if err := p.completeInto(ctx, "first_search", p.prompts.FirstSearch,
		sectionPayload{Title: sec.Title, Content: sec.Content}, &sel); err != nil {
		p.logger.Printf("[RESEARCH] search decision failed, using default tool: %v", err)
	}
	if sel.Query == "" {
		sel.Query = sec.Title
	}
	resp := p.dispatcher.Dispatch(ctx, sel)
	items := p.capItems(resp.Items)
	sec.Research.AddSearchResults(sel.Query, items)

	var first struct {
		State string `json:"paragraph_latest_state"`
	}
	if err := p.completeInto(ctx, "first_summary", p.prompts.FirstSummary, summaryPayload{
		Title:         sec.Title,
		Content:       sec.Content,
		SearchQuery:   sel.Query,
		SearchResults: FormatSearchResults(items, p.cfg.MaxContentLength),
	}, &first); err != nil {
		p.logger.Printf("[RESEARCH] initial summary failed for %q: %v", sec.Title, err)
	} else {
		sec.Research.UpdateSummary(first.State)
	}

	for iter := 1; iter <= p.cfg.MaxReflections; iter++ {
		p.reflect(ctx, sec)
		sec.Research.ReflectionIteration = iter
		if p.metrics != nil {
			p.metrics.Reflection()
		}
		p.snapshot(ctx, sess)
	}

	sec.Completed = true
}

func (p *Pipeline) reflect(ctx context.Context, sec *Section) {
	var sel Selection
	if err := p.completeInto(ctx, "reflection", p.prompts.Reflection, reflectionPayload{
		Title:       sec.Title,
		Content:     sec.Content,
		LatestState: sec.Research.LatestSummary,
	}, &sel); err != nil {
		p.logger.Printf("[RESEARCH] reflection decision failed, using default tool: %v", err)
	}
	if sel.Query == "" {
		sel.Query = sec.Title
	}
	resp := p.dispatcher.Dispatch(ctx, sel)
	items := p.capItems(resp.Items)
	sec.Research.AddSearchResults(sel.Query, items)

	var updated struct {
		State string `json:"updated_paragraph_latest_state"`
	}
	if err := p.completeInto(ctx, "reflection_summary", p.prompts.ReflectionSummary, summaryPayload{
		Title:         sec.Title,
		Content:       sec.Content,
		SearchQuery:   sel.Query,
		SearchResults: FormatSearchResults(items, p.cfg.MaxContentLength),
		LatestState:   sec.Research.LatestSummary,
	}, &updated); err != nil {
		p.logger.Printf("[RESEARCH] reflection summary failed for %q, keeping previous draft: %v", sec.Title, err)
		return
	}
	sec.Research.UpdateSummary(updated.State)
}

type reportSection struct {
	Title       string `json:"title"`
	LatestState string `json:"paragraph_latest_state"`
}

// finalize assembles the final report. When the model fails, the fallback
// formatter stitches the drafts together so the session always ends with a
// non-empty report.
func (p *Pipeline) finalize(ctx context.Context, sess *Session) {
	data := make([]reportSection, 0, len(sess.Sections))
	for _, sec := range sess.Sections {
		data = append(data, reportSection{Title: sec.Title, LatestState: sec.Research.LatestSummary})
	}
	payload, _ := json.Marshal(data)

	res := retry.Do(ctx, p.policy, func(ctx context.Context) (string, error) {
		return p.report.CompleteText(ctx, p.prompts.ReportFormatting, string(payload))
	}, "")
	final := strings.TrimSpace(res.Value)
	if !res.OK || final == "" {
		p.logger.Printf("[RESEARCH] report formatting failed, assembling manually: %v", res.Err)
		p.outcome("report", res.Err)
		final = FallbackReport(sess.ReportTitle, sess.Sections)
	} else {
		p.outcome("report", nil)
	}
	sess.MarkCompleted(final)
	p.logger.Printf("[RESEARCH] session %s completed: %d sections, %d bytes", sess.ID, len(sess.Sections), len(final))
}

func (p *Pipeline) complete(ctx context.Context, stage, system, payload string) (json.RawMessage, error) {
	res := retry.Do(ctx, p.policy, func(ctx context.Context) (json.RawMessage, error) {
		return p.llm.Complete(ctx, system, payload)
	}, nil)
	p.outcome(stage, res.Err)
	if !res.OK {
		return nil, res.Err
	}
	return res.Value, nil
}

func (p *Pipeline) completeInto(ctx context.Context, stage, system string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := p.complete(ctx, stage, system, string(body))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &llm.MalformedResponseError{Raw: string(raw), Err: err}
	}
	return nil
}

func (p *Pipeline) capItems(items []SearchItem) []SearchItem {
	if p.cfg.MaxSearchResults > 0 && len(items) > p.cfg.MaxSearchResults {
		return items[:p.cfg.MaxSearchResults]
	}
	return items
}

func (p *Pipeline) persist(ctx context.Context, sess *Session) {
	if p.saver == nil || !p.cfg.PersistOnBoundary {
		return
	}
	if err := p.saver.SaveSession(ctx, sess); err != nil {
		p.logger.Printf("[RESEARCH] persist session %s: %v", sess.ID, err)
	}
}

// snapshot saves mid-section progress after a reflection iteration.
func (p *Pipeline) snapshot(ctx context.Context, sess *Session) {
	if p.saver == nil || !p.cfg.SaveIntermediate {
		return
	}
	if err := p.saver.SaveSession(ctx, sess); err != nil {
		p.logger.Printf("[RESEARCH] snapshot session %s: %v", sess.ID, err)
	}
}

func (p *Pipeline) outcome(stage string, err error) {
	if p.metrics == nil {
		return
	}
	switch {
	case err == nil:
		p.metrics.CompletionCall(stage, "ok")
	case llm.Retryable(err):
		p.metrics.CompletionCall(stage, "retry_exhausted")
	default:
		p.metrics.CompletionCall(stage, "fatal")
	}
}
