package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/insight/internal/reportindex"
	"github.com/mohammad-safakhou/insight/internal/research"
	"github.com/mohammad-safakhou/insight/internal/store"
)

// Engine names accepted by the API and the scheduler.
const (
	EngineTraining = "training"
	EngineWeb      = "web"
)

// SessionObserver records wall-clock durations of completed sessions.
type SessionObserver interface {
	SessionDuration(seconds float64)
}

// Runner executes research sessions one at a time. A mutex serialises runs
// regardless of origin (API request or scheduler tick), so the pipelines
// never interleave completion calls.
type Runner struct {
	mu            sync.Mutex
	engines       map[string]*research.Pipeline
	defaultEngine string
	files         *store.FileStore
	index         *reportindex.Index
	logger        *log.Logger

	// Metrics is optional; set it to record session durations.
	Metrics SessionObserver
}

func NewRunner(engines map[string]*research.Pipeline, defaultEngine string,
	files *store.FileStore, index *reportindex.Index, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		engines:       engines,
		defaultEngine: defaultEngine,
		files:         files,
		index:         index,
		logger:        logger,
	}
}

// Engine resolves an engine name; empty selects the default.
func (r *Runner) Engine(name string) (*research.Pipeline, error) {
	if name == "" {
		name = r.defaultEngine
	}
	p, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q", name)
	}
	return p, nil
}

// Engines lists the configured engine names.
func (r *Runner) Engines() []string {
	out := make([]string, 0, len(r.engines))
	for name := range r.engines {
		out = append(out, name)
	}
	return out
}

// Run executes a full session on the named engine and archives the result.
// It blocks until the run finishes; callers that need fire-and-forget spawn
// it in a goroutine.
func (r *Runner) Run(ctx context.Context, engine, id, query string) (*research.Session, error) {
	p, err := r.Engine(engine)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	sess, err := p.Run(ctx, id, query)
	if err != nil {
		var sgErr *research.StructureGenerationError
		if errors.As(err, &sgErr) {
			r.logger.Printf("run %s: outline failed: %v", id, err)
		} else {
			r.logger.Printf("run %s: %v", id, err)
		}
		return sess, err
	}
	if r.Metrics != nil {
		r.Metrics.SessionDuration(time.Since(started).Seconds())
	}
	r.archive(sess)
	return sess, nil
}

// Resume continues a persisted session on the named engine.
func (r *Runner) Resume(ctx context.Context, engine string, sess *research.Session) error {
	p, err := r.Engine(engine)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := p.Resume(ctx, sess); err != nil {
		r.logger.Printf("resume %s: %v", sess.ID, err)
		return err
	}
	r.archive(sess)
	return nil
}

// archive writes the report and state files and indexes the report for
// search. Failures are logged, never returned: the session itself is
// already persisted by the pipeline.
func (r *Runner) archive(sess *research.Session) {
	if sess.Status != research.StatusCompleted {
		return
	}
	if r.files != nil {
		if path, err := r.files.WriteReport(sess); err != nil {
			r.logger.Printf("write report %s: %v", sess.ID, err)
		} else {
			r.logger.Printf("report saved: %s", path)
		}
		if _, err := r.files.WriteState(sess); err != nil {
			r.logger.Printf("write state %s: %v", sess.ID, err)
		}
	}
	if r.index != nil {
		if err := r.index.Add(sess); err != nil {
			r.logger.Printf("index report %s: %v", sess.ID, err)
		}
	}
}
