package tools

import (
	"context"
	"errors"
	"log"

	"github.com/mohammad-safakhou/insight/internal/research"
	"github.com/mohammad-safakhou/insight/internal/retry"
)

// TransientError marks a data-source failure worth retrying (connection
// resets, timeouts, upstream throttling). Anything not wrapped in it is
// treated as permanent for the dispatch at hand.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient reports whether err should be retried by the dispatcher.
func Transient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Metrics receives dispatch outcomes. Implementations must be safe for
// concurrent use; a nil Metrics disables reporting.
type Metrics interface {
	ToolDispatched(tool string, fallback bool)
	ToolFailed(tool string)
}

// Dispatcher validates model tool selections against a registry and executes
// them with retries. Invalid selections never fail the research step: they
// degrade to the registry's default tool.
type Dispatcher struct {
	registry *Registry
	policy   retry.Policy
	metrics  Metrics
	logger   *log.Logger
}

func NewDispatcher(registry *Registry, policy retry.Policy, metrics Metrics, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	policy.Retryable = Transient
	return &Dispatcher{registry: registry, policy: policy, metrics: metrics, logger: logger}
}

// Dispatch resolves sel to an executable call and runs it. Resolution is a
// pure function of the selection and the registry: an unknown tool name or
// parameters that fail validation both substitute the default tool with its
// fixed parameters, so repeated dispatches of the same selection resolve
// identically. Execution failures after retries are reported inside the
// Response envelope, never as a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, sel research.Selection) research.Response {
	spec, params, fallback := d.resolve(sel)
	if d.metrics != nil {
		d.metrics.ToolDispatched(spec.Name, fallback)
	}

	res := retry.Do(ctx, d.policy, func(ctx context.Context) (research.Response, error) {
		return spec.Execute(ctx, sel.Query, params)
	}, research.Response{})
	if !res.OK {
		d.logger.Printf("[TOOLS] %s failed after retries: %v", spec.Name, res.Err)
		if d.metrics != nil {
			d.metrics.ToolFailed(spec.Name)
		}
		return research.Response{ToolName: spec.Name, Params: params, Fallback: fallback, Err: res.Err.Error()}
	}

	out := res.Value
	out.ToolName = spec.Name
	out.Params = params
	out.Fallback = fallback
	return out
}

func (d *Dispatcher) resolve(sel research.Selection) (Spec, map[string]any, bool) {
	spec, ok := d.registry.Lookup(sel.Tool)
	if !ok {
		d.logger.Printf("[TOOLS] unknown tool %q, using default", sel.Tool)
		def, params := d.registry.Default()
		return def, params, true
	}
	params, ok := spec.Normalize(Params(sel.Params))
	if !ok {
		d.logger.Printf("[TOOLS] invalid params for %s, using default", spec.Name)
		def, defParams := d.registry.Default()
		return def, defParams, true
	}
	return spec, params, false
}
