// Package scheduler implements the dynamic, dependency-aware worker-pool
// runner described in §4.6: steps become eligible the moment their last
// unresolved dependency commits, a bounded pool of goroutines executes
// eligible steps concurrently, and each step's on_error policy governs
// what happens to its dependents when it fails.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/dag"
	"github.com/flowctl/flowctl/internal/extract"
	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/metrics"
	"github.com/flowctl/flowctl/internal/runstate"
	"github.com/flowctl/flowctl/internal/telemetry"
	"github.com/flowctl/flowctl/internal/template"
	flowerrors "github.com/flowctl/flowctl/pkg/errors"
)

// DefaultMaxWorkers is used when a config document doesn't set
// runner.max_workers, per the §9 Open Question resolution: the Python
// original derived a worker count from the host's thread count
// (min(4, active_count()+3)), which is neither reproducible nor
// meaningful in Go's goroutine model, so a fixed default of 4 is used
// instead.
const DefaultMaxWorkers = 4

// Scheduler executes one run of a normalized flow.Config against a
// validated dag.DAG.
type Scheduler struct {
	registry  *connector.Registry
	extractor *extract.Extractor
	tracer    *telemetry.Provider
}

// New creates a Scheduler backed by reg for connector construction and ext
// for output extraction. With no telemetry.Provider given, step spans are
// started against a no-op tracer so callers never need to special-case an
// unconfigured tracer.
func New(reg *connector.Registry, ext *extract.Extractor, tracer ...*telemetry.Provider) *Scheduler {
	s := &Scheduler{registry: reg, extractor: ext}
	if len(tracer) > 0 && tracer[0] != nil {
		s.tracer = tracer[0]
	} else {
		s.tracer, _ = telemetry.New(telemetry.Config{})
	}
	return s
}

type stepOutcome struct {
	step    string
	success bool
}

// Run executes every step in graph exactly once (success, failure, or
// skip), blocking until the run reaches a terminal state for every step.
// It returns the RunState so the caller (the SDK, the status API, or a
// CLI command) can inspect outcomes and committed outputs.
// onStart, if given, is called with the freshly constructed RunState
// before any step is launched — a caller that needs to observe a run in
// progress (e.g. to serve it over HTTP) has nothing to poll otherwise,
// since Run itself doesn't return until every step reaches a terminal
// state.
func (s *Scheduler) Run(ctx context.Context, cfg *flow.Config, graph *dag.DAG, onStart ...func(*runstate.RunState)) (*runstate.RunState, error) {
	byName := make(map[string]flow.StepDecl, len(cfg.Flow))
	for _, step := range cfg.Flow {
		byName[step.Name] = step
	}

	runID := uuid.NewString()
	rs := runstate.New(runID, graph.Order)

	seedSources := make(map[string]map[string]any, len(cfg.Sources))
	for name, decl := range cfg.Sources {
		seedSources[name] = map[string]any{"type": decl.Type, "configuration": decl.Configuration}
	}
	rs.SeedSources(seedSources)

	for _, hook := range onStart {
		if hook != nil {
			hook(rs)
		}
	}

	maxWorkers := cfg.Runner.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	inDegree := make(map[string]int, len(graph.InDegree))
	for name, deg := range graph.InDegree {
		inDegree[name] = deg
	}

	sem := make(chan struct{}, maxWorkers)
	doneCh := make(chan stepOutcome, len(graph.Order))

	var mu sync.Mutex
	scheduled := map[string]bool{}
	stopScheduling := false
	remaining := len(graph.Order)

	launch := func(name string) {
		scheduled[name] = true
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			success := s.runStep(ctx, byName[name], rs, cfg)
			doneCh <- stepOutcome{step: name, success: success}
		}()
	}

	// finalizeSkip marks name (and, cascading, anything depending on it
	// that hasn't started yet) Skipped, and accounts for the decrement in
	// `remaining` directly rather than waiting for a doneCh send that
	// will never arrive for a step that never ran.
	var finalizeSkip func(name, reason string)
	finalizeSkip = func(name, reason string) {
		if scheduled[name] {
			return
		}
		scheduled[name] = true
		rs.MarkSkipped(name, reason)
		remaining--
		for dep := range graph.Dependents[name] {
			finalizeSkip(dep, fmt.Sprintf("parent %q was skipped", name))
		}
	}

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()
	runStart := time.Now()

	mu.Lock()
	for _, name := range graph.Order {
		if inDegree[name] == 0 {
			launch(name)
		}
	}
	mu.Unlock()

	for remaining > 0 {
		outcome := <-doneCh
		remaining--

		mu.Lock()
		if !outcome.success {
			policy := byName[outcome.step].OnError.Normalize()
			switch policy {
			case flow.OnErrorFail:
				stopScheduling = true
			case flow.OnErrorSkip:
				for dep := range graph.Dependents[outcome.step] {
					finalizeSkip(dep, fmt.Sprintf("parent %q failed", outcome.step))
				}
			case flow.OnErrorContinue:
				// Dependents are left eligible; if they reference
				// flows.<step>.* the strict template engine fails their
				// render (the step never committed outputs), and that
				// failure is handled through this same path recursively.
			}
		}

		if stopScheduling {
			for dep := range graph.Dependents[outcome.step] {
				finalizeSkip(dep, fmt.Sprintf("run stopped: step %q failed with on_error=fail", outcome.step))
			}
		} else {
			for dep := range graph.Dependents[outcome.step] {
				if state, ok := rs.Get(dep); ok && state.Status != runstate.StepPending {
					continue
				}
				inDegree[dep]--
				if inDegree[dep] == 0 {
					launch(dep)
				}
			}
		}
		mu.Unlock()
	}

	if stopScheduling {
		mu.Lock()
		for _, name := range graph.Order {
			if state, ok := rs.Get(name); ok && state.Status == runstate.StepPending {
				rs.MarkSkipped(name, "run stopped before this step could be scheduled")
			}
		}
		mu.Unlock()
	}

	rs.Complete()
	metrics.RunDuration.Observe(time.Since(runStart).Seconds())
	return rs, nil
}

// runStep executes the full per-step pipeline: snapshot the flows/sources
// stores, resolve and render the step's source, construct (or reuse) its
// connector, call it, and extract outputs. It returns whether the step
// succeeded; all failure detail is recorded on rs before returning.
func (s *Scheduler) runStep(ctx context.Context, step flow.StepDecl, rs *runstate.RunState, cfg *flow.Config) bool {
	rs.MarkRunning(step.Name)
	start := time.Now()
	connectorType := "unresolved"

	ctx, span := s.tracer.StartStep(ctx, step.Name, connectorType)
	var stepErr error
	defer func() { telemetry.EndStep(span, stepErr) }()

	fail := func(status string, reason string, notes []string) bool {
		stepErr = fmt.Errorf("%s", reason)
		rs.MarkFailed(step.Name, reason, notes)
		metrics.RecordStep(connectorType, status, time.Since(start).Seconds())
		return false
	}

	renderCtx := template.Context{Flows: rs.FlowsSnapshot(), Sources: rs.SourcesSnapshot()}

	decl, cacheKey, err := resolveSourceDecl(step, cfg.Sources)
	if err != nil {
		return fail("failed", err.Error(), []string{err.Error()})
	}
	connectorType = decl.Type

	renderedConfig, err := template.Render(decl.Configuration, renderCtx)
	if err != nil {
		return fail("failed", err.Error(), []string{err.Error()})
	}
	decl.Configuration, _ = renderedConfig.(map[string]any)

	conn, err := s.registry.Resolve(cacheKey, decl)
	if err != nil {
		return fail("failed", err.Error(), []string{err.Error()})
	}

	var renderedInput any
	if step.Input != nil {
		renderedInput, err = template.Render(step.Input, renderCtx)
		if err != nil {
			return fail("failed", err.Error(), []string{err.Error()})
		}
	}

	result, err := func() (res flow.ConnectorResult, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return conn.Call(ctx, renderedInput)
	}()
	if err != nil {
		metrics.ConnectorCallErrors.WithLabelValues(decl.Type).Inc()
		callErr := &flowerrors.ConnectorCallError{Step: step.Name, ConnectorType: decl.Type, Cause: err}
		return fail("failed", callErr.Error(), []string{callErr.Error()})
	}
	if !result.Status.Success {
		reason := "connector reported failure"
		if len(result.Status.Notes) > 0 {
			reason = result.Status.Notes[0]
		}
		return fail("failed", reason, result.Status.Notes)
	}

	outputs, err := s.extractor.Extract(ctx, step.Name, step.Output, result)
	if err != nil {
		return fail("failed", err.Error(), []string{err.Error()})
	}

	rs.MarkSuccess(step.Name, outputs)
	if step.Source.Named != "" {
		rs.MergeSourceOutputs(step.Source.Named, outputs)
	}
	metrics.RecordStep(decl.Type, "success", time.Since(start).Seconds())
	return true
}

// resolveSourceDecl collapses a step's three possible source forms into a
// concrete SourceDecl plus a cache key for connector reuse. A pure named
// reference shares one constructed connector across every step that uses
// it; an inline or base+override source is specific to this step, so it
// gets its own cache entry.
func resolveSourceDecl(step flow.StepDecl, sources map[string]flow.SourceDecl) (flow.SourceDecl, string, error) {
	ref := step.Source
	switch {
	case ref.Inline != nil:
		decl := *ref.Inline
		decl.Configuration = cloneConfig(decl.Configuration)
		return decl, "step:" + step.Name, nil
	case ref.Named != "":
		base, ok := sources[ref.Named]
		if !ok {
			return flow.SourceDecl{}, "", fmt.Errorf("step %q references unknown source %q", step.Name, ref.Named)
		}
		decl := base
		decl.Configuration = cloneConfig(base.Configuration)
		return decl, "named:" + ref.Named, nil
	default:
		return flow.SourceDecl{}, "", fmt.Errorf("step %q has no resolvable source", step.Name)
	}
}

func cloneConfig(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
