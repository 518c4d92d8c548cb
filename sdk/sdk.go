// Package sdk is flowctl's embedding API: construct a Runner from a
// validated configuration, call Run to execute it to completion, then
// inspect Flows/RunState. Grounded on the teacher's sdk.New(opts...)/
// (*SDK).Run(ctx, ...) shape, trimmed to §6.4's single coarse operation —
// no provider registries, event bus, or persistence store, since the core
// this SDK wraps has none of those concerns.
package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/flowctl/flowctl/internal/configdoc"
	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/connector/builtin"
	"github.com/flowctl/flowctl/internal/dag"
	"github.com/flowctl/flowctl/internal/extract"
	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/runstate"
	"github.com/flowctl/flowctl/internal/scheduler"
	"github.com/flowctl/flowctl/internal/telemetry"
)

// Option configures a Runner at construction time.
type Option func(*Runner) error

// WithRegistry replaces the default builtin connector registry. Use this
// to add custom connector types alongside (or instead of) env, process,
// sleep, http, transform, and glob.
func WithRegistry(reg *connector.Registry) Option {
	return func(r *Runner) error {
		r.registry = reg
		return nil
	}
}

// WithExtractorLimits overrides the Output Extractor's per-path timeout
// and max input size in bytes.
func WithExtractorLimits(timeout time.Duration, maxInputBytes int64) Option {
	return func(r *Runner) error {
		r.extractor = extract.NewExtractor(timeout, maxInputBytes)
		return nil
	}
}

// WithTracer attaches a telemetry.Provider so step spans are emitted
// somewhere other than the default no-op tracer.
func WithTracer(tp *telemetry.Provider) Option {
	return func(r *Runner) error {
		r.tracer = tp
		return nil
	}
}

// Runner is a single flow, ready to execute. It owns no global state; two
// Runners in the same process never interfere with each other.
type Runner struct {
	cfg       *flow.Config
	graph     *dag.DAG
	registry  *connector.Registry
	extractor *extract.Extractor
	tracer    *telemetry.Provider
}

// New loads and validates the YAML documents in docs (later documents
// override earlier ones, per §4.1), derives and checks the dependency
// graph (§4.2), and returns a Runner ready to execute. It returns a
// *pkg/errors.ConfigError or *pkg/errors.ValidationError — never starts
// any step — on any problem with the documents themselves.
func New(docs [][]byte, opts ...Option) (*Runner, error) {
	cfg, err := configdoc.Load(docs)
	if err != nil {
		return nil, err
	}
	graph, err := dag.Analyze(cfg.Flow, cfg.Sources)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:       cfg,
		graph:     graph,
		registry:  connector.NewRegistry(),
		extractor: extract.NewExtractor(extract.DefaultTimeout, extract.DefaultMaxInputSize),
	}
	builtin.RegisterAll(r.registry)

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("sdk: applying option: %w", err)
		}
	}

	return r, nil
}

// Config returns the normalized configuration this Runner will execute.
func (r *Runner) Config() *flow.Config {
	return r.cfg
}

// Run blocks until every reachable step has reached a terminal state and
// returns the final RunState, per §6.4's run-entry contract: construct,
// run, then inspect flows/run_state. Run itself never returns an error
// for step-level failures — those live in the returned RunState; the
// error return is reserved for a scheduler-internal fault.
//
// onStart, if given, is handed the RunState the moment it exists, before
// any step runs — the only way a caller can observe a run's progress
// while Run is still blocked.
func (r *Runner) Run(ctx context.Context, onStart ...func(*runstate.RunState)) (*runstate.RunState, error) {
	s := scheduler.New(r.registry, r.extractor, r.tracer)
	return s.Run(ctx, r.cfg, r.graph, onStart...)
}
