// Package runstate holds the in-memory Flows and Sources stores and the
// per-run step state machine described in §3 and §5: every mutation goes
// through a single non-reentrant mutex, and every read handed to another
// component is a deep copy so nothing outside this package can alias the
// mutable state.
//
// §9 explicitly departs from the Python original's RLock: a single
// sync.Mutex is enough because no method here calls back into another
// locking method while holding the lock, and a plain Mutex makes that
// invariant something the compiler-adjacent reader can trust rather than
// something that has to be reasoned about call-graph by call-graph.
package runstate

import (
	"sync"
	"time"
)

// StepStatus is the state machine described in §4.6: every step starts
// Pending, and ends in exactly one of Success, Failed, or Skipped.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Terminal reports whether status is one a step does not leave.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepSuccess, StepFailed, StepSkipped:
		return true
	}
	return false
}

// StepState is the mutable record for one step across a run.
type StepState struct {
	Name        string
	Status      StepStatus
	Outputs     map[string]any
	Notes       []string
	ErrorReason string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (s StepState) clone() StepState {
	cp := s
	if s.Outputs != nil {
		cp.Outputs = make(map[string]any, len(s.Outputs))
		for k, v := range s.Outputs {
			cp.Outputs[k] = v
		}
	}
	if s.Notes != nil {
		cp.Notes = append([]string(nil), s.Notes...)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		cp.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

// RunState is the single mutable object a run's scheduler, template
// engine, and status API all read and write. Every exported method
// acquires mu itself; none of them call another exported method while
// holding it, so the lock is never reentered.
type RunState struct {
	mu sync.Mutex

	ID            string
	Steps         map[string]*StepState
	Sources       map[string]map[string]any
	ErrorOccurred bool
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// New creates a RunState with every named step Pending and an empty
// Sources store; SeedSources fills that store with each named source's
// initial configuration view.
func New(id string, stepNames []string) *RunState {
	steps := make(map[string]*StepState, len(stepNames))
	for _, name := range stepNames {
		steps[name] = &StepState{Name: name, Status: StepPending}
	}
	return &RunState{ID: id, Steps: steps, Sources: map[string]map[string]any{}, StartedAt: time.Now()}
}

// SeedSources installs the initial materialized configuration view for
// every named source, before the run starts.
func (r *RunState) SeedSources(sources map[string]map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, cfg := range sources {
		r.Sources[name] = cloneAnyMap(cfg)
	}
}

// MergeSourceOutputs overwrites sourceName's materialized view with a
// step's projected outputs, per §4.6: when a step's source is named and
// its outputs form a mapping, those values replace (not deep-merge) the
// corresponding keys in sources[source_name] — see DESIGN.md's Open
// Question #1 decision.
func (r *RunState) MergeSourceOutputs(sourceName string, outputs map[string]any) {
	if sourceName == "" || outputs == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.Sources[sourceName]
	if !ok {
		view = map[string]any{}
	}
	for k, v := range outputs {
		view[k] = v
	}
	r.Sources[sourceName] = view
}

// SourcesSnapshot returns a deep copy of the Sources store, for the
// Template Engine's render context.
func (r *RunState) SourcesSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.Sources))
	for name, cfg := range r.Sources {
		out[name] = cloneAnyMap(cfg)
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarkRunning transitions a step from Pending to Running and stamps its
// start time.
func (r *RunState) MarkRunning(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.Steps[step]
	now := time.Now()
	s.Status = StepRunning
	s.StartedAt = &now
}

// MarkSuccess commits a step's extracted outputs and transitions it to
// Success. Outputs become visible to the Flows store snapshot the moment
// this returns.
func (r *RunState) MarkSuccess(step string, outputs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.Steps[step]
	now := time.Now()
	s.Status = StepSuccess
	s.Outputs = outputs
	s.CompletedAt = &now
}

// MarkFailed transitions a step to Failed, records why, and flags the run
// as having had an error, which ErrorHasOccurred reports.
func (r *RunState) MarkFailed(step string, reason string, notes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.Steps[step]
	now := time.Now()
	s.Status = StepFailed
	s.ErrorReason = reason
	s.Notes = notes
	s.CompletedAt = &now
	r.ErrorOccurred = true
}

// MarkSkipped transitions a step straight to Skipped without ever running
// it, recording why (typically "parent %q failed").
func (r *RunState) MarkSkipped(step string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.Steps[step]
	now := time.Now()
	s.Status = StepSkipped
	s.ErrorReason = reason
	s.CompletedAt = &now
}

// Get returns a deep copy of one step's state.
func (r *RunState) Get(step string) (StepState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Steps[step]
	if !ok {
		return StepState{}, false
	}
	return s.clone(), true
}

// ErrorHasOccurred reports whether any step has failed so far.
func (r *RunState) ErrorHasOccurred() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ErrorOccurred
}

// Complete stamps the run's completion time. Called exactly once, after
// the scheduler's main loop drains.
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.CompletedAt = &now
}

// FlowsSnapshot returns the Flows store as the template engine and
// dependency-ordered steps see it: step name to its committed named
// outputs, for every step that has reached Success. A step's dependents
// never render until that step is terminal, so by construction every
// reference a live render makes here is to a step already present.
func (r *RunState) FlowsSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.Steps))
	for name, s := range r.Steps {
		if s.Status == StepSuccess {
			cp := s.clone()
			out[name] = cp.Outputs
		}
	}
	return out
}

// RunningSteps returns the names of every step currently Running, sorted
// for deterministic status API output.
func (r *RunState) RunningSteps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for name, s := range r.Steps {
		if s.Status == StepRunning {
			out = append(out, name)
		}
	}
	sortStrings(out)
	return out
}

// AllTerminal reports whether every step has reached a terminal status.
func (r *RunState) AllTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Steps {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

// Snapshot returns a deep-copied view of every step keyed by name, for the
// status API and for embedders inspecting a completed run.
func (r *RunState) Snapshot() map[string]StepState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]StepState, len(r.Steps))
	for name, s := range r.Steps {
		out[name] = s.clone()
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
