// Package flow holds the declarative data model shared by every component
// of the runner: the normalized config produced by the config loader, the
// DAG node shape consumed by the dependency analyzer and scheduler, and the
// uniform result contract every connector returns.
package flow

// OnErrorPolicy is the per-step rule governing what happens to a step's
// descendants when the step fails.
type OnErrorPolicy string

const (
	OnErrorFail     OnErrorPolicy = "fail"
	OnErrorSkip     OnErrorPolicy = "skip"
	OnErrorContinue OnErrorPolicy = "continue"
)

// Normalize returns the policy, defaulting to OnErrorFail when empty.
func (p OnErrorPolicy) Normalize() OnErrorPolicy {
	if p == "" {
		return OnErrorFail
	}
	return p
}

// Valid reports whether p is one of the three recognized policies (or empty,
// which normalizes to fail).
func (p OnErrorPolicy) Valid() bool {
	switch p {
	case "", OnErrorFail, OnErrorSkip, OnErrorContinue:
		return true
	}
	return false
}

// SourceDecl is a named, reusable connector declaration. Immutable once
// normalization has run.
type SourceDecl struct {
	Name string
	Type string
	// Configuration is a free-form nested mapping whose string leaves may
	// contain {{ }} template expressions.
	Configuration map[string]any
}

// SourceRef is a step's reference to a connector, in one of three forms
// before normalization: a bare name (Named), an inline {type,
// configuration} pair (Inline set, Named empty), or a base+override pair.
type SourceRef struct {
	Named    string
	Inline   *SourceDecl
	Base     string
	Override map[string]any
}

// OutputKind selects how an OutputSpec projects a connector result.
type OutputKind string

const (
	OutputKindRaw  OutputKind = "raw"
	OutputKindPath OutputKind = "path"
)

// OutputSpec describes one named projection of a connector's result data.
type OutputSpec struct {
	Name string
	Kind OutputKind
	// Value holds the JSON-path-style expression when Kind == OutputKindPath.
	Value string
}

// StepDecl is a single node of the DAG: one invocation of a connector with
// rendered input. Immutable after load.
type StepDecl struct {
	Name       string
	Source     SourceRef
	Input      any
	Output     []OutputSpec
	DependsOn  []string
	OnError    OnErrorPolicy
}

// Status is the uniform three-field envelope every connector call returns.
type Status struct {
	Success bool
	Code    int
	Notes   []string
}

// ConnectorResult is the contract every connector.Call implementation
// produces. Invariant: Status.Success == false implies the step failed
// regardless of Data.
type ConnectorResult struct {
	Status Status
	Data   any
	Meta   map[string]any
}

// RunnerSettings is the optional `runner:` block of a configuration
// document.
type RunnerSettings struct {
	MaxWorkers int
	OnError    OnErrorPolicy
}

// Config is the fully normalized, merged configuration document produced
// by the config loader and consumed by the dependency analyzer.
type Config struct {
	Sources map[string]SourceDecl
	Flow    []StepDecl
	Runner  RunnerSettings
}
