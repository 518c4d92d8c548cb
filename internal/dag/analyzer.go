// Package dag implements the Dependency Analyzer: deriving the step DAG
// from explicit depends_on links and implicit flows.<step> template
// references, then validating it for missing references, duplicate names,
// and cycles.
package dag

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/flowctl/flowctl/internal/flow"
	flowerrors "github.com/flowctl/flowctl/pkg/errors"
)

// flowRefPattern matches the literal token "flows." followed by an
// identifier, wherever it appears inside a step's source configuration or
// input.
var flowRefPattern = regexp.MustCompile(`flows\.([A-Za-z0-9_]+)`)

// DAG is the validated dependency graph: index maps from step name to its
// parents and children, plus the in-degree each step starts the run with.
type DAG struct {
	Deps       map[string]map[string]bool
	Dependents map[string]map[string]bool
	InDegree   map[string]int
	// Order preserves the declared order of flow[], used only for
	// deterministic iteration in tests and the status view's steps map.
	Order []string
}

// Analyze derives and validates the DAG for a set of step declarations.
// sources is the document's named source table, needed to resolve a step
// whose source is a pure named reference (`source: api`) back to that
// source's own configuration when scanning for implicit flows.* references.
// All issues are aggregated into a single ValidationError rather than
// failing on the first one found.
func Analyze(steps []flow.StepDecl, sources map[string]flow.SourceDecl) (*DAG, error) {
	verr := &flowerrors.ValidationError{}

	byName := make(map[string]flow.StepDecl, len(steps))
	order := make([]string, 0, len(steps))
	seen := map[string]bool{}
	for _, s := range steps {
		if seen[s.Name] {
			verr.Add(s.Name, "duplicate step name")
			continue
		}
		seen[s.Name] = true
		byName[s.Name] = s
		order = append(order, s.Name)
	}

	deps := make(map[string]map[string]bool, len(byName))
	dependents := make(map[string]map[string]bool, len(byName))
	for name := range byName {
		deps[name] = map[string]bool{}
		dependents[name] = map[string]bool{}
	}

	for _, name := range order {
		step := byName[name]
		for _, d := range step.DependsOn {
			if _, ok := byName[d]; !ok {
				verr.Add(name, fmt.Sprintf("depends_on references non-existent step %q", d))
				continue
			}
			deps[name][d] = true
		}
		for _, ref := range implicitRefs(step, sources) {
			if _, ok := byName[ref]; !ok {
				verr.Add(name, fmt.Sprintf("template reference flows.%s.* names non-existent step %q", ref, ref))
				continue
			}
			deps[name][ref] = true
		}
	}

	for name, parents := range deps {
		for p := range parents {
			dependents[p][name] = true
		}
	}

	if cycles := findCycles(order, deps); len(cycles) > 0 {
		for _, cycle := range cycles {
			sort.Strings(cycle)
			verr.Add("", fmt.Sprintf("cycle detected among steps: %v", cycle))
		}
	}

	if verr.HasIssues() {
		return nil, verr
	}

	inDegree := make(map[string]int, len(byName))
	for name := range byName {
		inDegree[name] = len(deps[name])
	}

	return &DAG{Deps: deps, Dependents: dependents, InDegree: inDegree, Order: order}, nil
}

// implicitRefs scans a step's source configuration and input for
// flows.<step> references, matching the literal token "flows." followed by
// an identifier anywhere in any string leaf of either structure. A step
// whose source is a pure named reference (source.Inline == nil) has its
// configuration looked up in sources, since normalization never copies a
// named source's configuration onto the step itself.
func implicitRefs(step flow.StepDecl, sources map[string]flow.SourceDecl) []string {
	var refs []string
	seen := map[string]bool{}
	add := func(s string) {
		for _, m := range flowRefPattern.FindAllStringSubmatch(s, -1) {
			name := m[1]
			if !seen[name] {
				seen[name] = true
				refs = append(refs, name)
			}
		}
	}
	walkStrings(step.Input, add)
	switch {
	case step.Source.Inline != nil:
		walkStrings(step.Source.Inline.Configuration, add)
	case step.Source.Named != "":
		if src, ok := sources[step.Source.Named]; ok {
			walkStrings(src.Configuration, add)
		}
	}
	if step.Source.Override != nil {
		walkStrings(step.Source.Override, add)
	}
	return refs
}

func walkStrings(v any, fn func(string)) {
	switch val := v.(type) {
	case string:
		fn(val)
	case map[string]any:
		for _, v2 := range val {
			walkStrings(v2, fn)
		}
	case []any:
		for _, v2 := range val {
			walkStrings(v2, fn)
		}
	}
}
