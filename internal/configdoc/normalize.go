package configdoc

import (
	"fmt"

	"github.com/flowctl/flowctl/internal/flow"
	flowerrors "github.com/flowctl/flowctl/pkg/errors"
)

// normalize turns the deep-merged raw document into a flow.Config,
// resolving every step's source reference into a canonical {type,
// configuration} pair per §4.1. It fails fast (a single ConfigError) on
// malformed top-level shape; dependency-level problems are the analyzer's
// job, not the loader's.
func normalize(doc map[string]any) (*flow.Config, error) {
	sources, err := normalizeSources(doc["sources"])
	if err != nil {
		return nil, err
	}

	runner, err := normalizeRunner(doc["runner"])
	if err != nil {
		return nil, err
	}

	rawFlow, _ := doc["flow"].([]any)
	steps := make([]flow.StepDecl, 0, len(rawFlow))
	for i, raw := range rawFlow {
		stepMap, ok := raw.(map[string]any)
		if !ok {
			return nil, &flowerrors.ConfigError{Key: fmt.Sprintf("flow[%d]", i), Reason: "step must be a mapping"}
		}
		step, err := normalizeStep(stepMap, sources)
		if err != nil {
			return nil, err
		}
		// §6.1: runner.on_error is the default policy for steps that
		// don't declare their own; an empty per-step policy still means
		// "use the default" at this point, since normalizeStep only
		// rejects policies that are both non-empty and invalid.
		if step.OnError == "" {
			step.OnError = runner.OnError
		}
		steps = append(steps, step)
	}

	return &flow.Config{Sources: sources, Flow: steps, Runner: runner}, nil
}

func normalizeSources(raw any) (map[string]flow.SourceDecl, error) {
	out := map[string]flow.SourceDecl{}
	m, ok := raw.(map[string]any)
	if !ok {
		if raw != nil {
			return nil, &flowerrors.ConfigError{Key: "sources", Reason: "sources must be a mapping"}
		}
		return out, nil
	}
	for name, v := range m {
		entry, ok := v.(map[string]any)
		if !ok {
			return nil, &flowerrors.ConfigError{Key: "sources." + name, Reason: "source declaration must be a mapping"}
		}
		typ, cfg, err := splitTypeAndConfiguration(entry)
		if err != nil {
			return nil, fmt.Errorf("sources.%s: %w", name, err)
		}
		out[name] = flow.SourceDecl{Name: name, Type: typ, Configuration: cfg}
	}
	return out, nil
}

func splitTypeAndConfiguration(m map[string]any) (string, map[string]any, error) {
	typ, _ := m["type"].(string)
	if typ == "" {
		return "", nil, &flowerrors.ConfigError{Reason: "missing required field 'type'"}
	}
	cfg, _ := m["configuration"].(map[string]any)
	if cfg == nil {
		cfg = map[string]any{}
	}
	return typ, cfg, nil
}

func normalizeStep(m map[string]any, sources map[string]flow.SourceDecl) (flow.StepDecl, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return flow.StepDecl{}, &flowerrors.ConfigError{Key: "flow", Reason: "step is missing required field 'name'"}
	}

	ref, err := normalizeSourceRef(m["source"], sources, name)
	if err != nil {
		return flow.StepDecl{}, err
	}

	output, err := normalizeOutputs(m["output"], name)
	if err != nil {
		return flow.StepDecl{}, err
	}

	var dependsOn []string
	if raw, ok := m["depends_on"].([]any); ok {
		for _, d := range raw {
			if s, ok := d.(string); ok {
				dependsOn = append(dependsOn, s)
			}
		}
	}

	onError, _ := m["on_error"].(string)
	policy := flow.OnErrorPolicy(onError)
	if !policy.Valid() {
		return flow.StepDecl{}, &flowerrors.ConfigError{
			Key:    fmt.Sprintf("flow.%s.on_error", name),
			Reason: fmt.Sprintf("invalid on_error policy %q", onError),
		}
	}

	return flow.StepDecl{
		Name:      name,
		Source:    ref,
		Input:     m["input"],
		Output:    output,
		DependsOn: dependsOn,
		OnError:   policy,
	}, nil
}

// normalizeSourceRef resolves the three source forms a step may declare:
// a bare name referencing `sources.<name>`, an inline {type, configuration}
// pair, or a {base, override} pair where override is deep-merged onto the
// named base. The caller (the scheduler, at render time) still needs
// Source.Named/Base for sources-store bookkeeping, so this resolves the
// *declaration* but keeps the reference shape rather than collapsing it.
func normalizeSourceRef(raw any, sources map[string]flow.SourceDecl, stepName string) (flow.SourceRef, error) {
	switch v := raw.(type) {
	case string:
		if _, ok := sources[v]; !ok {
			return flow.SourceRef{}, &flowerrors.ConfigError{
				Key:    fmt.Sprintf("flow.%s.source", stepName),
				Reason: fmt.Sprintf("named source %q does not exist", v),
			}
		}
		return flow.SourceRef{Named: v}, nil
	case map[string]any:
		if base, ok := v["base"].(string); ok {
			baseDecl, exists := sources[base]
			if !exists {
				return flow.SourceRef{}, &flowerrors.ConfigError{
					Key:    fmt.Sprintf("flow.%s.source.base", stepName),
					Reason: fmt.Sprintf("base source %q does not exist", base),
				}
			}
			override, _ := v["override"].(map[string]any)
			merged := DeepMerge(map[string]any{
				"type":          baseDecl.Type,
				"configuration": baseDecl.Configuration,
			}, override)
			typ, cfg, err := splitTypeAndConfiguration(merged)
			if err != nil {
				return flow.SourceRef{}, fmt.Errorf("flow.%s.source: %w", stepName, err)
			}
			return flow.SourceRef{
				Base:     base,
				Override: override,
				Inline:   &flow.SourceDecl{Name: base, Type: typ, Configuration: cfg},
			}, nil
		}
		typ, cfg, err := splitTypeAndConfiguration(v)
		if err != nil {
			return flow.SourceRef{}, fmt.Errorf("flow.%s.source: %w", stepName, err)
		}
		return flow.SourceRef{Inline: &flow.SourceDecl{Type: typ, Configuration: cfg}}, nil
	case nil:
		return flow.SourceRef{}, &flowerrors.ConfigError{
			Key:    fmt.Sprintf("flow.%s.source", stepName),
			Reason: "step is missing required field 'source'",
		}
	default:
		return flow.SourceRef{}, &flowerrors.ConfigError{
			Key:    fmt.Sprintf("flow.%s.source", stepName),
			Reason: "source must be a string reference or a mapping",
		}
	}
}

func normalizeOutputs(raw any, stepName string) ([]flow.OutputSpec, error) {
	list, ok := raw.([]any)
	if !ok {
		if raw != nil {
			return nil, &flowerrors.ConfigError{Key: fmt.Sprintf("flow.%s.output", stepName), Reason: "output must be a sequence"}
		}
		return nil, nil
	}
	out := make([]flow.OutputSpec, 0, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &flowerrors.ConfigError{Key: fmt.Sprintf("flow.%s.output[%d]", stepName, i), Reason: "output entry must be a mapping"}
		}
		name, _ := m["name"].(string)
		if name == "" {
			return nil, &flowerrors.ConfigError{Key: fmt.Sprintf("flow.%s.output[%d]", stepName, i), Reason: "missing required field 'name'"}
		}
		kindStr, _ := m["kind"].(string)
		kind := flow.OutputKind(kindStr)
		if kind == "" {
			kind = flow.OutputKindRaw
		}
		if kind != flow.OutputKindRaw && kind != flow.OutputKindPath {
			return nil, &flowerrors.ConfigError{Key: fmt.Sprintf("flow.%s.output[%d].kind", stepName, i), Reason: fmt.Sprintf("unknown output kind %q", kind)}
		}
		value, _ := m["value"].(string)
		if kind == flow.OutputKindPath && value == "" {
			return nil, &flowerrors.ConfigError{Key: fmt.Sprintf("flow.%s.output[%d].value", stepName, i), Reason: "path outputs require 'value'"}
		}
		out = append(out, flow.OutputSpec{Name: name, Kind: kind, Value: value})
	}
	return out, nil
}

func normalizeRunner(raw any) (flow.RunnerSettings, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		if raw != nil {
			return flow.RunnerSettings{}, &flowerrors.ConfigError{Key: "runner", Reason: "runner must be a mapping"}
		}
		return flow.RunnerSettings{}, nil
	}
	settings := flow.RunnerSettings{}
	switch v := m["max_workers"].(type) {
	case int:
		settings.MaxWorkers = v
	case float64: // yaml decodes bare integers as int, but be defensive
		settings.MaxWorkers = int(v)
	}
	if onError, ok := m["on_error"].(string); ok {
		policy := flow.OnErrorPolicy(onError)
		if !policy.Valid() {
			return flow.RunnerSettings{}, &flowerrors.ConfigError{Key: "runner.on_error", Reason: fmt.Sprintf("invalid on_error policy %q", onError)}
		}
		settings.OnError = policy
	}
	return settings, nil
}
