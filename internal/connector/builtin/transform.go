package builtin

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/flow"
)

// transformConnector evaluates an expr-lang expression against its input,
// for computed fields that don't warrant a process/http round trip. This
// is the one place expr-lang is wired in: the template engine itself is
// hand-rolled because its grammar (inline if/else, pipe filters) doesn't
// map onto expr-lang's C-style ternary.
type transformConnector struct {
	program *vm.Program
}

var (
	transformCacheMu sync.Mutex
	transformCache   = map[string]*vm.Program{}
)

// NewTransform constructs the "transform" builtin. configuration.expression
// is compiled once at construction time and cached by source text, so a
// source reused across many steps with identical text compiles only once
// per process.
func NewTransform(configuration map[string]any) (connector.Connector, error) {
	source, _ := configuration["expression"].(string)
	if source == "" {
		return nil, fmt.Errorf("transform connector requires 'expression' in configuration")
	}

	transformCacheMu.Lock()
	program, ok := transformCache[source]
	transformCacheMu.Unlock()
	if !ok {
		compiled, err := expr.Compile(source, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("compiling transform expression: %w", err)
		}
		transformCacheMu.Lock()
		transformCache[source] = compiled
		transformCacheMu.Unlock()
		program = compiled
	}

	return &transformConnector{program: program}, nil
}

func (c *transformConnector) Call(ctx context.Context, input any) (flow.ConnectorResult, error) {
	env := map[string]any{"input": input}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return errorResult(err), nil
	}
	return result(true, 0, out, nil, nil), nil
}
