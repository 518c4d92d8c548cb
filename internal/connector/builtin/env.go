package builtin

import (
	"context"
	"os"

	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/flow"
)

// envConnector reads a fixed set of environment variables named by its
// configuration's "vars" list. It never reads input; the same set of
// variables is read on every call.
type envConnector struct {
	vars []string
}

// NewEnv constructs the "env" builtin. configuration.vars is a list of
// environment variable names; each call returns a map from name to its
// current value (nil if unset).
func NewEnv(configuration map[string]any) (connector.Connector, error) {
	raw, _ := configuration["vars"].([]any)
	vars := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			vars = append(vars, s)
		}
	}
	return &envConnector{vars: vars}, nil
}

func (c *envConnector) Call(ctx context.Context, input any) (flow.ConnectorResult, error) {
	data := make(map[string]any, len(c.vars))
	for _, name := range c.vars {
		if val, ok := os.LookupEnv(name); ok {
			data[name] = val
		} else {
			data[name] = nil
		}
	}
	return result(true, 0, data, nil, nil), nil
}
