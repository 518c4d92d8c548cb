package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/flow"
)

// globConnector lists filesystem paths matching a doublestar pattern
// (supporting "**") rooted at a configured base directory.
type globConnector struct {
	root    fs.FS
	pattern string
}

// NewGlob constructs the "glob" builtin. configuration.pattern is a
// doublestar pattern (e.g. "**/*.yaml"); configuration.root defaults to
// the current directory.
func NewGlob(configuration map[string]any) (connector.Connector, error) {
	pattern, _ := configuration["pattern"].(string)
	if pattern == "" {
		return nil, fmt.Errorf("glob connector requires 'pattern' in configuration")
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	root, _ := configuration["root"].(string)
	if root == "" {
		root = "."
	}
	return &globConnector{root: os.DirFS(root), pattern: pattern}, nil
}

func (c *globConnector) Call(ctx context.Context, input any) (flow.ConnectorResult, error) {
	matches, err := doublestar.Glob(c.root, c.pattern)
	if err != nil {
		return errorResult(err), nil
	}
	data := make([]any, len(matches))
	for i, m := range matches {
		data[i] = m
	}
	return result(true, 0, data, nil, map[string]any{"count": len(matches)}), nil
}
