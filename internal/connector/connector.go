// Package connector implements the Connector contract from §4.5: a
// Constructor function that builds a connector from its configuration, a
// single-method Connector interface (Call), plus a Registry that maps a
// source's declared type to a constructor function and defers actually
// building the connector until the step that uses it is ready to run.
package connector

import (
	"context"

	"github.com/flowctl/flowctl/internal/flow"
)

// Connector is the runtime handle for a constructed source. Construction
// (resolving credentials, opening a client, compiling a transform) happens
// once, in the constructor function registered under the source's type;
// Call may be invoked any number of times and must not mutate shared state
// outside of what the connector itself owns.
type Connector interface {
	// Call executes the connector's operation against input, which is the
	// step's already-rendered `input` value (nil if the step declared
	// none).
	Call(ctx context.Context, input any) (flow.ConnectorResult, error)
}

// Constructor builds a Connector from a source's configuration. It must
// not perform I/O per §4.5 — only validate and capture configuration — so
// that construction can be ordered arbitrarily relative to a run, and so a
// misconfigured source that is never used never surfaces an error.
type Constructor func(configuration map[string]any) (Connector, error)
