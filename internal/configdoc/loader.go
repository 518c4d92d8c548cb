// Package configdoc implements the Config Loader: parsing layered YAML
// documents, deep-merging them, and normalizing the result into the typed
// flow.Config consumed by the dependency analyzer and scheduler.
package configdoc

import (
	"fmt"

	flowerrors "github.com/flowctl/flowctl/pkg/errors"
	"github.com/flowctl/flowctl/internal/flow"
	"gopkg.in/yaml.v3"
)

// ParseDocument unmarshals a single YAML document into a generic mapping.
// An empty or whitespace-only document parses to an empty map rather than
// nil, so callers can merge it unconditionally.
func ParseDocument(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &flowerrors.ConfigError{Reason: fmt.Sprintf("invalid YAML: %v", err), Cause: err}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Load parses each document in order, deep-merges them (later documents
// override earlier ones), and normalizes the result into a flow.Config.
// This is the Config Loader's single entry point: config loader semantics
// for splitting base configuration, environment overrides, and secret
// overlays across files all flow through the merge order of docs.
func Load(docs [][]byte) (*flow.Config, error) {
	merged := map[string]any{}
	for i, raw := range docs {
		doc, err := ParseDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		merged = DeepMerge(merged, doc)
	}
	return normalize(merged)
}
