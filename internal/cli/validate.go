// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/configdoc"
	"github.com/flowctl/flowctl/internal/dag"
)

// newValidateCommand creates the validate command.
func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <flow.yaml>...",
		Short: "Check a flow's documents and dependency graph without running it",
		Long: `Validate loads and deep-merges the given YAML documents, normalizes
every step's source/output/on_error declarations, and analyzes the
dependency graph for cycles and dangling depends_on references. It never
constructs a connector or executes a step.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocs(args)
			if err != nil {
				return newInvalidWorkflowError("reading flow documents", err)
			}

			cfg, err := configdoc.Load(docs)
			if err != nil {
				return newInvalidWorkflowError("loading flow", err)
			}

			if _, err := dag.Analyze(cfg.Flow, cfg.Sources); err != nil {
				return newInvalidWorkflowError("analyzing dependency graph", err)
			}

			if GetJSON() {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"valid": true,
					"steps": len(cfg.Flow),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %d steps, %d sources\n", len(cfg.Flow), len(cfg.Sources))
			return nil
		},
	}
	return cmd
}
