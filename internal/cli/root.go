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
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root Cobra command for flowctl.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowctl",
		Short: "flowctl - declarative, dependency-aware workflow runner",
		Long: `flowctl runs a YAML-declared set of steps as a dependency-aware
parallel DAG: each step pulls data through a connector, extracts the
outputs later steps need, and renders them into other steps' inputs
via a small templating language.

Run 'flowctl validate <flow.yaml>' to check a workflow without running it.
Run 'flowctl run <flow.yaml>' to execute one.
Run 'flowctl serve <flow.yaml>' to execute one while exposing its
progress on a read-only status HTTP endpoint.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // we handle errors ourselves for proper exit codes
	}

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringArrayVar(&configFlag, "config", nil, "Additional override document to merge on top of the flow files (repeatable)")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, c, b := GetVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "flowctl %s (commit %s, built %s)\n", v, c, b)
			return nil
		},
	}
}
