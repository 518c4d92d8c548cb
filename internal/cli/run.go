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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/cliformat"
	flowlog "github.com/flowctl/flowctl/internal/log"
	"github.com/flowctl/flowctl/internal/watch"
	"github.com/flowctl/flowctl/pkg/errors"
	"github.com/flowctl/flowctl/sdk"
)

// newRunCommand creates the run command.
func newRunCommand() *cobra.Command {
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "run <flow.yaml>...",
		Short: "Execute a flow to completion",
		Long: `Run loads one or more YAML documents (later documents override
earlier ones), builds the dependency graph, and executes every step to a
terminal state: success, failed, or skipped.

The exit code reflects the run's outcome: 0 if every step succeeded,
1 if any step ended in StepFailed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchFlag {
				return runAndWatch(cmd, args)
			}
			return runOnce(cmd, args)
		},
	}

	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Re-run whenever any input file changes")

	return cmd
}

func runOnce(cmd *cobra.Command, paths []string) error {
	docs, err := readDocs(paths)
	if err != nil {
		return newInvalidWorkflowError("reading flow documents", err)
	}

	logger := flowlog.New(flowlog.FromEnv())

	r, err := sdk.New(docs)
	if err != nil {
		return classifyLoadError(err)
	}

	rs, err := r.Run(cmd.Context())
	if err != nil {
		return newExecutionError("running flow", err)
	}

	format := cliformat.FormatText
	if GetJSON() {
		format = cliformat.FormatJSON
	}
	success, err := cliformat.Write(cmd.OutOrStdout(), format, "run", rs)
	if err != nil {
		return newExecutionError("formatting run result", err)
	}

	if GetVerbose() {
		logger.Info("run complete", "success", success)
	}
	if !success {
		return &ExitError{Code: ExitExecutionFailed, Message: "one or more steps failed"}
	}
	return nil
}

// runAndWatch re-executes the flow each time one of its input files
// changes, printing each run's result in turn. It never returns until the
// command's context is cancelled (e.g. via Ctrl-C), since the whole point
// of --watch is to keep the process alive between runs.
func runAndWatch(cmd *cobra.Command, paths []string) error {
	logger := flowlog.New(flowlog.FromEnv())

	w, err := watch.New(paths, logger)
	if err != nil {
		return newExecutionError("starting watcher", err)
	}
	defer w.Close()

	ctx := cmd.Context()
	go w.Run(ctx)

	runAndReport := func() {
		if err := runOnce(cmd, paths); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
	}

	runAndReport()
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-w.Changes():
			if !ok {
				return nil
			}
			logger.Info("input changed, re-running", "path", changed)
			runAndReport()
		}
	}
}

// readDocs reads the positional flow files in order, then appends any
// override documents named by FLOWCTL_CONFIG and then --config,
// so config loader semantics apply uniformly: later documents, including
// every override, take precedence over earlier ones.
func readDocs(paths []string) ([][]byte, error) {
	all := append(append([]string{}, paths...), overridePaths()...)

	docs := make([][]byte, 0, len(all))
	for _, p := range all {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		docs = append(docs, b)
	}
	return docs, nil
}

// overridePaths returns the override document paths from FLOWCTL_CONFIG
// (colon-separated, like PATH) followed by --config, matching the
// teacher CLI's convention of environment overrides yielding to explicit
// flags.
func overridePaths() []string {
	var paths []string
	if env := os.Getenv("FLOWCTL_CONFIG"); env != "" {
		paths = append(paths, strings.Split(env, string(os.PathListSeparator))...)
	}
	paths = append(paths, GetConfigPaths()...)
	return paths
}

// classifyLoadError maps the loader/analyzer's error taxonomy onto exit
// codes. Every error New can return is a config or validation problem —
// the caller's fault, not the runtime's — so this always exits 2; it
// exists mainly to document that and to fail loudly if a future error
// kind sneaks in unclassified.
func classifyLoadError(err error) error {
	var classified errors.Classified
	if !errors.As(err, &classified) {
		return newExecutionError("loading flow", err)
	}
	return newInvalidWorkflowError("loading flow", err)
}
