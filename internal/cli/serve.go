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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	flowlog "github.com/flowctl/flowctl/internal/log"
	"github.com/flowctl/flowctl/internal/runstate"
	"github.com/flowctl/flowctl/internal/statusapi"
	"github.com/flowctl/flowctl/sdk"
)

// shutdownGrace bounds how long the status server gets to finish
// in-flight requests once the run it describes has reached a terminal
// state.
const shutdownGrace = 5 * time.Second

// newServeCommand creates the serve command.
func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <flow.yaml>...",
		Short: "Execute a flow while exposing its progress on a read-only status endpoint",
		Long: `Serve behaves exactly like run, except it starts an HTTP server
on addr before the first step launches and keeps it up for the run's
duration, so a caller can poll GET /status and GET /outputs (§6.3) while
the run is in progress. The server is torn down once the run reaches a
terminal state and the final result has been printed; it never accepts
writes and can't affect the run it's reporting on.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveAndRun(cmd, args, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8765", "Address the status HTTP server listens on")

	return cmd
}

func serveAndRun(cmd *cobra.Command, paths []string, addr string) error {
	logger := flowlog.New(flowlog.FromEnv())

	docs, err := readDocs(paths)
	if err != nil {
		return newInvalidWorkflowError("reading flow documents", err)
	}

	r, err := sdk.New(docs)
	if err != nil {
		return classifyLoadError(err)
	}

	totalSteps := len(r.Config().Flow)

	srv := &http.Server{Addr: addr}
	serverErrCh := make(chan error, 1)

	onStart := func(rs *runstate.RunState) {
		srv.Handler = flowlog.HTTPMiddleware(logger, statusapi.New(rs, totalSteps))
		go func() {
			logger.Info("status server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrCh <- err
			}
		}()
	}

	rs, runErr := r.Run(cmd.Context(), onStart)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	select {
	case srvErr := <-serverErrCh:
		return newServerError("status server failed", srvErr)
	default:
	}

	if runErr != nil {
		return newExecutionError("running flow", runErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s complete: error_occurred=%v\n", rs.ID, rs.ErrorHasOccurred())
	if rs.ErrorHasOccurred() {
		return &ExitError{Code: ExitExecutionFailed, Message: "one or more steps failed"}
	}
	return nil
}
