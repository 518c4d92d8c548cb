// Package statusapi exposes a run's progress and committed outputs over
// HTTP: GET /status for the step state machine, and GET /outputs for the
// Flows store. Both are read-only snapshots of a *runstate.RunState — the
// server never mutates a run, it only observes one already in flight or
// completed.
package statusapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/flowctl/flowctl/internal/httputil"
	"github.com/flowctl/flowctl/internal/runstate"
)

// Server serves the status and outputs endpoints for a single run. A new
// Server is created per run; it holds no state of its own beyond the
// RunState pointer it was handed.
type Server struct {
	rs    *runstate.RunState
	mux   *http.ServeMux
	total int
}

// New builds a Server over rs. total is the run's step count, used to
// compute completed_steps against in the /status response.
func New(rs *runstate.RunState, total int) *Server {
	s := &Server{rs: rs, mux: http.NewServeMux(), total: total}
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /outputs", s.handleOutputs)
	return s
}

// ServeHTTP lets Server be mounted directly as an http.Handler, or wrapped
// in another router the way the daemon mounts its own sub-routers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// stepStatusView is the per-step shape under the /status response's
// "steps" map. outputs lists only output *names*, not values — the values
// live behind GET /outputs, separating "what happened" from "what it
// produced".
type stepStatusView struct {
	State       runstate.StepStatus `json:"state"`
	StartedAt   *time.Time          `json:"started_at"`
	EndedAt     *time.Time          `json:"ended_at"`
	Notes       []string            `json:"notes,omitempty"`
	ErrorReason string              `json:"error_reason,omitempty"`
	Outputs     []string            `json:"outputs"`
}

type statusResponse struct {
	RunID          string                    `json:"run_id"`
	StartedAt      time.Time                 `json:"started_at"`
	EndedAt        *time.Time                `json:"ended_at"`
	TotalSteps     int                       `json:"total_steps"`
	CompletedSteps int                       `json:"completed_steps"`
	CurrentStep    *string                   `json:"current_step"`
	RunningSteps   []string                  `json:"running_steps"`
	RunningCount   int                       `json:"running_count"`
	ErrorOccurred  bool                      `json:"error_occurred"`
	Steps          map[string]stepStatusView `json:"steps"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.rs.Snapshot()
	running := s.rs.RunningSteps()

	resp := statusResponse{
		RunID:        s.rs.ID,
		StartedAt:    s.rs.StartedAt,
		EndedAt:      s.rs.CompletedAt,
		TotalSteps:   s.total,
		RunningSteps: running,
		RunningCount: len(running),
		Steps:        make(map[string]stepStatusView, len(snap)),
	}

	for name, st := range snap {
		if st.Status.Terminal() {
			resp.CompletedSteps++
		}
		if st.Status == runstate.StepFailed {
			resp.ErrorOccurred = true
		}
		outputNames := make([]string, 0, len(st.Outputs))
		for k := range st.Outputs {
			outputNames = append(outputNames, k)
		}
		sort.Strings(outputNames)

		resp.Steps[name] = stepStatusView{
			State:       st.Status,
			StartedAt:   st.StartedAt,
			EndedAt:     st.CompletedAt,
			Notes:       st.Notes,
			ErrorReason: st.ErrorReason,
			Outputs:     outputNames,
		}
	}

	if len(running) > 0 {
		current := running[0]
		resp.CurrentStep = &current
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleOutputs writes the Flows store's mapping directly as the response
// body: {<step_name>: {<output_name>: <value>}}, with no enclosing
// envelope, per §6.3's wire contract.
func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.rs.FlowsSnapshot())
}
