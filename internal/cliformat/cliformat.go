// Package cliformat renders a completed run's RunState to the CLI's
// stdout, either as a stable JSON envelope or as a human-readable text
// summary, grounded on the teacher's internal/commands/shared JSON
// response envelope pattern.
package cliformat

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/flowctl/flowctl/internal/runstate"
)

// Format selects how Write renders a run.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// response is the stable JSON envelope for `flowctl run --json`, mirroring
// the teacher's JSONResponse{@version, command, success} shape.
type response struct {
	Version string                `json:"@version"`
	Command string                `json:"command"`
	Success bool                  `json:"success"`
	RunID   string                `json:"run_id"`
	Steps   map[string]stepResult `json:"steps"`
}

type stepResult struct {
	State       runstate.StepStatus `json:"state"`
	ErrorReason string              `json:"error_reason,omitempty"`
	Outputs     map[string]any      `json:"outputs,omitempty"`
}

// Write renders rs in the given format to w. command names the CLI
// subcommand that produced the run, for the JSON envelope's "command"
// field. It returns whether the run should be considered successful
// (no step failed), for the caller to decide the process exit code.
func Write(w io.Writer, format Format, command string, rs *runstate.RunState) (bool, error) {
	snap := rs.Snapshot()
	flows := rs.FlowsSnapshot()

	success := true
	names := make([]string, 0, len(snap))
	for name, st := range snap {
		names = append(names, name)
		if st.Status == runstate.StepFailed {
			success = false
		}
	}
	sort.Strings(names)

	switch format {
	case FormatJSON:
		resp := response{
			Version: "1.0",
			Command: command,
			Success: success,
			RunID:   rs.ID,
			Steps:   make(map[string]stepResult, len(snap)),
		}
		for _, name := range names {
			st := snap[name]
			sr := stepResult{State: st.Status, ErrorReason: st.ErrorReason}
			if out, ok := flows[name].(map[string]any); ok {
				sr.Outputs = out
			}
			resp.Steps[name] = sr
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return success, err
		}
		return success, nil

	case FormatText:
		for _, name := range names {
			st := snap[name]
			if st.Status == runstate.StepFailed {
				if _, err := fmt.Fprintf(w, "%s: %s (%s)\n", name, st.Status, st.ErrorReason); err != nil {
					return success, err
				}
				continue
			}
			if _, err := fmt.Fprintf(w, "%s: %s\n", name, st.Status); err != nil {
				return success, err
			}
		}
		return success, nil

	default:
		return false, fmt.Errorf("cliformat: unknown format %q", format)
	}
}
