package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/flow"
)

// processConnector shells out to a fixed command, per call appending the
// step's rendered input as a final argument or feeding it on stdin.
type processConnector struct {
	command []string
	passTo  string
	timeout time.Duration
}

// NewProcess constructs the "process" builtin. configuration.command may
// be a string (split on whitespace) or a list of argv entries.
// configuration.pass_to selects how a non-nil input is delivered: "arg"
// (default, appended as the final argument) or "stdin".
func NewProcess(configuration map[string]any) (connector.Connector, error) {
	cmd, err := normalizeCommand(configuration["command"])
	if err != nil {
		return nil, err
	}
	passTo, _ := configuration["pass_to"].(string)
	if passTo == "" {
		passTo = "arg"
	}
	var timeout time.Duration
	switch v := configuration["timeout"].(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", v, err)
		}
		timeout = d
	case int:
		timeout = time.Duration(v) * time.Second
	case float64:
		timeout = time.Duration(v * float64(time.Second))
	}
	return &processConnector{command: cmd, passTo: passTo, timeout: timeout}, nil
}

func normalizeCommand(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("process connector requires a non-empty 'command'")
		}
		return strings.Fields(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("process connector 'command' list entries must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("process connector requires 'command' in configuration")
	}
}

func (c *processConnector) Call(ctx context.Context, input any) (flow.ConnectorResult, error) {
	args := append([]string{}, c.command...)
	var stdin []byte
	if input != nil {
		if c.passTo == "stdin" {
			stdin = []byte(fmt.Sprintf("%v", input))
		} else {
			args = append(args, fmt.Sprintf("%v", input))
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return result(false, 0, nil, []string{"timeout"}, map[string]any{"timeout": true}), nil
	}

	returncode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		returncode = exitErr.ExitCode()
	} else if err != nil {
		return errorResult(err), nil
	}

	var data any
	if jsonErr := json.Unmarshal(stdout.Bytes(), &data); jsonErr != nil {
		data = stdout.String()
	}

	var notes []string
	if returncode != 0 {
		notes = []string{fmt.Sprintf("process exited with code %d", returncode)}
	}

	meta := map[string]any{"stderr": stderr.String(), "returncode": returncode}
	return result(returncode == 0, returncode, data, notes, meta), nil
}
