package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/flow"
)

// maxSleepDuration bounds how long a single call may block, so a
// misconfigured flow can't wedge a worker indefinitely.
const maxSleepDuration = 5 * time.Minute

// sleepConnector pauses for a fixed duration and returns it, letting test
// flows exercise parallel scheduling without shelling out to a process
// connector for it.
type sleepConnector struct {
	duration time.Duration
}

// NewSleep constructs the "sleep" builtin. configuration.duration is a Go
// duration string (e.g. "200ms", "2s"); configuration.milliseconds is
// accepted as an integer alternative.
func NewSleep(configuration map[string]any) (connector.Connector, error) {
	var d time.Duration
	if s, ok := configuration["duration"].(string); ok {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d = parsed
	} else if ms, ok := configuration["milliseconds"]; ok {
		switch v := ms.(type) {
		case int:
			d = time.Duration(v) * time.Millisecond
		case float64:
			d = time.Duration(v) * time.Millisecond
		default:
			return nil, fmt.Errorf("milliseconds must be a number")
		}
	} else {
		return nil, fmt.Errorf("sleep connector requires 'duration' or 'milliseconds'")
	}
	if d <= 0 {
		return nil, fmt.Errorf("sleep duration must be positive")
	}
	if d > maxSleepDuration {
		return nil, fmt.Errorf("sleep duration %v exceeds maximum allowed %v", d, maxSleepDuration)
	}
	return &sleepConnector{duration: d}, nil
}

func (c *sleepConnector) Call(ctx context.Context, input any) (flow.ConnectorResult, error) {
	select {
	case <-time.After(c.duration):
		return result(true, 0, map[string]any{
			"slept_ms": c.duration.Milliseconds(),
			"input":    input,
		}, nil, nil), nil
	case <-ctx.Done():
		return result(false, 0, nil, []string{"sleep cancelled"}, map[string]any{"cause": ctx.Err().Error()}), nil
	}
}
