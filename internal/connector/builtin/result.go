// Package builtin provides the connector types available without any
// external registration: env, process, sleep, http, transform, and glob.
package builtin

import (
	"strings"

	"github.com/flowctl/flowctl/internal/flow"
)

var defaultRedactKeys = []string{"password", "secret", "token", "bind_password", "pw"}

// sanitizeMeta redacts any meta value whose key looks credential-shaped,
// so a connector result that echoes its own configuration back (e.g. a
// failed HTTP call's request headers) doesn't leak secrets into run state
// or the status API.
func sanitizeMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		lk := strings.ToLower(k)
		redacted := false
		for _, r := range defaultRedactKeys {
			if strings.Contains(lk, r) {
				redacted = true
				break
			}
		}
		if redacted {
			out[k] = "<redacted>"
		} else {
			out[k] = v
		}
	}
	return out
}

func result(success bool, code int, data any, notes []string, meta map[string]any) flow.ConnectorResult {
	return flow.ConnectorResult{
		Status: flow.Status{Success: success, Code: code, Notes: notes},
		Data:   data,
		Meta:   sanitizeMeta(meta),
	}
}

func errorResult(err error) flow.ConnectorResult {
	return flow.ConnectorResult{
		Status: flow.Status{Success: false, Notes: []string{err.Error()}},
		Meta:   map[string]any{"exception": err.Error()},
	}
}
