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

package errors

import (
	"fmt"
	"strings"
)

// ConfigError represents a malformed document, a missing required field, an
// unknown connector type, or an unresolvable base/source reference.
type ConfigError struct {
	// Key names the configuration path with the problem, e.g. "sources.db".
	Key string

	Reason     string
	Suggestion string
	Cause      error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationIssue is a single problem surfaced by the dependency analyzer.
type ValidationIssue struct {
	Step    string
	Message string
}

// ValidationError aggregates every dependency problem found in one pass:
// missing depends_on targets, missing flows.X references, duplicate step
// names, and cycles. Callers report all Issues, not just the first.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	lines := make([]string, 0, len(e.Issues)+1)
	lines = append(lines, fmt.Sprintf("validation failed with %d issue(s):", len(e.Issues)))
	for _, issue := range e.Issues {
		if issue.Step != "" {
			lines = append(lines, fmt.Sprintf("  - %s: %s", issue.Step, issue.Message))
		} else {
			lines = append(lines, "  - "+issue.Message)
		}
	}
	return strings.Join(lines, "\n")
}

// Add appends an issue to the aggregate.
func (e *ValidationError) Add(step, message string) {
	e.Issues = append(e.Issues, ValidationIssue{Step: step, Message: message})
}

// HasIssues reports whether any issue has been recorded.
func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// TemplateError represents an unresolved identifier, a missing attribute, or
// any other evaluation failure while rendering a {{ }} expression in strict
// mode.
type TemplateError struct {
	// Path names the offending reference, e.g. "flows.x.missing".
	Path    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("template error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("template error: %s", e.Message)
}

func (e *TemplateError) Unwrap() error { return e.Cause }

// OutputError represents a JSON-path evaluation failure against a
// connector's result data.
type OutputError struct {
	Step    string
	Output  string
	Message string
	Cause   error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output error in step %q (output %q): %s", e.Step, e.Output, e.Message)
}

func (e *OutputError) Unwrap() error { return e.Cause }

// ConnectorCallError wraps an error returned by, or a panic recovered from,
// a connector's Call method, as distinct from a structured failed
// ConnectorResult. The scheduler treats it identically to a non-success
// result: the step fails and nothing propagates past the task boundary.
type ConnectorCallError struct {
	Step          string
	ConnectorType string
	Cause         error
}

func (e *ConnectorCallError) Error() string {
	return fmt.Sprintf("connector %q raised in step %q: %v", e.ConnectorType, e.Step, e.Cause)
}

func (e *ConnectorCallError) Unwrap() error { return e.Cause }

// StepFailure is the logical "this step did not succeed" condition. It
// never crosses the scheduler boundary as a panic or return error; it
// exists so a caller inspecting StepState after a run can wrap the
// recorded message in a typed error value.
type StepFailure struct {
	Step    string
	Message string
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %q failed: %s", e.Step, e.Message)
}
