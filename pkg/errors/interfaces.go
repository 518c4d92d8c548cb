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

// Classified is implemented by every error kind in this package so callers
// can branch on the taxonomy from §7 without a type switch over every
// concrete type.
type Classified interface {
	error
	Kind() string
}

func (e *ConfigError) Kind() string         { return "config" }
func (e *ValidationError) Kind() string     { return "validation" }
func (e *TemplateError) Kind() string       { return "template" }
func (e *OutputError) Kind() string         { return "output" }
func (e *ConnectorCallError) Kind() string  { return "connector_call" }
func (e *StepFailure) Kind() string         { return "step_failure" }
