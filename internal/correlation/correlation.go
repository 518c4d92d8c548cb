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

// Package correlation carries a per-request identifier through a
// context.Context so outbound HTTP calls a connector makes can be tied
// back to the request that triggered them, independent of the OTel spans
// internal/telemetry emits for steps.
package correlation

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

// ID is an RFC 4122 UUID identifying one outbound call chain.
type ID string

// HeaderName is the HTTP header outbound requests carry their ID in.
const HeaderName = "X-Correlation-ID"

type contextKey struct{}

var key = contextKey{}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// New generates a fresh ID.
func New() ID {
	return ID(uuid.New().String())
}

// String returns the ID's string form.
func (id ID) String() string { return string(id) }

// IsValid reports whether id is a well-formed UUID.
func (id ID) IsValid() bool { return uuidPattern.MatchString(string(id)) }

// ToContext attaches id to ctx.
func ToContext(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, key, id)
}

// FromContextOrEmpty returns the ID attached to ctx, or "" if none.
func FromContextOrEmpty(ctx context.Context) ID {
	if id, ok := ctx.Value(key).(ID); ok {
		return id
	}
	return ""
}
