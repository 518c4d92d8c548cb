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
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding a free port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestServe_StatusEndpointReflectsAnInProgressRun(t *testing.T) {
	path := writeTemp(t, "flow.yaml", `
flow:
  - name: slow
    source: {type: sleep, configuration: {duration: "300ms"}}
`)
	addr := freePort(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"serve", "--addr", addr, path})

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	var body map[string]any
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/status")
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
					break
				}
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if body == nil {
		t.Fatal("never got a status response from the running server")
	}
	if _, ok := body["steps"].(map[string]any)["slow"]; !ok {
		t.Errorf("expected step %q in status response, got %#v", "slow", body)
	}

	if err := <-done; err != nil {
		t.Fatalf("unexpected error from serve: %v", err)
	}
}
