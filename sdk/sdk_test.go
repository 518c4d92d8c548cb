package sdk

import (
	"context"
	"testing"

	"github.com/flowctl/flowctl/internal/runstate"
)

func TestNew_RejectsACycleBeforeRunning(t *testing.T) {
	doc := []byte(`
flow:
  - name: a
    source: {type: sleep, configuration: {duration: "1ms"}}
    depends_on: [b]
  - name: b
    source: {type: sleep, configuration: {duration: "1ms"}}
    depends_on: [a]
`)
	_, err := New([][]byte{doc})
	if err == nil {
		t.Fatal("expected a validation error for the cycle")
	}
}

func TestRun_SequentialStepsViaTemplate(t *testing.T) {
	doc := []byte(`
flow:
  - name: a
    source: {type: env, configuration: {vars: [FLOWCTL_SDK_TEST_VAR]}}
    output:
      - name: env
        kind: raw
  - name: b
    source: {type: env, configuration: {vars: []}}
    input: "{{ flows.a.env.FLOWCTL_SDK_TEST_VAR }}"
    depends_on: [a]
    output:
      - name: v
        kind: raw
`)
	t.Setenv("FLOWCTL_SDK_TEST_VAR", "hello")

	r, err := New([][]byte{doc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rs, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := rs.Snapshot()
	if snap["a"].Status != runstate.StepSuccess || snap["b"].Status != runstate.StepSuccess {
		t.Fatalf("got %#v", snap)
	}
}
