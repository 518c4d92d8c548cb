package runstate

import "testing"

func TestRunState_Lifecycle(t *testing.T) {
	r := New("run-1", []string{"a", "b"})

	if r.AllTerminal() {
		t.Fatal("expected not all terminal at start")
	}

	r.MarkRunning("a")
	if running := r.RunningSteps(); len(running) != 1 || running[0] != "a" {
		t.Fatalf("got %v", running)
	}

	r.MarkSuccess("a", map[string]any{"v": 1})
	flows := r.FlowsSnapshot()
	if flows["a"].(map[string]any)["v"] != 1 {
		t.Fatalf("got %#v", flows)
	}

	r.MarkFailed("b", "boom", []string{"boom"})
	if !r.ErrorHasOccurred() {
		t.Fatal("expected ErrorHasOccurred() to be true")
	}
	if !r.AllTerminal() {
		t.Fatal("expected all terminal after both steps finish")
	}

	snap := r.Snapshot()
	if snap["a"].Status != StepSuccess || snap["b"].Status != StepFailed {
		t.Fatalf("got %#v", snap)
	}
}

func TestRunState_SnapshotDoesNotAliasOutputs(t *testing.T) {
	r := New("run-1", []string{"a"})
	r.MarkSuccess("a", map[string]any{"v": 1})

	snap := r.Snapshot()
	snap["a"].Outputs["v"] = 999

	state, _ := r.Get("a")
	if state.Outputs["v"] != 1 {
		t.Fatalf("mutation through snapshot leaked into internal state: %#v", state.Outputs)
	}
}

func TestRunState_MarkSkipped(t *testing.T) {
	r := New("run-1", []string{"a"})
	r.MarkSkipped("a", `parent "p" failed`)
	state, _ := r.Get("a")
	if state.Status != StepSkipped {
		t.Fatalf("got %v", state.Status)
	}
}

func TestRunState_MergeSourceOutputsOverwritesNotDeepMerges(t *testing.T) {
	r := New("run-1", []string{"a"})
	r.SeedSources(map[string]map[string]any{
		"db": {"host": "localhost", "nested": map[string]any{"x": 1}},
	})

	r.MergeSourceOutputs("db", map[string]any{"host": "10.0.0.1", "nested": map[string]any{"y": 2}})

	sources := r.SourcesSnapshot()
	db := sources["db"].(map[string]any)
	if db["host"] != "10.0.0.1" {
		t.Errorf("got host %#v", db["host"])
	}
	nested := db["nested"].(map[string]any)
	if _, ok := nested["x"]; ok {
		t.Errorf("expected overwrite to replace nested entirely, got %#v", nested)
	}
	if nested["y"] != 2 {
		t.Errorf("got nested %#v", nested)
	}
}

func TestRunState_SourcesSnapshotDoesNotAliasInternalState(t *testing.T) {
	r := New("run-1", []string{"a"})
	r.SeedSources(map[string]map[string]any{"db": {"host": "localhost"}})

	snap := r.SourcesSnapshot()
	snap["db"].(map[string]any)["host"] = "mutated"

	snap2 := r.SourcesSnapshot()
	if snap2["db"].(map[string]any)["host"] != "localhost" {
		t.Fatalf("mutation through snapshot leaked into internal state: %#v", snap2["db"])
	}
}
