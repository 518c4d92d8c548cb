package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_EmitsOnConfigFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	if err := os.WriteFile(path, []byte("flow: []"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{path}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("flow: [{}]"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case changed := <-w.Changes():
		if changed != path {
			t.Errorf("got %q, want %q", changed, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a change event")
	}
}
