package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatch_ReparsesOnWrite(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "rqb.xml", `<rqbalance balance_level="1"/>`)

	a, err := New(context.Background(), Config{Inputs: []string{in}, WatchDebounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	out := &syncBuffer{}
	a.Stdout = out

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	if !waitFor(t, 5*time.Second, func() bool { return strings.Contains(out.String(), `balance_level: "1"`) }) {
		cancel()
		t.Fatalf("initial run not rendered: %q", out.String())
	}

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write unrelated: %v", err)
	}
	if err := os.WriteFile(in, []byte(`<rqbalance balance_level="5"/>`), 0o644); err != nil {
		t.Fatalf("rewrite input: %v", err)
	}
	if !waitFor(t, 5*time.Second, func() bool { return strings.Contains(out.String(), `balance_level: "5"`) }) {
		cancel()
		t.Fatalf("change not picked up: %q", out.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	a, err := New(context.Background(), Config{Inputs: []string{filepath.Join(t.TempDir(), "nope", "rqb.xml")}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Watch(context.Background()); err == nil {
		t.Fatal("expected error watching a missing directory")
	}
}
