package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "box.stl")
	other := filepath.Join(dir, "other.stl")
	for _, p := range []string{path, other} {
		if err := os.WriteFile(p, []byte("solid a\nendsolid a\n"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	fw, err := NewFileWatcher(100*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	defer fw.Close()

	var calls atomic.Int32
	changed := make(chan string, 4)
	if err := fw.Watch([]string{path}, func(p string) {
		calls.Add(1)
		changed <- p
	}); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fw.Run(ctx)

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("solid b\nendsolid b\n"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := os.WriteFile(other, []byte("solid c\nendsolid c\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Errorf("callback path failed: expected %s, got %s", path, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("debounce failed: expected 1 call, got %d", n)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	fw, err := NewFileWatcher(time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	defer fw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fw.Run(ctx); err != context.Canceled {
		t.Errorf("Run failed: expected %v, got %v", context.Canceled, err)
	}
}

func TestWatchRunsEveryCallbackOfSharedFile(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "shapes.scad")
	if err := os.WriteFile(shared, []byte("module box() { cube(1); }\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	defer fw.Close()

	changed := make(chan string, 4)
	for _, input := range []string{"a.scad", "b.scad"} {
		if err := fw.Watch([]string{shared}, func(string) { changed <- input }); err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fw.Run(ctx)

	if err := os.WriteFile(shared, []byte("module box() { cube(2); }\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got := make(map[string]bool)
	for len(got) < 2 {
		select {
		case input := <-changed:
			got[input] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("callbacks failed: expected a.scad and b.scad, got %v", got)
		}
	}
}

func TestRemoveAllStopsCallbacks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "box.stl")
	if err := os.WriteFile(path, []byte("solid a\nendsolid a\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	fw, err := NewFileWatcher(20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	defer fw.Close()

	var removed atomic.Int32
	if err := fw.Watch([]string{path}, func(string) { removed.Add(1) }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if err := fw.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	changed := make(chan string, 4)
	if err := fw.Watch([]string{path}, func(p string) { changed <- p }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fw.Run(ctx)

	if err := os.WriteFile(path, []byte("solid b\nendsolid b\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported after watching again")
	}
	if n := removed.Load(); n != 0 {
		t.Errorf("RemoveAll failed: expected 0 calls of the removed callback, got %d", n)
	}
}
