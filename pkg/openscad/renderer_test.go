package openscad

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestIsSource(t *testing.T) {
	tests := map[string]bool{
		"box.scad":     true,
		"dir/BOX.SCAD": true,
		"box.stl":      false,
		"scad":         false,
		"box.scad.bak": false,
	}
	for path, expected := range tests {
		if got := IsSource(path); got != expected {
			t.Errorf("IsSource(%q) failed: expected %v, got %v", path, expected, got)
		}
	}
}

func TestResolveDependencies(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "main.scad"), `use <lib/shapes.scad>
// include <ignored.scad>
include <./common.scad>
cube(1);
`)
	writeSource(t, filepath.Join(dir, "lib", "shapes.scad"), "include <../common.scad>\n")
	writeSource(t, filepath.Join(dir, "common.scad"), "use <main.scad>\n")

	r := NewRenderer("", dir, nil)
	deps, err := r.ResolveDependencies("main.scad")
	if err != nil {
		t.Fatalf("ResolveDependencies failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "main.scad"),
		filepath.Join(dir, "lib", "shapes.scad"),
		filepath.Join(dir, "common.scad"),
	}
	if len(deps) != len(expected) {
		t.Fatalf("ResolveDependencies failed: expected %v, got %v", expected, deps)
	}
	for i := range expected {
		if deps[i] != expected[i] {
			t.Errorf("dependency %d failed: expected %s, got %s", i, expected[i], deps[i])
		}
	}
}

func TestResolveDependenciesMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "main.scad"), "use <missing.scad>\n")

	r := NewRenderer("", dir, nil)
	if _, err := r.ResolveDependencies("main.scad"); err == nil {
		t.Error("expected error for missing dependency")
	}
}

func TestRenderWithoutBinary(t *testing.T) {
	r := NewRenderer("openscad-not-installed-here", t.TempDir(), nil)
	_, _, err := r.RenderTemp(context.Background(), "box.scad")
	if err != ErrNotInstalled {
		t.Errorf("RenderTemp failed: expected %v, got %v", ErrNotInstalled, err)
	}
}
