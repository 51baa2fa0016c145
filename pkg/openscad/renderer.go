// Package openscad renders OpenSCAD sources to STL so they can be converted
// like any other mesh.
package openscad

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotInstalled is returned when the openscad executable cannot be found
var ErrNotInstalled = errors.New("openscad not found in PATH, install it from https://openscad.org/")

// DefaultBinary is the executable looked up in PATH
const DefaultBinary = "openscad"

// Matches use <file.scad> and include <file.scad>
var dependencyPattern = regexp.MustCompile(`^\s*(?:use|include)\s*<([^>]+)>`)

// IsSource reports whether path names an OpenSCAD source file
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".scad")
}

// Renderer renders OpenSCAD files to STL
type Renderer struct {
	binary  string
	workDir string
	logger  *slog.Logger
}

// NewRenderer creates a renderer resolving relative paths against workDir.
// An empty binary selects DefaultBinary.
func NewRenderer(binary, workDir string, logger *slog.Logger) *Renderer {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		binary:  binary,
		workDir: workDir,
		logger:  logger,
	}
}

func (r *Renderer) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.workDir, path)
}

// RenderToSTL renders scadFile into outputFile. The render is killed when ctx
// is done.
func (r *Renderer) RenderToSTL(ctx context.Context, scadFile, outputFile string) error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return ErrNotInstalled
	}

	cmd := exec.CommandContext(ctx, r.binary, "-o", outputFile, r.abs(scadFile))
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("rendering openscad source", "source", scadFile, "output", outputFile)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("render %s: %w", scadFile, ctx.Err())
		}
		var msg strings.Builder
		if stderr.Len() > 0 {
			msg.WriteString("\nstderr: ")
			msg.WriteString(strings.TrimSpace(stderr.String()))
		}
		if stdout.Len() > 0 {
			msg.WriteString("\nstdout: ")
			msg.WriteString(strings.TrimSpace(stdout.String()))
		}
		return fmt.Errorf("render %s: %w%s", scadFile, err, msg.String())
	}
	return nil
}

// RenderTemp renders scadFile into a fresh temporary STL file. The returned
// cleanup removes it.
func (r *Renderer) RenderTemp(ctx context.Context, scadFile string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "stl2step-scad-*")
	if err != nil {
		return "", nil, fmt.Errorf("create render directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	stem := strings.TrimSuffix(filepath.Base(scadFile), filepath.Ext(scadFile))
	out := filepath.Join(dir, stem+".stl")
	if err := r.RenderToSTL(ctx, scadFile, out); err != nil {
		cleanup()
		return "", nil, err
	}
	return out, cleanup, nil
}

// ResolveDependencies returns scadFile followed by every file it uses or
// includes, transitively, as absolute paths
func (r *Renderer) ResolveDependencies(scadFile string) ([]string, error) {
	visited := make(map[string]bool)
	var deps []string

	var walk func(string) error
	walk = func(file string) error {
		if visited[file] {
			return nil
		}
		visited[file] = true
		deps = append(deps, file)

		direct, err := r.parseDependencies(file)
		if err != nil {
			return err
		}
		for _, dep := range direct {
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}

	start, err := filepath.Abs(r.abs(scadFile))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", scadFile, err)
	}
	if err := walk(start); err != nil {
		return nil, err
	}
	return deps, nil
}

// parseDependencies lists the use/include targets of a single file
func (r *Renderer) parseDependencies(scadFile string) ([]string, error) {
	file, err := os.Open(scadFile)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", scadFile, err)
	}
	defer file.Close()

	var deps []string
	dir := filepath.Dir(scadFile)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		if m := dependencyPattern.FindStringSubmatch(line); m != nil {
			deps = append(deps, r.resolveDepPath(m[1], dir))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", scadFile, err)
	}
	return deps, nil
}

// resolveDepPath resolves a dependency relative to the including file, then
// to the work directory
func (r *Renderer) resolveDepPath(dep, currentDir string) string {
	if filepath.IsAbs(dep) {
		return filepath.Clean(dep)
	}
	local := filepath.Join(currentDir, dep)
	if strings.HasPrefix(dep, "./") || strings.HasPrefix(dep, "../") {
		return filepath.Clean(local)
	}
	if _, err := os.Stat(local); err == nil {
		return filepath.Clean(local)
	}
	abs, err := filepath.Abs(filepath.Join(r.workDir, dep))
	if err != nil {
		return filepath.Clean(local)
	}
	return abs
}
