// Package convert runs the STL to STEP pipeline: load, keep the first solid,
// repair it and write the B-rep.
package convert

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/philipparndt/stl2step/internal/config"
	"github.com/philipparndt/stl2step/pkg/analysis"
	"github.com/philipparndt/stl2step/pkg/mesh"
	"github.com/philipparndt/stl2step/pkg/openscad"
	"github.com/philipparndt/stl2step/pkg/step"
	"github.com/philipparndt/stl2step/version"
)

var (
	// ErrUnsupportedInput is returned for files that are neither STL nor
	// OpenSCAD sources
	ErrUnsupportedInput = errors.New("unsupported input, expected .stl or .scad")
	// ErrInputTooLarge is returned when an input exceeds convert.max_input_size
	ErrInputTooLarge = errors.New("input file too large")
)

// Converter converts mesh files to STEP according to a configuration
type Converter struct {
	cfg      *config.Config
	logger   *slog.Logger
	renderer *openscad.Renderer
}

// New creates a converter. Relative OpenSCAD includes are resolved against
// the working directory.
func New(cfg *config.Config, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Converter{
		cfg:      cfg,
		logger:   logger,
		renderer: openscad.NewRenderer("", wd, logger),
	}
}

// OutputPath returns the STEP file written for input: its base name with the
// extension replaced by .step, inside dir
func OutputPath(input, dir string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+".step")
}

// Convert converts a single input and returns the written path. Nothing is
// written when any step fails.
func (c *Converter) Convert(ctx context.Context, input string) (string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", input)
	}
	if info.IsDir() {
		return "", errors.Errorf("%s is a directory", input)
	}
	if err := c.checkInput(input, info.Size()); err != nil {
		return "", err
	}
	logger := c.logger.With("input", input)

	solids, err := c.Load(ctx, input)
	if err != nil {
		return "", err
	}
	if len(solids) > 1 {
		ignored := make([]string, 0, len(solids)-1)
		for _, s := range solids[1:] {
			ignored = append(ignored, s.Name)
		}
		logger.Debug("exporting first solid only", "solids", len(solids), "ignored", ignored)
	}

	solid := solids[0]
	shell, report, err := mesh.Clean(solid, CleanOptions(c.cfg))
	if err != nil {
		return "", errors.Wrapf(err, "clean %s", input)
	}
	logger.Info("cleaned mesh",
		"triangles", report.Triangles,
		"faces", report.Faces,
		"size", analysis.FormatVector(shell.BoundingBox().Size()),
		"welded", report.WeldedVertices,
		"flipped", report.FlippedTriangles,
		"dropped", report.DegenerateTriangles+report.DuplicateTriangles)
	if !report.Closed {
		logger.Warn("mesh is not closed, exporting an open shell",
			"boundary_edges", report.BoundaryEdges,
			"non_manifold_edges", report.NonManifoldEdges,
			"orientation_conflicts", report.OrientationConflicts)
	}

	opts, err := StepOptions(c.cfg, input, info.ModTime())
	if err != nil {
		return "", err
	}

	dir := c.cfg.Convert.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create output directory %s", dir)
	}
	output := OutputPath(input, dir)
	if err := step.WriteFile(ctx, output, shell, opts); err != nil {
		return "", errors.Wrapf(err, "write %s", output)
	}

	if written, err := os.Stat(output); err == nil {
		logger.Info("wrote step file", "output", output, "size", humanize.Bytes(uint64(written.Size())))
	}
	return output, nil
}

// checkInput rejects inputs by extension and size before anything is parsed
func (c *Converter) checkInput(input string, size int64) error {
	ext := strings.ToLower(filepath.Ext(input))
	if ext != ".stl" && !openscad.IsSource(input) {
		return errors.Wrap(ErrUnsupportedInput, input)
	}
	limit, err := c.cfg.MaxInputBytes()
	if err != nil {
		return err
	}
	if limit > 0 && uint64(size) > limit {
		return errors.Wrapf(ErrInputTooLarge, "%s is %s, limit %s",
			input, humanize.IBytes(uint64(size)), humanize.IBytes(limit))
	}
	return nil
}

// Load reads the solids of input. OpenSCAD sources are rendered to a
// temporary STL first.
func (c *Converter) Load(ctx context.Context, input string) ([]*mesh.Solid, error) {
	meshPath := input
	if openscad.IsSource(input) {
		renderCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Convert.OpenSCADTimeout)*time.Second)
		defer cancel()
		rendered, cleanup, err := c.renderer.RenderTemp(renderCtx, input)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", input)
		}
		defer cleanup()
		meshPath = rendered
	}

	solids, err := mesh.Read(meshPath, mesh.ReadOptions{
		SplitComponents: c.cfg.Convert.SplitComponents,
		WeldTolerance:   c.cfg.Clean.WeldTolerance,
		MinArea:         c.cfg.Clean.MinArea,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", input)
	}
	return solids, nil
}

// Dependencies lists the files whose change affects the conversion of input:
// the input itself and, for OpenSCAD sources, everything it uses or includes
func (c *Converter) Dependencies(input string) ([]string, error) {
	if !openscad.IsSource(input) {
		return []string{input}, nil
	}
	deps, err := c.renderer.ResolveDependencies(input)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve dependencies of %s", input)
	}
	return deps, nil
}

// ConvertAll converts inputs with at most Jobs conversions running at once.
// The first failure cancels the remaining conversions. Outputs are returned in
// input order.
func (c *Converter) ConvertAll(ctx context.Context, inputs []string) ([]string, error) {
	outputs := make([]string, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.Convert.Jobs, 1))

	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := c.Convert(ctx, input)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// CleanOptions maps the [clean] section onto mesh repair options
func CleanOptions(cfg *config.Config) mesh.Options {
	return mesh.Options{
		WeldTolerance:    cfg.Clean.WeldTolerance,
		MinArea:          cfg.Clean.MinArea,
		FixOrientation:   cfg.Clean.FixOrientation,
		MergeCoplanar:    cfg.Clean.MergeCoplanar,
		AngularTolerance: cfg.Clean.AngularTolerance,
	}
}

// StepOptions maps the [step] section onto export options. The header time is
// the configured timestamp, else modTime, so reruns are byte-identical.
func StepOptions(cfg *config.Config, input string, modTime time.Time) (step.Options, error) {
	ts, err := cfg.HeaderTime()
	if err != nil {
		return step.Options{}, err
	}
	if ts.IsZero() {
		ts = modTime
	}

	name := cfg.Step.ProductName
	if name == "" {
		base := filepath.Base(input)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	uncertainty := cfg.Clean.WeldTolerance
	if uncertainty <= 0 {
		uncertainty = step.DefaultOptions().Uncertainty
	}

	return step.Options{
		ProductName:  name,
		Author:       cfg.Step.Author,
		Organization: cfg.Step.Organization,
		Originator:   version.Originator(),
		Timestamp:    ts,
		Unit:         step.Unit(cfg.Step.Unit),
		Uncertainty:  uncertainty,
		Color:        cfg.Step.Color,
	}, nil
}
