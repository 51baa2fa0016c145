// Package step writes cleaned shells as ISO 10303-21 (STEP AP214) files.
package step

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"

	"github.com/philipparndt/stl2step/pkg/geometry"
	"github.com/philipparndt/stl2step/pkg/mesh"
)

const schema = "AUTOMOTIVE_DESIGN { 1 0 10303 214 1 1 1 1 }"

var (
	// ErrEmptyShell is returned for a shell without faces
	ErrEmptyShell = errors.New("shell has no faces")
	// ErrInvalidLoop is returned for a face loop with fewer than three vertices
	ErrInvalidLoop = errors.New("face loop needs at least three vertices")
)

// Unit is the length unit written to the file
type Unit string

const (
	Millimetre Unit = "mm"
	Centimetre Unit = "cm"
	Metre      Unit = "m"
)

// prefix returns the SI prefix enumeration for the unit
func (u Unit) prefix() (string, error) {
	switch u {
	case Millimetre, "":
		return ".MILLI.", nil
	case Centimetre:
		return ".CENTI.", nil
	case Metre:
		return "$", nil
	}
	return "", errors.Errorf("unsupported unit %q", string(u))
}

// Options controls the product data and presentation written with the shell
type Options struct {
	// ProductName names the product and the solid; defaults to the shell name
	ProductName  string
	Author       string
	Organization string
	// Originator is recorded as the preprocessor and originating system
	Originator string
	// Timestamp goes into the header; the zero time is written as the epoch
	Timestamp   time.Time
	Unit        Unit
	Uncertainty float64
	// Color is an optional surface colour, e.g. "#c0c0c0" or "rgb(192,192,192)"
	Color string
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Originator:  "stl2step",
		Unit:        Millimetre,
		Uncertainty: 1e-6,
	}
}

// entityWriter numbers and writes DATA section instances
type entityWriter struct {
	w    *bufio.Writer
	next int
}

func (e *entityWriter) add(format string, args ...any) int {
	id := e.next
	e.next++
	fmt.Fprintf(e.w, "#%d = ", id)
	fmt.Fprintf(e.w, format, args...)
	e.w.WriteString(";\n")
	return id
}

// Write serializes the shell. A closed shell becomes a manifold solid B-rep,
// an open one a shell based surface model.
func Write(out io.Writer, shell *mesh.Shell, opts Options) error {
	if err := validate(shell); err != nil {
		return err
	}
	unitPrefix, err := opts.Unit.prefix()
	if err != nil {
		return err
	}
	var colour *colors.RGBColor
	if opts.Color != "" {
		c, err := colors.Parse(opts.Color)
		if err != nil {
			return errors.Wrapf(err, "parse colour %q", opts.Color)
		}
		colour = c.ToRGB()
	}

	name := opts.ProductName
	if name == "" {
		name = shell.Name
	}
	uncertainty := opts.Uncertainty
	if uncertainty <= 0 {
		uncertainty = DefaultOptions().Uncertainty
	}

	w := bufio.NewWriter(out)
	writeHeader(w, name, opts)
	w.WriteString("DATA;\n")

	e := &entityWriter{w: w, next: 1}

	// Product structure
	appContext := e.add("APPLICATION_CONTEXT('core data for automotive mechanical design processes')")
	e.add("APPLICATION_PROTOCOL_DEFINITION('international standard','automotive_design',2000,%s)", ref(appContext))
	productContext := e.add("PRODUCT_CONTEXT('',%s,'mechanical')", ref(appContext))
	product := e.add("PRODUCT(%s,%s,'',%s)", formatString(name), formatString(name), refList(productContext))
	e.add("PRODUCT_RELATED_PRODUCT_CATEGORY('part',$,%s)", refList(product))
	formation := e.add("PRODUCT_DEFINITION_FORMATION('','',%s)", ref(product))
	definitionContext := e.add("PRODUCT_DEFINITION_CONTEXT('part definition',%s,'design')", ref(appContext))
	definition := e.add("PRODUCT_DEFINITION('design','',%s,%s)", ref(formation), ref(definitionContext))
	definitionShape := e.add("PRODUCT_DEFINITION_SHAPE('','',%s)", ref(definition))

	// Units and geometric context
	lengthUnit := e.add("( LENGTH_UNIT() NAMED_UNIT(*) SI_UNIT(%s,.METRE.) )", unitPrefix)
	angleUnit := e.add("( NAMED_UNIT(*) PLANE_ANGLE_UNIT() SI_UNIT($,.RADIAN.) )")
	solidAngleUnit := e.add("( NAMED_UNIT(*) SI_UNIT($,.STERADIAN.) SOLID_ANGLE_UNIT() )")
	uncertaintyMeasure := e.add("UNCERTAINTY_MEASURE_WITH_UNIT(LENGTH_MEASURE(%s),%s,'distance_accuracy_value','confusion accuracy')",
		formatReal(uncertainty), ref(lengthUnit))
	context := e.add("( GEOMETRIC_REPRESENTATION_CONTEXT(3) GLOBAL_UNCERTAINTY_ASSIGNED_CONTEXT(%s) GLOBAL_UNIT_ASSIGNED_CONTEXT(%s) REPRESENTATION_CONTEXT('Context #1','3D Context with UNIT and UNCERTAINTY') )",
		refList(uncertaintyMeasure), refList(lengthUnit, angleUnit, solidAngleUnit))

	origin := e.add("CARTESIAN_POINT('',%s)", formatTriple(geometry.Vector3{}))
	zAxis := e.add("DIRECTION('',%s)", formatTriple(geometry.NewVector3(0, 0, 1)))
	xAxis := e.add("DIRECTION('',%s)", formatTriple(geometry.NewVector3(1, 0, 0)))
	placement := e.add("AXIS2_PLACEMENT_3D('',%s,%s,%s)", ref(origin), ref(zAxis), ref(xAxis))

	// Topology, bottom up
	points := make([]int, len(shell.Vertices))
	vertices := make([]int, len(shell.Vertices))
	for i, v := range shell.Vertices {
		points[i] = e.add("CARTESIAN_POINT('',%s)", formatTriple(v))
		vertices[i] = e.add("VERTEX_POINT('',%s)", ref(points[i]))
	}

	edgeCurves := make(map[mesh.Edge]int)
	for _, edge := range shell.Edges() {
		a, b := shell.Vertices[edge.A], shell.Vertices[edge.B]
		delta := b.Sub(a)
		dir := e.add("DIRECTION('',%s)", formatTriple(delta.Normalize()))
		vec := e.add("VECTOR('',%s,%s)", ref(dir), formatReal(delta.Length()))
		line := e.add("LINE('',%s,%s)", ref(points[edge.A]), ref(vec))
		edgeCurves[edge] = e.add("EDGE_CURVE('',%s,%s,%s,.T.)", ref(vertices[edge.A]), ref(vertices[edge.B]), ref(line))
	}

	faces := make([]int, 0, len(shell.Faces))
	for _, f := range shell.Faces {
		bounds := make([]int, 0, len(f.Loops))
		for li, loop := range f.Loops {
			oriented := make([]int, 0, len(loop))
			for i, a := range loop {
				b := loop[(i+1)%len(loop)]
				edge := mesh.Edge{A: min(a, b), B: max(a, b)}
				oriented = append(oriented, e.add("ORIENTED_EDGE('',*,*,%s,%s)", ref(edgeCurves[edge]), boolean(a == edge.A)))
			}
			edgeLoop := e.add("EDGE_LOOP('',%s)", refList(oriented...))
			if li == 0 {
				bounds = append(bounds, e.add("FACE_OUTER_BOUND('',%s,.T.)", ref(edgeLoop)))
			} else {
				bounds = append(bounds, e.add("FACE_BOUND('',%s,.T.)", ref(edgeLoop)))
			}
		}

		outer := f.Loops[0]
		normal := f.Normal.Normalize()
		refDir := referenceDirection(normal, shell.Vertices[outer[1]].Sub(shell.Vertices[outer[0]]))
		planeOrigin := e.add("CARTESIAN_POINT('',%s)", formatTriple(shell.Vertices[outer[0]]))
		planeAxis := e.add("DIRECTION('',%s)", formatTriple(normal))
		planeRef := e.add("DIRECTION('',%s)", formatTriple(refDir))
		planePlacement := e.add("AXIS2_PLACEMENT_3D('',%s,%s,%s)", ref(planeOrigin), ref(planeAxis), ref(planeRef))
		plane := e.add("PLANE('',%s)", ref(planePlacement))
		faces = append(faces, e.add("ADVANCED_FACE('',%s,%s,.T.)", refList(bounds...), ref(plane)))
	}

	var item, representation int
	if shell.Closed {
		closedShell := e.add("CLOSED_SHELL('',%s)", refList(faces...))
		item = e.add("MANIFOLD_SOLID_BREP(%s,%s)", formatString(name), ref(closedShell))
		representation = e.add("ADVANCED_BREP_SHAPE_REPRESENTATION(%s,%s,%s)", formatString(name), refList(placement, item), ref(context))
	} else {
		openShell := e.add("OPEN_SHELL('',%s)", refList(faces...))
		item = e.add("SHELL_BASED_SURFACE_MODEL(%s,%s)", formatString(name), refList(openShell))
		representation = e.add("MANIFOLD_SURFACE_SHAPE_REPRESENTATION(%s,%s,%s)", formatString(name), refList(placement, item), ref(context))
	}
	e.add("SHAPE_DEFINITION_REPRESENTATION(%s,%s)", ref(definitionShape), ref(representation))

	if colour != nil {
		rgb := e.add("COLOUR_RGB('',%s,%s,%s)",
			formatReal(channel(colour.R)), formatReal(channel(colour.G)), formatReal(channel(colour.B)))
		fillColour := e.add("FILL_AREA_STYLE_COLOUR('',%s)", ref(rgb))
		fill := e.add("FILL_AREA_STYLE('',%s)", refList(fillColour))
		fillArea := e.add("SURFACE_STYLE_FILL_AREA(%s)", ref(fill))
		side := e.add("SURFACE_SIDE_STYLE('',%s)", refList(fillArea))
		usage := e.add("SURFACE_STYLE_USAGE(.BOTH.,%s)", ref(side))
		assignment := e.add("PRESENTATION_STYLE_ASSIGNMENT(%s)", refList(usage))
		styled := e.add("STYLED_ITEM('color',%s,%s)", refList(assignment), ref(item))
		e.add("MECHANICAL_DESIGN_GEOMETRIC_PRESENTATION_REPRESENTATION('',%s,%s)", refList(styled), ref(context))
	}

	w.WriteString("ENDSEC;\n")
	w.WriteString("END-ISO-10303-21;\n")
	return errors.Wrap(w.Flush(), "write step data")
}

func writeHeader(w *bufio.Writer, name string, opts Options) {
	originator := opts.Originator
	if originator == "" {
		originator = DefaultOptions().Originator
	}
	timestamp := opts.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Unix(0, 0)
	}

	w.WriteString("ISO-10303-21;\n")
	w.WriteString("HEADER;\n")
	fmt.Fprintf(w, "FILE_DESCRIPTION((%s),'2;1');\n", formatString(name))
	fmt.Fprintf(w, "FILE_NAME(%s,%s,(%s),(%s),%s,%s,'');\n",
		formatString(name),
		formatString(timestamp.UTC().Format("2006-01-02T15:04:05")),
		formatString(opts.Author),
		formatString(opts.Organization),
		formatString(originator),
		formatString(originator))
	fmt.Fprintf(w, "FILE_SCHEMA((%s));\n", formatString(schema))
	w.WriteString("ENDSEC;\n")
}

func validate(shell *mesh.Shell) error {
	if shell == nil || len(shell.Faces) == 0 {
		return ErrEmptyShell
	}
	for fi, f := range shell.Faces {
		if len(f.Loops) == 0 {
			return errors.Wrapf(ErrInvalidLoop, "face %d", fi)
		}
		for _, loop := range f.Loops {
			if len(loop) < 3 {
				return errors.Wrapf(ErrInvalidLoop, "face %d", fi)
			}
			for _, vi := range loop {
				if vi < 0 || vi >= len(shell.Vertices) {
					return errors.Errorf("face %d references vertex %d of %d", fi, vi, len(shell.Vertices))
				}
			}
		}
	}
	return nil
}

// referenceDirection returns a unit vector perpendicular to normal, aligned
// with hint when possible
func referenceDirection(normal, hint geometry.Vector3) geometry.Vector3 {
	d := hint.Reject(normal)
	if d.Length() > 1e-12 {
		return d.Normalize()
	}
	// Any axis not parallel to the normal will do
	axis := geometry.NewVector3(1, 0, 0)
	if math.Abs(normal.X) > 0.9 {
		axis = geometry.NewVector3(0, 1, 0)
	}
	return axis.Reject(normal).Normalize()
}

func channel(v uint8) float64 {
	return math.Round(float64(v)/255*1e4) / 1e4
}

