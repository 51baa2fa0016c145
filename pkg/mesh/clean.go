package mesh

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/philipparndt/stl2step/pkg/geometry"
)

// ErrEmptyMesh is returned when no triangle survives cleaning
var ErrEmptyMesh = errors.New("mesh has no valid triangles left after cleaning")

// Options controls the repair steps applied by Clean
type Options struct {
	// WeldTolerance is the distance below which vertices are merged. It is
	// also the distance a vertex may lie off a plane and still be coplanar.
	WeldTolerance float64
	// MinArea drops triangles whose area is at or below this value
	MinArea float64
	// FixOrientation makes the winding consistent and outward facing
	FixOrientation bool
	// MergeCoplanar joins adjacent coplanar triangles into polygonal faces
	MergeCoplanar bool
	// AngularTolerance is the largest angle in radians between the normals
	// of triangles merged into one face
	AngularTolerance float64
}

// DefaultOptions returns the repair settings used by the converter
func DefaultOptions() Options {
	return Options{
		WeldTolerance:    1e-6,
		MinArea:          1e-12,
		FixOrientation:   true,
		MergeCoplanar:    true,
		AngularTolerance: 1e-4,
	}
}

// Report summarizes what Clean changed
type Report struct {
	InputVertices        int     `json:"input_vertices" yaml:"input_vertices"`
	InputTriangles       int     `json:"input_triangles" yaml:"input_triangles"`
	WeldedVertices       int     `json:"welded_vertices" yaml:"welded_vertices"`
	DegenerateTriangles  int     `json:"degenerate_triangles" yaml:"degenerate_triangles"`
	DuplicateTriangles   int     `json:"duplicate_triangles" yaml:"duplicate_triangles"`
	FlippedTriangles     int     `json:"flipped_triangles" yaml:"flipped_triangles"`
	OrientationConflicts int     `json:"orientation_conflicts" yaml:"orientation_conflicts"`
	NonManifoldEdges     int     `json:"non_manifold_edges" yaml:"non_manifold_edges"`
	BoundaryEdges        int     `json:"boundary_edges" yaml:"boundary_edges"`
	Components           int     `json:"components" yaml:"components"`
	Triangles            int     `json:"triangles" yaml:"triangles"`
	Faces                int     `json:"faces" yaml:"faces"`
	Vertices             int     `json:"vertices" yaml:"vertices"`
	Closed               bool    `json:"closed" yaml:"closed"`
	Volume               float64 `json:"volume" yaml:"volume"`
	SurfaceArea          float64 `json:"surface_area" yaml:"surface_area"`
}

// Clean repairs a solid and returns it as a shell of planar faces. The input
// is not modified.
func Clean(s *Solid, opts Options) (*Shell, *Report, error) {
	report := &Report{
		InputVertices:  len(s.Vertices),
		InputTriangles: len(s.Triangles),
	}

	// Weld vertices
	vertices, remap := weld(s.Vertices, opts.WeldTolerance)
	report.WeldedVertices = len(s.Vertices) - len(vertices)

	// Drop degenerate and duplicate triangles
	tris := make([]Triangle, 0, len(s.Triangles))
	normals := make([]geometry.Vector3, 0, len(s.Triangles))
	seen := make(map[Triangle]struct{}, len(s.Triangles))
	for i, t := range s.Triangles {
		nt := Triangle{remap[t[0]], remap[t[1]], remap[t[2]]}
		if degenerate(vertices, nt, opts.MinArea) {
			report.DegenerateTriangles++
			continue
		}
		key := sortedKey(nt)
		if _, dup := seen[key]; dup {
			report.DuplicateTriangles++
			continue
		}
		seen[key] = struct{}{}
		tris = append(tris, nt)
		if i < len(s.Normals) {
			normals = append(normals, s.Normals[i])
		} else {
			normals = append(normals, geometry.Vector3{})
		}
	}
	if len(tris) == 0 {
		return nil, report, ErrEmptyMesh
	}

	edges := buildEdgeMap(tris)
	for _, faces := range edges {
		switch {
		case len(faces) == 1:
			report.BoundaryEdges++
		case len(faces) > 2:
			report.NonManifoldEdges++
		}
	}

	o := orient(vertices, tris, normals, edges, opts.FixOrientation)
	report.FlippedTriangles = o.flipped
	report.OrientationConflicts = o.conflicts
	report.Components = o.components
	tris = o.triangles

	var faces []Face
	if opts.MergeCoplanar {
		faces = mergeCoplanar(vertices, tris, edges, opts)
	} else {
		faces = make([]Face, 0, len(tris))
		for _, t := range tris {
			faces = append(faces, Face{
				Normal: triangleNormal(vertices, t),
				Loops:  [][]int{{t[0], t[1], t[2]}},
			})
		}
	}

	shell := compact(s.Name, vertices, faces)
	shell.Closed = report.BoundaryEdges == 0 && report.NonManifoldEdges == 0 && report.OrientationConflicts == 0

	report.Triangles = len(tris)
	report.Faces = len(shell.Faces)
	report.Vertices = len(shell.Vertices)
	report.Closed = shell.Closed
	for _, t := range tris {
		tri := geometry.NewTriangle(geometry.Vector3{}, vertices[t[0]], vertices[t[1]], vertices[t[2]])
		report.Volume += tri.SignedVolume()
		report.SurfaceArea += tri.Area()
	}

	return shell, report, nil
}

func sortedKey(t Triangle) Triangle {
	k := t
	sort.Ints(k[:])
	return k
}

// degenerate reports whether t repeats a vertex or encloses no more than
// minArea
func degenerate(vertices []geometry.Vector3, t Triangle, minArea float64) bool {
	return t[0] == t[1] || t[1] == t[2] || t[0] == t[2] || triangleArea(vertices, t) <= minArea
}

func triangleArea(vertices []geometry.Vector3, t Triangle) float64 {
	a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
	return b.Sub(a).Cross(c.Sub(a)).Length() / 2
}

func triangleNormal(vertices []geometry.Vector3, t Triangle) geometry.Vector3 {
	a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// edgeKey identifies an undirected edge, A < B
type edgeKey struct {
	A, B int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{A: a, B: b}
}

// buildEdgeMap lists the triangles using each undirected edge, in triangle order
func buildEdgeMap(tris []Triangle) map[edgeKey][]int {
	edges := make(map[edgeKey][]int, len(tris)*3/2)
	for ti, t := range tris {
		for k := 0; k < 3; k++ {
			key := newEdgeKey(t[k], t[(k+1)%3])
			edges[key] = append(edges[key], ti)
		}
	}
	return edges
}

// hasDirected reports whether t walks from a straight to b
func hasDirected(t Triangle, a, b int) bool {
	for k := 0; k < 3; k++ {
		if t[k] == a && t[(k+1)%3] == b {
			return true
		}
	}
	return false
}

// compact drops unreferenced vertices and renumbers the rest in order of
// first use by the faces
func compact(name string, vertices []geometry.Vector3, faces []Face) *Shell {
	shell := &Shell{Name: name, Faces: make([]Face, 0, len(faces))}
	remap := make(map[int]int)
	for _, f := range faces {
		nf := Face{Normal: f.Normal, Loops: make([][]int, 0, len(f.Loops))}
		for _, loop := range f.Loops {
			nl := make([]int, len(loop))
			for i, vi := range loop {
				ni, ok := remap[vi]
				if !ok {
					ni = len(shell.Vertices)
					remap[vi] = ni
					shell.Vertices = append(shell.Vertices, vertices[vi])
				}
				nl[i] = ni
			}
			nf.Loops = append(nf.Loops, nl)
		}
		shell.Faces = append(shell.Faces, nf)
	}
	return shell
}

// newellNormal returns the area weighted normal of a closed polygon. Its
// length is twice the polygon area.
func newellNormal(vertices []geometry.Vector3, loop []int) geometry.Vector3 {
	var n geometry.Vector3
	for i := range loop {
		cur := vertices[loop[i]]
		next := vertices[loop[(i+1)%len(loop)]]
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
	}
	return n
}

func collinear(a, b, c geometry.Vector3, tolerance float64) bool {
	ab := b.Sub(a)
	ac := c.Sub(a)
	length := ac.Length()
	if length == 0 {
		return false
	}
	// Distance of b from the line a-c, and b must lie between a and c
	if ab.Cross(ac).Length()/length > tolerance {
		return false
	}
	t := ab.Dot(ac) / (length * length)
	return t > 0 && t < 1
}
