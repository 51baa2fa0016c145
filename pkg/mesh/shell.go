package mesh

import (
	"github.com/philipparndt/stl2step/pkg/geometry"
)

// Face is a planar polygon. Loops[0] is the outer boundary, counter-clockwise
// when seen from the side the normal points to; further loops are holes.
type Face struct {
	Normal geometry.Vector3
	Loops  [][]int
}

// Shell is a cleaned solid made of planar faces over shared vertices
type Shell struct {
	Name     string
	Vertices []geometry.Vector3
	Faces    []Face
	// Closed is true when every edge is shared by exactly two faces
	Closed bool
}

// Edge is an undirected edge between two vertex indices, A < B
type Edge struct {
	A, B int
}

// Edges returns every distinct edge of the shell in order of first use
func (s *Shell) Edges() []Edge {
	seen := make(map[Edge]struct{})
	var out []Edge
	for _, f := range s.Faces {
		for _, loop := range f.Loops {
			for i, a := range loop {
				b := loop[(i+1)%len(loop)]
				e := Edge{A: min(a, b), B: max(a, b)}
				if _, ok := seen[e]; ok {
					continue
				}
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	return out
}

// BoundingBox calculates the bounding box of the shell
func (s *Shell) BoundingBox() geometry.BoundingBox {
	bbox := geometry.NewBoundingBox()
	for _, v := range s.Vertices {
		bbox.Extend(v)
	}
	return bbox
}
