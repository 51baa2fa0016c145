// Package mesh turns STL triangle soups into indexed solids and repairs them
// into shells of planar faces ready for B-rep export.
package mesh

import (
	"github.com/philipparndt/stl2step/pkg/geometry"
	"github.com/philipparndt/stl2step/pkg/stl"
)

// Triangle holds three vertex indices in winding order
type Triangle [3]int

// Flip returns the triangle with reversed winding
func (t Triangle) Flip() Triangle {
	return Triangle{t[0], t[2], t[1]}
}

// Solid is an indexed triangle mesh
type Solid struct {
	Name      string
	Vertices  []geometry.Vector3
	Triangles []Triangle
	// Normals are the facet normals stored in the file, parallel to Triangles.
	// They may be zero.
	Normals []geometry.Vector3
}

// FromModel indexes an STL model. Vertices are shared only when their
// coordinates are bit-for-bit equal; tolerance based welding is left to Clean.
func FromModel(m *stl.Model) *Solid {
	s := &Solid{
		Name:      m.Name,
		Triangles: make([]Triangle, 0, len(m.Triangles)),
		Normals:   make([]geometry.Vector3, 0, len(m.Triangles)),
	}

	index := make(map[geometry.Vector3]int)
	lookup := func(v geometry.Vector3) int {
		if i, ok := index[v]; ok {
			return i
		}
		i := len(s.Vertices)
		index[v] = i
		s.Vertices = append(s.Vertices, v)
		return i
	}

	for _, t := range m.Triangles {
		s.Triangles = append(s.Triangles, Triangle{lookup(t.V1), lookup(t.V2), lookup(t.V3)})
		s.Normals = append(s.Normals, t.Normal)
	}
	return s
}

// TriangleCount returns the number of triangles in the solid
func (s *Solid) TriangleCount() int {
	return len(s.Triangles)
}

// Triangle returns triangle i with its coordinates resolved
func (s *Solid) Triangle(i int) geometry.Triangle {
	t := s.Triangles[i]
	var n geometry.Vector3
	if i < len(s.Normals) {
		n = s.Normals[i]
	}
	return geometry.NewTriangle(n, s.Vertices[t[0]], s.Vertices[t[1]], s.Vertices[t[2]])
}

// BoundingBox calculates the bounding box of all referenced vertices
func (s *Solid) BoundingBox() geometry.BoundingBox {
	bbox := geometry.NewBoundingBox()
	for _, t := range s.Triangles {
		for _, i := range t {
			bbox.Extend(s.Vertices[i])
		}
	}
	return bbox
}

// SurfaceArea sums the triangle areas
func (s *Solid) SurfaceArea() float64 {
	total := 0.0
	for i := range s.Triangles {
		total += s.Triangle(i).Area()
	}
	return total
}

// Volume returns the signed enclosed volume. It is only meaningful for closed
// meshes and is negative when the triangles face inward.
func (s *Solid) Volume() float64 {
	total := 0.0
	for i := range s.Triangles {
		total += s.Triangle(i).SignedVolume()
	}
	return total
}

// subset builds a new solid from the given triangle indices, renumbering the
// vertices in order of first use
func (s *Solid) subset(name string, triangles []int) *Solid {
	out := &Solid{
		Name:      name,
		Triangles: make([]Triangle, 0, len(triangles)),
		Normals:   make([]geometry.Vector3, 0, len(triangles)),
	}
	remap := make(map[int]int)
	for _, ti := range triangles {
		var nt Triangle
		for k, vi := range s.Triangles[ti] {
			ni, ok := remap[vi]
			if !ok {
				ni = len(out.Vertices)
				remap[vi] = ni
				out.Vertices = append(out.Vertices, s.Vertices[vi])
			}
			nt[k] = ni
		}
		out.Triangles = append(out.Triangles, nt)
		if ti < len(s.Normals) {
			out.Normals = append(out.Normals, s.Normals[ti])
		} else {
			out.Normals = append(out.Normals, geometry.Vector3{})
		}
	}
	return out
}
