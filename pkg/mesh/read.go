package mesh

import (
	"fmt"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/philipparndt/stl2step/pkg/stl"
)

// ErrNoSolids is returned when a file yields no solid with triangles
var ErrNoSolids = errors.New("no solids found")

// ReadOptions controls how a file is turned into solids
type ReadOptions struct {
	// SplitComponents separates every solid block into its connected parts
	SplitComponents bool
	// WeldTolerance is the distance within which two vertices count as shared
	// when finding connected parts
	WeldTolerance float64
	// MinArea marks triangles that do not connect their vertices
	MinArea float64
}

// Read loads an STL file and returns its solids in file order
func Read(path string, opts ReadOptions) ([]*Solid, error) {
	models, err := stl.Parse(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return FromModels(models, opts)
}

// FromModels indexes parsed STL models and optionally splits them
func FromModels(models []*stl.Model, opts ReadOptions) ([]*Solid, error) {
	var solids []*Solid
	for _, m := range models {
		if m.TriangleCount() == 0 {
			continue
		}
		s := FromModel(m)
		if !opts.SplitComponents {
			solids = append(solids, s)
			continue
		}
		parts, err := Split(s, opts)
		if err != nil {
			return nil, err
		}
		solids = append(solids, parts...)
	}
	if len(solids) == 0 {
		return nil, ErrNoSolids
	}
	return solids, nil
}

// Split separates a solid into its connected components. Two triangles are
// connected when they share a vertex after welding within WeldTolerance.
// Degenerate triangles join the component of one of their vertices and are
// dropped when they touch none. Components are ordered by their lowest
// triangle index; a solid that is already connected is returned unchanged.
func Split(s *Solid, opts ReadOptions) ([]*Solid, error) {
	points, remap := weld(s.Vertices, opts.WeldTolerance)
	welded := make([]Triangle, len(s.Triangles))
	valid := make([]bool, len(s.Triangles))
	for ti, t := range s.Triangles {
		welded[ti] = Triangle{remap[t[0]], remap[t[1]], remap[t[2]]}
		valid[ti] = !degenerate(points, welded[ti], opts.MinArea)
	}

	g := graph.New(graph.IntHash)
	for i := range points {
		if err := g.AddVertex(i); err != nil {
			return nil, errors.Wrap(err, "add vertex")
		}
	}
	for ti, t := range welded {
		if !valid[ti] {
			continue
		}
		for k := 0; k < 3; k++ {
			err := g.AddEdge(t[k], t[(k+1)%3])
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, errors.Wrap(err, "add edge")
			}
		}
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, errors.Wrap(err, "adjacency map")
	}

	component := make([]int, len(points))
	for i := range component {
		component[i] = -1
	}
	owner := make([]int, len(s.Triangles))
	count := 0
	for ti, t := range welded {
		owner[ti] = -1
		if !valid[ti] {
			continue
		}
		if component[t[0]] < 0 {
			visit(adjacency, t[0], count, component)
			count++
		}
		owner[ti] = component[t[0]]
	}
	for ti, t := range welded {
		if valid[ti] {
			continue
		}
		for _, vi := range t {
			if component[vi] >= 0 {
				owner[ti] = component[vi]
				break
			}
		}
	}

	groups := make([][]int, count)
	dropped := 0
	for ti, c := range owner {
		if c < 0 {
			dropped++
			continue
		}
		groups[c] = append(groups[c], ti)
	}

	if len(groups) == 1 && dropped == 0 {
		return []*Solid{s}, nil
	}

	parts := make([]*Solid, 0, len(groups))
	for i, triangles := range groups {
		name := s.Name
		if name != "" && len(groups) > 1 {
			name = fmt.Sprintf("%s.%d", s.Name, i+1)
		}
		parts = append(parts, s.subset(name, triangles))
	}
	return parts, nil
}

// visit labels every vertex reachable from start with component c
func visit(adjacency map[int]map[int]graph.Edge[int], start, c int, component []int) {
	queue := []int{start}
	component[start] = c
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for n := range adjacency[v] {
			if component[n] < 0 {
				component[n] = c
				queue = append(queue, n)
			}
		}
	}
}
