// Package analysis computes mesh statistics reported by the info command.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/philipparndt/stl2step/pkg/geometry"
	"github.com/philipparndt/stl2step/pkg/mesh"
)

// EdgeInfo describes one undirected edge of a solid
type EdgeInfo struct {
	Start  geometry.Vector3 `json:"start" yaml:"start"`
	End    geometry.Vector3 `json:"end" yaml:"end"`
	Length float64          `json:"length" yaml:"length"`
}

// SolidInfo contains measurements of one solid and, once cleaned, its repair
// report
type SolidInfo struct {
	Name          string               `json:"name" yaml:"name"`
	Exported      bool                 `json:"exported" yaml:"exported"`
	Triangles     int                  `json:"triangles" yaml:"triangles"`
	Vertices      int                  `json:"vertices" yaml:"vertices"`
	Edges         int                  `json:"edges" yaml:"edges"`
	BoundingBox   geometry.BoundingBox `json:"bounding_box" yaml:"bounding_box"`
	Dimensions    geometry.Vector3     `json:"dimensions" yaml:"dimensions"`
	Diagonal      float64              `json:"diagonal" yaml:"diagonal"`
	Volume        float64              `json:"volume" yaml:"volume"`
	SurfaceArea   float64              `json:"surface_area" yaml:"surface_area"`
	MinEdgeLength float64              `json:"min_edge_length" yaml:"min_edge_length"`
	MaxEdgeLength float64              `json:"max_edge_length" yaml:"max_edge_length"`
	AvgEdgeLength float64              `json:"avg_edge_length" yaml:"avg_edge_length"`
	LongestEdges  []EdgeInfo           `json:"longest_edges,omitempty" yaml:"longest_edges,omitempty"`
	Report        *mesh.Report         `json:"report,omitempty" yaml:"report,omitempty"`
	Error         string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// AnalyzeSolid measures a solid as loaded, before any repair
func AnalyzeSolid(s *mesh.Solid) SolidInfo {
	bbox := s.BoundingBox()
	info := SolidInfo{
		Name:        s.Name,
		Triangles:   s.TriangleCount(),
		Vertices:    len(s.Vertices),
		BoundingBox: bbox,
		Dimensions:  bbox.Size(),
		Diagonal:    bbox.Diagonal(),
		Volume:      math.Abs(s.Volume()),
		SurfaceArea: s.SurfaceArea(),
	}

	edges := Edges(s)
	info.Edges = len(edges)
	if len(edges) == 0 {
		return info
	}

	info.MinEdgeLength = math.MaxFloat64
	total := 0.0
	for _, e := range edges {
		total += e.Length
		info.MinEdgeLength = math.Min(info.MinEdgeLength, e.Length)
		info.MaxEdgeLength = math.Max(info.MaxEdgeLength, e.Length)
	}
	info.AvgEdgeLength = total / float64(len(edges))
	return info
}

// Analyze measures and cleans every solid. The first solid is the one a
// conversion exports. A solid that cannot be cleaned keeps its measurements
// and carries the error text instead of a report.
func Analyze(solids []*mesh.Solid, opts mesh.Options, longest int) []SolidInfo {
	infos := make([]SolidInfo, 0, len(solids))
	for i, s := range solids {
		info := AnalyzeSolid(s)
		info.Exported = i == 0
		if longest > 0 {
			info.LongestEdges = FindLongestEdges(Edges(s), longest)
		}
		if _, report, err := mesh.Clean(s, opts); err != nil {
			info.Error = err.Error()
		} else {
			info.Report = report
		}
		infos = append(infos, info)
	}
	return infos
}

// Edges returns every distinct edge of the solid in order of first use
func Edges(s *mesh.Solid) []EdgeInfo {
	seen := make(map[mesh.Edge]struct{}, len(s.Triangles)*3/2)
	edges := make([]EdgeInfo, 0, len(s.Triangles)*3/2)
	for _, t := range s.Triangles {
		for k := 0; k < 3; k++ {
			a, b := t[k], t[(k+1)%3]
			key := mesh.Edge{A: min(a, b), B: max(a, b)}
			if _, ok := seen[key]; ok || a == b {
				continue
			}
			seen[key] = struct{}{}
			start, end := s.Vertices[key.A], s.Vertices[key.B]
			edges = append(edges, EdgeInfo{Start: start, End: end, Length: start.Distance(end)})
		}
	}
	return edges
}

// FindLongestEdges returns the count longest edges
func FindLongestEdges(edges []EdgeInfo, count int) []EdgeInfo {
	sorted := make([]EdgeInfo, len(edges))
	copy(sorted, edges)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Length > sorted[j].Length
	})

	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}

// FormatVector formats a 3D vector
func FormatVector(v geometry.Vector3) string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", v.X, v.Y, v.Z)
}
