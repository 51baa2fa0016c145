package mesh

import (
	"math"
	"sort"

	"github.com/philipparndt/stl2step/pkg/geometry"
)

// mergeCoplanar grows regions of edge-connected coplanar triangles and turns
// each region into one polygonal face. Regions whose outline is not a simple
// outer loop with optional holes stay split into triangles.
func mergeCoplanar(vertices []geometry.Vector3, tris []Triangle, edges map[edgeKey][]int, opts Options) []Face {
	cosTolerance := math.Cos(opts.AngularTolerance)
	normals := make([]geometry.Vector3, len(tris))
	for i, t := range tris {
		normals[i] = triangleNormal(vertices, t)
	}

	assigned := make([]bool, len(tris))
	var faces []Face

	for seed := range tris {
		if assigned[seed] {
			continue
		}
		n := normals[seed]
		d := n.Dot(vertices[tris[seed][0]])
		onPlane := func(t Triangle) bool {
			for _, vi := range t {
				if math.Abs(n.Dot(vertices[vi])-d) > opts.WeldTolerance {
					return false
				}
			}
			return true
		}

		assigned[seed] = true
		group := []int{seed}
		queue := []int{seed}
		for len(queue) > 0 {
			ti := queue[0]
			queue = queue[1:]
			t := tris[ti]
			for k := 0; k < 3; k++ {
				a, b := t[k], t[(k+1)%3]
				shared := edges[newEdgeKey(a, b)]
				if len(shared) != 2 {
					continue
				}
				nb := shared[0]
				if nb == ti {
					nb = shared[1]
				}
				if assigned[nb] || !hasDirected(tris[nb], b, a) {
					continue
				}
				if normals[nb].Dot(n) < cosTolerance || !onPlane(tris[nb]) {
					continue
				}
				assigned[nb] = true
				group = append(group, nb)
				queue = append(queue, nb)
			}
		}

		faces = append(faces, regionFaces(vertices, tris, normals, group, n)...)
	}

	return dropCollinear(vertices, faces, opts.WeldTolerance)
}

func triangleFaces(vertices []geometry.Vector3, tris []Triangle, normals []geometry.Vector3, group []int) []Face {
	faces := make([]Face, 0, len(group))
	for _, ti := range group {
		t := tris[ti]
		faces = append(faces, Face{Normal: normals[ti], Loops: [][]int{{t[0], t[1], t[2]}}})
	}
	return faces
}

// regionFaces chains the outline of a coplanar region into loops
func regionFaces(vertices []geometry.Vector3, tris []Triangle, normals []geometry.Vector3, group []int, n geometry.Vector3) []Face {
	if len(group) == 1 {
		return triangleFaces(vertices, tris, normals, group)
	}

	directed := make(map[[2]int]struct{}, len(group)*3)
	for _, ti := range group {
		t := tris[ti]
		for k := 0; k < 3; k++ {
			directed[[2]int{t[k], t[(k+1)%3]}] = struct{}{}
		}
	}

	next := make(map[int]int)
	for e := range directed {
		if _, interior := directed[[2]int{e[1], e[0]}]; interior {
			continue
		}
		if _, pinched := next[e[0]]; pinched {
			return triangleFaces(vertices, tris, normals, group)
		}
		next[e[0]] = e[1]
	}

	starts := make([]int, 0, len(next))
	for v := range next {
		starts = append(starts, v)
	}
	sort.Ints(starts)

	used := make(map[int]bool, len(next))
	var outer []int
	var inner [][]int
	for _, start := range starts {
		if used[start] {
			continue
		}
		loop := []int{start}
		used[start] = true
		cur, ok := next[start]
		for ok && cur != start {
			if used[cur] || len(loop) > len(next) {
				return triangleFaces(vertices, tris, normals, group)
			}
			used[cur] = true
			loop = append(loop, cur)
			cur, ok = next[cur]
		}
		if !ok || len(loop) < 3 {
			return triangleFaces(vertices, tris, normals, group)
		}

		if newellNormal(vertices, loop).Dot(n) > 0 {
			if outer != nil {
				return triangleFaces(vertices, tris, normals, group)
			}
			outer = loop
		} else {
			inner = append(inner, loop)
		}
	}
	if outer == nil {
		return triangleFaces(vertices, tris, normals, group)
	}

	loops := append([][]int{outer}, inner...)
	return []Face{{Normal: newellNormal(vertices, outer).Normalize(), Loops: loops}}
}

// dropCollinear removes loop vertices that sit on a straight edge between
// exactly two neighbours. Such a vertex is shared by the same pair of edges in
// every face that uses it, so removing it everywhere keeps the faces stitched.
func dropCollinear(vertices []geometry.Vector3, faces []Face, tolerance float64) []Face {
	neighbours := make(map[int]map[int]struct{})
	link := func(a, b int) {
		if neighbours[a] == nil {
			neighbours[a] = make(map[int]struct{}, 2)
		}
		neighbours[a][b] = struct{}{}
	}
	for _, f := range faces {
		for _, loop := range f.Loops {
			for i, v := range loop {
				w := loop[(i+1)%len(loop)]
				link(v, w)
				link(w, v)
			}
		}
	}

	removable := make(map[int]bool)
	for v, ns := range neighbours {
		if len(ns) != 2 {
			continue
		}
		pair := make([]int, 0, 2)
		for u := range ns {
			pair = append(pair, u)
		}
		if collinear(vertices[pair[0]], vertices[v], vertices[pair[1]], tolerance) {
			removable[v] = true
		}
	}
	if len(removable) == 0 {
		return faces
	}

	// A loop must keep three corners; protect the vertices of loops that would not
	for changed := true; changed; {
		changed = false
		for _, f := range faces {
			for _, loop := range f.Loops {
				kept := 0
				for _, v := range loop {
					if !removable[v] {
						kept++
					}
				}
				if kept >= 3 {
					continue
				}
				for _, v := range loop {
					if removable[v] {
						delete(removable, v)
						changed = true
					}
				}
			}
		}
	}

	out := make([]Face, 0, len(faces))
	for _, f := range faces {
		nf := Face{Normal: f.Normal, Loops: make([][]int, 0, len(f.Loops))}
		for _, loop := range f.Loops {
			nl := make([]int, 0, len(loop))
			for _, v := range loop {
				if !removable[v] {
					nl = append(nl, v)
				}
			}
			nf.Loops = append(nf.Loops, nl)
		}
		out = append(out, nf)
	}
	return out
}
