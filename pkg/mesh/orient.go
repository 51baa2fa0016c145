package mesh

import (
	"github.com/philipparndt/stl2step/pkg/geometry"
)

type orientation struct {
	triangles  []Triangle
	flipped    int
	conflicts  int
	components int
}

// orient makes the winding consistent across manifold edges and then turns
// every edge-connected component outward. Closed components use the sign of
// their volume, open ones follow the majority of the stored facet normals.
// When fix is false the triangles are returned as they are and only the
// conflicting edges are counted.
func orient(vertices []geometry.Vector3, tris []Triangle, normals []geometry.Vector3, edges map[edgeKey][]int, fix bool) orientation {
	out := make([]Triangle, len(tris))
	copy(out, tris)

	if !fix {
		conflicts := 0
		for key, faces := range edges {
			if len(faces) == 2 && sameDirection(out[faces[0]], out[faces[1]], key) {
				conflicts++
			}
		}
		return orientation{triangles: out, conflicts: conflicts, components: countComponents(tris, edges)}
	}

	flipped := make([]bool, len(out))
	component := make([]int, len(out))
	for i := range component {
		component[i] = -1
	}

	conflictEdges := make(map[edgeKey]struct{})
	var members [][]int

	for seed := range out {
		if component[seed] >= 0 {
			continue
		}
		c := len(members)
		component[seed] = c
		group := []int{seed}
		queue := []int{seed}

		for len(queue) > 0 {
			ti := queue[0]
			queue = queue[1:]
			t := out[ti]
			for k := 0; k < 3; k++ {
				a, b := t[k], t[(k+1)%3]
				key := newEdgeKey(a, b)
				faces := edges[key]
				if len(faces) != 2 {
					continue
				}
				n := faces[0]
				if n == ti {
					n = faces[1]
				}
				if component[n] >= 0 {
					// Already placed; both must walk the shared edge in opposite directions
					if hasDirected(out[n], a, b) {
						conflictEdges[key] = struct{}{}
					}
					continue
				}
				if hasDirected(out[n], a, b) {
					out[n] = out[n].Flip()
					flipped[n] = !flipped[n]
				}
				component[n] = c
				group = append(group, n)
				queue = append(queue, n)
			}
		}
		members = append(members, group)
	}

	for _, group := range members {
		if shouldFlip(vertices, out, normals, edges, group) {
			for _, ti := range group {
				out[ti] = out[ti].Flip()
				flipped[ti] = !flipped[ti]
			}
		}
	}

	result := orientation{
		triangles:  out,
		conflicts:  len(conflictEdges),
		components: len(members),
	}
	for _, f := range flipped {
		if f {
			result.flipped++
		}
	}
	return result
}

// shouldFlip decides whether a consistently wound component faces inward
func shouldFlip(vertices []geometry.Vector3, tris []Triangle, normals []geometry.Vector3, edges map[edgeKey][]int, group []int) bool {
	closed := true
	volume := 0.0
	agreement := 0.0
	for _, ti := range group {
		t := tris[ti]
		for k := 0; k < 3; k++ {
			if len(edges[newEdgeKey(t[k], t[(k+1)%3])]) != 2 {
				closed = false
			}
		}
		a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
		volume += a.Dot(b.Cross(c))
		if ti < len(normals) {
			agreement += b.Sub(a).Cross(c.Sub(a)).Dot(normals[ti])
		}
	}
	if closed {
		return volume < 0
	}
	return agreement < 0
}

func sameDirection(t1, t2 Triangle, key edgeKey) bool {
	return (hasDirected(t1, key.A, key.B) && hasDirected(t2, key.A, key.B)) ||
		(hasDirected(t1, key.B, key.A) && hasDirected(t2, key.B, key.A))
}

// countComponents counts groups of triangles connected through manifold edges
func countComponents(tris []Triangle, edges map[edgeKey][]int) int {
	seen := make([]bool, len(tris))
	count := 0
	for seed := range tris {
		if seen[seed] {
			continue
		}
		count++
		seen[seed] = true
		queue := []int{seed}
		for len(queue) > 0 {
			ti := queue[0]
			queue = queue[1:]
			t := tris[ti]
			for k := 0; k < 3; k++ {
				faces := edges[newEdgeKey(t[k], t[(k+1)%3])]
				if len(faces) != 2 {
					continue
				}
				for _, n := range faces {
					if !seen[n] {
						seen[n] = true
						queue = append(queue, n)
					}
				}
			}
		}
	}
	return count
}
