package mesh

import (
	"math"

	"github.com/philipparndt/stl2step/pkg/geometry"
)

type cell [3]int64

// welder merges points that lie within a tolerance of an earlier point. The
// first point seen in a neighbourhood becomes the representative, so the
// result depends only on input order.
type welder struct {
	tolerance float64
	cells     map[cell][]int
	exact     map[geometry.Vector3]int
	points    []geometry.Vector3
}

func newWelder(tolerance float64) *welder {
	w := &welder{tolerance: tolerance}
	if tolerance > 0 {
		w.cells = make(map[cell][]int)
	} else {
		w.exact = make(map[geometry.Vector3]int)
	}
	return w
}

func (w *welder) cellOf(p geometry.Vector3) cell {
	return cell{
		int64(math.Floor(p.X / w.tolerance)),
		int64(math.Floor(p.Y / w.tolerance)),
		int64(math.Floor(p.Z / w.tolerance)),
	}
}

// add returns the index of the representative for p
func (w *welder) add(p geometry.Vector3) int {
	if w.exact != nil {
		if i, ok := w.exact[p]; ok {
			return i
		}
		i := len(w.points)
		w.exact[p] = i
		w.points = append(w.points, p)
		return i
	}

	c := w.cellOf(p)
	best, bestDist := -1, math.MaxFloat64
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, i := range w.cells[cell{c[0] + dx, c[1] + dy, c[2] + dz}] {
					d := w.points[i].Distance(p)
					if d <= w.tolerance && (d < bestDist || (d == bestDist && i < best)) {
						best, bestDist = i, d
					}
				}
			}
		}
	}
	if best >= 0 {
		return best
	}

	i := len(w.points)
	w.points = append(w.points, p)
	w.cells[c] = append(w.cells[c], i)
	return i
}

// weld merges the points within tolerance and returns the representatives
// together with the representative index of every input point
func weld(points []geometry.Vector3, tolerance float64) ([]geometry.Vector3, []int) {
	w := newWelder(tolerance)
	remap := make([]int, len(points))
	for i, p := range points {
		remap[i] = w.add(p)
	}
	return w.points, remap
}
