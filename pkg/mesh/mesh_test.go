package mesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipparndt/stl2step/pkg/geometry"
	"github.com/philipparndt/stl2step/pkg/stl"
)

var cubeTriangles = []Triangle{
	{0, 2, 3}, {0, 3, 1}, // z = 0
	{4, 5, 7}, {4, 7, 6}, // z = 1
	{0, 1, 5}, {0, 5, 4}, // y = 0
	{2, 6, 7}, {2, 7, 3}, // y = 1
	{0, 4, 6}, {0, 6, 2}, // x = 0
	{1, 3, 7}, {1, 7, 5}, // x = 1
}

// cubeModel returns an outward facing cube of the given size as a triangle soup
func cubeModel(name string, offset geometry.Vector3, size float64) *stl.Model {
	corners := make([]geometry.Vector3, 8)
	for i := range corners {
		corners[i] = geometry.NewVector3(
			float64(i&1)*size,
			float64((i>>1)&1)*size,
			float64((i>>2)&1)*size,
		).Add(offset)
	}
	m := stl.NewModel(name)
	for _, t := range cubeTriangles {
		tri := geometry.NewTriangle(geometry.Vector3{}, corners[t[0]], corners[t[1]], corners[t[2]])
		tri.Normal = tri.CalculateNormal()
		m.AddTriangle(tri)
	}
	return m
}

var splitOptions = ReadOptions{
	SplitComponents: true,
	WeldTolerance:   1e-6,
	MinArea:         1e-12,
}

// jitter shifts every vertex of triangle i by (i+1)*step on all axes
func jitter(m *stl.Model, step float64) {
	for i := range m.Triangles {
		d := float64(i+1) * step
		shift := geometry.NewVector3(d, d, d)
		m.Triangles[i].V1 = m.Triangles[i].V1.Add(shift)
		m.Triangles[i].V2 = m.Triangles[i].V2.Add(shift)
		m.Triangles[i].V3 = m.Triangles[i].V3.Add(shift)
	}
}

func unitCube() *Solid {
	return FromModel(cubeModel("cube", geometry.Vector3{}, 1))
}

func TestFromModelSharesVertices(t *testing.T) {
	s := unitCube()
	assert.Len(t, s.Vertices, 8)
	assert.Equal(t, 12, s.TriangleCount())
	assert.InDelta(t, 1.0, s.Volume(), 1e-12)
	assert.InDelta(t, 6.0, s.SurfaceArea(), 1e-12)
}

func TestCleanCube(t *testing.T) {
	shell, report, err := Clean(unitCube(), DefaultOptions())
	require.NoError(t, err)

	assert.True(t, shell.Closed)
	assert.Len(t, shell.Faces, 6)
	assert.Len(t, shell.Vertices, 8)
	assert.Len(t, shell.Edges(), 12)
	for _, f := range shell.Faces {
		require.Len(t, f.Loops, 1)
		assert.Len(t, f.Loops[0], 4)
		assert.InDelta(t, 1.0, f.Normal.Length(), 1e-12)
	}

	assert.Equal(t, 0, report.FlippedTriangles)
	assert.Equal(t, 0, report.WeldedVertices)
	assert.Equal(t, 1, report.Components)
	assert.InDelta(t, 1.0, report.Volume, 1e-12)
	assert.InDelta(t, 6.0, report.SurfaceArea, 1e-12)
}

func TestCleanWithoutMerge(t *testing.T) {
	opts := DefaultOptions()
	opts.MergeCoplanar = false

	shell, report, err := Clean(unitCube(), opts)
	require.NoError(t, err)
	assert.Len(t, shell.Faces, 12)
	assert.Len(t, shell.Edges(), 18)
	assert.Equal(t, 12, report.Faces)
	assert.True(t, shell.Closed)
}

func TestCleanFixesSingleFlippedTriangle(t *testing.T) {
	s := unitCube()
	s.Triangles[5] = s.Triangles[5].Flip()

	shell, report, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FlippedTriangles)
	assert.Equal(t, 0, report.OrientationConflicts)
	assert.InDelta(t, 1.0, report.Volume, 1e-12)
	assert.Len(t, shell.Faces, 6)
}

func TestCleanTurnsInsideOutCubeOutward(t *testing.T) {
	s := unitCube()
	for i := range s.Triangles {
		s.Triangles[i] = s.Triangles[i].Flip()
	}

	_, report, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 12, report.FlippedTriangles)
	assert.InDelta(t, 1.0, report.Volume, 1e-12)
}

func TestCleanWithoutOrientationFixCountsConflicts(t *testing.T) {
	s := unitCube()
	s.Triangles[5] = s.Triangles[5].Flip()

	opts := DefaultOptions()
	opts.FixOrientation = false
	shell, report, err := Clean(s, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.FlippedTriangles)
	assert.Equal(t, 3, report.OrientationConflicts)
	assert.False(t, shell.Closed)
}

func TestCleanWeldsNearDuplicates(t *testing.T) {
	m := cubeModel("cube", geometry.Vector3{}, 1)
	// Nudge one copy of a corner by less than the tolerance
	m.Triangles[0].V1 = m.Triangles[0].V1.Add(geometry.NewVector3(1e-8, 0, 0))

	s := FromModel(m)
	require.Len(t, s.Vertices, 9)

	shell, report, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.WeldedVertices)
	assert.Len(t, shell.Vertices, 8)
	assert.True(t, shell.Closed)
}

func TestCleanDropsDegenerateAndDuplicateTriangles(t *testing.T) {
	s := unitCube()
	s.Triangles = append(s.Triangles,
		Triangle{0, 0, 1},     // repeated index
		Triangle{0, 1, 0},     // repeated index
		s.Triangles[3],        // duplicate
		s.Triangles[3].Flip(), // duplicate with reversed winding
	)
	s.Normals = append(s.Normals, make([]geometry.Vector3, 4)...)

	shell, report, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, report.DegenerateTriangles)
	assert.Equal(t, 2, report.DuplicateTriangles)
	assert.Equal(t, 12, report.Triangles)
	assert.True(t, shell.Closed)
}

func TestCleanDropsCollinearTriangle(t *testing.T) {
	s := unitCube()
	// Three points on the x axis span no area
	s.Vertices = append(s.Vertices, geometry.NewVector3(0.5, 0, 0))
	s.Triangles = append(s.Triangles, Triangle{0, 8, 1})
	s.Normals = append(s.Normals, geometry.Vector3{})

	_, report, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DegenerateTriangles)
}

func TestCleanEmptyMesh(t *testing.T) {
	s := &Solid{
		Vertices:  []geometry.Vector3{{}, {X: 1}},
		Triangles: []Triangle{{0, 0, 1}},
	}
	_, _, err := Clean(s, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyMesh)
}

func TestCleanOpenMesh(t *testing.T) {
	// Cube without its top
	m := cubeModel("open", geometry.Vector3{}, 1)
	m.Triangles = append(m.Triangles[:2:2], m.Triangles[4:]...)
	s := FromModel(m)

	shell, report, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, shell.Closed)
	assert.Equal(t, 4, report.BoundaryEdges)
	assert.Len(t, shell.Faces, 5)
}

func TestCleanMergesStripAndDropsCollinearVertices(t *testing.T) {
	// 2x1 rectangle in the z=0 plane made of four triangles
	s := &Solid{
		Name: "strip",
		Vertices: []geometry.Vector3{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0},
			{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1},
		},
		Triangles: []Triangle{
			{0, 1, 4}, {0, 4, 3},
			{1, 2, 5}, {1, 5, 4},
		},
		Normals: []geometry.Vector3{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}},
	}

	shell, report, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, shell.Faces, 1)
	assert.Len(t, shell.Faces[0].Loops, 1)
	assert.Len(t, shell.Faces[0].Loops[0], 4)
	assert.Len(t, shell.Vertices, 4)
	assert.Equal(t, geometry.NewVector3(0, 0, 1), shell.Faces[0].Normal)
	assert.False(t, report.Closed)
}

func TestCleanMergesFaceWithHole(t *testing.T) {
	// Square frame: outer 3x3, inner 1x1 hole, eight triangles
	s := &Solid{
		Vertices: []geometry.Vector3{
			{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 3}, {X: 0, Y: 3},
			{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2},
		},
		Triangles: []Triangle{
			{0, 1, 5}, {0, 5, 4},
			{1, 2, 6}, {1, 6, 5},
			{2, 3, 7}, {2, 7, 6},
			{3, 0, 4}, {3, 4, 7},
		},
	}

	shell, _, err := Clean(s, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, shell.Faces, 1)
	require.Len(t, shell.Faces[0].Loops, 2)
	assert.Len(t, shell.Faces[0].Loops[0], 4)
	assert.Len(t, shell.Faces[0].Loops[1], 4)

	outer := newellNormal(shell.Vertices, shell.Faces[0].Loops[0])
	inner := newellNormal(shell.Vertices, shell.Faces[0].Loops[1])
	assert.InDelta(t, 18.0, outer.Z, 1e-12)
	assert.InDelta(t, -2.0, inner.Z, 1e-12)
}

func TestSplitOrdersComponentsByFirstTriangle(t *testing.T) {
	big := cubeModel("pair", geometry.Vector3{}, 2)
	small := cubeModel("pair", geometry.NewVector3(10, 0, 0), 1)
	big.Triangles = append(big.Triangles, small.Triangles...)

	parts, err := Split(FromModel(big), splitOptions)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, "pair.1", parts[0].Name)
	assert.InDelta(t, 8.0, parts[0].Volume(), 1e-12)
	assert.InDelta(t, 1.0, parts[1].Volume(), 1e-12)
	assert.Len(t, parts[1].Vertices, 8)
}

func TestSplitKeepsConnectedSolid(t *testing.T) {
	s := unitCube()
	parts, err := Split(s, splitOptions)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Same(t, s, parts[0])
}

func TestReadMultipleSolids(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.stl")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, stl.WriteASCII(f,
		cubeModel("first", geometry.Vector3{}, 1),
		cubeModel("second", geometry.NewVector3(5, 5, 5), 3),
	))
	require.NoError(t, f.Close())

	solids, err := Read(path, splitOptions)
	require.NoError(t, err)
	require.Len(t, solids, 2)
	assert.Equal(t, "first", solids[0].Name)
	assert.Equal(t, "second", solids[1].Name)
	assert.InDelta(t, 27.0, solids[1].Volume(), 1e-9)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.stl"), ReadOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSplitWeldsBeforeFindingComponents(t *testing.T) {
	m := cubeModel("noisy", geometry.Vector3{}, 10)
	jitter(m, 1e-9)

	exact, err := Split(FromModel(m), ReadOptions{SplitComponents: true})
	require.NoError(t, err)
	assert.Len(t, exact, 12)

	solids, err := FromModels([]*stl.Model{m}, splitOptions)
	require.NoError(t, err)
	require.Len(t, solids, 1)
	assert.Equal(t, "noisy", solids[0].Name)
	assert.Equal(t, 12, solids[0].TriangleCount())

	shell, report, err := Clean(solids[0], DefaultOptions())
	require.NoError(t, err)
	assert.True(t, shell.Closed)
	assert.Len(t, shell.Faces, 6)
	assert.Equal(t, 8, report.Vertices)
}

func TestSplitDropsStrayDegenerateTriangle(t *testing.T) {
	m := stl.NewModel("cube")
	m.AddTriangle(geometry.NewTriangle(geometry.Vector3{},
		geometry.NewVector3(20, 0, 0), geometry.NewVector3(21, 0, 0), geometry.NewVector3(22, 0, 0)))
	m.Triangles = append(m.Triangles, cubeModel("cube", geometry.Vector3{}, 1).Triangles...)

	solids, err := FromModels([]*stl.Model{m}, splitOptions)
	require.NoError(t, err)
	require.Len(t, solids, 1)
	assert.Equal(t, "cube", solids[0].Name)
	assert.Equal(t, 12, solids[0].TriangleCount())

	shell, _, err := Clean(solids[0], DefaultOptions())
	require.NoError(t, err)
	assert.True(t, shell.Closed)
}

func TestSplitKeepsDegenerateTriangleTouchingSolid(t *testing.T) {
	m := cubeModel("cube", geometry.Vector3{}, 1)
	m.AddTriangle(geometry.NewTriangle(geometry.Vector3{},
		geometry.NewVector3(0, 0, 0), geometry.NewVector3(0, 0, 0), geometry.NewVector3(5, 5, 5)))

	solids, err := FromModels([]*stl.Model{m}, splitOptions)
	require.NoError(t, err)
	require.Len(t, solids, 1)
	assert.Equal(t, 13, solids[0].TriangleCount())

	_, report, err := Clean(solids[0], DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DegenerateTriangles)
}

func TestSplitOnlyDegenerateTriangles(t *testing.T) {
	m := stl.NewModel("junk")
	m.AddTriangle(geometry.NewTriangle(geometry.Vector3{},
		geometry.NewVector3(0, 0, 0), geometry.NewVector3(1, 0, 0), geometry.NewVector3(2, 0, 0)))

	_, err := FromModels([]*stl.Model{m}, splitOptions)
	assert.ErrorIs(t, err, ErrNoSolids)
}
