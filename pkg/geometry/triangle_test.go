package geometry

import (
	"math"
	"testing"
)

func TestTriangleArea(t *testing.T) {
	// Create a right triangle with sides 3, 4, 5
	tri := NewTriangle(
		NewVector3(0, 0, 1),
		NewVector3(0, 0, 0),
		NewVector3(3, 0, 0),
		NewVector3(0, 4, 0),
	)

	area := tri.Area()
	expected := 6.0 // (3 * 4) / 2 = 6

	if math.Abs(area-expected) > 1e-10 {
		t.Errorf("Area failed: expected %v, got %v", expected, area)
	}
}

func TestTriangleSignedVolume(t *testing.T) {
	// Unit right tetrahedron face opposite the origin, wound outward
	tri := NewTriangle(
		NewVector3(1, 1, 1).Normalize(),
		NewVector3(1, 0, 0),
		NewVector3(0, 1, 0),
		NewVector3(0, 0, 1),
	)

	volume := tri.SignedVolume()
	expected := 1.0 / 6.0

	if math.Abs(volume-expected) > 1e-10 {
		t.Errorf("SignedVolume failed: expected %v, got %v", expected, volume)
	}
	flipped := NewTriangle(tri.Normal, tri.V1, tri.V3, tri.V2).SignedVolume()
	if math.Abs(flipped+expected) > 1e-10 {
		t.Errorf("SignedVolume of flipped triangle failed: expected %v, got %v", -expected, flipped)
	}
}
