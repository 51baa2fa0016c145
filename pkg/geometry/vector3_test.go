package geometry

import (
	"math"
	"testing"
)

func TestVector3CrossGivesOutwardNormal(t *testing.T) {
	// Counter-clockwise seen from +Z
	a, b, c := NewVector3(0, 0, 0), NewVector3(2, 0, 0), NewVector3(0, 3, 0)
	normal := b.Sub(a).Cross(c.Sub(a))

	expected := NewVector3(0, 0, 6)
	if normal != expected {
		t.Errorf("Cross failed: expected %v, got %v", expected, normal)
	}
	if area := normal.Length() / 2; area != 3 {
		t.Errorf("triangle area failed: expected 3, got %v", area)
	}

	reversed := c.Sub(a).Cross(b.Sub(a))
	if reversed.Dot(normal) >= 0 {
		t.Errorf("reversed winding failed: expected opposite normal, got %v", reversed)
	}
}

func TestVector3Normalize(t *testing.T) {
	tests := []struct {
		in       Vector3
		expected Vector3
	}{
		{NewVector3(3, 4, 0), NewVector3(0.6, 0.8, 0)},
		{NewVector3(0, 0, -7), NewVector3(0, 0, -1)},
		{Vector3{}, Vector3{}},
	}
	for _, tt := range tests {
		got := tt.in.Normalize()
		if got.Distance(tt.expected) > 1e-12 {
			t.Errorf("Normalize(%v) failed: expected %v, got %v", tt.in, tt.expected, got)
		}
	}
}

func TestVector3Reject(t *testing.T) {
	n := NewVector3(0, 0, 1)
	got := NewVector3(1, 2, 5).Reject(n)

	expected := NewVector3(1, 2, 0)
	if got != expected {
		t.Errorf("Reject failed: expected %v, got %v", expected, got)
	}
	if d := got.Dot(n); d != 0 {
		t.Errorf("Reject failed: expected result perpendicular to normal, got dot %v", d)
	}
}

func TestVector3IsFinite(t *testing.T) {
	tests := []struct {
		v        Vector3
		expected bool
	}{
		{NewVector3(1, -2, 3e300), true},
		{NewVector3(math.NaN(), 0, 0), false},
		{NewVector3(0, math.Inf(1), 0), false},
		{NewVector3(0, 0, math.Inf(-1)), false},
	}
	for _, tt := range tests {
		if got := tt.v.IsFinite(); got != tt.expected {
			t.Errorf("IsFinite(%v) failed: expected %v, got %v", tt.v, tt.expected, got)
		}
	}
}

func TestFromFloat32(t *testing.T) {
	got := FromFloat32([3]float32{0.5, -1, 2.25})
	expected := NewVector3(0.5, -1, 2.25)
	if got != expected {
		t.Errorf("FromFloat32 failed: expected %v, got %v", expected, got)
	}
}

func TestVector3MinMax(t *testing.T) {
	a, b := NewVector3(1, 5, -2), NewVector3(3, 0, -4)

	if got, expected := a.Min(b), NewVector3(1, 0, -4); got != expected {
		t.Errorf("Min failed: expected %v, got %v", expected, got)
	}
	if got, expected := a.Max(b), NewVector3(3, 5, -2); got != expected {
		t.Errorf("Max failed: expected %v, got %v", expected, got)
	}
}
