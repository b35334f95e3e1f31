package motion

import (
	"math"
	"testing"
)

func TestVectorOps(t *testing.T) {
	a := Vector{3, 4}
	b := Vector{1, 1}

	if n := a.Norm(); n != 5 {
		t.Errorf("Expected norm 5, got %f", n)
	}

	d := a.Sub(b)
	if d[0] != 2 || d[1] != 3 {
		t.Errorf("Expected (2,3), got (%f,%f)", d[0], d[1])
	}

	if dot := a.Dot(b); dot != 7 {
		t.Errorf("Expected dot 7, got %f", dot)
	}

	u := a.Scale(1 / a.Norm())
	if math.Abs(u.Norm()-1) > 1e-12 {
		t.Errorf("Expected unit vector, got norm %f", u.Norm())
	}
}

func TestStepsSubAndDirBits(t *testing.T) {
	s := Steps{10, -5, 0}.Sub(Steps{4, 5, 0})
	if s[0] != 6 || s[1] != -10 {
		t.Errorf("Expected (6,-10), got (%d,%d)", s[0], s[1])
	}

	var d DirBits = 1 << AxisY
	if d.Has(AxisX) || !d.Has(AxisY) {
		t.Errorf("Unexpected direction mask %08b", d)
	}
}
