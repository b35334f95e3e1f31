package motion

import "math"

// MaxAxes is the number of axes (and linear actuators) the core tracks.
// Machines with fewer axes leave the trailing entries at zero.
const MaxAxes = 6

// Axis indices
const (
	AxisX = iota
	AxisY
	AxisZ
	AxisA
	AxisB
	AxisC
)

// AxisNames in index order
var AxisNames = [MaxAxes]string{"x", "y", "z", "a", "b", "c"}

// Vector is a Cartesian position or direction in machine units (mm)
type Vector [MaxAxes]float64

// Steps is a per-actuator step count
type Steps [MaxAxes]int32

// DirBits is a per-actuator direction mask. A set bit means the actuator
// moves in the negative direction.
type DirBits uint8

// Sub returns v - o
func (v Vector) Sub(o Vector) Vector {
	var r Vector
	for i := range v {
		r[i] = v[i] - o[i]
	}
	return r
}

// Scale returns v * k
func (v Vector) Scale(k float64) Vector {
	var r Vector
	for i := range v {
		r[i] = v[i] * k
	}
	return r
}

// Dot returns the dot product of v and o
func (v Vector) Dot(o Vector) float64 {
	var s float64
	for i := range v {
		s += v[i] * o[i]
	}
	return s
}

// Norm returns the euclidean length of v
func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Sub returns s - o
func (s Steps) Sub(o Steps) Steps {
	var r Steps
	for i := range s {
		r[i] = s[i] - o[i]
	}
	return r
}

// Has reports whether the direction bit for axis is set
func (d DirBits) Has(axis int) bool {
	return d&(1<<axis) != 0
}
