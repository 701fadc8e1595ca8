// Package robot defines the host capabilities generated controllers call,
// the task catalog, and a mock world that backs them for local runs.
package robot

import (
	"fmt"
	"math"
)

// Vector is a 2D vector in meters or meters per second.
type Vector struct {
	X, Y float64
}

// Polar builds a vector from length and angle in radians.
func Polar(length, angle float64) Vector {
	return Vector{X: length * math.Cos(angle), Y: length * math.Sin(angle)}
}

func (v Vector) Add(o Vector) Vector { return Vector{v.X + o.X, v.Y + o.Y} }

func (v Vector) Sub(o Vector) Vector { return Vector{v.X - o.X, v.Y - o.Y} }

func (v Vector) Scale(s float64) Vector { return Vector{v.X * s, v.Y * s} }

func (v Vector) Neg() Vector { return Vector{-v.X, -v.Y} }

func (v Vector) Dot(o Vector) float64 { return v.X*o.X + v.Y*o.Y }

// Cross returns the z component of the 3D cross product.
func (v Vector) Cross(o Vector) float64 { return v.X*o.Y - v.Y*o.X }

func (v Vector) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Normalize returns the unit vector, or the zero vector unchanged.
func (v Vector) Normalize() Vector {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

func (v Vector) Dist(o Vector) float64 { return v.Sub(o).Norm() }

// Angle returns the direction in radians, in (-pi, pi].
func (v Vector) Angle() float64 { return math.Atan2(v.Y, v.X) }

// Rotate turns v counter-clockwise by theta radians.
func (v Vector) Rotate(theta float64) Vector {
	s, c := math.Sincos(theta)
	return Vector{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// Limit caps the length of v at max.
func (v Vector) Limit(max float64) Vector {
	if n := v.Norm(); n > max && n > 0 {
		return v.Scale(max / n)
	}
	return v
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g, %g)", v.X, v.Y)
}

// Object is something within perception range: another robot or an obstacle.
type Object struct {
	Type     string // "robot" or "obstacle"
	Position Vector
	Velocity Vector // zero for obstacles
	Radius   float64
}

// Range is the rectangular extent of the environment.
type Range struct {
	XMin, XMax, YMin, YMax float64
}

// Contains reports whether p lies inside r.
func (r Range) Contains(p Vector) bool {
	return p.X >= r.XMin && p.X <= r.XMax && p.Y >= r.YMin && p.Y <= r.YMax
}

// Clamp moves p onto the nearest point inside r shrunk by margin.
func (r Range) Clamp(p Vector, margin float64) Vector {
	return Vector{
		X: math.Max(r.XMin+margin, math.Min(r.XMax-margin, p.X)),
		Y: math.Max(r.YMin+margin, math.Min(r.YMax-margin, p.Y)),
	}
}

// Area is an unexplored region, identified by ID and its center.
type Area struct {
	ID       int
	Position Vector
}
