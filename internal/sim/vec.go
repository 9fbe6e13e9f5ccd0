package sim

import "math"

// Vec2 is a point or direction on the ground plane. X runs across the arena,
// Y runs along it; the renderer maps Y onto its depth axis.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the component-wise sum of two vectors.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns the component-wise difference v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale multiplies both components by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Length returns the Euclidean magnitude.
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalized returns a unit vector in the same direction, or the zero vector
// when the input has no magnitude.
func (v Vec2) Normalized() Vec2 {
	length := v.Length()
	if length == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Y: v.Y / length}
}

// FacingAngle converts a direction vector into the facing convention used by
// the snapshot protocol: atan2 over (x, y) so that facing 0 points along +Y.
func FacingAngle(dir Vec2) float64 {
	return math.Atan2(dir.X, dir.Y)
}

// FacingVector is the inverse of FacingAngle.
func FacingVector(angle float64) Vec2 {
	return Vec2{X: math.Sin(angle), Y: math.Cos(angle)}
}

// WithinArc reports whether target sits inside the cone of halfArc radians
// around the facing angle, measured from origin. Targets exactly on the cone
// edge count as inside so hit classification stays a pure threshold check.
func WithinArc(origin Vec2, facing float64, halfArc float64, target Vec2) bool {
	to := target.Sub(origin)
	length := to.Length()
	if length == 0 {
		return true
	}
	fv := FacingVector(facing)
	dot := (to.X*fv.X + to.Y*fv.Y) / length
	// Guard acos domain against floating point drift.
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot) <= halfArc+1e-9
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
