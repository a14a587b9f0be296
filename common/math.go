package common

import "github.com/go-gl/mathgl/mgl64"

const (
	// InputEpsilon is the smallest input direction length that counts as intent.
	InputEpsilon = 1e-12
	// IdleSpeed is the desired speed under which a grounded character is idle.
	IdleSpeed = 0.01
	// GroundApproach is the vertical closing speed under which a character is
	// considered to be moving toward the ground.
	GroundApproach = 0.1
	// InertiaKeep and InertiaBlend are the per tick smoothing weights of the
	// desired velocity. They are not scaled by the time step.
	InertiaKeep  = 0.75
	InertiaBlend = 0.25
)

// WorldUp is the reference up direction rotations are composed against.
var WorldUp = mgl64.Vec3{0, 1, 0}

// VerticalComponent returns the signed length of v along up.
func VerticalComponent(v, up mgl64.Vec3) float64 {
	return v.Dot(up)
}

// Horizontal returns v with its component along up removed.
func Horizontal(v, up mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(up.Mul(v.Dot(up)))
}

// RotationBetween returns the minimal rotation taking from onto to.
func RotationBetween(from, to mgl64.Vec3) mgl64.Quat {
	if from.Len() == 0 || to.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(from.Normalize(), to.Normalize())
}

// IsZero reports whether v has zero magnitude.
func IsZero(v mgl64.Vec3) bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// ApproxVec compares a and b component-wise within an absolute tolerance.
func ApproxVec(a, b mgl64.Vec3, eps float64) bool {
	for i := range a {
		if d := a[i] - b[i]; d > eps || d < -eps {
			return false
		}
	}
	return true
}
