package cpnative

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/physbridge/physics/native"
)

// The backend simulates the XY plane. Z components are dropped on the way in
// and zero on the way out; rotations are about Z.
var axisZ = mgl64.Vec3{0, 0, 1}

func toCP(v mgl64.Vec3) cp.Vector {
	return cp.Vector{X: v[0], Y: v[1]}
}

func fromCP(v cp.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, 0}
}

func angleQuat(angle float64) mgl64.Quat {
	return mgl64.QuatRotate(angle, axisZ)
}

// quatAngle returns the rotation of q about Z.
func quatAngle(q mgl64.Quat) float64 {
	x := q.Rotate(mgl64.Vec3{1, 0, 0})
	return math.Atan2(x[1], x[0])
}

func shapeFilter(group native.BodyID, layer native.ObjectLayer, mask native.LayerMask) cp.ShapeFilter {
	return cp.ShapeFilter{
		Group:      uint(group),
		Categories: uint(layer.Bit()),
		Mask:       uint(mask),
	}
}

// newShape builds the cp shape for spec on body.
func newShape(body *cp.Body, spec native.ShapeSpec) (*cp.Shape, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case native.ShapeBox:
		return cp.NewBox(body, 2*spec.HalfExtents[0], 2*spec.HalfExtents[1], 0), nil
	case native.ShapeSphere:
		return cp.NewCircle(body, spec.Radius, cp.Vector{}), nil
	default:
		a := cp.Vector{X: 0, Y: -spec.HalfHeight}
		b := cp.Vector{X: 0, Y: spec.HalfHeight}
		return cp.NewSegment(body, a, b, spec.Radius), nil
	}
}

// bottom is the distance from the shape's center to its lowest point.
func bottom(spec native.ShapeSpec) float64 {
	switch spec.Kind {
	case native.ShapeBox:
		return spec.HalfExtents[1]
	case native.ShapeSphere:
		return spec.Radius
	default:
		return spec.HalfHeight + spec.Radius
	}
}

// halfWidth is the horizontal reach of the shape used to place ground probes.
func halfWidth(spec native.ShapeSpec) float64 {
	switch spec.Kind {
	case native.ShapeBox:
		return spec.HalfExtents[0]
	default:
		return spec.Radius
	}
}
