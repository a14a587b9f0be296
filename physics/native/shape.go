package native

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

type ShapeKind string

const (
	ShapeBox        ShapeKind = "box"
	ShapeSphere     ShapeKind = "sphere"
	ShapeCapsule    ShapeKind = "capsule"
	ShapeMesh       ShapeKind = "mesh"
	ShapeConvexHull ShapeKind = "convex_hull"
)

type MotionType string

const (
	MotionStatic    MotionType = "static"
	MotionKinematic MotionType = "kinematic"
	MotionDynamic   MotionType = "dynamic"
)

// ShapeSpec describes the collision shape of a body.
type ShapeSpec struct {
	Kind        ShapeKind  `yaml:"kind"`
	HalfExtents mgl64.Vec3 `yaml:"half_extents"`
	Radius      float64    `yaml:"radius"`
	HalfHeight  float64    `yaml:"half_height"`
}

// Validate checks the dimensions that apply to the shape's kind.
func (s ShapeSpec) Validate() error {
	switch s.Kind {
	case ShapeBox:
		if s.HalfExtents[0] <= 0 || s.HalfExtents[1] <= 0 {
			return fmt.Errorf("native: box half extents %v: %w", s.HalfExtents, ErrUnsupportedShape)
		}
	case ShapeSphere:
		if s.Radius <= 0 {
			return fmt.Errorf("native: sphere radius %g: %w", s.Radius, ErrUnsupportedShape)
		}
	case ShapeCapsule:
		if s.Radius <= 0 || s.HalfHeight < 0 {
			return fmt.Errorf("native: capsule radius %g half height %g: %w", s.Radius, s.HalfHeight, ErrUnsupportedShape)
		}
	default:
		return fmt.Errorf("native: shape kind %q: %w", s.Kind, ErrUnsupportedShape)
	}
	return nil
}

// BodySpec describes a body to create.
type BodySpec struct {
	Name        string      `yaml:"name"`
	Shape       ShapeSpec   `yaml:"shape"`
	Motion      MotionType  `yaml:"motion"`
	Position    mgl64.Vec3  `yaml:"position"`
	Velocity    mgl64.Vec3  `yaml:"velocity"`
	Angle       float64     `yaml:"angle"`
	Mass        float64     `yaml:"mass"`
	Friction    float64     `yaml:"friction"`
	Restitution float64     `yaml:"restitution"`
	Sensor      bool        `yaml:"sensor"`
	Layer       ObjectLayer `yaml:"layer"`
	// SurfaceVelocity is the configured local linear surface velocity
	// (conveyor belts, moving platforms).
	SurfaceVelocity mgl64.Vec3 `yaml:"surface_velocity"`
}

// CharacterSpec describes a virtual character to create.
type CharacterSpec struct {
	Shape         ShapeSpec   `yaml:"shape"`
	Position      mgl64.Vec3  `yaml:"position"`
	Mass          float64     `yaml:"mass"`
	MaxSlopeAngle float64     `yaml:"max_slope_angle"`
	Layer         ObjectLayer `yaml:"layer"`
	Mask          LayerMask   `yaml:"mask"`
}
