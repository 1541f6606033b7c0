package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SunLight is the directional light the sky is lit by. The light travels along its
// local -Z axis, so the identity rotation puts the sun at the zenith.
type SunLight struct {
	Rotation  mgl32.Quat
	Color     mgl32.Vec3
	Intensity float32
}

func NewSunLight() *SunLight {
	return &SunLight{
		Rotation:  mgl32.QuatIdent(),
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 20.0,
	}
}

// Forward is the direction the light travels in.
func (s *SunLight) Forward() mgl32.Vec3 {
	return s.Rotation.Normalize().Rotate(mgl32.Vec3{0, 0, -1})
}

func (s *SunLight) Radiance() mgl32.Vec3 {
	return s.Color.Mul(s.Intensity)
}

// SunDirection returns the unit vector pointing towards the sun, or the zero vector
// when there is no sun. The compositor treats zero as "no direct sun".
func SunDirection(s *SunLight) mgl32.Vec3 {
	if s == nil {
		return mgl32.Vec3{}
	}
	return s.Forward().Mul(-1)
}
