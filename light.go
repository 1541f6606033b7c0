package pbrsky

import (
	"math"
	"time"

	"github.com/gekko3d/pbrsky/skyrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sixdouglas/suncalc"
)

// SunLightComponent is the directional light that drives the sky. Color times
// Intensity is the sun radiance used by the precomputation; Rotation only moves the
// sun disk and the lit side of the sky.
type SunLightComponent struct {
	Color     [3]float32 `json:"color"`
	Intensity float32    `json:"intensity"`
	Rotation  mgl32.Quat `json:"rotation"`
}

func DefaultSunLight() SunLightComponent {
	return SunLightComponent{
		Color:     [3]float32{1, 1, 1},
		Intensity: 20,
		Rotation:  mgl32.QuatIdent(),
	}
}

func (s SunLightComponent) toCore() *core.SunLight {
	return &core.SunLight{
		Rotation:  s.Rotation,
		Color:     mgl32.Vec3(s.Color),
		Intensity: s.Intensity,
	}
}

// Direction points from the ground towards the sun.
func (s SunLightComponent) Direction() mgl32.Vec3 {
	sun := s.toCore()
	return core.SunDirection(sun)
}

// PointAt rotates the light so that it shines along -dir.
func (s *SunLightComponent) PointAt(dir mgl32.Vec3) {
	s.Rotation = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, dir.Normalize().Mul(-1))
}

// SunFromGeo returns the direction to the sun at time t seen from latitude and
// longitude in degrees. The world is Z-up with +X east and +Y north.
func SunFromGeo(t time.Time, latitude, longitude float64) mgl32.Vec3 {
	p := suncalc.GetPosition(t, latitude, longitude)
	// suncalc measures azimuth from south, positive towards west.
	az := p.Azimuth + math.Pi
	al := p.Altitude
	return mgl32.Vec3{
		float32(math.Sin(az) * math.Cos(al)),
		float32(math.Cos(az) * math.Cos(al)),
		float32(math.Sin(al)),
	}
}
