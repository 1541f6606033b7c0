package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SharedConstants is the kernel-facing view of SkyParameters. It is uploaded once per
// precomputation and stays bound for the composite draw until the next one.
type SharedConstants struct {
	PlanetaryRadius          float32
	RcpPlanetaryRadius       float32
	AtmosphericDepth         float32
	RcpAtmosphericDepth      float32
	PlanetaryRadiusSquared   float32
	AtmosphericRadiusSquared float32
	AerosolAnisotropy        float32
	AerosolPhasePartConstant float32

	AirDensityFalloff     float32
	AirScaleHeight        float32
	AerosolDensityFalloff float32
	AerosolScaleHeight    float32

	AirSeaLevelExtinction     mgl32.Vec3 // 1/km
	AerosolSeaLevelExtinction mgl32.Vec3 // 1/km
	AirSeaLevelScattering     mgl32.Vec3 // 1/km
	AerosolSeaLevelScattering mgl32.Vec3 // 1/km

	GroundAlbedo         mgl32.Vec3
	PlanetCenterPosition mgl32.Vec3
	SunRadiance          mgl32.Vec3
}

// DeriveConstants converts parameters to kernel constants. Values are not validated
// or clamped: a zero radius produces Inf reciprocals that show up in the tables.
func DeriveConstants(p SkyParameters) SharedConstants {
	r := p.PlanetaryRadius
	h := p.AtmosphericDepth

	const perMm = 0.001

	return SharedConstants{
		PlanetaryRadius:          r,
		RcpPlanetaryRadius:       1.0 / r,
		AtmosphericDepth:         h,
		RcpAtmosphericDepth:      1.0 / h,
		PlanetaryRadiusSquared:   r * r,
		AtmosphericRadiusSquared: (r + h) * (r + h),
		AerosolAnisotropy:        p.AerosolAnisotropy,
		AerosolPhasePartConstant: PhaseConstant(p.AerosolAnisotropy),

		AirDensityFalloff:     p.AirDensityFalloff,
		AirScaleHeight:        1.0 / p.AirDensityFalloff,
		AerosolDensityFalloff: p.AerosolDensityFalloff,
		AerosolScaleHeight:    1.0 / p.AerosolDensityFalloff,

		AirSeaLevelExtinction:     p.AirThickness.Mul(perMm),
		AerosolSeaLevelExtinction: p.AerosolThickness.Mul(perMm),
		AirSeaLevelScattering:     mulComponents(p.AirAlbedo, p.AirThickness).Mul(perMm),
		AerosolSeaLevelScattering: mulComponents(p.AerosolAlbedo, p.AerosolThickness).Mul(perMm),

		GroundAlbedo:         p.GroundAlbedo,
		PlanetCenterPosition: p.PlanetCenterPosition,
		SunRadiance:          p.SunRadiance,
	}
}

func mulComponents(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
