package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SkyParameters is the physical configuration the lookup tables are computed from.
// Distances are in kilometers. Thickness is the sea-level extinction in 1/Mm; the
// kernels receive it converted to 1/km.
type SkyParameters struct {
	PlanetaryRadius       float32    `json:"planetary_radius"`  // R
	AtmosphericDepth      float32    `json:"atmospheric_depth"` // H
	AerosolAnisotropy     float32    `json:"aerosol_anisotropy"`
	AirDensityFalloff     float32    `json:"air_density_falloff"`
	AerosolDensityFalloff float32    `json:"aerosol_density_falloff"`
	AirThickness          mgl32.Vec3 `json:"air_thickness"`
	AerosolThickness      mgl32.Vec3 `json:"aerosol_thickness"`
	AirAlbedo             mgl32.Vec3 `json:"air_albedo"`
	AerosolAlbedo         mgl32.Vec3 `json:"aerosol_albedo"`
	GroundAlbedo          mgl32.Vec3 `json:"ground_albedo"`
	PlanetCenterPosition  mgl32.Vec3 `json:"planet_center_position"`
	SunRadiance           mgl32.Vec3 `json:"sun_radiance"`
}

// DefaultEarthParameters returns an earth-like atmosphere. The world is Z-up and the
// planet center sits one radius below the origin.
func DefaultEarthParameters() SkyParameters {
	const r = 6378.0
	return SkyParameters{
		PlanetaryRadius:       r,
		AtmosphericDepth:      100.0,
		AerosolAnisotropy:     0.76,
		AirDensityFalloff:     1.0 / 8.0,
		AerosolDensityFalloff: 1.0 / 1.2,
		AirThickness:          mgl32.Vec3{5.8, 13.5, 33.1},
		AerosolThickness:      mgl32.Vec3{4.4, 4.4, 4.4},
		AirAlbedo:             mgl32.Vec3{1, 1, 1},
		AerosolAlbedo:         mgl32.Vec3{0.9, 0.9, 0.9},
		GroundAlbedo:          mgl32.Vec3{0.3, 0.3, 0.3},
		PlanetCenterPosition:  mgl32.Vec3{0, 0, -r},
		SunRadiance:           mgl32.Vec3{20, 20, 20},
	}
}

// SceneState is what the renderer reads from the owning scene every frame.
type SceneState struct {
	Sky    SkyParameters
	Sun    *SunLight // nil when the scene has no sun
	Camera *CameraState
}

// Update derives the parameter set used for precomputation from the scene.
// The sun direction is deliberately left out; it only affects the composite draw.
func Update(state SceneState) SkyParameters {
	p := state.Sky
	if state.Sun != nil {
		p.SunRadiance = state.Sun.Radiance()
	}
	return p
}
