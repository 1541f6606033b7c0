package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/pbrsky/skyrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	SharedConstantsSize = 160
	DrawConstantsSize   = 96
)

// EncodeSharedConstants lays out c as the WGSL SharedConstants struct.
func EncodeSharedConstants(c core.SharedConstants) []byte {
	buf := make([]byte, 0, SharedConstantsSize)
	for _, f := range []float32{
		c.PlanetaryRadius,
		c.RcpPlanetaryRadius,
		c.AtmosphericDepth,
		c.RcpAtmosphericDepth,
		c.PlanetaryRadiusSquared,
		c.AtmosphericRadiusSquared,
		c.AerosolAnisotropy,
		c.AerosolPhasePartConstant,
		c.AirDensityFalloff,
		c.AirScaleHeight,
		c.AerosolDensityFalloff,
		c.AerosolScaleHeight,
	} {
		buf = append(buf, float32ToBytes(f)...)
	}
	for _, v := range []mgl32.Vec3{
		c.AirSeaLevelExtinction,
		c.AerosolSeaLevelExtinction,
		c.AirSeaLevelScattering,
		c.AerosolSeaLevelScattering,
		c.GroundAlbedo,
		c.PlanetCenterPosition,
		c.SunRadiance,
	} {
		buf = append(buf, vec3ToBytesPadded(v)...)
	}
	return buf
}

// EncodeDrawConstants lays out p as the WGSL DrawConstants struct.
func EncodeDrawConstants(p DrawParams) []byte {
	buf := make([]byte, 0, DrawConstantsSize)
	buf = append(buf, mat4ToBytes(p.PixelCoordToViewDir)...)

	sun := vec3ToBytesPadded(p.SunDirection)
	binary.LittleEndian.PutUint32(sun[12:16], uint32(p.Mode))
	buf = append(buf, sun...)

	buf = append(buf, vec3ToBytesPadded(p.CameraPosition)...)
	return buf
}

func mat4ToBytes(m mgl32.Mat4) []byte {
	buf := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func vec3ToBytesPadded(v mgl32.Vec3) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v[2]))
	return buf
}

func float32ToBytes(ff float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(ff))
	return buf
}
