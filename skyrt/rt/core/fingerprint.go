package core

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Fingerprint hashes every field that affects the precomputed tables.
// Hashing is bit exact with no quantization, except that -0 is folded into +0 so
// parameter sets that compare equal by value always produce the same key.
func Fingerprint(p SkyParameters) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 4)

	writeF := func(f float32) {
		if f == 0 {
			f = 0
		}
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		h.Write(buf)
	}
	writeV := func(v mgl32.Vec3) {
		writeF(v[0])
		writeF(v[1])
		writeF(v[2])
	}

	writeF(p.PlanetaryRadius)
	writeF(p.AtmosphericDepth)
	writeF(p.AerosolAnisotropy)
	writeF(p.AirDensityFalloff)
	writeF(p.AerosolDensityFalloff)
	writeV(p.AirThickness)
	writeV(p.AerosolThickness)
	writeV(p.AirAlbedo)
	writeV(p.AerosolAlbedo)
	writeV(p.GroundAlbedo)
	writeV(p.PlanetCenterPosition)
	writeV(p.SunRadiance)

	return h.Sum64()
}

// PhaseConstant is the constant part of the Cornette-Shanks phase function.
func PhaseConstant(g float32) float32 {
	gg := float64(g) * float64(g)
	return float32((3.0 / (8.0 * math.Pi)) * (1.0 - gg) / (2.0 + gg))
}
