package shaders

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed common.wgsl
var CommonWGSL string

//go:embed transmittance.wgsl
var TransmittanceWGSL string

//go:embed optical_depth.wgsl
var OpticalDepthWGSL string

//go:embed ground_irradiance_0.wgsl
var GroundIrradianceDirectWGSL string

//go:embed ground_irradiance_1.wgsl
var GroundIrradianceSkyWGSL string

//go:embed in_scattered_radiance_0.wgsl
var SingleScatteringWGSL string

//go:embed in_scattered_radiance_1.wgsl
var MultipleScatteringGatherWGSL string

//go:embed in_scattered_radiance_2.wgsl
var MultipleScatteringAccumulateWGSL string

//go:embed pbr_sky.wgsl
var PbrSkyWGSL string

const (
	ProgramOpticalDepth        = "optical_depth"
	ProgramGroundIrradiance    = "ground_irradiance"
	ProgramInScatteredRadiance = "in_scattered_radiance"
	ProgramPbrSky              = "pbr_sky"
)

const (
	ComputeEntryPoint = "main"
	VertexEntryPoint  = "vs_main"
)

func parts(program string, pass int) []string {
	switch program {
	case ProgramOpticalDepth:
		if pass == 0 {
			return []string{CommonWGSL, OpticalDepthWGSL}
		}
	case ProgramGroundIrradiance:
		switch pass {
		case 0:
			return []string{CommonWGSL, TransmittanceWGSL, GroundIrradianceDirectWGSL}
		case 1:
			return []string{CommonWGSL, TransmittanceWGSL, GroundIrradianceSkyWGSL}
		}
	case ProgramInScatteredRadiance:
		switch pass {
		case 0:
			return []string{CommonWGSL, TransmittanceWGSL, SingleScatteringWGSL}
		case 1:
			return []string{CommonWGSL, TransmittanceWGSL, MultipleScatteringGatherWGSL}
		case 2:
			return []string{CommonWGSL, TransmittanceWGSL, MultipleScatteringAccumulateWGSL}
		}
	case ProgramPbrSky:
		if pass == 0 || pass == 1 {
			return []string{CommonWGSL, TransmittanceWGSL, PbrSkyWGSL}
		}
	}
	return nil
}

// Source assembles the WGSL module for one pass of a program. The prelude carries the
// table layout constants and goes first.
func Source(prelude, program string, pass int) (string, error) {
	p := parts(program, pass)
	if p == nil {
		return "", fmt.Errorf("no shader source for %s pass %d", program, pass)
	}
	var sb strings.Builder
	sb.WriteString(prelude)
	for _, s := range p {
		sb.WriteString("\n")
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// EntryPoint names the entry point a program pass runs. For the composite program it is
// the fragment stage; reflection capture is pass 0, the on-screen view pass 1.
func EntryPoint(program string, pass int) string {
	if program == ProgramPbrSky {
		if pass == 0 {
			return "fs_capture"
		}
		return "fs_view"
	}
	return ComputeEntryPoint
}
