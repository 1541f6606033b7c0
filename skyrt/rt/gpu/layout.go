package gpu

import (
	"fmt"
	"strings"
)

// Table resolution. These match the reference sky and are not configurable.
const (
	OpticalDepthSize     = 128 // height x view zenith
	GroundIrradianceSize = 128 // sun zenith

	ViewZenithCount  = 128
	HeightCount      = 32
	AzimuthCount     = 16 // light azimuth relative to the view, [0, pi]
	LightZenithCount = 64

	// PackedDepthCount is the depth of a radiance table: azimuth and light zenith share one axis.
	PackedDepthCount = AzimuthCount * LightZenithCount
)

// Strides of the two logical axes folded into the radiance depth axis. Light zenith
// must stay at stride 1: the sky pass filters it linearly along depth.
const (
	AzimuthStride     = LightZenithCount
	LightZenithStride = 1
)

// PackedDepth folds (azimuth, light zenith) bucket indices into the depth axis of a
// 3D radiance table. The kernels get the same mapping from LayoutPrelude.
func PackedDepth(azimuth, lightZenith uint32) uint32 {
	return azimuth*AzimuthStride + lightZenith*LightZenithStride
}

// UnpackDepth is the inverse of PackedDepth.
func UnpackDepth(depth uint32) (azimuth, lightZenith uint32) {
	return (depth / AzimuthStride) % AzimuthCount, (depth / LightZenithStride) % LightZenithCount
}

// RadianceSlice is the depth slice holding one (azimuth, light zenith) pair of a
// radiance table.
func RadianceSlice(azimuth, lightZenith uint32) (uint32, error) {
	if azimuth >= AzimuthCount || lightZenith >= LightZenithCount {
		return 0, fmt.Errorf("radiance bucket (%d, %d) out of range", azimuth, lightZenith)
	}
	return PackedDepth(azimuth, lightZenith), nil
}

type TableID int

const (
	OpticalDepthTable TableID = iota
	GroundIrradianceTable
	AirSingleScatteringTable     // radiance slot 0
	AerosolSingleScatteringTable // radiance slot 1
	MultipleScatteringTable      // radiance slot 2, accumulated
	MultipleScatteringWorkTable  // radiance slot 3, gather output

	tableCount
)

// AllTables lists every table in allocation order.
func AllTables() []TableID {
	ids := make([]TableID, 0, tableCount)
	for id := TableID(0); id < tableCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// InScatteredRadianceSlot maps a radiance slot index (0-3) to its table.
func InScatteredRadianceSlot(slot int) TableID {
	return AirSingleScatteringTable + TableID(slot)
}

func (id TableID) String() string {
	switch id {
	case OpticalDepthTable:
		return "OpticalDepth"
	case GroundIrradianceTable:
		return "GroundIrradiance"
	case AirSingleScatteringTable:
		return "AirSingleScattering"
	case AerosolSingleScatteringTable:
		return "AerosolSingleScattering"
	case MultipleScatteringTable:
		return "MultipleScattering"
	case MultipleScatteringWorkTable:
		return "MultipleScatteringWork"
	}
	return fmt.Sprintf("Table(%d)", int(id))
}

type Dimension int

const (
	Dimension2D Dimension = iota
	Dimension3D
)

type Extent struct {
	Width, Height, Depth uint32
}

// TableDesc describes the storage of one table. Every table is RGBA16Float.
type TableDesc struct {
	ID        TableID
	Label     string
	Dimension Dimension
	Size      Extent
}

func DescribeTable(id TableID) TableDesc {
	d := TableDesc{ID: id, Label: "Sky " + id.String()}
	switch id {
	case OpticalDepthTable:
		d.Dimension = Dimension2D
		d.Size = Extent{OpticalDepthSize, OpticalDepthSize, 1}
	case GroundIrradianceTable:
		d.Dimension = Dimension2D
		d.Size = Extent{GroundIrradianceSize, 1, 1}
	default:
		d.Dimension = Dimension3D
		d.Size = Extent{ViewZenithCount, HeightCount, PackedDepthCount}
	}
	return d
}

// Every kernel addresses the packed axis through these functions only.
const packedDepthWGSL = `
fn packDepth(azimuth: u32, lightZenith: u32) -> u32 {
    return azimuth * AZIMUTH_STRIDE + lightZenith * LIGHT_ZENITH_STRIDE;
}

fn depthAzimuth(depth: u32) -> u32 {
    return (depth / AZIMUTH_STRIDE) % AZIMUTH_COUNT;
}

fn depthLightZenith(depth: u32) -> u32 {
    return (depth / LIGHT_ZENITH_STRIDE) % LIGHT_ZENITH_COUNT;
}

fn packedDepthCoord(azimuth: u32, lightZenith: f32) -> f32 {
    return (f32(packDepth(azimuth, 0u)) + lightZenith * f32(LIGHT_ZENITH_STRIDE) + 0.5) / f32(PACKED_DEPTH);
}
`

// LayoutPrelude is the WGSL that gives kernels the same table layout as the host.
func LayoutPrelude() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "const OPTICAL_DEPTH_SIZE: u32 = %du;\n", OpticalDepthSize)
	fmt.Fprintf(&sb, "const GROUND_IRRADIANCE_SIZE: u32 = %du;\n", GroundIrradianceSize)
	fmt.Fprintf(&sb, "const VIEW_ZENITH_COUNT: u32 = %du;\n", ViewZenithCount)
	fmt.Fprintf(&sb, "const HEIGHT_COUNT: u32 = %du;\n", HeightCount)
	fmt.Fprintf(&sb, "const AZIMUTH_COUNT: u32 = %du;\n", AzimuthCount)
	fmt.Fprintf(&sb, "const LIGHT_ZENITH_COUNT: u32 = %du;\n", LightZenithCount)
	fmt.Fprintf(&sb, "const PACKED_DEPTH: u32 = %du;\n", PackedDepthCount)
	fmt.Fprintf(&sb, "const AZIMUTH_STRIDE: u32 = %du;\n", AzimuthStride)
	fmt.Fprintf(&sb, "const LIGHT_ZENITH_STRIDE: u32 = %du;\n", LightZenithStride)
	sb.WriteString(packedDepthWGSL)
	return sb.String()
}
