package gpu

import (
	"fmt"

	"github.com/gekko3d/pbrsky/skyrt/rt/shaders"
)

// Bind point names shared with the WGSL sources. Storage targets end in Table,
// sampled inputs in Texture.
const (
	BindOpticalDepthTable            = "opticalDepthTable"
	BindOpticalDepthTexture          = "opticalDepthTexture"
	BindGroundIrradianceTable        = "groundIrradianceTable"
	BindGroundIrradianceTexture      = "groundIrradianceTexture"
	BindAirSingleScatteringTable     = "airSingleScatteringTable"
	BindAirSingleScatteringTexture   = "airSingleScatteringTexture"
	BindAerosolSingleScatteringTable = "aerosolSingleScatteringTable"
	BindAerosolSingleScatteringTex   = "aerosolSingleScatteringTexture"
	BindMultipleScatteringTable      = "multipleScatteringTable"
	BindMultipleScatteringTexture    = "multipleScatteringTexture"

	BindConstants = "constants"
	BindDraw      = "draw"
	BindSampler   = "linearClampSampler"
)

// Stage is one compute dispatch of the precomputation.
type Stage struct {
	Label    string
	Program  string
	Pass     int
	Bounce   int // 0 for the optical depth stage
	Extent   Extent
	Bindings []TableBinding
}

func (s Stage) Reads() []TableID  { return s.tables(AccessRead) }
func (s Stage) Writes() []TableID { return s.tables(AccessWrite) }

func (s Stage) tables(a Access) []TableID {
	var ids []TableID
	for _, b := range s.Bindings {
		if b.Access == a {
			ids = append(ids, b.Table)
		}
	}
	return ids
}

// Graph is the ordered list of dispatches. Order is execution order; the dependency
// edges are implied by which stage last wrote a table.
type Graph struct {
	Stages []Stage
}

// BouncePasses returns the pass range of the radiance program for bounce k (1-based).
// Bounce 1 runs pass 0 (single scattering); every later bounce runs passes 1 and 2
// (gather, then accumulate).
func BouncePasses(k int) (firstPass, numPasses int) {
	return min(k-1, 1), min(k, 2)
}

// BuildPrecomputeGraph lays out the optical depth stage followed by numBounces
// iterations of in-scattered radiance passes, each followed by a ground pass.
func BuildPrecomputeGraph(numBounces int) (*Graph, error) {
	if numBounces < 1 {
		return nil, fmt.Errorf("invalid bounce count %d", numBounces)
	}

	g := &Graph{}
	g.Stages = append(g.Stages, Stage{
		Label:   "Sky Optical Depth",
		Program: shaders.ProgramOpticalDepth,
		Pass:    0,
		Extent:  DescribeTable(OpticalDepthTable).Size,
		Bindings: []TableBinding{
			{Name: BindOpticalDepthTable, Table: OpticalDepthTable, Access: AccessWrite},
		},
	})

	radianceExtent := DescribeTable(AirSingleScatteringTable).Size
	groundExtent := DescribeTable(GroundIrradianceTable).Size

	for k := 1; k <= numBounces; k++ {
		firstPass, numPasses := BouncePasses(k)
		for pass := firstPass; pass < firstPass+numPasses; pass++ {
			g.Stages = append(g.Stages, Stage{
				Label:    fmt.Sprintf("Sky In-Scattered Radiance k=%d pass=%d", k, pass),
				Program:  shaders.ProgramInScatteredRadiance,
				Pass:     pass,
				Bounce:   k,
				Extent:   radianceExtent,
				Bindings: radianceBindings(pass),
			})
		}
		g.Stages = append(g.Stages, Stage{
			Label:    fmt.Sprintf("Sky Ground Irradiance k=%d pass=%d", k, firstPass),
			Program:  shaders.ProgramGroundIrradiance,
			Pass:     firstPass,
			Bounce:   k,
			Extent:   groundExtent,
			Bindings: groundBindings(firstPass),
		})
	}
	return g, nil
}

func radianceBindings(pass int) []TableBinding {
	switch pass {
	case 0:
		return []TableBinding{
			{Name: BindOpticalDepthTexture, Table: OpticalDepthTable, Access: AccessRead},
			{Name: BindGroundIrradianceTexture, Table: GroundIrradianceTable, Access: AccessUnsampled},
			{Name: BindAirSingleScatteringTable, Table: AirSingleScatteringTable, Access: AccessWrite},
			{Name: BindAerosolSingleScatteringTable, Table: AerosolSingleScatteringTable, Access: AccessWrite},
		}
	case 1:
		return []TableBinding{
			{Name: BindOpticalDepthTexture, Table: OpticalDepthTable, Access: AccessRead},
			{Name: BindGroundIrradianceTexture, Table: GroundIrradianceTable, Access: AccessRead},
			{Name: BindAirSingleScatteringTexture, Table: AirSingleScatteringTable, Access: AccessRead},
			{Name: BindAerosolSingleScatteringTex, Table: AerosolSingleScatteringTable, Access: AccessRead},
			{Name: BindMultipleScatteringTable, Table: MultipleScatteringWorkTable, Access: AccessWrite},
		}
	default:
		return []TableBinding{
			{Name: BindOpticalDepthTexture, Table: OpticalDepthTable, Access: AccessRead},
			{Name: BindGroundIrradianceTexture, Table: GroundIrradianceTable, Access: AccessUnsampled},
			{Name: BindMultipleScatteringTexture, Table: MultipleScatteringWorkTable, Access: AccessRead},
			{Name: BindMultipleScatteringTable, Table: MultipleScatteringTable, Access: AccessWrite},
		}
	}
}

func groundBindings(pass int) []TableBinding {
	if pass == 0 {
		return []TableBinding{
			{Name: BindOpticalDepthTexture, Table: OpticalDepthTable, Access: AccessRead},
			{Name: BindGroundIrradianceTable, Table: GroundIrradianceTable, Access: AccessWrite},
		}
	}
	return []TableBinding{
		{Name: BindOpticalDepthTexture, Table: OpticalDepthTable, Access: AccessRead},
		{Name: BindAirSingleScatteringTexture, Table: AirSingleScatteringTable, Access: AccessRead},
		{Name: BindAerosolSingleScatteringTex, Table: AerosolSingleScatteringTable, Access: AccessRead},
		{Name: BindMultipleScatteringTexture, Table: MultipleScatteringTable, Access: AccessRead},
		{Name: BindGroundIrradianceTable, Table: GroundIrradianceTable, Access: AccessWrite},
	}
}

// Validate checks that every table a stage reads was written by an earlier stage and
// that no stage reads and writes the same table.
func (g *Graph) Validate() error {
	written := make(map[TableID]bool)
	for i, s := range g.Stages {
		writes := make(map[TableID]bool)
		for _, id := range s.Writes() {
			writes[id] = true
		}
		for _, id := range s.Reads() {
			if writes[id] {
				return fmt.Errorf("stage %d (%s) reads and writes %s: %w", i, s.Label, id, ErrHazard)
			}
			if !written[id] {
				return fmt.Errorf("stage %d (%s) reads %s: %w", i, s.Label, id, ErrHazard)
			}
		}
		for id := range writes {
			written[id] = true
		}
	}
	return nil
}

// Written reports which tables the graph fills.
func (g *Graph) Written() map[TableID]bool {
	out := make(map[TableID]bool)
	for _, s := range g.Stages {
		for _, id := range s.Writes() {
			out[id] = true
		}
	}
	return out
}

// Groups returns the dispatch grid for an extent and workgroup size. The workgroup
// must tile the extent exactly.
func Groups(extent Extent, workgroup [3]uint32) ([3]uint32, error) {
	dims := [3]uint32{extent.Width, extent.Height, extent.Depth}
	var groups [3]uint32
	for i := range dims {
		if workgroup[i] == 0 || dims[i]%workgroup[i] != 0 {
			return groups, fmt.Errorf("extent %v, workgroup %v: %w", dims, workgroup, ErrWorkgroup)
		}
		groups[i] = dims[i] / workgroup[i]
	}
	return groups, nil
}
