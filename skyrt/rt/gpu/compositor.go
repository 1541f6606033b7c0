package gpu

import (
	"fmt"

	"github.com/gekko3d/pbrsky/skyrt/rt/shaders"

	"github.com/go-gl/mathgl/mgl32"
)

// Mode selects the composite program pass.
type Mode uint32

const (
	ModeReflectionCapture Mode = 0
	ModeView              Mode = 1
)

func (m Mode) String() string {
	if m == ModeReflectionCapture {
		return "reflection-capture"
	}
	return "view"
}

type DrawParams struct {
	PixelCoordToViewDir mgl32.Mat4
	SunDirection        mgl32.Vec3 // towards the sun; zero when there is no sun
	CameraPosition      mgl32.Vec3
	Mode                Mode
}

// CompositorBindings are the tables the sky pass samples. It never writes a table.
func CompositorBindings() []TableBinding {
	return []TableBinding{
		{Name: BindOpticalDepthTexture, Table: OpticalDepthTable, Access: AccessRead},
		{Name: BindGroundIrradianceTexture, Table: GroundIrradianceTable, Access: AccessRead},
		{Name: BindAirSingleScatteringTexture, Table: AirSingleScatteringTable, Access: AccessRead},
		{Name: BindAerosolSingleScatteringTex, Table: AerosolSingleScatteringTable, Access: AccessRead},
		{Name: BindMultipleScatteringTexture, Table: MultipleScatteringTable, Access: AccessRead},
	}
}

// Compositor draws the sky from the current tables with one full-screen pass.
type Compositor struct {
	programs [2]Program
	bindings []ResolvedBinding
}

func NewCompositor() *Compositor {
	return &Compositor{}
}

// Build loads both composite passes. written is the set of tables the precomputation
// fills; sampling anything else is rejected.
func (c *Compositor) Build(b Backend, store *TableStore, written map[TableID]bool) error {
	c.Release()

	bindings := CompositorBindings()
	for _, tb := range bindings {
		if !written[tb.Table] {
			return fmt.Errorf("sky pass samples %s: %w", tb.Table, ErrHazard)
		}
	}

	var programs [2]Program
	for _, mode := range []Mode{ModeReflectionCapture, ModeView} {
		p, err := b.LoadProgram(shaders.ProgramPbrSky, int(mode))
		if err != nil {
			releasePrograms(programs)
			return fmt.Errorf("failed to load %s pass %d: %w", shaders.ProgramPbrSky, mode, err)
		}
		programs[mode] = p
		if err := checkBindings(p.Info(), bindings, BindConstants, BindDraw); err != nil {
			releasePrograms(programs)
			return err
		}
	}

	resolved, err := store.Resolve(bindings)
	if err != nil {
		releasePrograms(programs)
		return err
	}

	c.programs = programs
	c.bindings = resolved
	return nil
}

func (c *Compositor) Built() bool {
	return c.programs[0] != nil && c.programs[1] != nil
}

// Record writes the per-draw constants and encodes the full-screen draw.
func (c *Compositor) Record(s Stream, params DrawParams, target RenderTarget) error {
	if !c.Built() {
		return ErrNotBuilt
	}
	if params.Mode != ModeReflectionCapture && params.Mode != ModeView {
		return fmt.Errorf("unknown sky mode %d", params.Mode)
	}
	s.WriteUniform(UniformDraw, EncodeDrawConstants(params))
	label := "Sky Composite " + params.Mode.String()
	if err := s.DrawFullscreen(label, c.programs[params.Mode], c.bindings, target); err != nil {
		return fmt.Errorf("failed to draw sky: %w", err)
	}
	return nil
}

func (c *Compositor) Release() {
	releasePrograms(c.programs)
	c.programs = [2]Program{}
	c.bindings = nil
}

func releasePrograms(programs [2]Program) {
	for _, p := range programs {
		if p != nil {
			p.Release()
		}
	}
}
