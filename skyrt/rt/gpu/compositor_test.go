package gpu_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"
	"github.com/gekko3d/pbrsky/skyrt/rt/gpu/gputest"
	"github.com/gekko3d/pbrsky/skyrt/rt/shaders"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCompositor(t *testing.T, b *gputest.Backend) (*gpu.Compositor, *gpu.TableStore) {
	t.Helper()
	p, store := buildPrecomputer(t, b, 2)
	c := gpu.NewCompositor()
	require.NoError(t, c.Build(b, store, p.Graph().Written()))
	return c, store
}

func TestCompositorModeSelectsPass(t *testing.T) {
	b := gputest.NewBackend()
	c, store := buildCompositor(t, b)
	target := gputest.Target{Width: 64, Height: 32}

	s, err := store.BeginStream(b, "frame")
	require.NoError(t, err)
	require.NoError(t, c.Record(s, gpu.DrawParams{Mode: gpu.ModeView}, target))
	require.NoError(t, c.Record(s, gpu.DrawParams{Mode: gpu.ModeReflectionCapture}, target))

	draws := b.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, shaders.ProgramPbrSky, draws[0].Program)
	assert.Equal(t, 1, draws[0].Pass)
	assert.Equal(t, 0, draws[1].Pass)
}

func TestCompositorOnlyReads(t *testing.T) {
	b := gputest.NewBackend()
	c, store := buildCompositor(t, b)

	s, err := store.BeginStream(b, "frame")
	require.NoError(t, err)
	require.NoError(t, c.Record(s, gpu.DrawParams{Mode: gpu.ModeView}, gputest.Target{Width: 8, Height: 8}))

	draws := b.Draws()
	require.Len(t, draws, 1)
	for _, bnd := range draws[0].Bindings {
		assert.Equal(t, gpu.AccessRead, bnd.Access)
	}
	assert.Len(t, draws[0].Bindings, 5)
}

func TestCompositorUploadsDrawConstants(t *testing.T) {
	b := gputest.NewBackend()
	c, store := buildCompositor(t, b)

	s, err := store.BeginStream(b, "frame")
	require.NoError(t, err)
	params := gpu.DrawParams{
		PixelCoordToViewDir: mgl32.Ident4(),
		SunDirection:        mgl32.Vec3{},
		Mode:                gpu.ModeReflectionCapture,
	}
	require.NoError(t, c.Record(s, params, gputest.Target{Width: 8, Height: 8}))

	uniforms := b.Filter(gputest.CallUniform)
	require.Len(t, uniforms, 1)
	data := uniforms[0].Data
	assert.Equal(t, gpu.UniformDraw, uniforms[0].Slot)
	require.Len(t, data, gpu.DrawConstantsSize)

	// Zero sun vector is passed through untouched.
	for i := 64; i < 76; i += 4 {
		assert.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	assert.Equal(t, uint32(gpu.ModeReflectionCapture), binary.LittleEndian.Uint32(data[76:]))
}

func TestCompositorRejectsUnwrittenTables(t *testing.T) {
	b := gputest.NewBackend()
	p, store := buildPrecomputer(t, b, 1)

	// One bounce never fills the multiple scattering table.
	err := gpu.NewCompositor().Build(b, store, p.Graph().Written())
	assert.ErrorIs(t, err, gpu.ErrHazard)
}

func TestCompositorMissingProgram(t *testing.T) {
	b := gputest.NewBackend()
	b.RemoveKernel(shaders.ProgramPbrSky, 1)
	p, store := buildPrecomputer(t, b, 2)

	err := gpu.NewCompositor().Build(b, store, p.Graph().Written())
	assert.ErrorIs(t, err, gpu.ErrMissingKernel)
}

func TestCompositorRecordBeforeBuild(t *testing.T) {
	b := gputest.NewBackend()
	store := gpu.NewTableStore()
	require.NoError(t, store.Allocate(b))
	s, err := store.BeginStream(b, "frame")
	require.NoError(t, err)
	err = gpu.NewCompositor().Record(s, gpu.DrawParams{}, gputest.Target{Width: 1, Height: 1})
	assert.ErrorIs(t, err, gpu.ErrNotBuilt)
}
