package app

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/gekko3d/pbrsky/skyrt/rt/core"
	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"
	"github.com/gekko3d/pbrsky/skyrt/rt/gpu/gputest"
	"github.com/gekko3d/pbrsky/skyrt/rt/shaders"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

const dispatchesPerRun = 6 // two bounces

type recordingLogger struct {
	debug, info, errors []string
}

func (l *recordingLogger) Debugf(f string, _ ...any) { l.debug = append(l.debug, f) }
func (l *recordingLogger) Infof(f string, _ ...any)  { l.info = append(l.info, f) }
func (l *recordingLogger) Warnf(string, ...any)      {}
func (l *recordingLogger) Errorf(f string, _ ...any) { l.errors = append(l.errors, f) }

func newScene() core.SceneState {
	cam := core.NewCameraState()
	return core.SceneState{
		Sky:    core.DefaultEarthParameters(),
		Sun:    core.NewSunLight(),
		Camera: cam,
	}
}

func view() ViewParams {
	return ViewParams{Width: 64, Height: 32, FovY: DefaultFovY}
}

func newRenderer(t *testing.T, opts Options) (*SkyRenderer, *gputest.Backend) {
	t.Helper()
	b := gputest.NewBackend()
	r := NewSkyRenderer(b, opts)
	require.NoError(t, r.Build())
	t.Cleanup(r.Cleanup)
	return r, b
}

func TestRenderSkyFixedParamsPrecomputesOnce(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()
	target := gputest.Target{Width: 64, Height: 32}

	require.NoError(t, r.RenderSky(scene, view(), false, target))
	require.NoError(t, r.RenderSky(scene, view(), false, target))

	assert.Equal(t, 1, r.Stats().Precomputations)
	assert.Len(t, b.Dispatches(), dispatchesPerRun)
	assert.Len(t, b.Draws(), 2)
	assert.Equal(t, core.Fresh, r.Stats().Cache)
	assert.Equal(t, core.Fingerprint(core.Update(scene)), r.Stats().LastFingerprint)
}

func TestRenderSkyParameterChangeRecomputes(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()
	target := gputest.Target{Width: 64, Height: 32}

	require.NoError(t, r.RenderSky(scene, view(), false, target))
	scene.Sky.GroundAlbedo = mgl32.Vec3{0.5, 0.5, 0.5}
	require.NoError(t, r.RenderSky(scene, view(), false, target))

	assert.Equal(t, 2, r.Stats().Precomputations)
	assert.Len(t, b.Dispatches(), 2*dispatchesPerRun)
}

func TestRenderSkySunColorRecomputesButDirectionDoesNot(t *testing.T) {
	r, _ := newRenderer(t, DefaultOptions())
	scene := newScene()
	target := gputest.Target{Width: 64, Height: 32}

	require.NoError(t, r.RenderSky(scene, view(), false, target))
	scene.Sun.Rotation = mgl32.QuatRotate(0.3, mgl32.Vec3{1, 0, 0})
	require.NoError(t, r.RenderSky(scene, view(), false, target))
	assert.Equal(t, 1, r.Stats().Precomputations)

	scene.Sun.Intensity = 5
	require.NoError(t, r.RenderSky(scene, view(), false, target))
	assert.Equal(t, 2, r.Stats().Precomputations)
}

func TestRenderSkyRecomputeAlways(t *testing.T) {
	opts := DefaultOptions()
	opts.Policy = core.RecomputeAlways
	r, _ := newRenderer(t, opts)
	scene := newScene()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8}))
	}
	assert.Equal(t, 3, r.Stats().Precomputations)
}

func TestRenderSkyOneSubmitPerFrame(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()

	require.NoError(t, r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8}))
	require.NoError(t, r.RenderSky(scene, view(), true, gputest.Target{Width: 8, Height: 8}))

	submits := b.Submits()
	require.Len(t, submits, 2)

	// Precompute and composite of the first frame share its stream.
	first := submits[0].Stream
	for _, d := range b.Dispatches() {
		assert.Equal(t, first, d.Stream)
	}
	draws := b.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, first, draws[0].Stream)
	assert.Equal(t, submits[1].Stream, draws[1].Stream)
}

func TestRenderSkyPrecomputeBeforeComposite(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	require.NoError(t, r.RenderSky(newScene(), view(), false, gputest.Target{Width: 8, Height: 8}))

	var kinds []gputest.CallKind
	for _, c := range b.Calls {
		kinds = append(kinds, c.Kind)
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, gputest.CallUniform, kinds[0])
	assert.Equal(t, gputest.CallSubmit, kinds[len(kinds)-1])
	assert.Equal(t, gputest.CallDraw, kinds[len(kinds)-2])
}

func TestRenderSkyModeSelectsCompositePass(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()

	require.NoError(t, r.RenderSky(scene, view(), true, gputest.Target{Width: 8, Height: 8}))
	require.NoError(t, r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8}))

	draws := b.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, shaders.ProgramPbrSky, draws[0].Program)
	assert.Equal(t, 0, draws[0].Pass)
	assert.Equal(t, 1, draws[1].Pass)
}

func TestRenderSkyWithoutSun(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()
	scene.Sun = nil

	require.NoError(t, r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8}))

	var draw []byte
	for _, c := range b.Filter(gputest.CallUniform) {
		if c.Slot == gpu.UniformDraw {
			draw = c.Data
		}
	}
	require.Len(t, draw, gpu.DrawConstantsSize)
	assert.Equal(t, make([]byte, 12), draw[64:76], "sun direction")
}

func TestRenderSkyUsesViewCamera(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()
	scene.Camera = nil

	err := r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8})
	require.Error(t, err)

	v := view()
	v.Camera = core.NewCameraState()
	require.NoError(t, r.RenderSky(scene, v, false, gputest.Target{Width: 8, Height: 8}))
	assert.Len(t, b.Draws(), 1)
}

func TestRendererDefaultsToNopLogger(t *testing.T) {
	r := NewSkyRenderer(gputest.NewBackend(), DefaultOptions())
	assert.Equal(t, NopLogger{}, r.logger)
	assert.NoError(t, r.Build())
	r.Cleanup()
}

func TestRenderSkyBeforeBuild(t *testing.T) {
	r := NewSkyRenderer(gputest.NewBackend(), DefaultOptions())
	err := r.RenderSky(newScene(), view(), false, gputest.Target{Width: 8, Height: 8})
	assert.ErrorIs(t, err, gpu.ErrNotBuilt)
}

func TestCleanupIsIdempotent(t *testing.T) {
	b := gputest.NewBackend()
	r := NewSkyRenderer(b, DefaultOptions())
	require.NoError(t, r.Build())
	require.NoError(t, r.RenderSky(newScene(), view(), false, gputest.Target{Width: 8, Height: 8}))

	r.Cleanup()
	r.Cleanup()
	assert.Zero(t, b.Live())
	assert.False(t, r.Built())

	err := r.RenderSky(newScene(), view(), false, gputest.Target{Width: 8, Height: 8})
	assert.ErrorIs(t, err, gpu.ErrNotBuilt)
}

func TestRebuildAfterCleanupRecomputes(t *testing.T) {
	r, _ := newRenderer(t, DefaultOptions())
	scene := newScene()
	target := gputest.Target{Width: 8, Height: 8}

	require.NoError(t, r.RenderSky(scene, view(), false, target))
	r.Cleanup()
	require.NoError(t, r.Build())
	require.NoError(t, r.RenderSky(scene, view(), false, target))

	assert.Equal(t, core.Fresh, r.Stats().Cache)
	assert.Equal(t, 2, r.Stats().Frames)
}

func TestBuildSingleBounceFails(t *testing.T) {
	opts := DefaultOptions()
	opts.NumBounces = 1
	b := gputest.NewBackend()
	r := NewSkyRenderer(b, opts)

	err := r.Build()
	assert.ErrorIs(t, err, gpu.ErrHazard)
	assert.Zero(t, b.Live())
}

func TestBuildMissingKernelFails(t *testing.T) {
	log := &recordingLogger{}
	opts := DefaultOptions()
	opts.Logger = log
	b := gputest.NewBackend()
	b.RemoveKernel(shaders.ProgramInScatteredRadiance, 2)
	r := NewSkyRenderer(b, opts)

	err := r.Build()
	assert.ErrorIs(t, err, gpu.ErrMissingKernel)
	assert.Zero(t, b.Live())
	assert.Len(t, log.errors, 1)
	assert.Panics(t, r.MustBuild)
}

func TestBuildLogsAndPrecomputeLogs(t *testing.T) {
	log := &recordingLogger{}
	opts := DefaultOptions()
	opts.Logger = log
	r, _ := newRenderer(t, opts)

	require.NoError(t, r.RenderSky(newScene(), view(), false, gputest.Target{Width: 8, Height: 8}))
	require.NoError(t, r.RenderSky(newScene(), view(), false, gputest.Target{Width: 8, Height: 8}))
	assert.Len(t, log.info, 1)
	assert.Len(t, log.debug, 1)
}

func TestInvalidateForcesPrecompute(t *testing.T) {
	r, _ := newRenderer(t, DefaultOptions())
	scene := newScene()
	target := gputest.Target{Width: 8, Height: 8}

	require.NoError(t, r.RenderSky(scene, view(), false, target))
	r.Invalidate()
	require.NoError(t, r.RenderSky(scene, view(), false, target))
	assert.Equal(t, 2, r.Stats().Precomputations)
}

func TestInvalidateWaitsForFrameInFlight(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()

	submitting := make(chan struct{})
	release := make(chan struct{})
	b.BeforeSubmit = func() {
		close(submitting)
		<-release
	}

	frameDone := make(chan error)
	go func() {
		frameDone <- r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8})
	}()
	<-submitting

	invalidated := make(chan struct{})
	go func() {
		r.Invalidate()
		close(invalidated)
	}()
	select {
	case <-invalidated:
		t.Fatal("Invalidate returned while a frame was being submitted")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-frameDone)
	<-invalidated
	assert.Equal(t, core.Stale, r.Stats().Cache)
	assert.Equal(t, 1, r.Stats().Precomputations)
}

func TestRenderersOnOneBackendKeepTheirConstants(t *testing.T) {
	b := gputest.NewBackend()
	scenes := []core.SceneState{newScene(), newScene()}
	scenes[1].Sky.GroundAlbedo = mgl32.Vec3{0.9, 0.9, 0.9}

	want := map[string][]byte{}
	var renderers []*SkyRenderer
	for _, scene := range scenes {
		r := NewSkyRenderer(b, DefaultOptions())
		require.NoError(t, r.Build())
		t.Cleanup(r.Cleanup)
		renderers = append(renderers, r)
		want["Sky "+r.ID.String()] = gpu.EncodeSharedConstants(core.DeriveConstants(core.Update(scene)))
	}
	require.Len(t, b.Uniforms, 2)

	var wg sync.WaitGroup
	for i, r := range renderers {
		wg.Add(1)
		go func(r *SkyRenderer, scene core.SceneState) {
			defer wg.Done()
			for n := 0; n < 20; n++ {
				if n%5 == 0 {
					r.Invalidate()
				}
				assert.NoError(t, r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8}))
			}
		}(r, scenes[i])
	}
	wg.Wait()

	submits := b.Submits()
	require.Len(t, submits, 40)
	for _, s := range submits {
		require.Contains(t, want, s.Label)
		assert.Equal(t, want[s.Label], s.Shared, s.Label)
	}
}

func TestDumpRadianceReadsPackedSlice(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())

	var buf bytes.Buffer
	require.NoError(t, r.DumpRadiance(gpu.MultipleScatteringTable, 5, 17, &buf))
	require.Len(t, b.Reads, 1)
	assert.Equal(t, gputest.Read{Table: gpu.MultipleScatteringTable, Slice: gpu.PackedDepth(5, 17)}, b.Reads[0])

	_, err := tiff.Decode(&buf)
	require.NoError(t, err)
}

func TestDumpRadianceRejectsBadBuckets(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	var buf bytes.Buffer

	assert.Error(t, r.DumpRadiance(gpu.AirSingleScatteringTable, gpu.AzimuthCount, 0, &buf))
	assert.Error(t, r.DumpRadiance(gpu.AirSingleScatteringTable, 0, gpu.LightZenithCount, &buf))
	assert.Error(t, r.DumpRadiance(gpu.GroundIrradianceTable, 0, 0, &buf))
	assert.Empty(t, b.Reads)
}

func TestDumpTableWritesTiff(t *testing.T) {
	r, _ := newRenderer(t, DefaultOptions())

	var buf bytes.Buffer
	require.NoError(t, r.DumpTable(gpu.AirSingleScatteringTable, 3, &buf))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	size := gpu.DescribeTable(gpu.AirSingleScatteringTable).Size
	assert.Equal(t, int(size.Width), img.Bounds().Dx())
	assert.Equal(t, int(size.Height), img.Bounds().Dy())
}

func TestDumpTableSliceOutOfRange(t *testing.T) {
	r, _ := newRenderer(t, DefaultOptions())
	var buf bytes.Buffer
	assert.Error(t, r.DumpTable(gpu.OpticalDepthTable, 1, &buf))
}

func TestTableImageTonemap(t *testing.T) {
	texels := []float32{
		0, 1, 1e30, 1,
		-1, 0, 0, 1,
	}
	img := TableImage(texels, 2, 1, false)
	c := img.RGBA64At(0, 0)
	assert.Equal(t, uint16(0), c.R)
	assert.Equal(t, uint16(32768), c.G)
	assert.Equal(t, uint16(0xffff), c.B)
	assert.Equal(t, uint16(0), img.RGBA64At(1, 0).R)

	depth := TableImage([]float32{0, 65000, 0, 0}, 1, 1, true)
	assert.Equal(t, uint16(0xffff), depth.RGBA64At(0, 0).R)
	assert.Equal(t, uint16(0), depth.RGBA64At(0, 0).G)
}

func TestStatsString(t *testing.T) {
	r, _ := newRenderer(t, DefaultOptions())
	require.NoError(t, r.RenderSky(newScene(), view(), false, gputest.Target{Width: 8, Height: 8}))

	stats := r.Stats()
	assert.Positive(t, int64(stats.LastPrecompute))
	assert.Positive(t, int64(stats.LastComposite))

	s := r.StatsString()
	assert.Contains(t, s, "Precompute")
	assert.Contains(t, s, "Composite")
	assert.Contains(t, s, "precomputations")
}

func TestFailedFrameIsDiscardedAndRetried(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()

	err := r.RenderSky(scene, view(), false, gputest.Target{})
	require.Error(t, err)
	assert.Equal(t, 1, b.Discarded)
	assert.Empty(t, b.Submits())
	assert.Equal(t, 0, r.Stats().Precomputations)
	assert.Equal(t, core.Stale, r.Stats().Cache)

	require.NoError(t, r.RenderSky(scene, view(), false, gputest.Target{Width: 8, Height: 8}))
	assert.Equal(t, 1, r.Stats().Precomputations)
}

func TestCachedFrameRefreshesSharedConstants(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()
	target := gputest.Target{Width: 8, Height: 8}

	require.NoError(t, r.RenderSky(scene, view(), false, target))
	b.Reset()
	require.NoError(t, r.RenderSky(scene, view(), false, target))

	assert.Empty(t, b.Dispatches())
	var shared int
	for _, c := range b.Filter(gputest.CallUniform) {
		if c.Slot == gpu.UniformShared {
			shared++
			assert.Len(t, c.Data, gpu.SharedConstantsSize)
		}
	}
	assert.Equal(t, 1, shared)
}

func TestCachedFrameAfterDiscardUsesItsOwnConstants(t *testing.T) {
	r, b := newRenderer(t, DefaultOptions())
	scene := newScene()
	target := gputest.Target{Width: 8, Height: 8}
	require.NoError(t, r.RenderSky(scene, view(), false, target))

	// A failed frame with other parameters still wrote its constants.
	other := scene
	other.Sky.GroundAlbedo = mgl32.Vec3{0.9, 0.9, 0.9}
	require.Error(t, r.RenderSky(other, view(), false, gputest.Target{}))

	require.NoError(t, r.RenderSky(scene, view(), false, target))
	submits := b.Submits()
	require.Len(t, submits, 2)
	want := gpu.EncodeSharedConstants(core.DeriveConstants(core.Update(scene)))
	assert.Equal(t, want, submits[1].Shared)
	assert.Equal(t, 1, r.Stats().Precomputations)
}
