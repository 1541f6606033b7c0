package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/pbrsky/skyrt/rt/core"
	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// ViewParams describes the camera a sky is drawn for.
type ViewParams struct {
	Camera        *core.CameraState // falls back to the scene camera when nil
	Width, Height uint32
	FovY          float32 // radians
}

// Stats is a snapshot of what the renderer has done so far. Only submitted work is
// counted.
type Stats struct {
	Precomputations int
	Frames          int
	LastFingerprint uint64
	Cache           core.CacheState

	// CPU time spent recording the last precomputation and composite.
	LastPrecompute time.Duration
	LastComposite  time.Duration
}

// SkyRenderer owns one set of lookup tables with its uniform buffers, the kernels that
// fill them and the composite pass. Nothing is shared between renderers.
type SkyRenderer struct {
	ID uuid.UUID

	mu         sync.Mutex
	opts       Options
	logger     Logger
	backend    gpu.Backend
	cache      *core.ChangeCache
	tables     *gpu.TableStore
	precompute *gpu.Precomputer
	compositor *gpu.Compositor
	profiler   *Profiler

	built  bool
	frames int
}

func NewSkyRenderer(backend gpu.Backend, opts Options) *SkyRenderer {
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	return &SkyRenderer{
		ID:         uuid.New(),
		opts:       opts,
		logger:     logger,
		backend:    backend,
		cache:      core.NewChangeCache(opts.Policy),
		tables:     gpu.NewTableStore(),
		precompute: gpu.NewPrecomputer(opts.NumBounces),
		compositor: gpu.NewCompositor(),
		profiler:   NewProfiler(),
	}
}

// Build allocates the tables and loads every kernel and program. It is a no-op once
// built. On failure everything acquired so far is released.
func (r *SkyRenderer) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		return nil
	}
	if err := r.build(); err != nil {
		r.release()
		r.logger.Errorf("sky %s: build failed: %v", r.ID, err)
		return err
	}
	r.built = true
	r.logger.Infof("sky %s: built with %d bounces, recompute %s", r.ID, r.opts.NumBounces, r.cache.Policy())
	return nil
}

func (r *SkyRenderer) build() error {
	if err := r.tables.Allocate(r.backend); err != nil {
		return err
	}
	if err := r.precompute.Build(r.backend, r.tables); err != nil {
		return err
	}
	return r.compositor.Build(r.backend, r.tables, r.precompute.Graph().Written())
}

// MustBuild is Build for setup code where a missing kernel is fatal.
func (r *SkyRenderer) MustBuild() {
	if err := r.Build(); err != nil {
		panic(err)
	}
}

// RenderSky draws the sky for one view into target, refreshing the tables first when
// the physical parameters changed. Precomputation and the draw share one stream and
// one submit.
func (r *SkyRenderer) RenderSky(scene core.SceneState, view ViewParams, isReflectionCapture bool, target gpu.RenderTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.built {
		return gpu.ErrNotBuilt
	}

	cam := view.Camera
	if cam == nil {
		cam = scene.Camera
	}
	if cam == nil {
		return fmt.Errorf("sky %s: no camera", r.ID)
	}

	params := core.Update(scene)
	fp := core.Fingerprint(params)

	stream, err := r.tables.BeginStream(r.backend, fmt.Sprintf("Sky %s", r.ID))
	if err != nil {
		return fmt.Errorf("failed to begin sky stream: %w", err)
	}
	defer stream.Discard()

	recompute := r.cache.ShouldRecompute(fp)
	if recompute {
		r.profiler.BeginScope("Precompute")
		err := r.precompute.Record(stream, gpu.EncodeSharedConstants(core.DeriveConstants(params)))
		r.profiler.EndScope("Precompute")
		if err != nil {
			return err
		}
		r.logger.Debugf("sky %s: precomputing tables for %016x", r.ID, fp)
	} else {
		// The compositor reads the shared constants too. A discarded frame may have
		// left another parameter set in the buffer.
		stream.WriteUniform(gpu.UniformShared, gpu.EncodeSharedConstants(core.DeriveConstants(params)))
	}

	mode := gpu.ModeView
	if isReflectionCapture {
		mode = gpu.ModeReflectionCapture
	}
	draw := gpu.DrawParams{
		PixelCoordToViewDir: cam.PixelCoordToViewDirMatrix(view.Width, view.Height, view.FovY),
		SunDirection:        core.SunDirection(scene.Sun),
		CameraPosition:      cam.Position,
		Mode:                mode,
	}

	r.profiler.BeginScope("Composite")
	err = r.compositor.Record(stream, draw, target)
	r.profiler.EndScope("Composite")
	if err != nil {
		return err
	}

	if err := stream.Submit(); err != nil {
		return fmt.Errorf("failed to submit sky stream: %w", err)
	}

	if recompute {
		r.cache.MarkFresh(fp)
		r.profiler.Inc("precomputations")
	}
	r.frames++
	r.profiler.Inc("frames")
	return nil
}

// Invalidate forces a precomputation on the next frame. A frame in flight finishes
// first, so it cannot mark the cache fresh again.
func (r *SkyRenderer) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Invalidate()
}

// Cleanup releases the tables, kernels and programs. Safe to call more than once; a
// cleaned up renderer can be built again.
func (r *SkyRenderer) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		r.logger.Infof("sky %s: released", r.ID)
	}
	r.release()
}

func (r *SkyRenderer) release() {
	r.compositor.Release()
	r.precompute.Release()
	r.tables.Release()
	r.cache.Invalidate()
	r.built = false
}

func (r *SkyRenderer) Built() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.built
}

func (r *SkyRenderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Precomputations: r.profiler.Count("precomputations"),
		Frames:          r.frames,
		LastFingerprint: r.cache.LastFingerprint(),
		Cache:           r.cache.State(),
		LastPrecompute:  r.profiler.Last("Precompute"),
		LastComposite:   r.profiler.Last("Composite"),
	}
}

func (r *SkyRenderer) StatsString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiler.GetStatsString()
}

// DefaultFovY is used by callers that do not track a projection.
var DefaultFovY = mgl32.DegToRad(60)
