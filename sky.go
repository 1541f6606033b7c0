package pbrsky

import (
	"github.com/gekko3d/pbrsky/skyrt/rt/app"
	"github.com/gekko3d/pbrsky/skyrt/rt/core"
	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"

	"github.com/google/uuid"
)

// SkyComponent holds the physical settings of one sky.
type SkyComponent struct {
	Settings core.SkyParameters `json:"settings"`
}

func DefaultSky() SkyComponent {
	return SkyComponent{Settings: core.DefaultEarthParameters()}
}

// SkyModule configures and builds skies on a backend.
type SkyModule struct {
	NumBounces      int
	AlwaysRecompute bool
	Logger          Logger
}

func (mod SkyModule) options() app.Options {
	opts := app.DefaultOptions()
	if mod.NumBounces > 0 {
		opts.NumBounces = mod.NumBounces
	}
	if mod.AlwaysRecompute {
		opts.Policy = core.RecomputeAlways
	}
	if mod.Logger != nil {
		opts.Logger = mod.Logger
	}
	return opts
}

// Install builds a sky with default earth settings and a sun at the zenith.
func (mod SkyModule) Install(backend gpu.Backend) (*SkyState, error) {
	logger := mod.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	r := app.NewSkyRenderer(backend, mod.options())
	if err := r.Build(); err != nil {
		return nil, err
	}
	sun := DefaultSunLight()
	return &SkyState{
		Sky:      DefaultSky(),
		Sun:      &sun,
		Camera:   core.NewCameraState(),
		renderer: r,
		logger:   logger,
	}, nil
}

// SkyState is one built sky and the scene values it is drawn with. Set Sun to nil
// for a scene without a sun.
type SkyState struct {
	Sky    SkyComponent
	Sun    *SunLightComponent
	Camera *core.CameraState

	renderer *app.SkyRenderer
	logger   Logger
}

func (s *SkyState) ID() uuid.UUID {
	return s.renderer.ID
}

func (s *SkyState) scene() core.SceneState {
	scene := core.SceneState{Sky: s.Sky.Settings, Camera: s.Camera}
	if s.Sun != nil {
		scene.Sun = s.Sun.toCore()
	}
	return scene
}

// Frame draws the sky into target, recomputing the tables if the settings changed
// since the last frame.
func (s *SkyState) Frame(view app.ViewParams, isReflectionCapture bool, target gpu.RenderTarget) error {
	if err := s.renderer.RenderSky(s.scene(), view, isReflectionCapture, target); err != nil {
		s.logger.Errorf("sky %s: frame failed: %v", s.ID(), err)
		return err
	}
	return nil
}

func (s *SkyState) Stats() app.Stats {
	return s.renderer.Stats()
}

func (s *SkyState) Renderer() *app.SkyRenderer {
	return s.renderer
}

// Close releases the GPU resources of the sky.
func (s *SkyState) Close() {
	s.renderer.Cleanup()
}
