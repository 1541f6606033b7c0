package app

import (
	"fmt"

	"github.com/gekko3d/pbrsky/skyrt/rt/core"
	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// App is the standalone sky viewer: a glfw window, a wgpu surface and one sky.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Backend *gpu.WgpuBackend
	Sky     *SkyRenderer
	Options Options

	Scene  core.SceneState
	Camera *core.CameraState
	FovY   float32

	// CaptureEveryFrame also renders a reflection capture view before the main view,
	// the way an engine refreshes its environment map.
	CaptureEveryFrame bool

	MouseCaptured bool
	MouseX        float64
	MouseY        float64

	LastTime   float64
	FrameCount int
	FPS        float64
}

func NewApp(window *glfw.Window, opts Options) *App {
	cam := core.NewCameraState()
	return &App{
		Window:  window,
		Options: opts,
		Camera:  cam,
		FovY:    DefaultFovY,
		Scene: core.SceneState{
			Sky:    core.DefaultEarthParameters(),
			Sun:    core.NewSunLight(),
			Camera: cam,
		},
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.Backend, err = gpu.NewWgpuBackend(a.Device, a.Config.Format)
	if err != nil {
		return err
	}

	a.Sky = NewSkyRenderer(a.Backend, a.Options)
	if err := a.Sky.Build(); err != nil {
		return fmt.Errorf("sky build failed: %w", err)
	}
	a.LastTime = glfw.GetTime()
	return nil
}

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
}

// Look turns the camera by a mouse delta in pixels.
func (a *App) Look(dx, dy float64) {
	const sensitivity = 0.003
	a.Camera.Yaw += float32(dx) * sensitivity
	a.Camera.Pitch = mgl32.Clamp(a.Camera.Pitch-float32(dy)*sensitivity, -1.5, 1.5)
}

// TiltSun rotates the sun around the camera's right axis.
func (a *App) TiltSun(angle float32) {
	if a.Scene.Sun == nil {
		return
	}
	q := mgl32.QuatRotate(angle, a.Camera.GetRight())
	a.Scene.Sun.Rotation = q.Mul(a.Scene.Sun.Rotation).Normalize()
}

func (a *App) Update() {
	now := glfw.GetTime()
	a.FrameCount++
	if elapsed := now - a.LastTime; elapsed >= 1.0 {
		a.FPS = float64(a.FrameCount) / elapsed
		a.FrameCount = 0
		a.LastTime = now
		a.Window.SetTitle(fmt.Sprintf("pbrsky | %.0f FPS | %d precomputations", a.FPS, a.Sky.Stats().Precomputations))
	}
}

func (a *App) Render() {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		fmt.Printf("ERROR: GetCurrentTexture failed: %v\n", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		fmt.Printf("ERROR: CreateView failed: %v\n", err)
		return
	}
	defer view.Release()

	target := &gpu.WgpuTarget{View: view, Width: a.Config.Width, Height: a.Config.Height}
	params := ViewParams{Camera: a.Camera, Width: a.Config.Width, Height: a.Config.Height, FovY: a.FovY}

	if a.CaptureEveryFrame {
		if err := a.Sky.RenderSky(a.Scene, params, true, target); err != nil {
			fmt.Printf("ERROR: sky capture failed: %v\n", err)
			return
		}
	}
	if err := a.Sky.RenderSky(a.Scene, params, false, target); err != nil {
		fmt.Printf("ERROR: sky render failed: %v\n", err)
		return
	}

	a.Surface.Present()
}

func (a *App) Release() {
	if a.Sky != nil {
		a.Sky.Cleanup()
	}
	if a.Backend != nil {
		a.Backend.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}
