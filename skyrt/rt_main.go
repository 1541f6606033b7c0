package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/gekko3d/pbrsky"
	"github.com/gekko3d/pbrsky/skyrt/rt/app"
	"github.com/gekko3d/pbrsky/skyrt/rt/core"
	"github.com/gekko3d/pbrsky/skyrt/rt/gpu"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	bounces := flag.Int("bounces", 2, "Number of scattering orders")
	always := flag.Bool("always-recompute", false, "Recompute the tables every frame")
	debug := flag.Bool("debug", false, "Enable debug logging")
	capture := flag.Bool("capture", false, "Also render a reflection capture view every frame")
	presetPath := flag.String("preset", "", "Load sky settings from a JSON preset")
	savePath := flag.String("save", "", "Write the sky settings to a JSON preset on exit")
	lat := flag.Float64("lat", 0, "Latitude in degrees for the sun position")
	lon := flag.Float64("lon", 0, "Longitude in degrees for the sun position")
	geo := flag.Bool("geo", false, "Place the sun from -lat/-lon and the current time")
	dump := flag.String("dump", "", "Write one slice of the air single scattering table to this TIFF after the first frame")
	dumpAzimuth := flag.Uint("dump-azimuth", 0, "Azimuth bucket of the dumped slice")
	dumpLightZenith := flag.Uint("dump-light-zenith", 0, "Light zenith bucket of the dumped slice")
	flag.Parse()

	logger := pbrsky.NewDefaultLogger("pbrsky", *debug)

	policy := core.RecomputeOnChange
	if *always {
		policy = core.RecomputeAlways
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "pbrsky", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, app.Options{NumBounces: *bounces, Policy: policy, Logger: logger})
	application.CaptureEveryFrame = *capture
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	if *presetPath != "" {
		preset, err := pbrsky.LoadSkyPreset(*presetPath)
		if err != nil {
			panic(err)
		}
		application.Scene.Sky = preset.Sky.Settings
		application.Scene.Sun = nil
		if preset.Sun != nil {
			application.Scene.Sun = &core.SunLight{
				Rotation:  preset.Sun.Rotation,
				Color:     mgl32.Vec3(preset.Sun.Color),
				Intensity: preset.Sun.Intensity,
			}
		}
		logger.Infof("loaded preset %s", *presetPath)
	}
	if *geo && application.Scene.Sun != nil {
		dir := pbrsky.SunFromGeo(time.Now(), *lat, *lon)
		application.Scene.Sun.Rotation = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, dir.Mul(-1))
		logger.Infof("sun at %.3f %.3f %.3f", dir.X(), dir.Y(), dir.Z())
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if application.MouseCaptured {
			application.Look(xpos-application.MouseX, ypos-application.MouseY)
		}
		application.MouseX = xpos
		application.MouseY = ypos
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyTab && action == glfw.Press {
			application.MouseCaptured = !application.MouseCaptured
			if application.MouseCaptured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		}
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}

		if action == glfw.Press || action == glfw.Repeat {
			switch key {
			case glfw.KeyUp:
				application.TiltSun(0.02)
			case glfw.KeyDown:
				application.TiltSun(-0.02)
			case glfw.KeyG:
				// Ground albedo is a table input, so this triggers a precomputation.
				a := application.Scene.Sky.GroundAlbedo
				application.Scene.Sky.GroundAlbedo = mgl32.Vec3{
					wrap(a[0] + 0.1), wrap(a[1] + 0.1), wrap(a[2] + 0.1),
				}
			case glfw.KeyP:
				fmt.Print(application.Sky.StatsString())
			}
		}
	})

	dumped := *dump == ""
	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()

		if !dumped {
			dumped = true
			if err := dumpTable(application.Sky, *dump, uint32(*dumpAzimuth), uint32(*dumpLightZenith)); err != nil {
				logger.Errorf("dump failed: %v", err)
			} else {
				logger.Infof("wrote %s", *dump)
			}
		}
	}

	if *savePath != "" {
		if err := savePreset(application, *savePath); err != nil {
			logger.Errorf("save failed: %v", err)
		}
	}
}

func wrap(v float32) float32 {
	if v > 1 {
		return 0
	}
	return v
}

func dumpTable(sky *app.SkyRenderer, path string, azimuth, lightZenith uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return sky.DumpRadiance(gpu.AirSingleScatteringTable, azimuth, lightZenith, f)
}

func savePreset(a *app.App, path string) error {
	state := &pbrsky.SkyState{Sky: pbrsky.SkyComponent{Settings: a.Scene.Sky}}
	if sun := a.Scene.Sun; sun != nil {
		state.Sun = &pbrsky.SunLightComponent{
			Color:     [3]float32(sun.Color),
			Intensity: sun.Intensity,
			Rotation:  sun.Rotation,
		}
	}
	return pbrsky.SaveSkyPreset(state, path)
}
