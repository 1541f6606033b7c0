package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func viewDir(m mgl32.Mat4, px, py float32) mgl32.Vec3 {
	return m.Mul4x1(mgl32.Vec4{px, py, 1, 0}).Vec3().Normalize()
}

func TestPixelCoordCenterIsForward(t *testing.T) {
	cam := NewCameraState()
	cam.Yaw = 0.7
	cam.Pitch = 0.2

	m := cam.PixelCoordToViewDirMatrix(1280, 720, mgl32.DegToRad(60))
	dir := viewDir(m, 640, 360)
	assert.True(t, dir.ApproxEqualThreshold(cam.GetForward(), 1e-4), "got %v want %v", dir, cam.GetForward())
}

func TestPixelCoordTopEdgeMatchesFov(t *testing.T) {
	cam := NewCameraState()
	fov := mgl32.DegToRad(90)

	m := cam.PixelCoordToViewDirMatrix(100, 100, fov)
	top := viewDir(m, 50, 0)

	// Half the vertical fov above the horizon, looking level.
	angle := math.Asin(float64(top.Z()))
	assert.InDelta(t, float64(fov)/2, angle, 1e-4)
}

func TestPixelCoordRightEdgeIsRight(t *testing.T) {
	cam := NewCameraState()
	m := cam.PixelCoordToViewDirMatrix(200, 100, mgl32.DegToRad(60))
	right := viewDir(m, 200, 50)
	assert.Greater(t, right.Dot(cam.GetRight()), float32(0))
}
