package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type CameraState struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position: mgl32.Vec3{0, 0, 0.002},
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Z-up: Forward in XY plane, Z for pitch
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
	}
}

// GetRight is forward x up, matching the view matrix basis.
func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(-math.Cos(float64(c.Yaw))),
		float32(-math.Sin(float64(c.Yaw))),
		0,
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	target := eye.Add(c.GetForward())
	up := mgl32.Vec3{0, 0, 1} // Z-up
	return mgl32.LookAtV(eye, target, up)
}

// PixelCoordToViewDirMatrix maps (px, py, 1, 0) in framebuffer pixels, origin top-left,
// to an unnormalized world-space view direction.
func (c *CameraState) PixelCoordToViewDirMatrix(width, height uint32, fovY float32) mgl32.Mat4 {
	w := float32(width)
	h := float32(height)
	t := float32(math.Tan(float64(fovY) * 0.5))
	ta := t * w / h

	screen := mgl32.Mat4FromRows(
		mgl32.Vec4{2 * ta / w, 0, -ta, 0},
		mgl32.Vec4{0, -2 * t / h, t, 0},
		mgl32.Vec4{0, 0, -1, 0},
		mgl32.Vec4{0, 0, 0, 1},
	)

	// Inverse of the view rotation is its transpose.
	invRot := c.GetViewMatrix().Mat3().Transpose().Mat4()
	return invRot.Mul4(screen)
}
