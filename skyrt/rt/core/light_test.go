package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestSunDirectionIdentityIsZenith(t *testing.T) {
	sun := NewSunLight()
	dir := SunDirection(sun)
	assert.True(t, dir.ApproxEqualThreshold(mgl32.Vec3{0, 0, 1}, 1e-6))
}

func TestSunDirectionNilIsZero(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{}, SunDirection(nil))
}

func TestUpdateTakesSunRadiance(t *testing.T) {
	sun := &SunLight{Rotation: mgl32.QuatIdent(), Color: mgl32.Vec3{1, 0.5, 0.25}, Intensity: 4}
	state := SceneState{Sky: DefaultEarthParameters(), Sun: sun}

	p := Update(state)
	assert.Equal(t, mgl32.Vec3{4, 2, 1}, p.SunRadiance)
	assert.Equal(t, state.Sky.GroundAlbedo, p.GroundAlbedo)
}

func TestUpdateWithoutSunKeepsSettings(t *testing.T) {
	state := SceneState{Sky: DefaultEarthParameters()}
	assert.Equal(t, state.Sky, Update(state))
}

func TestUpdateIgnoresSunDirection(t *testing.T) {
	sky := DefaultEarthParameters()
	a := &SunLight{Rotation: mgl32.QuatIdent(), Color: mgl32.Vec3{1, 1, 1}, Intensity: 20}
	b := &SunLight{Rotation: mgl32.QuatRotate(1.2, mgl32.Vec3{1, 0, 0}), Color: mgl32.Vec3{1, 1, 1}, Intensity: 20}

	fa := Fingerprint(Update(SceneState{Sky: sky, Sun: a}))
	fb := Fingerprint(Update(SceneState{Sky: sky, Sun: b}))
	assert.Equal(t, fa, fb)
}
