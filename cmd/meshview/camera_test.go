package main

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewCamera(t *testing.T) {
	testCases := []struct {
		name     string
		min, max mgl32.Vec3
		center   mgl32.Vec3
		radius   float32
	}{
		{
			name:   "unit cube",
			min:    mgl32.Vec3{-1, -1, -1},
			max:    mgl32.Vec3{1, 1, 1},
			center: mgl32.Vec3{0, 0, 0},
			radius: mgl32.Vec3{2, 2, 2}.Len() / 2,
		},
		{
			name:   "offset box",
			min:    mgl32.Vec3{2, 0, 0},
			max:    mgl32.Vec3{4, 0, 0},
			center: mgl32.Vec3{3, 0, 0},
			radius: 1,
		},
		{
			name:   "single point",
			min:    mgl32.Vec3{5, 5, 5},
			max:    mgl32.Vec3{5, 5, 5},
			center: mgl32.Vec3{5, 5, 5},
			radius: 1,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			camera := NewCamera(testCase.min, testCase.max)
			if !camera.Center.ApproxEqual(testCase.center) {
				t.Errorf("center = %v, want %v", camera.Center, testCase.center)
			}
			if !mgl32.FloatEqual(camera.Radius, testCase.radius) {
				t.Errorf("radius = %v, want %v", camera.Radius, testCase.radius)
			}
		})
	}
}

func TestUniformsCenterModel(t *testing.T) {
	camera := NewCamera(mgl32.Vec3{2, 2, 2}, mgl32.Vec3{4, 6, 8})

	for _, seconds := range []float64{0, 1.5, 3.9} {
		ubo := camera.Uniforms(seconds, 4.0/3.0)

		center := ubo.Model.Mul4x1(camera.Center.Vec4(1)).Vec3()
		if !center.ApproxEqualThreshold(mgl32.Vec3{}, 1e-4) {
			t.Errorf("t=%v: model matrix moves the center to %v, want the origin", seconds, center)
		}
	}
}

func TestUniformsProjectionFlipsY(t *testing.T) {
	ubo := NewCamera(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}).Uniforms(0, 1)

	if ubo.Proj.At(1, 1) >= 0 {
		t.Errorf("projection [1][1] = %v, want negative for Vulkan clip space", ubo.Proj.At(1, 1))
	}
	if ubo.Proj.At(3, 2) != -1 {
		t.Errorf("projection [3][2] = %v, want -1", ubo.Proj.At(3, 2))
	}
}
