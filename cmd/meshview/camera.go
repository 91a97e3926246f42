package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// Camera orbits the center of a model's bounding box, far enough away to keep
// the whole box in view.
type Camera struct {
	Center mgl32.Vec3
	Radius float32
}

func NewCamera(min, max mgl32.Vec3) Camera {
	radius := max.Sub(min).Len() / 2
	if radius == 0 {
		radius = 1
	}

	return Camera{
		Center: min.Add(max).Mul(0.5),
		Radius: radius,
	}
}

// Uniforms returns the matrices for the given time in seconds. The model turns
// 90 degrees a second around Z, wrapping every four seconds.
func (c Camera) Uniforms(seconds float64, aspectRatio float32) UniformBufferObject {
	timePeriod := float32(math.Mod(seconds, 4.0))

	ubo := UniformBufferObject{}
	ubo.Model = mgl32.HomogRotate3D(timePeriod*mgl32.DegToRad(90.0), mgl32.Vec3{0, 0, 1}).
		Mul4(mgl32.Translate3D(-c.Center.X(), -c.Center.Y(), -c.Center.Z()))

	distance := c.Radius * 2
	ubo.View = mgl32.LookAt(distance, distance, distance, 0, 0, 0, 0, 0, 1)

	near := float64(c.Radius) * 0.05
	far := float64(c.Radius) * 10
	fovy := mgl32.DegToRad(45)
	fmn, f := far-near, float32(1./math.Tan(float64(fovy)/2.0))

	// Vulkan clip space: Y points down and depth runs 0 to 1.
	ubo.Proj = mgl32.Mat4{float32(f / aspectRatio), 0, 0, 0, 0, float32(-f), 0, 0, 0, 0, float32(-far / fmn), -1, 0, 0, float32(-(far * near) / fmn), 0}

	return ubo
}
