package core

import (
	"math"

	"github.com/gekko3d/particlert/rt/input"
	"github.com/go-gl/mathgl/mgl32"
)

const DefaultMinOrbitDistance = 1

// OrbitState circles the origin. Horizontal and Vertical are radians.
type OrbitState struct {
	Horizontal  float32
	Vertical    float32
	Distance    float32
	MinDistance float32
	Speed       float32
	Sensitivity float32
}

func NewOrbitState(distance float32) *OrbitState {
	o := &OrbitState{
		Distance:    distance,
		MinDistance: DefaultMinOrbitDistance,
		Speed:       30,
		Sensitivity: 0.4,
	}
	o.clamp()
	return o
}

func (o *OrbitState) isCamera() {}

func (o *OrbitState) clamp() {
	o.Vertical = clampPitch(o.Vertical)
	if o.Distance < o.MinDistance {
		o.Distance = o.MinDistance
	}
}

func (o *OrbitState) Position() mgl32.Vec3 {
	h, v := float64(o.Horizontal), float64(o.Vertical)
	return mgl32.Vec3{
		float32(math.Cos(v) * math.Sin(h)),
		float32(math.Sin(v)),
		float32(math.Cos(v) * math.Cos(h)),
	}.Mul(o.Distance)
}

// Integrate rotates with the mouse and zooms with forward movement and scroll.
func (o *OrbitState) Integrate(s input.Snapshot, dt float32) {
	o.Horizontal += s.MouseDelta[0] * o.Sensitivity * dt
	o.Vertical += s.MouseDelta[1] * o.Sensitivity * dt
	zoom := s.Movement[input.AxisForward]*o.Speed + s.Scroll*o.Speed
	o.Distance -= zoom * dt
	o.clamp()
}

func (o *OrbitState) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(o.Position(), mgl32.Vec3{}, worldUp)
}
