package core

import (
	"math"

	"github.com/gekko3d/particlert/rt/input"
	"github.com/go-gl/mathgl/mgl32"
)

// PitchLimit keeps the look direction off the poles so LookAt never
// degenerates.
const PitchLimit = float32(math.Pi/2 - 0.0001)

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is one of the camera kinds a Rig can drive.
type Camera interface {
	Integrate(s input.Snapshot, dt float32)
	ViewMatrix() mgl32.Mat4
	Position() mgl32.Vec3
	isCamera()
}

func clampPitch(p float32) float32 {
	if p > PitchLimit {
		return PitchLimit
	}
	if p < -PitchLimit {
		return -PitchLimit
	}
	return p
}

// CameraState is a Y-up first person camera. Yaw and pitch are radians.
type CameraState struct {
	Pos         mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
}

func NewCameraState(pos mgl32.Vec3, yaw, pitch float32) *CameraState {
	return &CameraState{
		Pos:         pos,
		Yaw:         yaw,
		Pitch:       clampPitch(pitch),
		Speed:       30,
		Sensitivity: 0.4,
	}
}

func (c *CameraState) isCamera() {}

func (c *CameraState) Position() mgl32.Vec3 {
	return c.Pos
}

// GetForward is the horizontal movement direction.
func (c *CameraState) GetForward() mgl32.Vec3 {
	y := float64(c.Yaw)
	return mgl32.Vec3{float32(math.Cos(y)), 0, float32(math.Sin(y))}.Normalize()
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	y := float64(c.Yaw)
	return mgl32.Vec3{float32(-math.Sin(y)), 0, float32(math.Cos(y))}.Normalize()
}

// LookDirection includes pitch.
func (c *CameraState) LookDirection() mgl32.Vec3 {
	y, p := float64(c.Yaw), float64(c.Pitch)
	return mgl32.Vec3{
		float32(math.Cos(p) * math.Cos(y)),
		float32(math.Sin(p)),
		float32(math.Cos(p) * math.Sin(y)),
	}
}

// Integrate moves and rotates the camera. Rotation comes only from the
// snapshot's mouse delta, so a stale snapshot does not rotate again.
func (c *CameraState) Integrate(s input.Snapshot, dt float32) {
	move := s.Movement
	step := c.Speed * dt
	c.Pos = c.Pos.
		Add(c.GetForward().Mul(move[input.AxisForward] * step)).
		Add(c.GetRight().Mul(move[input.AxisRight] * step)).
		Add(worldUp.Mul(move[input.AxisUp] * step))

	look := s.MouseDelta
	c.Yaw += look[0] * c.Sensitivity * dt
	c.Pitch = clampPitch(c.Pitch + look[1]*c.Sensitivity*dt)
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Pos
	return mgl32.LookAtV(eye, eye.Add(c.LookDirection()), worldUp)
}

func (c *CameraState) ViewMatrix() mgl32.Mat4 {
	return c.GetViewMatrix()
}
