package core

import (
	"errors"
	"fmt"

	"github.com/gekko3d/particlert/rt/input"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrUnknownCamera = errors.New("unknown camera kind")

type Kind int

const (
	FirstPerson Kind = iota
	Orbit
)

func (k Kind) String() string {
	switch k {
	case FirstPerson:
		return "first_person"
	case Orbit:
		return "orbit"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "first_person", "":
		return FirstPerson, nil
	case "orbit":
		return Orbit, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCamera, s)
}

// RigConfig holds everything needed to build a Rig. Angles are radians.
type RigConfig struct {
	Kind          Kind
	Position      mgl32.Vec3
	Yaw, Pitch    float32
	Speed         float32
	Sensitivity   float32
	OrbitDistance float32

	Width, Height int
	FovY          float32
	ZNear, ZFar   float32
}

// Matrices is what the renderer uploads each frame.
type Matrices struct {
	View        mgl32.Mat4
	Projection  mgl32.Mat4
	InverseView mgl32.Mat4
	Position    mgl32.Vec3
}

// Rig pairs one camera with a projection.
type Rig struct {
	camera     Camera
	projection *Projection
}

func NewRig(cfg RigConfig) (*Rig, error) {
	var cam Camera
	switch cfg.Kind {
	case FirstPerson:
		c := NewCameraState(cfg.Position, cfg.Yaw, cfg.Pitch)
		c.Speed = cfg.Speed
		c.Sensitivity = cfg.Sensitivity
		cam = c
	case Orbit:
		o := NewOrbitState(cfg.OrbitDistance)
		o.Speed = cfg.Speed
		o.Sensitivity = cfg.Sensitivity
		cam = o
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCamera, cfg.Kind)
	}
	return &Rig{
		camera:     cam,
		projection: NewProjection(cfg.Width, cfg.Height, cfg.FovY, cfg.ZNear, cfg.ZFar),
	}, nil
}

func (r *Rig) Camera() Camera {
	return r.camera
}

func (r *Rig) Projection() *Projection {
	return r.projection
}

func (r *Rig) Integrate(s input.Snapshot, dt float32) {
	r.camera.Integrate(s, dt)
}

func (r *Rig) Resize(width, height int) {
	r.projection.Resize(width, height)
}

func (r *Rig) ViewMatrix() mgl32.Mat4 {
	return r.camera.ViewMatrix()
}

func (r *Rig) ProjectionMatrix() mgl32.Mat4 {
	return r.projection.Matrix()
}

func (r *Rig) InverseViewMatrix() mgl32.Mat4 {
	return r.camera.ViewMatrix().Inv()
}

func (r *Rig) Matrices() Matrices {
	view := r.camera.ViewMatrix()
	return Matrices{
		View:        view,
		Projection:  r.projection.Matrix(),
		InverseView: view.Inv(),
		Position:    r.camera.Position(),
	}
}
