package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// openGLToWGPU maps clip-space depth from [-1, 1] to [0, 1].
var openGLToWGPU = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection is a perspective projection. Only Aspect changes after
// construction.
type Projection struct {
	Aspect float32
	FovY   float32 // radians
	ZNear  float32
	ZFar   float32
}

func NewProjection(width, height int, fovY, zNear, zFar float32) *Projection {
	p := &Projection{Aspect: 1, FovY: fovY, ZNear: zNear, ZFar: zFar}
	p.Resize(width, height)
	return p
}

// Resize ignores zero sizes, which GLFW reports for minimised windows.
func (p *Projection) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	p.Aspect = float32(width) / float32(height)
}

func (p *Projection) Matrix() mgl32.Mat4 {
	return openGLToWGPU.Mul4(mgl32.Perspective(p.FovY, p.Aspect, p.ZNear, p.ZFar))
}
