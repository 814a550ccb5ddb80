package particles

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/particlert/rt/core"
	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/gekko3d/particlert/rt/shaders"
)

// CameraUniformSize is the padded size of the Camera uniform.
const CameraUniformSize = 256

// QuadVertices is the vertex count of one particle billboard.
const QuadVertices = 6

var ClearColor = [4]float64{0, 0, 0, 1}

// PackCamera lays out the Camera uniform.
//
//	struct Camera {
//	  view: mat4x4<f32>;     -- 0
//	  proj: mat4x4<f32>;     -- 64
//	  inv_view: mat4x4<f32>; -- 128
//	  cam_pos: vec4<f32>;    -- 192
//	} -> 256 bytes (padded)
func PackCamera(m core.Matrices) []byte {
	buf := make([]byte, CameraUniformSize)

	writeMat := func(offset int, mat [16]float32) {
		for i, v := range mat {
			binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(v))
		}
	}
	writeMat(0, m.View)
	writeMat(64, m.Projection)
	writeMat(128, m.InverseView)

	binary.LittleEndian.PutUint32(buf[192:], math.Float32bits(m.Position[0]))
	binary.LittleEndian.PutUint32(buf[196:], math.Float32bits(m.Position[1]))
	binary.LittleEndian.PutUint32(buf[200:], math.Float32bits(m.Position[2]))
	binary.LittleEndian.PutUint32(buf[204:], math.Float32bits(1))
	return buf
}

// Renderer draws the particle buffer as camera-facing quads.
type Renderer struct {
	dev    gpu.Device
	kernel gpu.KernelHandle
	camera gpu.BufferHandle
	count  uint32
}

func NewRenderer(dev gpu.Device, count int) (*Renderer, error) {
	kernel, err := dev.CreateRenderKernel(gpu.RenderKernelDesc{
		Label:          "Particle Render",
		Source:         shaders.ParticlesRenderWGSL,
		VertexEntry:    shaders.VertexEntry,
		FragmentEntry:  shaders.FragmentEntry,
		InstanceStride: ParticleSize,
		InstanceAttributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFormatFloat32x4, Offset: 0, Location: 0},
			{Format: gpu.VertexFormatFloat32x4, Offset: 32, Location: 1},
		},
		Additive:   true,
		ClearColor: ClearColor,
	})
	if err != nil {
		return nil, err
	}
	camera, err := dev.AllocateBuffer(gpu.BufferDesc{
		Label: "CameraUB",
		Size:  CameraUniformSize,
		Usage: gpu.BufferUsageUniform,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &Renderer{dev: dev, kernel: kernel, camera: camera, count: uint32(count)}, nil
}

func (r *Renderer) UpdateCamera(m core.Matrices) error {
	return r.dev.WriteBuffer(r.camera, 0, PackCamera(m))
}

// Draw records the instanced draw of view into frame.
func (r *Renderer) Draw(stream *gpu.CommandStream, frame gpu.Frame, view ReadView) {
	stream.DrawInstanced(frame, r.kernel, []gpu.Binding{
		{Slot: 0, Buffer: r.camera, Access: gpu.AccessUniform},
		{Slot: 0, Buffer: view.Buffer, Access: gpu.AccessVertex},
	}, 0, QuadVertices, r.count)
}
