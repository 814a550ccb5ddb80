package gpu

import (
	"errors"
)

var (
	// ErrFrameLost means the surface must be reconfigured before the next frame.
	ErrFrameLost = errors.New("gpu: surface lost")
	// ErrFrameOutdated means the surface no longer matches the window.
	ErrFrameOutdated = errors.New("gpu: surface outdated")
	ErrFrameTimeout  = errors.New("gpu: surface acquire timed out")

	ErrContextReleased = errors.New("gpu: device context released")
	ErrUnknownResource = errors.New("gpu: unknown resource")
	ErrBufferAliasing  = errors.New("gpu: buffer bound for read and write in one command")
	ErrNoFrame         = errors.New("gpu: no frame acquired")
)

// IsTransient reports whether err is a frame acquisition failure that the
// caller recovers from by skipping the frame.
func IsTransient(err error) bool {
	return errors.Is(err, ErrFrameLost) || errors.Is(err, ErrFrameOutdated) || errors.Is(err, ErrFrameTimeout)
}

type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageCopyDst
)

type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// BufferHandle identifies a buffer owned by one device context.
type BufferHandle struct {
	ID    string
	Label string
	Size  uint64
}

func (h BufferHandle) Valid() bool {
	return h.ID != ""
}

type KernelKind int

const (
	KernelCompute KernelKind = iota
	KernelRender
)

type KernelHandle struct {
	ID    string
	Label string
	Kind  KernelKind
}

// Invocation is what a HostKernel sees for one dispatch.
type Invocation struct {
	Groups        uint32
	WorkgroupSize uint32
	buffers       map[uint32][]byte
}

// Bytes returns the storage bound at slot, or nil.
func (inv *Invocation) Bytes(slot uint32) []byte {
	return inv.buffers[slot]
}

// HostKernel is the CPU rendition of a compute kernel, run by HostDevice.
type HostKernel func(inv *Invocation) error

type ComputeKernelDesc struct {
	Label         string
	Source        string
	EntryPoint    string
	WorkgroupSize uint32
	Host          HostKernel
}

type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

type VertexAttribute struct {
	Format   VertexFormat
	Offset   uint64
	Location uint32
}

type RenderKernelDesc struct {
	Label         string
	Source        string
	VertexEntry   string
	FragmentEntry string
	// InstanceStride and InstanceAttributes describe vertex buffer slot 0,
	// stepped once per instance.
	InstanceStride     uint64
	InstanceAttributes []VertexAttribute
	Additive           bool
	ClearColor         [4]float64
}

// Frame is one acquired swapchain image, valid until Present.
type Frame struct {
	ID            string
	Width, Height uint32
}

// Device is the GPU context the core records work against. All handles it
// returns are invalid after Release.
type Device interface {
	AllocateBuffer(desc BufferDesc, initial []byte) (BufferHandle, error)
	WriteBuffer(h BufferHandle, offset uint64, data []byte) error
	CreateComputeKernel(desc ComputeKernelDesc) (KernelHandle, error)
	CreateRenderKernel(desc RenderKernelDesc) (KernelHandle, error)
	Submit(stream *CommandStream) error
	AcquireFrame() (Frame, error)
	Present(f Frame) error
	Configure(width, height int) error
	Release()
}
