package gpu

import (
	"fmt"

	"github.com/google/uuid"
)

type hostBuffer struct {
	desc BufferDesc
	data []byte
}

type hostKernel struct {
	kind    KernelKind
	compute ComputeKernelDesc
	render  RenderKernelDesc
}

// HostStats counts what a HostDevice has executed.
type HostStats struct {
	Submissions int
	Dispatches  int
	Draws       int
	Presented   int
	Configures  int
}

// HostDevice runs compute kernels on the CPU and records draws. It backs
// headless runs and tests.
type HostDevice struct {
	released bool
	width    uint32
	height   uint32

	buffers map[string]*hostBuffer
	kernels map[string]*hostKernel

	current     *Frame
	acquireErrs []error

	stats    HostStats
	lastDraw *DrawCommand
}

func NewHostDevice(width, height int) *HostDevice {
	return &HostDevice{
		width:   uint32(max(width, 0)),
		height:  uint32(max(height, 0)),
		buffers: make(map[string]*hostBuffer),
		kernels: make(map[string]*hostKernel),
	}
}

// FailNextAcquire queues errors returned by subsequent AcquireFrame calls,
// one per call.
func (d *HostDevice) FailNextAcquire(errs ...error) {
	d.acquireErrs = append(d.acquireErrs, errs...)
}

func (d *HostDevice) Stats() HostStats {
	return d.stats
}

func (d *HostDevice) Size() (int, int) {
	return int(d.width), int(d.height)
}

// LastDraw returns the most recently executed draw.
func (d *HostDevice) LastDraw() (DrawCommand, bool) {
	if d.lastDraw == nil {
		return DrawCommand{}, false
	}
	return *d.lastDraw, true
}

// ReadBuffer returns a copy of the buffer contents.
func (d *HostDevice) ReadBuffer(h BufferHandle) ([]byte, error) {
	buf, err := d.buffer(h)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.data...), nil
}

func (d *HostDevice) buffer(h BufferHandle) (*hostBuffer, error) {
	if d.released {
		return nil, ErrContextReleased
	}
	buf, ok := d.buffers[h.ID]
	if !ok {
		return nil, fmt.Errorf("buffer %q: %w", h.Label, ErrUnknownResource)
	}
	return buf, nil
}

func (d *HostDevice) kernel(h KernelHandle, kind KernelKind) (*hostKernel, error) {
	if d.released {
		return nil, ErrContextReleased
	}
	k, ok := d.kernels[h.ID]
	if !ok || k.kind != kind {
		return nil, fmt.Errorf("kernel %q: %w", h.Label, ErrUnknownResource)
	}
	return k, nil
}

func (d *HostDevice) AllocateBuffer(desc BufferDesc, initial []byte) (BufferHandle, error) {
	if d.released {
		return BufferHandle{}, ErrContextReleased
	}
	if uint64(len(initial)) > desc.Size {
		return BufferHandle{}, fmt.Errorf("buffer %q: %d initial bytes exceed size %d", desc.Label, len(initial), desc.Size)
	}
	data := make([]byte, desc.Size)
	copy(data, initial)
	h := BufferHandle{ID: uuid.NewString(), Label: desc.Label, Size: desc.Size}
	d.buffers[h.ID] = &hostBuffer{desc: desc, data: data}
	return h, nil
}

func (d *HostDevice) WriteBuffer(h BufferHandle, offset uint64, data []byte) error {
	buf, err := d.buffer(h)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		return fmt.Errorf("buffer %q: write of %d bytes at %d out of range", h.Label, len(data), offset)
	}
	copy(buf.data[offset:], data)
	return nil
}

func (d *HostDevice) CreateComputeKernel(desc ComputeKernelDesc) (KernelHandle, error) {
	if d.released {
		return KernelHandle{}, ErrContextReleased
	}
	h := KernelHandle{ID: uuid.NewString(), Label: desc.Label, Kind: KernelCompute}
	d.kernels[h.ID] = &hostKernel{kind: KernelCompute, compute: desc}
	return h, nil
}

func (d *HostDevice) CreateRenderKernel(desc RenderKernelDesc) (KernelHandle, error) {
	if d.released {
		return KernelHandle{}, ErrContextReleased
	}
	h := KernelHandle{ID: uuid.NewString(), Label: desc.Label, Kind: KernelRender}
	d.kernels[h.ID] = &hostKernel{kind: KernelRender, render: desc}
	return h, nil
}

func (d *HostDevice) Submit(stream *CommandStream) error {
	if d.released {
		return ErrContextReleased
	}
	if err := stream.Validate(); err != nil {
		return err
	}
	if stream.Len() == 0 {
		return nil
	}
	for _, cmd := range stream.Commands {
		var err error
		switch c := cmd.(type) {
		case DispatchCommand:
			err = d.dispatch(c)
		case DrawCommand:
			err = d.draw(c)
		}
		if err != nil {
			return fmt.Errorf("submit %q: %w", stream.Label, err)
		}
	}
	d.stats.Submissions++
	return nil
}

func (d *HostDevice) dispatch(c DispatchCommand) error {
	k, err := d.kernel(c.Kernel, KernelCompute)
	if err != nil {
		return err
	}
	inv := &Invocation{
		Groups:        c.Groups,
		WorkgroupSize: k.compute.WorkgroupSize,
		buffers:       make(map[uint32][]byte, len(c.Bindings)),
	}
	for _, b := range c.Bindings {
		buf, err := d.buffer(b.Buffer)
		if err != nil {
			return err
		}
		inv.buffers[b.Slot] = buf.data
	}
	if k.compute.Host != nil {
		if err := k.compute.Host(inv); err != nil {
			return fmt.Errorf("kernel %q: %w", k.compute.Label, err)
		}
	}
	d.stats.Dispatches++
	return nil
}

func (d *HostDevice) draw(c DrawCommand) error {
	if _, err := d.kernel(c.Kernel, KernelRender); err != nil {
		return err
	}
	if d.current == nil || d.current.ID != c.Frame.ID {
		return ErrNoFrame
	}
	for _, b := range c.Bindings {
		if _, err := d.buffer(b.Buffer); err != nil {
			return err
		}
	}
	d.lastDraw = &c
	d.stats.Draws++
	return nil
}

func (d *HostDevice) AcquireFrame() (Frame, error) {
	if d.released {
		return Frame{}, ErrContextReleased
	}
	if len(d.acquireErrs) > 0 {
		err := d.acquireErrs[0]
		d.acquireErrs = d.acquireErrs[1:]
		return Frame{}, err
	}
	f := Frame{ID: uuid.NewString(), Width: d.width, Height: d.height}
	d.current = &f
	return f, nil
}

func (d *HostDevice) Present(f Frame) error {
	if d.released {
		return ErrContextReleased
	}
	if d.current == nil || d.current.ID != f.ID {
		return ErrNoFrame
	}
	d.current = nil
	d.stats.Presented++
	return nil
}

func (d *HostDevice) Configure(width, height int) error {
	if d.released {
		return ErrContextReleased
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	d.width, d.height = uint32(width), uint32(height)
	d.current = nil
	d.stats.Configures++
	return nil
}

func (d *HostDevice) Release() {
	d.released = true
	d.buffers = nil
	d.kernels = nil
	d.current = nil
}
