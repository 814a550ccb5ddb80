// Package wgpudev implements gpu.Device on a WebGPU window surface.
package wgpudev

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/gekko3d/particlert/rt/logging"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/google/uuid"
)

type computeKernel struct {
	desc     gpu.ComputeKernelDesc
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

type renderKernel struct {
	desc     gpu.RenderKernelDesc
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
}

var _ gpu.Device = (*Device)(nil)

type acquiredFrame struct {
	frame   gpu.Frame
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

// Device drives a window surface through WebGPU.
type Device struct {
	logger logging.Logger

	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	buffers    map[string]*wgpu.Buffer
	computes   map[string]*computeKernel
	renders    map[string]*renderKernel
	bindGroups map[string]*wgpu.BindGroup

	current  *acquiredFrame
	released bool
}

func New(window *glfw.Window, logger logging.Logger) (*Device, error) {
	d := &Device{
		logger:     logging.OrNop(logger),
		Window:     window,
		buffers:    make(map[string]*wgpu.Buffer),
		computes:   make(map[string]*computeKernel),
		renders:    make(map[string]*renderKernel),
		bindGroups: make(map[string]*wgpu.BindGroup),
	}

	d.Instance = wgpu.CreateInstance(nil)
	d.Surface = d.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := d.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.Adapter = adapter

	d.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.Queue = d.Device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := d.Surface.GetCapabilities(adapter)
	d.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.Surface.Configure(d.Adapter, d.Device, d.Config)
	d.logger.Infof("webgpu surface %dx%d format %v", width, height, d.Config.Format)
	return d, nil
}

func (d *Device) AllocateBuffer(desc gpu.BufferDesc, initial []byte) (gpu.BufferHandle, error) {
	if d.released {
		return gpu.BufferHandle{}, gpu.ErrContextReleased
	}
	size := desc.Size
	if size%4 != 0 {
		size += 4 - size%4
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: bufferUsage(desc.Usage) | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return gpu.BufferHandle{}, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	if len(initial) > 0 {
		d.Queue.WriteBuffer(buf, 0, initial)
	}
	h := gpu.BufferHandle{ID: uuid.NewString(), Label: desc.Label, Size: desc.Size}
	d.buffers[h.ID] = buf
	return h, nil
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

func (d *Device) buffer(h gpu.BufferHandle) (*wgpu.Buffer, error) {
	if d.released {
		return nil, gpu.ErrContextReleased
	}
	buf, ok := d.buffers[h.ID]
	if !ok {
		return nil, fmt.Errorf("buffer %q: %w", h.Label, gpu.ErrUnknownResource)
	}
	return buf, nil
}

func (d *Device) WriteBuffer(h gpu.BufferHandle, offset uint64, data []byte) error {
	buf, err := d.buffer(h)
	if err != nil {
		return err
	}
	d.Queue.WriteBuffer(buf, offset, data)
	return nil
}

func (d *Device) CreateComputeKernel(desc gpu.ComputeKernelDesc) (gpu.KernelHandle, error) {
	if d.released {
		return gpu.KernelHandle{}, gpu.ErrContextReleased
	}
	module, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Source},
	})
	if err != nil {
		return gpu.KernelHandle{}, fmt.Errorf("shader %q: %w", desc.Label, err)
	}
	defer module.Release()

	pipeline, err := d.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: desc.Label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return gpu.KernelHandle{}, fmt.Errorf("compute pipeline %q: %w", desc.Label, err)
	}
	h := gpu.KernelHandle{ID: uuid.NewString(), Label: desc.Label, Kind: gpu.KernelCompute}
	d.computes[h.ID] = &computeKernel{desc: desc, pipeline: pipeline, layout: pipeline.GetBindGroupLayout(0)}
	return h, nil
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func (d *Device) CreateRenderKernel(desc gpu.RenderKernelDesc) (gpu.KernelHandle, error) {
	if d.released {
		return gpu.KernelHandle{}, gpu.ErrContextReleased
	}
	module, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Source},
	})
	if err != nil {
		return gpu.KernelHandle{}, fmt.Errorf("shader %q: %w", desc.Label, err)
	}
	defer module.Release()

	attrs := make([]wgpu.VertexAttribute, len(desc.InstanceAttributes))
	for i, a := range desc.InstanceAttributes {
		attrs[i] = wgpu.VertexAttribute{Format: vertexFormat(a.Format), Offset: a.Offset, ShaderLocation: a.Location}
	}
	var buffers []wgpu.VertexBufferLayout
	if desc.InstanceStride > 0 {
		buffers = []wgpu.VertexBufferLayout{{
			ArrayStride: desc.InstanceStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes:  attrs,
		}}
	}

	var blend *wgpu.BlendState
	if desc.Additive {
		blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}

	pipeline, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: desc.Label,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    d.Config.Format,
				Blend:     blend,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return gpu.KernelHandle{}, fmt.Errorf("render pipeline %q: %w", desc.Label, err)
	}
	h := gpu.KernelHandle{ID: uuid.NewString(), Label: desc.Label, Kind: gpu.KernelRender}
	d.renders[h.ID] = &renderKernel{desc: desc, pipeline: pipeline, layout: pipeline.GetBindGroupLayout(0)}
	return h, nil
}

// bindGroup returns a cached bind group for the non-vertex bindings.
func (d *Device) bindGroup(kernelID string, layout *wgpu.BindGroupLayout, bindings []gpu.Binding) (*wgpu.BindGroup, error) {
	var key strings.Builder
	key.WriteString(kernelID)
	var entries []wgpu.BindGroupEntry
	for _, b := range bindings {
		if b.Access == gpu.AccessVertex {
			continue
		}
		buf, err := d.buffer(b.Buffer)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&key, "/%d:%s", b.Slot, b.Buffer.ID)
		entries = append(entries, wgpu.BindGroupEntry{gpu.Binding: b.Slot, Buffer: buf, Size: wgpu.WholeSize})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if bg, ok := d.bindGroups[key.String()]; ok {
		return bg, nil
	}
	bg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	d.bindGroups[key.String()] = bg
	return bg, nil
}

func (d *Device) Submit(stream *gpu.CommandStream) error {
	if d.released {
		return gpu.ErrContextReleased
	}
	if err := stream.Validate(); err != nil {
		return err
	}
	if stream.Len() == 0 {
		return nil
	}

	encoder, err := d.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: stream.Label})
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	defer encoder.Release()

	for _, cmd := range stream.Commands {
		switch c := cmd.(type) {
		case gpu.DispatchCommand:
			err = d.encodeDispatch(encoder, c)
		case gpu.DrawCommand:
			err = d.encodeDraw(encoder, c)
		}
		if err != nil {
			return fmt.Errorf("submit %q: %w", stream.Label, err)
		}
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	defer cmd.Release()
	d.Queue.Submit(cmd)
	return nil
}

func (d *Device) encodeDispatch(encoder *wgpu.CommandEncoder, c gpu.DispatchCommand) error {
	k, ok := d.computes[c.Kernel.ID]
	if !ok {
		return fmt.Errorf("kernel %q: %w", c.Kernel.Label, gpu.ErrUnknownResource)
	}
	bg, err := d.bindGroup(c.Kernel.ID, k.layout, c.Bindings)
	if err != nil {
		return err
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	if bg != nil {
		pass.SetBindGroup(0, bg, nil)
	}
	pass.DispatchWorkgroups(c.Groups, 1, 1)
	return pass.End()
}

func (d *Device) encodeDraw(encoder *wgpu.CommandEncoder, c gpu.DrawCommand) error {
	k, ok := d.renders[c.Kernel.ID]
	if !ok {
		return fmt.Errorf("kernel %q: %w", c.Kernel.Label, gpu.ErrUnknownResource)
	}
	if d.current == nil || d.current.frame.ID != c.Frame.ID {
		return gpu.ErrNoFrame
	}
	bg, err := d.bindGroup(c.Kernel.ID, k.layout, c.Bindings)
	if err != nil {
		return err
	}

	cc := k.desc.ClearColor
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       d.current.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]},
		}},
	})
	pass.SetPipeline(k.pipeline)
	if bg != nil {
		pass.SetBindGroup(0, bg, nil)
	}
	for _, b := range c.Bindings {
		if b.Access != gpu.AccessVertex {
			continue
		}
		buf, err := d.buffer(b.Buffer)
		if err != nil {
			pass.End()
			return err
		}
		pass.SetVertexBuffer(b.Slot, buf, 0, buf.GetSize())
	}
	pass.Draw(c.VertexCount, c.Instances, c.FirstVertex, 0)
	return pass.End()
}

// classifyAcquire maps surface status errors onto the transient sentinels.
func classifyAcquire(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "lost"):
		return fmt.Errorf("%w: %v", gpu.ErrFrameLost, err)
	case strings.Contains(msg, "outdated"):
		return fmt.Errorf("%w: %v", gpu.ErrFrameOutdated, err)
	case strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %v", gpu.ErrFrameTimeout, err)
	}
	return fmt.Errorf("acquire frame: %w", err)
}

func (d *Device) AcquireFrame() (gpu.Frame, error) {
	if d.released {
		return gpu.Frame{}, gpu.ErrContextReleased
	}
	d.dropFrame()

	texture, err := d.Surface.GetCurrentTexture()
	if err != nil {
		return gpu.Frame{}, classifyAcquire(err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return gpu.Frame{}, fmt.Errorf("create view: %w", err)
	}
	f := gpu.Frame{ID: uuid.NewString(), Width: d.Config.Width, Height: d.Config.Height}
	d.current = &acquiredFrame{frame: f, texture: texture, view: view}
	return f, nil
}

func (d *Device) dropFrame() {
	if d.current == nil {
		return
	}
	d.current.view.Release()
	d.current.texture.Release()
	d.current = nil
}

func (d *Device) Present(f gpu.Frame) error {
	if d.released {
		return gpu.ErrContextReleased
	}
	if d.current == nil || d.current.frame.ID != f.ID {
		return gpu.ErrNoFrame
	}
	d.Surface.Present()
	d.dropFrame()
	return nil
}

func (d *Device) Configure(width, height int) error {
	if d.released {
		return gpu.ErrContextReleased
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	d.dropFrame()
	d.Config.Width = uint32(width)
	d.Config.Height = uint32(height)
	d.Surface.Configure(d.Adapter, d.Device, d.Config)
	d.logger.Debugf("surface reconfigured to %dx%d", width, height)
	return nil
}

func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true
	d.dropFrame()
	for _, bg := range d.bindGroups {
		bg.Release()
	}
	for _, k := range d.computes {
		k.layout.Release()
		k.pipeline.Release()
	}
	for _, k := range d.renders {
		k.layout.Release()
		k.pipeline.Release()
	}
	for _, b := range d.buffers {
		b.Release()
	}
	d.bindGroups, d.computes, d.renders, d.buffers = nil, nil, nil, nil

	if d.Queue != nil {
		d.Queue.Release()
	}
	if d.Device != nil {
		d.Device.Release()
	}
	if d.Adapter != nil {
		d.Adapter.Release()
	}
	if d.Surface != nil {
		d.Surface.Release()
	}
	if d.Instance != nil {
		d.Instance.Release()
	}
}
