package particles

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/gekko3d/particlert/rt/shaders"
)

const (
	bindingParams = 0
	bindingRead   = 1
	bindingWrite  = 2
)

const simParamsSize = 16

// SimParams matches the SimParams uniform. Written once at startup.
type SimParams struct {
	StepSize   float32
	Count      uint32
	Attraction float32
	Damping    float32
}

func (p SimParams) Bytes() []byte {
	buf := make([]byte, simParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(p.StepSize))
	binary.LittleEndian.PutUint32(buf[4:], p.Count)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.Attraction))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(p.Damping))
	return buf
}

func decodeSimParams(b []byte) (SimParams, error) {
	if len(b) < simParamsSize {
		return SimParams{}, fmt.Errorf("sim params: %d bytes", len(b))
	}
	return SimParams{
		StepSize:   math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Count:      binary.LittleEndian.Uint32(b[4:]),
		Attraction: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		Damping:    math.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
	}, nil
}

// WorkgroupCount covers count particles with groups of groupSize.
func WorkgroupCount(count int, groupSize uint32) uint32 {
	if count <= 0 || groupSize == 0 {
		return 0
	}
	return (uint32(count) + groupSize - 1) / groupSize
}

// Dispatcher records one compute dispatch per simulation step.
type Dispatcher struct {
	gens      *GenerationManager
	kernel    gpu.KernelHandle
	params    gpu.BufferHandle
	groupSize uint32
	groups    uint32
}

func NewDispatcher(dev gpu.Device, gens *GenerationManager, params SimParams, groupSize uint32) (*Dispatcher, error) {
	if groupSize == 0 {
		return nil, fmt.Errorf("workgroup size must be positive")
	}
	params.Count = uint32(gens.Count())

	kernel, err := dev.CreateComputeKernel(gpu.ComputeKernelDesc{
		Label:         "Particle Simulation",
		Source:        shaders.ParticlesComputeWGSL(groupSize),
		EntryPoint:    shaders.ComputeEntry,
		WorkgroupSize: groupSize,
		Host:          StepKernel,
	})
	if err != nil {
		return nil, err
	}
	pbuf, err := dev.AllocateBuffer(gpu.BufferDesc{
		Label: "SimParamsUB",
		Size:  simParamsSize,
		Usage: gpu.BufferUsageUniform,
	}, params.Bytes())
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		gens:      gens,
		kernel:    kernel,
		params:    pbuf,
		groupSize: groupSize,
		groups:    WorkgroupCount(gens.Count(), groupSize),
	}, nil
}

func (d *Dispatcher) Groups() uint32 {
	return d.groups
}

// Step records the dispatch for tick. The caller completes the returned
// lease once stream is submitted.
func (d *Dispatcher) Step(stream *gpu.CommandStream, tick uint64) (StepLease, error) {
	lease, err := d.gens.Lease(tick)
	if err != nil {
		return StepLease{}, err
	}
	stream.DispatchCompute(d.kernel, []gpu.Binding{
		{Slot: bindingParams, Buffer: d.params, Access: gpu.AccessUniform},
		{Slot: bindingRead, Buffer: lease.Read.Buffer, Access: gpu.AccessReadOnly},
		{Slot: bindingWrite, Buffer: lease.Write.Buffer, Access: gpu.AccessReadWrite},
	}, d.groups)
	return lease, nil
}
