package particles

import (
	"errors"
	"fmt"

	"github.com/gekko3d/particlert/rt/gpu"
)

var (
	ErrBufferSizeMismatch = errors.New("particle buffer size mismatch")
	ErrTickOutOfOrder     = errors.New("simulation tick out of order")
)

// WriteIndex is the buffer a step for tick writes.
func WriteIndex(tick uint64) int {
	return int(tick % 2)
}

// ReadIndexForRender is the buffer drawn after tick. It trails the newest
// state by one step so the draw never reads the buffer being written.
func ReadIndexForRender(tick uint64) int {
	return int((tick + 1) % 2)
}

type ReadView struct {
	Index  int
	Buffer gpu.BufferHandle
}

type WriteView struct {
	Index  int
	Buffer gpu.BufferHandle
}

// StepLease grants one simulation step access to its two buffers.
type StepLease struct {
	Tick  uint64
	Read  ReadView
	Write WriteView
}

// GenerationManager owns the two particle buffers and the tick counter that
// selects their roles.
type GenerationManager struct {
	buffers [2]gpu.BufferHandle
	count   int
	tick    uint64
	// leased is the newest tick handed out. Leases past tick are recorded
	// but not yet submitted.
	leased uint64
}

// NewGenerationManager allocates both buffers from the same seed data.
func NewGenerationManager(dev gpu.Device, seed []Particle) (*GenerationManager, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("%w: no particles", ErrBufferSizeMismatch)
	}
	data := EncodeParticles(seed)
	m := &GenerationManager{count: len(seed)}
	for i, label := range []string{"Particles A", "Particles B"} {
		h, err := dev.AllocateBuffer(gpu.BufferDesc{
			Label: label,
			Size:  uint64(len(data)),
			Usage: gpu.BufferUsageStorage | gpu.BufferUsageVertex,
		}, data)
		if err != nil {
			return nil, fmt.Errorf("allocate %s: %w", label, err)
		}
		if err := checkSize(h, m.count); err != nil {
			return nil, err
		}
		m.buffers[i] = h
	}
	return m, nil
}

func checkSize(h gpu.BufferHandle, count int) error {
	if want := uint64(count) * ParticleSize; h.Size != want {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrBufferSizeMismatch, h.Label, h.Size, want)
	}
	return nil
}

func (m *GenerationManager) Count() int {
	return m.count
}

// Tick is the number of completed steps.
func (m *GenerationManager) Tick() uint64 {
	return m.tick
}

func (m *GenerationManager) Buffer(index int) gpu.BufferHandle {
	return m.buffers[index]
}

// Lease hands out the views for tick, which must follow the newest
// outstanding lease, or Tick() when there is none.
func (m *GenerationManager) Lease(tick uint64) (StepLease, error) {
	if tick != m.leased+1 {
		return StepLease{}, fmt.Errorf("%w: lease for %d after %d", ErrTickOutOfOrder, tick, m.leased)
	}
	r, w := WriteIndex(tick-1), WriteIndex(tick)
	if r == w || m.buffers[r].ID == m.buffers[w].ID {
		return StepLease{}, fmt.Errorf("tick %d: %w", tick, gpu.ErrBufferAliasing)
	}
	m.leased = tick
	return StepLease{
		Tick:  tick,
		Read:  ReadView{Index: r, Buffer: m.buffers[r]},
		Write: WriteView{Index: w, Buffer: m.buffers[w]},
	}, nil
}

// Complete advances the tick counter past lease once its work is submitted.
// Leases complete in the order they were handed out.
func (m *GenerationManager) Complete(lease StepLease) error {
	if lease.Tick != m.tick+1 || lease.Tick > m.leased {
		return fmt.Errorf("%w: complete %d after %d", ErrTickOutOfOrder, lease.Tick, m.tick)
	}
	m.tick = lease.Tick
	return nil
}

// Abandon drops the outstanding leases after their work failed to submit.
// The next lease is for Tick()+1 again.
func (m *GenerationManager) Abandon() {
	m.leased = m.tick
}

// Pending is the number of leases handed out and not yet completed.
func (m *GenerationManager) Pending() int {
	return int(m.leased - m.tick)
}

func (m *GenerationManager) RenderView(tick uint64) ReadView {
	i := ReadIndexForRender(tick)
	return ReadView{Index: i, Buffer: m.buffers[i]}
}
