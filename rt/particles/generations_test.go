package particles

import (
	"errors"
	"testing"

	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParityNeverAliases(t *testing.T) {
	for tick := uint64(0); tick < 1000; tick++ {
		if WriteIndex(tick) == ReadIndexForRender(tick) {
			t.Fatalf("tick %d: write and render index are both %d", tick, WriteIndex(tick))
		}
	}
	assert.NotEqual(t, WriteIndex(^uint64(0)), ReadIndexForRender(^uint64(0)))
}

func TestFirstTickScenario(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	m, err := NewGenerationManager(dev, SeedParticles(10, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, WriteIndex(1), "tick 1 writes B")
	assert.Equal(t, 0, ReadIndexForRender(1), "tick 1 renders A")

	lease, err := m.Lease(1)
	require.NoError(t, err)
	assert.Equal(t, 0, lease.Read.Index)
	assert.Equal(t, 1, lease.Write.Index)
	assert.Equal(t, m.Buffer(0), lease.Read.Buffer)
	assert.Equal(t, m.Buffer(1), lease.Write.Buffer)

	require.NoError(t, m.Complete(lease))
	assert.Equal(t, uint64(1), m.Tick())
	assert.Equal(t, m.Buffer(0), m.RenderView(1).Buffer)
}

func TestLeaseAlternates(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	m, err := NewGenerationManager(dev, SeedParticles(4, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)

	for tick := uint64(1); tick <= 6; tick++ {
		lease, err := m.Lease(tick)
		require.NoError(t, err)
		assert.NotEqual(t, lease.Read.Buffer.ID, lease.Write.Buffer.ID)
		assert.Equal(t, WriteIndex(tick-1), lease.Read.Index, "reads what the previous step wrote")
		require.NoError(t, m.Complete(lease))
	}
}

func TestLeaseRejectsOutOfOrder(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	m, err := NewGenerationManager(dev, SeedParticles(4, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)

	_, err = m.Lease(2)
	assert.True(t, errors.Is(err, ErrTickOutOfOrder))
	_, err = m.Lease(0)
	assert.True(t, errors.Is(err, ErrTickOutOfOrder))

	lease, err := m.Lease(1)
	require.NoError(t, err)
	require.NoError(t, m.Complete(lease))
	assert.True(t, errors.Is(m.Complete(lease), ErrTickOutOfOrder), "a lease completes once")
}

func TestLeasesCompleteInOrder(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	m, err := NewGenerationManager(dev, SeedParticles(4, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)

	first, err := m.Lease(1)
	require.NoError(t, err)
	second, err := m.Lease(2)
	require.NoError(t, err)
	assert.Equal(t, first.Write.Index, second.Read.Index)
	assert.Equal(t, 2, m.Pending())

	assert.ErrorIs(t, m.Complete(second), ErrTickOutOfOrder)
	require.NoError(t, m.Complete(first))
	require.NoError(t, m.Complete(second))
	assert.Equal(t, uint64(2), m.Tick())
	assert.Zero(t, m.Pending())
}

func TestAbandonDropsOutstandingLeases(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	m, err := NewGenerationManager(dev, SeedParticles(4, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)

	lease, err := m.Lease(1)
	require.NoError(t, err)
	_, err = m.Lease(2)
	require.NoError(t, err)

	m.Abandon()
	assert.Zero(t, m.Tick())
	assert.Zero(t, m.Pending())
	assert.ErrorIs(t, m.Complete(lease), ErrTickOutOfOrder, "abandoned leases do not complete")

	again, err := m.Lease(1)
	require.NoError(t, err)
	assert.Equal(t, lease, again)
}

func TestLeaseRejectsAliasedBuffers(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	m, err := NewGenerationManager(dev, SeedParticles(4, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)
	m.buffers[1] = m.buffers[0]

	_, err = m.Lease(1)
	assert.True(t, errors.Is(err, gpu.ErrBufferAliasing))
}

func TestBothBuffersSeededIdentically(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	seed := SeedParticles(16, [3]float32{100, 100, 0}, 42)
	m, err := NewGenerationManager(dev, seed)
	require.NoError(t, err)

	a, err := dev.ReadBuffer(m.Buffer(0))
	require.NoError(t, err)
	b, err := dev.ReadBuffer(m.Buffer(1))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, EncodeParticles(seed), a)
}

func TestNewGenerationManagerRejectsEmpty(t *testing.T) {
	_, err := NewGenerationManager(gpu.NewHostDevice(8, 8), nil)
	assert.True(t, errors.Is(err, ErrBufferSizeMismatch))
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, checkSize(gpu.BufferHandle{Size: 480}, 10))
	assert.True(t, errors.Is(checkSize(gpu.BufferHandle{Size: 479}, 10), ErrBufferSizeMismatch))
}
