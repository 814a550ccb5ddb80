package particles

import (
	"testing"

	"github.com/gekko3d/particlert/rt/core"
	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = SimParams{StepSize: 1.0 / 60, Attraction: 0.5, Damping: 0.999}

func TestWorkgroupCount(t *testing.T) {
	cases := []struct {
		count int
		size  uint32
		want  uint32
	}{
		{1_000_000, 64, 15625},
		{1_000_001, 64, 15626},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{0, 64, 0},
		{10, 0, 0},
	}
	for _, c := range cases {
		if got := WorkgroupCount(c.count, c.size); got != c.want {
			t.Errorf("WorkgroupCount(%d, %d) = %d, want %d", c.count, c.size, got, c.want)
		}
	}
}

func TestParticleEncoding(t *testing.T) {
	p := Particle{
		Position: [4]float32{1, -2, 3, 1},
		Velocity: [4]float32{0.5, 0, -0.25, 0},
		Color:    [4]float32{0.1, 0.2, 0.3, 1},
	}
	b := EncodeParticles([]Particle{p, p})
	require.Len(t, b, 2*ParticleSize)

	got, err := DecodeParticles(b)
	require.NoError(t, err)
	assert.Equal(t, []Particle{p, p}, got)

	_, err = DecodeParticles(b[:50])
	assert.ErrorIs(t, err, ErrBufferSizeMismatch)
}

func TestSeedParticlesDeterministic(t *testing.T) {
	a := SeedParticles(100, [3]float32{100, 100, 0}, 7)
	b := SeedParticles(100, [3]float32{100, 100, 0}, 7)
	assert.Equal(t, a, b)
	for _, p := range a {
		assert.LessOrEqual(t, p.Position[0], float32(50))
		assert.GreaterOrEqual(t, p.Position[0], float32(-50))
		assert.Zero(t, p.Position[2])
		assert.Equal(t, float32(1), p.Position[3])
		assert.Equal(t, [4]float32{}, p.Velocity)
	}
}

func TestIntegratePullsTowardOrigin(t *testing.T) {
	p := Particle{Position: [4]float32{10, 0, 0, 1}}
	next := Integrate(p, testParams)
	assert.Less(t, next.Velocity[0], float32(0))
	assert.Less(t, next.Position[0], float32(10))
	assert.Equal(t, float32(1), next.Position[3])
	assert.Equal(t, float32(1), next.Color[3])
}

func TestStepPingPongsOnHostDevice(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	seed := SeedParticles(100, [3]float32{100, 100, 0}, 3)
	gens, err := NewGenerationManager(dev, seed)
	require.NoError(t, err)
	d, err := NewDispatcher(dev, gens, testParams, 64)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), d.Groups())

	stream := gpu.NewCommandStream("compute")
	lease, err := d.Step(stream, 1)
	require.NoError(t, err)
	require.NoError(t, dev.Submit(stream))
	require.NoError(t, gens.Complete(lease))

	params := testParams
	params.Count = 100
	want := make([]Particle, len(seed))
	for i, p := range seed {
		want[i] = Integrate(p, params)
	}

	a, err := dev.ReadBuffer(gens.Buffer(0))
	require.NoError(t, err)
	b, err := dev.ReadBuffer(gens.Buffer(1))
	require.NoError(t, err)
	assert.Equal(t, EncodeParticles(seed), a, "read side untouched")
	assert.Equal(t, EncodeParticles(want), b, "tick 1 writes B")

	// Tick 2 reads B and writes A.
	stream.Reset()
	lease, err = d.Step(stream, 2)
	require.NoError(t, err)
	require.NoError(t, dev.Submit(stream))
	require.NoError(t, gens.Complete(lease))
	for i := range want {
		want[i] = Integrate(want[i], params)
	}
	a, err = dev.ReadBuffer(gens.Buffer(0))
	require.NoError(t, err)
	assert.Equal(t, EncodeParticles(want), a)
	assert.Equal(t, uint64(2), gens.Tick())
}

func TestStepRecordsBindings(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	gens, err := NewGenerationManager(dev, SeedParticles(130, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)
	d, err := NewDispatcher(dev, gens, testParams, 64)
	require.NoError(t, err)

	stream := gpu.NewCommandStream("compute")
	_, err = d.Step(stream, 1)
	require.NoError(t, err)
	_, err = d.Step(stream, 2)
	require.NoError(t, err)
	require.Equal(t, 2, stream.Len())
	assert.Equal(t, 2, gens.Pending())
	assert.Zero(t, gens.Tick(), "recording does not advance the tick")

	cmd := stream.Commands[1].(gpu.DispatchCommand)
	assert.Equal(t, uint32(3), cmd.Groups)
	require.Len(t, cmd.Bindings, 3)
	assert.Equal(t, gpu.AccessUniform, cmd.Bindings[0].Access)
	assert.Equal(t, gens.Buffer(1), cmd.Bindings[1].Buffer)
	assert.Equal(t, gpu.AccessReadOnly, cmd.Bindings[1].Access)
	assert.Equal(t, gens.Buffer(0), cmd.Bindings[2].Buffer)
	assert.Equal(t, gpu.AccessReadWrite, cmd.Bindings[2].Access)

	_, err = d.Step(stream, 5)
	assert.ErrorIs(t, err, ErrTickOutOfOrder)
}

func TestPackCamera(t *testing.T) {
	rig, err := core.NewRig(core.RigConfig{
		Position: mgl32.Vec3{1, 2, 3},
		Speed:    1, Sensitivity: 1,
		Width: 100, Height: 100,
		FovY: 1, ZNear: 0.1, ZFar: 10,
	})
	require.NoError(t, err)
	m := rig.Matrices()

	buf := PackCamera(m)
	require.Len(t, buf, CameraUniformSize)

	floats := make([]float32, 52)
	for i := range floats {
		floats[i] = getVec4(buf[i/4*16:])[i%4]
	}
	assert.Equal(t, m.View[:], floats[0:16])
	assert.Equal(t, m.Projection[:], floats[16:32])
	assert.Equal(t, m.InverseView[:], floats[32:48])
	assert.Equal(t, []float32{1, 2, 3, 1}, floats[48:52])
}

func TestRendererDrawsRenderView(t *testing.T) {
	dev := gpu.NewHostDevice(8, 8)
	gens, err := NewGenerationManager(dev, SeedParticles(5, [3]float32{1, 1, 1}, 1))
	require.NoError(t, err)
	r, err := NewRenderer(dev, gens.Count())
	require.NoError(t, err)

	frame, err := dev.AcquireFrame()
	require.NoError(t, err)
	stream := gpu.NewCommandStream("render")
	r.Draw(stream, frame, gens.RenderView(0))
	require.NoError(t, dev.Submit(stream))

	draw, ok := dev.LastDraw()
	require.True(t, ok)
	assert.Equal(t, uint32(QuadVertices), draw.VertexCount)
	assert.Equal(t, uint32(5), draw.Instances)
	assert.Equal(t, gens.Buffer(1), draw.Bindings[1].Buffer, "tick 0 renders B")
}
