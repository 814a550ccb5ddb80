package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gekko3d/particlert/rt/config"
	"github.com/gekko3d/particlert/rt/core"
	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/gekko3d/particlert/rt/input"
	"github.com/gekko3d/particlert/rt/logging"
	"github.com/gekko3d/particlert/rt/metrics"
	"github.com/gekko3d/particlert/rt/pacing"
	"github.com/gekko3d/particlert/rt/particles"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 10 * time.Millisecond

type harness struct {
	app     *App
	dev     *gpu.HostDevice
	clock   *pacing.FakeClock
	metrics *metrics.Metrics
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Window.Width = 64
	cfg.Window.Height = 48
	cfg.Particles.Count = 256
	cfg.Simulation.StepSize = step
	cfg.Simulation.MaxStepsPerFrame = 4
	return cfg
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	dev := gpu.NewHostDevice(cfg.Window.Width, cfg.Window.Height)
	clock := pacing.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := metrics.New()
	a, err := New(cfg, dev, clock, logging.NewNop(), m)
	require.NoError(t, err)
	return &harness{app: a, dev: dev, clock: clock, metrics: m}
}

func TestTickRunsDueSteps(t *testing.T) {
	h := newHarness(t, testConfig())

	h.clock.Advance(3 * step)
	require.NoError(t, h.app.Tick())
	assert.Equal(t, uint64(3), h.app.Generations.Tick())
	assert.Equal(t, 3, h.dev.Stats().Dispatches)
	assert.Equal(t, 1, h.dev.Stats().Presented)
	assert.Equal(t, uint64(1), h.app.Frames())

	// Less than a step: render only.
	h.clock.Advance(step / 2)
	require.NoError(t, h.app.Tick())
	assert.Equal(t, uint64(3), h.app.Generations.Tick())
	assert.Equal(t, 2, h.dev.Stats().Presented)

	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.Ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Frames))
}

func TestTickDrawsRenderView(t *testing.T) {
	h := newHarness(t, testConfig())

	h.clock.Advance(step)
	require.NoError(t, h.app.Tick())

	draw, ok := h.dev.LastDraw()
	require.True(t, ok)
	want := h.app.Generations.Buffer(particles.ReadIndexForRender(1))
	var drawn gpu.BufferHandle
	for _, b := range draw.Bindings {
		if b.Access == gpu.AccessVertex {
			drawn = b.Buffer
		}
	}
	assert.Equal(t, want, drawn)
	assert.Equal(t, uint32(256), draw.Instances)
}

func TestTickCapsCatchUp(t *testing.T) {
	h := newHarness(t, testConfig())

	h.clock.Advance(10 * step)
	require.NoError(t, h.app.Tick())
	assert.Equal(t, uint64(4), h.app.Generations.Tick())
	assert.Equal(t, 6*step, h.app.Pacer.Dropped())
}

func TestWallTimeIsSimulatedOrDropped(t *testing.T) {
	h := newHarness(t, testConfig())
	var reports []pacing.FPSReport
	h.app.OnReport = func(r pacing.FPSReport) { reports = append(reports, r) }

	// The 250ms frame clamp and the 4 step cap both drop time.
	wall := 2 * time.Second
	h.clock.Advance(wall)
	require.NoError(t, h.app.Tick())

	simulated := time.Duration(h.app.Generations.Tick()) * step
	assert.Equal(t, 40*time.Millisecond, simulated)
	assert.Equal(t, wall, simulated+h.app.Pacer.Dropped())

	require.Len(t, reports, 1)
	assert.Equal(t, wall-simulated, reports[0].Dropped)
	assert.InDelta(t, (wall - simulated).Seconds(), testutil.ToFloat64(h.metrics.DroppedSeconds), 1e-9)
}

func TestFailedSubmitDoesNotAdvanceTick(t *testing.T) {
	h := newHarness(t, testConfig())
	h.dev.Release()

	h.clock.Advance(3 * step)
	assert.ErrorIs(t, h.app.Tick(), gpu.ErrContextReleased)
	assert.Zero(t, h.app.Generations.Tick())
	assert.Zero(t, h.app.Generations.Pending())
	assert.Zero(t, testutil.ToFloat64(h.metrics.Ticks))
}

func TestTickSurvivesLostSurface(t *testing.T) {
	h := newHarness(t, testConfig())
	h.dev.FailNextAcquire(gpu.ErrFrameLost)

	h.clock.Advance(step)
	require.NoError(t, h.app.Tick())
	assert.Equal(t, uint64(1), h.app.Generations.Tick(), "steps still run")
	assert.Equal(t, 1, h.dev.Stats().Configures)
	assert.Zero(t, h.dev.Stats().Presented)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AcquireErrors.WithLabelValues(metrics.AcquireLost)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SkippedFrames))

	h.clock.Advance(step)
	require.NoError(t, h.app.Tick())
	assert.Equal(t, 1, h.dev.Stats().Presented)
}

func TestTickSkipsOutdatedAndTimeout(t *testing.T) {
	h := newHarness(t, testConfig())
	h.dev.FailNextAcquire(gpu.ErrFrameOutdated, gpu.ErrFrameTimeout)

	for i := 0; i < 2; i++ {
		h.clock.Advance(step)
		require.NoError(t, h.app.Tick())
	}
	assert.Equal(t, uint64(2), h.app.Generations.Tick())
	assert.Zero(t, h.dev.Stats().Configures)
	assert.Zero(t, h.dev.Stats().Presented)
	assert.Equal(t, uint64(2), h.app.Frames())
}

func TestTickReturnsFatalAcquireError(t *testing.T) {
	h := newHarness(t, testConfig())
	boom := errors.New("device lost")
	h.dev.FailNextAcquire(boom)

	h.clock.Advance(step)
	err := h.app.Tick()
	assert.ErrorIs(t, err, boom)
}

func TestResize(t *testing.T) {
	cfg := testConfig()
	cfg.Window.Width, cfg.Window.Height = 1920, 1080
	h := newHarness(t, cfg)

	require.NoError(t, h.app.Resize(800, 600))
	assert.InDelta(t, 800.0/600.0, h.app.Rig.Projection().Aspect, 1e-6)
	w, hh := h.dev.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, hh)

	require.NoError(t, h.app.Resize(0, 0))
	assert.InDelta(t, 800.0/600.0, h.app.Rig.Projection().Aspect, 1e-6)
	assert.Equal(t, 1, h.dev.Stats().Configures)
}

func TestMouseLookAppliesOnce(t *testing.T) {
	h := newHarness(t, testConfig())
	cam := h.app.Rig.Camera().(*core.CameraState)
	yaw := cam.Yaw

	h.app.HandleEvent(input.ButtonEvent{Button: input.MouseButtonRight, Pressed: true})
	h.app.HandleEvent(input.CursorEvent{X: 10, Y: 10})
	h.app.HandleEvent(input.CursorEvent{X: 40, Y: 10})

	h.clock.Advance(step)
	require.NoError(t, h.app.Tick())
	turned := cam.Yaw
	assert.Greater(t, turned, yaw)

	// No new cursor motion: the old delta is stale.
	h.clock.Advance(step)
	require.NoError(t, h.app.Tick())
	assert.Equal(t, turned, cam.Yaw)
}

func TestHeldKeyMovesEveryFrame(t *testing.T) {
	h := newHarness(t, testConfig())
	start := h.app.Rig.Camera().Position()

	h.app.HandleEvent(input.KeyEvent{Key: input.KeyW, Pressed: true})
	for i := 0; i < 3; i++ {
		h.clock.Advance(step)
		require.NoError(t, h.app.Tick())
	}
	moved := h.app.Rig.Camera().Position()
	// Default camera looks down -Z.
	assert.InDelta(t, start.Z()-3*float32(step.Seconds())*30, moved.Z(), 1e-3)
}

func TestReportCallback(t *testing.T) {
	h := newHarness(t, testConfig())
	var reports []pacing.FPSReport
	h.app.OnReport = func(r pacing.FPSReport) { reports = append(reports, r) }

	for i := 0; i < 11; i++ {
		h.clock.Advance(100 * time.Millisecond)
		require.NoError(t, h.app.Tick())
	}
	require.Len(t, reports, 1)
	assert.Greater(t, reports[0].RenderFPS, 0.0)
	assert.Equal(t, reports[0].RenderFPS, testutil.ToFloat64(h.metrics.RenderFPS))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Window.Width = 0
	_, err := New(cfg, gpu.NewHostDevice(1, 1), nil, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = testConfig()
	cfg.Particles.Count = 0
	_, err = New(cfg, gpu.NewHostDevice(1, 1), nil, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOrbitCamera(t *testing.T) {
	cfg := testConfig()
	cfg.Camera.Kind = config.CameraOrbit
	h := newHarness(t, cfg)
	_, ok := h.app.Rig.Camera().(*core.OrbitState)
	assert.True(t, ok)
}

func TestRunStopsWhenPollFails(t *testing.T) {
	h := newHarness(t, testConfig())
	polls := 0
	err := h.app.Run(context.Background(), func() bool {
		polls++
		h.clock.Advance(step)
		return polls <= 3
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h.app.Frames())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	err := h.app.Run(ctx, func() bool {
		cancel()
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.app.Frames())
}

func TestCloseReleasesDevice(t *testing.T) {
	h := newHarness(t, testConfig())
	h.app.Close()
	h.app.Close()

	assert.ErrorIs(t, h.app.Tick(), gpu.ErrContextReleased)
	_, err := h.dev.AcquireFrame()
	assert.ErrorIs(t, err, gpu.ErrContextReleased)
}
