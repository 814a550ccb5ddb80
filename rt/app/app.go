package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gekko3d/particlert/rt/config"
	"github.com/gekko3d/particlert/rt/core"
	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/gekko3d/particlert/rt/input"
	"github.com/gekko3d/particlert/rt/logging"
	"github.com/gekko3d/particlert/rt/metrics"
	"github.com/gekko3d/particlert/rt/pacing"
	"github.com/gekko3d/particlert/rt/particles"
	"github.com/go-gl/mathgl/mgl32"
)

// App owns one particle system and drives it one displayed frame per Tick.
type App struct {
	cfg     config.Config
	dev     gpu.Device
	logger  logging.Logger
	metrics *metrics.Metrics

	Pacer       *pacing.Pacer
	Input       *input.Aggregator
	Rig         *core.Rig
	Generations *particles.GenerationManager
	Dispatcher  *particles.Dispatcher
	Renderer    *particles.Renderer

	// OnReport is called with every FPS report, after logging and metrics.
	OnReport func(pacing.FPSReport)

	computeStream *gpu.CommandStream
	renderStream  *gpu.CommandStream
	leases        []particles.StepLease

	width, height int
	frames        uint64
	closed        bool
}

func rigConfig(cfg config.Config) (core.RigConfig, error) {
	kind, err := core.ParseKind(cfg.Camera.Kind)
	if err != nil {
		return core.RigConfig{}, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	c := cfg.Camera
	return core.RigConfig{
		Kind:          kind,
		Position:      mgl32.Vec3(c.Position),
		Yaw:           mgl32.DegToRad(c.YawDegrees),
		Pitch:         mgl32.DegToRad(c.PitchDegrees),
		Speed:         c.Speed,
		Sensitivity:   c.Sensitivity,
		OrbitDistance: c.OrbitDistance,
		Width:         cfg.Window.Width,
		Height:        cfg.Window.Height,
		FovY:          mgl32.DegToRad(c.FovYDegrees),
		ZNear:         c.ZNear,
		ZFar:          c.ZFar,
	}, nil
}

// New validates cfg, seeds and uploads the particles and builds the kernels
// on dev. m may be nil.
func New(cfg config.Config, dev gpu.Device, clock pacing.Clock, logger logging.Logger, m *metrics.Metrics) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)

	rc, err := rigConfig(cfg)
	if err != nil {
		return nil, err
	}
	rig, err := core.NewRig(rc)
	if err != nil {
		return nil, err
	}

	seed := particles.SeedParticles(cfg.Particles.Count, cfg.Particles.SpawnExtent, cfg.Particles.Seed)
	gens, err := particles.NewGenerationManager(dev, seed)
	if err != nil {
		return nil, fmt.Errorf("particle buffers: %w", err)
	}
	dispatcher, err := particles.NewDispatcher(dev, gens, particles.SimParams{
		StepSize:   float32(cfg.Simulation.StepSize.Seconds()),
		Attraction: cfg.Simulation.Attraction,
		Damping:    cfg.Simulation.Damping,
	}, uint32(cfg.Particles.WorkgroupSize))
	if err != nil {
		return nil, fmt.Errorf("simulation kernel: %w", err)
	}
	renderer, err := particles.NewRenderer(dev, gens.Count())
	if err != nil {
		return nil, fmt.Errorf("render kernel: %w", err)
	}

	pacer := pacing.NewPacer(clock, pacing.Config{
		StepSize:         cfg.Simulation.StepSize,
		MaxStepsPerFrame: cfg.Simulation.MaxStepsPerFrame,
		MaxFrameDelta:    cfg.Simulation.MaxFrameDelta,
		ReportInterval:   cfg.Timing.ReportInterval,
	})

	logger.Infof("particle system ready: %d particles, %d workgroups of %d, %s camera",
		gens.Count(), dispatcher.Groups(), cfg.Particles.WorkgroupSize, rc.Kind)

	return &App{
		cfg:           cfg,
		dev:           dev,
		logger:        logger,
		metrics:       m,
		Pacer:         pacer,
		Input:         input.NewAggregator(),
		Rig:           rig,
		Generations:   gens,
		Dispatcher:    dispatcher,
		Renderer:      renderer,
		computeStream: gpu.NewCommandStream("Particle Compute"),
		renderStream:  gpu.NewCommandStream("Particle Render"),
		width:         cfg.Window.Width,
		height:        cfg.Window.Height,
	}, nil
}

// Frames is the number of completed Tick calls.
func (a *App) Frames() uint64 {
	return a.frames
}

// HandleEvent feeds one device event, tagged with the current frame.
func (a *App) HandleEvent(ev input.Event) {
	a.Input.ApplyEvent(ev, a.frames)
}

// Resize ignores zero sizes, which a minimised window reports.
func (a *App) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	a.width, a.height = width, height
	a.Rig.Resize(width, height)
	if err := a.dev.Configure(width, height); err != nil {
		return fmt.Errorf("resize to %dx%d: %w", width, height, err)
	}
	return nil
}

// Tick runs one displayed frame: camera update, due simulation steps, draw
// and present. Transient surface failures skip the draw and are not returned.
func (a *App) Tick() error {
	if a.closed {
		return gpu.ErrContextReleased
	}
	dt := a.Pacer.Frame()

	a.Input.ClearIfStale(a.frames)
	a.Rig.Integrate(a.Input.Sample(), float32(dt.Seconds()))

	steps := a.Pacer.DueSteps(dt)
	if err := a.simulate(steps); err != nil {
		return err
	}

	presented, err := a.render()
	if err != nil {
		return err
	}
	a.metrics.ObserveFrame(steps, presented)
	if presented {
		a.Pacer.MarkRenderFrame()
	}
	a.frames++

	if report, ok := a.Pacer.Report(); ok {
		a.report(report)
	}
	return nil
}

// simulate records steps dispatches into one submission. The generation
// counter only advances once the submission is accepted.
func (a *App) simulate(steps int) error {
	a.computeStream.Reset()
	a.leases = a.leases[:0]
	for i := 0; i < steps; i++ {
		lease, err := a.Dispatcher.Step(a.computeStream, a.Generations.Tick()+uint64(i)+1)
		if err != nil {
			a.Generations.Abandon()
			return fmt.Errorf("simulation step: %w", err)
		}
		a.leases = append(a.leases, lease)
	}
	if len(a.leases) == 0 {
		return nil
	}
	if err := a.dev.Submit(a.computeStream); err != nil {
		a.Generations.Abandon()
		return fmt.Errorf("submit %d steps: %w", steps, err)
	}
	for _, lease := range a.leases {
		if err := a.Generations.Complete(lease); err != nil {
			return err
		}
		a.Pacer.MarkSimulationStep()
	}
	return nil
}

func (a *App) render() (bool, error) {
	frame, err := a.dev.AcquireFrame()
	if err != nil {
		if !gpu.IsTransient(err) {
			return false, fmt.Errorf("acquire frame: %w", err)
		}
		return false, a.recoverSurface(err)
	}

	if err := a.Renderer.UpdateCamera(a.Rig.Matrices()); err != nil {
		return false, fmt.Errorf("camera upload: %w", err)
	}
	a.renderStream.Reset()
	a.Renderer.Draw(a.renderStream, frame, a.Generations.RenderView(a.Generations.Tick()))
	if err := a.dev.Submit(a.renderStream); err != nil {
		return false, fmt.Errorf("submit draw: %w", err)
	}
	if err := a.dev.Present(frame); err != nil {
		return false, fmt.Errorf("present: %w", err)
	}
	return true, nil
}

// recoverSurface handles a transient acquire failure. The frame is skipped;
// a lost surface is reconfigured first.
func (a *App) recoverSurface(err error) error {
	switch {
	case errors.Is(err, gpu.ErrFrameLost):
		a.metrics.ObserveAcquireError(metrics.AcquireLost)
		a.logger.Warnf("surface lost, reconfiguring %dx%d", a.width, a.height)
		if cerr := a.dev.Configure(a.width, a.height); cerr != nil {
			return fmt.Errorf("reconfigure after lost surface: %w", cerr)
		}
	case errors.Is(err, gpu.ErrFrameOutdated):
		a.metrics.ObserveAcquireError(metrics.AcquireOutdated)
		a.logger.Debugf("surface outdated, skipping frame %d", a.frames)
	default:
		a.metrics.ObserveAcquireError(metrics.AcquireTimeout)
		a.logger.Debugf("surface acquire timed out, skipping frame %d", a.frames)
	}
	return nil
}

func (a *App) report(r pacing.FPSReport) {
	if r.Dropped > 0 {
		a.logger.Warnf("render %.1f fps, update %.1f fps, dropped %s of simulation", r.RenderFPS, r.UpdateFPS, r.Dropped)
	} else {
		a.logger.Infof("render %.1f fps, update %.1f fps", r.RenderFPS, r.UpdateFPS)
	}
	a.metrics.ObserveReport(r.RenderFPS, r.UpdateFPS, r.Dropped)
	if a.OnReport != nil {
		a.OnReport(r)
	}
}

// Run calls poll then Tick until poll returns false, ctx is done or Tick
// fails.
func (a *App) Run(ctx context.Context, poll func() bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !poll() {
			return nil
		}
		if err := a.Tick(); err != nil {
			return err
		}
	}
}

// Close releases the device. Handles created through it become invalid.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.dev.Release()
}
