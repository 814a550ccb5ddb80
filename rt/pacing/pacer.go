package pacing

import (
	"time"
)

type State int

const (
	Idle State = iota
	Accumulating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Accumulating:
		return "Accumulating"
	default:
		return "Unknown"
	}
}

type Config struct {
	StepSize time.Duration
	// MaxStepsPerFrame caps DueSteps. Zero means unbounded.
	MaxStepsPerFrame int
	// MaxFrameDelta clamps the dt measured by Frame; the excess counts as
	// dropped. Zero means unclamped.
	MaxFrameDelta  time.Duration
	ReportInterval time.Duration
}

// FPSReport is emitted once per report interval.
type FPSReport struct {
	RenderFPS float64
	UpdateFPS float64
	Interval  time.Duration
	// Dropped is wall time the simulation skipped during the window, from the
	// frame delta clamp and the catch-up cap.
	Dropped time.Duration
}

type fpsWindow struct {
	count int
	start time.Time
}

// Pacer decides how many fixed-size simulation steps are due per displayed
// frame and keeps a rolling render/update rate.
type Pacer struct {
	clock Clock
	cfg   Config
	state State

	start     time.Time
	lastFrame time.Time

	accumulator time.Duration
	dropped     time.Duration
	droppedWin  time.Duration

	frames fpsWindow
	steps  fpsWindow
}

func NewPacer(clock Clock, cfg Config) *Pacer {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.StepSize <= 0 {
		panic("pacing: step size must be positive")
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = time.Second
	}
	now := clock.Now()
	return &Pacer{
		clock:  clock,
		cfg:    cfg,
		state:  Idle,
		start:  now,
		frames: fpsWindow{start: now},
		steps:  fpsWindow{start: now},
	}
}

func (p *Pacer) State() State {
	return p.state
}

// Frame measures the wall time since the previous call. The first call
// measures from construction.
func (p *Pacer) Frame() time.Duration {
	now := p.clock.Now()
	last := p.lastFrame
	if p.state == Idle {
		last = p.start
	}
	p.lastFrame = now

	dt := now.Sub(last)
	if dt < 0 {
		dt = 0
	}
	if p.cfg.MaxFrameDelta > 0 && dt > p.cfg.MaxFrameDelta {
		p.drop(dt - p.cfg.MaxFrameDelta)
		dt = p.cfg.MaxFrameDelta
	}
	p.state = Accumulating
	return dt
}

// DueSteps adds dt to the accumulator and returns how many whole steps are
// due. Steps beyond MaxStepsPerFrame are dropped, keeping only the sub-step
// remainder.
func (p *Pacer) DueSteps(dt time.Duration) int {
	p.state = Accumulating
	if dt > 0 {
		p.accumulator += dt
	}

	due := int(p.accumulator / p.cfg.StepSize)
	p.accumulator -= time.Duration(due) * p.cfg.StepSize

	if p.cfg.MaxStepsPerFrame > 0 && due > p.cfg.MaxStepsPerFrame {
		p.drop(time.Duration(due-p.cfg.MaxStepsPerFrame) * p.cfg.StepSize)
		due = p.cfg.MaxStepsPerFrame
	}
	return due
}

func (p *Pacer) drop(d time.Duration) {
	p.dropped += d
	p.droppedWin += d
}

// Dropped is the total wall time the simulation skipped.
func (p *Pacer) Dropped() time.Duration {
	return p.dropped
}

func (p *Pacer) MarkRenderFrame() {
	p.frames.count++
}

func (p *Pacer) MarkSimulationStep() {
	p.steps.count++
}

// FramesSinceReport is the render counter of the current window.
func (p *Pacer) FramesSinceReport() int {
	return p.frames.count
}

// Report returns the rates for the last window once more than ReportInterval
// has passed since the window started, and resets the window.
func (p *Pacer) Report() (FPSReport, bool) {
	now := p.clock.Now()
	if now.Sub(p.frames.start) <= p.cfg.ReportInterval {
		return FPSReport{}, false
	}

	secs := p.cfg.ReportInterval.Seconds()
	report := FPSReport{
		RenderFPS: float64(p.frames.count) / secs,
		UpdateFPS: float64(p.steps.count) / secs,
		Interval:  p.cfg.ReportInterval,
		Dropped:   p.droppedWin,
	}

	p.frames = fpsWindow{start: now}
	p.steps = fpsWindow{start: now}
	p.droppedWin = 0
	return report, true
}
