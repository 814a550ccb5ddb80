package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure. These are fatal at startup.
var ErrInvalidConfig = errors.New("invalid config")

const (
	CameraFirstPerson = "first_person"
	CameraOrbit       = "orbit"
)

type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Particles  ParticleConfig   `yaml:"particles"`
	Simulation SimulationConfig `yaml:"simulation"`
	Camera     CameraConfig     `yaml:"camera"`
	Timing     TimingConfig     `yaml:"timing"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type ParticleConfig struct {
	Count         int        `yaml:"count"`
	WorkgroupSize int        `yaml:"workgroup_size"`
	SpawnExtent   [3]float32 `yaml:"spawn_extent"`
	Seed          int64      `yaml:"seed"`
}

type SimulationConfig struct {
	StepSize         time.Duration `yaml:"step_size"`
	MaxStepsPerFrame int           `yaml:"max_steps_per_frame"`
	MaxFrameDelta    time.Duration `yaml:"max_frame_delta"`
	Attraction       float32       `yaml:"attraction"`
	Damping          float32       `yaml:"damping"`
}

type CameraConfig struct {
	Kind          string     `yaml:"kind"`
	Position      [3]float32 `yaml:"position"`
	YawDegrees    float32    `yaml:"yaw_degrees"`
	PitchDegrees  float32    `yaml:"pitch_degrees"`
	FovYDegrees   float32    `yaml:"fov_y_degrees"`
	ZNear         float32    `yaml:"z_near"`
	ZFar          float32    `yaml:"z_far"`
	Speed         float32    `yaml:"speed"`
	Sensitivity   float32    `yaml:"sensitivity"`
	OrbitDistance float32    `yaml:"orbit_distance"`
}

type TimingConfig struct {
	ReportInterval time.Duration `yaml:"report_interval"`
}

type LoggingConfig struct {
	Environment string `yaml:"environment"`
	Level       string `yaml:"level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Width:  1024,
			Height: 1024,
			Title:  "GPU Particles",
		},
		Particles: ParticleConfig{
			Count:         1_000_000,
			WorkgroupSize: 64,
			SpawnExtent:   [3]float32{100, 100, 0},
			Seed:          1,
		},
		Simulation: SimulationConfig{
			StepSize:         time.Second / 60,
			MaxStepsPerFrame: 8,
			MaxFrameDelta:    250 * time.Millisecond,
			Attraction:       0.5,
			Damping:          0.999,
		},
		Camera: CameraConfig{
			Kind:          CameraFirstPerson,
			Position:      [3]float32{0, 0, 70},
			YawDegrees:    -90,
			PitchDegrees:  0,
			FovYDegrees:   90,
			ZNear:         0.01,
			ZFar:          100000,
			Speed:         30,
			Sensitivity:   0.4,
			OrbitDistance: 70,
		},
		Timing: TimingConfig{
			ReportInterval: time.Second,
		},
		Logging: LoggingConfig{
			Environment: "development",
			Level:       "info",
		},
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping any field the document does not set.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports configuration errors that make the simulation impossible to start.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Window.Width > 0 && c.Window.Height > 0, "window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	check(c.Particles.Count > 0, "particle count must be positive, got %d", c.Particles.Count)
	check(c.Particles.WorkgroupSize > 0, "workgroup size must be positive, got %d", c.Particles.WorkgroupSize)
	check(c.Simulation.StepSize > 0, "simulation step must be positive, got %s", c.Simulation.StepSize)
	check(c.Simulation.MaxStepsPerFrame >= 0, "max steps per frame must not be negative, got %d", c.Simulation.MaxStepsPerFrame)
	check(c.Timing.ReportInterval > 0, "report interval must be positive, got %s", c.Timing.ReportInterval)
	check(c.Camera.Kind == CameraFirstPerson || c.Camera.Kind == CameraOrbit, "unknown camera kind %q", c.Camera.Kind)
	check(c.Camera.FovYDegrees > 0 && c.Camera.FovYDegrees < 180, "fov must be in (0, 180), got %v", c.Camera.FovYDegrees)
	check(c.Camera.ZNear > 0 && c.Camera.ZFar > c.Camera.ZNear, "clip planes must satisfy 0 < near < far, got %v/%v", c.Camera.ZNear, c.Camera.ZFar)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
