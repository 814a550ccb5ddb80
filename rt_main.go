package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/gekko3d/particlert/rt/app"
	"github.com/gekko3d/particlert/rt/config"
	"github.com/gekko3d/particlert/rt/gpu"
	"github.com/gekko3d/particlert/rt/gpu/wgpudev"
	"github.com/gekko3d/particlert/rt/input"
	"github.com/gekko3d/particlert/rt/input/glfwinput"
	"github.com/gekko3d/particlert/rt/logging"
	"github.com/gekko3d/particlert/rt/metrics"
	"github.com/gekko3d/particlert/rt/pacing"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	headless := flag.Bool("headless", false, "Run the simulation on the CPU without a window")
	frames := flag.Int("frames", 0, "Stop after this many frames (0 runs until closed)")
	camera := flag.String("camera", "", "Camera kind: first_person or orbit")
	count := flag.Int("particles", 0, "Override the particle count")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if *camera != "" {
		cfg.Camera.Kind = *camera
	}
	if *count > 0 {
		cfg.Particles.Count = *count
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger := logging.New(logging.Config{
		Environment: cfg.Logging.Environment,
		Level:       cfg.Logging.Level,
		Service:     "particlert",
	})
	defer logger.Sync()
	if *debug {
		logger.SetDebug(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		logger.Infof("serving metrics on %s/metrics", cfg.Metrics.Addr)
	}

	if *headless {
		runHeadless(ctx, cfg, logger, m, *frames)
		return
	}
	runWindowed(ctx, cfg, logger, m, *frames)
}

func limit(frames int, poll func() bool) func() bool {
	n := 0
	return func() bool {
		n++
		if frames > 0 && n > frames {
			return false
		}
		return poll()
	}
}

func runHeadless(ctx context.Context, cfg config.Config, logger logging.Logger, m *metrics.Metrics, frames int) {
	dev := gpu.NewHostDevice(cfg.Window.Width, cfg.Window.Height)
	application, err := app.New(cfg, dev, pacing.SystemClock{}, logger, m)
	if err != nil {
		panic(err)
	}
	defer application.Close()

	if err := application.Run(ctx, limit(frames, func() bool { return true })); err != nil {
		logger.Errorf("frame loop: %v", err)
	}
	logger.Infof("headless run finished after %d frames, %d simulation steps", application.Frames(), application.Generations.Tick())
}

func runWindowed(ctx context.Context, cfg config.Config, logger logging.Logger, m *metrics.Metrics, frames int) {
	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	dev, err := wgpudev.New(window, logger)
	if err != nil {
		panic(err)
	}
	// The framebuffer may differ from the requested window size on HiDPI displays.
	cfg.Window.Width, cfg.Window.Height = window.GetFramebufferSize()

	application, err := app.New(cfg, dev, pacing.SystemClock{}, logger, m)
	if err != nil {
		dev.Release()
		panic(err)
	}
	defer application.Close()

	application.OnReport = func(r pacing.FPSReport) {
		window.SetTitle(fmt.Sprintf("%s - %.0f fps (%.0f ups)", cfg.Window.Title, r.RenderFPS, r.UpdateFPS))
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if err := application.Resize(width, height); err != nil {
			logger.Errorf("%v", err)
		}
	})

	glfwinput.BindWindow(window, func(ev input.Event) {
		if k, ok := ev.(input.KeyEvent); ok && k.Key == input.KeyEscape && k.Pressed {
			window.SetShouldClose(true)
			return
		}
		application.HandleEvent(ev)
	})

	poll := func() bool {
		glfw.PollEvents()
		return !window.ShouldClose()
	}
	if err := application.Run(ctx, limit(frames, poll)); err != nil {
		logger.Errorf("frame loop: %v", err)
	}
}
