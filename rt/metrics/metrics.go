package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "particlert"

// Acquire error kinds.
const (
	AcquireLost     = "lost"
	AcquireOutdated = "outdated"
	AcquireTimeout  = "timeout"
)

// Metrics holds the frame loop collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	RenderFPS      prometheus.Gauge
	UpdateFPS      prometheus.Gauge
	Ticks          prometheus.Counter
	Frames         prometheus.Counter
	SkippedFrames  prometheus.Counter
	DroppedSeconds prometheus.Counter
	AcquireErrors  *prometheus.CounterVec
	StepsPerFrame  prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RenderFPS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "render_fps",
			Help:      "Displayed frames per second over the last report window",
		}),
		UpdateFPS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "update_fps",
			Help:      "Simulation steps per second over the last report window",
		}),
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_ticks_total",
			Help:      "Simulation steps enqueued",
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames presented",
		}),
		SkippedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Frames skipped because the surface was not available",
		}),
		DroppedSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_dropped_seconds_total",
			Help:      "Simulation time discarded by the catch-up cap",
		}),
		AcquireErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_acquire_errors_total",
			Help:      "Surface acquisition failures by kind",
		}, []string{"kind"}),
		StepsPerFrame: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "steps_per_frame",
			Help:      "Simulation steps enqueued per displayed frame",
			Buckets:   []float64{0, 1, 2, 3, 4, 8, 16},
		}),
	}
}

// ObserveReport records one FPS report.
func (m *Metrics) ObserveReport(renderFPS, updateFPS float64, dropped time.Duration) {
	if m == nil {
		return
	}
	m.RenderFPS.Set(renderFPS)
	m.UpdateFPS.Set(updateFPS)
	m.DroppedSeconds.Add(dropped.Seconds())
}

// ObserveFrame records the steps enqueued in one frame and whether it was
// presented.
func (m *Metrics) ObserveFrame(steps int, presented bool) {
	if m == nil {
		return
	}
	m.StepsPerFrame.Observe(float64(steps))
	m.Ticks.Add(float64(steps))
	if presented {
		m.Frames.Inc()
	} else {
		m.SkippedFrames.Inc()
	}
}

func (m *Metrics) ObserveAcquireError(kind string) {
	if m == nil {
		return
	}
	m.AcquireErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func NewServer(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := NewServer(addr, m.Handler())
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
