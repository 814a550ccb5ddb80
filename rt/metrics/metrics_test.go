package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFrame(t *testing.T) {
	m := New()
	m.ObserveFrame(3, true)
	m.ObserveFrame(0, false)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedFrames))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepsPerFrame))
}

func TestObserveReport(t *testing.T) {
	m := New()
	m.ObserveReport(59.5, 60, 250*time.Millisecond)

	assert.Equal(t, 59.5, testutil.ToFloat64(m.RenderFPS))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.UpdateFPS))
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.DroppedSeconds), 1e-9)
}

func TestAcquireErrorsByKind(t *testing.T) {
	m := New()
	m.ObserveAcquireError(AcquireLost)
	m.ObserveAcquireError(AcquireLost)
	m.ObserveAcquireError(AcquireOutdated)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AcquireErrors.WithLabelValues(AcquireLost)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AcquireErrors.WithLabelValues(AcquireOutdated)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFrame(1, true)
	m.ObserveReport(1, 1, 0)
	m.ObserveAcquireError(AcquireTimeout)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveFrame(2, true)

	srv := httptest.NewServer(NewServer("", m.Handler()).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "particlert_frames_total 1")
}
