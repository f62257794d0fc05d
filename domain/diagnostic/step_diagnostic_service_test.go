package diagnostic

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	"github.com/open-teleop/mujoco-bridge/pkg/processing"
)

type fixedStatus bridge.Status

func (s fixedStatus) Status() bridge.Status { return bridge.Status(s) }

type fixedPools map[string]processing.PoolMetrics

func (p fixedPools) GetPoolMetrics() map[string]processing.PoolMetrics { return p }

type fixedErrors map[string]string

func (e fixedErrors) LastErrors() map[string]string { return e }

func TestLatencyAggregation(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1000, 0))

	latest := &bridge.StepResult{Call: 3, SimTime: 0.006}
	svc := NewDiagnosticService(fixedStatus{Started: true, CallCount: 3, SimTime: 0.006, Latest: latest}, clk)

	for _, d := range []time.Duration{100 * time.Microsecond, 300 * time.Microsecond, 200 * time.Microsecond} {
		svc.ObserveStep(&bridge.StepResult{Duration: d})
	}

	m := svc.GetMetrics()
	assert.True(t, m.Started)
	assert.Equal(t, 3, m.CallCount)
	assert.Equal(t, 0.006, m.SimTime)
	assert.Equal(t, int64(200), m.LastLatencyUs)
	assert.Equal(t, int64(300), m.MaxLatencyUs)
	assert.InDelta(t, 200.0, m.MeanLatencyUs, 1e-9)
	assert.Equal(t, time.Unix(1000, 0), m.Timestamp)
	assert.Same(t, latest, m.Latest)
	assert.Nil(t, m.Pools)
	assert.Nil(t, m.ProcessorErrors)
}

func TestNoStepsYet(t *testing.T) {
	svc := NewDiagnosticService(fixedStatus{}, clock.NewMock())
	m := svc.GetMetrics()
	assert.False(t, m.Started)
	assert.Zero(t, m.MeanLatencyUs)
	assert.Nil(t, m.Latest)
}

func TestMetricsHandler(t *testing.T) {
	svc := NewDiagnosticService(fixedStatus{Started: true, CallCount: 1}, clock.NewMock())
	svc.SetPoolSource(fixedPools{processing.PriorityHigh: {ProcessedCount: 7}})
	svc.SetErrorSource(fixedErrors{"recorder": "disk full"})
	svc.ObserveStep(&bridge.StepResult{Duration: 50 * time.Microsecond})

	app := fiber.New()
	app.Get("/api/v1/diagnostics", svc.GetMetricsHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/diagnostics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var got struct {
		Status  string `json:"status"`
		Metrics struct {
			CallCount       int                               `json:"call_count"`
			LastLatencyUs   int64                             `json:"last_step_latency_us"`
			Pools           map[string]processing.PoolMetrics `json:"pools"`
			ProcessorErrors map[string]string                 `json:"processor_errors"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, 1, got.Metrics.CallCount)
	assert.Equal(t, int64(50), got.Metrics.LastLatencyUs)
	assert.Equal(t, int64(7), got.Metrics.Pools[processing.PriorityHigh].ProcessedCount)
	assert.Equal(t, "disk full", got.Metrics.ProcessorErrors["recorder"])
}
