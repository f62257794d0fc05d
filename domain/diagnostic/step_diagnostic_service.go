package diagnostic

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	"github.com/open-teleop/mujoco-bridge/pkg/processing"
)

// StepMetrics represents the bridge diagnostics information
type StepMetrics struct {
	Timestamp     time.Time `json:"timestamp"`
	Started       bool      `json:"started"`
	CallCount     int       `json:"call_count"`
	SimTime       float64   `json:"sim_time"`
	LastLatencyUs int64     `json:"last_step_latency_us"`
	MeanLatencyUs float64   `json:"mean_step_latency_us"`
	MaxLatencyUs  int64     `json:"max_step_latency_us"`

	Latest          *bridge.StepResult                `json:"latest,omitempty"`
	Pools           map[string]processing.PoolMetrics `json:"pools,omitempty"`
	ProcessorErrors map[string]string                 `json:"processor_errors,omitempty"`
}

// StatusSource reports the relay state.
type StatusSource interface {
	Status() bridge.Status
}

// PoolSource reports the step pool metrics.
type PoolSource interface {
	GetPoolMetrics() map[string]processing.PoolMetrics
}

// ErrorSource reports the last error of every step processor.
type ErrorSource interface {
	LastErrors() map[string]string
}

// DiagnosticService aggregates step latencies and exposes them with the
// relay status over HTTP.
type DiagnosticService struct {
	status StatusSource
	clock  clock.Clock

	mu      sync.RWMutex
	pools   PoolSource
	errors  ErrorSource
	samples int64
	total   time.Duration
	last    time.Duration
	max     time.Duration
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService(status StatusSource, clk clock.Clock) *DiagnosticService {
	if clk == nil {
		clk = clock.New()
	}
	return &DiagnosticService{
		status: status,
		clock:  clk,
	}
}

// SetPoolSource attaches the step pool metrics.
func (s *DiagnosticService) SetPoolSource(p PoolSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools = p
}

// SetErrorSource attaches the processor error report.
func (s *DiagnosticService) SetErrorSource(e ErrorSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = e
}

// ObserveStep records the latency of one step.
func (s *DiagnosticService) ObserveStep(step *bridge.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples++
	s.total += step.Duration
	s.last = step.Duration
	if step.Duration > s.max {
		s.max = step.Duration
	}
}

// GetMetrics returns the current step metrics
func (s *DiagnosticService) GetMetrics() StepMetrics {
	// Status takes the relay lock, which is held while observers run.
	st := s.status.Status()

	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := StepMetrics{
		Timestamp:     s.clock.Now(),
		Started:       st.Started,
		CallCount:     st.CallCount,
		SimTime:       st.SimTime,
		Latest:        st.Latest,
		LastLatencyUs: s.last.Microseconds(),
		MaxLatencyUs:  s.max.Microseconds(),
	}
	if s.samples > 0 {
		metrics.MeanLatencyUs = float64(s.total.Microseconds()) / float64(s.samples)
	}
	if s.pools != nil {
		metrics.Pools = s.pools.GetPoolMetrics()
	}
	if s.errors != nil {
		if errs := s.errors.LastErrors(); len(errs) > 0 {
			metrics.ProcessorErrors = errs
		}
	}
	return metrics
}

// GetMetricsHandler handles API requests for step metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}
