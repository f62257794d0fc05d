package processing

import (
	"fmt"
	"sync"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// Constants for priority levels
const (
	PriorityHigh     = "HIGH"
	PriorityStandard = "STANDARD"
	PriorityLow      = "LOW"
)

// StepDirector fans step results out to one pool per priority. Live
// consumers such as telemetry go on HIGH, storage on LOW, so a slow disk
// never delays the stream.
type StepDirector struct {
	logger        customlog.Logger
	pools         map[string]*ProcessingPool
	order         []string
	resultHandler ResultHandler
	running       bool
	mu            sync.RWMutex

	workers   int
	queueSize int
}

// DirectorOptions holds configuration options for the StepDirector
type DirectorOptions struct {
	Workers   int
	QueueSize int
}

// NewStepDirector creates a new step director
func NewStepDirector(logger customlog.Logger, options *DirectorOptions) *StepDirector {
	if options == nil {
		options = &DirectorOptions{
			Workers:   1,
			QueueSize: 100,
		}
	}

	return &StepDirector{
		logger:    logger,
		pools:     make(map[string]*ProcessingPool),
		workers:   options.Workers,
		queueSize: options.QueueSize,
	}
}

// Register adds a processor to the pool of the given priority, creating the
// pool on first use.
func (d *StepDirector) Register(priority, name string, processor StepProcessor) error {
	switch priority {
	case PriorityHigh, PriorityStandard, PriorityLow:
	default:
		return fmt.Errorf("unknown priority '%s' for processor '%s'", priority, name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pool, exists := d.pools[priority]
	if !exists {
		pool = NewProcessingPool(priority, d.workers, d.queueSize, d.logger)
		if d.resultHandler != nil {
			pool.SetResultHandler(d.resultHandler)
		}
		d.pools[priority] = pool
		d.order = append(d.order, priority)
		if d.running {
			pool.Start()
		}
	}
	pool.AddProcessor(name, processor)

	d.logger.Infof("Registered step processor '%s' on %s pool", name, priority)
	return nil
}

// SetResultHandler sets the result handler function for all pools
func (d *StepDirector) SetResultHandler(handler ResultHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resultHandler = handler
	for _, pool := range d.pools {
		pool.SetResultHandler(handler)
	}
}

// ObserveStep queues the step on every pool. It never blocks.
func (d *StepDirector) ObserveStep(step *bridge.StepResult) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		return
	}
	for _, priority := range d.order {
		d.pools[priority].ProcessStep(step)
	}
}

// Start starts all processing pools
func (d *StepDirector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}

	d.running = true
	d.logger.Infof("Starting Step Director with %d pools", len(d.pools))
	for _, priority := range d.order {
		d.pools[priority].Start()
	}
}

// Stop stops all processing pools after they drain
func (d *StepDirector) Stop() {
	d.mu.Lock()
	running := d.running
	d.running = false
	d.mu.Unlock()

	if !running {
		return
	}

	d.logger.Infof("Stopping Step Director")

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, priority := range d.order {
		d.pools[priority].Stop()
	}

	d.logger.Infof("Step Director stopped")
}

// GetPoolMetrics returns metrics for all pools
func (d *StepDirector) GetPoolMetrics() map[string]PoolMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	metrics := make(map[string]PoolMetrics, len(d.pools))
	for priority, pool := range d.pools {
		metrics[priority] = pool.GetMetrics()
	}
	return metrics
}
