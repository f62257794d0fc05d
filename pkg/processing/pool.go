package processing

import (
	"sync"
	"time"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// ProcessResult is the outcome of running one processor on one step
type ProcessResult struct {
	Processor string
	Call      int
	Timestamp int64
	Error     error
}

// ResultHandler is a function that handles processed results
type ResultHandler func(result *ProcessResult)

// ProcessingPool is a bounded queue of step results drained by a fixed
// number of workers. Every queued step is passed to each registered
// processor in registration order.
type ProcessingPool struct {
	name          string
	workerCount   int
	logger        customlog.Logger
	stepQueue     chan *bridge.StepResult
	running       bool
	wg            sync.WaitGroup
	mu            sync.Mutex
	processors    []namedProcessor
	resultHandler ResultHandler
	queueSize     int
	metrics       *PoolMetrics
}

type namedProcessor struct {
	name    string
	process StepProcessor
}

// PoolMetrics tracks metrics for a processing pool
type PoolMetrics struct {
	ProcessedCount    int64 `json:"processed"`
	ErrorCount        int64 `json:"errors"`
	QueuedCount       int64 `json:"queued"`
	DroppedCount      int64 `json:"dropped"`
	LastProcessedTime int64 `json:"last_processed"`
	ProcessingTimeAvg int64 `json:"avg_time_us"` // in microseconds
	ProcessingTimeMax int64 `json:"max_time_us"` // in microseconds
	mu                sync.Mutex
}

// NewProcessingPool creates a new processing pool
func NewProcessingPool(
	name string,
	workerCount int,
	queueSize int,
	logger customlog.Logger,
) *ProcessingPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &ProcessingPool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      logger,
		stepQueue:   make(chan *bridge.StepResult, queueSize),
		metrics:     &PoolMetrics{},
	}
}

// AddProcessor appends a processor. Processors added after Start are picked
// up from the next step on.
func (p *ProcessingPool) AddProcessor(name string, processor StepProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processors = append(p.processors, namedProcessor{name: name, process: processor})
}

// SetResultHandler sets the result handler function
func (p *ProcessingPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

// ProcessStep adds a step to the queue. It never blocks: when the queue is
// full the step is dropped and false is returned.
func (p *ProcessingPool) ProcessStep(step *bridge.StepResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warnf("%s pool not running, discarding step %d", p.name, step.Call)
		return false
	}

	p.metrics.mu.Lock()
	p.metrics.QueuedCount++
	p.metrics.mu.Unlock()

	select {
	case p.stepQueue <- step:
		return true
	default:
		p.metrics.mu.Lock()
		p.metrics.DroppedCount++
		p.metrics.mu.Unlock()
		p.logger.Warnf("%s pool queue is full, discarding step %d", p.name, step.Call)
		return false
	}
}

// Start starts the processing pool workers
func (p *ProcessingPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (p *ProcessingPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	// ProcessStep sends under mu, so nothing can send after this close.
	close(p.stepQueue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)
	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	p.logMetrics()
}

// worker processes steps from the queue
func (p *ProcessingPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for step := range p.stepQueue {
		p.mu.Lock()
		processors := p.processors
		resultHandler := p.resultHandler
		p.mu.Unlock()

		if len(processors) == 0 {
			p.logger.Errorf("No step processor set for %s pool", p.name)
			continue
		}

		for _, proc := range processors {
			startTime := time.Now()
			err := proc.process(step)
			processingTime := time.Since(startTime).Microseconds()

			p.metrics.mu.Lock()
			p.metrics.ProcessedCount++
			p.metrics.LastProcessedTime = time.Now().UnixNano()
			if p.metrics.ProcessingTimeAvg == 0 {
				p.metrics.ProcessingTimeAvg = processingTime
			} else {
				// Simple moving average
				p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
			}
			if processingTime > p.metrics.ProcessingTimeMax {
				p.metrics.ProcessingTimeMax = processingTime
			}
			if err != nil {
				p.metrics.ErrorCount++
			}
			p.metrics.mu.Unlock()

			if resultHandler != nil {
				resultHandler(&ProcessResult{
					Processor: proc.name,
					Call:      step.Call,
					Timestamp: step.Stamp.UnixNano(),
					Error:     err,
				})
			}
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

// GetMetrics returns a copy of the current metrics
func (p *ProcessingPool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		DroppedCount:      p.metrics.DroppedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

// logMetrics logs the current metrics
func (p *ProcessingPool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, metrics.ProcessedCount, metrics.ErrorCount, metrics.DroppedCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *ProcessingPool) GetName() string {
	return p.name
}

// GetQueueLength returns the current length of the step queue
func (p *ProcessingPool) GetQueueLength() int {
	return len(p.stepQueue)
}

// GetQueueCapacity returns the capacity of the step queue
func (p *ProcessingPool) GetQueueCapacity() int {
	return p.queueSize
}
