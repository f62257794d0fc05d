package processing

import (
	"sync"

	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// LoggingResultHandler logs processing results and keeps the last error of
// every processor
type LoggingResultHandler struct {
	logger customlog.Logger

	mu         sync.Mutex
	lastErrors map[string]string
}

// NewLoggingResultHandler creates a new logging result handler
func NewLoggingResultHandler(logger customlog.Logger) *LoggingResultHandler {
	return &LoggingResultHandler{
		logger:     logger,
		lastErrors: make(map[string]string),
	}
}

// HandleResult handles a processed step result
func (h *LoggingResultHandler) HandleResult(result *ProcessResult) {
	if result.Error != nil {
		h.logger.Errorf("Processor '%s' failed on step %d: %v", result.Processor, result.Call, result.Error)
		h.mu.Lock()
		h.lastErrors[result.Processor] = result.Error.Error()
		h.mu.Unlock()
		return
	}

	h.logger.Debugf("Processor '%s' handled step %d (timestamp: %d)",
		result.Processor, result.Call, result.Timestamp)
}

// LastErrors returns the most recent error message per processor
func (h *LoggingResultHandler) LastErrors() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]string, len(h.lastErrors))
	for k, v := range h.lastErrors {
		out[k] = v
	}
	return out
}

// CreateHandlerFunc creates a ResultHandler function for the ProcessingPool
func (h *LoggingResultHandler) CreateHandlerFunc() ResultHandler {
	return func(processResult *ProcessResult) {
		if processResult == nil {
			h.logger.Errorf("Received nil ProcessResult")
			return
		}
		h.HandleResult(processResult)
	}
}
