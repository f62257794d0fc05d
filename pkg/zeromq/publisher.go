package zeromq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/telemetry"
)

// Publisher sends one topic-framed message.
type Publisher interface {
	PublishMessage(topic string, data []byte) error
}

// TelemetryPublisher publishes every step as a SimFrame
type TelemetryPublisher struct {
	publisher Publisher
	topic     string
	logger    customlog.Logger
	sent      atomic.Int64
}

// NewTelemetryPublisher creates a publisher for step frames on
// telemetry.StateTopic
func NewTelemetryPublisher(publisher Publisher, logger customlog.Logger) *TelemetryPublisher {
	return &TelemetryPublisher{
		publisher: publisher,
		topic:     telemetry.StateTopic,
		logger:    logger,
	}
}

// PublishStep encodes and sends one step.
func (p *TelemetryPublisher) PublishStep(step *bridge.StepResult) error {
	data := telemetry.Encode(step)
	if err := p.publisher.PublishMessage(p.topic, data); err != nil {
		return fmt.Errorf("failed to publish step %d: %w", step.Call, err)
	}
	if p.sent.Add(1) == 1 {
		p.logger.Infof("Publishing step telemetry on '%s' (%d bytes per frame)", p.topic, len(data))
	}
	return nil
}

// Sent returns the number of frames published so far.
func (p *TelemetryPublisher) Sent() int64 {
	return p.sent.Load()
}

// StatusTopic carries the periodic JSON status heartbeat.
const StatusTopic = "mjbridge.status"

// JSONPublisher sends one enveloped JSON message.
type JSONPublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// RunStatusHeartbeat publishes the payload of provide as a STATE_RESPONSE
// on StatusTopic every interval until ctx is done.
func RunStatusHeartbeat(ctx context.Context, pub JSONPublisher, clk clock.Clock, interval time.Duration, provide Provider, logger customlog.Logger) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	logger.Infof("Publishing status heartbeat on '%s' every %v", StatusTopic, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := provide()
			if err != nil {
				logger.Warnf("Skipping status heartbeat: %v", err)
				continue
			}
			if err := pub.PublishJSON(StatusTopic, MsgTypeStateResponse, payload); err != nil {
				logger.Debugf("Status heartbeat not sent: %v", err)
			}
		}
	}
}
