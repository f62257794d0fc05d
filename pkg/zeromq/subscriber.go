package zeromq

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/telemetry"
)

// FrameHandler receives every decoded telemetry frame.
type FrameHandler func(topic string, frame *telemetry.Frame)

// TelemetrySubscriber connects to a bridge PUB socket and decodes SimFrames
type TelemetrySubscriber struct {
	socket *zmq4.Socket
	logger customlog.Logger
}

// NewTelemetrySubscriber connects a SUB socket to endpoint and subscribes to
// the step topic
func NewTelemetrySubscriber(endpoint string, logger customlog.Logger) (*TelemetrySubscriber, error) {
	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	if err := socket.SetSubscribe(telemetry.StateTopic); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", telemetry.StateTopic, err)
	}
	if err := socket.SetRcvtimeo(500 * time.Millisecond); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.Connect(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	logger.Infof("Telemetry subscriber connected to %s", endpoint)
	return &TelemetrySubscriber{socket: socket, logger: logger}, nil
}

// Run receives frames until ctx is done. It must be called from the
// goroutine that created the subscriber.
func (s *TelemetrySubscriber) Run(ctx context.Context, handle FrameHandler) error {
	defer s.socket.Close()

	for ctx.Err() == nil {
		parts, err := s.socket.RecvMessageBytes(0)
		if err != nil {
			// receive timeout
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			s.logger.Errorf("Error receiving telemetry: %v", err)
			continue
		}
		if len(parts) != 2 {
			s.logger.Warnf("Ignoring telemetry message with %d frames", len(parts))
			continue
		}

		frame, err := telemetry.Decode(parts[1])
		if err != nil {
			s.logger.Warnf("Ignoring undecodable frame on '%s': %v", parts[0], err)
			continue
		}
		handle(string(parts[0]), frame)
	}
	return nil
}
