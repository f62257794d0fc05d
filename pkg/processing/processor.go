package processing

import (
	"encoding/json"
	"fmt"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
)

// StepProcessor consumes one step result on a pool worker.
type StepProcessor func(step *bridge.StepResult) error

// MessagePublisher defines the interface for publishing messages
type MessagePublisher interface {
	PublishMessage(topic string, data []byte) error
}

// SummarizeStep returns the map representation of a step used by the JSON
// consumers.
func SummarizeStep(step *bridge.StepResult) map[string]interface{} {
	summary := map[string]interface{}{
		"call":           step.Call,
		"sim_time":       step.SimTime,
		"timestamp":      step.Stamp.UnixNano(),
		"duration_us":    step.Duration.Microseconds(),
		"gravity_torque": step.GravityTorque,
	}
	if step.State != nil {
		summary["name"] = step.State.Name
		summary["position"] = step.State.Position
		summary["velocity"] = step.State.Velocity
	}
	if step.Command != nil {
		summary["command"] = step.Command.Position
	}
	if len(step.Markers) > 0 {
		objects := make([]map[string]interface{}, 0, len(step.Markers))
		for _, m := range step.Markers {
			objects = append(objects, map[string]interface{}{
				"id":          m.ID,
				"position":    []float64{m.Position.X, m.Position.Y, m.Position.Z},
				"orientation": []float64{m.Orientation.Real, m.Orientation.Imag, m.Orientation.Jmag, m.Orientation.Kmag},
			})
		}
		summary["objects"] = objects
	}
	return summary
}

// NewJSONPublishProcessor publishes the JSON summary of every step on topic.
func NewJSONPublishProcessor(publisher MessagePublisher, topic string) StepProcessor {
	return func(step *bridge.StepResult) error {
		data, err := json.Marshal(SummarizeStep(step))
		if err != nil {
			return fmt.Errorf("failed to marshal step %d: %w", step.Call, err)
		}
		return publisher.PublishMessage(topic, data)
	}
}
