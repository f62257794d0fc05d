package bridge

import (
	"errors"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

var (
	// ErrShortCommand is returned when a command carries fewer positions
	// than there are relayed joints.
	ErrShortCommand = errors.New("joint state command is shorter than the relayed joint set")
	// ErrNotStarted is returned by HandleJointState before Start succeeded.
	ErrNotStarted = errors.New("interpreter not started")
)

// JointState is a named set of joint positions and velocities.
type JointState struct {
	Seq      uint32    `json:"seq,omitempty"`
	Stamp    time.Time `json:"stamp"`
	FrameID  string    `json:"frame_id,omitempty"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Effort   []float64 `json:"effort,omitempty"`
}

// Clone returns a deep copy.
func (js *JointState) Clone() *JointState {
	if js == nil {
		return nil
	}
	return &JointState{
		Seq:      js.Seq,
		Stamp:    js.Stamp,
		FrameID:  js.FrameID,
		Name:     append([]string(nil), js.Name...),
		Position: append([]float64(nil), js.Position...),
		Velocity: append([]float64(nil), js.Velocity...),
		Effort:   append([]float64(nil), js.Effort...),
	}
}

// Marker types and actions, numbered as visualization_msgs/Marker.
const (
	MarkerCube = 1
	MarkerAdd  = 0
)

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Marker is a box drawn at the pose of one free object.
type Marker struct {
	Stamp     time.Time `json:"stamp"`
	FrameID   string    `json:"frame_id"`
	Namespace string    `json:"ns"`
	ID        int       `json:"id"`
	Type      int       `json:"type"`
	Action    int       `json:"action"`

	Position r3.Vector `json:"position"`
	// Orientation keeps the engine's convention: Real is w.
	Orientation quat.Number `json:"orientation"`
	// Scale is the full box extent, twice the geom half sizes.
	Scale r3.Vector `json:"scale"`
	Color Color     `json:"color"`
}

// StepResult describes one relayed command and the state it produced.
type StepResult struct {
	Call     int           `json:"call"`
	SimTime  float64       `json:"sim_time"`
	Stamp    time.Time     `json:"stamp"`
	Duration time.Duration `json:"duration_ns"`

	Command       *JointState `json:"command"`
	State         *JointState `json:"state"`
	GravityTorque []float64   `json:"gravity_torque"`
	Markers       []Marker    `json:"markers,omitempty"`
}

// Sink receives everything the interpreter publishes.
type Sink interface {
	// PublishJointState sends the simulated joint states.
	PublishJointState(js *JointState) error
	// PublishMarker sends one free object marker.
	PublishMarker(m *Marker) error
	// PublishEcho sends the incoming command back out unchanged.
	PublishEcho(js *JointState) error
}

// StepObserver is notified after every simulation step. ObserveStep runs on
// the callback goroutine and must not block.
type StepObserver interface {
	ObserveStep(result *StepResult)
}

// StepObserverFunc adapts a function to StepObserver.
type StepObserverFunc func(result *StepResult)

func (f StepObserverFunc) ObserveStep(result *StepResult) { f(result) }
