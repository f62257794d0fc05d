// Package telemetry encodes step results as FlatBuffers SimFrame messages.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	fb "github.com/open-teleop/mujoco-bridge/pkg/flatbuffers/mjbridge/telemetry"
)

// StateTopic is the ZeroMQ topic step frames are published under.
const StateTopic = "mjbridge.state"

// ErrInvalidFrame is returned for buffers that do not hold a SimFrame.
var ErrInvalidFrame = errors.New("invalid SimFrame buffer")

// ObjectPose is the decoded pose of one free object.
type ObjectPose struct {
	ID          int32      `json:"id"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"` // w, x, y, z
}

// Frame is the decoded form of a SimFrame.
type Frame struct {
	Call          uint64        `json:"call"`
	Timestamp     time.Time     `json:"timestamp"`
	SimTime       float64       `json:"sim_time"`
	Duration      time.Duration `json:"duration_ns"`
	Name          []string      `json:"name"`
	Position      []float64     `json:"position"`
	Velocity      []float64     `json:"velocity"`
	Command       []float64     `json:"command"`
	GravityTorque []float64     `json:"gravity_torque"`
	Objects       []ObjectPose  `json:"objects"`
}

// Encode serializes a step result.
func Encode(step *bridge.StepResult) []byte {
	builder := flatbuffers.NewBuilder(1024)

	var names []string
	var position, velocity []float64
	if step.State != nil {
		names, position, velocity = step.State.Name, step.State.Position, step.State.Velocity
	}
	var command []float64
	if step.Command != nil {
		command = step.Command.Position
	}

	nameOffsets := make([]flatbuffers.UOffsetT, len(names))
	for i, n := range names {
		nameOffsets[i] = builder.CreateString(n)
	}
	fb.SimFrameStartNameVector(builder, len(nameOffsets))
	for i := len(nameOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(nameOffsets[i])
	}
	nameVec := builder.EndVector(len(nameOffsets))

	positionVec := float64Vector(builder, fb.SimFrameStartPositionVector, position)
	velocityVec := float64Vector(builder, fb.SimFrameStartVelocityVector, velocity)
	commandVec := float64Vector(builder, fb.SimFrameStartCommandVector, command)
	gravityVec := float64Vector(builder, fb.SimFrameStartGravityTorqueVector, step.GravityTorque)

	fb.SimFrameStartObjectsVector(builder, len(step.Markers))
	for i := len(step.Markers) - 1; i >= 0; i-- {
		m := step.Markers[i]
		fb.CreateObjectPose(builder, int32(m.ID),
			m.Position.X, m.Position.Y, m.Position.Z,
			m.Orientation.Real, m.Orientation.Imag, m.Orientation.Jmag, m.Orientation.Kmag)
	}
	objectsVec := builder.EndVector(len(step.Markers))

	fb.SimFrameStart(builder)
	fb.SimFrameAddCall(builder, uint64(step.Call))
	fb.SimFrameAddTimestampNs(builder, step.Stamp.UnixNano())
	fb.SimFrameAddSimTime(builder, step.SimTime)
	fb.SimFrameAddDurationNs(builder, int64(step.Duration))
	fb.SimFrameAddName(builder, nameVec)
	fb.SimFrameAddPosition(builder, positionVec)
	fb.SimFrameAddVelocity(builder, velocityVec)
	fb.SimFrameAddCommand(builder, commandVec)
	fb.SimFrameAddGravityTorque(builder, gravityVec)
	fb.SimFrameAddObjects(builder, objectsVec)
	frame := fb.SimFrameEnd(builder)

	fb.FinishSimFrameBuffer(builder, frame)
	return builder.FinishedBytes()
}

func float64Vector(builder *flatbuffers.Builder, start func(*flatbuffers.Builder, int) flatbuffers.UOffsetT, values []float64) flatbuffers.UOffsetT {
	start(builder, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		builder.PrependFloat64(values[i])
	}
	return builder.EndVector(len(values))
}

// Decode parses a SimFrame. Malformed buffers return ErrInvalidFrame.
func Decode(data []byte) (frame *Frame, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidFrame, len(data))
	}
	// The generated accessors index the buffer without bounds checks of
	// their own and panic on truncated input.
	defer func() {
		if r := recover(); r != nil {
			frame = nil
			err = fmt.Errorf("%w: %v", ErrInvalidFrame, r)
		}
	}()

	sf := fb.GetRootAsSimFrame(data, 0)
	frame = &Frame{
		Call:          sf.Call(),
		Timestamp:     time.Unix(0, sf.TimestampNs()),
		SimTime:       sf.SimTime(),
		Duration:      time.Duration(sf.DurationNs()),
		Name:          make([]string, sf.NameLength()),
		Position:      make([]float64, sf.PositionLength()),
		Velocity:      make([]float64, sf.VelocityLength()),
		Command:       make([]float64, sf.CommandLength()),
		GravityTorque: make([]float64, sf.GravityTorqueLength()),
		Objects:       make([]ObjectPose, sf.ObjectsLength()),
	}
	for i := range frame.Name {
		frame.Name[i] = string(sf.Name(i))
	}
	for i := range frame.Position {
		frame.Position[i] = sf.Position(i)
	}
	for i := range frame.Velocity {
		frame.Velocity[i] = sf.Velocity(i)
	}
	for i := range frame.Command {
		frame.Command[i] = sf.Command(i)
	}
	for i := range frame.GravityTorque {
		frame.GravityTorque[i] = sf.GravityTorque(i)
	}
	var pose fb.ObjectPose
	for i := range frame.Objects {
		sf.Objects(&pose, i)
		frame.Objects[i] = ObjectPose{
			ID:          pose.Id(),
			Position:    [3]float64{pose.Px(), pose.Py(), pose.Pz()},
			Orientation: [4]float64{pose.Qw(), pose.Qx(), pose.Qy(), pose.Qz()},
		}
	}
	return frame, nil
}
