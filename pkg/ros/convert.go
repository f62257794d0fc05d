package ros

import (
	"github.com/bluenviron/goroslib/v2/pkg/msgs/geometry_msgs"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/sensor_msgs"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/std_msgs"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/visualization_msgs"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
)

// JointStateFromMsg copies a sensor_msgs/JointState, header included.
func JointStateFromMsg(msg *sensor_msgs.JointState) *bridge.JointState {
	return &bridge.JointState{
		Seq:      msg.Header.Seq,
		Stamp:    msg.Header.Stamp,
		FrameID:  msg.Header.FrameId,
		Name:     append([]string(nil), msg.Name...),
		Position: append([]float64(nil), msg.Position...),
		Velocity: append([]float64(nil), msg.Velocity...),
		Effort:   append([]float64(nil), msg.Effort...),
	}
}

// JointStateToMsg builds a sensor_msgs/JointState. seq is the header
// sequence number.
func JointStateToMsg(js *bridge.JointState, seq uint32) *sensor_msgs.JointState {
	return &sensor_msgs.JointState{
		Header: std_msgs.Header{
			Seq:     seq,
			Stamp:   js.Stamp,
			FrameId: js.FrameID,
		},
		Name:     js.Name,
		Position: js.Position,
		Velocity: js.Velocity,
		Effort:   js.Effort,
	}
}

// echoMsg rebuilds an incoming command unchanged, keeping its sequence number.
func echoMsg(js *bridge.JointState) *sensor_msgs.JointState {
	return JointStateToMsg(js, js.Seq)
}

// MarkerToMsg builds a visualization_msgs/Marker. The orientation is
// reordered from (w, x, y, z) into the message's x, y, z, w fields.
func MarkerToMsg(m *bridge.Marker, seq uint32) *visualization_msgs.Marker {
	return &visualization_msgs.Marker{
		Header: std_msgs.Header{
			Seq:     seq,
			Stamp:   m.Stamp,
			FrameId: m.FrameID,
		},
		Ns:     m.Namespace,
		Id:     int32(m.ID),
		Type:   int32(m.Type),
		Action: int32(m.Action),
		Pose: geometry_msgs.Pose{
			Position: geometry_msgs.Point{
				X: m.Position.X,
				Y: m.Position.Y,
				Z: m.Position.Z,
			},
			Orientation: geometry_msgs.Quaternion{
				X: m.Orientation.Imag,
				Y: m.Orientation.Jmag,
				Z: m.Orientation.Kmag,
				W: m.Orientation.Real,
			},
		},
		Scale: geometry_msgs.Vector3{
			X: m.Scale.X,
			Y: m.Scale.Y,
			Z: m.Scale.Z,
		},
		Color: std_msgs.ColorRGBA{
			R: m.Color.R,
			G: m.Color.G,
			B: m.Color.B,
			A: m.Color.A,
		},
	}
}
