package ros

import (
	"errors"
	"testing"
	"time"

	"github.com/bluenviron/goroslib/v2/pkg/msgs/sensor_msgs"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/std_msgs"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
)

func TestResolveName(t *testing.T) {
	tests := []struct {
		namespace, node, name, want string
	}{
		{"/", "joint_state_interpreter", "joint_states_in", "/joint_state_interpreter/joint_states_in"},
		{"/", "joint_state_interpreter", "~license_file", "/joint_state_interpreter/license_file"},
		{"/", "joint_state_interpreter", "/joint_states", "/joint_states"},
		{"", "jsi", "model_file", "/jsi/model_file"},
		{"/robot/", "jsi", "joint_states_out", "/robot/jsi/joint_states_out"},
		{"robot", "jsi", "~/x", "/robot/jsi/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveName(tt.namespace, tt.node, tt.name), "%+v", tt)
	}
	assert.Equal(t, "/robot/jsi", NodePath("/robot", "jsi"))
}

type fakeParams map[string]string

func (f fakeParams) ParamGetString(key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", errors.New("parameter not set")
	}
	return v, nil
}

func TestRequiredParams(t *testing.T) {
	params := fakeParams{
		"/jsi/license_file": "/opt/mujoco/mjkey.txt",
		"/jsi/model_file":  "/models/ur5_gripper.xml",
	}

	values, err := RequiredParams(params, "/", "jsi", ParamLicenseFile, ParamModelFile)
	require.NoError(t, err)
	assert.Equal(t, "/opt/mujoco/mjkey.txt", values[ParamLicenseFile])
	assert.Equal(t, "/models/ur5_gripper.xml", values[ParamModelFile])

	delete(params, "/jsi/model_file")
	_, err = RequiredParams(params, "/", "jsi", ParamLicenseFile, ParamModelFile)
	require.Error(t, err)
	assert.Equal(t, "Did not find parameter 'model_file'.", err.Error())

	var missing *MissingParamError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, ParamModelFile, missing.Name)
}

func TestJointStateRoundTrip(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	msg := &sensor_msgs.JointState{
		Header:   std_msgs.Header{Seq: 7, Stamp: stamp, FrameId: "base_link"},
		Name:     []string{"shoulder_pan_joint", "elbow_joint"},
		Position: []float64{0.1, -0.2},
		Velocity: []float64{0, 1},
	}

	js := JointStateFromMsg(msg)
	assert.Equal(t, uint32(7), js.Seq)
	assert.Equal(t, stamp, js.Stamp)
	assert.Equal(t, "base_link", js.FrameID)
	assert.Equal(t, msg.Position, js.Position)

	// the copy must not alias the incoming message
	msg.Position[0] = 9
	assert.Equal(t, 0.1, js.Position[0])

	out := JointStateToMsg(js, 3)
	assert.Equal(t, uint32(3), out.Header.Seq)
	assert.Equal(t, "base_link", out.Header.FrameId)
	assert.Equal(t, js.Name, out.Name)
	assert.Equal(t, js.Velocity, out.Velocity)
}

func TestEchoKeepsIncomingHeader(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &sensor_msgs.JointState{
		Header:   std_msgs.Header{Seq: 42, Stamp: stamp, FrameId: "base_link"},
		Name:     []string{"a", "b", "c"},
		Position: []float64{1, 2, 3},
	}

	echo := echoMsg(JointStateFromMsg(in).Clone())
	assert.Equal(t, in.Header, echo.Header)
	assert.Equal(t, in.Name, echo.Name)
	assert.Equal(t, in.Position, echo.Position)
}

func TestMarkerToMsgReordersQuaternion(t *testing.T) {
	m := &bridge.Marker{
		FrameID:     "/world",
		Namespace:   "free_objects",
		ID:          1,
		Type:        bridge.MarkerCube,
		Action:      bridge.MarkerAdd,
		Position:    r3.Vector{X: 1, Y: 2, Z: 3},
		Orientation: quat.Number{Real: 0.9, Imag: 0.1, Jmag: 0.2, Kmag: 0.3},
		Scale:       r3.Vector{X: 0.1, Y: 0.1, Z: 0.4},
		Color:       bridge.Color{R: 1, A: 1},
	}

	msg := MarkerToMsg(m, 5)
	assert.Equal(t, "/world", msg.Header.FrameId)
	assert.Equal(t, uint32(5), msg.Header.Seq)
	assert.Equal(t, "free_objects", msg.Ns)
	assert.Equal(t, int32(1), msg.Id)
	assert.Equal(t, int32(1), msg.Type)
	assert.Equal(t, int32(0), msg.Action)
	assert.Equal(t, 0.1, msg.Pose.Orientation.X)
	assert.Equal(t, 0.2, msg.Pose.Orientation.Y)
	assert.Equal(t, 0.3, msg.Pose.Orientation.Z)
	assert.Equal(t, 0.9, msg.Pose.Orientation.W)
	assert.Equal(t, 3.0, msg.Pose.Position.Z)
	assert.Equal(t, 0.4, msg.Scale.Z)
	assert.Equal(t, float32(1), msg.Color.A)
}

// Stale commands are shed rather than queued behind a slow step.
func TestCommandQueueHoldsOneCommand(t *testing.T) {
	assert.Equal(t, 1, CommandQueueSize)
}
