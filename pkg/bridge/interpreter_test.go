package bridge_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/sim"
	"github.com/open-teleop/mujoco-bridge/pkg/sim/simtest"
)

type recordingSink struct {
	states  []*bridge.JointState
	markers []bridge.Marker
	echoes  []*bridge.JointState
	failAll error
}

func (s *recordingSink) PublishJointState(js *bridge.JointState) error {
	s.states = append(s.states, js.Clone())
	return s.failAll
}

func (s *recordingSink) PublishMarker(m *bridge.Marker) error {
	s.markers = append(s.markers, *m)
	return s.failAll
}

func (s *recordingSink) PublishEcho(js *bridge.JointState) error {
	s.echoes = append(s.echoes, js)
	return s.failAll
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newArm(t *testing.T) (*bridge.Interpreter, *simtest.Fake, *recordingSink, *clock.Mock) {
	t.Helper()

	cfg := config.DefaultSimConfig()
	for i := range cfg.Joints {
		*cfg.Joints[i].StartPose = 0.1 * float64(i)
		*cfg.Joints[i].VelocitySetPoint = -float64(i)
	}

	fake := simtest.New(simtest.ArmWithBox(8))
	for e := 0; e < 8; e++ {
		fake.Bias[6+e] = 10 + float64(e)
	}
	sink := &recordingSink{}
	clk := clock.NewMock()
	clk.Set(epoch)

	it := bridge.New(fake, cfg, sink, customlog.Discard(), clk)
	return it, fake, sink, clk
}

func command(positions ...float64) *bridge.JointState {
	return &bridge.JointState{
		Name:     append([]string(nil), config.DefaultJointNames[:len(positions)]...),
		Position: positions,
	}
}

func TestStartLoadsSetPointsAndMarkers(t *testing.T) {
	it, fake, _, _ := newArm(t)
	require.NoError(t, it.Start())

	for c := 0; c < 8; c++ {
		assert.Equal(t, -float64(c), fake.Ctl[16+c], "velocity ctrl %d", c)
		assert.Zero(t, fake.Ctl[8+c], "position ctrl %d", c)
	}
	assert.Zero(t, fake.Steps)

	st := it.Status()
	assert.True(t, st.Started)
	assert.Zero(t, st.CallCount)
	assert.Nil(t, st.Latest)
}

func TestHandleJointStateDrivesActuatorBanks(t *testing.T) {
	it, fake, sink, clk := newArm(t)
	require.NoError(t, it.Start())

	fake.OnStep = func(f *simtest.Fake) {
		clk.Add(3 * time.Millisecond)
		for i := 0; i < 8; i++ {
			f.Vel[6+i] = float64(i) / 2
		}
		copy(f.BPos[3:6], []float64{0.4, -0.2, 0.9})
		copy(f.BQuat[4:8], []float64{0.5, 0.5, -0.5, 0.5})
	}

	cmd := command(1, 2, 3, 4, 5, 6, 7, 8)
	res, err := it.HandleJointState(cmd)
	require.NoError(t, err)
	require.Equal(t, 1, fake.Steps)

	ctrl := fake.CtrlAtStep[0]
	for j := 0; j < 8; j++ {
		assert.Equal(t, 10+float64(j), ctrl[j], "gravity ctrl %d", j)
		assert.Equal(t, float64(j+1), ctrl[8+j], "position ctrl %d", j)
		assert.Equal(t, -float64(j), ctrl[16+j], "velocity ctrl %d", j)
	}

	// qpos was reset to the start pose before stepping
	for j := 0; j < 8; j++ {
		assert.InDelta(t, 0.1*float64(j), fake.Pos[7+j], 1e-12)
	}

	require.Len(t, sink.states, 1)
	state := sink.states[0]
	assert.Equal(t, config.DefaultJointNames, state.Name)
	assert.Equal(t, epoch.Add(3*time.Millisecond), state.Stamp)
	assert.InDelta(t, 0.7, state.Position[7], 1e-12)
	assert.Equal(t, 3.5, state.Velocity[7])

	require.Len(t, sink.markers, 1)
	m := sink.markers[0]
	assert.Equal(t, 1, m.ID)
	assert.Equal(t, "/world", m.FrameID)
	assert.Equal(t, "free_objects", m.Namespace)
	assert.Equal(t, bridge.MarkerCube, m.Type)
	assert.Equal(t, bridge.MarkerAdd, m.Action)
	assert.Equal(t, state.Stamp, m.Stamp)
	assert.InDelta(t, 0.1, m.Scale.X, 1e-12)
	assert.InDelta(t, 0.4, m.Scale.Z, 1e-12)
	assert.Equal(t, bridge.Color{R: 1, A: 1}, m.Color)
	assert.Equal(t, 0.4, m.Position.X)
	assert.Equal(t, 0.9, m.Position.Z)
	assert.Equal(t, 0.5, m.Orientation.Real)
	assert.Equal(t, -0.5, m.Orientation.Jmag)

	require.Len(t, sink.echoes, 1)
	assert.Same(t, cmd, sink.echoes[0])

	assert.Equal(t, 1, res.Call)
	assert.Equal(t, []float64{10, 11, 12, 13, 14, 15, 16, 17}, res.GravityTorque)
	assert.InDelta(t, 0.002, res.SimTime, 1e-12)
	assert.Equal(t, 3*time.Millisecond, res.Duration)

	// the second step starts from the first command
	_, err = it.HandleJointState(command(0, 0, 0, 0, 0, 0, 0, 0))
	require.NoError(t, err)
	for j := 0; j < 8; j++ {
		assert.Equal(t, float64(j+1), fake.Pos[7+j])
		assert.Zero(t, fake.CtrlAtStep[1][8+j])
	}
	assert.Equal(t, 2, it.Status().CallCount)
}

func TestHandleJointStateIgnoresExtraEntries(t *testing.T) {
	it, fake, sink, _ := newArm(t)
	require.NoError(t, it.Start())

	_, err := it.HandleJointState(command(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Steps)
	assert.Len(t, sink.states[0].Position, 8)
	assert.Len(t, sink.echoes[0].Position, 10)
}

func TestShortCommandDoesNotStep(t *testing.T) {
	it, fake, sink, _ := newArm(t)
	require.NoError(t, it.Start())

	_, err := it.HandleJointState(command(1, 2, 3))
	assert.True(t, errors.Is(err, bridge.ErrShortCommand))

	_, err = it.HandleJointState(nil)
	assert.True(t, errors.Is(err, bridge.ErrShortCommand))

	assert.Zero(t, fake.Steps)
	assert.Empty(t, sink.states)
	assert.Empty(t, sink.echoes)
	assert.Zero(t, it.Status().CallCount)
}

func TestHandleBeforeStart(t *testing.T) {
	it, _, _, _ := newArm(t)
	_, err := it.HandleJointState(command(1, 2, 3, 4, 5, 6, 7, 8))
	assert.True(t, errors.Is(err, bridge.ErrNotStarted))
}

func TestStartRejectsMismatchedModel(t *testing.T) {
	cfg := config.DefaultSimConfig()
	fake := simtest.New(simtest.ArmWithBox(6))
	it := bridge.New(fake, cfg, &recordingSink{}, customlog.Discard(), clock.NewMock())

	err := it.Start()
	var lerr *sim.LayoutError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "njnt", lerr.Field)
}

func TestZeroObjectsPublishesNoMarker(t *testing.T) {
	zero := 0
	cfg := &config.SimConfig{
		ObjectsInScene: &zero,
		Joints:         []config.JointConfig{{Name: "rail"}, {Name: "lift"}},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	m := &sim.Model{
		Nq: 2, Nv: 2, Nu: 6, Nbody: 3, Njnt: 2, Ngeom: 3, Timestep: 0.01,
		BodyNames:    []string{"world", "a", "b"},
		BodyNameAdr:  []int{0, 6, 8},
		JointNames:   []string{"rail", "lift"},
		JointNameAdr: []int{10, 15},
		JointTypes:   []sim.JointType{sim.JointSlide, sim.JointSlide},
		GeomSize:     make([]float64, 9),
		GeomRGBA:     make([]float32, 12),
	}
	fake := simtest.New(m)
	fake.Bias = []float64{0.5, 0.25}
	sink := &recordingSink{}

	it := bridge.New(fake, cfg, sink, customlog.Discard(), clock.NewMock())
	require.NoError(t, it.Start())

	res, err := it.HandleJointState(&bridge.JointState{Position: []float64{0.3, 0.6}})
	require.NoError(t, err)
	assert.Empty(t, sink.markers)
	assert.Empty(t, res.Markers)
	assert.Equal(t, []float64{0.5, 0.25, 0.3, 0.6, 0, 0}, fake.CtrlAtStep[0])
}

func TestObserversAndPublishFailures(t *testing.T) {
	it, fake, sink, _ := newArm(t)
	sink.failAll = errors.New("topic closed")

	var seen []*bridge.StepResult
	it.AddObserver(bridge.StepObserverFunc(func(r *bridge.StepResult) {
		seen = append(seen, r)
	}))
	require.NoError(t, it.Start())

	_, err := it.HandleJointState(command(1, 1, 1, 1, 1, 1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Steps)

	require.Len(t, seen, 1)
	assert.Equal(t, 1, seen[0].Call)
	assert.Equal(t, seen[0], it.Status().Latest)
}

func TestCloseReleasesSimulator(t *testing.T) {
	it, fake, _, _ := newArm(t)
	require.NoError(t, it.Start())
	require.NoError(t, it.Close())
	assert.True(t, fake.Closed)

	_, err := it.HandleJointState(command(1, 2, 3, 4, 5, 6, 7, 8))
	assert.True(t, errors.Is(err, bridge.ErrNotStarted))
}

func TestStatusAfterCloseKeepsLastStep(t *testing.T) {
	it, fake, _, _ := newArm(t)
	require.NoError(t, it.Start())

	_, err := it.HandleJointState(command(1, 2, 3, 4, 5, 6, 7, 8))
	require.NoError(t, err)
	require.NoError(t, it.Close())

	var st bridge.Status
	require.NotPanics(t, func() { st = it.Status() })
	assert.False(t, st.Started)
	assert.Equal(t, 1, st.CallCount)
	assert.InDelta(t, 0.002, st.SimTime, 1e-12)
	require.NotNil(t, st.Latest)
	assert.Equal(t, st.SimTime, st.Latest.SimTime)
	assert.Panics(t, func() { fake.Time() })
}

func TestLogModel(t *testing.T) {
	var buf bytes.Buffer
	bridge.LogModel(customlog.NewWriterLogger("info", &buf), simtest.ArmWithBox(2), 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"[INF] MODEL_PARAMETERS",
		"[INF] Gen.Coordinates: 9",
		"[INF] DOF's: 8",
		"[INF] Bodies: 4",
		"[INF] Joints: 3",
		"[INF] Ctrl.IP: 6",
		"[INF] No.of Free Objects: 1",
		"[INF] body 0: world adr=0",
		"[INF] body 1: box adr=6",
		"[INF] body 2: link_0 adr=20",
		"[INF] body 3: link_1 adr=28",
		"[INF] joint 0: box_joint adr=10 type=free",
		"[INF] joint 1: joint_0 adr=100 type=hinge",
		"[INF] joint 2: joint_1 adr=108 type=hinge",
	}
	require.Len(t, lines, len(want))
	for i, w := range want {
		assert.True(t, strings.HasSuffix(lines[i], w), "line %d: got %q, want suffix %q", i, lines[i], w)
	}
}

func TestUpdateMarkersSkipsMissingBodies(t *testing.T) {
	markers := []bridge.Marker{{ID: 2}}
	bridge.UpdateMarkers(markers, []float64{0, 0, 0, 1, 1, 1}, []float64{1, 0, 0, 0}, epoch)
	assert.Equal(t, epoch, markers[0].Stamp)
	assert.Zero(t, markers[0].Position.X)
	assert.Zero(t, markers[0].Orientation.Real)
}
