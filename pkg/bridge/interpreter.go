// Package bridge relays joint state commands into a physics simulation and
// publishes the simulated robot state back out.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/sim"
)

// Interpreter steps the simulation once per incoming joint state command.
//
// Each command's positions drive the position servos while the qpos of the
// relayed joints is reset to the previous command, so the step integrates
// from where the robot was last told to be.
type Interpreter struct {
	sim    sim.Simulator
	cfg    *config.SimConfig
	out    Sink
	logger customlog.Logger
	clock  clock.Clock

	layout    sim.Layout
	names     []string
	velocity  []float64
	markers   []Marker
	observers []StepObserver

	mu        sync.Mutex
	started   bool
	previous  []float64
	callCount int
	simTime   float64
	latest    *StepResult
}

// Status is a point in time view of the interpreter.
type Status struct {
	Started   bool        `json:"started"`
	CallCount int         `json:"call_count"`
	SimTime   float64     `json:"sim_time"`
	Latest    *StepResult `json:"latest,omitempty"`
}

// New creates an interpreter over s. A nil clock uses the wall clock.
func New(s sim.Simulator, cfg *config.SimConfig, out Sink, logger customlog.Logger, clk clock.Clock) *Interpreter {
	if clk == nil {
		clk = clock.New()
	}
	return &Interpreter{
		sim:    s,
		cfg:    cfg,
		out:    out,
		logger: logger,
		clock:  clk,
		layout: LayoutFor(cfg),
		names:  cfg.JointNames(),
	}
}

// LayoutFor places the joints and actuator banks of cfg in the state vectors.
func LayoutFor(cfg *config.SimConfig) sim.Layout {
	gravity, position, velocity := cfg.Actuators.Offsets()
	return sim.Layout{
		Objects:  cfg.Objects(),
		Joints:   len(cfg.Joints),
		Gravity:  gravity,
		Position: position,
		Velocity: velocity,
	}
}

// AddObserver registers o for every completed step. Call before commands
// start flowing.
func (it *Interpreter) AddObserver(o StepObserver) {
	it.observers = append(it.observers, o)
}

// Layout returns where the relayed joints sit in the state vectors.
func (it *Interpreter) Layout() sim.Layout { return it.layout }

// Model returns the loaded model description.
func (it *Interpreter) Model() *sim.Model { return it.sim.Model() }

// JointNames returns the relayed joint names.
func (it *Interpreter) JointNames() []string {
	return append([]string(nil), it.names...)
}

// Start validates the model against the relay layout, logs the model
// description, builds the free object markers and loads the velocity set
// points and the start pose.
func (it *Interpreter) Start() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	m := it.sim.Model()
	if err := it.layout.Check(m); err != nil {
		return fmt.Errorf("model does not fit relay layout: %w", err)
	}

	LogModel(it.logger, m, it.layout.Objects)

	markers, err := BuildMarkers(m, it.layout.Objects, it.cfg.Marker)
	if err != nil {
		return err
	}
	it.markers = markers

	it.velocity = it.cfg.VelocitySetPoints()
	for c, v := range it.velocity {
		if err := it.sim.SetCtrl(it.layout.VelocityCtrl(c), v); err != nil {
			return fmt.Errorf("failed to set velocity set point of joint %d: %w", c, err)
		}
	}
	it.previous = it.cfg.StartPose()

	it.started = true
	it.logger.Infof("Relaying %d joints with %d free objects (banks: gravity=%d position=%d velocity=%d)",
		it.layout.Joints, it.layout.Objects, it.layout.Gravity, it.layout.Position, it.layout.Velocity)
	return nil
}

// HandleJointState applies one command, steps the simulation and publishes
// the result. Publishing failures are logged and do not fail the step.
func (it *Interpreter) HandleJointState(cmd *JointState) (*StepResult, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if !it.started {
		return nil, ErrNotStarted
	}
	n := it.layout.Joints
	if cmd == nil || len(cmd.Position) < n {
		have := 0
		if cmd != nil {
			have = len(cmd.Position)
		}
		return nil, fmt.Errorf("%w: got %d positions, need %d", ErrShortCommand, have, n)
	}

	begin := it.clock.Now()

	for a := 0; a < n; a++ {
		if err := it.sim.SetQPos(it.layout.QPosIndex(a), it.previous[a]); err != nil {
			return nil, err
		}
		if err := it.sim.SetCtrl(it.layout.PositionCtrl(a), cmd.Position[a]); err != nil {
			return nil, err
		}
	}

	bias := it.sim.QfrcBias()
	gravity := make([]float64, n)
	for e := 0; e < n; e++ {
		gravity[e] = bias[it.layout.DOFIndex(e)]
		if err := it.sim.SetCtrl(it.layout.GravityCtrl(e), gravity[e]); err != nil {
			return nil, err
		}
	}

	it.sim.Step()
	now := it.clock.Now()

	qpos, qvel := it.sim.QPos(), it.sim.QVel()
	state := &JointState{
		Stamp:    now,
		Name:     append([]string(nil), it.names...),
		Position: make([]float64, n),
		Velocity: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		state.Position[i] = qpos[it.layout.QPosIndex(i)]
		state.Velocity[i] = qvel[it.layout.DOFIndex(i)]
	}

	UpdateMarkers(it.markers, it.sim.XPos(), it.sim.XQuat(), now)

	if err := it.out.PublishJointState(state); err != nil {
		it.logger.Errorf("Failed to publish joint states: %v", err)
	}
	for i := range it.markers {
		if err := it.out.PublishMarker(&it.markers[i]); err != nil {
			it.logger.Errorf("Failed to publish marker %d: %v", it.markers[i].ID, err)
		}
	}
	if err := it.out.PublishEcho(cmd); err != nil {
		it.logger.Errorf("Failed to echo command: %v", err)
	}

	copy(it.previous, cmd.Position[:n])
	it.callCount++
	it.simTime = it.sim.Time()
	it.logger.Infof("TIME:%g::::::CALL:%d", it.simTime, it.callCount)
	it.logger.Infof("Simulation done")

	result := &StepResult{
		Call:          it.callCount,
		SimTime:       it.simTime,
		Stamp:         now,
		Duration:      it.clock.Since(begin),
		Command:       cmd.Clone(),
		State:         state,
		GravityTorque: gravity,
		Markers:       append([]Marker(nil), it.markers...),
	}
	it.latest = result

	for _, o := range it.observers {
		o.ObserveStep(result)
	}
	return result, nil
}

// Status returns the call count, simulation time of the last step and the
// last step. It does not touch the simulator, so it stays valid after Close.
func (it *Interpreter) Status() Status {
	it.mu.Lock()
	defer it.mu.Unlock()
	return Status{
		Started:   it.started,
		CallCount: it.callCount,
		SimTime:   it.simTime,
		Latest:    it.latest,
	}
}

// Close releases the simulator.
func (it *Interpreter) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.started = false
	return it.sim.Close()
}

// BuildMarkers creates one cube marker per free object. Object i (1-based)
// uses body i and geom i.
func BuildMarkers(m *sim.Model, objects int, mc config.MarkerConfig) ([]Marker, error) {
	markers := make([]Marker, 0, objects)
	for i := 1; i <= objects; i++ {
		size, err := m.GeomSize3(i)
		if err != nil {
			return nil, fmt.Errorf("failed to build marker %d: %w", i, err)
		}
		rgba, err := m.GeomColor(i)
		if err != nil {
			return nil, fmt.Errorf("failed to build marker %d: %w", i, err)
		}
		markers = append(markers, Marker{
			FrameID:     mc.FrameID,
			Namespace:   mc.Namespace,
			ID:          i,
			Type:        MarkerCube,
			Action:      MarkerAdd,
			Orientation: quat.Number{Real: 1},
			Scale:       r3.Vector{X: size[0], Y: size[1], Z: size[2]}.Mul(2),
			Color:       Color{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]},
		})
	}
	return markers, nil
}

// UpdateMarkers copies body poses into the markers. xquat is read as
// (w, x, y, z) with four values per body.
func UpdateMarkers(markers []Marker, xpos, xquat []float64, stamp time.Time) {
	for k := range markers {
		i := markers[k].ID
		markers[k].Stamp = stamp
		if (i+1)*3 <= len(xpos) {
			markers[k].Position = r3.Vector{X: xpos[i*3], Y: xpos[i*3+1], Z: xpos[i*3+2]}
		}
		if (i+1)*4 <= len(xquat) {
			markers[k].Orientation = quat.Number{
				Real: xquat[i*4],
				Imag: xquat[i*4+1],
				Jmag: xquat[i*4+2],
				Kmag: xquat[i*4+3],
			}
		}
	}
}

// LogModel logs the model parameters, every body and every joint.
func LogModel(logger customlog.Logger, m *sim.Model, objects int) {
	logger.Infof("MODEL_PARAMETERS")
	logger.Infof("Gen.Coordinates: %d", m.Nq)
	logger.Infof("DOF's: %d", m.Nv)
	logger.Infof("Bodies: %d", m.Nbody)
	logger.Infof("Joints: %d", m.Njnt)
	logger.Infof("Ctrl.IP: %d", m.Nu)
	logger.Infof("No.of Free Objects: %d", objects)

	for i := 0; i < m.Nbody && i < len(m.BodyNames); i++ {
		logger.WithFields(map[string]interface{}{
			"adr": m.BodyNameAdr[i],
		}).Infof("body %d: %s", i, m.BodyNames[i])
	}
	for i := 0; i < m.Njnt && i < len(m.JointNames); i++ {
		logger.WithFields(map[string]interface{}{
			"adr":  m.JointNameAdr[i],
			"type": m.JointTypes[i].String(),
		}).Infof("joint %d: %s", i, m.JointNames[i])
	}
}
