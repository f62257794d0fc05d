// Package simtest provides an in-memory sim.Simulator for tests.
package simtest

import (
	"fmt"

	"github.com/open-teleop/mujoco-bridge/pkg/sim"
)

// Fake is a sim.Simulator backed by plain slices. Step advances Time by the
// model timestep and then runs OnStep, if set. State reads after Close
// panic, as reading freed simulation data would.
type Fake struct {
	M *sim.Model

	Pos   []float64
	Vel   []float64
	Ctl   []float64
	Bias  []float64
	BPos  []float64
	BQuat []float64
	T     float64

	Steps  int
	Closed bool

	// CtrlAtStep records a copy of the control vector at every Step.
	CtrlAtStep [][]float64
	OnStep     func(f *Fake)
}

var _ sim.Simulator = (*Fake)(nil)

// New sizes every vector from m.
func New(m *sim.Model) *Fake {
	return &Fake{
		M:     m,
		Pos:   make([]float64, m.Nq),
		Vel:   make([]float64, m.Nv),
		Ctl:   make([]float64, m.Nu),
		Bias:  make([]float64, m.Nv),
		BPos:  make([]float64, m.Nbody*3),
		BQuat: make([]float64, m.Nbody*4),
	}
}

// ArmWithBox builds a model shaped like the UR arm scene: one free box
// joint followed by the given number of hinge joints, three actuator banks
// and world, box and link bodies.
func ArmWithBox(joints int) *sim.Model {
	m := &sim.Model{
		Nq:       7 + joints,
		Nv:       6 + joints,
		Nu:       3 * joints,
		Nbody:    2 + joints,
		Njnt:     1 + joints,
		Ngeom:    2 + joints,
		Timestep: 0.002,
	}
	m.BodyNames = append(m.BodyNames, "world", "box")
	m.BodyNameAdr = append(m.BodyNameAdr, 0, 6)
	m.JointNames = append(m.JointNames, "box_joint")
	m.JointNameAdr = append(m.JointNameAdr, 10)
	m.JointTypes = append(m.JointTypes, sim.JointFree)
	for j := 0; j < joints; j++ {
		m.BodyNames = append(m.BodyNames, fmt.Sprintf("link_%d", j))
		m.BodyNameAdr = append(m.BodyNameAdr, 20+j*8)
		m.JointNames = append(m.JointNames, fmt.Sprintf("joint_%d", j))
		m.JointNameAdr = append(m.JointNameAdr, 100+j*8)
		m.JointTypes = append(m.JointTypes, sim.JointHinge)
	}
	m.GeomSize = make([]float64, m.Ngeom*3)
	m.GeomRGBA = make([]float32, m.Ngeom*4)
	// geom 1 is the box: 0.05 x 0.05 x 0.2 half sizes, red.
	copy(m.GeomSize[3:6], []float64{0.05, 0.05, 0.2})
	copy(m.GeomRGBA[4:8], []float32{1, 0, 0, 1})
	return m
}

func (f *Fake) Model() *sim.Model { return f.M }
func (f *Fake) QPos() []float64 { return f.read("QPos", f.Pos) }
func (f *Fake) QVel() []float64 { return f.read("QVel", f.Vel) }
func (f *Fake) Ctrl() []float64 { return f.read("Ctrl", f.Ctl) }
func (f *Fake) QfrcBias() []float64 { return f.read("QfrcBias", f.Bias) }
func (f *Fake) XPos() []float64 { return f.read("XPos", f.BPos) }
func (f *Fake) XQuat() []float64 { return f.read("XQuat", f.BQuat) }

func (f *Fake) Time() float64 {
	f.mustBeOpen("Time")
	return f.T
}

func (f *Fake) SetQPos(index int, value float64) error {
	if index < 0 || index >= len(f.Pos) {
		return fmt.Errorf("%w: qpos[%d], nq %d", sim.ErrStateIndex, index, len(f.Pos))
	}
	f.Pos[index] = value
	return nil
}

func (f *Fake) SetCtrl(index int, value float64) error {
	if index < 0 || index >= len(f.Ctl) {
		return fmt.Errorf("%w: ctrl[%d], nu %d", sim.ErrStateIndex, index, len(f.Ctl))
	}
	f.Ctl[index] = value
	return nil
}

func (f *Fake) Step() {
	f.Steps++
	f.CtrlAtStep = append(f.CtrlAtStep, clone(f.Ctl))
	f.T += f.M.Timestep
	if f.OnStep != nil {
		f.OnStep(f)
	}
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

func (f *Fake) read(what string, s []float64) []float64 {
	f.mustBeOpen(what)
	return clone(s)
}

func (f *Fake) mustBeOpen(what string) {
	if f.Closed {
		panic(fmt.Sprintf("simtest: %s() on closed simulator", what))
	}
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
