package sim

import (
	"errors"
	"fmt"
)

// ErrStateIndex is returned when a state or control write is out of range.
var ErrStateIndex = errors.New("state index out of range")

// ErrJointType is returned when a model joint has the wrong type for its
// place in the layout.
var ErrJointType = errors.New("unexpected joint type")

// Simulator is a loaded model with its mutable simulation data.
//
// Implementations are not safe for concurrent use; callers serialize access.
// Slice getters return copies.
type Simulator interface {
	Model() *Model

	QPos() []float64
	QVel() []float64
	Ctrl() []float64
	// QfrcBias is the bias force (gravity, Coriolis, centrifugal) per DOF.
	QfrcBias() []float64
	// XPos holds 3 values per body, XQuat 4 (w, x, y, z).
	XPos() []float64
	XQuat() []float64
	Time() float64

	SetQPos(index int, value float64) error
	SetCtrl(index int, value float64) error

	// Step advances the simulation by one timestep.
	Step()
	Close() error
}

// Layout locates the relayed robot joints inside the flat state and control
// vectors. Free objects come first in the model, each taking 7 qpos and
// 6 DOF entries.
type Layout struct {
	Objects  int `json:"objects"`
	Joints   int `json:"joints"`
	Gravity  int `json:"gravity"`
	Position int `json:"position"`
	Velocity int `json:"velocity"`
}

// QPosIndex is the qpos slot of robot joint j.
func (l Layout) QPosIndex(j int) int { return j + l.Objects*JointFree.QPosWidth() }

// DOFIndex is the qvel / qfrc_bias slot of robot joint j.
func (l Layout) DOFIndex(j int) int { return j + l.Objects*JointFree.DOFWidth() }

// GravityCtrl is the motor actuator of robot joint j.
func (l Layout) GravityCtrl(j int) int { return l.Gravity + j }

// PositionCtrl is the position servo of robot joint j.
func (l Layout) PositionCtrl(j int) int { return l.Position + j }

// VelocityCtrl is the velocity servo of robot joint j.
func (l Layout) VelocityCtrl(j int) int { return l.Velocity + j }

// Check verifies the model is large enough for the layout, that its first
// joints are the free objects and that every relayed joint is 1-DOF.
func (l Layout) Check(m *Model) error {
	if m.Njnt-l.Objects != l.Joints {
		return &LayoutError{Field: "njnt", Have: m.Njnt, Want: l.Objects + l.Joints}
	}
	for i := 0; i < l.Objects; i++ {
		if err := m.CheckJointIndex(i); err != nil {
			return err
		}
		if t := m.JointTypes[i]; t != JointFree {
			return fmt.Errorf("%w: joint %d is %s, free object %d needs a free joint", ErrJointType, i, t, i+1)
		}
	}
	for j := 0; j < l.Joints; j++ {
		i := l.Objects + j
		ok, err := m.Is1DofJoint(i)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: joint %d is %s, relayed joints must be hinge or slide", ErrJointType, i, m.JointTypes[i])
		}
	}
	if need := l.QPosIndex(l.Joints); m.Nq < need {
		return &LayoutError{Field: "nq", Have: m.Nq, Want: need}
	}
	if need := l.DOFIndex(l.Joints); m.Nv < need {
		return &LayoutError{Field: "nv", Have: m.Nv, Want: need}
	}
	need := 0
	for _, off := range []int{l.Gravity, l.Position, l.Velocity} {
		if off+l.Joints > need {
			need = off + l.Joints
		}
	}
	if m.Nu < need {
		return &LayoutError{Field: "nu", Have: m.Nu, Want: need}
	}
	if l.Objects > 0 && m.Nbody <= l.Objects {
		return &LayoutError{Field: "nbody", Have: m.Nbody, Want: l.Objects + 1}
	}
	if l.Objects > 0 && m.Ngeom <= l.Objects {
		return &LayoutError{Field: "ngeom", Have: m.Ngeom, Want: l.Objects + 1}
	}
	return nil
}

// LayoutError reports a model too small for the configured relay.
type LayoutError struct {
	Field string
	Have  int
	Want  int
}

func (e *LayoutError) Error() string {
	if e.Field == "njnt" {
		return fmt.Sprintf("model has %d joints, relay expects %d", e.Have, e.Want)
	}
	return fmt.Sprintf("model %s is %d, relay needs at least %d", e.Field, e.Have, e.Want)
}
