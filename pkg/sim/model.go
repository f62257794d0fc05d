// Package sim holds a Go-side snapshot of a loaded physics model and the
// Simulator interface the bridge drives. It has no cgo dependency so the
// bridge logic can be exercised without the native engine.
package sim

import (
	"errors"
	"fmt"
)

// JointType mirrors mjtJoint.
type JointType int

// Joint types, in mjtJoint order.
const (
	JointFree JointType = iota
	JointBall
	JointSlide
	JointHinge
)

func (t JointType) String() string {
	switch t {
	case JointFree:
		return "free"
	case JointBall:
		return "ball"
	case JointSlide:
		return "slide"
	case JointHinge:
		return "hinge"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// QPosWidth is the number of generalized coordinates the joint type adds.
func (t JointType) QPosWidth() int {
	switch t {
	case JointFree:
		return 7
	case JointBall:
		return 4
	default:
		return 1
	}
}

// DOFWidth is the number of degrees of freedom the joint type adds.
func (t JointType) DOFWidth() int {
	switch t {
	case JointFree:
		return 6
	case JointBall:
		return 3
	default:
		return 1
	}
}

// Errors returned by model lookups.
var (
	ErrJointIndex = errors.New("given joint index exceeds number of joints")
	ErrBodyIndex  = errors.New("given body index exceeds number of bodies")
	ErrGeomIndex  = errors.New("given geom index exceeds number of geoms")
)

// Model is a read-only copy of the static model description. It is filled
// once after loading and never aliases engine memory.
type Model struct {
	Nq    int `json:"nq"`
	Nv    int `json:"nv"`
	Nu    int `json:"nu"`
	Nbody int `json:"nbody"`
	Njnt  int `json:"njnt"`
	Ngeom int `json:"ngeom"`

	Timestep float64 `json:"timestep"`

	BodyNames    []string    `json:"body_names"`
	BodyNameAdr  []int       `json:"body_name_adr"`
	JointNames   []string    `json:"joint_names"`
	JointNameAdr []int       `json:"joint_name_adr"`
	JointTypes   []JointType `json:"joint_types"`

	// GeomSize holds 3 values per geom, GeomRGBA 4.
	GeomSize []float64 `json:"geom_size"`
	GeomRGBA []float32 `json:"geom_rgba"`
}

// CheckJointIndex fails unless 0 <= index < Njnt.
func (m *Model) CheckJointIndex(index int) error {
	if index < 0 || index >= m.Njnt || index >= len(m.JointTypes) {
		return fmt.Errorf("%w: index %d, njnt %d", ErrJointIndex, index, m.Njnt)
	}
	return nil
}

// IsSlideJoint reports whether joint index is prismatic.
func (m *Model) IsSlideJoint(index int) (bool, error) {
	if err := m.CheckJointIndex(index); err != nil {
		return false, err
	}
	return m.JointTypes[index] == JointSlide, nil
}

// IsHingeJoint reports whether joint index is revolute.
func (m *Model) IsHingeJoint(index int) (bool, error) {
	if err := m.CheckJointIndex(index); err != nil {
		return false, err
	}
	return m.JointTypes[index] == JointHinge, nil
}

// Is1DofJoint reports whether joint index is a hinge or a slide.
func (m *Model) Is1DofJoint(index int) (bool, error) {
	hinge, err := m.IsHingeJoint(index)
	if err != nil || hinge {
		return hinge, err
	}
	return m.IsSlideJoint(index)
}

// JointName returns the name of joint index.
func (m *Model) JointName(index int) (string, error) {
	if err := m.CheckJointIndex(index); err != nil {
		return "", err
	}
	if index >= len(m.JointNames) {
		return "", nil
	}
	return m.JointNames[index], nil
}

// JointStateNames returns the names of all 1-DOF joints in model order.
func (m *Model) JointStateNames() []string {
	var names []string
	for i := 0; i < m.Njnt; i++ {
		ok, err := m.Is1DofJoint(i)
		if err != nil || !ok {
			continue
		}
		name, _ := m.JointName(i)
		names = append(names, name)
	}
	return names
}

// FreeJointCount counts free joints, the floating objects of the scene.
func (m *Model) FreeJointCount() int {
	n := 0
	for _, t := range m.JointTypes {
		if t == JointFree {
			n++
		}
	}
	return n
}

// BodyName returns the name of body index.
func (m *Model) BodyName(index int) (string, error) {
	if index < 0 || index >= m.Nbody || index >= len(m.BodyNames) {
		return "", fmt.Errorf("%w: index %d, nbody %d", ErrBodyIndex, index, m.Nbody)
	}
	return m.BodyNames[index], nil
}

// GeomSize3 returns the three size parameters of geom index.
func (m *Model) GeomSize3(index int) ([3]float64, error) {
	var out [3]float64
	if index < 0 || index >= m.Ngeom || (index+1)*3 > len(m.GeomSize) {
		return out, fmt.Errorf("%w: index %d, ngeom %d", ErrGeomIndex, index, m.Ngeom)
	}
	copy(out[:], m.GeomSize[index*3:index*3+3])
	return out, nil
}

// GeomColor returns the RGBA color of geom index.
func (m *Model) GeomColor(index int) ([4]float32, error) {
	var out [4]float32
	if index < 0 || index >= m.Ngeom || (index+1)*4 > len(m.GeomRGBA) {
		return out, fmt.Errorf("%w: index %d, ngeom %d", ErrGeomIndex, index, m.Ngeom)
	}
	copy(out[:], m.GeomRGBA[index*4:index*4+4])
	return out, nil
}
