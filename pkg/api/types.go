package api

import (
	"github.com/open-teleop/mujoco-bridge/pkg/sim"
)

// --- Data Structures for API responses ---

// BodyInfo describes one model body.
type BodyInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	NameAdr int    `json:"name_adr"`
}

// JointInfo describes one model joint.
type JointInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	NameAdr int    `json:"name_adr"`
	Type    string `json:"type"`
	Relayed bool   `json:"relayed"`
}

// ModelInfo is the model description served over HTTP and ZeroMQ and
// printed by inspect.
type ModelInfo struct {
	Nq          int     `json:"nq"`
	Nv          int     `json:"nv"`
	Nu          int     `json:"nu"`
	Nbody       int     `json:"nbody"`
	Njnt        int     `json:"njnt"`
	Ngeom       int     `json:"ngeom"`
	Timestep    float64 `json:"timestep"`
	FreeObjects int     `json:"free_objects"`

	Layout sim.Layout  `json:"layout"`
	Bodies []BodyInfo  `json:"bodies"`
	Joints []JointInfo `json:"joints"`
}

// NewModelInfo describes m. Joints inside the relay layout are flagged as
// relayed.
func NewModelInfo(m *sim.Model, layout sim.Layout) ModelInfo {
	info := ModelInfo{
		Nq:          m.Nq,
		Nv:          m.Nv,
		Nu:          m.Nu,
		Nbody:       m.Nbody,
		Njnt:        m.Njnt,
		Ngeom:       m.Ngeom,
		Timestep:    m.Timestep,
		FreeObjects: m.FreeJointCount(),
		Layout:      layout,
		Bodies:      make([]BodyInfo, 0, m.Nbody),
		Joints:      make([]JointInfo, 0, m.Njnt),
	}

	for i := 0; i < m.Nbody && i < len(m.BodyNames); i++ {
		b := BodyInfo{Index: i, Name: m.BodyNames[i]}
		if i < len(m.BodyNameAdr) {
			b.NameAdr = m.BodyNameAdr[i]
		}
		info.Bodies = append(info.Bodies, b)
	}

	for i := 0; i < m.Njnt && i < len(m.JointTypes); i++ {
		j := JointInfo{
			Index:   i,
			Type:    m.JointTypes[i].String(),
			Relayed: i >= layout.Objects && i < layout.Objects+layout.Joints,
		}
		if i < len(m.JointNames) {
			j.Name = m.JointNames[i]
		}
		if i < len(m.JointNameAdr) {
			j.NameAdr = m.JointNameAdr[i]
		}
		info.Joints = append(info.Joints, j)
	}
	return info
}
