// Package mujoco provides a wrapper around the MuJoCo 2.0 C library.
//
// Set CGO_CFLAGS / CGO_LDFLAGS to override the default install location.
package mujoco

/*
#cgo CFLAGS: -O2 -I/opt/mujoco/include
#cgo LDFLAGS: -L/opt/mujoco/bin -lmujoco200nogl -Wl,-rpath,/opt/mujoco/bin
#include <stdlib.h>
#include "mujoco.h"
*/
import "C"
import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/sim"
)

// errorBufferSize is the size of the buffer mj_loadXML writes its message into.
const errorBufferSize = 1000

var (
	ErrActivation = errors.New("mujoco activation failed")
	ErrLoad       = errors.New("could not load model")
	ErrMakeData   = errors.New("could not allocate mjData")
	ErrClosed     = errors.New("simulator is closed")
)

var (
	// logger instance
	logger customlog.Logger

	// mu protects the activation state
	mu        sync.Mutex
	activated bool
)

// SetLogger sets the logger for the mujoco package
func SetLogger(l customlog.Logger) {
	logger = l
}

// Version returns the library version, e.g. 200 for 2.0.0.
func Version() int {
	return int(C.mj_version())
}

// Activate activates the license. It must succeed before any model is loaded.
func Activate(licenseFile string) error {
	mu.Lock()
	defer mu.Unlock()

	if activated {
		return nil
	}

	cLicense := C.CString(licenseFile)
	defer C.free(unsafe.Pointer(cLicense))

	if logger != nil {
		logger.Infof("Activating MuJoCo license: %s", licenseFile)
	}
	if int(C.mj_activate(cLicense)) != 1 {
		return fmt.Errorf("%w: license '%s'", ErrActivation, licenseFile)
	}
	activated = true
	return nil
}

// Deactivate frees the license. Models already loaded must be closed first.
func Deactivate() {
	mu.Lock()
	defer mu.Unlock()

	if !activated {
		return
	}
	C.mj_deactivate()
	activated = false
	if logger != nil {
		logger.Infof("MuJoCo deactivated")
	}
}

// Simulator owns an mjModel and its mjData.
type Simulator struct {
	m     *C.mjModel
	d     *C.mjData
	model *sim.Model

	// Warning is whatever the XML loader reported on a successful load.
	Warning string
}

var _ sim.Simulator = (*Simulator)(nil)

// Load parses the XML model at path and allocates its data.
func Load(path string) (*Simulator, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var errBuf [errorBufferSize]C.char
	m := C.mj_loadXML(cPath, nil, &errBuf[0], C.int(len(errBuf)))
	msg := C.GoString(&errBuf[0])
	if m == nil {
		return nil, fmt.Errorf("%w '%s': %s", ErrLoad, path, msg)
	}

	d := C.mj_makeData(m)
	if d == nil {
		C.mj_deleteModel(m)
		return nil, fmt.Errorf("%w for '%s'", ErrMakeData, path)
	}

	s := &Simulator{m: m, d: d, Warning: msg}
	s.model = snapshot(m)

	if logger != nil {
		if msg != "" {
			logger.Warnf("Model '%s' loaded with warning: %s", path, msg)
		}
		logger.Debugf("Loaded model '%s' (nq=%d nv=%d nu=%d)", path, s.model.Nq, s.model.Nv, s.model.Nu)
	}
	return s, nil
}

// snapshot copies the static parts of the model the bridge needs.
func snapshot(m *C.mjModel) *sim.Model {
	out := &sim.Model{
		Nq:       int(m.nq),
		Nv:       int(m.nv),
		Nu:       int(m.nu),
		Nbody:    int(m.nbody),
		Njnt:     int(m.njnt),
		Ngeom:    int(m.ngeom),
		Timestep: float64(m.opt.timestep),
	}

	out.BodyNames = make([]string, out.Nbody)
	out.BodyNameAdr = make([]int, out.Nbody)
	for i, adr := range intSlice(m.name_bodyadr, out.Nbody) {
		out.BodyNameAdr[i] = adr
		out.BodyNames[i] = name(m, adr)
	}

	out.JointNames = make([]string, out.Njnt)
	out.JointNameAdr = make([]int, out.Njnt)
	out.JointTypes = make([]sim.JointType, out.Njnt)
	types := intSlice(m.jnt_type, out.Njnt)
	for i, adr := range intSlice(m.name_jntadr, out.Njnt) {
		out.JointNameAdr[i] = adr
		out.JointNames[i] = name(m, adr)
		out.JointTypes[i] = sim.JointType(types[i])
	}

	out.GeomSize = numSlice(m.geom_size, out.Ngeom*3)
	out.GeomRGBA = make([]float32, out.Ngeom*4)
	if out.Ngeom > 0 {
		for i, v := range unsafe.Slice(m.geom_rgba, out.Ngeom*4) {
			out.GeomRGBA[i] = float32(v)
		}
	}
	return out
}

func name(m *C.mjModel, adr int) string {
	return C.GoString((*C.char)(unsafe.Add(unsafe.Pointer(m.names), adr)))
}

func intSlice(p *C.int, n int) []int {
	out := make([]int, n)
	if p == nil || n == 0 {
		return out
	}
	for i, v := range unsafe.Slice(p, n) {
		out[i] = int(v)
	}
	return out
}

// numSlice copies n mjtNum values into Go memory.
func numSlice(p *C.mjtNum, n int) []float64 {
	out := make([]float64, n)
	if p == nil || n == 0 {
		return out
	}
	for i, v := range unsafe.Slice(p, n) {
		out[i] = float64(v)
	}
	return out
}

func setNum(p *C.mjtNum, n, index int, value float64, what string) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%w: %s[%d], size %d", sim.ErrStateIndex, what, index, n)
	}
	unsafe.Slice(p, n)[index] = C.mjtNum(value)
	return nil
}

// Model returns the static model snapshot taken at load time.
func (s *Simulator) Model() *sim.Model { return s.model }

// The state getters return nil (or zero time) once the simulator is closed.

func (s *Simulator) QPos() []float64 {
	if s.d == nil {
		return nil
	}
	return numSlice(s.d.qpos, s.model.Nq)
}

func (s *Simulator) QVel() []float64 {
	if s.d == nil {
		return nil
	}
	return numSlice(s.d.qvel, s.model.Nv)
}

func (s *Simulator) Ctrl() []float64 {
	if s.d == nil {
		return nil
	}
	return numSlice(s.d.ctrl, s.model.Nu)
}

func (s *Simulator) QfrcBias() []float64 {
	if s.d == nil {
		return nil
	}
	return numSlice(s.d.qfrc_bias, s.model.Nv)
}

func (s *Simulator) XPos() []float64 {
	if s.d == nil {
		return nil
	}
	return numSlice(s.d.xpos, s.model.Nbody*3)
}

func (s *Simulator) XQuat() []float64 {
	if s.d == nil {
		return nil
	}
	return numSlice(s.d.xquat, s.model.Nbody*4)
}

func (s *Simulator) Time() float64 {
	if s.d == nil {
		return 0
	}
	return float64(s.d.time)
}

// SetQPos writes one generalized coordinate.
func (s *Simulator) SetQPos(index int, value float64) error {
	if s.d == nil {
		return ErrClosed
	}
	return setNum(s.d.qpos, s.model.Nq, index, value, "qpos")
}

// SetCtrl writes one actuator control input.
func (s *Simulator) SetCtrl(index int, value float64) error {
	if s.d == nil {
		return ErrClosed
	}
	return setNum(s.d.ctrl, s.model.Nu, index, value, "ctrl")
}

// Step runs mj_step once.
func (s *Simulator) Step() {
	if s.d == nil {
		return
	}
	C.mj_step(s.m, s.d)
}

// Close frees the data and the model. Safe to call twice.
func (s *Simulator) Close() error {
	if s.d != nil {
		C.mj_deleteData(s.d)
		s.d = nil
	}
	if s.m != nil {
		C.mj_deleteModel(s.m)
		s.m = nil
	}
	return nil
}
