//go:build cgo

// Package openmpt binds libopenmpt and implements the player's tracker
// decoder contract for MOD/XM/IT/S3M modules.
package openmpt

/*
#cgo LDFLAGS: -lopenmpt
#include <stdlib.h>
#include <libopenmpt/libopenmpt.h>
*/
import "C"

import (
	"errors"
	"runtime"
	"unsafe"
)

var ErrInvalidModule = errors.New("libopenmpt could not parse the module")

// Module is a loaded tracker module. It is not safe for concurrent use;
// the player calls all methods from the audio thread only.
type Module struct {
	mod        *C.openmpt_module
	sampleRate C.int32_t
}

// Load parses a module from raw bytes. libopenmpt copies the data during
// parsing, so the slice can be reused afterwards.
func Load(data []byte, sampleRate int) (*Module, error) {
	if len(data) == 0 {
		return nil, ErrInvalidModule
	}
	mod := C.openmpt_module_create_from_memory2(
		unsafe.Pointer(&data[0]), C.size_t(len(data)),
		nil, nil, nil, nil, nil, nil, nil)
	if mod == nil {
		return nil, ErrInvalidModule
	}
	m := &Module{mod: mod, sampleRate: C.int32_t(sampleRate)}
	runtime.SetFinalizer(m, (*Module).Close)
	return m, nil
}

// ReadStereo fills buf with interleaved stereo samples and returns the
// number of frames written. A short read means the song has ended.
func (m *Module) ReadStereo(buf []float32) int {
	if m.mod == nil || len(buf) < 2 {
		return 0
	}
	frames := C.openmpt_module_read_interleaved_float_stereo(
		m.mod, m.sampleRate, C.size_t(len(buf)/2), (*C.float)(unsafe.Pointer(&buf[0])))
	return int(frames)
}

func (m *Module) SetPositionSeconds(t float64) {
	if m.mod == nil {
		return
	}
	C.openmpt_module_set_position_seconds(m.mod, C.double(t))
}

func (m *Module) PositionSeconds() float64 {
	if m.mod == nil {
		return 0
	}
	return float64(C.openmpt_module_get_position_seconds(m.mod))
}

func (m *Module) DurationSeconds() float64 {
	if m.mod == nil {
		return 0
	}
	return float64(C.openmpt_module_get_duration_seconds(m.mod))
}

// Metadata returns a module metadata field, e.g. "title" or "type".
func (m *Module) Metadata(key string) string {
	if m.mod == nil {
		return ""
	}
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	cval := C.openmpt_module_get_metadata(m.mod, ckey)
	if cval == nil {
		return ""
	}
	defer C.openmpt_free_string(cval)
	return C.GoString(cval)
}

func (m *Module) Close() error {
	if m.mod != nil {
		C.openmpt_module_destroy(m.mod)
		m.mod = nil
		runtime.SetFinalizer(m, nil)
	}
	return nil
}
