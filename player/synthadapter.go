package player

import (
	"github.com/fusionaudio/fusion"
)

type synthDialect int

const (
	dialectNone synthDialect = iota
	dialectRaw
	dialectNamed
)

// SynthAdapter normalizes the two synthesizer dialects behind one dispatch
// surface. The handle's capability set is probed exactly once, at bind
// time; per-event dispatch is a switch over pre-resolved interfaces with no
// further type assertions.
type SynthAdapter struct {
	dialect synthDialect

	raw      fusion.RawSender
	renderer fusion.Renderer

	noteOn     fusion.NoteOnSender
	noteOff    fusion.NoteOffSender
	program    fusion.ProgramChanger
	control    fusion.ControlChanger
	pitchBend  fusion.PitchBender
	noteOffAll fusion.NoteOffAller
	stopper    fusion.MIDIStopper

	msg [3]byte // scratch for raw sends, so dispatch never allocates
}

// BindSynth probes the handle and returns an adapter bound to the dialect
// it supports. A nil handle yields an adapter that drops everything.
func BindSynth(handle any) *SynthAdapter {
	a := &SynthAdapter{}
	if handle == nil {
		return a
	}
	a.raw, _ = handle.(fusion.RawSender)
	a.renderer, _ = handle.(fusion.Renderer)
	a.noteOn, _ = handle.(fusion.NoteOnSender)
	a.noteOff, _ = handle.(fusion.NoteOffSender)
	a.program, _ = handle.(fusion.ProgramChanger)
	a.control, _ = handle.(fusion.ControlChanger)
	a.pitchBend, _ = handle.(fusion.PitchBender)
	a.noteOffAll, _ = handle.(fusion.NoteOffAller)
	a.stopper, _ = handle.(fusion.MIDIStopper)
	switch {
	case a.raw != nil:
		a.dialect = dialectRaw
	case a.noteOn != nil || a.noteOff != nil || a.program != nil || a.control != nil || a.pitchBend != nil:
		a.dialect = dialectNamed
	}
	return a
}

// CanRender reports whether the synthesizer produces audio through the
// adapter. If not, the processor emits silence for the MIDI engine.
func (a *SynthAdapter) CanRender() bool { return a.renderer != nil }

// Render fills the planar stereo buffers from the synthesizer.
func (a *SynthAdapter) Render(left, right []float32) {
	a.renderer.Render(left, right)
}

// Dispatch translates one event into the bound dialect. With the raw
// dialect the standard MIDI status bytes are emitted; with the named-op
// dialect the matching method is called if the handle has it, otherwise the
// event is skipped.
func (a *SynthAdapter) Dispatch(e fusion.MidiEvent) {
	switch a.dialect {
	case dialectRaw:
		a.dispatchRaw(e)
	case dialectNamed:
		a.dispatchNamed(e)
	}
}

func (a *SynthAdapter) dispatchRaw(e fusion.MidiEvent) {
	ch := e.Channel & 0x0F
	switch e.Kind {
	case fusion.NoteOn:
		a.send3(0x90|ch, e.Note, e.Velocity)
	case fusion.NoteOff:
		vel := e.Velocity
		if vel == 0 {
			vel = 64
		}
		a.send3(0x80|ch, e.Note, vel)
	case fusion.ProgramChange:
		a.send2(0xC0|ch, e.Program)
	case fusion.ControlChange:
		a.send3(0xB0|ch, e.Controller, e.Value)
	case fusion.PitchBend:
		pb14 := int(e.Bend) + 8192
		if pb14 < 0 {
			pb14 = 0
		} else if pb14 > 0x3FFF {
			pb14 = 0x3FFF
		}
		a.send3(0xE0|ch, uint8(pb14&0x7F), uint8((pb14>>7)&0x7F))
	case fusion.ChannelPressure:
		a.send2(0xD0|ch, e.Pressure)
	}
}

func (a *SynthAdapter) dispatchNamed(e fusion.MidiEvent) {
	ch := int(e.Channel & 0x0F)
	switch e.Kind {
	case fusion.NoteOn:
		if a.noteOn != nil {
			a.noteOn.NoteOn(ch, int(e.Note), int(e.Velocity))
		}
	case fusion.NoteOff:
		if a.noteOff != nil {
			a.noteOff.NoteOff(ch, int(e.Note))
		}
	case fusion.ProgramChange:
		if a.program != nil {
			a.program.ProgramChange(ch, int(e.Program))
		}
	case fusion.ControlChange:
		if a.control != nil {
			a.control.ControlChange(ch, int(e.Controller), int(e.Value))
		}
	case fusion.PitchBend:
		if a.pitchBend != nil {
			a.pitchBend.PitchBend(ch, int(e.Bend))
		}
	default:
		// channel pressure has no named op; skip
	}
}

// MIDI mode messages used by AllNotesOff.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

// AllNotesOff silences every sounding note. It tries, in order: the
// per-channel NoteOffAll capability; CC123 + CC120 on all 16 channels via
// the raw dialect or the named control-change op; finally StopMIDI.
func (a *SynthAdapter) AllNotesOff() {
	switch {
	case a.noteOffAll != nil:
		for ch := 0; ch < 16; ch++ {
			a.noteOffAll.NoteOffAll(ch)
		}
	case a.raw != nil:
		for ch := uint8(0); ch < 16; ch++ {
			a.send3(0xB0|ch, ccAllNotesOff, 0)
			a.send3(0xB0|ch, ccAllSoundOff, 0)
		}
	case a.control != nil:
		for ch := 0; ch < 16; ch++ {
			a.control.ControlChange(ch, ccAllNotesOff, 0)
			a.control.ControlChange(ch, ccAllSoundOff, 0)
		}
	case a.stopper != nil:
		a.stopper.StopMIDI()
	}
}

func (a *SynthAdapter) send2(status, data1 uint8) {
	a.msg[0], a.msg[1] = status, data1
	a.raw.Send(a.msg[:2], 0)
}

func (a *SynthAdapter) send3(status, data1, data2 uint8) {
	a.msg[0], a.msg[1], a.msg[2] = status, data1, data2
	a.raw.Send(a.msg[:3], 0)
}
