package fusion

// A synthesizer handle is opaque; the processor probes it once at bind time
// for the interfaces below and picks one of two dialects. The raw-bytes
// dialect (RawSender) is preferred. The named-op dialect is assembled from
// whatever subset of the single-op interfaces the handle implements;
// unsupported operations are silently skipped.

// RawSender accepts standard MIDI status bytes. whenHint is a sample offset
// hint within the current buffer; synthesizers that cannot schedule
// sub-buffer may ignore it.
type RawSender interface {
	Send(msg []byte, whenHint uint32)
}

// Renderer produces planar stereo output. Both slices have equal length and
// must be filled completely. A synthesizer without Renderer is assumed to
// route audio to the host graph on its own, and the processor emits silence
// for it.
type Renderer interface {
	Render(left, right []float32)
}

type NoteOnSender interface {
	NoteOn(channel, note, velocity int)
}

type NoteOffSender interface {
	NoteOff(channel, note int)
}

type ProgramChanger interface {
	ProgramChange(channel, program int)
}

type ControlChanger interface {
	ControlChange(channel, controller, value int)
}

type PitchBender interface {
	PitchBend(channel, value int)
}

// NoteOffAller silences every sounding note on one channel.
type NoteOffAller interface {
	NoteOffAll(channel int)
}

// MIDIStopper is the bluntest silencing capability, used only when neither
// NoteOffAller nor a raw sender is available.
type MIDIStopper interface {
	StopMIDI()
}

// SoundFontLoader is implemented by synthesizers that can (re)load an SF2
// soundfont from raw bytes after construction.
type SoundFontLoader interface {
	LoadSoundFont(data []byte) error
}
