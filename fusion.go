package fusion

type (
	// EngineKind tells which playback engine is currently bound to the
	// processor. EngineNone means the transport is idle and every callback
	// produces silence.
	EngineKind int

	// MidiEventKind enumerates the channel voice messages the scheduler can
	// dispatch. Anything else in a MIDI file (SysEx, meta events) is dropped
	// during parsing and never reaches the audio thread.
	MidiEventKind int

	// MidiEvent is one pre-parsed MIDI event with its absolute time in
	// seconds from the start of the song. Events handed to the processor
	// must be sorted by Time ascending; equal-time events keep their array
	// order. Only the fields relevant to Kind are meaningful.
	MidiEvent struct {
		Time       float64
		Kind       MidiEventKind
		Channel    uint8 // 0..15
		Note       uint8
		Velocity   uint8
		Program    uint8
		Controller uint8
		Value      uint8 // control change value
		Bend       int16 // pitch bend, -8192..8191
		Pressure   uint8
	}
)

const (
	EngineNone EngineKind = iota
	EngineTracker
	EngineMidi
)

func (k EngineKind) String() string {
	switch k {
	case EngineTracker:
		return "tracker"
	case EngineMidi:
		return "midi"
	}
	return "none"
}

const (
	NoteOn MidiEventKind = iota
	NoteOff
	ProgramChange
	ControlChange
	PitchBend
	ChannelPressure
)

func (k MidiEventKind) String() string {
	switch k {
	case NoteOn:
		return "noteOn"
	case NoteOff:
		return "noteOff"
	case ProgramChange:
		return "programChange"
	case ControlChange:
		return "controlChange"
	case PitchBend:
		return "pitchBend"
	case ChannelPressure:
		return "channelPressure"
	}
	return "unknown"
}

// StateBearing reports whether the event carries channel state (program,
// controller, bend or pressure) that must be replayed after a seek so the
// synthesizer state matches the musical position. Note events are transient
// and never replayed.
func (e MidiEvent) StateBearing() bool {
	switch e.Kind {
	case ProgramChange, ControlChange, PitchBend, ChannelPressure:
		return true
	}
	return false
}

// EventsSorted reports whether the slice is sorted by Time ascending, which
// is the invariant the scheduler relies on.
func EventsSorted(events []MidiEvent) bool {
	for i := 1; i < len(events); i++ {
		if events[i].Time < events[i-1].Time {
			return false
		}
	}
	return true
}
