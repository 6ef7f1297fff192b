package player

import (
	"github.com/fusionaudio/fusion"
)

// Commands (controller -> processor). These are the only mutations the
// control thread can apply to the transport; they are drained at the start
// of each callback, before any audio is rendered for that callback.
type (
	// InitMsg sets the host sample rate. Sent once, before anything else.
	InitMsg struct {
		SampleRate int
	}

	// InitSynthMsg binds a synthesizer handle and optionally loads a
	// soundfont into it. Completion is reported with SynthReadyMsg.
	InitSynthMsg struct {
		Synth     any
		SoundFont []byte
	}

	// SetEngineMsg replaces the current engine. Exactly one of Tracker or
	// Events is meaningful, depending on Kind. The event slice is frozen
	// after sending; the controller must not touch it again.
	SetEngineMsg struct {
		Kind     fusion.EngineKind
		Tracker  fusion.TrackerDecoder
		Events   []fusion.MidiEvent
		Duration float64
	}

	PlayMsg  struct{}
	PauseMsg struct{}
	StopMsg  struct{}

	SeekMsg struct {
		Seconds float64
	}

	SetVolumeMsg struct {
		Volume float32
	}
)

// Events (processor -> controller), boxed into MsgToController.Data. The
// frequently sent progress data travels unboxed in MsgToController itself
// to avoid allocations on the audio thread.
type (
	SynthReadyMsg struct {
		OK  bool
		Err error
	}

	PlayStateMsg struct {
		Playing bool
		Time    float64
	}

	TrackEndedMsg struct{}

	ErrorMsg struct {
		Kind    FaultKind
		Message string
		Count   int
		Time    float64
		Engine  fusion.EngineKind
	}
)

// MsgToController is a message sent to the controller. Time, duration and
// levels are not boxed; all the infrequently passed messages are boxed into
// Data (casting pointer-free structs to any is cheap for the small types
// above).
type MsgToController struct {
	HasTime  bool
	Time     float64
	Duration float64
	Levels   Levels

	Data any
}

// Levels is a per-buffer stereo level measurement: peak and mean absolute
// sample value per channel, linear scale.
type Levels struct {
	Peak    [2]float32
	Average [2]float32
}
