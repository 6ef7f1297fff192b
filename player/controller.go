package player

import (
	"github.com/fusionaudio/fusion"
)

type (
	// Controller is the control-thread driver of the processor. It owns
	// decoder and synthesizer construction, forwards transport commands
	// over the broker and fans processor events out to an EventHandler.
	// Once a decoder, synthesizer or event slice has been handed over
	// with SetTrackerEngine/SetMidiEngine/InitSynth, the controller must
	// not mutate it again.
	Controller struct {
		broker *Broker
	}

	// EventHandler receives processor events on the controller
	// goroutine. Implementations should return quickly; a slow handler
	// makes the processor drop events, not block.
	EventHandler interface {
		OnSynthReady(ok bool, err error)
		OnPlayState(playing bool, time float64)
		OnTimeUpdate(time, duration float64, levels Levels)
		OnTrackEnded(time float64)
		OnError(e ErrorMsg)
	}
)

func NewController(broker *Broker) *Controller {
	return &Controller{broker: broker}
}

// Init tells the processor the host sample rate. Must be sent before any
// engine is bound.
func (c *Controller) Init(sampleRate int) {
	TrySend[any](c.broker.ToProcessor, InitMsg{SampleRate: sampleRate})
}

// InitSynth hands a ready synthesizer handle to the processor, optionally
// with soundfont bytes for handles that can load them. The processor
// answers with a SynthReady event.
func (c *Controller) InitSynth(handle any, soundFont []byte) {
	TrySend[any](c.broker.ToProcessor, InitSynthMsg{Synth: handle, SoundFont: soundFont})
}

// InitSynthAsync constructs a synthesizer on a background goroutine and
// binds it when done. Construction (soundfont parsing in particular) can
// take long, so it never happens on the caller's thread. A build error is
// reported as a failed SynthReady event; a stop racing the completion has
// no playback side effect, since binding a synthesizer does not start
// anything.
func (c *Controller) InitSynthAsync(build func() (any, error)) {
	go func() {
		handle, err := build()
		if err != nil {
			TrySend(c.broker.ToController, MsgToController{Data: SynthReadyMsg{OK: false, Err: err}})
			return
		}
		TrySend[any](c.broker.ToProcessor, InitSynthMsg{Synth: handle})
	}()
}

// SetTrackerEngine binds a module decoder as the active engine. duration 0
// means unknown; the processor will ask the decoder if it can report one.
func (c *Controller) SetTrackerEngine(dec fusion.TrackerDecoder, duration float64) {
	TrySend[any](c.broker.ToProcessor, SetEngineMsg{
		Kind:     fusion.EngineTracker,
		Tracker:  dec,
		Duration: duration,
	})
}

// SetMidiEngine binds a pre-parsed, time-sorted MIDI event slice as the
// active engine. The slice is frozen from here on.
func (c *Controller) SetMidiEngine(events []fusion.MidiEvent, duration float64) {
	TrySend[any](c.broker.ToProcessor, SetEngineMsg{
		Kind:     fusion.EngineMidi,
		Events:   events,
		Duration: duration,
	})
}

func (c *Controller) Play()  { TrySend[any](c.broker.ToProcessor, PlayMsg{}) }
func (c *Controller) Pause() { TrySend[any](c.broker.ToProcessor, PauseMsg{}) }
func (c *Controller) Stop()  { TrySend[any](c.broker.ToProcessor, StopMsg{}) }

func (c *Controller) Seek(seconds float64) {
	TrySend[any](c.broker.ToProcessor, SeekMsg{Seconds: seconds})
}

func (c *Controller) SetVolume(v float32) {
	TrySend[any](c.broker.ToProcessor, SetVolumeMsg{Volume: v})
}

// Run receives processor events and dispatches them to the handler until
// Close is called. It closes FinishedController on exit, so callers can
// wait for a clean shutdown. Run is meant to be started as a goroutine.
func (c *Controller) Run(h EventHandler) {
	defer close(c.broker.FinishedController)
	for {
		select {
		case <-c.broker.CloseController:
			return
		case msg := <-c.broker.ToController:
			c.dispatch(h, msg)
		}
	}
}

func (c *Controller) dispatch(h EventHandler, msg MsgToController) {
	switch d := msg.Data.(type) {
	case SynthReadyMsg:
		h.OnSynthReady(d.OK, d.Err)
	case PlayStateMsg:
		h.OnPlayState(d.Playing, d.Time)
	case TrackEndedMsg:
		h.OnTrackEnded(msg.Time)
	case ErrorMsg:
		h.OnError(d)
	}
	if msg.HasTime {
		h.OnTimeUpdate(msg.Time, msg.Duration, msg.Levels)
	}
}

// Close requests the controller loop to exit.
func (c *Controller) Close() {
	TrySend(c.broker.CloseController, struct{}{})
}
