package player

import (
	"math"
	"testing"
	"time"

	"github.com/fusionaudio/fusion"
)

func newTestProcessor(t *testing.T) (*Processor, *Broker) {
	t.Helper()
	broker := NewBroker()
	return NewProcessor(broker), broker
}

func command(t *testing.T, b *Broker, msg any) {
	t.Helper()
	if !TrySend(b.ToProcessor, msg) {
		t.Fatal("processor command channel full")
	}
}

func drainEvents(b *Broker) []MsgToController {
	var msgs []MsgToController
	for {
		select {
		case m := <-b.ToController:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func boxedEvents[T any](msgs []MsgToController) []T {
	var out []T
	for _, m := range msgs {
		if d, ok := m.Data.(T); ok {
			out = append(out, d)
		}
	}
	return out
}

func TestIdleOutputsSilence(t *testing.T) {
	p, _ := newTestProcessor(t)
	left := []float32{1, 2, 3, 4}
	right := []float32{5, 6, 7, 8}
	p.Process(left, right)
	for i := range left {
		if left[i] != 0 || right[i] != 0 {
			t.Fatalf("idle processor must output silence, got %v %v at %d", left[i], right[i], i)
		}
	}
}

func TestTrackerPlaybackEndOfSong(t *testing.T) {
	p, b := newTestProcessor(t)
	dec := &fakeDecoder{rate: 48000, framesLeft: 96000, fill: 0.5}
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, SetEngineMsg{Kind: fusion.EngineTracker, Tracker: dec, Duration: 2})
	command(t, b, PlayMsg{})

	left := make([]float32, 128)
	right := make([]float32, 128)
	var ended bool
	var endedAt float64
	for i := 0; i < 800 && !ended; i++ {
		p.Process(left, right)
		for _, m := range drainEvents(b) {
			if _, ok := m.Data.(TrackEndedMsg); ok {
				ended = true
				endedAt = m.Time
			}
		}
	}
	if !ended {
		t.Fatal("expected trackEnded after the decoder ran out of frames")
	}
	if p.playing {
		t.Error("playing must be false after end of song")
	}
	if math.Abs(endedAt-2.0) > 0.01 {
		t.Errorf("expected position ~2.0 at end of song, got %v", endedAt)
	}
}

func TestTrackerOutputAndVolume(t *testing.T) {
	p, b := newTestProcessor(t)
	dec := &fakeDecoder{rate: 48000, framesLeft: 48000, fill: 0.5}
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, SetEngineMsg{Kind: fusion.EngineTracker, Tracker: dec})
	command(t, b, SetVolumeMsg{Volume: 0.5})
	command(t, b, PlayMsg{})

	left := make([]float32, 128)
	right := make([]float32, 128)
	p.Process(left, right)
	for i := range left {
		if math.Abs(float64(left[i]-0.25)) > 1e-6 || math.Abs(float64(right[i]-0.25)) > 1e-6 {
			t.Fatalf("expected gain-scaled 0.25 samples, got %v %v", left[i], right[i])
		}
	}
}

func TestMidiSchedulingDispatchCount(t *testing.T) {
	p, b := newTestProcessor(t)
	synth := &rawSynth{}
	events := []fusion.MidiEvent{
		{Time: 0, Kind: fusion.NoteOn, Note: 60, Velocity: 100},
		{Time: 0.5, Kind: fusion.NoteOff, Note: 60},
	}
	command(t, b, InitMsg{SampleRate: 44100})
	command(t, b, InitSynthMsg{Synth: synth})
	command(t, b, SetEngineMsg{Kind: fusion.EngineMidi, Events: events, Duration: 10})
	command(t, b, PlayMsg{})

	left := make([]float32, 128)
	right := make([]float32, 128)
	// the noteOff at 0.5 s falls into the callback whose window end first
	// exceeds 0.5*44100 samples, i.e. callback index 172 counted from 0
	for i := 0; i < 172; i++ {
		p.Process(left, right)
	}
	if got := len(synth.channelMessages()); got != 1 {
		t.Fatalf("expected 1 dispatch before callback 172, got %d", got)
	}
	p.Process(left, right)
	if got := len(synth.channelMessages()); got != 2 {
		t.Fatalf("expected 2 cumulative dispatches at callback 172, got %d", got)
	}
}

func TestSeekReplaysChannelState(t *testing.T) {
	p, b := newTestProcessor(t)
	synth := &rawSynth{}
	events := []fusion.MidiEvent{
		{Time: 0.1, Kind: fusion.ProgramChange, Program: 40},
		{Time: 0.2, Kind: fusion.NoteOn, Note: 72, Velocity: 100},
	}
	command(t, b, InitMsg{SampleRate: 44100})
	command(t, b, InitSynthMsg{Synth: synth})
	command(t, b, SetEngineMsg{Kind: fusion.EngineMidi, Events: events, Duration: 10})
	command(t, b, SeekMsg{Seconds: 0.3})

	left := make([]float32, 128)
	right := make([]float32, 128)
	p.Process(left, right)

	var sawNotesOff bool
	for _, m := range synth.msgs {
		if len(m) == 3 && m[0]&0xF0 == 0xB0 && m[1] == ccAllNotesOff {
			sawNotesOff = true
		}
	}
	if !sawNotesOff {
		t.Error("seek must silence sounding notes")
	}
	msgs := synth.channelMessages()
	if len(msgs) != 1 || msgs[0][0] != 0xC0 || msgs[0][1] != 40 {
		t.Fatalf("expected exactly the program change to be replayed, got %v", msgs)
	}
	if p.sched.cursor < 2 {
		t.Errorf("cursor must land past both events, got %d", p.sched.cursor)
	}
	if p.position != 0.3 {
		t.Errorf("position must equal the seek target, got %v", p.position)
	}
}

func TestSeekClampsNegative(t *testing.T) {
	p, b := newTestProcessor(t)
	dec := &fakeDecoder{rate: 48000, framesLeft: 48000}
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, SetEngineMsg{Kind: fusion.EngineTracker, Tracker: dec})
	command(t, b, SeekMsg{Seconds: -3})
	p.Process(make([]float32, 8), make([]float32, 8))
	if p.position != 0 {
		t.Errorf("negative seek must clamp to 0, got %v", p.position)
	}
	if got := dec.seeks; len(got) != 1 || got[0] != 0 {
		t.Errorf("decoder must be seeked to 0, got %v", got)
	}
}

func TestVolumeClamp(t *testing.T) {
	p, b := newTestProcessor(t)
	command(t, b, SetVolumeMsg{Volume: 1.5})
	p.Process(make([]float32, 8), make([]float32, 8))
	if p.volume != 1 {
		t.Errorf("volume 1.5 must clamp to 1, got %v", p.volume)
	}
	command(t, b, SetVolumeMsg{Volume: -0.3})
	p.Process(make([]float32, 8), make([]float32, 8))
	if p.volume != 0 {
		t.Errorf("volume -0.3 must clamp to 0, got %v", p.volume)
	}
}

func TestErrorCapForcesStop(t *testing.T) {
	p, b := newTestProcessor(t)
	synth := &renderSynth{renderPanic: true}
	events := []fusion.MidiEvent{{Time: 10000, Kind: fusion.NoteOn, Note: 60, Velocity: 1}}
	command(t, b, InitMsg{SampleRate: 44100})
	command(t, b, InitSynthMsg{Synth: synth})
	command(t, b, SetEngineMsg{Kind: fusion.EngineMidi, Events: events, Duration: 20000})
	command(t, b, PlayMsg{})

	left := make([]float32, 128)
	right := make([]float32, 128)
	var msgs []MsgToController
	for i := 0; i < 11; i++ {
		p.Process(left, right)
		msgs = append(msgs, drainEvents(b)...)
	}
	errs := boxedEvents[ErrorMsg](msgs)
	var faults, limits int
	for _, e := range errs {
		switch e.Kind {
		case FaultSynth:
			faults++
		case FaultLimit:
			limits++
		}
	}
	if faults != maxReportedErrors {
		t.Errorf("expected %d reported synth faults, got %d", maxReportedErrors, faults)
	}
	if limits != 1 {
		t.Fatalf("expected exactly one LimitExceeded error, got %d", limits)
	}
	if p.playing {
		t.Error("playback must be force-stopped after exceeding the error limit")
	}
	if p.engine != fusion.EngineNone {
		t.Error("engine must be dropped after exceeding the error limit")
	}
}

func TestDecoderFaultKeepsSilence(t *testing.T) {
	p, b := newTestProcessor(t)
	dec := &fakeDecoder{rate: 48000, framesLeft: 48000, fill: 0.5, panicNext: true}
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, SetEngineMsg{Kind: fusion.EngineTracker, Tracker: dec})
	command(t, b, PlayMsg{})
	left := make([]float32, 128)
	right := make([]float32, 128)
	p.Process(left, right)
	for i := range left {
		if left[i] != 0 || right[i] != 0 {
			t.Fatal("a faulted callback must emit silence")
		}
	}
	errs := boxedEvents[ErrorMsg](drainEvents(b))
	if len(errs) != 1 || errs[0].Kind != FaultDecoder {
		t.Fatalf("expected one decoder fault report, got %v", errs)
	}
}

func TestPlayRequiresEngine(t *testing.T) {
	p, b := newTestProcessor(t)
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, PlayMsg{})
	p.Process(make([]float32, 8), make([]float32, 8))
	if p.playing {
		t.Error("play without an engine must be ignored")
	}
	if states := boxedEvents[PlayStateMsg](drainEvents(b)); len(states) != 0 {
		t.Errorf("no play state change expected, got %v", states)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p, b := newTestProcessor(t)
	dec := &fakeDecoder{rate: 48000, framesLeft: 48000}
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, SetEngineMsg{Kind: fusion.EngineTracker, Tracker: dec})
	command(t, b, PlayMsg{})
	p.Process(make([]float32, 128), make([]float32, 128))
	command(t, b, StopMsg{})
	command(t, b, StopMsg{})
	p.Process(make([]float32, 128), make([]float32, 128))
	if p.playing || p.position != 0 || p.engine != fusion.EngineNone {
		t.Errorf("stop must reset transport: playing=%v position=%v engine=%v", p.playing, p.position, p.engine)
	}
}

func TestPauseSilencesMidiNotes(t *testing.T) {
	p, b := newTestProcessor(t)
	synth := &rawSynth{}
	events := []fusion.MidiEvent{noteOnAt(0, 60, 100)}
	command(t, b, InitMsg{SampleRate: 44100})
	command(t, b, InitSynthMsg{Synth: synth})
	command(t, b, SetEngineMsg{Kind: fusion.EngineMidi, Events: events, Duration: 10})
	command(t, b, PlayMsg{})
	p.Process(make([]float32, 128), make([]float32, 128))
	before := len(synth.msgs)
	command(t, b, PauseMsg{})
	p.Process(make([]float32, 128), make([]float32, 128))
	if p.playing {
		t.Error("pause must stop playback")
	}
	if len(synth.msgs) <= before {
		t.Error("pause must send all-notes-off to the synthesizer")
	}
}

func TestPositionMonotonicDuringPlayback(t *testing.T) {
	p, b := newTestProcessor(t)
	synth := &renderSynth{}
	events := []fusion.MidiEvent{noteOnAt(0, 60, 100), noteOffAt(5, 60)}
	command(t, b, InitMsg{SampleRate: 44100})
	command(t, b, InitSynthMsg{Synth: synth})
	command(t, b, SetEngineMsg{Kind: fusion.EngineMidi, Events: events, Duration: 100})
	command(t, b, PlayMsg{})
	left := make([]float32, 128)
	right := make([]float32, 128)
	prev := p.position
	for i := 0; i < 100; i++ {
		p.Process(left, right)
		if p.position < prev {
			t.Fatalf("position went backwards: %v -> %v", prev, p.position)
		}
		prev = p.position
	}
}

func TestMidiEndOfTrack(t *testing.T) {
	p, b := newTestProcessor(t)
	synth := &renderSynth{}
	events := []fusion.MidiEvent{noteOnAt(0, 60, 100), noteOffAt(0.1, 60)}
	command(t, b, InitMsg{SampleRate: 44100})
	command(t, b, InitSynthMsg{Synth: synth})
	command(t, b, SetEngineMsg{Kind: fusion.EngineMidi, Events: events, Duration: 0.2})
	command(t, b, PlayMsg{})
	left := make([]float32, 128)
	right := make([]float32, 128)
	var ended bool
	for i := 0; i < 200 && !ended; i++ {
		p.Process(left, right)
		for _, m := range drainEvents(b) {
			if _, ok := m.Data.(TrackEndedMsg); ok {
				ended = true
			}
		}
	}
	if !ended {
		t.Fatal("expected trackEnded once all events were dispatched")
	}
	if p.playing {
		t.Error("playing must be false after end of track")
	}
	if p.position == 0 {
		t.Error("position must be retained after end of track")
	}
}

func TestProgressThrottling(t *testing.T) {
	p, b := newTestProcessor(t)
	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }
	dec := &fakeDecoder{rate: 48000, framesLeft: 1 << 30}
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, SetEngineMsg{Kind: fusion.EngineTracker, Tracker: dec})
	command(t, b, PlayMsg{})

	left := make([]float32, 128)
	right := make([]float32, 128)
	updates := 0
	for i := 0; i < 100; i++ {
		p.Process(left, right)
		for _, m := range drainEvents(b) {
			if m.HasTime {
				updates++
			}
		}
		clock = clock.Add(10 * time.Millisecond)
	}
	// 100 callbacks over ~1 s of host clock: at most ceil(1/0.1)+1 updates
	if updates > 11 {
		t.Errorf("progress updates not throttled: %d in 1 s", updates)
	}
	if updates < 9 {
		t.Errorf("expected roughly one update per 100 ms, got %d", updates)
	}
}

func TestProgressCarriesOutputLevels(t *testing.T) {
	p, b := newTestProcessor(t)
	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }
	dec := &fakeDecoder{rate: 48000, framesLeft: 48000, fill: 0.5}
	command(t, b, InitMsg{SampleRate: 48000})
	command(t, b, SetEngineMsg{Kind: fusion.EngineTracker, Tracker: dec})
	command(t, b, PlayMsg{})

	left := make([]float32, 128)
	right := make([]float32, 128)
	p.Process(left, right)
	var levels Levels
	var found bool
	for _, m := range drainEvents(b) {
		if m.HasTime {
			levels = m.Levels
			found = true
		}
	}
	if !found {
		t.Fatal("expected a time update with levels")
	}
	for ch := 0; ch < 2; ch++ {
		if levels.Peak[ch] != 0.5 || levels.Average[ch] != 0.5 {
			t.Errorf("channel %d: peak %v average %v, want 0.5 for constant output", ch, levels.Peak[ch], levels.Average[ch])
		}
	}
	// the level scratch comes from the broker pool and must go back empty
	buf := b.GetBuffer()
	if len(*buf) != 0 {
		t.Errorf("pooled scratch must be returned with zero length, got %d", len(*buf))
	}
	b.PutBuffer(buf)
}

func TestInitSynthSoundFontFailure(t *testing.T) {
	p, b := newTestProcessor(t)
	command(t, b, InitSynthMsg{Synth: &rawSynth{}, SoundFont: []byte{1, 2, 3}})
	p.Process(make([]float32, 8), make([]float32, 8))
	readies := boxedEvents[SynthReadyMsg](drainEvents(b))
	if len(readies) != 1 || readies[0].OK {
		t.Fatalf("expected a failed synthesizerReady, got %v", readies)
	}
	if p.engine != fusion.EngineNone {
		t.Error("transport must stay idle after a failed synthesizer init")
	}
}

func TestInitSynthLoadsSoundFont(t *testing.T) {
	p, b := newTestProcessor(t)
	synth := &loaderSynth{}
	command(t, b, InitSynthMsg{Synth: synth, SoundFont: []byte{9, 9}})
	p.Process(make([]float32, 8), make([]float32, 8))
	readies := boxedEvents[SynthReadyMsg](drainEvents(b))
	if len(readies) != 1 || !readies[0].OK {
		t.Fatalf("expected a successful synthesizerReady, got %v", readies)
	}
	if len(synth.loaded) != 1 {
		t.Fatalf("expected the soundfont bytes to be loaded once, got %d", len(synth.loaded))
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	p, b := newTestProcessor(t)
	command(t, b, struct{ Bogus int }{42})
	p.Process(make([]float32, 8), make([]float32, 8))
	if errs := boxedEvents[ErrorMsg](drainEvents(b)); len(errs) != 0 {
		t.Errorf("unknown commands must not produce errors, got %v", errs)
	}
	if p.errorCount != 0 {
		t.Errorf("unknown commands must not count as faults, got %d", p.errorCount)
	}
}
