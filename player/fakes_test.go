package player

import (
	"fmt"

	"github.com/fusionaudio/fusion"
)

// fakeDecoder is a scripted tracker decoder: it produces constant-value
// samples until framesLeft runs out, then short-reads.
type fakeDecoder struct {
	rate       int
	framesLeft int
	fill       float32
	pos        float64
	panicNext  bool
	seeks      []float64
}

func (d *fakeDecoder) ReadStereo(buf []float32) int {
	if d.panicNext {
		panic("decoder exploded")
	}
	frames := len(buf) / 2
	if frames > d.framesLeft {
		frames = d.framesLeft
	}
	for i := 0; i < frames*2; i++ {
		buf[i] = d.fill
	}
	d.framesLeft -= frames
	d.pos += float64(frames) / float64(d.rate)
	return frames
}

func (d *fakeDecoder) SetPositionSeconds(t float64) {
	d.seeks = append(d.seeks, t)
	d.pos = t
}

func (d *fakeDecoder) PositionSeconds() float64 { return d.pos }

// rawSynth records every raw-bytes message it receives.
type rawSynth struct {
	msgs [][]byte
}

func (s *rawSynth) Send(msg []byte, _ uint32) {
	s.msgs = append(s.msgs, append([]byte(nil), msg...))
}

// channelMessages returns the recorded messages that are not all-notes-off
// or all-sound-off housekeeping.
func (s *rawSynth) channelMessages() [][]byte {
	var out [][]byte
	for _, m := range s.msgs {
		if len(m) == 3 && m[0]&0xF0 == 0xB0 && (m[1] == ccAllNotesOff || m[1] == ccAllSoundOff) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// renderSynth is a raw synth that also renders a constant sample value.
type renderSynth struct {
	rawSynth
	fill        float32
	renderPanic bool
}

func (s *renderSynth) Render(left, right []float32) {
	if s.renderPanic {
		panic("render exploded")
	}
	for i := range left {
		left[i] = s.fill
	}
	for i := range right {
		right[i] = s.fill
	}
}

// namedSynth implements the full named-op dialect and records calls as
// strings.
type namedSynth struct {
	calls []string
}

func (s *namedSynth) NoteOn(channel, note, velocity int) {
	s.calls = append(s.calls, fmt.Sprintf("noteOn %d %d %d", channel, note, velocity))
}

func (s *namedSynth) NoteOff(channel, note int) {
	s.calls = append(s.calls, fmt.Sprintf("noteOff %d %d", channel, note))
}

func (s *namedSynth) ProgramChange(channel, program int) {
	s.calls = append(s.calls, fmt.Sprintf("programChange %d %d", channel, program))
}

func (s *namedSynth) ControlChange(channel, controller, value int) {
	s.calls = append(s.calls, fmt.Sprintf("controlChange %d %d %d", channel, controller, value))
}

func (s *namedSynth) PitchBend(channel, value int) {
	s.calls = append(s.calls, fmt.Sprintf("pitchBend %d %d", channel, value))
}

// noteOnOnlySynth supports a single named op.
type noteOnOnlySynth struct {
	notes []int
}

func (s *noteOnOnlySynth) NoteOn(channel, note, velocity int) {
	s.notes = append(s.notes, note)
}

// offAllSynth has the per-channel silencing capability.
type offAllSynth struct {
	namedSynth
	offChannels []int
}

func (s *offAllSynth) NoteOffAll(channel int) {
	s.offChannels = append(s.offChannels, channel)
}

// stopOnlySynth can only stop everything at once.
type stopOnlySynth struct {
	stopped int
}

func (s *stopOnlySynth) StopMIDI() { s.stopped++ }

// loaderSynth accepts soundfont bytes.
type loaderSynth struct {
	rawSynth
	loaded  [][]byte
	loadErr error
}

func (s *loaderSynth) LoadSoundFont(data []byte) error {
	if s.loadErr != nil {
		return s.loadErr
	}
	s.loaded = append(s.loaded, data)
	return nil
}

func noteOnAt(time float64, note, velocity uint8) fusion.MidiEvent {
	return fusion.MidiEvent{Kind: fusion.NoteOn, Time: time, Note: note, Velocity: velocity}
}

func noteOffAt(time float64, note uint8) fusion.MidiEvent {
	return fusion.MidiEvent{Kind: fusion.NoteOff, Time: time, Note: note}
}
