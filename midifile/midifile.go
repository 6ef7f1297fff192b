// Package midifile converts Standard MIDI Files into the flat,
// time-sorted event slices the player schedules from. Parsing happens on
// the control thread; the audio thread only ever sees the frozen result.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/fusionaudio/fusion"
)

// File is a parsed Standard MIDI File, reduced to the channel voice events
// the player can dispatch. Meta and SysEx events are consumed during
// parsing (tempo) or dropped.
type File struct {
	Events          []fusion.MidiEvent
	Duration        float64 // time of the last event, seconds
	TicksPerQuarter uint16
}

var ErrNotMetric = errors.New("only metric (ticks per quarter) time format is supported")

// defaultMicrosPerQuarter is the SMF default tempo (120 BPM) used until
// the first set_tempo event.
const defaultMicrosPerQuarter = 500000.0

type tickedMessage struct {
	tick  uint64
	order int // original position, to keep equal-tick events stable
	msg   smf.Message
}

// Parse reads an SMF from raw bytes, merges all tracks by absolute tick,
// applies the tempo map and returns the events with absolute times in
// seconds. NoteOn with velocity 0 is normalized to NoteOff. Equal-time
// events keep their merged order.
func Parse(data []byte) (*File, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading SMF failed: %w", err)
	}
	metric, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrNotMetric
	}
	res := float64(uint16(metric.Resolution()))

	var merged []tickedMessage
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			merged = append(merged, tickedMessage{tick: abs, order: len(merged), msg: ev.Message})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].tick != merged[j].tick {
			return merged[i].tick < merged[j].tick
		}
		return merged[i].order < merged[j].order
	})

	f := &File{TicksPerQuarter: uint16(metric.Resolution())}
	var (
		secondsPerTick = defaultMicrosPerQuarter / 1e6 / res
		lastTick       uint64
		now            float64
	)
	for _, tm := range merged {
		now += float64(tm.tick-lastTick) * secondsPerTick
		lastTick = tm.tick
		var bpm float64
		if tm.msg.GetMetaTempo(&bpm) {
			if bpm > 0 {
				secondsPerTick = 60 / bpm / res
			}
			continue
		}
		if ev, ok := convert(tm.msg); ok {
			ev.Time = now
			f.Events = append(f.Events, ev)
		}
	}
	if n := len(f.Events); n > 0 {
		f.Duration = f.Events[n-1].Time
	}
	return f, nil
}

func convert(msg smf.Message) (fusion.MidiEvent, bool) {
	var (
		e             fusion.MidiEvent
		ch, key, vel  uint8
		prog, cc, val uint8
		pressure      uint8
		relative      int16
		absolute      uint16
	)
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		if vel == 0 {
			// running-status style note off
			e = fusion.MidiEvent{Kind: fusion.NoteOff, Channel: ch, Note: key}
		} else {
			e = fusion.MidiEvent{Kind: fusion.NoteOn, Channel: ch, Note: key, Velocity: vel}
		}
	case msg.GetNoteOff(&ch, &key, &vel):
		e = fusion.MidiEvent{Kind: fusion.NoteOff, Channel: ch, Note: key, Velocity: vel}
	case msg.GetProgramChange(&ch, &prog):
		e = fusion.MidiEvent{Kind: fusion.ProgramChange, Channel: ch, Program: prog}
	case msg.GetControlChange(&ch, &cc, &val):
		e = fusion.MidiEvent{Kind: fusion.ControlChange, Channel: ch, Controller: cc, Value: val}
	case msg.GetPitchBend(&ch, &relative, &absolute):
		e = fusion.MidiEvent{Kind: fusion.PitchBend, Channel: ch, Bend: relative}
	case msg.GetAfterTouch(&ch, &pressure):
		e = fusion.MidiEvent{Kind: fusion.ChannelPressure, Channel: ch, Pressure: pressure}
	default:
		return e, false
	}
	return e, true
}
