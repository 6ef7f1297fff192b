package player

import (
	"sort"

	"github.com/fusionaudio/fusion"
)

// maxDispatchPerCall bounds the scheduler's worst-case work inside one
// audio callback. Any backlog is consumed on subsequent callbacks, so dense
// files are delayed by at most a few buffers, never dropped.
const maxDispatchPerCall = 100

// midiScheduler walks a frozen, time-sorted event slice and dispatches
// everything that falls inside the current buffer window. The cursor is the
// index of the earliest unprocessed event.
type midiScheduler struct {
	events []fusion.MidiEvent
	cursor int
}

// reset installs a new event slice and rewinds the cursor. The slice is
// owned by the scheduler from here on.
func (s *midiScheduler) reset(events []fusion.MidiEvent) {
	s.events = events
	s.cursor = 0
}

// run dispatches every event with time < windowEnd, in array order, capped
// at maxDispatchPerCall. Events at or before the window start that were not
// yet dispatched (e.g. right after a seek) are included, since their time
// is necessarily < windowEnd too. Returns the number of dispatches made.
func (s *midiScheduler) run(a *SynthAdapter, windowEnd float64) int {
	n := 0
	for s.cursor < len(s.events) && n < maxDispatchPerCall && s.events[s.cursor].Time < windowEnd {
		a.Dispatch(s.events[s.cursor])
		s.cursor++
		n++
	}
	return n
}

// seek moves the cursor to the given time: all sounding notes are silenced,
// the cursor lands on the first event strictly after t, and every
// state-bearing event (program, control, bend, pressure) before the cursor
// is replayed so the synthesizer's channel state matches the musical
// position. Note events are never replayed.
func (s *midiScheduler) seek(a *SynthAdapter, t float64) {
	a.AllNotesOff()
	s.cursor = sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Time > t
	})
	for _, e := range s.events[:s.cursor] {
		if e.StateBearing() {
			a.Dispatch(e)
		}
	}
}

// done reports whether every event has been dispatched.
func (s *midiScheduler) done() bool {
	return s.cursor >= len(s.events)
}

// next returns the time of the earliest unprocessed event.
func (s *midiScheduler) next() (float64, bool) {
	if s.cursor >= len(s.events) {
		return 0, false
	}
	return s.events[s.cursor].Time, true
}
