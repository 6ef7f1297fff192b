// Package meltysynth adapts the pure-Go go-meltysynth soundfont
// synthesizer to the player's raw-bytes synthesizer dialect.
package meltysynth

import (
	"bytes"
	"fmt"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// Synth renders MIDI through a soundfont. It implements the raw-bytes
// dialect (Send) plus planar rendering (Render), which is all the player's
// adapter needs: all-notes-off reaches it as CC123/CC120 through Send.
type Synth struct {
	synth      *meltysynth.Synthesizer
	sampleRate int
}

// New parses the soundfont bytes and constructs a synthesizer at the given
// sample rate. Parsing a big SF2 takes a while; call this off the audio
// thread.
func New(soundFont []byte, sampleRate int) (*Synth, error) {
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(soundFont))
	if err != nil {
		return nil, fmt.Errorf("parsing soundfont failed: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("creating synthesizer failed: %w", err)
	}
	return &Synth{synth: synth, sampleRate: sampleRate}, nil
}

func (s *Synth) SampleRate() int { return s.sampleRate }

// Send accepts standard MIDI status bytes. The whenHint is ignored;
// go-meltysynth applies messages at the next Render call, which matches
// the player's one-callback timing resolution.
func (s *Synth) Send(msg []byte, _ uint32) {
	if len(msg) == 0 {
		return
	}
	status := msg[0]
	channel := int32(status & 0x0F)
	command := int32(status & 0xF0)
	var data1, data2 int32
	if len(msg) > 1 {
		data1 = int32(msg[1])
	}
	if len(msg) > 2 {
		data2 = int32(msg[2])
	}
	s.synth.ProcessMidiMessage(channel, command, data1, data2)
}

// Render fills the planar stereo buffers.
func (s *Synth) Render(left, right []float32) {
	s.synth.Render(left, right)
}

// StopMIDI cuts every voice immediately.
func (s *Synth) StopMIDI() {
	s.synth.NoteOffAll(true)
}
