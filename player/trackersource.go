package player

import (
	"github.com/fusionaudio/fusion"
)

// trackerSource pulls interleaved stereo from a module decoder into a
// reused scratch buffer. The scratch grows exactly once if a callback asks
// for more frames than ever before (cold path), and is never shrunk.
type trackerSource struct {
	dec     fusion.TrackerDecoder
	scratch []float32
}

func (t *trackerSource) set(dec fusion.TrackerDecoder) {
	t.dec = dec
}

// read requests exactly frames stereo frames from the decoder. eos is true
// when the decoder returned fewer frames than requested, which marks the
// end of the song.
func (t *trackerSource) read(frames int) (buf []float32, eos bool) {
	need := frames * 2
	if cap(t.scratch) < need {
		t.scratch = make([]float32, need)
	}
	t.scratch = t.scratch[:need]
	got := t.dec.ReadStereo(t.scratch)
	return t.scratch[:got*2], got < frames
}

func (t *trackerSource) seek(seconds float64) {
	t.dec.SetPositionSeconds(seconds)
}

// position returns the decoder's own playback position.
func (t *trackerSource) position() float64 {
	return t.dec.PositionSeconds()
}
