package fusion

import "io"

// SampleSource produces audio. Process fills the left and right buffers
// completely; both slices always have the same length. It is called on the
// audio thread and must not block, allocate on the steady path, or do I/O.
type SampleSource interface {
	Process(left, right []float32)
}

// AudioContext is a connection to an audio backend. Play starts pulling
// samples from the source until the returned closer is closed.
type AudioContext interface {
	Play(source SampleSource) (io.Closer, error)
	Close() error
}
