package oto

import (
	"encoding/binary"
	"math"

	"github.com/fusionaudio/fusion"
)

// sourceReader adapts a pull-based SampleSource to the io.Reader oto
// expects. Large reads are broken into chunks of at most chunkFrames, so
// the source sees a steady callback size no matter how the backend
// schedules its reads. The planar scratch buffers are allocated once.
type sourceReader struct {
	source      fusion.SampleSource
	chunkFrames int
	left, right []float32
}

func newSourceReader(source fusion.SampleSource, chunkFrames int) *sourceReader {
	if chunkFrames <= 0 {
		chunkFrames = 128
	}
	return &sourceReader{
		source:      source,
		chunkFrames: chunkFrames,
		left:        make([]float32, chunkFrames),
		right:       make([]float32, chunkFrames),
	}
}

// Read renders frames from the source and writes them as interleaved
// float32 little-endian stereo. One frame is 8 bytes.
func (r *sourceReader) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	written := 0
	for frames > 0 {
		n := r.chunkFrames
		if n > frames {
			n = frames
		}
		r.source.Process(r.left[:n], r.right[:n])
		putInterleavedLE(p[written:], r.left[:n], r.right[:n])
		written += n * 8
		frames -= n
	}
	return written, nil
}

// putInterleavedLE writes planar stereo as interleaved float32 LE bytes.
func putInterleavedLE(p []byte, left, right []float32) {
	for i := range left {
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(left[i]))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(right[i]))
	}
}
