package fusion

// TrackerDecoder is the contract of a module decoder (libopenmpt shaped).
// All methods are called from the audio thread during playback, so
// implementations must not block or allocate per call.
type TrackerDecoder interface {
	// ReadStereo fills buf with interleaved stereo samples and returns the
	// number of frames written (len(buf)/2 requested). A short read means
	// the song has ended.
	ReadStereo(buf []float32) int

	SetPositionSeconds(t float64)
	PositionSeconds() float64
}

// DurationReporter is implemented by decoders that know the total length of
// the loaded song.
type DurationReporter interface {
	DurationSeconds() float64
}
