package player

// FaultKind classifies a fault caught inside the audio callback, or during
// initialization.
type FaultKind int

const (
	FaultDecoder FaultKind = iota
	FaultSynth
	FaultScheduler
	FaultMessage
	FaultInit
	FaultLimit
)

func (k FaultKind) String() string {
	switch k {
	case FaultDecoder:
		return "DecoderFault"
	case FaultSynth:
		return "SynthFault"
	case FaultScheduler:
		return "SchedulerFault"
	case FaultMessage:
		return "MessageFault"
	case FaultInit:
		return "InitFault"
	case FaultLimit:
		return "LimitExceeded"
	}
	return "UnknownFault"
}

const (
	// maxErrors is the number of faults tolerated before playback is
	// force-stopped.
	maxErrors = 10

	// maxReportedErrors caps how many faults are reported per track, so a
	// fault on every callback does not flood the message channel.
	maxReportedErrors = 3
)
