package player

import (
	"fmt"
	"time"

	"github.com/fusionaudio/fusion"
	"github.com/viterin/vek/vek32"
)

// progressInterval throttles TimeUpdate events to the controller.
const progressInterval = 100 * time.Millisecond

// Processor is the real-time audio processor, run on the audio thread. It
// is controlled by messages from the controller via the broker, and sends
// events back the same way; every send from the processor is non-blocking,
// so the audio thread can never end up in a deadlock. The processor is the
// sole mutator of the transport state and the MIDI cursor.
type Processor struct {
	broker *Broker

	sampleRate int
	playing    bool
	engine     fusion.EngineKind
	position   float64
	duration   float64
	volume     float32
	errorCount int

	tracker trackerSource
	sched   midiScheduler
	synth   *SynthAdapter

	lastProgress time.Time
	now          func() time.Time // monotonic host clock, swappable in tests
}

func NewProcessor(broker *Broker) *Processor {
	return &Processor{
		broker: broker,
		volume: 1,
		synth:  BindSynth(nil),
		now:    time.Now,
	}
}

// Process renders one buffer of audio into the planar stereo output. Both
// channels are zero-filled unconditionally first, so a fault or an idle
// transport yields silence, never garbage. Pending commands are applied
// before any audio is rendered for this callback.
func (p *Processor) Process(left, right []float32) {
	p.processMessages()
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	left, right = left[:n], right[:n]
	clear(left)
	clear(right)
	if p.playing && p.engine != fusion.EngineNone && p.sampleRate > 0 && n > 0 {
		switch p.engine {
		case fusion.EngineTracker:
			p.processTracker(left, right)
		case fusion.EngineMidi:
			p.processMidi(left, right)
		}
		if p.volume != 1 {
			vek32.MulNumber_Into(left, left, p.volume)
			vek32.MulNumber_Into(right, right, p.volume)
		}
	}
	p.emitProgress(left, right)
}

func (p *Processor) processTracker(left, right []float32) {
	frames := len(left)
	var (
		buf []float32
		eos bool
		pos float64
	)
	ok := p.guard(FaultDecoder, func() {
		buf, eos = p.tracker.read(frames)
		pos = p.tracker.position()
	})
	if !ok {
		// fault: leave the rest of the buffer silent, accumulate time
		p.position += float64(frames) / float64(p.sampleRate)
		return
	}
	for i := 0; i < len(buf)/2; i++ {
		left[i] = buf[2*i]
		right[i] = buf[2*i+1]
	}
	p.position = pos
	if eos {
		p.endTrack()
	}
}

func (p *Processor) processMidi(left, right []float32) {
	windowEnd := p.position + float64(len(left))/float64(p.sampleRate)
	p.guard(FaultScheduler, func() {
		p.sched.run(p.synth, windowEnd)
	})
	if p.synth.CanRender() {
		if !p.guard(FaultSynth, func() { p.synth.Render(left, right) }) {
			clear(left)
			clear(right)
		}
	}
	p.position = windowEnd
	// the song is over once every event is dispatched, nothing is due
	// within the next second and the position has caught up with the
	// advisory duration (with one second of slack)
	if p.sched.done() && p.noEventWithin(windowEnd+1) && p.position >= p.duration-1 {
		p.endTrack()
	}
}

func (p *Processor) noEventWithin(t float64) bool {
	next, ok := p.sched.next()
	return !ok || next > t
}

func (p *Processor) processMessages() {
loop:
	for {
		select {
		case msg := <-p.broker.ToProcessor:
			switch m := msg.(type) {
			case InitMsg:
				p.sampleRate = m.SampleRate
			case InitSynthMsg:
				p.initSynth(m)
			case SetEngineMsg:
				p.setEngine(m)
			case PlayMsg:
				if p.engine == fusion.EngineNone {
					break
				}
				p.playing = true
				p.sendData(PlayStateMsg{Playing: true, Time: p.position})
			case PauseMsg:
				if !p.playing {
					break
				}
				p.playing = false
				if p.engine == fusion.EngineMidi {
					p.guard(FaultSynth, p.synth.AllNotesOff)
				}
				p.sendData(PlayStateMsg{Playing: false, Time: p.position})
			case StopMsg:
				p.stop()
				p.sendData(PlayStateMsg{Playing: false, Time: 0})
			case SeekMsg:
				p.seek(m.Seconds)
			case SetVolumeMsg:
				p.volume = clampVolume(m.Volume)
			default:
				// unknown commands are ignored, never fatal; the audio
				// thread cannot log, and they do not count as faults
			}
		default:
			break loop
		}
	}
}

func (p *Processor) initSynth(m InitSynthMsg) {
	var err error
	p.guardInit(func() {
		if m.SoundFont != nil {
			loader, ok := m.Synth.(fusion.SoundFontLoader)
			if !ok {
				err = fmt.Errorf("synthesizer cannot load soundfonts")
				return
			}
			err = loader.LoadSoundFont(m.SoundFont)
		}
	}, &err)
	if err != nil {
		// transport stays idle; the controller decides what to do next
		p.sendData(SynthReadyMsg{OK: false, Err: err})
		return
	}
	p.synth = BindSynth(m.Synth)
	p.sendData(SynthReadyMsg{OK: true})
}

func (p *Processor) setEngine(m SetEngineMsg) {
	if p.engine == fusion.EngineMidi {
		p.guard(FaultSynth, p.synth.AllNotesOff)
	}
	p.engine = m.Kind
	p.tracker.set(m.Tracker)
	p.sched.reset(m.Events)
	p.duration = m.Duration
	if m.Kind == fusion.EngineTracker && m.Duration == 0 {
		if rep, ok := m.Tracker.(fusion.DurationReporter); ok {
			p.duration = rep.DurationSeconds()
		}
	}
	p.position = 0
	p.playing = false
	p.errorCount = 0
}

// stop is the universal cancellation: it silences notes, drops the engine
// handles and resets cursor, position and the error counter. Idempotent.
func (p *Processor) stop() {
	if p.engine == fusion.EngineMidi {
		p.guard(FaultSynth, p.synth.AllNotesOff)
	}
	p.playing = false
	p.position = 0
	p.engine = fusion.EngineNone
	p.tracker.set(nil)
	p.sched.reset(nil)
	p.errorCount = 0
}

func (p *Processor) seek(seconds float64) {
	t := seconds
	if t < 0 {
		t = 0
	}
	switch p.engine {
	case fusion.EngineTracker:
		p.guard(FaultDecoder, func() { p.tracker.seek(t) })
		p.position = t
	case fusion.EngineMidi:
		p.guard(FaultScheduler, func() { p.sched.seek(p.synth, t) })
		p.position = t
	}
}

func (p *Processor) endTrack() {
	p.playing = false
	// position is left where it is until a stop or a new engine
	p.send(MsgToController{HasTime: true, Time: p.position, Duration: p.duration, Data: TrackEndedMsg{}})
}

// guard runs op under a fault boundary: a panic is caught, counted and
// reported instead of taking down the audio thread. Returns false when op
// faulted.
func (p *Processor) guard(kind FaultKind, op func()) (ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			ok = false
			p.fault(kind, fmt.Errorf("%v", r))
		}
	}()
	op()
	return ok
}

// guardInit is like guard but routes panics into *err instead of the fault
// counter; initialization failures surface as SynthReadyMsg, not as
// playback faults.
func (p *Processor) guardInit(op func(), err *error) {
	defer func() {
		if r := recover(); r != nil {
			*err = fmt.Errorf("synthesizer init panic: %v", r)
		}
	}()
	op()
}

func (p *Processor) fault(kind FaultKind, err error) {
	p.errorCount++
	count := p.errorCount
	if count <= maxReportedErrors {
		p.sendData(ErrorMsg{Kind: kind, Message: err.Error(), Count: count, Time: p.position, Engine: p.engine})
	}
	if count > maxErrors {
		engine := p.engine
		at := p.position
		p.stop()
		p.sendData(ErrorMsg{
			Kind:    FaultLimit,
			Message: "Too many processing errors, playback stopped",
			Count:   count,
			Time:    at,
			Engine:  engine,
		})
	}
}

func (p *Processor) emitProgress(left, right []float32) {
	if p.engine == fusion.EngineNone {
		return
	}
	now := p.now()
	if now.Sub(p.lastProgress) < progressInterval {
		return
	}
	p.lastProgress = now
	p.send(MsgToController{
		HasTime:  true,
		Time:     p.position,
		Duration: p.duration,
		Levels:   p.levels(left, right),
	})
}

func (p *Processor) levels(left, right []float32) Levels {
	var l Levels
	if len(left) == 0 || len(right) == 0 {
		return l
	}
	scratch := p.broker.GetBuffer()
	defer p.broker.PutBuffer(scratch)
	if cap(*scratch) < len(left) {
		*scratch = make([]float32, len(left))
	}
	s := (*scratch)[:len(left)]
	vek32.Abs_Into(s, left)
	l.Peak[0] = vek32.Max(s)
	l.Average[0] = vek32.Mean(s)
	s = (*scratch)[:len(right)]
	vek32.Abs_Into(s, right)
	l.Peak[1] = vek32.Max(s)
	l.Average[1] = vek32.Mean(s)
	return l
}

// all sends from the processor are non-blocking; if the controller cannot
// keep up, messages are dropped rather than stalling the audio thread
func (p *Processor) send(msg MsgToController) {
	TrySend(p.broker.ToController, msg)
}

func (p *Processor) sendData(data any) {
	p.send(MsgToController{Time: p.position, Duration: p.duration, Data: data})
}

func clampVolume(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
