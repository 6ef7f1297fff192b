package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fusionaudio/fusion"
	"github.com/fusionaudio/fusion/meltysynth"
	"github.com/fusionaudio/fusion/midifile"
	"github.com/fusionaudio/fusion/oto"
	"github.com/fusionaudio/fusion/player"
	"github.com/fusionaudio/fusion/version"
)

var trackerExtensions = []string{".mod", ".xm", ".it", ".s3m", ".mptm"}
var midiExtensions = []string{".mid", ".midi", ".rmi"}

func main() {
	configPath := flag.String("c", "", "Path to a yaml config file.")
	soundFontPath := flag.String("sf", "", "Path to an SF2 soundfont, required for MIDI files. Overrides the config.")
	volume := flag.Float64("vol", 1.0, "Playback volume, 0 to 1.")
	play := flag.Bool("p", false, "Play the input files (default behaviour when no other output is defined).")
	wavOut := flag.Bool("w", false, "Render the input files to .wav instead of playing them.")
	rawOut := flag.Bool("r", false, "Render the input files to headerless .raw sample data.")
	pcm := flag.Bool("pcm", false, "Convert audio to 16-bit signed PCM when outputting files.")
	directory := flag.String("o", "", "Directory where to place output files. Defaults next to the input file.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut {
		*play = true
	}
	cfg, err := player.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *soundFontPath != "" {
		cfg.SoundFont = *soundFontPath
	}

	retval := 0
	for _, param := range flag.Args() {
		for _, file := range expand(param) {
			s := session{
				cfg:     cfg,
				volume:  float32(*volume),
				play:    *play,
				wavOut:  *wavOut,
				rawOut:  *rawOut,
				pcm:     *pcm,
				destDir: *directory,
			}
			if err := s.process(file); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

// expand turns a directory argument into the playable files inside it;
// plain files pass through untouched.
func expand(param string) []string {
	info, err := os.Stat(param)
	if err != nil || !info.IsDir() {
		return []string{param}
	}
	var files []string
	entries, err := os.ReadDir(param)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read directory %v: %v\n", param, err)
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if isMidiFile(name) || isTrackerFile(name) {
			files = append(files, filepath.Join(param, name))
		}
	}
	return files
}

func isMidiFile(name string) bool {
	return hasExtension(name, midiExtensions)
}

func isTrackerFile(name string) bool {
	return hasExtension(name, trackerExtensions)
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

type session struct {
	cfg     player.Config
	volume  float32
	play    bool
	wavOut  bool
	rawOut  bool
	pcm     bool
	destDir string

	processor *player.Processor
	duration  float64
}

func (s *session) process(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}
	broker := player.NewBroker()
	s.processor = player.NewProcessor(broker)
	ctrl := player.NewController(broker)
	ctrl.Init(s.cfg.SampleRate)
	ctrl.SetVolume(s.volume)

	switch {
	case isMidiFile(filename):
		if err := s.setupMidi(ctrl, data); err != nil {
			return err
		}
	default:
		if err := s.setupTracker(ctrl, data); err != nil {
			return err
		}
	}

	if s.wavOut || s.rawOut {
		return s.render(broker, ctrl, filename)
	}
	return s.playFile(broker, ctrl, filename)
}

func (s *session) setupMidi(ctrl *player.Controller, data []byte) error {
	if s.cfg.SoundFont == "" {
		return errors.New("MIDI playback needs a soundfont; pass -sf or set soundFont in the config")
	}
	sf, err := os.ReadFile(s.cfg.SoundFont)
	if err != nil {
		return fmt.Errorf("could not read soundfont %v: %w", s.cfg.SoundFont, err)
	}
	synth, err := meltysynth.New(sf, s.cfg.SampleRate)
	if err != nil {
		return err
	}
	file, err := midifile.Parse(data)
	if err != nil {
		return err
	}
	ctrl.InitSynth(synth, nil)
	ctrl.SetMidiEngine(file.Events, file.Duration)
	s.duration = file.Duration
	return nil
}

func (s *session) setupTracker(ctrl *player.Controller, data []byte) error {
	dec, err := loadModule(data, s.cfg.SampleRate)
	if err != nil {
		return err
	}
	ctrl.SetTrackerEngine(dec, 0)
	if rep, ok := dec.(fusion.DurationReporter); ok {
		s.duration = rep.DurationSeconds()
	}
	return nil
}

// render drives the processor directly, without an audio device, and
// writes the result to a .wav or .raw file.
func (s *session) render(broker *player.Broker, ctrl *player.Controller, filename string) error {
	ctrl.Play()
	left := make([]float32, s.cfg.BufferFrames)
	right := make([]float32, s.cfg.BufferFrames)
	var out []float32
	maxSamples := renderCap(s.duration, s.cfg.SampleRate)
	for ended := false; !ended && len(out) < maxSamples; {
		s.processor.Process(left, right)
		for i := range left {
			out = append(out, left[i], right[i])
		}
		ended = drainForEnd(broker)
	}
	if s.wavOut {
		wav, err := fusion.Wav(out, s.cfg.SampleRate, s.pcm)
		if err != nil {
			return err
		}
		if err := s.output(filename, ".wav", wav); err != nil {
			return err
		}
	}
	if s.rawOut {
		raw, err := fusion.Raw(out, s.pcm)
		if err != nil {
			return err
		}
		if err := s.output(filename, ".raw", raw); err != nil {
			return err
		}
	}
	return nil
}

func renderCap(duration float64, sampleRate int) int {
	const slack = 10 // seconds past the advisory duration
	if duration <= 0 {
		duration = 30 * 60
	}
	return int((duration + slack) * float64(sampleRate) * 2)
}

// drainForEnd consumes pending processor events and reports whether the
// track has ended or playback was force-stopped.
func drainForEnd(broker *player.Broker) bool {
	for {
		select {
		case msg := <-broker.ToController:
			switch d := msg.Data.(type) {
			case player.TrackEndedMsg:
				return true
			case player.ErrorMsg:
				fmt.Fprintf(os.Stderr, "%v: %v\n", d.Kind, d.Message)
				if d.Kind == player.FaultLimit {
					return true
				}
			}
		default:
			return false
		}
	}
}

func (s *session) playFile(broker *player.Broker, ctrl *player.Controller, filename string) error {
	audio, err := oto.NewContext(s.cfg.SampleRate, s.cfg.BufferFrames)
	if err != nil {
		return fmt.Errorf("could not acquire audio context: %w", err)
	}
	defer audio.Close()

	h := &cliHandler{name: filepath.Base(filename), done: make(chan struct{})}
	go ctrl.Run(h)
	closer, err := audio.Play(s.processor)
	if err != nil {
		return err
	}
	ctrl.Play()
	<-h.done
	fmt.Fprintln(os.Stderr)
	closer.Close()
	ctrl.Close()
	if _, ok := player.TimeoutReceive(broker.FinishedController, 3*time.Second); ok {
		// channel closed normally
	}
	return h.err
}

func (s *session) output(filename, extension string, contents []byte) error {
	dir := s.destDir
	if dir == "" {
		dir = filepath.Dir(filename)
	} else if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %w", dir, err)
	}
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	return nil
}

// cliHandler prints progress to stderr and signals when the track is over.
type cliHandler struct {
	name string
	done chan struct{}
	err  error
}

func (h *cliHandler) OnSynthReady(ok bool, err error) {
	if !ok {
		h.err = err
		h.close()
	}
}

func (h *cliHandler) OnPlayState(playing bool, time float64) {}

func (h *cliHandler) OnTimeUpdate(time, duration float64, levels player.Levels) {
	if duration > 0 {
		fmt.Fprintf(os.Stderr, "\r%s  %s / %s", h.name, formatTime(time), formatTime(duration))
	} else {
		fmt.Fprintf(os.Stderr, "\r%s  %s", h.name, formatTime(time))
	}
}

func (h *cliHandler) OnTrackEnded(time float64) {
	h.close()
}

func (h *cliHandler) OnError(e player.ErrorMsg) {
	fmt.Fprintf(os.Stderr, "\n%v: %v\n", e.Kind, e.Message)
	if e.Kind == player.FaultLimit {
		h.err = errors.New(e.Message)
		h.close()
	}
}

func (h *cliHandler) close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func formatTime(seconds float64) string {
	t := int(seconds)
	return fmt.Sprintf("%d:%02d", t/60, t%60)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Fusion command line player for tracker modules and MIDI files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
