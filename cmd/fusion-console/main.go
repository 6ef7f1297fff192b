package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fusionaudio/fusion"
	"github.com/fusionaudio/fusion/meltysynth"
	"github.com/fusionaudio/fusion/midifile"
	"github.com/fusionaudio/fusion/oto"
	"github.com/fusionaudio/fusion/player"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("#444")).Foreground(lipgloss.Color("#fff"))
	playingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f5"))
	meterStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#af5"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f55"))
)

func main() {
	configPath := flag.String("c", "", "Path to a yaml config file.")
	musicDir := flag.String("d", "", "Directory to browse for music files. Overrides the config.")
	soundFontPath := flag.String("sf", "", "Path to an SF2 soundfont for MIDI playback. Overrides the config.")
	flag.Parse()

	cfg, err := player.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *musicDir != "" {
		cfg.MusicDir = *musicDir
	}
	if *soundFontPath != "" {
		cfg.SoundFont = *soundFontPath
	}
	if cfg.MusicDir == "" {
		cfg.MusicDir = "."
	}

	broker := player.NewBroker()
	processor := player.NewProcessor(broker)
	ctrl := player.NewController(broker)
	ctrl.Init(cfg.SampleRate)
	if cfg.Volume != nil {
		ctrl.SetVolume(*cfg.Volume)
	}

	audio, err := oto.NewContext(cfg.SampleRate, cfg.BufferFrames)
	if err != nil {
		log.Fatal(err)
	}
	closer, err := audio.Play(processor)
	if err != nil {
		log.Fatal(err)
	}

	m := newModel(cfg, broker, ctrl)
	if cfg.SoundFont != "" {
		path := cfg.SoundFont
		rate := cfg.SampleRate
		ctrl.InitSynthAsync(func() (any, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return meltysynth.New(data, rate)
		})
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
	closer.Close()
	audio.Close()
}

type procMsg player.MsgToController

// waitForEvent forwards one processor event into the bubbletea loop; it is
// re-armed after every received message.
func waitForEvent(ch <-chan player.MsgToController) tea.Cmd {
	return func() tea.Msg {
		return procMsg(<-ch)
	}
}

type model struct {
	cfg    player.Config
	broker *player.Broker
	ctrl   *player.Controller

	files   []string
	cursor  int
	current int // index of the loaded file, -1 if none

	synthReady bool
	playing    bool
	time       float64
	duration   float64
	levels     player.Levels
	volume     float32
	status     string
	failure    string
}

func newModel(cfg player.Config, broker *player.Broker, ctrl *player.Controller) *model {
	m := &model{
		cfg:     cfg,
		broker:  broker,
		ctrl:    ctrl,
		current: -1,
		volume:  1,
	}
	if cfg.Volume != nil {
		m.volume = *cfg.Volume
	}
	m.scanFiles()
	return m
}

func (m *model) scanFiles() {
	entries, err := os.ReadDir(m.cfg.MusicDir)
	if err != nil {
		m.failure = err.Error()
		return
	}
	m.files = m.files[:0]
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isPlayable(e.Name()) {
			m.files = append(m.files, e.Name())
		}
	}
	sort.Strings(m.files)
}

func isPlayable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mod", ".xm", ".it", ".s3m", ".mptm", ".mid", ".midi", ".rmi":
		return true
	}
	return false
}

func isMidi(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mid", ".midi", ".rmi":
		return true
	}
	return false
}

func (m *model) Init() tea.Cmd {
	return waitForEvent(m.broker.ToController)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case procMsg:
		m.handleEvent(player.MsgToController(msg))
		return m, waitForEvent(m.broker.ToController)
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.ctrl.Stop()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.files)-1 {
			m.cursor++
		}
	case "enter":
		m.loadSelected()
	case " ":
		if m.playing {
			m.ctrl.Pause()
		} else if m.current >= 0 {
			m.ctrl.Play()
		}
	case "s":
		m.ctrl.Stop()
		m.current = -1
		m.time = 0
	case "left", "h":
		m.ctrl.Seek(m.time - 5)
	case "right", "l":
		m.ctrl.Seek(m.time + 5)
	case "+", "=":
		m.setVolume(m.volume + 0.1)
	case "-":
		m.setVolume(m.volume - 0.1)
	case "r":
		m.scanFiles()
	}
	return m, nil
}

func (m *model) setVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	m.volume = v
	m.ctrl.SetVolume(v)
}

func (m *model) loadSelected() {
	if m.cursor >= len(m.files) {
		return
	}
	name := m.files[m.cursor]
	path := filepath.Join(m.cfg.MusicDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		m.failure = err.Error()
		return
	}
	m.failure = ""
	if isMidi(name) {
		if !m.synthReady {
			m.failure = "no soundfont loaded; start with -sf or set soundFont in the config"
			return
		}
		file, err := midifile.Parse(data)
		if err != nil {
			m.failure = err.Error()
			return
		}
		m.ctrl.SetMidiEngine(file.Events, file.Duration)
		m.duration = file.Duration
	} else {
		dec, err := loadModule(data, m.cfg.SampleRate)
		if err != nil {
			m.failure = err.Error()
			return
		}
		m.duration = 0
		if rep, ok := dec.(fusion.DurationReporter); ok {
			m.duration = rep.DurationSeconds()
		}
		m.ctrl.SetTrackerEngine(dec, 0)
	}
	m.current = m.cursor
	m.time = 0
	m.ctrl.Play()
}

func (m *model) handleEvent(msg player.MsgToController) {
	if msg.HasTime {
		m.time = msg.Time
		m.duration = msg.Duration
		m.levels = msg.Levels
	}
	switch d := msg.Data.(type) {
	case player.SynthReadyMsg:
		m.synthReady = d.OK
		if d.OK {
			m.status = "soundfont loaded"
		} else {
			m.failure = fmt.Sprintf("soundfont: %v", d.Err)
		}
	case player.PlayStateMsg:
		m.playing = d.Playing
	case player.TrackEndedMsg:
		m.playing = false
		m.status = "track ended"
	case player.ErrorMsg:
		m.failure = fmt.Sprintf("%v: %v", d.Kind, d.Message)
	}
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fusion") + dimStyle.Render("  "+m.cfg.MusicDir) + "\n\n")
	if len(m.files) == 0 {
		b.WriteString(dimStyle.Render("  no playable files") + "\n")
	}
	for i, f := range m.files {
		line := "  " + f
		switch {
		case i == m.cursor:
			line = selectedStyle.Render("> " + f)
		case i == m.current:
			line = playingStyle.Render("  " + f)
		default:
			line = dimStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.transportLine() + "\n")
	b.WriteString(m.meterLine() + "\n")
	if m.failure != "" {
		b.WriteString(errorStyle.Render(m.failure) + "\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(dimStyle.Render("enter play • space pause • s stop • ←/→ seek • +/- volume • r rescan • q quit") + "\n")
	return b.String()
}

const progressWidth = 40

func (m *model) transportLine() string {
	state := "⏹"
	if m.playing {
		state = "▶"
	}
	bar := strings.Repeat("─", progressWidth)
	if m.duration > 0 {
		filled := int(m.time / m.duration * progressWidth)
		if filled > progressWidth {
			filled = progressWidth
		}
		bar = strings.Repeat("━", filled) + strings.Repeat("─", progressWidth-filled)
	}
	return fmt.Sprintf("%s %s %s / %s  vol %d%%",
		state, bar, formatTime(m.time), formatTime(m.duration), int(m.volume*100))
}

const meterWidth = 20

func (m *model) meterLine() string {
	l := levelBar(m.levels.Peak[0])
	r := levelBar(m.levels.Peak[1])
	return meterStyle.Render(fmt.Sprintf("L %-*s R %-*s", meterWidth, l, meterWidth, r))
}

func levelBar(peak float32) string {
	n := int(peak * meterWidth)
	if n > meterWidth {
		n = meterWidth
	}
	return strings.Repeat("█", n)
}

func formatTime(seconds float64) string {
	t := int(seconds)
	return fmt.Sprintf("%d:%02d", t/60, t%60)
}
