// Package ui is the terminal front end of an absensi session: a live
// preview of the camera, a name field to register faces and a status line.
package ui

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/abihf/absensi"
	"github.com/abihf/absensi/capture"
	"github.com/abihf/absensi/gallery"
	"github.com/abihf/absensi/protocol"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	liveStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	pausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// lines taken by everything but the preview
const chromeHeight = 6

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Session is the part of *absensi.Session the UI drives.
type Session interface {
	Start() bool
	Pause() bool
	Ticking() bool
	State() absensi.State
	Identities() []string
	Tick() *absensi.TickResult
	Register(name string) error
	Close() error
}

type tickMsg struct {
	gen int
}

// ControlMsg carries a control socket request into the event loop. The
// response is sent on Reply, which must be buffered.
type ControlMsg struct {
	Req   *protocol.Req
	Reply chan<- *protocol.Res
}

type Option struct {
	Session  Session
	Interval time.Duration
	// OnLive is called once, when attendance first starts.
	OnLive func()
}

type Model struct {
	session  Session
	interval time.Duration
	onLive   func()

	input     textinput.Model
	frame     *image.RGBA
	faces     []absensi.Recognition
	status    string
	statusErr bool
	width     int
	height    int

	// gen identifies the current tick chain; ticks from an older chain are
	// dropped so there is never more than one in flight
	gen      int
	ticks    uint64
	quitting bool
}

func New(opt *Option) *Model {
	input := textinput.New()
	input.Placeholder = "name to register"
	input.Prompt = "Name: "
	input.PromptStyle = focusedStyle
	input.CharLimit = 64
	input.Focus()

	interval := opt.Interval
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}

	return &Model{
		session:  opt.Session,
		interval: interval,
		onLive:   opt.OnLive,
		input:    input,
		status:   "Opening camera",
		width:    defaultWidth,
		height:   defaultHeight,
	}
}

// Init starts taking attendance right away; the camera is already open.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.start())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			if err := m.session.Close(); err != nil {
				m.setError(fmt.Sprintf("Closing camera failed: %v", err))
			}
			return m, tea.Quit

		case "ctrl+s":
			return m, m.start()

		case "ctrl+p":
			m.pause()
			return m, nil

		case "enter":
			if err := m.register(m.input.Value()); err == nil {
				m.input.Reset()
			}
			return m, nil
		}

	case tickMsg:
		if msg.gen != m.gen || !m.session.Ticking() {
			return m, nil
		}
		m.tick()
		return m, m.scheduleTick()

	case ControlMsg:
		res, cmd := m.control(msg.Req)
		select {
		case msg.Reply <- res:
		default:
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) start() tea.Cmd {
	if !m.session.Start() {
		return nil
	}
	m.setStatus("Attendance started")
	if m.onLive != nil {
		m.onLive()
		m.onLive = nil
	}
	m.gen++
	return m.scheduleTick()
}

func (m *Model) pause() {
	if m.session.Pause() {
		m.setStatus("Attendance paused")
	}
}

func (m *Model) scheduleTick() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func (m *Model) tick() {
	res := m.session.Tick()
	if res == nil {
		return
	}
	m.ticks = res.Seq
	if res.Frame != nil {
		m.frame = res.Frame
		m.faces = res.Faces
	}
	if len(res.Marked) > 0 {
		m.setStatus("Attendance recorded: " + strings.Join(res.Marked, ", "))
	}

	var perr *absensi.ProcessingError
	if errors.As(res.Err, &perr) {
		m.setError("Error during frame processing: " + perr.Err.Error())
	}
}

func (m *Model) register(name string) error {
	err := m.session.Register(name)
	if err != nil {
		m.setError(registerErrorText(err))
		return err
	}
	m.setStatus(fmt.Sprintf("Face registered for %s", strings.TrimSpace(name)))
	return nil
}

func registerErrorText(err error) string {
	switch {
	case errors.Is(err, absensi.ErrEmptyName):
		return "Please enter a name."
	case errors.Is(err, absensi.ErrNoFace):
		return "No face detected. Please try again."
	case errors.Is(err, gallery.ErrInvalidName):
		return "Name can not be used: " + err.Error()
	case errors.Is(err, capture.ErrNoFrame):
		return "Can not capture image from camera."
	}
	return "Registration failed: " + err.Error()
}

func (m *Model) control(req *protocol.Req) (*protocol.Res, tea.Cmd) {
	var cmd tea.Cmd
	switch req.Action {
	case protocol.ActionStart:
		cmd = m.start()
	case protocol.ActionPause:
		m.pause()
	case protocol.ActionStatus:
	case protocol.ActionRegister:
		if err := m.register(req.Name()); err != nil {
			return &protocol.Res{Status: protocol.StatusError, Error: err.Error()}, nil
		}
	default:
		return &protocol.Res{Status: protocol.StatusError, Error: fmt.Sprintf("unknown action %q", req.Action)}, nil
	}
	return &protocol.Res{Status: protocol.StatusSuccess, Extras: m.statusExtras()}, cmd
}

func (m *Model) statusExtras() map[string]string {
	return map[string]string{
		"state":      m.session.State().String(),
		"ticking":    strconv.FormatBool(m.session.Ticking()),
		"identities": strconv.Itoa(len(m.session.Identities())),
		"ticks":      strconv.FormatUint(m.ticks, 10),
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(s string) {
	m.status, m.statusErr = s, true
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Absensi"))
	sb.WriteString("  ")
	switch {
	case m.session.Ticking():
		sb.WriteString(liveStyle.Render("● LIVE"))
	case m.session.State() == absensi.StateLive:
		sb.WriteString(pausedStyle.Render("❚❚ PAUSED"))
	default:
		sb.WriteString(helpStyle.Render("○ IDLE"))
	}
	sb.WriteString(helpStyle.Render(fmt.Sprintf("  %d registered", len(m.session.Identities()))))
	sb.WriteString("\n")

	rows := m.height - chromeHeight
	if m.frame != nil && rows > 0 {
		sb.WriteString(renderFrame(m.frame, m.width, rows))
	} else {
		sb.WriteString(helpStyle.Render("no picture yet"))
		sb.WriteString("\n")
	}

	sb.WriteString(facesLine(m.faces))
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	if m.statusErr {
		sb.WriteString(errorStyle.Render(m.status))
	} else {
		sb.WriteString(successStyle.Render(m.status))
	}
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("enter register • ctrl+s start • ctrl+p pause • esc quit"))

	return sb.String()
}

func facesLine(faces []absensi.Recognition) string {
	if len(faces) == 0 {
		return helpStyle.Render("no faces")
	}
	names := make([]string, len(faces))
	for i, f := range faces {
		names[i] = f.Name
	}
	return fmt.Sprintf("%d face(s): %s", len(faces), strings.Join(names, ", "))
}
