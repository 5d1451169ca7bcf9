package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxplaces/hotkey"
	"voxplaces/place"
	"voxplaces/session"
)

// TUI message types
type SessionMsg struct{ Snap session.Snapshot }
type AudioLevelMsg struct{ Level float64 }
type NoVoiceMsg struct{ On bool }
type DeviceLineMsg struct{ Text string } // Microphone device name
type LogMsg struct{ Text string }        // transient status note
type actionMsg struct{ err error }
type tickMsg time.Time

// controls is the slice of the session the UI drives.
type controls interface {
	Toggle(ctx context.Context) error
	Reset() error
}

type tuiModel struct {
	ctrl    controls
	openURL func(string) error
	copy    func(string) error

	snap       session.Snapshot
	recStart   time.Time
	recSeconds float64
	audioLevel float64
	noVoice    bool

	frame         int
	spinner       spinner.Model
	cursor        int
	width, height int
	deviceLine    string
	note          string
	hotkeyOn      bool
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func newTUIModel(ctrl controls, hotkeyOn bool) tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	return tuiModel{
		ctrl:     ctrl,
		openURL:  openURL,
		copy:     copyLink,
		spinner:  s,
		hotkeyOn: hotkeyOn,
	}
}

func NewTUIProgram(ctrl controls, hotkeyOn bool) *tea.Program {
	return tea.NewProgram(newTUIModel(ctrl, hotkeyOn), tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func logToTUI(format string, args ...any) {
	tuiSend(LogMsg{Text: fmt.Sprintf(format, args...)})
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tuiTick(), m.spinner.Tick)
}

// The session is only ever called from commands so its observer callback
// can never re-enter the program loop.
func (m tuiModel) toggleCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return actionMsg{err: ctrl.Toggle(context.Background())}
	}
}

func (m tuiModel) resetCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return actionMsg{err: ctrl.Reset()}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		if m.snap.Phase == session.Recording {
			m.recSeconds = time.Since(m.recStart).Seconds()
		}
		return m, tuiTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SessionMsg:
		prev := m.snap.Phase
		m.snap = msg.Snap
		if m.snap.Phase == session.Recording && prev != session.Recording {
			m.recStart = time.Now()
			m.recSeconds = 0
			m.audioLevel = 0
			m.noVoice = false
		}
		if m.snap.Phase != session.ResultsReady {
			m.cursor = 0
		} else if m.cursor >= len(m.snap.Results) {
			m.cursor = max(0, len(m.snap.Results)-1)
		}
		m.note = ""

	case AudioLevelMsg:
		if m.snap.Phase == session.Recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case NoVoiceMsg:
		m.noVoice = msg.On

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case LogMsg:
		m.note = msg.Text

	case actionMsg:
		// Failures already arrive as snapshots.
		if msg.err != nil && session.KindOf(msg.err) == 0 && !errors.Is(msg.err, session.ErrBusy) {
			m.note = msg.err.Error()
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ", "space", "enter":
		if m.snap.Phase == session.Uploading {
			return m, nil
		}
		return m, m.toggleCmd()
	case "r", "esc", "backspace":
		if m.snap.Phase.CanReset() {
			return m, m.resetCmd()
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Results)-1 {
			m.cursor++
		}
	case "d":
		m.openLink("directions", func(p place.Place) string { return p.DirectionsURI() })
	case "p":
		m.openLink("phone", func(p place.Place) string { return p.PhoneURI() })
	case "w":
		m.openLink("website", func(p place.Place) string { return p.WebsiteURI() })
	case "c":
		if p, ok := m.selected(); ok {
			if uri := p.DirectionsURI(); uri == "" {
				m.note = "no directions link"
			} else if err := m.copy(uri); err != nil {
				m.note = "copy failed: " + err.Error()
			} else {
				m.note = "✓ directions link copied"
			}
		}
	}
	return m, nil
}

func (m *tuiModel) selected() (place.Place, bool) {
	if m.snap.Phase != session.ResultsReady || m.cursor >= len(m.snap.Results) {
		return place.Place{}, false
	}
	return m.snap.Results[m.cursor], true
}

func (m *tuiModel) openLink(label string, link func(place.Place) string) {
	p, ok := m.selected()
	if !ok {
		return
	}
	uri := link(p)
	if uri == "" {
		m.note = "no " + label + " for " + p.Name
		return
	}
	if err := m.openURL(uri); err != nil {
		m.note = "open failed: " + err.Error()
		return
	}
	m.note = "opened " + label
}

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKey     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	starStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	linkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	accentColor = lipgloss.Color("203") // #FF6D5A
)

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const buttonWidth = 34
	left := m.renderButtonPanel()
	rightWidth := max(m.width-buttonWidth-1, 24)

	leftPanel := lipgloss.NewStyle().Width(buttonWidth).Height(m.height).Render(left)
	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(m.renderResults(rightWidth - 2))
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m tuiModel) renderButtonPanel() string {
	var b strings.Builder
	b.WriteString(renderButton(m.frame, m.audioLevel, m.snap.Phase))
	b.WriteString("\n")

	switch m.snap.Phase {
	case session.Recording:
		b.WriteString(errStyle.Bold(true).Render(fmt.Sprintf("● REC %.1fs", m.recSeconds)))
		if m.noVoice {
			b.WriteString("\n" + warnStyle.Render("  ⚠ no voice detected"))
		}
	case session.Uploading:
		b.WriteString(m.spinner.View() + " searching places...")
	case session.ResultsReady:
		b.WriteString(okStyle.Render(fmt.Sprintf("✓ %d found", len(m.snap.Results))))
	case session.Failed:
		kind := "failed"
		if m.snap.LastError != nil {
			kind = m.snap.LastError.Kind.String()
		}
		b.WriteString(errStyle.Render("✗ " + kind))
	default:
		b.WriteString(dimStyle.Render("○ READY"))
	}
	b.WriteString("\n")

	if m.snap.Notice != "" {
		b.WriteString(warnStyle.Render(m.snap.Notice) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(dimStyle.Render(m.deviceLine) + "\n")
	}
	if m.note != "" {
		b.WriteString(dimStyle.Render(m.note) + "\n")
	}
	b.WriteString("\n")

	if m.snap.Phase == session.Recording {
		b.WriteString(helpKey.Render("space") + helpStyle.Render(" stop and search") + "\n")
	} else if m.snap.Phase.CanStart() {
		b.WriteString(helpKey.Render("space") + helpStyle.Render(" record") + "\n")
	}
	if m.hotkeyOn {
		b.WriteString(helpKey.Render(hotkey.Label) + helpStyle.Render(" record anywhere") + "\n")
	}
	if m.snap.Phase.CanReset() {
		b.WriteString(helpKey.Render("r") + helpStyle.Render(" go back to recording") + "\n")
	}
	if m.snap.Phase == session.ResultsReady && len(m.snap.Results) > 0 {
		b.WriteString(helpKey.Render("↑/↓") + helpStyle.Render(" select  ") +
			helpKey.Render("d") + helpStyle.Render(" directions") + "\n")
		b.WriteString(helpKey.Render("p") + helpStyle.Render(" call  ") +
			helpKey.Render("w") + helpStyle.Render(" website  ") +
			helpKey.Render("c") + helpStyle.Render(" copy link") + "\n")
	}
	b.WriteString(helpKey.Render("q") + helpStyle.Render(" quit") + "\n")
	b.WriteString(helpStyle.Render("voxplaces " + version))
	return b.String()
}

func (m tuiModel) renderResults(width int) string {
	width = max(width, 10)
	var b strings.Builder

	switch m.snap.Phase {
	case session.ResultsReady:
		b.WriteString(titleStyle.Render("Places Found") + "\n\n")
		if len(m.snap.Results) == 0 {
			b.WriteString(dimStyle.Render("No places matched that search.") + "\n")
			return b.String()
		}
		b.WriteString(m.renderCards(width))
	case session.Failed:
		b.WriteString(titleStyle.Render("Search failed") + "\n\n")
		for _, line := range wrapText(failureText(m.snap.LastError), width) {
			b.WriteString(errStyle.Render(line) + "\n")
		}
	default:
		b.WriteString(titleStyle.Render("Welcome!") + "\n\n")
		b.WriteString(dimStyle.Render("Start recording to search places") + "\n")
	}
	return b.String()
}

const cardLines = 7

func (m tuiModel) renderCards(width int) string {
	visible := max((m.height-3)/cardLines, 1)
	offset := 0
	if m.cursor >= visible {
		offset = m.cursor - visible + 1
	}

	var b strings.Builder
	end := min(offset+visible, len(m.snap.Results))
	for i := offset; i < end; i++ {
		b.WriteString(renderCard(m.snap.Results[i], width, i == m.cursor))
	}
	if end < len(m.snap.Results) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(m.snap.Results)-end)))
	}
	return b.String()
}

func renderCard(p place.Place, width int, selected bool) string {
	marker := "  "
	name := titleStyle
	if selected {
		marker = lipgloss.NewStyle().Foreground(accentColor).Render("▶ ")
		name = name.Foreground(accentColor)
	}
	inner := width - 2

	var b strings.Builder
	title := p.Name
	if title == "" {
		title = "(unnamed place)"
	}
	b.WriteString(marker + name.Render(truncate(title, inner)) + "\n")
	b.WriteString("  " + starStyle.Render(place.StarsFor(p.Rating).String()) +
		dimStyle.Render(fmt.Sprintf(" %.1f", p.Rating)) + "\n")
	b.WriteString("  " + truncate(p.Address, inner) + "\n")
	b.WriteString("  " + dimStyle.Render(truncate(p.WorkingHours, inner)) + "\n")
	b.WriteString("  " + dimStyle.Render(truncate(p.ImageOr(place.Placeholder), inner)) + "\n")
	if uri := p.DirectionsURI(); uri != "" {
		b.WriteString("  " + linkStyle.Render("Get Directions") + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func failureText(f *session.Failure) string {
	if f == nil {
		return "unknown error"
	}
	switch f.Kind {
	case session.ContractViolation:
		return "The search service answered with something other than a list of places. " + f.Error()
	case session.TransportFailure:
		return "Could not reach the search service. " + f.Error()
	case session.CaptureFailure:
		return "Nothing was recorded. " + f.Error()
	default:
		return f.Error()
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// Button palettes, from the centre outwards.
var buttonPalettes = map[session.Phase][]string{
	session.Idle:         {"231", "224", "217", "210", "203", "167", "131", "95", "238"},
	session.Recording:    {"226", "220", "214", "208", "196", "160", "124", "88", "52"},
	session.Uploading:    {"195", "159", "123", "87", "45", "39", "33", "27", "24"},
	session.ResultsReady: {"194", "157", "120", "83", "46", "40", "34", "28", "22"},
	session.Failed:       {"224", "217", "210", "203", "196", "160", "124", "88", "52"},
}

var (
	buttonStyles   = map[session.Phase][]lipgloss.Style{}
	buttonBgStyles = map[session.Phase][][]lipgloss.Style{}
)

func init() {
	for phase, colors := range buttonPalettes {
		fg := make([]lipgloss.Style, len(colors))
		bg := make([][]lipgloss.Style, len(colors))
		for i, c := range colors {
			fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
			bg[i] = make([]lipgloss.Style, len(colors))
			for j, c2 := range colors {
				bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(c2))
			}
		}
		buttonStyles[phase] = fg
		buttonBgStyles[phase] = bg
	}
}

// renderButton draws the record button with half-block pixels. The rings
// breathe with the input level while recording and pulse while uploading.
func renderButton(frame int, level float64, phase session.Phase) string {
	const charsW = 32
	const charsH = 12
	const pixH = charsH * 2

	palette := buttonStyles[phase]
	bgPalette := buttonBgStyles[phase]
	rings := len(palette)

	var breathe float64
	switch phase {
	case session.Recording:
		breathe = math.Sin(float64(frame)*0.10)*0.3 + level*12
	case session.Uploading:
		breathe = math.Sin(float64(frame)*0.25) * 0.8
	default:
		breathe = math.Sin(float64(frame)*0.08) * 0.2
	}

	cx, cy := float64(charsW)/2, float64(pixH)/2
	pixel := func(x, y int) int {
		dx, dy := float64(x)-cx+0.5, float64(y)-cy+0.5
		dist := math.Sqrt(dx*dx + dy*dy)
		for i := 0; i < rings; i++ {
			radius := 1.2*float64(i+1) + breathe*float64(rings-i)/float64(rings)
			if radius > cy {
				radius = cy
			}
			if dist < radius {
				return i + 1
			}
		}
		return 0
	}

	var out strings.Builder
	for row := 0; row < charsH; row++ {
		for x := 0; x < charsW; x++ {
			top, bot := pixel(x, row*2), pixel(x, row*2+1)
			switch {
			case top == 0 && bot == 0:
				out.WriteString(" ")
			case top == bot:
				out.WriteString(palette[top-1].Render("█"))
			case bot == 0:
				out.WriteString(palette[top-1].Render("▀"))
			case top == 0:
				out.WriteString(palette[bot-1].Render("▄"))
			default:
				out.WriteString(bgPalette[top-1][bot-1].Render("▀"))
			}
		}
		out.WriteString("\n")
	}
	return out.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
