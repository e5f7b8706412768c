// Package tui is the interactive frontend of the gate-level debugger: a
// bubbletea program showing the gate strip, the live amplitudes and the
// breakpoint list, driven entirely through sim.Debugger.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"qasmsim/qasm"
	"qasmsim/sim"
)

// focus represents which panel has keyboard input.
type focus int

const (
	focusStrip focus = iota
	focusCommand
)

// Model is the TUI application state.
type Model struct {
	debugger *sim.Debugger
	layout   *qasm.Layout

	width     int
	height    int
	viewStart int // first gate visible in the strip
	focus     focus

	command   textinput.Model
	statusMsg string
	lastHit   string
	quitting  bool
}

// NewModel wraps a debugger session. The layout is optional; when present,
// the header lists its quantum registers and their sizes.
func NewModel(d *sim.Debugger, layout *qasm.Layout) Model {
	ti := textinput.New()
	ti.Placeholder = "b <gate> | p <qubit> <threshold> | d <n> | clear"
	ti.CharLimit = 64
	return Model{
		debugger: d,
		layout:   layout,
		command:  ti,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if m.focus == focusCommand {
			return m.updateCommand(msg)
		}
		return m.updateStrip(msg)
	}
	return m, nil
}

func (m Model) updateStrip(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "s", "n", "right":
		hit, err := m.debugger.Step()
		m.noteResult(hit, err)
		m.scrollToCurrent()
	case "c", "enter":
		hit, err := m.debugger.Continue()
		m.noteResult(hit, err)
		m.scrollToCurrent()
	case "r":
		m.debugger.Reset()
		m.viewStart = 0
		m.statusMsg = "reset to |0…0⟩"
		m.lastHit = ""
	case "b":
		m.focus = focusCommand
		m.command.Focus()
		m.statusMsg = ""
	case "h", "left":
		if m.viewStart > 0 {
			m.viewStart--
		}
	case "l":
		if m.viewStart < len(m.debugger.Circuit().Gates)-1 {
			m.viewStart++
		}
	}
	return m, nil
}

func (m Model) updateCommand(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusStrip
		m.command.Blur()
		m.command.SetValue("")
		return m, nil
	case "enter":
		m.runCommand(strings.TrimSpace(m.command.Value()))
		m.focus = focusStrip
		m.command.Blur()
		m.command.SetValue("")
		return m, nil
	}
	var cmd tea.Cmd
	m.command, cmd = m.command.Update(msg)
	return m, cmd
}

// runCommand interprets the breakpoint mini-language:
//
//	b <gate>               gate breakpoint
//	p <qubit> <threshold>  probability breakpoint
//	d <n>                  delete breakpoint n
//	clear                  remove all breakpoints
func (m *Model) runCommand(input string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "b":
		if len(fields) != 2 {
			m.statusMsg = errorStyle.Render("usage: b <gate-index>")
			return
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil || idx < 0 || idx >= len(m.debugger.Circuit().Gates) {
			m.statusMsg = errorStyle.Render("bad gate index " + fields[1])
			return
		}
		m.debugger.AddGateBreakpoint(idx)
		m.statusMsg = statusStyle.Render(fmt.Sprintf("break at gate %d", idx))
	case "p":
		if len(fields) != 3 {
			m.statusMsg = errorStyle.Render("usage: p <qubit> <threshold>")
			return
		}
		qubit, err1 := strconv.Atoi(fields[1])
		threshold, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil {
			m.statusMsg = errorStyle.Render("bad probability breakpoint")
			return
		}
		m.debugger.AddProbabilityBreakpoint(qubit, threshold)
		m.statusMsg = statusStyle.Render(fmt.Sprintf("break when P(q[%d]=1) ≥ %g", qubit, threshold))
	case "d":
		if len(fields) != 2 {
			m.statusMsg = errorStyle.Render("usage: d <breakpoint>")
			return
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			m.statusMsg = errorStyle.Render("bad breakpoint index")
			return
		}
		if err := m.debugger.RemoveBreakpoint(idx); err != nil {
			m.statusMsg = errorStyle.Render(err.Error())
			return
		}
		m.statusMsg = statusStyle.Render(fmt.Sprintf("removed breakpoint %d", idx))
	case "clear":
		m.debugger.ClearBreakpoints()
		m.statusMsg = statusStyle.Render("breakpoints cleared")
	default:
		m.statusMsg = errorStyle.Render("unknown command " + fields[0])
	}
}

func (m *Model) noteResult(hit *sim.Breakpoint, err error) {
	switch {
	case err != nil:
		m.statusMsg = errorStyle.Render(err.Error())
	case hit != nil:
		m.lastHit = hit.Desc
		m.statusMsg = hitStyle.Render("breakpoint: " + hit.Desc)
	case m.debugger.Done():
		m.statusMsg = statusStyle.Render("circuit complete")
	default:
		m.statusMsg = ""
	}
}

// scrollToCurrent keeps the current gate inside the visible strip window.
func (m *Model) scrollToCurrent() {
	visible := m.stripCells()
	cur := m.debugger.CurrentIndex()
	if cur < m.viewStart {
		m.viewStart = cur
	}
	if cur >= m.viewStart+visible {
		m.viewStart = cur - visible + 1
		if m.viewStart < 0 {
			m.viewStart = 0
		}
	}
}

func (m Model) stripCells() int {
	w := m.width
	if w <= 0 {
		w = 80
	}
	cells := (w - 6) / gateCellW
	if cells < 1 {
		cells = 1
	}
	return cells
}

// Run starts the TUI over the given debugger until the user quits.
func Run(d *sim.Debugger, layout *qasm.Layout) error {
	_, err := tea.NewProgram(NewModel(d, layout), tea.WithAltScreen()).Run()
	return err
}
