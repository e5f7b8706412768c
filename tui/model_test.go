package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qasmsim/qasm"
	"qasmsim/sim"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	src := "OPENQASM 2.0;\nqreg q[2];\nh q[0];\ncx q[0], q[1];\n"
	c, layout, err := qasm.Compile([]byte(src))
	require.NoError(t, err)
	e, err := sim.NewEngine(2, sim.WithSeed(1))
	require.NoError(t, err)
	d, err := sim.NewDebugger(c, e)
	require.NoError(t, err)
	return NewModel(d, layout)
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	return tea.KeyMsg{Type: tea.KeyEnter}
}

func TestStepKeyAdvancesDebugger(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(key("s"))
	m = next.(Model)
	assert.Equal(t, 1, m.debugger.CurrentIndex())

	next, _ = m.Update(key("s"))
	m = next.(Model)
	assert.True(t, m.debugger.Done())
	assert.Contains(t, m.statusMsg, "complete")
}

func TestResetKeyRewinds(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(key("c"))
	m = next.(Model)
	require.True(t, m.debugger.Done())

	next, _ = m.Update(key("r"))
	m = next.(Model)
	assert.Equal(t, 0, m.debugger.CurrentIndex())
}

func TestBreakpointCommand(t *testing.T) {
	m := newTestModel(t)
	m.runCommand("b 1")
	require.Len(t, m.debugger.Breakpoints(), 1)
	m.runCommand("p 0 0.4")
	require.Len(t, m.debugger.Breakpoints(), 2)
	m.runCommand("d 0")
	require.Len(t, m.debugger.Breakpoints(), 1)
	m.runCommand("clear")
	assert.Empty(t, m.debugger.Breakpoints())

	m.runCommand("b 99")
	assert.Contains(t, m.statusMsg, "bad gate index")
}

func TestViewShowsStripAndState(t *testing.T) {
	m := newTestModel(t)
	m.width = 100
	m.height = 40
	view := m.View()
	assert.Contains(t, view, "qasmsim debugger")
	assert.Contains(t, view, "H 0")
	assert.Contains(t, view, "|00⟩")

	next, _ := m.Update(key("s"))
	m = next.(Model)
	view = m.View()
	assert.True(t, strings.Contains(view, "|01⟩") || strings.Contains(view, "|00⟩"))
}
