package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"qasmsim/quantum"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("qasmsim debugger"))
	if m.layout != nil && len(m.layout.QRegOrder) > 0 {
		var regs []string
		for _, reg := range m.layout.QRegOrder {
			regs = append(regs, fmt.Sprintf("%s[%d]", reg, m.layout.QubitSize[reg]))
		}
		sb.WriteString(dimStyle.Render("  " + strings.Join(regs, " ")))
	}
	sb.WriteString("\n\n")
	sb.WriteString(stripStyle.Render(m.renderStrip()))
	sb.WriteString("\n")
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		stateStyle.Render(m.renderState()),
		" ",
		breakStyle.Render(m.renderBreakpoints()),
	))
	sb.WriteString("\n")
	if m.focus == focusCommand {
		sb.WriteString(m.command.View())
		sb.WriteString("\n")
	}
	if m.statusMsg != "" {
		sb.WriteString(m.statusMsg)
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render("s step · c continue · r reset · b breakpoint · h/l scroll · q quit"))
	return sb.String()
}

// renderStrip draws the gate sequence as cells with the execution cursor.
func (m Model) renderStrip() string {
	gates := m.debugger.Circuit().Gates
	if len(gates) == 0 {
		return dimStyle.Render("(empty circuit)")
	}
	cells := m.stripCells()
	end := m.viewStart + cells
	if end > len(gates) {
		end = len(gates)
	}

	var top, mid, bot []string
	cur := m.debugger.CurrentIndex()
	for i := m.viewStart; i < end; i++ {
		label := gateLabel(gates[i])
		if len(label) > gateCellW-2 {
			label = label[:gateCellW-2]
		}
		cell := padCenter(label, gateCellW-2)
		style := pendingGateStyle
		switch {
		case i < cur:
			style = doneGateStyle
		case i == cur:
			style = currentGateStyle
		}
		marker := " "
		if i == cur {
			marker = "▼"
		}
		top = append(top, padCenter(marker, gateCellW))
		mid = append(mid, "["+style.Render(cell)+"]")
		bot = append(bot, padCenter(fmt.Sprintf("%d", i), gateCellW))
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(top, ""))
	sb.WriteString("\n")
	sb.WriteString(strings.Join(mid, ""))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(strings.Join(bot, "")))
	return sb.String()
}

// renderState draws the dominant basis states with probability bars.
func (m Model) renderState() string {
	s := m.debugger.Engine().State()
	probs := s.Probabilities()

	type row struct {
		idx  int
		prob float64
	}
	var rows []row
	for i, p := range probs {
		if p > 1e-10 {
			rows = append(rows, row{idx: i, prob: p})
		}
	}
	// Highest probability first, stable on index.
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].prob > rows[j-1].prob; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
	if len(rows) > maxAmpRows {
		rows = rows[:maxAmpRows]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  norm %.9f\n", titleStyle.Render("state"), s.Norm())
	for _, r := range rows {
		bar := int(r.prob*barWidth + 0.5)
		if bar > barWidth {
			bar = barWidth
		}
		fmt.Fprintf(&sb, "%s %s%s %6.4f\n",
			basisStyle.Render("|"+ketLabel(r.idx, s.NumQubits())+"⟩"),
			barStyle.Render(strings.Repeat("█", bar)),
			dimStyle.Render(strings.Repeat("·", barWidth-bar)),
			r.prob,
		)
	}
	if len(rows) == 0 {
		sb.WriteString(dimStyle.Render("(zero state)"))
	}
	return sb.String()
}

// renderBreakpoints lists registered breakpoints and the last hit.
func (m Model) renderBreakpoints() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("breakpoints"))
	sb.WriteString("\n")
	bps := m.debugger.Breakpoints()
	if len(bps) == 0 {
		sb.WriteString(dimStyle.Render("(none)"))
		sb.WriteString("\n")
	}
	for i, bp := range bps {
		fmt.Fprintf(&sb, "%2d  %s\n", i, bp.Desc)
	}
	if m.lastHit != "" {
		sb.WriteString(hitStyle.Render("last hit: " + m.lastHit))
		sb.WriteString("\n")
	}
	return sb.String()
}

// gateLabel is the short strip label for a gate.
func gateLabel(g quantum.Gate) string {
	switch g.Kind {
	case quantum.KindMeasure:
		return fmt.Sprintf("M%d→%d", g.Qubits[0], g.Cbit)
	case quantum.KindBarrier:
		return "║"
	case quantum.KindConditional:
		return "if·" + gateLabel(*g.Inner)
	case quantum.KindCustom:
		return g.Name
	}
	name := strings.ToUpper(g.Kind.String())
	qs := make([]string, len(g.Qubits))
	for i, q := range g.Qubits {
		qs[i] = fmt.Sprintf("%d", q)
	}
	return name + " " + strings.Join(qs, ",")
}

// ketLabel renders basis index i with qubit n-1 leftmost.
func ketLabel(i, numQubits int) string {
	buf := make([]byte, numQubits)
	for q := 0; q < numQubits; q++ {
		buf[numQubits-1-q] = byte('0' + i>>uint(q)&1)
	}
	return string(buf)
}

// padCenter centres a string within the given width.
func padCenter(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	total := width - len(s)
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}
