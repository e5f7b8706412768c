package qasm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"qasmsim/quantum"
)

// PrintQASM renders a circuit as deterministic OpenQASM 2.0: fixed header,
// register declarations, then gates and measurements in circuit order.
// A layout from lowering preserves the original register names; a nil
// layout prints flat q/c registers.
func PrintQASM(c *quantum.Circuit, layout *Layout) string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	sb.WriteString("include \"qelib1.inc\";\n\n")

	if layout != nil && len(layout.QRegOrder) > 0 {
		for _, reg := range layout.QRegOrder {
			fmt.Fprintf(&sb, "qreg %s[%d];\n", reg, layout.QubitSize[reg])
		}
		for _, reg := range layout.CRegOrder {
			fmt.Fprintf(&sb, "creg %s[%d];\n", reg, layout.CbitSize[reg])
		}
	} else {
		fmt.Fprintf(&sb, "qreg q[%d];\n", c.NumQubits)
		if c.NumCbits > 0 {
			fmt.Fprintf(&sb, "creg c[%d];\n", c.NumCbits)
		}
	}
	sb.WriteString("\n")

	for _, g := range c.Gates {
		printGate(&sb, c, layout, g)
	}
	return sb.String()
}

func qubitName(layout *Layout, flat int) string {
	if layout != nil && len(layout.QRegOrder) > 0 {
		return layout.QubitName(flat)
	}
	return fmt.Sprintf("q[%d]", flat)
}

func cbitName(layout *Layout, flat int) string {
	if layout != nil {
		for _, reg := range layout.CRegOrder {
			off := layout.CbitOffset[reg]
			if flat >= off && flat < off+layout.CbitSize[reg] {
				return fmt.Sprintf("%s[%d]", reg, flat-off)
			}
		}
	}
	return fmt.Sprintf("c[%d]", flat)
}

func printGate(sb *strings.Builder, c *quantum.Circuit, layout *Layout, g quantum.Gate) {
	switch g.Kind {
	case quantum.KindMeasure:
		fmt.Fprintf(sb, "measure %s -> %s;\n", qubitName(layout, g.Qubits[0]), cbitName(layout, g.Cbit))
	case quantum.KindBarrier:
		qubits := g.Qubits
		if len(qubits) == 0 {
			qubits = make([]int, c.NumQubits)
			for i := range qubits {
				qubits[i] = i
			}
		}
		names := make([]string, len(qubits))
		for i, q := range qubits {
			names[i] = qubitName(layout, q)
		}
		fmt.Fprintf(sb, "barrier %s;\n", strings.Join(names, ", "))
	case quantum.KindReset:
		fmt.Fprintf(sb, "reset %s;\n", qubitName(layout, g.Qubits[0]))
	case quantum.KindConditional:
		reg, value := conditionalOperand(layout, g)
		fmt.Fprintf(sb, "if (%s==%d) ", reg, value)
		printGate(sb, c, layout, *g.Inner)
	case quantum.KindCustom:
		// Custom unitaries have no QASM spelling; emit a comment so the
		// output stays parseable.
		names := make([]string, len(g.Qubits))
		for i, q := range g.Qubits {
			names[i] = qubitName(layout, q)
		}
		fmt.Fprintf(sb, "// custom %s %s\n", g.Name, strings.Join(names, ", "))
	default:
		names := make([]string, len(g.Qubits))
		for i, q := range g.Qubits {
			names[i] = qubitName(layout, q)
		}
		if len(g.Params) > 0 {
			fmt.Fprintf(sb, "%s(%s) %s;\n", g.Kind, FormatParams(g.Params), strings.Join(names, ", "))
		} else {
			fmt.Fprintf(sb, "%s %s;\n", g.Kind, strings.Join(names, ", "))
		}
	}
}

// conditionalOperand reverses the mask/value encoding back to a register
// comparison for printing.
func conditionalOperand(layout *Layout, g quantum.Gate) (string, uint64) {
	if layout != nil {
		for _, reg := range layout.CRegOrder {
			off := uint(layout.CbitOffset[reg])
			size := uint(layout.CbitSize[reg])
			mask := uint64((1<<size)-1) << off
			if g.CondMask == mask {
				return reg, g.CondValue >> off
			}
		}
	}
	return "c", g.CondValue
}

// JSON schema for circuits: {version, qubits, cbits, gates:[...]}. Kind
// names are the lower-case QASM spellings.
type circuitJSON struct {
	Version string     `json:"version"`
	Qubits  int        `json:"qubits"`
	Cbits   int        `json:"cbits"`
	Gates   []gateJSON `json:"gates"`
}

type gateJSON struct {
	Kind   string    `json:"kind"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
	Cbit   *int      `json:"cbit,omitempty"`
	Mask   *uint64   `json:"mask,omitempty"`
	Value  *uint64   `json:"value,omitempty"`
	Inner  *gateJSON `json:"inner,omitempty"`
	Name   string    `json:"name,omitempty"`
}

func gateToJSON(g quantum.Gate) gateJSON {
	out := gateJSON{
		Kind:   g.Kind.String(),
		Qubits: g.Qubits,
		Params: g.Params,
	}
	if g.Kind == quantum.KindMeasure {
		cbit := g.Cbit
		out.Cbit = &cbit
	}
	if g.Kind == quantum.KindConditional {
		mask, value := g.CondMask, g.CondValue
		out.Mask = &mask
		out.Value = &value
		inner := gateToJSON(*g.Inner)
		out.Inner = &inner
	}
	if g.Kind == quantum.KindCustom {
		out.Name = g.Name
	}
	return out
}

// PrintJSON renders the circuit as its JSON wire form.
func PrintJSON(c *quantum.Circuit) ([]byte, error) {
	doc := circuitJSON{
		Version: "2.0",
		Qubits:  c.NumQubits,
		Cbits:   c.NumCbits,
		Gates:   make([]gateJSON, len(c.Gates)),
	}
	for i, g := range c.Gates {
		doc.Gates[i] = gateToJSON(g)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	return out, errors.Wrap(err, "marshaling circuit")
}
