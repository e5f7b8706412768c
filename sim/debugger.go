package sim

import (
	"fmt"
	"math/cmplx"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"qasmsim/quantum"
)

// BreakpointKind tags what a breakpoint watches.
type BreakpointKind int

const (
	BreakGate BreakpointKind = iota
	BreakProbability
	BreakCustom
)

// Breakpoint pairs a predicate over the debugger's position and state with
// a human-readable description. Predicates run after each applied gate.
type Breakpoint struct {
	Kind BreakpointKind
	Desc string
	pred func(d *Debugger) bool
}

// Debugger drives a frozen circuit gate by gate over an engine it borrows
// for the session. The circuit is never mutated; the engine's state is.
type Debugger struct {
	circuit *quantum.Circuit
	engine  *Engine
	index   int
	bps     []Breakpoint
}

// NewDebugger wraps a circuit and an engine of matching width.
func NewDebugger(c *quantum.Circuit, e *Engine) (*Debugger, error) {
	if c.NumQubits != e.State().NumQubits() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "circuit has %d qubits, engine %d",
			c.NumQubits, e.State().NumQubits())
	}
	return &Debugger{circuit: c, engine: e}, nil
}

// Circuit returns the borrowed circuit.
func (d *Debugger) Circuit() *quantum.Circuit { return d.circuit }

// Engine returns the borrowed engine.
func (d *Debugger) Engine() *Engine { return d.engine }

// CurrentIndex returns the index of the next gate to execute.
func (d *Debugger) CurrentIndex() int { return d.index }

// Done reports whether every gate has executed.
func (d *Debugger) Done() bool { return d.index >= len(d.circuit.Gates) }

// Step applies the gate at the current index and advances. Breakpoints are
// evaluated afterwards but never block an explicit Step; the hit result is
// returned for display. Stepping past the end is a no-op.
func (d *Debugger) Step() (*Breakpoint, error) {
	if d.Done() {
		return nil, nil
	}
	if err := d.engine.Apply(d.circuit.Gates[d.index]); err != nil {
		return nil, errors.Wrapf(err, "gate %d", d.index)
	}
	d.index++
	return d.checkBreakpoints(), nil
}

// Continue steps until a breakpoint fires or the circuit ends, returning
// the breakpoint that stopped it, if any.
func (d *Debugger) Continue() (*Breakpoint, error) {
	for !d.Done() {
		hit, err := d.Step()
		if err != nil {
			return nil, err
		}
		if hit != nil {
			return hit, nil
		}
	}
	return nil, nil
}

// Reset rewinds to gate zero over a fresh |0…0⟩ with cleared cbits.
// Breakpoints survive a reset.
func (d *Debugger) Reset() {
	d.engine.Reset()
	d.index = 0
}

// checkBreakpoints evaluates predicates in registration order and returns
// the first hit.
func (d *Debugger) checkBreakpoints() *Breakpoint {
	for i := range d.bps {
		if d.bps[i].pred(d) {
			return &d.bps[i]
		}
	}
	return nil
}

// AddGateBreakpoint stops when the gate at the given index has executed.
// Returns the breakpoint's position in the list.
func (d *Debugger) AddGateBreakpoint(gateIndex int) int {
	d.bps = append(d.bps, Breakpoint{
		Kind: BreakGate,
		Desc: fmt.Sprintf("gate %d executed", gateIndex),
		pred: func(d *Debugger) bool { return d.index == gateIndex+1 },
	})
	return len(d.bps) - 1
}

// AddProbabilityBreakpoint stops once P(qubit = 1) reaches the threshold.
func (d *Debugger) AddProbabilityBreakpoint(qubit int, threshold float64) int {
	d.bps = append(d.bps, Breakpoint{
		Kind: BreakProbability,
		Desc: fmt.Sprintf("P(q[%d]=1) >= %g", qubit, threshold),
		pred: func(d *Debugger) bool {
			p, err := d.engine.State().Probability(qubit, 1)
			return err == nil && p >= threshold
		},
	})
	return len(d.bps) - 1
}

// AddCustomBreakpoint stops when the predicate over the state holds.
func (d *Debugger) AddCustomBreakpoint(pred func(*State) bool, desc string) int {
	d.bps = append(d.bps, Breakpoint{
		Kind: BreakCustom,
		Desc: desc,
		pred: func(d *Debugger) bool { return pred(d.engine.State()) },
	})
	return len(d.bps) - 1
}

// RemoveBreakpoint deletes breakpoint i.
func (d *Debugger) RemoveBreakpoint(i int) error {
	if i < 0 || i >= len(d.bps) {
		return errors.Errorf("no breakpoint %d", i)
	}
	d.bps = append(d.bps[:i], d.bps[i+1:]...)
	return nil
}

// ClearBreakpoints removes every breakpoint.
func (d *Debugger) ClearBreakpoints() { d.bps = nil }

// Breakpoints lists the registered breakpoints.
func (d *Debugger) Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), d.bps...)
}

// StateProbabilities returns |ψᵢ|² per basis state.
func (d *Debugger) StateProbabilities() []float64 {
	return d.engine.State().Probabilities()
}

// QubitProbability returns P(qubit = value).
func (d *Debugger) QubitProbability(qubit, value int) (float64, error) {
	return d.engine.State().Probability(qubit, value)
}

// Entanglement returns the Wootters concurrence between two qubits.
func (d *Debugger) Entanglement(q1, q2 int) (float64, error) {
	return Concurrence(d.engine.State(), q1, q2)
}

// StateInfo renders a human-readable snapshot: position, norm, and the
// dominant basis states with amplitude, probability and phase.
func (d *Debugger) StateInfo() string {
	s := d.engine.State()
	var sb strings.Builder
	fmt.Fprintf(&sb, "gate %d/%d, %d qubits, norm %.9f\n",
		d.index, len(d.circuit.Gates), s.NumQubits(), s.Norm())

	type entry struct {
		idx  int
		prob float64
	}
	var entries []entry
	for i := 0; i < s.Len(); i++ {
		a := s.Amplitude(i)
		p := real(a)*real(a) + imag(a)*imag(a)
		if p > 1e-10 {
			entries = append(entries, entry{idx: i, prob: p})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prob != entries[j].prob {
			return entries[i].prob > entries[j].prob
		}
		return entries[i].idx < entries[j].idx
	})
	if len(entries) > 8 {
		entries = entries[:8]
	}
	for _, en := range entries {
		a := s.Amplitude(en.idx)
		fmt.Fprintf(&sb, "  |%s⟩  %.6f%+.6fi  p=%.6f  phase=%+.4f\n",
			basisLabel(en.idx, s.NumQubits()), real(a), imag(a), en.prob, cmplx.Phase(a))
	}
	return sb.String()
}

// basisLabel renders index i as a ket bit string, qubit n-1 first.
func basisLabel(i, numQubits int) string {
	buf := make([]byte, numQubits)
	for q := 0; q < numQubits; q++ {
		buf[numQubits-1-q] = byte('0' + i>>uint(q)&1)
	}
	return string(buf)
}
