package quantum

import (
	"github.com/pkg/errors"
)

// MaxQubits bounds the circuit width. 30 qubits keeps the dense state
// vector at or below 16 GiB with 16-byte amplitudes.
const MaxQubits = 30

// Circuit is an ordered gate sequence over a fixed qubit and classical-bit
// width. It is built append-only and frozen before optimization or
// execution; a frozen circuit is immutable and safe to share.
type Circuit struct {
	NumQubits int
	NumCbits  int
	Gates     []Gate

	frozen bool
}

// NewCircuit returns an empty circuit of the given widths.
func NewCircuit(numQubits, numCbits int) (*Circuit, error) {
	if numQubits < 1 {
		return nil, validationf("circuit needs at least one qubit, got %d", numQubits)
	}
	if numQubits > MaxQubits {
		return nil, validationf("circuit width %d exceeds the %d-qubit limit", numQubits, MaxQubits)
	}
	if numCbits < 0 {
		return nil, validationf("negative classical width %d", numCbits)
	}
	return &Circuit{NumQubits: numQubits, NumCbits: numCbits}, nil
}

// Append adds a validated gate, checking its operands against the circuit
// widths.
func (c *Circuit) Append(g Gate) error {
	if c.frozen {
		return validationf("circuit is frozen")
	}
	if err := c.checkGate(g); err != nil {
		return err
	}
	c.Gates = append(c.Gates, g)
	return nil
}

func (c *Circuit) checkGate(g Gate) error {
	for _, q := range g.Qubits {
		if q < 0 || q >= c.NumQubits {
			return validationf("qubit %d out of range [0,%d)", q, c.NumQubits)
		}
	}
	if g.Kind == KindMeasure {
		if g.Cbit < 0 || g.Cbit >= c.NumCbits {
			return validationf("cbit %d out of range [0,%d)", g.Cbit, c.NumCbits)
		}
	}
	if g.Kind == KindConditional {
		if c.NumCbits == 0 || g.CondMask>>uint(c.NumCbits) != 0 {
			return validationf("conditional mask %#x references cbits beyond width %d", g.CondMask, c.NumCbits)
		}
		if g.Inner == nil {
			return validationf("conditional gate without inner gate")
		}
		return c.checkGate(*g.Inner)
	}
	return nil
}

// Add builds and appends a standard gate in one call.
func (c *Circuit) Add(kind Kind, qubits []int, params ...float64) error {
	g, err := NewGate(kind, qubits, params)
	if err != nil {
		return err
	}
	return c.Append(g)
}

// AddMeasure appends a measurement of qubit into cbit.
func (c *Circuit) AddMeasure(qubit, cbit int) error {
	g, err := NewMeasure(qubit, cbit)
	if err != nil {
		return err
	}
	return c.Append(g)
}

// AddBarrier appends a barrier over the given qubits (all qubits when the
// list is empty).
func (c *Circuit) AddBarrier(qubits ...int) error {
	return c.Append(NewBarrier(qubits))
}

// AddConditional appends a classically-conditioned gate.
func (c *Circuit) AddConditional(inner Gate, mask, value uint64) error {
	g, err := NewConditional(inner, mask, value)
	if err != nil {
		return err
	}
	return c.Append(g)
}

// AddCustom appends a named gate with an explicit unitary.
func (c *Circuit) AddCustom(name string, qubits []int, m *Matrix) error {
	g, err := NewCustom(name, qubits, m)
	if err != nil {
		return err
	}
	return c.Append(g)
}

// Freeze makes the circuit immutable. Safe to call repeatedly.
func (c *Circuit) Freeze() { c.frozen = true }

// Frozen reports whether the circuit has been frozen.
func (c *Circuit) Frozen() bool { return c.frozen }

// Clone returns an unfrozen deep copy.
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{NumQubits: c.NumQubits, NumCbits: c.NumCbits}
	out.Gates = make([]Gate, len(c.Gates))
	for i, g := range c.Gates {
		out.Gates[i] = cloneGate(g)
	}
	return out
}

func cloneGate(g Gate) Gate {
	out := g
	out.Qubits = append([]int(nil), g.Qubits...)
	out.Params = append([]float64(nil), g.Params...)
	if g.Inner != nil {
		in := cloneGate(*g.Inner)
		out.Inner = &in
	}
	if g.Matrix != nil {
		out.Matrix = g.Matrix.Clone()
	}
	return out
}

// Validate re-checks every gate against the circuit widths. Append already
// enforces this; Validate exists for circuits assembled by deserialization
// or optimization passes.
func (c *Circuit) Validate() error {
	for i, g := range c.Gates {
		if err := c.checkGate(g); err != nil {
			return errors.Wrapf(err, "gate %d (%s)", i, g)
		}
	}
	return nil
}

// Depth returns the number of parallel layers: each gate lands in the
// earliest layer after every earlier gate sharing one of its qubits.
// Barriers close all open layers.
func (c *Circuit) Depth() int {
	frontier := make([]int, c.NumQubits)
	depth := 0
	for _, g := range c.Gates {
		if g.Kind == KindBarrier {
			for q := range frontier {
				frontier[q] = depth
			}
			continue
		}
		layer := 0
		for _, q := range g.Qubits {
			if frontier[q] > layer {
				layer = frontier[q]
			}
		}
		layer++
		for _, q := range g.Qubits {
			frontier[q] = layer
		}
		if layer > depth {
			depth = layer
		}
	}
	return depth
}

// Layers partitions the gates into parallel layers, the traversal diagram
// renderers consume: within a layer no two gates share a qubit, and the
// original relative order is preserved inside each layer. A full-width
// barrier occupies a layer of its own; a barrier over listed qubits is
// placed like any other gate on those qubits.
func (c *Circuit) Layers() [][]Gate {
	frontier := make([]int, c.NumQubits)
	var layers [][]Gate
	for _, g := range c.Gates {
		qubits := g.Qubits
		if g.Kind == KindBarrier && len(qubits) == 0 {
			layer := 0
			for _, f := range frontier {
				if f > layer {
					layer = f
				}
			}
			for len(layers) <= layer {
				layers = append(layers, nil)
			}
			layers[layer] = append(layers[layer], g)
			for q := range frontier {
				frontier[q] = layer + 1
			}
			continue
		}
		layer := 0
		for _, q := range qubits {
			if frontier[q] > layer {
				layer = frontier[q]
			}
		}
		for len(layers) <= layer {
			layers = append(layers, nil)
		}
		layers[layer] = append(layers[layer], g)
		for _, q := range qubits {
			frontier[q] = layer + 1
		}
	}
	return layers
}

// CountByKind tallies gates per kind.
func (c *Circuit) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, g := range c.Gates {
		counts[g.Kind]++
	}
	return counts
}

// QubitActivity counts, per qubit, how many gates touch it. Conditionals
// count their inner gate's qubits.
func (c *Circuit) QubitActivity() []int {
	activity := make([]int, c.NumQubits)
	for _, g := range c.Gates {
		if g.Kind == KindBarrier {
			continue
		}
		for _, q := range g.Qubits {
			activity[q]++
		}
	}
	return activity
}
