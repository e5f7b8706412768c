package optimizer

import (
	"sort"

	"qasmsim/quantum"
)

// layerPass schedules gates into parallel layers: a gate enters the earliest
// layer after every prior gate sharing one of its qubits, and the output is
// layer-major with the original order preserved inside each layer. Classical
// dependencies schedule like qubits: a measurement occupies its cbit, a
// conditional occupies every cbit in its mask, so reads never cross writes.
func layerPass(c *quantum.Circuit) (*quantum.Circuit, error) {
	type placed struct {
		layer int
		index int
		gate  quantum.Gate
	}

	qubitFrontier := make([]int, c.NumQubits)
	cbitFrontier := make([]int, c.NumCbits)
	all := make([]placed, 0, len(c.Gates))

	maxFrontier := func() int {
		m := 0
		for _, f := range qubitFrontier {
			if f > m {
				m = f
			}
		}
		for _, f := range cbitFrontier {
			if f > m {
				m = f
			}
		}
		return m
	}

	for idx, g := range c.Gates {
		var layer int
		switch {
		case g.Kind == quantum.KindBarrier && len(g.Qubits) == 0:
			// Full-width barrier: its own layer after everything so far.
			layer = maxFrontier() + 1
			for q := range qubitFrontier {
				qubitFrontier[q] = layer
			}
		default:
			for _, q := range g.Qubits {
				if qubitFrontier[q] > layer {
					layer = qubitFrontier[q]
				}
			}
			for _, cb := range gateCbits(g, c.NumCbits) {
				if cbitFrontier[cb] > layer {
					layer = cbitFrontier[cb]
				}
			}
			layer++
			for _, q := range g.Qubits {
				qubitFrontier[q] = layer
			}
			for _, cb := range gateCbits(g, c.NumCbits) {
				cbitFrontier[cb] = layer
			}
		}
		all = append(all, placed{layer: layer, index: idx, gate: g})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].layer != all[j].layer {
			return all[i].layer < all[j].layer
		}
		return all[i].index < all[j].index
	})

	out := &quantum.Circuit{NumQubits: c.NumQubits, NumCbits: c.NumCbits}
	for _, p := range all {
		out.Gates = append(out.Gates, p.gate)
	}
	if len(out.Gates) != len(c.Gates) {
		return nil, &PassError{Pass: "layer", Msg: "gate count changed during scheduling"}
	}
	return out, nil
}

// gateCbits lists the classical bits a gate reads or writes.
func gateCbits(g quantum.Gate, numCbits int) []int {
	switch g.Kind {
	case quantum.KindMeasure:
		return []int{g.Cbit}
	case quantum.KindConditional:
		var bits []int
		for b := 0; b < numCbits; b++ {
			if g.CondMask&(1<<uint(b)) != 0 {
				bits = append(bits, b)
			}
		}
		return bits
	}
	return nil
}
