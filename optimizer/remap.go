package optimizer

import (
	"sort"

	"qasmsim/quantum"
)

// remapPass relabels qubits so the most active qubit becomes index 0, the
// next most active index 1 and so on; ties keep the lower original index
// first. The permutation applies uniformly to every gate's qubit list —
// measurements included — so the cbit-visible semantics are untouched. The
// returned map records qubitMap[old] = new for callers that inspect raw
// amplitudes.
func remapPass(c *quantum.Circuit) (*quantum.Circuit, []int, error) {
	activity := c.QubitActivity()

	order := make([]int, c.NumQubits)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if activity[a] != activity[b] {
			return activity[a] > activity[b]
		}
		return a < b
	})

	qubitMap := make([]int, c.NumQubits)
	for rank, old := range order {
		qubitMap[old] = rank
	}

	out := &quantum.Circuit{NumQubits: c.NumQubits, NumCbits: c.NumCbits}
	for _, g := range c.Gates {
		ng := g
		ng.Qubits = make([]int, len(g.Qubits))
		for i, q := range g.Qubits {
			ng.Qubits[i] = qubitMap[q]
		}
		if g.Inner != nil {
			inner := *g.Inner
			inner.Qubits = make([]int, len(g.Inner.Qubits))
			for i, q := range g.Inner.Qubits {
				inner.Qubits[i] = qubitMap[q]
			}
			ng.Inner = &inner
		}
		out.Gates = append(out.Gates, ng)
	}
	if err := out.Validate(); err != nil {
		return nil, nil, &PassError{Pass: "remap", Msg: err.Error()}
	}
	return out, qubitMap, nil
}
