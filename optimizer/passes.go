package optimizer

import (
	"math"

	"qasmsim/quantum"
)

// paramTolerance bounds parameter equality for cancellation; angleTolerance
// decides when a merged rotation has wound back to a 2π multiple.
const (
	paramTolerance = 1e-12
	angleTolerance = 1e-12
)

// blocking reports whether a gate pins its position: measurements, resets,
// barriers, conditionals and custom unitaries never commute with anything.
// This conservatively keeps measurement ordering and classical dependencies
// intact.
func blocking(g quantum.Gate) bool {
	switch g.Kind {
	case quantum.KindMeasure, quantum.KindReset, quantum.KindBarrier, quantum.KindConditional, quantum.KindCustom:
		return true
	}
	return false
}

// commutes reports whether two gates may be swapped. Disjoint-qubit unitary
// gates always commute; same-qubit pairs commute when both are diagonal or
// both are single-qubit X-axis gates (X, RX).
func commutes(a, b quantum.Gate) bool {
	if blocking(a) || blocking(b) {
		return false
	}
	if !a.SharesQubit(b) {
		return true
	}
	if a.Kind.IsDiagonal() && b.Kind.IsDiagonal() {
		return true
	}
	if len(a.Qubits) == 1 && len(b.Qubits) == 1 &&
		a.Kind.IsAntiDiagonal() && b.Kind.IsAntiDiagonal() {
		return true
	}
	return false
}

// removeIndices drops the gates at the (sorted ascending) indices.
func removeIndices(gates []quantum.Gate, indices ...int) []quantum.Gate {
	out := gates[:0]
	k := 0
	for i, g := range gates {
		if k < len(indices) && indices[k] == i {
			k++
			continue
		}
		out = append(out, g)
	}
	return out
}

// cancelPass removes annihilating pairs. For each gate, the nearest later
// gate on exactly the same qubit tuple is a cancellation candidate when the
// intervening gates commute qubit-wise with both endpoints. Lowest index
// wins; the pass restarts after each rewrite and runs to a fixed point.
// Returns the number of pairs removed.
func cancelPass(c *quantum.Circuit) int {
	removed := 0
	for {
		i, j := findCancelPair(c.Gates)
		if i < 0 {
			return removed
		}
		c.Gates = removeIndices(c.Gates, i, j)
		removed++
	}
}

func findCancelPair(gates []quantum.Gate) (int, int) {
	for i := 0; i < len(gates); i++ {
		a := gates[i]
		if blocking(a) {
			continue
		}
		for j := i + 1; j < len(gates); j++ {
			b := gates[j]
			if !a.SameQubits(b) {
				// A gate overlapping a's qubits without matching the
				// tuple ends the search unless it commutes past a.
				if b.SharesQubit(a) && !commutes(a, b) {
					break
				}
				continue
			}
			if quantum.Cancels(a.Kind, b.Kind) && a.SameParams(b, paramTolerance) &&
				interveningCommute(gates, i, j) {
				return i, j
			}
			break // nearest same-tuple gate only
		}
	}
	return -1, -1
}

// interveningCommute checks every gate strictly between i and j against both
// endpoints.
func interveningCommute(gates []quantum.Gate, i, j int) bool {
	for k := i + 1; k < j; k++ {
		if !commutes(gates[k], gates[i]) || !commutes(gates[k], gates[j]) {
			return false
		}
	}
	return true
}

// mergePass combines same-axis rotations on the same qubit tuple:
// RX(a)·RX(b) → RX(a+b), likewise RY, RZ and the phase family (P/U1). A sum
// that lands on a 2π multiple drops the gate entirely. Returns the number of
// merges performed.
func mergePass(c *quantum.Circuit) int {
	merged := 0
	for {
		i, j := findMergePair(c.Gates)
		if i < 0 {
			return merged
		}
		a, b := c.Gates[i], c.Gates[j]
		sum := a.Params[0] + b.Params[0]
		if isTwoPiMultiple(sum, mergeModulus(a.Kind)) {
			c.Gates = removeIndices(c.Gates, i, j)
		} else {
			c.Gates[i].Params = []float64{sum}
			c.Gates = removeIndices(c.Gates, j)
		}
		merged++
	}
}

// mergeModulus returns the period at which the merged family is the
// identity: 2π for rotations (up to global phase for half-angle kinds) and
// 2π for phases.
func mergeModulus(k quantum.Kind) float64 { return 2 * math.Pi }

func isTwoPiMultiple(angle, modulus float64) bool {
	r := math.Mod(angle, modulus)
	if r < 0 {
		r += modulus
	}
	return r < angleTolerance || modulus-r < angleTolerance
}

func findMergePair(gates []quantum.Gate) (int, int) {
	for i := 0; i < len(gates); i++ {
		a := gates[i]
		axisA, ok := quantum.MergeAxis(a.Kind)
		if !ok {
			continue
		}
		for j := i + 1; j < len(gates); j++ {
			b := gates[j]
			if !a.SameQubits(b) {
				if b.SharesQubit(a) && !commutes(a, b) {
					break
				}
				continue
			}
			axisB, ok := quantum.MergeAxis(b.Kind)
			if ok && axisA == axisB && interveningCommute(gates, i, j) {
				return i, j
			}
			break
		}
	}
	return -1, -1
}

// commutePass bubbles gates left past commuting neighbors when that moves
// them toward other gates on the same qubit tuple, exposing cancellation and
// merge opportunities. Each gate moves at most W positions per pass, where
// W ≥ the qubit count, which bounds the pass even on pathological input.
// Returns the number of swaps performed.
func commutePass(c *quantum.Circuit) int {
	w := c.NumQubits
	if w < 8 {
		w = 8
	}
	swaps := 0
	for i := 1; i < len(c.Gates); i++ {
		moved := 0
		for pos := i; pos > 0 && moved < w; pos-- {
			prev, cur := c.Gates[pos-1], c.Gates[pos]
			if !commutes(prev, cur) {
				break
			}
			if !wantsLeft(c.Gates, pos) {
				break
			}
			c.Gates[pos-1], c.Gates[pos] = cur, prev
			moved++
			swaps++
		}
	}
	return swaps
}

// wantsLeft reports whether moving the gate at pos one slot left brings it
// adjacent-or-closer to an earlier gate on the same qubit tuple that it
// could cancel or merge with.
func wantsLeft(gates []quantum.Gate, pos int) bool {
	g := gates[pos]
	for k := pos - 2; k >= 0; k-- {
		e := gates[k]
		if !e.SharesQubit(g) {
			continue
		}
		if !e.SameQubits(g) {
			return false
		}
		if quantum.Cancels(e.Kind, g.Kind) && e.SameParams(g, paramTolerance) {
			return true
		}
		axisE, okE := quantum.MergeAxis(e.Kind)
		axisG, okG := quantum.MergeAxis(g.Kind)
		return okE && okG && axisE == axisG
	}
	return false
}
