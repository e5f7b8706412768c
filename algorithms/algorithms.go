// Package algorithms builds circuits for the standard textbook routines:
// Bell pairs, GHZ chains, the quantum Fourier transform and its inverse,
// Grover search, amplitude amplification and teleportation. Builders return
// unfrozen circuits so callers can append measurements before freezing.
package algorithms

import (
	"math"

	"github.com/pkg/errors"

	"qasmsim/quantum"
)

// Bell returns the two-qubit Bell-pair circuit (|00⟩ + |11⟩)/√2.
func Bell() (*quantum.Circuit, error) {
	c, err := quantum.NewCircuit(2, 2)
	if err != nil {
		return nil, err
	}
	if err := c.Add(quantum.KindH, []int{0}); err != nil {
		return nil, err
	}
	if err := c.Add(quantum.KindCNOT, []int{0, 1}); err != nil {
		return nil, err
	}
	return c, nil
}

// GHZ returns the n-qubit GHZ chain (|0…0⟩ + |1…1⟩)/√2.
func GHZ(n int) (*quantum.Circuit, error) {
	if n < 2 {
		return nil, errors.Errorf("ghz needs at least 2 qubits, got %d", n)
	}
	c, err := quantum.NewCircuit(n, n)
	if err != nil {
		return nil, err
	}
	if err := c.Add(quantum.KindH, []int{0}); err != nil {
		return nil, err
	}
	for i := 0; i < n-1; i++ {
		if err := c.Add(quantum.KindCNOT, []int{i, i + 1}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// QFT returns the n-qubit quantum Fourier transform: per qubit a Hadamard
// followed by controlled phases halving at each distance, then the
// bit-reversal swaps.
func QFT(n int) (*quantum.Circuit, error) {
	c, err := quantum.NewCircuit(n, 0)
	if err != nil {
		return nil, err
	}
	if err := appendQFT(c, false); err != nil {
		return nil, err
	}
	return c, nil
}

// InverseQFT returns the adjoint of QFT(n): the same gates reversed with
// negated phases.
func InverseQFT(n int) (*quantum.Circuit, error) {
	c, err := quantum.NewCircuit(n, 0)
	if err != nil {
		return nil, err
	}
	if err := appendQFT(c, true); err != nil {
		return nil, err
	}
	return c, nil
}

func appendQFT(c *quantum.Circuit, inverse bool) error {
	n := c.NumQubits

	type step struct {
		kind   quantum.Kind
		qubits []int
		params []float64
	}
	var steps []step
	for i := 0; i < n; i++ {
		steps = append(steps, step{kind: quantum.KindH, qubits: []int{i}})
		for j := i + 1; j < n; j++ {
			angle := math.Pi / float64(int(1)<<uint(j-i))
			steps = append(steps, step{kind: quantum.KindCP, qubits: []int{j, i}, params: []float64{angle}})
		}
	}
	for i := 0; i < n/2; i++ {
		steps = append(steps, step{kind: quantum.KindSWAP, qubits: []int{i, n - 1 - i}})
	}

	if inverse {
		for i := len(steps) - 1; i >= 0; i-- {
			s := steps[i]
			params := s.params
			if len(params) > 0 {
				params = []float64{-params[0]}
			}
			if err := c.Add(s.kind, s.qubits, params...); err != nil {
				return err
			}
		}
		return nil
	}
	for _, s := range steps {
		if err := c.Add(s.kind, s.qubits, s.params...); err != nil {
			return err
		}
	}
	return nil
}

// phaseOracle builds the diagonal ±1 matrix flipping the sign of every
// basis state oracle marks, returning it with the marked-state count.
func phaseOracle(dim int, oracle func(int) bool) (*quantum.Matrix, int) {
	marked := 0
	m := quantum.Identity(dim)
	for i := 0; i < dim; i++ {
		if oracle(i) {
			m.Set(i, i, -1)
			marked++
		}
	}
	return m, marked
}

// zeroFlip is the phase flip about |0…0⟩ at the heart of the diffusion
// operator.
func zeroFlip(dim int) *quantum.Matrix {
	m := quantum.Identity(dim)
	m.Set(0, 0, -1)
	return m
}

// Grover returns a Grover search over n qubits with a phase oracle marking
// the basis states for which oracle(index) is true. iterations <= 0 picks
// the optimal ⌊π/4·√(N/M)⌋. Grover is amplitude amplification over the
// uniform superposition.
func Grover(n int, oracle func(int) bool, iterations int) (*quantum.Circuit, error) {
	if n < 1 {
		return nil, errors.Errorf("grover needs at least 1 qubit, got %d", n)
	}
	if n > 16 {
		return nil, errors.Errorf("grover oracle matrix over %d qubits is impractical", n)
	}
	dim := 1 << uint(n)

	if iterations <= 0 {
		_, marked := phaseOracle(dim, oracle)
		if marked == 0 {
			return nil, errors.New("grover oracle marks no states")
		}
		iterations = int(math.Floor(math.Pi / 4 * math.Sqrt(float64(dim)/float64(marked))))
		if iterations < 1 {
			iterations = 1
		}
	}

	prep, err := quantum.NewCircuit(n, n)
	if err != nil {
		return nil, err
	}
	for q := 0; q < n; q++ {
		if err := prep.Add(quantum.KindH, []int{q}); err != nil {
			return nil, err
		}
	}
	return AmplitudeAmplification(prep, oracle, iterations)
}

// AmplitudeAmplification generalizes Grover to an arbitrary unitary
// state-preparation circuit A: the output runs A once, then iterates the
// operator A·S₀·A†·S_f, where S_f flips the phase of oracle-marked states
// and S₀ flips the phase of |0…0⟩. The preparation circuit must contain
// only unitary gates.
func AmplitudeAmplification(prep *quantum.Circuit, oracle func(int) bool, iterations int) (*quantum.Circuit, error) {
	n := prep.NumQubits
	if n > 16 {
		return nil, errors.Errorf("amplification oracle matrix over %d qubits is impractical", n)
	}
	if iterations < 1 {
		return nil, errors.Errorf("amplification needs at least one iteration, got %d", iterations)
	}
	dim := 1 << uint(n)

	oracleMat, marked := phaseOracle(dim, oracle)
	if marked == 0 {
		return nil, errors.New("amplification oracle marks no states")
	}
	flip0 := zeroFlip(dim)

	// A† as the reversed sequence of gate inverses.
	inverse := make([]quantum.Gate, 0, len(prep.Gates))
	for i := len(prep.Gates) - 1; i >= 0; i-- {
		g := prep.Gates[i]
		if !g.Kind.IsUnitary() {
			return nil, errors.Errorf("state preparation must be unitary, found %s at gate %d", g.Kind, i)
		}
		inv, err := g.Inverse()
		if err != nil {
			return nil, errors.Wrapf(err, "inverting gate %d", i)
		}
		inverse = append(inverse, inv)
	}

	allQubits := make([]int, n)
	for i := range allQubits {
		allQubits[i] = i
	}

	c, err := quantum.NewCircuit(n, prep.NumCbits)
	if err != nil {
		return nil, err
	}
	prepare := func(gates []quantum.Gate) error {
		for _, g := range gates {
			if err := c.Append(g); err != nil {
				return err
			}
		}
		return nil
	}

	if err := prepare(prep.Gates); err != nil {
		return nil, err
	}
	for it := 0; it < iterations; it++ {
		if err := c.AddCustom("oracle", allQubits, oracleMat); err != nil {
			return nil, err
		}
		if err := prepare(inverse); err != nil {
			return nil, err
		}
		if err := c.AddCustom("flip0", allQubits, flip0); err != nil {
			return nil, err
		}
		if err := prepare(prep.Gates); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Teleportation returns the three-qubit teleportation skeleton: the state
// on qubit 0 transfers to qubit 2 through a shared Bell pair, mid-circuit
// measurement and classically-conditioned corrections. Cbit 0 (qubit 0)
// selects the Z correction, cbit 1 (qubit 1) the X correction.
func Teleportation() (*quantum.Circuit, error) {
	c, err := quantum.NewCircuit(3, 2)
	if err != nil {
		return nil, err
	}
	steps := []struct {
		kind   quantum.Kind
		qubits []int
	}{
		{quantum.KindH, []int{1}},
		{quantum.KindCNOT, []int{1, 2}},
		{quantum.KindCNOT, []int{0, 1}},
		{quantum.KindH, []int{0}},
	}
	for _, s := range steps {
		if err := c.Add(s.kind, s.qubits); err != nil {
			return nil, err
		}
	}
	if err := c.AddMeasure(0, 0); err != nil {
		return nil, err
	}
	if err := c.AddMeasure(1, 1); err != nil {
		return nil, err
	}

	x, err := quantum.NewGate(quantum.KindX, []int{2}, nil)
	if err != nil {
		return nil, err
	}
	if err := c.AddConditional(x, 0b10, 0b10); err != nil {
		return nil, err
	}
	z, err := quantum.NewGate(quantum.KindZ, []int{2}, nil)
	if err != nil {
		return nil, err
	}
	if err := c.AddConditional(z, 0b01, 0b01); err != nil {
		return nil, err
	}
	return c, nil
}
