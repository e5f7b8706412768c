package sim

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"

	"qasmsim/quantum"
)

// UnderflowTolerance is the probability below which a measurement branch is
// treated as numerically empty.
const UnderflowTolerance = 1e-12

// State is a dense vector of 2^n complex amplitudes over n qubits. Qubit 0
// is the least-significant bit of every index. A state is exclusively owned
// by one engine at a time; snapshots are independent copies.
type State struct {
	numQubits int
	amps      []complex128
}

// NewState returns |0…0⟩ over numQubits qubits.
func NewState(numQubits int) (*State, error) {
	if numQubits < 1 {
		return nil, errors.Wrapf(ErrResource, "state needs at least one qubit, got %d", numQubits)
	}
	if numQubits > quantum.MaxQubits {
		return nil, errors.Wrapf(ErrResource, "state width %d exceeds the %d-qubit limit", numQubits, quantum.MaxQubits)
	}
	amps := make([]complex128, 1<<uint(numQubits))
	amps[0] = 1
	return &State{numQubits: numQubits, amps: amps}, nil
}

// NumQubits returns the state width.
func (s *State) NumQubits() int { return s.numQubits }

// Len returns the amplitude count, 2^n.
func (s *State) Len() int { return len(s.amps) }

// Amplitude returns ψ[i].
func (s *State) Amplitude(i int) complex128 { return s.amps[i] }

// Amplitudes exposes the raw amplitude slice. Callers must not hold the
// slice across engine operations; it aliases live state.
func (s *State) Amplitudes() []complex128 { return s.amps }

// Clone returns an independent copy.
func (s *State) Clone() *State {
	amps := make([]complex128, len(s.amps))
	copy(amps, s.amps)
	return &State{numQubits: s.numQubits, amps: amps}
}

// SetZero returns the state to |0…0⟩ in place.
func (s *State) SetZero() {
	for i := range s.amps {
		s.amps[i] = 0
	}
	s.amps[0] = 1
}

// Norm returns Σ|ψᵢ|².
func (s *State) Norm() float64 {
	total := 0.0
	for _, a := range s.amps {
		total += real(a)*real(a) + imag(a)*imag(a)
	}
	return total
}

func (s *State) checkQubit(q int) error {
	if q < 0 || q >= s.numQubits {
		return errors.Wrapf(ErrQubitOutOfRange, "qubit %d, width %d", q, s.numQubits)
	}
	return nil
}

// Apply1 applies a 2×2 unitary to qubit q: every index pair differing only
// in bit q transforms through U in place. O(2^n).
func (s *State) Apply1(q int, u *quantum.Matrix) error {
	if err := s.checkQubit(q); err != nil {
		return err
	}
	if u.N != 2 {
		return errors.Wrapf(ErrDimensionMismatch, "apply1 wants 2x2, got %dx%d", u.N, u.N)
	}
	bit := 1 << uint(q)
	u00, u01 := u.Data[0], u.Data[1]
	u10, u11 := u.Data[2], u.Data[3]
	for i := range s.amps {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a, b := s.amps[i], s.amps[j]
		s.amps[i] = u00*a + u01*b
		s.amps[j] = u10*a + u11*b
	}
	return nil
}

// Apply2 applies a 4×4 unitary to the qubit pair (q1, q2) with q1 as the
// least-significant sub-index of the matrix.
func (s *State) Apply2(q1, q2 int, u *quantum.Matrix) error {
	if err := s.checkQubit(q1); err != nil {
		return err
	}
	if err := s.checkQubit(q2); err != nil {
		return err
	}
	if q1 == q2 {
		return errors.Wrapf(ErrQubitOutOfRange, "apply2 qubits coincide: %d", q1)
	}
	if u.N != 4 {
		return errors.Wrapf(ErrDimensionMismatch, "apply2 wants 4x4, got %dx%d", u.N, u.N)
	}
	b1 := 1 << uint(q1)
	b2 := 1 << uint(q2)
	mask := b1 | b2
	var idx [4]int
	var vec [4]complex128
	for i := range s.amps {
		if i&mask != 0 {
			continue
		}
		idx[0] = i
		idx[1] = i | b1
		idx[2] = i | b2
		idx[3] = i | b1 | b2
		for t := 0; t < 4; t++ {
			vec[t] = s.amps[idx[t]]
		}
		for r := 0; r < 4; r++ {
			var acc complex128
			row := u.Data[r*4 : r*4+4]
			for t := 0; t < 4; t++ {
				acc += row[t] * vec[t]
			}
			s.amps[idx[r]] = acc
		}
	}
	return nil
}

// Apply3 applies an 8×8 unitary to (q1, q2, q3), q1 least significant.
func (s *State) Apply3(q1, q2, q3 int, u *quantum.Matrix) error {
	if u.N != 8 {
		return errors.Wrapf(ErrDimensionMismatch, "apply3 wants 8x8, got %dx%d", u.N, u.N)
	}
	return s.ApplyK([]int{q1, q2, q3}, u)
}

// ApplyK applies a 2^k × 2^k unitary to an arbitrary distinct qubit list,
// qubits[0] least significant. Matrix unitarity is the caller's contract
// (circuit insertion already verified customs); dimensions are checked
// here.
func (s *State) ApplyK(qubits []int, u *quantum.Matrix) error {
	k := len(qubits)
	if k == 0 {
		return errors.Wrap(ErrDimensionMismatch, "applyk with no qubits")
	}
	for i, q := range qubits {
		if err := s.checkQubit(q); err != nil {
			return err
		}
		for _, p := range qubits[:i] {
			if p == q {
				return errors.Wrapf(ErrQubitOutOfRange, "applyk qubits coincide: %d", q)
			}
		}
	}
	dim := 1 << uint(k)
	if u.N != dim {
		return errors.Wrapf(ErrDimensionMismatch, "applyk wants %dx%d for %d qubits, got %dx%d", dim, dim, k, u.N, u.N)
	}

	mask := 0
	bits := make([]int, k)
	for i, q := range qubits {
		bits[i] = 1 << uint(q)
		mask |= bits[i]
	}

	idx := make([]int, dim)
	vec := make([]complex128, dim)
	for base := range s.amps {
		if base&mask != 0 {
			continue
		}
		for t := 0; t < dim; t++ {
			at := base
			for b := 0; b < k; b++ {
				if t&(1<<uint(b)) != 0 {
					at |= bits[b]
				}
			}
			idx[t] = at
			vec[t] = s.amps[at]
		}
		for r := 0; r < dim; r++ {
			var acc complex128
			row := u.Data[r*dim : (r+1)*dim]
			for t := 0; t < dim; t++ {
				acc += row[t] * vec[t]
			}
			s.amps[idx[r]] = acc
		}
	}
	return nil
}

// Probability returns P(qubit q = value).
func (s *State) Probability(q, value int) (float64, error) {
	if err := s.checkQubit(q); err != nil {
		return 0, err
	}
	bit := 1 << uint(q)
	p1 := 0.0
	for i, a := range s.amps {
		if i&bit != 0 {
			p1 += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	if value == 0 {
		return 1 - p1, nil
	}
	return p1, nil
}

// Probabilities returns |ψᵢ|² for every basis state.
func (s *State) Probabilities() []float64 {
	out := make([]float64, len(s.amps))
	for i, a := range s.amps {
		out[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return out
}

// QubitProbabilities returns the marginal (P0, P1) per qubit in one sweep.
func (s *State) QubitProbabilities() [][2]float64 {
	out := make([][2]float64, s.numQubits)
	for i, a := range s.amps {
		p := real(a)*real(a) + imag(a)*imag(a)
		for q := 0; q < s.numQubits; q++ {
			out[q][i>>uint(q)&1] += p
		}
	}
	return out
}

// MeasureWith collapses qubit q using the uniform draw r ∈ [0,1). The
// surviving branch renormalizes; a branch below UnderflowTolerance is an
// ErrUnderflow.
func (s *State) MeasureWith(q int, r float64) (int, error) {
	p1, err := s.Probability(q, 1)
	if err != nil {
		return 0, err
	}
	outcome := 0
	pOutcome := 1 - p1
	if r < p1 {
		outcome = 1
		pOutcome = p1
	}
	if pOutcome < UnderflowTolerance {
		return 0, errors.Wrapf(ErrUnderflow, "qubit %d outcome %d has probability %.3g", q, outcome, pOutcome)
	}

	bit := 1 << uint(q)
	keep := 0
	if outcome == 1 {
		keep = bit
	}
	norm := complex(math.Sqrt(pOutcome), 0)
	for i := range s.amps {
		if i&bit == keep {
			s.amps[i] /= norm
		} else {
			s.amps[i] = 0
		}
	}
	return outcome, nil
}

// ResetWith returns qubit q to |0⟩: measure with draw r, then flip when the
// outcome was 1. The draw keeps resets reproducible under a fixed seed.
func (s *State) ResetWith(q int, r float64) error {
	outcome, err := s.MeasureWith(q, r)
	if err != nil {
		return errors.Wrap(err, "reset")
	}
	if outcome == 1 {
		return s.Apply1(q, quantum.MustKindMatrix(quantum.KindX, nil))
	}
	return nil
}

// Renormalize rescales the amplitudes to unit norm. Only Kraus application
// calls this (measurement and reset rescale their surviving branch inline);
// unitary gates preserve the norm and renormalizing after them would hide
// bugs.
func (s *State) Renormalize() error {
	n := s.Norm()
	if n < UnderflowTolerance {
		return errors.Wrap(ErrUnderflow, "renormalize on zero state")
	}
	inv := complex(1/math.Sqrt(n), 0)
	for i := range s.amps {
		s.amps[i] *= inv
	}
	return nil
}

// Phase returns arg(ψᵢ).
func (s *State) Phase(i int) float64 { return cmplx.Phase(s.amps[i]) }
