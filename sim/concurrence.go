package sim

import (
	"math"
	"math/cmplx"
	"sort"

	"qasmsim/quantum"
)

// ReducedDensity traces every qubit except q1 and q2 out of the state,
// returning the 4×4 two-qubit density matrix. Row index convention matches
// the engine: q1 is the least-significant sub-index bit.
func ReducedDensity(s *State, q1, q2 int) (*quantum.Matrix, error) {
	if err := s.checkQubit(q1); err != nil {
		return nil, err
	}
	if err := s.checkQubit(q2); err != nil {
		return nil, err
	}

	rho := quantum.NewMatrix(4)
	b1 := 1 << uint(q1)
	b2 := 1 << uint(q2)
	mask := b1 | b2
	var v [4]complex128
	for base := range s.amps {
		if base&mask != 0 {
			continue
		}
		v[0] = s.amps[base]
		v[1] = s.amps[base|b1]
		v[2] = s.amps[base|b2]
		v[3] = s.amps[base|b1|b2]
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				rho.Data[r*4+c] += v[r] * cmplx.Conj(v[c])
			}
		}
	}
	return rho, nil
}

// Concurrence computes the Wootters concurrence between two qubits: with
// ρ̃ = (Y⊗Y) ρ* (Y⊗Y) and λ₁ ≥ … ≥ λ₄ the square roots of the eigenvalues
// of √ρ·ρ̃·√ρ, C = max(0, λ₁ − λ₂ − λ₃ − λ₄). Zero for product states, one
// for maximally entangled pairs.
func Concurrence(s *State, q1, q2 int) (float64, error) {
	rho, err := ReducedDensity(s, q1, q2)
	if err != nil {
		return 0, err
	}

	y := quantum.MustKindMatrix(quantum.KindY, nil)
	yy := y.Tensor(y)
	rhoConj := quantum.NewMatrix(4)
	for i, v := range rho.Data {
		rhoConj.Data[i] = cmplx.Conj(v)
	}
	rhoTilde := yy.Mul(rhoConj).Mul(yy)

	// √ρ from the spectral decomposition; ρ is Hermitian PSD so the
	// Hermitian form √ρ·ρ̃·√ρ shares its spectrum with ρρ̃ and keeps the
	// eigensolve accurate for degenerate eigenvalues.
	evs, vecs := hermitianEigen(rho)
	sqrtRho := quantum.NewMatrix(4)
	for k := 0; k < 4; k++ {
		ev := evs[k]
		if ev < 0 {
			ev = 0
		}
		root := complex(math.Sqrt(ev), 0)
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				sqrtRho.Data[r*4+c] += root * vecs.At(r, k) * cmplx.Conj(vecs.At(c, k))
			}
		}
	}

	h := sqrtRho.Mul(rhoTilde).Mul(sqrtRho)
	hevs, _ := hermitianEigen(h)

	roots := make([]float64, 0, 4)
	for _, ev := range hevs {
		if ev < 0 {
			ev = 0
		}
		roots = append(roots, math.Sqrt(ev))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(roots)))

	c := roots[0] - roots[1] - roots[2] - roots[3]
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c, nil
}

// hermitianEigen diagonalizes a Hermitian matrix by cyclic complex Jacobi
// rotations, returning the eigenvalues and the unitary V with A = V D V†.
// Column k of V is the eigenvector for eigenvalue k.
func hermitianEigen(a *quantum.Matrix) ([]float64, *quantum.Matrix) {
	n := a.N
	m := a.Clone()
	v := quantum.Identity(n)

	for iter := 0; iter < 256; iter++ {
		// Largest off-diagonal element.
		off := 0.0
		p, q := 0, 1
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if mag := cmplx.Abs(m.At(i, j)); mag > off {
					off = mag
					p, q = i, j
				}
			}
		}
		if off < 1e-15 {
			break
		}

		g := m.At(p, q)
		phi := g / complex(cmplx.Abs(g), 0)
		alpha := real(m.At(p, p))
		beta := real(m.At(q, q))
		tau := (beta - alpha) / (2 * cmplx.Abs(g))
		var t float64
		if tau >= 0 {
			t = 1 / (tau + math.Sqrt(1+tau*tau))
		} else {
			t = -1 / (-tau + math.Sqrt(1+tau*tau))
		}
		c := 1 / math.Sqrt(1+t*t)
		s := t * c

		// Unitary plane rotation absorbing the phase of the pivot.
		w := quantum.Identity(n)
		w.Set(p, p, complex(c, 0))
		w.Set(p, q, complex(s, 0))
		w.Set(q, p, complex(-s, 0)*cmplx.Conj(phi))
		w.Set(q, q, complex(c, 0)*cmplx.Conj(phi))

		m = w.Dagger().Mul(m).Mul(w)
		v = v.Mul(w)
	}

	evs := make([]float64, n)
	for i := range evs {
		evs[i] = real(m.At(i, i))
	}
	return evs, v
}
