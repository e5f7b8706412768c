package quantum

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// UnitaryTolerance is the largest deviation from U†U = I accepted when a
// custom matrix is inserted into a circuit.
const UnitaryTolerance = 1e-9

const piHalf = math.Pi / 2

// Matrix is a dense square complex matrix stored row-major. Amplitude pairs
// stay interleaved as complex128 values; gate kernels index the raw slice.
type Matrix struct {
	N    int
	Data []complex128
}

// NewMatrix returns an N×N zero matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{N: n, Data: make([]complex128, n*n)}
}

// Identity returns the N×N identity.
func Identity(n int) *Matrix {
	m := NewMatrix(n)
	for i := 0; i < n; i++ {
		m.Data[i*n+i] = 1
	}
	return m
}

// At returns the element at row r, column c.
func (m *Matrix) At(r, c int) complex128 { return m.Data[r*m.N+c] }

// Set assigns the element at row r, column c.
func (m *Matrix) Set(r, c int, v complex128) { m.Data[r*m.N+c] = v }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.N)
	copy(out.Data, m.Data)
	return out
}

// Mul returns m·other.
func (m *Matrix) Mul(other *Matrix) *Matrix {
	n := m.N
	out := NewMatrix(n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			a := m.Data[i*n+k]
			if a == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.Data[i*n+j] += a * other.Data[k*n+j]
			}
		}
	}
	return out
}

// Dagger returns the conjugate transpose.
func (m *Matrix) Dagger() *Matrix {
	n := m.N
	out := NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Data[j*n+i] = cmplx.Conj(m.Data[i*n+j])
		}
	}
	return out
}

// Tensor returns m ⊗ other.
func (m *Matrix) Tensor(other *Matrix) *Matrix {
	a, b := m.N, other.N
	out := NewMatrix(a * b)
	for i := 0; i < a; i++ {
		for j := 0; j < a; j++ {
			v := m.Data[i*a+j]
			if v == 0 {
				continue
			}
			for k := 0; k < b; k++ {
				for l := 0; l < b; l++ {
					out.Data[(i*b+k)*out.N+(j*b+l)] = v * other.Data[k*b+l]
				}
			}
		}
	}
	return out
}

// ApproxEqual reports element-wise equality within tol.
func (m *Matrix) ApproxEqual(other *Matrix, tol float64) bool {
	if m.N != other.N {
		return false
	}
	for i := range m.Data {
		if cmplx.Abs(m.Data[i]-other.Data[i]) > tol {
			return false
		}
	}
	return true
}

// IsUnitary reports whether U†U = I within tol.
func (m *Matrix) IsUnitary(tol float64) bool {
	return m.Dagger().Mul(m).ApproxEqual(Identity(m.N), tol)
}

// matrix2 builds a 2×2 matrix from row-major entries.
func matrix2(a, b, c, d complex128) *Matrix {
	return &Matrix{N: 2, Data: []complex128{a, b, c, d}}
}

// Single-qubit matrix builders. Rotations follow the half-angle convention;
// RZ carries the symmetric global phase diag(e^{-iθ/2}, e^{iθ/2}).
func matX() *Matrix { return matrix2(0, 1, 1, 0) }
func matY() *Matrix { return matrix2(0, -1i, 1i, 0) }
func matZ() *Matrix { return matrix2(1, 0, 0, -1) }
func matH() *Matrix {
	h := complex(1/math.Sqrt2, 0)
	return matrix2(h, h, h, -h)
}
func matS() *Matrix   { return matrix2(1, 0, 0, 1i) }
func matSdg() *Matrix { return matrix2(1, 0, 0, -1i) }
func matT() *Matrix   { return matrix2(1, 0, 0, cmplx.Exp(complex(0, math.Pi/4))) }
func matTdg() *Matrix { return matrix2(1, 0, 0, cmplx.Exp(complex(0, -math.Pi/4))) }

func matRX(theta float64) *Matrix {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return matrix2(c, js, js, c)
}

func matRY(theta float64) *Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return matrix2(c, -s, s, c)
}

func matRZ(theta float64) *Matrix {
	return matrix2(cmplx.Exp(complex(0, -theta/2)), 0, 0, cmplx.Exp(complex(0, theta/2)))
}

func matP(lambda float64) *Matrix {
	return matrix2(1, 0, 0, cmplx.Exp(complex(0, lambda)))
}

func matU2(phi, lambda float64) *Matrix {
	h := complex(1/math.Sqrt2, 0)
	return matrix2(
		h, -h*cmplx.Exp(complex(0, lambda)),
		h*cmplx.Exp(complex(0, phi)), h*cmplx.Exp(complex(0, phi+lambda)),
	)
}

func matU3(theta, phi, lambda float64) *Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return matrix2(
		c, -s*cmplx.Exp(complex(0, lambda)),
		s*cmplx.Exp(complex(0, phi)), c*cmplx.Exp(complex(0, phi+lambda)),
	)
}

// controlled embeds a 2×2 target unitary into a 4×4 two-qubit matrix.
//
// Sub-index convention throughout the engine: for a gate with qubit list
// [a, b], a is the least-significant bit of the matrix index. Controlled
// kinds put the control first, so the control is bit 0 and the target bit 1:
// rows with bit 0 clear pass through, rows with bit 0 set apply U to bit 1.
func controlled(u *Matrix) *Matrix {
	m := NewMatrix(4)
	m.Set(0, 0, 1)
	m.Set(2, 2, 1)
	for tOut := 0; tOut < 2; tOut++ {
		for tIn := 0; tIn < 2; tIn++ {
			m.Set(tOut*2+1, tIn*2+1, u.At(tOut, tIn))
		}
	}
	return m
}

func matSWAP() *Matrix {
	m := Identity(4)
	m.Set(1, 1, 0)
	m.Set(2, 2, 0)
	m.Set(1, 2, 1)
	m.Set(2, 1, 1)
	return m
}

func matISWAP() *Matrix {
	m := Identity(4)
	m.Set(1, 1, 0)
	m.Set(2, 2, 0)
	m.Set(1, 2, 1i)
	m.Set(2, 1, 1i)
	return m
}

func matSqrtISWAP() *Matrix {
	m := Identity(4)
	h := complex(1/math.Sqrt2, 0)
	ih := complex(0, 1/math.Sqrt2)
	m.Set(1, 1, h)
	m.Set(2, 2, h)
	m.Set(1, 2, ih)
	m.Set(2, 1, ih)
	return m
}

// matCCX swaps |011⟩ and |111⟩: both controls (bits 0, 1) set flip the
// target (bit 2).
func matCCX() *Matrix {
	m := Identity(8)
	m.Set(3, 3, 0)
	m.Set(7, 7, 0)
	m.Set(3, 7, 1)
	m.Set(7, 3, 1)
	return m
}

func matCCZ() *Matrix {
	m := Identity(8)
	m.Set(7, 7, -1)
	return m
}

// matCSWAP swaps bits 1 and 2 when the control (bit 0) is set:
// |011⟩ ↔ |101⟩.
func matCSWAP() *Matrix {
	m := Identity(8)
	m.Set(3, 3, 0)
	m.Set(5, 5, 0)
	m.Set(3, 5, 1)
	m.Set(5, 3, 1)
	return m
}

// MustKindMatrix is KindMatrix for call sites whose kind and parameter
// count are static; it panics on the errors those sites cannot produce.
func MustKindMatrix(k Kind, params []float64) *Matrix {
	m, err := KindMatrix(k, params)
	if err != nil {
		panic(err)
	}
	return m
}

// KindMatrix synthesizes the canonical matrix for a unitary kind. Controlled
// forms embed the target unitary per the sub-index convention above. Returns
// an error for meta kinds and for parameter-count mismatches.
func KindMatrix(k Kind, params []float64) (*Matrix, error) {
	if !k.IsUnitary() || k == KindCustom {
		return nil, errors.Errorf("gate %s has no canonical matrix", k)
	}
	if len(params) != k.NumParams() {
		return nil, errors.Errorf("gate %s wants %d params, got %d", k, k.NumParams(), len(params))
	}
	switch k {
	case KindX:
		return matX(), nil
	case KindY:
		return matY(), nil
	case KindZ:
		return matZ(), nil
	case KindH:
		return matH(), nil
	case KindS:
		return matS(), nil
	case KindSdg:
		return matSdg(), nil
	case KindT:
		return matT(), nil
	case KindTdg:
		return matTdg(), nil
	case KindRX:
		return matRX(params[0]), nil
	case KindRY:
		return matRY(params[0]), nil
	case KindRZ:
		return matRZ(params[0]), nil
	case KindP, KindU1:
		return matP(params[0]), nil
	case KindU2:
		return matU2(params[0], params[1]), nil
	case KindU3:
		return matU3(params[0], params[1], params[2]), nil
	case KindCNOT:
		return controlled(matX()), nil
	case KindCZ:
		return controlled(matZ()), nil
	case KindSWAP:
		return matSWAP(), nil
	case KindISWAP:
		return matISWAP(), nil
	case KindSqrtISWAP:
		return matSqrtISWAP(), nil
	case KindCP, KindCU1:
		return controlled(matP(params[0])), nil
	case KindCRX:
		return controlled(matRX(params[0])), nil
	case KindCRY:
		return controlled(matRY(params[0])), nil
	case KindCRZ:
		return controlled(matRZ(params[0])), nil
	case KindCU2:
		return controlled(matU2(params[0], params[1])), nil
	case KindCU3:
		return controlled(matU3(params[0], params[1], params[2])), nil
	case KindCCX:
		return matCCX(), nil
	case KindCCZ:
		return matCCZ(), nil
	case KindCSWAP:
		return matCSWAP(), nil
	}
	return nil, errors.Errorf("gate %s has no canonical matrix", k)
}
