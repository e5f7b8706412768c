package quantum

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ValidationError reports a structurally invalid gate or circuit: qubit out
// of range, arity mismatch, non-unitary custom matrix, dimension mismatch.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Gate is a single operation in a circuit: a kind, its qubit operands and
// real parameters. Meta kinds use the extra fields: Cbit for measurements,
// CondMask/CondValue/Inner for classical conditions, Name/Matrix for custom
// unitaries.
type Gate struct {
	Kind   Kind
	Qubits []int
	Params []float64

	// Cbit is the classical destination of a measurement, -1 otherwise.
	Cbit int

	// Classical condition: the gate applies when the cbit register masked
	// with CondMask equals CondValue. Inner is the guarded gate.
	CondMask  uint64
	CondValue uint64
	Inner     *Gate

	// Custom unitary payload.
	Name   string
	Matrix *Matrix
}

// NewGate builds a validated standard gate.
func NewGate(kind Kind, qubits []int, params []float64) (Gate, error) {
	g := Gate{Kind: kind, Qubits: qubits, Params: params, Cbit: -1}
	if kind == KindMeasure || kind == KindConditional || kind == KindCustom {
		return Gate{}, validationf("gate %s requires its dedicated constructor", kind)
	}
	if err := g.validateShape(); err != nil {
		return Gate{}, err
	}
	return g, nil
}

// NewMeasure builds a measurement of qubit into cbit.
func NewMeasure(qubit, cbit int) (Gate, error) {
	if qubit < 0 {
		return Gate{}, validationf("measure: negative qubit %d", qubit)
	}
	if cbit < 0 {
		return Gate{}, validationf("measure: negative cbit %d", cbit)
	}
	return Gate{Kind: KindMeasure, Qubits: []int{qubit}, Cbit: cbit}, nil
}

// NewBarrier builds a barrier over the given qubits. An empty list means all
// qubits of the circuit.
func NewBarrier(qubits []int) Gate {
	return Gate{Kind: KindBarrier, Qubits: qubits, Cbit: -1}
}

// NewConditional wraps inner so that it applies only when the classical
// register masked with mask equals value.
func NewConditional(inner Gate, mask, value uint64) (Gate, error) {
	if mask == 0 {
		return Gate{}, validationf("conditional: empty cbit mask")
	}
	switch inner.Kind {
	case KindConditional, KindBarrier, KindMeasure:
		return Gate{}, validationf("conditional: cannot guard %s", inner.Kind)
	}
	in := inner
	return Gate{
		Kind:      KindConditional,
		Qubits:    append([]int(nil), inner.Qubits...),
		Cbit:      -1,
		CondMask:  mask,
		CondValue: value,
		Inner:     &in,
	}, nil
}

// NewCustom builds a named k-qubit gate from an explicit unitary. The matrix
// dimension must equal 2^k and the matrix must be unitary within
// UnitaryTolerance; both are checked here, at insertion.
func NewCustom(name string, qubits []int, m *Matrix) (Gate, error) {
	if len(qubits) == 0 {
		return Gate{}, validationf("custom gate %q: no qubits", name)
	}
	if err := distinctQubits(qubits); err != nil {
		return Gate{}, err
	}
	want := 1 << len(qubits)
	if m == nil || m.N != want {
		got := 0
		if m != nil {
			got = m.N
		}
		return Gate{}, validationf("custom gate %q: dimension mismatch: want %d, got %d", name, want, got)
	}
	if !m.IsUnitary(UnitaryTolerance) {
		return Gate{}, validationf("custom gate %q: matrix is not unitary", name)
	}
	return Gate{Kind: KindCustom, Qubits: qubits, Name: name, Matrix: m.Clone(), Cbit: -1}, nil
}

func distinctQubits(qubits []int) error {
	for i, q := range qubits {
		if q < 0 {
			return validationf("negative qubit index %d", q)
		}
		for _, p := range qubits[:i] {
			if p == q {
				return validationf("duplicate qubit index %d", q)
			}
		}
	}
	return nil
}

func (g *Gate) validateShape() error {
	if err := distinctQubits(g.Qubits); err != nil {
		return errors.Wrapf(err, "gate %s", g.Kind)
	}
	if a := g.Kind.Arity(); a > 0 && len(g.Qubits) != a {
		return validationf("gate %s wants %d qubits, got %d", g.Kind, a, len(g.Qubits))
	}
	if n := g.Kind.NumParams(); len(g.Params) != n {
		return validationf("gate %s wants %d params, got %d", g.Kind, n, len(g.Params))
	}
	return nil
}

// Touches reports whether the gate references qubit q.
func (g Gate) Touches(q int) bool {
	for _, b := range g.Qubits {
		if b == q {
			return true
		}
	}
	return false
}

// SharesQubit reports whether two gates act on at least one common qubit.
func (g Gate) SharesQubit(other Gate) bool {
	for _, q := range g.Qubits {
		if other.Touches(q) {
			return true
		}
	}
	return false
}

// SameQubits reports exact qubit-list equality, order included. Two-qubit
// cancellation matches on this, never on the unordered set.
func (g Gate) SameQubits(other Gate) bool {
	if len(g.Qubits) != len(other.Qubits) {
		return false
	}
	for i := range g.Qubits {
		if g.Qubits[i] != other.Qubits[i] {
			return false
		}
	}
	return true
}

// SameParams reports element-wise parameter equality within tol.
func (g Gate) SameParams(other Gate, tol float64) bool {
	if len(g.Params) != len(other.Params) {
		return false
	}
	for i := range g.Params {
		d := g.Params[i] - other.Params[i]
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}

// UnitaryMatrix returns the matrix realizing the gate, synthesized from the
// kind for standard gates or the stored payload for customs.
func (g Gate) UnitaryMatrix() (*Matrix, error) {
	if g.Kind == KindCustom {
		return g.Matrix, nil
	}
	return KindMatrix(g.Kind, g.Params)
}

// Inverse returns the adjoint gate acting on the same qubits. Self-inverse
// kinds return themselves; rotations negate their angles; customs return
// the dagger matrix. Meta kinds have no inverse.
func (g Gate) Inverse() (Gate, error) {
	inv := g
	inv.Qubits = append([]int(nil), g.Qubits...)
	inv.Params = append([]float64(nil), g.Params...)
	switch g.Kind {
	case KindX, KindY, KindZ, KindH, KindCNOT, KindCZ, KindSWAP, KindCCX, KindCCZ, KindCSWAP:
		return inv, nil
	case KindS:
		inv.Kind = KindSdg
		return inv, nil
	case KindSdg:
		inv.Kind = KindS
		return inv, nil
	case KindT:
		inv.Kind = KindTdg
		return inv, nil
	case KindTdg:
		inv.Kind = KindT
		return inv, nil
	case KindRX, KindRY, KindRZ, KindP, KindU1, KindCP, KindCRX, KindCRY, KindCRZ, KindCU1:
		inv.Params[0] = -g.Params[0]
		return inv, nil
	case KindU2:
		// u2(φ,λ)⁻¹ = u3(-π/2, -λ, -φ)
		inv.Kind = KindU3
		inv.Params = []float64{-piHalf, -g.Params[1], -g.Params[0]}
		return inv, nil
	case KindU3:
		inv.Params = []float64{-g.Params[0], -g.Params[2], -g.Params[1]}
		return inv, nil
	case KindCU2:
		inv.Kind = KindCU3
		inv.Params = []float64{-piHalf, -g.Params[1], -g.Params[0]}
		return inv, nil
	case KindCU3:
		inv.Params = []float64{-g.Params[0], -g.Params[2], -g.Params[1]}
		return inv, nil
	case KindISWAP, KindSqrtISWAP:
		m, err := KindMatrix(g.Kind, nil)
		if err != nil {
			return Gate{}, err
		}
		return NewCustom(g.Kind.String()+"_dg", inv.Qubits, m.Dagger())
	case KindCustom:
		return NewCustom(g.Name+"_dg", inv.Qubits, g.Matrix.Dagger())
	}
	return Gate{}, validationf("gate %s has no inverse", g.Kind)
}

// String renders the gate in QASM-ish notation, for diagnostics and logs.
func (g Gate) String() string {
	var sb strings.Builder
	if g.Kind == KindConditional {
		fmt.Fprintf(&sb, "if(c&%#x==%d) %s", g.CondMask, g.CondValue, g.Inner.String())
		return sb.String()
	}
	name := g.Kind.String()
	if g.Kind == KindCustom {
		name = g.Name
	}
	sb.WriteString(name)
	if len(g.Params) > 0 {
		sb.WriteByte('(')
		for i, p := range g.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%g", p)
		}
		sb.WriteByte(')')
	}
	for i, q := range g.Qubits {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "q[%d]", q)
	}
	if g.Kind == KindMeasure {
		fmt.Fprintf(&sb, " -> c[%d]", g.Cbit)
	}
	return sb.String()
}
