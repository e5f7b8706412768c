package sim

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"qasmsim/quantum"
)

// krausTolerance bounds the completeness check Σ Kᵢ†Kᵢ = I.
const krausTolerance = 1e-9

// NoiseKind names the built-in single-qubit channels.
type NoiseKind int

const (
	NoiseDepolarizing NoiseKind = iota
	NoiseAmplitudeDamping
	NoisePhaseDamping
	NoiseBitFlip
	NoisePhaseFlip
	NoiseBitPhaseFlip
	NoisePauliChannel
	NoiseKraus
)

var noiseNames = map[NoiseKind]string{
	NoiseDepolarizing:     "depolarizing",
	NoiseAmplitudeDamping: "amplitude_damping",
	NoisePhaseDamping:     "phase_damping",
	NoiseBitFlip:          "bit_flip",
	NoisePhaseFlip:        "phase_flip",
	NoiseBitPhaseFlip:     "bit_phase_flip",
	NoisePauliChannel:     "pauli",
	NoiseKraus:            "kraus",
}

func (k NoiseKind) String() string {
	if s, ok := noiseNames[k]; ok {
		return s
	}
	return fmt.Sprintf("noise(%d)", int(k))
}

// NoiseModel is a single-qubit Kraus channel. Built-in kinds expand to
// their canonical operator sets; user-supplied sets are checked for
// completeness at construction.
type NoiseModel struct {
	Kind   NoiseKind
	Params []float64
	ops    []*quantum.Matrix
}

func scaled(m *quantum.Matrix, f float64) *quantum.Matrix {
	out := m.Clone()
	c := complex(f, 0)
	for i := range out.Data {
		out.Data[i] *= c
	}
	return out
}

func mat2(a, b, c, d complex128) *quantum.Matrix {
	return &quantum.Matrix{N: 2, Data: []complex128{a, b, c, d}}
}

// NewNoiseModel builds a built-in channel. Single-parameter kinds take the
// error rate; the Pauli channel takes (px, py, pz).
func NewNoiseModel(kind NoiseKind, params ...float64) (*NoiseModel, error) {
	m := &NoiseModel{Kind: kind, Params: params}

	one := func() (float64, error) {
		if len(params) != 1 {
			return 0, &NoiseError{Msg: fmt.Sprintf("noise %s wants 1 parameter, got %d", kind, len(params))}
		}
		p := params[0]
		if p < 0 || p > 1 {
			return 0, &NoiseError{Msg: fmt.Sprintf("noise %s parameter %g outside [0,1]", kind, p)}
		}
		return p, nil
	}

	idm := quantum.Identity(2)
	x := quantum.MustKindMatrix(quantum.KindX, nil)
	y := quantum.MustKindMatrix(quantum.KindY, nil)
	z := quantum.MustKindMatrix(quantum.KindZ, nil)

	switch kind {
	case NoiseDepolarizing:
		p, err := one()
		if err != nil {
			return nil, err
		}
		m.ops = []*quantum.Matrix{
			scaled(idm, math.Sqrt(1-p)),
			scaled(x, math.Sqrt(p/3)),
			scaled(y, math.Sqrt(p/3)),
			scaled(z, math.Sqrt(p/3)),
		}
	case NoiseAmplitudeDamping:
		gamma, err := one()
		if err != nil {
			return nil, err
		}
		m.ops = []*quantum.Matrix{
			mat2(1, 0, 0, complex(math.Sqrt(1-gamma), 0)),
			mat2(0, complex(math.Sqrt(gamma), 0), 0, 0),
		}
	case NoisePhaseDamping:
		lambda, err := one()
		if err != nil {
			return nil, err
		}
		m.ops = []*quantum.Matrix{
			mat2(1, 0, 0, complex(math.Sqrt(1-lambda), 0)),
			mat2(0, 0, 0, complex(math.Sqrt(lambda), 0)),
		}
	case NoiseBitFlip:
		p, err := one()
		if err != nil {
			return nil, err
		}
		m.ops = []*quantum.Matrix{scaled(idm, math.Sqrt(1-p)), scaled(x, math.Sqrt(p))}
	case NoisePhaseFlip:
		p, err := one()
		if err != nil {
			return nil, err
		}
		m.ops = []*quantum.Matrix{scaled(idm, math.Sqrt(1-p)), scaled(z, math.Sqrt(p))}
	case NoiseBitPhaseFlip:
		p, err := one()
		if err != nil {
			return nil, err
		}
		m.ops = []*quantum.Matrix{scaled(idm, math.Sqrt(1-p)), scaled(y, math.Sqrt(p))}
	case NoisePauliChannel:
		if len(params) != 3 {
			return nil, &NoiseError{Msg: fmt.Sprintf("pauli channel wants 3 parameters, got %d", len(params))}
		}
		px, py, pz := params[0], params[1], params[2]
		rest := 1 - px - py - pz
		if px < 0 || py < 0 || pz < 0 || rest < -krausTolerance {
			return nil, &NoiseError{Msg: fmt.Sprintf("pauli channel probabilities (%g, %g, %g) invalid", px, py, pz)}
		}
		if rest < 0 {
			rest = 0
		}
		m.ops = []*quantum.Matrix{
			scaled(idm, math.Sqrt(rest)),
			scaled(x, math.Sqrt(px)),
			scaled(y, math.Sqrt(py)),
			scaled(z, math.Sqrt(pz)),
		}
	case NoiseKraus:
		return nil, &NoiseError{Msg: "kraus noise wants NewKrausModel"}
	default:
		return nil, &NoiseError{Msg: fmt.Sprintf("unsupported noise kind %d", int(kind))}
	}
	return m, nil
}

// NewKrausModel builds a channel from explicit single-qubit operators and
// verifies Σ Kᵢ†Kᵢ = I within tolerance.
func NewKrausModel(ops []*quantum.Matrix) (*NoiseModel, error) {
	if len(ops) == 0 {
		return nil, &NoiseError{Msg: "kraus set is empty"}
	}
	sum := quantum.NewMatrix(2)
	for i, k := range ops {
		if k.N != 2 {
			return nil, &NoiseError{Msg: fmt.Sprintf("kraus operator %d is %dx%d, want 2x2", i, k.N, k.N)}
		}
		prod := k.Dagger().Mul(k)
		for j := range sum.Data {
			sum.Data[j] += prod.Data[j]
		}
	}
	if !sum.ApproxEqual(quantum.Identity(2), krausTolerance) {
		return nil, &NoiseError{Msg: "kraus completeness violated: sum of K†K is not the identity"}
	}
	cloned := make([]*quantum.Matrix, len(ops))
	for i, k := range ops {
		cloned[i] = k.Clone()
	}
	return &NoiseModel{Kind: NoiseKraus, ops: cloned}, nil
}

// Kraus returns the operator set.
func (m *NoiseModel) Kraus() []*quantum.Matrix { return m.ops }

// ApplyTo applies the channel stochastically to qubit q of a pure state:
// operator Kᵢ is chosen with probability ‖Kᵢ|ψ⟩‖² using the uniform draw
// r, applied, and the state renormalized. Purity is preserved per
// trajectory; ensemble statistics emerge over shots.
func (m *NoiseModel) ApplyTo(s *State, q int, r float64) error {
	if err := s.checkQubit(q); err != nil {
		return err
	}

	// Branch weights without materializing K|ψ⟩: accumulate per-pair
	// contributions for each operator.
	weights := make([]float64, len(m.ops))
	bit := 1 << uint(q)
	for i := range s.amps {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a, b := s.amps[i], s.amps[j]
		for oi, k := range m.ops {
			v0 := k.Data[0]*a + k.Data[1]*b
			v1 := k.Data[2]*a + k.Data[3]*b
			weights[oi] += real(v0)*real(v0) + imag(v0)*imag(v0) +
				real(v1)*real(v1) + imag(v1)*imag(v1)
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total < UnderflowTolerance {
		return errors.Wrap(ErrUnderflow, "noise application on zero state")
	}

	pick := len(m.ops) - 1
	acc := 0.0
	for i, w := range weights {
		acc += w / total
		if r < acc {
			pick = i
			break
		}
	}
	if weights[pick] < UnderflowTolerance {
		// The draw landed on a numerically empty branch through rounding;
		// fall back to the heaviest branch.
		for i, w := range weights {
			if w > weights[pick] {
				pick = i
			}
		}
	}

	if err := s.Apply1(q, m.ops[pick]); err != nil {
		return err
	}
	return s.Renormalize()
}

// ParseNoiseSpec parses CLI-style "kind:param[,param...]" specifications,
// e.g. "depolarizing:0.01" or "pauli:0.1,0.0,0.05".
func ParseNoiseSpec(spec string) (*NoiseModel, error) {
	parts := strings.SplitN(spec, ":", 2)
	name := strings.TrimSpace(parts[0])

	var kind NoiseKind
	found := false
	for k, n := range noiseNames {
		if n == name {
			kind = k
			found = true
			break
		}
	}
	if !found {
		return nil, &NoiseError{Msg: fmt.Sprintf("unsupported noise kind %q", name)}
	}

	var params []float64
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		for _, ps := range strings.Split(parts[1], ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(ps), 64)
			if err != nil {
				return nil, &NoiseError{Msg: fmt.Sprintf("bad noise parameter %q", ps)}
			}
			params = append(params, v)
		}
	}
	return NewNoiseModel(kind, params...)
}
