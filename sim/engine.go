package sim

import (
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"qasmsim/quantum"
)

// normDriftWarn is the cumulative norm drift past which the engine logs a
// warning after a run.
const normDriftWarn = 1e-9

// Engine owns one state vector, one deterministic PRNG and the classical
// register. Two engines built with the same seed produce identical outputs
// for identical inputs.
type Engine struct {
	state *State
	rng   *rand.Rand
	seed  int64
	cbits uint64

	noise   *NoiseModel
	noiseOn bool

	cache *Cache
	log   *zap.Logger

	gatesApplied int
}

// EngineOption configures an engine.
type EngineOption func(*Engine)

// WithSeed fixes the PRNG seed; the default seed is 1.
func WithSeed(seed int64) EngineOption {
	return func(e *Engine) { e.seed = seed }
}

// WithNoise attaches a noise model applied stochastically after every
// unitary gate.
func WithNoise(model *NoiseModel) EngineOption {
	return func(e *Engine) {
		e.noise = model
		e.noiseOn = model != nil
	}
}

// WithCacheSize bounds the snapshot cache (default DefaultCacheSize).
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) { e.cache = NewCache(n) }
}

// WithLogger attaches a logger; gate counts land at Debug, norm drift at
// Warn.
func WithLogger(lg *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = lg }
}

// NewEngine builds an engine over a fresh |0…0⟩ state.
func NewEngine(numQubits int, opts ...EngineOption) (*Engine, error) {
	state, err := NewState(numQubits)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		state: state,
		seed:  1,
		cache: NewCache(DefaultCacheSize),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rng = rand.New(rand.NewSource(e.seed))
	return e, nil
}

// State exposes the owned state for inspection. Mutate it only through the
// engine.
func (e *Engine) State() *State { return e.state }

// Cache exposes the snapshot cache.
func (e *Engine) Cache() *Cache { return e.cache }

// Seed returns the engine's PRNG seed.
func (e *Engine) Seed() int64 { return e.seed }

// Cbits returns the classical register as a bit mask, cbit i at bit i.
func (e *Engine) Cbits() uint64 { return e.cbits }

// CbitValue returns classical bit i.
func (e *Engine) CbitValue(i int) int {
	return int(e.cbits >> uint(i) & 1)
}

// Reset returns the engine to |0…0⟩ with a cleared classical register. The
// PRNG keeps advancing: shot loops stay reproducible from the engine seed
// without repeating draws.
func (e *Engine) Reset() {
	e.state.SetZero()
	e.cbits = 0
}

// Snapshot copies the current amplitudes into the cache, returning the
// label used (a generated one when label is empty).
func (e *Engine) Snapshot(label string) string {
	return e.cache.Save(label, e.state)
}

// Restore replaces the current amplitudes from a cached snapshot.
func (e *Engine) Restore(label string) error {
	return e.cache.Load(label, e.state)
}

// Apply executes one gate: unitaries hit the state, measurements collapse
// it and write their cbit, conditionals consult the classical register,
// barriers are no-ops. With noise enabled, every unitary is followed by a
// stochastic noise application on each involved qubit.
func (e *Engine) Apply(g quantum.Gate) error {
	switch g.Kind {
	case quantum.KindBarrier:
		return nil
	case quantum.KindMeasure:
		outcome, err := e.state.MeasureWith(g.Qubits[0], e.rng.Float64())
		if err != nil {
			return err
		}
		bit := uint64(1) << uint(g.Cbit)
		e.cbits = e.cbits&^bit | uint64(outcome)<<uint(g.Cbit)
		return nil
	case quantum.KindReset:
		return e.state.ResetWith(g.Qubits[0], e.rng.Float64())
	case quantum.KindConditional:
		if e.cbits&g.CondMask != g.CondValue {
			return nil
		}
		return e.Apply(*g.Inner)
	}

	if err := e.applyUnitary(g); err != nil {
		return err
	}
	e.gatesApplied++

	if e.noiseOn {
		for _, q := range g.Qubits {
			if err := e.noise.ApplyTo(e.state, q, e.rng.Float64()); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyUnitary dispatches to a specialized kernel for the hot kinds and
// falls back to the synthesized matrix for the rest.
func (e *Engine) applyUnitary(g quantum.Gate) error {
	switch g.Kind {
	case quantum.KindX:
		return e.applyX(g.Qubits[0])
	case quantum.KindH:
		return e.applyH(g.Qubits[0])
	case quantum.KindZ:
		return e.applyPhaseFlip(g.Qubits[0], -1)
	case quantum.KindS:
		return e.applyPhaseFlip(g.Qubits[0], 1i)
	case quantum.KindSdg:
		return e.applyPhaseFlip(g.Qubits[0], -1i)
	case quantum.KindT:
		return e.applyPhaseFlip(g.Qubits[0], cmplx.Exp(complex(0, math.Pi/4)))
	case quantum.KindTdg:
		return e.applyPhaseFlip(g.Qubits[0], cmplx.Exp(complex(0, -math.Pi/4)))
	case quantum.KindP, quantum.KindU1:
		return e.applyPhaseFlip(g.Qubits[0], cmplx.Exp(complex(0, g.Params[0])))
	case quantum.KindRZ:
		return e.applyRZ(g.Qubits[0], g.Params[0])
	case quantum.KindCNOT:
		return e.applyCX(g.Qubits[0], g.Qubits[1])
	case quantum.KindCZ:
		return e.applyCZ(g.Qubits[0], g.Qubits[1])
	case quantum.KindSWAP:
		return e.applySWAP(g.Qubits[0], g.Qubits[1])
	case quantum.KindCustom:
		return e.state.ApplyK(g.Qubits, g.Matrix)
	}

	u, err := g.UnitaryMatrix()
	if err != nil {
		return err
	}
	switch len(g.Qubits) {
	case 1:
		return e.state.Apply1(g.Qubits[0], u)
	case 2:
		return e.state.Apply2(g.Qubits[0], g.Qubits[1], u)
	case 3:
		return e.state.Apply3(g.Qubits[0], g.Qubits[1], g.Qubits[2], u)
	default:
		return e.state.ApplyK(g.Qubits, u)
	}
}

func (e *Engine) applyX(q int) error {
	if err := e.state.checkQubit(q); err != nil {
		return err
	}
	amps := e.state.amps
	bit := 1 << uint(q)
	for i := range amps {
		if i&bit == 0 {
			j := i | bit
			amps[i], amps[j] = amps[j], amps[i]
		}
	}
	return nil
}

func (e *Engine) applyH(q int) error {
	if err := e.state.checkQubit(q); err != nil {
		return err
	}
	amps := e.state.amps
	bit := 1 << uint(q)
	h := complex(1/math.Sqrt2, 0)
	for i := range amps {
		if i&bit == 0 {
			j := i | bit
			a, b := amps[i], amps[j]
			amps[i] = h * (a + b)
			amps[j] = h * (a - b)
		}
	}
	return nil
}

// applyPhaseFlip multiplies the bit-set half of the state by factor, which
// covers Z, S, S†, T, T† and the phase gates.
func (e *Engine) applyPhaseFlip(q int, factor complex128) error {
	if err := e.state.checkQubit(q); err != nil {
		return err
	}
	amps := e.state.amps
	bit := 1 << uint(q)
	for i := range amps {
		if i&bit != 0 {
			amps[i] *= factor
		}
	}
	return nil
}

func (e *Engine) applyRZ(q int, theta float64) error {
	if err := e.state.checkQubit(q); err != nil {
		return err
	}
	amps := e.state.amps
	bit := 1 << uint(q)
	phase := cmplx.Exp(complex(0, theta/2))
	conj := cmplx.Conj(phase)
	for i := range amps {
		if i&bit != 0 {
			amps[i] *= phase
		} else {
			amps[i] *= conj
		}
	}
	return nil
}

func (e *Engine) applyCX(control, target int) error {
	if err := e.state.checkQubit(control); err != nil {
		return err
	}
	if err := e.state.checkQubit(target); err != nil {
		return err
	}
	amps := e.state.amps
	cBit := 1 << uint(control)
	tBit := 1 << uint(target)
	for i := range amps {
		if i&cBit != 0 && i&tBit == 0 {
			j := i | tBit
			amps[i], amps[j] = amps[j], amps[i]
		}
	}
	return nil
}

func (e *Engine) applyCZ(control, target int) error {
	if err := e.state.checkQubit(control); err != nil {
		return err
	}
	if err := e.state.checkQubit(target); err != nil {
		return err
	}
	amps := e.state.amps
	cBit := 1 << uint(control)
	tBit := 1 << uint(target)
	for i := range amps {
		if i&cBit != 0 && i&tBit != 0 {
			amps[i] *= -1
		}
	}
	return nil
}

func (e *Engine) applySWAP(q1, q2 int) error {
	if err := e.state.checkQubit(q1); err != nil {
		return err
	}
	if err := e.state.checkQubit(q2); err != nil {
		return err
	}
	amps := e.state.amps
	b1 := 1 << uint(q1)
	b2 := 1 << uint(q2)
	for i := range amps {
		if i&b1 != 0 && i&b2 == 0 {
			j := i&^b1 | b2
			amps[i], amps[j] = amps[j], amps[i]
		}
	}
	return nil
}

// Execute runs every gate of the circuit against the current state. The
// circuit width must match the engine's.
func (e *Engine) Execute(c *quantum.Circuit) error {
	if c.NumQubits != e.state.numQubits {
		return errors.Wrapf(ErrDimensionMismatch, "circuit has %d qubits, engine %d", c.NumQubits, e.state.numQubits)
	}
	for i, g := range c.Gates {
		if err := e.Apply(g); err != nil {
			return errors.Wrapf(err, "gate %d (%s)", i, g)
		}
	}
	if drift := math.Abs(e.state.Norm() - 1); drift > normDriftWarn {
		e.log.Warn("state norm drifted",
			zap.Float64("drift", drift),
			zap.Int("gates", e.gatesApplied))
	}
	e.log.Debug("executed circuit",
		zap.Int("gates", len(c.Gates)),
		zap.Int("qubits", c.NumQubits))
	return nil
}

// Run executes the circuit for the given number of shots from a fresh
// |0…0⟩ each time and tallies classical outcomes. Keys read c[n-1]…c[0],
// most significant bit first. Circuits without classical bits produce a
// single empty key.
func (e *Engine) Run(c *quantum.Circuit, shots int) (map[string]int, error) {
	if shots < 1 {
		return nil, errors.Wrapf(ErrResource, "shots must be positive, got %d", shots)
	}
	counts := make(map[string]int)
	for shot := 0; shot < shots; shot++ {
		e.Reset()
		if err := e.Execute(c); err != nil {
			return nil, errors.Wrapf(err, "shot %d", shot)
		}
		counts[e.CbitString(c.NumCbits)]++
	}
	return counts, nil
}

// CbitString renders the low width bits of the classical register,
// c[width-1] first.
func (e *Engine) CbitString(width int) string {
	if width == 0 {
		return ""
	}
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		buf[width-1-i] = byte('0' + e.CbitValue(i))
	}
	return string(buf)
}
