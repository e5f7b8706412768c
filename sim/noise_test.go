package sim

import (
	"math"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qasmsim/qasm"
	"qasmsim/quantum"
)

func TestNoiseModelCompleteness(t *testing.T) {
	kinds := []struct {
		kind   NoiseKind
		params []float64
	}{
		{NoiseDepolarizing, []float64{0.1}},
		{NoiseAmplitudeDamping, []float64{0.3}},
		{NoisePhaseDamping, []float64{0.2}},
		{NoiseBitFlip, []float64{0.05}},
		{NoisePhaseFlip, []float64{0.05}},
		{NoiseBitPhaseFlip, []float64{0.05}},
		{NoisePauliChannel, []float64{0.1, 0.05, 0.02}},
	}
	id := quantum.Identity(2)
	for _, tt := range kinds {
		m, err := NewNoiseModel(tt.kind, tt.params...)
		require.NoError(t, err, tt.kind)

		sum := quantum.NewMatrix(2)
		for _, k := range m.Kraus() {
			prod := k.Dagger().Mul(k)
			for i := range sum.Data {
				sum.Data[i] += prod.Data[i]
			}
		}
		assert.True(t, sum.ApproxEqual(id, 1e-9), "%s: sum K†K != I", tt.kind)
	}
}

func TestNoiseModelRejectsBadParams(t *testing.T) {
	_, err := NewNoiseModel(NoiseDepolarizing, 1.5)
	require.Error(t, err)
	var nerr *NoiseError
	assert.ErrorAs(t, err, &nerr)

	_, err = NewNoiseModel(NoiseDepolarizing)
	assert.Error(t, err)

	_, err = NewNoiseModel(NoisePauliChannel, 0.5, 0.6, 0.7)
	assert.Error(t, err)
}

func TestKrausModelCompletenessCheck(t *testing.T) {
	x := quantum.MustKindMatrix(quantum.KindX, nil)
	// Incomplete set: a single sqrt(1/2)·X.
	bad := x.Clone()
	for i := range bad.Data {
		bad.Data[i] *= complex(math.Sqrt(0.5), 0)
	}
	_, err := NewKrausModel([]*quantum.Matrix{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completeness")

	// A unitary alone is a valid (noiseless) channel.
	m, err := NewKrausModel([]*quantum.Matrix{x})
	require.NoError(t, err)
	assert.Len(t, m.Kraus(), 1)
}

func TestNoisePreservesNormPerTrajectory(t *testing.T) {
	m, err := NewNoiseModel(NoiseAmplitudeDamping, 0.4)
	require.NoError(t, err)
	s, err := NewState(2)
	require.NoError(t, err)
	require.NoError(t, s.Apply1(0, quantum.MustKindMatrix(quantum.KindH, nil)))
	require.NoError(t, s.Apply2(0, 1, quantum.MustKindMatrix(quantum.KindCNOT, nil)))

	for _, r := range []float64{0.05, 0.35, 0.65, 0.95} {
		require.NoError(t, m.ApplyTo(s, 0, r))
		assert.InDelta(t, 1, s.Norm(), 1e-9)
	}
}

func TestFullDepolarizingUniform(t *testing.T) {
	// Bell circuit under depolarizing(p=1) over 1000 shots lands within
	// 10% of uniform across the four outcomes.
	src := heredoc.Doc(`
		OPENQASM 2.0;
		qreg q[2];
		creg c[2];
		h q[0];
		cx q[0], q[1];
		measure q[0] -> c[0];
		measure q[1] -> c[1];
	`)
	c, _, err := qasm.Compile([]byte(src))
	require.NoError(t, err)

	noise, err := NewNoiseModel(NoiseDepolarizing, 1.0)
	require.NoError(t, err)
	e, err := NewEngine(2, WithSeed(7), WithNoise(noise))
	require.NoError(t, err)

	const shots = 1000
	counts, err := e.Run(c, shots)
	require.NoError(t, err)

	for _, key := range []string{"00", "01", "10", "11"} {
		frac := float64(counts[key]) / shots
		assert.InDelta(t, 0.25, frac, 0.10, "outcome %s", key)
	}
}

func TestAmplitudeDampingDrivesToGround(t *testing.T) {
	// Repeated strong damping pulls |1⟩ toward |0⟩ on most trajectories;
	// with γ=1 a single application decays deterministically.
	m, err := NewNoiseModel(NoiseAmplitudeDamping, 1.0)
	require.NoError(t, err)
	s, err := NewState(1)
	require.NoError(t, err)
	require.NoError(t, s.Apply1(0, quantum.MustKindMatrix(quantum.KindX, nil)))
	require.NoError(t, m.ApplyTo(s, 0, 0.5))
	p0, err := s.Probability(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, p0, 1e-12)
}

func TestParseNoiseSpec(t *testing.T) {
	m, err := ParseNoiseSpec("depolarizing:0.01")
	require.NoError(t, err)
	assert.Equal(t, NoiseDepolarizing, m.Kind)
	assert.Equal(t, []float64{0.01}, m.Params)

	m, err = ParseNoiseSpec("pauli:0.1,0.05,0.02")
	require.NoError(t, err)
	assert.Equal(t, NoisePauliChannel, m.Kind)

	_, err = ParseNoiseSpec("thermal:0.1")
	require.Error(t, err)
	_, err = ParseNoiseSpec("depolarizing:abc")
	require.Error(t, err)
}
