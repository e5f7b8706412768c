package algorithms

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qasmsim/quantum"
	"qasmsim/sim"
)

func execute(t *testing.T, c *quantum.Circuit, prep ...quantum.Gate) *sim.Engine {
	t.Helper()
	e, err := sim.NewEngine(c.NumQubits, sim.WithSeed(5))
	require.NoError(t, err)
	for _, g := range prep {
		require.NoError(t, e.Apply(g))
	}
	require.NoError(t, e.Execute(c))
	return e
}

func TestBellAmplitudes(t *testing.T) {
	c, err := Bell()
	require.NoError(t, err)
	e := execute(t, c)
	probs := e.State().Probabilities()
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[3], 1e-12)
}

func TestGHZAmplitudes(t *testing.T) {
	c, err := GHZ(4)
	require.NoError(t, err)
	e := execute(t, c)
	s := e.State()
	assert.InDelta(t, 1/math.Sqrt2, real(s.Amplitude(0)), 1e-12)
	assert.InDelta(t, 1/math.Sqrt2, real(s.Amplitude(15)), 1e-12)

	_, err = GHZ(1)
	assert.Error(t, err)
}

func TestQFTUniformFromGround(t *testing.T) {
	c, err := QFT(3)
	require.NoError(t, err)
	e := execute(t, c)
	for i, p := range e.State().Probabilities() {
		assert.InDelta(t, 0.125, p, 1e-9, "basis %d", i)
	}
}

func TestQFTInverseRoundTrip(t *testing.T) {
	// QFT-3 then its inverse returns |101⟩ to itself.
	fwd, err := QFT(3)
	require.NoError(t, err)
	inv, err := InverseQFT(3)
	require.NoError(t, err)

	x := quantum.MustKindMatrix(quantum.KindX, nil)
	e, err := sim.NewEngine(3)
	require.NoError(t, err)
	require.NoError(t, e.State().Apply1(0, x))
	require.NoError(t, e.State().Apply1(2, x))

	require.NoError(t, e.Execute(fwd))
	require.NoError(t, e.Execute(inv))

	s := e.State()
	assert.InDelta(t, 1, cmplx.Abs(s.Amplitude(0b101)), 1e-9)
	for i := 0; i < s.Len(); i++ {
		if i == 0b101 {
			continue
		}
		assert.InDelta(t, 0, cmplx.Abs(s.Amplitude(i)), 1e-9, "amp %d", i)
	}
}

func TestGroverTwoQubit(t *testing.T) {
	// Marked |11⟩, one iteration: certainty.
	c, err := Grover(2, func(i int) bool { return i == 3 }, 1)
	require.NoError(t, err)
	e := execute(t, c)
	probs := e.State().Probabilities()
	assert.InDelta(t, 1, probs[3], 1e-9)
}

func TestGroverThreeQubitAmplifies(t *testing.T) {
	c, err := Grover(3, func(i int) bool { return i == 5 }, 0)
	require.NoError(t, err)
	e := execute(t, c)
	probs := e.State().Probabilities()
	// Two optimal iterations put the marked state above 94%.
	assert.Greater(t, probs[5], 0.9)
}

func TestAmplitudeAmplificationMatchesGrover(t *testing.T) {
	// Over the uniform superposition the amplifier is exactly Grover.
	prep, err := quantum.NewCircuit(2, 2)
	require.NoError(t, err)
	require.NoError(t, prep.Add(quantum.KindH, []int{0}))
	require.NoError(t, prep.Add(quantum.KindH, []int{1}))

	c, err := AmplitudeAmplification(prep, func(i int) bool { return i == 3 }, 1)
	require.NoError(t, err)
	e := execute(t, c)
	assert.InDelta(t, 1, e.State().Probabilities()[3], 1e-9)
}

func TestAmplitudeAmplificationBiasedPreparation(t *testing.T) {
	// A non-uniform preparation still amplifies the marked state: each
	// iteration rotates by 2θ with sin θ the marked amplitude of A|0⟩.
	prep, err := quantum.NewCircuit(2, 0)
	require.NoError(t, err)
	require.NoError(t, prep.Add(quantum.KindRY, []int{0}, 2*math.Asin(math.Sqrt(0.1))))

	before, err := sim.NewEngine(2)
	require.NoError(t, err)
	require.NoError(t, before.Execute(prep))
	require.InDelta(t, 0.1, before.State().Probabilities()[1], 1e-9)

	c, err := AmplitudeAmplification(prep, func(i int) bool { return i == 1 }, 1)
	require.NoError(t, err)
	e := execute(t, c)
	// sin²(3θ) with θ = asin(√0.1).
	theta := math.Asin(math.Sqrt(0.1))
	assert.InDelta(t, math.Pow(math.Sin(3*theta), 2), e.State().Probabilities()[1], 1e-9)
}

func TestAmplitudeAmplificationValidation(t *testing.T) {
	prep, err := quantum.NewCircuit(2, 2)
	require.NoError(t, err)
	require.NoError(t, prep.Add(quantum.KindH, []int{0}))

	_, err = AmplitudeAmplification(prep, func(i int) bool { return i == 1 }, 0)
	assert.Error(t, err, "iterations must be positive")

	_, err = AmplitudeAmplification(prep, func(int) bool { return false }, 1)
	assert.Error(t, err, "oracle must mark a state")

	measured, err := quantum.NewCircuit(2, 2)
	require.NoError(t, err)
	require.NoError(t, measured.Add(quantum.KindH, []int{0}))
	require.NoError(t, measured.AddMeasure(0, 0))
	_, err = AmplitudeAmplification(measured, func(i int) bool { return i == 1 }, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unitary")
}

func TestGroverRejectsEmptyOracle(t *testing.T) {
	_, err := Grover(2, func(int) bool { return false }, 1)
	assert.Error(t, err)
}

func TestTeleportationTransfersState(t *testing.T) {
	c, err := Teleportation()
	require.NoError(t, err)
	c.Freeze()

	theta := 1.1
	prep, err := quantum.NewGate(quantum.KindRY, []int{0}, []float64{theta})
	require.NoError(t, err)

	for seed := int64(1); seed <= 6; seed++ {
		e, err := sim.NewEngine(3, sim.WithSeed(seed))
		require.NoError(t, err)
		require.NoError(t, e.Apply(prep))
		require.NoError(t, e.Execute(c))
		p1, err := e.State().Probability(2, 1)
		require.NoError(t, err)
		want := math.Sin(theta/2) * math.Sin(theta/2)
		assert.InDelta(t, want, p1, 1e-9, "seed %d", seed)
	}
}
