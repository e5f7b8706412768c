package sim

import (
	"bytes"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qasmsim/quantum"
)

func TestCacheSaveLoadRoundTrip(t *testing.T) {
	s, err := NewState(2)
	require.NoError(t, err)
	require.NoError(t, s.Apply1(0, quantum.MustKindMatrix(quantum.KindH, nil)))
	require.NoError(t, s.Apply2(0, 1, quantum.MustKindMatrix(quantum.KindCNOT, nil)))

	cache := NewCache(4)
	label := cache.Save("bell", s)
	assert.Equal(t, "bell", label)

	before := s.Clone()
	require.NoError(t, s.Apply1(0, quantum.MustKindMatrix(quantum.KindX, nil)))
	require.NoError(t, cache.Load("bell", s))
	for i := 0; i < s.Len(); i++ {
		assert.InDelta(t, 0, cmplx.Abs(before.Amplitude(i)-s.Amplitude(i)), 1e-12, "amp %d", i)
	}
}

func TestCacheSnapshotDoesNotAlias(t *testing.T) {
	s, err := NewState(1)
	require.NoError(t, err)
	cache := NewCache(4)
	cache.Save("zero", s)
	require.NoError(t, s.Apply1(0, quantum.MustKindMatrix(quantum.KindX, nil)))
	require.NoError(t, cache.Load("zero", s))
	assert.Equal(t, complex128(1), s.Amplitude(0))
}

func TestCacheGeneratedLabels(t *testing.T) {
	s, err := NewState(1)
	require.NoError(t, err)
	cache := NewCache(4)
	l1 := cache.Save("", s)
	l2 := cache.Save("", s)
	assert.NotEmpty(t, l1)
	assert.NotEqual(t, l1, l2)
}

func TestCacheEvictsOldest(t *testing.T) {
	s, err := NewState(1)
	require.NoError(t, err)
	cache := NewCache(2)
	cache.Save("a", s)
	cache.Save("b", s)
	cache.Save("c", s)
	assert.Equal(t, 2, cache.Len())
	assert.ErrorIs(t, cache.Load("a", s), ErrCacheMiss)
	assert.NoError(t, cache.Load("b", s))
	assert.NoError(t, cache.Load("c", s))
}

func TestCacheWidthMismatch(t *testing.T) {
	s1, err := NewState(1)
	require.NoError(t, err)
	s2, err := NewState(2)
	require.NoError(t, err)
	cache := NewCache(4)
	cache.Save("narrow", s1)
	assert.ErrorIs(t, cache.Load("narrow", s2), ErrDimensionMismatch)
}

func TestCachePersistenceRoundTrip(t *testing.T) {
	s, err := NewState(2)
	require.NoError(t, err)
	require.NoError(t, s.Apply1(0, quantum.MustKindMatrix(quantum.KindH, nil)))
	require.NoError(t, s.Apply1(1, quantum.MustKindMatrix(quantum.KindT, nil)))

	cache := NewCache(4)
	cache.Save("one", s)
	cache.Save("two", s)

	var buf bytes.Buffer
	require.NoError(t, cache.WriteTo(&buf))

	// Magic leads the stream.
	assert.Equal(t, []byte("QSSC"), buf.Bytes()[:4])

	restored := NewCache(4)
	require.NoError(t, restored.ReadFrom(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, []string{"one", "two"}, restored.Labels())

	fresh, err := NewState(2)
	require.NoError(t, err)
	require.NoError(t, restored.Load("one", fresh))
	for i := 0; i < s.Len(); i++ {
		assert.InDelta(t, 0, cmplx.Abs(s.Amplitude(i)-fresh.Amplitude(i)), 1e-15, "amp %d", i)
	}
}

func TestEngineSnapshotRestore(t *testing.T) {
	e, err := NewEngine(2, WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, e.Apply(mustG(t, quantum.KindH, []int{0})))
	label := e.Snapshot("")
	require.NotEmpty(t, label)

	require.NoError(t, e.Apply(mustG(t, quantum.KindX, []int{1})))
	require.NoError(t, e.Restore(label))
	p1, err := e.State().Probability(1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, p1, 1e-12)

	assert.ErrorIs(t, e.Restore("missing"), ErrCacheMiss)
}

func TestCacheRejectsBadMagic(t *testing.T) {
	cache := NewCache(4)
	err := cache.ReadFrom(bytes.NewReader([]byte("NOPE\x00\x00\x00\x00")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}
