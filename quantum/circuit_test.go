package quantum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuitBounds(t *testing.T) {
	_, err := NewCircuit(0, 0)
	assert.Error(t, err)

	_, err = NewCircuit(MaxQubits+1, 0)
	assert.Error(t, err)

	c, err := NewCircuit(MaxQubits, 2)
	require.NoError(t, err)
	assert.Equal(t, MaxQubits, c.NumQubits)
}

func TestAppendChecksOperands(t *testing.T) {
	c, err := NewCircuit(2, 1)
	require.NoError(t, err)

	require.NoError(t, c.Add(KindH, []int{0}))
	require.NoError(t, c.Add(KindCNOT, []int{0, 1}))
	assert.Error(t, c.Add(KindX, []int{2}), "qubit out of range")
	assert.Error(t, c.AddMeasure(0, 1), "cbit out of range")
	require.NoError(t, c.AddMeasure(1, 0))

	x := mustGate(t, KindX, []int{1})
	assert.Error(t, c.AddConditional(x, 0b10, 1), "mask beyond classical width")
	require.NoError(t, c.AddConditional(x, 0b1, 1))

	c.Freeze()
	assert.Error(t, c.Add(KindX, []int{0}), "frozen circuit rejects appends")
}

func TestDepthLayering(t *testing.T) {
	c, err := NewCircuit(3, 0)
	require.NoError(t, err)
	// h q0 | h q1 fit one layer; cx q0,q1 forces a second; x q2 rides layer one.
	require.NoError(t, c.Add(KindH, []int{0}))
	require.NoError(t, c.Add(KindH, []int{1}))
	require.NoError(t, c.Add(KindCNOT, []int{0, 1}))
	require.NoError(t, c.Add(KindX, []int{2}))
	assert.Equal(t, 2, c.Depth())

	empty, err := NewCircuit(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Depth())
}

func TestBarrierClosesLayers(t *testing.T) {
	c, err := NewCircuit(2, 0)
	require.NoError(t, err)
	require.NoError(t, c.Add(KindH, []int{0}))
	require.NoError(t, c.AddBarrier())
	require.NoError(t, c.Add(KindH, []int{1}))
	assert.Equal(t, 2, c.Depth())
}

func TestLayersTraversal(t *testing.T) {
	c, err := NewCircuit(3, 0)
	require.NoError(t, err)
	require.NoError(t, c.Add(KindH, []int{0}))
	require.NoError(t, c.Add(KindH, []int{2}))
	require.NoError(t, c.Add(KindCNOT, []int{0, 1}))
	require.NoError(t, c.AddBarrier())
	require.NoError(t, c.Add(KindX, []int{2}))

	layers := c.Layers()
	require.Len(t, layers, 4)
	assert.Len(t, layers[0], 2, "both hadamards share the first layer")
	assert.Equal(t, KindCNOT, layers[1][0].Kind)
	assert.Equal(t, KindBarrier, layers[2][0].Kind)
	assert.Equal(t, KindX, layers[3][0].Kind)
}

func TestCloneIsDeep(t *testing.T) {
	c, err := NewCircuit(2, 1)
	require.NoError(t, err)
	require.NoError(t, c.Add(KindRX, []int{0}, 1.5))
	c.Freeze()

	cp := c.Clone()
	assert.False(t, cp.Frozen())
	cp.Gates[0].Params[0] = 9
	assert.Equal(t, 1.5, c.Gates[0].Params[0])
}

func TestQubitActivity(t *testing.T) {
	c, err := NewCircuit(3, 0)
	require.NoError(t, err)
	require.NoError(t, c.Add(KindH, []int{1}))
	require.NoError(t, c.Add(KindCNOT, []int{1, 2}))
	require.NoError(t, c.AddBarrier())
	assert.Equal(t, []int{0, 2, 1}, c.QubitActivity())
}
