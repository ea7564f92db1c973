package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortio/extmerge/errs"
)

func TestBufferRejectsZeroCapacity(t *testing.T) {
	_, err := NewBuffer[int](0)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestBufferPushUntilFull(t *testing.T) {
	b, err := NewBuffer[int](3)
	require.NoError(t, err)

	assert.True(t, b.IsEmpty())
	assert.False(t, b.Push(1))
	assert.False(t, b.Push(2))
	assert.True(t, b.Push(3), "third push fills the buffer")
	assert.True(t, b.IsFull())

	// pushes while full are dropped and still report full
	assert.True(t, b.Push(4))
	assert.Equal(t, []int{1, 2, 3}, b.Data())
	assert.Equal(t, 3, b.Len())
}

func TestBufferDrain(t *testing.T) {
	b, err := NewBuffer[string](2)
	require.NoError(t, err)
	b.Push("a")
	b.Push("b")

	require.True(t, b.HasMore())
	assert.Equal(t, "a", b.ReadNext())
	assert.Equal(t, "b", b.ReadNext())
	assert.False(t, b.HasMore())

	// drained reads fall back to the zero value
	assert.Equal(t, "", b.ReadNext())
}

func TestBufferClearResetsBoth(t *testing.T) {
	b, err := NewBuffer[int](2)
	require.NoError(t, err)
	b.Push(7)
	b.ReadNext()

	b.Clear()
	assert.True(t, b.IsEmpty())
	assert.False(t, b.HasMore())
	assert.Equal(t, 0, b.Len())
}

func TestBufferSetValid(t *testing.T) {
	b, err := NewBuffer[int](4)
	require.NoError(t, err)

	raw := b.RawData()
	require.Len(t, raw, 4)
	raw[0], raw[1] = 10, 20
	require.NoError(t, b.SetValid(2))

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 10, b.ReadNext(), "SetValid resets the cursor")

	require.ErrorIs(t, b.SetValid(5), errs.ErrInvalidArgument)
	require.NoError(t, b.SetValid(0))
	assert.True(t, b.IsEmpty())
}
