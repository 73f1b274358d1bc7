package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateRejectsBadSize(t *testing.T) {
	_, err := Allocate(0)
	assert.Error(t, err)

	_, err = Allocate(MaxPacketSize + 1)
	assert.Error(t, err)
}

func TestAllocateZeroesBuffer(t *testing.T) {
	b, err := Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 64, b.Capacity())
	assert.Equal(t, DirInvalid, b.Metadata.Direction)
}

func TestAppendAndOverflow(t *testing.T) {
	b, _ := Allocate(4)
	require.NoError(t, b.Append([]byte{1, 2}))
	assert.Equal(t, 2, b.Len())

	err := b.Append([]byte{3, 4, 5})
	assert.Error(t, err)
}

func TestResetClearsLengthAndMetadata(t *testing.T) {
	b, _ := Allocate(8)
	_ = b.Append([]byte{1, 2, 3})
	b.Metadata.IsDropped = true

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Metadata.IsDropped)
	assert.Equal(t, 8, b.Capacity())
}

func TestPeekByteAndPeekBounds(t *testing.T) {
	b, _ := Allocate(8)
	_ = b.Append([]byte{10, 20, 30})

	v, err := b.PeekByte(1)
	require.NoError(t, err)
	assert.Equal(t, byte(20), v)

	_, err = b.PeekByte(5)
	assert.Error(t, err)

	dst := make([]byte, 2)
	require.NoError(t, b.Peek(1, 2, dst))
	assert.Equal(t, []byte{20, 30}, dst)

	assert.NoError(t, b.Peek(0, 0, nil), "zero-length read is a no-op returning success")

	err = b.Peek(2, 5, dst)
	assert.Error(t, err)
}

func TestUpdateInPlace(t *testing.T) {
	b, _ := Allocate(8)
	_ = b.Append([]byte{1, 2, 3, 4})

	require.NoError(t, b.Update(1, []byte{9, 9}, 2))
	assert.Equal(t, []byte{1, 9, 9, 4}, b.Bytes())

	err := b.Update(2, []byte{1, 2, 3}, 3)
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	b, _ := Allocate(8)
	_ = b.Append([]byte{5, 6, 7})
	b.UserData = "original"

	clone, err := b.Clone()
	require.NoError(t, err)
	assert.Equal(t, b.Bytes(), clone.Bytes())
	assert.Nil(t, clone.UserData)

	_ = clone.Update(0, []byte{0}, 1)
	assert.NotEqual(t, b.Bytes()[0], clone.Bytes()[0])
}

func TestResizeShrinkAndGrow(t *testing.T) {
	b, _ := Allocate(16)
	_ = b.Append([]byte{1, 2, 3, 4})

	require.NoError(t, b.Resize(2))
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.Resize(32))
	assert.Equal(t, 32, b.Len())
	assert.GreaterOrEqual(t, b.Capacity(), 32)
}

func TestInsertAndRemove(t *testing.T) {
	b, _ := Allocate(16)
	_ = b.Append([]byte{1, 2, 3, 4})

	require.NoError(t, b.Insert(2, []byte{9, 9}, 2))
	assert.Equal(t, []byte{1, 2, 9, 9, 3, 4}, b.Bytes())

	require.NoError(t, b.Remove(2, 2))
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes())
}

func TestAllocateReusesPooledBuffers(t *testing.T) {
	b1, _ := Allocate(32)
	_ = b1.Append([]byte{1, 2, 3})
	Release(b1)

	b2, _ := Allocate(32)
	// A released buffer must come back zeroed, not carrying stale bytes.
	assert.Equal(t, 0, b2.Len())
	for _, v := range b2.Bytes() {
		assert.Equal(t, byte(0), v)
	}
}
