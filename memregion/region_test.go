package memregion

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"lsmtable/tableerrors"
)

func TestHeapAllocatorSizeAndZeroed(t *testing.T) {
	r, err := HeapAllocator{}.Allocate(64, DefaultAlignment)
	require.NoError(t, err)
	require.Equal(t, 64, r.Len())

	buf, err := r.Bytes()
	require.NoError(t, err)
	for _, b := range buf {
		require.Equal(t, byte(0), b)
	}
}

func TestHeapAllocatorAlignment(t *testing.T) {
	for _, alignment := range []int{1, 8, 64, 4096} {
		r, err := HeapAllocator{}.Allocate(128, alignment)
		require.NoError(t, err)
		buf, err := r.Bytes()
		require.NoError(t, err)
		require.Len(t, buf, 128)
		require.Zero(t, uintptr(unsafe.Pointer(&buf[0]))%uintptr(alignment))
	}
}

func TestReleaseIsIdempotentChecked(t *testing.T) {
	r, err := HeapAllocator{}.Allocate(8, 1)
	require.NoError(t, err)
	require.False(t, r.IsFree())

	require.NoError(t, r.Release())
	require.True(t, r.IsFree())

	err = r.Release()
	require.Error(t, err)
	require.True(t, tableerrors.Of(err, tableerrors.DoubleFree))
}

func TestUseAfterFree(t *testing.T) {
	r, err := HeapAllocator{}.Allocate(8, 1)
	require.NoError(t, err)
	require.NoError(t, r.Release())

	_, err = r.Bytes()
	require.Error(t, err)
	require.True(t, tableerrors.Of(err, tableerrors.UseAfterFree))
}
