package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slot1Data = []byte("data string of slot 1")
	slot2Data = []byte("data string of slot 2")
)

func newTestPage(t *testing.T) *Page {
	t.Helper()
	buf := make([]byte, PageSize)

	p, err := NewPage(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), p.PageID())
	assert.Equal(t, 0, p.NumSlots())

	slot, err := p.InsertTuple(slot1Data)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	slot, err = p.InsertTuple(slot2Data)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	assert.Equal(t, 2, p.NumSlots())
	require.NotEmpty(t, p.DebugString())

	return p
}

func TestPage_CRUDTuple(t *testing.T) {
	p := newTestPage(t)

	data, err := p.ReadTuple(0)
	require.NoError(t, err)
	assert.Equal(t, slot1Data, data)

	_, err = p.ReadTuple(-1)
	require.ErrorIs(t, err, ErrBadSlot)
	_, err = p.ReadTuple(2)
	require.ErrorIs(t, err, ErrBadSlot)

	require.NoError(t, p.DeleteTuple(0))
	_, err = p.ReadTuple(0)
	require.ErrorIs(t, err, ErrBadSlot)

	longData := make([]byte, len(slot2Data)+64)
	require.NoError(t, p.UpdateTuple(1, longData))
	got, err := p.ReadTuple(1)
	require.NoError(t, err)
	assert.Equal(t, longData, got)
}

func TestPage_InsertTuple_FullReturnsErrPageFull(t *testing.T) {
	buf := make([]byte, PageSize)
	p, err := NewPage(buf, 0)
	require.NoError(t, err)

	big := make([]byte, PageSize)
	_, err = p.InsertTuple(big)
	require.ErrorIs(t, err, ErrPageFull)
}

func TestPage_ReserveSpecial(t *testing.T) {
	buf := make([]byte, PageSize)
	p, err := NewPage(buf, 0)
	require.NoError(t, err)

	special, err := p.ReserveSpecial(16)
	require.NoError(t, err)
	require.Len(t, special, 16)

	special[0] = 0xAB
	assert.Equal(t, byte(0xAB), p.Special()[0])

	before := p.AvailableSpace()
	_, err = p.InsertTuple([]byte("x"))
	require.NoError(t, err)
	assert.Less(t, p.AvailableSpace(), before)

	// Reserving again once tuples exist is an error.
	_, err = p.ReserveSpecial(32)
	require.ErrorIs(t, err, ErrSpecialTooLarge)
}

func TestPage_Empty(t *testing.T) {
	buf := make([]byte, PageSize)
	p, err := NewPage(buf, 0)
	require.NoError(t, err)
	assert.True(t, p.Empty())

	_, err = p.InsertTuple([]byte("x"))
	require.NoError(t, err)
	assert.False(t, p.Empty())

	require.NoError(t, p.DeleteTuple(0))
	assert.True(t, p.Empty())
}
