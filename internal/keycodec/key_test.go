package keycodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Int(t *testing.T) {
	assert.Equal(t, -1, Compare(IntKey(1), IntKey(2)))
	assert.Equal(t, 0, Compare(IntKey(5), IntKey(5)))
	assert.Equal(t, 1, Compare(IntKey(9), IntKey(2)))
}

func TestCompare_Str(t *testing.T) {
	assert.Equal(t, -1, Compare(StrKey("a"), StrKey("b")))
	assert.Equal(t, 0, Compare(StrKey("same"), StrKey("same")))
	assert.Equal(t, 1, Compare(StrKey("z"), StrKey("a")))
}

func TestLeafEntry_IntKey_RoundTrips(t *testing.T) {
	k := IntKey(42)
	rid := RID{PageID: 7, Slot: 3}

	buf, err := EncodeLeafEntry(k, rid)
	require.NoError(t, err)

	gotKey, gotRID, err := DecodeLeafEntry(buf, KeyTypeInt)
	require.NoError(t, err)
	assert.Equal(t, k, gotKey)
	assert.Equal(t, rid, gotRID)
}

func TestLeafEntry_StrKey_RoundTrips(t *testing.T) {
	k := StrKey("hello world")
	rid := RID{PageID: 11, Slot: 2}

	buf, err := EncodeLeafEntry(k, rid)
	require.NoError(t, err)

	gotKey, gotRID, err := DecodeLeafEntry(buf, KeyTypeStr)
	require.NoError(t, err)
	assert.Equal(t, k, gotKey)
	assert.Equal(t, rid, gotRID)
}

func TestLeafEntry_StrKeyTooLong(t *testing.T) {
	k := StrKey(strings.Repeat("x", MaxStrKeyLen+1))
	_, err := EncodeLeafEntry(k, RID{})
	require.ErrorIs(t, err, ErrKeyTooLong)
}

func TestIndexEntry_RoundTrips(t *testing.T) {
	k := IntKey(100)
	buf, err := EncodeIndexEntry(k, 55)
	require.NoError(t, err)

	gotKey, child, err := DecodeIndexEntry(buf, KeyTypeInt)
	require.NoError(t, err)
	assert.Equal(t, k, gotKey)
	assert.Equal(t, uint32(55), child)
}

func TestEntryLength(t *testing.T) {
	n, err := EntryLength(IntKey(1), MaxStrKeyLen)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = EntryLength(StrKey("abc"), MaxStrKeyLen)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestEntryLength_RejectsPastConfiguredMax(t *testing.T) {
	_, err := EntryLength(StrKey("hello world"), 4)
	require.ErrorIs(t, err, ErrKeyTooLong)
}

func TestDecodeLeafEntry_ShortBuffer(t *testing.T) {
	_, _, err := DecodeLeafEntry([]byte{1, 2, 3}, KeyTypeInt)
	require.ErrorIs(t, err, ErrShortBuffer)
}
