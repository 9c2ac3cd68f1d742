package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
)

func TestScan_EmptyTree(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)
	s, err := tree.NewScan(nil, nil)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Empty(t, got)
}

func TestScan_RangeBounds(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)
	const n = 400
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(keycodec.IntKey(int64(i)), keycodec.RID{PageID: uint32(i)}))
	}

	lo := keycodec.IntKey(100)
	hi := keycodec.IntKey(150)
	s, err := tree.NewScan(&lo, &hi)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Len(t, got, 51)
	require.Equal(t, int64(100), got[0].Key.Int)
	require.Equal(t, int64(150), got[len(got)-1].Key.Int)
}

func TestScan_LoKeyNotPresent_StartsAtNextHigher(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)
	for _, k := range []int64{1, 3, 5, 7, 9} {
		require.NoError(t, tree.Insert(keycodec.IntKey(k), keycodec.RID{PageID: uint32(k)}))
	}

	lo := keycodec.IntKey(4)
	s, err := tree.NewScan(&lo, nil)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Len(t, got, 3)
	require.Equal(t, int64(5), got[0].Key.Int)
}

func TestScan_HiKeyBeforeAnyData_EmptyResult(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)
	for _, k := range []int64{10, 20, 30} {
		require.NoError(t, tree.Insert(keycodec.IntKey(k), keycodec.RID{PageID: uint32(k)}))
	}

	hi := keycodec.IntKey(5)
	s, err := tree.NewScan(nil, &hi)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Empty(t, got)
}

func TestScan_CloseReleasesPin(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)
	require.NoError(t, tree.Insert(keycodec.IntKey(1), keycodec.RID{PageID: 1}))

	s, err := tree.NewScan(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, s.current)
	require.NoError(t, s.Close())
	require.Nil(t, s.current)
	require.NoError(t, s.Close())
}
