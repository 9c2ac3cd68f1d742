package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

func TestInsert_EmptyTree_CreatesRootLeaf(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)

	require.Equal(t, storage.InvalidPageID, tree.header.RootPageID())
	err := tree.Insert(keycodec.IntKey(1), keycodec.RID{PageID: 10, Slot: 0})
	require.NoError(t, err)

	root := tree.header.RootPageID()
	require.NotEqual(t, storage.InvalidPageID, root)

	raw, err := tree.bp.Pin(root)
	require.NoError(t, err)
	require.Equal(t, KindLeaf, nodeKind(raw))
	require.NoError(t, tree.bp.Unpin(raw, false))

	s, err := tree.NewScan(nil, nil)
	require.NoError(t, err)
	entries := mustEntries(t, s)
	require.Len(t, entries, 1)
	require.Equal(t, int64(1), entries[0].Key.Int)
}

// TestInsert_LeafSplitAtCapacity inserts one more entry than a single leaf
// can hold and confirms the 63rd insert forces a split, growing the root
// into an index page with two leaf children.
func TestInsert_LeafSplitAtCapacity(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)

	for i := 0; i < MaxLeafPageCapacity; i++ {
		err := tree.Insert(keycodec.IntKey(int64(i)), keycodec.RID{PageID: uint32(i), Slot: 0})
		require.NoError(t, err)
	}

	root := tree.header.RootPageID()
	raw, err := tree.bp.Pin(root)
	require.NoError(t, err)
	require.Equal(t, KindLeaf, nodeKind(raw))
	require.NoError(t, tree.bp.Unpin(raw, false))

	err = tree.Insert(keycodec.IntKey(int64(MaxLeafPageCapacity)), keycodec.RID{PageID: uint32(MaxLeafPageCapacity), Slot: 0})
	require.NoError(t, err)

	root = tree.header.RootPageID()
	raw, err = tree.bp.Pin(root)
	require.NoError(t, err)
	require.Equal(t, KindIndex, nodeKind(raw))
	ip, err := wrapIndexPage(raw, keycodec.KeyTypeInt)
	require.NoError(t, err)
	entries, err := ip.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, tree.bp.Unpin(raw, false))

	s, err := tree.NewScan(nil, nil)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Len(t, got, MaxLeafPageCapacity+1)
	for i, e := range got {
		require.Equal(t, int64(i), e.Key.Int)
	}
}

func TestInsert_ManyKeys_ScanReturnsSortedAndComplete(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)

	const n = 500
	for i := n - 1; i >= 0; i-- {
		err := tree.Insert(keycodec.IntKey(int64(i)), keycodec.RID{PageID: uint32(i), Slot: 1})
		require.NoError(t, err)
	}

	s, err := tree.NewScan(nil, nil)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Len(t, got, n)
	for i, e := range got {
		require.Equal(t, int64(i), e.Key.Int)
	}

	stats, err := tree.Stats()
	require.NoError(t, err)
	require.Greater(t, stats.Height, 1)
	require.Equal(t, n, stats.KeyCount)
}

func TestInsert_DuplicateKeys_AllowedAndOrdered(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)

	for i := 0; i < 5; i++ {
		err := tree.Insert(keycodec.IntKey(7), keycodec.RID{PageID: uint32(i), Slot: 0})
		require.NoError(t, err)
	}
	s, err := tree.NewScan(nil, nil)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Len(t, got, 5)
	for _, e := range got {
		require.Equal(t, int64(7), e.Key.Int)
	}
}

func TestInsert_KeyTypeMismatch(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)
	err := tree.Insert(keycodec.StrKey("nope"), keycodec.RID{})
	require.ErrorIs(t, err, ErrKeyTypeMismatch)
}

// TestInsert_StrKey_RejectsPastConfiguredMaxKeySize confirms a tree opened
// with a small MaxKeySize rejects a key within keycodec.MaxStrKeyLen but
// past its own configured bound, rather than only enforcing the package
// ceiling.
func TestInsert_StrKey_RejectsPastConfiguredMaxKeySize(t *testing.T) {
	tree := newTestStrTree(t, 8)

	err := tree.Insert(keycodec.StrKey("short"), keycodec.RID{PageID: 1})
	require.NoError(t, err)

	err = tree.Insert(keycodec.StrKey("far too long for this tree"), keycodec.RID{PageID: 2})
	require.ErrorIs(t, err, keycodec.ErrKeyTooLong)

	s, err := tree.NewScan(nil, nil)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Len(t, got, 1)
	require.Equal(t, "short", got[0].Key.Str)
}
