package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mooncake-db/bptreeidx/internal/bufferpool"
	"github.com/mooncake-db/bptreeidx/internal/catalog"
	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

func TestCreateOrOpen_ReopensExistingFile(t *testing.T) {
	dir := t.TempDir()
	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: dir, Base: "idx"}
	cat, err := catalog.Open(dir)
	require.NoError(t, err)
	pool := bufferpool.NewPool(sm, fs, 64)

	tree1, err := CreateOrOpen("orders", keycodec.KeyTypeInt, 8, DeletePolicyFull, cat, pool, nil)
	require.NoError(t, err)
	require.NoError(t, tree1.Insert(keycodec.IntKey(1), keycodec.RID{PageID: 1}))
	require.NoError(t, tree1.Close())

	tree2, err := CreateOrOpen("orders", keycodec.KeyTypeInt, 8, DeletePolicyFull, cat, pool, nil)
	require.NoError(t, err)
	s, err := tree2.NewScan(nil, nil)
	require.NoError(t, err)
	got := mustEntries(t, s)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].Key.Int)
}

func TestOpen_MissingFile(t *testing.T) {
	dir := t.TempDir()
	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: dir, Base: "idx"}
	cat, err := catalog.Open(dir)
	require.NoError(t, err)
	pool := bufferpool.NewPool(sm, fs, 64)

	_, err = Open("nope", cat, pool, nil)
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestDestroy_FreesPagesAndRemovesCatalogEntry(t *testing.T) {
	dir := t.TempDir()
	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: dir, Base: "idx"}
	cat, err := catalog.Open(dir)
	require.NoError(t, err)
	pool := bufferpool.NewPool(sm, fs, 128)

	tree, err := CreateOrOpen("items", keycodec.KeyTypeInt, 8, DeletePolicyFull, cat, pool, nil)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, tree.Insert(keycodec.IntKey(int64(i)), keycodec.RID{PageID: uint32(i)}))
	}

	require.NoError(t, tree.Destroy())
	_, ok := cat.GetFileEntry("items")
	require.False(t, ok)

	_, err = Open("items", cat, pool, nil)
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestTree_Stats_ReflectsShape(t *testing.T) {
	tree := newTestTree(t, DeletePolicyFull)
	stats, err := tree.Stats()
	require.NoError(t, err)
	require.Equal(t, Stats{}, stats)

	require.NoError(t, tree.Insert(keycodec.IntKey(1), keycodec.RID{PageID: 1}))
	stats, err = tree.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.LeafCount)
	require.Equal(t, 0, stats.IndexCount)
	require.Equal(t, 1, stats.Height)
	require.Equal(t, 1, stats.KeyCount)
}
