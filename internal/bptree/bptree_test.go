package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mooncake-db/bptreeidx/internal/bufferpool"
	"github.com/mooncake-db/bptreeidx/internal/catalog"
	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// newTestTree wires up a disposable StorageManager, buffer pool and catalog
// and returns a freshly created int-keyed tree with the given delete
// policy. The buffer pool is sized generously so tests exercising many
// splits don't spuriously hit ErrNoFreeFrame.
func newTestTree(t *testing.T, policy DeletePolicy) *Tree {
	t.Helper()

	dir := t.TempDir()
	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: dir, Base: "idx"}
	cat, err := catalog.Open(dir)
	require.NoError(t, err)

	pool := bufferpool.NewPool(sm, fs, 256)
	tree, err := CreateOrOpen("idx", keycodec.KeyTypeInt, 8, policy, cat, pool, nil)
	require.NoError(t, err)
	return tree
}

// newTestStrTree is like newTestTree but for a string-keyed tree, with
// maxKeySize as its configured per-tree bound on a Str key's payload.
func newTestStrTree(t *testing.T, maxKeySize uint16) *Tree {
	t.Helper()

	dir := t.TempDir()
	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: dir, Base: "idx"}
	cat, err := catalog.Open(dir)
	require.NoError(t, err)

	pool := bufferpool.NewPool(sm, fs, 256)
	tree, err := CreateOrOpen("idx", keycodec.KeyTypeStr, maxKeySize, DeletePolicyFull, cat, pool, nil)
	require.NoError(t, err)
	return tree
}

func mustEntries(t *testing.T, s *Scan) []LeafEntry {
	t.Helper()
	var out []LeafEntry
	for {
		e, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}
