package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_AddGetDelete(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)

	_, ok := c.GetFileEntry("orders_idx")
	assert.False(t, ok)

	require.NoError(t, c.AddFileEntry("orders_idx", "orders_idx.db", 0))

	e, ok := c.GetFileEntry("orders_idx")
	require.True(t, ok)
	assert.Equal(t, uint32(0), e.HeaderPageID)

	err = c.AddFileEntry("orders_idx", "orders_idx.db", 0)
	require.ErrorIs(t, err, ErrFileExists)

	require.NoError(t, c.DeleteFileEntry("orders_idx"))
	_, ok = c.GetFileEntry("orders_idx")
	assert.False(t, ok)

	err = c.DeleteFileEntry("orders_idx")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestCatalog_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c1.AddFileEntry("idx", "idx.db", 0))

	c2, err := Open(dir)
	require.NoError(t, err)
	e, ok := c2.GetFileEntry("idx")
	require.True(t, ok)
	assert.Equal(t, uint32(0), e.HeaderPageID)
}

func TestCatalog_ListFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, c.AddFileEntry("b_idx", "b.db", 0))
	require.NoError(t, c.AddFileEntry("a_idx", "a.db", 0))

	entries := c.ListFiles()
	require.Len(t, entries, 2)
	assert.Equal(t, "a_idx", entries[0].Name)
	assert.Equal(t, "b_idx", entries[1].Name)
}
