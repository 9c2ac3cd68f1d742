// Package catalog tracks which named index files exist on disk and the
// page-id of each one's header page, persisted as a small JSON sidecar
// next to the index's segment files. The header page id is stable for the
// lifetime of a file; the current root lives inside the header page itself
// and is managed by the bptree package, not here.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

var (
	ErrFileNotFound = errors.New("catalog: file entry not found")
	ErrFileExists   = errors.New("catalog: file entry already exists")
)

// FileEntry describes one registered index file.
type FileEntry struct {
	Name         string    `json:"name"`
	FileBase     string    `json:"file_base"`
	HeaderPageID uint32    `json:"header_page_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type diskCatalog struct {
	Version int                  `json:"version"`
	Files   map[string]FileEntry `json:"files"`
}

// Catalog is a directory-scoped registry of index files, backed by a single
// JSON file (catalog.json) written atomically on every mutation.
type Catalog struct {
	path string
	data diskCatalog
}

// Open loads (or initializes) the catalog sidecar file living at
// filepath.Join(dir, "catalog.json").
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "catalog.json")

	c := &Catalog{path: path, data: diskCatalog{Version: 1, Files: map[string]FileEntry{}}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c.data); err != nil {
		return nil, fmt.Errorf("catalog: corrupt catalog file %s: %w", path, err)
	}
	if c.data.Files == nil {
		c.data.Files = map[string]FileEntry{}
	}
	return c, nil
}

// GetFileEntry returns the named entry and true, or a zero FileEntry and
// false if no such file is registered.
func (c *Catalog) GetFileEntry(name string) (FileEntry, bool) {
	e, ok := c.data.Files[name]
	return e, ok
}

// AddFileEntry registers a new index file. Returns ErrFileExists if name is
// already registered.
func (c *Catalog) AddFileEntry(name, fileBase string, headerPageID uint32) error {
	if _, ok := c.data.Files[name]; ok {
		return ErrFileExists
	}
	now := time.Now()
	c.data.Files[name] = FileEntry{
		Name:         name,
		FileBase:     fileBase,
		HeaderPageID: headerPageID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return c.flush()
}

// DeleteFileEntry removes name from the catalog. Returns ErrFileNotFound if
// it wasn't registered.
func (c *Catalog) DeleteFileEntry(name string) error {
	if _, ok := c.data.Files[name]; !ok {
		return ErrFileNotFound
	}
	delete(c.data.Files, name)
	return c.flush()
}

// ListFiles returns all registered entries sorted by name, for diagnostics.
func (c *Catalog) ListFiles() []FileEntry {
	out := make([]FileEntry, 0, len(c.data.Files))
	for _, e := range c.data.Files {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// flush persists the catalog to disk via a temp-file-then-rename so a crash
// mid-write never leaves a truncated catalog.json behind.
func (c *Catalog) flush() error {
	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
