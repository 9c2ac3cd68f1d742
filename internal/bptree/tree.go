package bptree

import (
	"log/slog"

	"go.uber.org/atomic"

	"github.com/mooncake-db/bptreeidx/internal/bufferpool"
	"github.com/mooncake-db/bptreeidx/internal/catalog"
	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// Tree is the public handle to one open disk-resident B+-tree index. The
// header page is pinned for the tree's whole lifetime and unpinned dirty on
// Close. Close/Destroy may race with a caller that's still issuing reads
// from another goroutine, so closed is an atomic flag rather than a plain
// bool.
type Tree struct {
	name     string
	cat      *catalog.Catalog
	bp       bufferpool.Manager
	header   *HeaderPage
	headerID uint32
	keyType  keycodec.KeyType
	policy   DeletePolicy
	trace    Writer
	closed   atomic.Bool
}

// Open opens an index file already registered in cat under name.
func Open(name string, cat *catalog.Catalog, bp bufferpool.Manager, trace Writer) (*Tree, error) {
	entry, ok := cat.GetFileEntry(name)
	if !ok {
		return nil, ErrMissingFile
	}
	raw, err := bp.Pin(entry.HeaderPageID)
	if err != nil {
		return nil, err
	}
	h, err := wrapHeaderPage(raw)
	if err != nil {
		_ = bp.Unpin(raw, false)
		return nil, err
	}
	if trace == nil {
		trace = NoopWriter{}
	}
	t := &Tree{
		name:     name,
		cat:      cat,
		bp:       bp,
		header:   h,
		headerID: entry.HeaderPageID,
		keyType:  h.KeyType(),
		policy:   h.DeletePolicy(),
		trace:    trace,
	}
	trace.Tracef("open %s: root=%d keyType=%s policy=%s", name, h.RootPageID(), t.keyType, t.policy)
	slog.Debug("bptree.Open", "name", name, "headerID", entry.HeaderPageID, "root", h.RootPageID())
	return t, nil
}

// CreateOrOpen opens name if the catalog already has it, otherwise creates
// a fresh empty tree with the given creation parameters.
func CreateOrOpen(name string, keyType keycodec.KeyType, maxKeySize uint16, policy DeletePolicy, cat *catalog.Catalog, bp bufferpool.Manager, trace Writer) (*Tree, error) {
	if _, ok := cat.GetFileEntry(name); ok {
		return Open(name, cat, bp, trace)
	}

	raw, err := bp.Allocate()
	if err != nil {
		return nil, err
	}
	formatHeaderPage(raw, keyType, maxKeySize, policy)
	headerID := raw.PageID()
	if err := bp.Unpin(raw, true); err != nil {
		return nil, err
	}
	if err := cat.AddFileEntry(name, name, headerID); err != nil {
		return nil, err
	}
	slog.Debug("bptree.CreateOrOpen.create", "name", name, "headerID", headerID, "keyType", keyType, "policy", policy)
	return Open(name, cat, bp, trace)
}

// KeyType reports the key type the tree was created with.
func (t *Tree) KeyType() keycodec.KeyType { return t.keyType }

// Close unpins the header page. It is safe to call more than once.
func (t *Tree) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.bp.Unpin(t.header.raw, true)
}

// Destroy frees every page reachable from the root and removes the tree's
// catalog entry. The Tree is unusable afterwards.
func (t *Tree) Destroy() error {
	if t.closed.Load() {
		return ErrTreeClosed
	}
	slog.Debug("bptree.Destroy", "name", t.name, "root", t.header.RootPageID())
	root := t.header.RootPageID()
	if root != storage.InvalidPageID {
		if err := t.destroySubtree(root); err != nil {
			return err
		}
	}
	t.header.SetRootPageID(storage.InvalidPageID)
	if err := t.bp.Unpin(t.header.raw, true); err != nil {
		return err
	}
	if err := t.cat.DeleteFileEntry(t.name); err != nil {
		return err
	}
	t.closed.Store(true)
	return t.bp.Free(t.headerID)
}

func (t *Tree) destroySubtree(id uint32) error {
	raw, err := t.bp.Pin(id)
	if err != nil {
		return err
	}
	switch nodeKind(raw) {
	case KindLeaf:
		if err := t.bp.Unpin(raw, false); err != nil {
			return err
		}
		return t.bp.Free(id)
	case KindIndex:
		ip, err := wrapIndexPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return err
		}
		entries, err := ip.Entries()
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return err
		}
		children := make([]uint32, 0, len(entries)+1)
		children = append(children, ip.LeftLink())
		for _, e := range entries {
			children = append(children, e.Child)
		}
		if err := t.bp.Unpin(raw, false); err != nil {
			return err
		}
		for _, c := range children {
			if err := t.destroySubtree(c); err != nil {
				return err
			}
		}
		return t.bp.Free(id)
	default:
		_ = t.bp.Unpin(raw, false)
		return ErrNodeTypeInvalid
	}
}

// Stats reports node and key counts, useful for tests and diagnostics.
type Stats struct {
	LeafCount  int
	IndexCount int
	Height     int
	KeyCount   int
}

func (t *Tree) Stats() (Stats, error) {
	root := t.header.RootPageID()
	if root == storage.InvalidPageID {
		return Stats{}, nil
	}
	var s Stats
	height, err := t.statsSubtree(root, &s, 1)
	if err != nil {
		return Stats{}, err
	}
	s.Height = height
	return s, nil
}

func (t *Tree) statsSubtree(id uint32, s *Stats, depth int) (int, error) {
	raw, err := t.bp.Pin(id)
	if err != nil {
		return 0, err
	}
	switch nodeKind(raw) {
	case KindLeaf:
		lp, err := wrapLeafPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return 0, err
		}
		s.LeafCount++
		s.KeyCount += lp.NumEntries()
		return depth, t.bp.Unpin(raw, false)
	case KindIndex:
		ip, err := wrapIndexPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return 0, err
		}
		s.IndexCount++
		entries, err := ip.Entries()
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return 0, err
		}
		children := make([]uint32, 0, len(entries)+1)
		children = append(children, ip.LeftLink())
		for _, e := range entries {
			children = append(children, e.Child)
		}
		if err := t.bp.Unpin(raw, false); err != nil {
			return 0, err
		}
		maxDepth := depth
		for _, c := range children {
			d, err := t.statsSubtree(c, s, depth+1)
			if err != nil {
				return 0, err
			}
			if d > maxDepth {
				maxDepth = d
			}
		}
		return maxDepth, nil
	default:
		_ = t.bp.Unpin(raw, false)
		return 0, ErrNodeTypeInvalid
	}
}
