package bptree

import (
	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// findRunStart locates the leaf that should hold the first record with key
// >= loKey (or the leftmost non-empty leaf if loKey is nil), pins it, and
// returns it. The caller owns the returned pin. Descent follows the last
// child whose separator is strictly less than loKey, else the left-link;
// this can land one leaf short of the true target, so empty or
// all-too-small leaves are skipped by walking the sibling chain.
func (t *Tree) findRunStart(loKey *keycodec.Key) (*LeafPage, error) {
	root := t.header.RootPageID()
	if root == storage.InvalidPageID {
		return nil, nil
	}

	currentID := root
	for {
		raw, err := t.bp.Pin(currentID)
		if err != nil {
			return nil, err
		}

		if nodeKind(raw) == KindIndex {
			ip, err := wrapIndexPage(raw, t.keyType)
			if err != nil {
				_ = t.bp.Unpin(raw, false)
				return nil, err
			}
			var next uint32
			if loKey == nil {
				next = ip.LeftLink()
			} else {
				next, err = ip.PageNoByKeyStrictLess(*loKey)
				if err != nil {
					_ = t.bp.Unpin(raw, false)
					return nil, err
				}
			}
			if err := t.bp.Unpin(raw, false); err != nil {
				return nil, err
			}
			currentID = next
			continue
		}

		if nodeKind(raw) != KindLeaf {
			_ = t.bp.Unpin(raw, false)
			return nil, ErrNodeTypeInvalid
		}

		lp, err := wrapLeafPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return nil, err
		}

		for {
			if loKey == nil {
				if !lp.Empty() {
					return lp, nil
				}
			} else if _, ok, ferr := lp.FindKeyData(*loKey); ferr != nil {
				_ = t.bp.Unpin(lp.raw, false)
				return nil, ferr
			} else if ok {
				return lp, nil
			}

			next := lp.NextPage()
			if err := t.bp.Unpin(lp.raw, false); err != nil {
				return nil, err
			}
			if next == storage.InvalidPageID {
				return nil, nil
			}
			nraw, err := t.bp.Pin(next)
			if err != nil {
				return nil, err
			}
			lp, err = wrapLeafPage(nraw, t.keyType)
			if err != nil {
				_ = t.bp.Unpin(nraw, false)
				return nil, err
			}
		}
	}
}

// Scan iterates leaf entries in ascending key order starting at the first
// key >= the scan's lo bound, stopping once a key exceeds the hi bound.
// The currently visited leaf is held pinned between calls to Next.
type Scan struct {
	tree    *Tree
	hiKey   *keycodec.Key
	current *LeafPage
	entries []LeafEntry
	idx     int
	done    bool
}

// NewScan starts a range scan. Either bound may be nil for an open end.
func (t *Tree) NewScan(loKey, hiKey *keycodec.Key) (*Scan, error) {
	if t.closed.Load() {
		return nil, ErrTreeClosed
	}
	lp, err := t.findRunStart(loKey)
	if err != nil {
		return nil, err
	}
	s := &Scan{tree: t, hiKey: hiKey}
	if lp == nil {
		s.done = true
		return s, nil
	}

	entries, err := lp.Entries()
	if err != nil {
		_ = t.bp.Unpin(lp.raw, false)
		return nil, err
	}
	startIdx := len(entries)
	if loKey == nil {
		startIdx = 0
	} else {
		for i, e := range entries {
			if keycodec.Compare(e.Key, *loKey) >= 0 {
				startIdx = i
				break
			}
		}
	}
	s.current = lp
	s.entries = entries
	s.idx = startIdx
	return s, nil
}

// Next returns the next qualifying entry, or ok=false once the scan is
// exhausted (the hi bound was passed or the leaf chain ran out).
func (s *Scan) Next() (LeafEntry, bool, error) {
	for {
		if s.done || s.current == nil {
			return LeafEntry{}, false, nil
		}
		if s.idx >= len(s.entries) {
			next := s.current.NextPage()
			if err := s.tree.bp.Unpin(s.current.raw, false); err != nil {
				return LeafEntry{}, false, err
			}
			s.current = nil
			if next == storage.InvalidPageID {
				s.done = true
				return LeafEntry{}, false, nil
			}
			raw, err := s.tree.bp.Pin(next)
			if err != nil {
				return LeafEntry{}, false, err
			}
			lp, err := wrapLeafPage(raw, s.tree.keyType)
			if err != nil {
				_ = s.tree.bp.Unpin(raw, false)
				return LeafEntry{}, false, err
			}
			entries, err := lp.Entries()
			if err != nil {
				_ = s.tree.bp.Unpin(raw, false)
				return LeafEntry{}, false, err
			}
			s.current = lp
			s.entries = entries
			s.idx = 0
			continue
		}

		e := s.entries[s.idx]
		s.idx++
		if s.hiKey != nil && keycodec.Compare(e.Key, *s.hiKey) > 0 {
			s.done = true
			if err := s.tree.bp.Unpin(s.current.raw, false); err != nil {
				return LeafEntry{}, false, err
			}
			s.current = nil
			return LeafEntry{}, false, nil
		}
		return e, true, nil
	}
}

// Close releases the scan's currently pinned leaf, if any. Safe to call
// repeatedly, including after the scan has naturally exhausted.
func (s *Scan) Close() error {
	if s.current == nil {
		return nil
	}
	raw := s.current.raw
	s.current = nil
	s.done = true
	return s.tree.bp.Unpin(raw, false)
}
