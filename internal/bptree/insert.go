package bptree

import (
	"log/slog"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// promotionEntry is what a split returns to its caller: the separator key
// to insert into the parent and the id of the newly allocated right page.
type promotionEntry struct {
	Key         keycodec.Key
	RightPageID uint32
}

// Insert adds (key, rid) to the tree, allocating the first leaf if the tree
// is empty and growing the root by one level when a split propagates all
// the way up.
func (t *Tree) Insert(key keycodec.Key, rid keycodec.RID) error {
	if t.closed.Load() {
		return ErrTreeClosed
	}
	if key.Type != t.keyType {
		return ErrKeyTypeMismatch
	}
	if _, err := keycodec.EntryLength(key, t.header.MaxKeySize()); err != nil {
		return err
	}

	root := t.header.RootPageID()
	if root == storage.InvalidPageID {
		raw, err := t.bp.Allocate()
		if err != nil {
			return err
		}
		lp, err := formatLeafPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return err
		}
		if err := lp.Insert(LeafEntry{Key: key, RID: rid}); err != nil {
			_ = t.bp.Unpin(raw, false)
			return err
		}
		t.header.SetRootPageID(raw.PageID())
		t.trace.Tracef("insert: new root leaf %d", raw.PageID())
		return t.bp.Unpin(raw, true)
	}

	promo, err := t.insertRec(key, rid, root)
	if err != nil {
		return err
	}
	if promo == nil {
		return nil
	}

	newRootRaw, err := t.bp.Allocate()
	if err != nil {
		return err
	}
	newRoot, err := formatIndexPage(newRootRaw, t.keyType, root)
	if err != nil {
		_ = t.bp.Unpin(newRootRaw, false)
		return err
	}
	if err := newRoot.Insert(IndexEntry{Key: promo.Key, Child: promo.RightPageID}); err != nil {
		_ = t.bp.Unpin(newRootRaw, false)
		return err
	}
	t.header.SetRootPageID(newRootRaw.PageID())
	t.trace.Tracef("insert: root grew, new root %d over old root %d", newRootRaw.PageID(), root)
	slog.Debug("bptree.Insert.root_split", "newRoot", newRootRaw.PageID(), "oldRoot", root, "promotedKey", promo.Key)
	return t.bp.Unpin(newRootRaw, true)
}

// insertRec descends to the leaf that should hold (key, rid), splitting
// pages on the way back up as needed. It returns a promotion entry iff
// currentID's page split.
func (t *Tree) insertRec(key keycodec.Key, rid keycodec.RID, currentID uint32) (*promotionEntry, error) {
	raw, err := t.bp.Pin(currentID)
	if err != nil {
		return nil, err
	}

	switch nodeKind(raw) {
	case KindIndex:
		ip, err := wrapIndexPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return nil, err
		}
		childID, err := ip.PageNoByKey(key)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return nil, err
		}
		if err := t.bp.Unpin(raw, false); err != nil {
			return nil, err
		}

		childPromo, err := t.insertRec(key, rid, childID)
		if err != nil {
			return nil, err
		}
		if childPromo == nil {
			return nil, nil
		}

		raw, err = t.bp.Pin(currentID)
		if err != nil {
			return nil, err
		}
		ip, err = wrapIndexPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return nil, err
		}

		entry := IndexEntry{Key: childPromo.Key, Child: childPromo.RightPageID}
		fits, err := ip.HasRoomFor(entry)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return nil, err
		}
		if fits {
			if err := ip.Insert(entry); err != nil {
				_ = t.bp.Unpin(raw, false)
				return nil, err
			}
			return nil, t.bp.Unpin(raw, true)
		}
		return t.splitIndex(ip, entry)

	case KindLeaf:
		lp, err := wrapLeafPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return nil, err
		}

		entry := LeafEntry{Key: key, RID: rid}
		fits, err := lp.HasRoomFor(entry)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return nil, err
		}
		if fits {
			if err := lp.Insert(entry); err != nil {
				_ = t.bp.Unpin(raw, false)
				return nil, err
			}
			return nil, t.bp.Unpin(raw, true)
		}
		return t.splitLeaf(lp, entry)

	default:
		_ = t.bp.Unpin(raw, false)
		return nil, ErrNodeTypeInvalid
	}
}

// splitIndex splits a full index page. All entries are moved onto a new
// page, then moved back in order for as long as current still ends up with
// fewer entries than new (new, the right page, ends up holding the larger
// half). The incoming entry is then placed by comparing it against
// new's first remaining key, the first of which is promoted as the
// separator and used as new's left-link.
func (t *Tree) splitIndex(current *IndexPage, incoming IndexEntry) (*promotionEntry, error) {
	entries, err := current.Entries()
	if err != nil {
		_ = t.bp.Unpin(current.raw, false)
		return nil, err
	}

	total := len(entries)
	leftCount := total / 2
	rightCount := total - leftCount
	for leftCount >= rightCount && leftCount > 0 {
		leftCount--
		rightCount++
	}
	leftEntries := append([]IndexEntry(nil), entries[:leftCount]...)
	rightEntries := append([]IndexEntry(nil), entries[leftCount:]...)

	if len(rightEntries) > 0 && keycodec.Compare(incoming.Key, rightEntries[0].Key) > 0 {
		rightEntries = insertSortedIndex(rightEntries, incoming)
	} else {
		leftEntries = insertSortedIndex(leftEntries, incoming)
	}
	if len(rightEntries) == 0 {
		_ = t.bp.Unpin(current.raw, false)
		return nil, ErrRecordNotFound
	}

	newRaw, err := t.bp.Allocate()
	if err != nil {
		_ = t.bp.Unpin(current.raw, false)
		return nil, err
	}

	sep := rightEntries[0]
	rightEntries = rightEntries[1:]

	newPage, err := formatIndexPage(newRaw, t.keyType, sep.Child)
	if err != nil {
		_ = t.bp.Unpin(current.raw, false)
		_ = t.bp.Unpin(newRaw, false)
		return nil, err
	}
	if err := newPage.rebuild(rightEntries); err != nil {
		return nil, err
	}
	if err := current.rebuild(leftEntries); err != nil {
		return nil, err
	}

	t.trace.Tracef("insert: split index %d -> %d (sep=%s)", current.raw.PageID(), newRaw.PageID(), sep.Key)

	if err := t.bp.Unpin(newRaw, true); err != nil {
		return nil, err
	}
	if err := t.bp.Unpin(current.raw, true); err != nil {
		return nil, err
	}
	return &promotionEntry{Key: sep.Key, RightPageID: newRaw.PageID()}, nil
}

// splitLeaf splits a full leaf page, balancing by physical space rather
// than record count: entries move from new back onto current, front
// first, while current holds fewer bytes than new, so current can end up
// one entry fuller than new. Sibling links
// are rewired so the leaf chain stays intact.
func (t *Tree) splitLeaf(current *LeafPage, incoming LeafEntry) (*promotionEntry, error) {
	entries, err := current.Entries()
	if err != nil {
		_ = t.bp.Unpin(current.raw, false)
		return nil, err
	}

	newEntries := append([]LeafEntry(nil), entries...)
	var currentEntries []LeafEntry

	newUsed := 0
	for _, e := range newEntries {
		sz, err := leafEntryWireSize(e)
		if err != nil {
			_ = t.bp.Unpin(current.raw, false)
			return nil, err
		}
		newUsed += sz
	}
	currentUsed := 0

	for len(newEntries) > 0 && currentUsed < newUsed {
		sz, err := leafEntryWireSize(newEntries[0])
		if err != nil {
			_ = t.bp.Unpin(current.raw, false)
			return nil, err
		}
		moved := newEntries[0]
		newEntries = newEntries[1:]
		currentEntries = append(currentEntries, moved)
		currentUsed += sz
		newUsed -= sz
	}

	if len(newEntries) > 0 && keycodec.Compare(incoming.Key, newEntries[0].Key) > 0 {
		newEntries = insertSortedLeaf(newEntries, incoming)
	} else {
		currentEntries = insertSortedLeaf(currentEntries, incoming)
	}
	if len(newEntries) == 0 {
		_ = t.bp.Unpin(current.raw, false)
		return nil, ErrRecordNotFound
	}

	newRaw, err := t.bp.Allocate()
	if err != nil {
		_ = t.bp.Unpin(current.raw, false)
		return nil, err
	}
	newPage, err := formatLeafPage(newRaw, t.keyType)
	if err != nil {
		_ = t.bp.Unpin(current.raw, false)
		_ = t.bp.Unpin(newRaw, false)
		return nil, err
	}

	oldNext := current.NextPage()
	newPage.SetNextPage(oldNext)
	newPage.SetPrevPage(current.raw.PageID())
	if oldNext != storage.InvalidPageID {
		nextRaw, err := t.bp.Pin(oldNext)
		if err != nil {
			return nil, err
		}
		nextLeaf, err := wrapLeafPage(nextRaw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(nextRaw, false)
			return nil, err
		}
		nextLeaf.SetPrevPage(newRaw.PageID())
		if err := t.bp.Unpin(nextRaw, true); err != nil {
			return nil, err
		}
	}
	current.SetNextPage(newRaw.PageID())

	if err := newPage.rebuild(newEntries); err != nil {
		return nil, err
	}
	if err := current.rebuild(currentEntries); err != nil {
		return nil, err
	}

	t.trace.Tracef("insert: split leaf %d -> %d (sep=%s)", current.raw.PageID(), newRaw.PageID(), newEntries[0].Key)

	if err := t.bp.Unpin(newRaw, true); err != nil {
		return nil, err
	}
	if err := t.bp.Unpin(current.raw, true); err != nil {
		return nil, err
	}
	return &promotionEntry{Key: newEntries[0].Key, RightPageID: newRaw.PageID()}, nil
}

func leafEntryWireSize(e LeafEntry) (int, error) {
	buf, err := keycodec.EncodeLeafEntry(e.Key, e.RID)
	if err != nil {
		return 0, err
	}
	return len(buf) + storage.SlotSize, nil
}

func insertSortedIndex(entries []IndexEntry, e IndexEntry) []IndexEntry {
	pos := len(entries)
	for i, ex := range entries {
		if keycodec.Compare(ex.Key, e.Key) > 0 {
			pos = i
			break
		}
	}
	entries = append(entries, IndexEntry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = e
	return entries
}

func insertSortedLeaf(entries []LeafEntry, e LeafEntry) []LeafEntry {
	pos := len(entries)
	for i, ex := range entries {
		if keycodec.Compare(ex.Key, e.Key) > 0 {
			pos = i
			break
		}
	}
	entries = append(entries, LeafEntry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = e
	return entries
}
