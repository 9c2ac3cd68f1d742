package bptree

import (
	"log/slog"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// deletionNotice is what a merge returns to its caller: the key of the
// separator the caller must now remove from its own page, and the id of the
// page that was just freed. A root collapse returns no notice.
type deletionNotice struct {
	Key         keycodec.Key
	FreedPageID uint32
}

// Delete removes the entry matching (key, rid) exactly, dispatching to
// whichever delete policy the tree was created with.
func (t *Tree) Delete(key keycodec.Key, rid keycodec.RID) (bool, error) {
	if t.closed.Load() {
		return false, ErrTreeClosed
	}
	if key.Type != t.keyType {
		return false, ErrKeyTypeMismatch
	}
	if t.policy == DeletePolicyNaive {
		return t.deleteNaive(key, rid)
	}
	return t.deleteFull(key, rid)
}

// deleteNaive locates the run of matching keys via findRunStart and scans
// right through the leaf chain for an exact (key, rid) match, performing no
// rebalancing. It stops as soon as it passes a key greater than key.
func (t *Tree) deleteNaive(key keycodec.Key, rid keycodec.RID) (bool, error) {
	lp, err := t.findRunStart(&key)
	if err != nil {
		return false, err
	}
	if lp == nil {
		return false, nil
	}

	for {
		entries, err := lp.Entries()
		if err != nil {
			_ = t.bp.Unpin(lp.raw, false)
			return false, err
		}

		for _, e := range entries {
			if keycodec.Compare(e.Key, key) > 0 {
				return false, t.bp.Unpin(lp.raw, false)
			}
			if keycodec.Compare(e.Key, key) == 0 && e.RID == rid {
				if _, err := lp.DeleteExact(key, rid); err != nil {
					_ = t.bp.Unpin(lp.raw, false)
					return false, err
				}
				return true, t.bp.Unpin(lp.raw, true)
			}
		}

		next := lp.NextPage()
		if err := t.bp.Unpin(lp.raw, false); err != nil {
			return false, err
		}
		if next == storage.InvalidPageID {
			return false, nil
		}
		raw, err := t.bp.Pin(next)
		if err != nil {
			return false, err
		}
		lp, err = wrapLeafPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return false, err
		}
	}
}

// deleteFull removes the entry via the recursive redistribute-or-merge
// engine, rebalancing underfull pages as the recursion unwinds.
func (t *Tree) deleteFull(key keycodec.Key, rid keycodec.RID) (bool, error) {
	root := t.header.RootPageID()
	if root == storage.InvalidPageID {
		return false, nil
	}
	removed := false
	_, err := t.fullDelete(key, rid, root, nil, &removed)
	if err != nil {
		return false, err
	}
	return removed, nil
}

// fullDelete dispatches on node kind. parent, when non-nil, is the
// already-pinned parent index page, passed down (rather than stored in
// nodes) so the child's own rebalancing can read and mutate its separators
// directly; this means the parent stays pinned across the recursive call
// into its child, unlike insert's unpin-before-recurse discipline.
func (t *Tree) fullDelete(key keycodec.Key, rid keycodec.RID, currentID uint32, parent *IndexPage, removed *bool) (*deletionNotice, error) {
	raw, err := t.bp.Pin(currentID)
	if err != nil {
		return nil, err
	}
	switch nodeKind(raw) {
	case KindLeaf:
		return t.fullDeleteLeaf(raw, key, rid, parent, removed)
	case KindIndex:
		return t.fullDeleteIndex(raw, key, rid, currentID, parent, removed)
	default:
		_ = t.bp.Unpin(raw, false)
		return nil, ErrNodeTypeInvalid
	}
}

func (t *Tree) fullDeleteLeaf(raw *storage.Page, key keycodec.Key, rid keycodec.RID, parent *IndexPage, removed *bool) (*deletionNotice, error) {
	lp, err := wrapLeafPage(raw, t.keyType)
	if err != nil {
		_ = t.bp.Unpin(raw, false)
		return nil, err
	}

	firstBefore, hadFirst, err := lp.FirstKey()
	if err != nil {
		_ = t.bp.Unpin(raw, false)
		return nil, err
	}

	ok, err := lp.DeleteExact(key, rid)
	if err != nil {
		_ = t.bp.Unpin(raw, false)
		return nil, err
	}
	if !ok {
		return nil, t.bp.Unpin(raw, false)
	}
	*removed = true

	if parent == nil && lp.Empty() {
		rootID := raw.PageID()
		t.header.SetRootPageID(storage.InvalidPageID)
		if err := t.bp.Unpin(raw, false); err != nil {
			return nil, err
		}
		return nil, t.bp.Free(rootID)
	}
	if lp.NumEntries() >= HalfLeafCapacity || parent == nil {
		return nil, t.bp.Unpin(raw, true)
	}
	return t.rebalanceLeaf(lp, parent, firstBefore, hadFirst)
}

// isChildOfParent reports whether pageID is one of parent's children
// (including its left-link), the sole correct test of sibling kinship: two
// pages only rebalance against each other when they share the same parent.
func (t *Tree) isChildOfParent(parent *IndexPage, pageID uint32) (bool, error) {
	if parent.LeftLink() == pageID {
		return true, nil
	}
	entries, err := parent.Entries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Child == pageID {
			return true, nil
		}
	}
	return false, nil
}

// redistributeLeafPair rebalances two adjacent leaves so each ends up with
// floor/ceil of their combined entry count, lower holding the smaller
// (floor) share. Used for both redistribute-from-left (lower=left,
// upper=current) and redistribute-from-right (lower=current, upper=right).
func redistributeLeafPair(lower, upper *LeafPage) error {
	lowerEntries, err := lower.Entries()
	if err != nil {
		return err
	}
	upperEntries, err := upper.Entries()
	if err != nil {
		return err
	}
	combined := append(append([]LeafEntry(nil), lowerEntries...), upperEntries...)
	lowerTarget := len(combined) / 2

	if err := lower.rebuild(combined[:lowerTarget]); err != nil {
		return err
	}
	return upper.rebuild(combined[lowerTarget:])
}

// rebalanceLeaf handles an underfull leaf by looking at the left sibling
// first (redistribute if it is more than half full, merge if it is exactly
// half full) and only then at the right sibling, with the same two cases.
// A right sibling that could redistribute is not tried before a merge with
// an exactly-half-full left sibling. A sibling only qualifies if it shares
// the same parent.
func (t *Tree) rebalanceLeaf(lp *LeafPage, parent *IndexPage, firstBefore keycodec.Key, hadFirst bool) (*deletionNotice, error) {
	currentID := lp.raw.PageID()
	leftID := lp.PrevPage()
	rightID := lp.NextPage()

	if leftID != storage.InvalidPageID {
		isSibling, err := t.isChildOfParent(parent, leftID)
		if err != nil {
			_ = t.bp.Unpin(lp.raw, false)
			return nil, err
		}
		if isSibling {
			leftRaw, err := t.bp.Pin(leftID)
			if err != nil {
				_ = t.bp.Unpin(lp.raw, false)
				return nil, err
			}
			leftLP, err := wrapLeafPage(leftRaw, t.keyType)
			if err != nil {
				_ = t.bp.Unpin(leftRaw, false)
				_ = t.bp.Unpin(lp.raw, false)
				return nil, err
			}

			switch {
			case leftLP.NumEntries() > HalfLeafCapacity:
				if err := redistributeLeafPair(leftLP, lp); err != nil {
					return nil, err
				}
				newFirst, ok, err := lp.FirstKey()
				if err != nil {
					return nil, err
				}
				if ok && hadFirst {
					if err := parent.AdjustKey(newFirst, firstBefore); err != nil {
						return nil, err
					}
				}
				if err := t.bp.Unpin(leftRaw, true); err != nil {
					return nil, err
				}
				return nil, t.bp.Unpin(lp.raw, true)

			case leftLP.NumEntries() == HalfLeafCapacity:
				entries, err := lp.Entries()
				if err != nil {
					return nil, err
				}
				for _, e := range entries {
					if err := leftLP.Insert(e); err != nil {
						return nil, err
					}
				}
				nextID := lp.NextPage()
				leftLP.SetNextPage(nextID)
				if nextID != storage.InvalidPageID {
					nextRaw, err := t.bp.Pin(nextID)
					if err != nil {
						return nil, err
					}
					nextLP, err := wrapLeafPage(nextRaw, t.keyType)
					if err != nil {
						_ = t.bp.Unpin(nextRaw, false)
						return nil, err
					}
					nextLP.SetPrevPage(leftID)
					if err := t.bp.Unpin(nextRaw, true); err != nil {
						return nil, err
					}
				}
				if err := t.bp.Unpin(leftRaw, true); err != nil {
					return nil, err
				}
				if err := t.bp.Unpin(lp.raw, false); err != nil {
					return nil, err
				}
				if err := t.bp.Free(currentID); err != nil {
					return nil, err
				}
				return &deletionNotice{Key: firstBefore, FreedPageID: currentID}, nil

			default:
				if err := t.bp.Unpin(leftRaw, false); err != nil {
					return nil, err
				}
			}
		}
	}

	if rightID != storage.InvalidPageID {
		rightRaw, err := t.bp.Pin(rightID)
		if err != nil {
			_ = t.bp.Unpin(lp.raw, false)
			return nil, err
		}
		rightLP, err := wrapLeafPage(rightRaw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(rightRaw, false)
			_ = t.bp.Unpin(lp.raw, false)
			return nil, err
		}

		rightFirst, rightHadFirst, err := rightLP.FirstKey()
		if err != nil {
			return nil, err
		}
		reachable := false
		if rightHadFirst {
			if childID, perr := parent.PageNoByKey(rightFirst); perr == nil && childID == rightID {
				reachable = true
			}
		}

		switch {
		case reachable && rightLP.NumEntries() > HalfLeafCapacity:
			if err := redistributeLeafPair(lp, rightLP); err != nil {
				return nil, err
			}
			newRightFirst, ok, err := rightLP.FirstKey()
			if err != nil {
				return nil, err
			}
			if ok {
				if err := parent.AdjustKey(newRightFirst, rightFirst); err != nil {
					return nil, err
				}
			}
			if err := t.bp.Unpin(rightRaw, true); err != nil {
				return nil, err
			}
			return nil, t.bp.Unpin(lp.raw, true)

		case reachable && rightLP.NumEntries() == HalfLeafCapacity:
			currentEntries, err := lp.Entries()
			if err != nil {
				return nil, err
			}
			rightEntries, err := rightLP.Entries()
			if err != nil {
				return nil, err
			}
			merged := append(append([]LeafEntry(nil), currentEntries...), rightEntries...)

			prevID := lp.PrevPage()
			if err := rightLP.rebuild(merged); err != nil {
				return nil, err
			}
			rightLP.SetPrevPage(prevID)
			if prevID != storage.InvalidPageID {
				prevRaw, err := t.bp.Pin(prevID)
				if err != nil {
					return nil, err
				}
				prevLP, err := wrapLeafPage(prevRaw, t.keyType)
				if err != nil {
					_ = t.bp.Unpin(prevRaw, false)
					return nil, err
				}
				prevLP.SetNextPage(rightID)
				if err := t.bp.Unpin(prevRaw, true); err != nil {
					return nil, err
				}
			}

			wasLeftLink := parent.LeftLink() == currentID
			if !wasLeftLink {
				if err := parent.AdjustKey(firstBefore, rightFirst); err != nil {
					return nil, err
				}
			}

			if err := t.bp.Unpin(rightRaw, true); err != nil {
				return nil, err
			}
			if err := t.bp.Unpin(lp.raw, false); err != nil {
				return nil, err
			}
			if err := t.bp.Free(currentID); err != nil {
				return nil, err
			}

			if wasLeftLink {
				parent.SetLeftLink(rightID)
				return &deletionNotice{Key: rightFirst, FreedPageID: currentID}, nil
			}
			return &deletionNotice{Key: firstBefore, FreedPageID: currentID}, nil

		default:
			if err := t.bp.Unpin(rightRaw, false); err != nil {
				return nil, err
			}
		}
	}

	return nil, t.bp.Unpin(lp.raw, true)
}

func (t *Tree) fullDeleteIndex(raw *storage.Page, key keycodec.Key, rid keycodec.RID, currentID uint32, parent *IndexPage, removed *bool) (*deletionNotice, error) {
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

	notice, err := t.fullDelete(key, rid, childID, ip, removed)
	if err != nil {
		_ = t.bp.Unpin(raw, false)
		return nil, err
	}
	if notice == nil {
		return nil, t.bp.Unpin(raw, false)
	}

	if _, err := ip.DeleteKeyFromRight(notice.Key); err != nil {
		_ = t.bp.Unpin(raw, false)
		return nil, err
	}

	if ip.NumEntries() >= HalfIndexCapacity {
		return nil, t.bp.Unpin(raw, true)
	}

	if parent == nil {
		if ip.Empty() {
			newRoot := ip.LeftLink()
			rootRaw, err := t.bp.Pin(newRoot)
			if err != nil {
				_ = t.bp.Unpin(raw, false)
				return nil, err
			}
			collapseToEmpty := nodeKind(rootRaw) == KindLeaf
			if collapseToEmpty {
				newRootLeaf, err := wrapLeafPage(rootRaw, t.keyType)
				if err != nil {
					_ = t.bp.Unpin(rootRaw, false)
					_ = t.bp.Unpin(raw, false)
					return nil, err
				}
				collapseToEmpty = newRootLeaf.Empty()
			}
			if err := t.bp.Unpin(rootRaw, false); err != nil {
				return nil, err
			}

			if collapseToEmpty {
				t.header.SetRootPageID(storage.InvalidPageID)
				if err := t.bp.Unpin(raw, false); err != nil {
					return nil, err
				}
				if err := t.bp.Free(newRoot); err != nil {
					return nil, err
				}
				slog.Debug("bptree.fullDelete.root_collapse_to_empty", "oldRoot", currentID)
			} else {
				t.header.SetRootPageID(newRoot)
				if err := t.bp.Unpin(raw, false); err != nil {
					return nil, err
				}
				slog.Debug("bptree.fullDelete.root_collapse", "newRoot", newRoot, "oldRoot", currentID)
			}
			return nil, t.bp.Free(currentID)
		}
		return nil, t.bp.Unpin(raw, true)
	}

	return t.rebalanceIndex(ip, parent)
}

// indexSiblingIDs finds current's left/right neighbours within parent's
// ordered (left-link, entries...) child sequence. Index pages have no
// stored sibling pointers of their own, so kinship and adjacency are always
// read off the shared parent.
func (t *Tree) indexSiblingIDs(parent *IndexPage, currentID uint32) (leftID, rightID uint32, err error) {
	leftID, rightID = storage.InvalidPageID, storage.InvalidPageID
	entries, err := parent.Entries()
	if err != nil {
		return 0, 0, err
	}
	children := make([]uint32, 0, len(entries)+1)
	children = append(children, parent.LeftLink())
	for _, e := range entries {
		children = append(children, e.Child)
	}
	for i, c := range children {
		if c == currentID {
			if i > 0 {
				leftID = children[i-1]
			}
			if i < len(children)-1 {
				rightID = children[i+1]
			}
			break
		}
	}
	return leftID, rightID, nil
}

// subtreeFirstKey descends via left-links/first-entries to find the
// smallest key stored anywhere under pageID.
func (t *Tree) subtreeFirstKey(pageID uint32) (keycodec.Key, bool, error) {
	raw, err := t.bp.Pin(pageID)
	if err != nil {
		return keycodec.Key{}, false, err
	}
	switch nodeKind(raw) {
	case KindLeaf:
		lp, err := wrapLeafPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return keycodec.Key{}, false, err
		}
		k, ok, err := lp.FirstKey()
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return keycodec.Key{}, false, err
		}
		return k, ok, t.bp.Unpin(raw, false)
	case KindIndex:
		ip, err := wrapIndexPage(raw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(raw, false)
			return keycodec.Key{}, false, err
		}
		left := ip.LeftLink()
		if err := t.bp.Unpin(raw, false); err != nil {
			return keycodec.Key{}, false, err
		}
		return t.subtreeFirstKey(left)
	default:
		_ = t.bp.Unpin(raw, false)
		return keycodec.Key{}, false, ErrNodeTypeInvalid
	}
}

// flattenIndexEntries views ip's left-link as a virtual first entry keyed
// by its subtree's first key, so index-to-index redistribute/merge can
// move entries uniformly without special-casing the left-link.
func (t *Tree) flattenIndexEntries(ip *IndexPage) ([]IndexEntry, error) {
	firstKey, ok, err := t.subtreeFirstKey(ip.LeftLink())
	if err != nil {
		return nil, err
	}
	entries, err := ip.Entries()
	if err != nil {
		return nil, err
	}
	out := make([]IndexEntry, 0, len(entries)+1)
	if ok {
		out = append(out, IndexEntry{Key: firstKey, Child: ip.LeftLink()})
	}
	out = append(out, entries...)
	return out, nil
}

// unflattenIndexEntries splits a flattened sequence back into a left-link
// (the first item's child) and the remaining normal entries.
func unflattenIndexEntries(flat []IndexEntry) (leftLink uint32, entries []IndexEntry) {
	if len(flat) == 0 {
		return storage.InvalidPageID, nil
	}
	return flat[0].Child, append([]IndexEntry(nil), flat[1:]...)
}

func (t *Tree) redistributeIndexFromLeft(leftIP, rightIP, parent *IndexPage) error {
	leftFlat, err := t.flattenIndexEntries(leftIP)
	if err != nil {
		return err
	}
	rightFlat, err := t.flattenIndexEntries(rightIP)
	if err != nil {
		return err
	}
	oldRightFirst := rightFlat[0].Key

	leftTarget := (len(leftFlat) + len(rightFlat)) / 2
	for len(leftFlat) > leftTarget {
		moved := leftFlat[len(leftFlat)-1]
		leftFlat = leftFlat[:len(leftFlat)-1]
		rightFlat = append([]IndexEntry{moved}, rightFlat...)
	}

	newLeftLink, leftEntries := unflattenIndexEntries(leftFlat)
	newRightLink, rightEntries := unflattenIndexEntries(rightFlat)

	leftIP.SetLeftLink(newLeftLink)
	if err := leftIP.rebuild(leftEntries); err != nil {
		return err
	}
	rightIP.SetLeftLink(newRightLink)
	if err := rightIP.rebuild(rightEntries); err != nil {
		return err
	}

	newRightFirst, ok, err := t.subtreeFirstKey(newRightLink)
	if err != nil {
		return err
	}
	if ok {
		return parent.AdjustKey(newRightFirst, oldRightFirst)
	}
	return nil
}

func (t *Tree) redistributeIndexFromRight(leftIP, rightIP, parent *IndexPage) error {
	leftFlat, err := t.flattenIndexEntries(leftIP)
	if err != nil {
		return err
	}
	rightFlat, err := t.flattenIndexEntries(rightIP)
	if err != nil {
		return err
	}
	oldRightFirst := rightFlat[0].Key

	rightTarget := (len(leftFlat) + len(rightFlat)) / 2
	for len(rightFlat) > rightTarget {
		moved := rightFlat[0]
		rightFlat = rightFlat[1:]
		leftFlat = append(leftFlat, moved)
	}

	newLeftLink, leftEntries := unflattenIndexEntries(leftFlat)
	newRightLink, rightEntries := unflattenIndexEntries(rightFlat)

	leftIP.SetLeftLink(newLeftLink)
	if err := leftIP.rebuild(leftEntries); err != nil {
		return err
	}
	rightIP.SetLeftLink(newRightLink)
	if err := rightIP.rebuild(rightEntries); err != nil {
		return err
	}

	newRightFirst, ok, err := t.subtreeFirstKey(newRightLink)
	if err != nil {
		return err
	}
	if ok {
		return parent.AdjustKey(newRightFirst, oldRightFirst)
	}
	return nil
}

func (t *Tree) mergeIndexLeft(leftIP, ip, parent *IndexPage) (*deletionNotice, error) {
	currentID := ip.raw.PageID()
	curFlat, err := t.flattenIndexEntries(ip)
	if err != nil {
		return nil, err
	}
	leftFlat, err := t.flattenIndexEntries(leftIP)
	if err != nil {
		return nil, err
	}
	sepKey := curFlat[0].Key

	merged := append(leftFlat, curFlat...)
	newLeftLink, entries := unflattenIndexEntries(merged)
	leftIP.SetLeftLink(newLeftLink)
	if err := leftIP.rebuild(entries); err != nil {
		return nil, err
	}

	if err := t.bp.Unpin(ip.raw, false); err != nil {
		return nil, err
	}
	if err := t.bp.Free(currentID); err != nil {
		return nil, err
	}
	return &deletionNotice{Key: sepKey, FreedPageID: currentID}, nil
}

func (t *Tree) mergeIndexRight(ip, rightIP, parent *IndexPage) (*deletionNotice, error) {
	currentID := ip.raw.PageID()
	wasLeftLink := parent.LeftLink() == currentID

	curFlat, err := t.flattenIndexEntries(ip)
	if err != nil {
		return nil, err
	}
	rightFlat, err := t.flattenIndexEntries(rightIP)
	if err != nil {
		return nil, err
	}
	oldRightFirst := rightFlat[0].Key
	sepKey := curFlat[0].Key

	merged := append(curFlat, rightFlat...)
	newLeftLink, entries := unflattenIndexEntries(merged)
	rightIP.SetLeftLink(newLeftLink)
	if err := rightIP.rebuild(entries); err != nil {
		return nil, err
	}

	if !wasLeftLink {
		if err := parent.AdjustKey(sepKey, oldRightFirst); err != nil {
			return nil, err
		}
	}

	if err := t.bp.Unpin(ip.raw, false); err != nil {
		return nil, err
	}
	if err := t.bp.Free(currentID); err != nil {
		return nil, err
	}

	if wasLeftLink {
		parent.SetLeftLink(rightIP.raw.PageID())
		return &deletionNotice{Key: oldRightFirst, FreedPageID: currentID}, nil
	}
	return &deletionNotice{Key: sepKey, FreedPageID: currentID}, nil
}

// rebalanceIndex handles an underfull index page with the same four-way
// strategy as rebalanceLeaf: redistribute or merge with the left sibling,
// then the right, preferring whichever qualifies first. Index pages have
// no sibling pointers of their own, so siblings are found through parent.
func (t *Tree) rebalanceIndex(ip *IndexPage, parent *IndexPage) (*deletionNotice, error) {
	leftID, rightID, err := t.indexSiblingIDs(parent, ip.raw.PageID())
	if err != nil {
		_ = t.bp.Unpin(ip.raw, false)
		return nil, err
	}

	if leftID != storage.InvalidPageID {
		leftRaw, err := t.bp.Pin(leftID)
		if err != nil {
			_ = t.bp.Unpin(ip.raw, false)
			return nil, err
		}
		leftIP, err := wrapIndexPage(leftRaw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(leftRaw, false)
			_ = t.bp.Unpin(ip.raw, false)
			return nil, err
		}

		switch {
		case leftIP.NumEntries() > HalfIndexCapacity:
			if err := t.redistributeIndexFromLeft(leftIP, ip, parent); err != nil {
				return nil, err
			}
			if err := t.bp.Unpin(leftRaw, true); err != nil {
				return nil, err
			}
			return nil, t.bp.Unpin(ip.raw, true)

		case leftIP.NumEntries() == HalfIndexCapacity:
			notice, err := t.mergeIndexLeft(leftIP, ip, parent)
			if err != nil {
				return nil, err
			}
			return notice, t.bp.Unpin(leftRaw, true)

		default:
			if err := t.bp.Unpin(leftRaw, false); err != nil {
				return nil, err
			}
		}
	}

	if rightID != storage.InvalidPageID {
		rightRaw, err := t.bp.Pin(rightID)
		if err != nil {
			_ = t.bp.Unpin(ip.raw, false)
			return nil, err
		}
		rightIP, err := wrapIndexPage(rightRaw, t.keyType)
		if err != nil {
			_ = t.bp.Unpin(rightRaw, false)
			_ = t.bp.Unpin(ip.raw, false)
			return nil, err
		}

		switch {
		case rightIP.NumEntries() > HalfIndexCapacity:
			if err := t.redistributeIndexFromRight(ip, rightIP, parent); err != nil {
				return nil, err
			}
			if err := t.bp.Unpin(rightRaw, true); err != nil {
				return nil, err
			}
			return nil, t.bp.Unpin(ip.raw, true)

		case rightIP.NumEntries() == HalfIndexCapacity:
			notice, err := t.mergeIndexRight(ip, rightIP, parent)
			if err != nil {
				return nil, err
			}
			return notice, t.bp.Unpin(rightRaw, true)

		default:
			if err := t.bp.Unpin(rightRaw, false); err != nil {
				return nil, err
			}
		}
	}

	return nil, t.bp.Unpin(ip.raw, true)
}
