package bptree

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// leafSpecialSize is prev(4) + next(4) sibling page ids, stored in the
// page's reserved trailer.
const leafSpecialSize = 8

// LeafEntry is one (key, record-id) pair stored in a leaf page.
type LeafEntry struct {
	Key keycodec.Key
	RID keycodec.RID
}

// LeafPage is the sorted-page view over a raw page tagged KindLeaf. Entries
// are kept in ascending key order (stable on duplicates) by rebuilding the
// whole slot array on every mutating call, rather than shifting slots.
type LeafPage struct {
	raw     *storage.Page
	keyType keycodec.KeyType
}

// formatLeafPage stamps a freshly allocated page as an empty leaf with both
// sibling links set to INVALID_PAGE.
func formatLeafPage(raw *storage.Page, keyType keycodec.KeyType) (*LeafPage, error) {
	raw.SetFlags(KindLeaf)
	special, err := raw.ReserveSpecial(leafSpecialSize)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(special[0:4], storage.InvalidPageID)
	binary.LittleEndian.PutUint32(special[4:8], storage.InvalidPageID)
	return &LeafPage{raw: raw, keyType: keyType}, nil
}

// wrapLeafPage reconstitutes a LeafPage view over an already-formatted page.
func wrapLeafPage(raw *storage.Page, keyType keycodec.KeyType) (*LeafPage, error) {
	if nodeKind(raw) != KindLeaf {
		return nil, ErrNodeTypeInvalid
	}
	return &LeafPage{raw: raw, keyType: keyType}, nil
}

func (lp *LeafPage) Raw() *storage.Page { return lp.raw }

func (lp *LeafPage) PrevPage() uint32 {
	return binary.LittleEndian.Uint32(lp.raw.Special()[0:4])
}

func (lp *LeafPage) SetPrevPage(id uint32) {
	binary.LittleEndian.PutUint32(lp.raw.Special()[0:4], id)
}

func (lp *LeafPage) NextPage() uint32 {
	return binary.LittleEndian.Uint32(lp.raw.Special()[4:8])
}

func (lp *LeafPage) SetNextPage(id uint32) {
	binary.LittleEndian.PutUint32(lp.raw.Special()[4:8], id)
}

func (lp *LeafPage) NumEntries() int { return countLive(lp.raw) }

func (lp *LeafPage) Empty() bool { return lp.raw.Empty() }

func (lp *LeafPage) AvailableSpace() int { return lp.raw.AvailableSpace() }

// Entries returns all live entries in physical slot order, which this type
// always keeps sorted ascending by key.
func (lp *LeafPage) Entries() ([]LeafEntry, error) {
	out := make([]LeafEntry, 0, lp.raw.NumSlots())
	for i := 0; i < lp.raw.NumSlots(); i++ {
		tup, err := lp.raw.ReadTuple(i)
		if err != nil {
			if errors.Is(err, storage.ErrBadSlot) {
				continue
			}
			return nil, err
		}
		k, rid, err := keycodec.DecodeLeafEntry(tup, lp.keyType)
		if err != nil {
			return nil, err
		}
		out = append(out, LeafEntry{Key: k, RID: rid})
	}
	return out, nil
}

// rebuild clears the page's tuple area and reinserts entries in the given
// order, which callers must already have sorted.
func (lp *LeafPage) rebuild(entries []LeafEntry) error {
	lp.raw.ResetTuples()
	for _, e := range entries {
		buf, err := keycodec.EncodeLeafEntry(e.Key, e.RID)
		if err != nil {
			return err
		}
		if _, err := lp.raw.InsertTuple(buf); err != nil {
			return err
		}
	}
	return nil
}

// HasRoomFor reports whether e can be inserted without exceeding either the
// slot-count capacity or the page's physical free space.
func (lp *LeafPage) HasRoomFor(e LeafEntry) (bool, error) {
	if lp.NumEntries() >= MaxLeafPageCapacity {
		return false, nil
	}
	buf, err := keycodec.EncodeLeafEntry(e.Key, e.RID)
	if err != nil {
		return false, err
	}
	return lp.raw.AvailableSpace() >= len(buf)+storage.SlotSize, nil
}

// Insert places e in sorted position. Ties (equal keys) are ordered after
// existing entries with the same key, preserving relative insertion order.
func (lp *LeafPage) Insert(e LeafEntry) error {
	entries, err := lp.Entries()
	if err != nil {
		return err
	}
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
	return lp.rebuild(entries)
}

// DeleteKey removes the first entry whose key equals key.
func (lp *LeafPage) DeleteKey(key keycodec.Key) (bool, error) {
	entries, err := lp.Entries()
	if err != nil {
		return false, err
	}
	for i, e := range entries {
		if keycodec.Compare(e.Key, key) == 0 {
			entries = append(entries[:i], entries[i+1:]...)
			return true, lp.rebuild(entries)
		}
	}
	return false, nil
}

// DeleteExact removes the first entry whose (key, rid) exactly matches,
// used by both delete policies to honour duplicate keys correctly.
func (lp *LeafPage) DeleteExact(key keycodec.Key, rid keycodec.RID) (bool, error) {
	entries, err := lp.Entries()
	if err != nil {
		return false, err
	}
	for i, e := range entries {
		if keycodec.Compare(e.Key, key) == 0 && e.RID == rid {
			entries = append(entries[:i], entries[i+1:]...)
			return true, lp.rebuild(entries)
		}
	}
	return false, nil
}

// AdjustKey replaces the key of the entry currently keyed oldKey with
// newKey, re-sorting as needed.
func (lp *LeafPage) AdjustKey(newKey, oldKey keycodec.Key) error {
	entries, err := lp.Entries()
	if err != nil {
		return err
	}
	for i, e := range entries {
		if keycodec.Compare(e.Key, oldKey) == 0 {
			entries[i].Key = newKey
			break
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return keycodec.Compare(entries[i].Key, entries[j].Key) < 0
	})
	return lp.rebuild(entries)
}

// FirstKey returns the smallest key on the page, or ok=false if empty.
func (lp *LeafPage) FirstKey() (key keycodec.Key, ok bool, err error) {
	entries, err := lp.Entries()
	if err != nil {
		return keycodec.Key{}, false, err
	}
	if len(entries) == 0 {
		return keycodec.Key{}, false, nil
	}
	return entries[0].Key, true, nil
}

// FindKeyData returns the first entry whose key is >= key, used by
// findRunStart once it has reached the target leaf.
func (lp *LeafPage) FindKeyData(key keycodec.Key) (entry LeafEntry, ok bool, err error) {
	entries, err := lp.Entries()
	if err != nil {
		return LeafEntry{}, false, err
	}
	for _, e := range entries {
		if keycodec.Compare(e.Key, key) >= 0 {
			return e, true, nil
		}
	}
	return LeafEntry{}, false, nil
}
