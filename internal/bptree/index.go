package bptree

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// indexSpecialSize is the left-link child page id, stored in the page's
// reserved trailer.
const indexSpecialSize = 4

// IndexEntry is one (separator key, child-page-id) pair stored in an index
// page.
type IndexEntry struct {
	Key   keycodec.Key
	Child uint32
}

// IndexPage is the sorted-page view over a raw page tagged KindIndex.
// Entries are kept in ascending key order by rebuilding the whole slot
// array on every mutating call.
type IndexPage struct {
	raw     *storage.Page
	keyType keycodec.KeyType
}

// formatIndexPage stamps a freshly allocated page as an empty index page
// with the given left-link.
func formatIndexPage(raw *storage.Page, keyType keycodec.KeyType, leftLink uint32) (*IndexPage, error) {
	raw.SetFlags(KindIndex)
	special, err := raw.ReserveSpecial(indexSpecialSize)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(special[0:4], leftLink)
	return &IndexPage{raw: raw, keyType: keyType}, nil
}

// wrapIndexPage reconstitutes an IndexPage view over an already-formatted
// page.
func wrapIndexPage(raw *storage.Page, keyType keycodec.KeyType) (*IndexPage, error) {
	if nodeKind(raw) != KindIndex {
		return nil, ErrNodeTypeInvalid
	}
	return &IndexPage{raw: raw, keyType: keyType}, nil
}

func (ip *IndexPage) Raw() *storage.Page { return ip.raw }

func (ip *IndexPage) LeftLink() uint32 {
	return binary.LittleEndian.Uint32(ip.raw.Special()[0:4])
}

func (ip *IndexPage) SetLeftLink(id uint32) {
	binary.LittleEndian.PutUint32(ip.raw.Special()[0:4], id)
}

func (ip *IndexPage) NumEntries() int { return countLive(ip.raw) }

func (ip *IndexPage) Empty() bool { return ip.raw.Empty() }

func (ip *IndexPage) AvailableSpace() int { return ip.raw.AvailableSpace() }

// Entries returns all live entries in physical slot order, always kept
// sorted ascending by key.
func (ip *IndexPage) Entries() ([]IndexEntry, error) {
	out := make([]IndexEntry, 0, ip.raw.NumSlots())
	for i := 0; i < ip.raw.NumSlots(); i++ {
		tup, err := ip.raw.ReadTuple(i)
		if err != nil {
			if errors.Is(err, storage.ErrBadSlot) {
				continue
			}
			return nil, err
		}
		k, child, err := keycodec.DecodeIndexEntry(tup, ip.keyType)
		if err != nil {
			return nil, err
		}
		out = append(out, IndexEntry{Key: k, Child: child})
	}
	return out, nil
}

func (ip *IndexPage) rebuild(entries []IndexEntry) error {
	ip.raw.ResetTuples()
	for _, e := range entries {
		buf, err := keycodec.EncodeIndexEntry(e.Key, e.Child)
		if err != nil {
			return err
		}
		if _, err := ip.raw.InsertTuple(buf); err != nil {
			return err
		}
	}
	return nil
}

// HasRoomFor reports whether e can be inserted without exceeding either the
// slot-count capacity or the page's physical free space.
func (ip *IndexPage) HasRoomFor(e IndexEntry) (bool, error) {
	if ip.NumEntries() >= MaxIndexPageCapacity {
		return false, nil
	}
	buf, err := keycodec.EncodeIndexEntry(e.Key, e.Child)
	if err != nil {
		return false, err
	}
	return ip.raw.AvailableSpace() >= len(buf)+storage.SlotSize, nil
}

// Insert places e in sorted position.
func (ip *IndexPage) Insert(e IndexEntry) error {
	entries, err := ip.Entries()
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
	entries = append(entries, IndexEntry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = e
	return ip.rebuild(entries)
}

// PageNoByKey returns the child to descend into for key: the rightmost
// child whose separator is <= key, else the left-link.
func (ip *IndexPage) PageNoByKey(key keycodec.Key) (uint32, error) {
	entries, err := ip.Entries()
	if err != nil {
		return 0, err
	}
	child := ip.LeftLink()
	for _, e := range entries {
		if keycodec.Compare(e.Key, key) <= 0 {
			child = e.Child
		} else {
			break
		}
	}
	return child, nil
}

// PageNoByKeyStrictLess returns the last child whose separator is strictly
// less than key, else the left-link. Used by findRunStart, which wants a
// conservative (possibly one-leaf-early) starting point that the leaf-chain
// walk then corrects.
func (ip *IndexPage) PageNoByKeyStrictLess(key keycodec.Key) (uint32, error) {
	entries, err := ip.Entries()
	if err != nil {
		return 0, err
	}
	child := ip.LeftLink()
	for _, e := range entries {
		if keycodec.Compare(e.Key, key) < 0 {
			child = e.Child
		} else {
			break
		}
	}
	return child, nil
}

// DeleteKeyFromRight removes the first entry (scanning right-to-left) whose
// key equals key, per the full-delete contract of removing the parent's
// separator for a freed child.
func (ip *IndexPage) DeleteKeyFromRight(key keycodec.Key) (bool, error) {
	entries, err := ip.Entries()
	if err != nil {
		return false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if keycodec.Compare(entries[i].Key, key) == 0 {
			entries = append(entries[:i], entries[i+1:]...)
			return true, ip.rebuild(entries)
		}
	}
	return false, nil
}

// AdjustKey replaces the key of the entry currently keyed oldKey with
// newKey, re-sorting as needed.
func (ip *IndexPage) AdjustKey(newKey, oldKey keycodec.Key) error {
	entries, err := ip.Entries()
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
	return ip.rebuild(entries)
}

// FirstKey returns the smallest separator key on the page, or ok=false if
// the page has no entries (only a left-link).
func (ip *IndexPage) FirstKey() (key keycodec.Key, ok bool, err error) {
	entries, err := ip.Entries()
	if err != nil {
		return keycodec.Key{}, false, err
	}
	if len(entries) == 0 {
		return keycodec.Key{}, false, nil
	}
	return entries[0].Key, true, nil
}

// DeleteFirstEntry removes and returns the page's first entry, or
// ErrRecordNotFound if the page has no entries.
func (ip *IndexPage) DeleteFirstEntry() (IndexEntry, error) {
	entries, err := ip.Entries()
	if err != nil {
		return IndexEntry{}, err
	}
	if len(entries) == 0 {
		return IndexEntry{}, ErrRecordNotFound
	}
	first := entries[0]
	return first, ip.rebuild(entries[1:])
}
