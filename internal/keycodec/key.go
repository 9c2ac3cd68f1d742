// Package keycodec defines the key type supported by the index and the
// wire encodings used to persist leaf and index entries (fixed-width for
// Int keys, length-prefixed for Str keys).
package keycodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// KeyType identifies which variant of Key a tree was opened with. A tree's
// header page pins this value for its lifetime; every key inserted after
// open must match it.
type KeyType uint8

const (
	KeyTypeInt KeyType = iota + 1
	KeyTypeStr
)

func (kt KeyType) String() string {
	switch kt {
	case KeyTypeInt:
		return "int"
	case KeyTypeStr:
		return "str"
	default:
		return fmt.Sprintf("KeyType(%d)", uint8(kt))
	}
}

// MaxStrKeyLen bounds how long a Str key's payload may be, so that a single
// leaf entry can never itself exceed a page's worth of space.
const MaxStrKeyLen = 512

var (
	// ErrKeyTooLong is returned when a Str key's length exceeds MaxStrKeyLen
	// or, in EntryLength, the caller's configured maxStrLen.
	ErrKeyTooLong = errors.New("keycodec: key exceeds max key size")

	// ErrKeyTypeMismatch is returned when a key's Type doesn't match the
	// index's configured KeyType.
	ErrKeyTypeMismatch = errors.New("keycodec: key type does not match index key type")

	// ErrShortBuffer is returned by Decode* when b is too small to hold a
	// well-formed entry.
	ErrShortBuffer = errors.New("keycodec: buffer too short to decode entry")
)

// Key is a closed tagged union over the two key variants the index
// supports. Exactly one of the two fields is meaningful, selected by Type.
type Key struct {
	Type KeyType
	Int  int64
	Str  string
}

// IntKey builds an integer-typed Key.
func IntKey(v int64) Key { return Key{Type: KeyTypeInt, Int: v} }

// StrKey builds a string-typed Key.
func StrKey(v string) Key { return Key{Type: KeyTypeStr, Str: v} }

func (k Key) String() string {
	switch k.Type {
	case KeyTypeInt:
		return fmt.Sprintf("%d", k.Int)
	case KeyTypeStr:
		return k.Str
	default:
		return "<invalid key>"
	}
}

// Compare returns -1, 0, or 1 as a < b, a == b, a > b. Both keys must share
// the same Type; callers at the tree boundary are responsible for rejecting
// ErrKeyTypeMismatch before reaching here.
func Compare(a, b Key) int {
	switch a.Type {
	case KeyTypeInt:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case KeyTypeStr:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// RID (record id) locates a tuple in the heap file the index points into.
type RID struct {
	PageID uint32
	Slot   uint16
}

// ridSize is the fixed wire size of an RID: 4 bytes PageID + 2 bytes Slot.
const ridSize = 4 + 2

func putRID(buf []byte, r RID) {
	binary.LittleEndian.PutUint32(buf[0:4], r.PageID)
	binary.LittleEndian.PutUint16(buf[4:6], r.Slot)
}

func getRID(buf []byte) RID {
	return RID{
		PageID: binary.LittleEndian.Uint32(buf[0:4]),
		Slot:   binary.LittleEndian.Uint16(buf[4:6]),
	}
}

// EntryLength returns the number of bytes Key k occupies when encoded alone
// (no RID/child-pointer payload), accounting for the variable length of a
// Str key. maxStrLen is the caller's configured bound on a Str key's
// payload (a tree's HeaderPage.MaxKeySize, typically) and is checked in
// addition to the package-wide MaxStrKeyLen ceiling.
func EntryLength(k Key, maxStrLen uint16) (int, error) {
	switch k.Type {
	case KeyTypeInt:
		return 8, nil
	case KeyTypeStr:
		if len(k.Str) > MaxStrKeyLen || len(k.Str) > int(maxStrLen) {
			return 0, ErrKeyTooLong
		}
		return 2 + len(k.Str), nil
	default:
		return 0, ErrKeyTypeMismatch
	}
}

// encodeKey appends k's wire form to buf: for KeyTypeInt, a fixed 8-byte
// little-endian int64; for KeyTypeStr, a uint16 length prefix followed by
// the raw UTF-8 bytes.
func encodeKey(buf []byte, k Key) ([]byte, error) {
	switch k.Type {
	case KeyTypeInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(k.Int))
		return append(buf, b[:]...), nil
	case KeyTypeStr:
		if len(k.Str) > MaxStrKeyLen {
			return nil, ErrKeyTooLong
		}
		var lb [2]byte
		binary.LittleEndian.PutUint16(lb[:], uint16(len(k.Str)))
		buf = append(buf, lb[:]...)
		buf = append(buf, k.Str...)
		return buf, nil
	default:
		return nil, ErrKeyTypeMismatch
	}
}

// decodeKey reads one key of the given type from the front of b, returning
// the key and the number of bytes consumed.
func decodeKey(b []byte, kt KeyType) (Key, int, error) {
	switch kt {
	case KeyTypeInt:
		if len(b) < 8 {
			return Key{}, 0, ErrShortBuffer
		}
		return IntKey(int64(binary.LittleEndian.Uint64(b[0:8]))), 8, nil
	case KeyTypeStr:
		if len(b) < 2 {
			return Key{}, 0, ErrShortBuffer
		}
		n := int(binary.LittleEndian.Uint16(b[0:2]))
		if len(b) < 2+n {
			return Key{}, 0, ErrShortBuffer
		}
		return StrKey(string(b[2 : 2+n])), 2 + n, nil
	default:
		return Key{}, 0, ErrKeyTypeMismatch
	}
}

// EncodeLeafEntry encodes (key, rid) into a compact byte slice: the key's
// wire form followed by a fixed-size RID.
func EncodeLeafEntry(key Key, rid RID) ([]byte, error) {
	buf, err := encodeKey(nil, key)
	if err != nil {
		return nil, err
	}
	var rb [ridSize]byte
	putRID(rb[:], rid)
	return append(buf, rb[:]...), nil
}

// DecodeLeafEntry decodes a leaf entry of the given key type into (key, rid).
func DecodeLeafEntry(b []byte, kt KeyType) (Key, RID, error) {
	k, n, err := decodeKey(b, kt)
	if err != nil {
		return Key{}, RID{}, err
	}
	if len(b) < n+ridSize {
		return Key{}, RID{}, ErrShortBuffer
	}
	return k, getRID(b[n : n+ridSize]), nil
}

// EncodeIndexEntry encodes (minKey, childPageID): the key's wire form
// followed by a fixed uint32 child page id.
func EncodeIndexEntry(key Key, child uint32) ([]byte, error) {
	buf, err := encodeKey(nil, key)
	if err != nil {
		return nil, err
	}
	var cb [4]byte
	binary.LittleEndian.PutUint32(cb[:], child)
	return append(buf, cb[:]...), nil
}

// DecodeIndexEntry decodes an index entry of the given key type into (key,
// childPageID).
func DecodeIndexEntry(b []byte, kt KeyType) (Key, uint32, error) {
	k, n, err := decodeKey(b, kt)
	if err != nil {
		return Key{}, 0, err
	}
	if len(b) < n+4 {
		return Key{}, 0, ErrShortBuffer
	}
	return k, binary.LittleEndian.Uint32(b[n : n+4]), nil
}
