package storage

import (
	"encoding/binary"
	"fmt"
)

// Page is a fixed-size slotted page backing one on-disk unit. Layout:
//
//	+------------------+ 0
//	| flags, pageID     |
//	| lower, upper       |
//	| special pointer    | <-- HeaderSize (12)
//	+------------------+
//	| Slot array        | <-- grows down from HeaderSize, tracked by `lower`
//	+------------------+
//	|  free space        |
//	+------------------+ <-- `upper`
//	| Tuple data         | (grows down from `special` toward the slot array, tracked by `upper`)
//	+------------------+ <-- `special`
//	| Special space      | fixed-size trailer reserved by the page's owner
//	+------------------+ PageSize
//
// Note the direction here is the reverse of a classic Postgres page: tuple
// data is appended starting just below the special area and grows *toward*
// the slot array, while `upper` tracks the lowest tuple-data byte in use.
// This keeps slot growth and tuple growth on opposite, colliding fronts so
// `lower > upper` is the single, easy-to-check "page full" condition.
type Page struct {
	Buf []byte
}

// NewPage formats a zeroed buffer as an empty page stamped with pageID.
func NewPage(buf []byte, pageID uint32) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrPageCorrupted
	}
	p := &Page{Buf: buf}
	p.Reset(pageID)
	return p, nil
}

// Reset reformats the page in place as empty, stamped with pageID. Any
// special area previously reserved is dropped; callers that need one must
// call ReserveSpecial again.
func (p *Page) Reset(pageID uint32) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	binary.LittleEndian.PutUint16(p.Buf[0:2], 0)
	binary.LittleEndian.PutUint32(p.Buf[2:6], pageID)
	p.setLower(HeaderSize)
	p.setUpper(PageSize)
	p.setSpecial(PageSize)
}

func (p *Page) PageID() uint32 {
	return binary.LittleEndian.Uint32(p.Buf[2:6])
}

func (p *Page) flags() uint16 { return binary.LittleEndian.Uint16(p.Buf[0:2]) }

func (p *Page) setFlags(v uint16) { binary.LittleEndian.PutUint16(p.Buf[0:2], v) }

// Flags returns the generic 16-bit tag stored in the page header. The
// storage layer assigns no meaning to it; callers (e.g. a node-kind tag)
// define their own encoding.
func (p *Page) Flags() uint16 { return p.flags() }

// SetFlags stores a generic 16-bit tag in the page header.
func (p *Page) SetFlags(v uint16) { p.setFlags(v) }

func (p *Page) lower() uint16 { return binary.LittleEndian.Uint16(p.Buf[6:8]) }

func (p *Page) setLower(v int) { binary.LittleEndian.PutUint16(p.Buf[6:8], uint16(v)) }

func (p *Page) upper() uint16 { return binary.LittleEndian.Uint16(p.Buf[8:10]) }

func (p *Page) setUpper(v int) { binary.LittleEndian.PutUint16(p.Buf[8:10], uint16(v)) }

func (p *Page) special() uint16 { return binary.LittleEndian.Uint16(p.Buf[10:12]) }

func (p *Page) setSpecial(v int) { binary.LittleEndian.PutUint16(p.Buf[10:12], uint16(v)) }

// NumSlots returns the number of line-pointer slots on the page (including
// ones that currently point at deleted tuples).
func (p *Page) NumSlots() int {
	return (int(p.lower()) - HeaderSize) / SlotSize
}

// AvailableSpace returns the number of free bytes between the slot array
// and the tuple data / special area, i.e. room left for one more slot plus
// its tuple.
func (p *Page) AvailableSpace() int {
	return int(p.upper()) - int(p.lower())
}

// Empty reports whether the page currently has zero live tuples.
func (p *Page) Empty() bool {
	for i := 0; i < p.NumSlots(); i++ {
		if _, err := p.ReadTuple(i); err == nil {
			return false
		}
	}
	return true
}

const (
	slotFlagLive uint16 = 0
	slotFlagDead uint16 = 1
)

func (p *Page) slotOffset(i int) int {
	return HeaderSize + i*SlotSize
}

func (p *Page) getSlot(i int) (offset, length int, flags uint16) {
	o := p.slotOffset(i)
	return int(binary.LittleEndian.Uint16(p.Buf[o : o+2])),
		int(binary.LittleEndian.Uint16(p.Buf[o+2 : o+4])),
		binary.LittleEndian.Uint16(p.Buf[o+4 : o+6])
}

func (p *Page) putSlot(i, offset, length int, flags uint16) {
	o := p.slotOffset(i)
	binary.LittleEndian.PutUint16(p.Buf[o:o+2], uint16(offset))
	binary.LittleEndian.PutUint16(p.Buf[o+2:o+4], uint16(length))
	binary.LittleEndian.PutUint16(p.Buf[o+4:o+6], flags)
}

// ReserveSpecial shrinks the page's usable tuple space by n bytes at the
// tail end and returns that trailing region. It is a no-op (returning the
// already-reserved region) if called again with the same n. Must be called
// before any tuple is inserted.
func (p *Page) ReserveSpecial(n int) ([]byte, error) {
	want := PageSize - n
	if want < int(p.lower()) {
		return nil, ErrSpecialTooLarge
	}
	if int(p.special()) != want {
		if int(p.upper()) != PageSize {
			return nil, ErrSpecialTooLarge // tuples already placed; too late
		}
		p.setSpecial(want)
		p.setUpper(want)
	}
	return p.Buf[p.special():], nil
}

// ResetTuples clears all slots and tuple data but preserves the page id,
// flags, and any previously reserved special area — used by callers that
// maintain logically-sorted entries by rebuilding the whole slot array on
// every mutation instead of shifting slots in place.
func (p *Page) ResetTuples() {
	pid := p.PageID()
	flags := p.flags()
	special := p.special()
	for i := HeaderSize; i < int(special); i++ {
		p.Buf[i] = 0
	}
	p.setLower(HeaderSize)
	p.setUpper(int(special))
	p.setFlags(flags)
	binary.LittleEndian.PutUint32(p.Buf[2:6], pid)
	p.setSpecial(int(special))
}

// Special returns the previously reserved trailing region, or nil if none
// was reserved.
func (p *Page) Special() []byte {
	sp := int(p.special())
	if sp >= PageSize {
		return nil
	}
	return p.Buf[sp:]
}

// InsertTuple appends tup as a new slot, inserted in physical slot order
// (callers that need sorted-by-key order re-sort logically; see bptree).
// Returns ErrPageFull when there isn't room for the slot + payload.
func (p *Page) InsertTuple(tup []byte) (int, error) {
	need := len(tup) + SlotSize
	if p.AvailableSpace() < need {
		return -1, ErrPageFull
	}
	newUpper := int(p.upper()) - len(tup)
	copy(p.Buf[newUpper:], tup)
	p.setUpper(newUpper)
	slot := p.NumSlots()
	p.putSlot(slot, newUpper, len(tup), slotFlagLive)
	p.setLower(int(p.lower()) + SlotSize)
	return slot, nil
}

// ReadTuple returns the bytes stored at slot, or ErrBadSlot if the slot is
// out of range or has been deleted.
func (p *Page) ReadTuple(slot int) ([]byte, error) {
	if slot < 0 || slot >= p.NumSlots() {
		return nil, ErrBadSlot
	}
	offset, length, flags := p.getSlot(slot)
	if flags == slotFlagDead {
		return nil, ErrBadSlot
	}
	return p.Buf[offset : offset+length], nil
}

// UpdateTuple overwrites slot's payload in place when it still fits in the
// originally allocated length, otherwise re-inserts it as a new tuple and
// repoints the slot (the old bytes become dead space, reclaimed only by a
// full page rebuild).
func (p *Page) UpdateTuple(slot int, newTuple []byte) error {
	if slot < 0 || slot >= p.NumSlots() {
		return ErrBadSlot
	}
	offset, length, flags := p.getSlot(slot)
	if flags == slotFlagDead {
		return ErrBadSlot
	}
	if len(newTuple) <= length {
		copy(p.Buf[offset:], newTuple)
		p.putSlot(slot, offset, len(newTuple), slotFlagLive)
		return nil
	}
	if p.AvailableSpace() < len(newTuple) {
		return ErrPageFull
	}
	newOffset := int(p.upper()) - len(newTuple)
	copy(p.Buf[newOffset:], newTuple)
	p.setUpper(newOffset)
	p.putSlot(slot, newOffset, len(newTuple), slotFlagLive)
	return nil
}

// DeleteTuple marks slot as dead. The slot entry itself is retained (slots
// are never renumbered) so other stored slot indices stay valid.
func (p *Page) DeleteTuple(slot int) error {
	if slot < 0 || slot >= p.NumSlots() {
		return ErrBadSlot
	}
	offset, length, _ := p.getSlot(slot)
	p.putSlot(slot, offset, length, slotFlagDead)
	return nil
}

// IsUninitialized reports whether the page looks like a freshly zero-filled
// buffer that has never been through Reset.
func (p *Page) IsUninitialized() bool {
	return p.lower() == 0 && p.upper() == 0
}

// DebugString renders a short human-readable summary of the page header,
// useful when eyeballing test failures.
func (p *Page) DebugString() string {
	return fmt.Sprintf("Page{id=%d slots=%d free=%d special=%d}",
		p.PageID(), p.NumSlots(), p.AvailableSpace(), PageSize-int(p.special()))
}
