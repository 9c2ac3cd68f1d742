package storage

import "errors"

const (
	OneKB = 1024
	OneMB = OneKB * 1024
	OneGB = OneMB * 1024

	// PageSize is the fixed size of every on-disk page.
	PageSize = OneKB * 8

	// SegmentSize bounds how large a single backing file grows before a new
	// segment is started (Base, Base.1, Base.2, ...).
	SegmentSize = 1 * OneGB

	// HeaderSize is the fixed generic page header: flags(2) + pageID(4) +
	// lower(2) + upper(2) + special(2).
	HeaderSize = 12

	// SlotSize is the fixed size of one line-pointer entry: offset(2) +
	// length(2) + flags(2).
	SlotSize = 6

	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

// InvalidPageID is the sentinel for "no page" (spec.md's INVALID_PAGE).
const InvalidPageID uint32 = 0xFFFFFFFF

var (
	ErrBadSlot             = errors.New("storage: bad slot index")
	ErrPageFull            = errors.New("storage: page has no room for tuple")
	ErrWriteExceedPageSize = errors.New("storage: write would exceed page size")
	ErrReadExceedPageSize  = errors.New("storage: read would exceed page size")
	ErrPageCorrupted       = errors.New("storage: page is corrupted")
	ErrSpecialTooLarge     = errors.New("storage: special area does not fit on page")
)
