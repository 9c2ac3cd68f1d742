package bptree

import (
	"encoding/binary"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// HeaderMagic stamps every header page; it is checked on every open so a
// page handed back by the wrong file is caught early.
const HeaderMagic uint32 = 1989

// DeletePolicy selects which delete engine Tree.Delete uses.
type DeletePolicy uint8

const (
	DeletePolicyNaive DeletePolicy = iota + 1
	DeletePolicyFull
)

func (p DeletePolicy) String() string {
	switch p {
	case DeletePolicyNaive:
		return "naive"
	case DeletePolicyFull:
		return "full"
	default:
		return "unknown"
	}
}

// Header page layout, starting just past the generic slotted-page header:
//
//	[magic uint32][keyType byte][maxKeySize uint16][policy byte][root uint32]
const (
	headerMagicOff   = storage.HeaderSize
	headerKeyTypeOff = headerMagicOff + 4
	headerMaxKeyOff  = headerKeyTypeOff + 1
	headerPolicyOff  = headerMaxKeyOff + 2
	headerRootOff    = headerPolicyOff + 1
)

// HeaderPage owns the tree's immutable creation parameters and the mutable
// root page id. It is pinned for the lifetime of an open Tree.
type HeaderPage struct {
	raw *storage.Page
}

// formatHeaderPage stamps a freshly allocated page as a header page with
// the given creation parameters and an empty (INVALID) root.
func formatHeaderPage(raw *storage.Page, keyType keycodec.KeyType, maxKeySize uint16, policy DeletePolicy) *HeaderPage {
	raw.SetFlags(KindHeader)
	binary.LittleEndian.PutUint32(raw.Buf[headerMagicOff:], HeaderMagic)
	raw.Buf[headerKeyTypeOff] = byte(keyType)
	binary.LittleEndian.PutUint16(raw.Buf[headerMaxKeyOff:], maxKeySize)
	raw.Buf[headerPolicyOff] = byte(policy)
	binary.LittleEndian.PutUint32(raw.Buf[headerRootOff:], storage.InvalidPageID)
	return &HeaderPage{raw: raw}
}

// wrapHeaderPage reconstitutes a HeaderPage view over an already-formatted
// page, validating its kind tag and magic number.
func wrapHeaderPage(raw *storage.Page) (*HeaderPage, error) {
	if nodeKind(raw) != KindHeader {
		return nil, ErrNodeTypeInvalid
	}
	h := &HeaderPage{raw: raw}
	if h.Magic() != HeaderMagic {
		return nil, ErrPageCorrupted
	}
	return h, nil
}

func (h *HeaderPage) Magic() uint32 {
	return binary.LittleEndian.Uint32(h.raw.Buf[headerMagicOff:])
}

func (h *HeaderPage) KeyType() keycodec.KeyType {
	return keycodec.KeyType(h.raw.Buf[headerKeyTypeOff])
}

func (h *HeaderPage) MaxKeySize() uint16 {
	return binary.LittleEndian.Uint16(h.raw.Buf[headerMaxKeyOff:])
}

func (h *HeaderPage) DeletePolicy() DeletePolicy {
	return DeletePolicy(h.raw.Buf[headerPolicyOff])
}

func (h *HeaderPage) RootPageID() uint32 {
	return binary.LittleEndian.Uint32(h.raw.Buf[headerRootOff:])
}

func (h *HeaderPage) SetRootPageID(id uint32) {
	binary.LittleEndian.PutUint32(h.raw.Buf[headerRootOff:], id)
}
