package bptree

import (
	"errors"

	"github.com/mooncake-db/bptreeidx/internal/keycodec"
)

// Re-exported so callers that only import bptree can still errors.Is
// against the key-layer sentinels.
var (
	ErrKeyTooLong      = keycodec.ErrKeyTooLong
	ErrKeyTypeMismatch = keycodec.ErrKeyTypeMismatch
)

var (
	// ErrNodeTypeInvalid means a page was expected to be one node kind but
	// is tagged as another; this is a structural bug, not caller error.
	ErrNodeTypeInvalid = errors.New("bptree: node type invalid for this operation")

	// ErrRecordNotFound marks a structural violation: an operation expected
	// an entry to still be present (e.g. the one it just promoted) but it
	// wasn't.
	ErrRecordNotFound = errors.New("bptree: record not found")

	// ErrMissingFile is returned by Open when the named file isn't in the
	// catalog.
	ErrMissingFile = errors.New("bptree: file not found")

	// ErrFileExists reports that a name is already registered. CreateOrOpen
	// does not return it: an already-registered name is opened instead.
	ErrFileExists = errors.New("bptree: file already exists")

	// ErrTreeClosed is returned by any operation on a Tree after Close.
	ErrTreeClosed = errors.New("bptree: tree is closed")

	// ErrPageCorrupted means a page tagged as a header failed its magic
	// number check.
	ErrPageCorrupted = errors.New("bptree: header page failed magic check")
)
