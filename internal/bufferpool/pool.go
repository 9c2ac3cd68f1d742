package bufferpool

import (
	"errors"
	"log/slog"
	"sync"

	locking "github.com/mooncake-db/bptreeidx/internal/lock"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

var (
	logDebugPrefix  = "bufferpool: "
	DefaultCapacity = 128

	// ErrNoFreeFrame is returned when no unpinned frame is available for replacement.
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

	// ErrPagePinned is returned when trying to evict/delete a pinned page.
	ErrPagePinned = errors.New("bufferpool: page is pinned")
)

// Manager is spec.md's "Buffer manager" collaborator: pin/unpin/free on page
// identifiers, plus allocation of a fresh page as a side effect of handing
// one out for the first time.
type Manager interface {
	// Pin returns a page from the buffer pool, loading it from disk on a
	// miss, and increments its pin count.
	Pin(pageID uint32) (*storage.Page, error)

	// Unpin decreases pin count and marks the page dirty if requested.
	Unpin(page *storage.Page, dirty bool) error

	// Allocate hands out a freshly formatted page (reused from the free
	// list when possible) already pinned once.
	Allocate() (*storage.Page, error)

	// Free releases pageID back to the free list. The page must not be
	// pinned.
	Free(pageID uint32) error

	// FlushAll flushes all dirty pages to disk.
	FlushAll() error
}

// Frame holds a single page and its metadata inside the buffer pool.
type Frame struct {
	PageID uint32
	Page   *storage.Page
	Dirty  bool
	Pin    *locking.RefCount

	// Ref is the CLOCK reference bit.
	Ref bool
}

func (f *Frame) pinCount() int32 {
	if f.Pin == nil {
		return 0
	}
	return f.Pin.Get()
}

var _ Manager = (*Pool)(nil)

// Pool is a fixed-size buffer pool bound to one FileSet (one open index
// file), using CLOCK replacement to pick victim frames when full.
type Pool struct {
	sm *storage.StorageManager
	fs storage.FileSet

	mu        sync.Mutex
	frames    []*Frame
	pageTable map[uint32]int
	capacity  int
	clockHand int

	freeList  []uint32
	nextAlloc uint32
}

// NewPool creates a new buffer pool with the given capacity. Allocation
// starts at page id 1; Allocate never hands out page id 0.
func NewPool(sm *storage.StorageManager, fs storage.FileSet, capacity int) *Pool {
	if capacity <= 0 {
		capacity = 16
	}
	return &Pool{
		sm:        sm,
		fs:        fs,
		frames:    make([]*Frame, capacity),
		pageTable: make(map[uint32]int),
		capacity:  capacity,
		nextAlloc: 1,
	}
}

// Pin returns a page from buffer pool and increases its pin count. If the
// page is not resident, it is loaded from disk, evicting a CLOCK victim if
// the pool is full.
func (p *Pool) Pin(pageID uint32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slog.Debug(logDebugPrefix+"Pin", "pageID", pageID)

	if idx, ok := p.pageTable[pageID]; ok {
		f := p.frames[idx]
		if f == nil {
			slog.Error(logDebugPrefix+"pageTable points to nil frame", "pageID", pageID, "frameIdx", idx)
			delete(p.pageTable, pageID)
		} else {
			f.Pin.Inc()
			f.Ref = true
			return f.Page, nil
		}
	}

	freeIdx := -1
	for i, f := range p.frames {
		if f == nil {
			freeIdx = i
			break
		}
	}

	if freeIdx != -1 {
		page, err := p.sm.LoadPage(p.fs, pageID)
		if err != nil {
			return nil, err
		}
		f := &Frame{PageID: pageID, Page: page, Pin: locking.NewRefCount(), Ref: true}
		p.frames[freeIdx] = f
		p.pageTable[pageID] = freeIdx
		return page, nil
	}

	victimIdx, err := p.pickVictimLocked()
	if err != nil {
		return nil, err
	}
	victim := p.frames[victimIdx]

	if victim.Dirty {
		if err := p.sm.SavePage(p.fs, victim.PageID, victim.Page); err != nil {
			return nil, err
		}
		victim.Dirty = false
	}
	delete(p.pageTable, victim.PageID)

	page, err := p.sm.LoadPage(p.fs, pageID)
	if err != nil {
		return nil, err
	}

	victim.PageID = pageID
	victim.Page = page
	victim.Dirty = false
	victim.Pin = locking.NewRefCount()
	victim.Ref = true
	p.pageTable[pageID] = victimIdx

	return page, nil
}

// pickVictimLocked chooses a victim frame using the CLOCK algorithm. The
// caller must hold p.mu.
func (p *Pool) pickVictimLocked() (int, error) {
	n := p.capacity
	if n == 0 {
		return -1, ErrNoFreeFrame
	}

	scanned := 0
	for scanned < 2*n {
		idx := p.clockHand
		f := p.frames[idx]

		if f != nil && f.pinCount() == 0 {
			if !f.Ref {
				p.clockHand = (p.clockHand + 1) % n
				return idx, nil
			}
			f.Ref = false
		}

		p.clockHand = (p.clockHand + 1) % n
		scanned++
	}

	slog.Debug(logDebugPrefix + "CLOCK found no victim (all pinned or busy)")
	return -1, ErrNoFreeFrame
}

// Unpin decreases the pin count of a page and marks it dirty if requested.
func (p *Pool) Unpin(page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	pageID := page.PageID()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		slog.Debug(logDebugPrefix+"Unpin ignored, page not in pool", "pageID", pageID)
		return nil
	}

	f := p.frames[idx]
	if f == nil {
		return nil
	}
	if dirty {
		f.Dirty = true
	}
	if f.pinCount() > 0 {
		f.Pin.Dec()
	}
	return nil
}

// Allocate hands out a fresh page pinned once, reusing a freed page id when
// one is available, or extending the id space otherwise.
func (p *Pool) Allocate() (*storage.Page, error) {
	p.mu.Lock()
	var pid uint32
	if n := len(p.freeList); n > 0 {
		pid = p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
	} else {
		pid = p.nextAlloc
		p.nextAlloc++
	}
	p.mu.Unlock()

	page, err := p.Pin(pid)
	if err != nil {
		return nil, err
	}
	page.Reset(pid)
	return page, nil
}

// Free returns pageID to the free list so a later Allocate can reuse it.
// The page must currently be unpinned.
func (p *Pool) Free(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		f := p.frames[idx]
		if f != nil && f.pinCount() > 0 {
			return ErrPagePinned
		}
		p.frames[idx] = nil
		delete(p.pageTable, pageID)
	}

	p.freeList = append(p.freeList, pageID)
	slog.Debug(logDebugPrefix+"Free", "pageID", pageID)
	return nil
}

// FlushAll flushes all dirty frames to disk.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := p.sm.SavePage(p.fs, f.PageID, f.Page); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}
