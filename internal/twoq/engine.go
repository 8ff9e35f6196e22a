// Package twoq implements the per-handle 2Q replacement engine: a
// resident set split into a short-term admission queue (A1in) and a
// frequency queue (Am), backed by a non-resident ghost queue (A1out)
// that records recent A1in evictions to recognize re-references worth
// promoting straight to Am.
//
// Unlike a pure eviction-order policy bolted onto an external K,V map,
// this engine owns page I/O directly: on a miss it loads the page from
// the backing store itself, and on eviction it flushes dirty pages
// before handing the buffer back, since admission and eviction are
// defined here in terms of the page lifecycle they drive, not just a
// position in a list.
package twoq

import (
	"github.com/ondisk/pagecache/internal/phash"
	"github.com/ondisk/pagecache/internal/plist"
)

// Backing is the page-I/O surface the engine drives on miss and evict.
// Implemented by the handle layer, which owns the backing file
// descriptor and the handle's known size.
type Backing interface {
	// LoadPage fills buf (len == page size) with up to len(buf) bytes
	// read from the backing file at pageNo*pageSize, returning the
	// number of bytes actually read (0 at or past EOF).
	LoadPage(pageNo uint64, buf []byte) (validLen int, err error)
	// FlushPage issues a full page-sized, page-aligned write of buf at
	// pageNo*pageSize. validLen is informational only: a dirty page is
	// always written back in full.
	FlushPage(pageNo uint64, buf []byte, validLen int) error
	// AfterFlush truncates the backing file to the handle's known
	// size. Called once after every successful FlushPage.
	AfterFlush() error
}

// Metrics observes engine-level replacement events. Nil-safe via
// NoopMetrics, the default when no sink is supplied.
type Metrics interface {
	Hit()
	Miss()
	GhostHit()
	Evict()
	QueueSizes(a1in, am, a1out int)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                  {}
func (NoopMetrics) Miss()                 {}
func (NoopMetrics) GhostHit()             {}
func (NoopMetrics) Evict()                {}
func (NoopMetrics) QueueSizes(_, _, _ int) {}

// Engine is a single handle's 2Q replacement state. Not safe for
// concurrent use; callers own exclusivity.
type Engine struct {
	backing   Backing
	metrics   Metrics
	pageSize  int
	newBuffer func() []byte

	capacity, kin, amCap, kout int
	a1inSz, amSz, a1outSz      int

	a1in      plist.List[*Page]
	am        plist.List[*Page]
	ghostList plist.List[*ghost]

	residentIdx *phash.Table[*Page]
	ghostIdx    *phash.Table[*ghost]
}

// New constructs an engine for a handle with the given page size and
// target resident capacity (in pages). newBuffer must return a fresh,
// page-size, page-aligned buffer on every call (the handle layer wires
// this to internal/directio).
func New(pageSize, capacity int, backing Backing, newBuffer func() []byte, metrics Metrics) *Engine {
	if capacity < 4 {
		capacity = 4
	}
	kin := capacity / 4
	if kin < 1 {
		kin = 1
	}
	if kin > capacity/2 {
		kin = capacity / 2
	}
	amCap := capacity - kin
	kout := capacity / 2
	if kout < 1 {
		kout = 1
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Engine{
		backing:     backing,
		metrics:     metrics,
		pageSize:    pageSize,
		newBuffer:   newBuffer,
		capacity:    capacity,
		kin:         kin,
		amCap:       amCap,
		kout:        kout,
		residentIdx: phash.New[*Page](4 * capacity),
		ghostIdx:    phash.New[*ghost](4 * kout),
	}
}

// Capacity, Kin, AmCap and Kout expose the derived queue sizing for
// tests asserting queue-transition invariants.
func (e *Engine) Capacity() int { return e.capacity }
func (e *Engine) Kin() int      { return e.kin }
func (e *Engine) AmCap() int    { return e.amCap }
func (e *Engine) Kout() int     { return e.kout }

// A1inLen, AmLen and GhostLen report current queue occupancy.
func (e *Engine) A1inLen() int  { return e.a1inSz }
func (e *Engine) AmLen() int    { return e.amSz }
func (e *Engine) GhostLen() int { return e.a1outSz }

// ResidentContains and GhostContains support invariant checks (disjoint
// resident/ghost key sets).
func (e *Engine) ResidentContains(pageNo uint64) bool { return e.residentIdx.Has(pageNo) }
func (e *Engine) GhostContains(pageNo uint64) bool    { return e.ghostIdx.Has(pageNo) }

// Fetch returns the resident page for pageNo, loading it from the
// backing store on a cold miss or a ghost hit, and updating queue
// placement per the lookup-on-read/write algorithm.
func (e *Engine) Fetch(pageNo uint64) (*Page, error) {
	if p, ok := e.residentIdx.Get(pageNo); ok {
		if p.queue == queueA1in {
			e.a1in.Remove(p)
			e.a1inSz--
			if err := e.ensureSpaceForAm(); err != nil {
				// Restore p to A1in so engine invariants hold; the
				// caller's fetch failed but no data was lost.
				p.queue = queueA1in
				e.a1in.PushFront(p)
				e.a1inSz++
				return nil, err
			}
			p.queue = queueAm
			e.am.PushFront(p)
			e.amSz++
		} else {
			e.am.MoveToFront(p)
		}
		e.metrics.Hit()
		e.reportSizes()
		return p, nil
	}

	if g, ok := e.ghostIdx.Get(pageNo); ok {
		// Leave the ghost entry in place until both space-ensuring and
		// the page load succeed: either can fail, and a failure here
		// must not drop the page from A1out, or a later retry would see
		// a cold miss instead of a ghost hit.
		if err := e.ensureSpaceForAm(); err != nil {
			return nil, err
		}
		p, err := e.loadPage(pageNo)
		if err != nil {
			return nil, err
		}
		e.ghostList.Remove(g)
		e.ghostIdx.Delete(pageNo)
		e.a1outSz--
		p.queue = queueAm
		e.am.PushFront(p)
		e.amSz++
		e.residentIdx.Insert(pageNo, p)
		e.metrics.GhostHit()
		e.reportSizes()
		return p, nil
	}

	if err := e.ensureSpaceForA1in(); err != nil {
		return nil, err
	}
	p, err := e.loadPage(pageNo)
	if err != nil {
		return nil, err
	}
	p.queue = queueA1in
	e.a1in.PushFront(p)
	e.a1inSz++
	e.residentIdx.Insert(pageNo, p)
	e.metrics.Miss()
	e.reportSizes()
	return p, nil
}

func (e *Engine) reportSizes() {
	e.metrics.QueueSizes(e.a1inSz, e.amSz, e.a1outSz)
}

// ensureSpaceForA1in makes room for one more A1in entry.
func (e *Engine) ensureSpaceForA1in() error {
	if e.a1inSz >= e.kin {
		return e.evictA1inTail()
	}
	for e.a1inSz+e.amSz >= e.capacity {
		if e.amSz > 0 {
			if err := e.evictAmTail(); err != nil {
				return err
			}
		} else {
			if err := e.evictA1inTail(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureSpaceForAm makes room for one more Am entry.
func (e *Engine) ensureSpaceForAm() error {
	for e.amSz >= e.amCap {
		if err := e.evictAmTail(); err != nil {
			return err
		}
	}
	for e.a1inSz+e.amSz >= e.capacity {
		if e.a1inSz > 0 {
			if err := e.evictA1inTail(); err != nil {
				return err
			}
		} else {
			if err := e.evictAmTail(); err != nil {
				return err
			}
		}
	}
	return nil
}

// evictA1inTail evicts the A1in LRU entry, flushing it if dirty and, on
// success, recording a ghost for it.
func (e *Engine) evictA1inTail() error {
	p := e.a1in.Back()
	if p == nil {
		return nil
	}
	e.a1in.Remove(p)
	e.a1inSz--
	e.residentIdx.Delete(p.PageNo)

	if err := e.flushPage(p); err != nil {
		p.queue = queueA1in
		e.a1in.PushFront(p)
		e.a1inSz++
		e.residentIdx.Insert(p.PageNo, p)
		return err
	}
	e.metrics.Evict()

	g := &ghost{pageNo: p.PageNo}
	e.ghostList.PushFront(g)
	e.ghostIdx.Insert(p.PageNo, g)
	e.a1outSz++
	for e.a1outSz > e.kout {
		tail := e.ghostList.PopBack()
		if tail == nil {
			break
		}
		e.ghostIdx.Delete(tail.pageNo)
		e.a1outSz--
	}
	return nil
}

// evictAmTail evicts the Am LRU entry. Unlike A1in eviction, no ghost is
// recorded: the ghost list tracks only admissions that never reached Am.
func (e *Engine) evictAmTail() error {
	p := e.am.Back()
	if p == nil {
		return nil
	}
	e.am.Remove(p)
	e.amSz--
	e.residentIdx.Delete(p.PageNo)

	if err := e.flushPage(p); err != nil {
		p.queue = queueAm
		e.am.PushFront(p)
		e.amSz++
		e.residentIdx.Insert(p.PageNo, p)
		return err
	}
	e.metrics.Evict()
	return nil
}

// flushPage is a no-op for a clean page; otherwise it writes the full
// page back and truncates the backing file to its known size.
func (e *Engine) flushPage(p *Page) error {
	if !p.Dirty {
		return nil
	}
	if err := e.backing.FlushPage(p.PageNo, p.Data, p.ValidLen); err != nil {
		return err
	}
	p.Dirty = false
	return e.backing.AfterFlush()
}

// loadPage allocates a fresh page buffer and fills it from the backing
// store, zero-filling any tail beyond the bytes actually read.
func (e *Engine) loadPage(pageNo uint64) (*Page, error) {
	buf := e.newBuffer()
	validLen, err := e.backing.LoadPage(pageNo, buf)
	if err != nil {
		return nil, err
	}
	for i := validLen; i < len(buf); i++ {
		buf[i] = 0
	}
	return &Page{PageNo: pageNo, Data: buf, ValidLen: validLen}, nil
}

// FlushAll flushes every dirty resident page (both queues), returning
// the first error encountered while still attempting every page —
// matching the handle layer's close/fsync propagation policy.
func (e *Engine) FlushAll() error {
	var firstErr error
	for p := e.a1in.Front(); p != nil; p = p.getNext() {
		if err := e.flushPage(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for p := e.am.Front(); p != nil; p = p.getNext() {
		if err := e.flushPage(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OnA1in reports whether the page currently sits on the admission
// queue (as opposed to the frequency queue).
func (p *Page) OnA1in() bool { return p.queue == queueA1in }
