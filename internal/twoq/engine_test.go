package twoq

import (
	"errors"
	"testing"
)

// memBacking is an in-memory Backing double keyed by page number, used
// to drive the engine without touching a real file.
type memBacking struct {
	pages      map[uint64][]byte
	flushErr   error
	flushCalls int
	loadCalls  int
}

func newMemBacking() *memBacking {
	return &memBacking{pages: map[uint64][]byte{}}
}

func (b *memBacking) LoadPage(pageNo uint64, buf []byte) (int, error) {
	b.loadCalls++
	data, ok := b.pages[pageNo]
	if !ok {
		return 0, nil
	}
	n := copy(buf, data)
	return n, nil
}

func (b *memBacking) FlushPage(pageNo uint64, buf []byte, validLen int) error {
	b.flushCalls++
	if b.flushErr != nil {
		return b.flushErr
	}
	cp := make([]byte, validLen)
	copy(cp, buf[:validLen])
	b.pages[pageNo] = cp
	return nil
}

func (b *memBacking) AfterFlush() error { return nil }

const testPageSize = 64

func newTestEngine(capacity int, backing Backing) *Engine {
	return New(testPageSize, capacity, backing, func() []byte {
		return make([]byte, testPageSize)
	}, nil)
}

func TestEngine_ColdMissGoesToA1in(t *testing.T) {
	t.Parallel()

	e := newTestEngine(8, newMemBacking())
	p, err := e.Fetch(1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !p.OnA1in() {
		t.Fatalf("first fetch must admit into A1in")
	}
	if e.A1inLen() != 1 || e.AmLen() != 0 {
		t.Fatalf("A1in/Am = %d/%d, want 1/0", e.A1inLen(), e.AmLen())
	}
	if !e.ResidentContains(1) {
		t.Fatalf("page 1 must be resident after fetch")
	}
}

func TestEngine_HitOnA1inPromotesToAm(t *testing.T) {
	t.Parallel()

	e := newTestEngine(8, newMemBacking())
	e.Fetch(1)
	p, err := e.Fetch(1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.OnA1in() {
		t.Fatalf("second fetch of the same page must promote out of A1in")
	}
	if e.A1inLen() != 0 || e.AmLen() != 1 {
		t.Fatalf("A1in/Am = %d/%d, want 0/1", e.A1inLen(), e.AmLen())
	}
}

func TestEngine_HitOnAmStaysOnAm(t *testing.T) {
	t.Parallel()

	e := newTestEngine(8, newMemBacking())
	e.Fetch(1)
	e.Fetch(1) // now on Am
	p, err := e.Fetch(1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.OnA1in() {
		t.Fatalf("page already on Am must stay off A1in")
	}
	if e.AmLen() != 1 {
		t.Fatalf("AmLen = %d, want 1", e.AmLen())
	}
}

func TestEngine_GhostHitPromotesDirectlyToAm(t *testing.T) {
	t.Parallel()

	// capacity small enough that one admission evicts the previous one
	// into the ghost queue.
	e := newTestEngine(4, newMemBacking()) // kin=1, amCap=3, kout=2
	e.Fetch(1)                             // A1in: [1]
	e.Fetch(2)                             // evicts 1 into ghost (kin=1), A1in: [2]

	if !e.GhostContains(1) {
		t.Fatalf("page 1 must be a ghost after eviction from A1in")
	}
	if e.ResidentContains(1) {
		t.Fatalf("page 1 must not be resident after eviction")
	}

	p, err := e.Fetch(1) // ghost hit
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.OnA1in() {
		t.Fatalf("a ghost hit must land directly on Am, never A1in")
	}
	if e.GhostContains(1) {
		t.Fatalf("page 1 must be removed from the ghost queue on re-fetch")
	}
}

func TestEngine_A1inOverflowEvictsToGhost(t *testing.T) {
	t.Parallel()

	b := newMemBacking()
	e := newTestEngine(8, b) // kin = 2
	e.Fetch(1)
	e.Fetch(2)
	e.Fetch(3) // A1in cap is 2: admitting 3 must evict 1

	if e.ResidentContains(1) {
		t.Fatalf("page 1 should have been evicted from A1in")
	}
	if !e.GhostContains(1) {
		t.Fatalf("evicted A1in page must become a ghost")
	}
}

func TestEngine_GhostQueueBoundedByKout(t *testing.T) {
	t.Parallel()

	e := newTestEngine(4, newMemBacking()) // kin=1, kout=2
	for pn := uint64(1); pn <= 5; pn++ {
		if _, err := e.Fetch(pn); err != nil {
			t.Fatalf("Fetch(%d): %v", pn, err)
		}
	}
	if e.GhostLen() > e.Kout() {
		t.Fatalf("GhostLen = %d, exceeds Kout = %d", e.GhostLen(), e.Kout())
	}
}

func TestEngine_DirtyPageFlushedOnEviction(t *testing.T) {
	t.Parallel()

	b := newMemBacking()
	e := newTestEngine(4, b) // kin=1
	p1, _ := e.Fetch(1)
	copy(p1.Data, []byte("hello"))
	p1.ValidLen = 5
	p1.Dirty = true

	e.Fetch(2) // evicts page 1, must flush it first

	if b.flushCalls == 0 {
		t.Fatalf("dirty page must be flushed on eviction")
	}
	if string(b.pages[1][:5]) != "hello" {
		t.Fatalf("flushed content = %q, want hello", b.pages[1][:5])
	}
}

func TestEngine_CleanPageNotFlushedOnEviction(t *testing.T) {
	t.Parallel()

	b := newMemBacking()
	e := newTestEngine(4, b)
	e.Fetch(1) // clean
	e.Fetch(2) // evicts page 1, should not flush (not dirty)

	if b.flushCalls != 0 {
		t.Fatalf("flushCalls = %d, want 0 for a clean eviction", b.flushCalls)
	}
}

func TestEngine_EvictionFailurePreservesPage(t *testing.T) {
	t.Parallel()

	b := newMemBacking()
	b.flushErr = errors.New("disk full")
	e := newTestEngine(4, b)

	p1, _ := e.Fetch(1)
	p1.Dirty = true

	if _, err := e.Fetch(2); err == nil {
		t.Fatalf("expected eviction/flush failure to propagate")
	}
	if !e.ResidentContains(1) {
		t.Fatalf("page 1 must remain resident after a failed flush")
	}
}

func TestEngine_QueueSizesNeverExceedCapacity(t *testing.T) {
	t.Parallel()

	e := newTestEngine(6, newMemBacking())
	for pn := uint64(0); pn < 50; pn++ {
		if _, err := e.Fetch(pn); err != nil {
			t.Fatalf("Fetch(%d): %v", pn, err)
		}
		if e.A1inLen()+e.AmLen() > e.Capacity() {
			t.Fatalf("resident total %d exceeds capacity %d", e.A1inLen()+e.AmLen(), e.Capacity())
		}
	}
}

// FuzzEngine_AdmissionEvictionInvariants drives Fetch with a pseudo-random
// page-number sequence derived from the fuzzer's seed bytes and asserts
// the queue-sizing and disjointness invariants hold after every call.
// It guards against panics and invariant violations under arbitrary
// access patterns, the same role FuzzTable_SetGetDelete plays for the
// hash index one layer down.
func FuzzEngine_AdmissionEvictionInvariants(f *testing.F) {
	f.Add([]byte{1, 2, 3, 1, 2, 4, 5, 6, 1})
	f.Add([]byte{0})
	f.Add(make([]byte, 64))

	f.Fuzz(func(t *testing.T, ops []byte) {
		if len(ops) > 4096 {
			ops = ops[:4096]
		}
		b := newMemBacking()
		e := newTestEngine(8, b) // kin=2, amCap=6, kout=4

		for _, op := range ops {
			pageNo := uint64(op) % 32
			p, err := e.Fetch(pageNo)
			if err != nil {
				t.Fatalf("Fetch(%d): %v", pageNo, err)
			}
			if op%7 == 0 {
				p.Dirty = true
			}

			if e.A1inLen() > e.Kin() {
				t.Fatalf("A1inLen = %d exceeds Kin = %d", e.A1inLen(), e.Kin())
			}
			if e.AmLen() > e.AmCap() {
				t.Fatalf("AmLen = %d exceeds AmCap = %d", e.AmLen(), e.AmCap())
			}
			if e.A1inLen()+e.AmLen() > e.Capacity() {
				t.Fatalf("resident total %d exceeds capacity %d", e.A1inLen()+e.AmLen(), e.Capacity())
			}
			if e.GhostLen() > e.Kout() {
				t.Fatalf("GhostLen = %d exceeds Kout = %d", e.GhostLen(), e.Kout())
			}
			if e.ResidentContains(pageNo) && e.GhostContains(pageNo) {
				t.Fatalf("page %d present in both resident and ghost indexes", pageNo)
			}
		}
	})
}

func TestEngine_FlushAllFlushesEveryDirtyPage(t *testing.T) {
	t.Parallel()

	b := newMemBacking()
	e := newTestEngine(16, b) // kin=4: all three pages stay resident
	p1, _ := e.Fetch(1)
	p1.Dirty = true
	p2, _ := e.Fetch(2)
	p2.Dirty = true
	e.Fetch(3) // clean

	if err := e.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if b.flushCalls != 2 {
		t.Fatalf("flushCalls = %d, want 2", b.flushCalls)
	}
	if p1.Dirty || p2.Dirty {
		t.Fatalf("pages must be clean after FlushAll")
	}
}
