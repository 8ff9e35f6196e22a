package pagecache

import (
	"io"
	"os"
	"sync"

	"github.com/ondisk/pagecache/internal/directio"
	"github.com/ondisk/pagecache/internal/twoq"
)

// OpenFlag selects a handle's access mode, mirroring O_RDONLY-family
// flags.
type OpenFlag int

const (
	ORead OpenFlag = 1 << iota
	OWrite
	OAppend
	OCreate
)

// Whence selects the reference point for Seek.
type Whence int

const (
	SeekSet Whence = iota
	SeekCurrent
	SeekEnd
)

// reservedSlots keeps handle identifiers 0-2 free so they cannot be
// confused with conventional stdin/stdout/stderr descriptor numbers.
const reservedSlots = 3

// maxHandles bounds the process-wide handle table.
const maxHandles = 4096

type handle struct {
	inUse  bool
	file   *directio.File
	flags  OpenFlag
	pos    int64
	size   int64
	pgSize int
	engine *twoq.Engine
}

type handleTable struct {
	mu      sync.Mutex
	entries []handle
}

var (
	tableOnce sync.Once
	table     handleTable
	cfg       Config
	cfgMu     sync.Mutex
)

func ensureInit() {
	tableOnce.Do(func() {
		cfg = loadConfig()
		table.entries = make([]handle, maxHandles)
	})
}

// SetMetrics overrides the process-wide Metrics sink used by handles
// opened afterward. Unlike CapacityPages, which is resolved once, the
// sink is read on every Open; handles already open keep the sink they
// were opened with.
func SetMetrics(m Metrics) {
	ensureInit()
	if m == nil {
		m = NoopMetrics{}
	}
	cfgMu.Lock()
	cfg.Metrics = m
	cfgMu.Unlock()
}

func toOSFlags(flags OpenFlag) int {
	osFlags := os.O_RDONLY
	switch {
	case flags&ORead != 0 && flags&OWrite != 0:
		osFlags = os.O_RDWR
	case flags&OWrite != 0:
		// A write-only handle still needs a readable descriptor: every
		// write first loads the page it modifies. Read on such a handle
		// is refused by the handle layer, not by the descriptor.
		osFlags = os.O_RDWR
	}
	if flags&OCreate != 0 {
		osFlags |= os.O_CREATE
	}
	// OAppend is deliberately not translated to O_APPEND here: append
	// semantics are realized entirely in ops.go by snapping pos to size
	// before a write. The backing descriptor's writes are positioned
	// (pwrite via WriteAt) at pageNo*P; on Linux, pwrite on an O_APPEND
	// descriptor ignores the given offset and always appends, which
	// would corrupt every page-flush of an append-mode handle.
	return osFlags
}

// Open allocates a handle over path. flags selects read/write/append/
// create and the access mode enforced by Read/Write. Returns a handle
// id >= 3 on success.
func Open(path string, flags OpenFlag) (int, error) {
	ensureInit()

	table.mu.Lock()
	idx := -1
	for i := reservedSlots; i < len(table.entries); i++ {
		if !table.entries[i].inUse {
			idx = i
			table.entries[i].inUse = true
			break
		}
	}
	table.mu.Unlock()
	if idx < 0 {
		return 0, newErr("open", ErrTooManyOpenFiles, nil)
	}

	f, err := directio.Open(path, toOSFlags(flags), 0o644)
	if err != nil {
		table.release(idx)
		return 0, newErr("open", ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		table.release(idx)
		return 0, newErr("open", ErrIO, err)
	}

	pgSize := os.Getpagesize()
	h := &table.entries[idx]
	h.file = f
	h.flags = flags
	h.pos = 0
	h.size = info.Size()
	h.pgSize = pgSize

	cfgMu.Lock()
	capacityPages, metrics := cfg.CapacityPages, cfg.Metrics
	cfgMu.Unlock()

	backing := &fileBacking{h: h}
	h.engine = twoq.New(pgSize, capacityPages, backing, func() []byte {
		return directio.AlignedBuffer(pgSize)
	}, metrics)

	return idx, nil
}

func (t *handleTable) release(idx int) {
	t.mu.Lock()
	t.entries[idx] = handle{}
	t.mu.Unlock()
}

func (t *handleTable) lookup(id int, needFlag OpenFlag) (*handle, error) {
	if id < reservedSlots || id >= len(t.entries) {
		return nil, newErr("handle", ErrBadHandle, nil)
	}
	h := &t.entries[id]
	if !h.inUse {
		return nil, newErr("handle", ErrBadHandle, nil)
	}
	if needFlag != 0 && h.flags&needFlag == 0 {
		return nil, newErr("handle", ErrBadHandle, nil)
	}
	return h, nil
}

// fileBacking adapts a handle's backing file to twoq.Backing.
type fileBacking struct{ h *handle }

func (b *fileBacking) LoadPage(pageNo uint64, buf []byte) (int, error) {
	off := int64(pageNo) * int64(b.h.pgSize)
	n, err := b.h.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if !b.h.file.Direct {
		directio.DropCache(b.h.file.File, off, int64(len(buf)))
	}
	return n, nil
}

func (b *fileBacking) FlushPage(pageNo uint64, buf []byte, _ int) error {
	off := int64(pageNo) * int64(b.h.pgSize)
	if _, err := b.h.file.WriteAt(buf, off); err != nil {
		return err
	}
	if !b.h.file.Direct {
		directio.DropCache(b.h.file.File, off, int64(len(buf)))
	}
	return nil
}

func (b *fileBacking) AfterFlush() error {
	return b.h.file.Truncate(b.h.size)
}
