package twoq

// queueKind records which resident queue a page entry currently belongs
// to, so eviction and promotion logic can branch without a second lookup.
type queueKind uint8

const (
	queueA1in queueKind = iota
	queueAm
)

// Page is a resident page entry: a page-sized, page-aligned buffer plus
// the bookkeeping the replacement engine needs. Data is owned by the
// engine for the entry's lifetime; callers never retain a reference to
// it (writes and reads copy into/out of caller buffers, so no caller
// ever aliases engine-owned memory).
type Page struct {
	PageNo   uint64
	Data     []byte
	ValidLen int
	Dirty    bool

	queue queueKind
	prev  *Page
	next  *Page
}

func (p *Page) setPrev(n *Page) { p.prev = n }
func (p *Page) setNext(n *Page) { p.next = n }
func (p *Page) getPrev() *Page  { return p.prev }
func (p *Page) getNext() *Page  { return p.next }

// ghost is a non-resident record of a page number recently evicted from
// A1in, carrying no data.
type ghost struct {
	pageNo uint64
	prev   *ghost
	next   *ghost
}

func (g *ghost) setPrev(n *ghost) { g.prev = n }
func (g *ghost) setNext(n *ghost) { g.next = n }
func (g *ghost) getPrev() *ghost  { return g.prev }
func (g *ghost) getNext() *ghost  { return g.next }
