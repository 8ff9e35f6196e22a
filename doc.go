// Package pagecache is a fast, page-granular, 2Q-replaced cache sitting
// between an application and a block-oriented backing file. It exists to
// let replacement policies be studied and measured independently of
// whatever the OS page cache happens to do — the backing file is opened
// with a direct-I/O hint (falling back to per-I/O cache-drop advisories
// when the platform refuses it), so every engine miss is a real
// device-level I/O.
//
// Design
//
//   - Handles: a fixed-size, process-wide table of handles identified by
//     small integers >= 3 (0-2 are reserved so ids can never be confused
//     with stdin/stdout/stderr). Each handle owns a backing file
//     descriptor, a position, a known size, access flags, and its own
//     replacement engine.
//
//   - Replacement: each handle's engine splits its resident set into an
//     admission queue (A1in) and a frequency queue (Am), backed by a
//     non-resident ghost queue (A1out) that remembers recent A1in
//     evictions so a second reference promotes straight to Am instead of
//     re-entering admission. See internal/twoq.
//
//   - Page I/O: pages are read and written in full, page-aligned units.
//     A short read at EOF is normal and yields a page whose valid length
//     is less than the page size; bytes beyond valid length are always
//     zero. Dirty pages are flushed in full on eviction, close, and
//     fsync, and the backing file is truncated to the handle's known
//     size after every flush (a full-page write can otherwise extend the
//     file past a mid-page logical size).
//
//   - Configuration: one process-wide setting, the per-handle resident
//     capacity in pages, is read once from PAGECACHE_CAPACITY (default
//     256) at first-handle-open time.
//
//   - Metrics: an optional Metrics sink (default NoopMetrics) observes
//     hit/miss/ghost-hit/eviction events and queue sizes per handle; see
//     metrics/prom for a Prometheus adapter.
//
// Concurrency
//
// A handle is single-threaded: no operation suspends internally, and the
// design assumes exclusive ownership of each handle by its caller.
// Concurrent callers sharing one handle must synchronize externally.
// Distinct handles have no ordering relationship beyond whatever the OS
// provides for distinct descriptors.
//
// Basic usage
//
//	id, err := pagecache.Open("data.bin", pagecache.ORead|pagecache.OWrite|pagecache.OCreate)
//	if err != nil {
//	    // handle err
//	}
//	defer pagecache.Close(id)
//
//	if _, err := pagecache.Write(id, []byte("hello")); err != nil {
//	    // handle err
//	}
//	buf := make([]byte, 5)
//	if _, err := pagecache.Seek(id, 0, pagecache.SeekSet); err != nil {
//	    // handle err
//	}
//	n, err := pagecache.Read(id, buf)
//
package pagecache
