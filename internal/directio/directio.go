// Package directio opens the backing file in a mode that bypasses (or
// best-effort evicts from) the OS page cache, so that every 2Q miss in
// the replacement engine above it is a real device-level I/O rather
// than a hit in a second, invisible cache layer.
//
// Grounded on github.com/ncw/directio (wired the same way
// ryogrid/bltree-go-for-embedding's buffer manager uses it: AlignedBlock
// for page-aligned buffers, OpenFile for an O_DIRECT-hinted descriptor)
// with a golang.org/x/sys/unix advisory fallback: attempt direct I/O,
// fall back to cache-drop hints on EINVAL.
package directio

import (
	"os"

	"github.com/ncw/directio"
	"golang.org/x/sys/unix"
)

// AlignedBuffer returns a fresh, page-aligned buffer of exactly size
// bytes, suitable for O_DIRECT reads and writes.
func AlignedBuffer(size int) []byte {
	return directio.AlignedBlock(size)
}

// File wraps an *os.File along with whether it was actually opened with
// a direct-I/O hint. When Direct is false, the caller must issue a
// DropCache advisory after every I/O to approximate the OS-cache-bypass
// intent.
type File struct {
	*os.File
	Direct bool
}

// Open attempts to open path with a direct-I/O hint. If the platform or
// filesystem rejects O_DIRECT with EINVAL, it retries with a plain
// os.OpenFile and reports Direct=false so the caller can fall back to
// per-I/O cache-drop advisories.
func Open(path string, flag int, perm os.FileMode) (*File, error) {
	f, err := directio.OpenFile(path, flag, perm)
	if err == nil {
		return &File{File: f, Direct: true}, nil
	}
	if !isEinval(err) {
		return nil, err
	}
	f, err = os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return &File{File: f, Direct: false}, nil
}

func isEinval(err error) bool {
	for {
		if err == unix.EINVAL {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
		if err == nil {
			return false
		}
	}
}

// DropCache issues a best-effort advisory that the OS should evict the
// given byte range of f from its page cache. Failures are ignored: it
// is an optimization hint, not a correctness requirement.
func DropCache(f *os.File, offset, length int64) {
	_ = unix.Fadvise(int(f.Fd()), offset, length, unix.FADV_DONTNEED)
}
