package pagecache

// Read copies up to len(p) bytes starting at the handle's current
// position into p, advancing the position by the number of bytes
// copied. It returns (0, nil) at immediate EOF and the partial count
// delivered so far if a failure interrupts a multi-page read.
func Read(id int, p []byte) (int, error) {
	h, err := table.lookup(id, ORead)
	if err != nil {
		return 0, err
	}

	total := 0
	remaining := len(p)
	for remaining > 0 {
		pageNo := uint64(h.pos) / uint64(h.pgSize)
		inPage := int(uint64(h.pos) % uint64(h.pgSize))
		want := remaining
		if want > h.pgSize-inPage {
			want = h.pgSize - inPage
		}

		page, ferr := h.engine.Fetch(pageNo)
		if ferr != nil {
			if total > 0 {
				return total, nil
			}
			return 0, newErr("read", ErrIO, ferr)
		}

		if inPage >= page.ValidLen {
			break
		}
		take := want
		if take > page.ValidLen-inPage {
			take = page.ValidLen - inPage
		}
		copy(p[total:total+take], page.Data[inPage:inPage+take])
		h.pos += int64(take)
		total += take
		remaining -= take

		if take < want {
			break
		}
	}
	return total, nil
}

// Write copies all of p to the backing store starting at the handle's
// current position (or the handle's size, if opened in append mode),
// extending the known size and truncating the backing file immediately
// whenever the write advances past it.
func Write(id int, p []byte) (int, error) {
	h, err := table.lookup(id, OWrite)
	if err != nil {
		return 0, err
	}

	if h.flags&OAppend != 0 {
		h.pos = h.size
	}

	total := 0
	remaining := len(p)
	for remaining > 0 {
		pageNo := uint64(h.pos) / uint64(h.pgSize)
		inPage := int(uint64(h.pos) % uint64(h.pgSize))
		want := remaining
		if want > h.pgSize-inPage {
			want = h.pgSize - inPage
		}

		page, ferr := h.engine.Fetch(pageNo)
		if ferr != nil {
			if total > 0 {
				return total, nil
			}
			return 0, newErr("write", ErrIO, ferr)
		}

		// Sparse write past the page's current valid length: the gap
		// is already zero from the page's initial load, but fill it
		// explicitly in case a future admission path ever hands back
		// a page with stale tail bytes.
		if inPage > page.ValidLen {
			for i := page.ValidLen; i < inPage; i++ {
				page.Data[i] = 0
			}
		}

		copy(page.Data[inPage:inPage+want], p[total:total+want])
		if inPage+want > page.ValidLen {
			page.ValidLen = inPage + want
		}
		page.Dirty = true

		h.pos += int64(want)
		total += want
		remaining -= want

		if h.pos > h.size {
			h.size = h.pos
			if terr := h.file.Truncate(h.size); terr != nil {
				return total, newErr("write", ErrIO, terr)
			}
		}
	}
	return total, nil
}

// Seek repositions the handle per whence, failing if the resulting
// position would be negative. The position may legitimately exceed the
// current size; a subsequent write extends the file.
func Seek(id int, offset int64, whence Whence) (int64, error) {
	h, err := table.lookup(id, 0)
	if err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCurrent:
		base = h.pos
	case SeekEnd:
		base = h.size
	default:
		return 0, newErr("seek", ErrInvalidArgument, nil)
	}

	newPos := base + offset
	if newPos < 0 {
		return 0, newErr("seek", ErrInvalidArgument, nil)
	}
	h.pos = newPos
	return newPos, nil
}

// Fsync flushes all resident dirty pages, syncs the backing descriptor,
// and truncates it to the handle's known size.
func Fsync(id int) error {
	h, err := table.lookup(id, 0)
	if err != nil {
		return err
	}
	if ferr := h.engine.FlushAll(); ferr != nil {
		return newErr("fsync", ErrIO, ferr)
	}
	if serr := h.file.Sync(); serr != nil {
		return newErr("fsync", ErrIO, serr)
	}
	if terr := h.file.Truncate(h.size); terr != nil {
		return newErr("fsync", ErrIO, terr)
	}
	return nil
}

// Close flushes all dirty pages, syncs and truncates the backing
// descriptor, closes it, and releases the handle slot. Every step is
// attempted even if an earlier one fails; the first error encountered
// is returned.
func Close(id int) error {
	h, err := table.lookup(id, 0)
	if err != nil {
		return err
	}

	flushErr := h.engine.FlushAll()
	syncErr := h.file.Sync()
	truncErr := h.file.Truncate(h.size)
	closeErr := h.file.Close()
	table.release(id)

	for _, e := range []error{flushErr, syncErr, truncErr, closeErr} {
		if e != nil {
			return newErr("close", ErrIO, e)
		}
	}
	return nil
}
