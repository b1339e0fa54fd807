package memory

import "fmt"

// Heap is a Region backed by the Go heap. Only a suffix of the region is
// allocated. The buffer at least doubles whenever a commit outgrows it, so
// a stack that deepens one granule at a time is copied O(log n) times; the
// window moves on every reallocation.
type Heap struct {
	size     int
	lo       int      // lowest committed index
	bufLo    int      // index of buf[0]; bufLo <= lo
	buf      []uint64 // backs [bufLo, size)
	stats    Stats
	released bool
}

// ReserveHeap reserves a heap-backed region of n words. Nothing is committed.
func ReserveHeap(n int) (Region, error) {
	if n <= 0 || n > MaxWords {
		return nil, fmt.Errorf("%w: %d words", ErrReserve, n)
	}
	return &Heap{size: n, lo: n, bufLo: n}, nil
}

func (h *Heap) Len() int {
	return h.size
}

// Commit extends the committed suffix down to lo. Ranges that are already
// committed are ignored.
func (h *Heap) Commit(lo, hi int) error {
	if h.released {
		return ErrReleased
	}
	if err := checkRange(lo, hi, h.size); err != nil {
		return fmt.Errorf("commit [%d, %d): %w", lo, hi, err)
	}
	if lo >= h.lo || lo == hi {
		return nil
	}
	if hi < h.lo {
		return fmt.Errorf("commit [%d, %d): not adjacent to committed range at %d: %w", lo, hi, h.lo, ErrOutOfRange)
	}

	if lo < h.bufLo {
		n := min(max(h.size-lo, 2*len(h.buf)), h.size)
		buf := make([]uint64, n)
		copy(buf[h.lo-(h.size-n):], h.buf[h.lo-h.bufLo:])
		h.buf = buf
		h.bufLo = h.size - n
	} else {
		clear(h.buf[lo-h.bufLo : h.lo-h.bufLo])
	}
	h.lo = lo

	h.stats.Commits++
	h.stats.CommittedWords = h.size - h.lo
	return nil
}

// Decommit drops the committed words in [lo, hi). Only the low end of the
// committed suffix can be dropped. The buffer is freed once nothing is
// committed; a partial decommit keeps it for the next commit.
func (h *Heap) Decommit(lo, hi int) error {
	if h.released {
		return ErrReleased
	}
	if err := checkRange(lo, hi, h.size); err != nil {
		return fmt.Errorf("decommit [%d, %d): %w", lo, hi, err)
	}
	if hi <= h.lo || lo == hi {
		return nil
	}
	if lo > h.lo {
		return fmt.Errorf("decommit [%d, %d): would split committed range at %d: %w", lo, hi, h.lo, ErrOutOfRange)
	}

	if hi == h.size {
		h.buf = nil
		h.bufLo = h.size
	}
	h.lo = hi

	h.stats.Decommits++
	h.stats.CommittedWords = h.size - h.lo
	return nil
}

func (h *Heap) Window() ([]uint64, int) {
	if h.buf == nil {
		return nil, h.lo
	}
	return h.buf[h.lo-h.bufLo:], h.lo
}

func (h *Heap) Stats() Stats {
	return h.stats
}

func (h *Heap) Release() error {
	h.buf = nil
	h.bufLo = h.size
	h.lo = h.size
	h.released = true
	h.stats.CommittedWords = 0
	return nil
}
