//go:build linux || darwin || freebsd || netbsd || openbsd

package memory

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mapped is a Region backed by an anonymous memory mapping. The whole range
// is reserved with PROT_NONE up front; commit makes pages writable and
// decommit hands them back to the kernel. Touching uncommitted words faults.
type Mapped struct {
	mem      []byte
	words    []uint64
	pad      int // words between the start of the mapping and index 0
	size     int
	lo       int
	page     int
	stats    Stats
	released bool
}

// ReserveMapped reserves n words of address space without committing any of
// it. The mapping is rounded up to whole pages; the slack sits below index 0
// so that the top of the region ends on a page boundary.
func ReserveMapped(n int) (Region, error) {
	if n <= 0 || n > MaxWords {
		return nil, fmt.Errorf("%w: %d words", ErrReserve, n)
	}
	page := unix.Getpagesize()
	length := roundUp(n*WordSize, page)

	mem, err := unix.Mmap(-1, 0, length, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrReserve, length, err)
	}

	all := unsafe.Slice((*uint64)(unsafe.Pointer(&mem[0])), length/WordSize)
	pad := len(all) - n
	return &Mapped{
		mem:   mem,
		words: all[pad:],
		pad:   pad,
		size:  n,
		lo:    n,
		page:  page,
	}, nil
}

func (m *Mapped) Len() int {
	return m.size
}

func (m *Mapped) Commit(lo, hi int) error {
	if m.released {
		return ErrReleased
	}
	if err := checkRange(lo, hi, m.size); err != nil {
		return fmt.Errorf("commit [%d, %d): %w", lo, hi, err)
	}
	if lo >= m.lo || lo == hi {
		return nil
	}

	// Round outward so every word in [lo, hi) is backed.
	start := roundDown((m.pad+lo)*WordSize, m.page)
	end := roundUp((m.pad+hi)*WordSize, m.page)
	if err := unix.Mprotect(m.mem[start:end], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("commit [%d, %d): mprotect: %w", lo, hi, err)
	}

	m.lo = lo
	m.stats.Commits++
	m.stats.CommittedWords = m.size - m.lo
	return nil
}

func (m *Mapped) Decommit(lo, hi int) error {
	if m.released {
		return ErrReleased
	}
	if err := checkRange(lo, hi, m.size); err != nil {
		return fmt.Errorf("decommit [%d, %d): %w", lo, hi, err)
	}
	if hi <= m.lo || lo == hi {
		return nil
	}
	if lo > m.lo {
		return fmt.Errorf("decommit [%d, %d): would split committed range at %d: %w", lo, hi, m.lo, ErrOutOfRange)
	}

	// Round inward; a partially covered page may still hold live words.
	start := roundUp((m.pad+lo)*WordSize, m.page)
	end := roundDown((m.pad+hi)*WordSize, m.page)
	if start < end {
		if err := unix.Madvise(m.mem[start:end], unix.MADV_DONTNEED); err != nil {
			return fmt.Errorf("decommit [%d, %d): madvise: %w", lo, hi, err)
		}
		if err := unix.Mprotect(m.mem[start:end], unix.PROT_NONE); err != nil {
			return fmt.Errorf("decommit [%d, %d): mprotect: %w", lo, hi, err)
		}
	}

	m.lo = hi
	m.stats.Decommits++
	m.stats.CommittedWords = m.size - m.lo
	return nil
}

func (m *Mapped) Window() ([]uint64, int) {
	return m.words, 0
}

func (m *Mapped) Stats() Stats {
	return m.stats
}

func (m *Mapped) Release() error {
	if m.released {
		return nil
	}
	m.released = true
	m.words = nil
	m.stats.CommittedWords = 0
	if err := unix.Munmap(m.mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	m.mem = nil
	return nil
}

func roundUp(n, unit int) int {
	return (n + unit - 1) / unit * unit
}

func roundDown(n, unit int) int {
	return n / unit * unit
}
