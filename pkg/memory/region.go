// Package memory provides the reserve/commit primitive backing a stack
// region. A region is a range of 64-bit words addressed by index; only the
// committed part may be read or written.
package memory

import (
	"errors"
	"fmt"
)

// Region is a reserved range of words that is committed and decommitted on
// demand. Committed memory always forms a suffix [lo, Len()) of the range.
type Region interface {
	// Len returns the number of reserved words.
	Len() int

	// Commit backs [lo, hi) with memory.
	Commit(lo, hi int) error

	// Decommit returns [lo, hi) to the system. Its contents are lost.
	Decommit(lo, hi int) error

	// Window returns the addressable words and the index of words[0]. The
	// window is only valid until the next Commit or Decommit.
	Window() (words []uint64, offset int)

	// Stats reports commit activity.
	Stats() Stats

	// Release gives up the reservation. The region is unusable afterwards.
	Release() error
}

// Allocator reserves a region of the given number of words.
type Allocator func(words int) (Region, error)

// Stats counts the slow-path memory operations performed on a region.
type Stats struct {
	Commits        int // Commit calls that changed the committed range
	Decommits      int // Decommit calls that changed the committed range
	CommittedWords int // words currently committed
}

var (
	ErrReserve    = errors.New("cannot reserve region")
	ErrOutOfRange = errors.New("range outside reservation")
	ErrReleased   = errors.New("region released")
)

// WordSize is the size of one slot in bytes.
const WordSize = 8

// MaxWords bounds a single reservation (2 GiB of slots).
const MaxWords = 1 << 28

func checkRange(lo, hi, n int) error {
	if lo < 0 || hi > n || lo > hi {
		return ErrOutOfRange
	}
	return nil
}

// AllocatorFor returns the allocator registered under name ("heap" or
// "mapped").
func AllocatorFor(name string) (Allocator, error) {
	switch name {
	case "", "heap":
		return ReserveHeap, nil
	case "mapped":
		return ReserveMapped, nil
	default:
		return nil, fmt.Errorf("unknown region backend %q", name)
	}
}
