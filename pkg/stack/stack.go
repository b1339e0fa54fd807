// Package stack manages the call stack of an interpreter: one contiguous
// region of slots holding every live call frame, growing toward lower
// indices.
//
// Each push reserves room for a sentinel header, the padded arguments, the
// frame header and the callee's locals:
//
//	                    | ...                                  |
//	                    |--------------------------------------|
//	                    | locals of the caller                 |
//	old top of stack -> |--------------------------------------|
//	                    | fence (FenceValidator only)          |
//	                    |--------------------------------------|
//	                    | sentinel header                      |
//	                    |--------------------------------------|
//	                    | arguments, padded to the parameters  |
//	                    |--------------------------------------|
//	           frame -> | frame header                         |
//	                    |--------------------------------------|
//	                    | locals of the new frame              |
//	          extent -> |--------------------------------------|
//
// Committed memory only ever grows on push. It is handed back once the stack
// has fully unwound and the excess passes MaxExcessCapacity, so a hot
// call/return cycle never touches the OS.
//
// A Stack is owned by one VM instance and is not safe for concurrent use.
package stack

import (
	"fmt"

	"github.com/charmbracelet/log"

	"jsstack/pkg/memory"
	"jsstack/pkg/value"
)

const (
	// DefaultCommitGranularity is the number of words committed at a time.
	DefaultCommitGranularity = 2048

	// DefaultMaxExcessCapacity is how many committed words may stay around
	// after a full unwind before they are released.
	DefaultMaxExcessCapacity = 128 * 1024
)

const noFrame = -1

// Stack is an execution stack backed by a single reserved region.
type Stack struct {
	region memory.Region
	words  []uint64
	offset int

	base        int // exclusive upper bound of the region
	reservedEnd int // lowest usable index
	commitEnd   int // lowest committed index
	end         int // extent of the top frame, base when empty

	topFP int

	allocator         memory.Allocator
	commitGranularity int
	maxExcessCapacity int
	validator         Validator
	defaultValue      value.Value
	logger            *log.Logger

	descriptors   []Descriptor
	descriptorIDs map[Descriptor]uint64

	stats Stats
}

// Limits are the boundaries of the region. ReservedEnd <= CommitEnd <= End
// <= Base holds at all times.
type Limits struct {
	Base        int `cbor:"base"`
	ReservedEnd int `cbor:"reserved_end"`
	CommitEnd   int `cbor:"commit_end"`
	End         int `cbor:"end"`
}

// Valid reports whether the limits are correctly ordered.
func (l Limits) Valid() bool {
	return l.ReservedEnd <= l.CommitEnd && l.CommitEnd <= l.End && l.End <= l.Base
}

// Stats counts stack activity.
type Stats struct {
	Pushes    uint64
	Pops      uint64
	Overflows uint64
	Grows     uint64 // slow-path commits
	Releases  uint64 // decommits after a full unwind
	HighWater int    // most words ever in use
	Region    memory.Stats
}

// New reserves a stack of maxCapacity usable slots plus guardHeadroom slots
// below them that are never handed out. Nothing is committed until the
// first push.
func New(maxCapacity, guardHeadroom int, opts ...Option) (*Stack, error) {
	s := &Stack{
		topFP:             noFrame,
		allocator:         memory.ReserveHeap,
		commitGranularity: DefaultCommitGranularity,
		maxExcessCapacity: DefaultMaxExcessCapacity,
		validator:         defaultValidator(),
		defaultValue:      value.Undefined,
		logger:            log.Default(),
		descriptorIDs:     make(map[Descriptor]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}

	if maxCapacity <= 0 || guardHeadroom < 0 {
		return nil, fmt.Errorf("%w: capacity %d, guard %d", ErrReservation, maxCapacity, guardHeadroom)
	}
	if s.commitGranularity <= 0 {
		s.commitGranularity = 1
	}

	region, err := s.allocator(guardHeadroom + maxCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReservation, err)
	}

	s.region = region
	s.base = guardHeadroom + maxCapacity
	s.reservedEnd = guardHeadroom
	s.commitEnd = s.base
	s.end = s.base
	s.refreshWindow()

	s.logger.Debug("Reserved stack", "capacity", maxCapacity, "guard", guardHeadroom, "fence", s.validator.FenceSize())
	return s, nil
}

// Close releases the region. The stack must not be used afterwards.
func (s *Stack) Close() error {
	s.words = nil
	return s.region.Release()
}

// Top returns the frame on top of the stack, or the nil Frame.
func (s *Stack) Top() Frame {
	return s.frameAt(s.topFP)
}

// Limits returns the current region boundaries.
func (s *Stack) Limits() Limits {
	return Limits{
		Base:        s.base,
		ReservedEnd: s.reservedEnd,
		CommitEnd:   s.commitEnd,
		End:         s.end,
	}
}

// Stats returns a copy of the activity counters.
func (s *Stack) Stats() Stats {
	stats := s.stats
	stats.Region = s.region.Stats()
	return stats
}

// EntryCheck reports whether a frame for d with argc arguments would fit,
// committing memory for it if needed. Nothing is pushed.
func (s *Stack) EntryCheck(d Descriptor, argc int) bool {
	padded, numLocals := frameShape(d, argc)
	_, newEnd := s.extent(padded, numLocals)
	return s.grow(newEnd) == nil
}

// Push enters a new activation of d. The arguments are copied into the frame
// and padded with the default value up to d's parameter count. Locals are
// left as they are; initializing them is up to the caller. d may be nil for
// native entry frames, which get exactly len(args) arguments and no locals.
//
// The only error is an *OverflowError, in which case nothing was written.
func (s *Stack) Push(d Descriptor, args []value.Value, callee, scope value.Value) (Frame, error) {
	argc := len(args)
	padded, numLocals := frameShape(d, argc)
	newSlot, newEnd := s.extent(padded, numLocals)

	if err := s.grow(newEnd); err != nil {
		s.stats.Overflows++
		return Frame{}, err
	}

	sentinel := newSlot + padded + HeaderSize
	s.writeHeader(sentinel, Link{Kind: CallerLink, Target: s.topFP}, sentinelDescriptor, 0, value.Empty, value.Empty)
	s.writeHeader(newSlot, Link{Kind: EntryLink, Target: sentinel}, s.descriptorID(d), argc, callee, scope)

	args0 := newSlot + HeaderSize
	for i, arg := range args {
		s.store(args0+i, uint64(arg))
	}
	for i := argc; i < padded; i++ {
		s.store(args0+i, uint64(s.defaultValue))
	}

	s.end = newEnd
	frame := Frame{stack: s, fp: newSlot}
	s.validator.AfterPush(s, frame)
	s.topFP = newSlot

	s.stats.Pushes++
	if used := s.base - newEnd; used > s.stats.HighWater {
		s.stats.HighWater = used
	}
	return frame, nil
}

// Pop leaves the activation f, which must be the top frame, and returns to
// its caller. Popping the outermost frame shrinks the stack back to its base.
func (s *Stack) Pop(f Frame) {
	if f.stack != s {
		s.fatalf("pop", "frame does not belong to this stack")
	}
	s.validator.BeforePop(s, f)

	caller := f.Caller()
	s.topFP = caller.index()
	if caller.IsNil() {
		s.shrink(s.base)
	} else {
		s.shrink(caller.Extent())
	}

	s.validator.AfterPop(s, caller)
	s.stats.Pops++
}

// extent computes where a frame with the given shape would be placed: the
// index of its header and the lowest index it would use.
func (s *Stack) extent(padded, numLocals int) (newSlot, newEnd int) {
	// A shape larger than the whole region can never fit. Place it just
	// below the reserved end so grow reports the overflow and the
	// subtraction below cannot wrap.
	capacity := s.base - s.reservedEnd
	if padded < 0 || numLocals < 0 || padded > capacity || numLocals > capacity {
		return s.reservedEnd - 1, s.reservedEnd - 1
	}

	oldEnd := s.topOfFrame(s.topFP)
	newSlot = oldEnd - padded - 2*HeaderSize + 1 - s.validator.FenceSize()
	return newSlot, newSlot - numLocals
}

// topOfFrame returns the highest free index below the frame at fp.
func (s *Stack) topOfFrame(fp int) int {
	if fp == noFrame {
		return s.base - 1
	}
	return s.extentOf(fp) - 1
}

func (s *Stack) extentOf(fp int) int {
	if d := s.descriptorAt(fp); d != nil {
		return fp - d.NumLocals()
	}
	return fp
}

func (s *Stack) grow(newEnd int) error {
	if newEnd >= s.commitEnd {
		return nil
	}
	return s.growSlowCase(newEnd)
}

func (s *Stack) growSlowCase(newEnd int) error {
	if newEnd < s.reservedEnd {
		s.logger.Debug("Stack overflow", "requested", s.base-newEnd, "capacity", s.base-s.reservedEnd)
		return &OverflowError{Requested: s.base - newEnd, Capacity: s.base - s.reservedEnd}
	}

	delta := roundUp(s.commitEnd-newEnd, s.commitGranularity)
	lo := max(s.commitEnd-delta, s.reservedEnd)
	if err := s.region.Commit(lo, s.commitEnd); err != nil {
		s.logger.Warn("Cannot commit stack memory", "from", lo, "to", s.commitEnd, "error", err)
		return &OverflowError{Requested: s.base - newEnd, Capacity: s.base - s.reservedEnd, Err: err}
	}

	s.logger.Debug("Committed stack memory", "words", s.commitEnd-lo, "committed", s.base-lo)
	s.commitEnd = lo
	s.refreshWindow()
	s.stats.Grows++
	return nil
}

func (s *Stack) shrink(newEnd int) {
	if newEnd <= s.end {
		return
	}
	s.end = newEnd

	excess := s.base - s.commitEnd
	if s.end == s.base && excess > 0 && excess >= s.maxExcessCapacity {
		s.releaseExcessCapacity()
	}
}

func (s *Stack) releaseExcessCapacity() {
	excess := s.base - s.commitEnd
	if err := s.region.Decommit(s.commitEnd, s.base); err != nil {
		s.logger.Warn("Cannot release stack memory", "words", excess, "error", err)
		return
	}

	s.logger.Debug("Released stack memory", "words", excess)
	s.commitEnd = s.base
	s.refreshWindow()
	s.stats.Releases++
}

func (s *Stack) refreshWindow() {
	s.words, s.offset = s.region.Window()
}

func (s *Stack) load(i int) uint64 {
	return s.words[i-s.offset]
}

func (s *Stack) store(i int, w uint64) {
	s.words[i-s.offset] = w
}

func (s *Stack) writeHeader(fp int, link Link, descriptor uint64, argc int, callee, scope value.Value) {
	s.store(fp+hdrCallerLink, link.encode())
	s.store(fp+hdrDescriptor, descriptor)
	s.store(fp+hdrArgumentCount, uint64(argc))
	s.store(fp+hdrCallee, uint64(callee))
	s.store(fp+hdrScope, uint64(scope))
}

func (s *Stack) frameAt(fp int) Frame {
	if fp == noFrame {
		return Frame{}
	}
	return Frame{stack: s, fp: fp}
}

func (s *Stack) fatalf(op, format string, args ...any) {
	err := &InternalError{Op: op, Msg: fmt.Sprintf(format, args...)}
	s.logger.Error("Stack consistency failure", "op", op, "error", err.Msg)
	panic(err)
}

func roundUp(n, unit int) int {
	return (n + unit - 1) / unit * unit
}
