package stack

import (
	"iter"

	"jsstack/pkg/value"
)

// HeaderSize is the number of slots in a frame header.
const HeaderSize = 5

const (
	hdrCallerLink = iota
	hdrDescriptor
	hdrArgumentCount
	hdrCallee
	hdrScope
)

// Frame is a handle to a call frame. It stays valid while the frame is live,
// even when the region moves; every access goes through the stack. The zero
// Frame is the nil frame and only IsNil may be called on it.
type Frame struct {
	stack *Stack
	fp    int
}

func (f Frame) IsNil() bool {
	return f.stack == nil
}

// Index returns the slot index of the frame header.
func (f Frame) Index() int {
	return f.fp
}

func (f Frame) index() int {
	if f.stack == nil {
		return noFrame
	}
	return f.fp
}

// CallerLink returns the raw link stored in the header. For a regular frame
// it points at the frame's entry sentinel.
func (f Frame) CallerLink() Link {
	return decodeLink(f.stack.load(f.fp + hdrCallerLink))
}

// Caller returns the frame that was on top when f was pushed, skipping the
// sentinel in between.
func (f Frame) Caller() Frame {
	link := f.CallerLink()
	if link.Kind == EntryLink {
		link = decodeLink(f.stack.load(link.Target + hdrCallerLink))
	}
	return f.stack.frameAt(link.Target)
}

// IsSentinel reports whether f is an entry sentinel rather than an
// activation.
func (f Frame) IsSentinel() bool {
	return f.stack.load(f.fp+hdrDescriptor) == sentinelDescriptor
}

// Descriptor returns the frame's descriptor, nil for native entry frames.
func (f Frame) Descriptor() Descriptor {
	return f.stack.descriptorAt(f.fp)
}

// ArgumentCount returns the number of arguments the caller supplied.
func (f Frame) ArgumentCount() int {
	return int(f.stack.load(f.fp + hdrArgumentCount))
}

// PaddedArgumentCount returns the number of argument slots in the frame.
func (f Frame) PaddedArgumentCount() int {
	padded, _ := frameShape(f.Descriptor(), f.ArgumentCount())
	return padded
}

func (f Frame) NumLocals() int {
	if d := f.Descriptor(); d != nil {
		return d.NumLocals()
	}
	return 0
}

func (f Frame) Callee() value.Value {
	return value.Value(f.stack.load(f.fp + hdrCallee))
}

func (f Frame) Scope() value.Value {
	return value.Value(f.stack.load(f.fp + hdrScope))
}

// Extent returns the lowest slot index used by the frame.
func (f Frame) Extent() int {
	return f.stack.extentOf(f.fp)
}

func (f Frame) Argument(i int) value.Value {
	f.checkArgument(i)
	return value.Value(f.stack.load(f.fp + HeaderSize + i))
}

func (f Frame) SetArgument(i int, v value.Value) {
	f.checkArgument(i)
	f.stack.store(f.fp+HeaderSize+i, uint64(v))
}

// Local returns local slot i. Locals are laid out below the header.
func (f Frame) Local(i int) value.Value {
	f.checkLocal(i)
	return value.Value(f.stack.load(f.fp - 1 - i))
}

func (f Frame) SetLocal(i int, v value.Value) {
	f.checkLocal(i)
	f.stack.store(f.fp-1-i, uint64(v))
}

func (f Frame) checkArgument(i int) {
	if n := f.PaddedArgumentCount(); i < 0 || i >= n {
		f.stack.fatalf("argument", "frame %d: argument %d out of range [0, %d)", f.fp, i, n)
	}
}

func (f Frame) checkLocal(i int) {
	if n := f.NumLocals(); i < 0 || i >= n {
		f.stack.fatalf("local", "frame %d: local %d out of range [0, %d)", f.fp, i, n)
	}
}

// Depth returns the number of live frames.
func (s *Stack) Depth() int {
	n := 0
	for range s.Frames() {
		n++
	}
	return n
}

// Frames walks the live frames from the top of the stack to the outermost
// one. Sentinels are skipped.
func (s *Stack) Frames() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for f := s.Top(); !f.IsNil(); f = f.Caller() {
			if !yield(f) {
				return
			}
		}
	}
}

// VisitRoots calls visit for every value slot of every live frame: callee,
// scope, arguments and locals.
func (s *Stack) VisitRoots(visit func(value.Value)) {
	for f := range s.Frames() {
		visit(f.Callee())
		visit(f.Scope())
		for i := range f.PaddedArgumentCount() {
			visit(f.Argument(i))
		}
		for i := range f.NumLocals() {
			visit(f.Local(i))
		}
	}
}
