package stack

import (
	"jsstack/pkg/value"
)

const (
	// DefaultFenceSize is the number of fence words FenceValidator places
	// above each sentinel.
	DefaultFenceSize = 4

	// DefaultTrapWords is how many words below the top of the stack
	// FenceValidator poisons after each push and pop.
	DefaultTrapWords = 64
)

// TrapWord poisons slots that no live frame owns. It decodes as a reference
// to a cell that does not exist.
const TrapWord = uint64(0xabadcafe)

// Validator hooks into every push and pop. The stack calls AfterPush once the
// frame is written and before it becomes the top, BeforePop before unlinking
// a frame, and AfterPop with the new top frame, which may be nil.
type Validator interface {
	FenceSize() int
	AfterPush(s *Stack, f Frame)
	BeforePop(s *Stack, f Frame)
	AfterPop(s *Stack, caller Frame)
}

// NopValidator checks nothing and reserves no fence.
type NopValidator struct{}

func (NopValidator) FenceSize() int          { return 0 }
func (NopValidator) AfterPush(*Stack, Frame) {}
func (NopValidator) BeforePop(*Stack, Frame) {}
func (NopValidator) AfterPop(*Stack, Frame)  {}

// FenceValidator guards each frame with a run of known words between the
// caller's extent and the frame's sentinel, verifies pops are LIFO, and
// fills freed slots with TrapWord so stale reads are easy to spot.
//
// Any violation is fatal: the stack logs it and panics with an
// *InternalError.
type FenceValidator struct {
	fenceSize int
	trapWords int
}

func NewFenceValidator(fenceSize, trapWords int) *FenceValidator {
	return &FenceValidator{
		fenceSize: max(fenceSize, 0),
		trapWords: max(trapWords, 0),
	}
}

func (v *FenceValidator) FenceSize() int {
	return v.fenceSize
}

func (v *FenceValidator) AfterPush(s *Stack, f Frame) {
	v.installFence(s, f)
	v.validateFence(s, f, "push")
	v.installTraps(s, f)
}

func (v *FenceValidator) BeforePop(s *Stack, f Frame) {
	if top := s.Top(); f != top {
		s.fatalf("pop", "frame %d popped out of order, top is %d", f.fp, top.index())
	}
	if f.Scope().IsEmpty() {
		s.fatalf("pop", "frame %d has no scope", f.fp)
	}
	v.validateFence(s, f, "pop")
}

func (v *FenceValidator) AfterPop(s *Stack, caller Frame) {
	v.installTraps(s, caller)
}

// FenceValue returns the expected content of fence word k.
func FenceValue(k int) value.Value {
	return value.Int32(int32(uint32(0xfacebad0) | uint32((k+1)&0xf)))
}

// fenceStart is the highest fence index: the top of the stack as it was
// just before f was pushed.
func (v *FenceValidator) fenceStart(s *Stack, f Frame) int {
	return s.topOfFrame(f.Caller().index())
}

func (v *FenceValidator) installFence(s *Stack, f Frame) {
	start := v.fenceStart(s, f)
	for k := range v.fenceSize {
		s.store(start-k, uint64(FenceValue(k)))
	}
}

func (v *FenceValidator) validateFence(s *Stack, f Frame, op string) {
	start := v.fenceStart(s, f)
	for k := range v.fenceSize {
		if got, want := s.load(start-k), uint64(FenceValue(k)); got != want {
			s.fatalf(op, "frame %d: fence word %d at %d is %#x, want %#x", f.fp, k, start-k, got, want)
		}
	}
}

// installTraps poisons the committed slots just below f, or below the base
// when f is nil.
func (v *FenceValidator) installTraps(s *Stack, f Frame) {
	top := s.topOfFrame(f.index())
	stop := max(top-v.trapWords, s.commitEnd-1)
	for p := top; p > stop; p-- {
		s.store(p, TrapWord)
	}
}
