// Package interpreter runs assembled programs on top of a stack.Stack. Every
// call pushes a real frame; registers are the frame's argument and local
// slots.
package interpreter

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"jsstack/pkg/stack"
	"jsstack/pkg/value"
)

// Well-known references. Functions are numbered from functionRefBase.
var (
	GlobalScope = value.Ref(0)
	RangeError  = value.Ref(1)
	TypeError   = value.Ref(2)
)

const functionRefBase = 16

// Builtin is a host function callable with the host instruction. It may
// re-enter the interpreter through Invoke. Returning an *Exception throws
// its value into the calling function.
type Builtin func(it *Interpreter, args []value.Value) (value.Value, error)

// activation is the interpreter state of one frame on the stack.
type activation struct {
	frame      stack.Frame
	fn         *Function
	ip         int
	ret        Operand // destination in the caller
	handler    int     // pc of the active try handler, -1 if none
	handlerDst Operand
}

// Interpreter executes a Program. It is not safe for concurrent use.
type Interpreter struct {
	program *Program
	stack   *stack.Stack

	acts    []activation // interpreter frames, innermost last
	entries []int        // len(acts) at each native entry
	result  value.Value  // return value of the last completed entry

	builtins map[string]Builtin
	out      io.Writer // output writer for print
	logger   *log.Logger

	snapshots bool // capture a stack snapshot on each uncaught throw

	maxSteps int // maximum steps (0 = unlimited)
	steps    int // steps executed
}

type Option func(*Interpreter)

// WithWriter sets the output writer for print statements
func WithWriter(w io.Writer) Option {
	return func(i *Interpreter) { i.out = w }
}

// WithMaxSteps sets a maximum number of interpreter steps before returning ErrMaxStepsExceeded
func WithMaxSteps(n int) Option {
	return func(i *Interpreter) { i.maxSteps = n }
}

// WithBuiltin registers a host function under name
func WithBuiltin(name string, fn Builtin) Option {
	return func(i *Interpreter) { i.builtins[name] = fn }
}

func WithLogger(logger *log.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

// WithSnapshots makes every uncaught exception carry a snapshot of the stack
// taken where it was thrown. Exceptions a handler catches take none.
func WithSnapshots(enabled bool) Option {
	return func(i *Interpreter) { i.snapshots = enabled }
}

// NewInterpreter creates an interpreter for program running on s
func NewInterpreter(program *Program, s *stack.Stack, opts ...Option) *Interpreter {
	it := &Interpreter{
		program:  program,
		stack:    s,
		acts:     make([]activation, 0, 16),
		result:   value.Undefined,
		builtins: make(map[string]Builtin),
		out:      nil, // caller should set, or use WithWriter
		logger:   log.Default(),
		maxSteps: 0, // 0 => unlimited
	}

	for name, fn := range standardBuiltins {
		it.builtins[name] = fn
	}
	for _, o := range opts {
		o(it)
	}

	if it.out == nil {
		it.out = os.Stdout
	}

	return it
}

// Program returns the loaded program
func (i *Interpreter) Program() *Program {
	return i.program
}

// Stack returns the stack the interpreter runs on
func (i *Interpreter) Stack() *stack.Stack {
	return i.stack
}

// Output returns the output writer used for print
func (i *Interpreter) Output() io.Writer {
	return i.out
}

// Steps returns the number of instructions executed so far
func (i *Interpreter) Steps() int {
	return i.steps
}

// Depth returns the number of live interpreter activations
func (i *Interpreter) Depth() int {
	return len(i.acts)
}

// Run invokes entry with no arguments
func (i *Interpreter) Run(entry string) (value.Value, error) {
	return i.Invoke(entry)
}

// Invoke calls the named function from native code and runs it to
// completion. A nil-descriptor entry frame holding args is pushed first, so
// nested invocations from builtins are visible on the stack. Exceptions
// never unwind past this entry; uncaught ones are returned as *Exception.
func (i *Interpreter) Invoke(name string, args ...value.Value) (value.Value, error) {
	fn, ok := i.program.Lookup(name)
	if !ok {
		return value.Undefined, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}

	// A callee that cannot fit below the current top will not fit below an
	// entry frame either.
	if !i.stack.EntryCheck(fn, len(args)) {
		err := fmt.Errorf("%w: cannot enter %s", stack.ErrStackOverflow, name)
		return value.Undefined, i.newException(RangeError, err)
	}

	entry, err := i.stack.Push(nil, args, value.Empty, GlobalScope)
	if err != nil {
		return value.Undefined, i.newException(RangeError, err)
	}
	defer i.stack.Pop(entry)

	base := len(i.acts)
	i.entries = append(i.entries, base)
	defer func() { i.entries = i.entries[:len(i.entries)-1] }()

	if err := i.enter(fn, args, Operand{}); err != nil {
		return value.Undefined, err
	}

	for {
		halted, err := i.Step()
		if err != nil {
			i.unwindTo(base)
			return value.Undefined, err
		}

		if halted {
			return i.result, nil
		}
	}
}

// Step executes a single instruction, returning (halted, error). It halts
// once the function entered by the innermost Invoke has returned.
func (i *Interpreter) Step() (bool, error) {
	if len(i.acts) <= i.entryBase() {
		return true, nil
	}

	if i.maxSteps > 0 && i.steps >= i.maxSteps {
		return false, ErrMaxStepsExceeded
	}

	halted, err := coreStep(i)
	i.steps++

	return halted, err
}

// Backtrace returns the names of the live functions, innermost first
func (i *Interpreter) Backtrace() []string {
	names := make([]string, 0, len(i.acts))
	for k := len(i.acts) - 1; k >= 0; k-- {
		names = append(names, i.acts[k].fn.Name)
	}
	return names
}

func (i *Interpreter) entryBase() int {
	if len(i.entries) == 0 {
		return 0
	}
	return i.entries[len(i.entries)-1]
}

func (i *Interpreter) top() *activation {
	return &i.acts[len(i.acts)-1]
}

// enter pushes a frame for fn and makes it the current activation. On
// overflow a RangeError is thrown at the caller instead.
func (i *Interpreter) enter(fn *Function, args []value.Value, ret Operand) error {
	frame, err := i.stack.Push(fn, args, fn.Value(), GlobalScope)
	if err != nil {
		if !errors.Is(err, stack.ErrStackOverflow) {
			return err
		}
		return i.throw(RangeError, err)
	}

	for k := range fn.Locals {
		frame.SetLocal(k, value.Undefined)
	}

	i.acts = append(i.acts, activation{
		frame:   frame,
		fn:      fn,
		ret:     ret,
		handler: -1,
	})
	return nil
}

// leave pops the current activation and its frame
func (i *Interpreter) leave() activation {
	act := i.acts[len(i.acts)-1]
	i.stack.Pop(act.frame)
	i.acts = i.acts[:len(i.acts)-1]
	return act
}

func (i *Interpreter) unwindTo(base int) {
	for len(i.acts) > base {
		i.leave()
	}
}

// throw unwinds activations until one with a handler is found. It returns
// an *Exception when the current entry is reached first.
func (i *Interpreter) throw(v value.Value, cause error) error {
	base := i.entryBase()
	if !i.handled(base) {
		exc := i.newException(v, cause)
		i.unwindTo(base)
		return exc
	}

	for {
		act := i.top()
		if act.handler >= 0 {
			i.logger.Debug("Caught exception", "value", v, "function", act.fn.Name)
			act.ip = act.handler
			act.handler = -1
			i.store(act, act.handlerDst, v)
			return nil
		}
		i.leave()
	}
}

// handled reports whether an activation above base has a live handler.
func (i *Interpreter) handled(base int) bool {
	for _, act := range i.acts[base:] {
		if act.handler >= 0 {
			return true
		}
	}
	return false
}

// newException builds the error for an uncaught throw, before any frame is
// popped.
func (i *Interpreter) newException(v value.Value, cause error) *Exception {
	exc := &Exception{Value: v, Cause: cause, Trace: i.Backtrace()}
	if i.snapshots {
		snap := i.stack.Snapshot()
		exc.Snapshot = &snap
		i.logger.Debug("Captured stack snapshot", "value", exc.Name(), "frames", len(snap.Frames))
	}
	return exc
}

func (i *Interpreter) load(act *activation, op Operand) value.Value {
	switch op.Kind {
	case OperandLocal:
		return act.frame.Local(op.Index)
	case OperandArg:
		return act.frame.Argument(op.Index)
	case OperandImm:
		return op.Imm
	default:
		return value.Undefined
	}
}

func (i *Interpreter) store(act *activation, op Operand, v value.Value) {
	switch op.Kind {
	case OperandLocal:
		act.frame.SetLocal(op.Index, v)
	case OperandArg:
		act.frame.SetArgument(op.Index, v)
	}
}

func (i *Interpreter) loadAll(act *activation, ops []Operand) []value.Value {
	vs := make([]value.Value, len(ops))
	for k, op := range ops {
		vs[k] = i.load(act, op)
	}
	return vs
}

var (
	ErrMaxStepsExceeded = errors.New("maximum steps exceeded")
	ErrUnknownFunction  = errors.New("unknown function")
	ErrUnknownBuiltin   = errors.New("unknown builtin")
)
