package interpreter

import (
	"fmt"
	"slices"
	"strings"

	"jsstack/pkg/value"
)

type Operation string

// List of VM operations
const (
	OpNop   Operation = "nop"
	OpMov   Operation = "mov"
	OpAdd   Operation = "add"
	OpSub   Operation = "sub"
	OpMul   Operation = "mul"
	OpDiv   Operation = "div"
	OpLt    Operation = "lt"
	OpLe    Operation = "le"
	OpEq    Operation = "eq"
	OpJmp   Operation = "jmp"
	OpJz    Operation = "jz"
	OpJnz   Operation = "jnz"
	OpCall  Operation = "call"
	OpHost  Operation = "host"
	OpRet   Operation = "ret"
	OpPrint Operation = "print"
	OpTry   Operation = "try"
	OpThrow Operation = "throw"
)

type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandLocal
	OperandArg
	OperandImm
)

// Operand is a register reference or an immediate value.
type Operand struct {
	Kind  OperandKind
	Index int
	Imm   value.Value
}

func Local(i int) Operand { return Operand{Kind: OperandLocal, Index: i} }
func Arg(i int) Operand   { return Operand{Kind: OperandArg, Index: i} }

func Imm(v value.Value) Operand { return Operand{Kind: OperandImm, Imm: v} }

func (o Operand) String() string {
	switch o.Kind {
	case OperandLocal:
		return fmt.Sprintf("l%d", o.Index)
	case OperandArg:
		return fmt.Sprintf("a%d", o.Index)
	case OperandImm:
		return "#" + o.Imm.String()
	default:
		return "_"
	}
}

// Instruction is a single three-address instruction. Dst receives the
// result, Src holds the inputs (or call arguments), Target is a jump or
// handler address within the same function.
type Instruction struct {
	Op     Operation
	Dst    Operand
	Src    []Operand
	Target int
	Name   string    // callee for call and host
	Func   *Function // resolved callee for call
	Line   int       // source line, 0 if unknown
}

// String returns a string representation of the instruction
func (i Instruction) String() string {
	var parts []string
	if i.Dst.Kind != OperandNone {
		parts = append(parts, i.Dst.String())
	}
	switch i.Op {
	case OpCall, OpHost:
		parts = append(parts, i.Name)
	case OpJmp, OpTry:
		parts = append(parts, fmt.Sprintf("@%d", i.Target))
	}
	for _, src := range i.Src {
		parts = append(parts, src.String())
	}
	if i.Op == OpJz || i.Op == OpJnz {
		parts = append(parts, fmt.Sprintf("@%d", i.Target))
	}

	if len(parts) == 0 {
		return string(i.Op)
	}
	return fmt.Sprintf("%-5s %s", i.Op, strings.Join(parts, ", "))
}

// Function is the compiled body of a function. It describes the shape of
// its activations on the stack.
type Function struct {
	Name   string
	ID     int
	Params int
	Locals int
	Code   []Instruction
	Labels map[string]int
}

func (f *Function) NumParameters() int { return f.Params }
func (f *Function) NumLocals() int     { return f.Locals }
func (f *Function) String() string     { return f.Name }

// Value returns the callee value stored in frames of f.
func (f *Function) Value() value.Value {
	return value.Ref(uint32(functionRefBase + f.ID))
}

// Program is a set of functions addressed by name.
type Program struct {
	functions map[string]*Function
	order     []*Function
}

func NewProgram() *Program {
	return &Program{functions: make(map[string]*Function)}
}

// Add registers fn and assigns its ID.
func (p *Program) Add(fn *Function) error {
	if _, ok := p.functions[fn.Name]; ok {
		return fmt.Errorf("function %q already defined", fn.Name)
	}
	fn.ID = len(p.order)
	p.functions[fn.Name] = fn
	p.order = append(p.order, fn)
	return nil
}

func (p *Program) Lookup(name string) (*Function, bool) {
	fn, ok := p.functions[name]
	return fn, ok
}

// Functions returns the functions in definition order.
func (p *Program) Functions() []*Function {
	return p.order
}

// String renders an assembly listing of the program.
func (p *Program) String() string {
	var sb strings.Builder
	for _, fn := range p.order {
		fmt.Fprintf(&sb, "%s (params=%d, locals=%d):\n", fn.Name, fn.Params, fn.Locals)
		labels := make(map[int][]string)
		for name, pc := range fn.Labels {
			labels[pc] = append(labels[pc], name)
		}
		for _, names := range labels {
			slices.Sort(names)
		}
		for pc, in := range fn.Code {
			for _, name := range labels[pc] {
				fmt.Fprintf(&sb, "  %s:\n", name)
			}
			fmt.Fprintf(&sb, "  %4d  %s\n", pc, in)
		}
	}
	return sb.String()
}
