package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"jsstack/pkg/value"
)

// coreStep is the main single-step execution function
// it returns (halted, error).
func coreStep(i *Interpreter) (bool, error) {
	act := i.top()
	pc := act.ip
	if pc < 0 || pc >= len(act.fn.Code) {
		// falling off the end returns undefined
		return i.ret(value.Undefined)
	}

	in := &act.fn.Code[pc]
	act.ip = pc + 1

	switch in.Op {
	case OpNop:
		return false, nil

	case OpMov:
		i.store(act, in.Dst, i.load(act, in.Src[0]))
		return false, nil

	case OpAdd, OpSub, OpMul, OpDiv:
		res, ok := arith(in.Op, i.load(act, in.Src[0]), i.load(act, in.Src[1]))
		if !ok {
			return false, i.throw(TypeError, nil)
		}
		i.store(act, in.Dst, res)
		return false, nil

	case OpLt, OpLe, OpEq:
		res, ok := compare(in.Op, i.load(act, in.Src[0]), i.load(act, in.Src[1]))
		if !ok {
			return false, i.throw(TypeError, nil)
		}
		i.store(act, in.Dst, value.Bool(res))
		return false, nil

	case OpJmp:
		act.ip = in.Target
		return false, nil

	case OpJz, OpJnz:
		// jump if false (zero) / true (non-zero)
		cond := i.load(act, in.Src[0]).AsBool()
		if cond == (in.Op == OpJnz) {
			act.ip = in.Target
		}
		return false, nil

	case OpCall:
		args := i.loadAll(act, in.Src)
		return false, i.enter(in.Func, args, in.Dst)

	case OpHost:
		return false, i.callBuiltin(act, in)

	case OpRet:
		v := value.Undefined
		if len(in.Src) > 0 {
			v = i.load(act, in.Src[0])
		}
		return i.ret(v)

	case OpPrint:
		vs := i.loadAll(act, in.Src)
		strs := make([]string, len(vs))
		for k, v := range vs {
			strs[k] = v.String()
		}
		fmt.Fprintln(i.out, strings.Join(strs, " "))
		return false, nil

	case OpTry:
		act.handler = in.Target
		act.handlerDst = in.Dst
		return false, nil

	case OpThrow:
		return false, i.throw(i.load(act, in.Src[0]), nil)

	default:
		return false, fmt.Errorf("%s:%d: unhandled op %q", act.fn.Name, pc, in.Op)
	}
}

// ret leaves the current activation and delivers v to the caller, or
// halts when the entry function returns.
func (i *Interpreter) ret(v value.Value) (bool, error) {
	done := i.leave()
	if len(i.acts) == i.entryBase() {
		i.result = v
		return true, nil
	}
	i.store(i.top(), done.ret, v)
	return false, nil
}

func (i *Interpreter) callBuiltin(act *activation, in *Instruction) error {
	fn, ok := i.builtins[in.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBuiltin, in.Name)
	}

	depth := len(i.acts)
	res, err := fn(i, i.loadAll(act, in.Src))
	if len(i.acts) != depth {
		return fmt.Errorf("builtin %s left %d activations behind", in.Name, len(i.acts)-depth)
	}

	var exc *Exception
	switch {
	case errors.As(err, &exc):
		return i.throw(exc.Value, exc.Cause)
	case err != nil:
		return fmt.Errorf("builtin %s: %w", in.Name, err)
	}

	// act may have moved if a nested Invoke grew i.acts
	i.store(i.top(), in.Dst, res)
	return nil
}

// arith evaluates a numeric operation. Integer operands stay exact; the
// result is boxed as an int32 when it fits.
func arith(op Operation, a, b value.Value) (value.Value, bool) {
	if a.IsInt32() && b.IsInt32() && op != OpDiv {
		x, y := int64(a.Int32()), int64(b.Int32())
		var r int64
		switch op {
		case OpAdd:
			r = x + y
		case OpSub:
			r = x - y
		case OpMul:
			r = x * y
		}
		return value.Number(float64(r)), true
	}

	x, err := a.AsFloat64()
	if err != nil {
		return value.Undefined, false
	}
	y, err := b.AsFloat64()
	if err != nil {
		return value.Undefined, false
	}

	var r float64
	switch op {
	case OpAdd:
		r = x + y
	case OpSub:
		r = x - y
	case OpMul:
		r = x * y
	case OpDiv:
		r = x / y
	}
	return value.Number(r), true
}

func compare(op Operation, a, b value.Value) (bool, bool) {
	if op == OpEq && !(a.IsNumber() && b.IsNumber()) {
		return a == b, true
	}

	x, err := a.AsFloat64()
	if err != nil {
		return false, false
	}
	y, err := b.AsFloat64()
	if err != nil {
		return false, false
	}

	switch op {
	case OpLt:
		return x < y, true
	case OpLe:
		return x <= y, true
	default:
		return x == y, true
	}
}
