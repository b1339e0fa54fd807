// Package assembler turns stack assembly source into an interpreter.Program.
//
//	.func fact params=1 locals=1
//	        mov  l0, #1
//	loop:   jz   a0, done
//	        mul  l0, l0, a0
//	        sub  a0, a0, #1
//	        jmp  loop
//	done:   ret  l0
//	.end
//
// Destinations are locals (lN) or arguments (aN); sources may also be
// immediates (#42, #1.5, #true, #null, #undefined). Labels are local to
// their function, and calls may refer to functions defined later.
package assembler

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"jsstack/pkg/interpreter"
	"jsstack/pkg/lexer"
	"jsstack/pkg/memory"
	"jsstack/pkg/value"
)

// Error is an assembly error at a source position.
type Error struct {
	Pos lexer.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

type fixup struct {
	pc    int
	label lexer.Token
}

type callRef struct {
	fn   *interpreter.Function
	pc   int
	name lexer.Token
}

type Assembler struct {
	lex *lexer.Lexer
	tok lexer.Token // current token

	program *interpreter.Program
	fn      *interpreter.Function // function being assembled
	fixups  []fixup               // label references in fn
	calls   []callRef             // call targets, resolved at the end

	errs *multierror.Error
}

// Assemble assembles src. All errors found are reported together as a
// *multierror.Error of *Error values.
func Assemble(src string) (*interpreter.Program, error) {
	a := &Assembler{
		lex:     lexer.NewLexer(src),
		program: interpreter.NewProgram(),
	}
	a.next()
	a.parse()
	a.resolveCalls()

	if err := a.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return a.program, nil
}

func (a *Assembler) parse() {
	for a.tok.Type != lexer.EOF {
		switch {
		case a.tok.Type == lexer.NEWLINE:
			a.next()
		case a.tok.Type == lexer.DIRECTIVE && a.tok.Literal == "func":
			a.parseFunction()
		default:
			a.errorf(a.tok.Pos, "expected .func, found %s", describe(a.tok))
			a.skipLine()
		}
	}
}

func (a *Assembler) parseFunction() {
	start := a.tok.Pos
	a.next()

	name, ok := a.expect(lexer.ID, "function name")
	if !ok {
		name = lexer.Token{Literal: "_", Pos: start}
	}

	a.fn = &interpreter.Function{Name: name.Literal, Labels: make(map[string]int)}
	a.fixups = nil
	if ok {
		a.parseAttributes()
	} else {
		a.skipLine()
	}

	for a.fn != nil {
		switch a.tok.Type {
		case lexer.EOF:
			a.errorf(start, "function %s is missing .end", name.Literal)
			a.finishFunction(name)
		case lexer.NEWLINE:
			a.next()
		case lexer.DIRECTIVE:
			if a.tok.Literal != "end" {
				a.errorf(a.tok.Pos, "unexpected directive %s inside function", a.tok.Lexeme)
				a.skipLine()
				continue
			}
			a.next()
			a.endLine()
			a.finishFunction(name)
		case lexer.LABEL:
			if _, dup := a.fn.Labels[a.tok.Literal]; dup {
				a.errorf(a.tok.Pos, "label %s redefined", a.tok.Literal)
			}
			a.fn.Labels[a.tok.Literal] = len(a.fn.Code)
			a.next()
		case lexer.ID:
			a.parseInstruction()
		default:
			a.errorf(a.tok.Pos, "expected instruction, found %s", describe(a.tok))
			a.skipLine()
		}
	}
}

// parseAttributes reads the key=value pairs after the function name.
func (a *Assembler) parseAttributes() {
	for a.tok.Type == lexer.ID {
		key := a.tok
		a.next()
		if _, ok := a.expect(lexer.ASSIGN, "'='"); !ok {
			a.skipLine()
			return
		}
		num, ok := a.expect(lexer.NUM, "number")
		if !ok {
			a.skipLine()
			return
		}

		n, err := strconv.Atoi(num.Literal)
		if err != nil || n < 0 {
			a.errorf(num.Pos, "%s must be a non-negative integer, found %s", key.Literal, num.Lexeme)
			continue
		}
		if n > memory.MaxWords {
			a.errorf(num.Pos, "%s=%s exceeds the largest stack (%d slots)", key.Literal, num.Lexeme, memory.MaxWords)
			continue
		}

		switch key.Literal {
		case "params":
			a.fn.Params = n
		case "locals":
			a.fn.Locals = n
		default:
			a.errorf(key.Pos, "unknown attribute %s", key.Literal)
		}
	}
	a.endLine()
}

func (a *Assembler) finishFunction(name lexer.Token) {
	for _, f := range a.fixups {
		pc, ok := a.fn.Labels[f.label.Literal]
		if !ok {
			a.errorf(f.label.Pos, "undefined label %s in %s", f.label.Literal, a.fn.Name)
			continue
		}
		a.fn.Code[f.pc].Target = pc
	}

	if err := a.program.Add(a.fn); err != nil {
		a.errorf(name.Pos, "%v", err)
	}
	a.fn = nil
}

func (a *Assembler) resolveCalls() {
	for _, c := range a.calls {
		callee, ok := a.program.Lookup(c.name.Literal)
		if !ok {
			a.errorf(c.name.Pos, "call to undefined function %s", c.name.Literal)
			continue
		}
		c.fn.Code[c.pc].Func = callee
	}
}

func (a *Assembler) parseInstruction() {
	opTok := a.tok
	a.next()

	ops, ok := a.parseOperands()
	if !ok {
		return
	}

	in := interpreter.Instruction{Op: interpreter.Operation(opTok.Literal), Line: opTok.Pos.Line}
	pc := len(a.fn.Code)
	pending := len(a.fixups)

	switch in.Op {
	case interpreter.OpNop:
		ok = a.arity(opTok, ops, 0, 0)

	case interpreter.OpMov:
		ok = a.arity(opTok, ops, 2, 2) &&
			a.dst(ops[0], &in.Dst) && a.srcs(ops[1:], &in.Src)

	case interpreter.OpAdd, interpreter.OpSub, interpreter.OpMul, interpreter.OpDiv,
		interpreter.OpLt, interpreter.OpLe, interpreter.OpEq:
		ok = a.arity(opTok, ops, 3, 3) &&
			a.dst(ops[0], &in.Dst) && a.srcs(ops[1:], &in.Src)

	case interpreter.OpJmp:
		ok = a.arity(opTok, ops, 1, 1) && a.label(ops[0], pc)

	case interpreter.OpJz, interpreter.OpJnz:
		ok = a.arity(opTok, ops, 2, 2) &&
			a.srcs(ops[:1], &in.Src) && a.label(ops[1], pc)

	case interpreter.OpCall, interpreter.OpHost:
		ok = a.arity(opTok, ops, 2, -1) &&
			a.dst(ops[0], &in.Dst) && a.name(ops[1], &in.Name) && a.srcs(ops[2:], &in.Src)
		if ok && in.Op == interpreter.OpCall {
			a.calls = append(a.calls, callRef{fn: a.fn, pc: pc, name: ops[1]})
		}

	case interpreter.OpRet:
		ok = a.arity(opTok, ops, 0, 1) && a.srcs(ops, &in.Src)

	case interpreter.OpPrint:
		ok = a.srcs(ops, &in.Src)

	case interpreter.OpTry:
		ok = a.arity(opTok, ops, 2, 2) &&
			a.label(ops[0], pc) && a.dst(ops[1], &in.Dst)

	case interpreter.OpThrow:
		ok = a.arity(opTok, ops, 1, 1) && a.srcs(ops, &in.Src)

	default:
		a.errorf(opTok.Pos, "unknown instruction %s", opTok.Lexeme)
		ok = false
	}

	if ok {
		a.fn.Code = append(a.fn.Code, in)
	} else {
		a.fixups = a.fixups[:pending]
	}
	a.endLine()
}

// parseOperands reads a comma separated operand list up to the end of the
// line.
func (a *Assembler) parseOperands() ([]lexer.Token, bool) {
	var ops []lexer.Token
	if a.atLineEnd() {
		return nil, true
	}

	for {
		if !a.tok.Type.IsOperand() {
			a.errorf(a.tok.Pos, "expected operand, found %s", describe(a.tok))
			a.skipLine()
			return nil, false
		}
		ops = append(ops, a.tok)
		a.next()

		if a.atLineEnd() {
			return ops, true
		}
		if _, ok := a.expect(lexer.COMMA, "','"); !ok {
			a.skipLine()
			return nil, false
		}
	}
}

// arity checks the operand count; max < 0 means unbounded.
func (a *Assembler) arity(op lexer.Token, ops []lexer.Token, minOps, maxOps int) bool {
	if len(ops) >= minOps && (maxOps < 0 || len(ops) <= maxOps) {
		return true
	}

	want := strconv.Itoa(minOps)
	if maxOps < 0 {
		want = "at least " + want
	} else if maxOps != minOps {
		want = fmt.Sprintf("%d to %d", minOps, maxOps)
	}
	a.errorf(op.Pos, "%s takes %s operands, found %d", op.Literal, want, len(ops))
	return false
}

func (a *Assembler) dst(tok lexer.Token, out *interpreter.Operand) bool {
	if tok.Type == lexer.IMM {
		a.errorf(tok.Pos, "cannot assign to immediate %s", tok.Lexeme)
		return false
	}
	return a.operand(tok, out)
}

func (a *Assembler) srcs(toks []lexer.Token, out *[]interpreter.Operand) bool {
	ok := true
	for _, tok := range toks {
		var op interpreter.Operand
		if a.operand(tok, &op) {
			*out = append(*out, op)
		} else {
			ok = false
		}
	}
	return ok
}

func (a *Assembler) operand(tok lexer.Token, out *interpreter.Operand) bool {
	switch tok.Type {
	case lexer.LOCAL:
		n, _ := strconv.Atoi(tok.Literal)
		if n >= a.fn.Locals {
			a.errorf(tok.Pos, "local %s out of range, %s has %d locals", tok.Lexeme, a.fn.Name, a.fn.Locals)
			return false
		}
		*out = interpreter.Local(n)
	case lexer.ARG:
		n, _ := strconv.Atoi(tok.Literal)
		if n >= a.fn.Params {
			a.errorf(tok.Pos, "argument %s out of range, %s has %d parameters", tok.Lexeme, a.fn.Name, a.fn.Params)
			return false
		}
		*out = interpreter.Arg(n)
	case lexer.IMM:
		v, err := ParseImmediate(tok.Literal)
		if err != nil {
			a.errorf(tok.Pos, "%v", err)
			return false
		}
		*out = interpreter.Imm(v)
	default:
		a.errorf(tok.Pos, "expected register or immediate, found %s", describe(tok))
		return false
	}
	return true
}

func (a *Assembler) label(tok lexer.Token, pc int) bool {
	if tok.Type != lexer.ID {
		a.errorf(tok.Pos, "expected label, found %s", describe(tok))
		return false
	}
	a.fixups = append(a.fixups, fixup{pc: pc, label: tok})
	return true
}

func (a *Assembler) name(tok lexer.Token, out *string) bool {
	if tok.Type != lexer.ID {
		a.errorf(tok.Pos, "expected function name, found %s", describe(tok))
		return false
	}
	*out = tok.Literal
	return true
}

// ParseImmediate parses the text of an immediate without its '#'.
func ParseImmediate(s string) (value.Value, error) {
	switch s {
	case "true":
		return value.True, nil
	case "false":
		return value.False, nil
	case "null":
		return value.Null, nil
	case "undefined":
		return value.Undefined, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return value.Undefined, fmt.Errorf("invalid immediate #%s", s)
	}
	return value.Number(f), nil
}

func (a *Assembler) next() {
	a.tok = a.lex.NextToken()
	for a.tok.Type == lexer.ILLEGAL {
		a.errorf(a.tok.Pos, "illegal character %q", a.tok.Lexeme)
		a.tok = a.lex.NextToken()
	}
}

func (a *Assembler) expect(t lexer.TokenType, what string) (lexer.Token, bool) {
	tok := a.tok
	if tok.Type != t {
		a.errorf(tok.Pos, "expected %s, found %s", what, describe(tok))
		return tok, false
	}
	a.next()
	return tok, true
}

func (a *Assembler) atLineEnd() bool {
	return a.tok.Type == lexer.NEWLINE || a.tok.Type == lexer.EOF
}

// endLine consumes the end of the current line, reporting trailing tokens.
func (a *Assembler) endLine() {
	if !a.atLineEnd() {
		a.errorf(a.tok.Pos, "unexpected %s at end of line", describe(a.tok))
		a.skipLine()
		return
	}
	if a.tok.Type == lexer.NEWLINE {
		a.next()
	}
}

func (a *Assembler) skipLine() {
	for !a.atLineEnd() {
		a.next()
	}
	if a.tok.Type == lexer.NEWLINE {
		a.next()
	}
}

func (a *Assembler) errorf(pos lexer.Position, format string, args ...any) {
	a.errs = multierror.Append(a.errs, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of file"
	case lexer.NEWLINE:
		return "end of line"
	default:
		return fmt.Sprintf("%s %q", tok.Type, tok.Lexeme)
	}
}
