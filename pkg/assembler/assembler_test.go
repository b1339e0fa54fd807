package assembler_test

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsstack/pkg/assembler"
	"jsstack/pkg/interpreter"
	"jsstack/pkg/value"
)

const factorial = `
; iterative factorial
.func fact params=1 locals=1
        mov  l0, #1
loop:   jz   a0, done
        mul  l0, l0, a0
        sub  a0, a0, #1
        jmp  loop
done:   ret  l0
.end

.func main locals=1
        call l0, fact, #5
        print l0
        ret
.end
`

func TestAssembleFactorial(t *testing.T) {
	program, err := assembler.Assemble(factorial)
	require.NoError(t, err)

	fact, ok := program.Lookup("fact")
	require.True(t, ok)
	assert.Equal(t, 1, fact.NumParameters())
	assert.Equal(t, 1, fact.NumLocals())
	assert.Equal(t, map[string]int{"loop": 1, "done": 5}, fact.Labels)
	require.Len(t, fact.Code, 6)

	assert.Equal(t, interpreter.Instruction{
		Op:   interpreter.OpMov,
		Dst:  interpreter.Local(0),
		Src:  []interpreter.Operand{interpreter.Imm(value.Int32(1))},
		Line: 4,
	}, fact.Code[0])

	jz := fact.Code[1]
	assert.Equal(t, interpreter.OpJz, jz.Op)
	assert.Equal(t, []interpreter.Operand{interpreter.Arg(0)}, jz.Src)
	assert.Equal(t, 5, jz.Target)
	assert.Equal(t, 1, fact.Code[4].Target)

	main, ok := program.Lookup("main")
	require.True(t, ok)
	call := main.Code[0]
	assert.Equal(t, interpreter.OpCall, call.Op)
	assert.Equal(t, "fact", call.Name)
	assert.Same(t, fact, call.Func)
	assert.Empty(t, main.Code[2].Src)

	assert.Equal(t, []*interpreter.Function{fact, main}, program.Functions())
	assert.Contains(t, program.String(), "loop:")
}

func TestForwardCall(t *testing.T) {
	program, err := assembler.Assemble(`
.func main locals=1
    call l0, later
    ret l0
.end
.func later
    ret #7
.end`)
	require.NoError(t, err)

	main, _ := program.Lookup("main")
	later, _ := program.Lookup("later")
	assert.Same(t, later, main.Code[0].Func)
}

func TestImmediates(t *testing.T) {
	tests := []struct {
		text string
		want value.Value
	}{
		{"42", value.Int32(42)},
		{"-7", value.Int32(-7)},
		{"2.5", value.Float(2.5)},
		{"1e3", value.Int32(1000)},
		{"true", value.True},
		{"false", value.False},
		{"null", value.Null},
		{"undefined", value.Undefined},
	}

	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			got, err := assembler.ParseImmediate(test.text)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msgs []string
	}{
		{
			name: "unknown instruction",
			src:  ".func f\n  frob l0\n.end",
			msgs: []string{"2:3: unknown instruction frob"},
		},
		{
			name: "undefined label",
			src:  ".func f\n  jmp nowhere\n.end",
			msgs: []string{"2:7: undefined label nowhere in f"},
		},
		{
			name: "local out of range",
			src:  ".func f locals=1\n  mov l1, #0\n.end",
			msgs: []string{"2:7: local l1 out of range, f has 1 locals"},
		},
		{
			name: "argument out of range",
			src:  ".func f params=1\n  ret a1\n.end",
			msgs: []string{"2:7: argument a1 out of range, f has 1 parameters"},
		},
		{
			name: "assign to immediate",
			src:  ".func f\n  mov #1, #2\n.end",
			msgs: []string{"2:7: cannot assign to immediate #1"},
		},
		{
			name: "arity",
			src:  ".func f locals=1\n  add l0, #1\n  ret l0, l0\n.end",
			msgs: []string{
				"2:3: add takes 3 operands, found 2",
				"3:3: ret takes 0 to 1 operands, found 2",
			},
		},
		{
			name: "undefined function",
			src:  ".func f locals=1\n  call l0, g\n.end",
			msgs: []string{"2:12: call to undefined function g"},
		},
		{
			name: "duplicate function",
			src:  ".func f\n.end\n.func f\n.end",
			msgs: []string{`3:7: function "f" already defined`},
		},
		{
			name: "missing end",
			src:  ".func f\n  nop\n",
			msgs: []string{"1:1: function f is missing .end"},
		},
		{
			name: "code outside function",
			src:  "nop\n",
			msgs: []string{`1:1: expected .func, found id "nop"`},
		},
		{
			name: "illegal character",
			src:  ".func f\n  nop @\n.end",
			msgs: []string{`2:7: illegal character "@"`},
		},
		{
			name: "missing comma",
			src:  ".func f locals=2\n  mov l0 l1\n.end",
			msgs: []string{`2:10: expected ',', found local "l1"`},
		},
		{
			name: "oversized frame",
			src:  ".func f params=9223372036854775807 locals=1\n.end",
			msgs: []string{"1:16: params=9223372036854775807 exceeds the largest stack (268435456 slots)"},
		},
		{
			name: "unknown attribute",
			src:  ".func f frames=2\n.end",
			msgs: []string{"1:9: unknown attribute frames"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			program, err := assembler.Assemble(test.src)
			require.Error(t, err)
			assert.Nil(t, program)

			var merr *multierror.Error
			require.True(t, errors.As(err, &merr))

			var msgs []string
			for _, e := range merr.Errors {
				var aerr *assembler.Error
				require.ErrorAs(t, e, &aerr)
				msgs = append(msgs, aerr.Error())
			}
			assert.Equal(t, test.msgs, msgs)
		})
	}
}

func TestErrorsAreCollected(t *testing.T) {
	_, err := assembler.Assemble(`
.func f locals=1
    mov l5, #1
    frob
    jmp missing
.end`)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
}
