package interpreter_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsstack/pkg/assembler"
	"jsstack/pkg/interpreter"
	"jsstack/pkg/stack"
	"jsstack/pkg/value"
)

var quiet = log.New(io.Discard)

func newInterpreter(t *testing.T, src string, capacity int, opts ...interpreter.Option) (*interpreter.Interpreter, *bytes.Buffer) {
	t.Helper()

	program, err := assembler.Assemble(src)
	require.NoError(t, err)

	s, err := stack.New(capacity, 0, stack.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var out bytes.Buffer
	opts = append([]interpreter.Option{
		interpreter.WithWriter(&out),
		interpreter.WithLogger(quiet),
	}, opts...)
	return interpreter.NewInterpreter(program, s, opts...), &out
}

func requireEmptyStack(t *testing.T, it *interpreter.Interpreter) {
	t.Helper()
	limits := it.Stack().Limits()
	assert.Equal(t, 0, it.Stack().Depth())
	assert.Equal(t, 0, it.Depth())
	assert.Equal(t, limits.Base, limits.End)
}

const programs = `
.func fact params=1 locals=1
        mov  l0, #1
loop:   jz   a0, done
        mul  l0, l0, a0
        sub  a0, a0, #1
        jmp  loop
done:   ret  l0
.end

.func fib params=1 locals=3
        lt   l0, a0, #2
        jz   l0, recurse
        ret  a0
recurse:
        sub  l0, a0, #1
        call l1, fib, l0
        sub  l0, a0, #2
        call l2, fib, l0
        add  l0, l1, l2
        ret  l0
.end

.func main locals=1
        call l0, fact, #5
        print l0
.end

.func third params=3
        ret  a2
.end

.func fresh locals=2
        ret  l1
.end

.func down params=1 locals=1
        add  l0, a0, #1
        call l0, down, l0
        ret  l0
.end

.func guarded locals=2
        try  caught, l1
        call l0, down, #0
        ret  #0
caught: ret  l1
.end

.func thrower params=1
        throw a0
.end

.func catcher locals=2
        try  caught, l1
        call l0, thrower, #42
        ret  #0
caught: ret  l1
.end

.func spin
loop:   jmp  loop
.end

.func show
        print #1, #2.5, #true, #undefined, #null
.end

.func compare locals=4
        lt   l0, #1, #2
        le   l1, #2, #2
        eq   l2, #1, #1.0
        div  l3, #1, #4
        print l0, l1, l2, l3
.end
`

func TestFactorial(t *testing.T) {
	it, out := newInterpreter(t, programs, 1<<14)

	result, err := it.Run("main")
	require.NoError(t, err)
	assert.Equal(t, value.Undefined, result)
	assert.Equal(t, "120\n", out.String())

	result, err = it.Invoke("fact", value.Int32(10))
	require.NoError(t, err)
	assert.Equal(t, value.Int32(3628800), result)
	requireEmptyStack(t, it)
}

func TestRecursion(t *testing.T) {
	it, _ := newInterpreter(t, programs, 1<<14)

	result, err := it.Invoke("fib", value.Int32(15))
	require.NoError(t, err)
	assert.Equal(t, value.Int32(610), result)
	requireEmptyStack(t, it)
	assert.Equal(t, it.Stack().Stats().Pushes, it.Stack().Stats().Pops)
}

func TestMissingArgumentsAreUndefined(t *testing.T) {
	it, _ := newInterpreter(t, programs, 1<<14)

	result, err := it.Invoke("third", value.Int32(1))
	require.NoError(t, err)
	assert.Equal(t, value.Undefined, result)

	result, err = it.Invoke("third", value.Int32(1), value.Int32(2), value.Int32(3), value.Int32(4))
	require.NoError(t, err)
	assert.Equal(t, value.Int32(3), result)
}

func TestLocalsStartUndefined(t *testing.T) {
	it, _ := newInterpreter(t, programs, 1<<14)

	result, err := it.Invoke("fresh")
	require.NoError(t, err)
	assert.Equal(t, value.Undefined, result)
}

func TestOverflowIsCatchable(t *testing.T) {
	it, _ := newInterpreter(t, programs, 4096)

	result, err := it.Invoke("guarded")
	require.NoError(t, err)
	assert.Equal(t, interpreter.RangeError, result)
	requireEmptyStack(t, it)
	assert.Positive(t, it.Stack().Stats().Overflows)
}

func TestUncaughtOverflow(t *testing.T) {
	it, _ := newInterpreter(t, programs, 4096)

	_, err := it.Invoke("down", value.Int32(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, stack.ErrStackOverflow)

	var exc *interpreter.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, interpreter.RangeError, exc.Value)
	assert.Equal(t, "RangeError", exc.Name())
	assert.Greater(t, len(exc.Trace), 100)
	assert.Equal(t, "down", exc.Trace[0])
	requireEmptyStack(t, it)
}

func TestThrowAndCatch(t *testing.T) {
	it, _ := newInterpreter(t, programs, 1<<14)

	result, err := it.Invoke("catcher")
	require.NoError(t, err)
	assert.Equal(t, value.Int32(42), result)

	_, err = it.Invoke("thrower", value.True)
	var exc *interpreter.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, value.True, exc.Value)
	assert.Nil(t, exc.Cause)
	requireEmptyStack(t, it)
}

func TestTypeError(t *testing.T) {
	src := `
.func f locals=1
    host l0, ref
    add  l0, l0, #1
    ret  l0
.end`
	ref := func(*interpreter.Interpreter, []value.Value) (value.Value, error) {
		return value.Ref(99), nil
	}
	it, _ := newInterpreter(t, src, 1<<14, interpreter.WithBuiltin("ref", ref))

	_, err := it.Invoke("f")
	var exc *interpreter.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, interpreter.TypeError, exc.Value)
}

func TestReentry(t *testing.T) {
	src := `
.func main locals=1
    host l0, nested
    ret  l0
.end
.func probe locals=1
    host l0, depth
    ret  l0
.end`
	nested := func(it *interpreter.Interpreter, _ []value.Value) (value.Value, error) {
		return it.Invoke("probe")
	}
	it, _ := newInterpreter(t, src, 1<<14, interpreter.WithBuiltin("nested", nested))

	// entry, main, entry, probe
	result, err := it.Invoke("main")
	require.NoError(t, err)
	assert.Equal(t, value.Int32(4), result)
	requireEmptyStack(t, it)
}

func TestExceptionsStopAtEntry(t *testing.T) {
	src := `
.func main locals=2
    try  caught, l1
    host l0, swallow
    host l0, forward
    ret  #0
caught:
    ret  l1
.end
.func boom
    throw #7
.end`
	var inner error
	swallow := func(it *interpreter.Interpreter, _ []value.Value) (value.Value, error) {
		_, inner = it.Invoke("boom")
		return value.Int32(1), nil
	}
	forward := func(it *interpreter.Interpreter, _ []value.Value) (value.Value, error) {
		return it.Invoke("boom")
	}
	it, _ := newInterpreter(t, src, 1<<14,
		interpreter.WithBuiltin("swallow", swallow),
		interpreter.WithBuiltin("forward", forward))

	result, err := it.Invoke("main")
	require.NoError(t, err)
	assert.Equal(t, value.Int32(7), result)

	var exc *interpreter.Exception
	require.ErrorAs(t, inner, &exc)
	assert.Equal(t, value.Int32(7), exc.Value)
	requireEmptyStack(t, it)
}

func TestMaxSteps(t *testing.T) {
	it, _ := newInterpreter(t, programs, 1<<14, interpreter.WithMaxSteps(100))

	_, err := it.Invoke("spin")
	assert.ErrorIs(t, err, interpreter.ErrMaxStepsExceeded)
	assert.Equal(t, 100, it.Steps())
	requireEmptyStack(t, it)
}

func TestUnknownFunction(t *testing.T) {
	it, _ := newInterpreter(t, programs, 1<<14)

	_, err := it.Invoke("nope")
	assert.ErrorIs(t, err, interpreter.ErrUnknownFunction)
}

func TestUnknownBuiltin(t *testing.T) {
	it, _ := newInterpreter(t, ".func f locals=1\n host l0, nope\n.end", 1<<14)

	_, err := it.Invoke("f")
	assert.ErrorIs(t, err, interpreter.ErrUnknownBuiltin)
	requireEmptyStack(t, it)
}

func TestPrint(t *testing.T) {
	it, out := newInterpreter(t, programs, 1<<14)

	_, err := it.Invoke("show")
	require.NoError(t, err)
	_, err = it.Invoke("compare")
	require.NoError(t, err)
	assert.Equal(t, "1 2.5 true undefined null\ntrue true true 0.25\n", out.String())
}

func TestFencedStack(t *testing.T) {
	program, err := assembler.Assemble(programs)
	require.NoError(t, err)

	s, err := stack.New(1<<14, 64,
		stack.WithLogger(quiet),
		stack.WithValidator(stack.NewFenceValidator(stack.DefaultFenceSize, stack.DefaultTrapWords)),
		stack.WithMaxExcessCapacity(0))
	require.NoError(t, err)
	defer s.Close()

	it := interpreter.NewInterpreter(program, s, interpreter.WithWriter(io.Discard), interpreter.WithLogger(quiet))

	result, err := it.Invoke("fib", value.Int32(12))
	require.NoError(t, err)
	assert.Equal(t, value.Int32(144), result)

	result, err = it.Invoke("guarded")
	require.NoError(t, err)
	assert.Equal(t, interpreter.RangeError, result)
	assert.Equal(t, s.Limits().Base, s.Limits().CommitEnd)
}

func TestSnapshotAtThrowSite(t *testing.T) {
	it, _ := newInterpreter(t, programs, 1<<14, interpreter.WithSnapshots(true))

	_, err := it.Invoke("thrower", value.Int32(3))
	var exc *interpreter.Exception
	require.True(t, errors.As(err, &exc))
	require.NotNil(t, exc.Snapshot)
	require.Len(t, exc.Snapshot.Frames, 2)
	assert.Equal(t, "thrower", exc.Snapshot.Frames[0].Descriptor)
	assert.Equal(t, []value.Value{value.Int32(3)}, exc.Snapshot.Frames[0].Arguments)
	assert.Equal(t, "<native>", exc.Snapshot.Frames[1].Descriptor)
}

func TestInvokeChecksCalleeFitsFirst(t *testing.T) {
	src := `
.func huge locals=268435456
    ret
.end
.func wide locals=20000
    ret
.end`
	for _, name := range []string{"huge", "wide"} {
		t.Run(name, func(t *testing.T) {
			it, _ := newInterpreter(t, src, 1<<14, interpreter.WithSnapshots(true))

			_, err := it.Invoke(name)
			require.ErrorIs(t, err, stack.ErrStackOverflow)

			var exc *interpreter.Exception
			require.ErrorAs(t, err, &exc)
			assert.Equal(t, interpreter.RangeError, exc.Value)
			assert.Empty(t, exc.Snapshot.Frames)
			assert.Zero(t, it.Stack().Stats().Pushes)
			requireEmptyStack(t, it)
		})
	}
}

func TestSnapshotsOnlyForUncaught(t *testing.T) {
	program, err := assembler.Assemble(programs)
	require.NoError(t, err)

	s, err := stack.New(1<<14, 0, stack.WithLogger(quiet))
	require.NoError(t, err)
	defer s.Close()

	var logs bytes.Buffer
	logger := log.New(&logs)
	logger.SetLevel(log.DebugLevel)
	it := interpreter.NewInterpreter(program, s,
		interpreter.WithWriter(io.Discard),
		interpreter.WithLogger(logger),
		interpreter.WithSnapshots(true))

	result, err := it.Invoke("catcher")
	require.NoError(t, err)
	assert.Equal(t, value.Int32(42), result)
	assert.Contains(t, logs.String(), "Caught exception")
	assert.NotContains(t, logs.String(), "Captured stack snapshot")

	_, err = it.Invoke("thrower", value.Int32(1))
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(logs.String(), "Captured stack snapshot"))
}
