package interpreter

import (
	"fmt"
	"strings"

	"jsstack/pkg/stack"
	"jsstack/pkg/value"
)

// Exception is an uncaught exception. Cause is set when the exception was
// raised by the VM itself, e.g. the *stack.OverflowError behind a
// RangeError.
type Exception struct {
	Value    value.Value
	Cause    error
	Trace    []string        // live functions at the throw site, innermost first
	Snapshot *stack.Snapshot // stack at the throw site, if enabled
}

// Name describes the thrown value.
func (e *Exception) Name() string {
	switch e.Value {
	case RangeError:
		return "RangeError"
	case TypeError:
		return "TypeError"
	default:
		return e.Value.String()
	}
}

func (e *Exception) Error() string {
	msg := "uncaught exception " + e.Name()
	if len(e.Trace) > 0 {
		msg += " in " + strings.Join(e.Trace, " <- ")
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *Exception) Unwrap() error {
	return e.Cause
}
