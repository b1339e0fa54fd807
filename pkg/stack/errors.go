package stack

import (
	"errors"
	"fmt"
)

var (
	// ErrStackOverflow is matched by every error Push returns.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrReservation is returned by New when the region cannot be reserved.
	ErrReservation = errors.New("cannot reserve stack")
)

// OverflowError reports a push that does not fit in the reserved region.
type OverflowError struct {
	Requested int   // words the stack would have needed, counted from the base
	Capacity  int   // usable words in the region
	Err       error // commit failure, nil for a plain overflow
}

func (e *OverflowError) Error() string {
	msg := fmt.Sprintf("stack overflow: need %d of %d slots", e.Requested, e.Capacity)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OverflowError) Is(target error) bool {
	return target == ErrStackOverflow
}

func (e *OverflowError) Unwrap() error {
	return e.Err
}

// InternalError is the panic value for a corrupted or misused frame chain.
// It is never returned; the VM cannot continue after one.
type InternalError struct {
	Op  string
	Msg string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("stack %s: %s", e.Op, e.Msg)
}
