package stack

import (
	"fmt"

	"jsstack/pkg/value"
)

// Snapshot is a copy of the live frame chain, top frame first.
type Snapshot struct {
	Limits Limits          `cbor:"limits"`
	Frames []FrameSnapshot `cbor:"frames"`
}

type FrameSnapshot struct {
	Index         int           `cbor:"index"`
	Descriptor    string        `cbor:"descriptor"`
	ArgumentCount int           `cbor:"argc"`
	Callee        value.Value   `cbor:"callee"`
	Scope         value.Value   `cbor:"scope"`
	Arguments     []value.Value `cbor:"arguments"`
	Locals        []value.Value `cbor:"locals"`
}

// Snapshot copies every live frame.
func (s *Stack) Snapshot() Snapshot {
	snap := Snapshot{Limits: s.Limits()}
	for f := range s.Frames() {
		fs := FrameSnapshot{
			Index:         f.Index(),
			Descriptor:    describe(f.Descriptor()),
			ArgumentCount: f.ArgumentCount(),
			Callee:        f.Callee(),
			Scope:         f.Scope(),
			Arguments:     make([]value.Value, f.PaddedArgumentCount()),
			Locals:        make([]value.Value, f.NumLocals()),
		}
		for i := range fs.Arguments {
			fs.Arguments[i] = f.Argument(i)
		}
		for i := range fs.Locals {
			fs.Locals[i] = f.Local(i)
		}
		snap.Frames = append(snap.Frames, fs)
	}
	return snap
}

func describe(d Descriptor) string {
	switch d := d.(type) {
	case nil:
		return "<native>"
	case fmt.Stringer:
		return d.String()
	default:
		return fmt.Sprintf("%T", d)
	}
}
