package interpreter

import (
	"jsstack/pkg/value"
)

// standardBuiltins are available to every program.
var standardBuiltins = map[string]Builtin{
	// depth returns the number of live frames, entry frames included.
	"depth": func(it *Interpreter, _ []value.Value) (value.Value, error) {
		return value.Int32(int32(it.stack.Depth())), nil
	},

	// used returns the number of stack slots in use.
	"used": func(it *Interpreter, _ []value.Value) (value.Value, error) {
		limits := it.stack.Limits()
		return value.Int32(int32(limits.Base - limits.End)), nil
	},

	// raise throws its argument, or undefined.
	"raise": func(_ *Interpreter, args []value.Value) (value.Value, error) {
		v := value.Undefined
		if len(args) > 0 {
			v = args[0]
		}
		return value.Undefined, &Exception{Value: v}
	},
}
