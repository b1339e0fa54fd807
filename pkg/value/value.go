// Package value encodes interpreter values into 64-bit stack slots.
//
// Numbers are boxed into the high tag bits: int32 values carry all sixteen
// top bits set, doubles are offset by 2^48 so that they never collide with
// the int32 tag or with the immediates below 2^48. The remaining values with
// no tag bits are references (cells); small constants with the "other" bit
// set are immediates.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Value is one encoded stack slot.
type Value uint64

type Kind int

const (
	KindEmpty Kind = iota
	KindUndefined
	KindNull
	KindBool
	KindInt
	KindFloat
	KindRef
)

const (
	tagTypeNumber      = 0xffff000000000000
	doubleEncodeOffset = 1 << 48

	tagBitTypeOther = 0x2
	tagBitBool      = 0x4
	tagBitUndefined = 0x8

	tagMask = tagTypeNumber | tagBitTypeOther
)

const (
	Empty     Value = 0
	Null      Value = tagBitTypeOther
	False     Value = tagBitTypeOther | tagBitBool
	True      Value = tagBitTypeOther | tagBitBool | 1
	Undefined Value = tagBitTypeOther | tagBitUndefined
)

// Int32 boxes an integer.
func Int32(i int32) Value {
	return Value(tagTypeNumber | uint64(uint32(i)))
}

// Float boxes a double. Integral doubles in int32 range stay doubles.
func Float(f float64) Value {
	if math.IsNaN(f) {
		f = math.NaN()
	}
	return Value(math.Float64bits(f) + doubleEncodeOffset)
}

// Number boxes f as an int32 when it is integral and fits, otherwise as a
// double.
func Number(f float64) Value {
	if i := int32(f); float64(i) == f && !(f == 0 && math.Signbit(f)) {
		return Int32(i)
	}
	return Float(f)
}

// Bool boxes a boolean.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Ref encodes a reference to cell n. References are 16-byte aligned like the
// pointers they stand in for, so they never collide with immediates.
func Ref(n uint32) Value {
	return Value((uint64(n) + 1) << 4)
}

func (v Value) IsInt32() bool     { return uint64(v)&tagTypeNumber == tagTypeNumber }
func (v Value) IsNumber() bool    { return uint64(v)&tagTypeNumber != 0 }
func (v Value) IsDouble() bool    { return v.IsNumber() && !v.IsInt32() }
func (v Value) IsEmpty() bool     { return v == Empty }
func (v Value) IsUndefined() bool { return v == Undefined }
func (v Value) IsNull() bool      { return v == Null }
func (v Value) IsBool() bool      { return v&^1 == False }
func (v Value) IsRef() bool       { return v != Empty && uint64(v)&tagMask == 0 }

// Int32 unboxes an int32. The result is meaningless unless IsInt32.
func (v Value) Int32() int32 {
	return int32(uint32(v))
}

// Float unboxes a double. The result is meaningless unless IsDouble.
func (v Value) Float() float64 {
	return math.Float64frombits(uint64(v) - doubleEncodeOffset)
}

// RefID returns the cell number of a reference.
func (v Value) RefID() uint32 {
	return uint32(uint64(v)>>4) - 1
}

// Kind classifies the value.
func (v Value) Kind() Kind {
	switch {
	case v.IsInt32():
		return KindInt
	case v.IsNumber():
		return KindFloat
	case v == Empty:
		return KindEmpty
	case v == Undefined:
		return KindUndefined
	case v == Null:
		return KindNull
	case v.IsBool():
		return KindBool
	case v.IsRef():
		return KindRef
	default:
		return KindEmpty
	}
}

// String renders the value as a string.
func (v Value) String() string {
	switch v.Kind() {
	case KindInt:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case KindBool:
		if v == True {
			return "true"
		}
		return "false"
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindRef:
		return fmt.Sprintf("<ref %d>", v.RefID())
	default:
		return fmt.Sprintf("<raw %#x>", uint64(v))
	}
}

// AsFloat64 converts the value to float64 if possible.
func (v Value) AsFloat64() (float64, error) {
	switch v.Kind() {
	case KindFloat:
		return v.Float(), nil
	case KindInt:
		return float64(v.Int32()), nil
	case KindBool:
		if v == True {
			return 1.0, nil
		}
		return 0.0, nil
	case KindNull:
		return 0, nil
	case KindUndefined:
		return math.NaN(), nil
	default:
		return 0, fmt.Errorf("cannot convert %v to number", v)
	}
}

// AsInt64 converts the value to int64 if possible.
func (v Value) AsInt64() (int64, error) {
	switch v.Kind() {
	case KindInt:
		return int64(v.Int32()), nil
	case KindFloat:
		return int64(v.Float()), nil
	case KindBool:
		if v == True {
			return 1, nil
		}
		return 0, nil
	case KindNull:
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %v to int", v)
	}
}

// AsBool reports the truthiness of the value.
func (v Value) AsBool() bool {
	switch v.Kind() {
	case KindBool:
		return v == True
	case KindInt:
		return v.Int32() != 0
	case KindFloat:
		f := v.Float()
		return f != 0 && !math.IsNaN(f)
	case KindRef:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindRef:
		return "ref"
	default:
		return "empty"
	}
}
