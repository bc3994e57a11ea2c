package vm

import "github.com/tangled-dice/dicejvm/pkg/rtfault"

// Kind discriminates a Value's variant.
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindBoolean
	KindChar
	KindReference
	KindReturnAddress
)

// Value is the tagged union the operand stack and local variables hold.
// Only one field is meaningful per Kind. Reference carries a heap id;
// -1 denotes the null reference.
type Value struct {
	Kind Kind
	I    int32
	L    int64
	F    float32
	D    float64
	B    bool
	C    uint16
	Ref  int
	Addr int
}

func Int(v int32) Value          { return Value{Kind: KindInt, I: v} }
func Long(v int64) Value         { return Value{Kind: KindLong, L: v} }
func Float(v float32) Value      { return Value{Kind: KindFloat, F: v} }
func Double(v float64) Value     { return Value{Kind: KindDouble, D: v} }
func Boolean(v bool) Value       { return Value{Kind: KindBoolean, B: v} }
func Char(v uint16) Value        { return Value{Kind: KindChar, C: v} }
func Reference(id int) Value     { return Value{Kind: KindReference, Ref: id} }
func NullReference() Value       { return Value{Kind: KindReference, Ref: -1} }
func ReturnAddress(pc int) Value { return Value{Kind: KindReturnAddress, Addr: pc} }

func (v Value) IsNull() bool { return v.Kind == KindReference && v.Ref < 0 }

// ZeroFor returns the zero value for a local-variable slot implicitly
// created by a store past the current locals length (spec §4.6).
func ZeroFor(kind Kind) Value {
	switch kind {
	case KindDouble:
		return Double(0)
	case KindLong:
		return Long(0)
	case KindReference:
		return NullReference()
	default:
		return Int(0)
	}
}

// AsInt coerces to int32; only Int, Boolean (0/1), and Char (its code
// unit) convert.
func (v Value) AsInt() (int32, error) {
	switch v.Kind {
	case KindInt:
		return v.I, nil
	case KindBoolean:
		if v.B {
			return 1, nil
		}
		return 0, nil
	case KindChar:
		return int32(v.C), nil
	default:
		return 0, rtfault.New(rtfault.InvalidStackState)
	}
}

// AsLong coerces to int64; only Int and Long convert.
func (v Value) AsLong() (int64, error) {
	switch v.Kind {
	case KindLong:
		return v.L, nil
	case KindInt:
		return int64(v.I), nil
	default:
		return 0, rtfault.New(rtfault.InvalidStackState)
	}
}

// AsDouble coerces to float64; Double, Float, Int, and Long all convert.
func (v Value) AsDouble() (float64, error) {
	switch v.Kind {
	case KindDouble:
		return v.D, nil
	case KindFloat:
		return float64(v.F), nil
	case KindInt:
		return float64(v.I), nil
	case KindLong:
		return float64(v.L), nil
	default:
		return 0, rtfault.New(rtfault.InvalidStackState)
	}
}

// AsChar coerces to a UTF-16 code unit; only Char and Int convert.
func (v Value) AsChar() (uint16, error) {
	switch v.Kind {
	case KindChar:
		return v.C, nil
	case KindInt:
		return uint16(v.I), nil
	default:
		return 0, rtfault.New(rtfault.InvalidStackState)
	}
}

// AsBoolean coerces to bool; Boolean and Int (0/nonzero) convert.
func (v Value) AsBoolean() (bool, error) {
	switch v.Kind {
	case KindBoolean:
		return v.B, nil
	case KindInt:
		return v.I != 0, nil
	default:
		return false, rtfault.New(rtfault.InvalidStackState)
	}
}
