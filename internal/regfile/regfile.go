// Package regfile implements the fixed-width tagged register file the
// interpreter executes recipes against.
package regfile

import "fmt"

// Kind tags the value currently held by a register.
type Kind uint8

const (
	Empty Kind = iota
	Int
	Str
)

// NumRegisters is N from the spec: the canonical register file width.
const NumRegisters = 8

// Value is a single tagged register slot. Only one of the three fields is
// meaningful at a time, selected by Kind. A zero Value is Empty.
type Value struct {
	Kind Kind
	I    int64
	S    string
}

func (v Value) String() string {
	switch v.Kind {
	case Int:
		return fmt.Sprintf("Int(%d)", v.I)
	case Str:
		return fmt.Sprintf("Str(%q)", v.S)
	default:
		return "Empty"
	}
}

// Truthy reports true only for a non-zero Int, per the spec's
// "0=false, non-zero=true" convention for boolean-flavored integers; 0,
// Empty and every string (including a non-empty one) are false.
func (v Value) Truthy() bool {
	return v.Kind == Int && v.I != 0
}

func EmptyValue() Value      { return Value{Kind: Empty} }
func IntValue(i int64) Value { return Value{Kind: Int, I: i} }
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}
func StrValue(s string) Value { return Value{Kind: Str, S: s} }

// File is the executor's register file. Its lifetime is the executor's
// lifetime; writes replace and release the prior value. The spec leaves
// reset-between-jobs as an unspecified recipe convention, so File does not
// clear itself between Get/Set calls across jobs — callers that want a
// fresh file construct a new one.
type File struct {
	slots [NumRegisters]Value
}

// New returns a register file with every slot Empty.
func New() *File {
	return &File{}
}

// validIndex reports whether idx is in [0, NumRegisters).
func validIndex(idx int) bool {
	return idx >= 0 && idx < NumRegisters
}

// Get returns the current value of register idx, or Empty and false if idx
// is out of range.
func (f *File) Get(idx int) (Value, bool) {
	if !validIndex(idx) {
		return Value{}, false
	}
	return f.slots[idx], true
}

// GetInt is a convenience for opcodes that require an integer operand;
// non-integer or out-of-range registers read as 0.
func (f *File) GetInt(idx int) int64 {
	v, ok := f.Get(idx)
	if !ok || v.Kind != Int {
		return 0
	}
	return v.I
}

// GetStr is a convenience for opcodes that require a string operand;
// non-string or out-of-range registers read as "".
func (f *File) GetStr(idx int) string {
	v, ok := f.Get(idx)
	if !ok || v.Kind != Str {
		return ""
	}
	return v.S
}

// Set overwrites register idx, releasing whatever it previously held. It is
// a no-op (and reports false) if idx is out of range.
func (f *File) Set(idx int, v Value) bool {
	if !validIndex(idx) {
		return false
	}
	f.slots[idx] = v
	return true
}

// SetBool is a convenience for the many opcodes whose destination is a
// boolean result.
func (f *File) SetBool(idx int, b bool) bool {
	return f.Set(idx, BoolValue(b))
}

// Snapshot returns the current integer value of each requested register.
// An out-of-range index is dropped; a register holding a non-integer value
// reports as 0, since REPORT's synthesized object only ever carries
// integers (spec.md §4.1).
func (f *File) Snapshot(indices []int) map[int]int64 {
	out := make(map[int]int64, len(indices))
	for _, idx := range indices {
		v, ok := f.Get(idx)
		if !ok {
			continue
		}
		if v.Kind == Int {
			out[idx] = v.I
		} else {
			out[idx] = 0
		}
	}
	return out
}
