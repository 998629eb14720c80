package bytecode

import (
	"fmt"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	// KindNumber is a 64-bit IEEE 754 float.
	KindNumber ValueKind = iota
)

var valueKindNames = map[ValueKind]string{
	KindNumber: "number",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// Valid reports whether k is a known kind.
func (k ValueKind) Valid() bool {
	_, ok := valueKindNames[k]
	return ok
}

// Value is a tagged runtime value. The zero Value is the number 0.
//
// New kinds add a ValueKind constant, a constructor and accessors; the
// stack and the opcode set stay as they are.
type Value struct {
	kind ValueKind
	num  float64
}

// NumberValue returns a Value holding n.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool {
	return v.kind == KindNumber
}

// AsNumber returns the number held by v. It panics if v is not a number;
// callers check IsNumber first.
func (v Value) AsNumber() float64 {
	if v.kind != KindNumber {
		panic(fmt.Sprintf("bytecode: AsNumber on %s value", v.kind))
	}
	return v.num
}

// String formats the value the way the CLI prints results.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}
