// Package expr implements the scalar expression algebra shared by every
// plan node: literals, column references, operators and the subquery
// carrying nodes that tie a scalar tree back into the plan graph.
//
// Expressions are immutable. Rewriting a tree never mutates a node in
// place; it builds a new one and lets the old one be garbage collected,
// the same contract the teacher's expr package uses.
package expr

import "fmt"

// Kind identifies the shape of a DataType.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBool
	KindInt
	KindBigInt
	KindString
	KindArray
	KindTuple
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// DataType describes the static type of a scalar expression or of an
// input column. Array and Tuple carry their element/field types inline
// rather than through a registry, matching how small a type system this
// algebra needs.
type DataType struct {
	Kind   Kind
	Elem   *DataType
	Fields []DataType
}

var (
	TypeUnknown = DataType{Kind: KindUnknown}
	TypeBool    = DataType{Kind: KindBool}
	TypeInt     = DataType{Kind: KindInt}
	TypeBigInt  = DataType{Kind: KindBigInt}
	TypeString  = DataType{Kind: KindString}
	TypeAny     = DataType{Kind: KindAny}
)

// ArrayOf builds the type of an array whose elements have type elem.
func ArrayOf(elem DataType) DataType {
	e := elem
	return DataType{Kind: KindArray, Elem: &e}
}

// TupleOf builds the type of a fixed-arity tuple.
func TupleOf(fields ...DataType) DataType {
	cp := make([]DataType, len(fields))
	copy(cp, fields)
	return DataType{Kind: KindTuple, Fields: cp}
}

// Equals reports whether two data types are structurally identical.
func (t DataType) Equals(o DataType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		if t.Elem == nil || o.Elem == nil {
			return t.Elem == o.Elem
		}
		return t.Elem.Equals(*o.Elem)
	case KindTuple:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equals(o.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t DataType) String() string {
	switch t.Kind {
	case KindArray:
		if t.Elem == nil {
			return "array<?>"
		}
		return fmt.Sprintf("array<%s>", t.Elem.String())
	case KindTuple:
		return fmt.Sprintf("tuple%v", t.Fields)
	default:
		return t.Kind.String()
	}
}

// ValueKind discriminates the payload carried by a Value.
type ValueKind uint8

const (
	ValNull ValueKind = iota
	ValBool
	ValInt32
	ValInt64
	ValString
	ValList
	ValAny
)

// Value is the literal payload carried by a Literal node. Only one of
// the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int32 int32
	Int64 int64
	Str   string
	List  []Value
	Any   *Value
}

func NullValue() Value           { return Value{Kind: ValNull} }
func BoolValue(b bool) Value     { return Value{Kind: ValBool, Bool: b} }
func Int32Value(i int32) Value   { return Value{Kind: ValInt32, Int32: i} }
func Int64Value(i int64) Value   { return Value{Kind: ValInt64, Int64: i} }
func StringValue(s string) Value { return Value{Kind: ValString, Str: s} }
func ListValue(vs []Value) Value { return Value{Kind: ValList, List: vs} }
func AnyValue(v Value) Value     { return Value{Kind: ValAny, Any: &v} }

// Equals reports deep structural equality between two literal values.
func (v Value) Equals(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValNull:
		return true
	case ValBool:
		return v.Bool == o.Bool
	case ValInt32:
		return v.Int32 == o.Int32
	case ValInt64:
		return v.Int64 == o.Int64
	case ValString:
		return v.Str == o.Str
	case ValList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equals(o.List[i]) {
				return false
			}
		}
		return true
	case ValAny:
		if v.Any == nil || o.Any == nil {
			return v.Any == o.Any
		}
		return v.Any.Equals(*o.Any)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValNull:
		return "null"
	case ValBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValInt32:
		return fmt.Sprintf("%d", v.Int32)
	case ValInt64:
		return fmt.Sprintf("%d", v.Int64)
	case ValString:
		return fmt.Sprintf("%q", v.Str)
	case ValList:
		return fmt.Sprintf("%v", v.List)
	case ValAny:
		if v.Any == nil {
			return "any(?)"
		}
		return fmt.Sprintf("any(%s)", v.Any.String())
	default:
		return "?"
	}
}
