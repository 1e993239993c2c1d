package expr

import "testing"

func TestLiteralInterning(t *testing.T) {
	a := NewInt32(42)
	b := NewInt32(42)
	if a != b {
		t.Fatalf("expected interned literals to share a pointer, got %p != %p", a, b)
	}
	c := NewInt32(43)
	if a == c {
		t.Fatalf("distinct literals must not share a pointer")
	}
}

func TestInputRefInterning(t *testing.T) {
	a := NewInputRef(3)
	b := NewInputRef(3)
	if a != b {
		t.Fatalf("expected interned InputRef to share a pointer")
	}
}

func TestBinaryOpEquals(t *testing.T) {
	a := NewBinaryOp(OpGt, NewInputRef(0), NewInt32(10))
	b := NewBinaryOp(OpGt, NewInputRef(0), NewInt32(10))
	if a == b {
		t.Fatalf("BinaryOp is not interned, pointers should differ")
	}
	if !a.Equals(b) {
		t.Fatalf("expected structurally equal BinaryOp nodes to be Equals")
	}
	c := NewBinaryOp(OpLt, NewInputRef(0), NewInt32(10))
	if a.Equals(c) {
		t.Fatalf("different ops must not be Equals")
	}
}

func TestCloneWithNewInputsArity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on arity mismatch")
		}
	}()
	b := NewBinaryOp(OpEq, NewInt32(1), NewInt32(2))
	b.CloneWithNewInputs([]Node{NewInt32(1)})
}

func TestNumInputsAndDataType(t *testing.T) {
	n := NewNaryOp(OpAnd, TrueLiteral(), FalseLiteral())
	if n.NumInputs() != 2 {
		t.Fatalf("expected 2 operands")
	}
	if !n.DataType(nil).Equals(TypeBool) {
		t.Fatalf("AND must be bool typed")
	}
	concat := NewNaryOp(OpConcat, NewString("a"), NewString("b"))
	if !concat.DataType(nil).Equals(TypeString) {
		t.Fatalf("concat must be string typed")
	}
}
