package expr

import "testing"

func TestReduceAndAbsorbsTrue(t *testing.T) {
	n := NewNaryOp(OpAnd, TrueLiteral(), NewInputRef(0))
	out := Reduce(n)
	if !IdentityEqual(out, NewInputRef(0)) {
		t.Fatalf("expected AND(true, ref_0) to reduce to ref_0, got %s", out)
	}
}

func TestReduceAndShortCircuitsFalse(t *testing.T) {
	n := NewNaryOp(OpAnd, FalseLiteral(), NewInputRef(0))
	out := Reduce(n)
	if !IdentityEqual(out, FalseLiteral()) {
		t.Fatalf("expected AND(false, ref_0) to reduce to false, got %s", out)
	}
}

func TestReduceOrShortCircuitsTrue(t *testing.T) {
	n := NewNaryOp(OpOr, TrueLiteral(), NewInputRef(0))
	out := Reduce(n)
	if !IdentityEqual(out, TrueLiteral()) {
		t.Fatalf("expected OR(true, ref_0) to reduce to true, got %s", out)
	}
}

func TestReduceLiteralComparison(t *testing.T) {
	n := NewBinaryOp(OpGt, NewInt32(10), NewInt32(3))
	out := Reduce(n)
	lit, ok := out.(*Literal)
	if !ok || lit.Value.Kind != ValBool || !lit.Value.Bool {
		t.Fatalf("expected 10 > 3 to reduce to true literal, got %s", out)
	}
}

func TestReduceNullPoisonsStrictComparison(t *testing.T) {
	n := NewBinaryOp(OpEq, NewNull(TypeInt), NewInt32(3))
	out := Reduce(n)
	lit, ok := out.(*Literal)
	if !ok || lit.Value.Kind != ValNull {
		t.Fatalf("expected null = 3 to reduce to null, got %s", out)
	}
}

func TestReduceRawEqNullNotPoisoned(t *testing.T) {
	n := NewBinaryOp(OpRawEq, NewNull(TypeInt), NewNull(TypeInt))
	out := Reduce(n)
	lit, ok := out.(*Literal)
	if !ok || lit.Value.Kind != ValBool || !lit.Value.Bool {
		t.Fatalf("expected null raw= null to reduce to true, got %s", out)
	}
}

func TestReduceNestedFixedPoint(t *testing.T) {
	inner := NewBinaryOp(OpGt, NewInt32(5), NewInt32(1))
	n := NewNaryOp(OpAnd, inner, NewInputRef(0))
	out := Reduce(n)
	if !IdentityEqual(out, NewInputRef(0)) {
		t.Fatalf("expected nested reduction AND(true, ref_0) -> ref_0, got %s", out)
	}
}
