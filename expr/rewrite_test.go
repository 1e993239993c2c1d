package expr

import "testing"

func TestRewritePostPreservesIdentityWhenUnchanged(t *testing.T) {
	n := NewBinaryOp(OpGt, NewInputRef(0), NewInt32(10))
	out := RewritePost(n, func(cur Node) (Node, bool) { return nil, false })
	if !IdentityEqual(out, n) {
		t.Fatalf("expected identical node back when f never replaces anything")
	}
}

func TestRewritePostRebuildsOnChange(t *testing.T) {
	n := NewBinaryOp(OpGt, NewInputRef(0), NewInt32(10))
	out := RewritePost(n, func(cur Node) (Node, bool) {
		if ref, ok := cur.(*InputRef); ok && ref.Index == 0 {
			return NewInputRef(1), true
		}
		return nil, false
	})
	b, ok := out.(*BinaryOp)
	if !ok {
		t.Fatalf("expected a BinaryOp back")
	}
	ref, ok := b.Left.(*InputRef)
	if !ok || ref.Index != 1 {
		t.Fatalf("expected left child rewritten to ref_1, got %s", b.Left)
	}
}

func TestShiftInputRefs(t *testing.T) {
	n := NewBinaryOp(OpEq, NewInputRef(0), NewInputRef(1))
	out := ShiftInputRefs(n, 5)
	b := out.(*BinaryOp)
	if b.Left.(*InputRef).Index != 5 || b.Right.(*InputRef).Index != 6 {
		t.Fatalf("expected shifted refs, got %s", b)
	}
}

func TestDereference(t *testing.T) {
	proj := []Node{NewBinaryOp(OpEq, NewInputRef(2), NewInt32(1)), NewInputRef(3)}
	n := NewNaryOp(OpAnd, NewInputRef(0), NewInputRef(1))
	out := Dereference(n, proj)
	nary := out.(*NaryOp)
	if !nary.Operands[0].Equals(proj[0]) {
		t.Fatalf("expected ref_0 dereferenced to proj[0]")
	}
	if !nary.Operands[1].Equals(proj[1]) {
		t.Fatalf("expected ref_1 dereferenced to proj[1]")
	}
}

func TestApplyColumnMap(t *testing.T) {
	n := NewBinaryOp(OpGt, NewInputRef(0), NewInt32(1))
	out, ok := ApplyColumnMap(n, map[int]int{0: 7})
	if !ok {
		t.Fatalf("expected successful column map application")
	}
	if out.(*BinaryOp).Left.(*InputRef).Index != 7 {
		t.Fatalf("expected ref_0 remapped to ref_7")
	}
	_, ok = ApplyColumnMap(n, map[int]int{1: 7})
	if ok {
		t.Fatalf("expected failure when column map doesn't cover a referenced column")
	}
}

func TestLiftScalarExpr(t *testing.T) {
	// Project outputs: [ref_1, ref_0]; lifting ref_0 (input col) should
	// yield ref_1 (the output column that passes it through).
	proj := []Node{NewInputRef(1), NewInputRef(0)}
	lifted, ok := LiftScalarExpr(NewInputRef(0), proj)
	if !ok || lifted.(*InputRef).Index != 1 {
		t.Fatalf("expected ref_0 lifted to ref_1, got %v ok=%v", lifted, ok)
	}
}

func TestUpdateCorrelationID(t *testing.T) {
	var oldID, newID CorrelationID
	oldID[0] = 1
	newID[0] = 2
	n := NewBinaryOp(OpEq, NewCorrelatedInputRef(oldID, 0, TypeInt), NewInt32(1))
	out := UpdateCorrelationID(n, oldID, newID)
	ref := out.(*BinaryOp).Left.(*CorrelatedInputRef)
	if ref.Correlation != newID {
		t.Fatalf("expected correlation id updated")
	}
}

func TestReplaceSubExpressionsPre(t *testing.T) {
	shared := NewBinaryOp(OpEq, NewInputRef(0), NewInt32(1))
	n := NewNaryOp(OpAnd, shared, NewInputRef(2))
	repl := map[Node]Node{shared: TrueLiteral()}
	out := ReplaceSubExpressionsPre(n, repl)
	nary := out.(*NaryOp)
	if !IdentityEqual(nary.Operands[0], TrueLiteral()) {
		t.Fatalf("expected shared sub-expression replaced")
	}
}

func TestRewriteVecNoChangeReturnsOriginalSlice(t *testing.T) {
	list := []Node{NewInt32(1), NewInt32(2)}
	out := RewriteVec(list, func(n Node) (Node, bool) { return nil, false })
	if &out[0] != &list[0] {
		t.Fatalf("expected the exact same backing slice when nothing changed")
	}
}
