package expr

// Reduce folds constant sub-expressions to a single literal wherever
// possible, applying local rewrites bottom-up to a fixed point: AND/OR
// absorb their constant identities, comparisons between two literals
// evaluate directly, and any operand typed NULL poisons a strict
// (non-raw) comparison to NULL.
func Reduce(n Node) Node {
	for {
		r := RewritePost(n, reduceOnce)
		if IdentityEqual(r, n) {
			return r
		}
		n = r
	}
}

func reduceOnce(n Node) (Node, bool) {
	switch v := n.(type) {
	case *NaryOp:
		return reduceNary(v)
	case *BinaryOp:
		return reduceBinary(v)
	}
	return nil, false
}

func reduceNary(n *NaryOp) (Node, bool) {
	switch n.Op {
	case OpAnd:
		var kept []Node
		for _, o := range n.Operands {
			if lit, ok := o.(*Literal); ok && lit.Value.Kind == ValBool {
				if !lit.Value.Bool {
					return FalseLiteral(), true
				}
				continue // drop `true` operands
			}
			kept = append(kept, o)
		}
		if len(kept) == 0 {
			return TrueLiteral(), true
		}
		if len(kept) == 1 {
			return kept[0], true
		}
		if len(kept) != len(n.Operands) {
			return NewNaryOp(OpAnd, kept...), true
		}
	case OpOr:
		var kept []Node
		for _, o := range n.Operands {
			if lit, ok := o.(*Literal); ok && lit.Value.Kind == ValBool {
				if lit.Value.Bool {
					return TrueLiteral(), true
				}
				continue // drop `false` operands
			}
			kept = append(kept, o)
		}
		if len(kept) == 0 {
			return FalseLiteral(), true
		}
		if len(kept) == 1 {
			return kept[0], true
		}
		if len(kept) != len(n.Operands) {
			return NewNaryOp(OpOr, kept...), true
		}
	case OpConcat:
		allLiteral := true
		s := ""
		for _, o := range n.Operands {
			lit, ok := o.(*Literal)
			if !ok || lit.Value.Kind == ValNull {
				allLiteral = false
				break
			}
			s += lit.Value.String()
		}
		if allLiteral && len(n.Operands) > 0 {
			return NewString(s), true
		}
	}
	return nil, false
}

func reduceBinary(n *BinaryOp) (Node, bool) {
	ll, lok := n.Left.(*Literal)
	rl, rok := n.Right.(*Literal)
	if !lok || !rok {
		return nil, false
	}
	if n.Op != OpRawEq && (ll.Value.Kind == ValNull || rl.Value.Kind == ValNull) {
		return NewNull(TypeBool), true
	}
	cmp, ok := compareLiterals(ll.Value, rl.Value)
	if !ok {
		return nil, false
	}
	var result bool
	switch n.Op {
	case OpEq, OpRawEq:
		result = cmp == 0
	case OpGt:
		result = cmp > 0
	case OpGe:
		result = cmp >= 0
	case OpLt:
		result = cmp < 0
	case OpLe:
		result = cmp <= 0
	default:
		return nil, false
	}
	return NewBool(result), true
}

// compareLiterals returns -1/0/1 for a<b/a==b/a>b when a and b are
// comparable scalar kinds.
func compareLiterals(a, b Value) (int, bool) {
	if a.Kind == ValNull && b.Kind == ValNull {
		return 0, true
	}
	switch a.Kind {
	case ValBool:
		if b.Kind != ValBool {
			return 0, false
		}
		if a.Bool == b.Bool {
			return 0, true
		}
		if a.Bool {
			return 1, true
		}
		return -1, true
	case ValInt32:
		var bv int64
		switch b.Kind {
		case ValInt32:
			bv = int64(b.Int32)
		case ValInt64:
			bv = b.Int64
		default:
			return 0, false
		}
		return compareInt64(int64(a.Int32), bv), true
	case ValInt64:
		var bv int64
		switch b.Kind {
		case ValInt32:
			bv = int64(b.Int32)
		case ValInt64:
			bv = b.Int64
		default:
			return 0, false
		}
		return compareInt64(a.Int64, bv), true
	case ValString:
		if b.Kind != ValString {
			return 0, false
		}
		switch {
		case a.Str < b.Str:
			return -1, true
		case a.Str > b.Str:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
