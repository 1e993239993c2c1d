package expr

// Dereference substitutes every InputRef(i) in n with proj[i], the
// projection expression that produced column i of n's current input.
// Used to restate a predicate or output expression in terms of the
// input of a Project it is being pushed through.
func Dereference(n Node, proj []Node) Node {
	return RewritePost(n, func(cur Node) (Node, bool) {
		if ref, ok := cur.(*InputRef); ok {
			return proj[ref.Index], true
		}
		return nil, false
	})
}

// ShiftInputRefs adds offset to the index of every InputRef in n.
// offset may be negative, used when an expression is moved from the
// right input of a binary node to a combined row type (shift right) or
// back (shift left, offset < 0).
func ShiftInputRefs(n Node, offset int) Node {
	if offset == 0 {
		return n
	}
	return RewritePost(n, func(cur Node) (Node, bool) {
		if ref, ok := cur.(*InputRef); ok {
			return NewInputRef(ref.Index + offset), true
		}
		return nil, false
	})
}

// LiftScalarExpr restates n, an expression in terms of a Project's
// input columns, as an expression in terms of the Project's output
// columns: every InputRef(i) in n is rewritten to InputRef(j) where
// proj[j] is syntactically equal to InputRef(i). ok is false if some
// InputRef in n has no matching output column, meaning n cannot be
// lifted through this projection.
func LiftScalarExpr(n Node, proj []Node) (result Node, ok bool) {
	colMap := toColumnMapForLifting(proj)
	return ApplyColumnMap(n, colMap)
}

// toColumnMapForLifting builds the map InputRef.Index -> output column
// index for every proj entry that is itself a plain InputRef (i.e. a
// pass-through column). Non-InputRef outputs don't contribute an entry,
// matching to_column_map_for_expr_lifting.
func toColumnMapForLifting(proj []Node) map[int]int {
	m := make(map[int]int, len(proj))
	for j, e := range proj {
		if ref, ok := e.(*InputRef); ok {
			if _, exists := m[ref.Index]; !exists {
				m[ref.Index] = j
			}
		}
	}
	return m
}

// LiftScalarExprExcluding is the second lifting pass used by
// pulled-up-predicate derivation for Project nodes: proj is keyed by
// expression rather than input index, letting an arbitrary
// sub-expression (not just a bare column) be recognized as already
// computed by another output column.
func LiftScalarExprExcluding(n Node, exprToColumn map[Node]int) (Node, bool) {
	if col, ok := lookupByEquality(exprToColumn, n); ok {
		return NewInputRef(col), true
	}
	if n.NumInputs() == 0 {
		return nil, false
	}
	children := make([]Node, n.NumInputs())
	anyFailed := false
	for i := 0; i < n.NumInputs(); i++ {
		c, ok := LiftScalarExprExcluding(n.GetInput(i), exprToColumn)
		if !ok {
			anyFailed = true
			break
		}
		children[i] = c
	}
	if anyFailed {
		return nil, false
	}
	return n.CloneWithNewInputs(children), true
}

func lookupByEquality(m map[Node]int, n Node) (int, bool) {
	for k, v := range m {
		if k.Equals(n) {
			return v, true
		}
	}
	return 0, false
}

// ApplyColumnMap rewrites every InputRef(i) in n to InputRef(colMap[i]).
// ok is false if n references a column missing from colMap, meaning the
// expression can't be restated under this column map (e.g. it depends
// on a column an Aggregate grouped away).
func ApplyColumnMap(n Node, colMap map[int]int) (result Node, ok bool) {
	ok = true
	out := RewritePost(n, func(cur Node) (Node, bool) {
		ref, isRef := cur.(*InputRef)
		if !isRef {
			return nil, false
		}
		j, found := colMap[ref.Index]
		if !found {
			ok = false
			return cur, false
		}
		return NewInputRef(j), true
	})
	if !ok {
		return nil, false
	}
	return out, true
}

// UpdateCorrelationID rewrites every CorrelatedInputRef in n whose scope
// is oldID to newID. Used when a rewrite merges two filters that each
// own a distinct correlation scope: one scope is retired and every
// reference to it is repointed at the surviving scope.
func UpdateCorrelationID(n Node, oldID, newID CorrelationID) Node {
	return RewritePost(n, func(cur Node) (Node, bool) {
		if ref, ok := cur.(*CorrelatedInputRef); ok && ref.Correlation == oldID {
			return NewCorrelatedInputRef(newID, ref.Index, ref.Type), true
		}
		return nil, false
	})
}

// ApplySubqueryMap rewrites every subquery-carrying node in n whose
// Subquery id has an entry in m to point at the mapped id instead. Used
// after cloning a correlated subquery plan, when the clone's roots get
// fresh ids and every expression referencing the old root must be
// repointed.
func ApplySubqueryMap(n Node, m map[NodeID]NodeID) Node {
	return RewritePost(n, func(cur Node) (Node, bool) {
		switch v := cur.(type) {
		case *ScalarSubquery:
			if nid, ok := m[v.Subquery]; ok {
				return NewScalarSubquery(nid, v.Type), true
			}
		case *ExistsSubquery:
			if nid, ok := m[v.Subquery]; ok {
				return NewExistsSubquery(nid), true
			}
		case *ScalarSubqueryCmp:
			if nid, ok := m[v.Subquery]; ok {
				return NewScalarSubqueryCmp(v.Op, v.Operand, nid), true
			}
		}
		return nil, false
	})
}

// Subqueries collects the distinct subquery ids referenced anywhere in n.
func Subqueries(n Node) []NodeID {
	seen := map[NodeID]bool{}
	var out []NodeID
	Walk(subqueryCollector{seen: seen, out: &out}, n)
	return out
}

type subqueryCollector struct {
	seen map[NodeID]bool
	out  *[]NodeID
}

func (c subqueryCollector) Visit(n Node) Visitor {
	if n == nil {
		return c
	}
	var id NodeID
	has := false
	switch v := n.(type) {
	case *ScalarSubquery:
		id, has = v.Subquery, true
	case *ExistsSubquery:
		id, has = v.Subquery, true
	case *ScalarSubqueryCmp:
		id, has = v.Subquery, true
	}
	if has && !c.seen[id] {
		c.seen[id] = true
		*c.out = append(*c.out, id)
	}
	return c
}

// CorrelatedInputRefs collects every CorrelatedInputRef in n, whatever
// its correlation scope, in walk order; a reference that occurs more
// than once is collected once per occurrence.
func CorrelatedInputRefs(n Node) []*CorrelatedInputRef {
	var out []*CorrelatedInputRef
	Walk(corrCollector{out: &out}, n)
	return out
}

type corrCollector struct {
	out *[]*CorrelatedInputRef
}

func (c corrCollector) Visit(n Node) Visitor {
	if n == nil {
		return c
	}
	if ref, ok := n.(*CorrelatedInputRef); ok {
		*c.out = append(*c.out, ref)
	}
	return c
}

// IsLiteral reports whether n is a Literal node.
func IsLiteral(n Node) bool {
	_, ok := n.(*Literal)
	return ok
}

// IsRawColumnEquivalence reports whether n is `ref raw= ref`, the shape
// pulled-up-predicate derivation forwards across the non-preserving
// side of an outer join even though other predicates from that side
// must be dropped.
func IsRawColumnEquivalence(n Node) bool {
	b, ok := n.(*BinaryOp)
	if !ok || b.Op != OpRawEq {
		return false
	}
	_, lok := b.Left.(*InputRef)
	_, rok := b.Right.(*InputRef)
	return lok && rok
}
