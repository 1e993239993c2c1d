package plan

import "github.com/queryplan-dev/qopt/expr"

// ColumnMapForLifting builds the map cols[i] -> i, the
// "to_column_map_for_expr_lifting" helper of §4.F: it lets an
// expression written over the original column indices (e.g. an
// Aggregate's input row) be restated in terms of the position of each
// column within the ordered set cols (e.g. its group_key).
func ColumnMapForLifting(cols []int) map[int]int {
	m := make(map[int]int, len(cols))
	for i, c := range cols {
		m[c] = i
	}
	return m
}

// ColumnMapForPushdown is ColumnMapForLifting's companion for column
// pruning ("to_column_map_for_expr_pushdown"): given the sorted,
// deduplicated set of input columns a node still needs, it returns the
// compacting map old-index -> new-index together with the projection
// a pruning rule inserts below to retain exactly those columns.
func ColumnMapForPushdown(usedCols []int) (colMap map[int]int, projection []expr.Node) {
	colMap = make(map[int]int, len(usedCols))
	projection = make([]expr.Node, len(usedCols))
	for i, c := range usedCols {
		colMap[c] = i
		projection[i] = expr.NewInputRef(c)
	}
	return colMap, projection
}

// CloneSubqueryUnderCorrelation clones the subquery plan rooted at
// subqueryRoot, rewriting every reference to oldCorr (both
// CorrelatedInputRef expressions and Filter/Project/Join/Apply
// correlation-scope references) to reference newCorr instead, and
// registers the clone as a (possibly new) SubqueryRoot. Only nodes
// that change, or that sit above a changed node, get new nodes; the
// rest are shared with the original plan. Per §4.F and §9
// "Correlation scopes": rewrites over correlated expressions must
// clone rather than mutate in place, since the original subquery plan
// may still be referenced elsewhere in the graph.
func (g *Graph) CloneSubqueryUnderCorrelation(subqueryRoot NodeID, oldCorr, newCorr expr.CorrelationID) NodeID {
	sr, ok := g.Node(subqueryRoot).(*SubqueryRoot)
	if !ok {
		panic("plan: CloneSubqueryUnderCorrelation: not a SubqueryRoot")
	}
	memo := map[NodeID]NodeID{}
	newEntry := g.cloneWithCorrelationUpdate(sr.In, oldCorr, newCorr, memo)
	return g.AddSubquery(newEntry)
}

func (g *Graph) cloneWithCorrelationUpdate(id NodeID, oldCorr, newCorr expr.CorrelationID, memo map[NodeID]NodeID) NodeID {
	if nid, ok := memo[id]; ok {
		return nid
	}
	n := g.Node(id)
	children := make([]NodeID, n.NumInputs())
	childrenChanged := false
	for i := range children {
		children[i] = g.cloneWithCorrelationUpdate(n.Input(i), oldCorr, newCorr, memo)
		if children[i] != n.Input(i) {
			childrenChanged = true
		}
	}
	rewritten, exprChanged := rewriteNodeCorrelation(n, oldCorr, newCorr)
	var out NodeID
	switch {
	case !childrenChanged && !exprChanged:
		out = id
	case len(children) == 0:
		out = g.addNode(rewritten)
	default:
		out = g.addNode(rewritten.CloneWithInputs(children))
	}
	memo[id] = out
	return out
}

// rewriteNodeCorrelation rewrites the correlation-scope-bearing parts
// of a single node (its own expressions' CorrelatedInputRefs, and its
// Correlation/CorrelationContext tag if it has one) from oldCorr to
// newCorr, reporting whether anything changed.
func rewriteNodeCorrelation(n Node, oldCorr, newCorr expr.CorrelationID) (Node, bool) {
	switch t := n.(type) {
	case *Filter:
		conds, changed := updateExprListCorrelation(t.Conditions, oldCorr, newCorr)
		corr, corrChanged := updateCorrelationPtr(t.Correlation, oldCorr, newCorr)
		if !changed && !corrChanged {
			return n, false
		}
		return &Filter{In: t.In, Conditions: conds, Correlation: corr}, true
	case *Project:
		outs, changed := updateExprListCorrelation(t.Outputs, oldCorr, newCorr)
		corr, corrChanged := updateCorrelationPtr(t.Correlation, oldCorr, newCorr)
		if !changed && !corrChanged {
			return n, false
		}
		return &Project{In: t.In, Outputs: outs, Correlation: corr}, true
	case *Join:
		conds, changed := updateExprListCorrelation(t.Conditions, oldCorr, newCorr)
		if !changed {
			return n, false
		}
		return &Join{Type: t.Type, Left: t.Left, Right: t.Right, Conditions: conds}, true
	case *Apply:
		if t.Correlation.ID != oldCorr {
			return n, false
		}
		return &Apply{
			Correlation: CorrelationContext{ID: newCorr, Parameters: t.Correlation.Parameters},
			Left:        t.Left,
			Right:       t.Right,
			Type:        t.Type,
		}, true
	default:
		return n, false
	}
}

func updateExprListCorrelation(list []expr.Node, oldCorr, newCorr expr.CorrelationID) ([]expr.Node, bool) {
	changed := false
	out := make([]expr.Node, len(list))
	for i, e := range list {
		r := expr.UpdateCorrelationID(e, oldCorr, newCorr)
		out[i] = r
		if !expr.IdentityEqual(r, e) {
			changed = true
		}
	}
	return out, changed
}

func updateCorrelationPtr(c *expr.CorrelationID, oldCorr, newCorr expr.CorrelationID) (*expr.CorrelationID, bool) {
	if c == nil || *c != oldCorr {
		return c, false
	}
	nc := newCorr
	return &nc, true
}

// RemapSubqueriesInExprs applies ApplySubqueryMap to every expression
// in list, the last step a correlation-aware rewrite takes after
// cloning the subqueries it references: every ScalarSubquery/
// ExistsSubquery/ScalarSubqueryCmp whose id appears in remap is
// repointed at the clone.
func RemapSubqueriesInExprs(list []expr.Node, remap map[NodeID]NodeID) []expr.Node {
	out := make([]expr.Node, len(list))
	for i, e := range list {
		out[i] = expr.ApplySubqueryMap(e, remap)
	}
	return out
}
