package optimize

import (
	"fmt"
	"sort"

	"github.com/queryplan-dev/qopt/expr"
	"github.com/queryplan-dev/qopt/plan"
)

// aggregateSimplifier dedupes AggregateExprs within a single Aggregate
// that compute the exact same thing (same Op, same Operands), the
// Aggregate-shaped counterpart of PulledUpPredicates' own duplicate
// detection for this case: it replaces the Aggregate with a narrower
// one holding one copy per distinct expression, wrapped in a Project
// that restores every original output position.
type aggregateSimplifier struct{}

func (aggregateSimplifier) Name() string   { return "AggregateSimplifier" }
func (aggregateSimplifier) Type() RuleType { return BottomUp }
func (aggregateSimplifier) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	a, ok := g.Node(id).(*plan.Aggregate)
	if !ok || len(a.Aggregates) == 0 {
		return nil, false
	}
	groupLen := len(a.GroupKey)
	var newAggs []*plan.AggregateExpr
	mapping := make([]int, len(a.Aggregates))
	changed := false
	for i, agg := range a.Aggregates {
		idx := -1
		for j := 0; j < i; j++ {
			if agg.Equals(a.Aggregates[j]) {
				idx = mapping[j]
				break
			}
		}
		if idx >= 0 {
			changed = true
		} else {
			idx = len(newAggs)
			newAggs = append(newAggs, agg)
		}
		mapping[i] = idx
	}
	if !changed {
		return nil, false
	}
	newAggNode := g.Aggregate(a.In, a.GroupKey, newAggs)
	outs := make([]expr.Node, groupLen+len(a.Aggregates))
	for i := 0; i < groupLen; i++ {
		outs[i] = expr.NewInputRef(i)
	}
	for i := range a.Aggregates {
		outs[groupLen+i] = expr.NewInputRef(groupLen + mapping[i])
	}
	return &plan.Project{In: newAggNode, Outputs: outs}, true
}

// isNullRejecting reports whether conditions contain a top-level
// comparison that forces a NULL result (and so gets filtered out) the
// moment any column it references in [lo, hi) is NULL. OpRawEq is
// deliberately excluded: it treats two NULLs as equal rather than
// propagating NULL, so a RawEq predicate does not reject the rows an
// outer join pads with NULLs.
func isNullRejecting(conditions []expr.Node, lo, hi int) bool {
	for _, c := range conditions {
		b, ok := c.(*expr.BinaryOp)
		if !ok {
			continue
		}
		switch b.Op {
		case expr.OpEq, expr.OpGt, expr.OpGe, expr.OpLt, expr.OpLe:
		default:
			continue
		}
		if hasRefIn(b, lo, hi) {
			return true
		}
	}
	return false
}

func hasRefIn(n expr.Node, lo, hi int) bool {
	for _, idx := range inputRefIndices(n) {
		if idx >= lo && idx < hi {
			return true
		}
	}
	return false
}

// outerToInnerJoin demotes an outer Join to Inner when a Filter
// directly above it carries a predicate that is null-rejecting over
// every side the join type pads with NULLs — the classic "outer join
// simplification" enabled by a WHERE clause that can never be true for
// a padded row, so the outer semantics are unobservable.
type outerToInnerJoin struct{}

func (outerToInnerJoin) Name() string   { return "OuterToInnerJoin" }
func (outerToInnerJoin) Type() RuleType { return BottomUp }
func (outerToInnerJoin) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok {
		return nil, false
	}
	j, ok := g.Node(f.In).(*plan.Join)
	if !ok || j.Type == plan.Inner || j.Type == plan.Semi || j.Type == plan.Anti {
		return nil, false
	}
	leftSize := ctx.graphNumColumns(g, j.Left)
	rightSize := ctx.graphNumColumns(g, j.Right)
	needLeft := j.Type == plan.RightOuter || j.Type == plan.FullOuter
	needRight := j.Type == plan.LeftOuter || j.Type == plan.FullOuter
	if needLeft && !isNullRejecting(f.Conditions, 0, leftSize) {
		return nil, false
	}
	if needRight && !isNullRejecting(f.Conditions, leftSize, leftSize+rightSize) {
		return nil, false
	}
	newJoin := g.Join(plan.Inner, j.Left, j.Right, j.Conditions)
	return &plan.Filter{In: newJoin, Conditions: f.Conditions, Correlation: f.Correlation}, true
}

// equalityPropagation substitutes one side of a Filter's own Eq
// predicate for the other across its OTHER conditions — e.g.
// Filter({a = b, f(b) > 0}) becomes Filter({a = b, f(a) > 0}), always
// replacing the lexicographically greater side with the lesser one
// so this converges with filterNormalization's own choice of
// representative instead of fighting it pass to pass. The equality
// predicates themselves are left untouched to avoid collapsing "a = b"
// into the tautology "b = b".
type equalityPropagation struct{}

func (equalityPropagation) Name() string   { return "EqualityPropagation" }
func (equalityPropagation) Type() RuleType { return Always }
func (equalityPropagation) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok {
		return nil, false
	}
	type substitution struct{ from, to expr.Node }
	var subs []substitution
	isEquality := make([]bool, len(f.Conditions))
	for i, c := range f.Conditions {
		b, ok := c.(*expr.BinaryOp)
		if !ok || b.Op != expr.OpEq {
			continue
		}
		isEquality[i] = true
		lo, hi := b.Left, b.Right
		if hi.String() < lo.String() {
			lo, hi = hi, lo
		}
		if lo.Equals(hi) {
			continue
		}
		subs = append(subs, substitution{from: hi, to: lo})
	}
	if len(subs) == 0 {
		return nil, false
	}
	changed := false
	out := make([]expr.Node, len(f.Conditions))
	for i, c := range f.Conditions {
		if isEquality[i] {
			out[i] = c
			continue
		}
		cur := c
		for _, s := range subs {
			cur = expr.RewritePost(cur, func(n expr.Node) (expr.Node, bool) {
				if s.from.Equals(n) {
					return s.to, true
				}
				return nil, false
			})
		}
		out[i] = cur
		if !expr.IdentityEqual(cur, c) {
			changed = true
		}
	}
	if !changed {
		return nil, false
	}
	return &plan.Filter{In: f.In, Conditions: out, Correlation: f.Correlation}, true
}

// commonAggregateDiscovery finds groups of Aggregate nodes sharing the
// same (In, GroupKey) anywhere in the graph and merges each group into
// a single wider Aggregate holding the union of their AggregateExprs,
// with a remapping Project restoring each original member's exact
// output shape. It is RootOnly rather than BottomUp since the decision
// needs the whole graph's Aggregate population at once, not just one
// node's local neighborhood.
type commonAggregateDiscovery struct{}

func (commonAggregateDiscovery) Name() string   { return "CommonAggregateDiscovery" }
func (commonAggregateDiscovery) Type() RuleType { return RootOnly }
func (commonAggregateDiscovery) Apply(ctx *Context, g *plan.Graph, id plan.NodeID) ([]plan.Pair, bool) {
	groups := map[string][]plan.NodeID{}
	for _, nid := range plan.PostOrder(g, id) {
		a, ok := g.Node(nid).(*plan.Aggregate)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d|%v", a.In, a.GroupKey)
		groups[key] = append(groups[key], nid)
	}
	var pairs []plan.Pair
	for _, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		pairs = append(pairs, mergeCommonAggregates(g, ids)...)
	}
	if len(pairs) == 0 {
		return nil, false
	}
	return pairs, true
}

func mergeCommonAggregates(g *plan.Graph, ids []plan.NodeID) []plan.Pair {
	first := g.Node(ids[0]).(*plan.Aggregate)
	groupLen := len(first.GroupKey)

	var merged []*plan.AggregateExpr
	seen := map[string]int{}
	offsets := make([]map[int]int, len(ids))
	for mi, nid := range ids {
		a := g.Node(nid).(*plan.Aggregate)
		offsets[mi] = map[int]int{}
		for ai, agg := range a.Aggregates {
			key := fmt.Sprintf("%d:%v", agg.Op, agg.Operands)
			idx, ok := seen[key]
			if !ok {
				idx = len(merged)
				seen[key] = idx
				merged = append(merged, agg)
			}
			offsets[mi][ai] = idx
		}
	}
	mergedAgg := g.Aggregate(first.In, first.GroupKey, merged)

	pairs := make([]plan.Pair, 0, len(ids))
	for mi, nid := range ids {
		a := g.Node(nid).(*plan.Aggregate)
		outs := make([]expr.Node, groupLen+len(a.Aggregates))
		for i := 0; i < groupLen; i++ {
			outs[i] = expr.NewInputRef(i)
		}
		for ai := range a.Aggregates {
			outs[groupLen+ai] = expr.NewInputRef(groupLen + offsets[mi][ai])
		}
		wrapID := g.AddNode(&plan.Project{In: mergedAgg, Outputs: outs})
		pairs = append(pairs, plan.Pair{Old: nid, New: wrapID})
	}
	return pairs
}

// cteDiscovery canonicalizes a Filter's or inner Join's condition list
// into a fixed order (sorted by each condition's String() form), since
// the conditions are an unordered AND: two plans built independently
// from the same predicates but listing them in different order
// otherwise never compare structurally equal and so never dedup via
// the graph's own G4 mechanism. This is deliberately the only
// mechanism attempted for merging would-be common subexpressions
// across independently-built subqueries — directly merging two
// SubqueryRoots is not attempted since SubqueryRoot is not a valid
// Graph.ReplaceNodes target (G5).
type cteDiscovery struct{}

func (cteDiscovery) Name() string   { return "CteDiscovery" }
func (cteDiscovery) Type() RuleType { return Always }
func (cteDiscovery) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	switch t := g.Node(id).(type) {
	case *plan.Filter:
		sorted := sortedByString(t.Conditions)
		if sameOrder(sorted, t.Conditions) {
			return nil, false
		}
		return &plan.Filter{In: t.In, Conditions: sorted, Correlation: t.Correlation}, true
	case *plan.Join:
		if t.Type != plan.Inner {
			return nil, false
		}
		sorted := sortedByString(t.Conditions)
		if sameOrder(sorted, t.Conditions) {
			return nil, false
		}
		return &plan.Join{Type: t.Type, Left: t.Left, Right: t.Right, Conditions: sorted}, true
	}
	return nil, false
}

func sortedByString(list []expr.Node) []expr.Node {
	cp := append([]expr.Node(nil), list...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].String() < cp[j].String() })
	return cp
}

func sameOrder(a, b []expr.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// topProjection keeps the query's entry node wrapped in an explicit
// Project, the way the teacher's freezefinal step names every output
// column before handing a plan off: if the entry is not already a
// Project, one is inserted that simply passes every column through
// unchanged, giving later explain/codegen passes a stable place to
// hang output names whatever the entry node's own kind is.
type topProjection struct{}

func (topProjection) Name() string   { return "TopProjection" }
func (topProjection) Type() RuleType { return RootOnly }
func (topProjection) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	if _, ok := g.Node(id).(*plan.Project); ok {
		return nil, false
	}
	width := ctx.graphNumColumns(g, id)
	outs := make([]expr.Node, width)
	for i := range outs {
		outs[i] = expr.NewInputRef(i)
	}
	return &plan.Project{In: id, Outputs: outs}, true
}
