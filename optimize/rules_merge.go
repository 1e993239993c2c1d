package optimize

import (
	"github.com/queryplan-dev/qopt/expr"
	"github.com/queryplan-dev/qopt/plan"
)

// filterMerge collapses Filter(Filter(x, c1), c2) into a single
// Filter(x, c1 ∪ c2), the same splice-out-the-intermediate-step shape
// as the teacher's filterelim.go, generalized from "drop a trivially
// true filter" to "merge two adjacent filters unconditionally" since
// this DAG's Filter node already stores a condition *set*, not a
// single boolean expression.
type filterMerge struct{}

func (filterMerge) Name() string  { return "FilterMerge" }
func (filterMerge) Type() RuleType { return BottomUp }
func (filterMerge) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok {
		return nil, false
	}
	inner, ok := g.Node(f.In).(*plan.Filter)
	if !ok {
		return nil, false
	}
	if sameCorrelationPtr(f.Correlation, inner.Correlation) {
		merged := append(append([]expr.Node{}, inner.Conditions...), f.Conditions...)
		return &plan.Filter{In: inner.In, Conditions: merged, Correlation: f.Correlation}, true
	}

	// The two filters own distinct correlation scopes. Per §9
	// "Correlation scopes" / §4.F, the scopes can't simply be unioned
	// in place: every subquery inner.Conditions references under its
	// scope must be cloned under the surviving scope (the outer
	// filter's, when it has one) before the condition lists can be
	// concatenated, since inner's original subquery plan may still be
	// referenced elsewhere in the graph.
	survivor := f.Correlation
	retired := inner.Correlation
	if survivor == nil {
		survivor, retired = inner.Correlation, f.Correlation
	}
	if retired == nil {
		// one side is uncorrelated: nothing to reconcile, the
		// surviving scope simply wins.
		merged := append(append([]expr.Node{}, inner.Conditions...), f.Conditions...)
		return &plan.Filter{In: inner.In, Conditions: merged, Correlation: survivor}, true
	}

	remap := map[plan.NodeID]plan.NodeID{}
	for _, sq := range expr.Subqueries(joinExprs(inner.Conditions, f.Conditions)) {
		remap[sq] = g.CloneSubqueryUnderCorrelation(sq, *retired, *survivor)
	}
	reconciledInner := plan.RemapSubqueriesInExprs(inner.Conditions, remap)
	reconciledOuter := plan.RemapSubqueriesInExprs(f.Conditions, remap)
	for i, e := range reconciledInner {
		reconciledInner[i] = expr.UpdateCorrelationID(e, *retired, *survivor)
	}
	for i, e := range reconciledOuter {
		reconciledOuter[i] = expr.UpdateCorrelationID(e, *retired, *survivor)
	}
	merged := append(reconciledInner, reconciledOuter...)
	return &plan.Filter{In: inner.In, Conditions: merged, Correlation: survivor}, true
}

// joinExprs is a one-off helper bundling two condition lists into a
// single synthetic AND so expr.Subqueries can collect across both in
// one call; the synthesized node itself is discarded.
func joinExprs(a, b []expr.Node) expr.Node {
	all := append(append([]expr.Node{}, a...), b...)
	if len(all) == 0 {
		return expr.TrueLiteral()
	}
	if len(all) == 1 {
		return all[0]
	}
	return expr.NewNaryOp(expr.OpAnd, all...)
}

// projectMerge collapses Project(Project(x, p1), p2) into a single
// Project(x, p2[p1]) by dereferencing p2's InputRefs through p1,
// mirroring the teacher's projectpushdown.
type projectMerge struct{}

func (projectMerge) Name() string  { return "ProjectMerge" }
func (projectMerge) Type() RuleType { return BottomUp }
func (projectMerge) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	p, ok := g.Node(id).(*plan.Project)
	if !ok {
		return nil, false
	}
	inner, ok := g.Node(p.In).(*plan.Project)
	if !ok || !sameCorrelationPtr(p.Correlation, inner.Correlation) {
		return nil, false
	}
	rewritten := make([]expr.Node, len(p.Outputs))
	for i, e := range p.Outputs {
		rewritten[i] = expr.Dereference(e, inner.Outputs)
	}
	return &plan.Project{In: inner.In, Outputs: rewritten, Correlation: p.Correlation}, true
}

// removePassthroughProject drops a Project whose outputs are exactly
// ref_0..ref_{n-1} in order — a no-op projection a rewrite elsewhere
// produced incidentally (e.g. ProjectMerge composing back to identity).
type removePassthroughProject struct{}

func (removePassthroughProject) Name() string  { return "RemovePassthroughProject" }
func (removePassthroughProject) Type() RuleType { return BottomUp }
func (removePassthroughProject) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	p, ok := g.Node(id).(*plan.Project)
	if !ok || p.Correlation != nil {
		return nil, false
	}
	if entry, ok := g.Entry(); ok && id == entry {
		// a passthrough projection at the literal query root is the
		// explicit top-level shape TopProjection maintains; removing it
		// here would just have TopProjection put it right back.
		return nil, false
	}
	width := ctx.graphNumColumns(g, p.In)
	if width != len(p.Outputs) {
		return nil, false
	}
	for i, e := range p.Outputs {
		ref, ok := e.(*expr.InputRef)
		if !ok || ref.Index != i {
			return nil, false
		}
	}
	return g.Node(p.In), true
}

// expressionReduction constant-folds every expression a node carries,
// the plan-level hook for expr.Reduce; it is typed Always since
// folding is cheap and a later rewrite may expose new foldable
// expressions that weren't foldable before.
type expressionReduction struct{}

func (expressionReduction) Name() string  { return "ExpressionReduction" }
func (expressionReduction) Type() RuleType { return Always }
func (expressionReduction) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	switch t := g.Node(id).(type) {
	case *plan.Filter:
		changed := false
		out := make([]expr.Node, len(t.Conditions))
		for i, c := range t.Conditions {
			r := expr.Reduce(c)
			out[i] = r
			if !expr.IdentityEqual(r, c) {
				changed = true
			}
		}
		if !changed {
			return nil, false
		}
		return &plan.Filter{In: t.In, Conditions: out, Correlation: t.Correlation}, true
	case *plan.Project:
		changed := false
		out := make([]expr.Node, len(t.Outputs))
		for i, c := range t.Outputs {
			r := expr.Reduce(c)
			out[i] = r
			if !expr.IdentityEqual(r, c) {
				changed = true
			}
		}
		if !changed {
			return nil, false
		}
		return &plan.Project{In: t.In, Outputs: out, Correlation: t.Correlation}, true
	case *plan.Join:
		changed := false
		out := make([]expr.Node, len(t.Conditions))
		for i, c := range t.Conditions {
			r := expr.Reduce(c)
			out[i] = r
			if !expr.IdentityEqual(r, c) {
				changed = true
			}
		}
		if !changed {
			return nil, false
		}
		return &plan.Join{Type: t.Type, Left: t.Left, Right: t.Right, Conditions: out}, true
	}
	return nil, false
}

func sameCorrelationPtr(a, b *expr.CorrelationID) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// graphNumColumns is a small indirection so rule files don't need to
// import plan's unexported PropertyCache field directly.
func (ctx *Context) graphNumColumns(g *plan.Graph, id plan.NodeID) int {
	return g.Properties().NumColumns(g, id)
}
