package optimize

import (
	"github.com/queryplan-dev/qopt/expr"
	"github.com/queryplan-dev/qopt/plan"
)

// filterProjectTranspose pushes Filter(Project(x, outs), conds) down
// to Project(Filter(x, conds'), outs) whenever every condition can be
// dereferenced in terms of x's columns, so a later pass sees the
// filter closer to the scan it can prune against — the teacher's
// filterpushdown applied to this DAG's explicit node shapes.
type filterProjectTranspose struct{}

func (filterProjectTranspose) Name() string   { return "FilterProjectTranspose" }
func (filterProjectTranspose) Type() RuleType { return BottomUp }
func (filterProjectTranspose) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok || f.Correlation != nil {
		return nil, false
	}
	p, ok := g.Node(f.In).(*plan.Project)
	if !ok || p.Correlation != nil {
		return nil, false
	}
	rewritten := make([]expr.Node, len(f.Conditions))
	for i, c := range f.Conditions {
		rewritten[i] = expr.Dereference(c, p.Outputs)
	}
	newFilter := g.Filter(p.In, rewritten, nil)
	return &plan.Project{In: newFilter, Outputs: p.Outputs, Correlation: nil}, true
}

// unionMerge collapses a Union directly over other Unions into one
// flat Union, the teacher's "flatten left-to-right bindings" idea
// applied to this model's explicit n-ary Union node.
type unionMerge struct{}

func (unionMerge) Name() string   { return "UnionMerge" }
func (unionMerge) Type() RuleType { return BottomUp }
func (unionMerge) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	u, ok := g.Node(id).(*plan.Union)
	if !ok {
		return nil, false
	}
	var flat []plan.NodeID
	changed := false
	for _, in := range u.Inputs {
		if inner, ok := g.Node(in).(*plan.Union); ok {
			flat = append(flat, inner.Inputs...)
			changed = true
		} else {
			flat = append(flat, in)
		}
	}
	if !changed {
		return nil, false
	}
	return &plan.Union{Inputs: flat}, true
}

// identityJoin rewrites an Inner join whose condition set is empty and
// whose right side is known (via Keys) to contribute at most one row
// overall into a Project over the left side alone — a degenerate case
// that can appear after JoinPruning removes every join condition.
type identityJoin struct{}

func (identityJoin) Name() string   { return "IdentityJoin" }
func (identityJoin) Type() RuleType { return BottomUp }
func (identityJoin) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	j, ok := g.Node(id).(*plan.Join)
	if !ok || j.Type != plan.Inner || len(j.Conditions) != 0 {
		return nil, false
	}
	rightKeys := g.Properties().Keys(g, j.Right)
	oneRow := false
	for _, k := range rightKeys {
		if len(k.Key) == 0 && k.UniqueKey() {
			oneRow = true
			break
		}
	}
	if !oneRow {
		return nil, false
	}
	leftWidth := g.Properties().NumColumns(g, j.Left)
	outs := make([]expr.Node, leftWidth)
	for i := range outs {
		outs[i] = expr.NewInputRef(i)
	}
	return &plan.Project{In: j.Left, Outputs: outs}, true
}

// aggregateRemove drops an Aggregate entirely when Keys already
// certifies its input has at most one row per group-key value: the
// aggregation can't change row count or grouping, so only the
// aggregate expressions themselves need computing over the
// (already-unique) input, which degenerates to forwarding each
// aggregate's sole operand.
type aggregateRemove struct{}

func (aggregateRemove) Name() string   { return "AggregateRemove" }
func (aggregateRemove) Type() RuleType { return BottomUp }
func (aggregateRemove) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	a, ok := g.Node(id).(*plan.Aggregate)
	if !ok {
		return nil, false
	}
	inputKeys := g.Properties().Keys(g, a.In)
	groupIsKey := false
	for _, k := range inputKeys {
		if k.UniqueKey() && isSubsetOfGroupKey(k, a.GroupKey) {
			groupIsKey = true
			break
		}
	}
	if !groupIsKey {
		return nil, false
	}
	outs := make([]expr.Node, 0, len(a.GroupKey)+len(a.Aggregates))
	for _, k := range a.GroupKey {
		outs = append(outs, expr.NewInputRef(k))
	}
	for _, agg := range a.Aggregates {
		if agg.Op == plan.AggCount || agg.Op == plan.AggCountDistinct || len(agg.Operands) != 1 {
			return nil, false // count has no single forwardable operand
		}
		outs = append(outs, expr.NewInputRef(agg.Operands[0]))
	}
	return &plan.Project{In: a.In, Outputs: outs}, true
}

func isSubsetOfGroupKey(k plan.KeyBounds, groupKey []int) bool {
	group := map[int]bool{}
	for _, g := range groupKey {
		group[g] = true
	}
	for _, e := range k.Key {
		ref, ok := e.(*expr.InputRef)
		if !ok || !group[ref.Index] {
			return false
		}
	}
	return len(k.Key) > 0
}
