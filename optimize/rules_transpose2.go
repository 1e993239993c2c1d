package optimize

import (
	"github.com/queryplan-dev/qopt/expr"
	"github.com/queryplan-dev/qopt/plan"
)

// filterJoinTranspose pushes a Filter standing over an Inner join down
// onto whichever side(s) its conditions reference exclusively, the
// Join-shaped counterpart of filterProjectTranspose: a condition
// touching only the left half of the combined row moves to a Filter
// under Left, one touching only the right half moves (re-indexed) to a
// Filter under Right, and anything mixing both sides stays above the
// join.
type filterJoinTranspose struct{}

func (filterJoinTranspose) Name() string   { return "FilterJoinTranspose" }
func (filterJoinTranspose) Type() RuleType { return BottomUp }
func (filterJoinTranspose) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok || f.Correlation != nil {
		return nil, false
	}
	j, ok := g.Node(f.In).(*plan.Join)
	if !ok || j.Type != plan.Inner {
		return nil, false
	}
	leftSize := ctx.graphNumColumns(g, j.Left)
	rightSize := ctx.graphNumColumns(g, j.Right)

	var stay, toLeft, toRight []expr.Node
	for _, c := range f.Conditions {
		switch {
		case refsWithin(c, 0, leftSize):
			toLeft = append(toLeft, c)
		case refsWithin(c, leftSize, leftSize+rightSize):
			toRight = append(toRight, expr.ShiftInputRefs(c, -leftSize))
		default:
			stay = append(stay, c)
		}
	}
	if len(toLeft) == 0 && len(toRight) == 0 {
		return nil, false
	}
	left, right := j.Left, j.Right
	if len(toLeft) > 0 {
		left = g.Filter(left, toLeft, nil)
	}
	if len(toRight) > 0 {
		right = g.Filter(right, toRight, nil)
	}
	newJoin := g.Join(j.Type, left, right, j.Conditions)
	if len(stay) == 0 {
		return g.Node(newJoin), true
	}
	return &plan.Filter{In: newJoin, Conditions: stay}, true
}

// filterAggregateTranspose pushes the part of a Filter that only
// restricts the group-key columns of the Aggregate directly below it
// down onto the Aggregate's own input, restated in terms of the
// ungrouped row via the map from group-key position i to input column
// GroupKey[i] — the inverse of the map plan.ColumnMapForLifting builds.
type filterAggregateTranspose struct{}

func (filterAggregateTranspose) Name() string   { return "FilterAggregateTranspose" }
func (filterAggregateTranspose) Type() RuleType { return BottomUp }
func (filterAggregateTranspose) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok || f.Correlation != nil {
		return nil, false
	}
	a, ok := g.Node(f.In).(*plan.Aggregate)
	if !ok {
		return nil, false
	}
	groupWidth := len(a.GroupKey)
	colMap := make(map[int]int, groupWidth)
	for i, c := range a.GroupKey {
		colMap[i] = c
	}
	var pushed, stay []expr.Node
	for _, c := range f.Conditions {
		if refsWithin(c, 0, groupWidth) {
			if rewritten, ok := expr.ApplyColumnMap(c, colMap); ok {
				pushed = append(pushed, rewritten)
				continue
			}
		}
		stay = append(stay, c)
	}
	if len(pushed) == 0 {
		return nil, false
	}
	newIn := g.Filter(a.In, pushed, nil)
	newAgg := g.Aggregate(newIn, a.GroupKey, a.Aggregates)
	if len(stay) == 0 {
		return g.Node(newAgg), true
	}
	return &plan.Filter{In: newAgg, Conditions: stay}, true
}

// filterApplyTranspose pushes an uncorrelated Filter's conditions that
// only reference Apply's left (outer) columns down onto Left, so a
// later pass sees them next to whatever scan or join produced those
// columns rather than stranded above the correlated right side.
type filterApplyTranspose struct{}

func (filterApplyTranspose) Name() string   { return "FilterApplyTranspose" }
func (filterApplyTranspose) Type() RuleType { return BottomUp }
func (filterApplyTranspose) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok || f.Correlation != nil {
		return nil, false
	}
	ap, ok := g.Node(f.In).(*plan.Apply)
	if !ok {
		return nil, false
	}
	leftSize := ctx.graphNumColumns(g, ap.Left)
	var toLeft, stay []expr.Node
	for _, c := range f.Conditions {
		if refsWithin(c, 0, leftSize) {
			toLeft = append(toLeft, c)
		} else {
			stay = append(stay, c)
		}
	}
	if len(toLeft) == 0 {
		return nil, false
	}
	newLeft := g.Filter(ap.Left, toLeft, nil)
	newApply := g.Apply(ap.Correlation, newLeft, ap.Right, ap.Type)
	if len(stay) == 0 {
		return g.Node(newApply), true
	}
	return &plan.Filter{In: newApply, Conditions: stay}, true
}

// aggregateProjectTranspose merges a pure column-permutation Project
// directly below an Aggregate into the Aggregate, restating GroupKey
// and every AggregateExpr's Operands through the permutation. It
// requires isPurePermutation rather than "every output is an InputRef"
// so it never re-absorbs a Project a pruning or dedup rule narrowed or
// widened on purpose (see isPurePermutation's doc comment).
type aggregateProjectTranspose struct{}

func (aggregateProjectTranspose) Name() string   { return "AggregateProjectTranspose" }
func (aggregateProjectTranspose) Type() RuleType { return BottomUp }
func (aggregateProjectTranspose) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	a, ok := g.Node(id).(*plan.Aggregate)
	if !ok {
		return nil, false
	}
	p, ok := g.Node(a.In).(*plan.Project)
	if !ok || p.Correlation != nil {
		return nil, false
	}
	width := ctx.graphNumColumns(g, p.In)
	if !isPurePermutation(p.Outputs, width) {
		return nil, false
	}
	remap := func(i int) int {
		return p.Outputs[i].(*expr.InputRef).Index
	}
	newGroupKey := make([]int, len(a.GroupKey))
	for i, c := range a.GroupKey {
		newGroupKey[i] = remap(c)
	}
	newAggs := make([]*plan.AggregateExpr, len(a.Aggregates))
	for i, agg := range a.Aggregates {
		ops := make([]int, len(agg.Operands))
		for j, o := range agg.Operands {
			ops[j] = remap(o)
		}
		newAggs[i] = plan.NewAggregateExpr(agg.Op, ops...)
	}
	return &plan.Aggregate{In: p.In, GroupKey: sortUniqueInts(newGroupKey), Aggregates: newAggs}, true
}

// joinProjectTranspose merges a pure column-permutation Project
// sitting directly under one side of a Join into the Join itself,
// restating the join conditions over the wider underlying row and
// restoring the original column order with an enclosing Project — the
// same "splice out the intermediate step" shape projectMerge uses for
// two stacked Projects, generalized to a Join standing between them.
// Semi/Anti joins never emit their right side, so merging a Project
// under Right there needs no restoring wrapper at all.
type joinProjectTranspose struct{}

func (joinProjectTranspose) Name() string   { return "JoinProjectTranspose" }
func (joinProjectTranspose) Type() RuleType { return BottomUp }
func (joinProjectTranspose) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	j, ok := g.Node(id).(*plan.Join)
	if !ok {
		return nil, false
	}
	if repl, ok := mergeProjectIntoJoinSide(ctx, g, j, true); ok {
		return repl, true
	}
	if repl, ok := mergeProjectIntoJoinSide(ctx, g, j, false); ok {
		return repl, true
	}
	return nil, false
}

func mergeProjectIntoJoinSide(ctx *Context, g *plan.Graph, j *plan.Join, left bool) (plan.Node, bool) {
	side := j.Right
	if left {
		side = j.Left
	}
	p, ok := g.Node(side).(*plan.Project)
	if !ok || p.Correlation != nil {
		return nil, false
	}
	underWidth := ctx.graphNumColumns(g, p.In)
	if !isPurePermutation(p.Outputs, underWidth) {
		return nil, false
	}
	refs := make([]int, len(p.Outputs))
	for i, e := range p.Outputs {
		refs[i] = e.(*expr.InputRef).Index
	}
	oldLeftSize := ctx.graphNumColumns(g, j.Left)
	rightSize := ctx.graphNumColumns(g, j.Right)

	colMap := map[int]int{}
	if left {
		for i, r := range refs {
			colMap[i] = r
		}
		for i := 0; i < rightSize; i++ {
			colMap[oldLeftSize+i] = underWidth + i
		}
	} else {
		for i := 0; i < oldLeftSize; i++ {
			colMap[i] = i
		}
		for i, r := range refs {
			colMap[oldLeftSize+i] = oldLeftSize + r
		}
	}
	newConds := make([]expr.Node, len(j.Conditions))
	for i, c := range j.Conditions {
		m, ok := expr.ApplyColumnMap(c, colMap)
		if !ok {
			return nil, false
		}
		newConds[i] = m
	}

	newLeft, newRight := j.Left, j.Right
	if left {
		newLeft = p.In
	} else {
		newRight = p.In
	}
	newJoin := g.Join(j.Type, newLeft, newRight, newConds)

	if !left && !j.Type.ProjectsRight() {
		return g.Node(newJoin), true
	}

	var outs []expr.Node
	if left {
		emitted := rightSize
		if !j.Type.ProjectsRight() {
			emitted = 0
		}
		outs = make([]expr.Node, len(refs)+emitted)
		for i, r := range refs {
			outs[i] = expr.NewInputRef(r)
		}
		for i := 0; i < emitted; i++ {
			outs[len(refs)+i] = expr.NewInputRef(underWidth + i)
		}
	} else {
		outs = make([]expr.Node, oldLeftSize+len(refs))
		for i := 0; i < oldLeftSize; i++ {
			outs[i] = expr.NewInputRef(i)
		}
		for i, r := range refs {
			outs[oldLeftSize+i] = expr.NewInputRef(oldLeftSize + r)
		}
	}
	return &plan.Project{In: newJoin, Outputs: outs}, true
}
