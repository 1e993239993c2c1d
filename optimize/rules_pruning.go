package optimize

import (
	"github.com/queryplan-dev/qopt/expr"
	"github.com/queryplan-dev/qopt/plan"
)

// aggregatePruning drops an Aggregate's output columns (group-key
// entries or whole AggregateExprs) that the Project directly above
// never reads, replacing the Aggregate with a narrower one and
// remapping the Project's outputs onto the new column positions.
type aggregatePruning struct{}

func (aggregatePruning) Name() string   { return "AggregatePruning" }
func (aggregatePruning) Type() RuleType { return TopDown }
func (aggregatePruning) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	p, ok := g.Node(id).(*plan.Project)
	if !ok || p.Correlation != nil {
		return nil, false
	}
	a, ok := g.Node(p.In).(*plan.Aggregate)
	if !ok {
		return nil, false
	}
	if len(g.Parents(p.In)) != 1 {
		return nil, false
	}
	width := len(a.GroupKey) + len(a.Aggregates)
	used := sortUniqueInts(inputRefIndices(joinExprs(p.Outputs, nil)))
	if len(used) >= width {
		return nil, false
	}
	colMap, _ := plan.ColumnMapForPushdown(used)
	newGroupKey := make([]int, 0, len(a.GroupKey))
	newAggs := make([]*plan.AggregateExpr, 0, len(a.Aggregates))
	for i, k := range a.GroupKey {
		if _, ok := colMap[i]; ok {
			newGroupKey = append(newGroupKey, k)
		}
	}
	for i, agg := range a.Aggregates {
		if _, ok := colMap[len(a.GroupKey)+i]; ok {
			newAggs = append(newAggs, agg)
		}
	}
	newOutputs := make([]expr.Node, len(p.Outputs))
	for i, e := range p.Outputs {
		remapped, ok := expr.ApplyColumnMap(e, colMap)
		if !ok {
			return nil, false
		}
		newOutputs[i] = remapped
	}
	newAgg := g.Aggregate(a.In, newGroupKey, newAggs)
	return &plan.Project{In: newAgg, Outputs: newOutputs}, true
}

// joinPruning shrinks both sides of a Join sitting under a Project to
// exactly the columns the Project's outputs and the Join's own
// conditions actually use, splicing a narrowing Project under each
// side and remapping the Join conditions and the outer Project's
// outputs onto the compacted row.
type joinPruning struct{}

func (joinPruning) Name() string   { return "JoinPruning" }
func (joinPruning) Type() RuleType { return TopDown }
func (joinPruning) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	p, ok := g.Node(id).(*plan.Project)
	if !ok || p.Correlation != nil {
		return nil, false
	}
	j, ok := g.Node(p.In).(*plan.Join)
	if !ok {
		return nil, false
	}
	if len(g.Parents(p.In)) != 1 {
		return nil, false
	}
	leftSize := ctx.graphNumColumns(g, j.Left)
	rightSize := ctx.graphNumColumns(g, j.Right)
	total := leftSize + rightSize

	used := map[int]bool{}
	for _, idx := range inputRefIndices(joinExprs(p.Outputs, j.Conditions)) {
		used[idx] = true
	}
	// Semi/Anti never emit the right side, but its columns may still
	// be read by the join conditions themselves.
	var usedCols []int
	for i := 0; i < total; i++ {
		if used[i] {
			usedCols = append(usedCols, i)
		}
	}
	if len(usedCols) >= total {
		return nil, false
	}

	var leftUsed, rightUsed []int
	for _, c := range usedCols {
		if c < leftSize {
			leftUsed = append(leftUsed, c)
		} else {
			rightUsed = append(rightUsed, c-leftSize)
		}
	}
	if len(leftUsed) == leftSize && len(rightUsed) == rightSize {
		return nil, false
	}
	if len(leftUsed) == 0 {
		leftUsed = []int{0}
	}
	if len(rightUsed) == 0 {
		rightUsed = []int{0}
	}

	leftColMap, leftProj := plan.ColumnMapForPushdown(leftUsed)
	rightColMap, rightProj := plan.ColumnMapForPushdown(rightUsed)
	newLeft := j.Left
	if len(leftUsed) != leftSize {
		newLeft = g.Project(j.Left, leftProj, nil)
	}
	newRight := j.Right
	if len(rightUsed) != rightSize {
		newRight = g.Project(j.Right, rightProj, nil)
	}

	fullColMap := make(map[int]int, len(leftColMap)+len(rightColMap))
	for old, new := range leftColMap {
		fullColMap[old] = new
	}
	for old, new := range rightColMap {
		fullColMap[old+leftSize] = new + len(leftUsed)
	}
	newConds := make([]expr.Node, len(j.Conditions))
	for i, c := range j.Conditions {
		remapped, ok := expr.ApplyColumnMap(c, fullColMap)
		if !ok {
			return nil, false
		}
		newConds[i] = remapped
	}
	newOutputs := make([]expr.Node, len(p.Outputs))
	for i, e := range p.Outputs {
		remapped, ok := expr.ApplyColumnMap(e, fullColMap)
		if !ok {
			return nil, false
		}
		newOutputs[i] = remapped
	}
	newJoin := g.Join(j.Type, newLeft, newRight, newConds)
	return &plan.Project{In: newJoin, Outputs: newOutputs}, true
}

// unionPruning narrows a Union to the columns its parents actually
// use, pooled across every current parent at once (a Union is the one
// node kind column pruning must consider every parent of together,
// since two different Projects above the same Union may each need a
// different column subset — narrowing for one alone would break the
// other). A narrowing Project is spliced under every branch, and every
// parent Project is rewritten to read the compacted row; this is a
// full multi-pair Rule rather than a SingleReplacementRule for exactly
// that reason. If any parent is not a Project (so needs every column
// the Union has), the rule declines.
type unionPruning struct{}

func (unionPruning) Name() string   { return "UnionPruning" }
func (unionPruning) Type() RuleType { return BottomUp }
func (unionPruning) Apply(ctx *Context, g *plan.Graph, id plan.NodeID) ([]plan.Pair, bool) {
	u, ok := g.Node(id).(*plan.Union)
	if !ok || len(u.Inputs) == 0 {
		return nil, false
	}
	parents := g.Parents(id)
	if len(parents) == 0 {
		return nil, false
	}
	width := ctx.graphNumColumns(g, id)
	parentProjects := make(map[plan.NodeID]*plan.Project, len(parents))
	usedSet := map[int]bool{}
	for _, p := range parents {
		proj, ok := g.Node(p).(*plan.Project)
		if !ok || proj.Correlation != nil {
			return nil, false
		}
		parentProjects[p] = proj
		for _, idx := range inputRefIndices(joinExprs(proj.Outputs, nil)) {
			usedSet[idx] = true
		}
	}
	var used []int
	for i := 0; i < width; i++ {
		if usedSet[i] {
			used = append(used, i)
		}
	}
	if len(used) >= width {
		return nil, false
	}
	if len(used) == 0 {
		used = []int{0}
	}

	colMap, projection := plan.ColumnMapForPushdown(used)
	newBranches := make([]plan.NodeID, len(u.Inputs))
	for i, in := range u.Inputs {
		newBranches[i] = g.Project(in, projection, nil)
	}
	newUnion := g.Union(newBranches)

	pairs := make([]plan.Pair, 0, len(parents)+1)
	pairs = append(pairs, plan.Pair{Old: id, New: newUnion})
	for p, proj := range parentProjects {
		newOutputs := make([]expr.Node, len(proj.Outputs))
		for i, e := range proj.Outputs {
			remapped, ok := expr.ApplyColumnMap(e, colMap)
			if !ok {
				return nil, false
			}
			newOutputs[i] = remapped
		}
		newProjID := g.AddNode(&plan.Project{In: newUnion, Outputs: newOutputs, Correlation: proj.Correlation})
		pairs = append(pairs, plan.Pair{Old: p, New: newProjID})
	}
	return pairs, true
}

// applyPruning shrinks an Apply's CorrelationContext.Parameters list to
// only the outer columns its right (correlated) subgraph actually
// references, the Apply-shaped counterpart of column pruning: a
// parameter nothing below reads any more (typically left over after an
// earlier rewrite simplified the correlated side) is dropped.
type applyPruning struct{}

func (applyPruning) Name() string   { return "ApplyPruning" }
func (applyPruning) Type() RuleType { return BottomUp }
func (applyPruning) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	ap, ok := g.Node(id).(*plan.Apply)
	if !ok || len(ap.Correlation.Parameters) == 0 {
		return nil, false
	}
	refs := g.Properties().SubgraphCorrelatedRefs(g, ap.Right)
	used := map[int]bool{}
	for _, col := range refs[ap.Correlation.ID] {
		used[col] = true
	}
	var kept []int
	for _, p := range ap.Correlation.Parameters {
		if used[p] {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(ap.Correlation.Parameters) {
		return nil, false
	}
	return &plan.Apply{
		Correlation: plan.CorrelationContext{ID: ap.Correlation.ID, Parameters: kept},
		Left:        ap.Left,
		Right:       ap.Right,
		Type:        ap.Type,
	}, true
}

// pruneAggregateInput narrows an Aggregate's own input to the columns
// its GroupKey and Aggregates actually reference, the Aggregate-shaped
// counterpart of joinPruning: a splice-in Project under In keeps only
// the used columns, and GroupKey/Operands are remapped onto the
// compacted row.
type pruneAggregateInput struct{}

func (pruneAggregateInput) Name() string   { return "PruneAggregateInput" }
func (pruneAggregateInput) Type() RuleType { return BottomUp }
func (pruneAggregateInput) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	a, ok := g.Node(id).(*plan.Aggregate)
	if !ok {
		return nil, false
	}
	used := g.Properties().InputDependencies(g, id)
	width := ctx.graphNumColumns(g, a.In)
	if len(used) >= width {
		return nil, false
	}
	colMap, projection := plan.ColumnMapForPushdown(used)
	newGroupKey := make([]int, len(a.GroupKey))
	for i, k := range a.GroupKey {
		newGroupKey[i] = colMap[k]
	}
	newAggs := make([]*plan.AggregateExpr, len(a.Aggregates))
	for i, agg := range a.Aggregates {
		ops := make([]int, len(agg.Operands))
		for j, o := range agg.Operands {
			ops[j] = colMap[o]
		}
		newAggs[i] = plan.NewAggregateExpr(agg.Op, ops...)
	}
	newIn := g.Project(a.In, projection, nil)
	return &plan.Aggregate{In: newIn, GroupKey: newGroupKey, Aggregates: newAggs}, true
}
