package plan

import "github.com/queryplan-dev/qopt/expr"

// PulledUpPredicates returns the sorted, deduplicated list of scalar
// predicates known to hold over node id's output rows, computed per
// node kind as described in the property's contract.
func (c *PropertyCache) PulledUpPredicates(g *Graph, id NodeID) []expr.Node {
	if v, ok := c.get(id, tagPredicates); ok {
		return v.([]expr.Node)
	}
	n := g.Node(id)
	var out []expr.Node
	switch t := n.(type) {
	case *QueryRoot:
		if t.HasInput {
			out = append(out, c.PulledUpPredicates(g, t.Entry)...)
		}
	case *TableScan:
		// no CHECK constraints in this model
	case *Filter:
		out = append(out, c.PulledUpPredicates(g, t.In)...)
		out = append(out, t.Conditions...)
	case *SubqueryRoot:
		out = append(out, c.PulledUpPredicates(g, t.In)...)
	case *Project:
		for _, e := range c.PulledUpPredicates(g, t.In) {
			if lifted, ok := expr.LiftScalarExpr(e, t.Outputs); ok {
				out = append(out, lifted)
			}
		}
		out = append(out, projectEquivalencePredicates(t.Outputs, false)...)
		out = append(out, projectEquivalencePredicates(t.Outputs, true)...)
	case *Join:
		left := c.PulledUpPredicates(g, t.Left)
		right := c.PulledUpPredicates(g, t.Right)
		leftSize := c.NumColumns(g, t.Left)
		if t.Type == Inner {
			out = append(out, t.Conditions...)
		}
		leftKeep, rightKeep := joinSideFilters(t.Type)
		for _, p := range left {
			if leftKeep(p) {
				out = append(out, p)
			}
		}
		for _, p := range right {
			if rightKeep(p) {
				out = append(out, expr.ShiftInputRefs(p, leftSize))
			}
		}
	case *Aggregate:
		colMap := columnMapFromGroupKey(t.GroupKey)
		for _, e := range c.PulledUpPredicates(g, t.In) {
			if mapped, ok := expr.ApplyColumnMap(e, colMap); ok {
				out = append(out, mapped)
			}
		}
		groupKeyLen := len(t.GroupKey)
		for i := range t.Aggregates {
			for j := 0; j < i; j++ {
				if t.Aggregates[i].Equals(t.Aggregates[j]) {
					out = append(out, expr.NewBinaryOp(expr.OpRawEq,
						expr.NewInputRef(groupKeyLen+j), expr.NewInputRef(groupKeyLen+i)))
				}
			}
		}
	case *Union:
		if len(t.Inputs) > 0 {
			common := c.PulledUpPredicates(g, t.Inputs[0])
			for _, in := range t.Inputs[1:] {
				common = intersectExprLists(common, c.PulledUpPredicates(g, in))
			}
			out = append(out, common...)
		}
	case *Apply:
		leftSize := c.NumColumns(g, t.Left)
		out = append(out, c.PulledUpPredicates(g, t.Left)...)
		rightKeep := applyRightFilter(t.Type)
		for _, p := range c.PulledUpPredicates(g, t.Right) {
			if rightKeep(p) {
				out = append(out, expr.ShiftInputRefs(p, leftSize))
			}
		}
	default:
		panic("plan: PulledUpPredicates: unhandled node kind")
	}

	var filtered []expr.Node
	for _, e := range out {
		if !expr.IsLiteral(e) {
			filtered = append(filtered, e)
		}
	}
	filtered = sortExprsUnique(filtered)
	c.set(id, tagPredicates, filtered)
	return filtered
}

func columnMapFromGroupKey(groupKey []int) map[int]int {
	m := make(map[int]int, len(groupKey))
	for i, k := range groupKey {
		m[k] = i
	}
	return m
}

func joinSideFilters(t JoinType) (left, right func(expr.Node) bool) {
	alwaysTrue := func(expr.Node) bool { return true }
	alwaysFalse := func(expr.Node) bool { return false }
	switch t {
	case Semi, Anti, Inner:
		return alwaysTrue, alwaysTrue
	case LeftOuter:
		return alwaysTrue, expr.IsRawColumnEquivalence
	case RightOuter:
		return expr.IsRawColumnEquivalence, alwaysTrue
	case FullOuter:
		return alwaysFalse, alwaysFalse
	default:
		return alwaysFalse, alwaysFalse
	}
}

func applyRightFilter(t ApplyType) func(expr.Node) bool {
	if t == ApplyLeftOuter {
		return expr.IsRawColumnEquivalence
	}
	return func(expr.Node) bool { return true }
}

// projectEquivalencePredicates is the pair of extra inference passes a
// Project performs: for each output position i, it tries to restate
// outputs[i] in terms of the OTHER output positions; when that
// succeeds, `InputRef(i) RawEq rewritten` is a predicate that always
// holds. excludeEqual additionally drops candidate positions whose
// expression is syntactically identical to outputs[i] (the second,
// broader pass), catching cases the first pass misses such as
// [ref_0, concat(ref_0, ref_1), ref_1, concat(ref_0, ref_1)].
func projectEquivalencePredicates(outputs []expr.Node, excludeEqual bool) []expr.Node {
	var out []expr.Node
	for i, e := range outputs {
		m := map[expr.Node]int{}
		for j, other := range outputs {
			if j == i {
				continue
			}
			if excludeEqual && other.Equals(e) {
				continue
			}
			m[other] = j
		}
		if rewritten, ok := expr.LiftScalarExprExcluding(e, m); ok {
			out = append(out, expr.NewBinaryOp(expr.OpRawEq, expr.NewInputRef(i), rewritten))
		}
	}
	return out
}

func intersectExprLists(a, b []expr.Node) []expr.Node {
	var out []expr.Node
	for _, x := range a {
		for _, y := range b {
			if x.Equals(y) {
				out = append(out, x)
				break
			}
		}
	}
	return out
}
