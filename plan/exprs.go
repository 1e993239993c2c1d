package plan

import "github.com/queryplan-dev/qopt/expr"

// ownExpressions returns the scalar expressions a node carries
// directly (not its descendants'), the set single-node properties
// (subqueries, correlated refs) are computed over.
func ownExpressions(n Node) []expr.Node {
	switch t := n.(type) {
	case *Filter:
		return t.Conditions
	case *Project:
		return t.Outputs
	case *Join:
		return t.Conditions
	default:
		return nil
	}
}

// inputRefIndices collects the distinct InputRef indices referenced
// anywhere in e.
func inputRefIndices(e expr.Node) []int {
	var out []int
	expr.Walk(inputRefCollector{out: &out}, e)
	return out
}

type inputRefCollector struct {
	out *[]int
}

func (v inputRefCollector) Visit(n expr.Node) expr.Visitor {
	if n == nil {
		return v
	}
	if ref, ok := n.(*expr.InputRef); ok {
		*v.out = append(*v.out, ref.Index)
	}
	return v
}
