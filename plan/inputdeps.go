package plan

import "golang.org/x/exp/slices"

// InputDependencies returns the sorted set of input-row column indices
// actually consumed by node id — the union of InputRef indices over
// every expression it carries directly. Pass-through nodes that have
// no expressions of their own but forward every input column
// (Union/Apply/SubqueryRoot/QueryRoot) report the full range.
func (c *PropertyCache) InputDependencies(g *Graph, id NodeID) []int {
	if v, ok := c.get(id, tagInputDeps); ok {
		return v.([]int)
	}
	n := g.Node(id)
	var out []int
	switch t := n.(type) {
	case *TableScan:
		out = nil
	case *Aggregate:
		seen := map[int]bool{}
		for _, k := range t.GroupKey {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		for _, a := range t.Aggregates {
			for _, op := range a.Operands {
				if !seen[op] {
					seen[op] = true
					out = append(out, op)
				}
			}
		}
		slices.Sort(out)
	case *Union:
		out = fullRange(c.NumColumns(g, firstOrZero(t.Inputs)))
	case *Apply:
		out = fullRange(c.NumColumns(g, t.Left) + c.NumColumns(g, t.Right))
	case *SubqueryRoot:
		out = fullRange(c.NumColumns(g, t.In))
	case *QueryRoot:
		if t.HasInput {
			out = fullRange(c.NumColumns(g, t.Entry))
		}
	default:
		seen := map[int]bool{}
		for _, e := range ownExpressions(n) {
			for _, idx := range inputRefIndices(e) {
				if !seen[idx] {
					seen[idx] = true
					out = append(out, idx)
				}
			}
		}
		slices.Sort(out)
	}
	c.set(id, tagInputDeps, out)
	return out
}

func fullRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func firstOrZero(ids []NodeID) NodeID {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}
