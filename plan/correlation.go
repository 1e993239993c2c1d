package plan

import (
	"golang.org/x/exp/slices"

	"github.com/queryplan-dev/qopt/expr"
)

// CorrelatedRefSet maps a correlation scope to the sorted set of column
// indices of that scope referenced somewhere.
type CorrelatedRefSet map[expr.CorrelationID][]int

func (s CorrelatedRefSet) add(scope expr.CorrelationID, col int) {
	cols := s[scope]
	i := slices.Index(cols, col)
	if i >= 0 {
		return
	}
	cols = append(cols, col)
	slices.Sort(cols)
	s[scope] = cols
}

func (s CorrelatedRefSet) clone() CorrelatedRefSet {
	out := make(CorrelatedRefSet, len(s))
	for k, v := range s {
		out[k] = append([]int(nil), v...)
	}
	return out
}

func (s CorrelatedRefSet) merge(other CorrelatedRefSet) {
	for scope, cols := range other {
		for _, col := range cols {
			s.add(scope, col)
		}
	}
}

// CorrelatedRefs returns the correlated-column references contained
// directly in node id's own expressions, plus (transitively) those
// found inside any subquery plan id's expressions reference — a
// correlated reference inside a referenced subquery still targets a
// scope visible from id's position in the graph.
func (c *PropertyCache) CorrelatedRefs(g *Graph, id NodeID) CorrelatedRefSet {
	if v, ok := c.get(id, tagCorrelatedRefs); ok {
		return v.(CorrelatedRefSet)
	}
	n := g.Node(id)
	result := CorrelatedRefSet{}
	for _, e := range ownExpressions(n) {
		for _, ref := range expr.CorrelatedInputRefs(e) {
			result.add(ref.Correlation, ref.Index)
		}
	}
	for _, sq := range c.Subqueries(g, id) {
		result.merge(c.SubgraphCorrelatedRefs(g, sq))
	}
	c.set(id, tagCorrelatedRefs, result)
	return result
}

// SubgraphCorrelatedRefs aggregates CorrelatedRefs through id's inputs,
// stripping the scope an Apply node itself introduces from what its
// right (correlated) input contributes upward, since that scope is
// resolved at the Apply and invisible above it.
func (c *PropertyCache) SubgraphCorrelatedRefs(g *Graph, id NodeID) CorrelatedRefSet {
	if v, ok := c.get(id, tagSubgraphCorrelatedRefs); ok {
		return v.(CorrelatedRefSet)
	}
	n := g.Node(id)
	result := c.CorrelatedRefs(g, id).clone()
	if ap, ok := n.(*Apply); ok {
		result.merge(c.SubgraphCorrelatedRefs(g, ap.Left))
		right := c.SubgraphCorrelatedRefs(g, ap.Right)
		stripped := CorrelatedRefSet{}
		for scope, cols := range right {
			if scope == ap.Correlation.ID {
				continue
			}
			stripped[scope] = cols
		}
		result.merge(stripped)
	} else {
		for i := 0; i < n.NumInputs(); i++ {
			result.merge(c.SubgraphCorrelatedRefs(g, n.Input(i)))
		}
	}
	c.set(id, tagSubgraphCorrelatedRefs, result)
	return result
}
