package plan

import (
	"golang.org/x/exp/slices"

	"github.com/queryplan-dev/qopt/expr"
)

// Subqueries returns the sorted set of SubqueryRoot ids referenced by
// node id's own expressions (a single-node property: it does not look
// at descendants).
func (c *PropertyCache) Subqueries(g *Graph, id NodeID) []NodeID {
	if v, ok := c.get(id, tagSubqueries); ok {
		return v.([]NodeID)
	}
	n := g.Node(id)
	var out []NodeID
	seen := map[NodeID]bool{}
	for _, e := range ownExpressions(n) {
		for _, sq := range expr.Subqueries(e) {
			if !seen[sq] {
				seen[sq] = true
				out = append(out, sq)
			}
		}
	}
	slices.Sort(out)
	c.set(id, tagSubqueries, out)
	return out
}

// SubgraphSubqueries unions Subqueries(n) over n and every descendant,
// used by subquery garbage collection to decide which SubqueryRoots
// are still reachable from the live plan.
func (c *PropertyCache) SubgraphSubqueries(g *Graph, id NodeID) []NodeID {
	if v, ok := c.get(id, tagSubgraphSubqueries); ok {
		return v.([]NodeID)
	}
	n := g.Node(id)
	seen := map[NodeID]bool{}
	var out []NodeID
	add := func(ids []NodeID) {
		for _, i := range ids {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	add(c.Subqueries(g, id))
	for i := 0; i < n.NumInputs(); i++ {
		add(c.SubgraphSubqueries(g, n.Input(i)))
	}
	slices.Sort(out)
	c.set(id, tagSubgraphSubqueries, out)
	return out
}
