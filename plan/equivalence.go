package plan

import (
	"golang.org/x/exp/slices"

	"github.com/queryplan-dev/qopt/expr"
)

// EquivalenceClass is a set of row-valued expressions known to compare
// equal on every row node id produces, derived from its pulled-up
// Eq/RawEq predicates. NullRejecting is true when the class came from
// an Eq comparison (which holds only when both sides are non-NULL and
// equal) rather than only a RawEq one (which also holds when both
// sides are NULL).
type EquivalenceClass struct {
	Members       []expr.Node
	NullRejecting bool
}

func (e *EquivalenceClass) contains(n expr.Node) bool {
	for _, m := range e.Members {
		if m.Equals(n) {
			return true
		}
	}
	return false
}

// EquivalenceClasses groups the sides of node id's Eq/RawEq pulled-up
// predicates into transitively-closed classes.
func (c *PropertyCache) EquivalenceClasses(g *Graph, id NodeID) []*EquivalenceClass {
	if v, ok := c.get(id, tagEquivClasses); ok {
		return v.([]*EquivalenceClass)
	}
	var classes []*EquivalenceClass
	for _, p := range c.PulledUpPredicates(g, id) {
		b, ok := p.(*expr.BinaryOp)
		if !ok || (b.Op != expr.OpEq && b.Op != expr.OpRawEq) {
			continue
		}
		nullRejecting := b.Op == expr.OpEq

		var matches []int
		for i, cls := range classes {
			if cls.contains(b.Left) || cls.contains(b.Right) {
				matches = append(matches, i)
			}
		}
		switch len(matches) {
		case 0:
			classes = append(classes, &EquivalenceClass{
				Members:       []expr.Node{b.Left, b.Right},
				NullRejecting: nullRejecting,
			})
		case 1:
			cls := classes[matches[0]]
			addIfAbsent(cls, b.Left)
			addIfAbsent(cls, b.Right)
			cls.NullRejecting = cls.NullRejecting || nullRejecting
		default:
			merged := &EquivalenceClass{NullRejecting: nullRejecting}
			kept := make([]*EquivalenceClass, 0, len(classes)-len(matches)+1)
			matchSet := map[int]bool{}
			for _, m := range matches {
				matchSet[m] = true
			}
			for i, cls := range classes {
				if matchSet[i] {
					for _, m := range cls.Members {
						addIfAbsent(merged, m)
					}
					merged.NullRejecting = merged.NullRejecting || cls.NullRejecting
				} else {
					kept = append(kept, cls)
				}
			}
			addIfAbsent(merged, b.Left)
			addIfAbsent(merged, b.Right)
			classes = append(kept, merged)
		}
	}
	for _, cls := range classes {
		slices.SortFunc(cls.Members, func(a, b expr.Node) bool { return a.String() < b.String() })
	}
	c.set(id, tagEquivClasses, classes)
	return classes
}

func addIfAbsent(cls *EquivalenceClass, n expr.Node) {
	if !cls.contains(n) {
		cls.Members = append(cls.Members, n)
	}
}

// sameEquivalenceClass reports whether a and b are known-equal members
// of some class of id's equivalence classes.
func (c *PropertyCache) sameEquivalenceClass(g *Graph, id NodeID, a, b expr.Node) bool {
	for _, cls := range c.EquivalenceClasses(g, id) {
		if cls.contains(a) && cls.contains(b) {
			return true
		}
	}
	return false
}
