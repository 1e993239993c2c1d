package optimize

import (
	"github.com/queryplan-dev/qopt/expr"
	"github.com/queryplan-dev/qopt/plan"
)

// representativeFunc builds the substitution function expr.Normalize
// wants from a node's equivalence classes: for any expression that is
// a known member of some class, it names that class's lexicographically
// first member (EquivalenceClasses already keeps Members sorted by
// String()) as the canonical form. Substitution is sound for both
// Eq- and RawEq-derived classes, since either kind means the two sides
// carry the same value on every row the owning node produces.
func representativeFunc(classes []*plan.EquivalenceClass) func(expr.Node) (expr.Node, bool) {
	return func(n expr.Node) (expr.Node, bool) {
		for _, cls := range classes {
			for _, m := range cls.Members {
				if !m.Equals(n) {
					continue
				}
				best := cls.Members[0]
				if best.Equals(n) {
					return nil, false
				}
				return best, true
			}
		}
		return nil, false
	}
}

// filterNormalization rewrites every sub-expression of a Filter's own
// conditions to its equivalence class's canonical representative,
// e.g. turning Filter({a = b, f(b) > 0}) into Filter({a = b, f(a) > 0})
// (an equality that would collapse into "a = a" is kept as written)
// so two filters that differ only in which side of a known equality
// they spell out converge to the same structural shape (and so dedup
// via the graph's normal G4 mechanism, or compare equal to CteDiscovery's
// canonicalized siblings).
type filterNormalization struct{}

func (filterNormalization) Name() string   { return "FilterNormalization" }
func (filterNormalization) Type() RuleType { return Always }
func (filterNormalization) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	f, ok := g.Node(id).(*plan.Filter)
	if !ok {
		return nil, false
	}
	classes := g.Properties().EquivalenceClasses(g, id)
	if len(classes) == 0 {
		return nil, false
	}
	rep := representativeFunc(classes)
	changed := false
	out := make([]expr.Node, len(f.Conditions))
	for i, c := range f.Conditions {
		n := expr.Normalize(c, rep)
		if b, ok := n.(*expr.BinaryOp); ok && (b.Op == expr.OpEq || b.Op == expr.OpRawEq) && b.Left.Equals(b.Right) {
			n = c
		}
		out[i] = n
		if !expr.IdentityEqual(n, c) {
			changed = true
		}
	}
	if !changed {
		return nil, false
	}
	return &plan.Filter{In: f.In, Conditions: out, Correlation: f.Correlation}, true
}

// projectNormalization rewrites a Project's outputs to its input's
// equivalence-class representatives, the Project-shaped counterpart of
// filterNormalization: two Projects built independently from the same
// underlying equalities but naming different sides of them converge to
// the same canonical output list.
type projectNormalization struct{}

func (projectNormalization) Name() string   { return "ProjectNormalization" }
func (projectNormalization) Type() RuleType { return Always }
func (projectNormalization) ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (plan.Node, bool) {
	p, ok := g.Node(id).(*plan.Project)
	if !ok {
		return nil, false
	}
	classes := g.Properties().EquivalenceClasses(g, p.In)
	if len(classes) == 0 {
		return nil, false
	}
	rep := representativeFunc(classes)
	changed := false
	out := make([]expr.Node, len(p.Outputs))
	for i, e := range p.Outputs {
		n := expr.Normalize(e, rep)
		out[i] = n
		if !expr.IdentityEqual(n, e) {
			changed = true
		}
	}
	if !changed {
		return nil, false
	}
	return &plan.Project{In: p.In, Outputs: out, Correlation: p.Correlation}, true
}
