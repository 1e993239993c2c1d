// Package optimize drives the fix-point rewrite loop over a plan.Graph:
// a registry of Rules, each scoped to where in the graph it fires, is
// applied repeatedly until no rule produces a change or the
// generation counter's iteration budget is exhausted.
package optimize

import (
	"github.com/queryplan-dev/qopt/plan"
)

// RuleType scopes where in the graph a Rule is tried.
type RuleType uint8

const (
	// RootOnly applies a rule only at the QueryRoot's entry node.
	RootOnly RuleType = iota
	// TopDown applies a rule once per node, visiting parents before
	// children.
	TopDown
	// BottomUp applies a rule once per node, visiting children before
	// parents — the common case, since most rewrites want their
	// inputs already simplified.
	BottomUp
	// Always applies a rule to every node on every pass regardless of
	// traversal order, for rules cheap enough to re-check freely
	// (e.g. ExpressionReduction).
	Always
)

// Rule inspects a single node and, if it applies, proposes replacing
// it (and optionally other nodes reachable from it) with a rewritten
// subgraph.
type Rule interface {
	// Name identifies the rule in logs, explain annotations and the
	// rule registry.
	Name() string
	// Type scopes when this rule is tried during a traversal.
	Type() RuleType
	// Apply inspects node id in g and returns the set of (old, new)
	// id pairs to hand to Graph.ReplaceNodes, or ok=false if the rule
	// does not apply at id.
	Apply(ctx *Context, g *plan.Graph, id plan.NodeID) (pairs []plan.Pair, ok bool)
}

// SingleReplacementRule is the common case: a rule that replaces
// exactly node id with one new node (or leaves it alone).
type SingleReplacementRule interface {
	Name() string
	Type() RuleType
	// ApplyOne returns the replacement node for id, or ok=false.
	ApplyOne(ctx *Context, g *plan.Graph, id plan.NodeID) (replacement plan.Node, ok bool)
}

// singleRuleAdapter adapts a SingleReplacementRule to the general Rule interface.
type singleRuleAdapter struct {
	SingleReplacementRule
}

func (a singleRuleAdapter) Apply(ctx *Context, g *plan.Graph, id plan.NodeID) ([]plan.Pair, bool) {
	repl, ok := a.ApplyOne(ctx, g, id)
	if !ok {
		return nil, false
	}
	newID := g.AddNode(repl)
	return []plan.Pair{{Old: id, New: newID}}, true
}

// AsRule wraps a SingleReplacementRule as a Rule.
func AsRule(r SingleReplacementRule) Rule { return singleRuleAdapter{r} }
