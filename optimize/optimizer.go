package optimize

import (
	"fmt"

	"github.com/queryplan-dev/qopt/plan"
)

// Optimizer holds a registered, ordered rule set and drives the
// fix-point rewrite loop over a plan.Graph.
type Optimizer struct {
	rules []Rule
}

// New returns an Optimizer running exactly the given rules, in order,
// within each pass.
func New(rules ...Rule) *Optimizer {
	return &Optimizer{rules: rules}
}

// NewFromConfig returns an Optimizer running cfg.Rules (or
// DefaultRules() if empty), minus anything in cfg.Disabled.
func NewFromConfig(cfg *Config) (*Optimizer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	names := cfg.Rules
	if len(names) == 0 {
		for _, r := range DefaultRules() {
			names = append(names, r.Name())
		}
	}
	var rules []Rule
	for _, name := range names {
		if cfg.isDisabled(name) {
			continue
		}
		r, ok := RuleByName(name)
		if !ok {
			return nil, fmt.Errorf("optimize: unknown rule %q", name)
		}
		rules = append(rules, r)
	}
	return &Optimizer{rules: rules}, nil
}

// Run applies the registered rules to g, starting from its entry node,
// until a full pass makes no change or ctx.Config.MaxPasses is
// reached. It returns the number of passes executed.
func (o *Optimizer) Run(ctx *Context) (passes int, err error) {
	if ctx.Listener == nil {
		ctx.Listener = NopListener{}
	}
	maxPasses := ctx.Config.MaxPasses
	if maxPasses <= 0 {
		maxPasses = 100
	}
	for pass := 1; pass <= maxPasses; pass++ {
		startGen := ctx.graph().GenNumber()
		o.runOnePass(ctx, pass)
		changed := ctx.graph().GenNumber() != startGen
		ctx.Listener.PassCompleted(pass, changed)
		passes = pass
		if !changed {
			return passes, nil
		}
	}
	return passes, fmt.Errorf("optimize: did not reach a fix point within %d passes", maxPasses)
}

func (o *Optimizer) runOnePass(ctx *Context, pass int) {
	g := ctx.graph()
	entry, ok := g.Entry()
	if !ok {
		return
	}
	// TopDown-typed rules get a parents-before-children pass first, so
	// a rewrite they make near the root is visible to the BottomUp pass
	// that follows; everything else (RootOnly/BottomUp/Always) runs in
	// the usual children-before-parents order.
	o.runOrdered(ctx, pass, plan.PreOrder(g, entry), entry, func(t RuleType) bool {
		return t == TopDown
	})
	o.runOrdered(ctx, pass, plan.PostOrder(g, entry), entry, func(t RuleType) bool {
		return t != TopDown
	})
}

func (o *Optimizer) runOrdered(ctx *Context, pass int, order []plan.NodeID, entry plan.NodeID, want func(RuleType) bool) {
	g := ctx.graph()
	for _, id := range order {
		if !g.Has(id) {
			continue // dropped by an earlier rewrite this pass
		}
		for _, rule := range o.rules {
			if !want(rule.Type()) {
				continue
			}
			if rule.Type() == RootOnly && id != entry {
				continue
			}
			pairs, ok := rule.Apply(ctx, g, id)
			if !ok {
				continue
			}
			befores := make(map[plan.NodeID]string, len(pairs))
			for _, pr := range pairs {
				befores[pr.Old] = g.Node(pr.Old).Describe()
			}
			g.ReplaceNodes(pairs)
			for _, pr := range pairs {
				after := "(removed)"
				if g.Has(pr.New) {
					after = g.Node(pr.New).Describe()
				}
				ctx.Listener.RuleApplied(rule.Name(), pass, pr.Old, pr.New, befores[pr.Old], after)
			}
			break // re-derive id's replacement before trying further rules on it
		}
	}
}

func (ctx *Context) graph() *plan.Graph { return ctx.g }
