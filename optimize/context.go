package optimize

import (
	"github.com/queryplan-dev/qopt/catalog"
	"github.com/queryplan-dev/qopt/plan"
)

// Listener observes optimizer progress, mirroring the teacher's plain
// callback-interface style for optional instrumentation (e.g. an
// explain-trace recorder or a test harness counting rule firings).
type Listener interface {
	// RuleApplied is called every time a rule successfully rewrites
	// old into new, after the replacement has already landed in the
	// graph (new is plan.NodeID(0)'s zero value only in the sense that
	// a dropped node has no replacement node left to describe — check
	// with Graph.Has before reading it back).
	RuleApplied(rule string, pass int, old, new plan.NodeID, before, after string)
	// PassCompleted is called at the end of every full traversal pass,
	// reporting whether anything changed.
	PassCompleted(pass int, changed bool)
}

// NopListener discards every event; the default when no Listener is
// supplied.
type NopListener struct{}

func (NopListener) RuleApplied(rule string, pass int, old, new plan.NodeID, before, after string) {}
func (NopListener) PassCompleted(pass int, changed bool)                                          {}

// TracingListener accumulates every rule-produced (old -> new) swap as
// a plan.RuleEdge, for handing to plan.ExplainJSON alongside the graph
// it was collected against.
type TracingListener struct {
	Edges []plan.RuleEdge
}

func (t *TracingListener) RuleApplied(rule string, pass int, old, new plan.NodeID, before, after string) {
	t.Edges = append(t.Edges, plan.RuleEdge{Rule: rule, Old: old, New: new})
}
func (t *TracingListener) PassCompleted(pass int, changed bool) {}

// Context carries the per-run state a Rule may need beyond the graph
// itself: the catalog for schema lookups, the active Config, and the
// Listener to report progress through.
type Context struct {
	Catalog  catalog.Catalog
	Config   *Config
	Listener Listener

	g *plan.Graph
}

// NewContext returns a Context with a NopListener and DefaultConfig,
// running against g.
func NewContext(cat catalog.Catalog, g *plan.Graph) *Context {
	return &Context{Catalog: cat, Config: DefaultConfig(), Listener: NopListener{}, g: g}
}
