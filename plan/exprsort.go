package plan

import (
	"sort"

	"github.com/queryplan-dev/qopt/expr"
)

// sortExprsUnique returns a sorted, deduplicated copy of a predicate or
// key expression list, using each expression's textual form as its
// total order. Sorting and deduplicating at construction time keeps
// G4's structural dedup order-independent for predicate lists, and
// gives property derivations (which must themselves "sort and
// deduplicate") a canonical starting point.
func sortExprsUnique(list []expr.Node) []expr.Node {
	cp := make([]expr.Node, len(list))
	copy(cp, list)
	sort.Slice(cp, func(i, j int) bool { return cp[i].String() < cp[j].String() })
	out := cp[:0]
	for i, e := range cp {
		if i == 0 || e.String() != out[len(out)-1].String() {
			out = append(out, e)
		}
	}
	return out
}
