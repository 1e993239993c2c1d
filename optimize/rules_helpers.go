package optimize

import "github.com/queryplan-dev/qopt/expr"

// inputRefIndices collects the distinct InputRef column indices
// referenced anywhere in n, mirroring plan's own unexported
// inputRefIndices (duplicated here since rule implementations live
// outside the plan package and only see its exported surface).
func inputRefIndices(n expr.Node) []int {
	seen := map[int]bool{}
	var out []int
	expr.Walk(refCollector{seen: seen, out: &out}, n)
	return out
}

type refCollector struct {
	seen map[int]bool
	out  *[]int
}

func (c refCollector) Visit(n expr.Node) expr.Visitor {
	if n == nil {
		return c
	}
	if ref, ok := n.(*expr.InputRef); ok && !c.seen[ref.Index] {
		c.seen[ref.Index] = true
		*c.out = append(*c.out, ref.Index)
	}
	return c
}

// refsWithin reports whether every InputRef in n falls in [lo, hi).
func refsWithin(n expr.Node, lo, hi int) bool {
	for _, idx := range inputRefIndices(n) {
		if idx < lo || idx >= hi {
			return false
		}
	}
	return true
}

// isPurePermutation reports whether outputs is exactly a permutation of
// InputRef(0)..InputRef(width-1) in some order, with no column dropped
// and none repeated. Transpose rules that merge a Project into an
// operator below it (AggregateProjectTranspose, JoinProjectTranspose)
// require this rather than merely "every output is an InputRef",
// because a narrower or duplicating Project is usually there on
// purpose — left by a pruning rule or a dedup rule — and blindly
// merging it back in would undo that rule's work every following pass.
func isPurePermutation(outputs []expr.Node, width int) bool {
	if len(outputs) != width {
		return false
	}
	seen := make([]bool, width)
	for _, e := range outputs {
		ref, ok := e.(*expr.InputRef)
		if !ok || ref.Index < 0 || ref.Index >= width || seen[ref.Index] {
			return false
		}
		seen[ref.Index] = true
	}
	return true
}

// sortUniqueInts returns a sorted, deduplicated copy of ints.
func sortUniqueInts(ints []int) []int {
	cp := append([]int(nil), ints...)
	for i := 1; i < len(cp); i++ {
		for j := i; j > 0 && cp[j-1] > cp[j]; j-- {
			cp[j-1], cp[j] = cp[j], cp[j-1]
		}
	}
	out := cp[:0]
	for i, v := range cp {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
