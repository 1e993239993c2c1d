package expr

// RewritePost rewrites n bottom-up: children are rewritten first, the
// node is rebuilt via CloneWithNewInputs only if at least one child
// actually changed (compared by pointer identity), and f is then given
// a chance to replace the (possibly rebuilt) node. Returning
// (nil, false) from f leaves the node as is.
//
// This is the workhorse combinator: constant folding, column-map
// application and most structural simplifications are expressed as a
// single local f passed to RewritePost.
func RewritePost(n Node, f func(Node) (Node, bool)) Node {
	if n == nil {
		return nil
	}
	nin := n.NumInputs()
	var newChildren []Node
	changed := false
	for i := 0; i < nin; i++ {
		child := n.GetInput(i)
		rewritten := RewritePost(child, f)
		if newChildren == nil && !IdentityEqual(rewritten, child) {
			newChildren = make([]Node, nin)
			for j := 0; j < i; j++ {
				newChildren[j] = n.GetInput(j)
			}
			changed = true
		}
		if newChildren != nil {
			newChildren[i] = rewritten
		}
	}
	cur := n
	if changed {
		cur = n.CloneWithNewInputs(newChildren)
	}
	if replacement, ok := f(cur); ok {
		return replacement
	}
	return cur
}

// RewritePre rewrites n top-down: f is consulted at each node before its
// children are visited. If f replaces the node, rewriting continues
// into the replacement's children (the replacement may itself need
// further rewriting), mirroring the teacher's pattern of applying a
// rewrite rule repeatedly along a path rather than assuming a single
// local fix point.
func RewritePre(n Node, f func(Node) (Node, bool)) Node {
	if n == nil {
		return nil
	}
	cur := n
	if replacement, ok := f(cur); ok {
		cur = replacement
	}
	nin := cur.NumInputs()
	var newChildren []Node
	changed := false
	for i := 0; i < nin; i++ {
		child := cur.GetInput(i)
		rewritten := RewritePre(child, f)
		if newChildren == nil && !IdentityEqual(rewritten, child) {
			newChildren = make([]Node, nin)
			for j := 0; j < i; j++ {
				newChildren[j] = cur.GetInput(j)
			}
			changed = true
		}
		if newChildren != nil {
			newChildren[i] = rewritten
		}
	}
	if changed {
		return cur.CloneWithNewInputs(newChildren)
	}
	return cur
}

// RewritePrePost combines RewritePre and RewritePost in a single walk:
// pre is consulted (and may replace) before descending, post is
// consulted (and may replace) after children have been rewritten and
// the node rebuilt if needed.
func RewritePrePost(n Node, pre, post func(Node) (Node, bool)) Node {
	if n == nil {
		return nil
	}
	cur := n
	if replacement, ok := pre(cur); ok {
		cur = replacement
	}
	nin := cur.NumInputs()
	var newChildren []Node
	changed := false
	for i := 0; i < nin; i++ {
		child := cur.GetInput(i)
		rewritten := RewritePrePost(child, pre, post)
		if newChildren == nil && !IdentityEqual(rewritten, child) {
			newChildren = make([]Node, nin)
			for j := 0; j < i; j++ {
				newChildren[j] = cur.GetInput(j)
			}
			changed = true
		}
		if newChildren != nil {
			newChildren[i] = rewritten
		}
	}
	if changed {
		cur = cur.CloneWithNewInputs(newChildren)
	}
	if replacement, ok := post(cur); ok {
		return replacement
	}
	return cur
}

// ReplaceSubExpressionsPre replaces whole sub-expressions that appear
// (by pointer identity) as a key in replacements, without descending
// into the replacement. Nodes not present in replacements are rebuilt
// bottom-up as usual so structural sharing is preserved for anything
// that wasn't substituted. Used by rules that hoist a common
// sub-expression out to an input column and need every occurrence of
// the original sub-tree swapped for a reference to that column.
func ReplaceSubExpressionsPre(n Node, replacements map[Node]Node) Node {
	if n == nil {
		return nil
	}
	if r, ok := replacements[n]; ok {
		return r
	}
	nin := n.NumInputs()
	var newChildren []Node
	changed := false
	for i := 0; i < nin; i++ {
		child := n.GetInput(i)
		rewritten := ReplaceSubExpressionsPre(child, replacements)
		if newChildren == nil && !IdentityEqual(rewritten, child) {
			newChildren = make([]Node, nin)
			for j := 0; j < i; j++ {
				newChildren[j] = n.GetInput(j)
			}
			changed = true
		}
		if newChildren != nil {
			newChildren[i] = rewritten
		}
	}
	if changed {
		return n.CloneWithNewInputs(newChildren)
	}
	return n
}

// RewriteVec maps RewritePost(f) over a list of expressions, returning a
// new slice only when at least one element actually changed; otherwise
// the original slice is returned unmodified so callers can use identity
// comparison to detect a no-op rewrite.
func RewriteVec(list []Node, f func(Node) (Node, bool)) []Node {
	var out []Node
	for i, e := range list {
		rewritten := RewritePost(e, f)
		if out == nil && !IdentityEqual(rewritten, e) {
			out = make([]Node, len(list))
			copy(out, list[:i])
		}
		if out != nil {
			out[i] = rewritten
		}
	}
	if out == nil {
		return list
	}
	return out
}

// Normalize rewrites every sub-expression to its equivalence-class
// representative, using representative as the class lookup. representative
// returns (repr, true) when n has a known representative different from
// itself; it returns (nil, false) otherwise. The plan package builds
// representative from its derived EquivalenceClasses property so this
// package stays free of any dependency on plan-level properties.
func Normalize(n Node, representative func(Node) (Node, bool)) Node {
	return RewritePost(n, func(cur Node) (Node, bool) {
		if r, ok := representative(cur); ok && !IdentityEqual(r, cur) {
			return r, true
		}
		return nil, false
	})
}
