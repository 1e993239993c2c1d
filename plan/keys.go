package plan

import "github.com/queryplan-dev/qopt/expr"

// KeyBounds describes one set of expressions over node id's output,
// together with a bound on how many rows can share a given value of
// Key: between Lower and Upper rows (Upper nil means unbounded). A key
// whose Upper is at most 1 (see UniqueKey) uniquely determines a row;
// it is the case a rule like IdentityJoin or AggregateRemove looks
// for.
type KeyBounds struct {
	Key   []expr.Node
	Lower int
	Upper *int
}

// UniqueKey reports whether k certifies at most one row per distinct
// key value.
func (k KeyBounds) UniqueKey() bool {
	return k.Upper != nil && *k.Upper <= 1
}

func oneBound() *int { v := 1; return &v }

// Keys returns the keys known to hold over node id's output rows.
func (c *PropertyCache) Keys(g *Graph, id NodeID) []KeyBounds {
	if v, ok := c.get(id, tagKeys); ok {
		return v.([]KeyBounds)
	}
	n := g.Node(id)
	var out []KeyBounds
	switch t := n.(type) {
	case *TableScan:
		// no primary-key metadata modeled on catalog.Table; a scan
		// reports no keys of its own.
	case *Filter:
		out = filterKeys(c.Keys(g, t.In))
	case *SubqueryRoot:
		out = c.Keys(g, t.In)
	case *Project:
		for _, k := range c.Keys(g, t.In) {
			if lifted, ok := liftKey(k, t.Outputs); ok {
				out = append(out, lifted)
			}
		}
	case *Join:
		out = joinKeys(c, g, t)
	case *Aggregate:
		key := make([]expr.Node, len(t.GroupKey))
		for i := range t.GroupKey {
			key[i] = expr.NewInputRef(i)
		}
		out = append(out, KeyBounds{Key: key, Lower: 1, Upper: oneBound()})
	case *Union:
		// a key of one branch does not, in general, bound duplicates
		// introduced by another branch.
	case *Apply:
		// no key claims across a correlated scope boundary: a left row
		// may pair with any number of right rows, and the right side's
		// keys hold only within one evaluation per left row.
	case *QueryRoot:
		if t.HasInput {
			out = c.Keys(g, t.Entry)
		}
	default:
		panic("plan: Keys: unhandled node kind")
	}
	c.set(id, tagKeys, out)
	return out
}

func filterKeys(in []KeyBounds) []KeyBounds {
	out := make([]KeyBounds, len(in))
	for i, k := range in {
		upper := k.Upper
		out[i] = KeyBounds{Key: k.Key, Lower: 0, Upper: upper}
	}
	return out
}

func liftKey(k KeyBounds, outputs []expr.Node) (KeyBounds, bool) {
	lifted := make([]expr.Node, len(k.Key))
	for i, e := range k.Key {
		l, ok := expr.LiftScalarExpr(e, outputs)
		if !ok {
			return KeyBounds{}, false
		}
		lifted[i] = l
	}
	return KeyBounds{Key: lifted, Lower: k.Lower, Upper: k.Upper}, true
}

func shiftKey(k KeyBounds, offset int) KeyBounds {
	shifted := make([]expr.Node, len(k.Key))
	for i, e := range k.Key {
		shifted[i] = expr.ShiftInputRefs(e, offset)
	}
	return KeyBounds{Key: shifted, Lower: k.Lower, Upper: k.Upper}
}

// joinKeys composes the two sides' keys: when the join condition
// equates every element of a unique left key with right columns (a
// foreign-key-style join), each row of the many (right) side matches
// at most one left row, so the right side's unique keys alone remain
// keys of the join's output; the mirrored case, a right key equated
// with left columns, is not checked. The combination of both
// sides' keys is always a key, since it determines both a distinct
// left row and a distinct right row.
func joinKeys(c *PropertyCache, g *Graph, t *Join) []KeyBounds {
	leftSize := c.NumColumns(g, t.Left)
	leftKeys := c.Keys(g, t.Left)
	rightKeys := c.Keys(g, t.Right)
	var out []KeyBounds

	if t.Type == Semi || t.Type == Anti {
		return leftKeys
	}

	equiv := equivalencesFromConditions(t.Conditions, leftSize)
	for _, lk := range leftKeys {
		if lk.UniqueKey() && keyDeterminedByJoin(lk, equiv) {
			for _, rk := range rightKeys {
				if rk.UniqueKey() {
					out = append(out, shiftKey(rk, leftSize))
				}
			}
			break
		}
	}
	for _, lk := range leftKeys {
		for _, rk := range rightKeys {
			if !lk.UniqueKey() || !rk.UniqueKey() {
				continue
			}
			combined := append(append([]expr.Node{}, lk.Key...), shiftKey(rk, leftSize).Key...)
			out = append(out, KeyBounds{Key: combined, Lower: 1, Upper: oneBound()})
		}
	}
	return out
}

// equivalencesFromConditions extracts the raw-equality join-condition
// pairs (left column, right column in the combined row type) a Join's
// conditions assert directly, without consulting EquivalenceClasses
// (which is itself derived in part from Join predicates and must not
// be called back into here).
func equivalencesFromConditions(conds []expr.Node, leftSize int) map[int]int {
	m := map[int]int{}
	for _, cnd := range conds {
		b, ok := cnd.(*expr.BinaryOp)
		if !ok || (b.Op != expr.OpEq && b.Op != expr.OpRawEq) {
			continue
		}
		lref, lok := b.Left.(*expr.InputRef)
		rref, rok := b.Right.(*expr.InputRef)
		if !lok || !rok {
			continue
		}
		if lref.Index < leftSize && rref.Index >= leftSize {
			m[lref.Index] = rref.Index - leftSize
		} else if rref.Index < leftSize && lref.Index >= leftSize {
			m[rref.Index] = lref.Index - leftSize
		}
	}
	return m
}

func keyDeterminedByJoin(k KeyBounds, equiv map[int]int) bool {
	for _, e := range k.Key {
		ref, ok := e.(*expr.InputRef)
		if !ok {
			return false
		}
		if _, found := equiv[ref.Index]; !found {
			return false
		}
	}
	return len(k.Key) > 0
}
