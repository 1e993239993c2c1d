package plan

import (
	"fmt"

	"github.com/queryplan-dev/qopt/catalog"
	"github.com/queryplan-dev/qopt/expr"
)

// Graph is the plan DAG store: an id-keyed node map, a parent index
// that is the exact inverse of the input edges (G2), the list of
// registered subquery roots, a monotone id counter, a generation
// counter bumped on every replacement transaction, and the property
// cache those counters drive invalidation for.
type Graph struct {
	nodes        map[NodeID]Node
	parents      map[NodeID]map[NodeID]struct{}
	fingerprints map[[32]byte][]NodeID
	subqueries   []NodeID
	nextID       NodeID
	genNumber    uint64
	props        *PropertyCache
}

// NewGraph returns an empty graph containing only the fixed QueryRoot
// node (id 0) with no entry set yet.
func NewGraph() *Graph {
	g := &Graph{
		nodes:        map[NodeID]Node{QueryRootID: &QueryRoot{}},
		parents:      map[NodeID]map[NodeID]struct{}{},
		fingerprints: map[[32]byte][]NodeID{},
		nextID:       QueryRootID + 1,
	}
	g.props = newPropertyCache(g)
	return g
}

// GenNumber returns the current generation counter; stability across a
// full optimizer traversal indicates a fix-point.
func (g *Graph) GenNumber() uint64 { return g.genNumber }

// Node returns the node stored under id. Panics if id is not present
// (G1 violation is always a caller bug, never a recoverable condition).
func (g *Graph) Node(id NodeID) Node {
	n, ok := g.nodes[id]
	if !ok {
		panic(fmt.Sprintf("plan: unknown node id %d", id))
	}
	return n
}

// Has reports whether id names a live node.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Parents returns the set of node ids that reference id as an input.
func (g *Graph) Parents(id NodeID) []NodeID {
	set := g.parents[id]
	out := make([]NodeID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// Properties returns the graph's property cache.
func (g *Graph) Properties() *PropertyCache { return g.props }

// Entry returns the current entry node (QueryRoot's input) and whether
// one has been set.
func (g *Graph) Entry() (NodeID, bool) {
	root := g.nodes[QueryRootID].(*QueryRoot)
	return root.Entry, root.HasInput
}

// SubqueryRoots returns the currently registered subquery root ids.
func (g *Graph) SubqueryRoots() []NodeID {
	out := make([]NodeID, len(g.subqueries))
	copy(out, g.subqueries)
	return out
}

// --- construction API --------------------------------------------------------

// addNode is the only place a new Node value enters the store.
// Structural dedup (G4): if a node with an equal fingerprint and
// Node.Equals already exists, its id is returned instead of allocating
// a new one.
func (g *Graph) addNode(n Node) NodeID {
	fp := fingerprint(n)
	for _, cand := range g.fingerprints[fp] {
		if g.nodes[cand].Equals(n) {
			return cand
		}
	}
	id := g.nextID
	g.nextID++
	g.nodes[id] = n
	g.fingerprints[fp] = append(g.fingerprints[fp], id)
	g.registerParentEdges(id, n)
	return id
}

func (g *Graph) registerParentEdges(id NodeID, n Node) {
	seen := map[NodeID]bool{}
	for i := 0; i < n.NumInputs(); i++ {
		c := n.Input(i)
		if seen[c] {
			continue // a parent pointing at a child through multiple inputs appears once (G2)
		}
		seen[c] = true
		if g.parents[c] == nil {
			g.parents[c] = map[NodeID]struct{}{}
		}
		g.parents[c][id] = struct{}{}
	}
}

func (g *Graph) unregisterParentEdges(id NodeID, n Node) {
	seen := map[NodeID]bool{}
	for i := 0; i < n.NumInputs(); i++ {
		c := n.Input(i)
		if seen[c] {
			continue
		}
		seen[c] = true
		if set := g.parents[c]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(g.parents, c)
			}
		}
	}
}

// AddNode inserts an arbitrary, already-constructed Node value,
// subject to the same structural dedup as the typed constructors
// below. Rule implementations that build a replacement node directly
// (rather than through one of TableScan/Filter/Project/...) use this.
func (g *Graph) AddNode(n Node) NodeID { return g.addNode(n) }

// TableScan constructs (or reuses) a table scan node.
func (g *Graph) TableScan(table catalog.TableID, rowType []expr.DataType) NodeID {
	cp := make([]expr.DataType, len(rowType))
	copy(cp, rowType)
	return g.addNode(&TableScan{Table: table, RowType: cp})
}

// Filter constructs a filter node. Empty conditions short-circuit to
// the input unchanged, matching the construction API's contract.
func (g *Graph) Filter(input NodeID, conditions []expr.Node, correlation *expr.CorrelationID) NodeID {
	if len(conditions) == 0 {
		return input
	}
	return g.addNode(&Filter{In: input, Conditions: sortExprsUnique(conditions), Correlation: correlation})
}

// Project constructs a projection node.
func (g *Graph) Project(input NodeID, outputs []expr.Node, correlation *expr.CorrelationID) NodeID {
	cp := make([]expr.Node, len(outputs))
	copy(cp, outputs)
	return g.addNode(&Project{In: input, Outputs: cp, Correlation: correlation})
}

// Join constructs a join node.
func (g *Graph) Join(typ JoinType, left, right NodeID, conditions []expr.Node) NodeID {
	cp := make([]expr.Node, len(conditions))
	copy(cp, conditions)
	return g.addNode(&Join{Type: typ, Left: left, Right: right, Conditions: cp})
}

// Aggregate constructs an aggregate node. groupKey is canonicalized to
// a sorted, deduplicated set, matching the OrderedSet<usize> contract.
func (g *Graph) Aggregate(input NodeID, groupKey []int, aggregates []*AggregateExpr) NodeID {
	cp := make([]*AggregateExpr, len(aggregates))
	copy(cp, aggregates)
	return g.addNode(&Aggregate{In: input, GroupKey: sortedUnique(groupKey), Aggregates: cp})
}

// Union constructs a union node.
func (g *Graph) Union(inputs []NodeID) NodeID {
	cp := make([]NodeID, len(inputs))
	copy(cp, inputs)
	return g.addNode(&Union{Inputs: cp})
}

// Apply constructs a correlated cross-apply node.
func (g *Graph) Apply(corr CorrelationContext, left, right NodeID, typ ApplyType) NodeID {
	return g.addNode(&Apply{Correlation: corr, Left: left, Right: right, Type: typ})
}

// AddSubquery returns a stable SubqueryRoot id for the subquery plan
// rooted at input, registering it in the subquery list the first time
// it is seen.
func (g *Graph) AddSubquery(input NodeID) NodeID {
	id := g.addNode(&SubqueryRoot{In: input})
	for _, s := range g.subqueries {
		if s == id {
			return id
		}
	}
	g.subqueries = append(g.subqueries, id)
	return id
}

// SetEntryNode re-points QueryRoot's input, adjusting the parent index
// and garbage-collecting the previous entry subgraph if it becomes
// orphaned.
func (g *Graph) SetEntryNode(id NodeID) {
	root := g.nodes[QueryRootID].(*QueryRoot)
	oldEntry, hadEntry := root.Entry, root.HasInput
	if hadEntry {
		g.unregisterParentEdges(QueryRootID, root)
	}
	newRoot := &QueryRoot{Entry: id, HasInput: true}
	g.nodes[QueryRootID] = newRoot
	g.registerParentEdges(QueryRootID, newRoot)
	g.props.invalidateAncestors(g, QueryRootID)
	if hadEntry && len(g.parents[oldEntry]) == 0 {
		g.dropUnreachable(oldEntry)
	}
	g.genNumber++
}

// --- replacement transaction ---------------------------------------------

// Pair is one (old -> new) swap in a ReplaceNodes transaction.
type Pair struct {
	Old, New NodeID
}

// ReplaceNodes performs one or more (old -> new) swaps as a single
// atomic step: it invalidates bottom-up properties on every replaced
// node and its ancestors, rewires every parent so each input that
// equaled old now equals new, merges old's parents into new's, drops
// old (and any descendants left unreachable) when it no longer has
// parents, runs subquery GC, and bumps the generation counter.
func (g *Graph) ReplaceNodes(pairs []Pair) {
	for _, pr := range pairs {
		old, new := pr.Old, pr.New
		n, ok := g.nodes[old]
		if !ok {
			panic(fmt.Sprintf("plan: ReplaceNodes: unknown node id %d", old))
		}
		if !canReplace(n.Kind()) {
			panic(fmt.Sprintf("plan: ReplaceNodes: %s node %d is not replaceable", n.Kind(), old))
		}
		if !g.Has(new) {
			panic(fmt.Sprintf("plan: ReplaceNodes: unknown replacement id %d", new))
		}
		g.props.invalidateAncestors(g, old)

		parentIDs := g.Parents(old)
		for _, p := range parentIDs {
			pn := g.nodes[p]
			rewired := rewireInput(pn, old, new)
			g.reindex(p, pn, rewired)
		}

		if new != old {
			if g.parents[new] == nil {
				g.parents[new] = map[NodeID]struct{}{}
			}
			for _, p := range parentIDs {
				if p != new {
					g.parents[new][p] = struct{}{}
				}
			}
			delete(g.parents, old)
		}

		if len(g.parents[old]) == 0 && old != QueryRootID {
			g.dropUnreachable(old)
		}
	}
	g.garbageCollectSubqueries()
	g.genNumber++
}

// rewireInput returns a copy of pn with every input equal to old
// replaced by new.
func rewireInput(pn Node, old, new NodeID) Node {
	children := make([]NodeID, pn.NumInputs())
	for i := range children {
		c := pn.Input(i)
		if c == old {
			c = new
		}
		children[i] = c
	}
	return pn.CloneWithInputs(children)
}

// reindex replaces the stored node value for id (its children changed)
// and updates the fingerprint bucket accordingly. The parent index
// itself doesn't need adjusting here beyond what ReplaceNodes already
// does for the old/new pair, since id's own set of distinct children
// didn't otherwise change.
func (g *Graph) reindex(id NodeID, oldNode, newNode Node) {
	oldFP := fingerprint(oldNode)
	removeFromBucket(g.fingerprints, oldFP, id)
	g.nodes[id] = newNode
	newFP := fingerprint(newNode)
	g.fingerprints[newFP] = append(g.fingerprints[newFP], id)
}

func removeFromBucket(buckets map[[32]byte][]NodeID, fp [32]byte, id NodeID) {
	list := buckets[fp]
	for i, v := range list {
		if v == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(buckets, fp)
	} else {
		buckets[fp] = list
	}
}

// dropUnreachable removes id and recursively drops any input that is
// left with no parents as a result, invalidating their properties.
// QueryRoot and SubqueryRoot nodes are never auto-dropped this way:
// QueryRoot is the permanent graph root, and SubqueryRoot lifetime is
// governed by garbageCollectSubqueries (G6), not by parent-index
// emptiness, since subquery references live in expressions rather than
// in the structural parent index.
func (g *Graph) dropUnreachable(id NodeID) {
	if id == QueryRootID {
		return
	}
	n, ok := g.nodes[id]
	if !ok || n.Kind() == KindSubqueryRoot {
		return
	}
	delete(g.nodes, id)
	removeFromBucket(g.fingerprints, fingerprint(n), id)
	g.props.dropNode(id)
	children := map[NodeID]bool{}
	for i := 0; i < n.NumInputs(); i++ {
		children[n.Input(i)] = true
	}
	for c := range children {
		if set := g.parents[c]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(g.parents, c)
			}
		}
		if len(g.parents[c]) == 0 {
			g.dropUnreachable(c)
		}
	}
}

// garbageCollectSubqueries drops any SubqueryRoot not reachable via a
// scalar subquery expression from QueryRoot's live expressions,
// computed transitively (a retained subquery may itself reference
// further subqueries).
func (g *Graph) garbageCollectSubqueries() {
	entry, hasEntry := g.Entry()
	if !hasEntry {
		return
	}
	reachable := map[NodeID]bool{}
	var walk func(NodeID)
	walk = func(id NodeID) {
		if !g.Has(id) {
			return
		}
		for _, sq := range g.props.SubgraphSubqueries(g, id) {
			if reachable[sq] {
				continue
			}
			reachable[sq] = true
			walk(g.nodes[sq].(*SubqueryRoot).In)
		}
	}
	walk(entry)

	var kept []NodeID
	for _, sq := range g.subqueries {
		if reachable[sq] || !g.Has(sq) {
			if g.Has(sq) && reachable[sq] {
				kept = append(kept, sq)
			}
			continue
		}
		g.removeSubqueryRoot(sq)
	}
	g.subqueries = kept
}

func (g *Graph) removeSubqueryRoot(id NodeID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	sr := n.(*SubqueryRoot)
	delete(g.nodes, id)
	removeFromBucket(g.fingerprints, fingerprint(n), id)
	g.props.dropNode(id)
	if set := g.parents[sr.In]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(g.parents, sr.In)
		}
	}
	if len(g.parents[sr.In]) == 0 {
		g.dropUnreachable(sr.In)
	}
}

// GarbageCollect sweeps the store, dropping every node not reachable
// from QueryRoot along inputs or from a live SubqueryRoot. It's a
// coarser, idempotent alternative to the incremental collection
// ReplaceNodes performs, useful after bulk external mutation (e.g. a
// converter discarding an intermediate plan it built while exploring).
func (g *Graph) GarbageCollect() {
	reachable := map[NodeID]bool{QueryRootID: true}
	var walk func(NodeID)
	walk = func(id NodeID) {
		n, ok := g.nodes[id]
		if !ok || reachable[id] {
			if ok {
				reachable[id] = true
			} else {
				return
			}
		}
		reachable[id] = true
		for i := 0; i < n.NumInputs(); i++ {
			walk(n.Input(i))
		}
		for _, sq := range g.props.Subqueries(g, id) {
			if !reachable[sq] {
				walk(sq)
			}
		}
	}
	if entry, ok := g.Entry(); ok {
		walk(entry)
	}
	for _, sq := range g.subqueries {
		walk(sq)
	}
	for id, n := range g.nodes {
		if !reachable[id] {
			delete(g.nodes, id)
			removeFromBucket(g.fingerprints, fingerprint(n), id)
			g.props.dropNode(id)
		}
	}
	var kept []NodeID
	for _, sq := range g.subqueries {
		if reachable[sq] {
			kept = append(kept, sq)
		}
	}
	g.subqueries = kept
}
