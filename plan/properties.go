package plan

// propertyTag identifies one cached property kind. Single-node
// properties depend only on the node itself (its own expressions);
// bottom-up properties depend on the node and its descendants and are
// the ones invalidated up the ancestor chain on every replacement.
type propertyTag uint8

const (
	tagSubqueries propertyTag = iota
	tagCorrelatedRefs

	tagNumColumns
	tagRowType
	tagPredicates
	tagEquivClasses
	tagKeys
	tagProvenance
	tagSubgraphSubqueries
	tagSubgraphCorrelatedRefs
	tagInputDeps
)

func isBottomUp(tag propertyTag) bool { return tag >= tagNumColumns }

// PropertyCache is a per-graph, per-node typed cache. Reads are lazy:
// the value is computed on first access and written back; invalidation
// is the cache's entire failure model (§4.D).
type PropertyCache struct {
	entries map[NodeID]map[propertyTag]interface{}
}

func newPropertyCache(g *Graph) *PropertyCache {
	return &PropertyCache{entries: map[NodeID]map[propertyTag]interface{}{}}
}

func (c *PropertyCache) get(id NodeID, tag propertyTag) (interface{}, bool) {
	m := c.entries[id]
	if m == nil {
		return nil, false
	}
	v, ok := m[tag]
	return v, ok
}

func (c *PropertyCache) set(id NodeID, tag propertyTag, v interface{}) {
	m := c.entries[id]
	if m == nil {
		m = map[propertyTag]interface{}{}
		c.entries[id] = m
	}
	m[tag] = v
}

// dropNode clears every cached entry — single-node and bottom-up — for
// id, used when id is replaced or detached from the graph.
func (c *PropertyCache) dropNode(id NodeID) {
	delete(c.entries, id)
}

// invalidateAncestors clears the bottom-up entries of id and every
// transitive parent of id, walking the parent index. Single-node
// entries are left alone: they depend only on id's own expressions,
// which a replacement elsewhere in the graph cannot change.
func (c *PropertyCache) invalidateAncestors(g *Graph, id NodeID) {
	visited := map[NodeID]bool{}
	var walk func(NodeID)
	walk = func(n NodeID) {
		if visited[n] {
			return
		}
		visited[n] = true
		if m := c.entries[n]; m != nil {
			for tag := range m {
				if isBottomUp(tag) {
					delete(m, tag)
				}
			}
		}
		for _, p := range g.Parents(n) {
			walk(p)
		}
	}
	walk(id)
}
