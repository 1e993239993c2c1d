package plan

// NumColumns returns the number of output columns of node id.
func (c *PropertyCache) NumColumns(g *Graph, id NodeID) int {
	if v, ok := c.get(id, tagNumColumns); ok {
		return v.(int)
	}
	n := g.Node(id)
	var v int
	switch t := n.(type) {
	case *TableScan:
		v = len(t.RowType)
	case *Project:
		v = len(t.Outputs)
	case *Filter:
		v = c.NumColumns(g, t.In)
	case *SubqueryRoot:
		v = c.NumColumns(g, t.In)
	case *Join:
		left := c.NumColumns(g, t.Left)
		if t.Type.ProjectsRight() {
			v = left + c.NumColumns(g, t.Right)
		} else {
			v = left
		}
	case *Aggregate:
		v = len(t.GroupKey) + len(t.Aggregates)
	case *Union:
		if len(t.Inputs) == 0 {
			v = 0
		} else {
			v = c.NumColumns(g, t.Inputs[0])
		}
	case *Apply:
		v = c.NumColumns(g, t.Left) + c.NumColumns(g, t.Right)
	case *QueryRoot:
		if t.HasInput {
			v = c.NumColumns(g, t.Entry)
		}
	default:
		panic("plan: NumColumns: unhandled node kind")
	}
	c.set(id, tagNumColumns, v)
	return v
}
