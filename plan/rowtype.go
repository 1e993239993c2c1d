package plan

import "github.com/queryplan-dev/qopt/expr"

// RowType returns the list of data types of node id's output columns;
// its length always equals NumColumns(id).
func (c *PropertyCache) RowType(g *Graph, id NodeID) []expr.DataType {
	if v, ok := c.get(id, tagRowType); ok {
		return v.([]expr.DataType)
	}
	n := g.Node(id)
	var v []expr.DataType
	switch t := n.(type) {
	case *TableScan:
		v = append([]expr.DataType(nil), t.RowType...)
	case *Project:
		inputType := c.RowType(g, t.In)
		v = make([]expr.DataType, len(t.Outputs))
		for i, e := range t.Outputs {
			v[i] = e.DataType(inputType)
		}
	case *Filter:
		v = c.RowType(g, t.In)
	case *SubqueryRoot:
		v = c.RowType(g, t.In)
	case *Join:
		left := c.RowType(g, t.Left)
		if t.Type.ProjectsRight() {
			right := c.RowType(g, t.Right)
			v = append(append([]expr.DataType(nil), left...), right...)
		} else {
			v = append([]expr.DataType(nil), left...)
		}
	case *Aggregate:
		inputType := c.RowType(g, t.In)
		v = make([]expr.DataType, 0, len(t.GroupKey)+len(t.Aggregates))
		for _, k := range t.GroupKey {
			v = append(v, inputType[k])
		}
		for _, a := range t.Aggregates {
			v = append(v, a.DataType(inputType))
		}
	case *Union:
		if len(t.Inputs) == 0 {
			v = nil
		} else {
			v = c.RowType(g, t.Inputs[0])
		}
	case *Apply:
		left := c.RowType(g, t.Left)
		right := c.RowType(g, t.Right)
		v = append(append([]expr.DataType(nil), left...), right...)
	case *QueryRoot:
		if t.HasInput {
			v = c.RowType(g, t.Entry)
		}
	default:
		panic("plan: RowType: unhandled node kind")
	}
	c.set(id, tagRowType, v)
	return v
}
