package plan

import "github.com/queryplan-dev/qopt/expr"

// ColumnProvenance traces one output column of a node back to the base
// TableScan (or other leaf) column it ultimately derives from.
type ColumnProvenance struct {
	// Source is the descendant node the column is traced to.
	Source NodeID
	// Column is the column index within Source's row type.
	Column int
	// Expression is set when the column is a computed (non-InputRef)
	// output of a Project on the traced path: it is that output's
	// expression over the Project's input row, and Source and Column
	// then name the Project and the output position. It is nil for a
	// column traced through plain column references only.
	Expression expr.Node
	// Filtered is true if a Filter, a Union, or the NULL-padded side of
	// an outer Join or of an ApplyLeftOuter sits between the original
	// node and Source, meaning the original node's rows need not match
	// Source's rows one for one.
	Filtered bool
}

// ColumnProvenance returns, for each output column of node id, its
// provenance with respect to input (an ancestor-reachable descendant
// of id); a column with no traceable origin below input gets a
// provenance whose Source is id itself and Column the column's own
// index, Expression nil, Filtered false.
func (c *PropertyCache) ColumnProvenance(g *Graph, id NodeID, input NodeID) []ColumnProvenance {
	n := g.Node(id)
	width := c.NumColumns(g, id)
	out := make([]ColumnProvenance, width)
	for i := range out {
		out[i] = ColumnProvenance{Source: id, Column: i}
	}
	if id == input {
		return out
	}
	switch t := n.(type) {
	case *Filter:
		inner := c.ColumnProvenance(g, t.In, input)
		for i := range out {
			if i < len(inner) {
				out[i] = inner[i]
				out[i].Filtered = true
			}
		}
	case *Project:
		inner := c.ColumnProvenance(g, t.In, input)
		for i, e := range t.Outputs {
			if ref, ok := e.(*expr.InputRef); ok && ref.Index < len(inner) {
				out[i] = inner[ref.Index]
			} else {
				out[i] = ColumnProvenance{Source: id, Column: i, Expression: e}
			}
		}
	case *SubqueryRoot:
		out = c.ColumnProvenance(g, t.In, input)
	case *Join:
		leftSize := c.NumColumns(g, t.Left)
		leftProv := c.ColumnProvenance(g, t.Left, input)
		for i := 0; i < leftSize && i < len(out); i++ {
			out[i] = leftProv[i]
			if t.Type == RightOuter || t.Type == FullOuter {
				out[i].Filtered = true
			}
		}
		if t.Type.ProjectsRight() {
			rightProv := c.ColumnProvenance(g, t.Right, input)
			for i := 0; i+leftSize < len(out) && i < len(rightProv); i++ {
				out[i+leftSize] = rightProv[i]
				if t.Type == LeftOuter || t.Type == FullOuter {
					out[i+leftSize].Filtered = true
				}
			}
		}
	case *Apply:
		leftSize := c.NumColumns(g, t.Left)
		leftProv := c.ColumnProvenance(g, t.Left, input)
		for i := 0; i < leftSize && i < len(out); i++ {
			out[i] = leftProv[i]
		}
		rightProv := c.ColumnProvenance(g, t.Right, input)
		for i := 0; i+leftSize < len(out) && i < len(rightProv); i++ {
			out[i+leftSize] = rightProv[i]
			if t.Type == ApplyLeftOuter {
				out[i+leftSize].Filtered = true
			}
		}
	case *Aggregate:
		// group-key columns trace to the grouped input column; the
		// aggregate columns themselves are computed, not traceable.
		inner := c.ColumnProvenance(g, t.In, input)
		for i, col := range t.GroupKey {
			if col < len(inner) {
				out[i] = inner[col]
			}
		}
	case *Union:
		if len(t.Inputs) > 0 {
			out = c.ColumnProvenance(g, t.Inputs[0], input)
			for i := range out {
				out[i].Filtered = true
			}
		}
	case *QueryRoot:
		if t.HasInput {
			out = c.ColumnProvenance(g, t.Entry, input)
		}
	}
	return out
}
