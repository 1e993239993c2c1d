package plan

import (
	"fmt"
	"strings"

	"github.com/queryplan-dev/qopt/expr"
)

// Annotation selects one of the optional per-node property lines
// Explain/ExplainJSON can attach below a node's own label.
type Annotation uint8

const (
	AnnotateNumColumns Annotation = iota
	AnnotateRowType
	AnnotatePulledUpPredicates
	AnnotateKeys
)

// DefaultAnnotations is the order §6's textual explain names: num-
// columns, row-type, pulled-up-predicates, keys.
var DefaultAnnotations = []Annotation{
	AnnotateNumColumns, AnnotateRowType, AnnotatePulledUpPredicates, AnnotateKeys,
}

// RuleEdge records one rule-produced (old -> new) swap for the JSON
// explain's edge list, named by the rule that made it.
type RuleEdge struct {
	Rule     string
	Old, New NodeID
}

// Explain renders g's entry plan (then every registered subquery plan,
// separated by a blank line) as the deterministic textual explain
// format of §6: one `[<id>] <kind> <attrs>` line per node, two spaces
// of indent per depth, `Recurring node <id>` in place of re-expanding a
// node already printed along this traversal, and `    - <text>`
// annotator lines in DefaultAnnotations order.
func Explain(g *Graph) string {
	return ExplainWithAnnotations(g, DefaultAnnotations)
}

// ExplainWithAnnotations is Explain with an explicit annotator subset
// (and order).
func ExplainWithAnnotations(g *Graph, annotations []Annotation) string {
	var b strings.Builder
	if entry, ok := g.Entry(); ok {
		explainTree(&b, g, entry, 0, map[NodeID]bool{}, annotations)
	}
	for _, sq := range g.SubqueryRoots() {
		b.WriteString("\n")
		explainTree(&b, g, sq, 0, map[NodeID]bool{}, annotations)
	}
	return b.String()
}

func explainTree(b *strings.Builder, g *Graph, id NodeID, depth int, visited map[NodeID]bool, annotations []Annotation) {
	indent := strings.Repeat("  ", depth)
	if visited[id] {
		fmt.Fprintf(b, "%s[%d] Recurring node %d\n", indent, id, id)
		return
	}
	visited[id] = true
	n := g.Node(id)
	fmt.Fprintf(b, "%s[%d] %s\n", indent, id, n.Describe())
	for _, a := range annotations {
		if text, ok := annotationText(g, id, a); ok {
			fmt.Fprintf(b, "%s    - %s\n", indent, text)
		}
	}
	for i := 0; i < n.NumInputs(); i++ {
		explainTree(b, g, n.Input(i), depth+1, visited, annotations)
	}
}

func annotationText(g *Graph, id NodeID, a Annotation) (string, bool) {
	switch a {
	case AnnotateNumColumns:
		return fmt.Sprintf("num-columns: %d", g.Properties().NumColumns(g, id)), true
	case AnnotateRowType:
		rt := g.Properties().RowType(g, id)
		return fmt.Sprintf("row-type: [%s]", strings.Join(dataTypeStrings(rt), ", ")), true
	case AnnotatePulledUpPredicates:
		preds := g.Properties().PulledUpPredicates(g, id)
		if len(preds) == 0 {
			return "", false
		}
		return fmt.Sprintf("pulled-up-predicates: [%s]", strings.Join(exprStrings(preds), ", ")), true
	case AnnotateKeys:
		keys := g.Properties().Keys(g, id)
		if len(keys) == 0 {
			return "", false
		}
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = keyBoundsString(k)
		}
		return fmt.Sprintf("keys: [%s]", strings.Join(parts, ", ")), true
	default:
		return "", false
	}
}

func dataTypeStrings(rt []expr.DataType) []string {
	out := make([]string, len(rt))
	for i, t := range rt {
		out[i] = t.String()
	}
	return out
}

func exprStrings(list []expr.Node) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.String()
	}
	return out
}

func keyBoundsString(k KeyBounds) string {
	upper := "unbounded"
	if k.Upper != nil {
		upper = fmt.Sprintf("%d", *k.Upper)
	}
	return fmt.Sprintf("(%s)[%d,%s]", strings.Join(exprStrings(k.Key), ","), k.Lower, upper)
}

// JSONNode is one entry of ExplainJSON's `nodes` array.
type JSONNode struct {
	ID          NodeID   `json:"id"`
	Label       string   `json:"label"`
	Annotations []string `json:"annotations,omitempty"`
}

// JSONEdge is one entry of ExplainJSON's `edges` array: an `input i`
// edge for a node's own inputs, a `subquery(<root-id>)` edge for a
// subquery reference, or a rule-name edge for a rule-produced swap.
type JSONEdge struct {
	From  NodeID `json:"from"`
	To    NodeID `json:"to"`
	Label string `json:"label"`
}

// JSONExplain is the §6 JSON explain document shape.
type JSONExplain struct {
	Nodes []JSONNode `json:"nodes"`
	Edges []JSONEdge `json:"edges"`
}

// ExplainJSON walks every node reachable from g's entry and every
// registered subquery, once each, and reports it alongside its input
// edges, subquery-reference edges, and (if ruleEdges names any
// touching it) rule-produced edges.
func ExplainJSON(g *Graph, ruleEdges []RuleEdge) JSONExplain {
	return ExplainJSONWithAnnotations(g, DefaultAnnotations, ruleEdges)
}

// ExplainJSONWithAnnotations is ExplainJSON with an explicit annotator
// subset.
func ExplainJSONWithAnnotations(g *Graph, annotations []Annotation, ruleEdges []RuleEdge) JSONExplain {
	out := JSONExplain{}
	seen := map[NodeID]bool{}
	var visit func(NodeID)
	visit = func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := g.Node(id)
		var annos []string
		for _, a := range annotations {
			if text, ok := annotationText(g, id, a); ok {
				annos = append(annos, text)
			}
		}
		out.Nodes = append(out.Nodes, JSONNode{ID: id, Label: n.Describe(), Annotations: annos})
		for i := 0; i < n.NumInputs(); i++ {
			c := n.Input(i)
			out.Edges = append(out.Edges, JSONEdge{From: id, To: c, Label: fmt.Sprintf("input %d", i)})
			visit(c)
		}
		for _, sq := range g.Properties().Subqueries(g, id) {
			out.Edges = append(out.Edges, JSONEdge{From: id, To: sq, Label: fmt.Sprintf("subquery(%d)", sq)})
			visit(sq)
		}
	}
	if entry, ok := g.Entry(); ok {
		visit(entry)
	}
	for _, sq := range g.SubqueryRoots() {
		visit(sq)
	}
	for _, re := range ruleEdges {
		out.Edges = append(out.Edges, JSONEdge{From: re.Old, To: re.New, Label: re.Rule})
	}
	return out
}
