package plan

import (
	"testing"

	"github.com/queryplan-dev/qopt/catalog"
	"github.com/queryplan-dev/qopt/expr"
)

func testTable(name string, width int) catalog.TableID {
	return catalog.TableID{Database: "db", Schema: "public", Table: name}
}

func scanRowType(width int) []expr.DataType {
	rt := make([]expr.DataType, width)
	for i := range rt {
		rt[i] = expr.TypeInt
	}
	return rt
}

// TestStructuralDedup covers P1: two independently constructed nodes
// that are structurally equal must land on the same NodeID.
func TestStructuralDedup(t *testing.T) {
	g := NewGraph()
	s1 := g.TableScan(testTable("t", 2), scanRowType(2))
	cond := []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}
	f1 := g.Filter(s1, cond, nil)
	f2 := g.Filter(s1, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}, nil)
	if f1 != f2 {
		t.Fatalf("expected structurally equal Filter nodes to dedup to the same id, got %d != %d", f1, f2)
	}
	s2 := g.TableScan(testTable("t", 2), scanRowType(2))
	if s1 != s2 {
		t.Fatalf("expected structurally equal TableScan nodes to dedup, got %d != %d", s1, s2)
	}
}

// TestParentIndexConsistency covers P2: the parent index is the exact
// inverse of every node's input edges.
func TestParentIndexConsistency(t *testing.T) {
	g := NewGraph()
	s := g.TableScan(testTable("t", 2), scanRowType(2))
	f := g.Filter(s, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}, nil)
	p := g.Project(f, []expr.Node{expr.NewInputRef(1)}, nil)

	assertParents(t, g, s, []NodeID{f})
	assertParents(t, g, f, []NodeID{p})
}

func assertParents(t *testing.T, g *Graph, id NodeID, want []NodeID) {
	t.Helper()
	got := g.Parents(id)
	if len(got) != len(want) {
		t.Fatalf("Parents(%d) = %v, want %v", id, got, want)
	}
	wantSet := map[NodeID]bool{}
	for _, w := range want {
		wantSet[w] = true
	}
	for _, g := range got {
		if !wantSet[g] {
			t.Fatalf("Parents returned unexpected id %d, want %v", g, want)
		}
	}
}

// TestReplaceNodesRewiresParents covers P3: after a ReplaceNodes
// transaction, every surviving path from the entry to a live node
// still resolves, and the replaced node is garbage collected once
// unreachable.
func TestReplaceNodesRewiresParents(t *testing.T) {
	g := NewGraph()
	s := g.TableScan(testTable("t", 2), scanRowType(2))
	f := g.Filter(s, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}, nil)
	g.SetEntryNode(f)

	replacement := g.AddNode(&Project{In: s, Outputs: []expr.Node{expr.NewInputRef(0), expr.NewInputRef(1)}})
	g.ReplaceNodes([]Pair{{Old: f, New: replacement}})

	entry, ok := g.Entry()
	if !ok || entry != replacement {
		t.Fatalf("expected entry to be rewired to %d, got %d (ok=%v)", replacement, entry, ok)
	}
	if g.Has(f) {
		t.Fatalf("expected old node %d to be garbage collected once unreachable", f)
	}
}

// TestNumColumnsMatchesRowTypeWidth covers P6: NumColumns(id) always
// equals len(RowType(id)).
func TestNumColumnsMatchesRowTypeWidth(t *testing.T) {
	g := NewGraph()
	s := g.TableScan(testTable("t", 3), scanRowType(3))
	p := g.Project(s, []expr.Node{expr.NewInputRef(0), expr.NewInputRef(2)}, nil)
	for _, id := range []NodeID{s, p} {
		n := g.Properties().NumColumns(g, id)
		rt := g.Properties().RowType(g, id)
		if n != len(rt) {
			t.Fatalf("node %d: NumColumns=%d, len(RowType)=%d", id, n, len(rt))
		}
	}
}

// TestAncestorsCountsEachUpwardPath exercises the documented diamond
// shape: a node reachable from the entry via two distinct upward
// paths appears twice in Ancestors, but a single parent joining the
// same child through two parallel input edges counts once (Parents is
// a set).
func TestAncestorsCountsEachUpwardPath(t *testing.T) {
	g := NewGraph()
	s := g.TableScan(testTable("t", 2), scanRowType(2))
	left := g.Filter(s, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}, nil)
	right := g.Filter(s, []expr.Node{expr.NewBinaryOp(expr.OpLt, expr.NewInputRef(0), expr.NewInt32(9))}, nil)
	top := g.Join(Inner, left, right, nil)

	ancestors := Ancestors(g, s)
	if len(ancestors) != 4 { // left, right, and top once per path
		t.Fatalf("expected 4 upward-path entries from the diamond, got %d: %v", len(ancestors), ancestors)
	}

	selfJoin := g.Join(Inner, left, left, nil)
	if len(g.Parents(left)) < 1 {
		t.Fatalf("expected left to have a parent edge from the self join")
	}
	selfJoinParents := g.Parents(left)
	count := 0
	for _, p := range selfJoinParents {
		if p == selfJoin {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected a single parent-edge entry for a node referencing left via two parallel inputs, got %d", count)
	}
}
