package optimize

import (
	"testing"

	"github.com/queryplan-dev/qopt/catalog"
	"github.com/queryplan-dev/qopt/expr"
	"github.com/queryplan-dev/qopt/internal/golden"
	"github.com/queryplan-dev/qopt/plan"
)

func scanRowType(width int) []expr.DataType {
	rt := make([]expr.DataType, width)
	for i := range rt {
		rt[i] = expr.TypeInt
	}
	return rt
}

func testTable(name string) catalog.TableID {
	return catalog.TableID{Database: "db", Schema: "public", Table: name}
}

func newTestContext(g *plan.Graph) *Context {
	return NewContext(nil, g)
}

// --- S1: FilterMerge -----------------------------------------------------

func TestScenarioFilterMerge(t *testing.T) {
	g := plan.NewGraph()
	ctx := newTestContext(g)
	s := g.TableScan(testTable("t"), scanRowType(2))
	inner := g.Filter(s, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}, nil)
	outer := g.Filter(inner, []expr.Node{expr.NewBinaryOp(expr.OpLt, expr.NewInputRef(1), expr.NewInt32(9))}, nil)
	g.SetEntryNode(outer)

	repl, ok := filterMerge{}.ApplyOne(ctx, g, outer)
	if !ok {
		t.Fatalf("expected FilterMerge to fire on two adjacent Filters")
	}
	merged, ok := repl.(*plan.Filter)
	if !ok {
		t.Fatalf("expected a merged Filter, got %T", repl)
	}
	if merged.In != s {
		t.Fatalf("expected the merged Filter to sit directly on the scan, got In=%d", merged.In)
	}
	if len(merged.Conditions) != 2 {
		t.Fatalf("expected both conditions to survive the merge, got %d", len(merged.Conditions))
	}
}

// --- S2: RemovePassthroughProject never strips the entry ----------------

func TestScenarioRemovePassthroughProjectKeepsDifferentlyShapedParent(t *testing.T) {
	g := plan.NewGraph()
	ctx := newTestContext(g)
	s := g.TableScan(testTable("t"), scanRowType(2))
	identity := g.Project(s, []expr.Node{expr.NewInputRef(0), expr.NewInputRef(1)}, nil)
	g.SetEntryNode(identity)

	// The entry itself must never be stripped, even though it is a
	// pure identity projection: TopProjection and RemovePassthroughProject
	// would otherwise oscillate rewriting it back and forth forever.
	if _, ok := (removePassthroughProject{}).ApplyOne(ctx, g, identity); ok {
		t.Fatalf("expected RemovePassthroughProject to decline at the entry node")
	}

	// Once a different node becomes the entry, the identity Project is
	// free to be removed. The new entry is a differently shaped parent
	// (a Project reading identity's columns in a different order), which
	// keeps identity alive once it is no longer the entry.
	reordered := g.Project(identity, []expr.Node{expr.NewInputRef(1), expr.NewInputRef(0)}, nil)
	g.SetEntryNode(reordered)
	repl, ok := removePassthroughProject{}.ApplyOne(ctx, g, identity)
	if !ok {
		t.Fatalf("expected RemovePassthroughProject to fire once identity is no longer the entry")
	}
	if repl != g.Node(s) {
		t.Fatalf("expected RemovePassthroughProject to forward straight to the scan, got %v", repl)
	}
}

// --- S3: UnionPruning narrows to the parents' combined column usage -----

func TestScenarioUnionPruning(t *testing.T) {
	g := plan.NewGraph()
	ctx := newTestContext(g)
	left := g.TableScan(testTable("l"), scanRowType(4))
	right := g.TableScan(testTable("r"), scanRowType(4))
	u := g.Union([]plan.NodeID{left, right})

	p1 := g.Project(u, []expr.Node{expr.NewInputRef(0), expr.NewInputRef(2)}, nil)
	p2 := g.Project(u, []expr.Node{expr.NewInputRef(3), expr.NewInputRef(2)}, nil)
	top := g.Join(plan.Inner, p1, p2, nil)
	g.SetEntryNode(top)

	pairs, ok := unionPruning{}.Apply(ctx, g, u)
	if !ok {
		t.Fatalf("expected UnionPruning to fire when parents together use fewer columns than the Union's width")
	}
	if len(pairs) != 3 { // union itself + 2 rewritten parent projects
		t.Fatalf("expected 3 replacement pairs (union + 2 parents), got %d", len(pairs))
	}
	var newUnionID plan.NodeID
	for _, pr := range pairs {
		if pr.Old == u {
			newUnionID = pr.New
		}
	}
	g.ReplaceNodes(pairs)

	newUnion, ok := g.Node(newUnionID).(*plan.Union)
	if !ok {
		t.Fatalf("expected the replacement to still be a Union, got %T", g.Node(newUnionID))
	}
	width := ctx.graphNumColumns(g, newUnion.Inputs[0])
	if width != 3 {
		t.Fatalf("expected the pruned union to carry exactly the 3 columns {c0,c2,c3} used by its parents, got %d", width)
	}
}

// --- S4: AggregateRemove via a certified unique group key ---------------

func TestScenarioAggregateRemoveViaUniqueKey(t *testing.T) {
	g := plan.NewGraph()
	ctx := newTestContext(g)
	s := g.TableScan(testTable("t"), scanRowType(2))
	inner := g.Aggregate(s, []int{0}, []*plan.AggregateExpr{plan.NewAggregateExpr(plan.AggSum, 1)})
	// inner's own output column 0 (the group key) is a certified unique
	// key of inner's rows, so an outer Aggregate regrouping on it is a
	// no-op beyond restating the aggregate expressions.
	outer := g.Aggregate(inner, []int{0}, []*plan.AggregateExpr{plan.NewAggregateExpr(plan.AggSum, 1)})

	repl, ok := aggregateRemove{}.ApplyOne(ctx, g, outer)
	if !ok {
		t.Fatalf("expected AggregateRemove to fire once the group key is already certified unique")
	}
	if _, ok := repl.(*plan.Project); !ok {
		t.Fatalf("expected AggregateRemove's replacement to be a forwarding Project, got %T", repl)
	}
}

// --- S5: FilterNormalization converges equivalent predicates ------------

func TestScenarioFilterNormalizationRewritesViaEquivalence(t *testing.T) {
	g := plan.NewGraph()
	ctx := newTestContext(g)
	s := g.TableScan(testTable("t"), scanRowType(2))
	eq := expr.NewBinaryOp(expr.OpEq, expr.NewInputRef(0), expr.NewInputRef(1))
	// ref_1 > 5 is restated as ref_0 > 5 once column 1 is normalized to
	// its equivalence-class representative (column 0).
	f := g.Filter(s, []expr.Node{
		eq,
		expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(1), expr.NewInt32(5)),
	}, nil)
	g.SetEntryNode(f)

	repl, ok := filterNormalization{}.ApplyOne(ctx, g, f)
	if !ok {
		t.Fatalf("expected FilterNormalization to rewrite a condition through an equivalence class")
	}
	nf, ok := repl.(*plan.Filter)
	if !ok {
		t.Fatalf("expected a Filter replacement, got %T", repl)
	}
	found := false
	for _, c := range nf.Conditions {
		if b, ok := c.(*expr.BinaryOp); ok && b.Op == expr.OpGt {
			if ref, ok := b.Left.(*expr.InputRef); ok && ref.Index == 0 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected the normalized condition to reference the equivalence class's representative column, got %v", nf.Conditions)
	}
}

// --- S6: OuterToInnerJoin demotion via a null-rejecting predicate --------

func TestScenarioOuterToInnerJoin(t *testing.T) {
	g := plan.NewGraph()
	ctx := newTestContext(g)
	left := g.TableScan(testTable("l"), scanRowType(2))
	right := g.TableScan(testTable("r"), scanRowType(2))
	j := g.Join(plan.LeftOuter, left, right, []expr.Node{
		expr.NewBinaryOp(expr.OpEq, expr.NewInputRef(0), expr.NewInputRef(2)),
	})
	// column 2 sits on the right (padded) side; a Gt predicate over it
	// can never be true for a NULL-padded row, so it rejects exactly
	// the rows the LeftOuter semantics would otherwise preserve.
	f := g.Filter(j, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(2), expr.NewInt32(0))}, nil)
	g.SetEntryNode(f)

	repl, ok := outerToInnerJoin{}.ApplyOne(ctx, g, f)
	if !ok {
		t.Fatalf("expected OuterToInnerJoin to fire under a null-rejecting predicate over the padded side")
	}
	nf, ok := repl.(*plan.Filter)
	if !ok {
		t.Fatalf("expected a Filter replacement, got %T", repl)
	}
	nj, ok := g.Node(nf.In).(*plan.Join)
	if !ok || nj.Type != plan.Inner {
		t.Fatalf("expected the join beneath to be demoted to Inner")
	}
}

// --- P4/P9: idempotence and bounded fix-point termination ----------------

func TestOptimizerReachesFixPointAndIsIdempotent(t *testing.T) {
	g := plan.NewGraph()
	s := g.TableScan(testTable("t"), scanRowType(3))
	f1 := g.Filter(s, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}, nil)
	f2 := g.Filter(f1, []expr.Node{expr.NewBinaryOp(expr.OpLt, expr.NewInputRef(1), expr.NewInt32(9))}, nil)
	p := g.Project(f2, []expr.Node{expr.NewInputRef(0), expr.NewInputRef(1)}, nil)
	g.SetEntryNode(p)

	ctx := newTestContext(g)
	opt := New(DefaultRules()...)
	passes, err := opt.Run(ctx)
	if err != nil {
		t.Fatalf("expected the optimizer to reach a fix point, got err=%v after %d passes", err, passes)
	}

	before := plan.Explain(g)
	genBefore := g.GenNumber()
	passes2, err := opt.Run(ctx)
	if err != nil {
		t.Fatalf("expected a second run over an already-optimized graph to also reach a fix point: %v", err)
	}
	if passes2 != 1 {
		t.Fatalf("expected an already-fixed-point graph to need exactly 1 (no-op) pass, got %d", passes2)
	}
	if g.GenNumber() != genBefore {
		t.Fatalf("expected re-running the optimizer over a fixed point to leave the generation counter unchanged")
	}
	after := plan.Explain(g)
	if before != after {
		t.Fatalf("expected re-running the optimizer to be idempotent:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

// --- P5: property invalidation --------------------------------------------

func TestPropertyInvalidationOnReplace(t *testing.T) {
	g := plan.NewGraph()
	s := g.TableScan(testTable("t"), scanRowType(3))
	p := g.Project(s, []expr.Node{expr.NewInputRef(0), expr.NewInputRef(1), expr.NewInputRef(2)}, nil)
	g.SetEntryNode(p)

	if n := g.Properties().NumColumns(g, plan.QueryRootID); n != 3 {
		t.Fatalf("expected 3 columns before narrowing, got %d", n)
	}

	narrower := g.AddNode(&plan.Project{In: s, Outputs: []expr.Node{expr.NewInputRef(0)}})
	g.ReplaceNodes([]plan.Pair{{Old: p, New: narrower}})

	if n := g.Properties().NumColumns(g, plan.QueryRootID); n != 1 {
		t.Fatalf("expected the cached NumColumns to reflect the replacement's narrower width, got %d", n)
	}
}

// --- golden-store round trip of the optimized explain output -------------

func TestOptimizerOutputMatchesGoldenExplain(t *testing.T) {
	g := plan.NewGraph()
	s := g.TableScan(testTable("t"), scanRowType(3))
	f := g.Filter(s, []expr.Node{expr.NewBinaryOp(expr.OpGt, expr.NewInputRef(0), expr.NewInt32(1))}, nil)
	p := g.Project(f, []expr.Node{expr.NewInputRef(0), expr.NewInputRef(1)}, nil)
	g.SetEntryNode(p)

	ctx := newTestContext(g)
	if _, err := New(DefaultRules()...).Run(ctx); err != nil {
		t.Fatalf("optimizer did not reach a fix point: %v", err)
	}
	got := []byte(plan.Explain(g))

	store := golden.Store{Dir: t.TempDir()}
	if err := store.Save("simple-filter-project", got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	equal, want, err := store.Check("simple-filter-project", got)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !equal {
		t.Fatalf("optimized explain output drifted from its golden fixture:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

// --- P8: key soundness ----------------------------------------------------

func TestAggregateGroupKeyIsCertifiedUnique(t *testing.T) {
	g := plan.NewGraph()
	s := g.TableScan(testTable("t"), scanRowType(2))
	a := g.Aggregate(s, []int{0}, []*plan.AggregateExpr{plan.NewAggregateExpr(plan.AggSum, 1)})

	keys := g.Properties().Keys(g, a)
	found := false
	for _, k := range keys {
		if k.UniqueKey() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Aggregate's GroupKey to be reported as a certified unique key, got %v", keys)
	}
}
