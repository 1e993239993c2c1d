// Package plan implements the relational plan DAG: an id-keyed node
// store with structural deduplication, a parent index, subquery roots,
// a property cache and the property derivations rules read from it.
//
// Nodes are immutable values held in the store's map; a rewrite never
// mutates a Node in place, it builds a new one and asks the Graph to
// replace the old id with the new one (see Graph.ReplaceNodes).
package plan

import (
	"fmt"
	"sort"

	"github.com/queryplan-dev/qopt/catalog"
	"github.com/queryplan-dev/qopt/expr"
)

// NodeID identifies a node in a Graph's store. It is the same
// underlying type expr.Node subquery-carrying variants reference, so
// expressions can name a SubqueryRoot without this package and expr
// depending on each other.
type NodeID = expr.NodeID

// QueryRootID is the fixed id of the unique QueryRoot node in every
// Graph.
const QueryRootID NodeID = 0

// Kind discriminates the shape of a Node.
type Kind uint8

const (
	KindQueryRoot Kind = iota
	KindTableScan
	KindFilter
	KindProject
	KindJoin
	KindAggregate
	KindUnion
	KindSubqueryRoot
	KindApply
)

func (k Kind) String() string {
	switch k {
	case KindQueryRoot:
		return "QueryRoot"
	case KindTableScan:
		return "TableScan"
	case KindFilter:
		return "Filter"
	case KindProject:
		return "Project"
	case KindJoin:
		return "Join"
	case KindAggregate:
		return "Aggregate"
	case KindUnion:
		return "Union"
	case KindSubqueryRoot:
		return "SubqueryRoot"
	case KindApply:
		return "Apply"
	default:
		return "?"
	}
}

// Node is one relational operator in the plan DAG. Implementations are
// small immutable values; CloneWithInputs is the only place a rewrite
// allocates a new node when just its child ids change.
type Node interface {
	Kind() Kind
	NumInputs() int
	Input(i int) NodeID
	CloneWithInputs(children []NodeID) Node
	// Equals reports structural equality, including child ids and
	// attribute values, used by structural dedup (G4) once two nodes
	// land in the same fingerprint bucket.
	Equals(other Node) bool
	// Describe returns the "<kind> <attrs>" textual form used by
	// explain, without surrounding indentation or id.
	Describe() string
}

// canReplace reports whether a node kind is a legal target of
// Graph.ReplaceNodes (G5: QueryRoot and SubqueryRoot are not).
func canReplace(k Kind) bool {
	return k != KindQueryRoot && k != KindSubqueryRoot
}

// --- QueryRoot -------------------------------------------------------

type QueryRoot struct {
	Entry    NodeID
	HasInput bool
}

func (n *QueryRoot) Kind() Kind { return KindQueryRoot }
func (n *QueryRoot) NumInputs() int {
	if n.HasInput {
		return 1
	}
	return 0
}
func (n *QueryRoot) Input(i int) NodeID {
	if !n.HasInput || i != 0 {
		panic("plan: QueryRoot input index out of range")
	}
	return n.Entry
}
func (n *QueryRoot) CloneWithInputs(children []NodeID) Node {
	if len(children) == 0 {
		return &QueryRoot{}
	}
	if len(children) != 1 {
		panic("plan: QueryRoot.CloneWithInputs requires 0 or 1 children")
	}
	return &QueryRoot{Entry: children[0], HasInput: true}
}
func (n *QueryRoot) Equals(o Node) bool {
	on, ok := o.(*QueryRoot)
	return ok && n.HasInput == on.HasInput && (!n.HasInput || n.Entry == on.Entry)
}
func (n *QueryRoot) Describe() string { return "QueryRoot" }

// --- TableScan ---------------------------------------------------------

type TableScan struct {
	Table   catalog.TableID
	RowType []expr.DataType
}

func (n *TableScan) Kind() Kind         { return KindTableScan }
func (n *TableScan) NumInputs() int     { return 0 }
func (n *TableScan) Input(i int) NodeID { panic("plan: TableScan has no inputs") }
func (n *TableScan) CloneWithInputs(children []NodeID) Node {
	if len(children) != 0 {
		panic("plan: TableScan.CloneWithInputs called with non-empty children")
	}
	return n
}
func (n *TableScan) Equals(o Node) bool {
	on, ok := o.(*TableScan)
	if !ok || n.Table != on.Table || len(n.RowType) != len(on.RowType) {
		return false
	}
	for i := range n.RowType {
		if !n.RowType[i].Equals(on.RowType[i]) {
			return false
		}
	}
	return true
}
func (n *TableScan) Describe() string {
	return fmt.Sprintf("TableScan %s (%d cols)", n.Table.String(), len(n.RowType))
}

// --- Filter ------------------------------------------------------------

type Filter struct {
	In          NodeID
	Conditions  []expr.Node
	Correlation *expr.CorrelationID
}

func (n *Filter) Kind() Kind     { return KindFilter }
func (n *Filter) NumInputs() int { return 1 }
func (n *Filter) Input(i int) NodeID {
	if i != 0 {
		panic("plan: Filter input index out of range")
	}
	return n.In
}
func (n *Filter) CloneWithInputs(children []NodeID) Node {
	if len(children) != 1 {
		panic("plan: Filter.CloneWithInputs requires exactly 1 child")
	}
	return &Filter{In: children[0], Conditions: n.Conditions, Correlation: n.Correlation}
}
func (n *Filter) Equals(o Node) bool {
	on, ok := o.(*Filter)
	if !ok || n.In != on.In || !sameCorrelation(n.Correlation, on.Correlation) {
		return false
	}
	return sameExprList(n.Conditions, on.Conditions)
}
func (n *Filter) Describe() string {
	return fmt.Sprintf("Filter %s%s", exprListString(n.Conditions), correlationSuffix(n.Correlation))
}

// --- Project -------------------------------------------------------------

type Project struct {
	In          NodeID
	Outputs     []expr.Node
	Correlation *expr.CorrelationID
}

func (n *Project) Kind() Kind     { return KindProject }
func (n *Project) NumInputs() int { return 1 }
func (n *Project) Input(i int) NodeID {
	if i != 0 {
		panic("plan: Project input index out of range")
	}
	return n.In
}
func (n *Project) CloneWithInputs(children []NodeID) Node {
	if len(children) != 1 {
		panic("plan: Project.CloneWithInputs requires exactly 1 child")
	}
	return &Project{In: children[0], Outputs: n.Outputs, Correlation: n.Correlation}
}
func (n *Project) Equals(o Node) bool {
	on, ok := o.(*Project)
	if !ok || n.In != on.In || !sameCorrelation(n.Correlation, on.Correlation) {
		return false
	}
	return sameExprList(n.Outputs, on.Outputs)
}
func (n *Project) Describe() string {
	return fmt.Sprintf("Project %s%s", exprListString(n.Outputs), correlationSuffix(n.Correlation))
}

// --- Join ----------------------------------------------------------------

type JoinType uint8

const (
	Inner JoinType = iota
	LeftOuter
	RightOuter
	FullOuter
	Semi
	Anti
)

func (t JoinType) String() string {
	switch t {
	case Inner:
		return "Inner"
	case LeftOuter:
		return "LeftOuter"
	case RightOuter:
		return "RightOuter"
	case FullOuter:
		return "FullOuter"
	case Semi:
		return "Semi"
	case Anti:
		return "Anti"
	default:
		return "?"
	}
}

// ProjectsRight reports whether a join of this type outputs the right
// input's columns (false for Semi/Anti, which project only the left
// side).
func (t JoinType) ProjectsRight() bool { return t != Semi && t != Anti }

type Join struct {
	Type       JoinType
	Left       NodeID
	Right      NodeID
	Conditions []expr.Node
}

func (n *Join) Kind() Kind     { return KindJoin }
func (n *Join) NumInputs() int { return 2 }
func (n *Join) Input(i int) NodeID {
	switch i {
	case 0:
		return n.Left
	case 1:
		return n.Right
	default:
		panic("plan: Join input index out of range")
	}
}
func (n *Join) CloneWithInputs(children []NodeID) Node {
	if len(children) != 2 {
		panic("plan: Join.CloneWithInputs requires exactly 2 children")
	}
	return &Join{Type: n.Type, Left: children[0], Right: children[1], Conditions: n.Conditions}
}
func (n *Join) Equals(o Node) bool {
	on, ok := o.(*Join)
	if !ok || n.Type != on.Type || n.Left != on.Left || n.Right != on.Right {
		return false
	}
	return sameExprList(n.Conditions, on.Conditions)
}
func (n *Join) Describe() string {
	return fmt.Sprintf("%sJoin %s", n.Type.String(), exprListString(n.Conditions))
}

// --- Aggregate -------------------------------------------------------------

type AggOp uint8

const (
	AggCount AggOp = iota
	AggCountDistinct
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (op AggOp) String() string {
	switch op {
	case AggCount:
		return "count"
	case AggCountDistinct:
		return "count_distinct"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return "?"
	}
}

// AggregateExpr is one aggregate computation: Op applied to the input
// columns named by Operands. It implements expr.Node (its operands
// exposed as InputRefs) so that the generic expr visit/rewrite
// combinators can walk an "extended" expression tree that mixes scalar
// expressions with aggregate specs, the shape CommonAggregateDiscovery
// needs to compare aggregates across different Aggregate nodes.
type AggregateExpr struct {
	Op       AggOp
	Operands []int
}

func NewAggregateExpr(op AggOp, operands ...int) *AggregateExpr {
	cp := make([]int, len(operands))
	copy(cp, operands)
	return &AggregateExpr{Op: op, Operands: cp}
}

func (a *AggregateExpr) NumInputs() int           { return len(a.Operands) }
func (a *AggregateExpr) GetInput(i int) expr.Node { return expr.NewInputRef(a.Operands[i]) }
func (a *AggregateExpr) CloneWithNewInputs(children []expr.Node) expr.Node {
	ops := make([]int, len(children))
	for i, c := range children {
		ref, ok := c.(*expr.InputRef)
		if !ok {
			panic("plan: AggregateExpr children must be InputRef")
		}
		ops[i] = ref.Index
	}
	return NewAggregateExpr(a.Op, ops...)
}
func (a *AggregateExpr) DataType(rowType []expr.DataType) expr.DataType {
	switch a.Op {
	case AggCount, AggCountDistinct:
		return expr.TypeBigInt
	default:
		if len(a.Operands) == 1 && a.Operands[0] < len(rowType) {
			return rowType[a.Operands[0]]
		}
		return expr.TypeAny
	}
}
func (a *AggregateExpr) Equals(o expr.Node) bool {
	oa, ok := o.(*AggregateExpr)
	if !ok || a.Op != oa.Op || len(a.Operands) != len(oa.Operands) {
		return false
	}
	for i := range a.Operands {
		if a.Operands[i] != oa.Operands[i] {
			return false
		}
	}
	return true
}
func (a *AggregateExpr) String() string {
	s := fmt.Sprintf("%s(", a.Op.String())
	for i, o := range a.Operands {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("ref_%d", o)
	}
	return s + ")"
}

type Aggregate struct {
	In         NodeID
	GroupKey   []int // sorted, deduplicated
	Aggregates []*AggregateExpr
}

func (n *Aggregate) Kind() Kind     { return KindAggregate }
func (n *Aggregate) NumInputs() int { return 1 }
func (n *Aggregate) Input(i int) NodeID {
	if i != 0 {
		panic("plan: Aggregate input index out of range")
	}
	return n.In
}
func (n *Aggregate) CloneWithInputs(children []NodeID) Node {
	if len(children) != 1 {
		panic("plan: Aggregate.CloneWithInputs requires exactly 1 child")
	}
	return &Aggregate{In: children[0], GroupKey: n.GroupKey, Aggregates: n.Aggregates}
}
func (n *Aggregate) Equals(o Node) bool {
	on, ok := o.(*Aggregate)
	if !ok || n.In != on.In || len(n.GroupKey) != len(on.GroupKey) || len(n.Aggregates) != len(on.Aggregates) {
		return false
	}
	for i := range n.GroupKey {
		if n.GroupKey[i] != on.GroupKey[i] {
			return false
		}
	}
	for i := range n.Aggregates {
		if !n.Aggregates[i].Equals(on.Aggregates[i]) {
			return false
		}
	}
	return true
}
func (n *Aggregate) Describe() string {
	return fmt.Sprintf("Aggregate key=%v aggs=%s", n.GroupKey, aggListString(n.Aggregates))
}

func aggListString(aggs []*AggregateExpr) string {
	s := "["
	for i, a := range aggs {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + "]"
}

// --- Union -----------------------------------------------------------------

type Union struct {
	Inputs []NodeID
}

func (n *Union) Kind() Kind         { return KindUnion }
func (n *Union) NumInputs() int     { return len(n.Inputs) }
func (n *Union) Input(i int) NodeID { return n.Inputs[i] }
func (n *Union) CloneWithInputs(children []NodeID) Node {
	cp := make([]NodeID, len(children))
	copy(cp, children)
	return &Union{Inputs: cp}
}
func (n *Union) Equals(o Node) bool {
	on, ok := o.(*Union)
	if !ok || len(n.Inputs) != len(on.Inputs) {
		return false
	}
	for i := range n.Inputs {
		if n.Inputs[i] != on.Inputs[i] {
			return false
		}
	}
	return true
}
func (n *Union) Describe() string { return fmt.Sprintf("Union (%d inputs)", len(n.Inputs)) }

// --- SubqueryRoot ------------------------------------------------------------

type SubqueryRoot struct {
	In NodeID
}

func (n *SubqueryRoot) Kind() Kind     { return KindSubqueryRoot }
func (n *SubqueryRoot) NumInputs() int { return 1 }
func (n *SubqueryRoot) Input(i int) NodeID {
	if i != 0 {
		panic("plan: SubqueryRoot input index out of range")
	}
	return n.In
}
func (n *SubqueryRoot) CloneWithInputs(children []NodeID) Node {
	if len(children) != 1 {
		panic("plan: SubqueryRoot.CloneWithInputs requires exactly 1 child")
	}
	return &SubqueryRoot{In: children[0]}
}
func (n *SubqueryRoot) Equals(o Node) bool {
	on, ok := o.(*SubqueryRoot)
	return ok && n.In == on.In
}
func (n *SubqueryRoot) Describe() string { return "SubqueryRoot" }

// --- Apply -------------------------------------------------------------------

type ApplyType uint8

const (
	ApplyInner ApplyType = iota
	ApplyLeftOuter
)

func (t ApplyType) String() string {
	if t == ApplyLeftOuter {
		return "LeftOuter"
	}
	return "Inner"
}

// CorrelationContext names the correlation scope an Apply node
// introduces: an opaque id plus the outer-row columns visible to the
// right (correlated) input under that id.
type CorrelationContext struct {
	ID         expr.CorrelationID
	Parameters []int
}

type Apply struct {
	Correlation CorrelationContext
	Left        NodeID
	Right       NodeID
	Type        ApplyType
}

func (n *Apply) Kind() Kind     { return KindApply }
func (n *Apply) NumInputs() int { return 2 }
func (n *Apply) Input(i int) NodeID {
	switch i {
	case 0:
		return n.Left
	case 1:
		return n.Right
	default:
		panic("plan: Apply input index out of range")
	}
}
func (n *Apply) CloneWithInputs(children []NodeID) Node {
	if len(children) != 2 {
		panic("plan: Apply.CloneWithInputs requires exactly 2 children")
	}
	return &Apply{Correlation: n.Correlation, Left: children[0], Right: children[1], Type: n.Type}
}
func (n *Apply) Equals(o Node) bool {
	on, ok := o.(*Apply)
	if !ok || n.Type != on.Type || n.Left != on.Left || n.Right != on.Right {
		return false
	}
	if n.Correlation.ID != on.Correlation.ID || len(n.Correlation.Parameters) != len(on.Correlation.Parameters) {
		return false
	}
	for i := range n.Correlation.Parameters {
		if n.Correlation.Parameters[i] != on.Correlation.Parameters[i] {
			return false
		}
	}
	return true
}
func (n *Apply) Describe() string {
	return fmt.Sprintf("Apply %s correlation=%s params=%v", n.Type.String(), n.Correlation.ID.String(), n.Correlation.Parameters)
}

// --- shared helpers -----------------------------------------------------------

func sameCorrelation(a, b *expr.CorrelationID) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func sameExprList(a, b []expr.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

func exprListString(list []expr.Node) string {
	s := "["
	for i, e := range list {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + "]"
}

func correlationSuffix(c *expr.CorrelationID) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf(" correlation=%s", c.String())
}

// sortedUnique returns a sorted, deduplicated copy of ints.
func sortedUnique(ints []int) []int {
	cp := make([]int, len(ints))
	copy(cp, ints)
	sort.Ints(cp)
	out := cp[:0]
	for i, v := range cp {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
