package expr

import (
	"fmt"
	"sync"

	"github.com/dchest/siphash"
)

// NodeID refers to a plan node. It is defined here, rather than in the
// plan package, so that subquery-carrying expression nodes (ScalarSubquery,
// ExistsSubquery, ScalarSubqueryCmp) can reference a plan SubqueryRoot
// without this package importing plan. The plan package aliases its own
// NodeID to this type.
type NodeID int

// CorrelationID names a correlation scope introduced by an Apply node.
// It is a bare UUID rather than a wrapper type so expressions stay
// comparable and can be used as map keys.
type CorrelationID [16]byte

func (c CorrelationID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", c[0:4], c[4:6], c[6:8], c[8:10], c[10:16])
}

// Node is a scalar expression tree node. All implementations are small,
// immutable and comparable by value or by pointer; CloneWithNewInputs is
// the single place a rewrite allocates a new node.
type Node interface {
	// NumInputs returns the number of child expressions.
	NumInputs() int
	// GetInput returns the i'th child expression.
	GetInput(i int) Node
	// CloneWithNewInputs returns a copy of the node with its children
	// replaced. len(children) must equal NumInputs(). Panics on arity
	// mismatch; a node with no children (e.g. Literal, InputRef) called
	// with an empty slice returns itself.
	CloneWithNewInputs(children []Node) Node
	// DataType returns the static type of the expression, given the row
	// type of the input the expression is evaluated against.
	DataType(rowType []DataType) DataType
	// Equals reports structural equality with another node.
	Equals(other Node) bool
	String() string
}

// IdentityEqual reports whether a and b are the exact same allocation,
// the fast path rewrite combinators use to detect "nothing changed"
// without a deep comparison.
func IdentityEqual(a, b Node) bool {
	switch av := a.(type) {
	case *Literal:
		bv, ok := b.(*Literal)
		return ok && av == bv
	case *InputRef:
		bv, ok := b.(*InputRef)
		return ok && av == bv
	case *BinaryOp:
		bv, ok := b.(*BinaryOp)
		return ok && av == bv
	case *NaryOp:
		bv, ok := b.(*NaryOp)
		return ok && av == bv
	case *ScalarSubquery:
		bv, ok := b.(*ScalarSubquery)
		return ok && av == bv
	case *ExistsSubquery:
		bv, ok := b.(*ExistsSubquery)
		return ok && av == bv
	case *ScalarSubqueryCmp:
		bv, ok := b.(*ScalarSubqueryCmp)
		return ok && av == bv
	case *CorrelatedInputRef:
		bv, ok := b.(*CorrelatedInputRef)
		return ok && av == bv
	default:
		return a == b
	}
}

// --- Literal ---------------------------------------------------------

type Literal struct {
	Value Value
	Type  DataType
}

var (
	literalIntern   = map[uint64][]*Literal{}
	literalInternMu sync.Mutex
	internKey0      = uint64(0x6c69746572616c30) // arbitrary fixed siphash key
	internKey1      = uint64(0x6c69746572616c31)
)

func literalHash(v Value, t DataType) uint64 {
	b := []byte(v.String() + "|" + t.String())
	return siphash.Hash(internKey0, internKey1, b)
}

// NewLiteral returns the canonical *Literal for (v, t), reusing a
// previously interned pointer when one with the same value and type was
// already built. This gives structurally-equal leaves pointer identity,
// which lets downstream fingerprinting (plan structural dedup) and
// rewrite combinators use pointer comparisons as a fast path.
func NewLiteral(v Value, t DataType) *Literal {
	h := literalHash(v, t)
	literalInternMu.Lock()
	defer literalInternMu.Unlock()
	for _, cand := range literalIntern[h] {
		if cand.Value.Equals(v) && cand.Type.Equals(t) {
			return cand
		}
	}
	l := &Literal{Value: v, Type: t}
	literalIntern[h] = append(literalIntern[h], l)
	return l
}

func NewBool(b bool) *Literal       { return NewLiteral(BoolValue(b), TypeBool) }
func TrueLiteral() *Literal         { return NewBool(true) }
func FalseLiteral() *Literal        { return NewBool(false) }
func NewInt32(i int32) *Literal     { return NewLiteral(Int32Value(i), TypeInt) }
func NewInt64(i int64) *Literal     { return NewLiteral(Int64Value(i), TypeBigInt) }
func NewString(s string) *Literal   { return NewLiteral(StringValue(s), TypeString) }
func NewNull(t DataType) *Literal   { return NewLiteral(NullValue(), t) }

func (l *Literal) NumInputs() int                     { return 0 }
func (l *Literal) GetInput(i int) Node                 { panic("expr: Literal has no inputs") }
func (l *Literal) CloneWithNewInputs(children []Node) Node {
	if len(children) != 0 {
		panic("expr: Literal.CloneWithNewInputs called with non-empty children")
	}
	return l
}
func (l *Literal) DataType(rowType []DataType) DataType { return l.Type }
func (l *Literal) Equals(o Node) bool {
	ol, ok := o.(*Literal)
	return ok && (l == ol || (l.Type.Equals(ol.Type) && l.Value.Equals(ol.Value)))
}
func (l *Literal) String() string {
	if l.Value.Kind == ValNull {
		return "null"
	}
	return l.Value.String()
}

// --- InputRef ----------------------------------------------------------

type InputRef struct {
	Index int
}

var (
	inputRefIntern   = map[int]*InputRef{}
	inputRefInternMu sync.Mutex
)

func NewInputRef(i int) *InputRef {
	inputRefInternMu.Lock()
	defer inputRefInternMu.Unlock()
	if r, ok := inputRefIntern[i]; ok {
		return r
	}
	r := &InputRef{Index: i}
	inputRefIntern[i] = r
	return r
}

func (r *InputRef) NumInputs() int     { return 0 }
func (r *InputRef) GetInput(i int) Node { panic("expr: InputRef has no inputs") }
func (r *InputRef) CloneWithNewInputs(children []Node) Node {
	if len(children) != 0 {
		panic("expr: InputRef.CloneWithNewInputs called with non-empty children")
	}
	return r
}
func (r *InputRef) DataType(rowType []DataType) DataType {
	if r.Index < 0 || r.Index >= len(rowType) {
		panic(fmt.Sprintf("expr: InputRef index %d out of range of row type with %d columns", r.Index, len(rowType)))
	}
	return rowType[r.Index]
}
func (r *InputRef) Equals(o Node) bool {
	or, ok := o.(*InputRef)
	return ok && (r == or || r.Index == or.Index)
}
func (r *InputRef) String() string { return fmt.Sprintf("ref_%d", r.Index) }

// --- BinaryOp ------------------------------------------------------------

type BinOp uint8

const (
	OpEq BinOp = iota
	OpRawEq
	OpGt
	OpGe
	OpLt
	OpLe
)

func (op BinOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpRawEq:
		return "raw="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	default:
		return "?"
	}
}

type BinaryOp struct {
	Op          BinOp
	Left, Right Node
}

func NewBinaryOp(op BinOp, left, right Node) *BinaryOp {
	return &BinaryOp{Op: op, Left: left, Right: right}
}

func (b *BinaryOp) NumInputs() int { return 2 }
func (b *BinaryOp) GetInput(i int) Node {
	switch i {
	case 0:
		return b.Left
	case 1:
		return b.Right
	default:
		panic("expr: BinaryOp input index out of range")
	}
}
func (b *BinaryOp) CloneWithNewInputs(children []Node) Node {
	if len(children) != 2 {
		panic("expr: BinaryOp.CloneWithNewInputs requires exactly 2 children")
	}
	return NewBinaryOp(b.Op, children[0], children[1])
}
func (b *BinaryOp) DataType(rowType []DataType) DataType { return TypeBool }
func (b *BinaryOp) Equals(o Node) bool {
	ob, ok := o.(*BinaryOp)
	if !ok {
		return false
	}
	if b == ob {
		return true
	}
	return b.Op == ob.Op && b.Left.Equals(ob.Left) && b.Right.Equals(ob.Right)
}
func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op.String(), b.Right.String())
}

// --- NaryOp --------------------------------------------------------------

type NaryOpKind uint8

const (
	OpAnd NaryOpKind = iota
	OpOr
	OpConcat
)

func (op NaryOpKind) String() string {
	switch op {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpConcat:
		return "concat"
	default:
		return "?"
	}
}

type NaryOp struct {
	Op       NaryOpKind
	Operands []Node
}

func NewNaryOp(op NaryOpKind, operands ...Node) *NaryOp {
	cp := make([]Node, len(operands))
	copy(cp, operands)
	return &NaryOp{Op: op, Operands: cp}
}

func (n *NaryOp) NumInputs() int       { return len(n.Operands) }
func (n *NaryOp) GetInput(i int) Node  { return n.Operands[i] }
func (n *NaryOp) CloneWithNewInputs(children []Node) Node {
	if len(children) != len(n.Operands) {
		panic("expr: NaryOp.CloneWithNewInputs arity mismatch")
	}
	return NewNaryOp(n.Op, children...)
}
func (n *NaryOp) DataType(rowType []DataType) DataType {
	if n.Op == OpConcat {
		return TypeString
	}
	return TypeBool
}
func (n *NaryOp) Equals(o Node) bool {
	on, ok := o.(*NaryOp)
	if !ok || n.Op != on.Op || len(n.Operands) != len(on.Operands) {
		return false
	}
	if n == on {
		return true
	}
	for i := range n.Operands {
		if !n.Operands[i].Equals(on.Operands[i]) {
			return false
		}
	}
	return true
}
func (n *NaryOp) String() string {
	s := fmt.Sprintf("%s(", n.Op.String())
	for i, o := range n.Operands {
		if i > 0 {
			s += ", "
		}
		s += o.String()
	}
	return s + ")"
}

// --- Subquery-carrying nodes ----------------------------------------------

// ScalarSubquery evaluates to the single scalar value produced by the
// SubqueryRoot plan node Subquery. Its result type is fixed at
// construction time, since it is derived from the subquery's own row
// type rather than from any input to this expression.
type ScalarSubquery struct {
	Subquery NodeID
	Type     DataType
}

func NewScalarSubquery(subquery NodeID, t DataType) *ScalarSubquery {
	return &ScalarSubquery{Subquery: subquery, Type: t}
}

func (s *ScalarSubquery) NumInputs() int                     { return 0 }
func (s *ScalarSubquery) GetInput(i int) Node                 { panic("expr: ScalarSubquery has no inputs") }
func (s *ScalarSubquery) CloneWithNewInputs(children []Node) Node {
	if len(children) != 0 {
		panic("expr: ScalarSubquery.CloneWithNewInputs called with non-empty children")
	}
	return s
}
func (s *ScalarSubquery) DataType(rowType []DataType) DataType { return s.Type }
func (s *ScalarSubquery) Equals(o Node) bool {
	os, ok := o.(*ScalarSubquery)
	return ok && (s == os || (s.Subquery == os.Subquery && s.Type.Equals(os.Type)))
}
func (s *ScalarSubquery) String() string { return fmt.Sprintf("Subquery(%d)", s.Subquery) }

// ExistsSubquery evaluates to true iff the SubqueryRoot plan node
// Subquery produces at least one row.
type ExistsSubquery struct {
	Subquery NodeID
}

func NewExistsSubquery(subquery NodeID) *ExistsSubquery {
	return &ExistsSubquery{Subquery: subquery}
}

func (s *ExistsSubquery) NumInputs() int                     { return 0 }
func (s *ExistsSubquery) GetInput(i int) Node                 { panic("expr: ExistsSubquery has no inputs") }
func (s *ExistsSubquery) CloneWithNewInputs(children []Node) Node {
	if len(children) != 0 {
		panic("expr: ExistsSubquery.CloneWithNewInputs called with non-empty children")
	}
	return s
}
func (s *ExistsSubquery) DataType(rowType []DataType) DataType { return TypeBool }
func (s *ExistsSubquery) Equals(o Node) bool {
	os, ok := o.(*ExistsSubquery)
	return ok && (s == os || s.Subquery == os.Subquery)
}
func (s *ExistsSubquery) String() string { return fmt.Sprintf("Exists(%d)", s.Subquery) }

// ScalarSubqueryCmp compares Operand against the single scalar value
// produced by Subquery using Op, short-circuiting the ScalarSubquery
// wrapper otherwise required to express `operand op (subquery)`.
type ScalarSubqueryCmp struct {
	Op       BinOp
	Operand  Node
	Subquery NodeID
}

func NewScalarSubqueryCmp(op BinOp, operand Node, subquery NodeID) *ScalarSubqueryCmp {
	return &ScalarSubqueryCmp{Op: op, Operand: operand, Subquery: subquery}
}

func (s *ScalarSubqueryCmp) NumInputs() int { return 1 }
func (s *ScalarSubqueryCmp) GetInput(i int) Node {
	if i != 0 {
		panic("expr: ScalarSubqueryCmp input index out of range")
	}
	return s.Operand
}
func (s *ScalarSubqueryCmp) CloneWithNewInputs(children []Node) Node {
	if len(children) != 1 {
		panic("expr: ScalarSubqueryCmp.CloneWithNewInputs requires exactly 1 child")
	}
	return NewScalarSubqueryCmp(s.Op, children[0], s.Subquery)
}
func (s *ScalarSubqueryCmp) DataType(rowType []DataType) DataType { return TypeBool }
func (s *ScalarSubqueryCmp) Equals(o Node) bool {
	os, ok := o.(*ScalarSubqueryCmp)
	if !ok {
		return false
	}
	if s == os {
		return true
	}
	return s.Op == os.Op && s.Subquery == os.Subquery && s.Operand.Equals(os.Operand)
}
func (s *ScalarSubqueryCmp) String() string {
	return fmt.Sprintf("(%s %s Subquery(%d))", s.Operand.String(), s.Op.String(), s.Subquery)
}

// CorrelatedInputRef references a column of the outer plan from within a
// correlated subquery introduced by an Apply node's right input.
type CorrelatedInputRef struct {
	Correlation CorrelationID
	Index       int
	Type        DataType
}

func NewCorrelatedInputRef(corr CorrelationID, index int, t DataType) *CorrelatedInputRef {
	return &CorrelatedInputRef{Correlation: corr, Index: index, Type: t}
}

func (c *CorrelatedInputRef) NumInputs() int { return 0 }
func (c *CorrelatedInputRef) GetInput(i int) Node {
	panic("expr: CorrelatedInputRef has no inputs")
}
func (c *CorrelatedInputRef) CloneWithNewInputs(children []Node) Node {
	if len(children) != 0 {
		panic("expr: CorrelatedInputRef.CloneWithNewInputs called with non-empty children")
	}
	return c
}
func (c *CorrelatedInputRef) DataType(rowType []DataType) DataType { return c.Type }
func (c *CorrelatedInputRef) Equals(o Node) bool {
	oc, ok := o.(*CorrelatedInputRef)
	return ok && (c == oc || (c.Correlation == oc.Correlation && c.Index == oc.Index))
}
func (c *CorrelatedInputRef) String() string {
	return fmt.Sprintf("CorrelatedRef(%s, %d)", c.Correlation.String(), c.Index)
}
