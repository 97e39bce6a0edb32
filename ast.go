package formulaengine

// NodePosition is the half-open source span [Start, End) of a token or
// subtree within the original formula text.
type NodePosition struct {
	Start int
	End   int
}

// NodeKind is the discriminant of the syntax tree sum type.
type NodeKind int

const (
	KindValue NodeKind = iota
	KindEmpty
	KindReference
	KindRange
	KindFunction
	KindUnaryOp
	KindBinaryOp
	KindArray
	KindNamedExpression
	KindThreeDRange
	KindStructuredReference
	KindInfinity
	KindError
)

// Node is the common interface implemented by every syntax tree variant.
// Consumers switch on Kind() rather than using open-class dispatch.
type Node interface {
	Kind() NodeKind
	Pos() NodePosition
}

// AbsoluteFlag marks which components of a reference are pinned with '$'
// and therefore untouched by relative-shift rewriting.
type AbsoluteFlag struct {
	Col bool
	Row bool
}

type BinaryOperator int

const (
	OpAdd BinaryOperator = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpPower
	OpConcat
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

type UnaryOperator int

const (
	OpUnaryPlus UnaryOperator = iota
	OpUnaryMinus
	OpUnaryPercent
)

// ValueNode is a literal number, string, or boolean.
type ValueNode struct {
	Value    CellValue
	Position NodePosition
}

func (n *ValueNode) Kind() NodeKind    { return KindValue }
func (n *ValueNode) Pos() NodePosition { return n.Position }

// EmptyNode is the parser's output for an empty or whitespace-only formula.
type EmptyNode struct {
	Position NodePosition
}

func (n *EmptyNode) Kind() NodeKind    { return KindEmpty }
func (n *EmptyNode) Pos() NodePosition { return n.Position }

// ReferenceNode is a single-cell reference, optionally sheet/workbook
// qualified, with independent absolute flags per axis.
type ReferenceNode struct {
	Column     uint32
	Row        uint32
	IsAbsolute AbsoluteFlag
	Sheet      *string
	Workbook   *string
	Position   NodePosition
}

func (n *ReferenceNode) Kind() NodeKind    { return KindReference }
func (n *ReferenceNode) Pos() NodePosition { return n.Position }

// RangeNode is a (possibly open-ended) rectangular reference.
type RangeNode struct {
	StartCol      uint32
	StartRow      uint32
	EndCol        Bound
	EndRow        Bound
	StartAbsolute AbsoluteFlag
	EndAbsolute   AbsoluteFlag
	Sheet         *string
	Workbook      *string
	Position      NodePosition
}

func (n *RangeNode) Kind() NodeKind    { return KindRange }
func (n *RangeNode) Pos() NodePosition { return n.Position }

// FunctionNode is a call NAME(args...); Name is always uppercased.
type FunctionNode struct {
	Name     string
	Args     []Node
	Position NodePosition
}

func (n *FunctionNode) Kind() NodeKind    { return KindFunction }
func (n *FunctionNode) Pos() NodePosition { return n.Position }

type UnaryOpNode struct {
	Op       UnaryOperator
	Operand  Node
	Position NodePosition
}

func (n *UnaryOpNode) Kind() NodeKind    { return KindUnaryOp }
func (n *UnaryOpNode) Pos() NodePosition { return n.Position }

type BinaryOpNode struct {
	Op       BinaryOperator
	Left     Node
	Right    Node
	Position NodePosition
}

func (n *BinaryOpNode) Kind() NodeKind    { return KindBinaryOp }
func (n *BinaryOpNode) Pos() NodePosition { return n.Position }

// ArrayNode is a `{1,2;3,4}`-style literal. All rows must be equal length;
// the parser enforces this at construction time.
type ArrayNode struct {
	Rows     [][]Node
	Position NodePosition
}

func (n *ArrayNode) Kind() NodeKind    { return KindArray }
func (n *ArrayNode) Pos() NodePosition { return n.Position }

type NamedExpressionNode struct {
	Name     string
	Sheet    *string
	Workbook *string
	Position NodePosition
}

func (n *NamedExpressionNode) Kind() NodeKind    { return KindNamedExpression }
func (n *NamedExpressionNode) Pos() NodePosition { return n.Position }

// ThreeDRangeNode spans a contiguous run of sheets, e.g. "Sheet1:Sheet3!A1:B2".
// Inner is a *ReferenceNode or *RangeNode with Sheet/Workbook left nil
// (the 3D range owns sheet qualification).
type ThreeDRangeNode struct {
	StartSheet string
	EndSheet   string
	Workbook   *string
	Inner      Node
	Position   NodePosition
}

func (n *ThreeDRangeNode) Kind() NodeKind    { return KindThreeDRange }
func (n *ThreeDRangeNode) Pos() NodePosition { return n.Position }

// StructuredSelector distinguishes the #All/#Data/#Headers table selectors.
type StructuredSelector int

const (
	SelectorNone StructuredSelector = iota
	SelectorAll
	SelectorData
	SelectorHeaders
)

// StructuredReferenceNode covers Table1[Col], Table1[[#Headers],[Col1]:[Col2]],
// [@Col], and [#Data] forms.
type StructuredReferenceNode struct {
	Table        *string
	Sheet        *string
	Workbook     *string
	StartColumn  *string
	EndColumn    *string
	Selector     StructuredSelector
	IsCurrentRow bool
	Position     NodePosition
}

func (n *StructuredReferenceNode) Kind() NodeKind    { return KindStructuredReference }
func (n *StructuredReferenceNode) Pos() NodePosition { return n.Position }

// InfinityNode is the bare `INFINITY` literal used in arithmetic contexts
// (distinct from an open range end, which is a Bound on RangeNode).
type InfinityNode struct {
	Sign     InfinitySign
	Position NodePosition
}

func (n *InfinityNode) Kind() NodeKind    { return KindInfinity }
func (n *InfinityNode) Pos() NodePosition { return n.Position }

// ErrorNode is either a parse-error placeholder or a literal `#XXX!` found
// in source text.
type ErrorNode struct {
	Code     ErrorCode
	Message  string
	Position NodePosition
}

func (n *ErrorNode) Kind() NodeKind    { return KindError }
func (n *ErrorNode) Pos() NodePosition { return n.Position }
