package parser

import "vbscript/internal/variant"

// Node is implemented by every syntax tree node. Line is the 1-based source
// line the node starts on.
type Node interface {
	Pos() int
}

type Expr interface {
	Node
	exprNode()
}

// Op names a unary or binary operator by its canonical spelling.
type Op string

const (
	OpAdd    Op = "+"
	OpSub    Op = "-"
	OpMul    Op = "*"
	OpDiv    Op = "/"
	OpIntDiv Op = "\\"
	OpPow    Op = "^"
	OpConcat Op = "&"
	OpMod    Op = "Mod"
	OpEq     Op = "="
	OpNe     Op = "<>"
	OpLt     Op = "<"
	OpGt     Op = ">"
	OpLe     Op = "<="
	OpGe     Op = ">="
	OpIs     Op = "Is"
	OpNot    Op = "Not"
	OpAnd    Op = "And"
	OpOr     Op = "Or"
	OpXor    Op = "Xor"
	OpEqv    Op = "Eqv"
	OpImp    Op = "Imp"
	OpNeg    Op = "-"
	OpPlus   Op = "+"
)

// Literal is a constant: number, string, date, True/False, Empty, Null or
// Nothing.
type Literal struct {
	Line  int
	Value variant.Variant
}

// Ident is a bare name: a variable, a constant, or a call without
// arguments.
type Ident struct {
	Line int
	Name string
}

// Binary expression: a + b
type Binary struct {
	Line  int
	Op    Op
	Left  Expr
	Right Expr
}

// Unary expression: -x, Not x
type Unary struct {
	Line    int
	Op      Op
	Operand Expr
}

// Paren is a parenthesized expression. It is kept in the tree because a
// parenthesized argument is passed by value.
type Paren struct {
	Line  int
	Inner Expr
}

// Call is name(args) or name args. Whether the name is a procedure, an
// intrinsic, a host object or an array variable is decided at run time.
// A nil argument is an omitted optional argument.
type Call struct {
	Line   int
	Name   string
	Args   []Expr
	Parens bool
}

// Index is an element access on a name the program declares as an array.
type Index struct {
	Line    int
	Name    string
	Indices []Expr
}

// Member is object.Name or object.Name(args), routed to the host object's
// Invoke.
type Member struct {
	Line    int
	Object  Expr
	Name    string
	Args    []Expr
	HasArgs bool
}

// Apply is an argument list applied to the value of a call or member
// access, as in Split(s, ",")(0): an element of a returned array or the
// default member of a returned object.
type Apply struct {
	Line   int
	Target Expr
	Args   []Expr
}

func (e *Literal) Pos() int { return e.Line }
func (e *Ident) Pos() int   { return e.Line }
func (e *Binary) Pos() int  { return e.Line }
func (e *Unary) Pos() int   { return e.Line }
func (e *Paren) Pos() int   { return e.Line }
func (e *Call) Pos() int    { return e.Line }
func (e *Index) Pos() int   { return e.Line }
func (e *Member) Pos() int  { return e.Line }
func (e *Apply) Pos() int   { return e.Line }

func (*Literal) exprNode() {}
func (*Ident) exprNode()   {}
func (*Binary) exprNode()  {}
func (*Unary) exprNode()   {}
func (*Paren) exprNode()   {}
func (*Call) exprNode()    {}
func (*Index) exprNode()   {}
func (*Member) exprNode()  {}
func (*Apply) exprNode()   {}
