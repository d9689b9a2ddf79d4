// internal/parser/stmt.go
package parser

// Stmt represents a statement.
type Stmt interface {
	Node
	stmtNode()
}

// Program is a parsed script. It is never mutated after Parse returns, so
// one Program may be executed by any number of concurrent runs.
type Program struct {
	Body  *Block
	Procs []*ProcDecl
	// Explicit is set by Option Explicit.
	Explicit bool
	// Lines holds the source text for error context; nil when the program
	// was parsed from tokens.
	Lines []string
}

// Block is a sequence of statements.
type Block struct {
	Line  int
	Stmts []Stmt
}

// DimDecl declares one name. Bounds is nil for a scalar; Dynamic marks
// `Dim a()`.
type DimDecl struct {
	Name    string
	Bounds  []Expr
	Dynamic bool
}

// DimStmt: Dim a, b(3), c()
type DimStmt struct {
	Line  int
	Decls []DimDecl
}

// ReDimStmt: ReDim [Preserve] a(n)
type ReDimStmt struct {
	Line     int
	Preserve bool
	Decls    []DimDecl
}

// ConstStmt: Const a = 1, b = "x"
type ConstStmt struct {
	Line   int
	Names  []string
	Values []Expr
}

// AssignStmt: [Set] target = value. Target is an Ident, Call, Index or
// Member.
type AssignStmt struct {
	Line   int
	Target Expr
	Value  Expr
	Set    bool
}

// IfBranch is one If or ElseIf arm.
type IfBranch struct {
	Cond Expr
	Body *Block
}

// IfStmt covers both the single-line and the block form.
type IfStmt struct {
	Line       int
	Branches   []IfBranch
	Else       *Block
	SingleLine bool
}

// ForStmt: For v = start To end [Step step] ... Next
type ForStmt struct {
	Line  int
	Var   string
	Start Expr
	End   Expr
	Step  Expr
	Body  *Block
}

// ForEachStmt: For Each v In collection ... Next
type ForEachStmt struct {
	Line       int
	Var        string
	Collection Expr
	Body       *Block
}

// WhileStmt: While cond ... Wend
type WhileStmt struct {
	Line int
	Cond Expr
	Body *Block
}

// DoLoopStmt: Do [While|Until cond] ... Loop [While|Until cond]. Cond is
// nil for an unconditional loop.
type DoLoopStmt struct {
	Line    int
	Cond    Expr
	Until   bool
	PreTest bool
	Body    *Block
}

// CaseClause is one Case arm of a Select Case.
type CaseClause struct {
	Line   int
	Values []Expr
	Body   *Block
}

// SelectStmt: Select Case subject ... End Select
type SelectStmt struct {
	Line    int
	Subject Expr
	Cases   []CaseClause
	Else    *Block
}

// Param is one formal parameter.
type Param struct {
	Name     string
	ByVal    bool
	Optional bool
	Default  Expr
	IsArray  bool
}

// ProcDecl declares a Function or a Sub.
type ProcDecl struct {
	Line       int
	Name       string
	IsFunction bool
	Private    bool
	Params     []Param
	Body       *Block
}

// ExitKind names the construct an Exit statement leaves.
type ExitKind string

const (
	ExitFor      ExitKind = "For"
	ExitDo       ExitKind = "Do"
	ExitFunction ExitKind = "Function"
	ExitSub      ExitKind = "Sub"
)

// ExitStmt: Exit For | Do | Function | Sub
type ExitStmt struct {
	Line int
	Kind ExitKind
}

// OnErrorStmt: On Error Resume Next | On Error GoTo 0
type OnErrorStmt struct {
	Line       int
	ResumeNext bool
}

// OptionExplicitStmt: Option Explicit
type OptionExplicitStmt struct {
	Line int
}

// ExprStmt is a statement consisting of a call or bare expression.
// Explicit marks the `Call f(...)` form.
type ExprStmt struct {
	Line     int
	Expr     Expr
	Explicit bool
}

func (s *Block) Pos() int              { return s.Line }
func (s *DimStmt) Pos() int            { return s.Line }
func (s *ReDimStmt) Pos() int          { return s.Line }
func (s *ConstStmt) Pos() int          { return s.Line }
func (s *AssignStmt) Pos() int         { return s.Line }
func (s *IfStmt) Pos() int             { return s.Line }
func (s *ForStmt) Pos() int            { return s.Line }
func (s *ForEachStmt) Pos() int        { return s.Line }
func (s *WhileStmt) Pos() int          { return s.Line }
func (s *DoLoopStmt) Pos() int         { return s.Line }
func (s *SelectStmt) Pos() int         { return s.Line }
func (s *ProcDecl) Pos() int           { return s.Line }
func (s *ExitStmt) Pos() int           { return s.Line }
func (s *OnErrorStmt) Pos() int        { return s.Line }
func (s *OptionExplicitStmt) Pos() int { return s.Line }
func (s *ExprStmt) Pos() int           { return s.Line }

func (*Block) stmtNode()              {}
func (*DimStmt) stmtNode()            {}
func (*ReDimStmt) stmtNode()          {}
func (*ConstStmt) stmtNode()          {}
func (*AssignStmt) stmtNode()         {}
func (*IfStmt) stmtNode()             {}
func (*ForStmt) stmtNode()            {}
func (*ForEachStmt) stmtNode()        {}
func (*WhileStmt) stmtNode()          {}
func (*DoLoopStmt) stmtNode()         {}
func (*SelectStmt) stmtNode()         {}
func (*ProcDecl) stmtNode()           {}
func (*ExitStmt) stmtNode()           {}
func (*OnErrorStmt) stmtNode()        {}
func (*OptionExplicitStmt) stmtNode() {}
func (*ExprStmt) stmtNode()           {}
