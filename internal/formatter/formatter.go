// Package formatter prints a parsed program back as source text in one
// canonical layout: keywords in their usual casing, four-space indents and a
// blank line around each procedure. Comments are not kept by the parser and
// so do not survive formatting.
package formatter

import (
	"strconv"
	"strings"

	"vbscript/internal/parser"
	"vbscript/internal/variant"
)

type Formatter struct {
	indent    int
	indentStr string
	output    strings.Builder
	lineBreak string
}

func NewFormatter() *Formatter {
	return &Formatter{
		indentStr: "    ",
		lineBreak: "\n",
	}
}

// Source formats prog with the default settings.
func Source(prog *parser.Program) string {
	return NewFormatter().Format(prog)
}

func (f *Formatter) Format(prog *parser.Program) string {
	f.output.Reset()
	f.indent = 0
	f.formatStmts(prog.Body.Stmts)
	return f.output.String()
}

func (f *Formatter) formatStmts(stmts []parser.Stmt) {
	for i, stmt := range stmts {
		if i > 0 && f.needsBlankLine(stmts[i-1], stmt) {
			f.output.WriteString(f.lineBreak)
		}
		f.formatStmt(stmt)
	}
}

func (f *Formatter) needsBlankLine(prev, next parser.Stmt) bool {
	_, prevIsProc := prev.(*parser.ProcDecl)
	_, nextIsProc := next.(*parser.ProcDecl)
	if prevIsProc || nextIsProc {
		return true
	}
	_, prevIsOption := prev.(*parser.OptionExplicitStmt)
	return prevIsOption
}

func (f *Formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.output.WriteString(f.indentStr)
	}
}

func (f *Formatter) line(parts ...string) {
	f.writeIndent()
	for _, p := range parts {
		f.output.WriteString(p)
	}
	f.output.WriteString(f.lineBreak)
}

func (f *Formatter) body(b *parser.Block) {
	if b == nil {
		return
	}
	f.indent++
	f.formatStmts(b.Stmts)
	f.indent--
}

func (f *Formatter) formatStmt(stmt parser.Stmt) {
	switch s := stmt.(type) {
	case *parser.OptionExplicitStmt:
		f.line("Option Explicit")

	case *parser.DimStmt:
		f.line("Dim ", decls(s.Decls))

	case *parser.ReDimStmt:
		kw := "ReDim "
		if s.Preserve {
			kw = "ReDim Preserve "
		}
		f.line(kw, decls(s.Decls))

	case *parser.ConstStmt:
		parts := make([]string, len(s.Names))
		for i, name := range s.Names {
			parts[i] = name + " = " + Expr(s.Values[i])
		}
		f.line("Const ", strings.Join(parts, ", "))

	case *parser.AssignStmt:
		set := ""
		if s.Set {
			set = "Set "
		}
		f.line(set, Expr(s.Target), " = ", Expr(s.Value))

	case *parser.ExprStmt:
		f.line(statementCall(s))

	case *parser.IfStmt:
		if s.SingleLine {
			f.line(singleLineIf(s))
			return
		}
		for i, br := range s.Branches {
			kw := "If "
			if i > 0 {
				kw = "ElseIf "
			}
			f.line(kw, Expr(br.Cond), " Then")
			f.body(br.Body)
		}
		if s.Else != nil {
			f.line("Else")
			f.body(s.Else)
		}
		f.line("End If")

	case *parser.ForStmt:
		head := "For " + s.Var + " = " + Expr(s.Start) + " To " + Expr(s.End)
		if s.Step != nil {
			head += " Step " + Expr(s.Step)
		}
		f.line(head)
		f.body(s.Body)
		f.line("Next")

	case *parser.ForEachStmt:
		f.line("For Each ", s.Var, " In ", Expr(s.Collection))
		f.body(s.Body)
		f.line("Next")

	case *parser.WhileStmt:
		f.line("While ", Expr(s.Cond))
		f.body(s.Body)
		f.line("Wend")

	case *parser.DoLoopStmt:
		cond := ""
		if s.Cond != nil {
			cond = " While " + Expr(s.Cond)
			if s.Until {
				cond = " Until " + Expr(s.Cond)
			}
		}
		if s.PreTest {
			f.line("Do", cond)
			f.body(s.Body)
			f.line("Loop")
		} else {
			f.line("Do")
			f.body(s.Body)
			f.line("Loop", cond)
		}

	case *parser.SelectStmt:
		f.line("Select Case ", Expr(s.Subject))
		f.indent++
		for _, c := range s.Cases {
			f.line("Case ", exprList(c.Values))
			f.body(c.Body)
		}
		if s.Else != nil {
			f.line("Case Else")
			f.body(s.Else)
		}
		f.indent--
		f.line("End Select")

	case *parser.ProcDecl:
		kind := "Sub"
		if s.IsFunction {
			kind = "Function"
		}
		scope := ""
		if s.Private {
			scope = "Private "
		}
		f.line(scope, kind, " ", s.Name, "(", params(s.Params), ")")
		f.body(s.Body)
		f.line("End ", kind)

	case *parser.ExitStmt:
		f.line("Exit ", string(s.Kind))

	case *parser.OnErrorStmt:
		if s.ResumeNext {
			f.line("On Error Resume Next")
		} else {
			f.line("On Error GoTo 0")
		}

	case *parser.Block:
		f.formatStmts(s.Stmts)
	}
}

// singleLineIf keeps the one-line form, joining several statements with
// colons.
func singleLineIf(s *parser.IfStmt) string {
	var sb strings.Builder
	br := s.Branches[0]
	sb.WriteString("If " + Expr(br.Cond) + " Then " + inline(br.Body))
	if s.Else != nil {
		sb.WriteString(" Else " + inline(s.Else))
	}
	return sb.String()
}

func inline(b *parser.Block) string {
	if b == nil {
		return ""
	}
	parts := make([]string, 0, len(b.Stmts))
	for _, stmt := range b.Stmts {
		sub := &Formatter{lineBreak: "\n"}
		sub.formatStmt(stmt)
		parts = append(parts, strings.TrimSuffix(sub.output.String(), "\n"))
	}
	return strings.Join(parts, ": ")
}

// statementCall prints a call used as a statement. Without Call the
// arguments follow the name bare.
func statementCall(s *parser.ExprStmt) string {
	if s.Explicit {
		return "Call " + Expr(s.Expr)
	}
	switch e := s.Expr.(type) {
	case *parser.Call:
		if e.Parens {
			return Expr(e)
		}
		return bare(e.Name, e.Args)
	case *parser.Member:
		return bare(Expr(e.Object)+"."+e.Name, e.Args)
	}
	return Expr(s.Expr)
}

func bare(head string, args []parser.Expr) string {
	if len(args) == 0 {
		return head
	}
	return head + " " + exprList(args)
}

func decls(ds []parser.DimDecl) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		switch {
		case d.Dynamic:
			parts[i] = d.Name + "()"
		case d.Bounds != nil:
			parts[i] = d.Name + "(" + exprList(d.Bounds) + ")"
		default:
			parts[i] = d.Name
		}
	}
	return strings.Join(parts, ", ")
}

func params(ps []parser.Param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		var sb strings.Builder
		if p.Optional {
			sb.WriteString("Optional ")
		}
		if p.ByVal {
			sb.WriteString("ByVal ")
		}
		sb.WriteString(p.Name)
		if p.IsArray {
			sb.WriteString("()")
		}
		if p.Default != nil {
			sb.WriteString(" = " + Expr(p.Default))
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, ", ")
}

// exprList prints arguments; an omitted argument prints as nothing.
func exprList(es []parser.Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		if e != nil {
			parts[i] = Expr(e)
		}
	}
	return strings.Join(parts, ", ")
}

// Expr prints one expression. Parentheses appear only where the source had
// them, since the tree keeps them as Paren nodes.
func Expr(expr parser.Expr) string {
	switch e := expr.(type) {
	case *parser.Literal:
		return literal(e.Value)
	case *parser.Ident:
		return e.Name
	case *parser.Binary:
		return Expr(e.Left) + " " + string(e.Op) + " " + Expr(e.Right)
	case *parser.Unary:
		if e.Op == parser.OpNot {
			return "Not " + Expr(e.Operand)
		}
		return string(e.Op) + Expr(e.Operand)
	case *parser.Paren:
		return "(" + Expr(e.Inner) + ")"
	case *parser.Call:
		if !e.Parens && len(e.Args) == 0 {
			return e.Name
		}
		return e.Name + "(" + exprList(e.Args) + ")"
	case *parser.Index:
		return e.Name + "(" + exprList(e.Indices) + ")"
	case *parser.Member:
		s := Expr(e.Object) + "." + e.Name
		if e.HasArgs {
			s += "(" + exprList(e.Args) + ")"
		}
		return s
	case *parser.Apply:
		return Expr(e.Target) + "(" + exprList(e.Args) + ")"
	}
	return ""
}

func literal(v variant.Variant) string {
	switch v.Kind() {
	case variant.KindEmpty:
		return "Empty"
	case variant.KindNull:
		return "Null"
	case variant.KindBoolean:
		if v.Bool() {
			return "True"
		}
		return "False"
	case variant.KindInteger, variant.KindLong:
		return strconv.FormatInt(v.Int(), 10)
	case variant.KindDouble:
		s := variant.FormatDouble(v.Float())
		if !strings.ContainsAny(s, ".E") {
			s += ".0"
		}
		return s
	case variant.KindString:
		return `"` + strings.ReplaceAll(v.Str(), `"`, `""`) + `"`
	case variant.KindDate:
		return "#" + variant.FormatDate(v.Time()) + "#"
	case variant.KindObject:
		return "Nothing"
	}
	return variant.ToString(v)
}
