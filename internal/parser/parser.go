// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"vbscript/internal/errors"
	"vbscript/internal/lexer"
	"vbscript/internal/variant"
)

// Binding power of each binary operator, low to high. Not (6) and unary
// minus (13) are prefix operators handled in operand.
const (
	precNot   = 6
	precUnary = 13
	precPow   = 14
)

var precedence = map[Op]int{
	OpImp:    1,
	OpEqv:    2,
	OpXor:    3,
	OpOr:     4,
	OpAnd:    5,
	OpEq:     7,
	OpNe:     7,
	OpLt:     7,
	OpGt:     7,
	OpLe:     7,
	OpGe:     7,
	OpIs:     7,
	OpConcat: 8,
	OpAdd:    9,
	OpSub:    9,
	OpMul:    10,
	OpDiv:    10,
	OpIntDiv: 11,
	OpMod:    12,
	OpPow:    precPow,
}

var symbolOps = map[lexer.TokenType]Op{
	lexer.TokenPlus:      OpAdd,
	lexer.TokenMinus:     OpSub,
	lexer.TokenStar:      OpMul,
	lexer.TokenSlash:     OpDiv,
	lexer.TokenBackslash: OpIntDiv,
	lexer.TokenCaret:     OpPow,
	lexer.TokenAmpersand: OpConcat,
	lexer.TokenEqual:     OpEq,
	lexer.TokenNotEqual:  OpNe,
	lexer.TokenLT:        OpLt,
	lexer.TokenGT:        OpGt,
	lexer.TokenLE:        OpLe,
	lexer.TokenGE:        OpGe,
}

var wordOps = map[string]Op{
	"mod": OpMod,
	"and": OpAnd,
	"or":  OpOr,
	"xor": OpXor,
	"eqv": OpEqv,
	"imp": OpImp,
	"is":  OpIs,
}

// reserved words that can never start a statement or an operand
var reserved = map[string]bool{
	"end": true, "next": true, "wend": true, "loop": true, "else": true,
	"elseif": true, "case": true, "then": true, "to": true, "step": true,
	"each": true, "in": true, "until": true, "class": true, "with": true,
	"goto": true, "preserve": true, "byval": true, "byref": true,
	"optional": true, "new": true,
	"mod": true, "and": true, "or": true, "xor": true, "eqv": true,
	"imp": true, "is": true,
}

type Parser struct {
	tokens      []lexer.Token
	current     int
	file        string
	sourceLines []string

	arrays    map[string]bool
	loops     []string
	proc      string
	nesting   int
	inlineIf  int
	procs     []*ProcDecl
	procNames map[string]bool
	explicit  bool
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens:    tokens,
		arrays:    map[string]bool{},
		procNames: map[string]bool{},
	}
}

func NewParserWithSource(tokens []lexer.Token, source string, file string) *Parser {
	p := NewParser(tokens)
	p.file = file
	p.sourceLines = strings.Split(source, "\n")
	return p
}

// Parse builds a Program from a token stream.
func Parse(tokens []lexer.Token) (*Program, error) {
	return NewParser(tokens).Parse()
}

// ParseSource tokenizes and parses program text.
func ParseSource(source string) (*Program, error) {
	return ParseFile("", source)
}

// ParseFile is ParseSource with a file name attached to any error.
func ParseFile(file, source string) (*Program, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		if se, ok := errors.As(err); ok {
			return nil, se.WithFile(file).WithSourceLines(strings.Split(source, "\n"))
		}
		return nil, err
	}
	return NewParserWithSource(tokens, source, file).Parse()
}

// Parse runs the parser. Syntax errors unwind as panics and are converted
// back into a *errors.ScriptError here.
func (p *Parser) Parse() (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*errors.ScriptError)
			if !ok {
				panic(r)
			}
			prog, err = nil, se
		}
	}()

	if len(p.tokens) == 0 || p.tokens[len(p.tokens)-1].Type != lexer.TokenEOF {
		p.tokens = append(p.tokens, lexer.Token{Type: lexer.TokenEOF})
	}
	body := p.block(func() bool { return false })
	if !p.isAtEnd() {
		p.fail("end of input")
	}
	return &Program{
		Body:     body,
		Procs:    p.procs,
		Explicit: p.explicit,
		Lines:    p.sourceLines,
	}, nil
}

// block parses statements until done reports true at a statement start, or
// the input ends.
func (p *Parser) block(done func() bool) *Block {
	blk := &Block{Line: p.peek().Line}
	for {
		p.skipSeparators()
		if p.isAtEnd() || done() {
			return blk
		}
		if stmt := p.statement(); stmt != nil {
			blk.Stmts = append(blk.Stmts, stmt)
		}
		p.endStatement()
	}
}

func (p *Parser) statement() Stmt {
	tok := p.peek()
	if tok.Type != lexer.TokenIdent {
		p.fail("statement")
	}
	switch strings.ToLower(tok.Lexeme) {
	case "dim":
		p.advance()
		return &DimStmt{Line: tok.Line, Decls: p.declarations(false)}
	case "redim":
		return p.redimStatement()
	case "const":
		return p.constStatement()
	case "set":
		p.advance()
		target := p.reference()
		p.consume(lexer.TokenEqual, "'='")
		return &AssignStmt{Line: tok.Line, Target: target, Value: p.expression(), Set: true}
	case "if":
		return p.ifStatement()
	case "for":
		return p.forStatement()
	case "while":
		return p.whileStatement()
	case "do":
		return p.doStatement()
	case "select":
		return p.selectStatement()
	case "function", "sub":
		return p.procedure(false)
	case "public", "private":
		p.advance()
		if p.peekIs("function") || p.peekIs("sub") {
			return p.procedure(tok.Is("private"))
		}
		if p.peekIs("const") {
			return p.constStatement()
		}
		return &DimStmt{Line: tok.Line, Decls: p.declarations(false)}
	case "exit":
		return p.exitStatement()
	case "on":
		p.advance()
		p.consumeWord("Error")
		if p.matchWord("Resume") {
			p.consumeWord("Next")
			return &OnErrorStmt{Line: tok.Line, ResumeNext: true}
		}
		p.consumeWord("GoTo")
		if !p.check(lexer.TokenNumber) || p.peek().Lexeme != "0" {
			p.fail("'0'")
		}
		p.advance()
		return &OnErrorStmt{Line: tok.Line}
	case "option":
		p.advance()
		p.consumeWord("Explicit")
		p.explicit = true
		return &OptionExplicitStmt{Line: tok.Line}
	case "call":
		p.advance()
		return &ExprStmt{Line: tok.Line, Expr: asCall(p.reference()), Explicit: true}
	}
	if reserved[strings.ToLower(tok.Lexeme)] {
		p.fail("statement")
	}
	return p.simpleStatement()
}

// simpleStatement parses an assignment, a call with or without parentheses,
// or a bare expression.
func (p *Parser) simpleStatement() Stmt {
	line := p.peek().Line
	target := p.reference()
	if p.match(lexer.TokenEqual) {
		return &AssignStmt{Line: line, Target: target, Value: p.expression()}
	}
	if p.atStatementEnd() {
		return &ExprStmt{Line: line, Expr: byValue(asCall(target))}
	}

	// name args: the callee head takes everything up to the end of the
	// statement as its argument list. A parenthesized first argument was
	// swallowed by reference() and is resumed as an operand here.
	var args []Expr
	switch t := target.(type) {
	case *Ident:
		args = p.bareArguments(nil)
		return &ExprStmt{Line: line, Expr: &Call{Line: t.Line, Name: t.Name, Args: args}}
	case *Member:
		if t.HasArgs {
			first := p.resumeOperand(t.Line, t.Args)
			args = p.bareArguments(first)
		} else {
			args = p.bareArguments(nil)
		}
		return &ExprStmt{Line: line, Expr: &Member{Line: t.Line, Object: t.Object, Name: t.Name, Args: args, HasArgs: true}}
	case *Call:
		first := p.resumeOperand(t.Line, t.Args)
		return &ExprStmt{Line: line, Expr: &Call{Line: t.Line, Name: t.Name, Args: p.bareArguments(first)}}
	case *Index:
		first := p.resumeOperand(t.Line, t.Indices)
		return &ExprStmt{Line: line, Expr: &Call{Line: t.Line, Name: t.Name, Args: p.bareArguments(first)}}
	}
	p.fail("end of statement")
	return nil
}

// resumeOperand turns `f (x) op ...` back into the operand `(x) op ...`.
func (p *Parser) resumeOperand(line int, args []Expr) Expr {
	if len(args) != 1 || args[0] == nil {
		p.fail("end of statement")
	}
	return p.binaryFrom(&Paren{Line: line, Inner: args[0]}, 0)
}

// bareArguments parses a comma separated argument list running to the end
// of the statement. first, when set, is the already parsed first argument.
func (p *Parser) bareArguments(first Expr) []Expr {
	var args []Expr
	if first != nil {
		args = append(args, first)
		if !p.match(lexer.TokenComma) {
			return args
		}
	}
	for {
		if p.check(lexer.TokenComma) || p.atStatementEnd() {
			args = append(args, nil)
		} else {
			args = append(args, p.expression())
		}
		if !p.match(lexer.TokenComma) {
			return args
		}
	}
}

// asCall turns a bare name used as a statement into a call of that name.
func asCall(e Expr) Expr {
	if id, ok := e.(*Ident); ok {
		return &Call{Line: id.Line, Name: id.Name}
	}
	if ix, ok := e.(*Index); ok {
		return &Call{Line: ix.Line, Name: ix.Name, Args: ix.Indices, Parens: true}
	}
	return e
}

// byValue rewrites a statement call written f(x) or obj.M(x) as the bare
// call f (x): the parentheses belong to the argument, which is then passed
// by value.
func byValue(e Expr) Expr {
	switch c := e.(type) {
	case *Call:
		if c.Parens && len(c.Args) == 1 && c.Args[0] != nil {
			return &Call{Line: c.Line, Name: c.Name, Args: []Expr{parenthesize(c.Line, c.Args[0])}}
		}
	case *Member:
		if c.HasArgs && len(c.Args) == 1 && c.Args[0] != nil {
			return &Member{Line: c.Line, Object: c.Object, Name: c.Name, Args: []Expr{parenthesize(c.Line, c.Args[0])}, HasArgs: true}
		}
	}
	return e
}

func parenthesize(line int, e Expr) Expr {
	if _, ok := e.(*Paren); ok {
		return e
	}
	return &Paren{Line: line, Inner: e}
}

func (p *Parser) declarations(redim bool) []DimDecl {
	var decls []DimDecl
	for {
		name := p.consumeName("variable name")
		d := DimDecl{Name: name.Lexeme}
		if p.match(lexer.TokenLParen) {
			if !redim && p.match(lexer.TokenRParen) {
				d.Dynamic = true
			} else {
				for {
					d.Bounds = append(d.Bounds, p.expression())
					if !p.match(lexer.TokenComma) {
						break
					}
				}
				p.consume(lexer.TokenRParen, "')'")
			}
			p.arrays[strings.ToLower(d.Name)] = true
		} else if redim {
			p.fail("'('")
		}
		decls = append(decls, d)
		if !p.match(lexer.TokenComma) {
			return decls
		}
	}
}

func (p *Parser) redimStatement() Stmt {
	tok := p.advance()
	preserve := p.matchWord("Preserve")
	return &ReDimStmt{Line: tok.Line, Preserve: preserve, Decls: p.declarations(true)}
}

func (p *Parser) constStatement() Stmt {
	tok := p.advance()
	stmt := &ConstStmt{Line: tok.Line}
	for {
		name := p.consumeName("constant name")
		p.consume(lexer.TokenEqual, "'='")
		stmt.Names = append(stmt.Names, name.Lexeme)
		stmt.Values = append(stmt.Values, p.expression())
		if !p.match(lexer.TokenComma) {
			return stmt
		}
	}
}

func (p *Parser) ifStatement() Stmt {
	tok := p.advance()
	cond := p.expression()
	p.consumeWord("Then")
	p.nesting++
	defer func() { p.nesting-- }()

	if !p.check(lexer.TokenNewline) && !p.check(lexer.TokenColon) && !p.isAtEnd() {
		return p.inlineIfStatement(tok.Line, cond)
	}

	stmt := &IfStmt{Line: tok.Line}
	armEnd := func() bool { return p.peekIs("ElseIf") || p.peekIs("Else") || p.isEnd("If") }
	stmt.Branches = append(stmt.Branches, IfBranch{Cond: cond, Body: p.block(armEnd)})
	for p.matchWord("ElseIf") {
		c := p.expression()
		p.consumeWord("Then")
		stmt.Branches = append(stmt.Branches, IfBranch{Cond: c, Body: p.block(armEnd)})
	}
	if p.matchWord("Else") {
		stmt.Else = p.block(func() bool { return p.isEnd("If") })
	}
	p.consumeEnd("If")
	return stmt
}

// inlineIfStatement parses `If c Then s1: s2 Else s3`, which ends at the
// line break. A nested single-line If takes the Else that follows it.
func (p *Parser) inlineIfStatement(line int, cond Expr) Stmt {
	p.inlineIf++
	defer func() { p.inlineIf-- }()

	stmt := &IfStmt{Line: line, SingleLine: true}
	stmt.Branches = []IfBranch{{Cond: cond, Body: p.inlineBody(line)}}
	if p.matchWord("Else") {
		stmt.Else = p.inlineBody(line)
	}
	return stmt
}

func (p *Parser) inlineBody(line int) *Block {
	blk := &Block{Line: line}
	for {
		if p.check(lexer.TokenNewline) || p.isAtEnd() || p.peekIs("Else") {
			return blk
		}
		if p.match(lexer.TokenColon) {
			continue
		}
		blk.Stmts = append(blk.Stmts, p.statement())
		if !p.atStatementEnd() {
			p.fail("end of statement")
		}
	}
}

func (p *Parser) forStatement() Stmt {
	tok := p.advance()
	p.nesting++
	defer func() { p.nesting-- }()

	if p.matchWord("Each") {
		name := p.consumeName("loop variable")
		p.consumeWord("In")
		coll := p.expression()
		body := p.loopBody("for", func() bool { return p.peekIs("Next") })
		p.next()
		return &ForEachStmt{Line: tok.Line, Var: name.Lexeme, Collection: coll, Body: body}
	}

	name := p.consumeName("loop variable")
	p.consume(lexer.TokenEqual, "'='")
	start := p.expression()
	p.consumeWord("To")
	end := p.expression()
	var step Expr
	if p.matchWord("Step") {
		step = p.expression()
	}
	body := p.loopBody("for", func() bool { return p.peekIs("Next") })
	p.next()
	return &ForStmt{Line: tok.Line, Var: name.Lexeme, Start: start, End: end, Step: step, Body: body}
}

// next consumes `Next [name]`.
func (p *Parser) next() {
	p.consumeWord("Next")
	if p.check(lexer.TokenIdent) && !p.atStatementEnd() {
		p.advance()
	}
}

func (p *Parser) loopBody(kind string, done func() bool) *Block {
	p.loops = append(p.loops, kind)
	body := p.block(done)
	p.loops = p.loops[:len(p.loops)-1]
	return body
}

func (p *Parser) whileStatement() Stmt {
	tok := p.advance()
	p.nesting++
	defer func() { p.nesting-- }()
	cond := p.expression()
	body := p.block(func() bool { return p.peekIs("Wend") })
	p.consumeWord("Wend")
	return &WhileStmt{Line: tok.Line, Cond: cond, Body: body}
}

func (p *Parser) doStatement() Stmt {
	tok := p.advance()
	p.nesting++
	defer func() { p.nesting-- }()

	stmt := &DoLoopStmt{Line: tok.Line}
	if p.peekIs("While") || p.peekIs("Until") {
		stmt.Until = p.advance().Is("Until")
		stmt.PreTest = true
		stmt.Cond = p.expression()
	}
	stmt.Body = p.loopBody("do", func() bool { return p.peekIs("Loop") })
	p.consumeWord("Loop")
	if p.peekIs("While") || p.peekIs("Until") {
		if stmt.PreTest {
			p.fail("end of statement")
		}
		stmt.Until = p.advance().Is("Until")
		stmt.Cond = p.expression()
	}
	return stmt
}

func (p *Parser) selectStatement() Stmt {
	tok := p.advance()
	p.consumeWord("Case")
	p.nesting++
	defer func() { p.nesting-- }()

	stmt := &SelectStmt{Line: tok.Line, Subject: p.expression()}
	armEnd := func() bool { return p.peekIs("Case") || p.isEnd("Select") }
	for {
		p.skipSeparators()
		if p.isEnd("Select") {
			break
		}
		caseTok := p.consumeWord("Case")
		if p.matchWord("Else") {
			if stmt.Else != nil {
				p.fail("'End Select'")
			}
			stmt.Else = p.block(armEnd)
			continue
		}
		if stmt.Else != nil {
			p.fail("'End Select'")
		}
		clause := CaseClause{Line: caseTok.Line}
		for {
			clause.Values = append(clause.Values, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		clause.Body = p.block(armEnd)
		stmt.Cases = append(stmt.Cases, clause)
	}
	p.consumeEnd("Select")
	return stmt
}

func (p *Parser) procedure(private bool) Stmt {
	tok := p.peek()
	if p.nesting > 0 || p.proc != "" {
		p.fail("statement")
	}
	p.advance()
	isFunction := tok.Is("function")
	name := p.consumeName("procedure name")
	key := strings.ToLower(name.Lexeme)
	if p.procNames[key] {
		panic(errors.NewParseError(name.Line, name.Column, "new procedure name", fmt.Sprintf("'%s' (name redefined)", name.Lexeme)).
			WithFile(p.file).WithSourceLines(p.sourceLines))
	}
	p.procNames[key] = true

	decl := &ProcDecl{Line: tok.Line, Name: name.Lexeme, IsFunction: isFunction, Private: private}
	if p.match(lexer.TokenLParen) {
		if !p.check(lexer.TokenRParen) {
			for {
				decl.Params = append(decl.Params, p.parameter())
				if !p.match(lexer.TokenComma) {
					break
				}
			}
		}
		p.consume(lexer.TokenRParen, "')'")
	}

	word := "Sub"
	p.proc = "sub"
	if isFunction {
		word = "Function"
		p.proc = "function"
	}
	savedLoops := p.loops
	p.loops = nil
	decl.Body = p.block(func() bool { return p.isEnd(word) })
	p.consumeEnd(word)
	p.loops = savedLoops
	p.proc = ""

	p.procs = append(p.procs, decl)
	return decl
}

func (p *Parser) parameter() Param {
	var param Param
	for {
		switch {
		case p.matchWord("Optional"):
			param.Optional = true
			continue
		case p.matchWord("ByVal"):
			param.ByVal = true
			continue
		case p.matchWord("ByRef"):
			param.ByVal = false
			continue
		}
		break
	}
	param.Name = p.consumeName("parameter name").Lexeme
	if p.match(lexer.TokenLParen) {
		p.consume(lexer.TokenRParen, "')'")
		param.IsArray = true
		p.arrays[strings.ToLower(param.Name)] = true
	}
	if p.match(lexer.TokenEqual) {
		param.Default = p.expression()
		param.Optional = true
	}
	return param
}

func (p *Parser) exitStatement() Stmt {
	tok := p.advance()
	kindTok := p.peek()
	var kind ExitKind
	ok := false
	switch {
	case kindTok.Is("For"):
		kind, ok = ExitFor, p.inLoop("for")
	case kindTok.Is("Do"):
		kind, ok = ExitDo, p.inLoop("do")
	case kindTok.Is("Function"):
		kind, ok = ExitFunction, p.proc == "function"
	case kindTok.Is("Sub"):
		kind, ok = ExitSub, p.proc == "sub"
	default:
		p.fail("'For', 'Do', 'Function' or 'Sub'")
	}
	if !ok {
		panic(errors.NewParseError(tok.Line, tok.Column, fmt.Sprintf("'Exit %s' inside a %s", kind, kind), fmt.Sprintf("'Exit %s' outside it", kind)).
			WithFile(p.file).WithSourceLines(p.sourceLines))
	}
	p.advance()
	return &ExitStmt{Line: tok.Line, Kind: kind}
}

func (p *Parser) inLoop(kind string) bool {
	for _, k := range p.loops {
		if k == kind {
			return true
		}
	}
	return false
}

// --- Expressions ---

func (p *Parser) expression() Expr {
	return p.binary(0)
}

func (p *Parser) binary(minPrec int) Expr {
	return p.binaryFrom(p.operand(), minPrec)
}

// binaryFrom continues precedence climbing with left as the first operand.
func (p *Parser) binaryFrom(left Expr, minPrec int) Expr {
	for {
		op, ok := p.binaryOp()
		if !ok {
			return left
		}
		prec := precedence[op]
		if prec < minPrec {
			return left
		}
		tok := p.advance()
		next := prec + 1
		if op == OpPow {
			next = prec
		}
		right := p.binary(next)
		left = &Binary{Line: tok.Line, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) binaryOp() (Op, bool) {
	tok := p.peek()
	if op, ok := symbolOps[tok.Type]; ok {
		return op, true
	}
	if tok.Type == lexer.TokenIdent {
		op, ok := wordOps[strings.ToLower(tok.Lexeme)]
		return op, ok
	}
	return "", false
}

func (p *Parser) operand() Expr {
	tok := p.peek()
	switch {
	case tok.Is("Not"):
		p.advance()
		return &Unary{Line: tok.Line, Op: OpNot, Operand: p.binary(precNot)}
	case tok.Type == lexer.TokenMinus:
		p.advance()
		return &Unary{Line: tok.Line, Op: OpNeg, Operand: p.binary(precUnary + 1)}
	case tok.Type == lexer.TokenPlus:
		p.advance()
		return &Unary{Line: tok.Line, Op: OpPlus, Operand: p.binary(precUnary + 1)}
	}
	return p.primary()
}

func (p *Parser) primary() Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		return &Literal{Line: tok.Line, Value: numberLiteral(tok.Lexeme)}
	case lexer.TokenHex, lexer.TokenOctal:
		base := 16
		if tok.Type == lexer.TokenOctal {
			base = 8
		}
		n, err := strconv.ParseUint(tok.Lexeme, base, 64)
		if err != nil {
			p.fail("numeric literal in range")
		}
		p.advance()
		return &Literal{Line: tok.Line, Value: radixLiteral(n)}
	case lexer.TokenString:
		p.advance()
		return &Literal{Line: tok.Line, Value: variant.String(tok.Lexeme)}
	case lexer.TokenDate:
		t, ok := variant.ParseDate(tok.Lexeme)
		if !ok {
			p.fail("valid date literal")
		}
		p.advance()
		return &Literal{Line: tok.Line, Value: variant.Date(t)}
	case lexer.TokenLParen:
		p.advance()
		inner := p.expression()
		p.consume(lexer.TokenRParen, "')'")
		return &Paren{Line: tok.Line, Inner: inner}
	case lexer.TokenIdent:
		switch strings.ToLower(tok.Lexeme) {
		case "true":
			p.advance()
			return &Literal{Line: tok.Line, Value: variant.Bool(true)}
		case "false":
			p.advance()
			return &Literal{Line: tok.Line, Value: variant.Bool(false)}
		case "empty":
			p.advance()
			return &Literal{Line: tok.Line, Value: variant.Empty()}
		case "null":
			p.advance()
			return &Literal{Line: tok.Line, Value: variant.Null()}
		case "nothing":
			p.advance()
			return &Literal{Line: tok.Line, Value: variant.Nothing()}
		}
		if reserved[strings.ToLower(tok.Lexeme)] {
			p.fail("expression")
		}
		return p.reference()
	}
	p.fail("expression")
	return nil
}

// reference parses name[(args)] followed by any number of .member[(args)].
func (p *Parser) reference() Expr {
	tok := p.consumeName("name")
	var expr Expr = &Ident{Line: tok.Line, Name: tok.Lexeme}
	if p.check(lexer.TokenLParen) {
		args := p.arguments()
		expr = &Call{Line: tok.Line, Name: tok.Lexeme, Args: args, Parens: true}
		if p.arrays[strings.ToLower(tok.Lexeme)] && len(args) > 0 && !hasOmitted(args) {
			expr = &Index{Line: tok.Line, Name: tok.Lexeme, Indices: args}
		}
	}
	for {
		switch {
		case p.match(lexer.TokenDot):
			name := p.consume(lexer.TokenIdent, "member name")
			m := &Member{Line: name.Line, Object: expr, Name: name.Lexeme}
			if p.check(lexer.TokenLParen) {
				m.Args = p.arguments()
				m.HasArgs = true
			}
			expr = m
		case p.check(lexer.TokenLParen):
			// Every head above has already taken its own argument list,
			// so a further one applies to the value it returns.
			expr = &Apply{Line: p.peek().Line, Target: expr, Args: p.arguments()}
		default:
			return expr
		}
	}
}

func hasOmitted(args []Expr) bool {
	for _, a := range args {
		if a == nil {
			return true
		}
	}
	return false
}

// arguments parses a parenthesized argument list. Omitted arguments, as in
// f(1, , 3), are nil.
func (p *Parser) arguments() []Expr {
	p.consume(lexer.TokenLParen, "'('")
	args := []Expr{}
	if p.match(lexer.TokenRParen) {
		return args
	}
	for {
		if p.check(lexer.TokenComma) || p.check(lexer.TokenRParen) {
			args = append(args, nil)
		} else {
			args = append(args, p.expression())
		}
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenRParen, "')'")
	return args
}

func numberLiteral(lexeme string) variant.Variant {
	if !strings.ContainsAny(lexeme, ".eE") {
		if n, err := strconv.ParseInt(lexeme, 10, 64); err == nil {
			return variant.Int(n)
		}
	}
	f, _ := strconv.ParseFloat(lexeme, 64)
	return variant.Double(f)
}

// radixLiteral gives &H and &O literals their 16 or 32 bit two's
// complement reading: &HFFFF is -1.
func radixLiteral(n uint64) variant.Variant {
	switch {
	case n <= 0xFFFF:
		return variant.Integer(int16(uint16(n)))
	case n <= 0xFFFFFFFF:
		return variant.Long(int32(uint32(n)))
	}
	return variant.Double(float64(n))
}

// --- Utility methods ---

func (p *Parser) skipSeparators() {
	for p.check(lexer.TokenNewline) || p.check(lexer.TokenColon) {
		p.advance()
	}
}

func (p *Parser) atStatementEnd() bool {
	switch p.peek().Type {
	case lexer.TokenNewline, lexer.TokenColon, lexer.TokenEOF:
		return true
	}
	return p.inlineIf > 0 && p.peekIs("Else")
}

func (p *Parser) endStatement() {
	if p.check(lexer.TokenNewline) || p.check(lexer.TokenColon) {
		p.advance()
		return
	}
	if !p.atStatementEnd() {
		p.fail("end of statement")
	}
}

// isEnd reports whether the next tokens are `End word`.
func (p *Parser) isEnd(word string) bool {
	return p.peekIs("End") && p.current+1 < len(p.tokens) && p.tokens[p.current+1].Is(word)
}

func (p *Parser) consumeEnd(word string) {
	if !p.isEnd(word) {
		p.fail("'End " + word + "'")
	}
	p.advance()
	p.advance()
}

func (p *Parser) peekIs(word string) bool {
	return p.peek().Is(word)
}

func (p *Parser) matchWord(word string) bool {
	if p.peekIs(word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consumeWord(word string) lexer.Token {
	if p.peekIs(word) {
		return p.advance()
	}
	p.fail("'" + word + "'")
	return lexer.Token{}
}

// consumeName consumes an identifier usable as a name.
func (p *Parser) consumeName(what string) lexer.Token {
	tok := p.peek()
	if tok.Type != lexer.TokenIdent || reserved[strings.ToLower(tok.Lexeme)] {
		p.fail(what)
	}
	return p.advance()
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, expected string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.fail(expected)
	return lexer.Token{}
}

// fail aborts the parse with a ParseError at the current token.
func (p *Parser) fail(expected string) {
	tok := p.peek()
	err := errors.NewParseError(tok.Line, tok.Column, expected, describe(tok))
	panic(err.WithFile(p.file).WithSourceLines(p.sourceLines))
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokenEOF:
		return "end of input"
	case lexer.TokenNewline:
		return "end of line"
	case lexer.TokenString:
		return fmt.Sprintf("string %q", tok.Lexeme)
	case lexer.TokenDate:
		return "#" + tok.Lexeme + "#"
	case lexer.TokenHex:
		return "'&H" + tok.Lexeme + "'"
	case lexer.TokenOctal:
		return "'&O" + tok.Lexeme + "'"
	}
	return "'" + tok.Lexeme + "'"
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
