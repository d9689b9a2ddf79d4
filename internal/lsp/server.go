// Package lsp is a language server for VBScript over stdio: parse
// diagnostics, completion, hover, go to definition, document symbols and
// whole-document formatting.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"fortio.org/log"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"vbscript/internal/errors"
	"vbscript/internal/formatter"
	"vbscript/internal/interp"
	"vbscript/internal/parser"
)

const LSPVersion = "2.0"

type Server struct {
	in      *bufio.Reader
	out     io.Writer
	reg     *interp.Registry
	mu      sync.Mutex
	docs    map[string]*Document
	running bool
}

// Document is an open text document with its last successful parse.
type Document struct {
	URI     string
	Content string
	Version int
	prog    *parser.Program
	err     *errors.ScriptError
}

func (d *Document) update(content string) {
	d.Content = content
	prog, err := parser.ParseSource(content)
	if err != nil {
		d.err, _ = errors.As(err)
		return
	}
	d.prog, d.err = prog, nil
}

// NewServer creates a server. Completion and hover draw on the names in
// reg.
func NewServer(in io.Reader, out io.Writer, reg *interp.Registry) *Server {
	return &Server{
		in:   bufio.NewReader(in),
		out:  out,
		reg:  reg,
		docs: make(map[string]*Document),
	}
}

// Start serves until the client sends exit or the input ends.
func (s *Server) Start(ctx context.Context) error {
	s.running = true
	for s.running {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.handleMessage(); err != nil {
			if err == io.EOF {
				return nil
			}
			log.Warnf("lsp: %v", err)
		}
	}
	return nil
}

func (s *Server) handleMessage() error {
	contentLength := 0
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
			if err != nil {
				return fmt.Errorf("invalid Content-Length: %v", err)
			}
		}
	}
	if contentLength == 0 {
		return nil
	}
	content := make([]byte, contentLength)
	if _, err := io.ReadFull(s.in, content); err != nil {
		return err
	}
	var msg Message
	if err := json.Unmarshal(content, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %v", err)
	}
	log.LogVf("lsp <- %s", msg.Method)
	return s.dispatch(&msg)
}

// Message is a JSON-RPC request, response or notification.
type Message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *ResponseError   `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) dispatch(msg *Message) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.sendResponse(msg.ID, nil)
	case "exit":
		s.running = false
		return nil
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/definition":
		return s.handleDefinition(msg)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(msg)
	case "textDocument/formatting":
		return s.handleFormatting(msg)
	}
	if msg.ID != nil {
		return s.sendError(msg.ID, -32601, "Method not found: "+msg.Method)
	}
	return nil
}

func (s *Server) sendResponse(id *json.RawMessage, result interface{}) error {
	return s.writeMessage(map[string]interface{}{
		"jsonrpc": LSPVersion,
		"id":      id,
		"result":  result,
	})
}

func (s *Server) sendError(id *json.RawMessage, code int, message string) error {
	return s.writeMessage(map[string]interface{}{
		"jsonrpc": LSPVersion,
		"id":      id,
		"error":   ResponseError{Code: code, Message: message},
	})
}

func (s *Server) sendNotification(method string, params interface{}) error {
	return s.writeMessage(map[string]interface{}{
		"jsonrpc": LSPVersion,
		"method":  method,
		"params":  params,
	})
}

func (s *Server) writeMessage(msg interface{}) error {
	content, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n", len(content)); err != nil {
		return err
	}
	_, err = s.out.Write(content)
	return err
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   ServerInfo         `json:"serverInfo"`
}

type ServerInfo struct {
	Name string `json:"name"`
}

type ServerCapabilities struct {
	TextDocumentSync           int                `json:"textDocumentSync"`
	CompletionProvider         *CompletionOptions `json:"completionProvider,omitempty"`
	HoverProvider              bool               `json:"hoverProvider"`
	DefinitionProvider         bool               `json:"definitionProvider"`
	DocumentSymbolProvider     bool               `json:"documentSymbolProvider"`
	DocumentFormattingProvider bool               `json:"documentFormattingProvider"`
}

type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
	ResolveProvider   bool     `json:"resolveProvider"`
}

func (s *Server) handleInitialize(msg *Message) error {
	return s.sendResponse(msg.ID, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync:           1, // full
			CompletionProvider:         &CompletionOptions{TriggerCharacters: []string{"."}},
			HoverProvider:              true,
			DefinitionProvider:         true,
			DocumentSymbolProvider:     true,
			DocumentFormattingProvider: true,
		},
		ServerInfo: ServerInfo{Name: "vbscript"},
	})
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidChangeParams struct {
	TextDocument   VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []struct {
		Text string `json:"text"`
	} `json:"contentChanges"`
}

type DidCloseParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// PositionParams serves completion, hover and definition requests.
type PositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

func (s *Server) handleDidOpen(msg *Message) error {
	var params DidOpenParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	doc := &Document{URI: params.TextDocument.URI, Version: params.TextDocument.Version}
	doc.update(params.TextDocument.Text)
	s.docs[doc.URI] = doc
	return s.publishDiagnostics(doc)
}

func (s *Server) handleDidChange(msg *Message) error {
	var params DidChangeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	doc, ok := s.docs[params.TextDocument.URI]
	if !ok || len(params.ContentChanges) == 0 {
		return nil
	}
	doc.Version = params.TextDocument.Version
	doc.update(params.ContentChanges[len(params.ContentChanges)-1].Text)
	return s.publishDiagnostics(doc)
}

func (s *Server) handleDidClose(msg *Message) error {
	var params DidCloseParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	delete(s.docs, params.TextDocument.URI)
	return s.sendNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
}

type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity"`
	Code     int    `json:"code,omitempty"`
	Message  string `json:"message"`
	Source   string `json:"source"`
}

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Position is zero-based, unlike script error locations.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func (s *Server) publishDiagnostics(doc *Document) error {
	return s.sendNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: diagnostics(doc),
	})
}

// diagnostics reports the parse error, if any. Parsing stops at the first
// error, so there is at most one.
func diagnostics(doc *Document) []Diagnostic {
	out := []Diagnostic{}
	if doc.err == nil {
		return out
	}
	line := doc.err.Location.Line - 1
	if line < 0 {
		line = 0
	}
	col := doc.err.Location.Column - 1
	if col < 0 {
		col = 0
	}
	end := col + 1
	if lines := strings.Split(doc.Content, "\n"); line < len(lines) {
		end = len(strings.TrimRight(lines[line], "\r"))
		if end <= col {
			end = col + 1
		}
	}
	return append(out, Diagnostic{
		Range:    Range{Start: Position{line, col}, End: Position{line, end}},
		Severity: 1,
		Code:     doc.err.Number,
		Message:  doc.err.Message,
		Source:   "vbscript",
	})
}

type CompletionItem struct {
	Label  string `json:"label"`
	Kind   int    `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

const (
	CompletionItemKindFunction = 3
	CompletionItemKindVariable = 6
	CompletionItemKindClass    = 7
	CompletionItemKindKeyword  = 14
	CompletionItemKindConstant = 21
)

var keywords = []string{
	"And", "ByRef", "ByVal", "Call", "Case", "Const", "Dim", "Do", "Each",
	"Else", "ElseIf", "Empty", "End", "Eqv", "Exit", "Explicit", "False",
	"For", "Function", "If", "Imp", "In", "Is", "Loop", "Mod", "Next",
	"Not", "Nothing", "Null", "On", "Error", "Resume", "Option", "Or",
	"Preserve", "Private", "Public", "ReDim", "Select", "Set", "Step", "Sub",
	"Then", "To", "True", "Until", "Wend", "While", "Xor",
}

func (s *Server) handleCompletion(msg *Message) error {
	var params PositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.docs[params.TextDocument.URI]
	if !ok {
		return s.sendResponse(msg.ID, []CompletionItem{})
	}
	return s.sendResponse(msg.ID, s.complete(doc, wordBefore(doc.Content, params.Position)))
}

// complete ranks every known name against prefix with a fuzzy match, so
// "msgb" finds MsgBox and "fmtnum" finds FormatNumber.
func (s *Server) complete(doc *Document, prefix string) []CompletionItem {
	kinds := map[string]CompletionItem{}
	for _, kw := range keywords {
		kinds[kw] = CompletionItem{Label: kw, Kind: CompletionItemKindKeyword, Detail: "keyword"}
	}
	for _, name := range s.reg.Names() {
		item := CompletionItem{Label: name, Kind: CompletionItemKindFunction, Detail: "intrinsic"}
		if _, ok := s.reg.Const(name); ok {
			item.Kind, item.Detail = CompletionItemKindConstant, "constant"
		} else if _, ok := s.reg.Object(name); ok {
			item.Kind, item.Detail = CompletionItemKindClass, "object"
		}
		kinds[name] = item
	}
	for _, sym := range symbols(doc) {
		kind := CompletionItemKindVariable
		if sym.Kind == SymbolKindFunction {
			kind = CompletionItemKindFunction
		}
		kinds[sym.Name] = CompletionItem{Label: sym.Name, Kind: kind, Detail: sym.Detail}
	}

	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	if prefix == "" {
		items := make([]CompletionItem, 0, len(names))
		for _, name := range names {
			items = append(items, kinds[name])
		}
		return items
	}
	ranks := fuzzy.RankFindFold(prefix, names)
	sort.Stable(ranks)
	items := make([]CompletionItem, 0, len(ranks))
	for _, r := range ranks {
		items = append(items, kinds[r.Target])
	}
	return items
}

func wordBefore(content string, pos Position) string {
	lines := strings.Split(content, "\n")
	if pos.Line >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	if pos.Character > len(line) {
		return ""
	}
	start := pos.Character
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	return line[start:pos.Character]
}

func wordAt(content string, pos Position) string {
	lines := strings.Split(content, "\n")
	if pos.Line >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	if pos.Character > len(line) {
		return ""
	}
	end := pos.Character
	for end < len(line) && isIdentChar(line[end]) {
		end++
	}
	return wordBefore(content, Position{pos.Line, end})
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

type Hover struct {
	Contents MarkupContent `json:"contents"`
}

type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (s *Server) handleHover(msg *Message) error {
	var params PositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.docs[params.TextDocument.URI]
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	word := wordAt(doc.Content, params.Position)
	if word == "" {
		return s.sendResponse(msg.ID, nil)
	}
	for _, sym := range symbols(doc) {
		if strings.EqualFold(sym.Name, word) {
			return s.sendResponse(msg.ID, Hover{MarkupContent{"markdown", "```vbscript\n" + sym.Detail + "\n```"}})
		}
	}
	if v, ok := s.reg.Const(word); ok {
		return s.sendResponse(msg.ID, Hover{MarkupContent{"markdown", fmt.Sprintf("**%s** constant = `%s`", word, formatter.Expr(&parser.Literal{Value: v}))}})
	}
	if _, ok := s.reg.Func(word); ok {
		return s.sendResponse(msg.ID, Hover{MarkupContent{"markdown", fmt.Sprintf("**%s** (intrinsic function)", word)}})
	}
	if _, ok := s.reg.Object(word); ok {
		return s.sendResponse(msg.ID, Hover{MarkupContent{"markdown", fmt.Sprintf("**%s** (host object)", word)}})
	}
	return s.sendResponse(msg.ID, nil)
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

func (s *Server) handleDefinition(msg *Message) error {
	var params PositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.docs[params.TextDocument.URI]
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	word := wordAt(doc.Content, params.Position)
	for _, sym := range symbols(doc) {
		if strings.EqualFold(sym.Name, word) {
			return s.sendResponse(msg.ID, Location{URI: doc.URI, Range: sym.SelectionRange})
		}
	}
	return s.sendResponse(msg.ID, nil)
}

type DocumentSymbol struct {
	Name           string `json:"name"`
	Detail         string `json:"detail,omitempty"`
	Kind           int    `json:"kind"`
	Range          Range  `json:"range"`
	SelectionRange Range  `json:"selectionRange"`
}

const (
	SymbolKindFunction = 12
	SymbolKindVariable = 13
	SymbolKindConstant = 14
)

func (s *Server) handleDocumentSymbol(msg *Message) error {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.docs[params.TextDocument.URI]
	if !ok {
		return s.sendResponse(msg.ID, []DocumentSymbol{})
	}
	return s.sendResponse(msg.ID, symbols(doc))
}

var procEnd = regexp.MustCompile(`(?i)^\s*end\s+(sub|function)\b`)

// symbols lists procedures and top-level Dim and Const names from the last
// successful parse, so symbols survive while the user is mid-edit.
func symbols(doc *Document) []DocumentSymbol {
	out := []DocumentSymbol{}
	if doc.prog == nil {
		return out
	}
	lines := strings.Split(doc.Content, "\n")
	nameRange := func(line int, name string) Range {
		l := line - 1
		col := 0
		if l >= 0 && l < len(lines) {
			if i := strings.Index(strings.ToLower(lines[l]), strings.ToLower(name)); i >= 0 {
				col = i
			}
		}
		return Range{Start: Position{l, col}, End: Position{l, col + len(name)}}
	}
	for _, proc := range doc.prog.Procs {
		sel := nameRange(proc.Line, proc.Name)
		end := sel.Start.Line
		for i := end; i < len(lines); i++ {
			if procEnd.MatchString(lines[i]) {
				end = i
				break
			}
		}
		out = append(out, DocumentSymbol{
			Name:           proc.Name,
			Detail:         signature(proc),
			Kind:           SymbolKindFunction,
			Range:          Range{Start: Position{sel.Start.Line, 0}, End: Position{end, len(strings.TrimRight(lines[end], "\r"))}},
			SelectionRange: sel,
		})
	}
	for _, stmt := range doc.prog.Body.Stmts {
		switch st := stmt.(type) {
		case *parser.DimStmt:
			for _, d := range st.Decls {
				r := nameRange(st.Line, d.Name)
				out = append(out, DocumentSymbol{Name: d.Name, Detail: "Dim " + d.Name, Kind: SymbolKindVariable, Range: r, SelectionRange: r})
			}
		case *parser.ConstStmt:
			for i, name := range st.Names {
				r := nameRange(st.Line, name)
				out = append(out, DocumentSymbol{
					Name:           name,
					Detail:         "Const " + name + " = " + formatter.Expr(st.Values[i]),
					Kind:           SymbolKindConstant,
					Range:          r,
					SelectionRange: r,
				})
			}
		}
	}
	return out
}

func signature(proc *parser.ProcDecl) string {
	kind := "Sub"
	if proc.IsFunction {
		kind = "Function"
	}
	params := make([]string, len(proc.Params))
	for i, p := range proc.Params {
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
		params[i] = sb.String()
	}
	return fmt.Sprintf("%s %s(%s)", kind, proc.Name, strings.Join(params, ", "))
}

type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// handleFormatting replaces the whole document with its canonical form. A
// document that does not parse is left alone.
func (s *Server) handleFormatting(msg *Message) error {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "Invalid params")
	}
	doc, ok := s.docs[params.TextDocument.URI]
	if !ok || doc.err != nil || doc.prog == nil {
		return s.sendResponse(msg.ID, []TextEdit{})
	}
	formatted := formatter.Source(doc.prog)
	if formatted == doc.Content {
		return s.sendResponse(msg.ID, []TextEdit{})
	}
	lines := strings.Split(doc.Content, "\n")
	last := len(lines) - 1
	return s.sendResponse(msg.ID, []TextEdit{{
		Range:   Range{Start: Position{0, 0}, End: Position{last, len(lines[last])}},
		NewText: formatted,
	}})
}
