package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"vbscript/internal/host"
)

const uri = "file:///demo.vbs"

const demo = `Const LIMIT = 10
Dim total

Function AddUp(ByVal n, items())
  AddUp = n
End Function

total = AddUp(LIMIT, Array())
`

func frame(t *testing.T, id int, method string, params interface{}) string {
	t.Helper()
	msg := map[string]interface{}{"jsonrpc": "2.0", "method": method, "params": params}
	if id > 0 {
		msg["id"] = id
	}
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

// session feeds the framed requests to a server and returns every message
// it wrote.
func session(t *testing.T, requests ...string) []Message {
	t.Helper()
	h := host.New()
	defer h.Close()
	var out bytes.Buffer
	s := NewServer(strings.NewReader(strings.Join(requests, "")), &out, h.Registry())
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var msgs []Message
	r := bufio.NewReader(&out)
	for {
		header, err := r.ReadString('\n')
		if err == io.EOF {
			return msgs
		}
		if err != nil {
			t.Fatal(err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:")))
		if err != nil {
			t.Fatalf("bad header %q", header)
		}
		r.ReadString('\n')
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			t.Fatal(err)
		}
		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, msg)
	}
}

func open(t *testing.T, text string) string {
	return frame(t, 0, "textDocument/didOpen", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri, "languageId": "vbscript", "version": 1, "text": text},
	})
}

func at(line, char int) map[string]interface{} {
	return map[string]interface{}{
		"textDocument": map[string]string{"uri": uri},
		"position":     map[string]int{"line": line, "character": char},
	}
}

func response(t *testing.T, msgs []Message, id int, into interface{}) {
	t.Helper()
	for _, m := range msgs {
		if m.ID != nil && string(*m.ID) == strconv.Itoa(id) {
			if m.Error != nil {
				t.Fatalf("request %d failed: %s", id, m.Error.Message)
			}
			if err := json.Unmarshal(m.Result, into); err != nil {
				t.Fatalf("request %d: %v", id, err)
			}
			return
		}
	}
	t.Fatalf("no response to request %d", id)
}

func TestInitialize(t *testing.T) {
	msgs := session(t, frame(t, 1, "initialize", map[string]interface{}{}))
	var res InitializeResult
	response(t, msgs, 1, &res)
	if !res.Capabilities.DocumentFormattingProvider || res.Capabilities.TextDocumentSync != 1 {
		t.Errorf("capabilities = %+v", res.Capabilities)
	}
}

func TestDiagnostics(t *testing.T) {
	msgs := session(t, open(t, "x = 1\nIf x Then\n  y = (2\nEnd If\n"))
	if len(msgs) != 1 || msgs[0].Method != "textDocument/publishDiagnostics" {
		t.Fatalf("messages = %+v", msgs)
	}
	var params PublishDiagnosticsParams
	if err := json.Unmarshal(msgs[0].Params, &params); err != nil {
		t.Fatal(err)
	}
	if len(params.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v", params.Diagnostics)
	}
	d := params.Diagnostics[0]
	if d.Range.Start.Line != 2 || d.Code != 1002 || !strings.Contains(d.Message, "expected") {
		t.Errorf("diagnostic = %+v", d)
	}

	msgs = session(t, open(t, demo))
	json.Unmarshal(msgs[0].Params, &params)
	if len(params.Diagnostics) != 0 {
		t.Errorf("clean document has diagnostics: %+v", params.Diagnostics)
	}
}

func TestDocumentSymbols(t *testing.T) {
	msgs := session(t, open(t, demo), frame(t, 2, "textDocument/documentSymbol", map[string]interface{}{
		"textDocument": map[string]string{"uri": uri},
	}))
	var syms []DocumentSymbol
	response(t, msgs, 2, &syms)
	byName := map[string]DocumentSymbol{}
	for _, s := range syms {
		byName[s.Name] = s
	}
	fn, ok := byName["AddUp"]
	if !ok || fn.Detail != "Function AddUp(ByVal n, items())" {
		t.Fatalf("AddUp = %+v", fn)
	}
	if fn.Range.Start.Line != 3 || fn.Range.End.Line != 5 || fn.SelectionRange.Start.Character != 9 {
		t.Errorf("AddUp ranges = %+v", fn)
	}
	if c := byName["LIMIT"]; c.Kind != SymbolKindConstant || c.Detail != "Const LIMIT = 10" {
		t.Errorf("LIMIT = %+v", c)
	}
	if v := byName["total"]; v.Kind != SymbolKindVariable {
		t.Errorf("total = %+v", v)
	}
}

func TestCompletion(t *testing.T) {
	msgs := session(t, open(t, "x = UCa"), frame(t, 2, "textDocument/completion", at(0, 7)))
	var items []CompletionItem
	response(t, msgs, 2, &items)
	if len(items) == 0 || items[0].Label != "UCase" || items[0].Kind != CompletionItemKindFunction {
		t.Errorf("items = %+v", items)
	}

	msgs = session(t, open(t, "x = vbCr"), frame(t, 3, "textDocument/completion", at(0, 8)))
	response(t, msgs, 3, &items)
	found := false
	for _, it := range items {
		if it.Label == "vbCrLf" && it.Kind == CompletionItemKindConstant {
			found = true
		}
	}
	if !found {
		t.Errorf("vbCrLf missing from %+v", items)
	}
}

func TestHoverAndDefinition(t *testing.T) {
	msgs := session(t,
		open(t, demo),
		frame(t, 2, "textDocument/hover", at(7, 10)),
		frame(t, 3, "textDocument/definition", at(7, 10)),
		frame(t, 4, "textDocument/hover", at(7, 17)),
	)
	var hover Hover
	response(t, msgs, 2, &hover)
	if !strings.Contains(hover.Contents.Value, "Function AddUp(ByVal n, items())") {
		t.Errorf("hover = %q", hover.Contents.Value)
	}
	var loc Location
	response(t, msgs, 3, &loc)
	if loc.Range.Start.Line != 3 {
		t.Errorf("definition = %+v", loc)
	}
	response(t, msgs, 4, &hover)
	if !strings.Contains(hover.Contents.Value, "Const LIMIT = 10") {
		t.Errorf("hover on LIMIT = %q", hover.Contents.Value)
	}
}

func TestFormatting(t *testing.T) {
	params := map[string]interface{}{"textDocument": map[string]string{"uri": uri}}
	msgs := session(t, open(t, "if x then\ny=1\nend if"), frame(t, 2, "textDocument/formatting", params))
	var edits []TextEdit
	response(t, msgs, 2, &edits)
	if len(edits) != 1 || !strings.HasPrefix(edits[0].NewText, "If x Then\n") {
		t.Fatalf("edits = %+v", edits)
	}
	if edits[0].Range.End != (Position{2, 6}) {
		t.Errorf("edit range = %+v", edits[0].Range)
	}
}

func TestUnknownMethodAndExit(t *testing.T) {
	msgs := session(t,
		frame(t, 1, "workspace/frobnicate", nil),
		frame(t, 0, "exit", nil),
		frame(t, 2, "initialize", nil),
	)
	if len(msgs) != 1 || msgs[0].Error == nil || msgs[0].Error.Code != -32601 {
		t.Errorf("messages = %+v", msgs)
	}
}
