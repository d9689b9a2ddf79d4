package lexer

import (
	"testing"

	"vbscript/internal/errors"
)

func scanTypes(t *testing.T, input string) []Token {
	t.Helper()
	tokens, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", input, err)
	}
	return tokens
}

func TestOperators(t *testing.T) {
	tokens := scanTypes(t, `+ - * / \ ^ & = <> < > <= >= ( ) , . :`)
	expected := []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenBackslash, TokenCaret,
		TokenAmpersand, TokenEqual, TokenNotEqual, TokenLT, TokenGT, TokenLE, TokenGE,
		TokenLParen, TokenRParen, TokenComma, TokenDot, TokenColon, TokenEOF,
	}
	if len(tokens) != len(expected) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(expected), tokens)
	}
	for i, tok := range tokens {
		if tok.Type != expected[i] {
			t.Errorf("token %d: got %s, want %s", i, tok.Type, expected[i])
		}
	}
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		typ    TokenType
		lexeme string
	}{
		{"integer", "42", TokenNumber, "42"},
		{"float", "3.25", TokenNumber, "3.25"},
		{"leading dot", ".5", TokenNumber, ".5"},
		{"scientific", "1.5e3", TokenNumber, "1.5e3"},
		{"signed exponent", "2E-4", TokenNumber, "2E-4"},
		{"string", `"hello"`, TokenString, "hello"},
		{"escaped quote", `"say ""hi"""`, TokenString, `say "hi"`},
		{"empty string", `""`, TokenString, ""},
		{"hex", "&HFF", TokenHex, "FF"},
		{"hex with suffix", "&h1F&", TokenHex, "1F"},
		{"octal", "&O17", TokenOctal, "17"},
		{"date", "#2024-01-31#", TokenDate, "2024-01-31"},
		{"identifier", "myVar_2", TokenIdent, "myVar_2"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tokens := scanTypes(t, test.input)
			if len(tokens) != 2 {
				t.Fatalf("got %d tokens, want 2: %v", len(tokens), tokens)
			}
			if tokens[0].Type != test.typ || tokens[0].Lexeme != test.lexeme {
				t.Errorf("got %s %q, want %s %q", tokens[0].Type, tokens[0].Lexeme, test.typ, test.lexeme)
			}
		})
	}
}

func TestKeywordsAreIdentifiers(t *testing.T) {
	tokens := scanTypes(t, "If x Then END if")
	for _, tok := range tokens[:len(tokens)-1] {
		if tok.Type != TokenIdent {
			t.Errorf("%q scanned as %s, want IDENT", tok.Lexeme, tok.Type)
		}
	}
	if !tokens[0].Is("if") || !tokens[3].Is("End") {
		t.Errorf("Is should compare case-insensitively: %v", tokens)
	}
}

func TestComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int // tokens excluding EOF
	}{
		{"quote comment", "x = 1 ' trailing words", 3},
		{"rem comment", "REM whole line\nx", 2},
		{"rem after colon", "x = 1 : rem done", 4},
		{"quote inside string", `s = "it's"`, 3},
		{"remark prefix is identifier", "remark = 1", 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tokens := scanTypes(t, test.input)
			if got := len(tokens) - 1; got != test.count {
				t.Errorf("got %d tokens, want %d: %v", got, test.count, tokens)
			}
		})
	}
}

func TestLineContinuation(t *testing.T) {
	tokens := scanTypes(t, "x = 1 + _\n    2\ny = 3")
	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	expected := []TokenType{
		TokenIdent, TokenEqual, TokenNumber, TokenPlus, TokenNumber, TokenNewline,
		TokenIdent, TokenEqual, TokenNumber, TokenEOF,
	}
	if len(types) != len(expected) {
		t.Fatalf("got %v, want %v", types, expected)
	}
	for i := range types {
		if types[i] != expected[i] {
			t.Fatalf("got %v, want %v", types, expected)
		}
	}
	if tokens[4].Line != 2 {
		t.Errorf("continued token line = %d, want 2", tokens[4].Line)
	}
	if tokens[6].Line != 3 {
		t.Errorf("token after continuation line = %d, want 3", tokens[6].Line)
	}
}

func TestCRLF(t *testing.T) {
	tokens := scanTypes(t, "a = 1\r\nb = 2\r\n")
	newlines := 0
	for _, tok := range tokens {
		if tok.Type == TokenNewline {
			newlines++
		}
	}
	if newlines != 2 {
		t.Errorf("got %d newlines, want 2", newlines)
	}
	if tokens[4].Line != 2 {
		t.Errorf("second statement on line %d, want 2", tokens[4].Line)
	}
}

func TestUnknownCharacter(t *testing.T) {
	tokens := scanTypes(t, "x = [y]")
	if tokens[2].Type != TokenUnknown {
		t.Errorf("got %s, want UNKNOWN", tokens[2].Type)
	}
}

func TestUnterminatedString(t *testing.T) {
	for _, input := range []string{`x = "abc`, "x = \"abc\ny = 1"} {
		_, err := Tokenize(input)
		if err == nil {
			t.Fatalf("Tokenize(%q) should fail", input)
		}
		if errors.KindOf(err) != errors.LexError {
			t.Errorf("got kind %q, want LexError", errors.KindOf(err))
		}
	}
}

func TestPositions(t *testing.T) {
	tokens := scanTypes(t, "a\n  bb = 1")
	if tokens[2].Line != 2 || tokens[2].Column != 3 {
		t.Errorf("bb at %d:%d, want 2:3", tokens[2].Line, tokens[2].Column)
	}
}
