package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"vbscript/internal/errors"
)

type TokenType string

const (
	// Literals
	TokenIdent  TokenType = "IDENT"
	TokenString TokenType = "STRING"
	TokenNumber TokenType = "NUMBER"
	TokenHex    TokenType = "HEX"
	TokenOctal  TokenType = "OCTAL"
	TokenDate   TokenType = "DATE"

	// Symbols
	TokenPlus      TokenType = "+"
	TokenMinus     TokenType = "-"
	TokenStar      TokenType = "*"
	TokenSlash     TokenType = "/"
	TokenBackslash TokenType = "\\"
	TokenCaret     TokenType = "^"
	TokenAmpersand TokenType = "&"
	TokenEqual     TokenType = "="
	TokenNotEqual  TokenType = "<>"
	TokenLT        TokenType = "<"
	TokenGT        TokenType = ">"
	TokenLE        TokenType = "<="
	TokenGE        TokenType = ">="
	TokenLParen    TokenType = "("
	TokenRParen    TokenType = ")"
	TokenComma     TokenType = ","
	TokenDot       TokenType = "."

	// Statement separators
	TokenColon   TokenType = ":"
	TokenNewline TokenType = "NEWLINE"

	TokenUnknown TokenType = "UNKNOWN"
	TokenEOF     TokenType = "EOF"
)

type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("[%s] '%s'", t.Type, t.Lexeme)
}

// Is reports whether the token is the identifier word, compared
// case-insensitively. Keywords are ordinary identifiers to the scanner.
func (t Token) Is(word string) bool {
	return t.Type == TokenIdent && strings.EqualFold(t.Lexeme, word)
}

type Scanner struct {
	source    string
	tokens    []Token
	start     int
	current   int
	line      int
	lineStart int
	startLine int
	startCol  int
}

func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
	}
}

// Tokenize scans the whole program text.
func Tokenize(source string) ([]Token, error) {
	return NewScanner(source).ScanTokens()
}

func (s *Scanner) ScanTokens() ([]Token, error) {
	for !s.isAtEnd() {
		s.skipBlanks()
		if s.isAtEnd() {
			break
		}
		s.start = s.current
		s.startLine = s.line
		s.startCol = s.current - s.lineStart + 1
		if err := s.scanToken(); err != nil {
			return nil, err
		}
	}
	s.tokens = append(s.tokens, Token{Type: TokenEOF, Line: s.line, Column: s.current - s.lineStart + 1})
	return s.tokens, nil
}

func (s *Scanner) scanToken() error {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLParen)
	case ')':
		s.addToken(TokenRParen)
	case '+':
		s.addToken(TokenPlus)
	case '-':
		s.addToken(TokenMinus)
	case '*':
		s.addToken(TokenStar)
	case '/':
		s.addToken(TokenSlash)
	case '\\':
		s.addToken(TokenBackslash)
	case '^':
		s.addToken(TokenCaret)
	case ',':
		s.addToken(TokenComma)
	case ':':
		s.addToken(TokenColon)
	case '=':
		s.addToken(TokenEqual)
	case '<':
		if s.match('>') {
			s.addToken(TokenNotEqual)
		} else if s.match('=') {
			s.addToken(TokenLE)
		} else {
			s.addToken(TokenLT)
		}
	case '>':
		if s.match('=') {
			s.addToken(TokenGE)
		} else {
			s.addToken(TokenGT)
		}
	case '&':
		switch {
		case (s.peek() == 'h' || s.peek() == 'H') && isHexDigit(s.peekNext()):
			s.advance()
			s.radix(TokenHex, isHexDigit)
		case (s.peek() == 'o' || s.peek() == 'O') && isOctalDigit(s.peekNext()):
			s.advance()
			s.radix(TokenOctal, isOctalDigit)
		default:
			s.addToken(TokenAmpersand)
		}
	case '.':
		if isDigit(s.peek()) {
			s.number()
		} else {
			s.addToken(TokenDot)
		}
	case '\'':
		s.skipComment()
	case '"':
		return s.string()
	case '#':
		return s.date()
	case '\n':
		s.addToken(TokenNewline)
		s.newline()
	case '_':
		if s.continuation() {
			return nil
		}
		s.identifier()
	default:
		if isDigit(c) {
			s.number()
		} else if isAlpha(c) {
			s.identifier()
		} else {
			s.addToken(TokenUnknown)
		}
	}
	return nil
}

// continuation consumes a " _" marker and the line break after it so the
// two physical lines scan as one logical line.
func (s *Scanner) continuation() bool {
	if s.start > 0 && !isBlank(s.source[s.start-1]) {
		return false
	}
	i := s.current
	for i < len(s.source) && isBlank(s.source[i]) {
		i++
	}
	if i < len(s.source) && s.source[i] == '\r' {
		i++
	}
	if i >= len(s.source) || s.source[i] != '\n' {
		return false
	}
	s.current = i + 1
	s.newline()
	return true
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	if strings.EqualFold(s.source[s.start:s.current], "rem") {
		s.skipComment()
		return
	}
	s.addToken(TokenIdent)
}

func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	if s.peek() == 'e' || s.peek() == 'E' {
		next := s.peekNext()
		if isDigit(next) || ((next == '+' || next == '-') && s.current+2 < len(s.source) && isDigit(s.source[s.current+2])) {
			s.advance()
			if s.peek() == '+' || s.peek() == '-' {
				s.advance()
			}
			for isDigit(s.peek()) {
				s.advance()
			}
		}
	}
	s.addToken(TokenNumber)
}

func (s *Scanner) radix(t TokenType, digit func(byte) bool) {
	for digit(s.peek()) {
		s.advance()
	}
	// trailing type suffix, e.g. &HFF&
	s.match('&')
	s.tokens = append(s.tokens, Token{
		Type:   t,
		Lexeme: strings.TrimSuffix(s.source[s.start+2:s.current], "&"),
		Line:   s.startLine,
		Column: s.startCol,
	})
}

func (s *Scanner) string() error {
	var sb strings.Builder
	for {
		if s.isAtEnd() || s.peek() == '\n' || s.peek() == '\r' {
			return errors.NewLexError("Unterminated string constant", s.startLine, s.startCol)
		}
		c := s.advance()
		if c == '"' {
			if s.peek() != '"' {
				break
			}
			s.advance()
		}
		sb.WriteByte(c)
	}
	s.tokens = append(s.tokens, Token{Type: TokenString, Lexeme: sb.String(), Line: s.startLine, Column: s.startCol})
	return nil
}

func (s *Scanner) date() error {
	for s.peek() != '#' {
		if s.isAtEnd() || s.peek() == '\n' {
			return errors.NewLexError("Unterminated date literal", s.startLine, s.startCol)
		}
		s.advance()
	}
	s.advance()
	value := strings.TrimSpace(s.source[s.start+1 : s.current-1])
	s.tokens = append(s.tokens, Token{Type: TokenDate, Lexeme: value, Line: s.startLine, Column: s.startCol})
	return nil
}

func (s *Scanner) skipComment() {
	for s.peek() != '\n' && !s.isAtEnd() {
		s.advance()
	}
}

func (s *Scanner) addToken(t TokenType) {
	text := s.source[s.start:s.current]
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: text, Line: s.startLine, Column: s.startCol})
}

func (s *Scanner) advance() byte {
	s.current++
	return s.source[s.current-1]
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return '\000'
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return '\000'
	}
	return s.source[s.current+1]
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) newline() {
	s.line++
	s.lineStart = s.current
}

// skipBlanks skips horizontal whitespace; line breaks are tokens.
func (s *Scanner) skipBlanks() {
	for !s.isAtEnd() && (isBlank(s.peek()) || s.peek() == '\r') {
		s.advance()
	}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\v'
}

func isAlpha(c byte) bool {
	return unicode.IsLetter(rune(c)) || c == '_' || c >= 0x80
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isOctalDigit(c byte) bool {
	return '0' <= c && c <= '7'
}
