package errors

import (
	"io"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestKindNumbers(t *testing.T) {
	tests := []struct {
		kind   Kind
		number int
	}{
		{TypeMismatch, 13},
		{SubscriptOutOfRange, 9},
		{UndefinedName, 500},
		{DivideByZero, 11},
		{ArgumentCount, 450},
		{Overflow, 6},
		{ObjectRequired, 424},
		{InvalidCall, 5},
		{OutOfStack, 28},
		{OutOfMemory, 7},
		{CannotCreateObject, 429},
		{NoCurrentRecord, 3021},
	}
	for _, tt := range tests {
		err := New(tt.kind, "")
		if err.Number != tt.number {
			t.Errorf("%s: number %d, want %d", tt.kind, err.Number, tt.number)
		}
		if err.Message != tt.kind.Description() {
			t.Errorf("%s: empty message not defaulted: %q", tt.kind, err.Message)
		}
		if err.Origin != RuntimeOrigin {
			t.Errorf("%s: origin %q", tt.kind, err.Origin)
		}
	}
}

func TestDescriptionFor(t *testing.T) {
	if got := DescriptionFor(11); got != "Division by zero" {
		t.Errorf("DescriptionFor(11) = %q", got)
	}
	if got := DescriptionFor(9999); got != "Unknown runtime error" {
		t.Errorf("DescriptionFor(9999) = %q", got)
	}
	if got := DescriptionFor(0); got != "Unknown runtime error" {
		t.Errorf("DescriptionFor(0) = %q", got)
	}
}

func TestParseErrorText(t *testing.T) {
	err := NewParseError(3, 7, "Then", "end of line").
		WithFile("demo.vbs").
		WithSourceLines([]string{"a", "b", "If x = 1\r"})
	if err.Origin != CompileOrigin || err.Suppressible() {
		t.Errorf("parse error origin %q suppressible %v", err.Origin, err.Suppressible())
	}
	text := err.Error()
	for _, want := range []string{
		"ParseError: expected Then, found end of line",
		"at demo.vbs:3:7",
		"3 | If x = 1\n",
		"      ^",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Error() missing %q:\n%s", want, text)
		}
	}
}

func TestCallStackText(t *testing.T) {
	err := New(DivideByZero, "").At(4).AddStackFrame("Inner", 4).AddStackFrame("Outer", 9)
	err.At(20)
	if err.Line() != 4 {
		t.Errorf("At overwrote a known line: %d", err.Line())
	}
	text := err.Error()
	if !strings.Contains(text, "at line 4") || !strings.Contains(text, "at Inner (line 4)\n  at Outer (line 9)") {
		t.Errorf("Error() = %s", text)
	}
}

func TestRaised(t *testing.T) {
	err := NewRaised(1001, "MyApp", "custom failure")
	if err.Kind != Raised || err.Number != 1001 || err.Origin != "MyApp" {
		t.Errorf("raised = %+v", err)
	}
	if !err.Suppressible() {
		t.Error("raised fault must be suppressible")
	}
	if NewRaised(5, "", "x").Origin != RuntimeOrigin {
		t.Error("empty origin not defaulted")
	}
}

func TestFromHost(t *testing.T) {
	cause := pkgerrors.Wrap(io.ErrUnexpectedEOF, "reading table")
	err := FromHost("ADODB.Recordset", cause)
	if err.Kind != HostInvocationError || err.Number != 440 || err.Origin != "ADODB.Recordset" {
		t.Errorf("host fault = %+v", err)
	}
	if err.Unwrap() != io.ErrUnexpectedEOF {
		t.Errorf("Unwrap = %v, want the root cause", err.Unwrap())
	}
	if !strings.Contains(err.Message, "reading table") {
		t.Errorf("message lost the wrapping context: %q", err.Message)
	}

	inner := New(KeyExists, "")
	if FromHost("Dictionary", pkgerrors.WithMessage(inner, "Add")) != inner {
		t.Error("script fault did not pass through")
	}
}

func TestKindOfAndAs(t *testing.T) {
	wrapped := pkgerrors.Wrap(New(Overflow, ""), "CInt")
	if KindOf(wrapped) != Overflow {
		t.Errorf("KindOf = %q", KindOf(wrapped))
	}
	if KindOf(io.EOF) != "" {
		t.Error("KindOf(io.EOF) should be empty")
	}
	if se, ok := As(wrapped); !ok || se.Kind != Overflow {
		t.Errorf("As = %v, %v", se, ok)
	}
}

func TestNotSuppressible(t *testing.T) {
	for _, k := range []Kind{LexError, ParseError, Interrupted} {
		if New(k, "").Suppressible() {
			t.Errorf("%s should not be suppressible", k)
		}
	}
}
