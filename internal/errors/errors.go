// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a script fault.
type Kind string

const (
	LexError            Kind = "LexError"
	ParseError          Kind = "ParseError"
	TypeMismatch        Kind = "TypeMismatch"
	SubscriptOutOfRange Kind = "SubscriptOutOfRange"
	UndefinedName       Kind = "UndefinedName"
	DivideByZero        Kind = "DivideByZero"
	ArgumentCount       Kind = "ArgumentCount"
	HostInvocationError Kind = "HostInvocationError"
	Overflow            Kind = "Overflow"
	ObjectRequired      Kind = "ObjectRequired"
	InvalidCall         Kind = "InvalidCall"
	OutOfStack          Kind = "OutOfStack"
	OutOfMemory         Kind = "OutOfMemory"
	Raised              Kind = "Raised"
	Interrupted         Kind = "Interrupted"

	// Host object faults.
	NotSupported       Kind = "NotSupported"
	CannotCreateObject Kind = "CannotCreateObject"
	FileNotFound       Kind = "FileNotFound"
	BadFileMode        Kind = "BadFileMode"
	FileExists         Kind = "FileExists"
	InputPastEnd       Kind = "InputPastEnd"
	PermissionDenied   Kind = "PermissionDenied"
	PathNotFound       Kind = "PathNotFound"
	KeyExists          Kind = "KeyExists"
	ElementNotFound    Kind = "ElementNotFound"
	ObjectClosed       Kind = "ObjectClosed"
	NoCurrentRecord    Kind = "NoCurrentRecord"
)

// Origins reported through Err.Source.
const (
	RuntimeOrigin = "Microsoft VBScript runtime error"
	CompileOrigin = "Microsoft VBScript compilation error"
)

type kindInfo struct {
	number      int
	description string
}

var kinds = map[Kind]kindInfo{
	LexError:            {1033, "Unterminated string constant"},
	ParseError:          {1002, "Syntax error"},
	TypeMismatch:        {13, "Type mismatch"},
	SubscriptOutOfRange: {9, "Subscript out of range"},
	UndefinedName:       {500, "Variable is undefined"},
	DivideByZero:        {11, "Division by zero"},
	ArgumentCount:       {450, "Wrong number of arguments or invalid property assignment"},
	HostInvocationError: {440, "Automation error"},
	Overflow:            {6, "Overflow"},
	ObjectRequired:      {424, "Object required"},
	InvalidCall:         {5, "Invalid procedure call or argument"},
	OutOfStack:          {28, "Out of stack space"},
	OutOfMemory:         {7, "Out of memory"},
	Raised:              {0, "Unknown runtime error"},
	Interrupted:         {0, "Script interrupted"},
	NotSupported:        {438, "Object doesn't support this property or method"},
	CannotCreateObject:  {429, "ActiveX component can't create object"},
	FileNotFound:        {53, "File not found"},
	BadFileMode:         {54, "Bad file mode"},
	FileExists:          {58, "File already exists"},
	InputPastEnd:        {62, "Input past end of file"},
	PermissionDenied:    {70, "Permission denied"},
	PathNotFound:        {76, "Path not found"},
	KeyExists:           {457, "This key is already associated with an element of this collection"},
	ElementNotFound:     {32811, "Element not found"},
	ObjectClosed:        {3704, "Operation is not allowed when the object is closed"},
	NoCurrentRecord:     {3021, "Either BOF or EOF is True, or the current record has been deleted"},
}

// Number returns the classic error number for a kind.
func (k Kind) Number() int { return kinds[k].number }

// Description returns the default description for a kind.
func (k Kind) Description() string { return kinds[k].description }

// DescriptionFor returns the standard description of an error number, as
// used by Err.Raise when the script omits one.
func DescriptionFor(number int) string {
	for _, info := range kinds {
		if info.number == number && number != 0 {
			return info.description
		}
	}
	return "Unknown runtime error"
}

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// ScriptError is a lex, parse or runtime fault with location information.
type ScriptError struct {
	Kind      Kind
	Number    int
	Message   string
	Origin    string // reported as Err.Source
	Location  SourceLocation
	Expected  string // parse errors only
	Found     string // parse errors only
	CallStack []StackFrame
	Source    string // the source line where the error occurred
	cause     error
}

// Error implements the error interface
func (e *ScriptError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if e.Location.Line > 0 {
		if e.Location.File != "" {
			sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", e.Location.File, e.Location.Line, e.Location.Column))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at line %d", e.Location.Line))
		}
		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n\n  %d | %s\n", e.Location.Line, e.Source))
			sb.WriteString(strings.Repeat(" ", len(fmt.Sprintf("  %d | ", e.Location.Line))))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^")
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\n\nCall Stack:")
		for _, frame := range e.CallStack {
			sb.WriteString(fmt.Sprintf("\n  at %s (line %d)", frame.Function, frame.Line))
		}
	}

	return sb.String()
}

// Unwrap exposes the host error behind a HostInvocationError.
func (e *ScriptError) Unwrap() error { return e.cause }

// Line returns the 1-based source line, or 0 when unknown.
func (e *ScriptError) Line() int { return e.Location.Line }

// Suppressible reports whether On Error Resume Next may absorb the fault.
func (e *ScriptError) Suppressible() bool {
	switch e.Kind {
	case LexError, ParseError, Interrupted:
		return false
	}
	return true
}

// New creates a runtime fault of the given kind. An empty message selects
// the kind's default description.
func New(kind Kind, message string) *ScriptError {
	if message == "" {
		message = kind.Description()
	}
	origin := RuntimeOrigin
	if kind == LexError || kind == ParseError {
		origin = CompileOrigin
	}
	return &ScriptError{
		Kind:    kind,
		Number:  kind.Number(),
		Message: message,
		Origin:  origin,
	}
}

// Newf creates a runtime fault with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *ScriptError {
	return New(kind, fmt.Sprintf(format, args...))
}

// NewLexError creates a lexical error at the given position.
func NewLexError(message string, line, column int) *ScriptError {
	err := New(LexError, message)
	err.Location = SourceLocation{Line: line, Column: column}
	return err
}

// NewParseError creates a structural error naming what was expected and
// what was found instead.
func NewParseError(line, column int, expected, found string) *ScriptError {
	err := New(ParseError, fmt.Sprintf("expected %s, found %s", expected, found))
	err.Location = SourceLocation{Line: line, Column: column}
	err.Expected = expected
	err.Found = found
	return err
}

// NewRaised creates the fault produced by Err.Raise.
func NewRaised(number int, origin, description string) *ScriptError {
	err := New(Raised, description)
	err.Number = number
	if origin != "" {
		err.Origin = origin
	}
	return err
}

// FromHost converts an error returned by a host capability into a script
// fault. Script faults pass through unchanged; for anything else the
// message keeps the wrapping context and Unwrap yields the root cause.
func FromHost(name string, err error) *ScriptError {
	var se *ScriptError
	if stderrors.As(err, &se) {
		return se
	}
	out := Newf(HostInvocationError, "%s: %v", name, err)
	out.Origin = name
	out.cause = pkgerrors.Cause(err)
	return out
}

// At sets the line when it is not already known.
func (e *ScriptError) At(line int) *ScriptError {
	if e.Location.Line == 0 {
		e.Location.Line = line
	}
	return e
}

// WithFile records the file name the program was loaded from.
func (e *ScriptError) WithFile(file string) *ScriptError {
	e.Location.File = file
	return e
}

// WithSource adds source code context to the error
func (e *ScriptError) WithSource(source string) *ScriptError {
	e.Source = source
	return e
}

// WithSourceLines picks the offending line out of the full program text.
func (e *ScriptError) WithSourceLines(lines []string) *ScriptError {
	if n := e.Location.Line; n > 0 && n <= len(lines) {
		e.Source = strings.TrimRight(lines[n-1], "\r")
	}
	return e
}

// AddStackFrame adds a single stack frame
func (e *ScriptError) AddStackFrame(function string, line int) *ScriptError {
	e.CallStack = append(e.CallStack, StackFrame{
		Function: function,
		File:     e.Location.File,
		Line:     line,
	})
	return e
}

// KindOf returns the kind of a script fault, or "" for other errors.
func KindOf(err error) Kind {
	var se *ScriptError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// As is errors.As specialised to script faults.
func As(err error) (*ScriptError, bool) {
	var se *ScriptError
	ok := stderrors.As(err, &se)
	return se, ok
}
