package formatter

import (
	"testing"

	"github.com/kr/pretty"

	"vbscript/internal/parser"
)

func format(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.ParseSource(src)
	if err != nil {
		t.Fatalf("parse failed: %v\n%s", err, src)
	}
	return Source(prog)
}

func TestFormatLayout(t *testing.T) {
	src := `option explicit
dim a(3), b : const LIMIT = 10, NAME = "say ""hi"""
function Twice(byval n, optional m = 2)
twice = n * m
end function
sub Show(items())
for each x in items : wscript.echo x : next
end sub
for i = 1 to LIMIT step 2
if i mod 3 = 0 then wscript.echo "fizz" else wscript.echo i
next
do while b < 3
b = b + 1
if b = 2 then
exit do
elseif b > 5 then
b = 0
else
call Show(a)
end if
loop
select case b
case 1, 2
set o = nothing
case else
on error resume next
end select
x = -(1 + 2) ^ 2 & Twice(4) & #1/2/2024#
Show a`
	want := `Option Explicit

Dim a(3), b
Const LIMIT = 10, NAME = "say ""hi"""

Function Twice(ByVal n, Optional m = 2)
    twice = n * m
End Function

Sub Show(items())
    For Each x In items
        wscript.echo x
    Next
End Sub

For i = 1 To LIMIT Step 2
    If i Mod 3 = 0 Then wscript.echo "fizz" Else wscript.echo i
Next
Do While b < 3
    b = b + 1
    If b = 2 Then
        Exit Do
    ElseIf b > 5 Then
        b = 0
    Else
        Call Show(a)
    End If
Loop
Select Case b
    Case 1, 2
        Set o = Nothing
    Case Else
        On Error Resume Next
End Select
x = -(1 + 2) ^ 2 & Twice(4) & #1/2/2024#
Show a
`
	if got := format(t, src); got != want {
		t.Errorf("formatted output differs:\n%s", pretty.Diff(want, got))
		t.Logf("got:\n%s", got)
	}
}

func TestStatementCallKeepsByValueParens(t *testing.T) {
	if got := format(t, "Show(a)\nobj.Add(k)\n"); got != "Show (a)\nobj.Add (k)\n" {
		t.Errorf("got %q", got)
	}
}

func TestFormatIsIdempotent(t *testing.T) {
	sources := []string{
		`x = 1.5 + &H10 : y = "a" & Null`,
		`Do : n = n + 1 : Loop Until n >= 10`,
		`While Not done
  ReDim Preserve arr(n, 2)
Wend`,
		`obj.Items(1).Value = 3
obj.Run "cmd", , True`,
		`If a Then b = 1 : c = 2`,
		`first = Split(line, ",")(0) : Show(first)`,
	}
	for _, src := range sources {
		once := format(t, src)
		twice := format(t, once)
		if once != twice {
			t.Errorf("formatting is not stable:\n%s", pretty.Diff(once, twice))
		}
	}
}
