package host

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"vbscript/internal/errors"
	"vbscript/internal/interp"
	"vbscript/internal/parser"
	"vbscript/internal/variant"
)

var fixedNow = time.Date(2024, time.March, 15, 14, 30, 5, 0, time.UTC)

// runHost runs src against a fresh Host writing to a buffer. Dialogs take
// their defaults and the clock is fixed.
func runHost(t *testing.T, src string, opts ...Option) (string, *interp.Result) {
	t.Helper()
	var out bytes.Buffer
	base := []Option{
		WithOutput(&out),
		WithInput(strings.NewReader(""), false),
		WithClock(func() time.Time { return fixedNow }),
	}
	h := New(append(base, opts...)...)
	defer func() {
		if err := h.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()
	prog, err := parser.ParseSource(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	res := interp.New(prog, h.Registry()).Run(context.Background())
	return out.String(), res
}

// echoes runs src and returns the lines it echoed, failing on a fault.
func echoes(t *testing.T, src string, opts ...Option) []string {
	t.Helper()
	out, res := runHost(t, src, opts...)
	if !res.Completed() {
		t.Fatalf("run halted: %v\noutput so far:\n%s", res.Err, out)
	}
	return strings.Split(strings.TrimSuffix(out, "\n"), "\n")
}

func mustTag(t *testing.T, s string) language.Tag {
	t.Helper()
	tag, err := language.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return tag
}

func argsOf(values ...interface{}) []variant.Variant {
	out := make([]variant.Variant, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case string:
			out[i] = variant.String(x)
		case int:
			out[i] = variant.Int(int64(x))
		case bool:
			out[i] = variant.Bool(x)
		}
	}
	return out
}

type echoCase struct {
	expr string
	want string
}

// checkEchoes evaluates each expression with WScript.Echo.
func checkEchoes(t *testing.T, cases []echoCase, opts ...Option) {
	t.Helper()
	var src strings.Builder
	for _, c := range cases {
		src.WriteString("WScript.Echo " + c.expr + "\n")
	}
	got := echoes(t, src.String(), opts...)
	if len(got) != len(cases) {
		t.Fatalf("got %d lines %q, want %d", len(got), got, len(cases))
	}
	for i, c := range cases {
		if got[i] != c.want {
			t.Errorf("%s = %q, want %q", c.expr, got[i], c.want)
		}
	}
}

func TestStringFunctions(t *testing.T) {
	checkEchoes(t, []echoCase{
		{`Len("hello")`, "5"},
		{`Left("hello", 2)`, "he"},
		{`Right("hello", 3)`, "llo"},
		{`Mid("hello", 2, 3)`, "ell"},
		{`Split("a,b,c", ",")(1)`, "b"},
		{`Array(1, Array(2, 3))(1)(0)`, "2"},
		{`Mid("hello", 4)`, "lo"},
		{`UCase("abc") & LCase("DEF")`, "ABCdef"},
		{`"[" & Trim("  x  ") & "]"`, "[x]"},
		{`"[" & LTrim("  x ") & "]"`, "[x ]"},
		{`StrReverse("abc")`, "cba"},
		{`InStr("abcabc", "c")`, "3"},
		{`InStr(4, "abcabc", "c")`, "6"},
		{`InStr(1, "ABC", "b", 1)`, "2"},
		{`InStr("abc", "z")`, "0"},
		{`InStrRev("abcabc", "b")`, "5"},
		{`Replace("aXbXc", "X", "-")`, "a-b-c"},
		{`Replace("aXbXc", "x", "-", 1, -1, 1)`, "a-b-c"},
		{`Join(Split("a,b,c", ","), "|")`, "a|b|c"},
		{`UBound(Split("a,b,c", ",", 2))`, "1"},
		{`UBound(Split(""))`, "-1"},
		{`"[" & Space(3) & "]"`, "[   ]"},
		{`String(3, "ab")`, "aaa"},
		{`StrComp("a", "B")`, "1"},
		{`StrComp("a", "B", 1)`, "-1"},
		{`Asc("A") & "," & Chr(66)`, "65,B"},
		{`Len("héllo")`, "5"},
	})
}

func TestMathFunctions(t *testing.T) {
	checkEchoes(t, []echoCase{
		{`Abs(-3)`, "3"},
		{`Sgn(-7) & Sgn(0) & Sgn(2)`, "-101"},
		{`Int(-1.5)`, "-2"},
		{`Fix(-1.5)`, "-1"},
		{`Round(2.5)`, "2"},
		{`Round(3.5)`, "4"},
		{`Round(1.2345, 2)`, "1.23"},
		{`Sqr(16)`, "4"},
		{`Hex(255)`, "FF"},
		{`Oct(8)`, "10"},
		{`Hex(-1)`, "FFFF"},
		{`Rnd(0) = Rnd(0)`, "True"},
	})
}

func TestConversionFunctions(t *testing.T) {
	checkEchoes(t, []echoCase{
		{`CInt(2.5)`, "2"},
		{`CInt(3.5)`, "4"},
		{`CLng("42")`, "42"},
		{`CStr(1.5)`, "1.5"},
		{`CBool(1)`, "True"},
		{`CDbl("1.25") * 2`, "2.5"},
		{`Val("  12 34abc")`, "1234"},
		{`Val("&HFF")`, "255"},
		{`"[" & Str(5) & "]"`, "[ 5]"},
		{`IsNumeric("12.5")`, "True"},
		{`IsNumeric("abc")`, "False"},
		{`IsEmpty(x)`, "True"},
		{`IsNull(Null)`, "True"},
		{`IsArray(Array(1))`, "True"},
		{`TypeName(1)`, "Integer"},
		{`TypeName("s")`, "String"},
		{`TypeName(Nothing)`, "Nothing"},
		{`VarType(1.5)`, "5"},
		{`UBound(Array(1, 2, 3))`, "2"},
		{`Join(Filter(Array("apple", "pear", "grape"), "ap"), ",")`, "apple,grape"},
		{`Join(Filter(Array("apple", "pear", "grape"), "ap", False), ",")`, "pear"},
	})
}

func TestConversionOfNullFails(t *testing.T) {
	_, res := runHost(t, `x = CInt(Null)`)
	if res.Completed() {
		t.Fatal("CInt(Null) completed")
	}
	if res.Err.Kind != errors.TypeMismatch {
		t.Errorf("got %s, want TypeMismatch", res.Err.Kind)
	}
}

func TestDateFunctions(t *testing.T) {
	checkEchoes(t, []echoCase{
		{`Year(Now) & "-" & Month(Now) & "-" & Day(Now)`, "2024-3-15"},
		{`Hour(Now) & ":" & Minute(Now) & ":" & Second(Now)`, "14:30:5"},
		{`Date`, "3/15/2024"},
		{`DateSerial(2024, 1, 31)`, "1/31/2024"},
		{`DateAdd("m", 1, DateSerial(2024, 1, 31))`, "2/29/2024"},
		{`DateAdd("d", -1, DateSerial(2024, 3, 1))`, "2/29/2024"},
		{`DateDiff("d", DateSerial(2024, 1, 1), DateSerial(2024, 3, 1))`, "60"},
		{`DateDiff("yyyy", DateSerial(2023, 12, 31), DateSerial(2024, 1, 1))`, "1"},
		{`DatePart("q", DateSerial(2024, 8, 1))`, "3"},
		{`Weekday(DateSerial(2024, 3, 15))`, "6"},
		{`DateSerial(2024, 13, 1)`, "1/1/2025"},
		{`TimeSerial(13, 5, 0)`, "1:05:00 PM"},
		{`MonthName(2)`, "February"},
		{`MonthName(2, True)`, "Feb"},
		{`WeekdayName(1)`, "Sunday"},
		{`FormatDateTime(DateSerial(2024, 3, 15), 1)`, "Friday, March 15, 2024"},
		{`FormatDateTime(TimeSerial(9, 7, 0), 4)`, "09:07"},
		{`IsDate("2024-03-15")`, "True"},
	})
}

func TestLocalizedNames(t *testing.T) {
	got := echoes(t, `WScript.Echo MonthName(3)`, WithLocale(mustTag(t, "de-DE")))
	if got[0] != "März" {
		t.Errorf("MonthName(3) in de-DE = %q, want März", got[0])
	}
}

func TestFormatFunctions(t *testing.T) {
	checkEchoes(t, []echoCase{
		{`FormatNumber(1234.5)`, "1,234.50"},
		{`FormatNumber(1234.5, 0)`, "1,235"},
		{`FormatNumber(1234.5, 1, -2, -2, 0)`, "1234.5"},
		{`FormatNumber(-1234.567, 1, -2, -1)`, "(1,234.6)"},
		{`FormatNumber(-0.001)`, "0.00"},
	})
	got := echoes(t, `WScript.Echo FormatCurrency(1234.5)
WScript.Echo FormatPercent(0.256, 1)`)
	if !strings.HasPrefix(got[0], "$") || !strings.HasSuffix(got[0], "1,234.50") {
		t.Errorf("FormatCurrency = %q", got[0])
	}
	if got[1] != "25.6%" {
		t.Errorf("FormatPercent = %q, want 25.6%%", got[1])
	}
}

func TestDialogsTakeDefaults(t *testing.T) {
	got := echoes(t, `r = MsgBox("Continue?", vbYesNo + vbDefaultButton2, "Setup")
WScript.Echo r = vbNo
WScript.Echo InputBox("Name?", "Setup", "guest")`)
	want := []string{"[Setup] Continue?", "True", "[Setup] Name? guest", "guest"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInteractiveMsgBox(t *testing.T) {
	var out bytes.Buffer
	h := New(WithOutput(&out), WithInput(strings.NewReader("maybe\nn\n"), true))
	v, err := h.msgBox(argsOf("Save?", vbYesNoCancel))
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != vbNo {
		t.Errorf("answer = %d, want vbNo", v.Int())
	}
}

func TestWScriptQuit(t *testing.T) {
	out, res := runHost(t, `WScript.Echo "before"
WScript.Quit 3
WScript.Echo "after"`)
	if !res.Completed() {
		t.Fatalf("run halted: %v", res.Err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if out != "before\n" {
		t.Errorf("output = %q", out)
	}
}

func TestWScriptProperties(t *testing.T) {
	got := echoes(t, `WScript.Echo WScript.ScriptName
WScript.Echo WScript.Arguments.Count & " " & WScript.Arguments(1)
WScript.Echo WScript.Version
WScript.Echo "a", 1, Null`, WithScript("/tmp/jobs/nightly.vbs", []string{"x", "y"}))
	want := []string{"nightly.vbs", "2 y", Version, "a 1 Null"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, res := runHost(t, `WScript.Sleep 10000`, WithContext(ctx))
	if res.Completed() || res.Err.Kind != errors.Interrupted {
		t.Fatalf("got %v, want Interrupted", res.Err)
	}
}

func TestCreateObjectUnknown(t *testing.T) {
	got := echoes(t, `On Error Resume Next
Set o = CreateObject("Excel.Application")
WScript.Echo Err.Number`)
	if got[0] != "429" {
		t.Errorf("Err.Number = %s, want 429", got[0])
	}
}

func TestRepeatCountLimits(t *testing.T) {
	got := echoes(t, `On Error Resume Next
x = Space(1e10)
WScript.Echo Err.Number
Err.Clear
x = String(40000000, "a")
WScript.Echo Err.Number
Err.Clear
x = Space(-1)
WScript.Echo Err.Number
Err.Clear
WScript.Echo Len(Space(3) & String(2, 65))`)
	want := []string{"6", "7", "5", "5"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %q, want %q", got, want)
	}
}
