package variant

import (
	"testing"
	"time"

	"vbscript/internal/errors"
)

func TestStringArithmetic(t *testing.T) {
	sum, err := Add(String("3"), String("4"))
	if err != nil {
		t.Fatalf(`"3" + "4" failed: %v`, err)
	}
	if !sum.IsNumber() || sum.Float() != 7 {
		t.Errorf(`"3" + "4" = %v (%s), want numeric 7`, sum, sum.Kind())
	}

	cat := Concat(String("3"), String("4"))
	if cat.Kind() != KindString || cat.Str() != "34" {
		t.Errorf(`"3" & "4" = %v, want "34"`, cat)
	}

	_, err = Add(String("a"), Integer(1))
	if errors.KindOf(err) != errors.TypeMismatch {
		t.Errorf(`"a" + 1 error = %v, want TypeMismatch`, err)
	}

	padded, err := Mul(String("  2.5 "), Integer(2))
	if err != nil || padded.Float() != 5 {
		t.Errorf(`" 2.5 " * 2 = %v, %v; want 5`, padded, err)
	}

	hex, err := Add(String("&H10"), Integer(1))
	if err != nil || hex.Float() != 17 {
		t.Errorf(`"&H10" + 1 = %v, %v; want 17`, hex, err)
	}
}

func TestConcatNeverFails(t *testing.T) {
	arr, _ := NewArray(2)
	tests := []struct {
		a, b Variant
		want string
	}{
		{Null(), String("x"), "x"},
		{Empty(), Integer(5), "5"},
		{Bool(true), Double(1.5), "True1.5"},
		{ArrayOf(arr), String("!"), "!"},
		{Nothing(), String(""), "Nothing"},
	}
	for _, test := range tests {
		got := Concat(test.a, test.b)
		if got.Str() != test.want {
			t.Errorf("%v & %v = %q, want %q", test.a, test.b, got.Str(), test.want)
		}
	}
}

func TestBankersRounding(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{2.5, 2},
		{3.5, 4},
		{-2.5, -2},
		{0.5, 0},
		{1.5, 2},
		{2.4999, 2},
		{2.6, 3},
	}
	for _, test := range tests {
		got, err := ToInteger(Double(test.in))
		if err != nil {
			t.Fatalf("CInt(%v) failed: %v", test.in, err)
		}
		if got.Int() != test.want || got.Kind() != KindInteger {
			t.Errorf("CInt(%v) = %v (%s), want %d", test.in, got, got.Kind(), test.want)
		}
	}

	if _, err := ToInteger(Double(40000)); errors.KindOf(err) != errors.Overflow {
		t.Errorf("CInt(40000) error = %v, want Overflow", err)
	}
	if l, err := ToLong(Double(40000.5)); err != nil || l.Int() != 40000 || l.Kind() != KindLong {
		t.Errorf("CLng(40000.5) = %v, %v", l, err)
	}
}

func TestWidening(t *testing.T) {
	tests := []struct {
		name string
		got  func() (Variant, error)
		kind Kind
		want float64
	}{
		{"integer sum", func() (Variant, error) { return Add(Integer(1), Integer(2)) }, KindInteger, 3},
		{"integer overflow widens", func() (Variant, error) { return Add(Integer(32767), Integer(1)) }, KindLong, 32768},
		{"long overflow widens", func() (Variant, error) { return Mul(Long(2147483647), Integer(2)) }, KindDouble, 4294967294},
		{"division is double", func() (Variant, error) { return Div(Integer(6), Integer(3)) }, KindDouble, 2},
		{"integer division", func() (Variant, error) { return IntDiv(Integer(7), Integer(2)) }, KindInteger, 3},
		{"integer division rounds operands", func() (Variant, error) { return IntDiv(Double(7.5), Integer(2)) }, KindLong, 4},
		{"mod", func() (Variant, error) { return Mod(Integer(-7), Integer(3)) }, KindInteger, -1},
		{"power is double", func() (Variant, error) { return Pow(Integer(2), Integer(10)) }, KindDouble, 1024},
		{"boolean arithmetic", func() (Variant, error) { return Add(Bool(true), Integer(1)) }, KindInteger, 0},
		{"empty is zero", func() (Variant, error) { return Add(Empty(), Integer(4)) }, KindInteger, 4},
		{"negate min integer", func() (Variant, error) { return Neg(Integer(-32768)) }, KindLong, 32768},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.got()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind() != test.kind || got.Float() != test.want {
				t.Errorf("got %v (%s), want %v (%s)", got, got.Kind(), test.want, test.kind)
			}
		})
	}
}

func TestDivideByZero(t *testing.T) {
	for name, op := range map[string]func(a, b Variant) (Variant, error){
		"/": Div, `\`: IntDiv, "Mod": Mod,
	} {
		if _, err := op(Integer(1), Integer(0)); errors.KindOf(err) != errors.DivideByZero {
			t.Errorf("1 %s 0 error = %v, want DivideByZero", name, err)
		}
	}
}

func TestNullPropagation(t *testing.T) {
	for name, op := range map[string]func(a, b Variant) (Variant, error){
		"+": Add, "-": Sub, "*": Mul, "/": Div, "^": Pow,
	} {
		got, err := op(Null(), Integer(2))
		if err != nil || !got.IsNull() {
			t.Errorf("Null %s 2 = %v, %v; want Null", name, got, err)
		}
	}
	if got, _ := Neg(Null()); !got.IsNull() {
		t.Errorf("-Null = %v, want Null", got)
	}
}

func TestComparison(t *testing.T) {
	tests := []struct {
		name string
		op   CompareOp
		a, b Variant
		want bool
	}{
		{"numeric strings compare as numbers", OpLt, String("9"), String("10"), true},
		{"number and numeric string", OpEq, Integer(5), String(" 5 "), true},
		{"lexical fallback", OpLt, String("apple"), String("banana"), true},
		{"lexical is case sensitive", OpEq, String("A"), String("a"), false},
		{"empty equals zero", OpEq, Empty(), Integer(0), true},
		{"empty equals empty string", OpEq, Empty(), String(""), true},
		{"boolean true is minus one", OpEq, Bool(true), Integer(-1), true},
		{"double vs long", OpGe, Double(2.5), Long(2), true},
		{"not equal", OpNe, String("x"), String("y"), true},
		{"dates", OpLt, Date(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), Date(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)), true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Compare(test.op, test.a, test.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind() != KindBoolean || got.Bool() != test.want {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestNullComparisonIsUnknown(t *testing.T) {
	for _, op := range []CompareOp{OpEq, OpNe, OpLt, OpGt, OpLe, OpGe} {
		for _, pair := range [][2]Variant{{Null(), Integer(1)}, {String("a"), Null()}, {Null(), Null()}} {
			got, err := Compare(op, pair[0], pair[1])
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.IsNull() {
				t.Errorf("compare(%d, %v, %v) = %v, want Null", op, pair[0], pair[1], got)
			}
			if Truthy(got) {
				t.Errorf("a Null comparison must not be truthy")
			}
		}
	}
	if eq, _ := Equal(Null(), Null()); eq {
		t.Error("Null = Null must not be true")
	}
}

func TestThreeValuedLogic(t *testing.T) {
	T, F, N := Bool(true), Bool(false), Null()
	tests := []struct {
		op   LogicOp
		a, b Variant
		want Variant
	}{
		{OpAnd, T, N, N},
		{OpAnd, N, T, N},
		{OpAnd, F, N, F},
		{OpAnd, N, F, F},
		{OpAnd, N, N, N},
		{OpOr, T, N, T},
		{OpOr, N, T, T},
		{OpOr, F, N, N},
		{OpOr, N, N, N},
		{OpXor, T, N, N},
		{OpEqv, F, N, N},
		{OpImp, F, N, T},
		{OpImp, T, N, N},
		{OpImp, N, T, T},
		{OpImp, N, F, N},
		{OpAnd, T, F, F},
		{OpOr, T, F, T},
		{OpXor, T, T, F},
		{OpEqv, F, F, T},
		{OpImp, T, F, F},
	}
	for _, test := range tests {
		got, err := Logic(test.op, test.a, test.b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind() != test.want.Kind() || got.Bool() != test.want.Bool() {
			t.Errorf("logic(%d, %v, %v) = %v, want %v", test.op, test.a, test.b, got, test.want)
		}
	}

	if got, _ := Not(N); !got.IsNull() {
		t.Errorf("Not Null = %v, want Null", got)
	}
	if got, _ := Not(T); got.Bool() {
		t.Errorf("Not True = %v", got)
	}
	if got, _ := Logic(OpAnd, Integer(12), Integer(10)); got.Int() != 8 || got.Kind() != KindInteger {
		t.Errorf("12 And 10 = %v, want bitwise 8", got)
	}
	if got, _ := Not(Integer(0)); got.Int() != -1 {
		t.Errorf("Not 0 = %v, want -1", got)
	}
}

func TestTruthy(t *testing.T) {
	falsy := []Variant{Empty(), Null(), String(""), Integer(0), Long(0), Double(0), Bool(false), Nothing()}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("%s %v should be falsy", v.Kind(), v)
		}
	}
	arr, _ := NewArray(0)
	truthy := []Variant{String("0"), String("False"), String(" "), Integer(-1), Double(0.1), Bool(true), ArrayOf(arr)}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("%s %q should be truthy", v.Kind(), v.String())
		}
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		v    Variant
		want string
	}{
		{Double(0.1 + 0.2), "0.3"},
		{Double(1e15), "1E+15"},
		{Double(1e-5), "1E-05"},
		{Double(2.5), "2.5"},
		{Double(100), "100"},
		{Bool(false), "False"},
		{Null(), "Null"},
		{Empty(), ""},
		{Date(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)), "3/5/2024"},
		{Date(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)), "3/5/2024 2:07:09 PM"},
	}
	for _, test := range tests {
		if got := test.v.String(); got != test.want {
			t.Errorf("String(%s) = %q, want %q", test.v.Kind(), got, test.want)
		}
	}
}

func TestDateConversion(t *testing.T) {
	d := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	if f := DateToFloat(d); f != 36526.5 {
		t.Errorf("DateToFloat = %v, want 36526.5", f)
	}
	if back := FloatToDate(36526.5); !back.Equal(d) {
		t.Errorf("FloatToDate = %v, want %v", back, d)
	}
	got, err := ToDate(String("2024-02-29"))
	if err != nil || got.Day() != 29 {
		t.Errorf("CDate(2024-02-29) = %v, %v", got, err)
	}
	sum, err := Add(Date(d), Integer(1))
	if err != nil || sum.Kind() != KindDate || sum.Time().Day() != 2 {
		t.Errorf("date + 1 = %v, %v", sum, err)
	}
}

func TestArrays(t *testing.T) {
	a, err := NewArray(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set(Integer(1), 3); err != nil {
		t.Errorf("a(3) = 1 failed: %v", err)
	}
	if err := a.Set(Integer(1), 4); errors.KindOf(err) != errors.SubscriptOutOfRange {
		t.Errorf("a(4) = 1 error = %v, want SubscriptOutOfRange", err)
	}
	if _, err := a.Get(-1); errors.KindOf(err) != errors.SubscriptOutOfRange {
		t.Errorf("a(-1) error = %v, want SubscriptOutOfRange", err)
	}

	a.Set(String("keep"), 0)
	if err := a.Redim(true, 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.Get(0); v.Str() != "keep" {
		t.Errorf("preserve lost element 0: %v", v)
	}
	if ub, _ := a.UBound(1); ub != 5 {
		t.Errorf("UBound = %d, want 5", ub)
	}
	if err := a.Redim(true, 1); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 2 {
		t.Errorf("shrunk length = %d, want 2", a.Len())
	}
	if v, _ := a.Get(0); v.Str() != "keep" {
		t.Errorf("truncation lost element 0: %v", v)
	}
	a.Redim(false, 2)
	if v, _ := a.Get(0); !v.IsEmpty() {
		t.Errorf("ReDim without Preserve kept %v", v)
	}
}

func TestMultiDimensionalArray(t *testing.T) {
	m, _ := NewArray(1, 2)
	m.Set(Integer(12), 1, 2)
	m.Set(Integer(1), 0, 1)
	if v, _ := m.Get(1, 2); v.Int() != 12 {
		t.Errorf("m(1,2) = %v", v)
	}
	if err := m.Redim(true, 1, 4); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Get(0, 1); v.Int() != 1 {
		t.Errorf("after ReDim Preserve m(0,1) = %v", v)
	}
	if v, _ := m.Get(1, 2); v.Int() != 12 {
		t.Errorf("after ReDim Preserve m(1,2) = %v", v)
	}
	if _, err := m.Get(1); errors.KindOf(err) != errors.SubscriptOutOfRange {
		t.Errorf("wrong rank error = %v", err)
	}
}

func TestArrayValueSemantics(t *testing.T) {
	a, _ := NewArray(1)
	a.Set(Integer(1), 0)
	v := ArrayOf(a)
	c := v.Copy()
	a.Set(Integer(99), 0)
	if got, _ := c.Array().Get(0); got.Int() != 1 {
		t.Errorf("copy shares storage with original: %v", got)
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		v       Variant
		name    string
		varType int
	}{
		{Empty(), "Empty", VbEmpty},
		{Null(), "Null", VbNull},
		{Int(5), "Integer", VbInteger},
		{Int(70000), "Long", VbLong},
		{Double(1), "Double", VbDouble},
		{String(""), "String", VbString},
		{Bool(true), "Boolean", VbBoolean},
		{Nothing(), "Nothing", VbObject},
	}
	for _, test := range tests {
		if got := TypeName(test.v); got != test.name {
			t.Errorf("TypeName = %q, want %q", got, test.name)
		}
		if got := VarType(test.v); got != test.varType {
			t.Errorf("VarType(%s) = %d, want %d", test.name, got, test.varType)
		}
	}
}
