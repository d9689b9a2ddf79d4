package host

import (
	"strings"
	"unicode/utf8"

	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

// Comparison modes taken by InStr, Replace, Split, StrComp and Filter.
const (
	binaryCompare = 0
	textCompare   = 1
)

var stringFuncs = []builtin{
	{"Len", 1, 1, strLen},
	{"Left", 2, 2, left},
	{"Right", 2, 2, right},
	{"Mid", 2, 3, mid},
	{"UCase", 1, 1, mapString(strings.ToUpper)},
	{"LCase", 1, 1, mapString(strings.ToLower)},
	{"Trim", 1, 1, mapString(func(s string) string { return strings.Trim(s, " ") })},
	{"LTrim", 1, 1, mapString(func(s string) string { return strings.TrimLeft(s, " ") })},
	{"RTrim", 1, 1, mapString(func(s string) string { return strings.TrimRight(s, " ") })},
	{"StrReverse", 1, 1, mapString(reverse)},
	{"InStr", 2, 4, inStr},
	{"InStrRev", 2, 4, inStrRev},
	{"Replace", 3, 6, replace},
	{"Split", 1, 4, split},
	{"Join", 1, 2, join},
	{"Space", 1, 1, space},
	{"String", 2, 2, repeat},
	{"StrComp", 2, 3, strComp},
	{"Asc", 1, 1, asc},
	{"AscW", 1, 1, asc},
	{"Chr", 1, 1, chr},
	{"ChrW", 1, 1, chr},
}

// mapString lifts a string transform into an intrinsic that passes Null
// through.
func mapString(fn func(string) string) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		if args[0].IsNull() {
			return args[0], nil
		}
		s, err := toString(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		return variant.String(fn(s)), nil
	}
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func strLen(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	s, err := toString(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	return variant.Int(int64(utf8.RuneCountInString(s))), nil
}

// substring reads the string and a non-negative length argument shared by
// Left and Right.
func substring(name string, args []variant.Variant) ([]rune, int, error) {
	s, err := toString(args[0])
	if err != nil {
		return nil, 0, err
	}
	n, err := toInt(args[1])
	if err != nil {
		return nil, 0, err
	}
	if n < 0 {
		return nil, 0, invalidCall(name)
	}
	r := []rune(s)
	if n > len(r) {
		n = len(r)
	}
	return r, n, nil
}

func left(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	r, n, err := substring("Left", args)
	if err != nil {
		return variant.Empty(), err
	}
	return variant.String(string(r[:n])), nil
}

func right(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	r, n, err := substring("Right", args)
	if err != nil {
		return variant.Empty(), err
	}
	return variant.String(string(r[len(r)-n:])), nil
}

func mid(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() {
		return args[0], nil
	}
	s, err := toString(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	start, err := toInt(args[1])
	if err != nil {
		return variant.Empty(), err
	}
	if start < 1 {
		return variant.Empty(), invalidCall("Mid")
	}
	r := []rune(s)
	if start > len(r) {
		return variant.String(""), nil
	}
	end := len(r)
	if given(args, 2) {
		n, err := toInt(args[2])
		if err != nil {
			return variant.Empty(), err
		}
		if n < 0 {
			return variant.Empty(), invalidCall("Mid")
		}
		if start-1+n < end {
			end = start - 1 + n
		}
	}
	return variant.String(string(r[start-1 : end])), nil
}

// fold lower-cases both strings for a text comparison.
func fold(a, b string, mode int) (string, string) {
	if mode == textCompare {
		return strings.ToLower(a), strings.ToLower(b)
	}
	return a, b
}

// runeIndex converts a byte offset in s to a 1-based character position.
func runeIndex(s string, byteOff int) int {
	return utf8.RuneCountInString(s[:byteOff]) + 1
}

// byteOffset converts a 1-based character position to a byte offset,
// clamped to len(s).
func byteOffset(s string, pos int) int {
	if pos <= 1 {
		return 0
	}
	n := 1
	for i := range s {
		if n == pos {
			return i
		}
		n++
	}
	return len(s)
}

// inStr implements InStr([start,] string1, string2[, compare]).
func inStr(args []variant.Variant) (variant.Variant, error) {
	start := 1
	if len(args) >= 3 {
		n, err := toInt(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		if n < 1 {
			return variant.Empty(), invalidCall("InStr")
		}
		start = n
		args = args[1:]
	}
	if args[0].IsNull() || args[1].IsNull() {
		return variant.Null(), nil
	}
	mode, err := optInt(args, 2, binaryCompare)
	if err != nil {
		return variant.Empty(), err
	}
	s1, s2 := fold(variant.ToString(args[0]), variant.ToString(args[1]), mode)
	if start > utf8.RuneCountInString(s1) {
		return variant.Integer(0), nil
	}
	if s2 == "" {
		return variant.Int(int64(start)), nil
	}
	off := byteOffset(s1, start)
	i := strings.Index(s1[off:], s2)
	if i < 0 {
		return variant.Integer(0), nil
	}
	return variant.Int(int64(runeIndex(s1, off+i))), nil
}

// inStrRev implements InStrRev(string1, string2[, start[, compare]]).
func inStrRev(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return variant.Null(), nil
	}
	mode, err := optInt(args, 3, binaryCompare)
	if err != nil {
		return variant.Empty(), err
	}
	s1, s2 := fold(variant.ToString(args[0]), variant.ToString(args[1]), mode)
	length := utf8.RuneCountInString(s1)
	start, err := optInt(args, 2, -1)
	if err != nil {
		return variant.Empty(), err
	}
	if start == -1 {
		start = length
	}
	if start < 1 {
		return variant.Empty(), invalidCall("InStrRev")
	}
	if start > length {
		return variant.Integer(0), nil
	}
	if s2 == "" {
		return variant.Int(int64(start)), nil
	}
	// the match must end at or before start
	limit := byteOffset(s1, start+1)
	i := strings.LastIndex(s1[:limit], s2)
	if i < 0 {
		return variant.Integer(0), nil
	}
	return variant.Int(int64(runeIndex(s1, i))), nil
}

// replace implements Replace(expression, find, with[, start[, count[,
// compare]]]). The result starts at start, as the legacy runtime's does.
func replace(args []variant.Variant) (variant.Variant, error) {
	for _, a := range args[:3] {
		if a.IsNull() {
			return variant.Empty(), errors.New(errors.TypeMismatch, "Invalid use of Null")
		}
	}
	expr, find, with := variant.ToString(args[0]), variant.ToString(args[1]), variant.ToString(args[2])
	start, err := optInt(args, 3, 1)
	if err != nil {
		return variant.Empty(), err
	}
	count, err := optInt(args, 4, -1)
	if err != nil {
		return variant.Empty(), err
	}
	mode, err := optInt(args, 5, binaryCompare)
	if err != nil {
		return variant.Empty(), err
	}
	if start < 1 || count < -1 {
		return variant.Empty(), invalidCall("Replace")
	}
	expr = expr[byteOffset(expr, start):]
	if find == "" || count == 0 {
		return variant.String(expr), nil
	}

	haystack, needle := fold(expr, find, mode)
	var sb strings.Builder
	pos, done := 0, 0
	for count < 0 || done < count {
		i := strings.Index(haystack[pos:], needle)
		if i < 0 {
			break
		}
		sb.WriteString(expr[pos : pos+i])
		sb.WriteString(with)
		pos += i + len(needle)
		done++
	}
	sb.WriteString(expr[pos:])
	return variant.String(sb.String()), nil
}

// split implements Split(expression[, delimiter[, limit[, compare]]]).
func split(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() {
		return variant.Null(), nil
	}
	s := variant.ToString(args[0])
	delim := optString(args, 1, " ")
	limit, err := optInt(args, 2, -1)
	if err != nil {
		return variant.Empty(), err
	}
	mode, err := optInt(args, 3, binaryCompare)
	if err != nil {
		return variant.Empty(), err
	}
	if limit == 0 || s == "" {
		a, _ := variant.NewArray(-1)
		return variant.ArrayOf(a), nil
	}

	var parts []string
	switch {
	case delim == "":
		parts = []string{s}
	case mode == textCompare:
		lower, ld := strings.ToLower(s), strings.ToLower(delim)
		pos := 0
		for limit < 0 || len(parts) < limit-1 {
			i := strings.Index(lower[pos:], ld)
			if i < 0 {
				break
			}
			parts = append(parts, s[pos:pos+i])
			pos += i + len(ld)
		}
		parts = append(parts, s[pos:])
	default:
		parts = strings.SplitN(s, delim, limit)
	}
	values := make([]variant.Variant, len(parts))
	for i, p := range parts {
		values[i] = variant.String(p)
	}
	return variant.ArrayOf(variant.ArrayFrom(values)), nil
}

func join(args []variant.Variant) (variant.Variant, error) {
	if !args[0].IsArray() {
		return variant.Empty(), errors.New(errors.TypeMismatch, "")
	}
	a := args[0].Array()
	if a.Dims() > 1 {
		return variant.Empty(), errors.New(errors.SubscriptOutOfRange, "")
	}
	values := a.Values()
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = variant.ToString(v)
	}
	return variant.String(strings.Join(parts, optString(args, 1, " "))), nil
}

func space(args []variant.Variant) (variant.Variant, error) {
	n, err := repeatCount("Space", args[0])
	if err != nil {
		return variant.Empty(), err
	}
	return variant.String(strings.Repeat(" ", n)), nil
}

// repeat implements String(number, character). A numeric character is a
// character code.
func repeat(args []variant.Variant) (variant.Variant, error) {
	if args[1].IsNull() {
		return variant.Null(), nil
	}
	n, err := repeatCount("String", args[0])
	if err != nil {
		return variant.Empty(), err
	}
	var ch string
	if args[1].IsNumber() {
		code, err := toInt(args[1])
		if err != nil {
			return variant.Empty(), err
		}
		ch = string(rune(code % 256))
	} else {
		s := variant.ToString(args[1])
		if s == "" {
			return variant.Empty(), invalidCall("String")
		}
		r, _ := utf8.DecodeRuneInString(s)
		ch = string(r)
	}
	return variant.String(strings.Repeat(ch, n)), nil
}

func strComp(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return variant.Null(), nil
	}
	mode, err := optInt(args, 2, binaryCompare)
	if err != nil {
		return variant.Empty(), err
	}
	a, b := fold(variant.ToString(args[0]), variant.ToString(args[1]), mode)
	return variant.Integer(int16(strings.Compare(a, b))), nil
}

func asc(args []variant.Variant) (variant.Variant, error) {
	s, err := toString(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	if s == "" {
		return variant.Empty(), invalidCall("Asc")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return variant.Int(int64(r)), nil
}

func chr(args []variant.Variant) (variant.Variant, error) {
	n, err := toInt(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	if n < 0 || n > utf8.MaxRune {
		return variant.Empty(), invalidCall("Chr")
	}
	return variant.String(string(rune(n))), nil
}
