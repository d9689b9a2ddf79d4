package host

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/currency"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"vbscript/internal/variant"
)

// Tristate values taken by the formatting functions.
const (
	tristateUseDefault = -2
	tristateTrue       = -1
	tristateFalse      = 0
)

// humanize renders at most nine fraction digits.
const maxDigits = 9

func formatFuncs(h *Host) []builtin {
	return []builtin{
		{"FormatNumber", 1, 5, formatNumber},
		{"FormatCurrency", 1, 5, h.formatCurrency},
		{"FormatPercent", 1, 5, h.formatPercent},
	}
}

// numberStyle holds the optional arguments shared by the Format* functions:
// digits after the decimal, leading zero, parentheses for negatives and
// digit grouping.
type numberStyle struct {
	digits  int
	leading bool
	parens  bool
	group   bool
}

func tristate(args []variant.Variant, n int, def bool) (bool, error) {
	v, err := optInt(args, n, tristateUseDefault)
	if err != nil {
		return false, err
	}
	switch v {
	case tristateUseDefault:
		return def, nil
	case tristateFalse:
		return false, nil
	}
	return true, nil
}

func parseStyle(name string, args []variant.Variant) (float64, numberStyle, error) {
	var st numberStyle
	f, err := variant.ToFloat(args[0])
	if err != nil {
		return 0, st, err
	}
	if st.digits, err = optInt(args, 1, -1); err != nil {
		return 0, st, err
	}
	if st.digits == -1 {
		st.digits = 2
	}
	if st.digits < 0 || st.digits > maxDigits {
		return 0, st, invalidCall(name)
	}
	if st.leading, err = tristate(args, 2, true); err != nil {
		return 0, st, err
	}
	if st.parens, err = tristate(args, 3, false); err != nil {
		return 0, st, err
	}
	if st.group, err = tristate(args, 4, true); err != nil {
		return 0, st, err
	}
	return f, st, nil
}

// decorate applies the leading-digit and negative-number options to the
// formatted magnitude s.
func (st numberStyle) decorate(s string, negative bool) string {
	if !st.leading && strings.HasPrefix(s, "0.") {
		s = s[1:]
	}
	if !negative {
		return s
	}
	if st.parens {
		return "(" + s + ")"
	}
	return "-" + s
}

// humanizeFormat builds the go-humanize directive for the style, e.g.
// "#,###.##" for two grouped decimals.
func (st numberStyle) humanizeFormat() string {
	layout := "####."
	if st.group {
		layout = "#,###."
	}
	return layout + strings.Repeat("#", st.digits)
}

func formatNumber(args []variant.Variant) (variant.Variant, error) {
	f, st, err := parseStyle("FormatNumber", args)
	if err != nil {
		return variant.Empty(), err
	}
	s := humanize.FormatFloat(st.humanizeFormat(), math.Abs(f))
	return variant.String(st.decorate(s, isNegative(f, st.digits))), nil
}

// isNegative reports whether f stays negative once rounded to digits, so
// -0.001 does not print as -0.00.
func isNegative(f float64, digits int) bool {
	scale := math.Pow(10, float64(digits))
	return math.Round(f*scale) < 0
}

func (h *Host) decimal(f float64, st numberStyle) string {
	p := message.NewPrinter(h.locale)
	opts := []number.Option{number.Scale(st.digits)}
	if !st.group {
		opts = append(opts, number.NoSeparator())
	}
	return p.Sprint(number.Decimal(math.Abs(f), opts...))
}

// formatCurrency prefixes the locale's currency symbol, e.g. $1,234.50 for
// en-US.
func (h *Host) formatCurrency(args []variant.Variant) (variant.Variant, error) {
	f, st, err := parseStyle("FormatCurrency", args)
	if err != nil {
		return variant.Empty(), err
	}
	unit, _ := currency.FromTag(h.locale)
	p := message.NewPrinter(h.locale)
	s := p.Sprint(currency.Symbol(unit)) + h.decimal(f, st)
	return variant.String(st.decorate(s, isNegative(f, st.digits))), nil
}

func (h *Host) formatPercent(args []variant.Variant) (variant.Variant, error) {
	f, st, err := parseStyle("FormatPercent", args)
	if err != nil {
		return variant.Empty(), err
	}
	p := message.NewPrinter(h.locale)
	opts := []number.Option{number.Scale(st.digits)}
	if !st.group {
		opts = append(opts, number.NoSeparator())
	}
	s := p.Sprint(number.Percent(math.Abs(f), opts...))
	return variant.String(st.decorate(s, isNegative(f*100, st.digits))), nil
}
