package host

import (
	"math"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"

	"vbscript/internal/variant"
)

// Values of the firstdayofweek argument.
const (
	useSystemDay = 0
	sunday       = 1
)

// Named formats of FormatDateTime.
const (
	generalDate = iota
	longDate
	shortDate
	longTime
	shortTime
)

var dayZero = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func dateFuncs(h *Host) []builtin {
	return []builtin{
		{"Now", 0, 0, func([]variant.Variant) (variant.Variant, error) {
			return variant.Date(h.nowLocal().Truncate(time.Second)), nil
		}},
		{"Date", 0, 0, func([]variant.Variant) (variant.Variant, error) {
			return variant.Date(midnight(h.nowLocal())), nil
		}},
		{"Time", 0, 0, func([]variant.Variant) (variant.Variant, error) {
			t := h.nowLocal().Truncate(time.Second)
			return variant.Date(dayZero.Add(t.Sub(midnight(t)))), nil
		}},
		{"Timer", 0, 0, func([]variant.Variant) (variant.Variant, error) {
			t := h.nowLocal()
			return variant.Double(math.Round(t.Sub(midnight(t)).Seconds()*100) / 100), nil
		}},
		{"Year", 1, 1, datePart(func(t time.Time) int { return t.Year() })},
		{"Month", 1, 1, datePart(func(t time.Time) int { return int(t.Month()) })},
		{"Day", 1, 1, datePart(time.Time.Day)},
		{"Hour", 1, 1, datePart(time.Time.Hour)},
		{"Minute", 1, 1, datePart(time.Time.Minute)},
		{"Second", 1, 1, datePart(time.Time.Second)},
		{"Weekday", 1, 2, weekday},
		{"DateAdd", 3, 3, dateAdd},
		{"DateDiff", 3, 4, dateDiff},
		{"DatePart", 2, 4, datePartFunc},
		{"DateSerial", 3, 3, dateSerial},
		{"TimeSerial", 3, 3, timeSerial},
		{"DateValue", 1, 1, func(args []variant.Variant) (variant.Variant, error) {
			return withDate(args[0], func(t time.Time) variant.Variant { return variant.Date(midnight(t)) })
		}},
		{"TimeValue", 1, 1, func(args []variant.Variant) (variant.Variant, error) {
			return withDate(args[0], func(t time.Time) variant.Variant { return variant.Date(dayZero.Add(t.Sub(midnight(t)))) })
		}},
		{"MonthName", 1, 2, h.monthName},
		{"WeekdayName", 1, 3, h.weekdayName},
		{"FormatDateTime", 1, 2, formatDateTime},
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// withDate converts v to a date and applies fn. Null passes through.
func withDate(v variant.Variant, fn func(time.Time) variant.Variant) (variant.Variant, error) {
	if v.IsNull() {
		return v, nil
	}
	t, err := variant.ToDate(v)
	if err != nil {
		return variant.Empty(), err
	}
	return fn(t), nil
}

func datePart(part func(time.Time) int) func([]variant.Variant) (variant.Variant, error) {
	return func(args []variant.Variant) (variant.Variant, error) {
		return withDate(args[0], func(t time.Time) variant.Variant { return variant.Int(int64(part(t))) })
	}
}

// dayOfWeek numbers t's weekday 1..7 counting from firstDay, itself 1 for
// Sunday through 7 for Saturday.
func dayOfWeek(t time.Time, firstDay int) int {
	if firstDay == useSystemDay {
		firstDay = sunday
	}
	return (int(t.Weekday())-(firstDay-1)+7)%7 + 1
}

func firstDayArg(args []variant.Variant, n int) (int, error) {
	first, err := optInt(args, n, sunday)
	if err != nil {
		return 0, err
	}
	if first < 0 || first > 7 {
		return 0, invalidCall("firstdayofweek")
	}
	return first, nil
}

func weekday(args []variant.Variant) (variant.Variant, error) {
	first, err := firstDayArg(args, 1)
	if err != nil {
		return variant.Empty(), err
	}
	return withDate(args[0], func(t time.Time) variant.Variant { return variant.Int(int64(dayOfWeek(t, first))) })
}

// addInterval implements the interval arithmetic of DateAdd. Month based
// intervals clamp to the end of the target month.
func addInterval(interval string, n int, t time.Time) (time.Time, error) {
	switch strings.ToLower(interval) {
	case "yyyy":
		return addMonths(t, 12*n), nil
	case "q":
		return addMonths(t, 3*n), nil
	case "m":
		return addMonths(t, n), nil
	case "y", "d", "w":
		return t.AddDate(0, 0, n), nil
	case "ww":
		return t.AddDate(0, 0, 7*n), nil
	case "h":
		return t.Add(time.Duration(n) * time.Hour), nil
	case "n":
		return t.Add(time.Duration(n) * time.Minute), nil
	case "s":
		return t.Add(time.Duration(n) * time.Second), nil
	}
	return time.Time{}, invalidCall("interval")
}

func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func dateAdd(args []variant.Variant) (variant.Variant, error) {
	if args[1].IsNull() || args[2].IsNull() {
		return variant.Null(), nil
	}
	n, err := toInt(args[1])
	if err != nil {
		return variant.Empty(), err
	}
	t, err := variant.ToDate(args[2])
	if err != nil {
		return variant.Empty(), err
	}
	r, err := addInterval(variant.ToString(args[0]), n, t)
	if err != nil {
		return variant.Empty(), err
	}
	return variant.Date(r), nil
}

// dateDiff implements DateDiff(interval, date1, date2[, firstdayofweek]).
// Calendar intervals count boundaries crossed, not elapsed periods.
func dateDiff(args []variant.Variant) (variant.Variant, error) {
	if args[1].IsNull() || args[2].IsNull() {
		return variant.Null(), nil
	}
	a, err := variant.ToDate(args[1])
	if err != nil {
		return variant.Empty(), err
	}
	b, err := variant.ToDate(args[2])
	if err != nil {
		return variant.Empty(), err
	}
	first, err := firstDayArg(args, 3)
	if err != nil {
		return variant.Empty(), err
	}
	var n int64
	switch strings.ToLower(variant.ToString(args[0])) {
	case "yyyy":
		n = int64(b.Year() - a.Year())
	case "q":
		n = int64((b.Year()*4 + (int(b.Month())-1)/3) - (a.Year()*4 + (int(a.Month())-1)/3))
	case "m":
		n = int64((b.Year()*12 + int(b.Month())) - (a.Year()*12 + int(a.Month())))
	case "y", "d":
		n = days(midnight(b).Sub(midnight(a)))
	case "w":
		n = days(midnight(b).Sub(midnight(a))) / 7
	case "ww":
		start := func(t time.Time) time.Time {
			return midnight(t).AddDate(0, 0, 1-dayOfWeek(t, first))
		}
		n = days(start(b).Sub(start(a))) / 7
	case "h":
		n = int64(b.Truncate(time.Hour).Sub(a.Truncate(time.Hour)) / time.Hour)
	case "n":
		n = int64(b.Truncate(time.Minute).Sub(a.Truncate(time.Minute)) / time.Minute)
	case "s":
		n = int64(b.Truncate(time.Second).Sub(a.Truncate(time.Second)) / time.Second)
	default:
		return variant.Empty(), invalidCall("DateDiff")
	}
	return variant.Int(n), nil
}

func days(d time.Duration) int64 {
	return int64(math.Round(d.Hours() / 24))
}

// datePartFunc implements DatePart(interval, date[, firstdayofweek]).
func datePartFunc(args []variant.Variant) (variant.Variant, error) {
	if args[1].IsNull() {
		return variant.Null(), nil
	}
	t, err := variant.ToDate(args[1])
	if err != nil {
		return variant.Empty(), err
	}
	first, err := firstDayArg(args, 2)
	if err != nil {
		return variant.Empty(), err
	}
	var n int
	switch strings.ToLower(variant.ToString(args[0])) {
	case "yyyy":
		n = t.Year()
	case "q":
		n = (int(t.Month())-1)/3 + 1
	case "m":
		n = int(t.Month())
	case "y":
		n = t.YearDay()
	case "d":
		n = t.Day()
	case "w":
		n = dayOfWeek(t, first)
	case "ww":
		jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		n = (t.YearDay()+dayOfWeek(jan1, first)-2)/7 + 1
	case "h":
		n = t.Hour()
	case "n":
		n = t.Minute()
	case "s":
		n = t.Second()
	default:
		return variant.Empty(), invalidCall("DatePart")
	}
	return variant.Int(int64(n)), nil
}

func ints(args []variant.Variant) ([]int, bool, error) {
	out := make([]int, len(args))
	for i, a := range args {
		if a.IsNull() {
			return nil, true, nil
		}
		n, err := toInt(a)
		if err != nil {
			return nil, false, err
		}
		out[i] = n
	}
	return out, false, nil
}

// dateSerial normalizes out-of-range months and days the way time.Date
// does. Two-digit years map 0-29 to 2000-2029 and 30-99 to 1930-1999.
func dateSerial(args []variant.Variant) (variant.Variant, error) {
	n, null, err := ints(args)
	if null || err != nil {
		return variant.Null(), err
	}
	year := n[0]
	switch {
	case year >= 0 && year < 30:
		year += 2000
	case year >= 30 && year < 100:
		year += 1900
	}
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n[1]-1, n[2]-1)
	if t.Year() < 100 || t.Year() > 9999 {
		return variant.Empty(), invalidCall("DateSerial")
	}
	return variant.Date(t), nil
}

func timeSerial(args []variant.Variant) (variant.Variant, error) {
	n, null, err := ints(args)
	if null || err != nil {
		return variant.Null(), err
	}
	d := time.Duration(n[0])*time.Hour + time.Duration(n[1])*time.Minute + time.Duration(n[2])*time.Second
	return variant.Date(dayZero.Add(d)), nil
}

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_GB": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_CA": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_BR": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"ru":    monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"ja":    monday.LocaleJaJP,
	"ko":    monday.LocaleKoKR,
	"zh":    monday.LocaleZhCN,
	"zh_TW": monday.LocaleZhTW,
	"tr":    monday.LocaleTrTR,
	"uk":    monday.LocaleUkUA,
}

// mondayLocale maps a language tag to the nearest monday locale, trying
// language_REGION before the bare language.
func mondayLocale(tag language.Tag) monday.Locale {
	base, _ := tag.Base()
	region, _ := tag.Region()
	if loc, ok := mondayLocales[base.String()+"_"+region.String()]; ok {
		return loc
	}
	if loc, ok := mondayLocales[base.String()]; ok {
		return loc
	}
	return monday.LocaleEnUS
}

func (h *Host) monthName(args []variant.Variant) (variant.Variant, error) {
	m, err := toInt(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	if m < 1 || m > 12 {
		return variant.Empty(), invalidCall("MonthName")
	}
	abbrev, err := optBool(args, 1, false)
	if err != nil {
		return variant.Empty(), err
	}
	layout := "January"
	if abbrev {
		layout = "Jan"
	}
	t := time.Date(2000, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	return variant.String(monday.Format(t, layout, mondayLocale(h.locale))), nil
}

func (h *Host) weekdayName(args []variant.Variant) (variant.Variant, error) {
	d, err := toInt(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	if d < 1 || d > 7 {
		return variant.Empty(), invalidCall("WeekdayName")
	}
	abbrev, err := optBool(args, 1, false)
	if err != nil {
		return variant.Empty(), err
	}
	first, err := firstDayArg(args, 2)
	if err != nil {
		return variant.Empty(), err
	}
	if first == useSystemDay {
		first = sunday
	}
	layout := "Monday"
	if abbrev {
		layout = "Mon"
	}
	// 2000-01-02 was a Sunday
	t := time.Date(2000, time.January, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, (d-1+first-1)%7)
	return variant.String(monday.Format(t, layout, mondayLocale(h.locale))), nil
}

func formatDateTime(args []variant.Variant) (variant.Variant, error) {
	if args[0].IsNull() {
		return variant.Empty(), invalidCall("FormatDateTime")
	}
	t, err := variant.ToDate(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	format, err := optInt(args, 1, generalDate)
	if err != nil {
		return variant.Empty(), err
	}
	switch format {
	case generalDate:
		return variant.String(variant.FormatDate(t)), nil
	case longDate:
		return variant.String(t.Format("Monday, January 2, 2006")), nil
	case shortDate:
		return variant.String(t.Format("1/2/2006")), nil
	case longTime:
		return variant.String(t.Format("3:04:05 PM")), nil
	case shortTime:
		return variant.String(t.Format("15:04")), nil
	}
	return variant.Empty(), invalidCall("FormatDateTime")
}
