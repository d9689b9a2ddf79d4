package host

import (
	"vbscript/internal/interp"
	"vbscript/internal/variant"
)

// MsgBox buttons, icons and answers.
const (
	vbOKOnly           = 0
	vbOKCancel         = 1
	vbAbortRetryIgnore = 2
	vbYesNoCancel      = 3
	vbYesNo            = 4
	vbRetryCancel      = 5

	vbOK     = 1
	vbCancel = 2
	vbAbort  = 3
	vbRetry  = 4
	vbIgnore = 5
	vbYes    = 6
	vbNo     = 7
)

// TextStream modes.
const (
	forReading   = 1
	forWriting   = 2
	forAppending = 8
)

var intConstants = map[string]int64{
	"vbOKOnly":           vbOKOnly,
	"vbOKCancel":         vbOKCancel,
	"vbAbortRetryIgnore": vbAbortRetryIgnore,
	"vbYesNoCancel":      vbYesNoCancel,
	"vbYesNo":            vbYesNo,
	"vbRetryCancel":      vbRetryCancel,
	"vbCritical":         16,
	"vbQuestion":         32,
	"vbExclamation":      48,
	"vbInformation":      64,
	"vbDefaultButton1":   0,
	"vbDefaultButton2":   256,
	"vbDefaultButton3":   512,
	"vbOK":               vbOK,
	"vbCancel":           vbCancel,
	"vbAbort":            vbAbort,
	"vbRetry":            vbRetry,
	"vbIgnore":           vbIgnore,
	"vbYes":              vbYes,
	"vbNo":               vbNo,

	"vbBinaryCompare": binaryCompare,
	"vbTextCompare":   textCompare,

	"ForReading":         forReading,
	"ForWriting":         forWriting,
	"ForAppending":       forAppending,
	"TristateUseDefault": tristateUseDefault,
	"TristateTrue":       tristateTrue,
	"TristateFalse":      tristateFalse,

	"vbUseDefault": tristateUseDefault,

	"vbGeneralDate": generalDate,
	"vbLongDate":    longDate,
	"vbShortDate":   shortDate,
	"vbLongTime":    longTime,
	"vbShortTime":   shortTime,

	"vbUseSystemDayOfWeek": useSystemDay,
	"vbSunday":             1,
	"vbMonday":             2,
	"vbTuesday":            3,
	"vbWednesday":          4,
	"vbThursday":           5,
	"vbFriday":             6,
	"vbSaturday":           7,

	"vbEmpty":    variant.VbEmpty,
	"vbNull":     variant.VbNull,
	"vbInteger":  variant.VbInteger,
	"vbLong":     variant.VbLong,
	"vbSingle":   4,
	"vbDouble":   variant.VbDouble,
	"vbCurrency": 6,
	"vbDate":     variant.VbDate,
	"vbString":   variant.VbString,
	"vbObject":   variant.VbObject,
	"vbError":    10,
	"vbBoolean":  variant.VbBoolean,
	"vbVariant":  variant.VbVariant,
	"vbByte":     17,
	"vbArray":    variant.VbArray,

	"vbObjectError": -2147221504,
}

var stringConstants = map[string]string{
	"vbCr":          "\r",
	"vbLf":          "\n",
	"vbCrLf":        "\r\n",
	"vbNewLine":     "\r\n",
	"vbTab":         "\t",
	"vbNullChar":    "\x00",
	"vbNullString":  "",
	"vbFormFeed":    "\f",
	"vbVerticalTab": "\v",
	"vbBack":        "\b",
}

func registerConstants(reg *interp.Registry) {
	for name, n := range intConstants {
		reg.RegisterConst(name, variant.Int(n))
	}
	for name, s := range stringConstants {
		reg.RegisterConst(name, variant.String(s))
	}
	reg.RegisterConst("vbTrue", variant.Integer(-1))
	reg.RegisterConst("vbFalse", variant.Integer(0))
}
