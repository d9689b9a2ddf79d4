package host

import (
	"fmt"
	"io"
	"strings"

	"fortio.org/log"

	"vbscript/internal/variant"
)

type button struct {
	label  string
	answer int
}

var buttonSets = map[int][]button{
	vbOKOnly:           {{"OK", vbOK}},
	vbOKCancel:         {{"OK", vbOK}, {"Cancel", vbCancel}},
	vbAbortRetryIgnore: {{"Abort", vbAbort}, {"Retry", vbRetry}, {"Ignore", vbIgnore}},
	vbYesNoCancel:      {{"Yes", vbYes}, {"No", vbNo}, {"Cancel", vbCancel}},
	vbYesNo:            {{"Yes", vbYes}, {"No", vbNo}},
	vbRetryCancel:      {{"Retry", vbRetry}, {"Cancel", vbCancel}},
}

// readLine reads one answer line. ok is false at end of input.
func (h *Host) readLine() (string, bool) {
	line, err := h.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// msgBox implements MsgBox(prompt[, buttons[, title]]) on the console. The
// prompt is printed; when input is interactive the answer is read as a
// button label or its first letter, otherwise the default button is taken.
func (h *Host) msgBox(args []variant.Variant) (variant.Variant, error) {
	prompt, err := toString(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	flags, err := optInt(args, 1, vbOKOnly)
	if err != nil {
		return variant.Empty(), err
	}
	title := optString(args, 2, "VBScript")
	buttons, ok := buttonSets[flags&0x0F]
	if !ok {
		return variant.Empty(), invalidCall("MsgBox")
	}
	def := (flags & 0x300) >> 8
	if def >= len(buttons) {
		def = 0
	}

	if len(buttons) == 1 || !h.interactive {
		fmt.Fprintln(h.out, decorateTitle(title, prompt))
		return variant.Int(int64(buttons[def].answer)), nil
	}
	labels := make([]string, len(buttons))
	for i, b := range buttons {
		labels[i] = b.label
		if i == def {
			labels[i] = "[" + b.label + "]"
		}
	}
	for {
		fmt.Fprintf(h.out, "%s %s ", decorateTitle(title, prompt), strings.Join(labels, "/"))
		line, ok := h.readLine()
		if !ok {
			return variant.Int(int64(buttons[def].answer)), nil
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			return variant.Int(int64(buttons[def].answer)), nil
		}
		for _, b := range buttons {
			if strings.EqualFold(answer, b.label) || strings.EqualFold(answer, b.label[:1]) {
				return variant.Int(int64(b.answer)), nil
			}
		}
		log.LogVf("MsgBox: unrecognized answer %q", answer)
	}
}

// inputBox implements InputBox(prompt[, title[, default]]). Without
// interactive input, or at end of input, it returns the default.
func (h *Host) inputBox(args []variant.Variant) (variant.Variant, error) {
	prompt, err := toString(args[0])
	if err != nil {
		return variant.Empty(), err
	}
	title := optString(args, 1, "VBScript")
	def := optString(args, 2, "")
	fmt.Fprint(h.out, decorateTitle(title, prompt)+" ")
	if !h.interactive {
		fmt.Fprintln(h.out, def)
		return variant.String(def), nil
	}
	line, ok := h.readLine()
	if !ok {
		return variant.String(def), nil
	}
	if line == "" {
		line = def
	}
	return variant.String(line), nil
}

func decorateTitle(title, prompt string) string {
	if title == "" {
		return prompt
	}
	return "[" + title + "] " + prompt
}
