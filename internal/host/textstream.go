package host

import (
	"os"
	"strings"

	"vbscript/internal/errors"
	"vbscript/internal/source"
	"vbscript/internal/variant"
)

// textEncoding maps a Tristate format argument to an encoding name.
// TristateTrue selects UTF-16; the default and TristateFalse are ANSI.
func textEncoding(format int) (string, error) {
	switch format {
	case tristateFalse, tristateUseDefault:
		return source.ANSI, nil
	case tristateTrue:
		return source.UTF16LE, nil
	}
	return "", invalidCall("format")
}

// openText opens a TextStream. Read streams decode the whole file up
// front; write streams encode each write as it happens.
func (h *Host) openText(path string, iomode int, create, failIfExists bool, format int) (variant.Variant, error) {
	enc, err := textEncoding(format)
	if err != nil {
		return variant.Empty(), err
	}
	abs := h.resolve(path)
	_, statErr := os.Stat(abs)
	exists := statErr == nil
	if exists && failIfExists {
		return variant.Empty(), errors.Newf(errors.FileExists, "File already exists: '%s'", path)
	}
	if !exists && !create {
		return variant.Empty(), errors.Newf(errors.FileNotFound, "File not found: '%s'", path)
	}

	ts := &textStream{mode: iomode, enc: enc, path: abs}
	switch iomode {
	case forReading:
		if !exists {
			return variant.ObjectOf(ts), nil
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return variant.Empty(), fsError(err, path)
		}
		name := enc
		if detected := source.Detect(data); enc == source.ANSI && detected != source.ANSI {
			name = detected
		}
		text, err := source.Decode(data, name)
		if err != nil {
			return variant.Empty(), errors.FromHost("TextStream", err)
		}
		ts.text = []rune(text)
	case forWriting, forAppending:
		flags := os.O_WRONLY | os.O_CREATE
		if iomode == forWriting {
			flags |= os.O_TRUNC
		} else {
			flags |= os.O_APPEND
		}
		f, err := os.OpenFile(abs, flags, 0o644)
		if err != nil {
			return variant.Empty(), fsError(err, path)
		}
		ts.file = f
		h.streams = append(h.streams, ts)
		if enc == source.UTF16LE && (iomode == forWriting || !exists) {
			if _, err := f.Write([]byte{0xFF, 0xFE}); err != nil {
				f.Close()
				return variant.Empty(), fsError(err, path)
			}
		}
	default:
		return variant.Empty(), invalidCall("iomode")
	}
	return variant.ObjectOf(ts), nil
}

// textStream is a file opened by OpenTextFile, CreateTextFile or
// OpenAsTextStream.
type textStream struct {
	mode   int
	enc    string
	path   string
	file   *os.File
	text   []rune
	pos    int
	line   int
	column int
	closed bool
}

func (t *textStream) TypeName() string { return "TextStream" }

func (t *textStream) reading() error {
	if t.closed || t.mode != forReading {
		return errors.New(errors.BadFileMode, "")
	}
	return nil
}

func (t *textStream) writing() error {
	if t.closed || t.mode == forReading {
		return errors.New(errors.BadFileMode, "")
	}
	return nil
}

// advance consumes n runes, tracking line and column.
func (t *textStream) advance(n int) string {
	end := len(t.text)
	if n < end-t.pos {
		end = t.pos + n
	}
	s := t.text[t.pos:end]
	for _, r := range s {
		if r == '\n' {
			t.line++
			t.column = 0
		} else {
			t.column++
		}
	}
	t.pos = end
	return string(s)
}

func (t *textStream) write(s string) error {
	if err := t.writing(); err != nil {
		return err
	}
	data, err := source.Encode(s, t.enc)
	if err != nil {
		return errors.FromHost("TextStream", err)
	}
	if _, err := t.file.Write(data); err != nil {
		return fsError(err, t.path)
	}
	for _, r := range s {
		if r == '\n' {
			t.line++
			t.column = 0
		} else {
			t.column++
		}
	}
	return nil
}

func (t *textStream) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("TextStream", member, mode); err != nil {
		return variant.Empty(), err
	}
	switch strings.ToLower(member) {
	case "read":
		if err := arity("TextStream.Read", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		if err := t.reading(); err != nil {
			return variant.Empty(), err
		}
		n, err := toInt(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		if n < 0 {
			return variant.Empty(), invalidCall("Read")
		}
		if t.pos >= len(t.text) {
			return variant.Empty(), errors.New(errors.InputPastEnd, "")
		}
		return variant.String(t.advance(n)), nil
	case "readline":
		if err := t.reading(); err != nil {
			return variant.Empty(), err
		}
		if t.pos >= len(t.text) {
			return variant.Empty(), errors.New(errors.InputPastEnd, "")
		}
		rest := t.text[t.pos:]
		n := len(rest)
		for i, r := range rest {
			if r == '\n' {
				n = i + 1
				break
			}
		}
		line := t.advance(n)
		return variant.String(strings.TrimRight(line, "\r\n")), nil
	case "readall":
		if err := t.reading(); err != nil {
			return variant.Empty(), err
		}
		return variant.String(t.advance(len(t.text))), nil
	case "skip":
		if err := arity("TextStream.Skip", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		if err := t.reading(); err != nil {
			return variant.Empty(), err
		}
		n, err := toInt(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		if n < 0 {
			return variant.Empty(), invalidCall("Skip")
		}
		t.advance(n)
		return variant.Empty(), nil
	case "skipline":
		_, err := t.Invoke("ReadLine", nil, variant.InvokeCall)
		return variant.Empty(), err
	case "write":
		if err := arity("TextStream.Write", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), t.write(variant.ToString(args[0]))
	case "writeline":
		if err := arity("TextStream.WriteLine", args, 0, 1); err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), t.write(optString(args, 0, "") + "\r\n")
	case "writeblanklines":
		if err := arity("TextStream.WriteBlankLines", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		n, err := repeatCount("TextStream.WriteBlankLines", args[0])
		if err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), t.write(strings.Repeat("\r\n", n))
	case "atendofstream":
		if err := t.reading(); err != nil {
			return variant.Empty(), err
		}
		return variant.Bool(t.pos >= len(t.text)), nil
	case "atendofline":
		if err := t.reading(); err != nil {
			return variant.Empty(), err
		}
		return variant.Bool(t.pos >= len(t.text) || t.text[t.pos] == '\r' || t.text[t.pos] == '\n'), nil
	case "line":
		return variant.Int(int64(t.line + 1)), nil
	case "column":
		return variant.Int(int64(t.column + 1)), nil
	case "encoding":
		if t.enc == source.ANSI {
			return variant.String(source.ANSIName()), nil
		}
		return variant.String(t.enc), nil
	case "close":
		return variant.Empty(), t.close()
	}
	return variant.Empty(), unsupported("TextStream", member)
}

func (t *textStream) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.file != nil {
		return fsCheck(t.file.Close(), t.path)
	}
	return nil
}
