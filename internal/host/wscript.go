package host

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fortio.org/log"

	"vbscript/internal/errors"
	"vbscript/internal/interp"
	"vbscript/internal/variant"
)

// Version reported by WScript.Version.
const Version = "5.8"

type wscript struct {
	h *Host
}

func (w *wscript) TypeName() string { return "IHost_Class" }

func (w *wscript) String() string { return "Windows Script Host" }

func (w *wscript) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	h := w.h
	name := strings.ToLower(member)
	switch name {
	case "echo", "sleep", "quit", "createobject", "getobject":
	default:
		if err := readOnly("WScript", member, mode); err != nil {
			return variant.Empty(), err
		}
	}
	switch name {
	case "echo":
		parts := make([]string, len(args))
		for i, a := range args {
			if a.IsNull() {
				parts[i] = a.String()
				continue
			}
			s, err := toString(a)
			if err != nil {
				return variant.Empty(), err
			}
			parts[i] = s
		}
		fmt.Fprintln(h.out, strings.Join(parts, " "))
		return variant.Empty(), nil
	case "sleep":
		if err := arity("WScript.Sleep", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		ms, err := toInt(args[0])
		if err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), h.sleep(time.Duration(ms) * time.Millisecond)
	case "quit":
		code, err := optInt(args, 0, 0)
		if err != nil {
			return variant.Empty(), err
		}
		log.LogVf("WScript.Quit %d", code)
		return variant.Empty(), &interp.QuitError{Code: code}
	case "createobject":
		if err := arity("WScript.CreateObject", args, 1, 2); err != nil {
			return variant.Empty(), err
		}
		return h.CreateObject(variant.ToString(args[0]))
	case "getobject":
		return h.getObject(args)
	case "arguments":
		return stringCollection("Arguments", h.args).index(args)
	case "scriptname":
		return variant.String(filepath.Base(h.script)), nil
	case "scriptfullname":
		return variant.String(h.resolve(h.script)), nil
	case "name", "":
		return variant.String("Windows Script Host"), nil
	case "fullname":
		exe, _ := os.Executable()
		return variant.String(exe), nil
	case "path":
		exe, _ := os.Executable()
		return variant.String(filepath.Dir(exe)), nil
	case "version":
		return variant.String(Version), nil
	case "interactive":
		return variant.Bool(h.interactive), nil
	case "stdout", "stderr":
		out := h.out
		if name == "stderr" {
			out = os.Stderr
		}
		return variant.ObjectOf(&consoleStream{h: h, w: out}), nil
	case "stdin":
		return variant.ObjectOf(&consoleStream{h: h}), nil
	}
	return variant.Empty(), unsupported("WScript", member)
}

// sleep waits for d, returning an Interrupted fault if the run is cancelled
// first.
func (h *Host) sleep(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-h.ctx.Done():
		return errors.Newf(errors.Interrupted, "Script interrupted: %v", h.ctx.Err())
	}
}

// consoleStream is WScript.StdIn, StdOut or StdErr. Writes go to w; reads
// come from the host input.
type consoleStream struct {
	h    *Host
	w    io.Writer
	line int
}

func (s *consoleStream) TypeName() string { return "TextStream" }

func (s *consoleStream) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("TextStream", member, mode); err != nil {
		return variant.Empty(), err
	}
	switch strings.ToLower(member) {
	case "write", "writeline", "writeblanklines":
		if s.w == nil {
			return variant.Empty(), errors.New(errors.BadFileMode, "")
		}
		text := ""
		switch strings.ToLower(member) {
		case "write":
			if err := arity("TextStream.Write", args, 1, 1); err != nil {
				return variant.Empty(), err
			}
			text = variant.ToString(args[0])
		case "writeline":
			text = optString(args, 0, "") + "\n"
		default:
			n := 1
			if len(args) > 0 {
				var err error
				if n, err = repeatCount("WriteBlankLines", args[0]); err != nil {
					return variant.Empty(), err
				}
			}
			text = strings.Repeat("\n", n)
		}
		_, err := io.WriteString(s.w, text)
		return variant.Empty(), err
	case "readline":
		if s.w != nil {
			return variant.Empty(), errors.New(errors.BadFileMode, "")
		}
		line, ok := s.h.readLine()
		if !ok {
			return variant.Empty(), errors.New(errors.InputPastEnd, "")
		}
		s.line++
		return variant.String(line), nil
	case "readall":
		if s.w != nil {
			return variant.Empty(), errors.New(errors.BadFileMode, "")
		}
		data, err := io.ReadAll(s.h.in)
		if err != nil {
			return variant.Empty(), err
		}
		return variant.String(string(data)), nil
	case "atendofstream":
		if s.w != nil {
			return variant.Empty(), errors.New(errors.BadFileMode, "")
		}
		_, err := s.h.in.Peek(1)
		return variant.Bool(err != nil), nil
	case "line":
		return variant.Int(int64(s.line + 1)), nil
	case "close":
		return variant.Empty(), nil
	}
	return variant.Empty(), unsupported("TextStream", member)
}
