package host

import (
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"fortio.org/log"
	pkgerrors "github.com/pkg/errors"

	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

// shell is WScript.Shell. Its current directory and environment changes
// are private to the run; the process-wide state is never touched.
type shell struct {
	h *Host
}

func (s *shell) TypeName() string { return "IWshShell3" }

var envRef = regexp.MustCompile(`%([^%]+)%`)

func (h *Host) getenv(name string) (string, bool) {
	if v, ok := h.env[strings.ToUpper(name)]; ok {
		return v, true
	}
	return os.LookupEnv(name)
}

// expand replaces each %NAME% with the variable's value. Unknown names are
// left as written.
func (h *Host) expand(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := h.getenv(ref[1 : len(ref)-1]); ok {
			return v
		}
		return ref
	})
}

func (h *Host) environ() []string {
	env := os.Environ()
	for k, v := range h.env {
		env = append(env, k+"="+v)
	}
	return env
}

func (s *shell) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	h := s.h
	name := strings.ToLower(member)
	if name != "currentdirectory" {
		if err := readOnly("WshShell", member, mode); err != nil {
			return variant.Empty(), err
		}
	}
	switch name {
	case "run":
		if err := arity("WshShell.Run", args, 1, 3); err != nil {
			return variant.Empty(), err
		}
		wait, err := optBool(args, 2, false)
		if err != nil {
			return variant.Empty(), err
		}
		return h.run(variant.ToString(args[0]), wait)
	case "expandenvironmentstrings":
		if err := arity("WshShell.ExpandEnvironmentStrings", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		return variant.String(h.expand(variant.ToString(args[0]))), nil
	case "currentdirectory":
		if mode == variant.InvokeSet {
			dir := h.resolve(variant.ToString(value(args)))
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				return variant.Empty(), errors.Newf(errors.PathNotFound, "Path not found: '%s'", dir)
			}
			h.cwd = dir
			return variant.Empty(), nil
		}
		return variant.String(h.cwd), nil
	case "popup":
		if err := arity("WshShell.Popup", args, 1, 4); err != nil {
			return variant.Empty(), err
		}
		box := []variant.Variant{args[0], variant.Empty(), variant.Empty()}
		if len(args) > 3 {
			box[1] = args[3]
		}
		if len(args) > 2 {
			box[2] = args[2]
		}
		return h.msgBox(box)
	case "environment":
		if err := arity("WshShell.Environment", args, 0, 1); err != nil {
			return variant.Empty(), err
		}
		return variant.ObjectOf(&environment{h: h}), nil
	case "regread", "regwrite", "regdelete":
		return variant.Empty(), errors.Newf(errors.NotSupported, "The system registry is not available: '%s'", member)
	}
	return variant.Empty(), unsupported("WshShell", member)
}

// run starts command through the platform shell. With wait it returns the
// exit code, otherwise 0 once the process has started.
func (h *Host) run(command string, wait bool) (variant.Variant, error) {
	if !h.allowShell {
		return variant.Empty(), errors.Newf(errors.PermissionDenied, "Permission denied: '%s'", command)
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(h.ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(h.ctx, "sh", "-c", command)
	}
	cmd.Dir = h.cwd
	cmd.Env = h.environ()
	cmd.Stdout = h.out
	cmd.Stderr = os.Stderr
	log.LogVf("WshShell.Run %q wait=%v", command, wait)

	if !wait {
		if err := cmd.Start(); err != nil {
			return variant.Empty(), errors.FromHost("WshShell.Run", pkgerrors.Wrap(err, command))
		}
		go func() {
			if err := cmd.Wait(); err != nil {
				log.LogVf("WshShell.Run %q: %v", command, err)
			}
		}()
		return variant.Integer(0), nil
	}
	err := cmd.Run()
	var exit *exec.ExitError
	switch {
	case err == nil:
		return variant.Integer(0), nil
	case pkgerrors.As(err, &exit):
		return variant.Int(int64(exit.ExitCode())), nil
	}
	return variant.Empty(), errors.FromHost("WshShell.Run", pkgerrors.Wrap(err, command))
}

// environment is WshShell.Environment: variables read through to the
// process, writes stay with the run.
type environment struct {
	h *Host
}

func (e *environment) TypeName() string { return "IWshEnvironment" }

func (e *environment) Enumerate() ([]variant.Variant, error) {
	env := e.h.environ()
	sort.Strings(env)
	out := make([]variant.Variant, len(env))
	for i, kv := range env {
		out[i] = variant.String(kv)
	}
	return out, nil
}

func (e *environment) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	switch strings.ToLower(member) {
	case "", "item":
		if mode == variant.InvokeSet {
			if err := arity("Environment.Item", args, 2, 2); err != nil {
				return variant.Empty(), err
			}
			if e.h.env == nil {
				e.h.env = make(map[string]string)
			}
			e.h.env[strings.ToUpper(variant.ToString(args[0]))] = variant.ToString(args[1])
			return variant.Empty(), nil
		}
		if err := arity("Environment.Item", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		v, _ := e.h.getenv(variant.ToString(args[0]))
		return variant.String(v), nil
	case "count", "length":
		return variant.Int(int64(len(e.h.environ()))), nil
	case "remove":
		if err := arity("Environment.Remove", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		if e.h.env == nil {
			e.h.env = make(map[string]string)
		}
		e.h.env[strings.ToUpper(variant.ToString(args[0]))] = ""
		return variant.Empty(), nil
	}
	return variant.Empty(), unsupported("Environment", member)
}
