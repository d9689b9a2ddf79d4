// Package repl is the interactive session started by `vbscript repl`.
// Variables and procedures persist from one entry to the next; block
// statements continue over several lines until they parse.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fortio.org/log"
	"github.com/peterh/liner"

	"vbscript/internal/errors"
	"vbscript/internal/interp"
	"vbscript/internal/parser"
	"vbscript/internal/variant"
)

const (
	promptMain  = "> "
	promptCont  = ". "
	historyFile = ".vbscript_history"
)

// lineReader is satisfied by *liner.State and by plainReader.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// plainReader reads lines without editing, for piped input.
type plainReader struct {
	in   *bufio.Reader
	out  io.Writer
	echo bool
}

func (p *plainReader) Prompt(prompt string) (string, error) {
	if p.echo {
		fmt.Fprint(p.out, prompt)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type REPL struct {
	session *interp.Session
	reg     *interp.Registry
	out     io.Writer
	errOut  io.Writer
}

// New starts a session over reg. Output from the REPL itself goes to out;
// faults go to errOut.
func New(reg *interp.Registry, out, errOut io.Writer, opts ...interp.Option) *REPL {
	return &REPL{
		session: interp.NewSession(reg, opts...),
		reg:     reg,
		out:     out,
		errOut:  errOut,
	}
}

// Start runs an interactive session on the terminal with line editing and
// history.
func (r *REPL) Start(ctx context.Context, version string) error {
	fmt.Fprintf(r.out, "VBScript %s | :help for commands, :quit to leave\n", version)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(r.complete)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			f.Close()
		}
	}()

	return r.loop(ctx, ln, ln.AppendHistory)
}

// Serve runs a session over plain input, echoing prompts when asked.
func (r *REPL) Serve(ctx context.Context, in io.Reader, prompts bool) error {
	return r.loop(ctx, &plainReader{in: bufio.NewReader(in), out: r.out, echo: prompts}, nil)
}

func (r *REPL) loop(ctx context.Context, lr lineReader, remember func(string)) error {
	for {
		code, err := r.read(lr)
		if err == io.EOF || err == liner.ErrPromptAborted {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if remember != nil {
			remember(strings.ReplaceAll(code, "\n", " "))
		}
		if strings.HasPrefix(trimmed, ":") {
			if r.command(trimmed) {
				return nil
			}
			continue
		}
		if r.eval(ctx, code) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// read collects lines until they form a complete program. A parse error
// at the end of the input means a block is still open.
func (r *REPL) read(lr lineReader) (string, error) {
	var b strings.Builder
	prompt := promptMain
	for {
		line, err := lr.Prompt(prompt)
		if err != nil {
			if b.Len() > 0 && err == io.EOF {
				return b.String(), nil
			}
			return "", err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || strings.TrimSpace(src) == "" {
			return src, nil
		}
		if _, err := parser.ParseSource(shorthand(src)); isIncomplete(err) {
			prompt = promptCont
			continue
		}
		return src, nil
	}
}

func isIncomplete(err error) bool {
	se, ok := errors.As(err)
	return ok && se.Kind == errors.ParseError && se.Found == "end of input"
}

// shorthand expands the immediate-window form `? expr` into an Echo.
func shorthand(src string) string {
	t := strings.TrimSpace(src)
	if strings.HasPrefix(t, "?") {
		return "WScript.Echo " + strings.TrimSpace(t[1:])
	}
	return src
}

// eval runs one entry. It reports true when the script asked to quit.
func (r *REPL) eval(ctx context.Context, code string) bool {
	prog, err := parser.ParseSource(shorthand(code))
	if err != nil {
		fmt.Fprintln(r.errOut, err)
		return false
	}
	res := r.session.Exec(ctx, prog)
	if !res.Completed() {
		fmt.Fprintln(r.errOut, res.Err)
		log.LogVf("repl: %s", res.Err.Message)
		return res.Err.Kind == errors.Interrupted && ctx.Err() != nil
	}
	return res.ExitCode != 0 || quitRequested(prog)
}

// quitRequested reports a top-level WScript.Quit, which ends the session
// even with exit code 0.
func quitRequested(prog *parser.Program) bool {
	for _, stmt := range prog.Body.Stmts {
		es, ok := stmt.(*parser.ExprStmt)
		if !ok {
			continue
		}
		if m, ok := es.Expr.(*parser.Member); ok && strings.EqualFold(m.Name, "quit") {
			if id, ok := m.Object.(*parser.Ident); ok && strings.EqualFold(id.Name, "wscript") {
				return true
			}
		}
	}
	return false
}

// command handles a :command line. It reports true for :quit.
func (r *REPL) command(line string) bool {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":quit", ":exit", ":q":
		return true
	case ":vars":
		names := r.session.Names()
		sort.Strings(names)
		for _, name := range names {
			v, _ := r.session.Lookup(name)
			fmt.Fprintf(r.out, "%s = %s\n", name, describe(v))
		}
	case ":help":
		fmt.Fprint(r.out, `Enter statements as in a script. Blocks continue until closed.
  ? expr    print the value of expr
  :vars     list variables
  :quit     leave
`)
	default:
		fmt.Fprintf(r.errOut, "unknown command %s, try :help\n", fields[0])
	}
	return false
}

func describe(v variant.Variant) string {
	switch {
	case v.IsArray():
		return fmt.Sprintf("%s (%d elements)", variant.TypeName(v), v.Array().Len())
	case v.IsObject():
		return variant.TypeName(v)
	case v.Kind() == variant.KindString:
		return fmt.Sprintf("%q", v.Str())
	}
	return fmt.Sprintf("%s (%s)", variant.ToString(v), variant.TypeName(v))
}

// complete offers registry names and session variables matching the word
// being typed.
func (r *REPL) complete(line string) []string {
	start := strings.LastIndexAny(line, " (,=&+-*/") + 1
	prefix := strings.ToLower(line[start:])
	if prefix == "" {
		return nil
	}
	var out []string
	for _, name := range append(r.reg.Names(), r.session.Names()...) {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			out = append(out, line[:start]+name)
		}
	}
	sort.Strings(out)
	return out
}
