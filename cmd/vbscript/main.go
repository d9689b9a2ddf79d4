// cmd/vbscript/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"time"

	"fortio.org/log"
	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"vbscript/internal/config"
	"vbscript/internal/formatter"
	"vbscript/internal/host"
	"vbscript/internal/interp"
	"vbscript/internal/lsp"
	"vbscript/internal/parser"
	"vbscript/internal/repl"
	"vbscript/internal/scripttest"
	"vbscript/internal/server"
	"vbscript/internal/source"
)

const VERSION = "1.0.0"

// Build variables, set with -ldflags.
var (
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	a := &app{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
		color:       isatty.IsTerminal(os.Stdout.Fd()),
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := a.main(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

type app struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	interactive bool
	color       bool
}

// main dispatches a command line and returns the process exit code.
func (a *app) main(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage()
		return 2
	}
	switch args[0] {
	case "--help", "-h", "help":
		a.usage()
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(a.stdout, "vbscript %s (%s, built %s, %s/%s)\n", VERSION, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
		return 0
	}

	fl, rest, err := parseFlags(args[1:])
	if err != nil {
		fmt.Fprintf(a.stderr, "vbscript %s: %v\n", args[0], err)
		return 2
	}
	cfg, err := fl.config()
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}

	switch args[0] {
	case "run":
		if len(rest) == 0 {
			fmt.Fprintln(a.stderr, "usage: vbscript run [flags] <file.vbs> [args...]")
			return 2
		}
		return a.run(ctx, cfg, fl, rest[0], rest[1:])
	case "check":
		if len(rest) == 0 {
			fmt.Fprintln(a.stderr, "usage: vbscript check <file.vbs>...")
			return 2
		}
		return a.check(rest, fl.encoding)
	case "ast":
		if len(rest) != 1 {
			fmt.Fprintln(a.stderr, "usage: vbscript ast <file.vbs>")
			return 2
		}
		return a.ast(rest[0], fl.encoding)
	case "fmt":
		if len(rest) == 0 {
			fmt.Fprintln(a.stderr, "usage: vbscript fmt [-w] [-l] <file.vbs>...")
			return 2
		}
		return a.format(rest, fl)
	case "test":
		return a.test(ctx, cfg, fl, rest)
	case "repl":
		return a.repl(ctx, cfg)
	case "serve":
		return a.serve(ctx, cfg)
	case "lsp":
		return a.lsp(ctx, cfg)
	}
	fmt.Fprintf(a.stderr, "unknown command %q\n", args[0])
	a.usage()
	return 2
}

func (a *app) usage() {
	fmt.Fprint(a.stdout, `vbscript - a VBScript interpreter

Usage:
  vbscript run <file.vbs> [args...]   Run a script
  vbscript check <file.vbs>...        Check syntax without running
  vbscript ast <file.vbs>             Print the syntax tree
  vbscript fmt [-w] [-l] <file.vbs>...
                                      Print canonical source, or rewrite with -w
  vbscript test [dir|file...]         Run *_test.vbs files
  vbscript repl                       Start an interactive session
  vbscript serve [--addr a]           Serve the websocket run endpoint
  vbscript lsp                        Language server on stdin/stdout
  vbscript version                    Print version information

Flags:
  --config <path>      configuration file (default ./vbscript.yaml)
  --encoding <name>    read scripts in this encoding instead of detecting it
  --locale <tag>       locale for dates and number formats
  --timeout <d>        stop runs after this long
  --explicit           require Dim before use, as with Option Explicit
  --no-shell           refuse WScript.Shell.Run
  --addr <host:port>   serve address
  --workers <n>        scripts the server runs at once
  --verbose            log statement tracing
  --filter <text>      test: run only tests whose names contain text
  --format <f>         test: text, json or junit
  --failfast           test: stop at the first failure
`)
}

// flags are the options shared by all commands. They apply on top of the
// configuration file.
type flags struct {
	configPath string
	encoding   string
	locale     string
	timeout    time.Duration
	explicit   bool
	noShell    bool
	addr       string
	workers    int
	verbose    bool
	write      bool
	list       bool
	filter     string
	format     string
	failFast   bool
}

// parseFlags reads flags up to the first positional argument. Everything
// after it belongs to the command, so script arguments may look like
// flags.
func parseFlags(args []string) (*flags, []string, error) {
	fl := &flags{configPath: config.FileName}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return fl, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			return fl, args[i:], nil
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("flag %s needs a value", arg)
			}
			i++
			return args[i], nil
		}
		var err error
		switch name {
		case "config":
			fl.configPath, err = takeValue()
		case "encoding":
			fl.encoding, err = takeValue()
		case "locale":
			fl.locale, err = takeValue()
		case "addr":
			fl.addr, err = takeValue()
		case "timeout":
			var v string
			if v, err = takeValue(); err == nil {
				fl.timeout, err = time.ParseDuration(v)
			}
		case "workers":
			var v string
			if v, err = takeValue(); err == nil {
				fl.workers, err = strconv.Atoi(v)
			}
		case "filter":
			fl.filter, err = takeValue()
		case "format":
			fl.format, err = takeValue()
		case "failfast":
			fl.failFast = true
		case "explicit":
			fl.explicit = true
		case "no-shell":
			fl.noShell = true
		case "verbose", "v":
			fl.verbose = true
		case "w":
			fl.write = true
		case "l":
			fl.list = true
		default:
			err = fmt.Errorf("unknown flag %s", arg)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return fl, nil, nil
}

// config loads the configuration file and applies the flag overrides.
func (fl *flags) config() (*config.Config, error) {
	cfg, err := config.Load(fl.configPath)
	if err != nil {
		return nil, err
	}
	if fl.locale != "" {
		cfg.Locale = fl.locale
	}
	if fl.timeout > 0 {
		cfg.Timeout = fl.timeout
	}
	if fl.explicit {
		cfg.OptionExplicit = true
	}
	if fl.noShell {
		cfg.AllowShell = false
	}
	if fl.addr != "" {
		cfg.Serve.Addr = fl.addr
	}
	if fl.workers != 0 {
		cfg.Serve.Workers = fl.workers
	}
	if fl.verbose {
		cfg.LogLevel = "verbose"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Apply(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path, encoding string) (string, string, error) {
	if encoding != "" {
		text, err := source.LoadAs(path, encoding)
		return text, encoding, err
	}
	return source.Load(path)
}

func (a *app) run(ctx context.Context, cfg *config.Config, fl *flags, path string, args []string) int {
	text, enc, err := load(path, fl.encoding)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	log.LogVf("loaded %s as %s", path, enc)
	prog, err := parser.ParseFile(path, text)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	h := host.New(
		host.WithOutput(a.stdout),
		host.WithInput(a.stdin, a.interactive),
		host.WithScript(path, args),
		host.WithLocale(cfg.Tag()),
		host.WithConnections(cfg.ConnectionStrings()),
		host.WithShell(cfg.AllowShell),
		host.WithContext(ctx),
	)
	res := interp.New(prog, h.Registry(),
		interp.WithFile(path),
		interp.WithMaxCallDepth(cfg.MaxCallDepth),
		interp.WithExplicit(cfg.OptionExplicit),
	).Run(ctx)
	if err := h.Close(); err != nil {
		log.Warnf("closing %s: %v", path, err)
	}
	if !res.Completed() {
		fmt.Fprintln(a.stderr, res.Err)
		return 1
	}
	return res.ExitCode
}

// check parses every file concurrently and reports them in order.
func (a *app) check(paths []string, encoding string) int {
	results := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			text, _, err := load(path, encoding)
			if err == nil {
				_, err = parser.ParseFile(path, text)
			}
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range results {
		if err != nil {
			failed++
			fmt.Fprintln(a.stderr, err)
			continue
		}
		fmt.Fprintf(a.stdout, "%s: syntax is valid\n", paths[i])
	}
	if failed > 0 {
		log.Errf("%d of %d files failed", failed, len(paths))
		return 1
	}
	return 0
}

func (a *app) ast(path, encoding string) int {
	text, _, err := load(path, encoding)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	prog, err := parser.ParseFile(path, text)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	pretty.Fprintf(a.stdout, "%# v\n", prog.Body)
	return 0
}

// format prints canonical source, or with -w rewrites files in their own
// encoding. -l lists the files whose formatting differs.
func (a *app) format(paths []string, fl *flags) int {
	status := 0
	for _, path := range paths {
		text, enc, err := load(path, fl.encoding)
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			status = 1
			continue
		}
		prog, err := parser.ParseFile(path, text)
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			status = 1
			continue
		}
		out := formatter.Source(prog)
		changed := out != strings.ReplaceAll(text, "\r\n", "\n")
		if fl.list && changed {
			fmt.Fprintln(a.stdout, path)
		}
		switch {
		case fl.write && changed:
			if err := source.Save(path, out, enc); err != nil {
				fmt.Fprintln(a.stderr, err)
				status = 1
			}
		case !fl.write && !fl.list:
			fmt.Fprint(a.stdout, out)
		}
	}
	return status
}

// test runs script test files. Directories are searched for *_test.vbs;
// with no arguments the working directory is searched.
func (a *app) test(ctx context.Context, cfg *config.Config, fl *flags, targets []string) int {
	switch fl.format {
	case "", "text", "json", "junit":
	default:
		fmt.Fprintf(a.stderr, "unknown test format %q\n", fl.format)
		return 2
	}
	if len(targets) == 0 {
		targets = []string{"."}
	}
	var files []string
	for _, target := range targets {
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			found, err := scripttest.DiscoverTests(target)
			if err != nil {
				fmt.Fprintln(a.stderr, err)
				return 1
			}
			files = append(files, found...)
			continue
		}
		files = append(files, target)
	}
	if len(files) == 0 {
		fmt.Fprintf(a.stdout, "no test files found (looking for %s)\n", scripttest.Pattern)
		return 0
	}

	runner := scripttest.NewTestRunner(&scripttest.TestConfig{
		Verbose:      fl.verbose,
		Filter:       fl.filter,
		Timeout:      cfg.Timeout,
		FailFast:     fl.failFast,
		OutputFormat: fl.format,
		Color:        a.color && fl.format == "",
		HostOptions: []host.Option{
			host.WithLocale(cfg.Tag()),
			host.WithConnections(cfg.ConnectionStrings()),
			host.WithShell(cfg.AllowShell),
		},
		InterpOptions: []interp.Option{
			interp.WithMaxCallDepth(cfg.MaxCallDepth),
			interp.WithExplicit(cfg.OptionExplicit),
		},
	}, a.stdout)
	status := 0
	for _, file := range files {
		suite, err := scripttest.LoadSuite(file)
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			status = 1
			continue
		}
		runner.AddSuite(suite)
	}
	if stats := runner.Run(ctx); stats.FailedTests > 0 {
		status = 1
	}
	return status
}

func (a *app) repl(ctx context.Context, cfg *config.Config) int {
	h := host.New(
		host.WithOutput(a.stdout),
		host.WithInput(strings.NewReader(""), false),
		host.WithLocale(cfg.Tag()),
		host.WithConnections(cfg.ConnectionStrings()),
		host.WithShell(cfg.AllowShell),
		host.WithContext(ctx),
	)
	defer h.Close()
	r := repl.New(h.Registry(), a.stdout, a.stderr,
		interp.WithMaxCallDepth(cfg.MaxCallDepth),
		interp.WithExplicit(cfg.OptionExplicit),
	)
	var err error
	if a.interactive {
		err = r.Start(ctx, VERSION)
	} else {
		err = r.Serve(ctx, a.stdin, false)
	}
	if err != nil && err != context.Canceled {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	return 0
}

func (a *app) serve(ctx context.Context, cfg *config.Config) int {
	s := server.New(server.Options{
		Workers:      cfg.Serve.Workers,
		Timeout:      cfg.Timeout,
		MaxCallDepth: cfg.MaxCallDepth,
		Explicit:     cfg.OptionExplicit,
		AllowShell:   cfg.AllowShell,
		Locale:       cfg.Tag(),
		Connections:  cfg.ConnectionStrings(),
	})
	if err := s.ListenAndServe(ctx, cfg.Serve.Addr); err != nil {
		log.Errf("serve: %v", err)
		return 1
	}
	return 0
}

func (a *app) lsp(ctx context.Context, cfg *config.Config) int {
	h := host.New(host.WithLocale(cfg.Tag()), host.WithShell(false))
	defer h.Close()
	if err := lsp.NewServer(a.stdin, a.stdout, h.Registry()).Start(ctx); err != nil && err != context.Canceled {
		log.Errf("lsp: %v", err)
		return 1
	}
	return 0
}
