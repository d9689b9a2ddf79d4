// Package interp executes parsed programs: scoping, the call model and the
// On Error state machine.
package interp

import (
	"context"
	stderrors "errors"
	"fmt"

	"fortio.org/log"

	"vbscript/internal/errors"
	"vbscript/internal/parser"
	"vbscript/internal/variant"
)

// DefaultMaxCallDepth bounds procedure recursion.
const DefaultMaxCallDepth = 1000

// QuitError is returned by a host capability to end the run early, as
// WScript.Quit does. It is never absorbed by On Error Resume Next.
type QuitError struct {
	Code int
}

func (q *QuitError) Error() string { return fmt.Sprintf("script quit with code %d", q.Code) }

// exitSignal carries Exit For/Do/Function/Sub up to the construct it
// leaves. It travels the error channel but is not a fault.
type exitSignal struct {
	kind parser.ExitKind
}

func (e *exitSignal) Error() string { return "Exit " + string(e.kind) }

// Result is the outcome of a run.
type Result struct {
	// Err is the fault that halted the run, nil when it completed.
	Err *errors.ScriptError
	// Value is the return value of Call.
	Value variant.Variant
	// Outputs holds the final values of Call's arguments, so ByRef
	// parameters are visible to the host.
	Outputs []variant.Variant
	// ErrState is the Err object as the run left it.
	ErrState ErrState
	// ExitCode is set by WScript.Quit.
	ExitCode int
}

// Completed reports whether the run finished without an unhandled fault.
func (r *Result) Completed() bool { return r.Err == nil }

// frame is one activation: the top level or a procedure call.
type frame struct {
	proc   *parser.ProcDecl
	scope  *Scope
	resume bool
	line   int
}

// Interpreter runs one Program. It is not safe for concurrent use; give
// each goroutine its own Interpreter over the shared Program.
type Interpreter struct {
	prog     *parser.Program
	reg      *Registry
	file     string
	maxDepth int
	explicit bool

	env      *Env
	procs    map[string]*parser.ProcDecl
	errState ErrState
	errObj   *errObject
	frame    *frame
	depth    int
	ctx      context.Context
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithMaxCallDepth sets the recursion limit.
func WithMaxCallDepth(n int) Option {
	return func(i *Interpreter) {
		if n > 0 {
			i.maxDepth = n
		}
	}
}

// WithExplicit forces Option Explicit on.
func WithExplicit(on bool) Option {
	return func(i *Interpreter) { i.explicit = on }
}

// WithFile names the script in error locations.
func WithFile(name string) Option {
	return func(i *Interpreter) { i.file = name }
}

func New(prog *parser.Program, reg *Registry, opts ...Option) *Interpreter {
	if reg == nil {
		reg = NewRegistry()
	}
	i := &Interpreter{
		prog:     prog,
		reg:      reg,
		maxDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.reset()
	return i
}

// reset prepares a fresh environment and error state.
func (i *Interpreter) reset() {
	i.env = NewEnv()
	i.procs = make(map[string]*parser.ProcDecl)
	i.errState = ErrState{}
	i.errObj = &errObject{state: &i.errState}
	i.frame = &frame{}
	i.depth = 0
	i.ctx = context.Background()
	if i.prog != nil {
		i.define(i.prog)
	}
}

// define registers the procedures of prog. Declarations are visible from
// the start of the run, wherever they appear in the text.
func (i *Interpreter) define(prog *parser.Program) {
	for _, p := range prog.Procs {
		i.procs[canonical(p.Name)] = p
	}
	if prog.Explicit {
		i.explicit = true
	}
}

// Run executes the top level of the program in a fresh environment.
func (i *Interpreter) Run(ctx context.Context) *Result {
	i.reset()
	return i.finish(i.runTop(ctx, i.prog))
}

// Call runs the top level and then invokes the named procedure with args.
// Every argument is bound to its own slot; Result.Outputs reports the
// slots' final values so ByRef parameters are observable.
func (i *Interpreter) Call(ctx context.Context, name string, args ...variant.Variant) *Result {
	i.reset()
	if err := i.runTop(ctx, i.prog); err != nil {
		return i.finish(err)
	}
	proc, ok := i.procs[canonical(name)]
	if !ok {
		return i.finish(i.undefined(name))
	}
	bound := make([]argument, len(args))
	for n, v := range args {
		bound[n] = argument{slot: &Slot{Value: v.Copy()}}
	}
	var value variant.Variant
	err := i.protect(func() (err error) {
		value, err = i.callProc(proc, bound, 0)
		return err
	})
	res := i.finish(err)
	res.Value = value
	res.Outputs = make([]variant.Variant, len(bound))
	for n, a := range bound {
		res.Outputs[n] = a.slot.Value
	}
	return res
}

func (i *Interpreter) runTop(ctx context.Context, prog *parser.Program) error {
	if ctx == nil {
		ctx = context.Background()
	}
	i.ctx = ctx
	log.LogVf("run %s: %d statements, %d procedures", i.name(), len(prog.Body.Stmts), len(prog.Procs))
	err := i.protect(func() error { return i.execBlock(prog.Body) })
	var exit *exitSignal
	if stderrors.As(err, &exit) {
		return nil
	}
	return err
}

// protect runs fn and turns a panic raised by the evaluator or a host
// function into a fault, leaving the environment at top level.
func (i *Interpreter) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errf("run %s: recovered from panic: %v", i.name(), r)
			i.env.Local = nil
			err = errors.Newf(errors.HostInvocationError, "Internal error: %v", r)
		}
	}()
	return fn()
}

// finish converts the outcome of a run into a Result.
func (i *Interpreter) finish(err error) *Result {
	res := &Result{}
	var quit *QuitError
	switch {
	case err == nil:
	case stderrors.As(err, &quit):
		res.ExitCode = quit.Code
	default:
		se, ok := errors.As(err)
		if !ok {
			se = errors.FromHost(i.name(), err)
		}
		if i.file != "" && se.Location.File == "" {
			se.WithFile(i.file)
		}
		if se.Source == "" && i.prog != nil {
			se.WithSourceLines(i.prog.Lines)
		}
		i.errState.record(se)
		res.Err = se
		log.Debugf("run %s halted: %s", i.name(), se.Message)
	}
	res.ErrState = i.errState
	return res
}

func (i *Interpreter) name() string {
	if i.file != "" {
		return i.file
	}
	return "script"
}

// checkContext turns cancellation into a non-suppressible fault.
func (i *Interpreter) checkContext() *errors.ScriptError {
	if err := i.ctx.Err(); err != nil {
		return errors.Newf(errors.Interrupted, "Script interrupted: %v", err)
	}
	return nil
}

// Session keeps one environment alive across several programs, as the
// REPL does with each line it reads.
type Session struct {
	interp *Interpreter
}

func NewSession(reg *Registry, opts ...Option) *Session {
	return &Session{interp: New(nil, reg, opts...)}
}

// Exec runs prog in the session's environment. Procedures it declares stay
// defined for later programs.
func (s *Session) Exec(ctx context.Context, prog *parser.Program) *Result {
	i := s.interp
	i.prog = prog
	i.define(prog)
	i.frame = &frame{resume: i.frame.resume}
	i.depth = 0
	return i.finish(i.runTop(ctx, prog))
}

// Names lists the variables defined so far.
func (s *Session) Names() []string {
	return s.interp.env.Global.Names()
}

// Lookup returns the value of a global variable.
func (s *Session) Lookup(name string) (variant.Variant, bool) {
	slot, ok := s.interp.env.Global.Lookup(name)
	if !ok {
		return variant.Empty(), false
	}
	return slot.Value, true
}
