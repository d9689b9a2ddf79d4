package interp

import (
	"fmt"
	"strings"

	"fortio.org/log"

	"vbscript/internal/errors"
	"vbscript/internal/parser"
	"vbscript/internal/variant"
)

// argument is one actual argument bound for a procedure call. slot is the
// caller's storage for a ByRef variable, or a temporary holding the value.
type argument struct {
	slot    *Slot
	omitted bool
	// writeback copies the final value out to an array element passed
	// ByRef.
	writeback func() error
}

// valueOf resolves a bare name used as a value.
func (i *Interpreter) valueOf(name string) (variant.Variant, error) {
	if slot, ok := i.env.Lookup(name); ok {
		return slot.Value, nil
	}
	key := canonical(name)
	if key == "err" {
		return variant.ObjectOf(i.errObj), nil
	}
	if proc, ok := i.procs[key]; ok {
		return i.callProc(proc, nil, i.frame.line)
	}
	if v, ok := i.reg.Const(name); ok {
		return v, nil
	}
	if fn, ok := i.reg.Func(name); ok {
		v, err := fn(nil)
		return v, i.hostError(name, err)
	}
	if obj, ok := i.reg.Object(name); ok {
		return variant.ObjectOf(obj), nil
	}
	if i.explicit {
		return variant.Empty(), i.undefined(name)
	}
	return variant.Empty(), nil
}

// callName resolves name(args): a variable holding an array or an object,
// then a procedure of the program, then the registry.
func (i *Interpreter) callName(name string, argExprs []parser.Expr, line int) (variant.Variant, error) {
	key := canonical(name)
	if slot, ok := i.env.Lookup(name); ok && !i.isReturnSlot(key, slot) {
		v := slot.Value
		switch {
		case len(argExprs) == 0:
			return v, nil
		case v.IsArray():
			idx, err := i.indices(argExprs)
			if err != nil {
				return variant.Empty(), err
			}
			return v.Array().Get(idx...)
		case v.IsObject() && !v.IsNothing():
			args, err := i.evalArgs(argExprs)
			if err != nil {
				return variant.Empty(), err
			}
			out, err := v.Object().Invoke("", args, variant.InvokeGet)
			return out, i.hostError(name, err)
		}
		return variant.Empty(), errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", name)
	}

	if key == "err" {
		if len(argExprs) == 0 {
			return variant.ObjectOf(i.errObj), nil
		}
		return variant.Empty(), errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", name)
	}
	if proc, ok := i.procs[key]; ok {
		args, err := i.bindArgs(proc, argExprs)
		if err != nil {
			return variant.Empty(), err
		}
		return i.callProc(proc, args, line)
	}
	if v, ok := i.reg.Const(name); ok {
		if len(argExprs) > 0 {
			return variant.Empty(), errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", name)
		}
		return v, nil
	}
	if fn, ok := i.reg.Func(name); ok {
		args, err := i.evalArgs(argExprs)
		if err != nil {
			return variant.Empty(), err
		}
		v, err := fn(args)
		return v, i.hostError(name, err)
	}
	if obj, ok := i.reg.Object(name); ok {
		if len(argExprs) == 0 {
			return variant.ObjectOf(obj), nil
		}
		args, err := i.evalArgs(argExprs)
		if err != nil {
			return variant.Empty(), err
		}
		v, err := obj.Invoke("", args, variant.InvokeGet)
		return v, i.hostError(name, err)
	}
	return variant.Empty(), i.undefined(name)
}

// isReturnSlot reports whether slot is the return value of the function
// currently executing, in which case name(args) is a recursive call.
func (i *Interpreter) isReturnSlot(key string, slot *Slot) bool {
	f := i.frame
	if f.proc == nil || !f.proc.IsFunction || canonical(f.proc.Name) != key {
		return false
	}
	own, ok := f.scope.Lookup(key)
	return ok && own == slot
}

// bindArgs evaluates the actual arguments of a call to proc. A variable or
// array element passed to a ByRef parameter is bound by reference; a
// parenthesized or computed argument is a temporary.
func (i *Interpreter) bindArgs(proc *parser.ProcDecl, exprs []parser.Expr) ([]argument, error) {
	args := make([]argument, len(exprs))
	for n, e := range exprs {
		if e == nil {
			args[n].omitted = true
			continue
		}
		if n < len(proc.Params) && !proc.Params[n].ByVal {
			a, ok, err := i.reference(e)
			if err != nil {
				return nil, err
			}
			if ok {
				args[n] = a
				continue
			}
		}
		v, err := i.eval(e)
		if err != nil {
			return nil, err
		}
		args[n] = argument{slot: &Slot{Value: v.Copy()}}
	}
	return args, nil
}

// reference binds e by reference when it names storage.
func (i *Interpreter) reference(e parser.Expr) (argument, bool, error) {
	switch t := e.(type) {
	case *parser.Ident:
		if slot, ok := i.env.Lookup(t.Name); ok {
			if slot.Const {
				return argument{}, false, nil
			}
			return argument{slot: slot}, true, nil
		}
		key := canonical(t.Name)
		if _, ok := i.procs[key]; ok || key == "err" || i.registered(t.Name) {
			return argument{}, false, nil
		}
		if i.explicit {
			return argument{}, false, i.undefined(t.Name)
		}
		return argument{slot: i.env.Current().Declare(t.Name, variant.Empty())}, true, nil
	case *parser.Index:
		return i.elementRef(t.Name, t.Indices)
	case *parser.Call:
		if len(t.Args) > 0 {
			return i.elementRef(t.Name, t.Args)
		}
	}
	return argument{}, false, nil
}

func (i *Interpreter) registered(name string) bool {
	if _, ok := i.reg.Func(name); ok {
		return true
	}
	if _, ok := i.reg.Object(name); ok {
		return true
	}
	_, ok := i.reg.Const(name)
	return ok
}

// elementRef binds an array element with copy-in/copy-out.
func (i *Interpreter) elementRef(name string, exprs []parser.Expr) (argument, bool, error) {
	slot, ok := i.env.Lookup(name)
	if !ok || !slot.Value.IsArray() || i.isReturnSlot(canonical(name), slot) {
		return argument{}, false, nil
	}
	idx, err := i.indices(exprs)
	if err != nil {
		return argument{}, false, err
	}
	v, err := slot.Value.Array().Get(idx...)
	if err != nil {
		return argument{}, false, err
	}
	tmp := &Slot{Value: v.Copy()}
	return argument{
		slot: tmp,
		writeback: func() error {
			if !slot.Value.IsArray() {
				return nil
			}
			return slot.Value.Array().Set(tmp.Value, idx...)
		},
	}, true, nil
}

// callProc runs a user procedure in a new frame. Parameters are bound in a
// fresh local scope; a function's return value lives in a local named after
// it.
func (i *Interpreter) callProc(proc *parser.ProcDecl, args []argument, line int) (variant.Variant, error) {
	if len(args) > len(proc.Params) {
		return variant.Empty(), errors.Newf(errors.ArgumentCount, "Wrong number of arguments or invalid property assignment: '%s'", proc.Name)
	}
	if i.depth >= i.maxDepth {
		return variant.Empty(), errors.New(errors.OutOfStack, "")
	}

	scope := NewScope()
	for n, p := range proc.Params {
		a := argument{omitted: true}
		if n < len(args) {
			a = args[n]
		}
		if a.omitted {
			if !p.Optional {
				return variant.Empty(), errors.Newf(errors.ArgumentCount, "Wrong number of arguments or invalid property assignment: '%s'", proc.Name)
			}
			v := variant.Empty()
			if p.Default != nil {
				var err error
				if v, err = i.eval(p.Default); err != nil {
					return variant.Empty(), err
				}
			}
			scope.Bind(p.Name, &Slot{Value: v, Name: p.Name})
			continue
		}
		if p.ByVal {
			scope.Bind(p.Name, &Slot{Value: a.slot.Value.Copy(), Name: p.Name})
		} else {
			scope.Bind(p.Name, a.slot)
		}
	}
	if proc.IsFunction {
		scope.Declare(proc.Name, variant.Empty())
	}

	savedLocal, savedFrame := i.env.Local, i.frame
	i.env.Local = scope
	i.frame = &frame{proc: proc, scope: scope, line: proc.Line}
	i.depth++
	log.Debugf("call %s with %d arguments (depth %d)", proc.Name, len(args), i.depth)
	err := i.execBlock(proc.Body)
	i.depth--
	i.env.Local, i.frame = savedLocal, savedFrame

	exit := parser.ExitSub
	if proc.IsFunction {
		exit = parser.ExitFunction
	}
	if _, err = consumeExit(err, exit); err != nil {
		if se, ok := errors.As(err); ok {
			se.AddStackFrame(proc.Name, line)
		}
		return variant.Empty(), err
	}
	for _, a := range args {
		if a.writeback != nil {
			if err := a.writeback(); err != nil {
				return variant.Empty(), err
			}
		}
	}
	if !proc.IsFunction {
		return variant.Empty(), nil
	}
	ret, _ := scope.Lookup(proc.Name)
	return ret.Value, nil
}

// undefined builds the UndefinedName fault, with a suggestion when a
// similar name is known.
func (i *Interpreter) undefined(name string) *errors.ScriptError {
	msg := fmt.Sprintf("Variable is undefined: '%s'", name)
	candidates := i.env.Names()
	for _, p := range i.procs {
		candidates = append(candidates, p.Name)
	}
	candidates = append(candidates, i.reg.Names()...)
	if s := closestName(name, candidates); s != "" && !strings.EqualFold(s, name) {
		msg += fmt.Sprintf(" (did you mean '%s'?)", s)
	}
	return errors.New(errors.UndefinedName, msg)
}
