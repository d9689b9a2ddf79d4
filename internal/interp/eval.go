package interp

import (
	stderrors "errors"

	"vbscript/internal/errors"
	"vbscript/internal/parser"
	"vbscript/internal/variant"
)

var compareOps = map[parser.Op]variant.CompareOp{
	parser.OpEq: variant.OpEq,
	parser.OpNe: variant.OpNe,
	parser.OpLt: variant.OpLt,
	parser.OpGt: variant.OpGt,
	parser.OpLe: variant.OpLe,
	parser.OpGe: variant.OpGe,
}

var logicOps = map[parser.Op]variant.LogicOp{
	parser.OpAnd: variant.OpAnd,
	parser.OpOr:  variant.OpOr,
	parser.OpXor: variant.OpXor,
	parser.OpEqv: variant.OpEqv,
	parser.OpImp: variant.OpImp,
}

var arithmetic = map[parser.Op]func(a, b variant.Variant) (variant.Variant, error){
	parser.OpAdd:    variant.Add,
	parser.OpSub:    variant.Sub,
	parser.OpMul:    variant.Mul,
	parser.OpDiv:    variant.Div,
	parser.OpIntDiv: variant.IntDiv,
	parser.OpMod:    variant.Mod,
	parser.OpPow:    variant.Pow,
}

func (i *Interpreter) eval(e parser.Expr) (variant.Variant, error) {
	switch n := e.(type) {
	case nil:
		return variant.Empty(), nil
	case *parser.Literal:
		return n.Value, nil
	case *parser.Paren:
		return i.eval(n.Inner)
	case *parser.Ident:
		return i.valueOf(n.Name)
	case *parser.Unary:
		return i.evalUnary(n)
	case *parser.Binary:
		return i.evalBinary(n)
	case *parser.Call:
		return i.callName(n.Name, n.Args, n.Line)
	case *parser.Index:
		slot, ok := i.env.Lookup(n.Name)
		if ok && slot.Value.IsArray() {
			idx, err := i.indices(n.Indices)
			if err != nil {
				return variant.Empty(), err
			}
			return slot.Value.Array().Get(idx...)
		}
		return i.callName(n.Name, n.Indices, n.Line)
	case *parser.Member:
		obj, err := i.evalObject(n.Object)
		if err != nil {
			return variant.Empty(), err
		}
		args, err := i.evalArgs(n.Args)
		if err != nil {
			return variant.Empty(), err
		}
		v, err := obj.Invoke(n.Name, args, variant.InvokeGet)
		return v, i.hostError(n.Name, err)
	case *parser.Apply:
		return i.evalApply(n)
	}
	return variant.Empty(), errors.Newf(errors.InvalidCall, "unsupported expression %T", e)
}

// evalApply indexes an array returned by a call, or reads the default
// member of a returned object.
func (i *Interpreter) evalApply(n *parser.Apply) (variant.Variant, error) {
	target, err := i.eval(n.Target)
	if err != nil {
		return variant.Empty(), err
	}
	switch {
	case target.IsArray():
		idx, err := i.indices(n.Args)
		if err != nil {
			return variant.Empty(), err
		}
		return target.Array().Get(idx...)
	case target.IsObject() && !target.IsNothing():
		args, err := i.evalArgs(n.Args)
		if err != nil {
			return variant.Empty(), err
		}
		v, err := target.Object().Invoke("", args, variant.InvokeGet)
		return v, i.hostError(describe(n.Target), err)
	}
	return variant.Empty(), errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", describe(n.Target))
}

// evalScalar evaluates e and resolves an object to its default value.
func (i *Interpreter) evalScalar(e parser.Expr) (variant.Variant, error) {
	v, err := i.eval(e)
	if err != nil {
		return v, err
	}
	return i.deref(v)
}

// deref reads the default member of an object value; other values pass
// through unchanged.
func (i *Interpreter) deref(v variant.Variant) (variant.Variant, error) {
	if !v.IsObject() || v.IsNothing() {
		return v, nil
	}
	out, err := v.Object().Invoke("", nil, variant.InvokeGet)
	if err != nil {
		return variant.Empty(), errors.New(errors.TypeMismatch, "Object doesn't support this property or method")
	}
	return out, nil
}

func (i *Interpreter) evalUnary(n *parser.Unary) (variant.Variant, error) {
	v, err := i.evalScalar(n.Operand)
	if err != nil {
		return v, err
	}
	switch n.Op {
	case parser.OpNot:
		return variant.Not(v)
	case parser.OpNeg:
		return variant.Neg(v)
	}
	if v.IsNull() {
		return v, nil
	}
	return variant.ToNumber(v)
}

func (i *Interpreter) evalBinary(n *parser.Binary) (variant.Variant, error) {
	if n.Op == parser.OpIs {
		return i.evalIs(n)
	}
	l, err := i.eval(n.Left)
	if err != nil {
		return l, err
	}
	r, err := i.eval(n.Right)
	if err != nil {
		return r, err
	}

	if n.Op == parser.OpConcat {
		// & never fails: an object without a default value concatenates
		// as its display text
		if dl, err := i.deref(l); err == nil {
			l = dl
		}
		if dr, err := i.deref(r); err == nil {
			r = dr
		}
		return variant.Concat(l, r), nil
	}

	if l, err = i.deref(l); err != nil {
		return l, err
	}
	if r, err = i.deref(r); err != nil {
		return r, err
	}
	if fn, ok := arithmetic[n.Op]; ok {
		return fn(l, r)
	}
	if op, ok := compareOps[n.Op]; ok {
		return variant.Compare(op, l, r)
	}
	if op, ok := logicOps[n.Op]; ok {
		return variant.Logic(op, l, r)
	}
	return variant.Empty(), errors.Newf(errors.InvalidCall, "unknown operator %s", n.Op)
}

// evalIs compares object identity. Both operands must be objects.
func (i *Interpreter) evalIs(n *parser.Binary) (variant.Variant, error) {
	l, err := i.eval(n.Left)
	if err != nil {
		return l, err
	}
	r, err := i.eval(n.Right)
	if err != nil {
		return r, err
	}
	if !l.IsObject() || !r.IsObject() {
		return variant.Empty(), errors.New(errors.ObjectRequired, "")
	}
	return variant.Bool(variant.Identical(l, r)), nil
}

// evalObject evaluates e, which must yield a non-Nothing object.
func (i *Interpreter) evalObject(e parser.Expr) (variant.Object, error) {
	v, err := i.eval(e)
	if err != nil {
		return nil, err
	}
	if !v.IsObject() || v.IsNothing() {
		return nil, errors.Newf(errors.ObjectRequired, "Object required: '%s'", describe(e))
	}
	return v.Object(), nil
}

// evalArgs evaluates arguments for a host call. Omitted arguments are
// Empty.
func (i *Interpreter) evalArgs(exprs []parser.Expr) ([]variant.Variant, error) {
	args := make([]variant.Variant, len(exprs))
	for n, e := range exprs {
		v, err := i.eval(e)
		if err != nil {
			return nil, err
		}
		args[n] = v
	}
	return args, nil
}

func (i *Interpreter) indices(exprs []parser.Expr) ([]int, error) {
	idx := make([]int, len(exprs))
	for n, e := range exprs {
		if e == nil {
			return nil, errors.New(errors.SubscriptOutOfRange, "")
		}
		v, err := i.evalScalar(e)
		if err != nil {
			return nil, err
		}
		k, err := variant.ToInt64(v)
		if err != nil {
			return nil, err
		}
		idx[n] = int(k)
	}
	return idx, nil
}

// hostError converts an error returned by a host object or intrinsic.
func (i *Interpreter) hostError(name string, err error) error {
	if err == nil {
		return nil
	}
	var quit *QuitError
	if stderrors.As(err, &quit) {
		return quit
	}
	return errors.FromHost(name, err)
}

// describe names an expression in an error message.
func describe(e parser.Expr) string {
	switch n := e.(type) {
	case *parser.Ident:
		return n.Name
	case *parser.Call:
		return n.Name
	case *parser.Index:
		return n.Name
	case *parser.Member:
		return describe(n.Object) + "." + n.Name
	case *parser.Paren:
		return describe(n.Inner)
	case *parser.Apply:
		return describe(n.Target)
	case *parser.Literal:
		return n.Value.String()
	}
	return "expression"
}
