package interp

import (
	stderrors "errors"

	"fortio.org/log"

	"vbscript/internal/errors"
	"vbscript/internal/parser"
	"vbscript/internal/variant"
)

// execBlock runs statements in order. A fault raised by a statement is
// absorbed here when the current frame has On Error Resume Next active:
// Err records it and execution continues with the next statement.
// Otherwise the fault unwinds to the caller.
func (i *Interpreter) execBlock(blk *parser.Block) error {
	if blk == nil {
		return nil
	}
	for _, stmt := range blk.Stmts {
		if err := i.checkContext(); err != nil {
			return err.At(stmt.Pos())
		}
		i.frame.line = stmt.Pos()
		err := i.exec(stmt)
		if err == nil {
			continue
		}
		se, ok := errors.As(err)
		if !ok {
			return err
		}
		se.At(stmt.Pos())
		if i.frame.resume && se.Suppressible() {
			log.LogVf("line %d: resuming after error %d: %s", stmt.Pos(), se.Number, se.Message)
			i.errState.record(se)
			continue
		}
		return se
	}
	return nil
}

func (i *Interpreter) exec(stmt parser.Stmt) error {
	log.LogVf("line %d: %T", stmt.Pos(), stmt)
	switch s := stmt.(type) {
	case *parser.DimStmt:
		return i.execDim(s)
	case *parser.ReDimStmt:
		return i.execReDim(s)
	case *parser.ConstStmt:
		return i.execConst(s)
	case *parser.AssignStmt:
		return i.execAssign(s)
	case *parser.IfStmt:
		return i.execIf(s)
	case *parser.ForStmt:
		return i.execFor(s)
	case *parser.ForEachStmt:
		return i.execForEach(s)
	case *parser.WhileStmt:
		return i.execWhile(s)
	case *parser.DoLoopStmt:
		return i.execDo(s)
	case *parser.SelectStmt:
		return i.execSelect(s)
	case *parser.ExprStmt:
		return i.execExpr(s)
	case *parser.ExitStmt:
		return &exitSignal{kind: s.Kind}
	case *parser.OnErrorStmt:
		i.frame.resume = s.ResumeNext
		i.errState.Clear()
		return nil
	case *parser.OptionExplicitStmt:
		i.explicit = true
		return nil
	case *parser.ProcDecl:
		return nil
	case *parser.Block:
		return i.execBlock(s)
	}
	return errors.Newf(errors.InvalidCall, "unsupported statement %T", stmt)
}

// consumeExit reports whether err is the Exit statement for kind, which the
// enclosing construct swallows.
func consumeExit(err error, kind parser.ExitKind) (bool, error) {
	var exit *exitSignal
	if stderrors.As(err, &exit) && exit.kind == kind {
		return true, nil
	}
	return false, err
}

func (i *Interpreter) bounds(exprs []parser.Expr) ([]int, error) {
	upper := make([]int, len(exprs))
	for n, e := range exprs {
		v, err := i.eval(e)
		if err != nil {
			return nil, err
		}
		ub, err := variant.ToInt64(v)
		if err != nil {
			return nil, err
		}
		upper[n] = int(ub)
	}
	return upper, nil
}

func (i *Interpreter) execDim(s *parser.DimStmt) error {
	scope := i.env.Current()
	for _, d := range s.Decls {
		existing, exists := scope.Lookup(d.Name)
		if exists && existing.Const {
			return errors.Newf(errors.InvalidCall, "Name redefined: '%s'", d.Name)
		}
		switch {
		case d.Dynamic:
			scope.Bind(d.Name, &Slot{Value: variant.ArrayOf(variant.NewDynamic()), Name: d.Name})
		case d.Bounds != nil:
			upper, err := i.bounds(d.Bounds)
			if err != nil {
				return err
			}
			arr, err := variant.NewArray(upper...)
			if err != nil {
				return err
			}
			scope.Bind(d.Name, &Slot{Value: variant.ArrayOf(arr), Name: d.Name})
		default:
			scope.Declare(d.Name, variant.Empty())
		}
	}
	return nil
}

func (i *Interpreter) execReDim(s *parser.ReDimStmt) error {
	for _, d := range s.Decls {
		upper, err := i.bounds(d.Bounds)
		if err != nil {
			return err
		}
		slot, ok := i.env.Lookup(d.Name)
		if !ok {
			if i.explicit {
				return i.undefined(d.Name)
			}
			slot = i.env.Current().Declare(d.Name, variant.Empty())
		}
		if slot.Const {
			return errors.Newf(errors.InvalidCall, "Illegal assignment: '%s'", d.Name)
		}
		if s.Preserve && slot.Value.IsArray() {
			if err := slot.Value.Array().Redim(true, upper...); err != nil {
				return err
			}
			continue
		}
		arr, err := variant.NewArray(upper...)
		if err != nil {
			return err
		}
		slot.Value = variant.ArrayOf(arr)
	}
	return nil
}

func (i *Interpreter) execConst(s *parser.ConstStmt) error {
	scope := i.env.Current()
	for n, name := range s.Names {
		v, err := i.eval(s.Values[n])
		if err != nil {
			return err
		}
		if slot, ok := scope.Lookup(name); ok && slot.Const {
			return errors.Newf(errors.InvalidCall, "Name redefined: '%s'", name)
		}
		scope.Bind(name, &Slot{Value: v.Copy(), Const: true, Name: name})
	}
	return nil
}

func (i *Interpreter) execAssign(s *parser.AssignStmt) error {
	v, err := i.eval(s.Value)
	if err != nil {
		return err
	}
	if s.Set && !v.IsObject() {
		return errors.Newf(errors.ObjectRequired, "Object required: '%s'", v.String())
	}
	return i.assign(s.Target, v)
}

// assign stores v into a variable, an array element or an object property.
func (i *Interpreter) assign(target parser.Expr, v variant.Variant) error {
	switch t := target.(type) {
	case *parser.Ident:
		slot, err := i.slotForWrite(t.Name)
		if err != nil {
			return err
		}
		slot.Value = v.Copy()
		return nil
	case *parser.Index:
		return i.assignElement(t.Name, t.Indices, v)
	case *parser.Call:
		if len(t.Args) == 0 {
			slot, err := i.slotForWrite(t.Name)
			if err != nil {
				return err
			}
			slot.Value = v.Copy()
			return nil
		}
		return i.assignElement(t.Name, t.Args, v)
	case *parser.Member:
		obj, err := i.evalObject(t.Object)
		if err != nil {
			return err
		}
		args, err := i.evalArgs(t.Args)
		if err != nil {
			return err
		}
		_, err = obj.Invoke(t.Name, append(args, v), variant.InvokeSet)
		return i.hostError(t.Name, err)
	case *parser.Apply:
		// Only an object's default member can be assigned; a returned array
		// is a copy.
		obj, err := i.evalObject(t.Target)
		if err != nil {
			return err
		}
		args, err := i.evalArgs(t.Args)
		if err != nil {
			return err
		}
		_, err = obj.Invoke("", append(args, v), variant.InvokeSet)
		return i.hostError(describe(t.Target), err)
	}
	return errors.New(errors.InvalidCall, "Illegal assignment")
}

// slotForWrite finds the slot for name, declaring it implicitly unless
// Option Explicit is in force.
func (i *Interpreter) slotForWrite(name string) (*Slot, error) {
	slot, ok := i.env.Lookup(name)
	if !ok {
		if i.explicit {
			return nil, i.undefined(name)
		}
		slot = i.env.Current().Declare(name, variant.Empty())
	}
	if slot.Const {
		return nil, errors.Newf(errors.InvalidCall, "Illegal assignment: '%s'", name)
	}
	return slot, nil
}

func (i *Interpreter) assignElement(name string, indexExprs []parser.Expr, v variant.Variant) error {
	slot, ok := i.env.Lookup(name)
	if !ok {
		if obj, found := i.reg.Object(name); found {
			args, err := i.evalArgs(indexExprs)
			if err != nil {
				return err
			}
			_, err = obj.Invoke("", append(args, v), variant.InvokeSet)
			return i.hostError(name, err)
		}
		if i.explicit {
			return i.undefined(name)
		}
		return errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", name)
	}
	switch {
	case slot.Value.IsArray():
		idx, err := i.indices(indexExprs)
		if err != nil {
			return err
		}
		return slot.Value.Array().Set(v, idx...)
	case slot.Value.IsObject() && !slot.Value.IsNothing():
		args, err := i.evalArgs(indexExprs)
		if err != nil {
			return err
		}
		_, err = slot.Value.Object().Invoke("", append(args, v), variant.InvokeSet)
		return i.hostError(name, err)
	}
	return errors.Newf(errors.TypeMismatch, "Type mismatch: '%s'", name)
}

// condition evaluates a test for If, While, Do and Until. Null is false.
func (i *Interpreter) condition(e parser.Expr) (bool, error) {
	v, err := i.evalScalar(e)
	if err != nil {
		return false, err
	}
	if v.IsObject() {
		return false, errors.New(errors.TypeMismatch, "")
	}
	return variant.Truthy(v), nil
}

func (i *Interpreter) execIf(s *parser.IfStmt) error {
	for _, br := range s.Branches {
		ok, err := i.condition(br.Cond)
		if err != nil {
			return err
		}
		if ok {
			return i.execBlock(br.Body)
		}
	}
	return i.execBlock(s.Else)
}

func (i *Interpreter) execFor(s *parser.ForStmt) error {
	start, err := i.loopNumber(s.Start)
	if err != nil {
		return err
	}
	end, err := i.loopNumber(s.End)
	if err != nil {
		return err
	}
	step := variant.Integer(1)
	if s.Step != nil {
		if step, err = i.loopNumber(s.Step); err != nil {
			return err
		}
	}
	slot, err := i.slotForWrite(s.Var)
	if err != nil {
		return err
	}

	up := step.Float() >= 0
	limit := end.Float()
	cur := start
	for {
		if (up && cur.Float() > limit) || (!up && cur.Float() < limit) {
			slot.Value = cur
			return nil
		}
		slot.Value = cur
		if err := i.checkContext(); err != nil {
			return err
		}
		if done, err := consumeExit(i.execBlock(s.Body), parser.ExitFor); done || err != nil {
			return err
		}
		next, err := variant.ToNumber(slot.Value)
		if err != nil {
			return err
		}
		if cur, err = variant.Add(next, step); err != nil {
			return err
		}
	}
}

func (i *Interpreter) loopNumber(e parser.Expr) (variant.Variant, error) {
	v, err := i.evalScalar(e)
	if err != nil {
		return v, err
	}
	if v.IsNull() {
		return v, errors.New(errors.TypeMismatch, "Invalid use of Null")
	}
	return variant.ToNumber(v)
}

func (i *Interpreter) execForEach(s *parser.ForEachStmt) error {
	coll, err := i.eval(s.Collection)
	if err != nil {
		return err
	}
	var items []variant.Variant
	switch {
	case coll.IsArray():
		items = coll.Array().Values()
	case coll.IsObject() && !coll.IsNothing():
		en, ok := coll.Object().(variant.Enumerable)
		if !ok {
			return errors.New(errors.TypeMismatch, "Object not a collection")
		}
		if items, err = en.Enumerate(); err != nil {
			return i.hostError(s.Var, err)
		}
	default:
		return errors.New(errors.TypeMismatch, "Object not a collection")
	}

	slot, err := i.slotForWrite(s.Var)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := i.checkContext(); err != nil {
			return err
		}
		slot.Value = item.Copy()
		if done, err := consumeExit(i.execBlock(s.Body), parser.ExitFor); done || err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) execWhile(s *parser.WhileStmt) error {
	for {
		if err := i.checkContext(); err != nil {
			return err
		}
		ok, err := i.condition(s.Cond)
		if err != nil || !ok {
			return err
		}
		if err := i.execBlock(s.Body); err != nil {
			return err
		}
	}
}

func (i *Interpreter) execDo(s *parser.DoLoopStmt) error {
	test := func() (bool, error) {
		if s.Cond == nil {
			return true, nil
		}
		ok, err := i.condition(s.Cond)
		if s.Until {
			ok = !ok
		}
		return ok, err
	}
	for {
		if err := i.checkContext(); err != nil {
			return err
		}
		if s.PreTest {
			if ok, err := test(); err != nil || !ok {
				return err
			}
		}
		if done, err := consumeExit(i.execBlock(s.Body), parser.ExitDo); done || err != nil {
			return err
		}
		if !s.PreTest {
			if ok, err := test(); err != nil || !ok {
				return err
			}
		}
	}
}

func (i *Interpreter) execSelect(s *parser.SelectStmt) error {
	subject, err := i.evalScalar(s.Subject)
	if err != nil {
		return err
	}
	for _, c := range s.Cases {
		for _, e := range c.Values {
			v, err := i.evalScalar(e)
			if err != nil {
				return err
			}
			eq, err := variant.Equal(subject, v)
			if err != nil {
				return err
			}
			if eq {
				return i.execBlock(c.Body)
			}
		}
	}
	return i.execBlock(s.Else)
}

// execExpr runs a call statement; any result is discarded.
func (i *Interpreter) execExpr(s *parser.ExprStmt) error {
	switch e := s.Expr.(type) {
	case *parser.Call:
		_, err := i.callName(e.Name, e.Args, e.Line)
		return err
	case *parser.Member:
		obj, err := i.evalObject(e.Object)
		if err != nil {
			return err
		}
		args, err := i.evalArgs(e.Args)
		if err != nil {
			return err
		}
		_, err = obj.Invoke(e.Name, args, variant.InvokeCall)
		return i.hostError(e.Name, err)
	}
	_, err := i.eval(s.Expr)
	return err
}
