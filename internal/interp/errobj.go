package interp

import (
	"strconv"
	"strings"

	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

// ErrState is the per-run error record surfaced to scripts as Err.
type ErrState struct {
	Number      int
	Description string
	Source      string
}

// Clear resets the record, as Err.Clear does.
func (s *ErrState) Clear() {
	*s = ErrState{}
}

func (s *ErrState) record(se *errors.ScriptError) {
	s.Number = se.Number
	s.Description = se.Message
	s.Source = se.Origin
}

// errObject is the built-in Err object of one run.
type errObject struct {
	state *ErrState
}

func (e *errObject) TypeName() string { return "ErrObject" }

func (e *errObject) String() string { return strconv.Itoa(e.state.Number) }

func (e *errObject) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	switch strings.ToLower(member) {
	case "", "number":
		if mode == variant.InvokeSet {
			n, err := variant.ToInt64(last(args))
			if err != nil {
				return variant.Empty(), err
			}
			e.state.Number = int(n)
			return variant.Empty(), nil
		}
		return variant.Long(int32(e.state.Number)), nil
	case "description":
		if mode == variant.InvokeSet {
			e.state.Description = variant.ToString(last(args))
			return variant.Empty(), nil
		}
		return variant.String(e.state.Description), nil
	case "source":
		if mode == variant.InvokeSet {
			e.state.Source = variant.ToString(last(args))
			return variant.Empty(), nil
		}
		return variant.String(e.state.Source), nil
	case "helpfile":
		return variant.String(""), nil
	case "helpcontext":
		return variant.Integer(0), nil
	case "clear":
		e.state.Clear()
		return variant.Empty(), nil
	case "raise":
		return variant.Empty(), raise(args)
	}
	return variant.Empty(), errors.Newf(errors.InvalidCall, "Object doesn't support this property or method: 'Err.%s'", member)
}

// raise builds the fault for Err.Raise number[, source[, description]].
func raise(args []variant.Variant) error {
	if len(args) == 0 || len(args) > 5 {
		return errors.New(errors.ArgumentCount, "")
	}
	n, err := variant.ToInt64(args[0])
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New(errors.InvalidCall, "Invalid procedure call or argument: 'Err.Raise'")
	}
	source := ""
	if len(args) > 1 && !args[1].IsEmpty() {
		source = variant.ToString(args[1])
	}
	desc := errors.DescriptionFor(int(n))
	if len(args) > 2 && !args[2].IsEmpty() {
		desc = variant.ToString(args[2])
	}
	if source == "" {
		source = errors.RuntimeOrigin
	}
	return errors.NewRaised(int(n), source, desc)
}

func last(args []variant.Variant) variant.Variant {
	if len(args) == 0 {
		return variant.Empty()
	}
	return args[len(args)-1]
}
