package interp

import (
	"sort"
	"strings"

	"vbscript/internal/variant"
)

// Slot is the storage cell behind a variable. A ByRef parameter shares the
// caller's *Slot.
type Slot struct {
	Value variant.Variant
	Const bool
	// Name keeps the declared spelling for messages.
	Name string
}

// Scope maps canonical (lower-case) names to slots.
type Scope struct {
	vars map[string]*Slot
}

func NewScope() *Scope {
	return &Scope{vars: make(map[string]*Slot)}
}

func canonical(name string) string { return strings.ToLower(name) }

// Lookup finds a slot declared directly in this scope.
func (s *Scope) Lookup(name string) (*Slot, bool) {
	slot, ok := s.vars[canonical(name)]
	return slot, ok
}

// Declare returns the existing slot for name, or a new one holding v.
func (s *Scope) Declare(name string, v variant.Variant) *Slot {
	key := canonical(name)
	if slot, ok := s.vars[key]; ok {
		return slot
	}
	slot := &Slot{Value: v, Name: name}
	s.vars[key] = slot
	return slot
}

// Bind makes name refer to slot, replacing any previous binding.
func (s *Scope) Bind(name string, slot *Slot) {
	s.vars[canonical(name)] = slot
}

// Names lists the declared spellings in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for _, slot := range s.vars {
		names = append(names, slot.Name)
	}
	sort.Strings(names)
	return names
}

// Env is the two-level variable environment: the global scope plus the
// local scope of the procedure currently executing (nil at top level).
type Env struct {
	Global *Scope
	Local  *Scope
}

func NewEnv() *Env {
	return &Env{Global: NewScope()}
}

// Current is the scope new declarations go into.
func (e *Env) Current() *Scope {
	if e.Local != nil {
		return e.Local
	}
	return e.Global
}

// Lookup resolves name in the local scope, then the global scope.
func (e *Env) Lookup(name string) (*Slot, bool) {
	if e.Local != nil {
		if slot, ok := e.Local.Lookup(name); ok {
			return slot, true
		}
	}
	return e.Global.Lookup(name)
}

// Names lists every visible variable name.
func (e *Env) Names() []string {
	names := e.Global.Names()
	if e.Local != nil {
		names = append(names, e.Local.Names()...)
	}
	return names
}
