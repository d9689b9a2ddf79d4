package interp

import (
	"sort"
	"strings"
	"sync"

	"vbscript/internal/variant"
)

// Func is a host-implemented intrinsic. Arguments arrive evaluated and are
// always passed by value.
type Func func(args []variant.Variant) (variant.Variant, error)

// Registry is the table of intrinsics, host objects and constants a host
// exposes to scripts. Names are case-insensitive. A Registry may be shared
// by concurrent runs once it is populated.
type Registry struct {
	mu      sync.RWMutex
	funcs   map[string]Func
	objects map[string]variant.Object
	consts  map[string]variant.Variant
	names   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		funcs:   make(map[string]Func),
		objects: make(map[string]variant.Object),
		consts:  make(map[string]variant.Variant),
		names:   make(map[string]string),
	}
}

func (r *Registry) RegisterFunc(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[canonical(name)] = fn
	r.names[canonical(name)] = name
}

func (r *Registry) RegisterObject(name string, obj variant.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[canonical(name)] = obj
	r.names[canonical(name)] = name
}

func (r *Registry) RegisterConst(name string, v variant.Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consts[canonical(name)] = v
	r.names[canonical(name)] = name
}

func (r *Registry) Func(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[canonical(name)]
	return fn, ok
}

func (r *Registry) Object(name string) (variant.Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[canonical(name)]
	return obj, ok
}

func (r *Registry) Const(name string) (variant.Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.consts[canonical(name)]
	return v, ok
}

// Names returns every registered name in its registered spelling.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}
