package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/values"
)

// BuiltinFunc is a Go implementation of a Python builtin or external-facing
// stdlib function, callable from OP_CALL_FUNCTION when the target resolves
// to a Builtin value.
type BuiltinFunc func(ctx BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error)

// BuiltinCallContext exposes the subset of VM/heap services a builtin needs,
// kept as an interface so registry never imports vm.
type BuiltinCallContext interface {
	Heap() *heap.Heap
	Interns() *intern.Table
	WriteOutput(s string)
	// Raise builds the sentinel error the VM recognizes as "abandon this
	// builtin call and raise className(message)".
	Raise(className, format string, args ...interface{}) error
}

// Raised is the sentinel a builtin returns via BuiltinCallContext.Raise to
// request a specific Python exception type rather than a generic failure.
type Raised struct {
	ClassName string
	Message   string
}

func (r *Raised) Error() string { return fmt.Sprintf("%s: %s", r.ClassName, r.Message) }

type builtinEntry struct {
	name string
	fn   BuiltinFunc
}

// Registry is the process of record for every compiled function and
// registered builtin a session's VM can call: sync.RWMutex-guarded maps,
// last-registration-wins. Python name resolution is case-sensitive, so
// this registry never folds case.
type Registry struct {
	mu         sync.RWMutex
	functions  map[string]*CodeObject
	builtins   []builtinEntry
	builtinIdx map[string]values.BuiltinKind
	exceptions map[string]values.Value // name -> Ref(ClassObject), installed by runtime.Bootstrap
}

// New constructs an empty Registry pre-loaded with nothing; builtins are
// installed by the runtime package's Bootstrap.
func New() *Registry {
	return &Registry{
		functions:  make(map[string]*CodeObject),
		builtinIdx: make(map[string]values.BuiltinKind),
		exceptions: make(map[string]values.Value),
	}
}

// RegisterExceptionClass records the heap ClassObject backing a built-in
// exception type (ValueError, TypeError, ...), installed once by
// runtime.Bootstrap so the vm package can raise them without importing
// runtime.
func (r *Registry) RegisterExceptionClass(name string, classRef values.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptions[name] = classRef
}

// ExceptionClass fetches a built-in exception class by name.
func (r *Registry) ExceptionClass(name string) (values.Value, bool) {
	if r == nil {
		return values.Value{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.exceptions[name]
	return v, ok
}

// RegisterFunction stores a compiled function under its qualified name.
func (r *Registry) RegisterFunction(code *CodeObject) error {
	if code == nil {
		return errors.New("registry: cannot register nil code object")
	}
	if code.QualifiedName == "" {
		return errors.New("registry: cannot register code object with empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[code.QualifiedName] = code
	return nil
}

// GetFunction fetches a compiled function by qualified name.
func (r *Registry) GetFunction(name string) (*CodeObject, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.functions[name]
	return code, ok
}

// RegisterBuiltin installs a host-implemented function under name (e.g.
// "len", "print") and returns the dense BuiltinKind index a
// values.NewBuiltin value carries for it. OP_LOAD_GLOBAL/OP_LOAD_NAME look
// that index up by name at runtime through BuiltinKindByName.
func (r *Registry) RegisterBuiltin(name string, fn BuiltinFunc) (values.BuiltinKind, error) {
	if fn == nil {
		return 0, errors.New("registry: cannot register nil builtin")
	}
	if name == "" {
		return 0, errors.New("registry: cannot register builtin with empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind, ok := r.builtinIdx[name]; ok {
		r.builtins[kind] = builtinEntry{name: name, fn: fn}
		return kind, nil
	}
	kind := values.BuiltinKind(len(r.builtins))
	r.builtins = append(r.builtins, builtinEntry{name: name, fn: fn})
	r.builtinIdx[name] = kind
	return kind, nil
}

// BuiltinKindByName resolves a builtin's name to its dense index, used by
// OP_LOAD_GLOBAL/OP_LOAD_NAME when a name isn't a global or a user function.
func (r *Registry) BuiltinKindByName(name string) (values.BuiltinKind, bool) {
	if r == nil {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.builtinIdx[name]
	return kind, ok
}

// BuiltinByKind resolves a dense BuiltinKind back to its implementation and
// name (for error messages and repr).
func (r *Registry) BuiltinByKind(kind values.BuiltinKind) (BuiltinFunc, string, bool) {
	if r == nil || int(kind) >= len(r.builtins) {
		return nil, "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.builtins[kind]
	return e.fn, e.name, true
}

// Clone deep-copies the registry's function table for Session.Fork; builtins
// and well-known exception classes are process-wide and shared by reference
// since they hold no per-session state.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &Registry{
		functions:  make(map[string]*CodeObject, len(r.functions)),
		builtins:   r.builtins,
		builtinIdx: r.builtinIdx,
		exceptions: r.exceptions,
	}
	for name, code := range r.functions {
		out.functions[name] = code
	}
	return out
}

// Names returns every registered function's qualified name, used by
// Session.heap_stats-adjacent diagnostics and by tests asserting a compile
// registered what was expected.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.functions))
	for name := range r.functions {
		out = append(out, name)
	}
	return out
}
