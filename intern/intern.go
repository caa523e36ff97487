// Package intern canonicalizes strings and compiled-function identities to
// small integer tokens, so the VM can compare and carry them around as plain
// ints instead of repeatedly hashing/copying strings. It provides a
// dedicated bidirectional interning table plus a function catalogue.
package intern

import "sync"

// StringId is a small integer handle for an interned string.
type StringId uint32

// FunctionId is a small integer handle for a compiled function's identity.
type FunctionId uint32

// staticCatalogue lists strings pre-registered at table construction time:
// dunder names and other identifiers common enough in every session to
// intern up front rather than on first use.
var staticCatalogue = []string{
	"__init__", "__wrapped__", "__name__", "__doc__", "__module__",
	"__call__", "__repr__", "__str__", "__eq__", "__hash__", "__len__",
	"__iter__", "__next__", "__enter__", "__exit__", "__class__",
	"__bases__", "__dict__", "__qualname__", "__main__", "builtins",
	"self", "args", "kwargs",
}

// FunctionSignature describes a compiled function's calling convention and
// closure layout, stored once per FunctionId.
type FunctionSignature struct {
	QualifiedName string
	ParamNames    []string
	Defaults      int // number of trailing parameters that have defaults
	Variadic      bool
	KwVariadic    bool
	CellVars      []string
	FreeVars      []string
	IsGenerator   bool
}

// Table is a session-private intern table: strings and function identities
// canonicalize to ids with a distinct lifetime from heap slots — an
// InternString or DefFunction Value does not own a heap slot and is never
// refcounted.
type Table struct {
	mu sync.RWMutex

	strings   []string
	stringIDs map[string]StringId

	functions   []*functionEntry
	functionIDs map[string]FunctionId
}

type functionEntry struct {
	sig  FunctionSignature
	code interface{} // *registry.CodeObject, set lazily to avoid an import cycle
}

// New constructs a Table pre-loaded with the static catalogue.
func New() *Table {
	t := &Table{
		stringIDs:   make(map[string]StringId, len(staticCatalogue)*2),
		functionIDs: make(map[string]FunctionId),
	}
	for _, s := range staticCatalogue {
		t.Intern(s)
	}
	return t
}

// Intern returns the StringId for s, allocating a new one if s hasn't been
// seen before.
func (t *Table) Intern(s string) StringId {
	t.mu.RLock()
	if id, ok := t.stringIDs[s]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.stringIDs[s]; ok {
		return id
	}
	id := StringId(len(t.strings))
	t.strings = append(t.strings, s)
	t.stringIDs[s] = id
	return id
}

// Lookup resolves a StringId back to its string. An out of range id is a
// programming error and returns ("", false); id 0 is the first catalogue
// entry, not a sentinel.
func (t *Table) Lookup(id StringId) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.strings) {
		return "", false
	}
	return t.strings[id], true
}

// MustLookup panics-free fallback used in hot paths where the id is known to
// be valid (produced by this same table).
func (t *Table) MustLookup(id StringId) string {
	s, _ := t.Lookup(id)
	return s
}

// InternFunction registers a compiled function under a FunctionId, storing
// its signature and a caller-opaque code pointer. Re-registering the same
// qualified name replaces the signature but keeps the id stable.
func (t *Table) InternFunction(sig FunctionSignature, code interface{}) FunctionId {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.functionIDs[sig.QualifiedName]; ok {
		t.functions[id] = &functionEntry{sig: sig, code: code}
		return id
	}
	id := FunctionId(len(t.functions))
	t.functions = append(t.functions, &functionEntry{sig: sig, code: code})
	t.functionIDs[sig.QualifiedName] = id
	return id
}

// FunctionSignature returns the signature registered for id.
func (t *Table) FunctionSignature(id FunctionId) (FunctionSignature, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.functions) {
		return FunctionSignature{}, false
	}
	return t.functions[id].sig, true
}

// FunctionCode returns the opaque code object registered for id.
func (t *Table) FunctionCode(id FunctionId) (interface{}, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.functions) {
		return nil, false
	}
	return t.functions[id].code, true
}

// Clone deep-copies the table, used by session fork so the two sessions
// share no mutable state afterward.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()

	clone := &Table{
		strings:     append([]string(nil), t.strings...),
		stringIDs:   make(map[string]StringId, len(t.stringIDs)),
		functions:   make([]*functionEntry, len(t.functions)),
		functionIDs: make(map[string]FunctionId, len(t.functionIDs)),
	}
	for k, v := range t.stringIDs {
		clone.stringIDs[k] = v
	}
	for k, v := range t.functionIDs {
		clone.functionIDs[k] = v
	}
	for i, fn := range t.functions {
		if fn == nil {
			continue
		}
		cp := *fn
		clone.functions[i] = &cp
	}
	return clone
}

// Len reports how many strings are interned, used in heap_stats reporting.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.strings)
}

// Snapshot exports everything needed to rebuild an equivalent table for
// persistence. Function code is
// deliberately omitted — session.Load rebuilds each FunctionId's code
// pointer from the restored registry by qualified name, since the code
// field here is an opaque interface{} (to avoid importing registry) and
// would need its own gob registration for a type this package doesn't
// know about.
func (t *Table) Snapshot() TableSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sigs := make([]FunctionSignature, len(t.functions))
	for i, fn := range t.functions {
		if fn != nil {
			sigs[i] = fn.sig
		}
	}
	return TableSnapshot{
		Strings:   append([]string(nil), t.strings...),
		Functions: sigs,
	}
}

// TableSnapshot is Table's gob-friendly persisted form.
type TableSnapshot struct {
	Strings   []string
	Functions []FunctionSignature // in FunctionId order
}
