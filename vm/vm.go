// Package vm implements the bytecode virtual machine: the frame/operand
// stack dispatch loop, exception unwinding, the external-call suspension
// protocol, and the generator state machine.
package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/values"
)

// Host is the set of services the embedding sandbox supplies, kept as an
// interface so vm never imports the session or sandbox packages: the VM is
// a library, and never owns IO itself.
type Host interface {
	WriteOutput(s string)
	ReadInput(prompt string) (string, error)
}

// VM executes one call tree to completion or suspension. A VM is owned by
// exactly one Session and is not safe for concurrent use.
type VM struct {
	h        *heap.Heap
	interns  *intern.Table
	reg      *registry.Registry
	tracker  *resource.Tracker
	host     Host

	globals map[string]values.Value
	frames  []*frame

	pending     []*PendingCall
	pendingKind resumeKind

	// currentException is the exception bound to the active except block,
	// consulted by OP_RAISE_VARARGS's bare `raise` (re-raise) form.
	currentException *PyException
}

type resumeKind byte

const (
	resumeSingle resumeKind = iota
	resumeGather
)

// New constructs a VM sharing h, interns, reg, and tracker with its owning
// session so that heap_stats/heap_diff and resource limits observe every
// call this VM makes.
func New(h *heap.Heap, interns *intern.Table, reg *registry.Registry, tracker *resource.Tracker, host Host) *VM {
	vm := &VM{
		h:       h,
		interns: interns,
		reg:     reg,
		tracker: tracker,
		host:    host,
		globals: make(map[string]values.Value),
	}
	h.SetRootProvider(vm)
	return vm
}

// GCRoots implements heap.RootProvider: every global and every live frame's
// locals/cells/operand stack. The exception in flight (vm.currentException,
// set by unwind in run.go) is not included.
func (vm *VM) GCRoots() []values.Value {
	roots := make([]values.Value, 0, len(vm.globals)+32)
	for _, v := range vm.globals {
		roots = append(roots, v)
	}
	for _, f := range vm.frames {
		roots = append(roots, f.locals...)
		roots = append(roots, f.stack...)
		for _, id := range f.cells {
			roots = append(roots, values.NewRef(id))
		}
		roots = append(roots, f.self)
	}
	return roots
}

// Globals exposes the module-level namespace, used by Session.SetVariable
// and Eval.
func (vm *VM) Globals() map[string]values.Value { return vm.globals }

// LoadGlobals replaces the namespace outright without touching refcounts,
// for use only by the session layer when restoring a namespace whose refs
// were already accounted for by a heap clone/deserialize (fork, rewind,
// load) — every other caller should go through SetGlobal.
func (vm *VM) LoadGlobals(globals map[string]values.Value) { vm.globals = globals }

func (vm *VM) SetGlobal(name string, v values.Value) {
	if old, ok := vm.globals[name]; ok {
		vm.h.DecRefValue(old)
	}
	vm.h.IncRefValue(v)
	vm.globals[name] = v
}

// Heap, Interns, Registry expose the VM's collaborators for callers (the
// session layer, tests) that need direct access without re-deriving them.
func (vm *VM) Heap() *heap.Heap           { return vm.h }
func (vm *VM) Interns() *intern.Table     { return vm.interns }
func (vm *VM) Registry() *registry.Registry { return vm.reg }

// PendingCalls returns every call suspended by the most recent Outcome, not
// just the first: Outcome.Pending only ever surfaces sr.pending[0] so a
// single suspension can be reported without forcing every caller to handle
// a slice, but a host driving resume_futures needs the whole batch to know
// which call_ids it must resolve together.
func (vm *VM) PendingCalls() []*PendingCall { return vm.pending }

// WriteOutput and Raise satisfy registry.BuiltinCallContext, letting every
// registered builtin reach the host's stdout and the VM's exception
// machinery without importing vm (which would cycle back through
// registry).
func (vm *VM) WriteOutput(s string) {
	if vm.host != nil {
		vm.host.WriteOutput(s)
	}
}

func (vm *VM) Raise(className, format string, args ...interface{}) error {
	return &registry.Raised{ClassName: className, Message: fmt.Sprintf(format, args...)}
}

// CallMain pushes a frame for code and runs it to completion or suspension,
// the entry point for Session.Execute.
func (vm *VM) CallMain(code *registry.CodeObject) (Outcome, error) {
	vm.frames = append(vm.frames, newFrame(code, code.QualifiedName))
	if err := vm.tracker.EnterFrame(); err != nil {
		return Outcome{}, err
	}
	return vm.run()
}

// Resume feeds results back for every call_id suspended by the most recent
// Outcome.Pending batch and continues execution. Every pending call_id must
// be present in results; results maps a call_id either to a success value
// or to an exception to raise at the suspension point.
func (vm *VM) Resume(results map[string]ResumeResult) (Outcome, error) {
	if len(vm.pending) == 0 {
		return Outcome{}, fmt.Errorf("vm: resume called with no pending call")
	}
	for _, p := range vm.pending {
		if _, ok := results[p.CallID]; !ok {
			return Outcome{}, fmt.Errorf("vm: missing result for call_id %s", p.CallID)
		}
	}
	f := vm.currentFrame()
	if f == nil {
		return Outcome{}, fmt.Errorf("vm: resume called with no active frame")
	}

	switch vm.pendingKind {
	case resumeGather:
		items := make([]values.Value, len(vm.pending))
		for i, p := range vm.pending {
			r := results[p.CallID]
			if r.Err != nil {
				vm.pending = nil
				return vm.unwind(r.Err)
			}
			items[i] = r.Value
			vm.h.IncRefValue(r.Value)
		}
		id, err := vm.h.Allocate(&heap.Tuple{Items: items})
		if err != nil {
			vm.pending = nil
			return Outcome{}, err
		}
		f.push(values.NewRef(id))
	default:
		r := results[vm.pending[0].CallID]
		vm.pending = nil
		if r.Err != nil {
			return vm.unwind(r.Err)
		}
		vm.h.IncRefValue(r.Value)
		f.push(r.Value)
	}
	vm.pending = nil
	return vm.run()
}

// ResumeResult is a single resolved external/OS call, either a return value
// or an exception to inject at the suspension point.
type ResumeResult struct {
	Value values.Value
	Err   *PyException
}

// newCallID mints a globally-unique call_id via uuid rather than a
// per-session monotonic counter; callers should treat call_ids as opaque
// unique tokens, not an ordering signal.
func newCallID() string { return uuid.NewString() }

func (vm *VM) currentFrame() *frame {
	if len(vm.frames) == 0 {
		return nil
	}
	return vm.frames[len(vm.frames)-1]
}
