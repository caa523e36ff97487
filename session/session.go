// Package session implements the REPL session: one heap, one intern table,
// one function registry, one tracker, a globals namespace, and a bounded
// undo history, compiled and run against the vm package. A session is
// long-lived and stateful, supporting fork/rewind/save/load across many
// execute/eval calls rather than a fresh interpreter per request.
package session

import (
	"fmt"

	"github.com/parcadei/ouros-go/compiler"
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/object"
	"github.com/parcadei/ouros-go/ouroserr"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/runtime"
	"github.com/parcadei/ouros-go/values"
	"github.com/parcadei/ouros-go/vm"
)

// MaxHistory bounds the undo stack; the oldest entry is dropped once the
// stack would exceed this many snapshots.
const MaxHistory = 20

// Options configures a new Session.
type Options struct {
	Limits resource.Limits
	Host   vm.Host

	// ExternalNames lists the names compiled source may call as a host
	// external_function: a bare-name call matching one of these lowers to
	// CALL_EXTERNAL instead of an ordinary function call.
	ExternalNames []string
}

// Kind distinguishes what an operation produced: a finished value or a
// suspension awaiting a host reply.
type Kind int

const (
	KindComplete Kind = iota
	KindSuspended
)

// PendingCall mirrors vm.PendingCall in host-facing Object form, the shape
// Session.Execute/Resume return to a caller that must not see raw
// values.Value.
type PendingCall struct {
	CallID string
	Name   string
	Args   []object.Object
	Kwargs map[string]object.Object
	IsOS   bool
}

// Result is what Execute/Eval/Resume/ResumeFutures return on success.
type Result struct {
	Kind    Kind
	Value   object.Object
	Pending *PendingCall

	// PendingBatch holds every call suspended alongside Pending when a
	// builtin like asyncio.gather requested a batch suspension. Pending is
	// always PendingBatch[0]; a host that only services one call_id at a
	// time can ignore this field entirely and resume via Resume, but
	// resume_futures needs the whole batch to know which call_ids it must
	// resolve together.
	PendingBatch []*PendingCall
}

// FutureResult is one resolved call fed to ResumeFutures, either a value or
// an exception to inject at the suspension point.
type FutureResult struct {
	Value object.Object
	Exc   *ouroserr.PythonException
}

// snapshot is a structural clone of everything rewind/fork need to restore
// or diverge independent state.
type snapshot struct {
	h       *heap.Heap
	interns *intern.Table
	reg     *registry.Registry
	tracker *resource.Tracker
	globals map[string]values.Value
}

// Session is one sandboxed interpreter instance. Not safe for concurrent
// use — its VM is not reentrant.
type Session struct {
	h       *heap.Heap
	interns *intern.Table
	reg     *registry.Registry
	tracker *resource.Tracker
	limits  resource.Limits
	host    vm.Host
	vm      *vm.VM

	// externalNames is the allowlist passed to the compiler so a bare-name
	// call to one of these lowers to CALL_EXTERNAL instead of an ordinary
	// function call.
	externalNames []string

	history []snapshot

	execSeq int
}

// New builds a session with the standard exception hierarchy and builtin
// namespace already installed, so it starts ready to execute without any
// further setup call.
func New(opts Options) (*Session, error) {
	tracker := resource.NewTracker(opts.Limits)
	h := heap.New(tracker)
	interns := intern.New()
	reg := registry.New()
	if err := runtime.Bootstrap(h, reg); err != nil {
		return nil, err
	}

	s := &Session{
		h:             h,
		interns:       interns,
		reg:           reg,
		tracker:       tracker,
		limits:        opts.Limits,
		host:          opts.Host,
		externalNames: opts.ExternalNames,
	}
	s.vm = vm.New(h, interns, reg, tracker, opts.Host)
	return s, nil
}

func (s *Session) nextQualifiedName() string {
	s.execSeq++
	return fmt.Sprintf("<session-%d>", s.execSeq)
}

// snapshot deep-copies heap, intern table, registry and globals so that
// later mutation of the live session cannot be observed through a retained
// snapshot. A fresh Tracker is cloned against so the snapshot's counters
// never advance alongside the live session's.
func (s *Session) snapshot() snapshot {
	snapTracker := resource.NewTracker(s.limits)
	return snapshot{
		h:       s.h.Clone(snapTracker),
		interns: s.interns.Clone(),
		reg:     s.reg.Clone(),
		tracker: snapTracker,
		globals: cloneGlobals(s.vm.Globals()),
	}
}

func cloneGlobals(g map[string]values.Value) map[string]values.Value {
	out := make(map[string]values.Value, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

func (s *Session) pushHistory(snap snapshot) {
	s.history = append(s.history, snap)
	if len(s.history) > MaxHistory {
		s.history = s.history[len(s.history)-MaxHistory:]
	}
}

// Execute parses and compiles source in the session's intern table, then
// runs it to completion or suspension against the current globals. On a
// clean completion, the pre-execution state is pushed onto the undo stack;
// partial progress from a raised exception or an in-flight suspension is
// never undone here, matching a real REPL where a failed statement can
// still have had visible effects.
func (s *Session) Execute(source string) (Result, error) {
	qname := s.nextQualifiedName()
	code, err := compiler.Compile(source, qname, s.reg, s.interns, s.h, s.externalNames)
	if err != nil {
		return Result{}, toFrontendError(err)
	}

	snap := s.snapshot()
	outcome, runErr := s.vm.CallMain(code)
	result, translateErr := s.translateOutcome(outcome, runErr)
	if translateErr == nil && result.Kind == KindComplete {
		s.pushHistory(snap)
	}
	return result, translateErr
}

// Eval compiles src as a bare expression and runs it without touching the
// session's undo history. A well-formed expression never mutates globals
// by construction (compiler.CompileExpr never emits STORE_NAME/
// STORE_GLOBAL), so no snapshot is needed either way.
func (s *Session) Eval(src string) (Result, error) {
	qname := s.nextQualifiedName()
	code, err := compiler.CompileExpr(src, qname, s.reg, s.interns, s.h, s.externalNames)
	if err != nil {
		return Result{}, toFrontendError(err)
	}
	outcome, runErr := s.vm.CallMain(code)
	return s.translateOutcome(outcome, runErr)
}

// Resume hands the VM a reply to the single call_id it most recently
// suspended on.
func (s *Session) Resume(callID string, result FutureResult) (Result, error) {
	rr, err := s.toResumeResult(result)
	if err != nil {
		return Result{}, err
	}
	outcome, runErr := s.vm.Resume(map[string]vm.ResumeResult{callID: rr})
	return s.translateOutcome(outcome, runErr)
}

// ResumeFutures resolves a batch of outstanding calls at once.
func (s *Session) ResumeFutures(results map[string]FutureResult) (Result, error) {
	rrs := make(map[string]vm.ResumeResult, len(results))
	for callID, fr := range results {
		rr, err := s.toResumeResult(fr)
		if err != nil {
			return Result{}, err
		}
		rrs[callID] = rr
	}
	outcome, runErr := s.vm.Resume(rrs)
	return s.translateOutcome(outcome, runErr)
}

func (s *Session) toResumeResult(fr FutureResult) (vm.ResumeResult, error) {
	if fr.Exc != nil {
		return vm.ResumeResult{Err: s.buildPyException(fr.Exc)}, nil
	}
	v, err := object.FromObject(s.h, s.interns, fr.Value)
	if err != nil {
		return vm.ResumeResult{}, err
	}
	return vm.ResumeResult{Value: v}, nil
}

// SetVariable injects a host value into globals directly, bypassing
// parsing.
func (s *Session) SetVariable(name string, obj object.Object) error {
	v, err := object.FromObject(s.h, s.interns, obj)
	if err != nil {
		return err
	}
	s.vm.SetGlobal(name, v)
	return nil
}

// DeleteVariable removes a name from globals, releasing its reference.
func (s *Session) DeleteVariable(name string) {
	g := s.vm.Globals()
	if old, ok := g[name]; ok {
		s.h.DecRefValue(old)
		delete(g, name)
	}
}

// GetVariables snapshots every global as a host-facing Object, for
// inspection by a host REPL.
func (s *Session) GetVariables() (map[string]object.Object, error) {
	g := s.vm.Globals()
	out := make(map[string]object.Object, len(g))
	for name, v := range g {
		obj, err := object.ToObject(s.h, s.interns, v)
		if err != nil {
			return nil, err
		}
		out[name] = obj
	}
	return out, nil
}

// Rewind pops the undo stack steps times, restoring heap and namespace to
// that snapshot and discarding every reference acquired since. steps must
// not exceed the history depth.
func (s *Session) Rewind(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("session: rewind steps must be positive, got %d", steps)
	}
	if steps > len(s.history) {
		return fmt.Errorf("session: rewind(%d) exceeds history depth %d", steps, len(s.history))
	}
	target := s.history[len(s.history)-steps]
	s.history = s.history[:len(s.history)-steps]

	s.h = target.h
	s.interns = target.interns
	s.reg = target.reg
	s.tracker = target.tracker
	s.vm = vm.New(s.h, s.interns, s.reg, s.tracker, s.host)
	s.vm.LoadGlobals(cloneGlobals(target.globals))
	return nil
}

// Fork deep-copies the entire session so that neither side observes the
// other's subsequent mutations.
func (s *Session) Fork() (*Session, error) {
	newTracker := resource.NewTracker(s.limits)
	h2 := s.h.Clone(newTracker)
	interns2 := s.interns.Clone()
	reg2 := s.reg.Clone()
	globals2 := cloneGlobals(s.vm.Globals())

	fork := &Session{
		h:       h2,
		interns: interns2,
		reg:     reg2,
		tracker: newTracker,
		limits:  s.limits,
		host:    s.host,
		execSeq: s.execSeq,

		externalNames: s.externalNames,
	}
	fork.vm = vm.New(h2, interns2, reg2, newTracker, fork.host)
	fork.vm.LoadGlobals(globals2)
	return fork, nil
}

// HeapStats returns a per-type live-object census.
func (s *Session) HeapStats() heap.Stats { return s.h.Stats() }

// HeapDiff reports the per-type delta between previous and the session's
// current heap state.
func (s *Session) HeapDiff(previous heap.Stats) heap.Diff {
	return heap.Diff_(previous, s.h.Stats())
}
