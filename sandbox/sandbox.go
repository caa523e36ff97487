// Package sandbox is the embeddable, host-facing entry point: one source
// string plus a declared set of inputs and external functions becomes a
// single-use interpreter that a host can either run to completion or drive
// step by step, suspending at each external/OS call and resuming once the
// host supplies a reply.
package sandbox

import (
	"fmt"

	"github.com/parcadei/ouros-go/object"
	"github.com/parcadei/ouros-go/ouroserr"
	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/session"
)

// ExternalFunc is a host-supplied callable reachable from sandboxed code via
// CALL_EXTERNAL, keyed by name and split into positional/keyword arguments
// the way the VM's suspension already packs them.
type ExternalFunc func(args []object.Object, kwargs map[string]object.Object) (object.Object, error)

// Options configures a Sandbox at construction time.
type Options struct {
	// Inputs names the variables Run/Start expect to be supplied; an input
	// map key not present here is still accepted, since declaring it is
	// for the host's own documentation/validation rather than enforced
	// here as a hard gate.
	Inputs []string

	ExternalFunctions map[string]ExternalFunc
	Limits            resource.Limits
}

// Sandbox is one source program bound to a set of inputs, external
// functions, and resource limits.
type Sandbox struct {
	source    string
	inputs    []string
	externals map[string]ExternalFunc
	session   *session.Session
}

// New compiles nothing yet (compilation happens on first Run/Start, inside
// the session, so every input is already bound to a global before the
// source ever runs) but builds the backing session with its resource
// limits fixed for the Sandbox's lifetime.
func New(source string, opts Options) (*Sandbox, error) {
	names := make([]string, 0, len(opts.ExternalFunctions))
	for name := range opts.ExternalFunctions {
		names = append(names, name)
	}
	s, err := session.New(session.Options{Limits: opts.Limits, ExternalNames: names})
	if err != nil {
		return nil, err
	}
	return &Sandbox{
		source:    source,
		inputs:    opts.Inputs,
		externals: opts.ExternalFunctions,
		session:   s,
	}, nil
}

func (sb *Sandbox) applyInputs(inputs map[string]object.Object) error {
	for name, obj := range inputs {
		if err := sb.session.SetVariable(name, obj); err != nil {
			return fmt.Errorf("sandbox: binding input %q: %w", name, err)
		}
	}
	return nil
}

// Run executes the sandbox's source to completion against inputs,
// transparently servicing every external/OS suspension along the way. Host
// code that wants to observe or veto individual suspensions should use
// Start/Resume instead.
func (sb *Sandbox) Run(inputs map[string]object.Object) (object.Object, error) {
	if err := sb.applyInputs(inputs); err != nil {
		return object.Object{}, err
	}
	result, err := sb.session.Execute(sb.source)
	if err != nil {
		return object.Object{}, err
	}
	for result.Kind == session.KindSuspended {
		result, err = sb.serviceSuspension(result)
		if err != nil {
			return object.Object{}, err
		}
	}
	return result.Value, nil
}

// serviceSuspension resolves every call in a suspended Result's batch by
// dispatching OS calls to handleOS and everything else to the matching
// ExternalFunc, then resumes the session with the whole batch at once.
func (sb *Sandbox) serviceSuspension(result session.Result) (session.Result, error) {
	batch := result.PendingBatch
	if len(batch) == 0 && result.Pending != nil {
		batch = []*session.PendingCall{result.Pending}
	}
	results := make(map[string]session.FutureResult, len(batch))
	for _, pc := range batch {
		results[pc.CallID] = sb.serviceCall(pc)
	}
	return sb.session.ResumeFutures(results)
}

func (sb *Sandbox) serviceCall(pc *session.PendingCall) session.FutureResult {
	var (
		value object.Object
		err   error
	)
	if pc.IsOS {
		value, err = sb.handleOS(pc.Name, pc.Args, pc.Kwargs)
	} else {
		fn, ok := sb.externals[pc.Name]
		if !ok {
			err = fmt.Errorf("sandbox: no external function registered for %q", pc.Name)
		} else {
			value, err = fn(pc.Args, pc.Kwargs)
		}
	}
	if err != nil {
		return session.FutureResult{Exc: toSandboxException(err)}
	}
	return session.FutureResult{Value: value}
}

func toSandboxException(err error) *ouroserr.PythonException {
	return &ouroserr.PythonException{TypeName: "RuntimeError", Message: err.Error()}
}

// StepKind distinguishes what Start/Resume produced.
type StepKind int

const (
	StepComplete StepKind = iota
	StepSnapshot
	StepOsCall
	StepFutureSnapshot
)

// StepResult is what Start/Resume/ResumeFutures return to a host driving
// the sandbox call by call.
type StepResult struct {
	Kind  StepKind
	Value object.Object

	// Snapshot is set for StepSnapshot: an external-function suspension.
	Snapshot *session.PendingCall

	// OsCall is set for StepOsCall: an OS-primitive suspension.
	OsCall *session.PendingCall

	// Pending is set for StepFutureSnapshot: every call suspended together
	// by a single gather-style suspension.
	Pending []*session.PendingCall
}

// Start begins iterative execution, returning control to the host at the
// first suspension or completion instead of servicing suspensions itself.
func (sb *Sandbox) Start(inputs map[string]object.Object) (StepResult, error) {
	if err := sb.applyInputs(inputs); err != nil {
		return StepResult{}, err
	}
	result, err := sb.session.Execute(sb.source)
	if err != nil {
		return StepResult{}, err
	}
	return toStepResult(result), nil
}

// Resume replies to a single suspended call_id.
func (sb *Sandbox) Resume(callID string, reply session.FutureResult) (StepResult, error) {
	result, err := sb.session.Resume(callID, reply)
	if err != nil {
		return StepResult{}, err
	}
	return toStepResult(result), nil
}

// ResumeFutures replies to every call_id in a FutureSnapshot batch at once.
func (sb *Sandbox) ResumeFutures(results map[string]session.FutureResult) (StepResult, error) {
	result, err := sb.session.ResumeFutures(results)
	if err != nil {
		return StepResult{}, err
	}
	return toStepResult(result), nil
}

func toStepResult(result session.Result) StepResult {
	if result.Kind == session.KindComplete {
		return StepResult{Kind: StepComplete, Value: result.Value}
	}
	if len(result.PendingBatch) > 1 {
		return StepResult{Kind: StepFutureSnapshot, Pending: result.PendingBatch}
	}
	if result.Pending != nil && result.Pending.IsOS {
		return StepResult{Kind: StepOsCall, OsCall: result.Pending}
	}
	return StepResult{Kind: StepSnapshot, Snapshot: result.Pending}
}
