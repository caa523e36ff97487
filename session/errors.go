package session

import (
	"errors"
	"fmt"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/object"
	"github.com/parcadei/ouros-go/ouroserr"
	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/values"
	"github.com/parcadei/ouros-go/vm"
)

// toFrontendError wraps a compiler.Compile/CompileExpr failure as the
// ouroserr type the host expects. The compiler package does not yet
// distinguish a lexical/grammatical failure from a later semantic one, so
// every compile-time error surfaces as a ParseError; sharpening that split
// is an open question, not a silent gap.
func toFrontendError(err error) error {
	return &ouroserr.ParseError{Message: err.Error()}
}

// translateOutcome turns a (vm.Outcome, error) pair into the session's
// Result/error shape, the one place that distinguishes a resource-exceeded
// Go error (tracker.Tick/EnterFrame failing outside any except block) from
// a raised-and-uncaught PythonException and from a clean completion or
// suspension.
func (s *Session) translateOutcome(outcome vm.Outcome, err error) (Result, error) {
	if err != nil {
		var exceeded *resource.Exceeded
		if errors.As(err, &exceeded) {
			return Result{}, &ouroserr.ResourceError{
				Kind:    resourceErrorKind(exceeded.Kind),
				Message: exceeded.Error(),
			}
		}
		return Result{}, &ouroserr.HostProtocolError{Message: err.Error()}
	}

	switch outcome.Kind {
	case vm.OutcomeComplete:
		obj, cerr := object.ToObject(s.h, s.interns, outcome.Value)
		if cerr != nil {
			return Result{}, cerr
		}
		return Result{Kind: KindComplete, Value: obj}, nil
	case vm.OutcomeRaised:
		return Result{}, s.pyExceptionToErr(outcome.Exception)
	case vm.OutcomeSuspended:
		pc, perr := s.toPendingCall(outcome.Pending)
		if perr != nil {
			return Result{}, perr
		}
		batch, berr := s.toPendingBatch(s.vm.PendingCalls())
		if berr != nil {
			return Result{}, berr
		}
		return Result{Kind: KindSuspended, Pending: pc, PendingBatch: batch}, nil
	default:
		return Result{}, fmt.Errorf("session: unrecognized outcome kind %d", outcome.Kind)
	}
}

func resourceErrorKind(k resource.Kind) ouroserr.ResourceErrorKind {
	switch k {
	case resource.KindAllocations:
		return ouroserr.ResourceAllocations
	case resource.KindMemory:
		return ouroserr.ResourceMemory
	case resource.KindDuration:
		return ouroserr.ResourceDuration
	case resource.KindRecursion:
		return ouroserr.ResourceRecursion
	default:
		return ouroserr.ResourceAllocations
	}
}

func (s *Session) toPendingCall(p *vm.PendingCall) (*PendingCall, error) {
	if p == nil {
		return nil, fmt.Errorf("session: suspended outcome carried no pending call")
	}
	args := make([]object.Object, len(p.Args))
	for i, v := range p.Args {
		obj, err := object.ToObject(s.h, s.interns, v)
		if err != nil {
			return nil, err
		}
		args[i] = obj
	}
	var kwargs map[string]object.Object
	if len(p.Kwargs) > 0 {
		kwargs = make(map[string]object.Object, len(p.Kwargs))
		for name, v := range p.Kwargs {
			obj, err := object.ToObject(s.h, s.interns, v)
			if err != nil {
				return nil, err
			}
			kwargs[name] = obj
		}
	}
	return &PendingCall{CallID: p.CallID, Name: p.Name, Args: args, Kwargs: kwargs, IsOS: p.IsOS}, nil
}

func (s *Session) toPendingBatch(calls []*vm.PendingCall) ([]*PendingCall, error) {
	out := make([]*PendingCall, len(calls))
	for i, p := range calls {
		pc, err := s.toPendingCall(p)
		if err != nil {
			return nil, err
		}
		out[i] = pc
	}
	return out, nil
}

// pyExceptionToErr converts a live vm.PyException into the ouroserr type the
// host sees once it has escaped every except block.
func (s *Session) pyExceptionToErr(exc *vm.PyException) error {
	typeName, message := s.exceptionTypeAndMessage(exc.Value)
	tb := make([]ouroserr.TracebackEntry, len(exc.Traceback))
	for i, e := range exc.Traceback {
		tb[i] = ouroserr.TracebackEntry{FunctionName: e.FunctionName, Line: e.Line}
	}
	return &ouroserr.PythonException{TypeName: typeName, Message: message, Traceback: tb}
}

// exceptionTypeAndMessage resolves an exception value's class name and
// message. Instances raised through vm.raiseBuiltin carry a Class ref whose
// ClassObject.Name is the real type name (heap.TypeName only ever reports
// the generic "instance" for a heap.Instance); the classless fallback used
// before exception classes finish bootstrapping encodes "Type: message" as
// a bare interned string instead.
func (s *Session) exceptionTypeAndMessage(v values.Value) (string, string) {
	if v.IsRef() {
		if inst, ok := s.h.Get(v.AsHeapId()).(*heap.Instance); ok {
			typeName := "Exception"
			if inst.Class.IsRef() {
				if cls, ok := s.h.Get(inst.Class.AsHeapId()).(*heap.ClassObject); ok {
					typeName = cls.Name
				}
			}
			message := s.h.Repr(v, s.interns)
			if msgVal, ok := inst.Attrs["message"]; ok {
				message = s.h.Repr(msgVal, s.interns)
				if msgVal.IsRef() {
					if str, ok := s.h.Get(msgVal.AsHeapId()).(*heap.Str); ok {
						message = str.S
					}
				}
			}
			return typeName, message
		}
	}
	text := s.h.Repr(v, s.interns)
	if v.Kind() == values.KindInternString {
		if i := indexOf(text, ": "); i >= 0 {
			return text[:i], text[i+2:]
		}
	}
	return "Exception", text
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// buildPyException constructs a live vm.PyException from a host-supplied
// ouroserr.PythonException, the inverse of pyExceptionToErr, used when the
// host replies to a suspended call with an exception to inject. If the
// named exception class was never registered, it degrades to a plain
// string value rather than failing the resume outright, mirroring
// vm.raiseBuiltin's own fallback.
func (s *Session) buildPyException(pe *ouroserr.PythonException) *vm.PyException {
	className := pe.TypeName
	if className == "" {
		className = "Exception"
	}
	classRef, ok := s.reg.ExceptionClass(className)
	if !ok {
		return &vm.PyException{Value: values.NewInternString(s.interns.Intern(className + ": " + pe.Message))}
	}
	msgID, err := s.h.Allocate(&heap.Str{S: pe.Message})
	if err != nil {
		return &vm.PyException{Value: values.NewInternString(s.interns.Intern(className + ": " + pe.Message))}
	}
	instID, err := s.h.Allocate(&heap.Instance{
		Class: classRef,
		Attrs: map[string]values.Value{"message": values.NewRef(msgID)},
	})
	if err != nil {
		return &vm.PyException{Value: values.NewInternString(s.interns.Intern(className + ": " + pe.Message))}
	}
	return &vm.PyException{Value: values.NewRef(instID)}
}
