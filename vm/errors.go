package vm

import (
	"errors"
	"fmt"

	"github.com/parcadei/ouros-go/opcodes"
)

// Sentinel VM errors: a flat set of errors.New sentinels wrapped by a
// single decorating type rather than one bespoke error type per failure
// site.
var (
	ErrConstantOutOfRange = errors.New("constant index out of range")
	ErrNameOutOfRange     = errors.New("name index out of range")
	ErrLocalOutOfRange    = errors.New("local variable index out of range")
	ErrStackUnderflow     = errors.New("operand stack underflow")
	ErrOpcodeNotImplemented = errors.New("opcode not implemented")
	ErrNotCallable        = errors.New("object is not callable")
	ErrCallStackEmpty     = errors.New("call stack is empty")
	ErrNoActiveException  = errors.New("no active exception to reraise")
	ErrFrameStackOverflow = errors.New("maximum recursion depth exceeded")
	ErrNotIterable        = errors.New("object is not iterable")
	ErrUnknownExternal    = errors.New("no external function registered under that name")
)

// VMError decorates a sentinel with the frame/opcode context active when it
// was raised. Unwrap returns Type, so callers can still errors.Is against
// the sentinel.
type VMError struct {
	Type     error
	Message  string
	Function string
	Opcode   opcodes.Opcode
	IP       int
}

func (e *VMError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("%s: %s (in %s at ip=%d, %s)", e.Type.Error(), e.Message, e.Function, e.IP, e.Opcode)
	}
	return fmt.Sprintf("%s: %s", e.Type.Error(), e.Message)
}

func (e *VMError) Unwrap() error { return e.Type }

// newErr builds a VMError for the currently executing frame and opcode, the
// decoration point every dispatch case reaches for on failure.
func (f *frame) newErr(sentinel error, format string, args ...interface{}) *VMError {
	return &VMError{
		Type:     sentinel,
		Message:  fmt.Sprintf(format, args...),
		Function: f.qualifiedName(),
		Opcode:   f.code.Instructions[f.ip].Opcode,
		IP:       f.ip,
	}
}
