// Package ouroserr defines the five error kinds a session can fail with
// (ParseError, CompileError, PythonException, ResourceError,
// HostProtocolError), each a concrete Go type so callers can use errors.As
// instead of string matching. Each family gets its own wrapper type rather
// than one flat error surface, since a host needs to branch on which kind
// it's handling.
package ouroserr

import "fmt"

// ParseError is an ill-formed source.
type ParseError struct {
	Line, Column int
	Message      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// CompileError is a semantic violation caught before run, e.g. an invalid
// assignment target.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at line %d: %s", e.Line, e.Message)
}

// TracebackEntry mirrors vm.TracebackEntry without importing vm (session
// depends on both ouroserr and vm; keeping ouroserr dependency-free avoids
// a cycle).
type TracebackEntry struct {
	FunctionName string
	Line         int32
}

// PythonException is a raised exception that escaped to the host.
type PythonException struct {
	TypeName  string
	Message   string
	Traceback []TracebackEntry
}

func (e *PythonException) Error() string {
	return fmt.Sprintf("%s: %s", e.TypeName, e.Message)
}

// ResourceErrorKind distinguishes which bound was crossed, mirroring
// resource.Kind without importing resource (same dependency-direction
// reasoning as TracebackEntry above).
type ResourceErrorKind int

const (
	ResourceAllocations ResourceErrorKind = iota
	ResourceMemory
	ResourceDuration
	ResourceRecursion
)

// ResourceError is an allocation/memory/time/depth cap breach. Recursion is
// the one subtype that is catchable inside Python as RecursionError; the
// session surfaces the others directly to the host instead.
type ResourceError struct {
	Kind    ResourceErrorKind
	Message string
}

func (e *ResourceError) Error() string { return fmt.Sprintf("resource error: %s", e.Message) }

// HostProtocolError is a malformed resume from the host: an unknown
// call_id or a result of the wrong shape.
type HostProtocolError struct {
	Message string
}

func (e *HostProtocolError) Error() string { return fmt.Sprintf("host protocol error: %s", e.Message) }
