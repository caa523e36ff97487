package vm

import "github.com/parcadei/ouros-go/values"

// TracebackEntry records one frame's position at the moment an exception
// passed through it; tracebacks accumulate frame names and line numbers as
// an exception unwinds.
type TracebackEntry struct {
	FunctionName string
	Line         int32
}

// PyException is a raised Python exception in flight: the exception object
// itself (normally a heap.Instance of some Exception subclass) plus the
// traceback accumulated so far, since tracebacks are first-class and
// inspectable in Python.
type PyException struct {
	Value      values.Value
	Traceback  []TracebackEntry
	fromCause  values.Value
	hasCause   bool
}

func (e *PyException) addFrame(functionName string, line int32) {
	e.Traceback = append(e.Traceback, TracebackEntry{FunctionName: functionName, Line: line})
}
