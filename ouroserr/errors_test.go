package ouroserr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsSatisfyErrorsAs(t *testing.T) {
	var err error = &PythonException{TypeName: "ValueError", Message: "bad"}

	var pe *PythonException
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "ValueError", pe.TypeName)

	var re *ResourceError
	assert.False(t, errors.As(err, &re))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "parse error at line 3: unexpected token", (&ParseError{Line: 3, Message: "unexpected token"}).Error())
	assert.Equal(t, "compile error at line 1: bad target", (&CompileError{Line: 1, Message: "bad target"}).Error())
	assert.Equal(t, "ValueError: bad", (&PythonException{TypeName: "ValueError", Message: "bad"}).Error())
	assert.Equal(t, "resource error: out of memory", (&ResourceError{Message: "out of memory"}).Error())
	assert.Equal(t, "host protocol error: unknown call_id", (&HostProtocolError{Message: "unknown call_id"}).Error())
}
