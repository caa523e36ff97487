package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/opcodes"
)

func lastOp(t *testing.T, instrs []opcodes.Instruction, op opcodes.Opcode) opcodes.Instruction {
	t.Helper()
	for i := len(instrs) - 1; i >= 0; i-- {
		if instrs[i].Opcode == op {
			return instrs[i]
		}
	}
	t.Fatalf("no %v instruction found", op)
	return opcodes.Instruction{}
}

func TestCompileExternalNameLowersToCallExternal(t *testing.T) {
	reg, interns, h := newTestRegistry()

	code, err := Compile("fetch(1, key=2)", "<module>", reg, interns, h, []string{"fetch"})
	require.NoError(t, err)

	call := lastOp(t, code.Instructions, opcodes.OP_CALL_EXTERNAL)
	assert.Equal(t, "fetch", code.Names[call.Arg])

	for _, in := range code.Instructions {
		assert.NotEqual(t, opcodes.OP_CALL_FUNCTION, in.Opcode)
		assert.NotEqual(t, opcodes.OP_CALL_FUNCTION_KW, in.Opcode)
	}
}

func TestCompileUnlistedNameStaysOrdinaryCall(t *testing.T) {
	reg, interns, h := newTestRegistry()

	code, err := Compile("fetch(1)", "<module>", reg, interns, h, nil)
	require.NoError(t, err)

	for _, in := range code.Instructions {
		assert.NotEqual(t, opcodes.OP_CALL_EXTERNAL, in.Opcode)
	}
	lastOp(t, code.Instructions, opcodes.OP_CALL_FUNCTION)
}

func TestCompileOSAttrCallLowersToCallOS(t *testing.T) {
	reg, interns, h := newTestRegistry()

	code, err := Compile("os.read_text('a.txt')", "<module>", reg, interns, h, nil)
	require.NoError(t, err)

	call := lastOp(t, code.Instructions, opcodes.OP_CALL_OS)
	assert.Equal(t, "read_text", code.Names[call.Arg])
}
