package runtime

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/registry"
)

// Bootstrap installs the exception hierarchy and core builtins into reg,
// allocating the exception ClassObjects on h. Every Session owns one
// Registry (or a Registry.Clone() of one) and calls Bootstrap exactly once
// before running any user code, so a fresh session always starts with the
// standard builtin namespace already populated.
func Bootstrap(h *heap.Heap, reg *registry.Registry) error {
	if err := registerExceptions(h, reg); err != nil {
		return err
	}
	return registerBuiltins(reg)
}
