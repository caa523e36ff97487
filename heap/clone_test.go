package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/values"
)

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	h := New(resource.Unlimited())

	id, err := h.Allocate(&List{Items: []values.Value{values.NewInt(1), values.NewInt(2)}})
	require.NoError(t, err)

	clone := h.Clone(resource.Unlimited())

	list := clone.Get(id).(*List)
	list.Items = append(list.Items, values.NewInt(3))

	original := h.Get(id).(*List)
	assert.Len(t, original.Items, 2)
	assert.Len(t, list.Items, 3)
}

func TestCloneSharesHeapIdsWithOriginal(t *testing.T) {
	h := New(resource.Unlimited())

	id, err := h.Allocate(&Str{S: "hello"})
	require.NoError(t, err)

	clone := h.Clone(resource.Unlimited())
	assert.Equal(t, h.Get(id).(*Str).S, clone.Get(id).(*Str).S)
	assert.Equal(t, h.Len(), clone.Len())
}
