package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeAllocRespectsAllocationBound(t *testing.T) {
	tr := NewTracker(Limits{MaxAllocations: 2})

	require.NoError(t, tr.ChargeAlloc(10))
	require.NoError(t, tr.ChargeAlloc(10))

	err := tr.ChargeAlloc(10)
	require.Error(t, err)
	var exceeded *Exceeded
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, KindAllocations, exceeded.Kind)
}

func TestChargeAllocRespectsMemoryBound(t *testing.T) {
	tr := NewTracker(Limits{MaxMemoryBytes: 100})

	require.NoError(t, tr.ChargeAlloc(60))
	err := tr.ChargeAlloc(60)
	require.Error(t, err)
	var exceeded *Exceeded
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, KindMemory, exceeded.Kind)
}

func TestEnterFrameRespectsRecursionBound(t *testing.T) {
	tr := NewTracker(Limits{MaxRecursionDepth: 2})

	require.NoError(t, tr.EnterFrame())
	require.NoError(t, tr.EnterFrame())

	err := tr.EnterFrame()
	require.Error(t, err)
	var exceeded *Exceeded
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, KindRecursion, exceeded.Kind)

	tr.ExitFrame()
	require.NoError(t, tr.EnterFrame())
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	tr := NewTracker(Limits{})
	tr.Release(50)
	assert.Equal(t, 0, tr.Snapshot().MemoryBytes)
}

func TestUnlimitedAllowsManyAllocations(t *testing.T) {
	tr := Unlimited()
	for i := 0; i < 1000; i++ {
		require.NoError(t, tr.ChargeAlloc(1024))
	}
}

func TestResetClearsTransientCounters(t *testing.T) {
	tr := NewTracker(Limits{MaxAllocations: 5})
	require.NoError(t, tr.ChargeAlloc(10))
	tr.Reset()
	assert.Equal(t, 0, tr.Snapshot().Allocations)
}
