package state

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestManager(t *testing.T) {
	sm := NewManager()
	assert.Equal(t, StateNone, sm.Get(1).State)

	target := uuid.New()
	sm.Begin(1, StateDeclineReason, target)
	assert.Equal(t, Dialog{State: StateDeclineReason, TargetID: target}, sm.Get(1))

	d, ok := sm.Take(1)
	assert.True(t, ok)
	assert.Equal(t, target, d.TargetID)

	_, ok = sm.Take(1)
	assert.False(t, ok, "dialog is finished after Take")

	sm.Begin(2, StateCancelReason, target)
	sm.Begin(2, StateNone, uuid.Nil)
	assert.Equal(t, StateNone, sm.Get(2).State)

	sm.Begin(3, StateCancelReason, target)
	sm.Clear(3)
	assert.Equal(t, StateNone, sm.Get(3).State)
}
