package service

import (
	"testing"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptedWithSlot(t *testing.T, f *fixture, capacity int) (*model.Engagement, *model.Slot, uuid.UUID) {
	t.Helper()
	slot := f.slot(capacity, 48*time.Hour)
	req, requester := f.request()
	e, err := f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{SlotID: &slot.ID})
	require.NoError(t, err)
	return e, slot, requester
}

func TestEngagement_CancelReleasesSlotOnce(t *testing.T) {
	f := newFixture(t)
	e, slot, requester := acceptedWithSlot(t, f, 1)
	require.Equal(t, model.SlotStatusFull, f.reloadSlot(slot.ID).Status)

	cancelled, err := f.svc.Engagements.Cancel(f.ctx, e.ID, requester, "sick")
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStateCancelled, cancelled.State)
	assert.Equal(t, "sick", cancelled.CancellationReason)
	require.Len(t, cancelled.Audit, 2)
	assert.Equal(t, model.AuditActionCancel, cancelled.Audit[1].Action)
	assert.Equal(t, requester, cancelled.Audit[1].Actor)

	reloaded := f.reloadSlot(slot.ID)
	assert.Equal(t, 0, reloaded.Reserved)
	assert.Equal(t, model.SlotStatusOpen, reloaded.Status)

	_, err = f.svc.Engagements.Cancel(f.ctx, e.ID, f.owner, "again")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, 0, f.reloadSlot(slot.ID).Reserved)
}

func TestEngagement_CancelOnCancelledSlotKeepsCounts(t *testing.T) {
	f := newFixture(t)
	e, slot, _ := acceptedWithSlot(t, f, 2)

	_, err := f.svc.Slots.Cancel(f.ctx, slot.ID, f.offer.ID, f.owner)
	require.NoError(t, err)

	_, err = f.svc.Engagements.Cancel(f.ctx, e.ID, f.owner, "")
	require.NoError(t, err)

	reloaded := f.reloadSlot(slot.ID)
	assert.Equal(t, model.SlotStatusCancelled, reloaded.Status)
	assert.Equal(t, 1, reloaded.Reserved)
}

func TestEngagement_ScheduleAndComplete(t *testing.T) {
	f := newFixture(t)
	req, requester := f.request()
	e, err := f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{})
	require.NoError(t, err)

	_, err = f.svc.Engagements.Complete(f.ctx, e.ID, f.owner)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = f.svc.Engagements.Schedule(f.ctx, e.ID, f.owner, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	at := testNow.Add(72 * time.Hour)
	_, err = f.svc.Engagements.Schedule(f.ctx, e.ID, requester, at)
	assert.ErrorIs(t, err, ErrForbidden)

	scheduled, err := f.svc.Engagements.Schedule(f.ctx, e.ID, f.owner, at)
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStateScheduled, scheduled.State)
	require.NotNil(t, scheduled.ScheduledAt)
	assert.True(t, at.Equal(*scheduled.ScheduledAt))

	_, err = f.svc.Engagements.Complete(f.ctx, e.ID, requester)
	assert.ErrorIs(t, err, ErrForbidden)

	completed, err := f.svc.Engagements.Complete(f.ctx, e.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStateCompleted, completed.State)
	require.NotNil(t, completed.CompletedAt)

	actions := make([]string, 0, len(completed.Audit))
	for _, entry := range completed.Audit {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{model.AuditActionAccept, model.AuditActionSchedule, model.AuditActionComplete}, actions)

	_, err = f.svc.Engagements.Cancel(f.ctx, e.ID, f.owner, "")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = f.svc.Engagements.Schedule(f.ctx, e.ID, f.owner, at)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestEngagement_GetIsPartyOnly(t *testing.T) {
	f := newFixture(t)
	e, _, requester := acceptedWithSlot(t, f, 1)

	got, err := f.svc.Engagements.Get(f.ctx, e.ID, requester)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	_, err = f.svc.Engagements.Get(f.ctx, e.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Engagements.Get(f.ctx, uuid.New(), requester)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Engagements.Cancel(f.ctx, e.ID, uuid.New(), "")
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.Engagements.ListMine(f.ctx, requester)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
