package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestAccept_WithSlotAndGift(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(1, 24*time.Hour)
	gift := f.gift(2)
	req, requester := f.request()

	e, err := f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{SlotID: &slot.ID, UseGift: true})
	require.NoError(t, err)

	assert.Equal(t, model.EngagementStateScheduled, e.State)
	assert.Equal(t, f.owner, e.PractitionerID)
	assert.Equal(t, requester, e.RequesterID)
	require.NotNil(t, e.ScheduledAt)
	assert.True(t, slot.StartAt.Equal(*e.ScheduledAt))
	require.NotNil(t, e.GiftID)
	assert.Equal(t, gift.ID, *e.GiftID)

	require.Len(t, e.Audit, 1)
	assert.Equal(t, model.AuditActionAccept, e.Audit[0].Action)
	assert.Equal(t, f.owner, e.Audit[0].Actor)
	assert.Equal(t, slot.ID.String(), e.Audit[0].Detail["slot_id"])
	assert.Equal(t, gift.ID.String(), e.Audit[0].Detail["gift_id"])

	reloaded := f.reloadSlot(slot.ID)
	assert.Equal(t, 1, reloaded.Reserved)
	assert.Equal(t, model.SlotStatusFull, reloaded.Status)
	assert.Equal(t, model.RequestStatusAccepted, f.reloadRequest(req.ID).Status)

	left, err := f.svc.Gifts.Available(f.ctx, f.offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestAccept_WithoutSlotIsAccepted(t *testing.T) {
	f := newFixture(t)
	req, _ := f.request()

	e, err := f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{})
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStateAccepted, e.State)
	assert.Nil(t, e.ScheduledAt)
	assert.Nil(t, e.SlotID)
	assert.Nil(t, e.GiftID)
}

func TestAccept_GiftFailureIsTolerated(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(1, time.Hour)
	req, _ := f.request()

	e, err := f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{SlotID: &slot.ID, UseGift: true})
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStateScheduled, e.State)
	assert.Nil(t, e.GiftID)
	assert.NotContains(t, e.Audit[0].Detail, "gift_id")
	assert.Equal(t, 1, f.reloadSlot(slot.ID).Reserved)
}

func TestAccept_Errors(t *testing.T) {
	f := newFixture(t)
	req, requester := f.request()

	_, err := f.svc.Requests.Accept(f.ctx, req.ID, requester, AcceptInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Requests.Accept(f.ctx, req.ID, uuid.Nil, AcceptInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Requests.Accept(f.ctx, uuid.New(), f.owner, AcceptInput{})
	assert.ErrorIs(t, err, ErrNotFound)

	missing := uuid.New()
	_, err = f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{SlotID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, model.RequestStatusPending, f.reloadRequest(req.ID).Status)
}

func TestAccept_UnavailableSlotRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(1, time.Hour)
	gift := f.gift(1)

	_, err := f.svc.Slots.Cancel(f.ctx, slot.ID, f.offer.ID, f.owner)
	require.NoError(t, err)

	req, _ := f.request()
	_, err = f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{SlotID: &slot.ID, UseGift: true})
	require.ErrorIs(t, err, ErrSlotUnavailable)

	assert.Equal(t, model.RequestStatusPending, f.reloadRequest(req.ID).Status)
	gifts, err := f.svc.Gifts.List(f.ctx, f.offer.ID)
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	assert.Equal(t, gift.ID, gifts[0].ID)
	assert.Equal(t, 0, gifts[0].Used)

	engagements, err := f.svc.Engagements.ListMine(f.ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, engagements)
}

func TestAccept_SlotOfAnotherOfferIsUnavailable(t *testing.T) {
	f := newFixture(t)

	other, err := f.svc.Offers.Create(f.ctx, f.owner, CreateOfferInput{Title: "Career coaching"})
	require.NoError(t, err)
	foreign, err := f.svc.Slots.Create(f.ctx, f.owner, other.ID, CreateSlotInput{
		StartAt: testNow.Add(time.Hour),
		EndAt:   testNow.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	req, _ := f.request()
	_, err = f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{SlotID: &foreign.ID})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, 0, f.reloadSlot(foreign.ID).Reserved)
}

func TestRequest_TerminalStates(t *testing.T) {
	f := newFixture(t)

	req, requester := f.request()
	_, err := f.svc.Requests.Withdraw(f.ctx, req.ID, f.owner)
	assert.ErrorIs(t, err, ErrForbidden)

	withdrawn, err := f.svc.Requests.Withdraw(f.ctx, req.ID, requester)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusWithdrawn, withdrawn.Status)

	_, err = f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = f.svc.Requests.Decline(f.ctx, req.ID, f.owner, "late")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	req2, requester2 := f.request()
	_, err = f.svc.Requests.Decline(f.ctx, req2.ID, requester2, "no")
	assert.ErrorIs(t, err, ErrForbidden)

	declined, err := f.svc.Requests.Decline(f.ctx, req2.ID, f.owner, "fully booked")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusDeclined, declined.Status)
	assert.Equal(t, "fully booked", f.reloadRequest(req2.ID).DeclineReason)

	_, err = f.svc.Requests.Withdraw(f.ctx, req2.ID, requester2)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestAccept_DeclinedRequestHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(2, time.Hour)
	f.gift(3)

	req, _ := f.request()
	_, err := f.svc.Requests.Decline(f.ctx, req.ID, f.owner, "not my area")
	require.NoError(t, err)

	_, err = f.svc.Requests.Accept(f.ctx, req.ID, f.owner, AcceptInput{SlotID: &slot.ID, UseGift: true})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	reloaded := f.reloadSlot(slot.ID)
	assert.Equal(t, 0, reloaded.Reserved)
	assert.Equal(t, model.SlotStatusOpen, reloaded.Status)

	left, err := f.svc.Gifts.Available(f.ctx, f.offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	assert.Equal(t, model.RequestStatusDeclined, f.reloadRequest(req.ID).Status)
	engagements, err := f.svc.Engagements.ListMine(f.ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, engagements)
}

func TestRequest_CreateValidation(t *testing.T) {
	f := newFixture(t)
	requester := uuid.New()

	_, err := f.svc.Requests.Create(f.ctx, uuid.Nil, CreateRequestInput{OfferID: f.offer.ID, Message: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Requests.Create(f.ctx, requester, CreateRequestInput{OfferID: f.offer.ID, Message: "  "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Requests.Create(f.ctx, requester, CreateRequestInput{OfferID: uuid.New(), Message: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Requests.Create(f.ctx, requester, CreateRequestInput{
		OfferID: f.offer.ID,
		Message: "hi",
		PreferredTimes: []model.TimeWindow{{
			Start: testNow.Add(2 * time.Hour),
			End:   testNow.Add(time.Hour),
		}},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRequest_ListMine(t *testing.T) {
	f := newFixture(t)
	req, requester := f.request()

	sent, err := f.svc.Requests.ListMine(f.ctx, requester, model.RequestBoxSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, req.ID, sent[0].ID)
	assert.Equal(t, f.offer.Title, sent[0].OfferTitle)

	received, err := f.svc.Requests.ListMine(f.ctx, f.owner, model.RequestBoxReceived)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, requester, received[0].RequesterID)

	_, err = f.svc.Requests.ListMine(f.ctx, requester, "archive")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAccept_ConcurrentReserveNeverOverbooks(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(3, time.Hour)

	const n = 20
	reqs := make([]*model.Request, n)
	for i := range reqs {
		reqs[i], _ = f.request()
	}

	var ok, unavailable atomic.Int32
	var g errgroup.Group
	for _, req := range reqs {
		g.Go(func() error {
			_, err := f.svc.Requests.Accept(context.Background(), req.ID, f.owner, AcceptInput{SlotID: &slot.ID})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrSlotUnavailable):
				unavailable.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 3, ok.Load())
	assert.EqualValues(t, n-3, unavailable.Load())

	reloaded := f.reloadSlot(slot.ID)
	assert.Equal(t, 3, reloaded.Reserved)
	assert.Equal(t, model.SlotStatusFull, reloaded.Status)
}

func TestAccept_ConcurrentGiftNeverDoubleConsumes(t *testing.T) {
	f := newFixture(t)
	f.gift(2)
	f.gift(3)

	const n = 12
	reqs := make([]*model.Request, n)
	for i := range reqs {
		reqs[i], _ = f.request()
	}

	var withGift atomic.Int32
	var g errgroup.Group
	for _, req := range reqs {
		g.Go(func() error {
			e, err := f.svc.Requests.Accept(context.Background(), req.ID, f.owner, AcceptInput{UseGift: true})
			if err != nil {
				return err
			}
			if e.GiftID != nil {
				withGift.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 5, withGift.Load())

	gifts, err := f.svc.Gifts.List(f.ctx, f.offer.ID)
	require.NoError(t, err)
	for _, gift := range gifts {
		assert.Equal(t, gift.Units, gift.Used)
		assert.Equal(t, model.GiftStatusExhausted, gift.Status)
	}
}

func TestAccept_ConcurrentAcceptOfSameRequest(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(5, time.Hour)
	req, _ := f.request()

	var ok, invalid atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := f.svc.Requests.Accept(context.Background(), req.ID, f.owner, AcceptInput{SlotID: &slot.ID})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInvalidStateTransition):
				invalid.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 7, invalid.Load())
	assert.Equal(t, 1, f.reloadSlot(slot.ID).Reserved)
}
