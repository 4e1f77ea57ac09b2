package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/controller/keyboard"
	"github.com/Freeeeeet/offer_broker/internal/controller/state"
	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository/memory"
	"github.com/Freeeeeet/offer_broker/internal/service"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCallback(t *testing.T) {
	id := uuid.New()

	for action := range knownActions {
		data := callbackData(action, id)
		assert.LessOrEqual(t, len(data), keyboard.MaxCallbackData, data)

		got, gotID, err := parseCallback(data)
		require.NoError(t, err)
		assert.Equal(t, action, got)
		assert.Equal(t, id, gotID)
	}

	for _, bad := range []string{"", "accept_request", "accept_request:42", "drop_table:" + id.String()} {
		_, _, err := parseCallback(bad)
		assert.ErrorIs(t, err, errInvalidFormat, bad)
	}
}

type botFixture struct {
	ctx   context.Context
	h     *Handlers
	svc   *service.Services
	owner uuid.UUID
	offer *model.Offer
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := service.New(memory.NewStore(memory.WithClock(clock)), zap.NewNop(), service.WithClock(clock))

	ctx := context.Background()
	owner, err := svc.Users.RegisterUser(ctx, 100, "owner", "Olga", "", "ru")
	require.NoError(t, err)
	offer, err := svc.Offers.Create(ctx, owner.ID, service.CreateOfferInput{Title: "Career advice"})
	require.NoError(t, err)

	return &botFixture{
		ctx:   ctx,
		h:     NewHandlers(svc, state.NewManager(), zap.NewNop()),
		svc:   svc,
		owner: owner.ID,
		offer: offer,
	}
}

func (f *botFixture) request(t *testing.T) (*model.Request, uuid.UUID) {
	t.Helper()
	requester := uuid.New()
	req, err := f.svc.Requests.Create(f.ctx, requester, service.CreateRequestInput{
		OfferID: f.offer.ID,
		Message: "Need a CV review",
	})
	require.NoError(t, err)
	return req, requester
}

func TestActor(t *testing.T) {
	f := newBotFixture(t)

	id, err := f.h.actor(f.ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, f.owner, id)

	_, err = f.h.actor(f.ctx, 999)
	assert.ErrorIs(t, err, errNotRegistered)
}

func TestPerform_AcceptAndComplete(t *testing.T) {
	f := newBotFixture(t)
	req, requester := f.request(t)

	_, err := f.h.perform(f.ctx, requester, AcceptRequest, req.ID)
	assert.ErrorIs(t, err, service.ErrForbidden, "requester cannot accept own request")

	reply, err := f.h.perform(f.ctx, f.owner, AcceptWithGift, req.ID)
	require.NoError(t, err)
	assert.Contains(t, reply, "Заявка принята")
	assert.Contains(t, reply, "Подарочных мест не осталось")

	_, err = f.h.perform(f.ctx, f.owner, AcceptRequest, req.ID)
	assert.ErrorIs(t, err, service.ErrInvalidStateTransition)

	list, err := f.svc.Engagements.ListMine(f.ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// завершить можно только назначенную встречу
	_, err = f.h.perform(f.ctx, f.owner, CompleteEngagement, list[0].ID)
	assert.ErrorIs(t, err, service.ErrInvalidStateTransition)
}

func TestDialogs_DeclineAndCancel(t *testing.T) {
	f := newBotFixture(t)

	req, _ := f.request(t)
	reply, err := f.h.finishDialog(f.ctx, f.owner, state.Dialog{State: state.StateDeclineReason, TargetID: req.ID}, "fully booked")
	require.NoError(t, err)
	assert.Contains(t, reply, "отклонена")

	got, err := f.svc.Requests.ListMine(f.ctx, f.owner, model.RequestBoxReceived)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.RequestStatusDeclined, got[0].Status)
	assert.Equal(t, "fully booked", got[0].DeclineReason)

	req2, requester := f.request(t)
	_, err = f.h.perform(f.ctx, f.owner, AcceptRequest, req2.ID)
	require.NoError(t, err)
	list, err := f.svc.Engagements.ListMine(f.ctx, requester)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.h.finishDialog(f.ctx, requester, state.Dialog{State: state.StateCancelReason, TargetID: list[0].ID}, "")
	require.NoError(t, err)

	eng, err := f.svc.Engagements.Get(f.ctx, list[0].ID, requester)
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStateCancelled, eng.State)
}

func TestWithdraw(t *testing.T) {
	f := newBotFixture(t)
	req, requester := f.request(t)

	_, err := f.h.perform(f.ctx, f.owner, WithdrawRequest, req.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	reply, err := f.h.perform(f.ctx, requester, WithdrawRequest, req.ID)
	require.NoError(t, err)
	assert.Contains(t, reply, "отозвана")
}

func TestKeyboards(t *testing.T) {
	viewer := uuid.New()

	assert.Nil(t, sentKeyboard(&model.Request{ID: uuid.New(), Status: model.RequestStatusAccepted}))
	assert.NotNil(t, sentKeyboard(&model.Request{ID: uuid.New(), Status: model.RequestStatusPending}))

	rows := func(m models.ReplyMarkup) int {
		if m == nil {
			return 0
		}
		return len(m.(*models.InlineKeyboardMarkup).InlineKeyboard)
	}

	scheduled := &model.Engagement{ID: uuid.New(), PractitionerID: viewer, State: model.EngagementStateScheduled}
	assert.Equal(t, 2, rows(engagementKeyboard(scheduled, viewer)))
	assert.Equal(t, 1, rows(engagementKeyboard(scheduled, uuid.New())), "requester only cancels")

	done := &model.Engagement{ID: uuid.New(), PractitionerID: viewer, State: model.EngagementStateCompleted}
	assert.Equal(t, 0, rows(engagementKeyboard(done, viewer)))
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, userMessage(service.ErrSlotUnavailable), "нет мест")
	assert.Contains(t, userMessage(errNotRegistered), "/start")
	assert.Contains(t, userMessage(assert.AnError), "Произошла ошибка")
}
