package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *Services
	owner uuid.UUID
	offer *model.Offer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := func() time.Time { return testNow }
	store := memory.NewStore(memory.WithClock(clock))
	svc := New(store, zap.NewNop(), WithClock(clock))

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		svc:   svc,
		owner: uuid.New(),
	}

	offer, err := svc.Offers.Create(f.ctx, f.owner, CreateOfferInput{
		Type:      "legal",
		Title:     "Tenant rights consult",
		FeeType:   "free",
		Tags:      []string{"housing"},
		Languages: []string{"en"},
		Region:    "north",
	})
	require.NoError(t, err)
	f.offer = offer
	return f
}

func (f *fixture) slot(capacity int, startIn time.Duration) *model.Slot {
	f.t.Helper()
	start := testNow.Add(startIn)
	slot, err := f.svc.Slots.Create(f.ctx, f.owner, f.offer.ID, CreateSlotInput{
		StartAt:  start,
		EndAt:    start.Add(time.Hour),
		Capacity: capacity,
	})
	require.NoError(f.t, err)
	return slot
}

func (f *fixture) gift(units int) *model.Gift {
	f.t.Helper()
	gift, err := f.svc.Gifts.Create(f.ctx, uuid.New(), f.offer.ID, CreateGiftInput{Units: units})
	require.NoError(f.t, err)
	return gift
}

func (f *fixture) request() (*model.Request, uuid.UUID) {
	f.t.Helper()
	requester := uuid.New()
	req, err := f.svc.Requests.Create(f.ctx, requester, CreateRequestInput{
		OfferID: f.offer.ID,
		Message: "I need help with my lease",
	})
	require.NoError(f.t, err)
	return req, requester
}

func (f *fixture) reloadSlot(id uuid.UUID) *model.Slot {
	f.t.Helper()
	slot, err := f.store.GetSlot(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, slot)
	return slot
}

func (f *fixture) reloadRequest(id uuid.UUID) *model.Request {
	f.t.Helper()
	req, err := f.store.GetRequest(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, req)
	return req
}
