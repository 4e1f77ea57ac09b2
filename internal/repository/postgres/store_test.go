package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/Freeeeeet/offer_broker/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Интеграционные тесты, нужен TEST_DB_DSN с пустой базой
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	require.NoError(t, goose.UpContext(ctx, db, "."))

	return NewStore(pool)
}

func TestPostgres_SlotReserveAndCancel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	offer := &model.Offer{OwnerID: uuid.New(), Title: "Consult", Visibility: model.VisibilityPublic}
	require.NoError(t, s.CreateOffer(ctx, offer))

	start := time.Now().Add(time.Hour).UTC()
	slot := &model.Slot{OfferID: offer.ID, StartAt: start, EndAt: start.Add(time.Hour), Capacity: 1}
	require.NoError(t, s.CreateSlot(ctx, slot))

	reserve := model.SlotPredicate{OfferID: offer.ID, NotCancelled: true, HasCapacity: true}
	updated, applied, err := s.ConditionalUpdateSlot(ctx, slot.ID, reserve, model.SlotDelta{Reserved: 1})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, model.SlotStatusFull, updated.Status)

	_, applied, err = s.ConditionalUpdateSlot(ctx, slot.ID, reserve, model.SlotDelta{Reserved: 1})
	require.NoError(t, err)
	assert.False(t, applied)

	cancelled, applied, err := s.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{}, model.SlotDelta{Cancel: true})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, model.SlotStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, cancelled.Reserved)
}

func TestPostgres_GiftSkipLocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	offer := &model.Offer{OwnerID: uuid.New(), Title: "Consult", Visibility: model.VisibilityPublic}
	require.NoError(t, s.CreateOffer(ctx, offer))
	first := &model.Gift{OfferID: offer.ID, SponsorID: uuid.New(), Units: 1}
	require.NoError(t, s.CreateGift(ctx, first))
	second := &model.Gift{OfferID: offer.ID, SponsorID: uuid.New(), Units: 1}
	require.NoError(t, s.CreateGift(ctx, second))

	errStop := errors.New("stop")
	err := s.InTx(ctx, func(q1 repository.Queries) error {
		g1, err := q1.LockNextGift(ctx, offer.ID, time.Now(), false)
		require.NoError(t, err)
		require.Equal(t, first.ID, g1.ID)

		inner := s.InTx(ctx, func(q2 repository.Queries) error {
			g2, err := q2.LockNextGift(ctx, offer.ID, time.Now(), false)
			require.NoError(t, err)
			require.NotNil(t, g2)
			assert.Equal(t, second.ID, g2.ID)
			return nil
		})
		require.NoError(t, inner)
		return errStop
	})
	require.ErrorIs(t, err, errStop)
}

func TestPostgres_DuplicateReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	offer := &model.Offer{OwnerID: uuid.New(), Title: "Consult", Visibility: model.VisibilityPublic}
	require.NoError(t, s.CreateOffer(ctx, offer))
	req := &model.Request{OfferID: offer.ID, RequesterID: uuid.New(), Message: "hi"}
	require.NoError(t, s.CreateRequest(ctx, req))
	e := &model.Engagement{RequestID: req.ID, PractitionerID: offer.OwnerID, RequesterID: req.RequesterID, State: model.EngagementStateCompleted}
	require.NoError(t, s.CreateEngagement(ctx, e))

	review := &model.Review{OfferID: offer.ID, EngagementID: e.ID, ReviewerID: req.RequesterID, Stars: 5, Comment: "good"}
	require.NoError(t, s.CreateReview(ctx, review))
	err := s.CreateReview(ctx, &model.Review{OfferID: offer.ID, EngagementID: e.ID, ReviewerID: req.RequesterID, Stars: 4, Comment: "again"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}
