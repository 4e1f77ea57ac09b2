package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func seedOffer(t *testing.T, s *Store) *model.Offer {
	t.Helper()
	offer := &model.Offer{OwnerID: uuid.New(), Title: "Consult", Visibility: model.VisibilityPublic}
	require.NoError(t, s.CreateOffer(context.Background(), offer))
	return offer
}

func seedSlot(t *testing.T, s *Store, offerID uuid.UUID, capacity int) *model.Slot {
	t.Helper()
	start := time.Now().Add(time.Hour)
	slot := &model.Slot{OfferID: offerID, StartAt: start, EndAt: start.Add(time.Hour), Capacity: capacity}
	require.NoError(t, s.CreateSlot(context.Background(), slot))
	return slot
}

func TestInTx_RollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)
	slot := seedSlot(t, s, offer.ID, 2)

	err := s.InTx(ctx, func(q repository.Queries) error {
		_, applied, err := q.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{HasCapacity: true}, model.SlotDelta{Reserved: 1})
		require.NoError(t, err)
		require.True(t, applied)
		require.NoError(t, q.CreateGift(ctx, &model.Gift{OfferID: offer.ID, SponsorID: uuid.New(), Units: 1}))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Reserved)

	gifts, err := s.ListGifts(ctx, offer.ID)
	require.NoError(t, err)
	assert.Empty(t, gifts)
}

func TestInTx_SavepointRollsBackOnlyInnerScope(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)
	slot := seedSlot(t, s, offer.ID, 3)

	reserve := func(q repository.Queries) {
		_, applied, err := q.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{HasCapacity: true}, model.SlotDelta{Reserved: 1})
		require.NoError(t, err)
		require.True(t, applied)
	}

	err := s.InTx(ctx, func(q repository.Queries) error {
		reserve(q)
		inner := q.InTx(ctx, func(sp repository.Queries) error {
			reserve(sp)
			return errBoom
		})
		require.ErrorIs(t, inner, errBoom)

		require.NoError(t, q.InTx(ctx, func(sp repository.Queries) error {
			reserve(sp)
			return nil
		}))
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Reserved)
	assert.Equal(t, model.SlotStatusOpen, got.Status)
}

func TestConditionalUpdateSlot_Predicates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)
	slot := seedSlot(t, s, offer.ID, 1)

	_, applied, err := s.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{OfferID: uuid.New()}, model.SlotDelta{Reserved: 1})
	require.NoError(t, err)
	assert.False(t, applied)

	updated, applied, err := s.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{OfferID: offer.ID, HasCapacity: true}, model.SlotDelta{Reserved: 1})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, model.SlotStatusFull, updated.Status)

	_, applied, err = s.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{HasCapacity: true}, model.SlotDelta{Reserved: 1})
	require.NoError(t, err)
	assert.False(t, applied)

	cancelled, applied, err := s.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{}, model.SlotDelta{Cancel: true})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, model.SlotStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, cancelled.Reserved)

	released, applied, err := s.ConditionalUpdateSlot(ctx, slot.ID, model.SlotPredicate{}, model.SlotDelta{Reserved: -1})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, model.SlotStatusCancelled, released.Status)
	assert.Equal(t, 1, released.Reserved)

	_, applied, err = s.ConditionalUpdateSlot(ctx, uuid.New(), model.SlotPredicate{}, model.SlotDelta{Reserved: 1})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestLockNextGift_SkipLockedAndWait(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)
	g := &model.Gift{OfferID: offer.ID, SponsorID: uuid.New(), Units: 1}
	require.NoError(t, s.CreateGift(ctx, g))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(ctx, func(q repository.Queries) error {
			got, err := q.LockNextGift(ctx, offer.ID, time.Now(), false)
			if err != nil {
				return err
			}
			got.Used = 1
			got.Status = model.GiftStatusExhausted
			if err := q.UpdateGiftUsage(ctx, got); err != nil {
				return err
			}
			close(locked)
			<-release
			return errBoom
		})
	}()
	<-locked

	err := s.InTx(ctx, func(q repository.Queries) error {
		// строка занята другой транзакцией
		got, err := q.LockNextGift(ctx, offer.ID, time.Now(), false)
		require.NoError(t, err)
		assert.Nil(t, got)
		return nil
	})
	require.NoError(t, err)

	// после отката другой транзакции пул снова пригоден
	close(release)
	require.ErrorIs(t, <-done, errBoom)

	err = s.InTx(ctx, func(q repository.Queries) error {
		got, err := q.LockNextGift(ctx, offer.ID, time.Now(), true)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, g.ID, got.ID)
		return nil
	})
	require.NoError(t, err)
}

// holdGift списывает единицу пула в отдельной транзакции и держит её до release
func holdGift(t *testing.T, s *Store, offerID uuid.UUID, release <-chan error) (<-chan struct{}, <-chan error) {
	t.Helper()
	locked := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(context.Background(), func(q repository.Queries) error {
			got, err := q.LockNextGift(context.Background(), offerID, time.Now(), false)
			if err != nil {
				return err
			}
			got.Used++
			if got.Used >= got.Units {
				got.Status = model.GiftStatusExhausted
			}
			if err := q.UpdateGiftUsage(context.Background(), got); err != nil {
				return err
			}
			close(locked)
			return <-release
		})
	}()
	return locked, done
}

func TestLockNextGift_WaiterGetsPoolAfterHolderRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)
	g := &model.Gift{OfferID: offer.ID, SponsorID: uuid.New(), Units: 1}
	require.NoError(t, s.CreateGift(ctx, g))

	release := make(chan error)
	locked, done := holdGift(t, s, offer.ID, release)
	<-locked

	// для остальных незакоммиченное списание не видно
	left, err := s.SumAvailableGiftUnits(ctx, offer.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	gifts, err := s.ListGifts(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	assert.Equal(t, 0, gifts[0].Used)

	got := make(chan *model.Gift, 1)
	waited := make(chan error, 1)
	go func() {
		waited <- s.InTx(ctx, func(q repository.Queries) error {
			g, err := q.LockNextGift(ctx, offer.ID, time.Now(), true)
			got <- g
			return err
		})
	}()

	select {
	case <-waited:
		t.Fatal("waiting pass returned while the pool was held")
	case <-time.After(50 * time.Millisecond):
	}

	release <- errBoom
	require.ErrorIs(t, <-done, errBoom)
	require.NoError(t, <-waited)

	picked := <-got
	require.NotNil(t, picked)
	assert.Equal(t, g.ID, picked.ID)
	assert.Equal(t, 0, picked.Used)
}

func TestLockNextGift_WaiterSeesCommittedExhaustion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)
	require.NoError(t, s.CreateGift(ctx, &model.Gift{OfferID: offer.ID, SponsorID: uuid.New(), Units: 1}))

	release := make(chan error)
	locked, done := holdGift(t, s, offer.ID, release)
	<-locked

	waited := make(chan *model.Gift, 1)
	go func() {
		_ = s.InTx(ctx, func(q repository.Queries) error {
			g, err := q.LockNextGift(ctx, offer.ID, time.Now(), true)
			waited <- g
			return err
		})
	}()

	release <- nil
	require.NoError(t, <-done)
	assert.Nil(t, <-waited)

	left, err := s.SumAvailableGiftUnits(ctx, offer.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, left)
}

func TestCreateGift_InvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)

	created := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(ctx, func(q repository.Queries) error {
			if err := q.CreateGift(ctx, &model.Gift{OfferID: offer.ID, SponsorID: uuid.New(), Units: 3}); err != nil {
				return err
			}
			close(created)
			<-release
			return nil
		})
	}()
	<-created

	left, err := s.SumAvailableGiftUnits(ctx, offer.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	close(release)
	require.NoError(t, <-done)

	left, err = s.SumAvailableGiftUnits(ctx, offer.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, left)
}

func TestLock_WaitHonoursContext(t *testing.T) {
	s := NewStore()
	offer := seedOffer(t, s)
	req := &model.Request{OfferID: offer.ID, RequesterID: uuid.New(), Message: "hi"}
	require.NoError(t, s.CreateRequest(context.Background(), req))

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.InTx(context.Background(), func(q repository.Queries) error {
			_, err := q.LockRequest(context.Background(), req.ID)
			close(holding)
			<-release
			return err
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.InTx(ctx, func(q repository.Queries) error {
		_, err := q.LockRequest(ctx, req.ID)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	offer := seedOffer(t, s)

	requestID := uuid.New()
	require.NoError(t, s.CreateEngagement(ctx, &model.Engagement{RequestID: requestID, State: model.EngagementStateAccepted}))
	err := s.CreateEngagement(ctx, &model.Engagement{RequestID: requestID, State: model.EngagementStateAccepted})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	reviewer := uuid.New()
	require.NoError(t, s.CreateReview(ctx, &model.Review{OfferID: offer.ID, EngagementID: uuid.New(), ReviewerID: reviewer, Stars: 5, Comment: "a"}))
	err = s.CreateReview(ctx, &model.Review{OfferID: offer.ID, EngagementID: uuid.New(), ReviewerID: reviewer, Stars: 4, Comment: "b"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}
