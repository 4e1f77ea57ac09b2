package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
)

func (q *Queries) CreateSlot(ctx context.Context, slot *model.Slot) error {
	return q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		id, now := d.nextLocked()
		slot.ID = id
		slot.CreatedAt = now
		slot.Reserved = 0
		slot.Status = model.SlotStatusOpen
		d.slots[id] = *slot
		t.record(func() { delete(d.slots, id) })
		return nil
	})
}

func (q *Queries) GetSlot(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.slots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (d *db) sortSlotsLocked(slots []*model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		return d.before(slots[i].ID, slots[i].StartAt, slots[j].ID, slots[j].StartAt)
	})
}

func (q *Queries) ListSlots(ctx context.Context, f model.SlotFilter) ([]*model.Slot, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	slots := []*model.Slot{}
	for _, s := range d.slots {
		if s.OfferID != f.OfferID {
			continue
		}
		if f.From != nil && s.StartAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !s.StartAt.Before(*f.To) {
			continue
		}
		if f.OnlyOpen && s.Status != model.SlotStatusOpen {
			continue
		}
		if f.Bookable && s.Reserved >= s.Capacity {
			continue
		}
		slots = append(slots, &s)
	}
	d.sortSlotsLocked(slots)

	return page(slots, f.Limit, 0), nil
}

func (q *Queries) NextSlots(ctx context.Context, offerIDs []uuid.UUID, after time.Time, perOffer int) (map[uuid.UUID][]*model.Slot, error) {
	result := make(map[uuid.UUID][]*model.Slot, len(offerIDs))
	if len(offerIDs) == 0 || perOffer <= 0 {
		return result, nil
	}

	wanted := make(map[uuid.UUID]bool, len(offerIDs))
	for _, id := range offerIDs {
		wanted[id] = true
	}

	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.slots {
		if !wanted[s.OfferID] || s.Status != model.SlotStatusOpen || s.Reserved >= s.Capacity || !s.StartAt.After(after) {
			continue
		}
		result[s.OfferID] = append(result[s.OfferID], &s)
	}
	for id, slots := range result {
		d.sortSlotsLocked(slots)
		result[id] = page(slots, perOffer, 0)
	}
	return result, nil
}

func (q *Queries) ListCalendarSlots(ctx context.Context, f model.CalendarFilter) ([]*model.CalendarSlot, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	slots := []*model.Slot{}
	for _, s := range d.slots {
		o, ok := d.offers[s.OfferID]
		if !ok || !matchOffer(o, f.Offers) {
			continue
		}
		if s.Status != model.SlotStatusOpen || s.Reserved >= s.Capacity {
			continue
		}
		if s.StartAt.Before(f.From) || !s.StartAt.Before(f.To) {
			continue
		}
		slots = append(slots, &s)
	}
	d.sortSlotsLocked(slots)

	out := make([]*model.CalendarSlot, 0, len(slots))
	for _, s := range slots {
		o := d.offers[s.OfferID]
		out = append(out, &model.CalendarSlot{
			OfferID:    o.ID,
			OfferTitle: o.Title,
			OwnerID:    o.OwnerID,
			Region:     o.Region,
			SlotID:     s.ID,
			StartAt:    s.StartAt,
			EndAt:      s.EndAt,
			Capacity:   s.Capacity,
			Reserved:   s.Reserved,
		})
	}
	return out, nil
}

// applySlotDelta та же арифметика, что в UPDATE postgres-реализации
func applySlotDelta(s model.Slot, delta model.SlotDelta) model.Slot {
	if delta.Cancel || s.Status == model.SlotStatusCancelled {
		s.Status = model.SlotStatusCancelled
		return s
	}
	s.Reserved = max(s.Reserved+delta.Reserved, 0)
	if s.Reserved >= s.Capacity {
		s.Status = model.SlotStatusFull
	} else {
		s.Status = model.SlotStatusOpen
	}
	return s
}

func slotMatches(s model.Slot, pred model.SlotPredicate, delta model.SlotDelta) bool {
	if pred.OfferID != uuid.Nil && s.OfferID != pred.OfferID {
		return false
	}
	if pred.NotCancelled && s.Status == model.SlotStatusCancelled {
		return false
	}
	if pred.HasCapacity && s.Reserved+delta.Reserved > s.Capacity {
		return false
	}
	return true
}

func (q *Queries) ConditionalUpdateSlot(ctx context.Context, id uuid.UUID, pred model.SlotPredicate, delta model.SlotDelta) (*model.Slot, bool, error) {
	var out *model.Slot
	err := q.exec(func(t *txn) error {
		d := q.db

		d.mu.Lock()
		_, exists := d.slots[id]
		d.mu.Unlock()
		if !exists {
			return nil
		}

		// UPDATE ждёт блокировку строки, как в postgres
		if _, err := d.lock(ctx, t, id, true); err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		s, ok := d.slots[id]
		if !ok || !slotMatches(s, pred, delta) {
			return nil
		}
		updated := applySlotDelta(s, delta)
		d.slots[id] = updated
		t.record(func() { d.slots[id] = s })
		out = &updated
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (d *db) giftEligibleLocked(id uuid.UUID, offerID uuid.UUID, at time.Time) (*model.Gift, bool) {
	g, ok := d.gifts[id]
	if !ok || g.OfferID != offerID || !g.IsEligible(at) {
		return nil, false
	}
	return &g, true
}

// rememberGiftLocked сохраняет образ пула до первого изменения в транзакции, d.mu должен быть захвачен
func (d *db) rememberGiftLocked(t *txn, id uuid.UUID) {
	if _, ok := d.giftBefore[id]; ok {
		return
	}
	g, existed := d.gifts[id]
	d.giftBefore[id] = giftImage{owner: t.root, gift: g, existed: existed}
}

// visibleGiftsLocked пулы так, как их видит t: свои изменения целиком,
// чужие незакоммиченные не видны. t == nil читает только закоммиченное.
func (d *db) visibleGiftsLocked(t *txn) []model.Gift {
	var root *txn
	if t != nil {
		root = t.root
	}

	gifts := make([]model.Gift, 0, len(d.gifts))
	for id, g := range d.gifts {
		if img, ok := d.giftBefore[id]; ok && img.owner != root {
			continue
		}
		gifts = append(gifts, g)
	}
	for _, img := range d.giftBefore {
		if img.owner != root && img.existed {
			gifts = append(gifts, img.gift)
		}
	}
	return gifts
}

// eligibleGiftIDs пригодные пулы, самые старые первыми
func (d *db) eligibleGiftIDs(t *txn, offerID uuid.UUID, at time.Time) []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	gifts := []model.Gift{}
	for _, g := range d.visibleGiftsLocked(t) {
		if g.OfferID == offerID && g.IsEligible(at) {
			gifts = append(gifts, g)
		}
	}
	sort.Slice(gifts, func(i, j int) bool {
		return d.before(gifts[i].ID, gifts[i].CreatedAt, gifts[j].ID, gifts[j].CreatedAt)
	})

	ids := make([]uuid.UUID, len(gifts))
	for i, g := range gifts {
		ids[i] = g.ID
	}
	return ids
}

func (q *Queries) CreateGift(ctx context.Context, gift *model.Gift) error {
	return q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		id, now := d.nextLocked()
		gift.ID = id
		gift.CreatedAt = now
		gift.Used = 0
		gift.Status = model.GiftStatusActive
		d.rememberGiftLocked(t, id)
		d.gifts[id] = *gift
		t.record(func() { delete(d.gifts, id) })
		return nil
	})
}

func (q *Queries) ListGifts(ctx context.Context, offerID uuid.UUID) ([]*model.Gift, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	gifts := []*model.Gift{}
	for _, g := range d.visibleGiftsLocked(q.tx) {
		if g.OfferID == offerID {
			gifts = append(gifts, &g)
		}
	}
	sort.Slice(gifts, func(i, j int) bool {
		return d.before(gifts[i].ID, gifts[i].CreatedAt, gifts[j].ID, gifts[j].CreatedAt)
	})
	return gifts, nil
}

func (q *Queries) LockNextGift(ctx context.Context, offerID uuid.UUID, at time.Time, wait bool) (*model.Gift, error) {
	var out *model.Gift
	err := q.exec(func(t *txn) error {
		d := q.db
		ids := d.eligibleGiftIDs(t, offerID, at)

		if wait {
			if len(ids) == 0 {
				return nil
			}
			if _, err := d.lock(ctx, t, ids[0], true); err != nil {
				return err
			}
			d.mu.Lock()
			out, _ = d.giftEligibleLocked(ids[0], offerID, at)
			d.mu.Unlock()
			return nil
		}

		for _, id := range ids {
			ok, err := d.lock(ctx, t, id, false)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			d.mu.Lock()
			g, eligible := d.giftEligibleLocked(id, offerID, at)
			d.mu.Unlock()
			if eligible {
				out = g
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (q *Queries) UpdateGiftUsage(ctx context.Context, gift *model.Gift) error {
	return q.exec(func(t *txn) error {
		d := q.db
		if _, err := d.lock(ctx, t, gift.ID, true); err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		g, ok := d.gifts[gift.ID]
		if !ok {
			return errGiftNotFound
		}
		d.rememberGiftLocked(t, gift.ID)
		old := g
		g.Used = gift.Used
		g.Status = gift.Status
		d.gifts[gift.ID] = g
		t.record(func() { d.gifts[gift.ID] = old })
		return nil
	})
}

func (q *Queries) SumAvailableGiftUnits(ctx context.Context, offerID uuid.UUID, at time.Time) (int, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	total := 0
	for _, g := range d.visibleGiftsLocked(q.tx) {
		if g.OfferID == offerID && g.IsEligible(at) {
			total += g.Remaining()
		}
	}
	return total, nil
}
