package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
)

func cloneRequest(r model.Request) *model.Request {
	r.PreferredTimes = slices.Clone(r.PreferredTimes)
	return &r
}

func (q *Queries) CreateRequest(ctx context.Context, req *model.Request) error {
	return q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		id, now := d.nextLocked()
		req.ID = id
		req.Status = model.RequestStatusPending
		req.CreatedAt = now
		req.UpdatedAt = now
		if req.PreferredTimes == nil {
			req.PreferredTimes = []model.TimeWindow{}
		}
		stored := cloneRequest(*req)
		stored.OfferTitle = ""
		stored.OfferOwnerID = uuid.Nil
		d.requests[id] = *stored
		t.record(func() { delete(d.requests, id) })
		return nil
	})
}

func (q *Queries) GetRequest(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(r), nil
}

func (q *Queries) LockRequest(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var out *model.Request
	err := q.exec(func(t *txn) error {
		d := q.db

		d.mu.Lock()
		_, ok := d.requests[id]
		d.mu.Unlock()
		if !ok {
			return nil
		}

		if _, err := d.lock(ctx, t, id, true); err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if r, ok := d.requests[id]; ok {
			out = cloneRequest(r)
		}
		return nil
	})
	return out, err
}

func (q *Queries) TransitionRequest(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, declineReason string, at time.Time) (bool, error) {
	applied := false
	err := q.exec(func(t *txn) error {
		d := q.db
		if _, err := d.lock(ctx, t, id, true); err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		r, ok := d.requests[id]
		if !ok || r.Status != from {
			return nil
		}
		old := r
		r.Status = to
		r.DeclineReason = declineReason
		r.UpdatedAt = at
		d.requests[id] = r
		t.record(func() { d.requests[id] = old })
		applied = true
		return nil
	})
	return applied, err
}

func (q *Queries) listRequests(match func(r model.Request, o model.Offer) bool) []*model.Request {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []*model.Request{}
	for _, r := range d.requests {
		o, ok := d.offers[r.OfferID]
		if !ok || !match(r, o) {
			continue
		}
		c := cloneRequest(r)
		c.OfferTitle = o.Title
		c.OfferOwnerID = o.OwnerID
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return d.before(out[j].ID, out[j].CreatedAt, out[i].ID, out[i].CreatedAt)
	})
	return out
}

func (q *Queries) ListRequestsByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.Request, error) {
	return q.listRequests(func(r model.Request, _ model.Offer) bool {
		return r.RequesterID == requesterID
	}), nil
}

func (q *Queries) ListRequestsForOwner(ctx context.Context, ownerID uuid.UUID, onlyPending bool) ([]*model.Request, error) {
	return q.listRequests(func(r model.Request, o model.Offer) bool {
		return o.OwnerID == ownerID && (!onlyPending || r.IsPending())
	}), nil
}

func cloneEngagement(e model.Engagement) *model.Engagement {
	e.Audit = slices.Clone(e.Audit)
	return &e
}

func (q *Queries) CreateEngagement(ctx context.Context, e *model.Engagement) error {
	return q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		for _, existing := range d.engagements {
			if existing.RequestID == e.RequestID {
				return fmt.Errorf("create engagement: %w", repository.ErrDuplicate)
			}
		}

		id, now := d.nextLocked()
		e.ID = id
		e.CreatedAt = now
		if e.Audit == nil {
			e.Audit = []model.AuditEntry{}
		}
		d.engagements[id] = *cloneEngagement(*e)
		t.record(func() { delete(d.engagements, id) })
		return nil
	})
}

func (q *Queries) GetEngagement(ctx context.Context, id uuid.UUID) (*model.Engagement, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.engagements[id]
	if !ok {
		return nil, nil
	}
	return cloneEngagement(e), nil
}

func (q *Queries) LockEngagement(ctx context.Context, id uuid.UUID) (*model.Engagement, error) {
	var out *model.Engagement
	err := q.exec(func(t *txn) error {
		d := q.db

		d.mu.Lock()
		_, ok := d.engagements[id]
		d.mu.Unlock()
		if !ok {
			return nil
		}

		if _, err := d.lock(ctx, t, id, true); err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if e, ok := d.engagements[id]; ok {
			out = cloneEngagement(e)
		}
		return nil
	})
	return out, err
}

func (q *Queries) UpdateEngagement(ctx context.Context, e *model.Engagement, entry model.AuditEntry) error {
	return q.exec(func(t *txn) error {
		d := q.db
		if _, err := d.lock(ctx, t, e.ID, true); err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		stored, ok := d.engagements[e.ID]
		if !ok {
			return errEngagementNotFound
		}
		old := stored
		stored.State = e.State
		stored.ScheduledAt = e.ScheduledAt
		stored.CancellationReason = e.CancellationReason
		stored.CompletedAt = e.CompletedAt
		stored.Audit = append(slices.Clone(stored.Audit), entry)
		d.engagements[e.ID] = stored
		t.record(func() { d.engagements[e.ID] = old })

		e.Audit = slices.Clone(stored.Audit)
		return nil
	})
}

func (q *Queries) ListEngagementsByUser(ctx context.Context, userID uuid.UUID) ([]*model.Engagement, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []*model.Engagement{}
	for _, e := range d.engagements {
		if e.IsParty(userID) {
			out = append(out, cloneEngagement(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return d.before(out[j].ID, out[j].CreatedAt, out[i].ID, out[i].CreatedAt)
	})
	return out, nil
}
