package httpapi

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/service"
)

func (s *Server) listEngagements(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Engagements.ListMine(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getEngagement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	eng, err := s.svc.Engagements.Get(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

type updateEngagementBody struct {
	Action      string     `json:"action" validate:"required,oneof=schedule complete cancel"`
	ScheduledAt *time.Time `json:"scheduled_at" validate:"required_if=Action schedule"`
	Reason      string     `json:"reason" validate:"max=1000"`
}

func (s *Server) updateEngagement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body updateEngagementBody
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	actor := actorFrom(r.Context())
	var eng *model.Engagement
	switch body.Action {
	case "schedule":
		eng, err = s.svc.Engagements.Schedule(r.Context(), id, actor, *body.ScheduledAt)
	case "complete":
		eng, err = s.svc.Engagements.Complete(r.Context(), id, actor)
	case "cancel":
		eng, err = s.svc.Engagements.Cancel(r.Context(), id, actor, body.Reason)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

type createReviewBody struct {
	Stars   int    `json:"stars" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body createReviewBody
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	review, err := s.svc.Reviews.Create(r.Context(), id, actorFrom(r.Context()), service.CreateReviewInput{
		Stars:   body.Stars,
		Comment: body.Comment,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	reviews, err := s.svc.Reviews.List(r.Context(), offerID, limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
