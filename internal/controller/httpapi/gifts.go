package httpapi

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/service"
)

type createGiftBody struct {
	Units      int        `json:"units" validate:"required,min=1,max=1000"`
	Note       string     `json:"note" validate:"max=500"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (s *Server) createGift(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body createGiftBody
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	gift, err := s.svc.Gifts.Create(r.Context(), actorFrom(r.Context()), offerID, service.CreateGiftInput{
		Units:      body.Units,
		Note:       body.Note,
		ValidUntil: body.ValidUntil,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gift)
}

func (s *Server) listGifts(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	gifts, err := s.svc.Gifts.List(r.Context(), offerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gifts)
}

func (s *Server) availableGifts(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.svc.Gifts.Available(r.Context(), offerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offer_id": offerID, "available": n})
}
