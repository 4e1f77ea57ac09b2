package httpapi

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/service"
)

type createSlotBody struct {
	StartAt  time.Time `json:"start_at" validate:"required"`
	EndAt    time.Time `json:"end_at" validate:"required,gtfield=StartAt"`
	Capacity int       `json:"capacity" validate:"min=0,max=1000"`
	Note     string    `json:"note" validate:"max=500"`
}

func (s *Server) createSlot(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body createSlotBody
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	slot, err := s.svc.Slots.Create(r.Context(), actorFrom(r.Context()), offerID, service.CreateSlotInput{
		StartAt:  body.StartAt,
		EndAt:    body.EndAt,
		Capacity: body.Capacity,
		Note:     body.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var rng service.SlotRange
	if rng.From, err = queryDate(r, "from"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if rng.To, err = queryDate(r, "to"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if rng.OnlyOpen, err = queryBool(r, "only_open", true); err != nil {
		s.writeError(w, r, err)
		return
	}

	slots, err := s.svc.Slots.ListOpen(r.Context(), offerID, rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// cancelSlot DELETE и PATCH ведут себя одинаково
func (s *Server) cancelSlot(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	slotID, err := pathID(r, "slotID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	slot, err := s.svc.Slots.Cancel(r.Context(), slotID, offerID, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) nextSlots(w http.ResponseWriter, r *http.Request) {
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

	slots, err := s.svc.Slots.NextSlots(r.Context(), offerID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}
