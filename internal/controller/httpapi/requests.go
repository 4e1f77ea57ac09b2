package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/service"
	"github.com/google/uuid"
)

type createRequestBody struct {
	OfferID        string             `json:"offer_id" validate:"required,uuid"`
	Message        string             `json:"message" validate:"required,max=4000"`
	PreferredTimes []model.TimeWindow `json:"preferred_times" validate:"max=10"`
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := s.svc.Requests.Create(r.Context(), actorFrom(r.Context()), service.CreateRequestInput{
		OfferID:        uuid.MustParse(body.OfferID),
		Message:        body.Message,
		PreferredTimes: body.PreferredTimes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) listMyRequests(w http.ResponseWriter, r *http.Request) {
	box := model.RequestBox(r.URL.Query().Get("box"))
	reqs, err := s.svc.Requests.ListMine(r.Context(), actorFrom(r.Context()), box)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

type updateRequestBody struct {
	Action  string  `json:"action" validate:"required,oneof=accept decline withdraw"`
	SlotID  *string `json:"slot_id" validate:"omitempty,uuid"`
	UseGift bool    `json:"use_gift"`
	Reason  string  `json:"reason" validate:"max=1000"`
}

func (s *Server) updateRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "requestID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body updateRequestBody
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	actor := actorFrom(r.Context())
	switch body.Action {
	case "accept":
		in := service.AcceptInput{UseGift: body.UseGift}
		if body.SlotID != nil {
			slotID := uuid.MustParse(*body.SlotID)
			in.SlotID = &slotID
		}
		eng, err := s.svc.Requests.Accept(r.Context(), id, actor, in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, eng)
	case "decline":
		req, err := s.svc.Requests.Decline(r.Context(), id, actor, body.Reason)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	case "withdraw":
		req, err := s.svc.Requests.Withdraw(r.Context(), id, actor)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
