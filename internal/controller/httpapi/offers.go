package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/service"
)

type createOfferBody struct {
	Type        string   `json:"type" validate:"omitempty,oneof=legal psychological career other"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	FeeType     string   `json:"fee_type" validate:"omitempty,oneof=free paid sliding"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
	Languages   []string `json:"languages" validate:"max=10,dive,max=10"`
	Region      string   `json:"region" validate:"max=100"`
	Visibility  string   `json:"visibility" validate:"omitempty,oneof=public private"`
}

func (s *Server) createOffer(w http.ResponseWriter, r *http.Request) {
	var body createOfferBody
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	offer, err := s.svc.Offers.Create(r.Context(), actorFrom(r.Context()), service.CreateOfferInput{
		Type:        body.Type,
		Title:       body.Title,
		Description: body.Description,
		FeeType:     body.FeeType,
		Tags:        body.Tags,
		Languages:   body.Languages,
		Region:      body.Region,
		Visibility:  model.Visibility(body.Visibility),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "offerID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offer, err := s.svc.Offers.Get(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// offerFilter общие параметры каталога: q, type, tag, fee_type, region, lang, sort
func offerFilter(r *http.Request) model.OfferFilter {
	q := r.URL.Query()
	return model.OfferFilter{
		Query:    q.Get("q"),
		Type:     q.Get("type"),
		Tag:      q.Get("tag"),
		FeeType:  q.Get("fee_type"),
		Region:   q.Get("region"),
		Language: q.Get("lang"),
		Sort:     model.OfferSort(q.Get("sort")),
	}
}

func pageParams(r *http.Request) (service.Page, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return service.Page{}, err
	}
	size, err := queryInt(r, "page_size", 0)
	if err != nil {
		return service.Page{}, err
	}
	return service.Page{Page: page, PageSize: size}, nil
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offers, err := s.svc.Query.ListOffers(r.Context(), offerFilter(r), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) offersWithNextSlots(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var limitSlots *int
	if r.URL.Query().Has("limit_slots") {
		n, err := queryInt(r, "limit_slots", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limitSlots = &n
	}

	offers, err := s.svc.Query.OffersWithNextSlots(r.Context(), offerFilter(r), page, limitSlots)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) availabilityByDay(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	days, err := s.svc.Query.AvailabilityByDay(r.Context(), from, to, offerFilter(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}
