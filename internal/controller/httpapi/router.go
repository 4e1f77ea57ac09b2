// Package httpapi HTTP-интерфейс сервиса под префиксом /psm
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/identity"
	"github.com/Freeeeeet/offer_broker/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	RequestTimeout time.Duration
	RateLimiter    *RateLimiter // nil - без ограничения
	CORSOrigins    []string
}

type Server struct {
	svc      *service.Services
	resolver *identity.Resolver
	store    Pinger
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRouter(svc *service.Services, resolver *identity.Resolver, store Pinger, logger *zap.Logger, opts Options) http.Handler {
	s := &Server{
		svc:      svc,
		resolver: resolver,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Middleware)
	}
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", s.health)

	r.Route("/psm", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", s.listOffers)
			r.Post("/", s.createOffer)
			r.Get("/availability.by_day", s.availabilityByDay)

			r.Route("/{offerID}", func(r chi.Router) {
				r.Get("/", s.getOffer)

				r.Get("/slots", s.listSlots)
				r.Post("/slots", s.createSlot)
				r.Delete("/slots/{slotID}", s.cancelSlot)
				r.Patch("/slots/{slotID}", s.cancelSlot)
				r.Get("/next_slots", s.nextSlots)

				r.Get("/gifts", s.listGifts)
				r.Post("/gifts", s.createGift)
				r.Get("/gifts/available", s.availableGifts)

				r.Get("/reviews", s.listReviews)
			})
		})
		r.Get("/offers.with_next_slots", s.offersWithNextSlots)

		r.Post("/requests", s.createRequest)
		r.Get("/requests/mine", s.listMyRequests)
		r.Patch("/requests/{requestID}", s.updateRequest)

		r.Get("/engagements", s.listEngagements)
		r.Get("/engagements/{engagementID}", s.getEngagement)
		r.Patch("/engagements/{engagementID}", s.updateEngagement)
		r.Post("/engagements/{engagementID}/reviews", s.createReview)
	})

	var h http.Handler = r
	if len(opts.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(opts.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", identity.DevUserHeader}),
			handlers.AllowCredentials(),
		)(h)
	}
	return h
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
