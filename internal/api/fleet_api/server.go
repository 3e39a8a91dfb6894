package fleet_api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BearBump/FleetTrack/internal/cache"
	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/BearBump/FleetTrack/internal/services/journeys"
	"github.com/BearBump/FleetTrack/internal/services/maintenance"
	"github.com/BearBump/FleetTrack/internal/services/reports"
	"github.com/BearBump/FleetTrack/internal/services/tires"
	"github.com/BearBump/FleetTrack/internal/services/users"
	"github.com/BearBump/FleetTrack/internal/services/vehicles"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type TokenVerifier interface {
	Verify(token string) (models.Actor, error)
}

type Deps struct {
	Journeys    *journeys.Service
	Vehicles    *vehicles.Registry
	Users       *users.Service
	Maintenance *maintenance.Advisor
	Reports     *reports.Service
	Tires       *tires.Service
	Tokens      TokenVerifier

	// Limiter is optional; without it requests are not rate limited.
	Limiter            cache.Limiter
	RateLimitPerMinute int64

	CORSOrigins []string
	Logger      *slog.Logger

	// Health is called by /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

type Server struct {
	journeys    *journeys.Service
	vehicles    *vehicles.Registry
	users       *users.Service
	maintenance *maintenance.Advisor
	reports     *reports.Service
	tires       *tires.Service
	tokens      TokenVerifier

	limiter   cache.Limiter
	rateLimit int64

	corsOrigins []string
	log         *slog.Logger
	health      func(ctx context.Context) error
}

func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		journeys:    d.Journeys,
		vehicles:    d.Vehicles,
		users:       d.Users,
		maintenance: d.Maintenance,
		reports:     d.Reports,
		tires:       d.Tires,
		tokens:      d.Tokens,
		limiter:     d.Limiter,
		rateLimit:   d.RateLimitPerMinute,
		corsOrigins: d.CORSOrigins,
		log:         log,
		health:      d.Health,
	}
}

// Routes builds the API router. Everything except /healthz and /auth/login
// requires a bearer token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(newSlogLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(newCORSHandler(s.corsOrigins))
	r.Use(maxBodySize(1 << 20))

	r.Get("/healthz", s.healthz)
	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimitByActor)

		r.Get("/auth/me", s.me)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Post("/", s.createUser)
			r.Get("/drivers", s.listDrivers)
		})

		r.Route("/journeys", func(r chi.Router) {
			r.Get("/", s.listJourneys)
			r.Post("/", s.createJourney)
			r.Get("/{id}", s.getJourney)
			r.Delete("/{id}", s.deleteJourney)
			r.Patch("/{id}/status", s.transitionJourney)
			r.Patch("/{id}/tracking", s.updateJourneyTracking)
		})

		r.Route("/trucks", s.vehicleRoutes(models.VehicleKindTruck))
		r.Route("/trailers", s.vehicleRoutes(models.VehicleKindTrailer))

		r.Route("/tires", func(r chi.Router) {
			r.Get("/", s.listTires)
			r.Post("/", s.createTire)
			r.Get("/{id}", s.getTire)
			r.Put("/{id}", s.updateTire)
			r.Delete("/{id}", s.deleteTire)
			r.Patch("/{id}/assign", s.assignTire)
			r.Patch("/{id}/unassign", s.unassignTire)
			r.Patch("/{id}/wear", s.recordTireWear)
		})

		r.Route("/maintenance-rules", func(r chi.Router) {
			r.Get("/", s.listRules)
			r.Post("/", s.createRule)
			r.Get("/upcoming", s.upcomingMaintenance)
			r.Put("/{id}", s.updateRule)
			r.Delete("/{id}", s.deleteRule)
		})

		r.Get("/reports/summary", s.summary)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check failed", "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
