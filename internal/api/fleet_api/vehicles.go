package fleet_api

import (
	"net/http"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/go-chi/chi/v5"
)

type vehiclePatchRequest struct {
	Mileage            *float64   `json:"mileage"`
	FuelLevel          *float64   `json:"fuelLevel"`
	TireStatus         *string    `json:"tireStatus"`
	MaintenanceDueDate *time.Time `json:"maintenanceDueDate"`
	LastServiceDate    *time.Time `json:"lastServiceDate"`
	LastServiceMileage *float64   `json:"lastServiceMileage"`
	Notes              *string    `json:"notes"`
	Status             *string    `json:"status"`
}

// vehicleRoutes serves /trucks and /trailers; kind pins every lookup so a
// trailer id under /trucks is not found.
func (s *Server) vehicleRoutes(kind string) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			vs, err := s.vehicles.List(r.Context(), kind)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if vs == nil {
				vs = []*models.Vehicle{}
			}
			writeJSON(w, http.StatusOK, vs)
		})

		r.Get("/available", func(w http.ResponseWriter, r *http.Request) {
			vs, err := s.vehicles.ListAvailable(r.Context(), kind)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, vs)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var v models.Vehicle
			if err := decodeJSON(r, &v); err != nil {
				s.writeError(w, r, err)
				return
			}
			v.ID, v.Kind = 0, kind
			out, err := s.vehicles.Create(r.Context(), actorFrom(r.Context()), &v)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, out)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			v, err := s.vehicles.Get(r.Context(), kind, id)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
		})

		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			var v models.Vehicle
			if err := decodeJSON(r, &v); err != nil {
				s.writeError(w, r, err)
				return
			}
			v.ID, v.Kind = id, kind
			out, err := s.vehicles.Update(r.Context(), actorFrom(r.Context()), &v)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, out)
		})

		r.Patch("/{id}/tracking", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			var req vehiclePatchRequest
			if err := decodeJSON(r, &req); err != nil {
				s.writeError(w, r, err)
				return
			}
			out, err := s.vehicles.PatchTracking(r.Context(), actorFrom(r.Context()), kind, id, models.VehiclePatch(req))
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, out)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if err := s.vehicles.Delete(r.Context(), actorFrom(r.Context()), kind, id); err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
		})
	}
}
