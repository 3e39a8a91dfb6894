package fleet_api

import (
	"net/http"

	"github.com/BearBump/FleetTrack/internal/models"
)

type tireRequest struct {
	SerialNumber string   `json:"serialNumber"`
	Brand        string   `json:"brand"`
	Size         string   `json:"size"`
	Status       string   `json:"status"`
	TreadDepth   *float64 `json:"treadDepth"`
	Notes        string   `json:"notes"`
}

type tireAssignRequest struct {
	VehicleType      string   `json:"vehicleType"`
	VehicleID        uint64   `json:"vehicleId"`
	Position         string   `json:"position"`
	MileageAtInstall *float64 `json:"mileageAtInstall"`
	Note             string   `json:"note"`
}

type tireWearRequest struct {
	TreadDepth *float64 `json:"treadDepth"`
	Status     string   `json:"status"`
	Mileage    *float64 `json:"mileage"`
	Note       string   `json:"note"`
}

type tireNoteRequest struct {
	Note string `json:"note"`
}

func (req tireRequest) tire() *models.Tire {
	return &models.Tire{
		SerialNumber: req.SerialNumber,
		Brand:        req.Brand,
		Size:         req.Size,
		Status:       req.Status,
		TreadDepth:   req.TreadDepth,
		Notes:        req.Notes,
	}
}

func (s *Server) listTires(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := queryID(r, "vehicleId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f := models.TireFilter{Status: r.URL.Query().Get("status"), VehicleID: vehicleID}
	ts, err := s.tires.List(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) createTire(w http.ResponseWriter, r *http.Request) {
	var req tireRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tires.Create(r.Context(), actorFrom(r.Context()), req.tire())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTire(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tires.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTire(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req tireRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t := req.tire()
	t.ID = id
	out, err := s.tires.Update(r.Context(), actorFrom(r.Context()), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteTire(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tires.Delete(r.Context(), actorFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) assignTire(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req tireAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tires.Assign(r.Context(), actorFrom(r.Context()), id, models.TireMount(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// unassignTire: тело необязательно.
func (s *Server) unassignTire(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req tireNoteRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	t, err := s.tires.Unassign(r.Context(), actorFrom(r.Context()), id, req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) recordTireWear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req tireWearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tires.RecordWear(r.Context(), actorFrom(r.Context()), id, models.TireWear(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
