package fleet_api

import (
	"net/http"

	"github.com/BearBump/FleetTrack/internal/models"
)

type createJourneyRequest struct {
	DriverID    uint64  `json:"driverId"`
	TruckID     uint64  `json:"truckId"`
	TrailerID   *uint64 `json:"trailerId"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type trackingRequest struct {
	MileageStart *float64 `json:"mileageStart"`
	MileageEnd   *float64 `json:"mileageEnd"`
	FuelVolume   *float64 `json:"fuelVolume"`
	TireStatus   *string  `json:"tireStatus"`
	Remarks      *string  `json:"remarks"`
	Status       *string  `json:"status"`
	Note         *string  `json:"note"`
}

func writeJourney(w http.ResponseWriter, status int, j *models.Journey) {
	w.Header().Set("ETag", etag(j.Version))
	writeJSON(w, status, j)
}

func (s *Server) listJourneys(w http.ResponseWriter, r *http.Request) {
	f, err := journeyFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	js, err := s.journeys.List(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if js == nil {
		js = []*models.Journey{}
	}
	writeJSON(w, http.StatusOK, js)
}

func (s *Server) createJourney(w http.ResponseWriter, r *http.Request) {
	var req createJourneyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	j, err := s.journeys.Create(r.Context(), actorFrom(r.Context()), models.JourneyCreateInput{
		DriverID:    req.DriverID,
		TruckID:     req.TruckID,
		TrailerID:   req.TrailerID,
		Origin:      req.Origin,
		Destination: req.Destination,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJourney(w, http.StatusCreated, j)
}

func (s *Server) getJourney(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	j, err := s.journeys.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJourney(w, http.StatusOK, j)
}

func (s *Server) transitionJourney(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	j, err := s.journeys.TransitionStatus(r.Context(), actorFrom(r.Context()), id, req.Status, req.Note, version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJourney(w, http.StatusOK, j)
}

func (s *Server) updateJourneyTracking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req trackingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	j, err := s.journeys.UpdateTracking(r.Context(), actorFrom(r.Context()), id, models.TrackingFields{
		MileageStart: req.MileageStart,
		MileageEnd:   req.MileageEnd,
		FuelVolume:   req.FuelVolume,
		TireStatus:   req.TireStatus,
		Remarks:      req.Remarks,
		Status:       req.Status,
		Note:         req.Note,
	}, version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJourney(w, http.StatusOK, j)
}

func (s *Server) deleteJourney(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.journeys.Delete(r.Context(), actorFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func journeyFilter(r *http.Request) (models.JourneyFilter, error) {
	f := models.JourneyFilter{Status: r.URL.Query().Get("status")}
	var err error
	if f.DriverID, err = queryID(r, "driverId"); err != nil {
		return f, err
	}
	if f.TruckID, err = queryID(r, "truckId"); err != nil {
		return f, err
	}
	return f, nil
}
