package fleet_api

import (
	"net/http"

	"github.com/BearBump/FleetTrack/internal/models"
)

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.maintenance.ListRules(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rules == nil {
		rules = []*models.MaintenanceRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule models.MaintenanceRule
	if err := decodeJSON(r, &rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	rule.ID = 0
	out, err := s.maintenance.CreateRule(r.Context(), actorFrom(r.Context()), &rule)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var rule models.MaintenanceRule
	if err := decodeJSON(r, &rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	rule.ID = id
	out, err := s.maintenance.UpdateRule(r.Context(), actorFrom(r.Context()), &rule)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.maintenance.DeleteRule(r.Context(), actorFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) upcomingMaintenance(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.maintenance.Upcoming(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []models.MaintenanceAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	f, err := journeyFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.reports.Summary(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
