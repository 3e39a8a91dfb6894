package fleet_api

import (
	"net/http"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/BearBump/FleetTrack/internal/services/users"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	verr := &models.ValidationError{}
	if req.Email == "" {
		verr.Add("email", "required")
	}
	if req.Password == "" {
		verr.Add("password", "required")
	}
	if err := verr.Err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, u, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetUser(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := s.users.List(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("role"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if us == nil {
		us = []*models.User{}
	}
	writeJSON(w, http.StatusOK, us)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.Create(r.Context(), actorFrom(r.Context()), users.CreateInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) listDrivers(w http.ResponseWriter, r *http.Request) {
	us, err := s.users.List(r.Context(), actorFrom(r.Context()), models.RoleDriver)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if us == nil {
		us = []*models.User{}
	}
	writeJSON(w, http.StatusOK, us)
}
