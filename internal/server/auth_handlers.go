package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tokomas/goldpos/internal/auth"
)

func (s *Server) registerAuthRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	router.HandleFunc("/auth/me", s.handleMe).Methods("GET")
	router.HandleFunc("/auth/change-password", s.handleChangePassword).Methods("POST")
	router.HandleFunc("/auth/users", s.handleCreateUser).Methods("POST")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.authManager.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserInactive) {
			s.writeError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)
	user, err := s.authManager.GetUser(claims.Subject)
	if err != nil {
		s.writeError(w, "user not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	claims := requestClaims(r)
	if err := s.authManager.ChangePassword(claims.Subject, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.writeError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"message": "Password changed"})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireOwner(w, r) {
		return
	}

	var req struct {
		BranchID string `json:"branch_id"`
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.BranchID == "" {
		req.BranchID = "default"
	}

	user, err := s.authManager.CreateUser(req.BranchID, req.Username, req.Password, req.FullName, req.Role)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, user)
}
