package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/sync"
)

func (s *Server) registerSyncRoutes(router *mux.Router) {
	router.HandleFunc("/sync/config", s.handleGetSyncConfig).Methods("GET")
	router.HandleFunc("/sync/config", s.handleSaveSyncConfig).Methods("PUT")
	router.HandleFunc("/sync/status", s.handleSyncStatus).Methods("GET")
	router.HandleFunc("/sync/run", s.handleRunSync).Methods("POST")
	router.HandleFunc("/sync/pull/gold-prices", s.handlePullGoldPrices).Methods("POST")
	router.HandleFunc("/sync/pull/inventory", s.handlePullInventory).Methods("POST")
	router.HandleFunc("/sync/test-connection", s.handleTestConnection).Methods("POST")
}

func (s *Server) handleGetSyncConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := sync.LoadConfig(s.db)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Secrets are omitted from the JSON encoding of SyncConfig.
	s.writeJSON(w, cfg)
}

func (s *Server) handleSaveSyncConfig(w http.ResponseWriter, r *http.Request) {
	if !s.requireOwner(w, r) {
		return
	}

	// SfPassword and SfSecurityToken are excluded from SyncConfig's JSON
	// encoding, so the incoming document is decoded separately.
	var req struct {
		SfClientID          *string `json:"sf_client_id"`
		SfClientSecret      *string `json:"sf_client_secret"`
		SfUsername          *string `json:"sf_username"`
		SfPassword          *string `json:"sf_password"`
		SfSecurityToken     *string `json:"sf_security_token"`
		SfInstanceURL       *string `json:"sf_instance_url"`
		IsSandbox           bool    `json:"is_sandbox"`
		SyncEnabled         bool    `json:"sync_enabled"`
		SyncIntervalMinutes int     `json:"sync_interval_minutes"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.SyncIntervalMinutes < 1 {
		req.SyncIntervalMinutes = 30
	}

	cfg := models.SyncConfig{
		ID:                  "default",
		SfClientID:          req.SfClientID,
		SfClientSecret:      req.SfClientSecret,
		SfUsername:          req.SfUsername,
		SfPassword:          req.SfPassword,
		SfSecurityToken:     req.SfSecurityToken,
		SfInstanceURL:       req.SfInstanceURL,
		IsSandbox:           req.IsSandbox,
		SyncEnabled:         req.SyncEnabled,
		SyncIntervalMinutes: req.SyncIntervalMinutes,
	}
	if err := sync.SaveConfig(s.db, &cfg); err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"message": "Sync configuration saved"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.syncEngine.GetStatus()
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, status)
}

func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	if err := s.configureEngine(); err != nil {
		s.writeSyncError(w, err)
		return
	}
	result, err := s.syncEngine.RunFullSync(r.Context())
	if err != nil {
		s.writeSyncError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handlePullGoldPrices(w http.ResponseWriter, r *http.Request) {
	if err := s.configureEngine(); err != nil {
		s.writeSyncError(w, err)
		return
	}
	result, err := s.syncEngine.PullGoldPrices(r.Context())
	if err != nil {
		s.writeSyncError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handlePullInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BranchSfID string `json:"branch_sf_id"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.configureEngine(); err != nil {
		s.writeSyncError(w, err)
		return
	}
	result, err := s.syncEngine.PullInventory(r.Context(), req.BranchSfID)
	if err != nil {
		s.writeSyncError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.configureEngine(); err != nil {
		s.writeSyncError(w, err)
		return
	}
	message, err := s.syncEngine.TestConnection(r.Context())
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, map[string]string{"message": message})
}

func (s *Server) configureEngine() error {
	cfg, err := sync.LoadConfig(s.db)
	if err != nil {
		return err
	}
	return s.syncEngine.Configure(cfg)
}

func (s *Server) writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sync.ErrSyncInProgress):
		s.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, sync.ErrMissingCredentials):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		s.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}
