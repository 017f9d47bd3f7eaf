package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tokomas/goldpos/internal/auth"
	"github.com/tokomas/goldpos/internal/config"
	"github.com/tokomas/goldpos/internal/db"
	"github.com/tokomas/goldpos/internal/goldprice"
	"github.com/tokomas/goldpos/internal/inventory"
	"github.com/tokomas/goldpos/internal/sync"
	"github.com/tokomas/goldpos/internal/transactions"
)

// APIResponse is the envelope for all JSON API responses
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Server represents the goldpos API server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	db         *sql.DB

	authManager      *auth.Manager
	inventoryManager *inventory.Manager
	priceManager     *goldprice.Manager
	txManager        *transactions.Manager
	syncEngine       *sync.Engine

	startTime time.Time
}

// New creates a new goldpos server
func New(cfg *config.Config) (*Server, error) {
	conn, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := logrus.StandardLogger()
	syncEngine := sync.NewEngine(conn, logger)
	tracker := syncEngine.Tracker()

	server := &Server{
		config: cfg,
		db:     conn,
		authManager: auth.NewManager(conn, cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.TokenTTLHour)*time.Hour, logger),
		inventoryManager: inventory.NewManager(conn, tracker, logger),
		priceManager:     goldprice.NewManager(conn, tracker, logger),
		txManager:        transactions.NewManager(conn, tracker, logger),
		syncEngine:       syncEngine,
		startTime:        time.Now(),
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      server.buildHandler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server, nil
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"address":  s.config.Listen,
		"data_dir": s.config.DataDir,
	}).Info("Starting goldpos server")

	if s.config.Sync.Background {
		s.syncEngine.StartBackgroundSync(ctx)
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("HTTP server error")
		}
	}()

	<-ctx.Done()
	return s.shutdown()
}

func (s *Server) shutdown() error {
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shutdown HTTP server")
	}
	return s.db.Close()
}

func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.config.Metrics.Enable {
		router.Handle(s.config.Metrics.Path, promhttp.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	s.registerAuthRoutes(api)
	s.registerInventoryRoutes(api)
	s.registerTransactionRoutes(api)
	s.registerGoldPriceRoutes(api)
	s.registerSyncRoutes(api)

	return handlers.RecoveryHandler()(
		handlers.CombinedLoggingHandler(logrus.StandardLogger().Writer(), router))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// Helper methods
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message})
	logrus.WithField("error", message).WithField("status", statusCode).Warn("API error")
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
