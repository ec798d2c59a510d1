// Package api implements the chatflow HTTP API server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/api/middleware"
	"github.com/chatflow-ai/chatflow/pkg/config"
	"github.com/chatflow-ai/chatflow/pkg/proxy"
	"github.com/chatflow-ai/chatflow/pkg/registry"
	"github.com/chatflow-ai/chatflow/pkg/services"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

// Server represents the HTTP API server.
type Server struct {
	config       *config.Config
	router       *mux.Router
	server       *http.Server
	flowRegistry registry.FlowRegistry
	contacts     storage.ContactStore
	engine       *services.EngineService
	broadcast    *services.BroadcastService
	dashboard    *services.DashboardService
	hub          *FlowEventHub
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, flowRegistry registry.FlowRegistry, contacts storage.ContactStore, engine *services.EngineService, broadcast *services.BroadcastService, dashboard *services.DashboardService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		flowRegistry: flowRegistry,
		contacts:     contacts,
		engine:       engine,
		broadcast:    broadcast,
		dashboard:    dashboard,
		hub:          NewFlowEventHub(logger),
		validate:     validator.New(),
		logger:       logger,
	}

	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", addr))

	err := s.server.ListenAndServe()
	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	// Flow routes
	api.HandleFunc("/flows", s.handleListFlows).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows", s.handleCreateFlow).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/flows/{id}", s.handleGetFlow).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows/{id}", s.handleUpdateFlow).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/flows/{id}", s.handleDeleteFlow).Methods(http.MethodDelete, http.MethodOptions)

	// Contact routes
	api.HandleFunc("/contacts", s.handleListContacts).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/contacts", s.handleCreateContact).Methods(http.MethodPost, http.MethodOptions)

	// Messaging routes
	api.HandleFunc("/broadcast", s.handleBroadcast).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/webhook/whatsapp", s.handleWhatsAppWebhook).Methods(http.MethodPost, http.MethodOptions)

	// Dashboard
	api.HandleFunc("/dashboard/stats", s.handleDashboardStats).Methods(http.MethodGet, http.MethodOptions)

	// Live flow change events for connected editors
	api.HandleFunc("/ws", s.hub.HandleConnection).Methods(http.MethodGet)

	// Anything under the proxy prefix not handled above is forwarded to the
	// upstream backend. Explicit routes win because mux matches in
	// registration order.
	if s.config.Proxy.Enabled {
		p, err := proxy.New(s.config.Proxy.Prefix, s.config.Proxy.Upstream, s.logger)
		if err != nil {
			s.logger.Error("proxy disabled", zap.Error(err))
		} else {
			s.router.PathPrefix(s.config.Proxy.Prefix).Handler(p)
		}
	}

	s.router.Use(middleware.CORS(s.config.ClientOrigin))
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "ChatFlow backend is running.",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError responds with the same {"detail": ...} error shape the clients
// already parse.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
