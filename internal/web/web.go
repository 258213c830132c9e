// Package web serves the dashboard UI, the REST API and the tab socket
// endpoint that bridges browser tabs to the connection coordinator.
package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"vitalvest/internal/backend"
	"vitalvest/internal/coordinator"
	"vitalvest/internal/history"
	"vitalvest/internal/metrics"
	"vitalvest/internal/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same-host UI, nothing cross-origin to defend
	},
}

// Server serves the web UI and API endpoints.
type Server struct {
	coord     *coordinator.Coordinator
	dash      *state.DashState
	backend   *backend.Client
	history   *history.Store
	met       *metrics.Metrics
	port      string
	version   string
	demoMode  bool
	adminUser string
	adminPass string
	sessions  sync.Map
}

// New creates a new web server. history and met may be nil.
func New(coord *coordinator.Coordinator, dash *state.DashState, bc *backend.Client, hs *history.Store, met *metrics.Metrics, port, version string, demoMode bool, adminUser, adminPass string) *Server {
	return &Server{
		coord:     coord,
		dash:      dash,
		backend:   bc,
		history:   hs,
		met:       met,
		port:      port,
		version:   version,
		demoMode:  demoMode,
		adminUser: adminUser,
		adminPass: adminPass,
	}
}

// Router builds the route table. Split out from Start so tests can drive it
// through httptest.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet, http.MethodPost)

	// Tab socket: every open dashboard tab holds one of these.
	r.HandleFunc("/ws", s.requireAuth(s.handleTabSocket))

	r.HandleFunc("/api/state", s.requireAuth(s.handleState)).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.requireAuth(s.handleHistory)).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.requireAuth(s.handleSessions)).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts", s.requireAuth(s.handleAlerts)).Methods(http.MethodGet)
	r.HandleFunc("/api/sync", s.requireAuth(s.handleSync)).Methods(http.MethodPost)
	r.HandleFunc("/api/reconnect", s.requireAuth(s.handleReconnect)).Methods(http.MethodPost)
	r.HandleFunc("/api/polling", s.requireAuth(s.handlePolling)).Methods(http.MethodPost)

	if s.met != nil {
		r.Handle("/metrics", s.met.Handler())
	}

	r.PathPrefix("/").HandlerFunc(s.requireAuth(s.handleUI))

	return handlers.LoggingHandler(os.Stdout, r)
}

// Start starts the web server in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%s", s.port)
	slog.Info("Web UI listening", "address", addr, "component", "Web")

	go func() {
		if err := http.ListenAndServe(addr, s.Router()); err != nil {
			slog.Error("Web server failed", "error", err, "component", "Web")
		}
	}()
}
