package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradefin-io/tradefingo/internal/alerts"
	"github.com/tradefin-io/tradefingo/internal/config"
	"github.com/tradefin-io/tradefingo/internal/database"
	"github.com/tradefin-io/tradefingo/internal/integrity"
	"github.com/tradefin-io/tradefingo/internal/ledger"
	"github.com/tradefin-io/tradefingo/internal/lifecycle"
	"github.com/tradefin-io/tradefingo/internal/middleware"
	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/storage"
	"github.com/tradefin-io/tradefingo/internal/websocket"
)

// Router wraps the mux router and the core components. Handlers stay thin:
// they translate HTTP to core calls and pass the authenticated actor in
// explicitly.
type Router struct {
	*mux.Router
	db        *database.DB
	cfg       *config.Config
	machine   *lifecycle.Machine
	ledger    *ledger.Store
	checker   *integrity.Checker
	scheduler *integrity.Scheduler
	sink      *alerts.Sink
	backend   storage.Backend
	hub       *websocket.Hub
}

// Deps bundles everything the router needs.
type Deps struct {
	DB        *database.DB
	Config    *config.Config
	Machine   *lifecycle.Machine
	Ledger    *ledger.Store
	Checker   *integrity.Checker
	Scheduler *integrity.Scheduler
	Sink      *alerts.Sink
	Backend   storage.Backend
	Hub       *websocket.Hub
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	r := &Router{
		Router:    mux.NewRouter(),
		db:        d.DB,
		cfg:       d.Config,
		machine:   d.Machine,
		ledger:    d.Ledger,
		checker:   d.Checker,
		scheduler: d.Scheduler,
		sink:      d.Sink,
		backend:   d.Backend,
		hub:       d.Hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/login", r.login).Methods("POST")

	// Alert stream (subscribers receive new integrity alerts)
	r.HandleFunc("/ws/alerts", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(r.hub, w, req)
	})

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(d.Config.JWTSecret))

	api.HandleFunc("/documents", r.uploadDocument).Methods("POST")
	api.HandleFunc("/documents", r.listDocuments).Methods("GET")
	api.HandleFunc("/documents/{id}", r.getDocument).Methods("GET")
	api.HandleFunc("/documents/{id}/actions", r.allowedActions).Methods("GET")
	api.HandleFunc("/documents/{id}/actions", r.applyAction).Methods("POST")
	api.HandleFunc("/documents/{id}/ledger", r.documentLedger).Methods("GET")
	api.HandleFunc("/documents/{id}/verify-history", r.verifyHistory).Methods("GET")
	api.HandleFunc("/documents/{id}/integrity", r.documentIntegrity).Methods("GET")

	api.HandleFunc("/trade/po", r.createPO).Methods("POST")
	api.HandleFunc("/trade/loc", r.issueLOC).Methods("POST")
	api.HandleFunc("/trade/verify", r.verifyDocuments).Methods("POST")
	api.HandleFunc("/trade/bol", r.uploadBOL).Methods("POST")
	api.HandleFunc("/trade/invoice", r.issueInvoice).Methods("POST")
	api.HandleFunc("/trade/received", r.markReceived).Methods("POST")
	api.HandleFunc("/trade/pay", r.payInvoice).Methods("POST")
	api.HandleFunc("/trade/transactions/{id}", r.getTransaction).Methods("GET")

	api.HandleFunc("/ledger", r.ledgerWindow).Methods("GET")

	api.HandleFunc("/integrity/check", r.checkDocument).Methods("POST")
	api.HandleFunc("/integrity/sweep", r.triggerSweep).Methods("POST")
	api.HandleFunc("/integrity/runs", r.listRuns).Methods("GET")

	api.HandleFunc("/alerts", r.listAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}/resolve", r.resolveAlert).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": r.hub.ClientCount(),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondCoreError maps core error taxonomy to HTTP statuses. Invalid
// transitions surface the current status and attempting role, per the audit
// requirement, rather than a bare "forbidden".
func respondCoreError(w http.ResponseWriter, err error) {
	var invalid *lifecycle.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		respondError(w, http.StatusConflict, invalid.Error())
	case errors.Is(err, lifecycle.ErrUnknownDocument),
		errors.Is(err, integrity.ErrUnknownDocument),
		errors.Is(err, alerts.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, alerts.ErrAlreadyResolved):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// requireActor pulls the authenticated actor, optionally restricted to the
// given roles. Admin passes every role gate on the HTTP surface; transition
// permissions are still the table's business.
func requireActor(w http.ResponseWriter, req *http.Request, roles ...models.Role) (*models.Actor, bool) {
	actor, ok := middleware.ActorFrom(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	if len(roles) == 0 {
		return actor, true
	}
	if actor.Role == models.RoleAdmin {
		return actor, true
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, true
		}
	}
	respondError(w, http.StatusForbidden, "Insufficient role for this operation")
	return nil, false
}
