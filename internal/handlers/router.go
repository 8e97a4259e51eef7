package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/buildinfo"
	"github.com/xelth-com/argoxlabels/internal/middleware"
	"github.com/xelth-com/argoxlabels/internal/models"
	"github.com/xelth-com/argoxlabels/internal/services/labelsync"
	"github.com/xelth-com/argoxlabels/internal/websocket"
)

// Syncer triggers sync runs
type Syncer interface {
	Trigger(ctx context.Context, req labelsync.Request, sink labelsync.Sink) (*labelsync.Result, error)
	LastResult() *labelsync.Result
}

// Finder looks labels up by production order
type Finder interface {
	Find(ctx context.Context, orderID int64) ([]models.ProductionLabel, error)
}

// Options carries the settings handlers need from configuration
type Options struct {
	JWTSecret   string
	AdminHash   string
	PublicURL   string
	CORSOrigins []string
	SyncTimeout time.Duration
}

// Router wraps the mux router and its collaborators
type Router struct {
	*mux.Router
	opts   Options
	syncer Syncer
	finder Finder
	hub    *websocket.Hub
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(opts Options, syncer Syncer, finder Finder, hub *websocket.Hub) *Router {
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 10 * time.Minute
	}
	r := &Router{
		Router: mux.NewRouter(),
		opts:   opts,
		syncer: syncer,
		finder: finder,
		hub:    hub,
	}
	auth := middleware.AuthMiddleware(opts.JWTSecret)

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.Handle("/sync", auth(http.HandlerFunc(r.triggerSync))).Methods("POST")
	api.HandleFunc("/labels/{orderId}", r.getLabels).Methods("GET")
	api.HandleFunc("/labels/{orderId}/pdf", r.getLabelPDF).Methods("GET")

	// Auth routes
	login := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	r.Handle("/auth/login", login(http.HandlerFunc(r.login))).Methods("POST")

	// Live sync log
	r.Handle("/ws/sync", auth(http.HandlerFunc(r.serveSyncLog))).Methods("GET")

	// Pages
	r.HandleFunc("/view/{orderId}", r.viewLabel).Methods("GET")
	r.HandleFunc("/", r.generatorPage).Methods("GET")

	return r
}

// Handler returns the router wrapped in the global middleware chain
func (r *Router) Handler() http.Handler {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: r.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})
	return corsHandler(middleware.CaseInsensitiveMiddleware(r.Router))
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns build metadata and the last sync outcome
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	status := map[string]interface{}{
		"status": "running",
		"build":  buildinfo.Get(),
	}
	if r.syncer != nil {
		if last := r.syncer.LastResult(); last != nil {
			status["lastSync"] = map[string]interface{}{
				"runId":         last.RunID,
				"state":         last.State,
				"count":         last.RecordsWritten,
				"failedBatches": last.FailedBatches,
				"startedAt":     last.StartedAt,
				"finishedAt":    last.FinishedAt,
			}
		}
	}
	respondJSON(w, http.StatusOK, status)
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

// errorBody is the JSON envelope of a failed request
type errorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind,omitempty"`
	Code  string      `json:"code,omitempty"`
	RunID string      `json:"runId,omitempty"`
	Logs  []string    `json:"logs,omitempty"`
}

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	if errors.Is(err, labelsync.ErrRunInProgress) {
		return http.StatusConflict
	}
	switch apperr.KindOf(err) {
	case apperr.KindMalformedInput:
		return http.StatusBadRequest
	// Azure AD rejections are upstream failures; 401 is reserved for the admin session
	case apperr.KindAuthentication, apperr.KindQuery, apperr.KindRemoteQuery:
		return http.StatusBadGateway
	case apperr.KindStorageRead:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError sends a classified error, keeping the run log when there is one
func respondAppError(w http.ResponseWriter, err error, result *labelsync.Result) {
	body := errorBody{
		Error: err.Error(),
		Kind:  apperr.KindOf(err),
		Code:  apperr.CodeOf(err),
	}
	if result != nil {
		body.RunID = result.RunID
		body.Logs = result.LogLines
	}
	respondJSON(w, statusFor(err), body)
}
