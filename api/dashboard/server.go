package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/store"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Deps are the collaborators the API serves from. Feed and WS are optional;
// without them overrides are still persisted but nothing is pushed live.
type Deps struct {
	Snapshots   SnapshotProvider
	Overrides   store.OverrideStore
	Settings    store.SettingsStore
	History     store.HistoryStore
	Feed        *events.Feed
	WS          http.Handler
	OverrideTTL time.Duration
}

// Server serves the dashboard REST API, the Prometheus exposition and the
// WebSocket feed on one listener.
type Server struct {
	cfg         Config
	log         logger.Logger
	snapshots   SnapshotProvider
	overrides   store.OverrideStore
	settings    store.SettingsStore
	history     store.HistoryStore
	feed        *events.Feed
	ws          http.Handler
	overrideTTL time.Duration
	httpServer  *http.Server
}

// NewServer validates the configuration and wiring.
func NewServer(cfg Config, d Deps) (*Server, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	if d.Snapshots == nil {
		return nil, fmt.Errorf("dashboard: snapshot provider is nil")
	}
	if d.Overrides == nil || d.Settings == nil || d.History == nil {
		return nil, fmt.Errorf("dashboard: stores are nil")
	}
	if d.OverrideTTL <= 0 {
		d.OverrideTTL = time.Hour
	}
	return &Server{
		cfg:         cfg,
		log:         logger.New("dashboard"),
		snapshots:   d.Snapshots,
		overrides:   d.Overrides,
		settings:    d.Settings,
		history:     d.History,
		feed:        d.Feed,
		ws:          d.WS,
		overrideTTL: d.OverrideTTL,
	}, nil
}

// Router assembles all routes and middleware. GETs are gzip-compressed,
// mutations require a bearer token when a secret is configured, and the
// whole tree recovers from handler panics.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/status", gziphandler.GzipHandler(http.HandlerFunc(s.handleStatus))).Methods(http.MethodGet)
	api.Handle("/plan", gziphandler.GzipHandler(http.HandlerFunc(s.handlePlan))).Methods(http.MethodGet)
	api.Handle("/history/{kind}", gziphandler.GzipHandler(http.HandlerFunc(s.handleHistory))).Methods(http.MethodGet)
	api.Handle("/override", s.requireAuth(http.HandlerFunc(s.handleOverride))).Methods(http.MethodPost)
	api.Handle("/settings", s.requireAuth(http.HandlerFunc(s.handleSettings))).Methods(http.MethodPut)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.ws != nil {
		// The WebSocket route stays outside the gzip wrapper; the upgrade
		// needs the raw ResponseWriter.
		r.Handle("/ws", s.ws).Methods(http.MethodGet)
	}

	var h http.Handler = r
	h = s.logRequests(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(h)
	if len(s.cfg.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	return h
}

// Run starts the HTTP server and blocks until the context is canceled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.log.Infof("dashboard listening on %s", s.cfg.Listen)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard shutdown: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("dashboard: %w", err)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

type recoveryLogger struct{ log logger.Logger }

func (l recoveryLogger) Println(v ...any) {
	l.log.Errorf("handler panic: %s", fmt.Sprint(v...))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
}
