// Package web serves the outage viewer: the HTML page, the JSON API and the
// saved identifier endpoints.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/report"
	"github.com/goodtune/cortes/internal/schedule"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

//go:embed templates
var templateFS embed.FS

// Config holds the web server configuration.
type Config struct {
	ListenAddr       string
	RateLimit        int
	RateLimitWindow  time.Duration
	AllowedOrigins   []string
	Clock24h         bool
	DefaultCriterion cnel.Criterion
}

// Server is the public HTTP server.
type Server struct {
	config      Config
	client      *cnel.Client
	builder     *report.Builder
	identifiers storage.IdentifierStore
	sequencer   *cnel.Sequencer
	clock       schedule.Clock
	rateLimiter *RateLimiter
	server      *http.Server
	router      *mux.Router
	templates   *template.Template
	listener    net.Listener
	logger      zerolog.Logger
}

// NewServer creates a new web server.
func NewServer(cfg Config, client *cnel.Client, builder *report.Builder, identifiers storage.IdentifierStore, logger zerolog.Logger) *Server {
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 60
	}
	rateLimitWindow := cfg.RateLimitWindow
	if rateLimitWindow == 0 {
		rateLimitWindow = time.Minute
	}
	if !cfg.DefaultCriterion.Valid() {
		cfg.DefaultCriterion = cnel.CriterionID
	}

	logger = logger.With().Str("component", "web").Logger()

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse templates")
		tmpl = template.New("fallback")
	}

	s := &Server{
		config:      cfg,
		client:      client,
		builder:     builder,
		identifiers: identifiers,
		sequencer:   cnel.NewSequencer(),
		clock:       schedule.RealClock{Location: builder.Board().Location()},
		rateLimiter: NewRateLimiter(rateLimit, rateLimitWindow),
		router:      mux.NewRouter(),
		templates:   tmpl,
		logger:      logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetClock replaces the clock used to classify windows.
func (s *Server) SetClock(clock schedule.Clock) {
	s.clock = clock
}

// Sequencer returns the sequencer that orders queries for the same
// identifier. Background refreshes share it with the web handlers.
func (s *Server) Sequencer() *cnel.Sequencer {
	return s.sequencer
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.rateLimiter))

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
		// Preflight requests need a matching route for the middleware to run.
		s.router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// HTML
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/consulta", s.handleConsulta).Methods("GET")

	// Notifications API
	s.router.HandleFunc("/api/notifications/{criterion}/{id}", s.handleNotifications).Methods("GET")
	s.router.HandleFunc("/api/notifications/{criterion}/{id}/calendar.ics", s.handleCalendar).Methods("GET")

	// Saved identifiers API
	identifiers := NewIdentifierHandler(s.identifiers, s.logger)
	s.router.HandleFunc("/api/identifiers", identifiers.List).Methods("GET")
	s.router.HandleFunc("/api/identifiers", identifiers.Save).Methods("POST")
	s.router.HandleFunc("/api/identifiers", identifiers.Clear).Methods("DELETE")
	s.router.HandleFunc("/api/identifiers/{id}", identifiers.Delete).Methods("DELETE")
}

// Start starts the web server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting web server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated HTTP listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Web server error")
		}
	}()

	return nil
}

// Stop gracefully stops the web server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping web server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	s.rateLimiter.Stop()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"active_cuts":   s.builder.Board().ActiveCount(),
		"cached_result": s.client.CacheLen(),
	})
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// WriteError writes an error response. The error field carries message so
// that API clients can show it verbatim.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Message: http.StatusText(statusCode),
		Code:    statusCode,
	})
}
