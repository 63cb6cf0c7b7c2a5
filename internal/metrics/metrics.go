package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Query metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortes_queries_total",
			Help: "Total notification queries handled",
		},
		[]string{"criterion", "source", "result"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortes_upstream_duration_seconds",
			Help:    "Notification API request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"criterion"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortes_upstream_errors_total",
			Help: "Notification API errors",
		},
		[]string{"kind"},
	)

	StaleResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cortes_stale_responses_total",
			Help: "Responses discarded because a newer query was issued",
		},
	)

	// Cache metrics
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cortes_cache_hits_total",
			Help: "Notification cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cortes_cache_misses_total",
			Help: "Notification cache misses",
		},
	)

	// Schedule metrics
	ActiveCuts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortes_active_cuts",
			Help: "Number of running cut countdowns",
		},
	)

	CountdownExpirations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cortes_countdown_expirations_total",
			Help: "Countdowns that reached zero",
		},
	)

	ParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortes_parse_errors_total",
			Help: "Cut window entries skipped because of malformed times",
		},
		[]string{"field"},
	)

	OverbookedGroups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cortes_overbooked_groups_total",
			Help: "Day groups whose cut hours exceed 24",
		},
	)

	// Refresh metrics
	RefreshRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortes_refresh_runs_total",
			Help: "Scheduled refresh runs",
		},
		[]string{"result"},
	)

	SavedIdentifiers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortes_saved_identifiers",
			Help: "Number of saved identifiers",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		QueriesTotal,
		UpstreamDuration,
		UpstreamErrors,
		StaleResponses,
		CacheHits,
		CacheMisses,
		ActiveCuts,
		CountdownExpirations,
		ParseErrors,
		OverbookedGroups,
		RefreshRuns,
		SavedIdentifiers,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the metrics server's handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
