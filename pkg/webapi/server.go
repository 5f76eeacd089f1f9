// Package webapi serves the meter state over HTTP and WebSocket.
// Every handler only reads through the guarded accessors of the meter.
package webapi

import (
	"net/http"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/meter"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	APIVersion = "1.0.0"

	DefaultGuardTimeout = time.Second
	DefaultWriteTimeout = 10 * time.Second
	routesPrefix        = "/api/v1"
)

// SolarReader provides the current inverter output in W.
type SolarReader interface {
	ReadSolarData() (int32, error)
}

type Options struct {
	// Maximum wait for a shared store before answering 500.
	GuardTimeout time.Duration
	// Requests per second over all clients, 0 disables limiting.
	RateLimit float64
	RateBurst int
	// Maximum time a WebSocket client may take to accept a message.
	WriteTimeout time.Duration
}

type Server struct {
	meter    *meter.Meter
	solar    SolarReader
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	hub      *Hub
	limiter  *rate.Limiter
	opts     Options
	logger   logrus.FieldLogger
}

// NewServer creates the web glue for m. solar may be nil when no inverter is
// configured. gatherer is exposed on /metrics.
func NewServer(
	m *meter.Meter,
	solar SolarReader,
	mtr *metrics.Metrics,
	gatherer prometheus.Gatherer,
	opts Options,
	logger logrus.FieldLogger,
) *Server {
	if opts.GuardTimeout <= 0 {
		opts.GuardTimeout = DefaultGuardTimeout
	}
	s := &Server{
		meter:    m,
		solar:    solar,
		metrics:  mtr,
		gatherer: gatherer,
		opts:     opts,
		logger:   logger.WithField("component", "webapi"),
	}
	s.hub = NewHub(opts.WriteTimeout, s.logger)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Hub returns the WebSocket hub, subscribe its Broadcast to the meter.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.rateLimit)

	api := r.PathPrefix(routesPrefix).Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/p1/data/basic", s.handleData(false)).Methods(http.MethodGet)
	api.HandleFunc("/p1/data/complete", s.handleData(true)).Methods(http.MethodGet)
	api.HandleFunc("/p1/log/short-term", s.handleShortTermLog).Methods(http.MethodGet)
	api.HandleFunc("/p1/log/long-term", s.handleLongTermLog).Methods(http.MethodGet)
	api.HandleFunc("/p1/predicted-peak", s.handlePredictedPeak).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/solar", s.handleSolar).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
