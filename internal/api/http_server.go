package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/metrics"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking service over REST.
type HTTPServer struct {
	cfg     config.HTTPConfig
	service domain.BookingService
	server  *http.Server
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.HTTPConfig, service domain.BookingService, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{cfg: cfg, service: service, logger: logger}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	return srv
}

// Handler builds the full middleware chain: CORS, rate limit, request log,
// then the router.
func (s *HTTPServer) Handler() http.Handler {
	router := s.routes()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	limiter := newRateLimiter(s.cfg.RateLimit)
	return corsHandler.Handler(limiter.Wrap(s.loggingMiddleware(router)))
}

func (s *HTTPServer) routes() *httprouter.Router {
	router := httprouter.New()

	s.handle(router, http.MethodGet, "/rooms", s.handleListRooms)
	s.handle(router, http.MethodPost, "/rooms", s.handleCreateRoom)
	s.handle(router, http.MethodGet, "/rooms/:id", s.handleGetRoom)
	s.handle(router, http.MethodPut, "/rooms/:id", s.handleUpdateRoom)
	s.handle(router, http.MethodPost, "/rooms/:id/reserve", s.handleReserveRoom)
	s.handle(router, http.MethodPost, "/rooms/:id/pay", s.handlePayForRoom)
	s.handle(router, http.MethodGet, "/payments", s.handleListPayments)
	s.handle(router, http.MethodGet, "/payments/export", s.handleExportPayments)

	s.handle(router, http.MethodGet, "/healthz", s.handleHealth)
	s.handle(router, http.MethodGet, "/readyz", s.handleReady)
	s.handle(router, http.MethodGet, "/api-docs", handleAPIDocs)
	s.handle(router, http.MethodGet, "/api-docs.json", handleAPIDocsJSON)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		s.logger.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panic")
		writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
	}
	return router
}

// handle registers a route and counts its responses under the route pattern.
func (s *HTTPServer) handle(router *httprouter.Router, method, path string, h httprouter.Handle) {
	endpoint := method + " " + path
	router.Handle(method, path, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		recorder := asRecorder(w)
		h(recorder, r, ps)
		metrics.IncHTTP(endpoint, recorder.status)
	})
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := asRecorder(w)
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func asRecorder(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
