package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"flashreserve/core/events"
	"flashreserve/native/reserve"
	"flashreserve/observability/metrics"
	"flashreserve/storage/history"
)

const (
	HeaderRequestID = "X-Request-ID"

	defaultMaxBodyBytes = 1 << 20
	shutdownGrace       = 10 * time.Second
)

type ctxKey int

const requestIDKey ctxKey = iota

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Config holds the HTTP limits of the server.
type Config struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxBodyBytes       int64
	MaxSignatureAge    time.Duration
	ReadHeaderTimeout  time.Duration
	WriteTimeout       time.Duration
	Faucet             bool
	FaucetAmount       uint64
}

// Deps are the components the handlers drive. History and Events are optional.
type Deps struct {
	Engine  *reserve.Engine
	History *history.Store
	Events  *events.Broadcaster
	Logger  *slog.Logger
}

// Server exposes the reserve over HTTP.
type Server struct {
	cfg     Config
	engine  *reserve.Engine
	history *history.Store
	events  *events.Broadcaster
	logger  *slog.Logger
	auth    *Authenticator
	limiter *RateLimiter
	metrics *metrics.HTTPMetrics
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("rpc: engine required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		engine:  deps.Engine,
		history: deps.History,
		events:  deps.Events,
		logger:  logger.With("component", "rpc"),
		auth:    NewAuthenticator(cfg.MaxSignatureAge, nil),
		limiter: NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		metrics: metrics.HTTP(),
	}, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.observe, s.throttle)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/config", s.handleConfig)
		v1.Get("/snapshot", s.handleSnapshot)
		v1.Get("/quote", s.handleQuote)
		v1.Get("/records/{addr}", s.handleRecord)
		v1.Get("/holdings/{addr}", s.handleHoldings)
		v1.Get("/receivers", s.handleReceivers)
		v1.Get("/history", s.handleHistory)
		v1.Get("/events", s.handleEvents)

		v1.Post("/stake", s.signed(s.handleStake))
		v1.Post("/unstake", s.signed(s.handleUnstake))
		v1.Post("/harvest", s.signed(s.handleHarvest))
		v1.Post("/flash-loan", s.signed(s.handleFlashLoan))
		v1.Post("/admin/{op}", s.signed(s.handleAdmin))
		if s.cfg.Faucet {
			v1.Post("/faucet", s.signed(s.handleFaucet))
		}
	})

	return otelhttp.NewHandler(r, "flashreserve.rpc")
}

// Serve listens on addr until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("rpc listening", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack is required by the websocket upgrade on /v1/events.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("rpc: response writer cannot be hijacked")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.Observe(route, r.Method, rec.status, elapsed)
		s.logger.Debug("rpc request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", elapsed,
			"request_id", requestIDFrom(r.Context()))
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && !s.limiter.Allow(clientID(r)) {
			s.metrics.Throttled()
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", errors.New("too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
