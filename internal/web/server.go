package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jaminalder/tictactoe-timetravel/internal/app"
	"github.com/jaminalder/tictactoe-timetravel/internal/logging"
	"github.com/jaminalder/tictactoe-timetravel/internal/metrics"
)

type options struct {
	log       *slog.Logger
	metrics   *metrics.Metrics
	heartbeat time.Duration
}

// Option configures NewServer.
type Option func(*options)

// WithLogger sets the request and handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics mounts /metrics for m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.heartbeat = d
		}
	}
}

// NewServer wires routes and returns an http.Handler. It also installs the
// game fragment renderer on s so subscribers receive ready-to-swap HTML.
func NewServer(s *app.Service, opts ...Option) http.Handler {
	o := options{log: logging.NewNop(), heartbeat: 15 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	h := &handlers{svc: s, tpl: loadTemplates(), log: o.log.With("component", "web"), heartbeat: o.heartbeat}
	s.SetRenderer(func(gs app.GameState) []byte {
		b, err := h.tpl.renderGame(gs.ID, gs.Snapshot())
		if err != nil {
			h.log.Error("render broadcast", "game", gs.ID, "error", err)
		}
		return b
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/", h.index)
	r.Get("/ping", h.ping)
	if o.metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.metrics.Handler())
	}
	r.Post("/game", h.create)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Post("/move", h.move)
		r.Post("/jump", h.jump)
		r.Post("/sort", h.sort)
		r.Get("/snapshot", h.snapshot)
		r.Get("/events", h.events)
	})
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
