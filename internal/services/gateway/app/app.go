package app

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/sems_project/internal/metrics"
	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/control"
	"github.com/LeonardoBeccarini/sems_project/internal/services/pipeline"
)

// Views is the read side: the pipeline.
type Views interface {
	Latest() pipeline.DerivedView
	Watch(ctx context.Context) <-chan pipeline.DerivedView
}

// Controller is the write side: the control reconciler.
type Controller interface {
	State() (entities.ControlState, bool)
	RequestMode(ctx context.Context, m entities.Mode) (control.Intent, error)
	ToggleMode(ctx context.Context) (control.Intent, error)
	SetFan(ctx context.Context, v entities.SwitchState) (control.Intent, error)
	SetLight(ctx context.Context, v entities.SwitchState) (control.Intent, error)
	ToggleFan(ctx context.Context) (control.Intent, error)
	ToggleLight(ctx context.Context) (control.Intent, error)
}

type Config struct {
	// History serves GET /history; nil leaves the route out.
	History http.Handler
	// Metrics serves GET /metrics; nil leaves the route out.
	Metrics http.Handler
	// Checks are extra dependencies reported by /healthz (e.g. redis).
	Checks map[string]func(context.Context) error

	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Gateway struct {
	cfg     Config
	views   Views
	control Controller
}

func NewGateway(cfg Config, v Views, c Controller) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	return &Gateway{cfg: cfg, views: v, control: c}
}

func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/healthz", g.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", g.HandleReady).Methods(http.MethodGet)
	r.HandleFunc("/view", g.HandleView).Methods(http.MethodGet)
	r.HandleFunc("/view/stream", g.HandleViewStream).Methods(http.MethodGet)

	r.HandleFunc("/control", g.HandleControlState).Methods(http.MethodGet)
	r.HandleFunc("/control/mode", g.HandleMode).Methods(http.MethodPost)
	r.HandleFunc("/control/fan", g.HandleFan).Methods(http.MethodPost)
	r.HandleFunc("/control/light", g.HandleLight).Methods(http.MethodPost)

	if g.cfg.History != nil {
		r.Handle("/history", g.cfg.History).Methods(http.MethodGet)
	}
	if g.cfg.Metrics != nil {
		r.Handle("/metrics", g.cfg.Metrics).Methods(http.MethodGet)
	}
	return r
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
