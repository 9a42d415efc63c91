// Package api exposes the view shell over HTTP. Reads return the current
// snapshot; writes send one event to the shell and return the state it produced.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/wealthstack/internal/aggregate"
	"github.com/rewired-gh/wealthstack/internal/config"
	"github.com/rewired-gh/wealthstack/internal/drilldown"
	"github.com/rewired-gh/wealthstack/internal/exporter"
	"github.com/rewired-gh/wealthstack/internal/layout"
	"github.com/rewired-gh/wealthstack/internal/logger"
	"github.com/rewired-gh/wealthstack/internal/metrics"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/series"
	"github.com/rewired-gh/wealthstack/internal/storage"
	"github.com/rewired-gh/wealthstack/internal/view"
)

// DatasetLister reports what the store holds.
type DatasetLister interface {
	Datasets(ctx context.Context) ([]storage.Dataset, error)
}

// Server serves the API.
type Server struct {
	shell    *view.Shell
	datasets DatasetLister
	metrics  *metrics.Metrics
	validate *validator.Validate

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a server. datasets and m may be nil. Each client address gets its
// own limiter; a non-positive rate disables rate limiting.
func New(shell *view.Shell, datasets DatasetLister, m *metrics.Metrics, cfg config.ServerConfig) *Server {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{shell: shell, datasets: datasets, metrics: m, validate: v}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limit = rate.Limit(cfg.RateLimitRPS)
		s.burst = burst
		s.limiters = make(map[string]*rate.Limiter)
	}
	return s
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.count)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/state", s.getState)
		r.Get("/stack", s.getStack)
		r.Get("/bars", s.getBars)
		r.Get("/buckets", s.getBuckets)
		r.Get("/export.csv", s.exportCSV)
		r.Get("/datasets", s.listDatasets)

		r.Post("/mode", s.postMode)
		r.Post("/select", s.postSelect)
		r.Post("/reset", s.postReset)
		r.Post("/market", s.postMarket)
		r.Post("/pie", s.postPie)
	})
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l := s.limiter(r); l != nil && !l.Allow() {
			logger.Warn("Rate limit exceeded: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			w.Header().Set("Retry-After", "1")
			render.Render(w, r, errTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// maxClients bounds the limiter table; it is cleared when full.
const maxClients = 4096

func (s *Server) limiter(r *http.Request) *rate.Limiter {
	if s.limiters == nil {
		return nil
	}
	client := r.RemoteAddr
	if host, _, err := net.SplitHostPort(client); err == nil {
		client = host
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[client]
	if !ok {
		if len(s.limiters) >= maxClients {
			s.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[client] = l
	}
	return l
}

// count records every request by route pattern and status code.
func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		logger.Debug("%s %s -> %d", r.Method, r.URL.Path, status)
		if s.metrics != nil {
			s.metrics.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
	})
}

type stateResponse struct {
	view.State
	Bars []layout.Bar `json:"bars"`
}

func newStateResponse(st view.State) stateResponse {
	return stateResponse{State: st, Bars: st.Bars()}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":   "ok",
		"state_id": s.shell.Current().ID.String(),
	})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, newStateResponse(s.shell.Current()))
}

// getStack restacks the current records in the requested mode without changing
// the view.
func (s *Server) getStack(w http.ResponseWriter, r *http.Request) {
	st := s.shell.Current()
	if q := r.URL.Query().Get("mode"); q != "" {
		mode, err := models.ParseMode(q)
		if err != nil {
			render.Render(w, r, errInvalidRequest(err))
			return
		}
		st = st.WithMode(mode)
	}
	render.JSON(w, r, st.Stack)
}

func (s *Server) getBars(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.shell.Current().Bars())
}

// getBuckets lists the aggregated (year, category) sums behind the stack.
func (s *Server) getBuckets(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, aggregate.Sorted(s.shell.Current().Buckets()))
}

// exportCSV writes the current stack, or with ?view=detail the open drill-down.
func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	st := s.shell.Current()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")

	var err error
	switch r.URL.Query().Get("view") {
	case "", "stack":
		err = exporter.WriteStackCSV(w, st.Stack)
	case "detail":
		if st.Detail == nil {
			render.Render(w, r, errNotFound(errors.New("no drill-down is open")))
			return
		}
		err = exporter.WriteDetailCSV(w, *st.Detail)
	default:
		render.Render(w, r, errInvalidRequest(errors.New("view must be stack or detail")))
		return
	}
	if err != nil {
		logger.Error("Failed to export CSV: %v", err)
	}
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	if s.datasets == nil {
		render.JSON(w, r, []storage.Dataset{})
		return
	}
	list, err := s.datasets.Datasets(r.Context())
	if err != nil {
		logger.Error("Failed to list datasets: %v", err)
		render.Render(w, r, errInternal(err))
		return
	}
	if list == nil {
		list = []storage.Dataset{}
	}
	render.JSON(w, r, list)
}

// bind decodes and validates a request body.
func (s *Server) bind(r *http.Request, v render.Binder) error {
	if err := render.Bind(r, v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

func (s *Server) postMode(w http.ResponseWriter, r *http.Request) {
	req := &modeRequest{}
	if err := s.bind(r, req); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}
	s.send(w, r, view.ModeChanged{Mode: models.Mode(req.Mode)})
}

func (s *Server) postSelect(w http.ResponseWriter, r *http.Request) {
	req := &selectRequest{}
	if err := s.bind(r, req); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}
	s.send(w, r, view.BarClicked{Key: req.key(), Span: req.Span})
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, view.BackgroundClicked{})
}

func (s *Server) postMarket(w http.ResponseWriter, r *http.Request) {
	req := &marketRequest{}
	if err := s.bind(r, req); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}
	s.send(w, r, view.TickerChanged{Ticker: req.Ticker, Metric: series.Metric(req.Metric)})
}

func (s *Server) postPie(w http.ResponseWriter, r *http.Request) {
	req := &pieRequest{}
	if err := s.bind(r, req); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}
	s.send(w, r, view.YearChanged{Year: req.Year})
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, ev view.Event) {
	st, err := s.shell.Send(r.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, view.ErrUnknownBar):
			render.Render(w, r, errNotFound(err))
		case errors.Is(err, view.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			render.Render(w, r, errUnavailable(err))
		case errors.Is(err, drilldown.ErrInvalidK):
			logger.Error("Drill-down misconfigured: %v", err)
			render.Render(w, r, errInternal(err))
		default:
			render.Render(w, r, errInvalidRequest(err))
		}
		return
	}
	render.JSON(w, r, newStateResponse(st))
}
