// Package server exposes the dashboard state and on-demand refreshes as a
// JSON HTTP API, together with the /health and /metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/macrotracker/internal/app"
	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/metrics"
	"github.com/deusflow/macrotracker/internal/news"
	"github.com/deusflow/macrotracker/internal/ratelimit"
	"github.com/deusflow/macrotracker/internal/scraper"
)

const shutdownTimeout = 5 * time.Second

// Backend is what the API serves. *app.Service implements it.
type Backend interface {
	Snapshot(ctx context.Context) (macro.Snapshot, bias.Result, error)
	Fred(ctx context.Context) (macro.FredReading, error)
	Market(ctx context.Context) (macro.MarketReading, error)
	Jobs(ctx context.Context) (macro.JobsReading, error)
	Releases(ctx context.Context) (macro.ReleaseReading, error)
	Bias(ctx context.Context) (bias.Result, error)
	News(ctx context.Context) (news.Feed, error)
	Article(ctx context.Context, url string) (scraper.Article, error)
	View() app.View
}

var _ Backend = (*app.Service)(nil)

type Config struct {
	Addr  string
	RPS   float64
	Burst int
	// Quotas is optional; its usage is reported on /metrics.
	Quotas *ratelimit.Limiter
}

type Server struct {
	backend Backend
	quotas  *ratelimit.Limiter
	clients *clientLimiter
	http    *http.Server
}

func New(b Backend, cfg Config) *Server {
	s := &Server{
		backend: b,
		quotas:  cfg.Quotas,
		clients: newClientLimiter(cfg.RPS, cfg.Burst),
	}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed API. Everything under /api/ is rate limited
// per client; /health and /metrics are not.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/macro", s.handleMacro)
	api.HandleFunc("GET /api/macro/fred", s.handleFred)
	api.HandleFunc("GET /api/macro/yahoo", s.handleMarket)
	api.HandleFunc("GET /api/macro/bls", s.handleJobs)
	api.HandleFunc("GET /api/macro/fred-bls", s.handleReleases)
	api.HandleFunc("GET /api/bias", s.handleBias)
	api.HandleFunc("GET /api/news", s.handleNews)
	api.HandleFunc("GET /api/news/article", s.handleArticle)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.clients.middleware(api))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.clients.cleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleMacro(w http.ResponseWriter, r *http.Request) {
	snap, result, err := s.backend.Snapshot(r.Context())
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Snapshot macro.Snapshot `json:"snapshot"`
		Bias     bias.Result    `json:"bias"`
	}{snap, result})
}

func (s *Server) handleFred(w http.ResponseWriter, r *http.Request) {
	respond(w, r, s.backend.Fred)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	respond(w, r, s.backend.Market)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	respond(w, r, s.backend.Jobs)
}

func (s *Server) handleReleases(w http.ResponseWriter, r *http.Request) {
	respond(w, r, s.backend.Releases)
}

func (s *Server) handleBias(w http.ResponseWriter, r *http.Request) {
	respond(w, r, s.backend.Bias)
}

// handleNews returns 200 even when the provider was unreachable; the feed's
// fetchError tells the client why it is empty.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	respond(w, r, s.backend.News)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, scraper.ErrMissingURL.Error())
		return
	}
	a, err := s.backend.Article(r.Context(), url)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.View())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	code := http.StatusOK
	if !metrics.Global.Healthy() {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()
	if s.quotas != nil {
		stats["provider_quotas"] = s.quotas.Stats()
	}
	stats["api_clients"] = s.clients.size()
	writeJSON(w, http.StatusOK, stats)
}

func respond[T any](w http.ResponseWriter, r *http.Request, query func(context.Context) (T, error)) {
	v, err := query(r.Context())
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type errorBody struct {
	Error  string `json:"error"`
	Source string `json:"source,omitempty"`
}

// writeSourceError reports a failed upstream as 502. Bad article URLs are
// the caller's fault and get 400.
func writeSourceError(w http.ResponseWriter, err error) {
	if errors.Is(err, scraper.ErrMissingURL) || errors.Is(err, scraper.ErrInvalidURL) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	source, _ := macro.FailedSource(err)
	logger.Warn("request failed", "source", source, "error", err)
	writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Source: source})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("error encoding response", "error", err)
	}
}
