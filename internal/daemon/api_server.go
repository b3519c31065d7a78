package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reelgate/internal/api"
	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/services"
	"reelgate/internal/stage"
)

const sseKeepAlive = 15 * time.Second

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	files  *api.FileService

	listener net.Listener
	server   *http.Server
	// closing ends event streams; Shutdown does not cancel their requests.
	closing   chan struct{}
	closeOnce sync.Once
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(cfg.API.Bind),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		files:   d.comps.Files,
		closing: make(chan struct{}),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.server.RegisterOnShutdown(func() {
		srv.closeOnce.Do(func() { close(srv.closing) })
	})
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)
		r.Get("/summary", s.handleSummary)
		r.Get("/events", s.handleEvents)
		r.Post("/action/reencode", s.handleReencode)
		r.Get("/files/{id}", s.handleFile)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listen"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.shutdown()
}

func (s *apiServer) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.daemon.Health(r.Context())
	resp := api.HealthResponse{
		Status:   "ok",
		Registry: "ok",
		Stages:   api.StageHealthSlice(checks),
	}
	code := http.StatusOK
	if err := s.daemon.comps.Store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Registry = err.Error()
		code = http.StatusServiceUnavailable
	}
	if len(stage.NotReady(checks)) > 0 {
		resp.Status = "degraded"
	}
	s.writeJSON(w, code, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	result, err := s.files.Page(r.Context(), api.PageQuery{
		Page:      page,
		Limit:     limit,
		SortBy:    query.Get("sortBy"),
		SortOrder: query.Get("sortOrder"),
		Status:    query.Get("status"),
		Search:    query.Get("search"),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.files.BatchSearch(r.Context(), req.Query)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.daemon.comps.Broadcaster.Latest()
	if !ok {
		s.daemon.comps.Broadcaster.Publish(r.Context())
		snap, ok = s.daemon.comps.Broadcaster.Latest()
	}
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "status not available yet")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
}

// handleEvents streams status_update events until the client disconnects or
// the server shuts down.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream unsupported",
			logging.Error(err),
			logging.String(logging.FieldEventType, "sse_unsupported"),
			logging.String(logging.FieldErrorHint, "check proxies between the dashboard and reelgate"),
			logging.String(logging.FieldImpact, "dashboard falls back to polling"),
		)
		return
	}

	updates, cancel := s.daemon.comps.Broadcaster.Subscribe()
	defer cancel()
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case snap, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(api.FromSnapshot(snap))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: status_update\ndata: %s\n\n", payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

type reencodeRequest struct {
	ID int64 `json:"id"`
}

func (s *apiServer) handleReencode(w http.ResponseWriter, r *http.Request) {
	var req reencodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	file, err := s.files.Reencode(r.Context(), req.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info("re-encode requested",
		logging.String(logging.FieldEventType, "reencode_requested"),
		logging.Int64(logging.FieldFileID, file.ID),
		logging.String("cleaned_name", file.CleanedName),
	)
	s.writeJSON(w, http.StatusOK, api.ActionResponse{Message: "Re-encode queued", File: file})
}

func (s *apiServer) handleFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	detail, err := s.files.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("api request failed", logging.Error(err), logging.String(logging.FieldErrorKind, services.Kind(err)))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
