// Package api exposes captures, transformations, backfills and zone jobs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/logging"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
	"github.com/mkoziy/habitat/ingest/internal/zones"
)

const maxCaptureBytes = 32 << 20

// Server routes HTTP requests to the pipeline components.
type Server struct {
	recorder *capture.Recorder
	pipeline *pipeline.Orchestrator
	zones    *zones.Service
	logger   *slog.Logger
}

// New creates a server.
func New(recorder *capture.Recorder, orch *pipeline.Orchestrator, zoneSvc *zones.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{recorder: recorder, pipeline: orch, zones: zoneSvc, logger: logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sources/{source}", func(r chi.Router) {
		r.Post("/captures", s.handleCapture)
		r.Post("/transform", s.handleTransform)
		r.Post("/backfill", s.handleBackfill)
	})
	r.Post("/backfill", s.handleBackfill)

	r.Route("/zones", func(r chi.Router) {
		r.Post("/", s.handleCreateZone)
		r.Post("/{zoneID}/refresh", s.handleRefreshZone)
		r.Post("/{zoneID}/jobs", s.handleCreateJob)
		r.Get("/{zoneID}/jobs", s.handleListJobs)
	})

	r.Route("/jobs/{jobID}", func(r chi.Router) {
		r.Get("/", s.handleGetJob)
		r.Post("/start", s.handleStartJob)
		r.Post("/items", s.handleJobItem)
		r.Post("/finish", s.handleFinishJob)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Kind    pipeline.Kind `json:"kind"`
	Details string        `json:"details"`
	Issues  any           `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind pipeline.Kind, err error) {
	writeJSON(w, code, errorBody{Kind: kind, Details: err.Error()})
}

// fail maps a component error onto a status code and error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var pe *pipeline.Error
	switch {
	case errors.As(err, &pe):
		body := errorBody{Kind: pe.Kind, Details: pe.Details}
		if len(pe.Issues) > 0 {
			body.Issues = pe.Issues
		}
		if pe.Kind == pipeline.KindInternal {
			s.logger.Error("request failed", slog.String("path", r.URL.Path), logging.Err(err))
		}
		writeJSON(w, statusFor(pe.Kind), body)
	case errors.Is(err, capture.ErrInvalidCapture):
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
	case errors.Is(err, repositories.ErrNotFound):
		writeError(w, http.StatusNotFound, pipeline.KindNotFound, err)
	case errors.Is(err, repositories.ErrLeaseHeld),
		errors.Is(err, zones.ErrInvalidTransition):
		writeError(w, http.StatusConflict, pipeline.KindConflict, err)
	default:
		s.logger.Error("request failed", slog.String("path", r.URL.Path), logging.Err(err))
		writeError(w, http.StatusInternalServerError, pipeline.KindInternal, err)
	}
}

func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindValidation, pipeline.KindCapture:
		return http.StatusUnprocessableEntity
	case pipeline.KindConflict:
		return http.StatusConflict
	case pipeline.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func chiSource(r *http.Request) string {
	return chi.URLParam(r, "source")
}

func sourceParam(r *http.Request) (models.Source, error) {
	return models.ParseSource(chi.URLParam(r, "source"))
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
