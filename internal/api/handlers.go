package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
	"github.com/mkoziy/habitat/ingest/internal/zones"
)

type captureRequest struct {
	SourceItemID string               `json:"source_item_id"`
	Status       models.CaptureStatus `json:"status"`
	Error        string               `json:"error"`
	CapturedAt   *time.Time           `json:"captured_at"`
	Document     json.RawMessage      `json:"document"`
}

type captureResponse struct {
	Status string `json:"status"`
	capture.Result
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	source, err := sourceParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, pipeline.KindNotFound, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var req captureRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	in := capture.Request{
		Source:       source,
		SourceItemID: strings.TrimSpace(req.SourceItemID),
		Body:         req.Document,
		Status:       req.Status,
		Error:        req.Error,
	}
	if req.CapturedAt != nil {
		in.CapturedAt = req.CapturedAt.UTC()
	}
	res, err := s.recorder.Record(r.Context(), in)
	if errors.Is(err, capture.ErrAlreadyCaptured) {
		writeJSON(w, http.StatusOK, captureResponse{Status: "already_captured", Result: res})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, captureResponse{Status: "captured", Result: res})
}

type transformRequest struct {
	SourceItemID string `json:"sourceItemId"`
	Force        bool   `json:"force"`
}

type transformResponse struct {
	Status    string               `json:"status"`
	RunID     string               `json:"run_id,omitempty"`
	Curated   models.CuratedRecord `json:"curated"`
	Canonical models.Entity        `json:"canonical"`
	Warnings  []string             `json:"warnings"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	source, err := sourceParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, pipeline.KindNotFound, err)
		return
	}
	var req transformRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	if strings.TrimSpace(req.SourceItemID) == "" {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, errors.New("sourceItemId is required"))
		return
	}
	key := models.ItemKey{Source: source, SourceItemID: strings.TrimSpace(req.SourceItemID)}
	res, err := s.pipeline.Run(r.Context(), key, req.Force)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transformResponse{
		Status:    res.Status,
		RunID:     res.RunID,
		Curated:   res.Curated,
		Canonical: res.Canonical,
		Warnings:  res.Warnings,
	})
}

type backfillRequest struct {
	Force       bool `json:"force"`
	Limit       int  `json:"limit"`
	Concurrency int  `json:"concurrency"`
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.BackfillOptions
	if raw := chiSource(r); raw != "" {
		source, err := models.ParseSource(raw)
		if err != nil {
			writeError(w, http.StatusNotFound, pipeline.KindNotFound, err)
			return
		}
		opts.Source = source
	}
	var req backfillRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	if req.Limit < 0 || req.Concurrency < 0 {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, errors.New("limit and concurrency must be non-negative"))
		return
	}
	opts.Force, opts.Limit, opts.Concurrency = req.Force, req.Limit, req.Concurrency

	summary, err := s.pipeline.Backfill(r.Context(), opts)
	if err != nil && summary == nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type zoneRequest struct {
	Name    string             `json:"name"`
	Bounds  models.Bounds      `json:"bounds"`
	Filters models.ZoneFilters `json:"filters"`
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	if err := validateZone(req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	zone, err := s.zones.CreateZone(r.Context(), req.Name, req.Bounds, req.Filters)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, zone)
}

func validateZone(req zoneRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if err := req.Bounds.Validate(); err != nil {
		return err
	}
	return req.Filters.Validate()
}

func (s *Server) handleRefreshZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "zoneID")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	zone, err := s.zones.RefreshStats(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "zoneID")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	var req struct {
		Limit int `json:"limit"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	desc, err := s.zones.CreateJob(r.Context(), id, req.Limit)
	if errors.Is(err, zones.ErrZoneComplete) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "already_complete", "zone_id": id})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, desc)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "zoneID")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	jobs, err := s.zones.ListJobs(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*models.ZoneJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	job, err := s.zones.GetJob(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	job, err := s.zones.StartJob(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	var req struct {
		Matricule string `json:"matricule"`
		OK        bool   `json:"ok"`
		Error     string `json:"error"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	if strings.TrimSpace(req.Matricule) == "" {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, errors.New("matricule is required"))
		return
	}
	if err := s.zones.RecordJobItem(r.Context(), id, strings.TrimSpace(req.Matricule), req.OK, req.Error); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinishJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	var req struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, err)
		return
	}
	status, err := models.ParseJobStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindValidation, fmt.Errorf("finish job: %w", err))
		return
	}
	job, err := s.zones.FinishJob(r.Context(), id, status, req.Error)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
