package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkoziy/habitat/ingest/internal/blobstore"
	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/database/dbtest"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
	"github.com/mkoziy/habitat/ingest/internal/sources/centris"
	"github.com/mkoziy/habitat/ingest/internal/sources/facebook"
	"github.com/mkoziy/habitat/ingest/internal/sources/municipal"
	"github.com/mkoziy/habitat/ingest/internal/sources/registry"
	"github.com/mkoziy/habitat/ingest/internal/transform"
	"github.com/mkoziy/habitat/ingest/internal/zones"
)

type env struct {
	srv  *httptest.Server
	repo *repositories.Repository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := repositories.New(dbtest.Open(t))
	blobs := blobstore.NewMemory()
	reg := transform.NewRegistry(facebook.New(), centris.New(), municipal.New(), registry.New())
	orch := pipeline.New(pipeline.Deps{Repo: repo, Blobs: blobs, Registry: reg}, pipeline.DefaultOptions())
	s := New(capture.NewRecorder(blobs, repo, reg, nil), orch, zones.New(repo, zones.Config{}, nil), nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &env{srv: srv, repo: repo}
}

func (e *env) post(t *testing.T, path string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func (e *env) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func ad(id string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
  "version": 2,
  "source": "facebook",
  "source_item_id": %q,
  "data": {
    "id": %q,
    "title": "Bright 5 ½ near Laurier",
    "price": "CA$2,175 / Month",
    "address": "5100 avenue du Parc, Montréal, QC H2V 4G7",
    "unit_details": ["3 beds · 1 bath"]
  }
}`, id, id))
}

func decodeInto(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	code, body := e.get(t, "/health")
	if code != http.StatusOK || !bytes.Contains(body, []byte(`"ok"`)) {
		t.Fatalf("unexpected health %d %s", code, body)
	}
}

func TestCaptureAndTransform(t *testing.T) {
	e := newEnv(t)

	code, body := e.post(t, "/sources/facebook/captures", map[string]any{"source_item_id": "3001", "document": ad("3001")})
	if code != http.StatusCreated {
		t.Fatalf("capture: %d %s", code, body)
	}
	var first, again struct {
		Status      string `json:"status"`
		MetadataID  int64  `json:"metadata_id"`
		StoragePath string `json:"storage_path"`
		Existed     bool   `json:"existed"`
	}
	decodeInto(t, body, &first)
	if first.Status != "captured" || first.MetadataID == 0 || first.Existed {
		t.Fatalf("unexpected capture response %s", body)
	}
	code, body = e.post(t, "/sources/facebook/captures", map[string]any{"source_item_id": "3001", "document": ad("3001")})
	if code != http.StatusOK {
		t.Fatalf("expected the existing record on recapture, got %d %s", code, body)
	}
	decodeInto(t, body, &again)
	if again.Status != "already_captured" || again.MetadataID != first.MetadataID || again.StoragePath != first.StoragePath || !again.Existed {
		t.Fatalf("unexpected recapture response %s", body)
	}

	code, body = e.post(t, "/sources/facebook/transform", map[string]any{"sourceItemId": "3001"})
	if code != http.StatusOK {
		t.Fatalf("transform: %d %s", code, body)
	}
	var out struct {
		Status    string         `json:"status"`
		Canonical map[string]any `json:"canonical"`
		Warnings  []string       `json:"warnings"`
	}
	decodeInto(t, body, &out)
	if out.Status != pipeline.StatusTransformed || out.Canonical["rent"] != 2175.0 || out.Canonical["bedrooms"] != 3.0 {
		t.Fatalf("unexpected transform response %s", body)
	}

	code, body = e.post(t, "/sources/facebook/transform", map[string]any{"sourceItemId": "3001"})
	decodeInto(t, body, &out)
	if code != http.StatusOK || out.Status != pipeline.StatusAlreadyTransformed {
		t.Fatalf("expected already transformed, got %d %s", code, body)
	}
}

func TestTransformErrors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		path string
		body any
		code int
		kind pipeline.Kind
	}{
		{"unknown source", "/sources/craigslist/transform", map[string]any{"sourceItemId": "1"}, http.StatusNotFound, pipeline.KindNotFound},
		{"missing id", "/sources/facebook/transform", map[string]any{}, http.StatusBadRequest, pipeline.KindValidation},
		{"not captured", "/sources/facebook/transform", map[string]any{"sourceItemId": "404"}, http.StatusNotFound, pipeline.KindNotFound},
		{"unknown field", "/sources/facebook/transform", map[string]any{"id": "1"}, http.StatusBadRequest, pipeline.KindValidation},
		{"bad document", "/sources/facebook/captures", map[string]any{"source_item_id": "9", "document": []int{1}}, http.StatusBadRequest, pipeline.KindValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := e.post(t, tc.path, tc.body)
			var got errorBody
			decodeInto(t, body, &got)
			if code != tc.code || got.Kind != tc.kind {
				t.Fatalf("expected %d/%s, got %d %s", tc.code, tc.kind, code, body)
			}
		})
	}
}

func TestBackfillEndpoint(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"a1", "a2"} {
		if code, body := e.post(t, "/sources/facebook/captures", map[string]any{"source_item_id": id, "document": ad(id)}); code != http.StatusCreated {
			t.Fatalf("capture %s: %d %s", id, code, body)
		}
	}
	if code, body := e.post(t, "/sources/facebook/captures", map[string]any{"source_item_id": "a3", "status": "failed", "error": "login wall"}); code != http.StatusCreated {
		t.Fatalf("capture failed item: %d %s", code, body)
	}

	code, body := e.post(t, "/backfill", nil)
	if code != http.StatusOK {
		t.Fatalf("backfill: %d %s", code, body)
	}
	var summary pipeline.Summary
	decodeInto(t, body, &summary)
	if summary.Succeeded != 2 || summary.Skipped != 1 || summary.Failed != 0 || summary.RunID == "" {
		t.Fatalf("unexpected summary %s", body)
	}

	code, body = e.post(t, "/sources/centris/backfill", map[string]any{"limit": 5})
	decodeInto(t, body, &summary)
	if code != http.StatusOK || summary.Succeeded != 0 {
		t.Fatalf("unexpected centris backfill %d %s", code, body)
	}

	code, body = e.post(t, "/backfill", map[string]any{"concurrency": 10000})
	decodeInto(t, body, &summary)
	if code != http.StatusOK || summary.Concurrency != pipeline.DefaultOptions().MaxConcurrency {
		t.Fatalf("expected concurrency capped at %d, got %d %s", pipeline.DefaultOptions().MaxConcurrency, code, body)
	}
}

func TestZoneJobFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.repo.InsertRollUnits(ctx, []*models.RollUnit{
		{Matricule: "m1", Address: "10 rue Rachel", Latitude: 45.52, Longitude: -73.58},
		{Matricule: "m2", Address: "12 rue Rachel", Latitude: 45.52, Longitude: -73.58},
	}); err != nil {
		t.Fatalf("insert roll units: %v", err)
	}

	code, body := e.post(t, "/zones", map[string]any{"name": "Plateau", "bounds": map[string]float64{"min_lat": 45.5, "max_lat": 45.6, "min_lng": -73.6, "max_lng": -73.5}})
	if code != http.StatusCreated {
		t.Fatalf("create zone: %d %s", code, body)
	}
	var zone models.ScrapeZone
	decodeInto(t, body, &zone)
	if zone.TotalProperties != 2 {
		t.Fatalf("unexpected zone %s", body)
	}

	code, body = e.post(t, "/zones", map[string]any{"name": "bad", "bounds": map[string]float64{"min_lat": 46, "max_lat": 45}})
	if code != http.StatusBadRequest {
		t.Fatalf("expected bad bounds rejected, got %d %s", code, body)
	}

	code, body = e.post(t, fmt.Sprintf("/zones/%d/jobs", zone.ID), map[string]int{"limit": 1})
	if code != http.StatusCreated {
		t.Fatalf("create job: %d %s", code, body)
	}
	var desc zones.JobDescriptor
	decodeInto(t, body, &desc)
	if len(desc.Job.Items) != 1 || desc.Job.Items[0].Matricule != "m1" {
		t.Fatalf("unexpected job %s", body)
	}
	jobPath := fmt.Sprintf("/jobs/%d", desc.Job.ID)

	if code, body := e.post(t, jobPath+"/items", map[string]any{"matricule": "m1", "ok": true}); code != http.StatusConflict {
		t.Fatalf("expected item before start to conflict, got %d %s", code, body)
	}
	if code, body := e.post(t, jobPath+"/start", nil); code != http.StatusOK {
		t.Fatalf("start job: %d %s", code, body)
	}
	if code, body := e.post(t, jobPath+"/items", map[string]any{"matricule": "m1", "ok": true}); code != http.StatusNoContent {
		t.Fatalf("record item: %d %s", code, body)
	}
	if code, body := e.post(t, jobPath+"/finish", map[string]string{"status": "paused"}); code != http.StatusBadRequest {
		t.Fatalf("expected unknown status rejected, got %d %s", code, body)
	}
	code, body = e.post(t, jobPath+"/finish", map[string]string{"status": "completed"})
	var job models.ZoneJob
	decodeInto(t, body, &job)
	if code != http.StatusOK || job.Status != models.JobCompleted || job.ScrapedCount != 1 {
		t.Fatalf("unexpected finish %d %s", code, body)
	}

	code, body = e.get(t, fmt.Sprintf("/zones/%d/jobs", zone.ID))
	var jobs []models.ZoneJob
	decodeInto(t, body, &jobs)
	if code != http.StatusOK || len(jobs) != 1 {
		t.Fatalf("unexpected jobs %d %s", code, body)
	}
	if code, _ := e.get(t, "/zones/999/jobs"); code != http.StatusNotFound {
		t.Fatalf("expected unknown zone to be 404, got %d", code)
	}
}
