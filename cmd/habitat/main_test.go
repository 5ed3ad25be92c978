package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
)

type cliEnv struct {
	configPath string
	dir        string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"lat":"45.5231","lon":"-73.5817"}]`)
	}))
	t.Cleanup(geocoder.Close)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "habitat.yaml")
	body := fmt.Sprintf(`
data_dir: %s
log:
  level: error
  format: json
geocoder:
  base_url: %s
rate_limits:
  geocoder:
    strategy: none
  media:
    strategy: none
`, filepath.Join(dir, "data"), geocoder.URL)
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := &cliEnv{configPath: configPath, dir: dir}
	env.run(t, "migrate")
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.exec(args...)
	if err != nil {
		t.Fatalf("habitat %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *cliEnv) exec(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) writeCapture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write capture: %v", err)
	}
	return path
}

const listing = `{
  "version": 2,
  "source": "facebook",
  "source_item_id": "7001",
  "data": {
    "id": "7001",
    "title": "3 ½ lumineux Rosemont",
    "price": "CA$1,450 / Month",
    "address": "3200 rue Masson, Montréal, QC H1Y 1X8"
  }
}`

func TestCaptureTransformBackfill(t *testing.T) {
	env := setupCLI(t)
	path := env.writeCapture(t, "7001.json", listing)

	env.run(t, "capture", "facebook", path)
	if out := env.run(t, "capture", "facebook", path); !strings.Contains(out, "already captured") {
		t.Fatalf("expected recapture notice, got %q", out)
	}

	out := env.run(t, "transform", "facebook", "7001")
	var res struct {
		Status    string        `json:"status"`
		Canonical models.Rental `json:"canonical"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode transform output %q: %v", out, err)
	}
	if res.Status != pipeline.StatusTransformed || res.Canonical.Bedrooms == nil || *res.Canonical.Bedrooms != 1 {
		t.Fatalf("unexpected transform output %s", out)
	}
	if res.Canonical.Latitude == nil || *res.Canonical.Latitude != 45.5231 {
		t.Fatalf("expected geocoded coordinates, got %s", out)
	}

	out = env.run(t, "backfill", "--force")
	if !strings.Contains(out, "Succeeded") || !strings.Contains(out, "Skipped") {
		t.Fatalf("unexpected backfill table %q", out)
	}

	if _, err := env.exec("transform", "craigslist", "1"); err == nil {
		t.Fatalf("expected unknown source to fail")
	}
}

func TestZoneCommands(t *testing.T) {
	env := setupCLI(t)
	out := env.run(t, "zone", "create", "--name", "Rosemont",
		"--min-lat", "45.5", "--max-lat", "45.6", "--min-lng", "-73.6", "--max-lng", "-73.5")
	if !strings.Contains(out, "Rosemont") {
		t.Fatalf("unexpected zone table %q", out)
	}
	if out := env.run(t, "zone", "job", "1"); !strings.Contains(out, "zone 1 is complete") {
		t.Fatalf("expected empty zone to be complete, got %q", out)
	}
	if out := env.run(t, "zone", "jobs", "1"); !strings.Contains(out, "no jobs") {
		t.Fatalf("unexpected jobs output %q", out)
	}
	if _, err := env.exec("job", "finish", "1", "paused"); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestSummaryTable(t *testing.T) {
	s := &pipeline.Summary{RunID: "run-1", Succeeded: 9, Failed: 1, Failures: []pipeline.Failure{
		{Key: models.ItemKey{Source: models.SourceCentris, SourceItemID: "42"}, Error: "validation: rent: missing"},
	}}
	out := summaryTable(s)
	for _, want := range []string{"run-1", "9", "centris", "rent: missing"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary table missing %q:\n%s", want, out)
		}
	}
}
