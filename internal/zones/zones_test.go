package zones

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/database/dbtest"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
)

var plateau = models.Bounds{MinLat: 45.4, MaxLat: 45.6, MinLng: -73.7, MaxLng: -73.5}

func newService(t *testing.T) (*Service, *repositories.Repository) {
	t.Helper()
	repo := repositories.New(dbtest.Open(t))
	six := 6
	units := []*models.RollUnit{
		{Matricule: "m1", Address: "1 rue Fabre", Latitude: 45.50, Longitude: -73.60, Units: &six},
		{Matricule: "m2", Address: "2 rue Fabre", Latitude: 45.51, Longitude: -73.61, Units: &six},
		{Matricule: "m3", Address: "3 rue Fabre", Latitude: 45.52, Longitude: -73.62, Units: &six},
		{Matricule: "q1", Address: "1 rue Cartier", Latitude: 46.81, Longitude: -71.21, Units: &six},
	}
	if err := repo.InsertRollUnits(context.Background(), units); err != nil {
		t.Fatalf("insert roll units: %v", err)
	}
	return New(repo, Config{}, nil), repo
}

func TestCreateZoneComputesStats(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	m1 := "m1"
	if _, err := repo.UpsertEntity(ctx, &models.Property{MunicipalID: &m1, Address: "1 rue Fabre"}); err != nil {
		t.Fatalf("upsert property: %v", err)
	}

	zone, err := svc.CreateZone(ctx, "Plateau", plateau, models.ZoneFilters{})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}
	if zone.ID == 0 || zone.TotalProperties != 3 || zone.ScrapedCount != 1 || zone.Remaining() != 2 {
		t.Fatalf("unexpected zone %+v", zone)
	}

	m2 := "m2"
	if _, err := repo.UpsertEntity(ctx, &models.Property{MunicipalID: &m2, Address: "2 rue Fabre"}); err != nil {
		t.Fatalf("upsert property: %v", err)
	}
	refreshed, err := svc.RefreshStats(ctx, zone.ID)
	if err != nil || refreshed.ScrapedCount != 2 {
		t.Fatalf("unexpected refresh %+v %v", refreshed, err)
	}

	if _, err := svc.CreateZone(ctx, "bad", models.Bounds{MinLat: 46, MaxLat: 45, MinLng: -74, MaxLng: -73}, models.ZoneFilters{}); err == nil {
		t.Fatalf("expected inverted bounds to be rejected")
	}
}

func TestCreateJobSelectsInOrder(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	if _, _, err := repo.RecordCapture(ctx, repositories.CaptureRecord{
		Key:         models.ItemKey{Source: models.SourceMunicipal, SourceItemID: "m2"},
		StoragePath: "municipal/2026/03/m2.json",
		Status:      models.CaptureSuccess,
		CapturedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("record capture: %v", err)
	}
	zone, err := svc.CreateZone(ctx, "Plateau", plateau, models.ZoneFilters{})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}

	desc, err := svc.CreateJob(ctx, zone.ID, 10)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	items := desc.Job.Items
	if len(items) != 2 || items[0].Matricule != "m1" || items[1].Matricule != "m3" || items[1].Position != 2 {
		t.Fatalf("unexpected items %+v", items)
	}
	if desc.Pacing.MinDelay != 90*time.Second || desc.Pacing.MaxDelay != 180*time.Second {
		t.Fatalf("unexpected pacing %+v", desc.Pacing)
	}
	if d := desc.Pacing.Delay(); d < 90*time.Second || d > 180*time.Second {
		t.Fatalf("delay %s outside the pacing window", d)
	}
}

func TestCreateJobOnCompleteZone(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	zone, err := svc.CreateZone(ctx, "Empty", models.Bounds{MinLat: 10, MaxLat: 11, MinLng: 10, MaxLng: 11}, models.ZoneFilters{})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}
	if _, err := svc.CreateJob(ctx, zone.ID, 5); !errors.Is(err, ErrZoneComplete) {
		t.Fatalf("expected ErrZoneComplete, got %v", err)
	}
	jobs, err := svc.ListJobs(ctx, zone.ID)
	if err != nil || len(jobs) != 0 {
		t.Fatalf("expected no job row, got %v %v", jobs, err)
	}
}

func TestCompleteZoneStatsAgree(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	zone, err := svc.CreateZone(ctx, "Plateau", plateau, models.ZoneFilters{})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}
	m1 := "m1"
	if _, err := repo.UpsertEntity(ctx, &models.Property{MunicipalID: &m1, Address: "1 rue Fabre"}); err != nil {
		t.Fatalf("upsert property: %v", err)
	}
	// m2 and m3 are captured but not transformed yet.
	for _, id := range []string{"m2", "m3"} {
		if _, _, err := repo.RecordCapture(ctx, repositories.CaptureRecord{
			Key:         models.ItemKey{Source: models.SourceMunicipal, SourceItemID: id},
			StoragePath: "municipal/2026/03/" + id + ".json",
			Status:      models.CaptureSuccess,
			CapturedAt:  time.Now(),
		}); err != nil {
			t.Fatalf("record capture: %v", err)
		}
	}

	if _, err := svc.CreateJob(ctx, zone.ID, 5); !errors.Is(err, ErrZoneComplete) {
		t.Fatalf("expected ErrZoneComplete, got %v", err)
	}
	stored, err := repo.GetZone(ctx, zone.ID)
	if err != nil {
		t.Fatalf("get zone: %v", err)
	}
	if stored.TotalProperties != 3 || stored.ScrapedCount != 3 || stored.Remaining() != 0 {
		t.Fatalf("expected counters to agree with a complete zone, got %+v", stored)
	}
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	zone, err := svc.CreateZone(ctx, "Plateau", plateau, models.ZoneFilters{})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}
	desc, err := svc.CreateJob(ctx, zone.ID, 2)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	id := desc.Job.ID

	if err := svc.RecordJobItem(ctx, id, "m1", true, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected items rejected before start, got %v", err)
	}
	if _, err := svc.FinishJob(ctx, id, models.JobCompleted, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected pending -> completed rejected, got %v", err)
	}

	job, err := svc.StartJob(ctx, id)
	if err != nil || job.Status != models.JobRunning || job.StartedAt == nil {
		t.Fatalf("unexpected start %+v %v", job, err)
	}
	if err := svc.RecordJobItem(ctx, id, "m1", true, ""); err != nil {
		t.Fatalf("record item: %v", err)
	}
	if err := svc.RecordJobItem(ctx, id, "m2", false, "timeout"); err != nil {
		t.Fatalf("record item: %v", err)
	}
	if err := svc.RecordJobItem(ctx, id, "m2", true, ""); err != nil {
		t.Fatalf("record retry: %v", err)
	}

	job, err = svc.FinishJob(ctx, id, models.JobCompleted, "")
	if err != nil {
		t.Fatalf("finish job: %v", err)
	}
	if job.Status != models.JobCompleted || job.ScrapedCount != 2 || job.FailedCount != 0 || job.FinishedAt == nil {
		t.Fatalf("unexpected finished job %+v", job)
	}
	if _, err := svc.StartJob(ctx, id); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected completed job to stay final, got %v", err)
	}

	jobs, err := svc.ListJobs(ctx, zone.ID)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("unexpected jobs %v %v", jobs, err)
	}
}
