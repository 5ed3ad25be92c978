package models

import (
	"testing"
	"time"
)

func TestParseSource(t *testing.T) {
	s, err := ParseSource(" Facebook ")
	if err != nil || s != SourceFacebook {
		t.Fatalf("expected facebook, got %q, %v", s, err)
	}
	if _, err := ParseSource("craigslist"); err == nil {
		t.Fatalf("expected unknown source error")
	}
	if len(Sources()) != 4 {
		t.Fatalf("expected four sources")
	}
}

func TestIngestionMetadataValidate(t *testing.T) {
	m := &IngestionMetadata{
		Source:          SourceCentris,
		SourceItemID:    "28374651",
		CaptureStatus:   CaptureSuccess,
		TransformStatus: TransformPending,
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected valid metadata, got %v", err)
	}

	curated := int64(7)
	m.CuratedID = &curated
	if err := m.Validate(); err != nil {
		t.Fatalf("curated without canonical is a valid partial state, got %v", err)
	}

	m.TransformStatus = TransformSuccess
	if err := m.Validate(); err == nil {
		t.Fatalf("expected success without canonical id to be invalid")
	}

	canonical := int64(3)
	m.CanonicalID = &canonical
	if err := m.Validate(); err != nil {
		t.Fatalf("expected valid success, got %v", err)
	}
}

func TestPreviewRoundTrip(t *testing.T) {
	m := &IngestionMetadata{}
	m.ApplyPreview(Preview{Title: "4 ½ Plateau", Price: "1 850 $"})
	if m.PreviewAddress != nil {
		t.Fatalf("expected blank address to stay null")
	}
	if got := m.Preview(); got.Title != "4 ½ Plateau" || got.Price != "1 850 $" {
		t.Fatalf("unexpected preview %+v", got)
	}
}

func TestStringArrayScan(t *testing.T) {
	var s StringArray
	if err := s.Scan([]byte(`["a","b"]`)); err != nil || len(s) != 2 {
		t.Fatalf("unexpected scan %v, %v", s, err)
	}
	if err := s.Scan(nil); err != nil || len(s) != 0 {
		t.Fatalf("expected empty array for NULL")
	}
	v, err := StringArray(nil).Value()
	if err != nil || v != "[]" {
		t.Fatalf("expected empty JSON array, got %v", v)
	}
}

func TestRentalKeyAndEnrichment(t *testing.T) {
	id := "123"
	r := &Rental{CentrisID: &id}
	if r.Key() != (ItemKey{Source: SourceCentris, SourceItemID: "123"}) {
		t.Fatalf("unexpected key %v", r.Key())
	}
	if HasCoordinates(r) {
		t.Fatalf("expected no coordinates")
	}
	r.SetCoordinates(45.5, -73.6, time.Now())
	if !HasCoordinates(r) {
		t.Fatalf("expected coordinates")
	}
	r.SetMedia(MediaVideo, []string{"media/centris/1/video/01-abc.mp4"})
	if len(r.Media(MediaVideo)) != 1 || len(r.Media(MediaImage)) != 0 {
		t.Fatalf("unexpected media buckets")
	}
}

func TestJobTransitions(t *testing.T) {
	if !JobPending.CanTransition(JobRunning) || !JobRunning.CanTransition(JobCompleted) {
		t.Fatalf("expected forward transitions to be allowed")
	}
	if JobCompleted.CanTransition(JobRunning) || JobPending.CanTransition(JobCompleted) {
		t.Fatalf("expected invalid transitions to be rejected")
	}
	if !JobFailed.Terminal() || JobRunning.Terminal() {
		t.Fatalf("unexpected terminal states")
	}
	if _, err := ParseJobStatus("paused"); err == nil {
		t.Fatalf("expected unknown status error")
	}
}

func TestBoundsValidate(t *testing.T) {
	if err := (Bounds{MinLat: 45.4, MaxLat: 45.6, MinLng: -73.7, MaxLng: -73.5}).Validate(); err != nil {
		t.Fatalf("expected valid bounds, got %v", err)
	}
	if err := (Bounds{MinLat: 45.6, MaxLat: 45.4, MinLng: -73.7, MaxLng: -73.5}).Validate(); err == nil {
		t.Fatalf("expected inverted bounds to fail")
	}
	min, max := 10, 5
	if err := (ZoneFilters{MinUnits: &min, MaxUnits: &max}).Validate(); err == nil {
		t.Fatalf("expected inverted unit range to fail")
	}
}
