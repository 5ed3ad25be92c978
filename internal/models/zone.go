package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RollUnit is one row of the municipal assessment roll, loaded by an external import.
type RollUnit struct {
	bun.BaseModel `bun:"table:roll_units,alias:ru"`

	ID        int64    `bun:"id,pk,autoincrement" json:"id"`
	Matricule string   `bun:"matricule,notnull,unique" json:"matricule"`
	Address   string   `bun:"address,notnull" json:"address"`
	Latitude  float64  `bun:"latitude,notnull" json:"latitude"`
	Longitude float64  `bun:"longitude,notnull" json:"longitude"`
	Units     *int     `bun:"units" json:"units,omitempty"`
	UseCode   *string  `bun:"use_code" json:"use_code,omitempty"`
	Value     *float64 `bun:"assessed_value" json:"assessed_value,omitempty"`
}

// Bounds is a latitude/longitude box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Validate checks that the box is well formed.
func (b Bounds) Validate() error {
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLng < -180 || b.MaxLng > 180 {
		return errors.New("bounds out of range")
	}
	if b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng {
		return errors.New("bounds min must be below max")
	}
	return nil
}

// ZoneFilters narrows the roll units that count towards a zone.
type ZoneFilters struct {
	MinUnits *int    `json:"min_units,omitempty"`
	MaxUnits *int    `json:"max_units,omitempty"`
	UseCode  *string `json:"use_code,omitempty"`
}

// Validate checks that the unit range is consistent.
func (f ZoneFilters) Validate() error {
	if f.MinUnits != nil && *f.MinUnits < 0 {
		return errors.New("min_units must be non-negative")
	}
	if f.MinUnits != nil && f.MaxUnits != nil && *f.MinUnits > *f.MaxUnits {
		return errors.New("min_units exceeds max_units")
	}
	return nil
}

// ScrapeZone is a named geographic area with cached coverage stats.
type ScrapeZone struct {
	bun.BaseModel `bun:"table:scrape_zones,alias:sz"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	Name             string     `bun:"name,notnull" json:"name"`
	MinLat           float64    `bun:"min_lat,notnull" json:"min_lat"`
	MaxLat           float64    `bun:"max_lat,notnull" json:"max_lat"`
	MinLng           float64    `bun:"min_lng,notnull" json:"min_lng"`
	MaxLng           float64    `bun:"max_lng,notnull" json:"max_lng"`
	MinUnits         *int       `bun:"min_units" json:"min_units,omitempty"`
	MaxUnits         *int       `bun:"max_units" json:"max_units,omitempty"`
	UseCode          *string    `bun:"use_code" json:"use_code,omitempty"`
	TotalProperties  int        `bun:"total_properties,notnull,default:0" json:"total_properties"`
	ScrapedCount     int        `bun:"scraped_count,notnull,default:0" json:"scraped_count"`
	StatsRefreshedAt *time.Time `bun:"stats_refreshed_at" json:"stats_refreshed_at,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Bounds returns the zone box.
func (z *ScrapeZone) Bounds() Bounds {
	return Bounds{MinLat: z.MinLat, MaxLat: z.MaxLat, MinLng: z.MinLng, MaxLng: z.MaxLng}
}

// Filters returns the zone filters.
func (z *ScrapeZone) Filters() ZoneFilters {
	return ZoneFilters{MinUnits: z.MinUnits, MaxUnits: z.MaxUnits, UseCode: z.UseCode}
}

// Remaining is the number of eligible units not yet scraped.
func (z *ScrapeZone) Remaining() int {
	if n := z.TotalProperties - z.ScrapedCount; n > 0 {
		return n
	}
	return 0
}

// JobStatus is the lifecycle state of a zone job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobRunning, JobCancelled},
	JobRunning: {JobCompleted, JobFailed, JobCancelled},
}

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return len(jobTransitions[s]) == 0
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseJobStatus validates a status name.
func ParseJobStatus(raw string) (JobStatus, error) {
	switch s := JobStatus(raw); s {
	case JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown job status %q", raw)
}

// ZoneJob is a bounded batch of roll units selected for capture.
type ZoneJob struct {
	bun.BaseModel `bun:"table:zone_jobs,alias:zj"`

	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	ZoneID         int64      `bun:"zone_id,notnull" json:"zone_id"`
	RequestedLimit int        `bun:"requested_limit,notnull" json:"requested_limit"`
	Status         JobStatus  `bun:"status,notnull" json:"status"`
	ScrapedCount   int        `bun:"scraped_count,notnull,default:0" json:"scraped_count"`
	FailedCount    int        `bun:"failed_count,notnull,default:0" json:"failed_count"`
	Error          *string    `bun:"error" json:"error,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	StartedAt      *time.Time `bun:"started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time `bun:"finished_at" json:"finished_at,omitempty"`

	Items []*ZoneJobItem `bun:"rel:has-many,join:id=job_id" json:"items,omitempty"`
}

// ItemStatus is the capture outcome of a single job item.
type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemCaptured ItemStatus = "captured"
	ItemFailed   ItemStatus = "failed"
)

// ZoneJobItem is one matricule selected for a job, in selection order.
type ZoneJobItem struct {
	bun.BaseModel `bun:"table:zone_job_items,alias:zi"`

	ID        int64      `bun:"id,pk,autoincrement" json:"id"`
	JobID     int64      `bun:"job_id,notnull,unique:zone_job_item" json:"job_id"`
	Matricule string     `bun:"matricule,notnull,unique:zone_job_item" json:"matricule"`
	Position  int        `bun:"position,notnull" json:"position"`
	Address   string     `bun:"address,notnull" json:"address"`
	Status    ItemStatus `bun:"status,notnull" json:"status"`
	Error     *string    `bun:"error" json:"error,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at" json:"updated_at,omitempty"`
}
