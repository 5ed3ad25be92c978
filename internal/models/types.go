package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Source identifies the external system an item was captured from.
type Source string

const (
	SourceFacebook  Source = "facebook"
	SourceCentris   Source = "centris"
	SourceMunicipal Source = "municipal"
	SourceRegistry  Source = "registry"
)

var allSources = []Source{SourceFacebook, SourceCentris, SourceMunicipal, SourceRegistry}

// Sources returns every known source in a stable order.
func Sources() []Source {
	out := make([]Source, len(allSources))
	copy(out, allSources)
	return out
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	for _, known := range allSources {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSource normalizes and validates a source name.
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", raw)
	}
	return s, nil
}

// CaptureStatus is the outcome reported by the capture collaborator.
type CaptureStatus string

const (
	CaptureSuccess CaptureStatus = "success"
	CapturePartial CaptureStatus = "partial"
	CaptureFailed  CaptureStatus = "failed"
)

// Valid reports whether c is a known capture status.
func (c CaptureStatus) Valid() bool {
	switch c {
	case CaptureSuccess, CapturePartial, CaptureFailed:
		return true
	}
	return false
}

// TransformStatus tracks the last transformation outcome of an item.
type TransformStatus string

const (
	TransformPending TransformStatus = "pending"
	TransformSuccess TransformStatus = "success"
	TransformFailed  TransformStatus = "failed"
	TransformSkipped TransformStatus = "skipped"
)

// MediaKind separates photos from videos in materialized media.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ItemKey is the natural key of a captured item.
type ItemKey struct {
	Source       Source `json:"source"`
	SourceItemID string `json:"source_item_id"`
}

func (k ItemKey) String() string {
	return string(k.Source) + ":" + k.SourceItemID
}

// StringArray stores an ordered list of strings as a JSON column.
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringArray) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringArray{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan StringArray")
	}
	if len(raw) == 0 {
		*s = StringArray{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(s))
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
