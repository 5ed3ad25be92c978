package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

// Variant tags the two on-disk shapes of a raw capture.
type Variant string

const (
	// VariantLegacy is a bare source payload written by the first capture tools.
	VariantLegacy Variant = "legacy"
	// VariantWrapped is a versioned envelope around the source payload.
	VariantWrapped Variant = "wrapped"
)

// Document is a decoded raw capture. Payload always holds the source-specific
// body regardless of Variant.
type Document struct {
	Variant      Variant
	Source       models.Source
	SourceItemID string
	URL          string
	CapturedAt   time.Time
	Status       models.CaptureStatus
	Error        string
	Payload      json.RawMessage
	HTML         string
}

type envelope struct {
	Version      int                  `json:"version"`
	Source       models.Source        `json:"source"`
	SourceItemID string               `json:"source_item_id"`
	URL          string               `json:"url"`
	CapturedAt   *time.Time           `json:"captured_at"`
	Status       models.CaptureStatus `json:"status"`
	Error        string               `json:"error"`
	Data         json.RawMessage      `json:"data"`
	HTML         string               `json:"html"`
}

// Decode resolves the variant of a raw capture once so transformers only see
// a Document. Legacy payloads take source and id from the caller.
func Decode(raw []byte, key models.ItemKey) (Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Document{}, errors.New("capture: document is not a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Document{}, fmt.Errorf("capture: decode document: %w", err)
	}

	if isEnvelope(fields) {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return Document{}, fmt.Errorf("capture: decode envelope: %w", err)
		}
		doc := Document{
			Variant:      VariantWrapped,
			Source:       env.Source,
			SourceItemID: env.SourceItemID,
			URL:          env.URL,
			Status:       env.Status,
			Error:        env.Error,
			Payload:      env.Data,
			HTML:         env.HTML,
		}
		if env.CapturedAt != nil {
			doc.CapturedAt = env.CapturedAt.UTC()
		}
		if doc.Source == "" {
			doc.Source = key.Source
		}
		if doc.SourceItemID == "" {
			doc.SourceItemID = key.SourceItemID
		}
		if key.Source != "" && doc.Source != key.Source {
			return Document{}, fmt.Errorf("capture: document source %q does not match %q", doc.Source, key.Source)
		}
		if !doc.Status.Valid() {
			doc.Status = models.CaptureSuccess
		}
		return doc, nil
	}

	return Document{
		Variant:      VariantLegacy,
		Source:       key.Source,
		SourceItemID: key.SourceItemID,
		Status:       models.CaptureSuccess,
		Payload:      json.RawMessage(trimmed),
	}, nil
}

// Unmarshal decodes the payload into a source-specific type.
func (d Document) Unmarshal(v any) error {
	if len(d.Payload) == 0 {
		return errors.New("capture: empty payload")
	}
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("capture: decode %s payload: %w", d.Source, err)
	}
	return nil
}

// Key returns the natural key of the captured item.
func (d Document) Key() models.ItemKey {
	return models.ItemKey{Source: d.Source, SourceItemID: d.SourceItemID}
}

func isEnvelope(fields map[string]json.RawMessage) bool {
	rawVersion, ok := fields["version"]
	if !ok {
		return false
	}
	data, ok := fields["data"]
	if !ok || len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return false
	}
	var version int
	return json.Unmarshal(rawVersion, &version) == nil && version > 0
}
