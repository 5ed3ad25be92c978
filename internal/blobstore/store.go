package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

// ErrNotFound is returned by Get when no object exists at the path.
var ErrNotFound = errors.New("blobstore: object not found")

// PutResult reports whether Put wrote new bytes.
type PutResult int

const (
	Created PutResult = iota + 1
	Exists
)

func (r PutResult) String() string {
	switch r {
	case Created:
		return "created"
	case Exists:
		return "exists"
	}
	return "unknown"
}

// Store is a write-once object store. Put never replaces existing bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (PutResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// RawPath returns the partitioned location of a raw capture:
// {source}/{YYYY}/{MM}/{sourceItemID}.json.
func RawPath(source models.Source, sourceItemID string, capturedAt time.Time) string {
	at := capturedAt.UTC()
	return path.Join(string(source), at.Format("2006"), at.Format("01"), safeName(sourceItemID)+".json")
}

// RecapturePath returns the sibling location used when RawPath is already taken.
func RecapturePath(source models.Source, sourceItemID string, capturedAt time.Time) string {
	at := capturedAt.UTC()
	name := fmt.Sprintf("%s.%s.json", safeName(sourceItemID), at.Format("20060102T150405Z"))
	return path.Join(string(source), at.Format("2006"), at.Format("01"), name)
}

// MediaPath returns the location of the n-th (0-based) media object of an owner.
func MediaPath(source models.Source, ownerID int64, kind models.MediaKind, n int, sha8, ext string) string {
	return path.Join("media", string(source), fmt.Sprint(ownerID), string(kind), fmt.Sprintf("%02d-%s%s", n+1, sha8, ext))
}

// CleanKey validates a relative object key.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("blobstore: empty key")
	}
	cleaned := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("blobstore: invalid key %q", key)
	}
	return cleaned, nil
}

func safeName(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
