package transform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/models"
)

// AddressQuery is the location a draft should be geocoded from.
type AddressQuery struct {
	Address    string
	City       string
	PostalCode string
}

// Draft is the Stage-2 output: the canonical entity before enrichment plus the
// inputs enrichment needs.
type Draft struct {
	Entity     models.Entity
	Address    *AddressQuery
	MediaURLs  map[models.MediaKind][]string
	OwnerNames []string
}

// Transformer converts one source's raw captures into canonical entities.
// Curate and Project are pure and perform no I/O.
type Transformer interface {
	Source() models.Source
	Preview(doc capture.Document) models.Preview
	Curate(doc capture.Document) (models.CuratedRecord, Report)
	Project(rec models.CuratedRecord) (Draft, Report)
}

// Registry maps sources to their transformers.
type Registry struct {
	mu           sync.RWMutex
	transformers map[models.Source]Transformer
}

// NewRegistry builds a registry from the given transformers.
func NewRegistry(ts ...Transformer) *Registry {
	r := &Registry{transformers: make(map[models.Source]Transformer, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds or replaces the transformer of a source.
func (r *Registry) Register(t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transformers[t.Source()] = t
}

// Get returns the transformer of a source.
func (r *Registry) Get(source models.Source) (Transformer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transformers[source]
	if !ok {
		return nil, fmt.Errorf("no transformer registered for source %q", source)
	}
	return t, nil
}

// Sources lists registered sources in name order.
func (r *Registry) Sources() []models.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Source, 0, len(r.transformers))
	for s := range r.transformers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Preview extracts listing excerpts with the document's source transformer.
func (r *Registry) Preview(doc capture.Document) models.Preview {
	t, err := r.Get(doc.Source)
	if err != nil {
		return models.Preview{}
	}
	return t.Preview(doc)
}
