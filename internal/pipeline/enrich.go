package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkoziy/habitat/ingest/internal/matching"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/parse"
	"github.com/mkoziy/habitat/ingest/internal/transform"
)

// enrich runs the optional enrichments on a stored canonical row. Failures
// never fail the item; they are returned as warnings.
func (o *Orchestrator) enrich(ctx context.Context, r *run, d transform.Draft) []string {
	var warnings []string
	if w := o.geocode(ctx, r, d); w != "" {
		warnings = append(warnings, w)
	}
	warnings = append(warnings, o.materialize(ctx, r, d)...)
	if w := o.linkOwner(ctx, r, d); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

func (o *Orchestrator) geocode(ctx context.Context, r *run, d transform.Draft) string {
	loc, ok := d.Entity.(models.Locatable)
	if !ok || o.geocoder == nil || models.HasCoordinates(loc) {
		return ""
	}
	if d.Address == nil {
		return "geocode: no address to geocode"
	}
	coords, err := o.geocoder.Geocode(ctx, d.Address.Address, d.Address.City, d.Address.PostalCode)
	if err != nil {
		r.logger.Warn("geocode failed", slog.String("error", err.Error()))
		return fmt.Sprintf("geocode: %v", err)
	}
	if coords == nil {
		return "geocode: no match for address"
	}
	at := o.now()
	if err := o.repo.UpdateCoordinates(ctx, d.Entity, coords.Lat, coords.Lng, at); err != nil {
		return fmt.Sprintf("geocode: %v", err)
	}
	loc.SetCoordinates(coords.Lat, coords.Lng, at)
	return ""
}

func (o *Orchestrator) materialize(ctx context.Context, r *run, d transform.Draft) []string {
	holder, ok := d.Entity.(models.MediaHolder)
	if !ok || o.media == nil {
		return nil
	}
	var warnings []string
	for _, kind := range []models.MediaKind{models.MediaImage, models.MediaVideo} {
		urls := d.MediaURLs[kind]
		if len(urls) == 0 || len(holder.Media(kind)) > 0 {
			continue
		}
		paths, warns := o.media.Materialize(ctx, urls, d.Entity.EntityID(), kind, r.key.Source)
		warnings = append(warnings, warns...)
		if len(paths) == 0 {
			continue
		}
		if err := o.repo.UpdateMedia(ctx, d.Entity, kind, paths); err != nil {
			warnings = append(warnings, fmt.Sprintf("media %s: %v", kind, err))
			continue
		}
		holder.SetMedia(kind, paths)
	}
	return warnings
}

// linkOwner points a property at the registry company named among its owners.
// The first owner with a single best match wins; ties are reported.
func (o *Orchestrator) linkOwner(ctx context.Context, r *run, d transform.Draft) string {
	p, ok := d.Entity.(*models.Property)
	if !ok || o.matcher == nil || p.OwnerCompanyID != nil || len(d.OwnerNames) == 0 {
		return ""
	}
	var ambiguous []string
	for _, owner := range d.OwnerNames {
		candidates, err := o.repo.CompanyCandidates(ctx, parse.NormalizeName(owner), o.opts.CandidateLimit)
		if err != nil {
			return fmt.Sprintf("owner match: %v", err)
		}
		matches := o.matcher.Match(owner, candidates)
		if len(matches) == 0 {
			continue
		}
		best, ok := matching.Best(matches)
		if !ok {
			ambiguous = append(ambiguous, owner)
			continue
		}
		if err := o.repo.SetOwnerCompany(ctx, p.ID, best.Company.ID); err != nil {
			return fmt.Sprintf("owner match: %v", err)
		}
		id := best.Company.ID
		p.OwnerCompanyID = &id
		r.logger.Debug("owner linked", slog.String("owner", owner), slog.Int64("company_id", id))
		return ""
	}
	if len(ambiguous) > 0 {
		return fmt.Sprintf("owner match: ambiguous companies for %q", ambiguous)
	}
	return ""
}
