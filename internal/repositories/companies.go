package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

// CompanyCandidates returns companies whose normalized name equals, contains,
// or is contained in normalized. The caller decides which candidates match.
func (r *Repository) CompanyCandidates(ctx context.Context, normalized string, limit int) ([]*models.Company, error) {
	if normalized == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 25
	}
	var companies []*models.Company
	err := r.db.NewSelect().
		Model(&companies).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("normalized_name = ?", normalized).
				WhereOr("normalized_name LIKE ?", "%"+normalized+"%").
				WhereOr("? LIKE '%' || normalized_name || '%'", normalized)
		}).
		OrderExpr("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("company candidates for %q: %w", normalized, err)
	}
	return companies, nil
}
