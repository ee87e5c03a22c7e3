package badger

import (
	"context"

	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/storage"
)

// FindByKeywords scans partners in ID order and keeps those where any
// keyword occurs in any of fields.
func (s *Store) FindByKeywords(ctx context.Context, keywords []string, fields []core.Field, limit int) ([]*core.Partner, error) {
	if len(keywords) == 0 || len(fields) == 0 {
		return []*core.Partner{}, nil
	}
	results := []*core.Partner{}
	err := s.scanPartners(ctx, func(p *core.Partner) bool {
		if storage.MatchesAnyKeyword(p, keywords, fields) {
			results = append(results, p)
		}
		return limit <= 0 || len(results) < limit
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
