package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/lexical"
	"github.com/poiesic/partners/storage"
)

const (
	sqlNearestPartners = `
SELECT id, 1 - (embedding <=> $1) AS score
FROM partners
WHERE embedding IS NOT NULL AND vector_norm(embedding) > 0
ORDER BY embedding <=> $1, id
LIMIT $2`

	sqlCreateVectorIndex = `
CREATE INDEX IF NOT EXISTS partners_embedding_idx
ON partners
USING hnsw (embedding vector_cosine_ops)`

	// Weight classes follow core.Field.Class. The 'simple' configuration
	// matches lexical.Tokenize: lowercase, no stemming, no stop words.
	sqlAddSearchableText = `
ALTER TABLE partners ADD COLUMN IF NOT EXISTS searchable_text tsvector
GENERATED ALWAYS AS (
    setweight(to_tsvector('simple', coalesce(name, '')), 'A') ||
    setweight(to_tsvector('simple', coalesce(industry, '')), 'A') ||
    setweight(to_tsvector('simple', coalesce(description, '')), 'B') ||
    setweight(to_tsvector('simple', coalesce(location, '')), 'C') ||
    setweight(to_tsvector('simple', coalesce(website, '')), 'C') ||
    setweight(to_tsvector('simple', coalesce(additional_text, '')), 'C') ||
    setweight(to_tsvector('simple', coalesce(contact_email, '')), 'D') ||
    setweight(to_tsvector('simple', coalesce(contact_phone, '')), 'D')
) STORED`

	sqlCreateLexicalIndex = `
CREATE INDEX IF NOT EXISTS partners_searchable_text_idx
ON partners
USING gin (searchable_text)`

	sqlLexicalIndexExists = `
SELECT EXISTS (
    SELECT 1 FROM pg_indexes
    WHERE tablename = 'partners' AND indexname = 'partners_searchable_text_idx'
)`

	// Normalization 1|32: divide by 1 + ln(length), then map to rank/(rank+1).
	sqlRankLexical = `
SELECT id, ts_rank_cd('{0.1, 0.2, 0.4, 1.0}', searchable_text, query, 1|32) AS score
FROM partners, to_tsquery('simple', $1) query
WHERE searchable_text @@ query
ORDER BY score DESC, id
LIMIT $2`

	sqlFindByKeywordsTemplate = `
SELECT ` + partnerColumns + `
FROM partners
WHERE %s
ORDER BY id
LIMIT $2`
)

var fieldColumns = map[core.Field]string{
	core.FieldName:           "name",
	core.FieldDescription:    "description",
	core.FieldIndustry:       "industry",
	core.FieldLocation:       "location",
	core.FieldWebsite:        "website",
	core.FieldContactEmail:   "contact_email",
	core.FieldContactPhone:   "contact_phone",
	core.FieldAdditionalData: "additional_text",
}

// NearestPartners orders partners by cosine distance using pgvector.
func (s *Store) NearestPartners(ctx context.Context, vector []float32, k int) ([]core.Match, error) {
	if k <= 0 || storage.Normalize(vector) == nil {
		return []core.Match{}, nil
	}
	if err := core.ValidateEmbedding(vector, s.dimensions); err != nil {
		return nil, err
	}
	matches, err := queryMatches(ctx, s.pool, sqlNearestPartners, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].Score = storage.ClampSimilarity(matches[i].Score)
	}
	return matches, nil
}

// EnsureVectorIndex creates the HNSW index. Search works without it.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	_, err, _ := s.maintenance.Do("vector", func() (any, error) {
		if _, err := s.pool.Exec(ctx, sqlCreateVectorIndex); err != nil {
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		s.logger.Info("index built", "index", "vector")
		return nil, nil
	})
	return err
}

// FindByKeywords matches keywords with ILIKE against the given columns.
func (s *Store) FindByKeywords(ctx context.Context, keywords []string, fields []core.Field, limit int) ([]*core.Partner, error) {
	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			patterns = append(patterns, "%"+escapeLike(kw)+"%")
		}
	}
	var conds []string
	for _, f := range fields {
		if col, ok := fieldColumns[f]; ok {
			conds = append(conds, col+" ILIKE ANY($1)")
		}
	}
	if len(patterns) == 0 || len(conds) == 0 {
		return []*core.Partner{}, nil
	}

	var lim any
	if limit > 0 {
		lim = limit
	}
	sql := fmt.Sprintf(sqlFindByKeywordsTemplate, strings.Join(conds, " OR "))
	return queryPartners(ctx, s.pool, sql, patterns, lim)
}

// RankLexical ranks partners with ts_rank_cd over the weighted tsvector.
func (s *Store) RankLexical(ctx context.Context, terms []string, limit int) ([]core.Match, error) {
	if len(terms) == 0 || limit <= 0 {
		return []core.Match{}, nil
	}
	ready, err := s.lexicalIndexReady(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, storage.ErrIndexUnavailable
	}
	return queryMatches(ctx, s.pool, sqlRankLexical, lexical.TSQuery(terms), limit)
}

// EnsureLexicalIndex adds the generated tsvector column and its GIN index.
func (s *Store) EnsureLexicalIndex(ctx context.Context) error {
	_, err, _ := s.maintenance.Do("lexical", func() (any, error) {
		for _, stmt := range []string{sqlAddSearchableText, sqlCreateLexicalIndex} {
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("failed to build lexical index: %w", err)
			}
		}
		s.lexicalReady.Store(true)
		s.logger.Info("index built", "index", "lexical")
		return nil, nil
	})
	return err
}

func (s *Store) lexicalIndexReady(ctx context.Context) (bool, error) {
	if s.lexicalReady.Load() {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, sqlLexicalIndexExists).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check lexical index: %w", err)
	}
	if exists {
		s.lexicalReady.Store(true)
	}
	return exists, nil
}

func queryMatches(ctx context.Context, q querier, sql string, args ...any) ([]core.Match, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Match, error) {
		var (
			id    int64
			score float64
		)
		err := row.Scan(&id, &score)
		return core.Match{Id: core.ID(id), Score: score}, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}
	return matches, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
