package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/storage"
)

const (
	sqlCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	sqlCreateTableTemplate = `
CREATE TABLE IF NOT EXISTS partners (
    id              BIGSERIAL PRIMARY KEY,
    name            TEXT NOT NULL,
    description     TEXT,
    industry        TEXT,
    location        TEXT,
    website         TEXT,
    contact_email   TEXT,
    contact_phone   TEXT,
    additional_data JSON,
    additional_text TEXT,
    embedding       vector(%d),
    digest          TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	// JSON, unlike JSONB, keeps the object text and therefore key order.
	partnerColumns = `id, name, description, industry, location, website, contact_email,
    contact_phone, additional_data::text, embedding::text, digest, created_at, updated_at`

	sqlInsertPartner = `
INSERT INTO partners (name, description, industry, location, website, contact_email,
    contact_phone, additional_data, additional_text, embedding, digest)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::json, $9, $10, $11)
RETURNING id, created_at, updated_at`

	sqlUpdatePartner = `
UPDATE partners SET name = $1, description = $2, industry = $3, location = $4,
    website = $5, contact_email = $6, contact_phone = $7, additional_data = $8::json,
    additional_text = $9, embedding = $10, digest = $11, updated_at = now()
WHERE id = $12
RETURNING updated_at`

	sqlDeletePartner = `DELETE FROM partners WHERE id = $1`

	sqlSelectPartner = `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`

	sqlSelectPartnerForUpdate = sqlSelectPartner + ` FOR UPDATE`

	sqlSelectPartnersByID = `SELECT ` + partnerColumns + ` FROM partners WHERE id = ANY($1)`

	sqlListPartners = `SELECT ` + partnerColumns + ` FROM partners ORDER BY id OFFSET $1 LIMIT $2`

	sqlCountPartners = `SELECT count(*) FROM partners`
)

// rowArgs returns the insert/update parameters $1..$11 for p.
func (s *Store) rowArgs(p *core.Partner) ([]any, error) {
	var embedding any
	if len(p.Embedding) > 0 {
		if err := core.ValidateEmbedding(p.Embedding, s.dimensions); err != nil {
			return nil, err
		}
		embedding = pgvector.NewVector(p.Embedding)
	}

	var data, dataText any
	if len(p.AdditionalData) > 0 {
		raw, err := p.AdditionalData.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		data = string(raw)
		dataText = p.AdditionalData.String()
	}

	return []any{
		p.Name, p.Description, p.Industry, p.Location, p.Website,
		p.ContactEmail, p.ContactPhone, data, dataText, embedding, p.Digest,
	}, nil
}

func getPartner(ctx context.Context, q querier, sql string, id core.ID) (*core.Partner, error) {
	p, err := scanPartner(q.QueryRow(ctx, sql, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	return p, nil
}

func queryPartners(ctx context.Context, q querier, sql string, args ...any) ([]*core.Partner, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer rows.Close()

	partners := []*core.Partner{}
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partners: %w", err)
	}
	return partners, nil
}

func scanPartner(row pgx.Row) (*core.Partner, error) {
	var (
		p         core.Partner
		id        int64
		data      *string
		embedding *string
		created   time.Time
		updated   time.Time
	)
	err := row.Scan(&id, &p.Name, &p.Description, &p.Industry, &p.Location, &p.Website,
		&p.ContactEmail, &p.ContactPhone, &data, &embedding, &p.Digest, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.Id = core.ID(id)
	p.CreatedAt = created.UTC()
	p.UpdatedAt = updated.UTC()

	if data != nil {
		if err := p.AdditionalData.UnmarshalJSON([]byte(*data)); err != nil {
			return nil, fmt.Errorf("%w: additional data: %w", storage.ErrSerializationFailed, err)
		}
	}
	if embedding != nil {
		var vec pgvector.Vector
		if err := vec.Scan(*embedding); err != nil {
			return nil, fmt.Errorf("%w: embedding: %w", storage.ErrSerializationFailed, err)
		}
		p.Embedding = vec.Slice()
	}
	return &p, nil
}
