package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

type postgresSourceRegistry struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewSourceRegistry adapts ingest.SourceRegistry onto PostgreSQL.
func NewSourceRegistry(pool *pgxpool.Pool, logger logging.Logger) ingest.SourceRegistry {
	return &postgresSourceRegistry{pool: pool, logger: logger}
}

func (r *postgresSourceRegistry) Lookup(ctx context.Context, path string) (*ingest.SourceRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT path, content_hash, total_atoms, last_ingest_ms, last_compound_id
		FROM source_records WHERE path = $1
	`, path)

	rec := &ingest.SourceRecord{}
	var lastCompoundID *string
	err := row.Scan(&rec.Path, &rec.ContentHash, &rec.TotalAtoms, &rec.LastIngestMs, &lastCompoundID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.CodeNotFound, "source record not found")
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to look up source record")
	}
	if lastCompoundID != nil {
		rec.LastCompoundID = ingest.ID(*lastCompoundID)
	}
	return rec, nil
}

func (r *postgresSourceRegistry) Update(ctx context.Context, record *ingest.SourceRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO source_records (path, content_hash, total_atoms, last_ingest_ms, last_compound_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			total_atoms = EXCLUDED.total_atoms,
			last_ingest_ms = EXCLUDED.last_ingest_ms,
			last_compound_id = EXCLUDED.last_compound_id,
			updated_at = now()
	`, record.Path, record.ContentHash, record.TotalAtoms, record.LastIngestMs, string(record.LastCompoundID))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update source record")
	}
	return nil
}

func (r *postgresSourceRegistry) Delete(ctx context.Context, path string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM source_records WHERE path = $1`, path)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete source record")
	}
	return nil
}

func (r *postgresSourceRegistry) ListByPrefix(ctx context.Context, prefix string) ([]*ingest.SourceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT path, content_hash, total_atoms, last_ingest_ms, last_compound_id
		FROM source_records WHERE path LIKE $1
	`, prefix+"%")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list source records by prefix")
	}
	defer rows.Close()

	var out []*ingest.SourceRecord
	for rows.Next() {
		rec := &ingest.SourceRecord{}
		var lastCompoundID *string
		if err := rows.Scan(&rec.Path, &rec.ContentHash, &rec.TotalAtoms, &rec.LastIngestMs, &lastCompoundID); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan source record")
		}
		if lastCompoundID != nil {
			rec.LastCompoundID = ingest.ID(*lastCompoundID)
		}
		out = append(out, rec)
	}
	return out, nil
}
