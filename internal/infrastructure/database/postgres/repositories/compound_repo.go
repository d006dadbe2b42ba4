package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

type postgresCompoundRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	retry  retryConfig
}

// NewCompoundRepository adapts ingest.CompoundRepository onto PostgreSQL.
func NewCompoundRepository(pool *pgxpool.Pool, logger logging.Logger) ingest.CompoundRepository {
	return &postgresCompoundRepo{pool: pool, logger: logger, retry: defaultRetryConfig()}
}

func (r *postgresCompoundRepo) UpsertBatch(ctx context.Context, compounds []*ingest.Compound) error {
	for _, batch := range chunk(compounds, upsertBatchSize) {
		if err := r.upsertChunk(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresCompoundRepo) upsertChunk(ctx context.Context, batch []*ingest.Compound) error {
	ids := make([]string, len(batch))
	for i, c := range batch {
		ids[i] = string(c.ID)
	}

	writeErr := withRetry(ctx, r.retry, func() error {
		return r.pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
			for _, c := range batch {
				_, err := tx.Exec(ctx, `
					INSERT INTO compounds (id, source_path, body, provenance, molecular_signature, ingested_at)
					VALUES ($1, $2, $3, $4, $5, $6)
					ON CONFLICT (id) DO UPDATE SET
						source_path = EXCLUDED.source_path,
						body = EXCLUDED.body,
						provenance = EXCLUDED.provenance,
						molecular_signature = EXCLUDED.molecular_signature,
						ingested_at = EXCLUDED.ingested_at,
						updated_at = now()
				`, string(c.ID), c.SourcePath, c.Body, string(c.Provenance), int64(c.MolecularSignature), c.IngestedAt)
				if err != nil {
					return errors.Wrap(err, errors.CodeDatabaseError, "failed to upsert compound")
				}
			}
			return nil
		})
	})
	if writeErr != nil {
		return writeErr
	}

	var observed int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM compounds WHERE id = ANY($1)`, ids).Scan(&observed); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to verify compound batch")
	}
	return verifyCount(r.logger, "compounds", len(ids), observed)
}

func (r *postgresCompoundRepo) FindByID(ctx context.Context, id ingest.ID) (*ingest.Compound, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, source_path, body, provenance, molecular_signature, ingested_at
		FROM compounds WHERE id = $1
	`, string(id))
	return scanCompound(row)
}

func (r *postgresCompoundRepo) FindBySourcePath(ctx context.Context, path string) (*ingest.Compound, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, source_path, body, provenance, molecular_signature, ingested_at
		FROM compounds WHERE source_path = $1 ORDER BY ingested_at DESC LIMIT 1
	`, path)
	return scanCompound(row)
}

func (r *postgresCompoundRepo) DeleteBySourcePath(ctx context.Context, path string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM compounds WHERE source_path = $1`, path)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete compounds by source path")
	}
	return nil
}

func scanCompound(row pgx.Row) (*ingest.Compound, error) {
	var (
		id, path, body, provenance string
		signature                  int64
		ingestedAt                 interface{}
	)
	c := &ingest.Compound{}
	if err := row.Scan(&id, &path, &body, &provenance, &signature, &c.IngestedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.CodeCompoundNotFound, "compound not found")
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan compound")
	}
	_ = ingestedAt
	c.ID = ingest.ID(id)
	c.SourcePath = path
	c.Body = body
	c.Provenance = ingest.Provenance(provenance)
	c.MolecularSignature = uint64(signature)
	return c, nil
}
