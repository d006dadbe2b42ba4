package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

type postgresAtomRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	retry  retryConfig
}

// NewAtomRepository adapts ingest.AtomRepository onto PostgreSQL.
func NewAtomRepository(pool *pgxpool.Pool, logger logging.Logger) ingest.AtomRepository {
	return &postgresAtomRepo{pool: pool, logger: logger, retry: defaultRetryConfig()}
}

func (r *postgresAtomRepo) UpsertBatch(ctx context.Context, atoms []*ingest.Atom) error {
	deduped := dedupeAtoms(atoms)
	for _, batch := range chunk(deduped, upsertBatchSize) {
		if err := r.upsertChunk(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresAtomRepo) upsertChunk(ctx context.Context, batch []*ingest.Atom) error {
	ids := make([]string, len(batch))
	for i, a := range batch {
		ids[i] = string(a.ID)
	}

	writeErr := withRetry(ctx, r.retry, func() error {
		return r.pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
			for _, a := range batch {
				_, err := tx.Exec(ctx, `
					INSERT INTO atoms (id, label, kind, weight)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (id) DO UPDATE SET weight = EXCLUDED.weight
				`, string(a.ID), a.Label, string(a.Kind), a.Weight)
				if err != nil {
					return errors.Wrap(err, errors.CodeDatabaseError, "failed to upsert atom")
				}
			}
			return nil
		})
	})
	if writeErr != nil {
		return writeErr
	}

	var observed int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM atoms WHERE id = ANY($1)`, ids).Scan(&observed); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to verify atom batch")
	}
	return verifyCount(r.logger, "atoms", len(ids), observed)
}

func (r *postgresAtomRepo) FindByLabel(ctx context.Context, label string) (*ingest.Atom, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, label, kind, weight FROM atoms WHERE label = $1`, label)
	a, err := scanAtom(row)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *postgresAtomRepo) FindByIDs(ctx context.Context, ids []ingest.ID) ([]*ingest.Atom, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = string(id)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, label, kind, weight FROM atoms WHERE id = ANY($1)`, strIDs)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query atoms by id")
	}
	defer rows.Close()

	var out []*ingest.Atom
	for rows.Next() {
		a, err := scanAtomRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func dedupeAtoms(atoms []*ingest.Atom) []*ingest.Atom {
	seen := make(map[ingest.ID]bool, len(atoms))
	out := make([]*ingest.Atom, 0, len(atoms))
	for _, a := range atoms {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

func scanAtom(row pgx.Row) (*ingest.Atom, error) {
	return scanAtomRows(row)
}

func scanAtomRows(row rowScanner) (*ingest.Atom, error) {
	var id, kind string
	a := &ingest.Atom{}
	if err := row.Scan(&id, &a.Label, &kind, &a.Weight); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.CodeAtomNotFound, "atom not found")
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan atom")
	}
	a.ID = ingest.ID(id)
	a.Kind = ingest.AtomKind(kind)
	return a, nil
}
