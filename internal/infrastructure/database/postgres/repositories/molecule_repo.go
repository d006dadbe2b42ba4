package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

type postgresMoleculeRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	retry  retryConfig
}

// NewMoleculeRepository adapts ingest.MoleculeRepository onto PostgreSQL.
func NewMoleculeRepository(pool *pgxpool.Pool, logger logging.Logger) ingest.MoleculeRepository {
	return &postgresMoleculeRepo{pool: pool, logger: logger, retry: defaultRetryConfig()}
}

func (r *postgresMoleculeRepo) UpsertBatch(ctx context.Context, molecules []*ingest.Molecule) error {
	for _, batch := range chunk(molecules, upsertBatchSize) {
		if err := r.upsertChunk(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresMoleculeRepo) upsertChunk(ctx context.Context, batch []*ingest.Molecule) error {
	ids := make([]string, len(batch))
	for i, m := range batch {
		ids[i] = string(m.ID)
	}

	writeErr := withRetry(ctx, r.retry, func() error {
		return r.pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
			for _, m := range batch {
				_, err := tx.Exec(ctx, `
					INSERT INTO molecules (
						id, compound_id, sequence, content, start_byte, end_byte, kind,
						numeric_value, numeric_unit, molecular_signature, timestamp, provenance
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
					ON CONFLICT (id) DO UPDATE SET
						content = EXCLUDED.content,
						start_byte = EXCLUDED.start_byte,
						end_byte = EXCLUDED.end_byte,
						kind = EXCLUDED.kind,
						numeric_value = EXCLUDED.numeric_value,
						numeric_unit = EXCLUDED.numeric_unit,
						molecular_signature = EXCLUDED.molecular_signature,
						timestamp = EXCLUDED.timestamp,
						provenance = EXCLUDED.provenance,
						updated_at = now()
				`, string(m.ID), string(m.CompoundID), m.Sequence, m.Content, m.Start, m.End, string(m.Kind),
					m.NumericValue, nullString(m.NumericUnit), int64(m.MolecularSignature), m.Timestamp, string(m.Provenance))
				if err != nil {
					return errors.Wrap(err, errors.CodeDatabaseError, "failed to upsert molecule")
				}

				for _, atomID := range m.AtomIDs {
					_, err := tx.Exec(ctx, `
						INSERT INTO molecule_atoms (molecule_id, atom_id) VALUES ($1, $2)
						ON CONFLICT DO NOTHING
					`, string(m.ID), string(atomID))
					if err != nil {
						return errors.Wrap(err, errors.CodeDatabaseError, "failed to link molecule atom")
					}
				}
			}
			return nil
		})
	})
	if writeErr != nil {
		return writeErr
	}

	var observed int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM molecules WHERE id = ANY($1)`, ids).Scan(&observed); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to verify molecule batch")
	}
	return verifyCount(r.logger, "molecules", len(ids), observed)
}

// UpsertFlatAtoms writes the denormalized legacy retrieval rows described in
// spec §4.C, letting retrieval read content without a Molecule->Compound
// join.
func (r *postgresMoleculeRepo) UpsertFlatAtoms(ctx context.Context, molecules []*ingest.Molecule, compound *ingest.Compound, buckets, tags []string) error {
	for _, batch := range chunk(molecules, upsertBatchSize) {
		err := withRetry(ctx, r.retry, func() error {
			return r.pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
				for _, m := range batch {
					_, err := tx.Exec(ctx, `
						INSERT INTO flat_atoms (
							id, content, source_path, timestamp, molecular_signature, provenance,
							buckets, tags, compound_id, start_byte, end_byte
						) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
						ON CONFLICT (id) DO UPDATE SET
							content = EXCLUDED.content,
							timestamp = EXCLUDED.timestamp,
							molecular_signature = EXCLUDED.molecular_signature,
							provenance = EXCLUDED.provenance,
							buckets = EXCLUDED.buckets,
							tags = EXCLUDED.tags
					`, string(m.ID), m.Content, compound.SourcePath, m.Timestamp, int64(m.MolecularSignature),
						string(m.Provenance), buckets, tags, string(compound.ID), m.Start, m.End)
					if err != nil {
						return errors.Wrap(err, errors.CodeDatabaseError, "failed to upsert flat atom row")
					}
				}
				return nil
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresMoleculeRepo) FindByID(ctx context.Context, id ingest.ID) (*ingest.Molecule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, compound_id, sequence, content, start_byte, end_byte, kind,
			numeric_value, numeric_unit, molecular_signature, timestamp, provenance
		FROM molecules WHERE id = $1
	`, string(id))
	m, err := scanMolecule(row)
	if err != nil {
		return nil, err
	}
	if err := r.hydrateAtoms(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMoleculeRepo) FindByCompoundID(ctx context.Context, compoundID ingest.ID) ([]*ingest.Molecule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, compound_id, sequence, content, start_byte, end_byte, kind,
			numeric_value, numeric_unit, molecular_signature, timestamp, provenance
		FROM molecules WHERE compound_id = $1 ORDER BY sequence ASC
	`, string(compoundID))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query molecules by compound")
	}
	defer rows.Close()

	var out []*ingest.Molecule
	for rows.Next() {
		m, err := scanMoleculeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	for _, m := range out {
		if err := r.hydrateAtoms(ctx, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *postgresMoleculeRepo) QuarantineBySourcePath(ctx context.Context, path string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE molecules SET provenance = 'quarantine', updated_at = now()
		WHERE compound_id IN (SELECT id FROM compounds WHERE source_path = $1)
	`, path)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeQuarantineFailed, "failed to quarantine molecules by source path")
	}
	return int(tag.RowsAffected()), nil
}

func (r *postgresMoleculeRepo) DeleteBySourcePath(ctx context.Context, path string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM molecules WHERE compound_id IN (SELECT id FROM compounds WHERE source_path = $1)
	`, path)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to delete molecules by source path")
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM flat_atoms WHERE source_path = $1`, path); err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to delete flat atoms by source path")
	}
	return int(tag.RowsAffected()), nil
}

func (r *postgresMoleculeRepo) hydrateAtoms(ctx context.Context, m *ingest.Molecule) error {
	rows, err := r.pool.Query(ctx, `SELECT atom_id FROM molecule_atoms WHERE molecule_id = $1`, string(m.ID))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to load molecule atoms")
	}
	defer rows.Close()
	for rows.Next() {
		var atomID string
		if err := rows.Scan(&atomID); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to scan molecule atom")
		}
		m.TagWith(ingest.ID(atomID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMolecule(row pgx.Row) (*ingest.Molecule, error) {
	return scanMoleculeRows(row)
}

func scanMoleculeRows(row rowScanner) (*ingest.Molecule, error) {
	var (
		id, compoundID, kind, provenance string
		numericUnit                      *string
		sequence, start, end             int
		signature                        int64
	)
	m := &ingest.Molecule{}
	err := row.Scan(&id, &compoundID, &sequence, &m.Content, &start, &end, &kind,
		&m.NumericValue, &numericUnit, &signature, &m.Timestamp, &provenance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.CodeNotFound, "molecule not found")
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan molecule")
	}
	m.ID = ingest.ID(id)
	m.CompoundID = ingest.ID(compoundID)
	m.Sequence = sequence
	m.Start = start
	m.End = end
	m.Kind = ingest.MoleculeKind(kind)
	m.MolecularSignature = uint64(signature)
	m.Provenance = ingest.Provenance(provenance)
	if numericUnit != nil {
		m.NumericUnit = *numericUnit
	}
	return m, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
