package mirror

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagwalker/tagwalker/pkg/errors"
)

// PostgresSource reads the flat_atoms table directly, the same denormalized
// rows the ingest application service writes via UpsertFlatAtoms, so the
// projector needs no join back through molecules/compounds.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) ListAll(ctx context.Context) ([]FlatAtomRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content, source_path, buckets, tags
		FROM flat_atoms
		WHERE provenance != 'quarantine'
		ORDER BY source_path, id
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "mirror source query failed")
	}
	defer rows.Close()

	var out []FlatAtomRow
	for rows.Next() {
		var r FlatAtomRow
		if err := rows.Scan(&r.ID, &r.Content, &r.SourcePath, &r.Buckets, &r.Tags); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "mirror source scan failed")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
