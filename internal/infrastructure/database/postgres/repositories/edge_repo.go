package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

type postgresEdgeRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	retry  retryConfig
}

// NewEdgeRepository adapts ingest.EdgeRepository onto PostgreSQL.
func NewEdgeRepository(pool *pgxpool.Pool, logger logging.Logger) ingest.EdgeRepository {
	return &postgresEdgeRepo{pool: pool, logger: logger, retry: defaultRetryConfig()}
}

func (r *postgresEdgeRepo) UpsertBatch(ctx context.Context, edges []ingest.Edge) error {
	for _, batch := range chunk(edges, upsertBatchSize) {
		if err := r.upsertChunk(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresEdgeRepo) upsertChunk(ctx context.Context, batch []ingest.Edge) error {
	writeErr := withRetry(ctx, r.retry, func() error {
		return r.pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
			for _, e := range batch {
				_, err := tx.Exec(ctx, `
					INSERT INTO edges (source_id, target_id, relation, weight)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (source_id, target_id, relation) DO UPDATE SET weight = EXCLUDED.weight
				`, string(e.SourceID), string(e.TargetID), string(e.Relation), e.Weight)
				if err != nil {
					return errors.Wrap(err, errors.CodeDatabaseError, "failed to upsert edge")
				}
			}
			return nil
		})
	})
	if writeErr != nil {
		return writeErr
	}

	var observed int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM edges e
		JOIN (
			SELECT unnest($1::text[]) AS source_id, unnest($2::text[]) AS target_id, unnest($3::text[]) AS relation
		) b ON e.source_id = b.source_id AND e.target_id = b.target_id AND e.relation = b.relation
	`, sourceIDs(batch), targetIDs(batch), relations(batch)).Scan(&observed)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to verify edge batch")
	}
	return verifyCount(r.logger, "edges", len(batch), observed)
}

func (r *postgresEdgeRepo) FindByTarget(ctx context.Context, targetID ingest.ID, relation ingest.RelationKind) ([]ingest.Edge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT source_id, target_id, relation, weight FROM edges WHERE target_id = $1 AND relation = $2
	`, string(targetID), string(relation))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query edges by target")
	}
	defer rows.Close()

	var out []ingest.Edge
	for rows.Next() {
		var sourceID, target, rel string
		var weight float64
		if err := rows.Scan(&sourceID, &target, &rel, &weight); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan edge")
		}
		out = append(out, ingest.Edge{
			SourceID: ingest.ID(sourceID),
			TargetID: ingest.ID(target),
			Relation: ingest.RelationKind(rel),
			Weight:   weight,
		})
	}
	return out, nil
}

func sourceIDs(edges []ingest.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = string(e.SourceID)
	}
	return out
}

func targetIDs(edges []ingest.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = string(e.TargetID)
	}
	return out
}

func relations(edges []ingest.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = string(e.Relation)
	}
	return out
}
