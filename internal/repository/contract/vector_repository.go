package contract

import (
	"context"

	"codeassist-be/internal/entity"
)

// VectorRepository is the persistence contract for the vector index.
// Every operation is scoped to a single namespace; the implementation
// must never let a query or delete cross namespace boundaries.
type VectorRepository interface {
	Upsert(ctx context.Context, records []*entity.VectorRecord) error

	// SearchSimilar returns up to limit records ordered by cosine
	// similarity (1 - distance), optionally narrowed by exact-match
	// metadata filters.
	SearchSimilar(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]string) ([]*entity.ScoredVectorRecord, error)

	// DeleteByFilter removes matching records and reports how many rows
	// went away. A namespace with no data is success, not an error.
	DeleteByFilter(ctx context.Context, namespace string, filter map[string]string) (int64, error)

	// DeleteWherePartitionNot removes every record in the namespace whose
	// partition tag differs from keepPartition.
	DeleteWherePartitionNot(ctx context.Context, namespace, keepPartition string) (int64, error)

	CountByNamespace(ctx context.Context, namespace string) (int64, error)
}
