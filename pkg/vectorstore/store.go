package vectorstore

import (
	"context"
	"fmt"

	"codeassist-be/internal/entity"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/repository/contract"
	"codeassist-be/pkg/batch"
)

// ErrDimensionMismatch indicates a write whose vector dimensionality does
// not match the one fixed at index-creation time. This is a configuration
// error and fails the whole call, never a per-record error.
type ErrDimensionMismatch struct {
	Want int
	Got  int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimensionality %d does not match index dimensionality %d", e.Got, e.Want)
}

// Store is the multi-tenant namespace layer over the vector index.
type Store struct {
	repo       contract.VectorRepository
	logger     logger.ILogger
	dimensions int
	maxBytes   int // payload-size cap for one upsert call
	maxCount   int
}

func NewStore(repo contract.VectorRepository, log logger.ILogger, dimensions, maxBytes, maxCount int) *Store {
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}
	if maxCount <= 0 {
		maxCount = 100
	}
	return &Store{
		repo:       repo,
		logger:     log,
		dimensions: dimensions,
		maxBytes:   maxBytes,
		maxCount:   maxCount,
	}
}

// NamespaceKey derives the tenant isolation key. All of an owner's
// records share one namespace; workspaces are partitions inside it, so
// reaping can remove superseded workspace generations without crossing
// owner boundaries.
func NamespaceKey(ownerId string) string {
	return ownerId
}

// estimateRecordSize approximates the serialized payload of one record:
// 4 bytes per float plus the metadata text.
func estimateRecordSize(rec *entity.VectorRecord) int {
	size := len(rec.Vector) * 4
	for k, v := range rec.Metadata {
		size += len(k) + len(v)
	}
	return size
}

// Upsert writes records into the namespace. Batches are re-split by
// estimated serialized size and count so one call never exceeds the
// backing index's payload limits.
func (s *Store) Upsert(ctx context.Context, namespace string, records []*entity.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, rec := range records {
		if len(rec.Vector) != s.dimensions {
			return &ErrDimensionMismatch{Want: s.dimensions, Got: len(rec.Vector)}
		}
		rec.Namespace = namespace
	}

	splits := batch.Plan(records, estimateRecordSize, s.maxCount, s.maxBytes)
	for i, split := range splits {
		if err := s.repo.Upsert(ctx, split); err != nil {
			return fmt.Errorf("upsert split %d/%d: %w", i+1, len(splits), err)
		}
	}

	s.logger.Debug("VectorStore", "Upserted records", map[string]interface{}{
		"namespace": namespace,
		"records":   len(records),
		"splits":    len(splits),
	})
	return nil
}

// Query returns the topK most similar records in the namespace.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]*entity.ScoredVectorRecord, error) {
	if len(vector) != s.dimensions {
		return nil, &ErrDimensionMismatch{Want: s.dimensions, Got: len(vector)}
	}
	return s.repo.SearchSimilar(ctx, namespace, vector, topK, filter)
}

// DeleteByFilter removes matching records. Absence of the namespace or of
// matching rows is success: the desired end state already holds.
func (s *Store) DeleteByFilter(ctx context.Context, namespace string, filter map[string]string) (int64, error) {
	return s.repo.DeleteByFilter(ctx, namespace, filter)
}

// NamespaceStats reports how many records the namespace holds.
func (s *Store) NamespaceStats(ctx context.Context, namespace string) (int64, error) {
	return s.repo.CountByNamespace(ctx, namespace)
}

// ReapInactivePartitions deletes every record whose partition tag differs
// from keepPartitionId. Bounds storage growth from superseded workspaces
// without touching the tenant's active data.
func (s *Store) ReapInactivePartitions(ctx context.Context, namespace, keepPartitionId string) (int64, error) {
	deleted, err := s.repo.DeleteWherePartitionNot(ctx, namespace, keepPartitionId)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("VectorStore", "Reaped inactive partitions", map[string]interface{}{
			"namespace": namespace,
			"kept":      keepPartitionId,
			"deleted":   deleted,
		})
	}
	return deleted, nil
}

// Dimensions returns the index dimensionality fixed at creation time.
func (s *Store) Dimensions() int {
	return s.dimensions
}
