package implementation

import (
	"context"

	"codeassist-be/internal/entity"
	"codeassist-be/internal/mapper"
	"codeassist-be/internal/model"
	"codeassist-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VectorRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.VectorRecordMapper
}

func NewVectorRepository(db *gorm.DB) contract.VectorRepository {
	return &VectorRepositoryImpl{
		db:     db,
		mapper: mapper.NewVectorRecordMapper(),
	}
}

func (r *VectorRepositoryImpl) Upsert(ctx context.Context, records []*entity.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	models := make([]*model.VectorRecord, len(records))
	for i, rec := range records {
		models[i] = r.mapper.ToModel(rec)
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}, {Name: "namespace"}},
			DoUpdates: clause.AssignmentColumns([]string{"partition", "embedding", "metadata", "updated_at"}),
		}).
		Create(models).Error
}

func (r *VectorRepositoryImpl) applyMetadataFilter(query *gorm.DB, filter map[string]string) *gorm.DB {
	for key, value := range filter {
		query = query.Where("metadata ->> ? = ?", key, value)
	}
	return query
}

func (r *VectorRepositoryImpl) SearchSimilar(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]string) ([]*entity.ScoredVectorRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding <=> query_vector) recovers the similarity.
	type result struct {
		model.VectorRecord
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	query := r.db.WithContext(ctx).
		Table("vector_records").
		Select("vector_records.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("namespace = ?", namespace)
	query = r.applyMetadataFilter(query, filter)

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredVectorRecord, len(results))
	for i, res := range results {
		scored[i] = &entity.ScoredVectorRecord{
			Record:     r.mapper.ToEntity(&res.VectorRecord),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *VectorRepositoryImpl) DeleteByFilter(ctx context.Context, namespace string, filter map[string]string) (int64, error) {
	query := r.db.WithContext(ctx).Where("namespace = ?", namespace)
	query = r.applyMetadataFilter(query, filter)

	res := query.Delete(&model.VectorRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	// Zero rows affected means the end state (no data) already holds.
	return res.RowsAffected, nil
}

func (r *VectorRepositoryImpl) DeleteWherePartitionNot(ctx context.Context, namespace, keepPartition string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("namespace = ?", namespace).
		Where("partition <> ?", keepPartition).
		Delete(&model.VectorRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *VectorRepositoryImpl) CountByNamespace(ctx context.Context, namespace string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.VectorRecord{}).
		Where("namespace = ?", namespace).
		Count(&count).Error
	return count, err
}
