package mapper

import (
	"fmt"

	"codeassist-be/internal/entity"
	"codeassist-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type VectorRecordMapper struct{}

func NewVectorRecordMapper() *VectorRecordMapper {
	return &VectorRecordMapper{}
}

func (m *VectorRecordMapper) ToEntity(r *model.VectorRecord) *entity.VectorRecord {
	if r == nil {
		return nil
	}

	metadata := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		if s, ok := v.(string); ok {
			metadata[k] = s
		} else {
			metadata[k] = fmt.Sprint(v)
		}
	}

	return &entity.VectorRecord{
		Id:        r.Id,
		Namespace: r.Namespace,
		Partition: r.Partition,
		Vector:    r.Embedding.Slice(),
		Metadata:  metadata,
		CreatedAt: r.CreatedAt,
	}
}

func (m *VectorRecordMapper) ToModel(r *entity.VectorRecord) *model.VectorRecord {
	if r == nil {
		return nil
	}

	metadata := make(datatypes.JSONMap, len(r.Metadata))
	for k, v := range r.Metadata {
		metadata[k] = v
	}

	return &model.VectorRecord{
		Id:        r.Id,
		Namespace: r.Namespace,
		Partition: r.Partition,
		Embedding: pgvector.NewVector(r.Vector),
		Metadata:  metadata,
		CreatedAt: r.CreatedAt,
	}
}
