package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type VectorRecord struct {
	Id        string          `gorm:"type:text;primaryKey"`
	Namespace string          `gorm:"type:text;primaryKey;index"`
	Partition string          `gorm:"type:text;index"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text / text-embedding-004 dimensionality
	Metadata  datatypes.JSONMap
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (VectorRecord) TableName() string {
	return "vector_records"
}
