package entity

import "time"

// VectorRecord is one embedded chunk stored under a tenant namespace.
// All vectors in a namespace share the dimensionality fixed at
// index-creation time.
type VectorRecord struct {
	Id        string
	Namespace string
	Partition string
	Vector    []float32
	Metadata  map[string]string
	CreatedAt time.Time
}

// ScoredVectorRecord pairs a record with its cosine similarity in [0,1].
type ScoredVectorRecord struct {
	Record     *VectorRecord
	Similarity float64
}

// EmbeddingChunk is the unit of work handed to the indexing pipeline.
// The pipeline consumes chunks, it never mutates them.
type EmbeddingChunk struct {
	Id          string `json:"id" validate:"required"`
	OwnerId     string `json:"owner_id"`
	WorkspaceId string `json:"workspace_id"`
	FilePath    string `json:"file_path"`
	Symbol      string `json:"symbol,omitempty"`
	TextContent string `json:"text_content" validate:"required"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	TypeTag     string `json:"type_tag"`     // "function" | "class" | "method" | "doc" | ...
	LanguageTag string `json:"language_tag"` // "go", "python", ...
}

// SearchResult is a ranked hybrid-search hit.
// CombinedScore = 0.7*VectorScore + 0.3*KeywordScore.
type SearchResult struct {
	Record        *VectorRecord `json:"record"`
	VectorScore   float64       `json:"vector_score"`
	KeywordScore  float64       `json:"keyword_score"`
	CombinedScore float64       `json:"combined_score"`
	Highlights    []string      `json:"highlights,omitempty"`
}

// Metadata keys the indexing pipeline writes and the keyword scorer reads.
const (
	MetaContent   = "content"
	MetaWorkspace = "workspace_id"
	MetaPath      = "path"
	MetaSymbol    = "symbol"
	MetaType      = "type"
	MetaLanguage  = "language"
	MetaLineRange = "line_range"
	MetaOwner     = "owner_id"
)
