package models

import "time"

// EmbeddingBackend pins the embedder an index was built with.
type EmbeddingBackend string

const (
	EmbeddingBackendPrimary       EmbeddingBackend = "default"
	EmbeddingBackendDeterministic EmbeddingBackend = "fallback"
)

type VectorStoreConfig struct {
	Name             string           `json:"name"`
	ChunkSize        int              `json:"chunkSize"`
	Overlap          int              `json:"overlap"`
	TopK             int              `json:"topK"`
	EmbeddingBackend EmbeddingBackend `json:"embeddingBackend,omitempty"`
}

// Backend returns the pinned backend. Records written before pinning was
// recorded count as primary.
func (c VectorStoreConfig) Backend() EmbeddingBackend {
	if c.EmbeddingBackend == EmbeddingBackendDeterministic {
		return EmbeddingBackendDeterministic
	}
	return EmbeddingBackendPrimary
}

type VectorStore struct {
	ID             string            `json:"id" db:"store_id"`
	Name           string            `json:"name" db:"name"`
	DocumentTaskID string            `json:"documentTaskId" db:"document_task_id"`
	Config         VectorStoreConfig `json:"config" db:"config"`
	Status         string            `json:"status" db:"status"`
	FailureReason  *string           `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

const (
	StoreStatusBuilding = "building"
	StoreStatusReady    = "ready"
	StoreStatusFailed   = "failed"
)

type DocumentSnippet struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Similarity float64           `json:"similarity"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
}
