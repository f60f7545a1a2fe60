package vectorstore

import (
	"context"
	"errors"

	chromem "github.com/philippgille/chromem-go"
)

// ErrIndexNotFound is returned by Load when no index was saved under an id.
var ErrIndexNotFound = errors.New("vector index not found")

type Chunk struct {
	ID         string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   map[string]string
}

type SearchOptions struct {
	TopK int
}

// SearchResult is one hit. Metadata carries the stored chunk metadata plus
// "score", the cosine similarity formatted as a decimal string.
type SearchResult struct {
	ChunkID  string            `json:"chunk_id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Store persists one self-contained index per vector store id. The
// embedding function is supplied at load time and never persisted.
type Store interface {
	Save(ctx context.Context, id string, idx *Index) error
	Load(ctx context.Context, id string, embed chromem.EmbeddingFunc) (*Index, error)
	Delete(ctx context.Context, id string) error
}
