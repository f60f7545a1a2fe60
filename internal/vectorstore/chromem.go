package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "chunks"

// Index is an in-memory similarity index over the chunks of one document.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewIndex creates an empty index that embeds queries with embed.
func NewIndex(embed chromem.EmbeddingFunc) (*Index, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{db: db, collection: col}, nil
}

// Upsert adds chunks. Chunks without an embedding are embedded with the
// index's embedding function.
func (i *Index) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for n, c := range chunks {
		meta := make(map[string]string, len(c.Metadata)+1)
		maps.Copy(meta, c.Metadata)
		meta["chunk_index"] = strconv.Itoa(c.ChunkIndex)

		docs[n] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  meta,
			Embedding: c.Embedding,
		}
	}

	if err := i.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (i *Index) Count() int {
	return i.collection.Count()
}

// SimilaritySearch returns up to TopK hits ordered by descending similarity.
// TopK is clamped to the number of indexed chunks.
func (i *Index) SimilaritySearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}

	limit := opts.TopK
	if limit <= 0 {
		limit = 3
	}
	// chromem-go requires nResults <= collection size.
	limit = min(limit, count)

	results, err := i.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for n, r := range results {
		meta := make(map[string]string, len(r.Metadata)+1)
		maps.Copy(meta, r.Metadata)
		meta["score"] = strconv.FormatFloat(float64(r.Similarity), 'f', -1, 32)

		out[n] = SearchResult{
			ChunkID:  r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: meta,
		}
	}
	return out, nil
}
