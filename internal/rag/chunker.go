package rag

import (
	"strconv"

	"github.com/nikhilbhutani/ragdesk/pkg/chunker"
	"github.com/nikhilbhutani/ragdesk/pkg/tokenizer"
)

type ChunkResult struct {
	Content    string
	Index      int
	TokenCount int
	Metadata   map[string]string
}

// ChunkText splits a document and tags every chunk with its source file and
// document task.
func ChunkText(text string, opts chunker.ChunkOptions, source, taskID string) []ChunkResult {
	c := chunker.New()
	chunks := c.Chunk(text, opts)

	results := make([]ChunkResult, len(chunks))
	for i, ch := range chunks {
		tokens := tokenizer.CountTokens(ch.Content)
		results[i] = ChunkResult{
			Content:    ch.Content,
			Index:      ch.Index,
			TokenCount: tokens,
			Metadata: map[string]string{
				"source":           source,
				"document_task_id": taskID,
				"tokens":           strconv.Itoa(tokens),
				"start_index":      strconv.Itoa(ch.Start),
			},
		}
	}
	return results
}
