package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ShortTextIsOneChunk(t *testing.T) {
	chunks := New().Chunk("  just a little text  ", ChunkOptions{ChunkSize: 100, ChunkOverlap: 10})

	require.Len(t, chunks, 1)
	assert.Equal(t, "just a little text", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 2, chunks[0].Start)
}

func TestChunk_EmptyText(t *testing.T) {
	assert.Empty(t, New().Chunk("   \n\n  ", ChunkOptions{ChunkSize: 50}))
}

func TestChunk_ParagraphsStayWhole(t *testing.T) {
	p1 := strings.Repeat("a", 249)
	p2 := strings.Repeat("b", 249)
	text := p1 + "\n\n" + p2

	chunks := New().Chunk(text, ChunkOptions{ChunkSize: 256, ChunkOverlap: 32})

	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0].Content)
	assert.Equal(t, p2, chunks[1].Content)
	assert.Equal(t, 251, chunks[1].Start)
}

func TestChunk_RespectsSizeAndOverlaps(t *testing.T) {
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	opts := ChunkOptions{ChunkSize: 100, ChunkOverlap: 20}
	chunks := New().Chunk(text, opts)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), opts.ChunkSize)
		assert.Equal(t, i, c.Index)
		if i > 0 {
			// the chunk begins with text repeated from the previous one
			prev := chunks[i-1].Content
			assert.True(t, strings.HasSuffix(prev, c.Content[:4]), "chunk %d should overlap", i)
		}
	}
}

func TestChunk_HardCutsLongWords(t *testing.T) {
	text := strings.Repeat("x", 250)

	chunks := New().Chunk(text, ChunkOptions{ChunkSize: 100, ChunkOverlap: 0})

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Content, 100)
	assert.Len(t, chunks[2].Content, 50)
}

func TestChunk_CountsRunes(t *testing.T) {
	text := strings.Repeat("知识库", 40) // 120 runes, 360 bytes

	chunks := New().Chunk(text, ChunkOptions{ChunkSize: 60, ChunkOverlap: 0})

	require.Len(t, chunks, 2)
	assert.Equal(t, 60, utf8.RuneCountInString(chunks[0].Content))
}

func TestChunk_OverlapClamped(t *testing.T) {
	chunks := New().Chunk(strings.Repeat("y ", 50), ChunkOptions{ChunkSize: 10, ChunkOverlap: 50})
	assert.NotEmpty(t, chunks)
}
