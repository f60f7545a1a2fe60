package chunker

import (
	"strings"
	"unicode/utf8"
)

type Chunker interface {
	Chunk(text string, opts ChunkOptions) []TextChunk
}

type ChunkOptions struct {
	ChunkSize    int // maximum chunk length in runes
	ChunkOverlap int // runes carried over from the end of the previous chunk
}

type TextChunk struct {
	Content string
	Index   int
	Start   int // byte offset in the source text, -1 if not located
	End     int
}

// Separators are tried in order; "" means a hard cut between runes.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}

type recursiveChunker struct{}

func New() Chunker {
	return &recursiveChunker{}
}

func (c *recursiveChunker) Chunk(text string, opts ChunkOptions) []TextChunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize - 1
	}

	parts := splitRecursive(text, Separators, opts)

	chunks := make([]TextChunk, 0, len(parts))
	searchFrom := 0
	for _, part := range parts {
		start := -1
		if i := strings.Index(text[searchFrom:], part); i >= 0 {
			start = searchFrom + i
			searchFrom = start + 1
		}
		end := -1
		if start >= 0 {
			end = start + len(part)
		}
		chunks = append(chunks, TextChunk{
			Content: part,
			Index:   len(chunks),
			Start:   start,
			End:     end,
		})
	}
	return chunks
}

func splitRecursive(text string, separators []string, opts ChunkOptions) []string {
	sep, rest := pickSeparator(text, separators)

	var splits []string
	if sep == "" {
		for _, r := range text {
			splits = append(splits, string(r))
		}
	} else {
		splits = strings.SplitAfter(text, sep)
	}

	var result, pending []string
	for _, s := range splits {
		if utf8.RuneCountInString(s) <= opts.ChunkSize {
			pending = append(pending, s)
			continue
		}
		if len(pending) > 0 {
			result = append(result, merge(pending, opts)...)
			pending = nil
		}
		if len(rest) == 0 {
			if t := strings.TrimSpace(s); t != "" {
				result = append(result, t)
			}
			continue
		}
		result = append(result, splitRecursive(s, rest, opts)...)
	}
	if len(pending) > 0 {
		result = append(result, merge(pending, opts)...)
	}
	return result
}

func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// merge packs small splits into chunks of at most ChunkSize runes, starting
// each new chunk with up to ChunkOverlap runes from the end of the last one.
func merge(splits []string, opts ChunkOptions) []string {
	var (
		chunks  []string
		current []string
		total   int
	)

	for _, s := range splits {
		n := utf8.RuneCountInString(s)
		if total+n > opts.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				chunks = append(chunks, doc)
			}
			for len(current) > 0 && (total > opts.ChunkOverlap || total+n > opts.ChunkSize) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += n
	}

	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}
