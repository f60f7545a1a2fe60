package embedding

import (
	"context"
	"hash/fnv"
	"unicode/utf8"

	"github.com/nikhilbhutani/ragdesk/pkg/tokenizer"
)

// Deterministic is the offline embedder: a three dimensional vector built
// from the text length, a hash and the word count. The same text always maps
// to the same vector in every process.
type Deterministic struct{}

func (Deterministic) Name() string { return "deterministic" }

func (d Deterministic) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.Vector(t)
	}
	return out, nil
}

func (Deterministic) Vector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	return []float32{
		float32(utf8.RuneCountInString(text) % 97),
		float32(h.Sum32() % 101),
		float32(tokenizer.CountWords(text)),
	}
}
