package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/ragdesk/internal/llm"
	"github.com/nikhilbhutani/ragdesk/internal/prompt"
)

const (
	ModelFailureAnswer  = "Failed to call the language model. Please check the model name, API key or proxy configuration."
	NoAnswerWithContext = "Sorry, the current knowledge base excerpts still cannot answer this. Please try rephrasing the question or adding more documents."
	NoAnswerNoContext   = "Hello! No knowledge base content was found for this question. I can help with general questions, or you can upload documents and try again."
)

var unknownPhrases = []string{"I don't know", "I do not know", "我不知道", "不知道"}

// IsUnknownAnswer reports whether text is empty or one of the canonical
// "I don't know" replies.
func IsUnknownAnswer(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	for _, p := range unknownPhrases {
		if strings.EqualFold(text, p) {
			return true
		}
	}
	return false
}

type Generator struct {
	model llm.ChatModel
}

func NewGenerator(model llm.ChatModel) *Generator {
	return &Generator{model: model}
}

type GenerateResult struct {
	Answer string
	Failed bool
}

// Generate answers question, grounded in excerpts when they are non-empty. It
// never returns a model failure to the caller: failures become the fixed
// apology with Failed set.
func (g *Generator) Generate(ctx context.Context, question, excerpts string) (GenerateResult, error) {
	tmpl := prompt.General
	if excerpts != "" {
		tmpl = prompt.Grounded
	}
	system, user, err := tmpl.Render(map[string]string{"question": question, "context": excerpts})
	if err != nil {
		return GenerateResult{}, err
	}

	resp, err := g.model.ChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		slog.Error("chat model call failed", "model", g.model.Name(), "error", err)
		return GenerateResult{Answer: ModelFailureAnswer, Failed: true}, nil
	}

	answer := strings.TrimSpace(resp.Content)
	if IsUnknownAnswer(answer) {
		if excerpts != "" {
			return GenerateResult{Answer: NoAnswerWithContext}, nil
		}
		return GenerateResult{Answer: NoAnswerNoContext}, nil
	}

	slog.Debug("answer generated", "model", g.model.Name(), "tokens", resp.TotalTokens, "latency_ms", resp.LatencyMs)
	return GenerateResult{Answer: answer}, nil
}
