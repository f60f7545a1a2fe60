package llm

import (
	"context"
	"sync/atomic"
)

// UnknownAnswer is the reply of the canned backend.
const UnknownAnswer = "I don't know"

// CannedProvider cycles through a fixed list of replies without any network
// access. It backs chat when no real model can be configured.
type CannedProvider struct {
	responses []string
	next      atomic.Uint64
}

func NewCannedProvider(responses ...string) *CannedProvider {
	if len(responses) == 0 {
		responses = []string{UnknownAnswer}
	}
	return &CannedProvider{responses: responses}
}

func (p *CannedProvider) Name() string { return "canned" }

func (p *CannedProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := p.next.Add(1) - 1
	return &ChatResponse{
		Provider: "canned",
		Model:    "canned",
		Content:  p.responses[i%uint64(len(p.responses))],
	}, nil
}
