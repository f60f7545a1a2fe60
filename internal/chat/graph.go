package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/nikhilbhutani/ragdesk/internal/models"
	"github.com/nikhilbhutani/ragdesk/internal/rag"
)

const (
	nodeRetrieve = "retrieve"
	nodeGenerate = "generate"

	// chatTopK is the number of excerpts retrieved per chat message.
	chatTopK = 3

	MissingAnswer = "[GraphMissingAnswer] The model returned no content"
)

var ErrEmptyQuestion = errors.New("question is empty")

// State flows through the graph. Each node fills its own fields.
type State struct {
	Question      string
	VectorStoreID *string
	Context       string
	Citations     []models.DocumentSnippet
	Answer        string
	Failed        bool
}

type Recaller interface {
	Recall(ctx context.Context, storeID string, req rag.RecallRequest) (*rag.RecallResponse, error)
}

type AnswerGenerator interface {
	Generate(ctx context.Context, question, excerpts string) (rag.GenerateResult, error)
}

// Graph is the compiled retrieve then generate pipeline. It is safe for
// concurrent use.
type Graph struct {
	runnable  compose.Runnable[*State, *State]
	recaller  Recaller
	generator AnswerGenerator
}

func NewGraph(ctx context.Context, recaller Recaller, generator AnswerGenerator) (*Graph, error) {
	g := &Graph{recaller: recaller, generator: generator}

	graph := compose.NewGraph[*State, *State]()
	if err := graph.AddLambdaNode(nodeRetrieve, compose.InvokableLambda(g.retrieve)); err != nil {
		return nil, fmt.Errorf("add retrieve node: %w", err)
	}
	if err := graph.AddLambdaNode(nodeGenerate, compose.InvokableLambda(g.generate)); err != nil {
		return nil, fmt.Errorf("add generate node: %w", err)
	}
	if err := graph.AddEdge(compose.START, nodeRetrieve); err != nil {
		return nil, fmt.Errorf("add edge: %w", err)
	}
	if err := graph.AddEdge(nodeRetrieve, nodeGenerate); err != nil {
		return nil, fmt.Errorf("add edge: %w", err)
	}
	if err := graph.AddEdge(nodeGenerate, compose.END); err != nil {
		return nil, fmt.Errorf("add edge: %w", err)
	}

	runnable, err := graph.Compile(ctx, compose.WithGraphName("rag_chat"))
	if err != nil {
		return nil, fmt.Errorf("compile chat graph: %w", err)
	}
	g.runnable = runnable
	return g, nil
}

// Run answers one question. The returned state always has a non-empty
// Answer.
func (g *Graph) Run(ctx context.Context, question string, storeID *string) (*State, error) {
	out, err := g.runnable.Invoke(ctx, &State{Question: question, VectorStoreID: storeID})
	if err != nil {
		return nil, fmt.Errorf("run chat graph: %w", err)
	}
	if out == nil {
		out = &State{Question: question, VectorStoreID: storeID}
	}
	if strings.TrimSpace(out.Answer) == "" {
		out.Answer = MissingAnswer
	}
	return out, nil
}

func (g *Graph) retrieve(ctx context.Context, in *State) (*State, error) {
	if in == nil || strings.TrimSpace(in.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	out := *in
	out.Context = ""
	out.Citations = nil
	if in.VectorStoreID == nil || *in.VectorStoreID == "" {
		return &out, nil
	}

	resp, err := g.recaller.Recall(ctx, *in.VectorStoreID, rag.RecallRequest{Query: in.Question, TopK: chatTopK})
	if err != nil {
		slog.Warn("chat recall failed, answering without context", "store_id", *in.VectorStoreID, "error", err)
		return &out, nil
	}

	contents := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		contents = append(contents, item.Content)
	}
	out.Context = strings.Join(contents, "\n\n")
	out.Citations = resp.Items
	return &out, nil
}

func (g *Graph) generate(ctx context.Context, in *State) (*State, error) {
	if in == nil || strings.TrimSpace(in.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	res, err := g.generator.Generate(ctx, in.Question, in.Context)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	out := *in
	out.Answer = res.Answer
	out.Failed = res.Failed
	return &out, nil
}
