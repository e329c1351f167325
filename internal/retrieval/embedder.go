package retrieval

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// queryTaskType is the asymmetric counterpart of the RETRIEVAL_DOCUMENT
// task the offline indexer embeds documents with. Retrieval quality depends
// on the pair matching.
const queryTaskType = "RETRIEVAL_QUERY"

// GenaiEmbedder embeds queries with the Gemini embedding API.
type GenaiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenaiEmbedder wraps an existing genai client.
func NewGenaiEmbedder(client *genai.Client, model string) (*GenaiEmbedder, error) {
	if client == nil {
		return nil, errors.New("genai client required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GenaiEmbedder{client: client, model: model}, nil
}

// EmbedQuery returns the query-mode embedding vector for text.
func (e *GenaiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType: queryTaskType,
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embeddings[0].Values, nil
}
