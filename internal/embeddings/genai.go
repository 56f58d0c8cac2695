package embeddings

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGenAIModel is used when no model is configured.
const DefaultGenAIModel = "gemini-embedding-001"

// GenAIClient generates embeddings with the Gemini API.
type GenAIClient struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIClient creates a Gemini embedding client. taskType is a
// Gemini task type name such as RETRIEVAL_QUERY; empty selects
// RETRIEVAL_QUERY since the agent only embeds search queries.
func NewGenAIClient(ctx context.Context, apiKey, model, taskType string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai API key is required")
	}
	if model == "" {
		model = DefaultGenAIModel
	}

	return newGenAIClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, taskType)
}

func newGenAIClient(ctx context.Context, cfg *genai.ClientConfig, model, taskType string) (*GenAIClient, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIClient{
		client:   client,
		model:    model,
		taskType: parseTaskType(taskType),
	}, nil
}

// Gemini embedding task types.
const (
	TaskRetrievalQuery     = "RETRIEVAL_QUERY"
	TaskRetrievalDocument  = "RETRIEVAL_DOCUMENT"
	TaskSemanticSimilarity = "SEMANTIC_SIMILARITY"
	TaskQuestionAnswering  = "QUESTION_ANSWERING"
	TaskFactVerification   = "FACT_VERIFICATION"
)

// parseTaskType normalizes a configured task type name. Unknown and
// empty names select TaskRetrievalQuery.
func parseTaskType(s string) string {
	switch s := strings.ToUpper(strings.TrimSpace(s)); s {
	case TaskRetrievalDocument, TaskSemanticSimilarity, TaskQuestionAnswering, TaskFactVerification:
		return s
	default:
		return TaskRetrievalQuery
	}
}

// Embed returns the embedding of text.
func (c *GenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := c.client.Models.EmbedContent(ctx,
		c.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: c.taskType},
	)
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("genai embed: no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
