package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pragasv/sola-labs-demo/internal/embeddings"
	"github.com/pragasv/sola-labs-demo/internal/httpkit"
)

// AzureConfig locates an Azure AI Search index whose documents carry
// text, source and title fields plus a vector field.
type AzureConfig struct {
	Endpoint    string
	Index       string
	APIKey      string
	APIVersion  string
	VectorField string
}

// AzureSearch queries Azure AI Search over its REST API. With an
// embedder it runs a hybrid keyword plus vector query; without one it is
// keyword only.
type AzureSearch struct {
	cfg      AzureConfig
	embedder embeddings.Embedder
	client   *http.Client
}

// NewAzureSearch creates the backend. embedder may be nil.
func NewAzureSearch(cfg AzureConfig, embedder embeddings.Embedder) *AzureSearch {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-07-01"
	}
	if cfg.VectorField == "" {
		cfg.VectorField = "embedding"
	}
	return &AzureSearch{
		cfg:      cfg,
		embedder: embedder,
		client: httpkit.NewClient(
			httpkit.WithTimeout(20*time.Second),
			httpkit.WithHeader("api-key", cfg.APIKey),
		),
	}
}

type azureVectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type azureSearchRequest struct {
	Search        string             `json:"search"`
	Top           int                `json:"top"`
	Select        string             `json:"select"`
	VectorQueries []azureVectorQuery `json:"vectorQueries,omitempty"`
}

type azureSearchResponse struct {
	Value []struct {
		Score       float64 `json:"@search.score"`
		ID          string  `json:"id"`
		Text        string  `json:"text"`
		Source      string  `json:"source"`
		Title       string  `json:"title"`
		PageNumbers string  `json:"page_numbers"`
	} `json:"value"`
}

func (a *AzureSearch) Search(ctx context.Context, query string, limit int) ([]Passage, error) {
	req := azureSearchRequest{
		Search: query,
		Top:    limit,
		Select: "id,text,source,title",
	}
	if a.embedder != nil {
		vec, err := a.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		req.VectorQueries = []azureVectorQuery{{
			Kind:   "vector",
			Vector: vec,
			Fields: a.cfg.VectorField,
			K:      limit,
		}}
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		strings.TrimRight(a.cfg.Endpoint, "/"),
		url.PathEscape(a.cfg.Index),
		url.QueryEscape(a.cfg.APIVersion),
	)
	var resp azureSearchResponse
	if err := httpkit.DoJSON(ctx, a.client, http.MethodPost, endpoint, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("azure search: %w", err)
	}

	passages := make([]Passage, 0, len(resp.Value))
	for _, v := range resp.Value {
		passages = append(passages, Passage{
			ID:   v.ID,
			Text: v.Text,
			Metadata: Metadata{
				Filename:    v.Source,
				Title:       v.Title,
				PageNumbers: v.PageNumbers,
			},
			Score: v.Score,
		})
	}
	return passages, nil
}
