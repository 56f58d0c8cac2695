package llm

import (
	"context"
	"errors"
	"fmt"
)

// MultiClient routes each request to a provider chosen by model name.
type MultiClient struct {
	clients  map[string]Client // provider name → client
	models   map[string]string // model name → provider name
	fallback string
}

// NewMultiClient creates a router whose unmapped models go to the
// fallback provider.
func NewMultiClient(fallback string) *MultiClient {
	return &MultiClient{
		clients:  make(map[string]Client),
		models:   make(map[string]string),
		fallback: fallback,
	}
}

// AddProvider registers a client for a provider name.
func (m *MultiClient) AddProvider(name string, client Client) {
	m.clients[name] = client
}

// AddModel maps a model name to a provider.
func (m *MultiClient) AddModel(model, provider string) {
	m.models[model] = provider
}

func (m *MultiClient) clientFor(model string) (Client, string) {
	provider, ok := m.models[model]
	if !ok {
		provider = m.fallback
	}
	return m.clients[provider], provider
}

// Chat forwards the request to the provider serving req.Model.
func (m *MultiClient) Chat(ctx context.Context, req Request) (*ChatResponse, error) {
	client, provider := m.clientFor(req.Model)
	if client == nil {
		return nil, fmt.Errorf("no provider %q configured for model %q", provider, req.Model)
	}
	return client.Chat(ctx, req)
}

// Ping checks every registered provider.
func (m *MultiClient) Ping(ctx context.Context) error {
	if len(m.clients) == 0 {
		return errors.New("no providers configured")
	}
	var errs []error
	for name, c := range m.clients {
		if err := c.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
