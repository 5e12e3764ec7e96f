package wikiai

import (
	"context"
	"net/http"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// APIKeysService manages programmatic access keys.
type APIKeysService struct {
	s *Service
}

// APIKey describes one issued key. The secret itself is only returned at
// creation time.
type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	LastUsed  string `json:"last_used,omitempty"`
}

// CreatedAPIKey is the creation response, carrying the one-time secret.
type CreatedAPIKey struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// List returns the issued keys.
func (k *APIKeysService) List(ctx context.Context, token string) ([]APIKey, error) {
	result, err := do[struct {
		Keys []APIKey `json:"keys"`
	}](ctx, k.s, client.Request{URL: "/api-keys/list", Token: token})
	if err != nil {
		return nil, err
	}
	return result.Keys, nil
}

// Create issues a new key under the given name.
func (k *APIKeysService) Create(ctx context.Context, token, name string) (*CreatedAPIKey, error) {
	return do[CreatedAPIKey](ctx, k.s, client.Request{
		URL:    "/api-keys/create",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"name": name},
	})
}

// Delete revokes a key by ID.
func (k *APIKeysService) Delete(ctx context.Context, token, keyID string) (*types.Envelope, error) {
	return doEnvelope(ctx, k.s, client.Request{
		URL:    "/api-keys/" + keyID,
		Method: http.MethodDelete,
		Token:  token,
	})
}
