package wikiai

import (
	"context"
	"net/http"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// PluginsService manages shop-integration plugins and their access tokens.
type PluginsService struct {
	s *Service
}

// PluginStatus reports whether the plugin integration is enabled.
type PluginStatus struct {
	Enabled bool   `json:"enabled"`
	Status  string `json:"status"`
}

// PluginToken is one plugin access token.
type PluginToken struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CreatedPluginToken is the token-creation response with the one-time
// secret.
type CreatedPluginToken struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Status returns the plugin integration state.
func (p *PluginsService) Status(ctx context.Context, token string) (*PluginStatus, error) {
	return do[PluginStatus](ctx, p.s, client.Request{URL: "/plugins/status", Token: token})
}

// Enable turns on the named plugin; empty defaults to opencart.
func (p *PluginsService) Enable(ctx context.Context, token, plugin string) (*types.Envelope, error) {
	return doEnvelope(ctx, p.s, client.Request{
		URL:    "/plugins/" + defaultPlugin(plugin) + "/enable",
		Method: http.MethodPost,
		Token:  token,
	})
}

// Disable turns off the named plugin; empty defaults to opencart.
func (p *PluginsService) Disable(ctx context.Context, token, plugin string) (*types.Envelope, error) {
	return doEnvelope(ctx, p.s, client.Request{
		URL:    "/plugins/" + defaultPlugin(plugin) + "/disable",
		Method: http.MethodPost,
		Token:  token,
	})
}

// ListTokens returns the plugin access tokens.
func (p *PluginsService) ListTokens(ctx context.Context, token string) ([]PluginToken, error) {
	result, err := do[struct {
		Tokens []PluginToken `json:"tokens"`
	}](ctx, p.s, client.Request{URL: "/plugins/tokens", Token: token})
	if err != nil {
		return nil, err
	}
	return result.Tokens, nil
}

// CreateToken issues a new plugin access token.
func (p *PluginsService) CreateToken(ctx context.Context, token, name string) (*CreatedPluginToken, error) {
	return do[CreatedPluginToken](ctx, p.s, client.Request{
		URL:    "/plugins/tokens/create",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"token_name": name},
	})
}

// DeleteToken revokes a plugin access token.
func (p *PluginsService) DeleteToken(ctx context.Context, token, tokenID string) (*types.Envelope, error) {
	return doEnvelope(ctx, p.s, client.Request{
		URL:    "/plugins/tokens/" + tokenID,
		Method: http.MethodDelete,
		Token:  token,
	})
}

func defaultPlugin(plugin string) string {
	if plugin == "" {
		return "opencart"
	}
	return plugin
}
