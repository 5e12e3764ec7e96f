package wikiai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// AdminService manages user accounts.
type AdminService struct {
	s *Service
}

// Account is one user account visible to administrators.
type Account struct {
	Username     string   `json:"username"`
	Role         string   `json:"role"`
	AllowedFiles []string `json:"allowed_files,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
}

// UserSpec describes an account to create or edit. For edits, empty fields
// are left unchanged.
type UserSpec struct {
	Username     string   `json:"username"`
	Password     string   `json:"password,omitempty"`
	Role         string   `json:"role,omitempty"`
	AllowedFiles []string `json:"allowed_files,omitempty"`
}

// ListAccounts returns all accounts. The backend historically returns a bare
// JSON array; enveloped responses are handled too.
func (a *AdminService) ListAccounts(ctx context.Context, token string) ([]Account, error) {
	env, err := a.s.http.Do(ctx, client.Request{URL: "/accounts", Token: token})
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		return nil, err
	}

	var accounts []Account
	if err := json.Unmarshal(env.Response, &accounts); err == nil {
		return accounts, nil
	}

	// Enveloped shape: response may be {accounts: [...]} or the list itself
	// nested one level deeper.
	wrapped, err := types.Decode[struct {
		Accounts []Account `json:"accounts"`
	}](env)
	if err != nil {
		return nil, err
	}
	return wrapped.Accounts, nil
}

// CreateUser registers a new account.
func (a *AdminService) CreateUser(ctx context.Context, token string, spec UserSpec) (*types.Envelope, error) {
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/register",
		Method: http.MethodPost,
		Token:  token,
		Body:   spec,
	})
}

// EditUser updates an existing account.
func (a *AdminService) EditUser(ctx context.Context, token string, spec UserSpec) (*types.Envelope, error) {
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/user/edit",
		Method: http.MethodPost,
		Token:  token,
		Body:   spec,
	})
}

// DeleteUser removes an account by username.
func (a *AdminService) DeleteUser(ctx context.Context, token, username string) (*types.Envelope, error) {
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/user/delete",
		Method: http.MethodDelete,
		Token:  token,
		Params: map[string]string{"username": username},
	})
}
