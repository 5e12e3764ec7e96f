package wikiai

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// AuthService covers login, token validation, and organization membership
// management.
type AuthService struct {
	s *Service
}

// LoginResult is the raw login response; token and role sit outside the
// envelope contract.
type LoginResult struct {
	Status  types.Status `json:"status"`
	Message string       `json:"message"`
	Token   string       `json:"token,omitempty"`
	Role    string       `json:"role,omitempty"`
}

// TokenInfo is the payload of a successful token validation.
type TokenInfo struct {
	Valid            bool   `json:"valid"`
	Username         string `json:"username"`
	Role             string `json:"role"`
	Organization     string `json:"organization,omitempty"`
	OrganizationID   string `json:"organization_id,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// Membership is one organization the user belongs to.
type Membership struct {
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	Role             string `json:"role"`
}

// Member is one user within an organization.
type Member struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login exchanges credentials for a bearer token. Login failures surface in
// the result's status and message, not as a Go error.
func (a *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	env, err := a.s.http.Do(ctx, client.Request{
		URL:     "/login",
		Method:  http.MethodPost,
		Body:    map[string]string{"username": username, "password": password},
		NoRetry: true,
	})
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return &LoginResult{Status: types.StatusError, Message: env.Message}, nil
	}
	return types.DecodeBody[LoginResult](env)
}

// ValidateToken checks a bearer token and returns its claims.
func (a *AuthService) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	return do[TokenInfo](ctx, a.s, client.Request{URL: "/token/validate", Token: token})
}

// CheckAdminAccess reports whether the token grants admin access.
func (a *AuthService) CheckAdminAccess(ctx context.Context, token string) (bool, error) {
	result, err := do[struct {
		Admin bool `json:"admin"`
	}](ctx, a.s, client.Request{URL: "/admin/access", Token: token})
	if err != nil {
		return false, err
	}
	return result.Admin, nil
}

// CreateOrganization registers a new organization with its first admin.
func (a *AuthService) CreateOrganization(ctx context.Context, name, adminUsername, adminPassword string) (*types.Envelope, error) {
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/organizations/create_with_admin",
		Method: http.MethodPost,
		Body: map[string]string{
			"organization_name": name,
			"admin_username":    adminUsername,
			"admin_password":    adminPassword,
		},
	})
}

// SwitchOrganization exchanges the token for one scoped to another
// organization, addressed by ID or slug.
func (a *AuthService) SwitchOrganization(ctx context.Context, token, organizationID, organizationSlug string) (string, error) {
	body := map[string]string{}
	if organizationID != "" {
		body["organization_id"] = organizationID
	}
	if organizationSlug != "" {
		body["organization_slug"] = organizationSlug
	}
	result, err := do[struct {
		Token string `json:"token"`
	}](ctx, a.s, client.Request{
		URL:    "/organizations/switch",
		Method: http.MethodPost,
		Token:  token,
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	return result.Token, nil
}

// ListMemberships returns the organizations the token's user belongs to.
func (a *AuthService) ListMemberships(ctx context.Context, token string) ([]Membership, error) {
	result, err := do[struct {
		Memberships []Membership `json:"memberships"`
	}](ctx, a.s, client.Request{URL: "/organizations/memberships", Token: token})
	if err != nil {
		return nil, err
	}
	return result.Memberships, nil
}

// ListMembers returns the members of the token's organization.
func (a *AuthService) ListMembers(ctx context.Context, token string) ([]Member, error) {
	result, err := do[struct {
		Members []Member `json:"members"`
	}](ctx, a.s, client.Request{URL: "/organizations/members", Token: token})
	if err != nil {
		return nil, err
	}
	return result.Members, nil
}

// CreateInvite invites an email address into the organization.
func (a *AuthService) CreateInvite(ctx context.Context, token, email, role string) (*types.Envelope, error) {
	if role == "" {
		role = "member"
	}
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/organizations/invites",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"email": email, "role": role},
	})
}

// AcceptInvite redeems an invite token, creating the account.
func (a *AuthService) AcceptInvite(ctx context.Context, inviteToken, password, name string) (*types.Envelope, error) {
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/organizations/invites/accept",
		Method: http.MethodPost,
		Body:   map[string]string{"token": inviteToken, "password": password, "name": name},
	})
}

// UpdateMemberRole changes a member's role.
func (a *AuthService) UpdateMemberRole(ctx context.Context, token, userID, role string) (*types.Envelope, error) {
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/organizations/members/role",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"user_id": userID, "role": role},
	})
}

// RevokeInvite withdraws a pending invite.
func (a *AuthService) RevokeInvite(ctx context.Context, token, inviteID string) (*types.Envelope, error) {
	return doEnvelope(ctx, a.s, client.Request{
		URL:    "/organizations/invites/" + url.PathEscape(inviteID),
		Method: http.MethodDelete,
		Token:  token,
	})
}
