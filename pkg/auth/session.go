package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ProviderConfig describes a single OIDC login provider (Google, GitHub via
// an OIDC-compliant proxy, etc.)
type ProviderConfig struct {
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Authenticator resolves bearer ID tokens into portal identities.
// Identity resolution is deliberately separate from the role and membership
// checks in pkg/middleware so each step can be tested on its own.
type Authenticator struct {
	verifiers    map[string]*oidc.IDTokenVerifier
	oauthConfigs map[string]*oauth2.Config
	store        Store
	adminIDs     map[int64]bool
}

// NewAuthenticator discovers the configured OIDC providers and builds
// verifiers for each. adminUserIDs is the comma-separated ADMIN_USER_IDS
// list; matching users are promoted to the platform admin role.
func NewAuthenticator(ctx context.Context, providers []ProviderConfig, store Store, adminUserIDs string) (*Authenticator, error) {
	a := &Authenticator{
		verifiers:    make(map[string]*oidc.IDTokenVerifier),
		oauthConfigs: make(map[string]*oauth2.Config),
		store:        store,
		adminIDs:     parseAdminIDs(adminUserIDs),
	}

	for _, pc := range providers {
		provider, err := oidc.NewProvider(ctx, pc.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover provider %s: %w", pc.Name, err)
		}
		a.verifiers[pc.Name] = provider.Verifier(&oidc.Config{ClientID: pc.ClientID})
		a.oauthConfigs[pc.Name] = &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
	}

	return a, nil
}

// AuthCodeURL returns the provider's consent page URL for a login flow
func (a *Authenticator) AuthCodeURL(providerName, state string) (string, error) {
	cfg, ok := a.oauthConfigs[providerName]
	if !ok {
		return "", fmt.Errorf("unknown provider: %s", providerName)
	}
	return cfg.AuthCodeURL(state), nil
}

// Exchange completes the authorization-code flow: exchanges the code,
// verifies the ID token and upserts the user record.
func (a *Authenticator) Exchange(ctx context.Context, providerName, code string) (*User, string, error) {
	cfg, ok := a.oauthConfigs[providerName]
	if !ok {
		return nil, "", fmt.Errorf("unknown provider: %s", providerName)
	}
	verifier, ok := a.verifiers[providerName]
	if !ok {
		return nil, "", fmt.Errorf("unknown provider: %s", providerName)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, "", fmt.Errorf("no id_token in token response")
	}

	user, err := a.resolveIDToken(ctx, verifier, rawIDToken)
	if err != nil {
		return nil, "", err
	}

	return user, rawIDToken, nil
}

// ResolveToken verifies a bearer ID token against all configured providers
// and returns the authenticated context. Returns ErrUnauthorized when no
// provider accepts the token.
func (a *Authenticator) ResolveToken(ctx context.Context, rawIDToken string) (*AuthContext, error) {
	for _, verifier := range a.verifiers {
		user, err := a.resolveIDToken(ctx, verifier, rawIDToken)
		if err == nil {
			return &AuthContext{User: user}, nil
		}
	}
	return nil, ErrUnauthorized
}

func (a *Authenticator) resolveIDToken(ctx context.Context, verifier *oidc.IDTokenVerifier, rawIDToken string) (*User, error) {
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	user, err := a.store.UpsertUser(&User{
		Subject:  idToken.Subject,
		Email:    claims.Email,
		FullName: claims.Name,
		Role:     RoleUser,
		IsActive: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	if a.adminIDs[user.ID] && user.Role != RoleAdmin {
		user.Role = RoleAdmin
		if err := a.store.SetUserRole(user.ID, RoleAdmin); err != nil {
			return nil, fmt.Errorf("failed to promote admin user: %w", err)
		}
	}

	return user, nil
}

func parseAdminIDs(raw string) map[int64]bool {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids[id] = true
	}
	return ids
}
