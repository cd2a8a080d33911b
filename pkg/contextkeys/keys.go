// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/sleads/portal/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.AuthKey, authCtx)
//   authCtx := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.RequireAuth (pkg/middleware/auth.go)
	// Required by: all protected API endpoints
	// Type: *auth.AuthContext
	AuthKey Key = "auth_context"

	// OrgKey contains *orgs.Organization
	// Set by: middleware.RequireOrgRole (pkg/middleware/org.go)
	// Required by: org-scoped endpoints
	// Type: *orgs.Organization
	OrgKey Key = "organization"

	// MemberKey contains the *orgs.Member resolved for the calling user
	// Set by: middleware.RequireOrgRole (pkg/middleware/org.go)
	// Type: *orgs.Member
	MemberKey Key = "org_member"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: auth middleware after user authentication
	// Used by: logger, audit trail, user-scoped operations
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithOrg adds organization to the context
func WithOrg(ctx context.Context, org interface{}) context.Context {
	return context.WithValue(ctx, OrgKey, org)
}

// WithMember adds the resolved organization member to the context
func WithMember(ctx context.Context, member interface{}) context.Context {
	return context.WithValue(ctx, MemberKey, member)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
