// Package middleware provides the authorization layers of the API: identity
// resolution from bearer tokens, platform role checks, and organization
// membership checks.
//
// Identity resolution (AuthMiddleware) and the role/membership checks
// (RequireAuth, RequireOrgRole) are separate middlewares so each can be
// composed and tested independently.
package middleware
