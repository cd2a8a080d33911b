// Package auth provides identity resolution for the portal.
//
// Identities come from external OIDC providers (Google, GitHub via an
// OIDC-compliant proxy); the package verifies bearer ID tokens, maintains
// the local user record and distinguishes the platform-wide role
// (admin|user) from the organization-level role (owner|admin|member).
//
// Authorization decisions live in pkg/middleware; this package only answers
// "who is calling".
package auth
