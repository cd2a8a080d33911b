// Package api wires the HTTP surface of the portal: the public content
// endpoints consumed by client sites, the shared-key dynamic object
// endpoints, the OAuth login flow, and the authenticated management API
// under /api/v1.
package api
