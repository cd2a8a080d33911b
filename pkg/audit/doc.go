// Package audit keeps a slim best-effort log of security-relevant events:
// rejected requests and billing status transitions.
package audit
