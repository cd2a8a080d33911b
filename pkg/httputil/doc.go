// Package httputil centralizes request parsing, JSON responses and the
// cross-cutting HTTP middleware (CORS, request IDs, panic recovery).
//
// Every response leaving the API carries CORS headers, errors included,
// because the public CMS endpoints are fetched directly from customer sites
// in the browser. Errors have the shape {"error": ..., "message"?: ...}.
package httputil
