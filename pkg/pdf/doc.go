// Package pdf wraps the external document-rendering endpoint and the
// object-store upload of rendered documents.
package pdf
