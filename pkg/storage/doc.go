// Package storage wires up the backing stores: PostgreSQL for all relational
// data, S3 for file content and generated PDF documents, Redis for the shared
// CMS cache tier.
package storage
