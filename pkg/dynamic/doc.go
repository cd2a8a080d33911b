// Package dynamic implements the key-gated passthrough for schemaless
// objects: tables exist only as a partitioning column over one jsonb
// store, so external tools can create ad-hoc structures without
// migrations. Table reads paginate by id cursor.
package dynamic
