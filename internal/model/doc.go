// Package model implements the entity stores layered over a shared
// SQLite capability: Model for unversioned point CRUD, and
// VersionedModel for append-only versioned documents.
//
// Both models map one entity type to one physical table whose shape is
// fixed at construction from the caller-declared foreign-key columns.
// Content is opaque JSON: stored verbatim, returned verbatim, never
// validated or partially updated.
package model
