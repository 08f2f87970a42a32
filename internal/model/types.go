package model

import "time"

// Content is the opaque structured payload stored per row. The store
// round-trips it through JSON and never inspects it.
type Content map[string]any

// ForeignKeys maps declared relation columns to their values for one
// row. Values should be scalars (string, number, bool, nil); they are
// stored in loosely typed columns and used for indexed filtering, not
// engine-enforced referential integrity.
type ForeignKeys map[string]any

// Record is one row of an unversioned entity table.
type Record struct {
	ID          string
	Type        string
	CreatedAt   time.Time
	ForeignKeys ForeignKeys
	Content     Content
}

// Document is one immutable version of a named logical document.
// All rows sharing a Name form the document's history, ordered by
// Version (dense, starting at 1).
type Document struct {
	ID          string
	Type        string
	Name        string
	Version     int64
	CreatedAt   time.Time
	ForeignKeys ForeignKeys
	Content     Content
}
