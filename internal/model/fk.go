package model

import (
	"fmt"
	"slices"
	"time"

	"github.com/stratadb/strata/internal/store"
)

// reserved are column names owned by the store itself; declared
// foreign keys may not shadow them.
var reserved = []string{"id", "type", "name", "version", "createdAt", "content"}

// checkForeignKeyColumns validates declared foreign-key column names
// at construction time: safe identifier charset, no duplicates, no
// collision with reserved columns.
func checkForeignKeyColumns(foreignKeys []string) error {
	seen := make(map[string]bool, len(foreignKeys))
	for _, fk := range foreignKeys {
		if err := store.CheckIdent("foreign key", fk); err != nil {
			return err
		}
		if slices.Contains(reserved, fk) {
			return fmt.Errorf("foreign key %q collides with a reserved column", fk)
		}
		if seen[fk] {
			return fmt.Errorf("foreign key %q declared twice", fk)
		}
		seen[fk] = true
	}
	return nil
}

// orderedFKValues validates fks against the declared columns and
// returns the values in declaration order, ready to bind. Every
// declared key must be present; keys never declared are rejected
// rather than silently dropped.
func orderedFKValues(declared []string, fks ForeignKeys) ([]any, error) {
	for key := range fks {
		if !slices.Contains(declared, key) {
			return nil, missingField(ErrCodeUnknownForeignKey, key,
				"foreign key was not declared for this entity type")
		}
	}

	vals := make([]any, 0, len(declared))
	for _, col := range declared {
		v, ok := fks[col]
		if !ok {
			return nil, missingField(ErrCodeMissingForeignKey, col,
				"required foreign key missing from insert")
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// copyForeignKeys returns a shallow copy so returned records do not
// alias caller maps.
func copyForeignKeys(declared []string, fks ForeignKeys) ForeignKeys {
	out := make(ForeignKeys, len(declared))
	for _, col := range declared {
		out[col] = fks[col]
	}
	return out
}

// normalizeValue converts driver []byte text into string so foreign
// keys read back as the values callers stored.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Timestamps are stored as RFC 3339 text so rows stay readable and
// driver-independent.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse createdAt: %w", err)
	}
	return t, nil
}
