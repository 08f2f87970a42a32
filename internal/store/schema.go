package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Table and index names are built from caller-supplied entity-type and
// foreign-key names. Those identifiers are interpolated into DDL and
// query text directly (SQLite placeholders cannot bind identifiers),
// so they are restricted to a safe charset up front instead of being
// trusted. Row values always go through placeholders.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CheckIdent validates a SQL identifier candidate. kind names the role
// of the identifier ("entity type", "foreign key") for the error text.
func CheckIdent(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s must not be empty", kind)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%s %q must match %s", kind, name, identPattern.String())
	}
	return nil
}

// ColumnDef describes one column of an entity table. Columns are
// loosely typed: content and relation values may hold heterogeneous
// data, and SQLite's type affinity handles the rest.
type ColumnDef struct {
	Name       string
	Type       string // defaults to TEXT
	PrimaryKey bool
	NotNull    bool
}

func (c ColumnDef) render() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.Type != "" {
		b.WriteString(" " + c.Type)
	} else {
		b.WriteString(" TEXT")
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// EnsureTable creates the table if it does not exist. Column names
// must already be validated by the caller; EnsureTable re-checks them
// as a last line of defense. Schema is append-only across the table's
// lifetime: there are no drops, alters, or migrations here.
func (s *Store) EnsureTable(ctx context.Context, table string, columns []ColumnDef) error {
	if err := CheckIdent("table", table); err != nil {
		return err
	}
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		if err := CheckIdent("column", col.Name); err != nil {
			return err
		}
		defs = append(defs, col.render())
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}

// EnsureIndex creates a single-column index named idx_<table>_<column>
// if it does not exist.
func (s *Store) EnsureIndex(ctx context.Context, table, column string) error {
	if err := CheckIdent("table", table); err != nil {
		return err
	}
	if err := CheckIdent("column", column); err != nil {
		return err
	}

	ddl := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", table, column, table, column)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure index on %s.%s: %w", table, column, err)
	}
	return nil
}
