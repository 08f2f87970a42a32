package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stratadb/strata/internal/store"
)

// VersionedModel manages append-only versioned documents for one
// entity type. Every insert under a name creates a new row with the
// next version number; rows are never mutated in place.
//
// Version assignment is optimistic: the max-version read and the
// insert execute in one transaction, and the whole protocol is retried
// on conflict. See Insert.
type VersionedModel struct {
	store      *store.Store
	entityType string
	table      string
	fkCols     []string
	now        func() time.Time
	maxRetries int

	insertSQL  string
	selectCols string

	// beforeInsert runs inside the insert transaction, after the next
	// version is computed and before the row is written. Tests use it
	// to force a conflicting write from a second connection.
	beforeInsert func(name string, version int64)
}

// NewVersioned constructs a VersionedModel for entityType against the
// shared store and ensures its table and indexes exist. foreignKeys
// declares the relation columns every insert must provide.
func NewVersioned(ctx context.Context, s *store.Store, entityType string, foreignKeys []string, opts ...Option) (*VersionedModel, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := store.CheckIdent("entity type", entityType); err != nil {
		return nil, err
	}
	if err := checkForeignKeyColumns(foreignKeys); err != nil {
		return nil, err
	}

	vm := &VersionedModel{
		store:      s,
		entityType: entityType,
		table:      cfg.prefix + "_" + entityType,
		fkCols:     append([]string(nil), foreignKeys...),
		now:        cfg.now,
		maxRetries: cfg.maxRetries,
	}
	vm.buildSQL()

	if err := vm.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return vm, nil
}

func (vm *VersionedModel) buildSQL() {
	cols := append([]string{"id", "type", "name", "version", "createdAt"}, vm.fkCols...)
	cols = append(cols, "content")
	vm.selectCols = strings.Join(cols, ", ")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	vm.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", vm.table, vm.selectCols, placeholders)
}

func (vm *VersionedModel) ensureSchema(ctx context.Context) error {
	cols := []store.ColumnDef{
		{Name: "id", PrimaryKey: true},
		{Name: "type", NotNull: true},
		{Name: "name", NotNull: true},
		{Name: "version", Type: "INTEGER", NotNull: true},
		{Name: "createdAt", NotNull: true},
	}
	for _, fk := range vm.fkCols {
		cols = append(cols, store.ColumnDef{Name: fk})
	}
	cols = append(cols, store.ColumnDef{Name: "content"})

	if err := vm.store.EnsureTable(ctx, vm.table, cols); err != nil {
		return err
	}
	for _, col := range append([]string{"type", "name", "version"}, vm.fkCols...) {
		if err := vm.store.EnsureIndex(ctx, vm.table, col); err != nil {
			return err
		}
	}
	return nil
}

// Type returns the entity type this model manages.
func (vm *VersionedModel) Type() string { return vm.entityType }

// documentID derives the row id from (type, name, version). Id
// uniqueness follows from version uniqueness per name.
func (vm *VersionedModel) documentID(name string, version int64) string {
	return fmt.Sprintf("%s:%s:%d", vm.entityType, name, version)
}

// Insert appends a new version of the named document and returns the
// full inserted row, content as supplied.
//
// The max-version read, version assignment, and row insert execute in
// one transaction. If that transaction fails with a storage conflict
// (a racing writer claimed the same version), the whole protocol is
// retried from the read, up to the configured bound; the current max
// is re-read on every attempt. Exhausting retries surfaces the
// underlying storage error.
func (vm *VersionedModel) Insert(ctx context.Context, name string, content Content, fks ForeignKeys) (*Document, error) {
	if name == "" {
		return nil, missingField(ErrCodeMissingName, "name", "versioned inserts require a non-empty document name")
	}
	if content == nil {
		return nil, missingField(ErrCodeMissingContent, "content", "content is required")
	}
	fkVals, err := orderedFKValues(vm.fkCols, fks)
	if err != nil {
		return nil, err
	}
	raw, err := marshalContent(content)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= vm.maxRetries; attempt++ {
		doc, err := vm.tryInsert(ctx, name, content, fks, fkVals, raw)
		if err == nil {
			return doc, nil
		}
		if !isConflict(err) {
			return nil, fmt.Errorf("insert %s %q: %w", vm.entityType, name, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("insert %s %q: retries exhausted: %w", vm.entityType, name, lastErr)
}

// tryInsert runs one attempt of the insert protocol as a single
// atomic unit.
func (vm *VersionedModel) tryInsert(ctx context.Context, name string, content Content, fks ForeignKeys, fkVals []any, raw string) (*Document, error) {
	createdAt := vm.now().UTC()
	var doc *Document

	err := vm.store.Tx(ctx, func(tx *sql.Tx) error {
		var max int64
		query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s WHERE name = ?", vm.table)
		if err := tx.QueryRowContext(ctx, query, name).Scan(&max); err != nil {
			return fmt.Errorf("max version: %w", err)
		}
		next := max + 1
		id := vm.documentID(name, next)

		if vm.beforeInsert != nil {
			vm.beforeInsert(name, next)
		}

		args := append([]any{id, vm.entityType, name, next, formatTime(createdAt)}, fkVals...)
		args = append(args, raw)
		if _, err := tx.ExecContext(ctx, vm.insertSQL, args...); err != nil {
			return err
		}

		doc = &Document{
			ID:          id,
			Type:        vm.entityType,
			Name:        name,
			Version:     next,
			CreatedAt:   createdAt,
			ForeignKeys: copyForeignKeys(vm.fkCols, fks),
			Content:     content,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// InsertRecord is the unversioned insert signature carried by Model.
// It is deliberately disabled here: versioned rows derive their id
// from (name, version), so callers cannot supply one. Always fails.
func (vm *VersionedModel) InsertRecord(context.Context, string, Content, ForeignKeys) (*Record, error) {
	return nil, &ValidationError{
		Code:    ErrCodeUnversionedInsert,
		Message: "unversioned insert is disabled on versioned models; use Insert with a document name",
	}
}

// Get returns the latest version of the named document, or nil if no
// versions exist.
func (vm *VersionedModel) Get(ctx context.Context, name string) (*Document, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ? ORDER BY version DESC LIMIT 1", vm.selectCols, vm.table)
	doc, err := vm.scanDocument(vm.store.DB().QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", vm.entityType, name, err)
	}
	return doc, nil
}

// GetVersion returns the exact (name, version) row, or nil if absent.
func (vm *VersionedModel) GetVersion(ctx context.Context, name string, version int64) (*Document, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ? AND version = ?", vm.selectCols, vm.table)
	doc, err := vm.scanDocument(vm.store.DB().QueryRowContext(ctx, query, name, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q v%d: %w", vm.entityType, name, version, err)
	}
	return doc, nil
}

// GetVersions returns versions of the named document, newest first,
// paginated via limit/offset. Pagination is stateless: no cursor is
// retained between calls. limit <= 0 means no limit.
func (vm *VersionedModel) GetVersions(ctx context.Context, name string, limit, offset int) ([]*Document, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ? ORDER BY version DESC LIMIT ? OFFSET ?", vm.selectCols, vm.table)
	rows, err := vm.store.DB().QueryContext(ctx, query, name, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get versions %s %q: %w", vm.entityType, name, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := vm.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("get versions %s %q: %w", vm.entityType, name, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get versions %s %q: %w", vm.entityType, name, err)
	}

	if docs == nil {
		docs = []*Document{}
	}
	return docs, nil
}

// Count returns the number of distinct logical document names, not
// the total row count.
func (vm *VersionedModel) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(DISTINCT name) FROM %s", vm.table)
	if err := vm.store.DB().QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", vm.entityType, err)
	}
	return count, nil
}

// GetAll returns distinct document names in a stable order, paginated.
// limit <= 0 means no limit.
func (vm *VersionedModel) GetAll(ctx context.Context, limit, offset int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf("SELECT DISTINCT name FROM %s ORDER BY name LIMIT ? OFFSET ?", vm.table)
	rows, err := vm.store.DB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", vm.entityType, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("get all %s: %w", vm.entityType, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get all %s: %w", vm.entityType, err)
	}

	if names == nil {
		names = []string{}
	}
	return names, nil
}

// DeleteVersion removes exactly one (name, version) row. Returns rows
// affected; 0 when the row is absent, which is not an error.
func (vm *VersionedModel) DeleteVersion(ctx context.Context, name string, version int64) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = ? AND version = ?", vm.table)
	res, err := vm.store.DB().ExecContext(ctx, query, name, version)
	if err != nil {
		return 0, fmt.Errorf("delete %s %q v%d: %w", vm.entityType, name, version, err)
	}
	return res.RowsAffected()
}

// DeleteAllVersions removes every row for the named document. Returns
// rows affected; 0 when the name is absent, which is not an error.
func (vm *VersionedModel) DeleteAllVersions(ctx context.Context, name string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = ?", vm.table)
	res, err := vm.store.DB().ExecContext(ctx, query, name)
	if err != nil {
		return 0, fmt.Errorf("delete all %s %q: %w", vm.entityType, name, err)
	}
	return res.RowsAffected()
}

// Delete removes only the current latest version of the named
// document ("undo the last write") and returns the deleted row, or
// nil if no versions exist. Fetch and delete run in one transaction
// so a concurrent append cannot slip between them.
func (vm *VersionedModel) Delete(ctx context.Context, name string) (*Document, error) {
	var doc *Document
	err := vm.store.Tx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ? ORDER BY version DESC LIMIT 1", vm.selectCols, vm.table)
		d, err := vm.scanDocument(tx.QueryRowContext(ctx, query, name))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", vm.table)
		if _, err := tx.ExecContext(ctx, del, d.ID); err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete %s %q: %w", vm.entityType, name, err)
	}
	return doc, nil
}

func (vm *VersionedModel) scanDocument(sc scanner) (*Document, error) {
	var (
		id, typ, name, created, raw string
		version                     int64
		fkVals                      = make([]any, len(vm.fkCols))
	)
	dest := []any{&id, &typ, &name, &version, &created}
	for i := range fkVals {
		dest = append(dest, &fkVals[i])
	}
	dest = append(dest, &raw)

	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	createdAt, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	content, err := unmarshalContent(raw)
	if err != nil {
		return nil, err
	}

	fks := make(ForeignKeys, len(vm.fkCols))
	for i, col := range vm.fkCols {
		fks[col] = normalizeValue(fkVals[i])
	}

	return &Document{
		ID:          id,
		Type:        typ,
		Name:        name,
		Version:     version,
		CreatedAt:   createdAt,
		ForeignKeys: fks,
		Content:     content,
	}, nil
}
