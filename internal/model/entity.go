package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stratadb/strata/internal/store"
)

// Model provides unversioned point CRUD for one entity type: one row
// per record id, each insert or update a complete replacement.
type Model struct {
	store      *store.Store
	entityType string
	table      string
	fkCols     []string
	now        func() time.Time

	insertSQL  string
	selectCols string
}

// New constructs a Model for entityType against the shared store and
// ensures its table and indexes exist. foreignKeys declares the
// relation columns every insert must provide; the declaration is fixed
// for the table's lifetime.
func New(ctx context.Context, s *store.Store, entityType string, foreignKeys []string, opts ...Option) (*Model, error) {
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

	m := &Model{
		store:      s,
		entityType: entityType,
		table:      cfg.prefix + "_" + entityType,
		fkCols:     append([]string(nil), foreignKeys...),
		now:        cfg.now,
	}
	m.buildSQL()

	if err := m.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) buildSQL() {
	cols := append([]string{"id", "type", "createdAt"}, m.fkCols...)
	cols = append(cols, "content")
	m.selectCols = strings.Join(cols, ", ")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	m.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", m.table, m.selectCols, placeholders)
}

func (m *Model) ensureSchema(ctx context.Context) error {
	cols := []store.ColumnDef{
		{Name: "id", PrimaryKey: true},
		{Name: "type", NotNull: true},
		{Name: "createdAt", NotNull: true},
	}
	for _, fk := range m.fkCols {
		cols = append(cols, store.ColumnDef{Name: fk})
	}
	cols = append(cols, store.ColumnDef{Name: "content"})

	if err := m.store.EnsureTable(ctx, m.table, cols); err != nil {
		return err
	}
	for _, col := range append([]string{"type"}, m.fkCols...) {
		if err := m.store.EnsureIndex(ctx, m.table, col); err != nil {
			return err
		}
	}
	return nil
}

// Type returns the entity type this model manages.
func (m *Model) Type() string { return m.entityType }

// Insert stores a new record. An empty id is replaced with a generated
// UUIDv7 so records sort by creation time. content must be non-nil and
// fks must cover every declared foreign key.
func (m *Model) Insert(ctx context.Context, id string, content Content, fks ForeignKeys) (*Record, error) {
	if content == nil {
		return nil, missingField(ErrCodeMissingContent, "content", "content is required")
	}
	fkVals, err := orderedFKValues(m.fkCols, fks)
	if err != nil {
		return nil, err
	}
	raw, err := marshalContent(content)
	if err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	createdAt := m.now().UTC()

	args := append([]any{id, m.entityType, formatTime(createdAt)}, fkVals...)
	args = append(args, raw)
	if _, err := m.store.DB().ExecContext(ctx, m.insertSQL, args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", m.entityType, err)
	}

	return &Record{
		ID:          id,
		Type:        m.entityType,
		CreatedAt:   createdAt,
		ForeignKeys: copyForeignKeys(m.fkCols, fks),
		Content:     content,
	}, nil
}

// Get returns the record with the given id, or nil if absent.
func (m *Model) Get(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", m.selectCols, m.table)
	rec, err := m.scanRecord(m.store.DB().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", m.entityType, err)
	}
	return rec, nil
}

// Update replaces the content and foreign keys of an existing record.
// Returns the updated record, or nil if the id does not exist.
func (m *Model) Update(ctx context.Context, id string, content Content, fks ForeignKeys) (*Record, error) {
	if content == nil {
		return nil, missingField(ErrCodeMissingContent, "content", "content is required")
	}
	fkVals, err := orderedFKValues(m.fkCols, fks)
	if err != nil {
		return nil, err
	}
	raw, err := marshalContent(content)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(m.fkCols)+1)
	args := make([]any, 0, len(m.fkCols)+2)
	for i, fk := range m.fkCols {
		sets = append(sets, fk+" = ?")
		args = append(args, fkVals[i])
	}
	sets = append(sets, "content = ?")
	args = append(args, raw, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", m.table, strings.Join(sets, ", "))
	res, err := m.store.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", m.entityType, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s: rows affected: %w", m.entityType, err)
	}
	if affected == 0 {
		return nil, nil
	}
	return m.Get(ctx, id)
}

// Delete removes the record with the given id. Returns rows affected;
// 0 when the id is absent, which is not an error.
func (m *Model) Delete(ctx context.Context, id string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", m.table)
	res, err := m.store.DB().ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", m.entityType, err)
	}
	return res.RowsAffected()
}

// GetAll returns records ordered by id, paginated. limit <= 0 means
// no limit.
func (m *Model) GetAll(ctx context.Context, limit, offset int) ([]*Record, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT ? OFFSET ?", m.selectCols, m.table)
	rows, err := m.store.DB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", m.entityType, err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := m.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("get all %s: %w", m.entityType, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get all %s: %w", m.entityType, err)
	}

	if records == nil {
		records = []*Record{}
	}
	return records, nil
}

// Count returns the number of records for this entity type.
func (m *Model) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", m.table)
	if err := m.store.DB().QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", m.entityType, err)
	}
	return count, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (m *Model) scanRecord(sc scanner) (*Record, error) {
	var (
		id, typ, created, raw string
		fkVals                = make([]any, len(m.fkCols))
	)
	dest := []any{&id, &typ, &created}
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

	fks := make(ForeignKeys, len(m.fkCols))
	for i, col := range m.fkCols {
		fks[col] = normalizeValue(fkVals[i])
	}

	return &Record{
		ID:          id,
		Type:        typ,
		CreatedAt:   createdAt,
		ForeignKeys: fks,
		Content:     content,
	}, nil
}
