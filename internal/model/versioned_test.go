package model

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func newVersioned(t *testing.T, fks []string, opts ...Option) *VersionedModel {
	t.Helper()

	s, _ := newTestStore(t)
	vm, err := NewVersioned(context.Background(), s, "Config", fks, opts...)
	require.NoError(t, err)
	return vm
}

func rowCount(t *testing.T, vm *VersionedModel) int {
	t.Helper()

	var count int
	err := vm.store.DB().QueryRow("SELECT COUNT(*) FROM " + vm.table).Scan(&count)
	require.NoError(t, err)
	return count
}

func TestNewVersioned_RejectsUnsafeNames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := NewVersioned(ctx, s, "Config; DROP TABLE x", nil)
	assert.Error(t, err)

	_, err = NewVersioned(ctx, s, "Config", []string{"owner; --"})
	assert.Error(t, err)

	_, err = NewVersioned(ctx, s, "Config", []string{"version"})
	assert.Error(t, err, "reserved column must be rejected")

	_, err = NewVersioned(ctx, s, "Config", []string{"owner", "owner"})
	assert.Error(t, err, "duplicate declaration must be rejected")
}

func TestNewVersioned_SchemaIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := NewVersioned(ctx, s, "Config", []string{"owner"})
		require.NoError(t, err, "iteration %d", i)
	}
}

func TestInsert_AssignsDenseVersions(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		doc, err := vm.Insert(ctx, "app", Content{"rev": float64(i)}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(i), doc.Version)
		assert.Equal(t, fmt.Sprintf("Config:app:%d", i), doc.ID)
		assert.Equal(t, "Config", doc.Type)
		assert.Equal(t, "app", doc.Name)
	}
}

func TestInsert_IndependentNamesIndependentCounters(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	a1, err := vm.Insert(ctx, "a", Content{"v": "1"}, nil)
	require.NoError(t, err)
	b1, err := vm.Insert(ctx, "b", Content{"v": "1"}, nil)
	require.NoError(t, err)
	a2, err := vm.Insert(ctx, "a", Content{"v": "2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), a1.Version)
	assert.Equal(t, int64(1), b1.Version)
	assert.Equal(t, int64(2), a2.Version)
}

func TestInsert_ReturnsSuppliedContent(t *testing.T) {
	vm := newVersioned(t, []string{"owner"})
	ctx := context.Background()

	content := Content{"title": "hello", "tags": []any{"a", "b"}}
	doc, err := vm.Insert(ctx, "app", content, ForeignKeys{"owner": "u-1"})
	require.NoError(t, err)

	assert.Equal(t, content, doc.Content)
	assert.Equal(t, ForeignKeys{"owner": "u-1"}, doc.ForeignKeys)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestInsert_Validation(t *testing.T) {
	vm := newVersioned(t, []string{"owner"})
	ctx := context.Background()

	_, err := vm.Insert(ctx, "", Content{"k": "v"}, ForeignKeys{"owner": "u-1"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = vm.Insert(ctx, "app", nil, ForeignKeys{"owner": "u-1"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	assert.Equal(t, 0, rowCount(t, vm), "validation failures must not write rows")
}

func TestInsert_MissingForeignKey(t *testing.T) {
	vm := newVersioned(t, []string{"owner", "project"})
	ctx := context.Background()

	_, err := vm.Insert(ctx, "app", Content{"k": "v"}, ForeignKeys{"owner": "u-1"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeMissingForeignKey, ve.Code)
	assert.Equal(t, "project", ve.Field)

	assert.Equal(t, 0, rowCount(t, vm), "no row may be written before validation")
}

func TestInsert_UndeclaredForeignKey(t *testing.T) {
	vm := newVersioned(t, []string{"owner"})
	ctx := context.Background()

	_, err := vm.Insert(ctx, "app", Content{"k": "v"}, ForeignKeys{"owner": "u-1", "rogue": "x"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeUnknownForeignKey, ve.Code)
}

func TestInsertRecord_AlwaysFails(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	cases := []struct {
		id      string
		content Content
		fks     ForeignKeys
	}{
		{"", nil, nil},
		{"some-id", Content{"k": "v"}, nil},
		{"other", Content{}, ForeignKeys{}},
	}
	for _, tc := range cases {
		_, err := vm.InsertRecord(ctx, tc.id, tc.content, tc.fks)
		require.Error(t, err)
		assert.True(t, IsMisuse(err))
		assert.Contains(t, err.Error(), "document name")
	}

	assert.Equal(t, 0, rowCount(t, vm))
}

func TestGet_ReturnsLatest(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := vm.Insert(ctx, "app", Content{"rev": float64(i)}, nil)
		require.NoError(t, err)
	}

	doc, err := vm.Get(ctx, "app")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, int64(3), doc.Version)
	assert.Equal(t, Content{"rev": float64(3)}, doc.Content)
}

func TestGet_NotFound(t *testing.T) {
	vm := newVersioned(t, nil)

	doc, err := vm.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestGetVersion_RoundTripsContent(t *testing.T) {
	vm := newVersioned(t, []string{"owner"})
	ctx := context.Background()

	want := make([]Content, 0, 4)
	for i := 1; i <= 3; i++ {
		content := Content{
			"rev":    float64(i),
			"nested": map[string]any{"flag": i%2 == 0, "note": "v" + fmt.Sprint(i)},
			"items":  []any{"x", float64(i)},
		}
		want = append(want, content)
		_, err := vm.Insert(ctx, "app", content, ForeignKeys{"owner": "u-1"})
		require.NoError(t, err)
	}

	for i := 1; i <= 3; i++ {
		doc, err := vm.GetVersion(ctx, "app", int64(i))
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, int64(i), doc.Version)
		assert.Equal(t, want[i-1], doc.Content, "content for version %d must round-trip structurally", i)
		assert.Equal(t, ForeignKeys{"owner": "u-1"}, doc.ForeignKeys)
	}
}

func TestGetVersion_NotFound(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	_, err := vm.Insert(ctx, "app", Content{"k": "v"}, nil)
	require.NoError(t, err)

	doc, err := vm.GetVersion(ctx, "app", 99)
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = vm.GetVersion(ctx, "missing", 1)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestGetVersions_NewestFirstPaginated(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := vm.Insert(ctx, "app", Content{"rev": float64(i)}, nil)
		require.NoError(t, err)
	}

	docs, err := vm.GetVersions(ctx, "app", 2, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(5), docs[0].Version)
	assert.Equal(t, int64(4), docs[1].Version)

	// Pagination is stateless and restartable.
	docs, err = vm.GetVersions(ctx, "app", 2, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(3), docs[0].Version)
	assert.Equal(t, int64(2), docs[1].Version)

	docs, err = vm.GetVersions(ctx, "app", 2, 4)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].Version)

	all, err := vm.GetVersions(ctx, "app", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	empty, err := vm.GetVersions(ctx, "missing", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCount_DistinctNames(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := vm.Insert(ctx, "a", Content{"k": "v"}, nil)
		require.NoError(t, err)
	}
	_, err := vm.Insert(ctx, "b", Content{"k": "v"}, nil)
	require.NoError(t, err)

	count, err := vm.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "count is distinct names, not rows")
}

func TestGetAll_DistinctNamesPaginated(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		for i := 0; i < 2; i++ {
			_, err := vm.Insert(ctx, name, Content{"k": "v"}, nil)
			require.NoError(t, err)
		}
	}

	names, err := vm.GetAll(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)

	page, err := vm.GetAll(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "charlie"}, page)
}

func TestDeleteVersion(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := vm.Insert(ctx, "app", Content{"rev": float64(i)}, nil)
		require.NoError(t, err)
	}

	affected, err := vm.DeleteVersion(ctx, "app", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	doc, err := vm.GetVersion(ctx, "app", 2)
	require.NoError(t, err)
	assert.Nil(t, doc)

	// Absent rows are a no-op, not an error.
	affected, err = vm.DeleteVersion(ctx, "app", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestDelete_PopsLatestOnly(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := vm.Insert(ctx, "app", Content{"rev": float64(i)}, nil)
		require.NoError(t, err)
	}

	deleted, err := vm.Delete(ctx, "app")
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, int64(5), deleted.Version)
	assert.Equal(t, Content{"rev": float64(5)}, deleted.Content)

	doc, err := vm.Get(ctx, "app")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, int64(4), doc.Version)

	for i := 1; i <= 4; i++ {
		doc, err := vm.GetVersion(ctx, "app", int64(i))
		require.NoError(t, err)
		assert.NotNil(t, doc, "version %d must survive", i)
	}
}

func TestDelete_NotFound(t *testing.T) {
	vm := newVersioned(t, nil)

	doc, err := vm.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDeleteAllVersions(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := vm.Insert(ctx, "app", Content{"rev": float64(i)}, nil)
		require.NoError(t, err)
	}
	_, err := vm.Insert(ctx, "other", Content{"k": "v"}, nil)
	require.NoError(t, err)

	affected, err := vm.DeleteAllVersions(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	doc, err := vm.Get(ctx, "app")
	require.NoError(t, err)
	assert.Nil(t, doc)

	// Other documents are untouched.
	doc, err = vm.Get(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, doc)

	affected, err = vm.DeleteAllVersions(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestInsert_ConcurrentWritersStayDense(t *testing.T) {
	vm := newVersioned(t, nil)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := vm.Insert(ctx, "app", Content{"k": "v"}, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	docs, err := vm.GetVersions(ctx, "app", 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, n)

	seen := make(map[int64]bool, n)
	for _, doc := range docs {
		seen[doc.Version] = true
	}
	for v := int64(1); v <= n; v++ {
		assert.True(t, seen[v], "version %d missing: sequence must be dense", v)
	}
}

func TestInsert_RetriesOnForcedConflict(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	vm, err := NewVersioned(ctx, s, "Config", nil)
	require.NoError(t, err)

	// A second connection to the same file plays the racing writer.
	rival, err := store.Open(path)
	require.NoError(t, err)
	defer rival.Close()
	rivalModel, err := NewVersioned(ctx, rival, "Config", nil)
	require.NoError(t, err)

	var attempts int
	vm.beforeInsert = func(name string, version int64) {
		attempts++
		if attempts > 1 {
			return
		}
		// Claim the computed version from the rival connection before
		// the first attempt's insert lands.
		_, err := rivalModel.Insert(ctx, name, Content{"src": "rival"}, nil)
		require.NoError(t, err)
	}

	doc, err := vm.Insert(ctx, "app", Content{"src": "ours"}, nil)
	require.NoError(t, err, "insert must succeed on retry")
	assert.Equal(t, 2, attempts, "exactly one retry expected")
	assert.Equal(t, int64(2), doc.Version, "retry must re-read the current max version")

	// Density invariant holds across both writers.
	docs, err := vm.GetVersions(ctx, "app", 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(2), docs[0].Version)
	assert.Equal(t, int64(1), docs[1].Version)
}

func TestInsert_RetriesExhaustedSurfacesStorageError(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	vm, err := NewVersioned(ctx, s, "Config", nil, WithMaxRetries(1))
	require.NoError(t, err)

	rival, err := store.Open(path)
	require.NoError(t, err)
	defer rival.Close()
	rivalModel, err := NewVersioned(ctx, rival, "Config", nil)
	require.NoError(t, err)

	// Sabotage every attempt.
	vm.beforeInsert = func(name string, version int64) {
		_, err := rivalModel.Insert(ctx, name, Content{"src": "rival"}, nil)
		require.NoError(t, err)
	}

	_, err = vm.Insert(ctx, "app", Content{"src": "ours"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")

	var se sqlite3.Error
	assert.True(t, errors.As(err, &se), "underlying storage error must be surfaced, got %v", err)
}

func TestInsert_CreatedAtFromClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	vm := newVersioned(t, nil, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	doc, err := vm.Insert(ctx, "app", Content{"k": "v"}, nil)
	require.NoError(t, err)
	assert.Equal(t, fixed, doc.CreatedAt)

	got, err := vm.Get(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, fixed, got.CreatedAt, "createdAt must survive the round trip")
}
