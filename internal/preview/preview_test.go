package preview

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cellcount/cellcount/internal/loader"
	"github.com/cellcount/cellcount/internal/schema"
	"github.com/cellcount/cellcount/internal/source"
	"github.com/cellcount/cellcount/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T, samples int) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "cell_counts.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.Initialize(ctx, db))

	records := make([]source.Record, 0, samples)
	for i := 0; i < samples; i++ {
		records = append(records, source.Record{
			Project: "prj1", Subject: fmt.Sprintf("sbj%d", i%3), Condition: "melanoma", Age: "61", Sex: "F",
			Treatment: "miraclib", Response: "", Sample: fmt.Sprintf("s%02d", i), SampleType: "PBMC",
			TimeFromTreatmentStart: "0",
			BCell: "1", CD8TCell: "2", CD4TCell: "3", NKCell: "4", Monocyte: "5",
		})
	}
	_, err = loader.New(db).Load(ctx, source.NewSliceSource(records...))
	require.NoError(t, err)
	return db
}

func TestCollect(t *testing.T) {
	db := seeded(t, 8)

	got, err := Collect(context.Background(), db, 5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, schema.TableProjects, got[0].Name)
	assert.Equal(t, int64(1), got[0].Count)
	assert.Len(t, got[0].Rows, 1)

	assert.Equal(t, schema.TableSubjects, got[1].Name)
	assert.Equal(t, int64(3), got[1].Count)
	assert.Contains(t, got[1].Columns, "response")

	assert.Equal(t, schema.TableCellCounts, got[2].Name)
	assert.Equal(t, int64(8), got[2].Count)
	require.Len(t, got[2].Rows, 5)
	assert.Equal(t, "s00", cell(got[2].Rows[0][0]))
	assert.Equal(t, "s04", cell(got[2].Rows[4][0]))
}

func TestWrite(t *testing.T) {
	db := seeded(t, 2)

	var buf bytes.Buffer
	rendered, err := Write(context.Background(), db, &buf, DefaultLimit)
	require.NoError(t, err)
	assert.Equal(t, 5, rendered)

	out := buf.String()
	assert.Contains(t, out, "projects: 1 rows")
	assert.Contains(t, out, "subjects: 2 rows")
	assert.Contains(t, out, "cell_counts: 2 rows")
	assert.Contains(t, out, "sample_id")
	assert.Contains(t, out, "s01")
	// Unknown responses are stored as NULL.
	assert.Contains(t, out, nullValue)
}

func TestWrite_CountsRenderedRows(t *testing.T) {
	db := seeded(t, 8)

	// 1 project, then 2 of 3 subjects and 2 of 8 samples.
	rendered, err := Write(context.Background(), db, &bytes.Buffer{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, rendered)
}

func TestWrite_ZeroLimit(t *testing.T) {
	db := seeded(t, 3)

	got, err := Collect(context.Background(), db, 0)
	require.NoError(t, err)
	for _, s := range got {
		assert.Empty(t, s.Rows, s.Name)
	}
}

func TestWrite_MissingSchema(t *testing.T) {
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "empty.db"), store.DefaultOptions())
	require.NoError(t, err)
	defer db.Close()

	_, err = Write(context.Background(), db, &bytes.Buffer{}, DefaultLimit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUERY:QUERY_FAILED")
}
