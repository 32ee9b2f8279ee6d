package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCSV(t *testing.T) {
	t.Parallel()

	input := "name,company,score\nAda,Initech,90\nGrace,,85\n"

	ds, err := FromCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "company", "score"}, ds.Columns())
	assert.Equal(t, 2, ds.Len())

	// Empty cells parse as nil, not empty string.
	cell, ok := ds.Cell(1, "company")
	require.True(t, ok)
	assert.Nil(t, cell)

	cell, ok = ds.Cell(0, "name")
	require.True(t, ok)
	assert.Equal(t, "Ada", cell)
}

func TestFromCSV_NoHeader(t *testing.T) {
	t.Parallel()

	_, err := FromCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestToCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	ds := New(
		[]string{"name", "email"},
		[][]any{
			{"Ada", "ada@initech.test"},
			{"Grace", nil},
		},
	)

	var buf bytes.Buffer
	require.NoError(t, ds.ToCSV(&buf))

	reparsed, err := FromCSV(&buf)
	require.NoError(t, err)

	assert.Equal(t, ds.Columns(), reparsed.Columns())
	assert.Equal(t, ds.Len(), reparsed.Len())

	// Nil survives the trip as nil via the empty-field convention.
	cell, ok := reparsed.Cell(1, "email")
	require.True(t, ok)
	assert.Nil(t, cell)
}

func TestNew_PadsShortRows(t *testing.T) {
	t.Parallel()

	ds := New([]string{"a", "b"}, [][]any{{"only-a"}})

	cell, ok := ds.Cell(0, "b")
	require.True(t, ok)
	assert.Nil(t, cell)
}

func TestFilterRows(t *testing.T) {
	t.Parallel()

	ds := New([]string{"n"}, [][]any{{"one"}, {"two"}, {"three"}})

	filtered := ds.FilterRows([]bool{true, false, true})

	require.Equal(t, 2, filtered.Len())
	assert.Equal(t, map[string]any{"n": "one"}, filtered.Row(0))
	assert.Equal(t, map[string]any{"n": "three"}, filtered.Row(1))

	// Source dataset is untouched.
	assert.Equal(t, 3, ds.Len())
}

func TestWithColumn_Appends(t *testing.T) {
	t.Parallel()

	ds := New([]string{"name"}, [][]any{{"Ada"}, {"Grace"}})

	updated, err := ds.WithColumn("found_email", []any{"a@x.test", nil})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "found_email"}, updated.Columns())

	cell, ok := updated.Cell(1, "found_email")
	require.True(t, ok)
	assert.Nil(t, cell)

	// Original is not widened.
	assert.Equal(t, []string{"name"}, ds.Columns())
}

func TestWithColumn_ReplacesExisting(t *testing.T) {
	t.Parallel()

	ds := New([]string{"name", "score"}, [][]any{{"Ada", "1"}})

	updated, err := ds.WithColumn("score", []any{"2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "score"}, updated.Columns())

	cell, _ := updated.Cell(0, "score")
	assert.Equal(t, "2", cell)
}

func TestWithColumn_LengthMismatch(t *testing.T) {
	t.Parallel()

	ds := New([]string{"name"}, [][]any{{"Ada"}})

	_, err := ds.WithColumn("x", []any{"a", "b"})
	require.ErrorIs(t, err, ErrColumnLengthMismatch)
}

func TestPreviewRows(t *testing.T) {
	t.Parallel()

	ds := New([]string{"n"}, [][]any{{"1"}, {"2"}, {"3"}})

	preview := ds.PreviewRows(5)
	assert.Len(t, preview, 3)

	preview = ds.PreviewRows(2)
	assert.Len(t, preview, 2)
	assert.Equal(t, map[string]any{"n": "1"}, preview[0])
}

func TestCellString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "hello", CellString("hello"))
	assert.Equal(t, "90", CellString(float64(90)))
	assert.Equal(t, "90.5", CellString(90.5))
	assert.Equal(t, "true", CellString(true))
}

func TestCellFloat(t *testing.T) {
	t.Parallel()

	f, ok := CellFloat("90.5")
	require.True(t, ok)
	assert.InDelta(t, 90.5, f, 0.0001)

	f, ok = CellFloat(float64(3))
	require.True(t, ok)
	assert.InDelta(t, 3.0, f, 0.0001)

	_, ok = CellFloat("not a number")
	assert.False(t, ok)

	_, ok = CellFloat(nil)
	assert.False(t, ok)
}
