package frame_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/idaframe/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromColumns_TypeInference(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	f, err := frame.FromColumns(
		[]string{"id", "score", "flag", "name", "mixed", "nulls"},
		[][]any{
			{int64(1), int64(2), nil},
			{1.5, nil, 2.5},
			{true, false, nil},
			{"a", "b", nil},
			{int64(1), 2.5, nil},
			{nil, nil, nil},
		},
		mem,
	)
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 6, f.Width())

	types := map[string]arrow.DataType{}
	for _, field := range f.Record().Schema().Fields() {
		types[field.Name] = field.Type
	}
	assert.Equal(t, arrow.PrimitiveTypes.Int64, types["id"])
	assert.Equal(t, arrow.PrimitiveTypes.Float64, types["score"])
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, types["flag"])
	assert.Equal(t, arrow.BinaryTypes.String, types["name"])
	assert.Equal(t, arrow.PrimitiveTypes.Float64, types["mixed"])
	assert.Equal(t, arrow.BinaryTypes.String, types["nulls"])

	assert.Equal(t, int64(2), f.Value("id", 1))
	assert.Nil(t, f.Value("id", 2))
	assert.Equal(t, 1.0, f.Value("mixed", 0))
	assert.Equal(t, "b", f.Value("name", 1))
	assert.Nil(t, f.Value("missing", 0))
	assert.Nil(t, f.Value("id", 99))
}

func TestFromColumns_LengthMismatch(t *testing.T) {
	_, err := frame.FromColumns([]string{"a", "b"}, [][]any{{int64(1)}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 columns but 1 value slices")
}

func TestFromRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"ID", "LABEL", "WHEN"}).
			AddRow(int64(1), []byte("setosa"), ts).
			AddRow(int64(2), nil, ts),
	)

	rows, err := db.Query("SELECT * FROM IRIS")
	require.NoError(t, err)
	defer rows.Close()

	f, err := frame.FromRows(rows, memory.NewGoAllocator())
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, []string{"ID", "LABEL", "WHEN"}, f.Columns())
	assert.Equal(t, []any{int64(1), "setosa", "2024-03-01T12:00:00Z"}, f.Row(0))
	assert.Equal(t, []any{int64(2), nil, "2024-03-01T12:00:00Z"}, f.Row(1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFromRows_DeclaredNumericText(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// nzgo hands FLOAT8 and NUMERIC values over as text
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("ID").OfType("INT4", int32(0)),
			sqlmock.NewColumn("SEPAL_LENGTH").OfType("FLOAT8", ""),
			sqlmock.NewColumn("PRICE").OfType("NUMERIC(10,2)", ""),
			sqlmock.NewColumn("COUNT").OfType("INT8", ""),
			sqlmock.NewColumn("SPECIES").OfType("VARCHAR", ""),
			sqlmock.NewColumn("EMPTY").OfType("FLOAT8", ""),
		).
			AddRow(int64(1), "5.1", "12.50", "7", "setosa", nil).
			AddRow(int64(2), "4.9", "3", "8", "virginica", nil),
	)

	rows, err := db.Query("SELECT * FROM IRIS")
	require.NoError(t, err)
	defer rows.Close()

	f, err := frame.FromRows(rows, nil)
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, []any{int64(1), 5.1, 12.5, int64(7), "setosa", nil}, f.Row(0))
	assert.Equal(t, []any{int64(2), 4.9, 3.0, int64(8), "virginica", nil}, f.Row(1))

	types := make([]arrow.Type, 0, f.Width())
	for _, field := range f.Record().Schema().Fields() {
		types = append(types, field.Type.ID())
	}
	assert.Equal(t, []arrow.Type{arrow.INT64, arrow.FLOAT64, arrow.FLOAT64, arrow.INT64, arrow.STRING, arrow.FLOAT64}, types)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFromColumns_NormalizesGoInts(t *testing.T) {
	f, err := frame.FromColumns([]string{"n"}, [][]any{{1, int32(2), nil}}, nil)
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, arrow.INT64, f.Record().Schema().Field(0).Type.ID())
	assert.Equal(t, int64(2), f.Value("n", 1))
}

func TestRow_DuplicateColumnNames(t *testing.T) {
	f, err := frame.FromColumns(
		[]string{"COUNT", "SUM", "COUNT", "SUM"},
		[][]any{{int64(4)}, {int64(118)}, {int64(3)}, {2.5}},
		nil,
	)
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, []any{int64(4), int64(118), int64(3), 2.5}, f.Row(0))
	assert.Nil(t, f.Row(1)[0])
}

func TestEmpty(t *testing.T) {
	f := frame.Empty([]string{"A", "B"}, nil)
	defer f.Release()

	assert.Equal(t, 0, f.Len())
	assert.Equal(t, []string{"A", "B"}, f.Columns())
	assert.True(t, f.HasColumn("A"))
	assert.False(t, f.HasColumn("C"))
}

func TestString(t *testing.T) {
	f, err := frame.FromColumns([]string{"A"}, [][]any{{int64(7)}}, nil)
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, "Frame[1x1]\n  A: int64", f.String())

	empty := frame.Empty(nil, nil)
	defer empty.Release()
	assert.Equal(t, "Frame[empty]", empty.String())
}

func TestFormat(t *testing.T) {
	f, err := frame.FromColumns(
		[]string{"NAME", "AGE"},
		[][]any{{"Alice", "Bob", "Carol"}, {int64(25), nil, int64(35)}},
		nil,
	)
	require.NoError(t, err)
	defer f.Release()

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, 2))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "NULL")
	assert.NotContains(t, out, "Carol")
	assert.Contains(t, out, "... 1 more rows")
}
