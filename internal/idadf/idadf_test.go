package idadf_test

import (
	"context"
	"math"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/paveg/idaframe/internal/ae"
	"github.com/paveg/idaframe/internal/config"
	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/idadf"
	"github.com/paveg/idaframe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNew(t *testing.T) {
	db := testutil.SetupSQLiteTest(t)
	ctx := context.Background()

	df, err := idadf.New(ctx, db, "employees")
	require.NoError(t, err)
	assert.Equal(t, "employees", df.Table())
	assert.Equal(t, []string{"name", "age", "department", "salary"}, df.Columns())

	_, err = idadf.New(ctx, db, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTableNotFound)

	_, err = idadf.New(ctx, db, " ")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestNew_QualifiesWithSchema(t *testing.T) {
	db := testutil.SetupSQLiteTest(t, testutil.WithSchema("main"))

	df, err := idadf.New(context.Background(), db, "employees")
	require.NoError(t, err)
	assert.Equal(t, "main.employees", df.Table())
}

func TestSelect(t *testing.T) {
	db := testutil.SetupSQLiteTest(t)
	df, err := idadf.New(context.Background(), db, "employees")
	require.NoError(t, err)

	narrowed, err := df.Select("salary", "name")
	require.NoError(t, err)
	assert.Equal(t, []string{"salary", "name"}, narrowed.Columns())
	assert.Len(t, df.Columns(), 4, "the original handle is unchanged")

	_, err = df.Select("name", "bonus")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "bonus")

	_, err = narrowed.Select("age")
	assert.ErrorIs(t, err, errors.ErrColumnNotFound)
}

func TestSQL(t *testing.T) {
	db := testutil.SetupSQLiteTest(t)
	df, err := idadf.New(context.Background(), db, "employees")
	require.NoError(t, err)

	df, err = df.Select("name", "age")
	require.NoError(t, err)
	df, err = df.Where("age > ?", 26).OrderBy("age", false)
	require.NoError(t, err)

	query, args, err := df.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "name", "age" FROM employees WHERE age > ? ORDER BY "age" DESC`, query)
	assert.Equal(t, []any{26}, args)

	assert.Contains(t, df.String(), "1. where(age > ?)")
	assert.Contains(t, df.String(), "2. order_by(age, asc=false)")
}

func TestTerminalOperations(t *testing.T) {
	db := testutil.SetupSQLiteTest(t)
	ctx := context.Background()
	df, err := idadf.New(ctx, db, "employees")
	require.NoError(t, err)

	n, err := df.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	rows, cols, err := df.Where("department = ?", "Engineering").Shape(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.Equal(t, 4, cols)

	sorted, err := df.OrderBy("age", true)
	require.NoError(t, err)
	head, err := sorted.Head(ctx, 2)
	require.NoError(t, err)
	defer head.Release()
	assert.Equal(t, 2, head.Len())
	assert.Equal(t, "Alice", head.Value("name", 0))
	assert.Equal(t, "David", head.Value("name", 1))

	_, err = df.Head(ctx, -1)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	all, err := df.Where("salary >= ?", 90000).Collect(ctx)
	require.NoError(t, err)
	defer all.Release()
	assert.Equal(t, 2, all.Len())
}

func TestDescribe(t *testing.T) {
	db := testutil.SetupSQLiteTest(t)
	ctx := context.Background()
	df, err := idadf.New(ctx, db, "employees")
	require.NoError(t, err)

	stats, err := df.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	age := stats[0]
	assert.Equal(t, "age", age.Column)
	assert.Equal(t, int64(4), age.Count)
	assert.InDelta(t, 29.5, age.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(53.0/3.0), age.Std, 1e-9)
	assert.InDelta(t, 25.0, age.Min, 1e-9)
	assert.InDelta(t, 35.0, age.Max, 1e-9)

	salary := stats[1]
	assert.Equal(t, "salary", salary.Column)
	assert.InDelta(t, 93750.0, salary.Mean, 1e-6)

	described, err := df.Describe(ctx)
	require.NoError(t, err)
	defer described.Release()
	assert.Equal(t, []string{"statistic", "age", "salary"}, described.Columns())
	assert.Equal(t, 5, described.Len())
	assert.Equal(t, "mean", described.Value("statistic", 1))
	assert.InDelta(t, 29.5, described.Value("age", 1), 1e-9)
}

func TestDescribe_WithNulls(t *testing.T) {
	db := testutil.SetupSQLiteTest(t, testutil.WithNulls(), testutil.WithRowCount(6))
	ctx := context.Background()
	df, err := idadf.New(ctx, db, "employees")
	require.NoError(t, err)

	stats, err := df.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, int64(6), stats[0].Count)
	assert.Equal(t, int64(4), stats[1].Count, "NULL salaries are not counted")
}

func TestDescribe_SingleRow(t *testing.T) {
	db := testutil.SetupSQLiteTest(t, testutil.WithRowCount(1))
	ctx := context.Background()
	df, err := idadf.New(ctx, db, "employees")
	require.NoError(t, err)

	stats, err := df.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.True(t, math.IsNaN(stats[0].Std))
	assert.InDelta(t, 25.0, stats[0].Mean, 1e-9)
}

func TestDescribe_NumericText(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := database.New(sqlx.NewDb(mockDB, "nzgo"), config.NewConfig(), zaptest.NewLogger(t), nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM IRIS WHERE 1=0")).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM IRIS WHERE 1=0")).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "SEPAL_LENGTH", "SPECIES"}))
	df, err := idadf.New(ctx, db, "IRIS")
	require.NoError(t, err)

	// FLOAT8 values arrive as text, the way nzgo delivers them
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "ID", "SEPAL_LENGTH", "SPECIES" FROM IRIS LIMIT 100`)).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("ID").OfType("INT4", int32(0)),
			sqlmock.NewColumn("SEPAL_LENGTH").OfType("FLOAT8", ""),
			sqlmock.NewColumn("SPECIES").OfType("VARCHAR", ""),
		).
			AddRow(int64(1), "5.1", "setosa").
			AddRow(int64(2), "4.9", "setosa"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT("ID"), SUM("ID"), SUM("ID"*"ID"), MIN("ID"), MAX("ID"), ` +
		`COUNT("SEPAL_LENGTH"), SUM("SEPAL_LENGTH"), SUM("SEPAL_LENGTH"*"SEPAL_LENGTH"), MIN("SEPAL_LENGTH"), MAX("SEPAL_LENGTH") ` +
		`FROM (SELECT "ID", "SEPAL_LENGTH", "SPECIES" FROM IRIS) AS t`)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT", "SUM", "SUM", "MIN", "MAX", "COUNT", "SUM", "SUM", "MIN", "MAX"}).
			AddRow(int64(2), int64(3), int64(5), int64(1), int64(2), int64(2), "10.0", "50.02", "4.9", "5.1"))

	stats, err := df.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "SEPAL_LENGTH", stats[1].Column)
	assert.Equal(t, int64(2), stats[1].Count)
	assert.InDelta(t, 5.0, stats[1].Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(0.02), stats[1].Std, 1e-9)
	assert.InDelta(t, 4.9, stats[1].Min, 1e-9)
	assert.InDelta(t, 5.1, stats[1].Max, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAs(t *testing.T) {
	db := testutil.SetupSQLiteTest(t)
	ctx := context.Background()
	df, err := idadf.New(ctx, db, "employees")
	require.NoError(t, err)

	engineers, err := df.Select("name", "salary")
	require.NoError(t, err)
	saved, err := engineers.Where("department = ?", "Engineering").SaveAs(ctx, "engineers")
	require.NoError(t, err)

	assert.Equal(t, "engineers", saved.Table())
	assert.Equal(t, []string{"name", "salary"}, saved.Columns())
	n, err := saved.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = df.SaveAs(ctx, "copy AS SELECT 1; DROP TABLE employees")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	exists, err := db.TableExists(ctx, "employees")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestApply(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	cfg := config.NewConfig()
	cfg.Schema = "ADMIN"
	db := database.New(sqlx.NewDb(mockDB, "nzgo"), cfg, zaptest.NewLogger(t), nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM ADMIN.IRIS WHERE 1=0")).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM ADMIN.IRIS WHERE 1=0")).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "SEPAL_LENGTH", "SPECIES"}))

	df, err := idadf.New(ctx, db, "IRIS")
	require.NoError(t, err)
	df, err = df.Select("ID", "SEPAL_LENGTH")
	require.NoError(t, err)
	df = df.Where(`"SEPAL_LENGTH" > ?`, 5.0)

	fn := ae.NewFunction("scale", "def scale(row):\n    return [row[0], row[1] * 10]\n")
	sig, err := ae.ParseSignature("ID=int", "SCALED=double")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM ADMIN.SCALED WHERE 1=0")).WillReturnError(assert.AnError)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE ADMIN.SCALED AS SELECT ae_output.* FROM (SELECT "ID", "SEPAL_LENGTH" FROM ADMIN.IRIS WHERE "SEPAL_LENGTH" > ?) AS input_t, TABLE WITH FINAL (py_udtf("ID","SEPAL_LENGTH",'CODE_TO_EXECUTE="`)).
		WithArgs(5.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM ADMIN.SCALED")).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "SCALED"}).AddRow(1, 51.0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM ADMIN.SCALED WHERE 1=0")).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM ADMIN.SCALED WHERE 1=0")).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "SCALED"}))

	res, err := df.Apply(ctx, fn, sig, "SCALED")
	require.NoError(t, err)
	defer res.Release()

	assert.True(t, res.Created)
	assert.Equal(t, "ADMIN.SCALED", res.OutputTable)
	require.NotNil(t, res.Output)
	assert.Equal(t, []string{"ID", "SCALED"}, res.Output.Columns())
	assert.Equal(t, 1, res.Frame.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatch_WithoutOutputTable(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := database.New(sqlx.NewDb(mockDB, "nzgo"), config.NewConfig(), zaptest.NewLogger(t), nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM IRIS WHERE 1=0")).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM IRIS WHERE 1=0")).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "SEPAL_LENGTH"}))
	df, err := idadf.New(ctx, db, "IRIS")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ae_output.* FROM (SELECT "ID", "SEPAL_LENGTH" FROM IRIS) AS input_t`)).
		WillReturnRows(sqlmock.NewRows([]string{"N", "AVG"}).AddRow(150, 5.84))

	fn := ae.NewFunction("summarize", "def summarize(df):\n    return [[len(df), df['SEPAL_LENGTH'].mean()]]\n")
	sig, err := ae.ParseSignature("N=int", "AVG=double")
	require.NoError(t, err)

	res, err := df.ApplyBatch(ctx, fn, sig, "")
	require.NoError(t, err)
	defer res.Release()

	assert.Nil(t, res.Output)
	assert.Empty(t, res.OutputTable)
	assert.Equal(t, []any{int64(150), 5.84}, res.Frame.Row(0))
	require.NoError(t, mock.ExpectationsWereMet())
}
