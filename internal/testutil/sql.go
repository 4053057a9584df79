package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/paveg/idaframe/internal/config"
	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/monitoring"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	// defaultRowCount is the default number of rows in the employees table.
	defaultRowCount = 4
)

// TestTableOption configures the seeded employees table.
type TestTableOption func(*testTableConfig)

type testTableConfig struct {
	includeNulls bool
	rowCount     int
	schema       string
	metrics      *monitoring.Metrics
}

// WithNulls stores NULL in every third salary.
func WithNulls() TestTableOption {
	return func(cfg *testTableConfig) {
		cfg.includeNulls = true
	}
}

// WithRowCount sets the number of employee rows.
func WithRowCount(count int) TestTableOption {
	return func(cfg *testTableConfig) {
		cfg.rowCount = count
	}
}

// WithSchema sets the session schema. SQLite accepts "main" as a schema qualifier.
func WithSchema(schema string) TestTableOption {
	return func(cfg *testTableConfig) {
		cfg.schema = schema
	}
}

// WithMetrics attaches metrics to the session.
func WithMetrics(m *monitoring.Metrics) TestTableOption {
	return func(cfg *testTableConfig) {
		cfg.metrics = m
	}
}

// SetupSQLiteTest opens an in-memory SQLite session seeded with an
// "employees" table and closes it when the test ends.
//
// The table has columns:
// - name (TEXT): Alice, Bob, Charlie, David, ...
// - age (INTEGER): 25, 30, 35, 28, ...
// - department (TEXT): Engineering, Sales, Engineering, Marketing, ...
// - salary (REAL): 100000, 80000, 120000, 75000, ...
//
// Example usage:
//
//	db := testutil.SetupSQLiteTest(t)
//	df, err := idadf.New(ctx, db, "employees")
func SetupSQLiteTest(tb testing.TB, opts ...TestTableOption) *database.DataBase {
	tb.Helper()

	cfg := &testTableConfig{rowCount: defaultRowCount}
	for _, opt := range opts {
		opt(cfg)
	}

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(tb, err)
	// every connection to :memory: is a separate database
	conn.SetMaxOpenConns(1)

	dbCfg := config.NewConfig()
	dbCfg.Driver = "sqlite3"
	dbCfg.DSN = ":memory:"
	dbCfg.Schema = cfg.schema
	dbCfg.VerboseLogging = true

	db := database.New(conn, dbCfg, zaptest.NewLogger(tb), cfg.metrics)
	tb.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.Exec(ctx, `CREATE TABLE employees (name TEXT, age INTEGER, department TEXT, salary REAL)`)
	require.NoError(tb, err)

	for i := range cfg.rowCount {
		var salary any = baseSalaries[i%len(baseSalaries)]
		if cfg.includeNulls && i%3 == 2 {
			salary = nil
		}
		_, err = db.Exec(ctx, `INSERT INTO employees (name, age, department, salary) VALUES (?, ?, ?, ?)`,
			employeeName(i), baseAges[i%len(baseAges)], baseDepts[i%len(baseDepts)], salary)
		require.NoError(tb, err)
	}

	return db
}

var (
	baseNames    = []string{"Alice", "Bob", "Charlie", "David", "Eve", "Frank", "Grace", "Henry"}
	baseAges     = []int64{25, 30, 35, 28, 32, 45, 29, 38}
	baseDepts    = []string{"Engineering", "Sales", "Engineering", "Marketing", "HR", "Finance", "Engineering", "Sales"}
	baseSalaries = []float64{100000, 80000, 120000, 75000, 90000, 110000, 95000, 85000}
)

func employeeName(i int) string {
	if i < len(baseNames) {
		return baseNames[i]
	}
	return fmt.Sprintf("%s_%d", baseNames[i%len(baseNames)], i/len(baseNames))
}
