// Package database manages the connection to the analytics database and
// materializes query results into frames.
//
// DataBase is safe for concurrent use to the extent the underlying driver
// is; it adds no locking of its own.
package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"
	"github.com/paveg/idaframe/internal/config"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/frame"
	"github.com/paveg/idaframe/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DataBase is a session on an analytics database.
type DataBase struct {
	db      *sqlx.DB
	cfg     config.Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	mem     memory.Allocator
}

// Open connects using cfg. Metrics are registered on reg when
// cfg.MetricsCollection is set.
func Open(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*DataBase, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting with driver %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	var metrics *monitoring.Metrics
	if cfg.MetricsCollection {
		metrics = monitoring.NewMetrics(reg)
	}
	return New(db, cfg, logger, metrics), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB, cfg config.Config, logger *zap.Logger, metrics *monitoring.Metrics) *DataBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataBase{
		db:      db,
		cfg:     cfg.WithDefaults(),
		logger:  logger.With(zap.String("driver", cfg.Driver)),
		metrics: metrics,
		mem:     memory.NewGoAllocator(),
	}
}

// Config returns the session configuration.
func (d *DataBase) Config() config.Config {
	return d.cfg
}

// Logger returns the session logger.
func (d *DataBase) Logger() *zap.Logger {
	return d.logger
}

// Metrics returns the session metrics, nil when collection is disabled.
func (d *DataBase) Metrics() *monitoring.Metrics {
	return d.metrics
}

// Allocator returns the allocator used for materialized frames.
func (d *DataBase) Allocator() memory.Allocator {
	return d.mem
}

// DB returns the underlying connection pool.
func (d *DataBase) DB() *sqlx.DB {
	return d.db
}

// Builder returns a squirrel statement builder using the driver's
// placeholder style. nzgo and sqlite3 take "?" markers.
func (d *DataBase) Builder() sq.StatementBuilderType {
	switch d.cfg.Driver {
	case "postgres", "pgx":
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return sq.StatementBuilder.PlaceholderFormat(sq.Question)
	}
}

// Close closes the connection pool.
func (d *DataBase) Close() error {
	return d.db.Close()
}

// QualifiedName prefixes name with the configured schema unless it is already qualified.
func (d *DataBase) QualifiedName(name string) string {
	if d.cfg.Schema == "" || strings.Contains(name, ".") {
		return name
	}
	return d.cfg.Schema + "." + name
}

// Query runs a statement returning rows and materializes them.
func (d *DataBase) Query(ctx context.Context, query string, args ...any) (*frame.Frame, error) {
	var f *frame.Frame
	start := time.Now()
	err := d.metrics.Record("query", func() error {
		rows, err := d.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		f, err = frame.FromRows(rows.Rows, d.mem)
		return err
	})

	rowCount := -1
	if f != nil {
		rowCount = f.Len()
	}
	d.logStatement("query", query, start, rowCount, err)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Exec runs a statement without a result set and returns the affected row
// count, or -1 when the driver does not report one.
func (d *DataBase) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	affected := int64(-1)
	start := time.Now()
	err := d.metrics.Record("exec", func() error {
		res, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, rerr := res.RowsAffected(); rerr == nil {
			affected = n
		}
		return nil
	})
	d.logStatement("exec", query, start, int(affected), err)
	return affected, err
}

// Get scans a single row into dest.
func (d *DataBase) Get(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := d.metrics.Record("get", func() error {
		return d.db.GetContext(ctx, dest, query, args...)
	})
	d.logStatement("get", query, start, 1, err)
	return err
}

// Scalar returns the first column of the first row.
func (d *DataBase) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	var v any
	if err := d.Get(ctx, &v, query, args...); err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// TableExists probes the table with an empty SELECT. Any probe failure
// counts as the table not existing.
func (d *DataBase) TableExists(ctx context.Context, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, errors.NewInvalidInputError("TableExists", "table name must not be empty")
	}

	query := "SELECT 1 FROM " + d.QualifiedName(name) + " WHERE 1=0"
	start := time.Now()
	err := d.metrics.Record("probe", func() error {
		rows, err := d.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		return rows.Close()
	})
	d.logStatement("probe", query, start, 0, err)
	return err == nil, nil
}

// Columns returns the column names of a table or view.
func (d *DataBase) Columns(ctx context.Context, name string) ([]string, error) {
	var columns []string
	query := "SELECT * FROM " + d.QualifiedName(name) + " WHERE 1=0"
	start := time.Now()
	err := d.metrics.Record("columns", func() error {
		rows, err := d.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		columns, err = rows.Columns()
		return err
	})
	d.logStatement("columns", query, start, 0, err)
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// DropTable drops the named table.
func (d *DataBase) DropTable(ctx context.Context, name string) error {
	_, err := d.Exec(ctx, "DROP TABLE "+d.QualifiedName(name))
	return err
}

// Fingerprint returns a stable short identifier for a statement, used to
// correlate log lines without logging the statement text.
func Fingerprint(query string) string {
	return strconv.FormatUint(xxhash.Sum64String(query), 16)
}

func (d *DataBase) logStatement(op, query string, start time.Time, rows int, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("fingerprint", Fingerprint(query)),
		zap.Duration("duration", time.Since(start)),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int("rows", rows))
	}
	if d.cfg.VerboseLogging {
		fields = append(fields, zap.String("sql", query))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		d.logger.Debug("Statement failed", fields...)
		return
	}
	d.logger.Debug("Statement executed", fields...)
}
