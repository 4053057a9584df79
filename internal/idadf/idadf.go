// Package idadf provides IdaDataFrame, a lazy handle on a database table.
//
// An IdaDataFrame never holds rows. Select, Where and OrderBy return new
// handles that carry a longer chain of deferred operations; the chain is
// compiled into a single SELECT only when a terminal operation such as
// Count, Head or Collect runs.
package idadf

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/paveg/idaframe/internal/ae"
	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/frame"
	"go.uber.org/zap"
)

// Operation is a deferred transformation of the compiled SELECT.
type Operation interface {
	apply(b sq.SelectBuilder) sq.SelectBuilder
	String() string
}

type filterOperation struct {
	predicate string
	args      []any
}

func (f *filterOperation) apply(b sq.SelectBuilder) sq.SelectBuilder {
	return b.Where(f.predicate, f.args...)
}

func (f *filterOperation) String() string {
	return fmt.Sprintf("where(%s)", f.predicate)
}

type sortOperation struct {
	column    string
	ascending bool
}

func (s *sortOperation) apply(b sq.SelectBuilder) sq.SelectBuilder {
	direction := "ASC"
	if !s.ascending {
		direction = "DESC"
	}
	return b.OrderBy(ae.QuoteIdentifier(s.column) + " " + direction)
}

func (s *sortOperation) String() string {
	return fmt.Sprintf("order_by(%s, asc=%t)", s.column, s.ascending)
}

// IdaDataFrame is an immutable, lazily evaluated view of a table.
type IdaDataFrame struct {
	db         *database.DataBase
	table      string
	columns    []string // current projection, in order
	operations []Operation
}

// New opens a handle on table. The table must exist.
func New(ctx context.Context, db *database.DataBase, table string) (*IdaDataFrame, error) {
	if strings.TrimSpace(table) == "" {
		return nil, errors.NewInvalidInputError("New", "table name must not be empty")
	}

	name := db.QualifiedName(table)
	exists, err := db.TableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewTableNotFoundError("New", name)
	}

	columns, err := db.Columns(ctx, name)
	if err != nil {
		return nil, errors.NewTableNotFoundError("New", name)
	}

	return &IdaDataFrame{db: db, table: name, columns: columns}, nil
}

func (df *IdaDataFrame) with(columns []string, op Operation) *IdaDataFrame {
	ops := make([]Operation, len(df.operations), len(df.operations)+1)
	copy(ops, df.operations)
	if op != nil {
		ops = append(ops, op)
	}
	return &IdaDataFrame{db: df.db, table: df.table, columns: columns, operations: ops}
}

func (df *IdaDataFrame) hasColumn(name string) bool {
	for _, c := range df.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Table returns the qualified name of the underlying table.
func (df *IdaDataFrame) Table() string {
	return df.table
}

// Pending reports whether filters or sort keys are waiting to be compiled.
func (df *IdaDataFrame) Pending() bool {
	return len(df.operations) > 0
}

// HasColumn reports whether name is in the projection.
func (df *IdaDataFrame) HasColumn(name string) bool {
	return df.hasColumn(name)
}

// Database returns the session the handle runs on.
func (df *IdaDataFrame) Database() *database.DataBase {
	return df.db
}

// Columns returns the names of the projected columns.
func (df *IdaDataFrame) Columns() []string {
	out := make([]string, len(df.columns))
	copy(out, df.columns)
	return out
}

// Select narrows the projection to columns, in the given order.
func (df *IdaDataFrame) Select(columns ...string) (*IdaDataFrame, error) {
	if len(columns) == 0 {
		return nil, errors.NewInvalidInputError("Select", "at least one column is required")
	}
	for _, c := range columns {
		if !df.hasColumn(c) {
			return nil, errors.NewColumnNotFoundError("Select", df.table, c)
		}
	}
	projected := make([]string, len(columns))
	copy(projected, columns)
	return df.with(projected, nil), nil
}

// Where adds a SQL predicate. Placeholders are written as "?" and bound to args.
func (df *IdaDataFrame) Where(predicate string, args ...any) *IdaDataFrame {
	return df.with(df.columns, &filterOperation{predicate: predicate, args: args})
}

// OrderBy adds a sort key.
func (df *IdaDataFrame) OrderBy(column string, ascending bool) (*IdaDataFrame, error) {
	if !df.hasColumn(column) {
		return nil, errors.NewColumnNotFoundError("OrderBy", df.table, column)
	}
	return df.with(df.columns, &sortOperation{column: column, ascending: ascending}), nil
}

func (df *IdaDataFrame) builder() sq.SelectBuilder {
	cols := make([]string, len(df.columns))
	for i, c := range df.columns {
		cols[i] = ae.QuoteIdentifier(c)
	}
	b := df.db.Builder().Select(cols...).From(df.table)
	for _, op := range df.operations {
		b = op.apply(b)
	}
	return b
}

// SQL returns the compiled SELECT and its bound arguments.
func (df *IdaDataFrame) SQL() (string, []any, error) {
	query, args, err := df.builder().ToSql()
	if err != nil {
		return "", nil, errors.NewInternalError("SQL", err)
	}
	return query, args, nil
}

// Count returns the number of rows in the view.
func (df *IdaDataFrame) Count(ctx context.Context) (int64, error) {
	query, args, err := df.db.Builder().Select("COUNT(*)").FromSelect(df.builder(), "t").ToSql()
	if err != nil {
		return 0, errors.NewInternalError("Count", err)
	}
	v, err := df.db.Scalar(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, ok := toFloat64(v)
	if !ok {
		return 0, errors.NewInternalError("Count", fmt.Errorf("unexpected count value %v (%T)", v, v))
	}
	return int64(n), nil
}

// Shape returns the row and column counts.
func (df *IdaDataFrame) Shape(ctx context.Context) (int64, int, error) {
	rows, err := df.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return rows, len(df.columns), nil
}

// Head materializes the first n rows.
func (df *IdaDataFrame) Head(ctx context.Context, n int) (*frame.Frame, error) {
	if n < 0 {
		return nil, errors.NewInvalidInputError("Head", fmt.Sprintf("row count must be non-negative, got %d", n))
	}
	query, args, err := df.builder().Limit(uint64(n)).ToSql()
	if err != nil {
		return nil, errors.NewInternalError("Head", err)
	}
	return df.db.Query(ctx, query, args...)
}

// Collect materializes every row of the view.
func (df *IdaDataFrame) Collect(ctx context.Context) (*frame.Frame, error) {
	query, args, err := df.SQL()
	if err != nil {
		return nil, err
	}
	return df.db.Query(ctx, query, args...)
}

// SaveAs stores the view in a new table and returns a handle on it.
func (df *IdaDataFrame) SaveAs(ctx context.Context, table string) (*IdaDataFrame, error) {
	if strings.TrimSpace(table) == "" {
		return nil, errors.NewInvalidInputError("SaveAs", "table name must not be empty")
	}
	name := df.db.QualifiedName(table)
	if err := ae.ValidateTableName("SaveAs", name); err != nil {
		return nil, err
	}
	query, args, err := df.SQL()
	if err != nil {
		return nil, err
	}
	if _, err := df.db.Exec(ctx, "CREATE TABLE "+name+" AS "+query, args...); err != nil {
		return nil, err
	}
	return New(ctx, df.db, name)
}

// String returns a description of the handle and its pending operations.
func (df *IdaDataFrame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "IdaDataFrame[%s]\n", df.table)
	fmt.Fprintf(&b, "  columns: %s\n", strings.Join(df.columns, ", "))
	if len(df.operations) > 0 {
		b.WriteString("  operations:\n")
		for i, op := range df.operations {
			fmt.Fprintf(&b, "    %d. %s\n", i+1, op.String())
		}
	}
	return b.String()
}

// ApplyResult is the outcome of running a function in the database.
type ApplyResult struct {
	*ae.Result
	Output *IdaDataFrame // handle on the output table; nil unless persisted
}

// Apply runs fn once per row inside the database. When outputTable is set
// the output is stored there and Output is bound to it.
func (df *IdaDataFrame) Apply(ctx context.Context, fn ae.Function, sig ae.Signature, outputTable string) (*ApplyResult, error) {
	return df.apply(ctx, fn, sig, ae.Options{Mode: ae.ModeRow, OutputTable: outputTable})
}

// ApplyBatch runs fn once over every row of the view, passed as a pandas DataFrame.
func (df *IdaDataFrame) ApplyBatch(ctx context.Context, fn ae.Function, sig ae.Signature, outputTable string) (*ApplyResult, error) {
	return df.apply(ctx, fn, sig, ae.Options{Mode: ae.ModeBatch, OutputTable: outputTable})
}

func (df *IdaDataFrame) apply(ctx context.Context, fn ae.Function, sig ae.Signature, opts ae.Options) (*ApplyResult, error) {
	query, args, err := df.SQL()
	if err != nil {
		return nil, err
	}
	if opts.OutputTable != "" {
		opts.OutputTable = df.db.QualifiedName(opts.OutputTable)
	}

	in := ae.Input{Table: df.table, Query: query, Columns: df.Columns(), Args: args}
	d := ae.NewDispatcher(df.db, df.db.Config().AEFunction, df.db.Logger())

	res, err := d.Apply(ctx, in, fn, sig, opts)
	if err != nil {
		return nil, err
	}
	out := &ApplyResult{Result: res}
	if res.OutputTable == "" {
		return out, nil
	}

	out.Output, err = New(ctx, df.db, res.OutputTable)
	if err != nil {
		res.Release()
		return nil, err
	}
	df.db.Logger().Info("AE output stored",
		zap.String("table", res.OutputTable),
		zap.Bool("created", res.Created),
		zap.Int("rows", res.Frame.Len()))
	return out, nil
}
