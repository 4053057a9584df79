// Package idaframe provides a pandas-like client for IBM Netezza Performance
// Server that pushes computation into the database.
//
// Tables are opened as lazy DataFrames whose selections, filters and sorts
// compile to SQL. Python functions run next to the data through the
// Analytics Engine: Apply and ApplyBatch generate an AE module around the
// function, ship it inline with a table function call and return or store
// the rows it emits. This package is the sole public API for the library.
package idaframe

import (
	"context"

	"github.com/paveg/idaframe/internal/ae"
	"github.com/paveg/idaframe/internal/config"
	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/frame"
	"github.com/paveg/idaframe/internal/idadf"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config configures a database session.
type Config = config.Config

// Frame is a materialized, Arrow-backed query result.
type Frame = frame.Frame

// Function is a Python function shipped to the Analytics Engine.
type Function = ae.Function

// Signature is the ordered list of output columns a function emits.
type Signature = ae.Signature

// Column is one output column of a Signature.
type Column = ae.Column

// ColumnType is the declared type of an output column.
type ColumnType = ae.ColumnType

// Output column types.
const (
	TypeInt    = ae.TypeInt
	TypeFloat  = ae.TypeFloat
	TypeDouble = ae.TypeDouble
	TypeString = ae.TypeString
)

// Document is a generated AE module.
type Document = ae.Document

// Mode selects how a function receives its input rows.
type Mode = ae.Mode

// Invocation modes.
const (
	ModeRow   = ae.ModeRow
	ModeBatch = ae.ModeBatch
)

// Error kinds for use with errors.Is.
var (
	ErrInvalidInput   = errors.ErrInvalidInput
	ErrTableNotFound  = errors.ErrTableNotFound
	ErrColumnNotFound = errors.ErrColumnNotFound
	ErrIntrospection  = errors.ErrIntrospection
	ErrUnknownType    = errors.ErrUnknownType
)

// NewConfig returns a configuration with default values.
func NewConfig() Config {
	return config.NewConfig()
}

// LoadConfig reads a JSON or YAML configuration file and applies IDA_*
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return Config{}, err
	}
	return config.LoadFromEnv(cfg), nil
}

// NewFunction creates a function from Python source text defining name.
func NewFunction(name, source string) Function {
	return ae.NewFunction(name, source)
}

// FunctionFromFile creates a function defined in the Python file at path.
func FunctionFromFile(path, name string) Function {
	return ae.FunctionFromFile(path, name)
}

// ParseSignature parses "name=type" entries into a Signature.
func ParseSignature(entries ...string) (Signature, error) {
	return ae.ParseSignature(entries...)
}

// Synthesize generates the AE module running fn over columns.
func Synthesize(fn Function, columns []string, sig Signature, mode Mode) (*Document, error) {
	return ae.Synthesize(fn, columns, sig, mode)
}

// DataBase is a session on an analytics database.
type DataBase struct {
	db *database.DataBase
}

// Open connects using cfg.
func Open(cfg Config, logger *zap.Logger) (*DataBase, error) {
	return OpenWithRegisterer(cfg, logger, nil)
}

// OpenWithRegisterer connects using cfg and registers statement metrics on
// reg when cfg.MetricsCollection is set.
func OpenWithRegisterer(cfg Config, logger *zap.Logger, reg prometheus.Registerer) (*DataBase, error) {
	db, err := database.Open(cfg, logger, reg)
	if err != nil {
		return nil, err
	}
	return &DataBase{db: db}, nil
}

// Frame opens a lazy DataFrame on table.
func (d *DataBase) Frame(ctx context.Context, table string) (*DataFrame, error) {
	df, err := idadf.New(ctx, d.db, table)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: df}, nil
}

// Query runs a statement and materializes its rows.
func (d *DataBase) Query(ctx context.Context, query string, args ...any) (*Frame, error) {
	return d.db.Query(ctx, query, args...)
}

// Exec runs a statement without a result set.
func (d *DataBase) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return d.db.Exec(ctx, query, args...)
}

// TableExists reports whether table can be queried.
func (d *DataBase) TableExists(ctx context.Context, table string) (bool, error) {
	return d.db.TableExists(ctx, table)
}

// DropTable drops table.
func (d *DataBase) DropTable(ctx context.Context, table string) error {
	return d.db.DropTable(ctx, table)
}

// Close closes the session.
func (d *DataBase) Close() error {
	return d.db.Close()
}

// DataFrame is a lazy, immutable view of a database table.
type DataFrame struct {
	df *idadf.IdaDataFrame
}

// Table returns the qualified name of the underlying table.
func (d *DataFrame) Table() string {
	return d.df.Table()
}

// Columns returns the projected column names.
func (d *DataFrame) Columns() []string {
	return d.df.Columns()
}

// Select returns a DataFrame projecting columns.
func (d *DataFrame) Select(columns ...string) (*DataFrame, error) {
	df, err := d.df.Select(columns...)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: df}, nil
}

// Where returns a DataFrame filtered by a SQL predicate with "?" placeholders.
func (d *DataFrame) Where(predicate string, args ...any) *DataFrame {
	return &DataFrame{df: d.df.Where(predicate, args...)}
}

// OrderBy returns a DataFrame sorted by column.
func (d *DataFrame) OrderBy(column string, ascending bool) (*DataFrame, error) {
	df, err := d.df.OrderBy(column, ascending)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: df}, nil
}

// SQL returns the compiled SELECT and its arguments.
func (d *DataFrame) SQL() (string, []any, error) {
	return d.df.SQL()
}

// Count returns the number of rows.
func (d *DataFrame) Count(ctx context.Context) (int64, error) {
	return d.df.Count(ctx)
}

// Shape returns the row and column counts.
func (d *DataFrame) Shape(ctx context.Context) (int64, int, error) {
	return d.df.Shape(ctx)
}

// Head materializes the first n rows.
func (d *DataFrame) Head(ctx context.Context, n int) (*Frame, error) {
	return d.df.Head(ctx, n)
}

// Collect materializes every row.
func (d *DataFrame) Collect(ctx context.Context) (*Frame, error) {
	return d.df.Collect(ctx)
}

// Describe returns count, mean, std, min and max of the numeric columns.
func (d *DataFrame) Describe(ctx context.Context) (*Frame, error) {
	return d.df.Describe(ctx)
}

// SaveAs stores the view in a new table.
func (d *DataFrame) SaveAs(ctx context.Context, table string) (*DataFrame, error) {
	df, err := d.df.SaveAs(ctx, table)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: df}, nil
}

// String describes the DataFrame and its pending operations.
func (d *DataFrame) String() string {
	return d.df.String()
}

// ApplyResult is the outcome of Apply or ApplyBatch.
type ApplyResult struct {
	Frame       *Frame     // rows emitted by the function
	OutputTable string     // set when the output was stored
	Created     bool       // the output table was created by this call
	Statement   string     // submitted statement
	Output      *DataFrame // handle on OutputTable
}

// Release frees the memory held by Frame.
func (r *ApplyResult) Release() {
	if r.Frame != nil {
		r.Frame.Release()
	}
}

// Apply runs fn once per row inside the database. A non-empty outputTable
// receives the output: it is created on first use and appended to afterwards.
func (d *DataFrame) Apply(ctx context.Context, fn Function, sig Signature, outputTable string) (*ApplyResult, error) {
	res, err := d.df.Apply(ctx, fn, sig, outputTable)
	return wrapResult(res, err)
}

// ApplyBatch runs fn once with every row as a pandas DataFrame.
func (d *DataFrame) ApplyBatch(ctx context.Context, fn Function, sig Signature, outputTable string) (*ApplyResult, error) {
	res, err := d.df.ApplyBatch(ctx, fn, sig, outputTable)
	return wrapResult(res, err)
}

func wrapResult(res *idadf.ApplyResult, err error) (*ApplyResult, error) {
	if err != nil {
		return nil, err
	}
	out := &ApplyResult{
		Frame:       res.Frame,
		OutputTable: res.OutputTable,
		Created:     res.Created,
		Statement:   res.Statement,
	}
	if res.Output != nil {
		out.Output = &DataFrame{df: res.Output}
	}
	return out, nil
}
