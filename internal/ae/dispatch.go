package ae

import (
	"context"

	"github.com/paveg/idaframe/internal/frame"
	"go.uber.org/zap"
)

// Conn is the database connection the dispatcher runs statements on.
// Callers sharing one Conn across goroutines must serialize externally.
type Conn interface {
	Query(ctx context.Context, query string, args ...any) (*frame.Frame, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	TableExists(ctx context.Context, name string) (bool, error)
}

// Options controls a single Apply call.
type Options struct {
	Mode        Mode
	OutputTable string // persist output here when set
}

// Plan is an assembled, not yet submitted, AE invocation.
type Plan struct {
	Document *Document
	Input    Input
	Query    string // bare SELECT over the AE output
}

// Result is the outcome of a dispatched AE invocation.
type Result struct {
	Frame       *frame.Frame
	OutputTable string // set when the output was persisted
	Created     bool   // the output table was created by this call
	Statement   string // statement that was submitted
}

// Release frees the memory held by the result frame.
func (r *Result) Release() {
	if r.Frame != nil {
		r.Frame.Release()
	}
}

// Dispatcher submits AE invocations through a Conn.
type Dispatcher struct {
	conn    Conn
	builder QueryBuilder
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher calling the named AE table function.
func NewDispatcher(conn Conn, function string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		conn:    conn,
		builder: NewQueryBuilder(function),
		logger:  logger,
	}
}

// Plan synthesizes the AE module and builds the SELECT statement without
// touching the database. Introspection failures surface here, before any SQL
// is built.
func (d *Dispatcher) Plan(in Input, fn Function, sig Signature, mode Mode) (*Plan, error) {
	doc, err := Synthesize(fn, in.Columns, sig, mode)
	if err != nil {
		return nil, err
	}
	query, err := d.builder.Select(in, doc)
	if err != nil {
		return nil, err
	}
	return &Plan{Document: doc, Input: in, Query: query}, nil
}

// Apply runs fn over the input rows inside the database. Without an output
// table the function's rows are returned directly. With one, the output is
// created or appended to and then read back in full. Errors from the
// connection are returned unchanged.
func (d *Dispatcher) Apply(ctx context.Context, in Input, fn Function, sig Signature, opts Options) (*Result, error) {
	if opts.OutputTable != "" {
		if err := ValidateTableName("Apply", opts.OutputTable); err != nil {
			return nil, err
		}
	}
	plan, err := d.Plan(in, fn, sig, opts.Mode)
	if err != nil {
		return nil, err
	}

	log := d.logger.With(
		zap.String("function", fn.Name),
		zap.Stringer("mode", opts.Mode),
		zap.Int("output_columns", len(sig)),
	)

	if opts.OutputTable == "" {
		log.Debug("Dispatching AE query")
		f, err := d.conn.Query(ctx, plan.Query, plan.Input.Args...)
		if err != nil {
			return nil, err
		}
		return &Result{Frame: f, Statement: plan.Query}, nil
	}

	// The probe and the statement below are separate round trips; a
	// concurrent creator of the same table makes the CREATE fail.
	exists, err := d.conn.TableExists(ctx, opts.OutputTable)
	if err != nil {
		log.Debug("Output table probe failed, assuming absent", zap.Error(err))
		exists = false
	}

	stmt, err := d.builder.Persist(plan.Input, plan.Document, opts.OutputTable, exists)
	if err != nil {
		return nil, err
	}

	log.Debug("Dispatching AE statement",
		zap.String("output_table", opts.OutputTable),
		zap.Bool("append", exists))
	if _, err := d.conn.Exec(ctx, stmt, plan.Input.Args...); err != nil {
		return nil, err
	}

	f, err := d.conn.Query(ctx, "SELECT * FROM "+opts.OutputTable)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frame:       f,
		OutputTable: opts.OutputTable,
		Created:     !exists,
		Statement:   stmt,
	}, nil
}
