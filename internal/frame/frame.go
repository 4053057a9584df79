// Package frame provides the in-memory tabular result of a database query.
//
// A Frame is an immutable Apache Arrow record built from a *sql.Rows
// result set. Column types are inferred from the scanned values, corrected
// by the declared numeric type when the driver reports one. Computed
// expressions often carry no declared type at all.
//
// Memory management: Frames own Arrow buffers and must be released with
// Release when no longer needed.
package frame

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const nullText = "NULL"

// Frame is a materialized query result backed by an Arrow record.
type Frame struct {
	record arrow.Record
	index  map[string]int
}

// New wraps an existing record. The Frame takes ownership of one reference.
func New(record arrow.Record) *Frame {
	index := make(map[string]int, record.NumCols())
	for i, f := range record.Schema().Fields() {
		index[f.Name] = i
	}
	return &Frame{record: record, index: index}
}

// Empty returns a frame with the given column names and no rows.
func Empty(columns []string, mem memory.Allocator) *Frame {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	b := array.NewRecordBuilder(mem, arrow.NewSchema(fields, nil))
	defer b.Release()
	return New(b.NewRecord())
}

// FromRows drains rows into a new Frame. The caller still owns rows and must close it.
//
// Declared column types take precedence over the scanned Go values: drivers
// such as nzgo deliver FLOAT8 and NUMERIC values as text, which is parsed
// back into numbers here.
func FromRows(rows *sql.Rows, mem memory.Allocator) (*Frame, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	kinds := declaredKinds(rows, len(columns))

	data := make([][]any, len(columns))
	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		for i, v := range raw {
			data[i] = append(data[i], kinds[i].coerce(normalize(v)))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}

	hints := make([]arrow.DataType, len(columns))
	for i, k := range kinds {
		hints[i] = k.dataType()
	}
	return build(columns, data, hints, mem)
}

// FromColumns builds a Frame from column-major values. Each column's type is
// inferred from its non-nil values; nil values become nulls.
func FromColumns(columns []string, data [][]any, mem memory.Allocator) (*Frame, error) {
	normalized := make([][]any, len(data))
	for i, values := range data {
		normalized[i] = make([]any, len(values))
		for j, v := range values {
			normalized[i][j] = normalize(v)
		}
	}
	return build(columns, normalized, nil, mem)
}

// build assembles the record. hints, when set, type columns that hold no
// non-nil value.
func build(columns []string, data [][]any, hints []arrow.DataType, mem memory.Allocator) (*Frame, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if len(columns) != len(data) {
		return nil, fmt.Errorf("got %d columns but %d value slices", len(columns), len(data))
	}

	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		var hint arrow.DataType
		if i < len(hints) {
			hint = hints[i]
		}
		fields[i] = arrow.Field{Name: name, Type: inferType(data[i], hint), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, values := range data {
		if err := appendValues(b.Field(i), values); err != nil {
			return nil, fmt.Errorf("building column %s: %w", columns[i], err)
		}
	}

	return New(b.NewRecord()), nil
}

// columnKind is the numeric family of a declared database column type.
type columnKind int

const (
	kindOther columnKind = iota
	kindInteger
	kindFloat
)

var numericTypeNames = map[string]columnKind{
	"BYTEINT":          kindInteger,
	"INT1":             kindInteger,
	"INT2":             kindInteger,
	"INT4":             kindInteger,
	"INT8":             kindInteger,
	"SMALLINT":         kindInteger,
	"INT":              kindInteger,
	"INTEGER":          kindInteger,
	"BIGINT":           kindInteger,
	"FLOAT4":           kindFloat,
	"FLOAT8":           kindFloat,
	"FLOAT":            kindFloat,
	"REAL":             kindFloat,
	"DOUBLE":           kindFloat,
	"DOUBLE PRECISION": kindFloat,
	"NUMERIC":          kindFloat,
	"DECIMAL":          kindFloat,
}

// kindOf maps a driver type name such as "NUMERIC(10,2)" to its kind.
func kindOf(typeName string) columnKind {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return numericTypeNames[name]
}

// declaredKinds reads the column types the driver reports. Drivers without
// type information yield kindOther for every column.
func declaredKinds(rows *sql.Rows, n int) []columnKind {
	kinds := make([]columnKind, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return kinds
	}
	for i, ct := range types {
		if i < n {
			kinds[i] = kindOf(ct.DatabaseTypeName())
		}
	}
	return kinds
}

// coerce converts a normalized value to the Go type its column kind stores.
// Values that do not parse are kept as they are.
func (k columnKind) coerce(v any) any {
	switch k {
	case kindFloat:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
	case kindInteger:
		if x, ok := v.(string); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n
			}
		}
	}
	return v
}

func (k columnKind) dataType() arrow.DataType {
	switch k {
	case kindInteger:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return nil
	}
}

// normalize maps driver values onto the small set of Go types a Frame stores.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case float64:
		return x
	case float32:
		return float64(x)
	case bool:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func inferType(values []any, hint arrow.DataType) arrow.DataType {
	var hasInt, hasFloat, hasBool, hasString bool
	for _, v := range values {
		switch v.(type) {
		case int64:
			hasInt = true
		case float64:
			hasFloat = true
		case bool:
			hasBool = true
		case string:
			hasString = true
		}
	}

	switch {
	case hasString, hasBool && (hasInt || hasFloat):
		return arrow.BinaryTypes.String
	case hasFloat:
		return arrow.PrimitiveTypes.Float64
	case hasInt:
		return arrow.PrimitiveTypes.Int64
	case hasBool:
		return arrow.FixedWidthTypes.Boolean
	case hint != nil:
		return hint
	default:
		return arrow.BinaryTypes.String
	}
}

func appendValues(builder array.Builder, values []any) error {
	switch b := builder.(type) {
	case *array.Int64Builder:
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(int64))
		}
	case *array.Float64Builder:
		for _, v := range values {
			switch x := v.(type) {
			case nil:
				b.AppendNull()
			case int64:
				b.Append(float64(x))
			case float64:
				b.Append(x)
			}
		}
	case *array.BooleanBuilder:
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(bool))
		}
	case *array.StringBuilder:
		for _, v := range values {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(formatValue(v))
		}
	default:
		return fmt.Errorf("unsupported builder type: %T", builder)
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return nullText
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Record returns the underlying Arrow record. It stays owned by the Frame.
func (f *Frame) Record() arrow.Record {
	return f.record
}

// Columns returns the column names in order
func (f *Frame) Columns() []string {
	fields := f.record.Schema().Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name
	}
	return names
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return int(f.record.NumRows())
}

// Width returns the number of columns
func (f *Frame) Width() int {
	return int(f.record.NumCols())
}

// HasColumn reports whether the frame has the named column
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the Arrow array for the named column
func (f *Frame) Column(name string) (arrow.Array, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.record.Column(i), true
}

// Value returns the value at row of the named column as int64, float64,
// bool or string, or nil for nulls and out-of-range access.
func (f *Frame) Value(column string, row int) any {
	arr, ok := f.Column(column)
	if !ok {
		return nil
	}
	return valueAt(arr, row)
}

// Row returns all values of one row in column order. Columns are read by
// position, so duplicate column names are preserved.
func (f *Frame) Row(row int) []any {
	out := make([]any, f.Width())
	for i := range out {
		out[i] = valueAt(f.record.Column(i), row)
	}
	return out
}

func valueAt(arr arrow.Array, row int) any {
	if row < 0 || row >= arr.Len() || arr.IsNull(row) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(row)
	case *array.Float64:
		return a.Value(row)
	case *array.Boolean:
		return a.Value(row)
	case *array.String:
		return a.Value(row)
	default:
		return a.ValueStr(row)
	}
}

// String returns a summary of the frame shape and column types.
func (f *Frame) String() string {
	if f.Width() == 0 {
		return "Frame[empty]"
	}

	parts := []string{fmt.Sprintf("Frame[%dx%d]", f.Len(), f.Width())}
	for _, field := range f.record.Schema().Fields() {
		parts = append(parts, fmt.Sprintf("  %s: %s", field.Name, field.Type.String()))
	}
	return strings.Join(parts, "\n")
}

// Format writes up to maxRows rows as an aligned text table. maxRows <= 0 writes all rows.
func (f *Frame) Format(w io.Writer, maxRows int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(f.Columns(), "\t")); err != nil {
		return err
	}

	n := f.Len()
	if maxRows > 0 && maxRows < n {
		n = maxRows
	}
	for r := 0; r < n; r++ {
		row := f.Row(r)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	if n < f.Len() {
		if _, err := fmt.Fprintf(tw, "... %d more rows\n", f.Len()-n); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Release frees the memory used by the Frame.
func (f *Frame) Release() {
	if f.record != nil {
		f.record.Release()
	}
}
