package idadf

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/idaframe/internal/ae"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/frame"
)

// describeSampleRows is the number of rows read to decide which columns are numeric.
const describeSampleRows = 100

// ColumnStats holds summary statistics of a numeric column.
type ColumnStats struct {
	Column string
	Count  int64
	Mean   float64
	Std    float64 // sample standard deviation; NaN below two values
	Min    float64
	Max    float64
}

// NumericColumns returns the projected columns holding numbers, judged from
// a sample of the view. Columns that are NULL throughout the sample are skipped.
func (df *IdaDataFrame) NumericColumns(ctx context.Context) ([]string, error) {
	sample, err := df.Head(ctx, describeSampleRows)
	if err != nil {
		return nil, err
	}
	defer sample.Release()

	var numeric []string
	for _, c := range df.columns {
		arr, ok := sample.Column(c)
		if !ok {
			continue
		}
		switch arr.DataType().ID() {
		case arrow.INT64, arrow.FLOAT64:
			numeric = append(numeric, c)
		}
	}
	return numeric, nil
}

// Stats computes count, mean, standard deviation, minimum and maximum of
// every numeric column with a single aggregate query.
func (df *IdaDataFrame) Stats(ctx context.Context) ([]ColumnStats, error) {
	numeric, err := df.NumericColumns(ctx)
	if err != nil {
		return nil, err
	}
	if len(numeric) == 0 {
		return nil, nil
	}

	exprs := make([]string, 0, len(numeric)*5)
	for _, c := range numeric {
		q := ae.QuoteIdentifier(c)
		exprs = append(exprs,
			"COUNT("+q+")",
			"SUM("+q+")",
			"SUM("+q+"*"+q+")",
			"MIN("+q+")",
			"MAX("+q+")",
		)
	}

	query, args, err := df.db.Builder().Select(exprs...).FromSelect(df.builder(), "t").ToSql()
	if err != nil {
		return nil, errors.NewInternalError("Describe", err)
	}
	result, err := df.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Release()
	if result.Len() != 1 {
		return nil, errors.NewInternalError("Describe", fmt.Errorf("aggregate query returned %d rows", result.Len()))
	}

	row := result.Row(0)
	stats := make([]ColumnStats, len(numeric))
	for i, c := range numeric {
		stats[i] = summarize(c, row[i*5:i*5+5])
	}
	return stats, nil
}

func summarize(column string, agg []any) ColumnStats {
	s := ColumnStats{Column: column, Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	n, _ := toFloat64(agg[0])
	s.Count = int64(n)
	if s.Count == 0 {
		return s
	}

	sum, _ := toFloat64(agg[1])
	sumSq, _ := toFloat64(agg[2])
	s.Mean = sum / n
	if s.Count > 1 {
		variance := (sumSq - n*s.Mean*s.Mean) / (n - 1)
		s.Std = math.Sqrt(math.Max(variance, 0))
	}
	s.Min, _ = toFloat64(agg[3])
	s.Max, _ = toFloat64(agg[4])
	return s
}

// Describe returns the statistics of Stats as a frame with one row per
// statistic and one column per numeric column.
func (df *IdaDataFrame) Describe(ctx context.Context) (*frame.Frame, error) {
	stats, err := df.Stats(ctx)
	if err != nil {
		return nil, err
	}

	labels := []string{"count", "mean", "std", "min", "max"}
	columns := []string{"statistic"}
	data := [][]any{make([]any, len(labels))}
	for i, l := range labels {
		data[0][i] = l
	}

	for _, s := range stats {
		columns = append(columns, s.Column)
		values := []float64{float64(s.Count), s.Mean, s.Std, s.Min, s.Max}
		col := make([]any, len(values))
		for i, v := range values {
			if !math.IsNaN(v) {
				col[i] = v
			}
		}
		data = append(data, col)
	}

	return frame.FromColumns(columns, data, df.db.Allocator())
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
