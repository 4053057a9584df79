package io

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/paveg/idaframe/internal/frame"
)

// Write writes the Frame to CSV format
func (w *CSVWriter) Write(f *frame.Frame) error {
	record := f.Record()

	delimiter := w.options.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}

	csvWriter := csv.NewWriter(w.writer, record.Schema(),
		csv.WithComma(delimiter),
		csv.WithHeader(w.options.Header),
		csv.WithNullWriter(w.options.NullText),
	)

	if err := csvWriter.Write(record); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	if err := csvWriter.Flush(); err != nil {
		return fmt.Errorf("flushing CSV output: %w", err)
	}
	return csvWriter.Error()
}
