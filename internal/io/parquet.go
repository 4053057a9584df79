package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/idaframe/internal/frame"
)

// Read reads Parquet data and returns a Frame.
func (r *ParquetReader) Read() (*frame.Frame, error) {
	// Read all data into memory for Parquet reading
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.tableToFrame(table)
}

// tableToFrame flattens the chunks of every column into a single record.
func (r *ParquetReader) tableToFrame(table arrow.Table) (*frame.Frame, error) {
	cols := make([]arrow.Array, table.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i := range cols {
		column := table.Column(i)
		chunks := column.Data().Chunks()
		if len(chunks) == 0 {
			cols[i] = array.MakeArrayOfNull(r.mem, column.DataType(), 0)
			continue
		}
		merged, err := array.Concatenate(chunks, r.mem)
		if err != nil {
			return nil, fmt.Errorf("merging column %s: %w", column.Name(), err)
		}
		cols[i] = merged
	}

	return frame.New(array.NewRecord(table.Schema(), cols, table.NumRows())), nil
}

func compressionCodec(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported compression %q", name)
	}
}

// Write writes the Frame to Parquet format.
func (w *ParquetWriter) Write(f *frame.Frame) (err error) {
	compression, err := compressionCodec(w.options.Compression)
	if err != nil {
		return err
	}

	batchSize := w.options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(batchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
		pqarrow.WithStoreSchema(),
	)

	record := f.Record()
	writer, err := pqarrow.NewFileWriter(record.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing file writer: %w", closeErr)
		}
	}()

	table := array.NewTableFromRecords(record.Schema(), []arrow.Record{record})
	defer table.Release()

	if err := writer.WriteTable(table, int64(batchSize)); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	return nil
}
