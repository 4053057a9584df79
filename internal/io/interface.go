// Package io exports materialized query results.
//
// Writers take a frame.Frame and encode it as CSV, JSON or Parquet. A Parquet
// reader is provided to load exported files back into a Frame.
//
// Memory management: frames returned by readers own Arrow buffers and must
// be released by the caller.
package io

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/idaframe/internal/frame"
)

const (
	// DefaultBatchSize is the default batch size for I/O operations
	DefaultBatchSize = 1000
)

// DataReader defines the interface for reading exported data
type DataReader interface {
	// Read reads data from the source and returns a Frame
	Read() (*frame.Frame, error)
}

// DataWriter defines the interface for writing data to various destinations
type DataWriter interface {
	// Write writes the Frame to the destination
	Write(f *frame.Frame) error
}

// CSVOptions contains configuration options for CSV output
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Header indicates whether the first row contains headers
	Header bool
	// NullText is written for NULL values (default: empty)
	NullText string
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter: ',',
		Header:    true,
	}
}

// CSVWriter writes Frames to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// JSONFormat selects the JSON layout.
type JSONFormat int

const (
	// JSONArray writes a single array of objects.
	JSONArray JSONFormat = iota
	// JSONLines writes one object per line.
	JSONLines
)

// JSONOptions contains configuration options for JSON output
type JSONOptions struct {
	Format JSONFormat
}

// JSONWriter writes Frames as JSON objects, one per row
type JSONWriter struct {
	writer  io.Writer
	options JSONOptions
}

// NewJSONWriter creates a new JSON writer with the specified options
func NewJSONWriter(writer io.Writer, options JSONOptions) *JSONWriter {
	return &JSONWriter{
		writer:  writer,
		options: options,
	}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression is one of snappy, gzip, zstd, lz4 or uncompressed
	Compression string
	// BatchSize for writing operations
	BatchSize int
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// ParquetReader reads Parquet data into Frames
type ParquetReader struct {
	reader io.Reader
	mem    memory.Allocator
}

// NewParquetReader creates a new Parquet reader
func NewParquetReader(reader io.Reader, mem memory.Allocator) *ParquetReader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ParquetReader{
		reader: reader,
		mem:    mem,
	}
}

// ParquetWriter writes Frames to Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
}

// NewParquetWriter creates a new Parquet writer with the specified options
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{
		writer:  writer,
		options: options,
	}
}

// WriterFor picks a writer from the extension of path: .csv, .tsv, .json,
// .jsonl (or .ndjson) and .parquet.
func WriterFor(path string, w io.Writer) (DataWriter, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return NewCSVWriter(w, DefaultCSVOptions()), nil
	case ".tsv":
		opts := DefaultCSVOptions()
		opts.Delimiter = '\t'
		return NewCSVWriter(w, opts), nil
	case ".json":
		return NewJSONWriter(w, JSONOptions{Format: JSONArray}), nil
	case ".jsonl", ".ndjson":
		return NewJSONWriter(w, JSONOptions{Format: JSONLines}), nil
	case ".parquet", ".pq":
		return NewParquetWriter(w, DefaultParquetOptions()), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q", ext)
	}
}
