package io

import (
	"bufio"
	"fmt"
	"math"

	json "github.com/goccy/go-json"
	"github.com/paveg/idaframe/internal/frame"
)

// Write writes the Frame as a JSON array or as JSON Lines. Keys follow the
// frame's column order and NULL is written as null.
func (w *JSONWriter) Write(f *frame.Frame) error {
	switch w.options.Format {
	case JSONArray, JSONLines:
	default:
		return fmt.Errorf("unsupported JSON format: %d", w.options.Format)
	}

	out := bufio.NewWriter(w.writer)
	if w.options.Format == JSONArray {
		out.WriteByte('[')
	}

	columns := f.Columns()
	keys := make([][]byte, len(columns))
	for i, c := range columns {
		key, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshaling column name %q: %w", c, err)
		}
		keys[i] = key
	}

	for r := 0; r < f.Len(); r++ {
		if w.options.Format == JSONArray && r > 0 {
			out.WriteByte(',')
		}
		if err := writeObject(out, keys, f.Row(r)); err != nil {
			return fmt.Errorf("marshaling row %d: %w", r, err)
		}
		if w.options.Format == JSONLines {
			out.WriteByte('\n')
		}
	}

	if w.options.Format == JSONArray {
		out.WriteByte(']')
	}
	return out.Flush()
}

func writeObject(out *bufio.Writer, keys [][]byte, row []any) error {
	out.WriteByte('{')
	for i, v := range row {
		if i > 0 {
			out.WriteByte(',')
		}
		out.Write(keys[i])
		out.WriteByte(':')

		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out.Write(data)
	}
	return out.WriteByte('}')
}
