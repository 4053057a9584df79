// Package ae generates and dispatches Analytics Engine (AE) table function calls.
//
// A user supplies a Python function and an output signature. The synthesizer
// wraps the function in a module subclassing the vendor's nzae.Ae base class,
// the query builder embeds that module in a SQL literal passed to the
// registered AE table function, and the dispatcher runs the statement over a
// caller-supplied connection.
package ae

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/paveg/idaframe/internal/errors"
)

// Mode selects how input rows reach the user function.
type Mode int

const (
	// ModeRow calls the function once per input row.
	ModeRow Mode = iota
	// ModeBatch collects all rows of a partition into a pandas DataFrame and
	// calls the function once.
	ModeBatch
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeBatch {
		return "batch"
	}
	return "row"
}

// ClassName is the name of the generated AE class.
const ClassName = "AeFunction"

// bodyIndent is the offset applied to the user function inside the class.
const bodyIndent = 4

// Template text uses only single-quoted literals; see EscapeLiteral.
const moduleTemplate = `import nzae
{{- if .Batch }}
import pandas as pd
{{- end }}
{{- range .Imports }}
{{ . }}
{{- end }}


class {{ .Class }}(nzae.Ae):
    @staticmethod
{{ .Body | indent .Indent }}

    def _runUdtf(self):
{{- if .Batch }}
        rows = [list(row) for row in self]
        batch = pd.DataFrame(rows, columns=[{{ .InputColumns | join ", " }}])
        result = {{ .Class }}.{{ .Func }}(batch)
        if result is None:
            return
        if isinstance(result, pd.DataFrame):
            result = result.itertuples(index=False, name=None)
        for out_row in result:
            self.output(list(out_row))
{{- else }}
        for row in self:
            result = {{ .Class }}.{{ .Func }}(row)
            if result is not None:
                self.output(result)
{{- end }}

    def _runShaper(self):
{{- range .Registrations }}
        {{ . }}
{{- else }}
        pass
{{- end }}


{{ .Class }}.run()
`

var moduleTmpl = template.Must(template.New("ae").Funcs(sprig.TxtFuncMap()).Parse(moduleTemplate))

type moduleData struct {
	Class         string
	Func          string
	Batch         bool
	Imports       []string
	Body          string
	Indent        int
	InputColumns  []string
	Registrations []string
}

// Document is a generated AE module. It is immutable once synthesized.
type Document struct {
	source  string
	escaped string
}

// Source returns the generated Python module.
func (d *Document) Source() string {
	return d.source
}

// Escaped returns the module with every single quote doubled, ready to be
// embedded in a single-quoted SQL literal.
func (d *Document) Escaped() string {
	return d.escaped
}

// Synthesize generates the AE module calling fn. columns are the input column
// names, used to label the batch DataFrame in ModeBatch.
func Synthesize(fn Function, columns []string, sig Signature, mode Mode) (*Document, error) {
	ex, err := fn.extract()
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pyQuote(c)
	}

	data := moduleData{
		Class:         ClassName,
		Func:          fn.Name,
		Batch:         mode == ModeBatch,
		Imports:       ex.imports,
		Body:          ex.body,
		Indent:        bodyIndent,
		InputColumns:  quoted,
		Registrations: sig.Registrations(),
	}

	var buf bytes.Buffer
	if err := moduleTmpl.Execute(&buf, data); err != nil {
		return nil, errors.NewInternalError("Synthesize", err)
	}

	src := buf.String()
	return &Document{source: src, escaped: EscapeLiteral(src)}, nil
}

// EscapeLiteral doubles every single quote in s.
func EscapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// UnescapeLiteral reverses EscapeLiteral.
func UnescapeLiteral(s string) string {
	return strings.ReplaceAll(s, "''", "'")
}
