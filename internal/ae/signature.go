package ae

import (
	"fmt"
	"strings"

	"github.com/paveg/idaframe/internal/errors"
)

// StringColumnLength is the maximum length declared for str output columns.
const StringColumnLength = 1000

// ColumnType is an output column type tag.
type ColumnType int

const (
	// TypeInt ("int") is a 32-bit integer output column.
	TypeInt ColumnType = iota
	// TypeFloat ("float") is a single precision output column.
	TypeFloat
	// TypeDouble ("double") is a double precision output column.
	TypeDouble
	// TypeString ("str") is a variable length text column of at most StringColumnLength characters.
	TypeString
)

var columnTypeTags = map[string]ColumnType{
	"int":    TypeInt,
	"float":  TypeFloat,
	"double": TypeDouble,
	"str":    TypeString,
}

// String returns the type tag.
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeString:
		return "str"
	default:
		return fmt.Sprintf("unknown_type(%d)", int(t))
	}
}

// runtimeConstant is the AE runtime type constant for t.
func (t ColumnType) runtimeConstant() string {
	switch t {
	case TypeInt:
		return "DATA_TYPE__INT32"
	case TypeFloat:
		return "DATA_TYPE__FLOAT"
	case TypeDouble:
		return "DATA_TYPE__DOUBLE"
	default:
		return "DATA_TYPE__VARIABLE"
	}
}

// Column is one entry of an output signature.
type Column struct {
	Name string
	Type ColumnType
}

// Signature is the ordered list of columns a generated AE function emits.
type Signature []Column

// ParseSignature parses "name=type" entries, preserving their order.
func ParseSignature(entries ...string) (Signature, error) {
	columns := make([]Column, 0, len(entries))
	for _, entry := range entries {
		name, tag, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, errors.NewInvalidInputError("ParseSignature",
				fmt.Sprintf("entry %q is not of the form name=type", entry))
		}
		name = strings.TrimSpace(name)
		t, ok := columnTypeTags[strings.ToLower(strings.TrimSpace(tag))]
		if !ok {
			return nil, errors.NewUnknownTypeError(name, strings.TrimSpace(tag))
		}
		columns = append(columns, Column{Name: name, Type: t})
	}
	return NewSignature(columns...)
}

// NewSignature validates columns and returns them as a Signature.
func NewSignature(columns ...Column) (Signature, error) {
	seen := make(map[string]bool, len(columns))
	sig := make(Signature, 0, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return nil, errors.NewInvalidInputError("ParseSignature", "column name must not be empty")
		}
		if _, ok := columnTypeTags[c.Type.String()]; !ok {
			return nil, errors.NewUnknownTypeError(c.Name, c.Type.String())
		}
		key := strings.ToUpper(c.Name)
		if seen[key] {
			return nil, errors.NewInvalidInputError("ParseSignature",
				fmt.Sprintf("duplicate output column %q", c.Name))
		}
		seen[key] = true
		sig = append(sig, c)
	}
	return sig, nil
}

// Names returns the output column names in order.
func (s Signature) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Registrations returns one AE runtime call per column declaring it as output.
func (s Signature) Registrations() []string {
	calls := make([]string, len(s))
	for i, c := range s {
		if c.Type == TypeString {
			calls[i] = fmt.Sprintf("self.addOutputColumnString(%s, self.%s, %d)",
				pyQuote(c.Name), c.Type.runtimeConstant(), StringColumnLength)
			continue
		}
		calls[i] = fmt.Sprintf("self.addOutputColumn(%s, self.%s)", pyQuote(c.Name), c.Type.runtimeConstant())
	}
	return calls
}

// pyQuote renders s as a single-quoted Python string literal.
func pyQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
