package ae

import (
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/paveg/idaframe/internal/errors"
)

// Input describes the rows fed to the AE function.
type Input struct {
	Table   string   // qualified table name
	Query   string   // inner SELECT; defaults to SELECT * FROM Table
	Columns []string // columns passed to the function, in order
	Args    []any    // bound to placeholders in Query
}

func (in Input) innerQuery() string {
	if in.Query != "" {
		return in.Query
	}
	return "SELECT * FROM " + in.Table
}

// QueryBuilder assembles AE table function invocations.
type QueryBuilder struct {
	Function string // registered AE table function
}

// NewQueryBuilder creates a builder targeting the named table function.
func NewQueryBuilder(function string) QueryBuilder {
	return QueryBuilder{Function: function}
}

func (b QueryBuilder) selectBuilder(in Input, doc *Document) (sq.SelectBuilder, error) {
	if b.Function == "" {
		return sq.SelectBuilder{}, errors.NewInvalidInputError("BuildQuery", "AE function name must not be empty")
	}
	if in.Table == "" && in.Query == "" {
		return sq.SelectBuilder{}, errors.NewInvalidInputError("BuildQuery", "input table must not be empty")
	}
	if len(in.Columns) == 0 {
		return sq.SelectBuilder{}, errors.NewInvalidInputError("BuildQuery", "at least one input column is required")
	}

	cols := make([]string, len(in.Columns))
	for i, c := range in.Columns {
		cols[i] = QuoteIdentifier(c)
	}

	from := fmt.Sprintf(`(%s) AS input_t, TABLE WITH FINAL (%s(%s,'CODE_TO_EXECUTE="%s"')) AS ae_output`,
		in.innerQuery(), b.Function, strings.Join(cols, ","), doc.Escaped())

	return sq.Select("ae_output.*").From(from), nil
}

// Select returns the bare AE statement returning the function's output rows.
func (b QueryBuilder) Select(in Input, doc *Document) (string, error) {
	sb, err := b.selectBuilder(in, doc)
	if err != nil {
		return "", err
	}
	query, _, err := sb.ToSql()
	if err != nil {
		return "", errors.NewInternalError("BuildQuery", err)
	}
	return query, nil
}

// Persist returns the AE statement storing its output in table: an INSERT
// when the table exists, a CREATE TABLE AS otherwise.
func (b QueryBuilder) Persist(in Input, doc *Document, table string, exists bool) (string, error) {
	if err := ValidateTableName("BuildQuery", table); err != nil {
		return "", err
	}
	sb, err := b.selectBuilder(in, doc)
	if err != nil {
		return "", err
	}

	if exists {
		query, _, err := sq.Insert(table).Select(sb).ToSql()
		if err != nil {
			return "", errors.NewInternalError("BuildQuery", err)
		}
		return query, nil
	}

	query, _, err := sb.ToSql()
	if err != nil {
		return "", errors.NewInternalError("BuildQuery", err)
	}
	return "CREATE TABLE " + table + " AS " + query, nil
}

// tableNamePattern accepts TABLE, SCHEMA.TABLE, DB.SCHEMA.TABLE and DB..TABLE,
// each part either a plain or a double-quoted identifier.
var tableNamePattern = func() *regexp.Regexp {
	part := `(?:[A-Za-z_][A-Za-z0-9_$]*|"(?:[^"]|"")+")`
	return regexp.MustCompile(`^` + part + `(?:\.\.?` + part + `){0,2}$`)
}()

// ValidateTableName rejects names that are not a possibly qualified SQL
// identifier. Table names are spliced into statements unquoted.
func ValidateTableName(op, name string) error {
	if name == "" {
		return errors.NewInvalidInputError(op, "table name must not be empty")
	}
	if !tableNamePattern.MatchString(name) {
		return errors.NewInvalidInputError(op, fmt.Sprintf("invalid table name %q", name))
	}
	return nil
}

// QuoteIdentifier renders name as a double-quoted SQL identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
