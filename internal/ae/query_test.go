package ae

import (
	"strings"
	"testing"

	"github.com/paveg/idaframe/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(t *testing.T) *Document {
	t.Helper()
	src := "def f(row):\n    return [row[0], 'it''s']\n"
	doc, err := Synthesize(NewFunction("f", src), []string{"ID", "SEPAL_LENGTH"}, mustSignature(t, "ID=int", "TAG=str"), ModeRow)
	require.NoError(t, err)
	return doc
}

// readSQLLiteral reads the single-quoted SQL literal starting at s[start]
// and returns its unescaped content and the index just after it.
func readSQLLiteral(s string, start int) (string, int, bool) {
	if start >= len(s) || s[start] != '\'' {
		return "", 0, false
	}
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		return b.String(), i + 1, true
	}
	return "", 0, false
}

func TestQueryBuilder_Select(t *testing.T) {
	doc := testDocument(t)
	in := Input{Table: "ADMIN.IRIS", Columns: []string{"ID", "SEPAL_LENGTH"}}

	query, err := NewQueryBuilder("py_udtf").Select(in, doc)
	require.NoError(t, err)

	expected := `SELECT ae_output.* FROM (SELECT * FROM ADMIN.IRIS) AS input_t, ` +
		`TABLE WITH FINAL (py_udtf("ID","SEPAL_LENGTH",'CODE_TO_EXECUTE="` + doc.Escaped() + `"')) AS ae_output`
	assert.Equal(t, expected, query)
}

func TestQueryBuilder_LiteralRoundTrip(t *testing.T) {
	doc := testDocument(t)
	query, err := NewQueryBuilder("py_udtf").Select(Input{Table: "T", Columns: []string{"ID"}}, doc)
	require.NoError(t, err)

	start := strings.Index(query, "'CODE_TO_EXECUTE=")
	require.GreaterOrEqual(t, start, 0)

	literal, end, ok := readSQLLiteral(query, start)
	require.True(t, ok, "literal must be terminated")
	assert.Equal(t, `CODE_TO_EXECUTE="`+doc.Source()+`"`, literal)
	assert.Equal(t, ")) AS ae_output", query[end:])
}

func TestQueryBuilder_Idempotent(t *testing.T) {
	b := NewQueryBuilder("py_udtf")
	in := Input{Table: "T", Columns: []string{"A", "B"}}

	first, err := b.Select(in, testDocument(t))
	require.NoError(t, err)
	second, err := b.Select(in, testDocument(t))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	p1, err := b.Persist(in, testDocument(t), "OUT", false)
	require.NoError(t, err)
	p2, err := b.Persist(in, testDocument(t), "OUT", false)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestQueryBuilder_Persist(t *testing.T) {
	doc := testDocument(t)
	b := NewQueryBuilder("NZA..PY_UDTF")
	in := Input{Table: "T", Columns: []string{"ID"}}

	bare, err := b.Select(in, doc)
	require.NoError(t, err)

	create, err := b.Persist(in, doc, "RESULTS", false)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE RESULTS AS "+bare, create)

	insert, err := b.Persist(in, doc, "RESULTS", true)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO RESULTS "+bare, insert)
}

func TestQueryBuilder_CustomInnerQuery(t *testing.T) {
	in := Input{
		Table:   "IRIS",
		Query:   `SELECT "ID", "SPECIES" FROM IRIS WHERE "SPECIES" = 'setosa'`,
		Columns: []string{"ID", "SPECIES"},
	}
	query, err := NewQueryBuilder("py_udtf").Select(in, testDocument(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query,
		`SELECT ae_output.* FROM (SELECT "ID", "SPECIES" FROM IRIS WHERE "SPECIES" = 'setosa') AS input_t, TABLE WITH FINAL (py_udtf("ID","SPECIES",`))
}

func TestQueryBuilder_Errors(t *testing.T) {
	doc := testDocument(t)

	_, err := QueryBuilder{}.Select(Input{Table: "T", Columns: []string{"A"}}, doc)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewQueryBuilder("f").Select(Input{Columns: []string{"A"}}, doc)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewQueryBuilder("f").Select(Input{Table: "T"}, doc)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewQueryBuilder("f").Persist(Input{Table: "T", Columns: []string{"A"}}, doc, "", false)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestValidateTableName(t *testing.T) {
	for _, name := range []string{"T", "ADMIN.RESULTS", "NZA..SCORES", "DB.ADMIN.T_1", `"My Table"`, `ADMIN."a""b"`, "t$1"} {
		assert.NoError(t, ValidateTableName("Apply", name), name)
	}

	for _, name := range []string{"", "T; DROP TABLE IRIS", "1T", "A.B.C.D", "T --", `"open`, "T AS SELECT 1", "A...B"} {
		err := ValidateTableName("Apply", name)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, name)
	}

	_, err := NewQueryBuilder("f").Persist(Input{Table: "T", Columns: []string{"A"}}, testDocument(t), "T; DROP TABLE IRIS", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Contains(t, err.Error(), `invalid table name "T; DROP TABLE IRIS"`)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"ID"`, QuoteIdentifier("ID"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
}
