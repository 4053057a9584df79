// Package learn trains and applies in-database models through the IDAX
// stored procedures. Models live in the database; the Go values only carry
// their names and training parameters.
package learn

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/paveg/idaframe/internal/ae"
	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/idadf"
	"go.uber.org/zap"
)

// Params are the key=value arguments of an IDAX procedure.
type Params map[string]string

// String renders the parameters as "k1=v1, k2=v2" in key order.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k, v := range p {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + p[k]
	}
	return strings.Join(parts, ", ")
}

// CallStatement returns the CALL statement invoking IDAX.<procedure>.
func CallStatement(procedure string, params Params) string {
	return "CALL IDAX." + procedure + "('" + ae.EscapeLiteral(params.String()) + "')"
}

func call(ctx context.Context, db *database.DataBase, procedure string, params Params) error {
	stmt := CallStatement(procedure, params)
	if _, err := db.Exec(ctx, stmt); err != nil {
		return err
	}
	db.Logger().Debug("IDAX procedure completed", zap.String("procedure", procedure))
	return nil
}

// GenerateName returns a fresh object name of the form PREFIX_<uuid>.
func GenerateName(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + "_" + id
}

// input validates that df can be handed to a procedure and returns its parameters.
func input(op string, df *idadf.IdaDataFrame, id string) (Params, error) {
	if df == nil {
		return nil, errors.NewInvalidInputError(op, "input frame must not be nil")
	}
	if df.Pending() {
		return nil, errors.NewInvalidInputError(op, "input has pending filters or sort keys; store it with SaveAs first")
	}
	if id == "" {
		return nil, errors.NewInvalidInputError(op, "id column must not be empty")
	}
	if !df.HasColumn(id) {
		return nil, errors.NewColumnNotFoundError(op, df.Table(), id)
	}
	return Params{"intable": df.Table(), "id": id}, nil
}

// features lists the projected columns other than the excluded ones, as IDAX expects them.
func features(df *idadf.IdaDataFrame, exclude ...string) string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var cols []string
	for _, c := range df.Columns() {
		if !skip[c] {
			cols = append(cols, c)
		}
	}
	return strings.Join(cols, ";")
}

// predict runs a PREDICT_* procedure and opens the output table.
func predict(ctx context.Context, procedure, model, prefix string, df *idadf.IdaDataFrame, id, outTable string) (*idadf.IdaDataFrame, error) {
	if model == "" {
		return nil, errors.NewInvalidInputError("Predict", "model has not been fitted")
	}
	params, err := input("Predict", df, id)
	if err != nil {
		return nil, err
	}

	db := df.Database()
	if outTable == "" {
		outTable = GenerateName(prefix)
	}
	outTable = db.QualifiedName(outTable)
	params["model"] = model
	params["outtable"] = outTable

	if err := call(ctx, db, procedure, params); err != nil {
		return nil, err
	}
	return idadf.New(ctx, db, outTable)
}

func dropModel(ctx context.Context, db *database.DataBase, model string) error {
	if model == "" {
		return errors.NewInvalidInputError("Drop", "model has not been fitted")
	}
	return call(ctx, db, "DROP_MODEL", Params{"model": model})
}
