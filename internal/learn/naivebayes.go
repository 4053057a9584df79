package learn

import (
	"context"
	"strconv"

	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/idadf"
	"go.uber.org/zap"
)

// NaiveBayes trains a classifier with IDAX.NAIVEBAYES.
type NaiveBayes struct {
	Target string // class column
	Disc   string // discretization of numeric columns: ew, ef or em
	Bins   int    // 0 leaves the procedure default
	Model  string

	db *database.DataBase
}

// NewNaiveBayes creates an unfitted classifier predicting target.
func NewNaiveBayes(target string) *NaiveBayes {
	return &NaiveBayes{Target: target}
}

// Fit trains the classifier on df, identifying rows by the id column.
func (m *NaiveBayes) Fit(ctx context.Context, df *idadf.IdaDataFrame, id string) error {
	params, err := input("Fit", df, id)
	if err != nil {
		return err
	}
	if m.Target == "" {
		return errors.NewInvalidInputError("Fit", "target column must not be empty")
	}
	if !df.HasColumn(m.Target) {
		return errors.NewColumnNotFoundError("Fit", df.Table(), m.Target)
	}
	switch m.Disc {
	case "", "ew", "ef", "em":
	default:
		return errors.NewInvalidInputError("Fit", "Disc must be one of ew, ef, em, got "+strconv.Quote(m.Disc))
	}

	if m.Model == "" {
		m.Model = GenerateName("NAIVEBAYES")
	}
	m.db = df.Database()

	params["model"] = m.Model
	params["target"] = m.Target
	params["incolumn"] = features(df, id, m.Target)
	params["disc"] = m.Disc
	if m.Bins > 0 {
		params["bins"] = strconv.Itoa(m.Bins)
	}

	if err := call(ctx, m.db, "NAIVEBAYES", params); err != nil {
		return err
	}
	m.db.Logger().Info("Model trained", zap.String("model", m.Model), zap.String("target", m.Target))
	return nil
}

// Predict classifies every row of df and returns a handle on the output table.
func (m *NaiveBayes) Predict(ctx context.Context, df *idadf.IdaDataFrame, id, outTable string) (*idadf.IdaDataFrame, error) {
	return predict(ctx, "PREDICT_NAIVEBAYES", m.Model, "NAIVEBAYES_PRED", df, id, outTable)
}

// Drop removes the model from the database.
func (m *NaiveBayes) Drop(ctx context.Context) error {
	if m.db == nil {
		return errors.NewInvalidInputError("Drop", "model has not been fitted")
	}
	return dropModel(ctx, m.db, m.Model)
}
