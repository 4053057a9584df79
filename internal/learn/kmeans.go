package learn

import (
	"context"
	"strconv"

	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/idadf"
	"go.uber.org/zap"
)

// KMeans clusters rows with IDAX.KMEANS.
type KMeans struct {
	K        int
	MaxIter  int    // 0 leaves the procedure default
	Distance string // euclidean, norm_euclidean, ...; empty leaves the default
	Model    string // generated by Fit when empty

	db *database.DataBase
}

// NewKMeans creates an unfitted model with k clusters.
func NewKMeans(k int) *KMeans {
	return &KMeans{K: k}
}

// Fit trains the model on df, identifying rows by the id column. The
// remaining projected columns are the features.
func (m *KMeans) Fit(ctx context.Context, df *idadf.IdaDataFrame, id string) error {
	if m.K < 1 {
		return errors.NewInvalidInputError("Fit", "K must be at least 1, got "+strconv.Itoa(m.K))
	}
	params, err := input("Fit", df, id)
	if err != nil {
		return err
	}

	if m.Model == "" {
		m.Model = GenerateName("KMEANS")
	}
	m.db = df.Database()

	params["model"] = m.Model
	params["k"] = strconv.Itoa(m.K)
	params["incolumn"] = features(df, id)
	if m.MaxIter > 0 {
		params["maxiter"] = strconv.Itoa(m.MaxIter)
	}
	params["distance"] = m.Distance

	if err := call(ctx, m.db, "KMEANS", params); err != nil {
		return err
	}
	m.db.Logger().Info("Model trained", zap.String("model", m.Model), zap.Int("k", m.K))
	return nil
}

// Predict assigns every row of df to a cluster and returns a handle on the
// output table. An empty outTable gets a generated name.
func (m *KMeans) Predict(ctx context.Context, df *idadf.IdaDataFrame, id, outTable string) (*idadf.IdaDataFrame, error) {
	return predict(ctx, "PREDICT_KMEANS", m.Model, "KMEANS_PRED", df, id, outTable)
}

// Drop removes the model from the database.
func (m *KMeans) Drop(ctx context.Context) error {
	if m.db == nil {
		return errors.NewInvalidInputError("Drop", "model has not been fitted")
	}
	return dropModel(ctx, m.db, m.Model)
}
