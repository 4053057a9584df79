package idaframe

import (
	"context"

	"github.com/paveg/idaframe/internal/learn"
)

// KMeans clusters rows with the in-database IDAX.KMEANS procedure.
type KMeans struct {
	m *learn.KMeans
}

// NewKMeans creates an unfitted KMeans model with k clusters. maxIter and
// distance may be zero values to keep the procedure defaults.
func NewKMeans(k, maxIter int, distance string) *KMeans {
	m := learn.NewKMeans(k)
	m.MaxIter = maxIter
	m.Distance = distance
	return &KMeans{m: m}
}

// Model returns the database name of the model, empty before Fit.
func (k *KMeans) Model() string {
	return k.m.Model
}

// Fit trains the model on the projected columns of df other than id.
func (k *KMeans) Fit(ctx context.Context, df *DataFrame, id string) error {
	return k.m.Fit(ctx, df.df, id)
}

// Predict assigns the rows of df to clusters and stores them in outTable.
func (k *KMeans) Predict(ctx context.Context, df *DataFrame, id, outTable string) (*DataFrame, error) {
	out, err := k.m.Predict(ctx, df.df, id, outTable)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: out}, nil
}

// Drop removes the model from the database.
func (k *KMeans) Drop(ctx context.Context) error {
	return k.m.Drop(ctx)
}

// NaiveBayes classifies rows with the in-database IDAX.NAIVEBAYES procedure.
type NaiveBayes struct {
	m *learn.NaiveBayes
}

// NewNaiveBayes creates an unfitted classifier for target. disc and bins
// may be zero values to keep the procedure defaults.
func NewNaiveBayes(target, disc string, bins int) *NaiveBayes {
	m := learn.NewNaiveBayes(target)
	m.Disc = disc
	m.Bins = bins
	return &NaiveBayes{m: m}
}

// Model returns the database name of the model, empty before Fit.
func (n *NaiveBayes) Model() string {
	return n.m.Model
}

// Fit trains the classifier on df.
func (n *NaiveBayes) Fit(ctx context.Context, df *DataFrame, id string) error {
	return n.m.Fit(ctx, df.df, id)
}

// Predict classifies the rows of df and stores them in outTable.
func (n *NaiveBayes) Predict(ctx context.Context, df *DataFrame, id, outTable string) (*DataFrame, error) {
	out, err := n.m.Predict(ctx, df.df, id, outTable)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: out}, nil
}

// Drop removes the model from the database.
func (n *NaiveBayes) Drop(ctx context.Context) error {
	return n.m.Drop(ctx)
}
