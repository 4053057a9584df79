package learn_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/paveg/idaframe/internal/config"
	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/errors"
	"github.com/paveg/idaframe/internal/idadf"
	"github.com/paveg/idaframe/internal/learn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupMock(t *testing.T) (*database.DataBase, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := database.New(sqlx.NewDb(mockDB, "nzgo"), config.NewConfig(), zaptest.NewLogger(t), nil)
	return db, mock
}

func expectTable(mock sqlmock.Sqlmock, table string, columns ...string) {
	mock.ExpectQuery("SELECT 1 FROM " + table + " WHERE 1=0").WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery("SELECT * FROM " + table + " WHERE 1=0").WillReturnRows(sqlmock.NewRows(columns))
}

func openIris(t *testing.T, db *database.DataBase, mock sqlmock.Sqlmock) *idadf.IdaDataFrame {
	t.Helper()
	expectTable(mock, "IRIS", "ID", "SEPAL_LENGTH", "PETAL_LENGTH", "SPECIES")
	df, err := idadf.New(context.Background(), db, "IRIS")
	require.NoError(t, err)
	return df
}

func TestParams(t *testing.T) {
	p := learn.Params{"model": "M", "intable": "T", "id": "ID", "disc": ""}
	assert.Equal(t, "id=ID, intable=T, model=M", p.String())

	assert.Equal(t, "CALL IDAX.DROP_MODEL('model=O''BRIEN')",
		learn.CallStatement("DROP_MODEL", learn.Params{"model": "O'BRIEN"}))
}

func TestGenerateName(t *testing.T) {
	a := learn.GenerateName("KMEANS")
	b := learn.GenerateName("KMEANS")
	assert.Regexp(t, regexp.MustCompile(`^KMEANS_[0-9A-F]{32}$`), a)
	assert.NotEqual(t, a, b)
}

func TestKMeans_FitPredictDrop(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()
	iris := openIris(t, db, mock)
	features, err := iris.Select("ID", "SEPAL_LENGTH", "PETAL_LENGTH")
	require.NoError(t, err)

	km := learn.NewKMeans(3)
	km.MaxIter = 5
	km.Model = "KM1"

	mock.ExpectExec("CALL IDAX.KMEANS('id=ID, incolumn=SEPAL_LENGTH;PETAL_LENGTH, intable=IRIS, k=3, maxiter=5, model=KM1')").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, km.Fit(ctx, features, "ID"))

	mock.ExpectExec("CALL IDAX.PREDICT_KMEANS('id=ID, intable=IRIS, model=KM1, outtable=CLUSTERS')").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectTable(mock, "CLUSTERS", "ID", "CLUSTER_ID", "DISTANCE")
	clusters, err := km.Predict(ctx, iris, "ID", "CLUSTERS")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "CLUSTER_ID", "DISTANCE"}, clusters.Columns())

	mock.ExpectExec("CALL IDAX.DROP_MODEL('model=KM1')").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, km.Drop(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKMeans_GeneratesModelName(t *testing.T) {
	// the generated name is unknown up front, so statements are matched by pattern
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := database.New(sqlx.NewDb(mockDB, "nzgo"), config.NewConfig(), zaptest.NewLogger(t), nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM IRIS WHERE 1=0")).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM IRIS WHERE 1=0")).WillReturnRows(sqlmock.NewRows([]string{"ID", "X"}))
	df, err := idadf.New(context.Background(), db, "IRIS")
	require.NoError(t, err)

	mock.ExpectExec(`CALL IDAX\.KMEANS\('id=ID, incolumn=X, intable=IRIS, k=2, model=KMEANS_[0-9A-F]{32}'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	km := learn.NewKMeans(2)
	require.NoError(t, km.Fit(context.Background(), df, "ID"))
	assert.Regexp(t, `^KMEANS_[0-9A-F]{32}$`, km.Model)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKMeans_InvalidInput(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()
	iris := openIris(t, db, mock)

	err := learn.NewKMeans(0).Fit(ctx, iris, "ID")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	err = learn.NewKMeans(3).Fit(ctx, iris, "ROW_ID")
	assert.ErrorIs(t, err, errors.ErrColumnNotFound)

	err = learn.NewKMeans(3).Fit(ctx, iris.Where(`"SPECIES" = ?`, "setosa"), "ID")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = learn.NewKMeans(3).Predict(ctx, iris, "ID", "OUT")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	assert.ErrorIs(t, learn.NewKMeans(3).Drop(ctx), errors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNaiveBayes_FitPredict(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()
	iris := openIris(t, db, mock)

	nb := learn.NewNaiveBayes("SPECIES")
	nb.Disc = "ew"
	nb.Bins = 10
	nb.Model = "NB1"

	mock.ExpectExec("CALL IDAX.NAIVEBAYES('bins=10, disc=ew, id=ID, incolumn=SEPAL_LENGTH;PETAL_LENGTH, intable=IRIS, model=NB1, target=SPECIES')").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, nb.Fit(ctx, iris, "ID"))

	mock.ExpectExec("CALL IDAX.PREDICT_NAIVEBAYES('id=ID, intable=IRIS, model=NB1, outtable=PREDICTIONS')").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectTable(mock, "PREDICTIONS", "ID", "CLASS")
	out, err := nb.Predict(ctx, iris, "ID", "PREDICTIONS")
	require.NoError(t, err)
	assert.Equal(t, "PREDICTIONS", out.Table())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNaiveBayes_InvalidInput(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()
	iris := openIris(t, db, mock)

	assert.ErrorIs(t, learn.NewNaiveBayes("").Fit(ctx, iris, "ID"), errors.ErrInvalidInput)
	assert.ErrorIs(t, learn.NewNaiveBayes("CLASS").Fit(ctx, iris, "ID"), errors.ErrColumnNotFound)

	nb := learn.NewNaiveBayes("SPECIES")
	nb.Disc = "quantile"
	assert.ErrorIs(t, nb.Fit(ctx, iris, "ID"), errors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFit_ProcedureErrorUnchanged(t *testing.T) {
	db, mock := setupMock(t)
	iris := openIris(t, db, mock)

	km := learn.NewKMeans(3)
	km.Model = "KM1"
	mock.ExpectExec("CALL IDAX.KMEANS('id=ID, incolumn=SEPAL_LENGTH;PETAL_LENGTH;SPECIES, intable=IRIS, k=3, model=KM1')").
		WillReturnError(assert.AnError)

	err := km.Fit(context.Background(), iris, "ID")
	assert.Same(t, assert.AnError, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
