package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/scout/internal/filters"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db, filters.DefaultSchema()), mock
}

func regionQuery(values ...string) filters.Query {
	return filters.Query{Dimensions: map[string][]string{"region": values}}
}

func TestSummary(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM transactions WHERE "region" IN \(\$1\)`).
		WithArgs("NCR").
		WillReturnRows(sqlmock.NewRows([]string{"revenue", "count", "customers", "units"}).
			AddRow(1500.0, int64(3), int64(2), int64(7)))

	summary, err := repo.Summary(context.Background(), regionQuery("NCR"))
	require.NoError(t, err)

	assert.Equal(t, 1500.0, summary.Revenue)
	assert.Equal(t, int64(3), summary.Transactions)
	assert.Equal(t, int64(2), summary.Customers)
	assert.Equal(t, int64(7), summary.UnitsSold)
	assert.Equal(t, 500.0, summary.AvgOrderValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryWithoutTransactions(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM transactions$`).
		WillReturnRows(sqlmock.NewRows([]string{"revenue", "count", "customers", "units"}).
			AddRow(0.0, int64(0), int64(0), int64(0)))

	summary, err := repo.Summary(context.Background(), filters.Query{})
	require.NoError(t, err)
	assert.Zero(t, summary.AvgOrderValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryQueryError(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("FROM transactions").WillReturnError(assert.AnError)

	_, err := repo.Summary(context.Background(), filters.Query{})
	require.ErrorIs(t, err, assert.AnError)
}

func TestBreakdown(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY "brand"`)).
		WithArgs("NCR", "Cebu", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"name", "revenue", "transactions", "total_count"}).
			AddRow("Alaska", 900.0, int64(4), int64(12)).
			AddRow("Nestle", 300.0, int64(1), int64(12)))

	items, total, err := repo.Breakdown(context.Background(), regionQuery("NCR", "Cebu"), "brand", 10, 20)
	require.NoError(t, err)

	assert.Equal(t, int64(12), total)
	assert.Equal(t, []BreakdownItem{
		{Name: "Alaska", Revenue: 900, Transactions: 4},
		{Name: "Nestle", Revenue: 300, Transactions: 1},
	}, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBreakdownRejectsUnknownDimension(t *testing.T) {
	repo, mock := newMockRepository(t)

	_, _, err := repo.Breakdown(context.Background(), filters.Query{}, "customer_id; DROP TABLE x", 10, 0)

	require.ErrorIs(t, err, filters.ErrInvalidDimension)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSeries(t *testing.T) {
	repo, mock := newMockRepository(t)
	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`date_trunc($1, occurred_at)`)).
		WithArgs("week", "NCR").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "revenue", "transactions"}).
			AddRow(day, 120.5, int64(2)))

	points, err := repo.TimeSeries(context.Background(), regionQuery("NCR"), "week")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, day, points[0].Bucket)
	assert.Equal(t, 120.5, points[0].Revenue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSeriesBuckets(t *testing.T) {
	repo, mock := newMockRepository(t)

	_, err := repo.TimeSeries(context.Background(), filters.Query{}, "fortnight")
	require.Error(t, err)

	mock.ExpectQuery("date_trunc").
		WithArgs("day").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "revenue", "transactions"}))

	points, err := repo.TimeSeries(context.Background(), filters.Query{}, "")
	require.NoError(t, err)
	assert.Empty(t, points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func viewRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "query", "created_at", "updated_at"})
}

func TestSaveViewUpserts(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO saved_views").
		WithArgs("ncr-snacks", "region=NCR&category=Snacks").
		WillReturnRows(viewRows().AddRow(int64(1), "ncr-snacks", "region=NCR&category=Snacks", now, now))

	view, err := repo.SaveView(context.Background(), "ncr-snacks", "region=NCR&category=Snacks")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, "region=NCR&category=Snacks", view.Query)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetViewNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("FROM saved_views").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetView(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestListViews(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()
	mock.ExpectQuery("ORDER BY name").
		WillReturnRows(viewRows().
			AddRow(int64(2), "a", "brand=Alaska", now, now).
			AddRow(int64(1), "b", "", now, now))

	views, err := repo.ListViews(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "a", views[0].Name)
	assert.Equal(t, "", views[1].Query)
}

func TestDeleteView(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("DELETE FROM saved_views").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM saved_views").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteView(context.Background(), "a"))
	assert.ErrorIs(t, repo.DeleteView(context.Background(), "a"), ErrViewNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
