package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/logging"
)

// ErrViewNotFound is returned when a saved view does not exist.
var ErrViewNotFound = errors.New("saved view not found")

// Time series bucket sizes accepted by TimeSeries.
var buckets = map[string]bool{"hour": true, "day": true, "week": true, "month": true}

// Summary holds headline metrics for a filter query.
type Summary struct {
	Revenue       float64 `json:"revenue"`
	Transactions  int64   `json:"transactions"`
	Customers     int64   `json:"customers"`
	AvgOrderValue float64 `json:"avg_order_value"`
	UnitsSold     int64   `json:"units_sold"`
}

// BreakdownItem is one row of a per-dimension breakdown.
type BreakdownItem struct {
	Name         string  `json:"name"`
	Revenue      float64 `json:"revenue"`
	Transactions int64   `json:"transactions"`
}

// TimeSeriesPoint is revenue for one time bucket.
type TimeSeriesPoint struct {
	Bucket       time.Time `json:"bucket"`
	Revenue      float64   `json:"revenue"`
	Transactions int64     `json:"transactions"`
}

// SavedView is a named filter query kept between visits.
type SavedView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository reads transactions through a filter query and stores saved
// views.
type Repository struct {
	db     *sql.DB
	schema *filters.Schema
}

// NewRepository binds a repository to a pool and the dimension schema.
func NewRepository(db *sql.DB, schema *filters.Schema) *Repository {
	return &Repository{db: db, schema: schema}
}

// Summary returns headline metrics for q.
func (r *Repository) Summary(ctx context.Context, q filters.Query) (Summary, error) {
	clause, args := BuildWhere(r.schema, q, 1)
	query := `SELECT
			COALESCE(SUM(amount), 0)::float8,
			COUNT(*),
			COUNT(DISTINCT customer_id),
			COALESCE(SUM(quantity), 0)
		FROM transactions` + whereSQL(clause)

	var s Summary
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.Revenue, &s.Transactions, &s.Customers, &s.UnitsSold); err != nil {
		return Summary{}, fmt.Errorf("summary query failed: %w", err)
	}
	if s.Transactions > 0 {
		s.AvgOrderValue = s.Revenue / float64(s.Transactions)
	}
	return s, nil
}

// Breakdown groups revenue by dimension and returns one page of rows plus
// the total number of groups.
func (r *Repository) Breakdown(ctx context.Context, q filters.Query, dimension string, limit, offset int) ([]BreakdownItem, int64, error) {
	if !r.schema.Has(dimension) {
		return nil, 0, fmt.Errorf("%w: %q", filters.ErrInvalidDimension, dimension)
	}

	clause, args := BuildWhere(r.schema, q, 1)
	column := quoteIdent(dimension)
	n := len(args)
	query := fmt.Sprintf(`SELECT
			%s AS name,
			COALESCE(SUM(amount), 0)::float8 AS revenue,
			COUNT(*) AS transactions,
			COUNT(*) OVER() AS total_count
		FROM transactions%s
		GROUP BY %s
		ORDER BY revenue DESC, name ASC
		LIMIT $%d OFFSET $%d`, column, whereSQL(clause), column, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("breakdown query failed: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.L().Warn("failed to close breakdown rows", zap.Error(err))
		}
	}()

	items := make([]BreakdownItem, 0)
	var total int64
	for rows.Next() {
		var item BreakdownItem
		if err := rows.Scan(&item.Name, &item.Revenue, &item.Transactions, &total); err != nil {
			return nil, 0, fmt.Errorf("breakdown scan failed: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("breakdown rows failed: %w", err)
	}
	return items, total, nil
}

// TimeSeries buckets revenue by hour, day, week or month. An empty bucket
// means day.
func (r *Repository) TimeSeries(ctx context.Context, q filters.Query, bucket string) ([]TimeSeriesPoint, error) {
	if bucket == "" {
		bucket = "day"
	}
	if !buckets[bucket] {
		return nil, fmt.Errorf("invalid time bucket %q", bucket)
	}

	clause, args := BuildWhere(r.schema, q, 2)
	query := `SELECT
			date_trunc($1, occurred_at) AS bucket,
			COALESCE(SUM(amount), 0)::float8,
			COUNT(*)
		FROM transactions` + whereSQL(clause) + `
		GROUP BY bucket
		ORDER BY bucket`

	rows, err := r.db.QueryContext(ctx, query, append([]any{bucket}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("time series query failed: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.L().Warn("failed to close time series rows", zap.Error(err))
		}
	}()

	points := make([]TimeSeriesPoint, 0)
	for rows.Next() {
		var p TimeSeriesPoint
		if err := rows.Scan(&p.Bucket, &p.Revenue, &p.Transactions); err != nil {
			return nil, fmt.Errorf("time series scan failed: %w", err)
		}
		p.Bucket = p.Bucket.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("time series rows failed: %w", err)
	}
	return points, nil
}

// SaveView stores query under name, replacing any existing view.
func (r *Repository) SaveView(ctx context.Context, name, query string) (SavedView, error) {
	var v SavedView
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO saved_views (name, query)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET query = EXCLUDED.query, updated_at = NOW()
		RETURNING id, name, query, created_at, updated_at
	`, name, query).Scan(&v.ID, &v.Name, &v.Query, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return SavedView{}, fmt.Errorf("save view failed: %w", err)
	}
	return v, nil
}

// GetView loads a saved view by name.
func (r *Repository) GetView(ctx context.Context, name string) (SavedView, error) {
	var v SavedView
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, query, created_at, updated_at
		FROM saved_views
		WHERE name = $1
	`, name).Scan(&v.ID, &v.Name, &v.Query, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedView{}, ErrViewNotFound
	}
	if err != nil {
		return SavedView{}, fmt.Errorf("get view failed: %w", err)
	}
	return v, nil
}

// ListViews returns every saved view ordered by name.
func (r *Repository) ListViews(ctx context.Context) ([]SavedView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, query, created_at, updated_at
		FROM saved_views
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list views failed: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.L().Warn("failed to close view rows", zap.Error(err))
		}
	}()

	views := make([]SavedView, 0)
	for rows.Next() {
		var v SavedView
		if err := rows.Scan(&v.ID, &v.Name, &v.Query, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list views scan failed: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// DeleteView removes a saved view.
func (r *Repository) DeleteView(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_views WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete view failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete view failed: %w", err)
	}
	if affected == 0 {
		return ErrViewNotFound
	}
	return nil
}
