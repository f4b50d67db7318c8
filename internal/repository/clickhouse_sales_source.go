package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	pkgch "DemandCast/pkg/clickhouse"
	"DemandCast/pkg/logger"
)

// querier is what *sql.DB and *sql.Conn have in common.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CHSalesSource reads daily item sales from ClickHouse.
type CHSalesSource struct {
	ch    *pkgch.Client
	table string
	log   *logger.Logger
}

func NewCHSalesSource(ch *pkgch.Client, table string, log *logger.Logger) *CHSalesSource {
	return &CHSalesSource{ch: ch, table: table, log: log}
}

const salesColumns = `sale_date, toInt64(store_id), toInt64(item_id), category, brand,
	toFloat64(quantity), toFloat64(unit_price), toUInt8(is_holiday)`

func activeEntitiesQuery(table string, storeIDs []int64) string {
	return fmt.Sprintf(`
		SELECT toInt64(item_id), toInt64(store_id)
		FROM %s
		WHERE sale_date >= ?%s
		GROUP BY item_id, store_id
		HAVING count() >= ?
		ORDER BY item_id, store_id`, table, storeFilter(storeIDs))
}

func classificationQuery(table string, storeIDs []int64) string {
	return fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE sale_date >= ?%s
		ORDER BY sale_date`, salesColumns, table, storeFilter(storeIDs))
}

func entityHistoryQuery(table string) string {
	return fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE item_id = ? AND store_id = ?
		ORDER BY sale_date`, salesColumns, table)
}

// storeFilter renders an IN list; ids are integers so inlining them is safe.
func storeFilter(storeIDs []int64) string {
	if len(storeIDs) == 0 {
		return ""
	}
	parts := make([]string, len(storeIDs))
	for i, id := range storeIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return " AND store_id IN (" + strings.Join(parts, ", ") + ")"
}

func (s *CHSalesSource) ActiveEntities(ctx context.Context, q domrepo.ActiveEntityQuery) ([]models.EntityKey, error) {
	start := time.Now()
	since := q.AsOf.Add(-q.Window)
	rows, err := s.ch.DB().QueryContext(ctx, activeEntitiesQuery(s.table, q.StoreIDs), since, q.MinTransactions)
	if err != nil {
		return nil, fmt.Errorf("active entities: %w", err)
	}
	defer rows.Close()

	var out []models.EntityKey
	for rows.Next() {
		var k models.EntityKey
		if err := rows.Scan(&k.ItemID, &k.StoreID); err != nil {
			return nil, fmt.Errorf("active entities scan: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active entities rows: %w", err)
	}
	s.log.Debug("clickhouse active entities",
		logger.Int("entities", len(out)),
		logger.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (s *CHSalesSource) ClassificationHistory(ctx context.Context, storeIDs []int64, since time.Time) ([]models.RawSalesRow, error) {
	out, err := querySales(ctx, s.ch.DB(), classificationQuery(s.table, storeIDs), since)
	if err != nil {
		return nil, fmt.Errorf("classification history: %w", err)
	}
	return out, nil
}

func (s *CHSalesSource) OpenSession(ctx context.Context) (domrepo.SalesSession, error) {
	conn, err := s.ch.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("clickhouse conn: %w", err)
	}
	return &chSession{conn: conn, query: entityHistoryQuery(s.table)}, nil
}

func (s *CHSalesSource) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// chSession serves one worker's batch on a single pinned connection.
type chSession struct {
	conn  *sql.Conn
	query string
}

func (c *chSession) EntityHistory(ctx context.Context, key models.EntityKey) ([]models.RawSalesRow, error) {
	out, err := querySales(ctx, c.conn, c.query, key.ItemID, key.StoreID)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", key, err)
	}
	return out, nil
}

func (c *chSession) Close() error {
	return c.conn.Close()
}

func querySales(ctx context.Context, db querier, q string, args ...any) ([]models.RawSalesRow, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.RawSalesRow, 0, 512)
	for rows.Next() {
		var (
			r       models.RawSalesRow
			holiday uint8
		)
		if err := rows.Scan(&r.Date, &r.StoreID, &r.ItemID, &r.Category, &r.Brand, &r.Quantity, &r.UnitPrice, &holiday); err != nil {
			return nil, err
		}
		r.IsHoliday = holiday == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// DailyActuals sums realized quantity per entity and day in [from, to].
func (s *CHSalesSource) DailyActuals(ctx context.Context, from, to time.Time) (map[models.ResultKey]float64, error) {
	q := fmt.Sprintf(`
		SELECT toInt64(item_id), toInt64(store_id), sale_date, sum(toFloat64(quantity))
		FROM %s
		WHERE sale_date >= ? AND sale_date <= ?
		GROUP BY item_id, store_id, sale_date`, s.table)
	rows, err := s.ch.DB().QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily actuals: %w", err)
	}
	defer rows.Close()

	out := make(map[models.ResultKey]float64)
	for rows.Next() {
		var (
			k   models.ResultKey
			qty float64
		)
		if err := rows.Scan(&k.ItemID, &k.StoreID, &k.ForecastDate, &qty); err != nil {
			return nil, fmt.Errorf("daily actuals scan: %w", err)
		}
		k.ForecastDate = k.ForecastDate.UTC().Truncate(24 * time.Hour)
		out[k] = qty
	}
	return out, rows.Err()
}
