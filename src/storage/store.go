package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// dialect holds what differs between the SQL backends.
type dialect struct {
	name        string
	placeholder func(n int) string
	table       func(name string) string
	valueType   string
	dateType    string
	dateSelect  string
}

// -----------------------------------------------------------------------------

// sqlStore implements the fundamentals tables over database/sql.
type sqlStore struct {
	DB      *sql.DB
	Logger  *logger.Logger
	dialect dialect
}

// -----------------------------------------------------------------------------

// NewDatabase returns the backend named by cfg.Storage.DBType.
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch strings.ToLower(cfg.Storage.DBType) {
	case "", "sqlite":
		return NewAsyncSQLiteDB(cfg, log)
	case "postgres", "postgresql":
		return NewPostgresDB(cfg, log)
	default:
		return nil, helpers.NewDatabaseError(fmt.Sprintf("unsupported db_type %q", cfg.Storage.DBType), nil)
	}
}

// -----------------------------------------------------------------------------

// bind rewrites ? placeholders for the dialect.
func (s *sqlStore) bind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) createTables() error {
	t := s.dialect.table
	stmts := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				isin_code TEXT PRIMARY KEY,
				company_name TEXT NOT NULL,
				industry TEXT,
				symbol TEXT NOT NULL,
				series TEXT
			);
		`, t("stock_data")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				metric_name TEXT NOT NULL UNIQUE
			);
		`, t("financial_metric")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				isin_code TEXT NOT NULL REFERENCES %s (isin_code),
				metric_id TEXT NOT NULL REFERENCES %s (id),
				value %s,
				date %s NOT NULL,
				period TEXT NOT NULL,
				UNIQUE (isin_code, metric_id, date, period)
			);
		`, t("financial_data"), t("stock_data"), t("financial_metric"), s.dialect.valueType, s.dialect.dateType),
	}

	for _, q := range stmts {
		if _, err := s.DB.Exec(q); err != nil {
			return helpers.NewDatabaseError("failed to create tables", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) UpsertStocks(ctx context.Context, stocks []models.MStockData) (int, error) {
	if len(stocks) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.bind(fmt.Sprintf(`
		INSERT INTO %s (isin_code, company_name, industry, symbol, series)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (isin_code) DO UPDATE SET
			company_name = excluded.company_name,
			industry = excluded.industry,
			symbol = excluded.symbol,
			series = excluded.series
	`, s.dialect.table("stock_data"))))
	if err != nil {
		return 0, helpers.NewDatabaseError("prepare stock upsert", err)
	}
	defer stmt.Close()

	for _, st := range stocks {
		if _, err := stmt.ExecContext(ctx, st.ISIN, st.CompanyName, st.Industry, st.Symbol, st.Series); err != nil {
			return 0, helpers.NewDatabaseError("upsert stock "+st.ISIN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, helpers.NewDatabaseError("commit", err)
	}
	return len(stocks), nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) ListStocks(ctx context.Context) ([]models.MStockData, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT isin_code, company_name, COALESCE(industry, ''), symbol, COALESCE(series, '')
		FROM %s ORDER BY symbol
	`, s.dialect.table("stock_data")))
	if err != nil {
		return nil, helpers.NewDatabaseError("list stocks", err)
	}
	defer rows.Close()

	var out []models.MStockData
	for rows.Next() {
		var st models.MStockData
		if err := rows.Scan(&st.ISIN, &st.CompanyName, &st.Industry, &st.Symbol, &st.Series); err != nil {
			return nil, helpers.NewDatabaseError("scan stock", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) GetOrCreateMetric(ctx context.Context, name string) (models.MFinancialMetric, error) {
	table := s.dialect.table("financial_metric")

	_, err := s.DB.ExecContext(ctx, s.bind(fmt.Sprintf(`
		INSERT INTO %s (id, metric_name) VALUES (?, ?)
		ON CONFLICT (metric_name) DO NOTHING
	`, table)), uuid.NewString(), name)
	if err != nil {
		return models.MFinancialMetric{}, helpers.NewDatabaseError("create metric "+name, err)
	}

	m := models.MFinancialMetric{Name: name}
	err = s.DB.QueryRowContext(ctx, s.bind(fmt.Sprintf(`SELECT id FROM %s WHERE metric_name = ?`, table)), name).Scan(&m.ID)
	if err != nil {
		return models.MFinancialMetric{}, helpers.NewDatabaseError("load metric "+name, err)
	}
	return m, nil
}

// -----------------------------------------------------------------------------

// UpsertFinancialData counts a row when it is new or its value changed to a
// non-null value.
func (s *sqlStore) UpsertFinancialData(ctx context.Context, rows []models.MFinancialData) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	table := s.dialect.table("financial_data")

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	selectStmt, err := tx.PrepareContext(ctx, s.bind(fmt.Sprintf(`
		SELECT id, value FROM %s
		WHERE isin_code = ? AND metric_id = ? AND date = ? AND period = ?
	`, table)))
	if err != nil {
		return 0, helpers.NewDatabaseError("prepare select", err)
	}
	defer selectStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, s.bind(fmt.Sprintf(`
		INSERT INTO %s (id, isin_code, metric_id, value, date, period)
		VALUES (?, ?, ?, ?, ?, ?)
	`, table)))
	if err != nil {
		return 0, helpers.NewDatabaseError("prepare insert", err)
	}
	defer insertStmt.Close()

	updateStmt, err := tx.PrepareContext(ctx, s.bind(fmt.Sprintf(`UPDATE %s SET value = ? WHERE id = ?`, table)))
	if err != nil {
		return 0, helpers.NewDatabaseError("prepare update", err)
	}
	defer updateStmt.Close()

	changed := 0
	for _, r := range rows {
		day := r.Date.Format(dateLayout)

		var id string
		var current decimal.NullDecimal
		err := selectStmt.QueryRowContext(ctx, r.ISIN, r.MetricID, day, r.Period).Scan(&id, &current)
		switch {
		case err == sql.ErrNoRows:
			if _, err := insertStmt.ExecContext(ctx, uuid.NewString(), r.ISIN, r.MetricID, r.Value, day, r.Period); err != nil {
				return 0, helpers.NewDatabaseError("insert financial data", err)
			}
			changed++
		case err != nil:
			return 0, helpers.NewDatabaseError("lookup financial data", err)
		case !sameValue(current, r.Value):
			if _, err := updateStmt.ExecContext(ctx, r.Value, id); err != nil {
				return 0, helpers.NewDatabaseError("update financial data", err)
			}
			if r.Value.Valid {
				changed++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, helpers.NewDatabaseError("commit", err)
	}
	return changed, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) ListFinancialData(ctx context.Context, isin, period string) ([]models.MFinancialData, error) {
	rows, err := s.DB.QueryContext(ctx, s.bind(fmt.Sprintf(`
		SELECT id, isin_code, metric_id, value, %s, period FROM %s
		WHERE isin_code = ? AND period = ?
		ORDER BY date
	`, s.dialect.dateSelect, s.dialect.table("financial_data"))), isin, period)
	if err != nil {
		return nil, helpers.NewDatabaseError("list financial data", err)
	}
	defer rows.Close()

	var out []models.MFinancialData
	for rows.Next() {
		var r models.MFinancialData
		var day string
		if err := rows.Scan(&r.ID, &r.ISIN, &r.MetricID, &r.Value, &day, &r.Period); err != nil {
			return nil, helpers.NewDatabaseError("scan financial data", err)
		}
		if r.Date, err = time.Parse(dateLayout, day); err != nil {
			return nil, helpers.NewDatabaseError("parse date "+day, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func sameValue(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
