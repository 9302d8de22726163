package interfaces

import (
	"context"

	"market-relay/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for fundamentals storage.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// UpsertStocks inserts or updates stocks keyed by ISIN.
	UpsertStocks(ctx context.Context, stocks []models.MStockData) (int, error)

	// -----------------------------------------------------------------------------

	// ListStocks returns every stored stock ordered by symbol.
	ListStocks(ctx context.Context) ([]models.MStockData, error)

	// -----------------------------------------------------------------------------

	// GetOrCreateMetric returns the metric with the given name, creating it if needed.
	GetOrCreateMetric(ctx context.Context, name string) (models.MFinancialMetric, error)

	// -----------------------------------------------------------------------------

	// UpsertFinancialData writes rows keyed by (stock, metric, date, period) and
	// returns how many rows were created or had their value changed.
	UpsertFinancialData(ctx context.Context, rows []models.MFinancialData) (int, error)

	// -----------------------------------------------------------------------------

	// ListFinancialData returns stored values for one stock and period.
	ListFinancialData(ctx context.Context, isin, period string) ([]models.MFinancialData, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
