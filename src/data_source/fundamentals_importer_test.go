package datasource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	listings []models.MIndexListing
	url      string
}

func (l *fakeLoader) IndexListing(_ context.Context, url string) ([]models.MIndexListing, error) {
	l.url = url
	return l.listings, nil
}

func (l *fakeLoader) ScripMaster(context.Context) ([]models.MScripMasterEntry, error) {
	return nil, nil
}

type fakeSource struct {
	mu      sync.Mutex
	revenue map[string]float64
	failFor string
	tickers []string
}

func (s *fakeSource) Snapshot(_ context.Context, ticker string) (models.MFundamentalView, error) {
	mcap := 1000.0
	return models.MFundamentalView{MarketCap: &mcap}, nil
}

func (s *fakeSource) Financials(_ context.Context, ticker, period string) ([]models.MMetricPoint, error) {
	s.mu.Lock()
	s.tickers = append(s.tickers, ticker)
	rev := s.revenue[ticker]
	s.mu.Unlock()

	if ticker == s.failFor {
		return nil, errors.New("not found")
	}
	return []models.MMetricPoint{
		{Metric: models.MetricTotalRevenue, Date: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Value: &rev},
		{Metric: models.MetricBasicEPS, Date: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func newImporter(t *testing.T, src *fakeSource) (*FundamentalsImporter, *fakeLoader) {
	t.Helper()
	cfg := &models.MConfig{
		Reference: models.MReferenceConfig{UniverseListURL: "http://nse/nifty200.csv"},
		Storage:   models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:"},
		Network:   models.MNetworkConfig{ConcurrentRequests: 2},
	}
	db, err := storage.NewAsyncSQLiteDB(cfg, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })

	loader := &fakeLoader{listings: []models.MIndexListing{
		{CompanyName: "HDFC Bank Ltd.", Industry: "Financial Services", Symbol: "HDFCBANK", Series: "EQ", ISIN: "INE040A01034"},
		{CompanyName: "Reliance Industries Ltd.", Industry: "Oil Gas", Symbol: "RELIANCE", Series: "EQ", ISIN: "INE002A01018"},
		{CompanyName: "No ISIN", Symbol: "NOISIN"},
	}}
	imp := NewFundamentalsImporter(cfg, db, loader, src, logger.NewNop())
	imp.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }
	return imp, loader
}

func TestImportStocksUsesUniverseList(t *testing.T) {
	imp, loader := newImporter(t, &fakeSource{})

	n, err := imp.ImportStocks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "http://nse/nifty200.csv", loader.url)

	stocks, err := imp.DB.ListStocks(context.Background())
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, "HDFCBANK", stocks[0].Symbol)
}

func TestImportFinancialsCountsCreatedAndChangedRows(t *testing.T) {
	src := &fakeSource{revenue: map[string]float64{"HDFCBANK.NS": 100, "RELIANCE.NS": 200}}
	imp, _ := newImporter(t, src)
	ctx := context.Background()

	_, err := imp.ImportStocks(ctx)
	require.NoError(t, err)

	// Per stock: revenue, EPS (null) and market cap.
	n, err := imp.ImportFinancials(ctx, models.PeriodAnnual)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.ElementsMatch(t, []string{"HDFCBANK.NS", "RELIANCE.NS"}, src.tickers)

	n, err = imp.ImportFinancials(ctx, models.PeriodAnnual)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	src.revenue["RELIANCE.NS"] = 250
	n, err = imp.ImportFinancials(ctx, models.PeriodAnnual)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportFinancialsSkipsFailedStocks(t *testing.T) {
	src := &fakeSource{revenue: map[string]float64{"HDFCBANK.NS": 100}, failFor: "RELIANCE.NS"}
	imp, _ := newImporter(t, src)
	ctx := context.Background()

	_, err := imp.ImportStocks(ctx)
	require.NoError(t, err)

	n, err := imp.ImportFinancials(ctx, models.PeriodQuarterly)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := imp.DB.ListFinancialData(ctx, "INE002A01018", models.PeriodQuarterly)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestImportFinancialsRejectsUnknownPeriod(t *testing.T) {
	imp, _ := newImporter(t, &fakeSource{})
	_, err := imp.ImportFinancials(context.Background(), "weekly")
	require.Error(t, err)
}
