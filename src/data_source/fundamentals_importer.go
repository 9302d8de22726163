package datasource

import (
	"context"
	"sync"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/utils"

	"github.com/shopspring/decimal"
)

// NSE tickers on Yahoo Finance carry this suffix.
const tickerSuffix = ".NS"

// FundamentalsImporter loads the stock universe and its financials into the
// database.
type FundamentalsImporter struct {
	Config *models.MConfig
	DB     interfaces.IDatabase
	Loader interfaces.IReferenceLoader
	Source interfaces.IFundamentalsSource
	Logger *logger.Logger
	now    func() time.Time
}

// -----------------------------------------------------------------------------

func NewFundamentalsImporter(cfg *models.MConfig, db interfaces.IDatabase, loader interfaces.IReferenceLoader, source interfaces.IFundamentalsSource, log *logger.Logger) *FundamentalsImporter {
	return &FundamentalsImporter{
		Config: cfg,
		DB:     db,
		Loader: loader,
		Source: source,
		Logger: log,
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

// ImportStocks upserts the universe list keyed by ISIN.
func (f *FundamentalsImporter) ImportStocks(ctx context.Context) (int, error) {
	listings, err := f.Loader.IndexListing(ctx, f.Config.Reference.UniverseListURL)
	if err != nil {
		return 0, err
	}

	stocks := make([]models.MStockData, 0, len(listings))
	for _, l := range listings {
		if l.ISIN == "" {
			continue
		}
		stocks = append(stocks, models.MStockData{
			ISIN:        l.ISIN,
			CompanyName: l.CompanyName,
			Industry:    l.Industry,
			Symbol:      l.Symbol,
			Series:      l.Series,
		})
	}

	n, err := f.DB.UpsertStocks(ctx, stocks)
	if err != nil {
		return 0, err
	}
	f.Logger.Info("Imported %d stocks", n)
	return n, nil
}

// -----------------------------------------------------------------------------

type stockFinancials struct {
	stock     models.MStockData
	points    []models.MMetricPoint
	marketCap *float64
}

// -----------------------------------------------------------------------------

// ImportFinancials refreshes financials for every stored stock and returns the
// number of rows created or changed. Stocks whose fetch fails are skipped.
func (f *FundamentalsImporter) ImportFinancials(ctx context.Context, period string) (int, error) {
	if period != models.PeriodAnnual && period != models.PeriodQuarterly {
		return 0, helpers.NewValidationError("unknown period "+period, nil)
	}

	stocks, err := f.DB.ListStocks(ctx)
	if err != nil {
		return 0, err
	}

	metricIDs := make(map[string]string)
	for _, name := range []string{models.MetricOperatingIncome, models.MetricTotalRevenue, models.MetricBasicEPS, models.MetricMarketCap} {
		m, err := f.DB.GetOrCreateMetric(ctx, name)
		if err != nil {
			return 0, err
		}
		metricIDs[name] = m.ID
	}

	fetched := f.fetchBatch(ctx, stocks, period)

	y, m, d := f.now().In(utils.IST()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	var rows []models.MFinancialData
	for _, sf := range fetched {
		for _, p := range sf.points {
			id, ok := metricIDs[p.Metric]
			if !ok {
				continue
			}
			rows = append(rows, models.MFinancialData{
				ISIN:     sf.stock.ISIN,
				MetricID: id,
				Value:    toDecimal(p.Value),
				Date:     p.Date,
				Period:   period,
			})
		}
		if sf.marketCap != nil {
			rows = append(rows, models.MFinancialData{
				ISIN:     sf.stock.ISIN,
				MetricID: metricIDs[models.MetricMarketCap],
				Value:    toDecimal(sf.marketCap),
				Date:     today,
				Period:   period,
			})
		}
	}

	n, err := f.DB.UpsertFinancialData(ctx, rows)
	if err != nil {
		return 0, err
	}
	f.Logger.Info("Financials (%s): %d/%d stocks fetched, %d rows updated", period, len(fetched), len(stocks), n)
	return n, nil
}

// -----------------------------------------------------------------------------

// fetchBatch fetches stocks concurrently under the configured request limit.
func (f *FundamentalsImporter) fetchBatch(ctx context.Context, stocks []models.MStockData, period string) []stockFinancials {
	limit := f.Config.Network.ConcurrentRequests
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make([]stockFinancials, 0, len(stocks))

	for _, stock := range stocks {
		wg.Add(1)
		go func(st models.MStockData) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			ticker := st.Symbol + tickerSuffix
			points, err := f.Source.Financials(ctx, ticker, period)
			if err != nil {
				f.Logger.Warning("Skipping %s: %v", ticker, err)
				return
			}

			sf := stockFinancials{stock: st, points: points}
			if view, err := f.Source.Snapshot(ctx, ticker); err != nil {
				f.Logger.Warning("No market cap for %s: %v", ticker, err)
			} else {
				sf.marketCap = view.MarketCap
			}

			mu.Lock()
			results = append(results, sf)
			mu.Unlock()
		}(stock)
	}

	wg.Wait()
	return results
}

// -----------------------------------------------------------------------------

func toDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}

